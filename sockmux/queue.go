package sockmux

import "github.com/eapache/queue"

// outboundQueue buffers application messages awaiting delivery to a polling
// connection. FIFO, unbounded; flow control is the application's problem.
// Not safe for concurrent use, callers hold the session lock.
type outboundQueue struct {
	q *queue.Queue
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{q: queue.New()}
}

func (b *outboundQueue) push(msg string) {
	b.q.Add(msg)
}

func (b *outboundQueue) len() int {
	return b.q.Length()
}

// drain removes and returns queued messages in insertion order: the oldest
// one when multiple is false, everything otherwise. Returns nil when empty.
func (b *outboundQueue) drain(multiple bool) []string {
	n := b.q.Length()
	if n == 0 {
		return nil
	}
	if !multiple {
		n = 1
	}
	msgs := make([]string, n)
	for i := 0; i < n; i++ {
		msgs[i] = b.q.Remove().(string)
	}
	return msgs
}

// compact drops the grown backing storage of an empty queue so an idle
// session holds on to as little memory as possible.
func (b *outboundQueue) compact() {
	if b.q.Length() == 0 {
		b.q = queue.New()
	}
}
