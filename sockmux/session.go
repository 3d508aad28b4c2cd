package sockmux

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadyState is the lifecycle state of a session.
type ReadyState uint32

const (
	// brand new session, waiting for the first poll to open it
	SessionConnecting ReadyState = iota
	// active session
	SessionOpen
	// terminal state; the close frame replays to late polls until the
	// disconnect timer reaps the session
	SessionClosed
)

var (
	// ErrSessionNotOpen is returned by Received and Send when the session is
	// not in the open state.
	ErrSessionNotOpen = errors.New("sockmux: session not in open state")
	// ErrSessionInUse is returned by Reply when a different connection is
	// already waiting on the session. The existing waiter is not disturbed.
	ErrSessionInUse = errors.New("sockmux: another connection is already waiting")
)

// Session is one logical conversation shared by any number of consecutive
// transport connections. All state transitions are serialized; callbacks run
// one at a time in event order.
type Session struct {
	mux sync.Mutex

	id      string
	info    ConnInfo
	state   ReadyState
	handler Handler

	queue *outboundQueue

	// at most one connection waits for outbound data at any time
	waiter         Receiver
	waiterCh       chan Frame
	waiterMultiple bool
	unlink         chan struct{}

	hbTriggered bool
	closeMsg    Frame

	disconnectDelay time.Duration
	heartbeatDelay  time.Duration
	hibernateDelay  time.Duration // negative: hibernation disabled

	// disconnect and heartbeat share one slot, they are never armed together;
	// gen invalidates fires from timers that were already replaced
	timer    *time.Timer
	timerGen uint64
	hibTimer *time.Timer

	terminated bool
	closeCh    chan struct{}

	// serializes handler callbacks so deliveries keep event order even
	// though the state lock is released around them
	cbMux sync.Mutex

	log *zap.Logger
}

// NewSession creates a session in the connecting state. An empty id gets a
// generated one; the session opens on its first Reply. The disconnect timer
// starts immediately: a session nobody ever polls terminates on its own.
func NewSession(id string, opts Options, info ConnInfo, handler Handler) *Session {
	registerMetrics()
	if id == "" {
		id = uuid.NewString()
	}
	if handler == nil {
		handler = HandlerFunc(func(*Session, string) {})
	}
	if info.Headers != nil {
		h := make(map[string]string, len(info.Headers))
		for k, v := range info.Headers {
			h[k] = v
		}
		info.Headers = h
	}
	s := &Session{
		id:              id,
		info:            info,
		handler:         handler,
		queue:           newOutboundQueue(),
		disconnectDelay: opts.DisconnectDelay,
		heartbeatDelay:  opts.HeartbeatDelay,
		hibernateDelay:  opts.hibernateTimeout(),
		closeCh:         make(chan struct{}),
		log:             opts.logger().With(zap.String("session", id)),
	}
	s.mux.Lock()
	s.timer = time.AfterFunc(s.disconnectDelay, s.fireDisconnect(s.timerGen))
	if s.hibernateDelay >= 0 {
		s.hibTimer = time.AfterFunc(s.hibernateDelay, s.hibernate)
	}
	s.mux.Unlock()
	sessionsActive.Inc()
	s.log.Debug("session created", zap.String("remote", info.RemoteAddr))
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Info() ConnInfo { return s.info }

// Done is closed when the session has terminated and its handler has been
// notified.
func (s *Session) Done() <-chan struct{} { return s.closeCh }

func (s *Session) State() ReadyState {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.state
}

// Reply asks the session for the next outbound frame on behalf of conn. The
// first poll opens the session; a closed session replays its close frame.
// When nothing is pending the caller is parked: the returned Reply carries a
// Ready channel that resolves with data, a heartbeat or the close frame. A
// poll while a different connection waits fails with ErrSessionInUse and
// leaves the waiter untouched. With multiple set the whole queue is drained
// into one frame, otherwise one message at a time.
func (s *Session) Reply(conn Receiver, multiple bool) (Reply, error) {
	s.cbMux.Lock()
	defer s.cbMux.Unlock()

	s.mux.Lock()
	rep, opened, err := s.replyLocked(conn, multiple)
	s.mux.Unlock()
	if err != nil {
		return Reply{}, err
	}
	if opened {
		s.handler.OnInit(s)
	}
	return rep, nil
}

func (s *Session) replyLocked(conn Receiver, multiple bool) (rep Reply, opened bool, err error) {
	if s.state == SessionClosed {
		return Reply{Frame: s.closeMsg}, false, nil
	}
	if s.waiter != nil {
		if s.waiter == conn {
			// the registered waiter polled again, hand back the same rendezvous
			return Reply{Ready: s.waiterCh}, false, nil
		}
		return Reply{}, false, ErrSessionInUse
	}
	if s.state == SessionConnecting {
		s.state = SessionOpen
		s.rearmDisconnectLocked()
		sessionsOpened.Inc()
		s.log.Debug("session opened")
		return Reply{Frame: Frame{Type: FrameOpen}}, true, nil
	}
	if msgs := s.queue.drain(multiple); msgs != nil {
		// real data supersedes a pending triggered heartbeat
		s.hbTriggered = false
		s.rearmDisconnectLocked()
		messagesOut.Add(float64(len(msgs)))
		return Reply{Frame: Frame{Type: FrameData, Messages: msgs}}, false, nil
	}
	if s.hbTriggered {
		// a heartbeat fired while the previous poll was parked; resolve this
		// one instantly instead of parking it for another full delay
		s.hbTriggered = false
		s.rearmDisconnectLocked()
		return Reply{Frame: Frame{Type: FrameHeartbeat}}, false, nil
	}

	// nothing to say: park the caller and switch from the disconnect timer
	// to the heartbeat timer
	s.waiter = conn
	s.waiterCh = make(chan Frame, 1)
	s.waiterMultiple = multiple
	s.unlink = make(chan struct{})
	s.timerGen++
	s.timer.Stop()
	s.timer = time.AfterFunc(s.heartbeatDelay, s.fireHeartbeat(s.timerGen))
	go s.watch(conn, s.unlink)
	return Reply{Ready: s.waiterCh}, false, nil
}

// Received delivers client messages to the handler, in order, synchronously.
// Valid only while open. There is no rollback: if a callback closes the
// session mid-batch the remaining messages are dropped silently.
func (s *Session) Received(messages []string) error {
	s.cbMux.Lock()
	defer s.cbMux.Unlock()

	if s.State() != SessionOpen {
		return ErrSessionNotOpen
	}
	for _, msg := range messages {
		if s.State() != SessionOpen {
			break
		}
		s.handler.OnMessage(s, msg)
		messagesIn.Inc()
	}
	return nil
}

// Send queues one outbound message. A parked waiter is woken immediately
// with a data frame honoring its drain preference. Messages sent before the
// session opens are queued and delivered once a connection polls.
func (s *Session) Send(msg string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.state == SessionClosed {
		return ErrSessionNotOpen
	}
	s.queue.push(msg)
	if s.waiter != nil {
		msgs := s.queue.drain(s.waiterMultiple)
		messagesOut.Add(float64(len(msgs)))
		s.deliverLocked(Frame{Type: FrameData, Messages: msgs})
	}
	return nil
}

// Close records the close frame and moves the session to its terminal
// state. A parked waiter is woken with the frame right away; every later
// Reply replays it until the disconnect timer reaps the session.
func (s *Session) Close(status uint32, reason string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.state == SessionClosed {
		return ErrSessionNotOpen
	}
	s.state = SessionClosed
	s.closeMsg = closeFrame(status, reason)
	s.log.Debug("session closing", zap.Uint32("status", status), zap.String("reason", reason))
	if s.waiter != nil {
		s.deliverLocked(s.closeMsg)
	}
	return nil
}

// Shutdown force-terminates the session, bypassing the close handshake.
func (s *Session) Shutdown() {
	s.terminate("shutdown")
}

// deliverLocked resolves the pending rendezvous with f, unregisters the
// waiter and re-arms the disconnect timer.
func (s *Session) deliverLocked(f Frame) {
	s.waiterCh <- f
	close(s.unlink)
	s.waiter = nil
	s.waiterCh = nil
	s.unlink = nil
	s.rearmDisconnectLocked()
}

func (s *Session) rearmDisconnectLocked() {
	s.timerGen++
	s.timer.Stop()
	s.timer = time.AfterFunc(s.disconnectDelay, s.fireDisconnect(s.timerGen))
	if s.hibTimer != nil {
		s.hibTimer.Reset(s.hibernateDelay)
	}
}

func (s *Session) fireDisconnect(gen uint64) func() {
	return func() {
		s.mux.Lock()
		if gen != s.timerGen || s.waiter != nil {
			s.mux.Unlock()
			return
		}
		reason := "abandoned"
		if s.state == SessionClosed {
			reason = "closed"
		}
		s.mux.Unlock()
		s.terminate(reason)
	}
}

func (s *Session) fireHeartbeat(gen uint64) func() {
	return func() {
		s.mux.Lock()
		if gen != s.timerGen || s.waiter == nil {
			s.mux.Unlock()
			return
		}
		s.hbTriggered = true
		heartbeats.Inc()
		s.log.Debug("heartbeat")
		s.deliverLocked(Frame{Type: FrameHeartbeat})
		s.mux.Unlock()
	}
}

// watch runs only while conn is the registered waiter. Losing that specific
// connection mid-poll means in-flight data may be gone with it, so the whole
// session is torn down rather than retried.
func (s *Session) watch(conn Receiver, unlink <-chan struct{}) {
	select {
	case <-unlink:
	case <-conn.Interrupted():
		s.mux.Lock()
		if s.waiter != conn {
			s.mux.Unlock()
			return
		}
		s.waiter = nil
		s.waiterCh = nil
		s.unlink = nil
		s.mux.Unlock()
		s.log.Warn("waiter connection lost, terminating session")
		s.terminate("interrupted")
	}
}

// hibernate is a best-effort idle reclaim: drop grown buffers so the GC can
// take them. Re-armed on the next activity.
func (s *Session) hibernate() {
	s.mux.Lock()
	if s.terminated {
		s.mux.Unlock()
		return
	}
	s.queue.compact()
	s.mux.Unlock()
	s.log.Debug("session hibernating")
}

// terminate runs the teardown exactly once: terminal state, timers stopped,
// a parked waiter woken with the close frame, handler notified, Done closed.
func (s *Session) terminate(reason string) {
	s.mux.Lock()
	if s.terminated {
		s.mux.Unlock()
		return
	}
	s.terminated = true
	if s.state != SessionClosed {
		s.state = SessionClosed
		s.closeMsg = closeFrame(3000, "Go away!")
	}
	if s.waiter != nil {
		s.waiterCh <- s.closeMsg
		close(s.unlink)
		s.waiter = nil
		s.waiterCh = nil
		s.unlink = nil
	}
	s.timerGen++
	s.timer.Stop()
	if s.hibTimer != nil {
		s.hibTimer.Stop()
	}
	close(s.closeCh)
	s.mux.Unlock()

	s.cbMux.Lock()
	s.handler.OnTerminate(s)
	s.cbMux.Unlock()

	sessionsActive.Dec()
	sessionsTerminated.WithLabelValues(reason).Inc()
	s.log.Info("session terminated", zap.String("reason", reason))
}
