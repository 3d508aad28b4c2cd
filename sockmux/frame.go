package sockmux

// FrameType discriminates the frames a poll can resolve with.
type FrameType int

const (
	// FrameOpen is the empty frame answering the very first poll of a session.
	FrameOpen FrameType = iota
	// FrameData carries one or more queued outbound messages, oldest first.
	FrameData
	// FrameHeartbeat is an empty keep-alive frame.
	FrameHeartbeat
	// FrameClose carries the close status and reason recorded by Close.
	FrameClose
)

func (t FrameType) String() string {
	switch t {
	case FrameOpen:
		return "open"
	case FrameData:
		return "data"
	case FrameHeartbeat:
		return "heartbeat"
	case FrameClose:
		return "close"
	}
	return "unknown"
}

// Frame is a single outbound unit handed to a transport connection. Encoding
// it for the wire is the transport's job.
type Frame struct {
	Type     FrameType
	Messages []string // set for FrameData only
	Status   uint32   // set for FrameClose only
	Reason   string   // set for FrameClose only
}

func closeFrame(status uint32, reason string) Frame {
	return Frame{Type: FrameClose, Status: status, Reason: reason}
}

// Reply is the outcome of a poll. Either Frame is valid immediately
// (Ready == nil), or the caller must wait: the session resolves Ready with
// exactly one frame - data, heartbeat or close - within the heartbeat delay.
type Reply struct {
	Frame Frame
	Ready <-chan Frame
}

// Wait blocks until the reply's frame is available. Transports that need to
// select against their own connection state should use Ready directly.
func (r Reply) Wait() Frame {
	if r.Ready == nil {
		return r.Frame
	}
	return <-r.Ready
}

// Receiver is the rendezvous contract a transport connection implements to
// poll a session. Interrupted reports abnormal loss of the connection; it is
// watched only while this connection is the session's registered waiter, and
// firing it then tears the session down.
type Receiver interface {
	Interrupted() <-chan struct{}
}
