package sockmux

// Handler receives session lifecycle and message events. All three methods
// are invoked synchronously inside the session, one at a time, in event
// order. They may call back into the session (Send, Close, Info) but must
// not block indefinitely. Panics are not recovered here.
type Handler interface {
	// OnInit runs once, when the first poll opens the session.
	OnInit(s *Session)
	// OnMessage runs once per inbound message, in arrival order.
	OnMessage(s *Session, msg string)
	// OnTerminate runs exactly once, just before the session disappears.
	OnTerminate(s *Session)
}

// HandlerFunc adapts a plain message function to the Handler interface with
// no-op lifecycle hooks.
type HandlerFunc func(s *Session, msg string)

func (f HandlerFunc) OnInit(*Session)                {}
func (f HandlerFunc) OnMessage(s *Session, m string) { f(s, m) }
func (f HandlerFunc) OnTerminate(*Session)           {}
