package sockmux

import (
	"errors"
	"sync"

	"github.com/igm/pubsub"
	"go.uber.org/zap"
)

// ErrNoSession is returned by id-addressed operations when no live session
// is registered under the id. Whether that means a 404 is the caller's call.
var ErrNoSession = errors.New("sockmux: no session for id")

// EventType tags registry lifecycle events.
type EventType int

const (
	SessionCreated EventType = iota
	SessionTerminated
)

// Event is published on the registry feed when a registered session is
// created or reaped.
type Event struct {
	Type      EventType
	SessionID string
}

// Registry maps session ids to live sessions so independent transport
// connections can attach to the same conversation. Lookup and create are
// atomic; an entry removes itself when its session terminates.
type Registry struct {
	mux      sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
	events   pubsub.Publisher
	log      *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		log:      logger,
	}
}

// Resolve returns the session registered under id, creating it on first
// use. Concurrent first polls for one id race safely: exactly one session is
// created, the rest get it back unchanged. An empty id never registers -
// the caller gets a private session no other connection can reach.
func (r *Registry) Resolve(id string, opts Options, info ConnInfo, handler Handler) *Session {
	if id == "" {
		return NewSession("", opts, info, handler)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		sess = NewSession(id, opts, info, handler)
		r.sessions[id] = sess
		r.wg.Add(1)
		go r.reap(id, sess)
		r.events.Publish(Event{Type: SessionCreated, SessionID: id})
		r.log.Debug("session registered", zap.String("session", id))
	}
	return sess
}

func (r *Registry) reap(id string, sess *Session) {
	defer r.wg.Done()
	<-sess.Done()
	r.mux.Lock()
	delete(r.sessions, id)
	r.mux.Unlock()
	r.events.Publish(Event{Type: SessionTerminated, SessionID: id})
	r.log.Debug("session unregistered", zap.String("session", id))
}

// Get looks up a registered session without creating one.
func (r *Registry) Get(id string) (*Session, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Received delivers client messages to the session registered under id.
func (r *Registry) Received(id string, messages []string) error {
	sess, err := r.Get(id)
	if err != nil {
		return err
	}
	return sess.Received(messages)
}

// Reply polls the session registered under id on behalf of conn.
func (r *Registry) Reply(id string, conn Receiver, multiple bool) (Reply, error) {
	sess, err := r.Get(id)
	if err != nil {
		return Reply{}, err
	}
	return sess.Reply(conn, multiple)
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.sessions)
}

// Events is the lifecycle feed. Subscribe with SubChannel or SubReader;
// values are Event.
func (r *Registry) Events() *pubsub.Publisher {
	return &r.events
}

// Shutdown force-terminates every registered session and blocks until the
// registry has drained.
func (r *Registry) Shutdown() {
	r.mux.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	r.mux.Unlock()
	for _, sess := range all {
		sess.Shutdown()
	}
	r.wg.Wait()
}
