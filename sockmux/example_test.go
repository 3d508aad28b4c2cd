package sockmux_test

import (
	"fmt"

	"github.com/rounce/sockmux/sockmux"
)

// pollConn is the minimal Receiver a transport needs: a channel that closes
// if the underlying connection drops. This one never does.
type pollConn struct{}

func (pollConn) Interrupted() <-chan struct{} { return nil }

func Example() {
	registry := sockmux.NewRegistry(nil)
	echo := sockmux.HandlerFunc(func(s *sockmux.Session, msg string) {
		_ = s.Send(msg)
	})

	// two transport connections, one logical session
	sess := registry.Resolve("watson", sockmux.DefaultOptions, sockmux.ConnInfo{}, echo)

	rep, _ := sess.Reply(pollConn{}, true)
	fmt.Println(rep.Frame.Type)

	_ = registry.Received("watson", []string{"hello"})
	rep, _ = registry.Reply("watson", pollConn{}, true)
	fmt.Println(rep.Frame.Type, rep.Frame.Messages)

	_ = sess.Close(3000, "Go away!")
	rep, _ = sess.Reply(pollConn{}, true)
	fmt.Println(rep.Frame.Type, rep.Frame.Status, rep.Frame.Reason)

	// Output:
	// open
	// data [hello]
	// close 3000 Go away!
}
