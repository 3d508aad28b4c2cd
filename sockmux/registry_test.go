package sockmux

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	first := reg.Resolve("abc", testOptions, ConnInfo{}, nil)
	second := reg.Resolve("abc", testOptions, ConnInfo{}, nil)
	if first != second {
		t.Fatal("second resolve must return the existing session unchanged")
	}
	assert.Equal(t, 1, reg.Len())
	first.Shutdown()
}

func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	reg := NewRegistry(nil)
	const n = 32
	results := make(chan *Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- reg.Resolve("race", testOptions, ConnInfo{}, nil)
		}()
	}
	wg.Wait()
	close(results)

	first := <-results
	for sess := range results {
		require.Same(t, first, sess)
	}
	assert.Equal(t, 1, reg.Len())
	first.Shutdown()
}

func TestRegistry_EmptyIDNeverRegisters(t *testing.T) {
	reg := NewRegistry(nil)
	a := reg.Resolve("", testOptions, ConnInfo{}, nil)
	b := reg.Resolve("", testOptions, ConnInfo{}, nil)
	require.NotSame(t, a, b)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 0, reg.Len())
	a.Shutdown()
	b.Shutdown()
}

func TestRegistry_NoSession(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Get("missing")
	assert.Equal(t, ErrNoSession, err)
	assert.Equal(t, ErrNoSession, reg.Received("missing", []string{"x"}))
	_, err = reg.Reply("missing", newTestConn(), true)
	assert.Equal(t, ErrNoSession, err)
}

func TestRegistry_ByIDOperations(t *testing.T) {
	reg := NewRegistry(nil)
	h := newRecordingHandler()
	sess := reg.Resolve("byid", testOptions, ConnInfo{}, h)

	rep, err := reg.Reply("byid", newTestConn(), true)
	require.NoError(t, err)
	assert.Equal(t, FrameOpen, rep.Frame.Type)

	require.NoError(t, reg.Received("byid", []string{"hi"}))
	assert.Equal(t, []string{"hi"}, h.messages())
	sess.Shutdown()
}

func TestRegistry_ReapsTerminatedSessions(t *testing.T) {
	opts := testOptions
	opts.DisconnectDelay = 40 * time.Millisecond
	reg := NewRegistry(nil)
	sess := reg.Resolve("doomed", opts, ConnInfo{}, nil)
	sess.Shutdown()

	require.Eventually(t, func() bool { return reg.Len() == 0 },
		time.Second, 10*time.Millisecond, "terminated session not removed")

	// the id is free again, a new poll gets a fresh session
	fresh := reg.Resolve("doomed", testOptions, ConnInfo{}, nil)
	require.NotSame(t, sess, fresh)
	fresh.Shutdown()
}

func TestRegistry_Events(t *testing.T) {
	reg := NewRegistry(nil)
	feed, _ := reg.Events().SubChannel(nil)

	sess := reg.Resolve("watched", testOptions, ConnInfo{}, nil)
	sess.Shutdown()

	want := []Event{
		{Type: SessionCreated, SessionID: "watched"},
		{Type: SessionTerminated, SessionID: "watched"},
	}
	for _, expected := range want {
		select {
		case got := <-feed:
			assert.Equal(t, expected, got)
		case <-time.After(time.Second):
			t.Fatalf("no %v event published", expected.Type)
		}
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	reg := NewRegistry(nil)
	handlers := make([]*recordingHandler, 3)
	for i, id := range []string{"one", "two", "three"} {
		handlers[i] = newRecordingHandler()
		reg.Resolve(id, testOptions, ConnInfo{}, handlers[i])
	}
	require.Equal(t, 3, reg.Len())

	reg.Shutdown()
	assert.Equal(t, 0, reg.Len())
	for _, h := range handlers {
		select {
		case <-h.terminated:
		default:
			t.Fatal("handler not notified during shutdown")
		}
	}
}
