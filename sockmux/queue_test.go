package sockmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutboundQueue_DrainOne(t *testing.T) {
	q := newOutboundQueue()
	q.push("a")
	q.push("b")

	assert.Equal(t, []string{"a"}, q.drain(false))
	assert.Equal(t, []string{"b"}, q.drain(false))
	assert.Nil(t, q.drain(false))
}

func TestOutboundQueue_DrainAll(t *testing.T) {
	q := newOutboundQueue()
	for _, msg := range []string{"a", "b", "c"} {
		q.push(msg)
	}
	assert.Equal(t, 3, q.len())
	assert.Equal(t, []string{"a", "b", "c"}, q.drain(true))
	assert.Equal(t, 0, q.len())
	assert.Nil(t, q.drain(true))
}

func TestOutboundQueue_CompactKeepsPending(t *testing.T) {
	q := newOutboundQueue()
	q.push("keep me")
	q.compact()
	assert.Equal(t, []string{"keep me"}, q.drain(true))

	// once empty the backing storage is replaced and order survives reuse
	q.compact()
	q.push("after")
	assert.Equal(t, []string{"after"}, q.drain(true))
}
