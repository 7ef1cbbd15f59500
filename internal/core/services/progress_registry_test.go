package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/ocrly/backend/internal/domain"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

type stubConn struct {
	mu     sync.Mutex
	writes int
	err    error
}

func (c *stubConn) WriteJSON(interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return c.err
}

func (c *stubConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func TestPublishWithoutSubscriber(t *testing.T) {
	r := NewProgressRegistry(logger.Nop())

	assert.False(t, r.Publish("abc", domain.ProgressEvent{TaskID: "abc", Progress: 50}))
}

func TestLastAttachedSubscriberWins(t *testing.T) {
	r := NewProgressRegistry(logger.Nop())
	first := &stubConn{}
	second := &stubConn{}

	r.Attach("abc", first)
	r.Attach("abc", second)

	assert.True(t, r.Publish("abc", domain.ProgressEvent{TaskID: "abc", Progress: 10}))
	assert.Equal(t, 0, first.count())
	assert.Equal(t, 1, second.count())
}

func TestDetachIsIdentityAware(t *testing.T) {
	r := NewProgressRegistry(logger.Nop())
	old := &stubConn{}
	current := &stubConn{}

	r.Attach("abc", old)
	r.Attach("abc", current)

	// The replaced subscriber disconnecting must not evict its successor.
	r.Detach("abc", old)
	assert.True(t, r.Publish("abc", domain.ProgressEvent{TaskID: "abc", Progress: 10}))
	assert.Equal(t, 1, current.count())

	r.Detach("abc", current)
	assert.False(t, r.Publish("abc", domain.ProgressEvent{TaskID: "abc", Progress: 20}))
}

func TestDetachNilRemovesUnconditionally(t *testing.T) {
	r := NewProgressRegistry(logger.Nop())
	r.Attach("abc", &stubConn{})

	r.Detach("abc", nil)
	assert.False(t, r.Publish("abc", domain.ProgressEvent{TaskID: "abc", Progress: 10}))

	// Detaching an unknown id is a no-op.
	r.Detach("missing", nil)
}

func TestFailedWriteDetachesDeadConnection(t *testing.T) {
	r := NewProgressRegistry(logger.Nop())
	dead := &stubConn{err: errors.New("broken pipe")}
	r.Attach("abc", dead)

	assert.False(t, r.Publish("abc", domain.ProgressEvent{TaskID: "abc", Progress: 10}))
	assert.False(t, r.Publish("abc", domain.ProgressEvent{TaskID: "abc", Progress: 20}))

	// The second publish never reached the dead connection.
	assert.Equal(t, 1, dead.count())
}
