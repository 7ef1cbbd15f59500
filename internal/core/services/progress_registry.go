package services

import (
	"sync"

	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/infrastructure/logger"
)

// ProgressRegistry maps a task id to at most one live subscriber. It holds
// a back-reference only: the transport layer owns the connection and is
// responsible for closing it. Entries live for the duration of the process;
// clients re-attach after a reconnect and poll the store for anything they
// missed while detached.
type ProgressRegistry struct {
	mu    sync.RWMutex
	conns map[string]ports.ProgressConn
	log   *logger.Logger
}

func NewProgressRegistry(log *logger.Logger) *ProgressRegistry {
	return &ProgressRegistry{
		conns: make(map[string]ports.ProgressConn),
		log:   log,
	}
}

// Attach registers conn as the subscriber for taskID. Last registered wins.
func (r *ProgressRegistry) Attach(taskID string, conn ports.ProgressConn) {
	r.mu.Lock()
	_, replaced := r.conns[taskID]
	r.conns[taskID] = conn
	r.mu.Unlock()

	r.log.Infow("subscriber_attached", "task_id", taskID, "replaced", replaced)
}

// Detach removes the mapping for taskID if it still points at conn, so a
// disconnecting old subscriber cannot evict the one that replaced it. A nil
// conn removes unconditionally. Idempotent.
func (r *ProgressRegistry) Detach(taskID string, conn ports.ProgressConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[taskID]
	if !ok {
		return
	}
	if conn == nil || current == conn {
		delete(r.conns, taskID)
	}
}

// Publish delivers event to the current subscriber, if any. A failed write
// detaches the dead connection and reports false; it is never an error to
// the publisher.
func (r *ProgressRegistry) Publish(taskID string, event interface{}) bool {
	r.mu.RLock()
	conn := r.conns[taskID]
	r.mu.RUnlock()

	if conn == nil {
		return false
	}

	if err := conn.WriteJSON(event); err != nil {
		r.log.Debugw("subscriber_push_failed", "task_id", taskID, "error", err)
		r.Detach(taskID, conn)
		return false
	}
	return true
}
