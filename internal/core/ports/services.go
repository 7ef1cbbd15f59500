package ports

import (
	"context"

	"github.com/ocrly/backend/internal/domain"
)

// OCRService drives the job pipeline: one submission becomes one task that
// runs to a terminal state in the background.
type OCRService interface {
	Submit(ctx context.Context, input SubmitInput) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	// GetResult returns the current snapshot plus, for finished tasks, the
	// content of the result artifact. Calling it repeatedly for the same
	// finished task yields identical content.
	GetResult(ctx context.Context, id string) (*domain.Task, string, error)
}

type SubmitInput struct {
	FilePath string
	Prompt   string
	FileType domain.FileType
}

// ProgressConn is the live-channel connection as the registry sees it. The
// registry only pushes through it; the transport layer owns its lifecycle.
type ProgressConn interface {
	WriteJSON(v interface{}) error
}

// ProgressPublisher maps a task id to at most one live subscriber and
// delivers events best-effort.
type ProgressPublisher interface {
	Attach(taskID string, conn ProgressConn)
	Detach(taskID string, conn ProgressConn)
	// Publish reports whether the event reached a subscriber. A false
	// return is not an error: no subscriber, or a dead one that has now
	// been detached.
	Publish(taskID string, event interface{}) bool
}
