package ports

import (
	"context"
	"errors"

	"github.com/ocrly/backend/internal/domain"
)

// ErrNotFound is returned by every TaskStore implementation for an unknown
// id, so callers can tell a missing task from a store failure.
var ErrNotFound = errors.New("task store: task not found")

// TaskStore is durable key-value persistence of task snapshots. Put fully
// replaces the prior record; there is no partial-field update. The store
// does not serialize concurrent writers for the same id — the pipeline's
// single-writer-per-id convention does.
type TaskStore interface {
	Put(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (*domain.Task, error)
}

// Rasterizer turns a multi-page document into an ordered sequence of page
// image files under outDir, numbered from 0.
type Rasterizer interface {
	Pages(docPath, outDir string) ([]string, error)
}

// InferenceClient invokes the external OCR endpoint for a single image.
// Blocking, bounded by the client's configured timeout, never retried here.
type InferenceClient interface {
	Invoke(ctx context.Context, imagePath, prompt string) (*domain.InferenceResult, error)
}
