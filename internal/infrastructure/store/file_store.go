package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/domain"
	"github.com/ocrly/backend/internal/infrastructure/logger"
)

// FileStore persists one JSON snapshot per task under dir, surviving
// process restarts. Writes replace the whole record via rename, so a reader
// never sees a half-written snapshot. Concurrent writers for the same id
// are not serialized; the pipeline's single-writer convention covers that.
type FileStore struct {
	dir string
	log *logger.Logger
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create state dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, "task_"+id+".json")
}

func (s *FileStore) Put(ctx context.Context, task *domain.Task) error {
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal task %s: %w", task.ID, err)
	}

	tmp := s.path(task.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write task %s: %w", task.ID, err)
	}
	if err := os.Rename(tmp, s.path(task.ID)); err != nil {
		return fmt.Errorf("store: replace task %s: %w", task.ID, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("store: read task %s: %w", id, err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("store: decode task %s: %w", id, err)
	}
	return &task, nil
}
