package db

import (
	"context"
	"errors"

	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/domain"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type taskRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepository(db *gorm.DB, log *logger.Logger) ports.TaskStore {
	return &taskRepository{db: db, log: log}
}

// Put saves the full snapshot, replacing any prior record for the id.
func (r *taskRepository) Put(ctx context.Context, task *domain.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		r.log.Errorw("task_repo_put_failed", "id", task.ID, "error", err)
		return err
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		r.log.Errorw("task_repo_get_failed", "id", id, "error", err)
		return nil, err
	}
	return &task, nil
}
