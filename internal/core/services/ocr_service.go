package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/domain"
	"github.com/ocrly/backend/internal/infrastructure/logger"
)

const (
	// pageDivider separates page texts in the merged artifact of a
	// multi-page job. Clients split on it, so it is part of the contract.
	pageDivider = "\n\n<--- Page Split --->\n\n"

	defaultPrompt = "<image>\nFree OCR."
)

type ocrService struct {
	store      ports.TaskStore
	raster     ports.Rasterizer
	inference  ports.InferenceClient
	publisher  ports.ProgressPublisher
	pool       *WorkerPool
	logger     *logger.Logger
	resultsDir string
	prompt     string
}

type OCRServiceConfig struct {
	Store         ports.TaskStore
	Rasterizer    ports.Rasterizer
	Inference     ports.InferenceClient
	Publisher     ports.ProgressPublisher
	Pool          *WorkerPool
	Logger        *logger.Logger
	ResultsDir    string
	DefaultPrompt string
}

func NewOCRService(cfg OCRServiceConfig) ports.OCRService {
	prompt := cfg.DefaultPrompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	return &ocrService{
		store:      cfg.Store,
		raster:     cfg.Rasterizer,
		inference:  cfg.Inference,
		publisher:  cfg.Publisher,
		pool:       cfg.Pool,
		logger:     cfg.Logger,
		resultsDir: cfg.ResultsDir,
		prompt:     prompt,
	}
}

// Submit validates the input, creates the task in state running/0 and hands
// it to the worker pool. The returned snapshot is safe for the caller; the
// pipeline goroutine is the only writer of the live record from here on.
func (s *ocrService) Submit(ctx context.Context, input ports.SubmitInput) (*domain.Task, error) {
	if input.FilePath == "" {
		return nil, ErrTaskInvalidInput
	}
	if _, err := os.Stat(input.FilePath); err != nil {
		return nil, ErrTaskInvalidInput
	}

	prompt := input.Prompt
	if prompt == "" {
		prompt = s.prompt
	}
	fileType := input.FileType
	if fileType != domain.FileTypePDF {
		fileType = domain.FileTypeImage
	}

	id := uuid.New().String()[:8]
	resultDir := filepath.Join(s.resultsDir, "task_"+id)

	now := time.Now()
	task := &domain.Task{
		ID:         id,
		Status:     domain.TaskStatusRunning,
		Progress:   0,
		SourcePath: input.FilePath,
		FileType:   fileType,
		ResultDir:  resultDir,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Reserve a queue slot before touching disk or the store so a rejected
	// submission leaves nothing behind. The worker waits on the gate until
	// the initial state write has succeeded.
	gate := make(chan bool, 1)
	err := s.pool.Dispatch(func() {
		if !<-gate {
			return
		}
		s.process(task, prompt)
	})
	if err != nil {
		s.logger.Warnw("task_rejected_queue_full", "file", input.FilePath)
		return nil, ErrQueueFull
	}

	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		gate <- false
		return nil, fmt.Errorf("task: create result dir: %w", err)
	}

	if err := s.store.Put(ctx, task); err != nil {
		gate <- false
		return nil, fmt.Errorf("task: persist initial state: %w", err)
	}

	// Snapshot before the gate opens: once the worker is through it, the
	// pipeline is the only goroutine allowed to touch the live record.
	snapshot := *task
	gate <- true

	s.logger.Infow("task_submitted", "task_id", id, "file_type", fileType, "file", input.FilePath)

	return &snapshot, nil
}

func (s *ocrService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Errorw("task_load_failed", "task_id", id, "error", err)
		return nil, fmt.Errorf("task: load %s: %w", id, err)
	}
	return task, nil
}

func (s *ocrService) GetResult(ctx context.Context, id string) (*domain.Task, string, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if task.Status == domain.TaskStatusFinished && task.OutputFile != "" {
		content, err := os.ReadFile(task.OutputFile)
		if err != nil {
			s.logger.Warnw("result_artifact_unreadable", "task_id", id, "path", task.OutputFile, "error", err)
			return task, "", nil
		}
		return task, string(content), nil
	}

	return task, "", nil
}

// process drives one task to a terminal state. Runs on a pool worker;
// single writer for its task id.
func (s *ocrService) process(task *domain.Task, prompt string) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("pipeline_panic", "task_id", task.ID, "panic", r)
			s.fail(ctx, task, fmt.Sprintf("pipeline panic: %v", r))
		}
	}()

	s.logger.Infow("pipeline_start", "task_id", task.ID, "file_type", task.FileType)

	if task.FileType == domain.FileTypePDF {
		s.processDocument(ctx, task, prompt)
	} else {
		s.processImage(ctx, task, prompt)
	}
}

func (s *ocrService) processImage(ctx context.Context, task *domain.Task, prompt string) {
	s.setProgress(ctx, task, 20)

	res, err := s.inference.Invoke(ctx, task.SourcePath, prompt)
	if err != nil {
		s.fail(ctx, task, err.Error())
		return
	}

	s.setProgress(ctx, task, 80)

	outputFile := filepath.Join(task.ResultDir, "result.txt")
	if err := os.WriteFile(outputFile, []byte(res.Text), 0o644); err != nil {
		s.fail(ctx, task, fmt.Sprintf("write result: %v", err))
		return
	}

	task.OutputFile = outputFile
	s.finish(ctx, task)
}

func (s *ocrService) processDocument(ctx context.Context, task *domain.Task, prompt string) {
	s.setProgress(ctx, task, 10)

	imagesDir := filepath.Join(task.ResultDir, "images")
	pages, err := s.raster.Pages(task.SourcePath, imagesDir)
	if err != nil {
		s.fail(ctx, task, err.Error())
		return
	}
	if len(pages) == 0 {
		s.fail(ctx, task, ErrDocumentEmpty.Error())
		return
	}

	total := len(pages)
	task.TotalPages = total

	results := make([]domain.PageResult, 0, total)
	for i, pagePath := range pages {
		s.setProgress(ctx, task, 20+(i*70)/total)

		res, err := s.inference.Invoke(ctx, pagePath, prompt)
		if err != nil {
			s.fail(ctx, task, fmt.Sprintf("page %d: %v", i+1, err))
			return
		}
		results = append(results, domain.PageResult{Page: i + 1, Text: res.Text})
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}

	outputFile := filepath.Join(task.ResultDir, "result.md")
	if err := os.WriteFile(outputFile, []byte(strings.Join(texts, pageDivider)), 0o644); err != nil {
		s.fail(ctx, task, fmt.Sprintf("write result: %v", err))
		return
	}

	task.OutputFile = outputFile
	s.finish(ctx, task)
}

// setProgress persists the new progress, then pushes it best-effort.
// Persistence is authoritative; a dropped push is only logged. Progress
// never moves backwards.
func (s *ocrService) setProgress(ctx context.Context, task *domain.Task, progress int) {
	if progress < task.Progress {
		return
	}
	task.Progress = progress
	task.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, task); err != nil {
		s.logger.Errorw("task_state_write_failed", "task_id", task.ID, "error", err)
	}
	if !s.publisher.Publish(task.ID, domain.ProgressEvent{TaskID: task.ID, Progress: progress}) {
		s.logger.Debugw("progress_push_dropped", "task_id", task.ID, "progress", progress)
	}
}

func (s *ocrService) finish(ctx context.Context, task *domain.Task) {
	task.Status = domain.TaskStatusFinished
	task.Progress = 100
	task.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, task); err != nil {
		s.logger.Errorw("task_state_write_failed", "task_id", task.ID, "error", err)
	}
	s.publisher.Publish(task.ID, domain.ProgressEvent{TaskID: task.ID, Progress: 100})
	s.publisher.Publish(task.ID, domain.StatusEvent{TaskID: task.ID, Status: domain.TaskStatusFinished})

	s.logger.Infow("pipeline_finished", "task_id", task.ID, "pages", task.TotalPages, "output", task.OutputFile)
}

func (s *ocrService) fail(ctx context.Context, task *domain.Task, message string) {
	if task.Status.Terminal() {
		return
	}
	task.Status = domain.TaskStatusError
	task.Error = message
	task.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, task); err != nil {
		s.logger.Errorw("task_state_write_failed", "task_id", task.ID, "error", err)
	}
	s.publisher.Publish(task.ID, domain.StatusEvent{TaskID: task.ID, Status: domain.TaskStatusError, Message: message})

	s.logger.Errorw("pipeline_failed", "task_id", task.ID, "error", message)
}
