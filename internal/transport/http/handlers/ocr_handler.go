package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/core/services"
	"github.com/ocrly/backend/internal/domain"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"github.com/ocrly/backend/internal/transport/http/dto"
)

type OCRHandler struct {
	service ports.OCRService
	logger  *logger.Logger
}

func NewOCRHandler(service ports.OCRService, logger *logger.Logger) *OCRHandler {
	return &OCRHandler{service: service, logger: logger}
}

// Submit creates a task and dispatches it, returning immediately with the
// task id. Progress is observable over /ws/:id or by polling /api/result.
func (h *OCRHandler) Submit(c *fiber.Ctx) error {
	var req dto.OCRRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("ocr_submit_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.logger.Warnw("ocr_submit_validation_failed", "details", errs)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	task, err := h.service.Submit(c.Context(), ports.SubmitInput{
		FilePath: req.FilePath,
		Prompt:   req.Prompt,
		FileType: req.GetFileType(),
	})
	if err != nil {
		if errors.Is(err, services.ErrTaskInvalidInput) {
			h.logger.Warnw("ocr_submit_bad_input", "file", req.FilePath)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		if errors.Is(err, services.ErrQueueFull) {
			h.logger.Warnw("ocr_submit_rejected", "file", req.FilePath)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		h.logger.Errorw("ocr_submit_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	h.logger.Infow("ocr_submit_accepted", "task_id", task.ID)
	return c.Status(fiber.StatusAccepted).JSON(dto.SubmitResponse{
		Status: "running",
		TaskID: task.ID,
	})
}

// Result returns the current task snapshot; for finished tasks the artifact
// content is inlined. Reads are idempotent.
func (h *OCRHandler) Result(c *fiber.Ctx) error {
	taskID := c.Params("id")
	if taskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "task id is required",
		})
	}

	task, content, err := h.service.GetResult(c.Context(), taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			h.logger.Warnw("result_not_found", "task_id", taskID)
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "task not found",
			})
		}
		h.logger.Errorw("result_load_failed", "task_id", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to load task",
		})
	}

	if task.Status == domain.TaskStatusFinished && task.OutputFile != "" {
		return c.JSON(dto.ResultResponse{
			Status:     "success",
			TaskID:     task.ID,
			Content:    content,
			OutputFile: task.OutputFile,
		})
	}

	return c.JSON(task)
}
