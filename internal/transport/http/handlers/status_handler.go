package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ocrly/backend/internal/infrastructure/inference"
	"github.com/ocrly/backend/internal/infrastructure/logger"
)

type StatusHandler struct {
	client *inference.Client
	logger *logger.Logger
}

func NewStatusHandler(client *inference.Client, logger *logger.Logger) *StatusHandler {
	return &StatusHandler{client: client, logger: logger}
}

// Health reports backend liveness plus the reachability of the inference
// endpoint. The core never depends on these probes.
func (h *StatusHandler) Health(c *fiber.Ctx) error {
	inferenceStatus := "running"
	if err := h.client.Health(c.Context()); err != nil {
		inferenceStatus = "error"
	}

	return c.JSON(fiber.Map{
		"backend":   "running",
		"inference": inferenceStatus,
	})
}

// ModelStatus reports whether the model behind the endpoint is loaded.
func (h *StatusHandler) ModelStatus(c *fiber.Ctx) error {
	return c.JSON(h.client.CheckModel(c.Context()))
}
