package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/infrastructure/logger"
)

type ProgressHandler struct {
	registry ports.ProgressPublisher
	logger   *logger.Logger
}

func NewProgressHandler(registry ports.ProgressPublisher, logger *logger.Logger) *ProgressHandler {
	return &ProgressHandler{registry: registry, logger: logger}
}

// Handle attaches the connection as the task's live subscriber and keeps it
// open until the client goes away. The subscriber never sends; the read
// loop only exists to detect the disconnect.
func (h *ProgressHandler) Handle(c *websocket.Conn) {
	taskID := c.Params("id")
	if taskID == "" {
		c.Close()
		return
	}

	h.registry.Attach(taskID, c)
	h.logger.Infow("ws_connected", "task_id", taskID)

	defer func() {
		h.registry.Detach(taskID, c)
		h.logger.Infow("ws_disconnected", "task_id", taskID)
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
