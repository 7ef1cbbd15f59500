package handlers

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"github.com/ocrly/backend/internal/transport/http/dto"
)

type UploadHandler struct {
	uploadDir string
	logger    *logger.Logger
}

func NewUploadHandler(uploadDir string, logger *logger.Logger) *UploadHandler {
	return &UploadHandler{uploadDir: uploadDir, logger: logger}
}

// Upload stores the file under a generated unique name and reports its
// detected type so the client can submit it for OCR.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Warnw("upload_missing_file", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "file is required",
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	uniqueName := uuid.New().String()[:8] + ext
	filePath := filepath.Join(h.uploadDir, uniqueName)

	if err := c.SaveFile(fileHeader, filePath); err != nil {
		h.logger.Errorw("upload_save_failed", "filename", fileHeader.Filename, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to store file",
		})
	}

	fileType := "image"
	if ext == ".pdf" {
		fileType = "pdf"
	}

	h.logger.Infow("upload_success", "filename", fileHeader.Filename, "path", filePath, "file_type", fileType)
	return c.JSON(dto.UploadResponse{
		Status:   "success",
		FilePath: filePath,
		FileType: fileType,
		Filename: fileHeader.Filename,
	})
}
