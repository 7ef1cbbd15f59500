package dto

import (
	"github.com/ocrly/backend/internal/domain"
)

type OCRRequest struct {
	FilePath string `json:"file_path"`
	Prompt   string `json:"prompt,omitempty"`
	FileType string `json:"file_type"`
}

func (r *OCRRequest) Validate() []string {
	var errors []string

	if r.FilePath == "" {
		errors = append(errors, "file_path is required")
	}

	if r.FileType != "" && r.FileType != "pdf" && r.FileType != "image" {
		errors = append(errors, "file_type must be one of: pdf, image")
	}

	return errors
}

func (r *OCRRequest) GetFileType() domain.FileType {
	if r.FileType == "pdf" {
		return domain.FileTypePDF
	}
	return domain.FileTypeImage
}

type SubmitResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

type UploadResponse struct {
	Status   string `json:"status"`
	FilePath string `json:"file_path"`
	FileType string `json:"file_type"`
	Filename string `json:"filename"`
}

type ResultResponse struct {
	Status     string `json:"status"`
	TaskID     string `json:"task_id"`
	Content    string `json:"content"`
	OutputFile string `json:"output_file"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
