package domain

import "time"

// ==================== ENUMS ====================

type TaskStatus string

const (
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusFinished TaskStatus = "finished"
	TaskStatusError    TaskStatus = "error"
)

// Terminal reports whether the status permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusFinished || s == TaskStatusError
}

type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
)

// ==================== ENTITIES ====================

// Task is the full lifecycle record of one OCR job. A single pipeline
// worker is the only writer for a given task id; everyone else reads
// snapshots from the store.
type Task struct {
	ID        string    `gorm:"primaryKey;size:16" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status     TaskStatus `gorm:"size:20;not null;default:'running'" json:"status"`
	Progress   int        `gorm:"not null;default:0" json:"progress"`
	SourcePath string     `gorm:"size:512" json:"source_path"`
	FileType   FileType   `gorm:"size:10" json:"file_type"`
	ResultDir  string     `gorm:"size:512" json:"result_dir"`
	OutputFile string     `gorm:"size:512" json:"output_file,omitempty"`
	TotalPages int        `json:"total_pages,omitempty"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
}

// PageResult holds the extracted text of one page of a multi-page job.
// It lives only inside the pipeline invocation that produced it.
type PageResult struct {
	Page int // 1-based
	Text string
}

// Usage is the token accounting reported by the inference endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InferenceResult is the outcome of one inference call.
type InferenceResult struct {
	Text  string
	Usage Usage
}

// ==================== LIVE CHANNEL EVENTS ====================

type ProgressEvent struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
}

type StatusEvent struct {
	TaskID  string     `json:"task_id"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}
