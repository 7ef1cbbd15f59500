package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/core/services"
	"github.com/ocrly/backend/internal/domain"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOCRService struct {
	submitTask *domain.Task
	submitErr  error
	task       *domain.Task
	content    string
	getErr     error
}

func (s *stubOCRService) Submit(context.Context, ports.SubmitInput) (*domain.Task, error) {
	return s.submitTask, s.submitErr
}

func (s *stubOCRService) GetTask(context.Context, string) (*domain.Task, error) {
	return s.task, s.getErr
}

func (s *stubOCRService) GetResult(context.Context, string) (*domain.Task, string, error) {
	return s.task, s.content, s.getErr
}

func newTestApp(svc ports.OCRService) *fiber.App {
	app := fiber.New()
	h := NewOCRHandler(svc, logger.Nop())
	app.Post("/api/ocr", h.Submit)
	app.Get("/api/result/:id", h.Result)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestSubmitAccepted(t *testing.T) {
	app := newTestApp(&stubOCRService{
		submitTask: &domain.Task{ID: "ab12cd34", Status: domain.TaskStatusRunning},
	})

	resp := postJSON(t, app, "/api/ocr", `{"file_path":"/uploads/doc.pdf","file_type":"pdf"}`)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "ab12cd34", body["task_id"])
}

func TestSubmitValidationFailure(t *testing.T) {
	app := newTestApp(&stubOCRService{})

	resp := postJSON(t, app, "/api/ocr", `{"file_type":"docx"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "validation failed", body["error"])
}

func TestSubmitMissingInputFile(t *testing.T) {
	app := newTestApp(&stubOCRService{submitErr: services.ErrTaskInvalidInput})

	resp := postJSON(t, app, "/api/ocr", `{"file_path":"/uploads/gone.pdf","file_type":"pdf"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitQueueFull(t *testing.T) {
	app := newTestApp(&stubOCRService{submitErr: services.ErrQueueFull})

	resp := postJSON(t, app, "/api/ocr", `{"file_path":"/uploads/doc.pdf","file_type":"pdf"}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestResultNotFound(t *testing.T) {
	app := newTestApp(&stubOCRService{getErr: services.ErrTaskNotFound})

	resp, err := app.Test(mustRequest(t, http.MethodGet, "/api/result/deadbeef"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestResultStoreFailureIsNot404(t *testing.T) {
	app := newTestApp(&stubOCRService{getErr: errors.New("task: load ab12cd34: connection refused")})

	resp, err := app.Test(mustRequest(t, http.MethodGet, "/api/result/ab12cd34"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestResultFinishedInlinesContent(t *testing.T) {
	app := newTestApp(&stubOCRService{
		task: &domain.Task{
			ID:         "ab12cd34",
			Status:     domain.TaskStatusFinished,
			Progress:   100,
			OutputFile: "/results/task_ab12cd34/result.md",
		},
		content: "P1\n\n<--- Page Split --->\n\nP2",
	})

	resp, err := app.Test(mustRequest(t, http.MethodGet, "/api/result/ab12cd34"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "P1\n\n<--- Page Split --->\n\nP2", body["content"])
	assert.Equal(t, "/results/task_ab12cd34/result.md", body["output_file"])
}

func TestResultRunningReturnsSnapshot(t *testing.T) {
	app := newTestApp(&stubOCRService{
		task: &domain.Task{ID: "ab12cd34", Status: domain.TaskStatusRunning, Progress: 43},
	})

	resp, err := app.Test(mustRequest(t, http.MethodGet, "/api/result/ab12cd34"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(43), body["progress"])
}

func mustRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)
	return req
}
