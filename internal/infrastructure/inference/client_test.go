package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ocrly/backend/internal/config"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, apiURL string) config.InferenceConfig {
	t.Helper()
	return config.InferenceConfig{
		APIURL:    apiURL,
		Model:     "deepseek-ocr",
		MaxTokens: 4096,
		Timeout:   2 * time.Second,
		Staging: config.StagingConfig{
			Mode:      "local",
			Dir:       t.TempDir(),
			RemoteDir: "/workspace",
		},
	}
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page_0.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	return path
}

func newTestClient(t *testing.T, cfg config.InferenceConfig) *Client {
	t.Helper()
	stager, err := NewStager(cfg.Staging, logger.Nop())
	require.NoError(t, err)
	return NewClient(cfg, stager, logger.Nop())
}

func TestInvokeSuccess(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "extracted text"}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	client := newTestClient(t, cfg)

	res, err := client.Invoke(context.Background(), writeTestImage(t), "<image>\nFree OCR.")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", res.Text)
	assert.Equal(t, 15, res.Usage.TotalTokens)

	// The endpoint reads the image by path inside its own workspace.
	require.Len(t, captured.Messages, 1)
	require.Len(t, captured.Messages[0].Content, 2)
	assert.Equal(t, "image_url", captured.Messages[0].Content[0].Type)
	assert.Equal(t, "file:///workspace/page_0.png", captured.Messages[0].Content[0].ImageURL.URL)
	assert.Equal(t, "<image>\nFree OCR.", captured.Messages[0].Content[1].Text)
	assert.Equal(t, "deepseek-ocr", captured.Model)

	// Staging copied the image into the shared directory.
	_, err = os.Stat(filepath.Join(cfg.Staging.Dir, "page_0.png"))
	assert.NoError(t, err)
}

func TestInvokeEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, testConfig(t, srv.URL))

	_, err := client.Invoke(context.Background(), writeTestImage(t), "prompt")
	require.ErrorIs(t, err, ErrEndpoint)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestInvokeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	client := newTestClient(t, testConfig(t, srv.URL))

	_, err := client.Invoke(context.Background(), writeTestImage(t), "prompt")
	require.ErrorIs(t, err, ErrEndpoint)
}

func TestInvokeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := newTestClient(t, testConfig(t, srv.URL))

	_, err := client.Invoke(context.Background(), writeTestImage(t), "prompt")
	require.ErrorIs(t, err, ErrConnection)
}

func TestInvokeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := newTestClient(t, cfg)

	_, err := client.Invoke(context.Background(), writeTestImage(t), "prompt")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestHealthProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.HealthURL = srv.URL + "/health"
	client := newTestClient(t, cfg)

	assert.NoError(t, client.Health(context.Background()))
}

func TestCheckModelWhileEndpointDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.HealthURL = srv.URL + "/health"
	client := newTestClient(t, cfg)

	status := client.CheckModel(context.Background())
	assert.Equal(t, "loading", status.Status)
	assert.False(t, status.Ready)
}

func TestCheckModelReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/v1/models":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]string{{"id": "deepseek-ocr"}},
			})
		}
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.HealthURL = srv.URL + "/health"
	cfg.ModelsURL = srv.URL + "/v1/models"
	client := newTestClient(t, cfg)

	status := client.CheckModel(context.Background())
	assert.Equal(t, "ready", status.Status)
	assert.True(t, status.Ready)
	assert.Equal(t, "deepseek-ocr", status.Model)
}

func TestNewStagerUnknownMode(t *testing.T) {
	_, err := NewStager(config.StagingConfig{Mode: "carrier-pigeon"}, logger.Nop())
	assert.Error(t, err)
}
