package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/ocrly/backend/internal/config"
	"github.com/ocrly/backend/internal/domain"
	"github.com/ocrly/backend/internal/infrastructure/logger"
)

var (
	ErrConnection = errors.New("inference: endpoint unreachable")
	ErrTimeout    = errors.New("inference: request timed out")
	ErrEndpoint   = errors.New("inference: endpoint returned an error")
)

const probeTimeout = 5 * time.Second

// Client invokes an OpenAI-compatible vLLM chat-completions endpoint that
// reads images from a workspace path rather than inline payloads. Retry
// policy, if any, belongs to the caller.
type Client struct {
	cfg        config.InferenceConfig
	stager     Stager
	httpClient *http.Client
	log        *logger.Logger
}

func NewClient(cfg config.InferenceConfig, stager Stager, log *logger.Logger) *Client {
	return &Client{
		cfg:        cfg,
		stager:     stager,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage domain.Usage `json:"usage"`
}

// Invoke stages the image into the endpoint's workspace and runs one OCR
// inference over it. Blocks up to the configured timeout.
func (c *Client) Invoke(ctx context.Context, imagePath, prompt string) (*domain.InferenceResult, error) {
	staged, err := c.stager.Stage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("inference: stage image: %w", err)
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: "file://" + path.Join(c.cfg.Staging.RemoteDir, staged)}},
				{Type: "text", Text: prompt},
			},
		}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: 0,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("inference: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEndpoint, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrEndpoint, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: response contains no choices", ErrEndpoint)
	}

	c.log.Infow("inference_ok",
		"image", staged,
		"latency_ms", time.Since(start).Milliseconds(),
		"total_tokens", parsed.Usage.TotalTokens,
	)

	return &domain.InferenceResult{
		Text:  parsed.Choices[0].Message.Content,
		Usage: parsed.Usage,
	}, nil
}

func (c *Client) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// Health probes the endpoint's liveness URL.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrEndpoint, resp.StatusCode)
	}
	return nil
}

// ModelStatus describes whether the served model is ready for inference.
type ModelStatus struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// CheckModel reports the load state of the model behind the endpoint. A
// refused or slow connection is reported as still loading, not as an error,
// since vLLM takes a while to come up.
func (c *Client) CheckModel(ctx context.Context) *ModelStatus {
	if err := c.Health(ctx); err != nil {
		if errors.Is(err, ErrConnection) || errors.Is(err, ErrTimeout) {
			return &ModelStatus{Status: "loading", Ready: false, Message: "model is still loading"}
		}
		return &ModelStatus{Status: "error", Ready: false, Message: err.Error()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.cfg.ModelsURL, nil)
	if err != nil {
		return &ModelStatus{Status: "error", Ready: false, Message: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ModelStatus{Status: "loading", Ready: false, Message: "model is still loading"}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var models modelList
		if err := json.NewDecoder(resp.Body).Decode(&models); err == nil && len(models.Data) > 0 {
			return &ModelStatus{Status: "ready", Ready: true, Message: "model loaded", Model: models.Data[0].ID}
		}
	}

	return &ModelStatus{Status: "loading", Ready: false, Message: "model is still loading"}
}
