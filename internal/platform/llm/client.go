package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/stackmemory-backend/internal/observability"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel   = "qwen/qwen3-coder:free"
	DefaultTimeout = 120 * time.Second
)

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = errors.New("llm: OPENROUTER_API_KEY is not configured")

// HTTPError is a non-2xx answer from the provider.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm: provider returned %d", e.StatusCode)
	}
	return fmt.Sprintf("llm: provider returned %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Referer string
	Title   string
}

type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// Timeout overrides the client default for this call when > 0.
	Timeout time.Duration
}

// Client sends chat completions to an OpenAI-compatible endpoint.
type Client interface {
	// Chat returns the assistant message content. op labels logs and metrics.
	Chat(ctx context.Context, op string, req ChatRequest) (string, error)
	Model() string
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config, baseLog *logger.Logger) Client {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Title == "" {
		cfg.Title = "StackMemory"
	}
	return &client{
		log:        baseLog.With("client", "LLM"),
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

func (c *client) Model() string { return c.cfg.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Text string `json:"text"`
}

type providerError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func (c *client) Chat(ctx context.Context, op string, req ChatRequest) (string, error) {
	start := time.Now()
	content, status, err := c.chat(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.RecordLLMCall(op, outcome)

	fields := []interface{}{"op", op, "model", c.cfg.Model, "duration_ms", time.Since(start).Milliseconds(), "status", status}
	if err != nil {
		c.log.Warn("llm call failed", append(fields, "error", err)...)
		return "", err
	}
	c.log.Info("llm call finished", fields...)
	return content, nil
}

func (c *client) chat(ctx context.Context, req ChatRequest) (string, int, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", 0, ErrNotConfigured
	}
	timeout := c.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := chatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", 0, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, &buf)
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Title", c.cfg.Title)
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("llm request: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", resp.StatusCode, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Message: providerMessage(raw, resp.Status)}
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", resp.StatusCode, fmt.Errorf("llm decode: %w", err)
	}
	content := out.Text
	if len(out.Choices) > 0 && out.Choices[0].Message.Content != "" {
		content = out.Choices[0].Message.Content
	}
	if strings.TrimSpace(content) == "" {
		return "", resp.StatusCode, errors.New("llm: empty completion")
	}
	return content, resp.StatusCode, nil
}

func providerMessage(raw []byte, fallback string) string {
	var pe providerError
	if json.Unmarshal(raw, &pe) == nil {
		if pe.Error != nil && pe.Error.Message != "" {
			return pe.Error.Message
		}
		if pe.Message != "" {
			return pe.Message
		}
	}
	return fallback
}

// ExtractJSONObject returns the outermost {...} span of s. Models often wrap
// JSON in prose or markdown fences.
func ExtractJSONObject(s string) ([]byte, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, errors.New("llm: no JSON object in completion")
	}
	candidate := []byte(s[start : end+1])
	if !json.Valid(candidate) {
		return nil, errors.New("llm: completion JSON is malformed")
	}
	return candidate, nil
}
