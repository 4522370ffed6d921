// Package genai provides the client for the external generative text service.
//
// The client speaks the chat-completions wire format and accepts responses in
// either the OpenAI or the Gemini shape. It performs exactly one attempt per
// call; retry/backoff policy belongs to the generic transport layer upstream.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lumewell/companion/internal/normalize"
)

// Default client configuration.
const (
	// DefaultBaseURL is the default chat-completions endpoint base.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default model identifier.
	DefaultModel = "gpt-4o-mini"
	// DefaultTemperature is the default sampling temperature.
	DefaultTemperature = 0.8
	// DefaultMaxTokens is the default completion token budget.
	DefaultMaxTokens = 500
	// DefaultHTTPTimeout bounds a single HTTP exchange when the caller's
	// context carries no earlier deadline.
	DefaultHTTPTimeout = 90 * time.Second
)

// ErrMissingAPIKey indicates the client was constructed without credentials.
// This is a configuration error: no fallback can recover from it.
var ErrMissingAPIKey = errors.New("model API key not set")

// TransportError wraps a network or HTTP failure from the model service.
type TransportError struct {
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model transport error: status %d", e.Status)
	}
	return fmt.Sprintf("model transport error: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the generic transport layer may retry the
// request. Server-side failures (>=500) are retryable; client errors are not.
func (e *TransportError) Retryable() bool {
	return e.Status == 0 || e.Status >= 500
}

// TimeoutError wraps a deadline-exceeded model call. Callers treat it exactly
// like a TransportError; the distinct type exists for log classification.
type TimeoutError struct {
	Err error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string { return fmt.Sprintf("model call timed out: %v", e.Err) }

// Unwrap exposes the underlying error for errors.Is/As.
func (e *TimeoutError) Unwrap() error { return e.Err }

// Message is one chat message sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// chatRequest is the wire body for POST {base}/chat/completions.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Opts holds configuration for the client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Option configures the client.
type Option func(*Opts)

// WithAPIKey sets the bearer token for the model service.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the chat-completions endpoint base.
func WithBaseURL(base string) Option {
	return func(o *Opts) { o.BaseURL = base }
}

// WithModel overrides the model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens overrides the completion token budget.
func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithHTTPClient injects a custom HTTP client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client calls the external chat-completions endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NewClient creates a model client. A missing API key is a fatal
// configuration error.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI client API key not set")
		return nil, ErrMissingAPIKey
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	slog.Debug("GenAI client created", "base_url", cfg.BaseURL, "model", cfg.Model)
	return &Client{
		httpClient:  cfg.HTTPClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends the messages to the chat-completions endpoint and returns
// the reply text. The caller's context bounds the call; deadline expiry maps
// to TimeoutError and every other transport failure to TransportError. One
// attempt only, no retries.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	slog.Debug("GenAI Complete sending request", "model", c.model, "messages", len(messages))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("GenAI Complete deadline exceeded", "model", c.model)
			return "", &TimeoutError{Err: err}
		}
		slog.Error("GenAI Complete transport failure", "error", err)
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("GenAI Complete failed to read response body", "error", err)
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("GenAI Complete non-2xx response", "status", resp.StatusCode)
		return "", &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	content, err := normalize.ExtractContent(body)
	if err != nil {
		slog.Error("GenAI Complete response yielded no usable content", "error", err)
		return "", err
	}

	slog.Debug("GenAI Complete succeeded", "model", c.model, "content_length", len(content))
	return content, nil
}
