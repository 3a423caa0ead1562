package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/types"
)

// OpenAIConfig holds the configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	// APIKey is the authentication key for the endpoint.
	APIKey string

	// BaseURL is the base URL of the API (e.g. "https://api.openai.com").
	BaseURL string

	// EndpointPath is the chat completions path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration
}

// MetricsRecorder receives per-request observations from a provider.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// OpenAIProvider implements Provider against any OpenAI-compatible chat
// completions endpoint.
type OpenAIProvider struct {
	cfg     OpenAIConfig
	client  *http.Client
	metrics MetricsRecorder // optional
	logger  *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "openai_provider")),
	}
}

// WithMetrics attaches a request metrics recorder.
func (p *OpenAIProvider) WithMetrics(rec MetricsRecorder) *OpenAIProvider {
	p.metrics = rec
	return p
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) record(model, status string, elapsed time.Duration, usage ChatUsage) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordLLMRequest(p.Name(), model, status, elapsed, usage.PromptTokens, usage.CompletionTokens)
}

func (p *OpenAIProvider) endpoint() string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.EndpointPath
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Completion performs a non-streaming chat completion.
func (p *OpenAIProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.record(req.Model, "error", time.Since(start), ChatUsage{})
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrUpstreamTimeout, "completion request cancelled").
				WithCause(ctx.Err()).WithRetryable(true)
		}
		return nil, types.NewError(types.ErrUpstreamError, "completion request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		p.record(req.Model, "error", time.Since(start), ChatUsage{})
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		p.record(req.Model, "error", time.Since(start), ChatUsage{})
		return nil, types.NewError(types.ErrUpstreamError, "decode completion response").
			WithCause(err).WithRetryable(true)
	}

	p.record(req.Model, "success", time.Since(start), out.Usage)
	p.logger.Debug("completion finished",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", out.Usage.TotalTokens))

	return &out, nil
}

// mapHTTPError converts an upstream HTTP status into a coded error.
func mapHTTPError(status int, msg string) *types.Error {
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamTimeout,
			fmt.Sprintf("status=%d msg=%s", status, msg)).WithRetryable(true)
	case status == http.StatusTooManyRequests || status >= 500:
		return types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("status=%d msg=%s", status, msg)).WithRetryable(true)
	default:
		return types.NewError(types.ErrGenerationFailed,
			fmt.Sprintf("status=%d msg=%s", status, msg))
	}
}

// readErrorMessage extracts a human-readable message from an error body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(data))
}
