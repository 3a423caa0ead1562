// Package websearch implements the web-search collaborator used for
// suggested readings.
package websearch

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
	"golang.org/x/time/rate"

	"github.com/eidoslabs/eidos/types"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher is the web-search collaborator consumed by wrap-up. A query
// may legitimately return zero results.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// TavilyConfig configures the Tavily search client.
type TavilyConfig struct {
	APIKey  string
	BaseURL string // Defaults to https://api.tavily.com
	Timeout time.Duration
	// MaxResults per query. Defaults to 5.
	MaxResults int
	// RatePerSecond bounds outgoing calls. Zero disables limiting.
	RatePerSecond float64
}

// MetricsRecorder receives per-request search observations.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordSearchRequest(provider, status string)
}

// TavilyClient implements Searcher against the Tavily REST API.
type TavilyClient struct {
	cfg     TavilyConfig
	client  *http.Client
	limiter *rate.Limiter
	metrics MetricsRecorder // optional
	logger  *zap.Logger
}

// NewTavilyClient creates a new Tavily search client.
func NewTavilyClient(cfg TavilyConfig, logger *zap.Logger) *TavilyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &TavilyClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "tavily_client")),
	}
}

// WithMetrics attaches a request metrics recorder.
func (c *TavilyClient) WithMetrics(rec MetricsRecorder) *TavilyClient {
	c.metrics = rec
	return c
}

func (c *TavilyClient) record(status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordSearchRequest("tavily", status)
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns hits in the engine's ranking order.
// Failures surface SEARCH_UNAVAILABLE.
func (c *TavilyClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrSearchUnavailable, "rate limit wait").WithCause(err)
		}
	}

	payload, err := json.Marshal(tavilyRequest{
		APIKey:     c.cfg.APIKey,
		Query:      query,
		MaxResults: c.cfg.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/search"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.record("error")
		return nil, types.NewError(types.ErrSearchUnavailable, "search request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.record("error")
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrSearchUnavailable,
			fmt.Sprintf("status=%d msg=%s", resp.StatusCode, strings.TrimSpace(string(msg)))).
			WithRetryable(resp.StatusCode >= 500)
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.record("error")
		return nil, types.NewError(types.ErrSearchUnavailable, "decode search response").WithCause(err)
	}
	c.record("success")

	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, Result{Title: r.Title, Link: r.URL, Snippet: r.Content})
	}

	c.logger.Debug("search finished",
		zap.String("query", query),
		zap.Int("results", len(results)))

	return results, nil
}
