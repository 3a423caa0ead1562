// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records Prometheus metrics for the dialogue pipeline.
type Collector struct {
	// Pipeline stage metrics
	stageExecutionsTotal *prometheus.CounterVec
	stageDuration        *prometheus.HistogramVec

	// LLM metrics
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// Session metrics
	turnsCompletedTotal *prometheus.CounterVec
	wrapUpsTotal        *prometheus.CounterVec
	promptTokens        *prometheus.GaugeVec

	// Retrieval metrics
	retrievalCacheHits   *prometheus.CounterVec
	retrievalCacheMisses *prometheus.CounterVec
	passagesRetrieved    *prometheus.HistogramVec

	// Web search metrics
	searchRequestsTotal *prometheus.CounterVec
	readingsCollected   *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector and registers all metric vectors
// under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of pipeline stage executions",
		},
		[]string{"stage", "status"},
	)

	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.turnsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_completed_total",
			Help:      "Total number of completed dialogue turns",
		},
		[]string{"route"},
	)

	c.wrapUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wrap_ups_total",
			Help:      "Total number of session wrap-ups",
		},
		[]string{"status"},
	)

	c.promptTokens = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_prompt_tokens",
			Help:      "Estimated prompt tokens held by the session history",
		},
		[]string{"session_id"},
	)

	c.retrievalCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_cache_hits_total",
			Help:      "Total number of retrieval cache hits",
		},
		[]string{"cache_type"},
	)

	c.retrievalCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_cache_misses_total",
			Help:      "Total number of retrieval cache misses",
		},
		[]string{"cache_type"},
	)

	c.passagesRetrieved = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "passages_retrieved",
			Help:      "Number of passages returned per retrieval",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		},
		[]string{"store"},
	)

	c.searchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of web search requests",
		},
		[]string{"provider", "status"},
	)

	c.readingsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_collected_total",
			Help:      "Total number of suggested readings collected at wrap-up",
		},
		[]string{"provider"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordStageExecution records one pipeline stage run.
func (c *Collector) RecordStageExecution(stage, status string, duration time.Duration) {
	c.stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLLMRequest records one completion call.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordTurnCompleted records a fully committed dialogue turn and the
// route it took.
func (c *Collector) RecordTurnCompleted(route string) {
	c.turnsCompletedTotal.WithLabelValues(route).Inc()
}

// RecordWrapUp records a session wrap-up attempt.
func (c *Collector) RecordWrapUp(status string) {
	c.wrapUpsTotal.WithLabelValues(status).Inc()
}

// RecordPromptTokens updates the estimated prompt token footprint of a
// session's history.
func (c *Collector) RecordPromptTokens(sessionID string, tokens int) {
	c.promptTokens.WithLabelValues(sessionID).Set(float64(tokens))
}

// RecordCacheHit records a retrieval cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.retrievalCacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a retrieval cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.retrievalCacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordRetrieval records how many passages a store query returned.
func (c *Collector) RecordRetrieval(store string, passages int) {
	c.passagesRetrieved.WithLabelValues(store).Observe(float64(passages))
}

// RecordSearchRequest records one web search call.
func (c *Collector) RecordSearchRequest(provider, status string) {
	c.searchRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordReadings records the number of readings kept from one wrap-up.
func (c *Collector) RecordReadings(provider string, count int) {
	c.readingsCollected.WithLabelValues(provider).Add(float64(count))
}
