// Package retrieval implements the document retrieval collaborator: a
// query embedder plus a Pinecone-backed vector store, with an optional
// redis query cache in front.
package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/eidoslabs/eidos/types"
)

// Passage is one retrieved text passage, ranked by the store.
type Passage struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Retriever is the retrieval collaborator consumed by the pipeline.
// Implementations return passages already ordered by relevance; the
// pipeline never re-ranks. An empty result is valid.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Passage, error)
}

// Embedder turns a query string into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
}

// VectorStore answers nearest-neighbour queries over the document corpus.
type VectorStore interface {
	Query(ctx context.Context, vector []float64, topK int) ([]Passage, error)
}

// MetricsRecorder receives cache and retrieval observations.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	RecordRetrieval(store string, passages int)
}

// Config bounds a VectorRetriever.
type Config struct {
	// DocsToUse is the number of passages returned per query.
	DocsToUse int
	// DocsToProcess is the candidate pool fetched before selection.
	DocsToProcess int
}

// VectorRetriever implements Retriever over an Embedder and a VectorStore.
type VectorRetriever struct {
	cfg      Config
	embedder Embedder
	store    VectorStore
	cache    *QueryCache     // optional
	metrics  MetricsRecorder // optional
	logger   *zap.Logger
}

// NewVectorRetriever creates a retriever. cache may be nil.
func NewVectorRetriever(cfg Config, embedder Embedder, store VectorStore, cache *QueryCache, logger *zap.Logger) *VectorRetriever {
	if cfg.DocsToUse <= 0 {
		cfg.DocsToUse = 4
	}
	if cfg.DocsToProcess < cfg.DocsToUse {
		cfg.DocsToProcess = cfg.DocsToUse
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorRetriever{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		cache:    cache,
		logger:   logger.With(zap.String("component", "vector_retriever")),
	}
}

// WithMetrics attaches a metrics recorder.
func (r *VectorRetriever) WithMetrics(rec MetricsRecorder) *VectorRetriever {
	r.metrics = rec
	return r
}

// Retrieve embeds the query and returns the top DocsToUse passages out of
// a DocsToProcess candidate pool, preserving store order. Collaborator
// failures surface RETRIEVAL_UNAVAILABLE.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	if r.cache != nil {
		if passages, ok := r.cache.Get(ctx, query); ok {
			if r.metrics != nil {
				r.metrics.RecordCacheHit("redis")
			}
			r.logger.Debug("retrieval cache hit", zap.Int("passages", len(passages)))
			return passages, nil
		}
		if r.metrics != nil {
			r.metrics.RecordCacheMiss("redis")
		}
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalUnavailable, "embed query").WithCause(err)
	}

	candidates, err := r.store.Query(ctx, vector, r.cfg.DocsToProcess)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalUnavailable, "vector store query").WithCause(err)
	}

	if len(candidates) > r.cfg.DocsToUse {
		candidates = candidates[:r.cfg.DocsToUse]
	}

	if r.cache != nil {
		r.cache.Set(ctx, query, candidates)
	}
	if r.metrics != nil {
		r.metrics.RecordRetrieval("vector", len(candidates))
	}

	r.logger.Debug("retrieval finished",
		zap.Int("passages", len(candidates)),
		zap.Int("docs_to_use", r.cfg.DocsToUse))

	return candidates, nil
}
