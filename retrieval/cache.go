package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheConfig configures the redis-backed query cache.
type CacheConfig struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password,omitempty"`
	DB       int           `json:"db,omitempty"`
	TTL      time.Duration `json:"ttl"`
}

// QueryCache memoizes expanded-query retrievals in redis so repeated
// queries within a session family skip the embed + vector store round trip.
// Cache failures are never fatal: a miss is returned instead.
type QueryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewQueryCache connects to redis and verifies the connection.
func NewQueryCache(cfg CacheConfig, logger *zap.Logger) (*QueryCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &QueryCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "query_cache")),
	}, nil
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "eidos:retrieval:" + hex.EncodeToString(sum[:])
}

// Get returns the cached passages for query, if present.
func (c *QueryCache) Get(ctx context.Context, query string) ([]Passage, bool) {
	data, err := c.client.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var passages []Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", zap.Error(err))
		return nil, false
	}
	return passages, true
}

// Set stores the passages for query with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, query string, passages []Passage) {
	data, err := json.Marshal(passages)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(query), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.Error(err))
	}
}

// Close releases the redis connection.
func (c *QueryCache) Close() error {
	return c.client.Close()
}
