package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"disclosure-rag/internal/ai"
	"disclosure-rag/internal/logger"
	"disclosure-rag/utils"

	"github.com/redis/go-redis/v9"
)

const queryEmbeddingPrefix = "embedding:query:"

// CachedEmbedder caches query embeddings in Redis. Document embeddings are
// computed once per ingestion and pass straight through. Redis errors are
// treated as cache misses.
type CachedEmbedder struct {
	inner ai.Embedder
	rdb   redis.Cmdable
	ttl   time.Duration
}

var _ ai.Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner ai.Embedder, rdb redis.Cmdable, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedEmbedder{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

func (c *CachedEmbedder) EmbedDocument(ctx context.Context, text string) []float32 {
	return c.inner.EmbedDocument(ctx, text)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) []float32 {
	key := queryEmbeddingPrefix + utils.ContentKey(c.inner.Model(), text)

	lookupCtx, cancel := utils.WithShortTimeout(ctx)
	raw, err := c.rdb.Get(lookupCtx, key).Bytes()
	cancel()
	if err == nil {
		var vec []float32
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) > 0 {
			return vec
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Debug("Embedding cache lookup failed", "error", err)
	}

	vec := c.inner.EmbedQuery(ctx, text)
	if len(vec) == 0 {
		return vec
	}

	if data, err := json.Marshal(vec); err == nil {
		storeCtx, cancel := utils.WithShortTimeout(ctx)
		if err := c.rdb.Set(storeCtx, key, data, c.ttl).Err(); err != nil {
			logger.Debug("Embedding cache store failed", "error", err)
		}
		cancel()
	}
	return vec
}
