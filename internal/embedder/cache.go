package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/metrics"
)

// Cached decorates an Embedder with a two-tier cache keyed by text: an
// in-process TTL cache (L1) and, optionally, Redis (L2) shared by replicas.
// Reads check L1 then L2, backfilling L1 on an L2 hit.
type Cached struct {
	inner     memory.Embedder
	namespace string
	local     *cache.Cache
	shared    redis.UniversalClient
	sharedTTL time.Duration
}

// NewCached wraps inner. namespace keeps vectors from different models apart.
func NewCached(inner memory.Embedder, namespace string, ttl time.Duration) *Cached {
	return &Cached{
		inner:     inner,
		namespace: namespace,
		local:     cache.New(ttl, ttl*2),
	}
}

// WithShared adds a Redis tier whose entries expire after ttl.
func (c *Cached) WithShared(client redis.UniversalClient, ttl time.Duration) *Cached {
	c.shared = client
	c.sharedTTL = ttl
	return c
}

// Embed implements memory.Embedder. L2 failures degrade to a miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if val, found := c.local.Get(key); found {
		if vec, ok := val.([]float32); ok {
			metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			return append([]float32(nil), vec...), nil
		}
	}

	if vec, ok := c.getShared(ctx, key); ok {
		metrics.EmbeddingCacheHits.WithLabelValues("shared_hit").Inc()
		c.local.Set(key, append([]float32(nil), vec...), cache.DefaultExpiration)
		return vec, nil
	}
	metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.local.Set(key, append([]float32(nil), vec...), cache.DefaultExpiration)
	c.setShared(ctx, key, vec)
	return vec, nil
}

func (c *Cached) getShared(ctx context.Context, key string) ([]float32, bool) {
	if c.shared == nil {
		return nil, false
	}
	data, err := c.shared.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			metrics.EmbeddingCacheHits.WithLabelValues("shared_error").Inc()
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

func (c *Cached) setShared(ctx context.Context, key string, vec []float32) {
	if c.shared == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, key, data, c.sharedTTL).Err(); err != nil {
		metrics.EmbeddingCacheHits.WithLabelValues("shared_error").Inc()
	}
}

// Close closes the wrapped embedder when it holds resources. The shared
// client belongs to the caller and stays open.
func (c *Cached) Close() error {
	if cl, ok := c.inner.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Len reports the number of vectors in the local tier.
func (c *Cached) Len() int {
	return c.local.ItemCount()
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "mem0:embedding:" + c.namespace + ":" + hex.EncodeToString(sum[:])
}
