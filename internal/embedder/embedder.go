// Package embedder builds memory.Embedder implementations for the
// supported embedding providers.
package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/memory/inmem"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

// Config configures an embedding provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider endpoint. Required for ollama.
	BaseURL string
	// Dimensions is the vector length the collection expects.
	Dimensions int
	Timeout    time.Duration
	// CacheTTL enables the in-process embedding cache when positive.
	CacheTTL time.Duration
	// SharedCache, when set with CacheTTL, adds a Redis tier to the cache.
	SharedCache    redis.UniversalClient
	SharedCacheTTL time.Duration
}

// DefaultConfig returns the OpenAI text-embedding-3-small setup.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderOpenAI,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// New creates the embedder named by cfg.Provider, wrapped in a cache when
// cfg.CacheTTL is set.
func New(ctx context.Context, cfg Config) (memory.Embedder, error) {
	var (
		e   memory.Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		e, err = NewOpenAI(cfg)
	case ProviderGemini:
		e, err = NewGemini(ctx, cfg)
	case ProviderOllama:
		e, err = NewOllama(cfg)
	case ProviderHash:
		if cfg.Dimensions <= 0 {
			return nil, fmt.Errorf("hash embedder requires dimensions")
		}
		e = inmem.NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheTTL > 0 {
		cached := NewCached(e, cfg.Provider+"/"+cfg.Model, cfg.CacheTTL)
		if cfg.SharedCache != nil {
			ttl := cfg.SharedCacheTTL
			if ttl <= 0 {
				ttl = cfg.CacheTTL
			}
			cached.WithShared(cfg.SharedCache, ttl)
		}
		e = cached
	}
	return e, nil
}
