package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/thotran113254/mem0-rest/internal/config"
	"github.com/thotran113254/mem0-rest/internal/embedder"
	"github.com/thotran113254/mem0-rest/internal/llm"
	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/memory/history/postgres"
	redishistory "github.com/thotran113254/mem0-rest/internal/memory/history/redis"
	"github.com/thotran113254/mem0-rest/internal/memory/inmem"
	"github.com/thotran113254/mem0-rest/internal/memory/qdrant"
	"github.com/thotran113254/mem0-rest/internal/metrics"
	"github.com/thotran113254/mem0-rest/internal/resilience"
	"github.com/thotran113254/mem0-rest/internal/secret"
	"github.com/thotran113254/mem0-rest/internal/secret/env"
	"github.com/thotran113254/mem0-rest/internal/secret/vault"
)

// vectorStore is what the bootstrapper and the manager need from the index.
type vectorStore interface {
	memory.VectorIndex
	memory.CollectionAdmin
}

// buildSecrets registers env:// always and vault:// when an address is set.
func buildSecrets(cfg *config.Config, logger *slog.Logger) (*secret.Manager, error) {
	sm := secret.NewManager(cfg.Secrets.CacheTTL)
	sm.Register("env", env.New())

	vc := cfg.Secrets.Vault
	if vc.Address == "" {
		return sm, nil
	}
	vp, err := vault.New(vault.Config{
		Address:    vc.Address,
		AuthMethod: vc.AuthMethod,
		Token:      vc.Token,
		RoleID:     vc.RoleID,
		SecretID:   vc.SecretID,
		CACert:     vc.CACert,
		ClientCert: vc.ClientCert,
		ClientKey:  vc.ClientKey,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}
	sm.Register("vault", vp)
	logger.Info("vault secret provider enabled", "address", vc.Address, "auth_method", vc.AuthMethod)
	return sm, nil
}

// resolveCredentials returns a copy of cfg with every credential reference
// the selected providers use replaced by its value.
func resolveCredentials(ctx context.Context, sm *secret.Manager, cfg *config.Config) (*config.Config, error) {
	resolved := *cfg

	refs := make([]*string, 0, 5)
	switch resolved.Embedder.Provider {
	case embedder.ProviderOpenAI, embedder.ProviderGemini:
		refs = append(refs, &resolved.Embedder.APIKey)
	}
	switch resolved.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderAnthropic:
		refs = append(refs, &resolved.LLM.APIKey)
	}
	if resolved.VectorStore.Provider == config.VectorStoreQdrant {
		refs = append(refs, &resolved.VectorStore.APIKey)
	}
	switch resolved.History.Provider {
	case config.HistoryPostgres:
		refs = append(refs, &resolved.History.Postgres.Password)
	case config.HistoryRedis:
		refs = append(refs, &resolved.History.Redis.Password)
	}
	if len(resolved.Embedder.CacheRedis.Addrs) > 0 {
		refs = append(refs, &resolved.Embedder.CacheRedis.Password)
	}

	if err := sm.ResolveInPlace(ctx, refs...); err != nil {
		return nil, err
	}
	return &resolved, nil
}

// buildEmbedder returns the embedder and the shared cache client, if any,
// which the caller must close.
func buildEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (memory.Embedder, redis.UniversalClient, error) {
	ec := embedder.Config{
		Provider:   cfg.Embedder.Provider,
		Model:      cfg.Embedder.Model,
		APIKey:     cfg.Embedder.APIKey,
		BaseURL:    cfg.Embedder.BaseURL,
		Dimensions: cfg.VectorStore.VectorSize,
		Timeout:    cfg.Embedder.Timeout,
		CacheTTL:   cfg.Embedder.CacheTTL,
	}
	var shared redis.UniversalClient
	if rc := cfg.Embedder.CacheRedis; cfg.Embedder.CacheTTL > 0 && len(rc.Addrs) > 0 {
		shared = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := shared.Ping(ctx).Err(); err != nil {
			// The local tier still works; replicas just stop sharing vectors.
			logger.Warn("embedding cache redis unreachable, continuing", "error", err)
		}
		ec.SharedCache = shared
	}
	e, err := embedder.New(ctx, ec)
	if err != nil {
		if shared != nil {
			_ = shared.Close()
		}
		return nil, nil, fmt.Errorf("init embedder: %w", err)
	}
	if cfg.RateLimit.Enabled {
		e = resilience.GuardEmbedder(e, resilience.NewGuard("embed", guardConfig(cfg.RateLimit, cfg.RateLimit.EmbedRequestsPerSecond, logger)))
	}
	return e, shared, nil
}

func buildLLM(ctx context.Context, cfg *config.Config, logger *slog.Logger) (memory.LLMClient, error) {
	client, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}
	if cfg.RateLimit.Enabled {
		client = resilience.GuardLLM(client, resilience.NewGuard("extract", guardConfig(cfg.RateLimit, cfg.RateLimit.LLMRequestsPerSecond, logger)))
	}
	return client, nil
}

func guardConfig(rl config.RateLimitConfig, rps float64, logger *slog.Logger) resilience.Config {
	return resilience.Config{
		RequestsPerSecond: rps,
		Burst:             rl.Burst,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: rl.FailureThreshold,
			Cooldown:         rl.Cooldown,
		},
		Logger: logger,
	}
}

func buildVectorStore(cfg *config.Config) (vectorStore, error) {
	vs := cfg.VectorStore
	switch vs.Provider {
	case config.VectorStoreMemory:
		return inmem.NewVectorStore(vs.Collection), nil
	default:
		store, err := qdrant.NewStore(qdrant.Config{
			Address:    vs.Address(),
			APIKey:     vs.APIKey,
			Collection: vs.Collection,
			Distance:   memory.Distance(vs.Distance),
			Timeout:    vs.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init qdrant: %w", err)
		}
		return store, nil
	}
}

// historyBackend is a history store plus the hooks the server drives.
type historyBackend struct {
	store memory.HistoryStore
	// poolStats publishes connection pool gauges; nil when not pooled.
	poolStats func()
}

func buildHistory(ctx context.Context, cfg *config.Config) (*historyBackend, error) {
	hc := cfg.History
	switch hc.Provider {
	case config.HistoryPostgres:
		store, err := postgres.Open(ctx, &postgres.Config{
			Host:         hc.Postgres.Host,
			Port:         hc.Postgres.Port,
			User:         hc.Postgres.User,
			Password:     hc.Postgres.Password,
			Database:     hc.Postgres.Database,
			SSLMode:      hc.Postgres.SSLMode,
			MaxOpenConns: hc.Postgres.MaxOpenConns,
			MaxIdleConns: hc.Postgres.MaxIdleConns,
			ConnLifetime: hc.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres history: %w", err)
		}
		return &historyBackend{
			store:     store,
			poolStats: func() { metrics.UpdateDBPoolStats(store.DBStats()) },
		}, nil
	case config.HistoryRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    hc.Redis.Addrs,
			Password: hc.Redis.Password,
			DB:       hc.Redis.DB,
		})
		store := redishistory.New(client, hc.Redis.Prefix)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init redis history: %w", err)
		}
		return &historyBackend{
			store:     store,
			poolStats: func() { metrics.UpdateRedisPoolStats(store.PoolStats()) },
		}, nil
	default:
		return &historyBackend{store: inmem.NewHistoryStore()}, nil
	}
}

// closeAll closes every value that implements io.Closer, in reverse order.
func closeAll(logger *slog.Logger, values ...any) {
	for i := len(values) - 1; i >= 0; i-- {
		c, ok := values[i].(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "component", fmt.Sprintf("%T", values[i]), "error", err)
		}
	}
}
