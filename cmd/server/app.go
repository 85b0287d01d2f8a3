package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/thotran113254/mem0-rest/internal/api"
	"github.com/thotran113254/mem0-rest/internal/config"
	"github.com/thotran113254/mem0-rest/internal/healthcheck"
	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/secret"
)

const (
	bootstrapTimeout    = 60 * time.Second
	poolMetricsInterval = 30 * time.Second
)

// app is the assembled service: collaborators, manager and HTTP handler.
type app struct {
	manager   *memory.Manager
	handler   http.Handler
	secrets   *secret.Manager
	history   memory.HistoryStore
	llm       memory.LLMClient
	embedder  memory.Embedder
	embCache  io.Closer
	stopPool  func()
	stopProbe context.CancelFunc
	logger    *slog.Logger
}

// newApp builds every collaborator from cfg and resets the vector collection.
// Bootstrap runs last so that a misconfigured backend never wipes the index.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, tracer trace.Tracer) (_ *app, err error) {
	sm, err := buildSecrets(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = sm.Close()
		}
	}()

	resolved, err := resolveCredentials(ctx, sm, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	emb, embCache, err := buildEmbedder(ctx, resolved, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			closeAll(logger, emb, embCache)
		}
	}()
	client, err := buildLLM(ctx, resolved, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			closeAll(logger, client)
		}
	}()
	store, err := buildVectorStore(resolved)
	if err != nil {
		return nil, err
	}
	hist, err := buildHistory(ctx, resolved)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			closeAll(logger, hist.store)
		}
	}()

	coll := memory.CollectionConfig{
		Name:       resolved.VectorStore.Collection,
		VectorSize: resolved.VectorStore.VectorSize,
		Distance:   memory.Distance(resolved.VectorStore.Distance),
	}
	bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	if err := memory.EnsureCollection(bootCtx, store, coll, logger); err != nil {
		return nil, err
	}

	mgr := memory.NewManager(memory.NewLLMExtractor(client), emb, store, hist.store, memory.Options{
		Collection:      coll,
		CallTimeout:     resolved.Memory.CallTimeout,
		MaxLimit:        resolved.Memory.MaxLimit,
		DedupeThreshold: resolved.Memory.DedupeThreshold,
		Logger:          logger,
	})

	handlerCfg := api.HandlerConfig{
		StrictStatusCodes: resolved.Server.StrictStatusCodes,
		MaxBodyBytes:      resolved.Server.MaxBodyBytes,
	}
	probeCtx, stopProbe := context.WithCancel(ctx)
	if hc := resolved.HealthCheck; hc.Enabled {
		prober := healthcheck.NewProber(healthcheck.Config{
			Enabled:  true,
			Interval: hc.Interval,
			Timeout:  hc.Timeout,
		}, []healthcheck.Target{
			{Name: "vector_store", Checker: asChecker(store)},
			{Name: "history", Checker: asChecker(hist.store)},
		}, logger)
		prober.Start(probeCtx)
		handlerCfg.Readiness = prober
	}
	h := api.NewHandler(mgr, logger, handlerCfg)
	mux := buildMux(resolved, h)

	logger.Info("memory service assembled",
		"vector_store", resolved.VectorStore.Provider,
		"collection", coll.Name,
		"vector_size", coll.VectorSize,
		"embedder", resolved.Embedder.Provider,
		"llm", resolved.LLM.Provider,
		"history", resolved.History.Provider,
	)

	return &app{
		manager:   mgr,
		handler:   buildMiddlewareStack(resolved, tracer)(mux),
		secrets:   sm,
		history:   hist.store,
		llm:       client,
		embedder:  emb,
		embCache:  embCache,
		stopPool:  startPoolMetrics(ctx, hist.poolStats, logger, poolMetricsInterval),
		stopProbe: stopProbe,
		logger:    logger,
	}, nil
}

// asChecker returns v as a health checker, or nil when it cannot be pinged.
func asChecker(v any) healthcheck.Checker {
	c, _ := v.(healthcheck.Checker)
	return c
}

// Close stops background work and releases backend connections.
func (a *app) Close() {
	if a.stopPool != nil {
		a.stopPool()
	}
	if a.stopProbe != nil {
		a.stopProbe()
	}
	closeAll(a.logger, a.secrets, a.llm, a.embedder, a.embCache, a.history)
}
