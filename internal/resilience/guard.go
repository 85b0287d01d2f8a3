package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/metrics"
)

// Config configures a Guard.
type Config struct {
	// RequestsPerSecond of zero or less disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	Breaker           CircuitBreakerConfig
	Logger            *slog.Logger
}

// Guard applies a token bucket and a circuit breaker to one provider.
type Guard struct {
	kind    string
	limiter *rate.Limiter
	breaker *CircuitBreaker
}

// NewGuard creates a Guard. kind labels metrics and logs ("embed" or "extract").
func NewGuard(kind string, cfg Config) *Guard {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Guard{kind: kind, breaker: NewCircuitBreaker(kind, cfg.Breaker)}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	g.breaker.OnStateChange(func(name string, from, to CircuitState) {
		logger.Warn("provider circuit state changed", "provider_kind", name, "from", from.String(), "to", to.String())
	})
	return g
}

// Breaker exposes the underlying circuit breaker.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// Do runs fn once the limiter and breaker admit it.
// A limiter wait that cannot finish before ctx's deadline fails with an
// error wrapping context.DeadlineExceeded.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	if !g.breaker.Allow() {
		metrics.ProviderRateLimited.WithLabelValues(g.kind, "circuit_open").Inc()
		return fmt.Errorf("%s provider: %w", g.kind, ErrCircuitOpen)
	}

	err := fn(ctx)
	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled):
		// The caller went away; says nothing about provider health.
	default:
		g.breaker.RecordFailure()
	}
	return err
}

func (g *Guard) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if g.limiter.Allow() {
		return nil
	}

	metrics.ProviderRateLimited.WithLabelValues(g.kind, "delayed").Inc()
	if err := g.limiter.Wait(ctx); err != nil {
		metrics.ProviderRateLimited.WithLabelValues(g.kind, "rejected").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s provider rate limit: %w", g.kind, context.DeadlineExceeded)
	}
	return nil
}

type guardedEmbedder struct {
	inner memory.Embedder
	guard *Guard
}

// GuardEmbedder wraps an Embedder with g.
func GuardEmbedder(inner memory.Embedder, g *Guard) memory.Embedder {
	return &guardedEmbedder{inner: inner, guard: g}
}

func (e *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		vec, err = e.inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

// Close closes the wrapped embedder when it holds resources.
func (e *guardedEmbedder) Close() error {
	return closeInner(e.inner)
}

type guardedLLM struct {
	inner memory.LLMClient
	guard *Guard
}

// GuardLLM wraps an LLMClient with g.
func GuardLLM(inner memory.LLMClient, g *Guard) memory.LLMClient {
	return &guardedLLM{inner: inner, guard: g}
}

func (c *guardedLLM) Complete(ctx context.Context, system, user string) (string, error) {
	var out string
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.inner.Complete(ctx, system, user)
		return err
	})
	return out, err
}

// Close closes the wrapped client when it holds resources.
func (c *guardedLLM) Close() error {
	return closeInner(c.inner)
}

func closeInner(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
