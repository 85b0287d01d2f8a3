// Package healthcheck probes the memory service backends in the background
// so that readiness checks answer from the last result.
package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thotran113254/mem0-rest/internal/metrics"
)

const (
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// Config controls the prober.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
}

// Checker is a backend that can report its own reachability.
type Checker interface {
	Ping(ctx context.Context) error
}

// Target names a backend to probe.
type Target struct {
	Name    string
	Checker Checker
}

// Prober periodically pings every target and keeps the latest results.
type Prober struct {
	cfg     Config
	targets []Target
	logger  *slog.Logger
	started atomic.Bool
	probed  atomic.Bool

	mu      sync.RWMutex
	results map[string]error
	lastRun time.Time
}

// NewProber creates a prober. Targets with a nil Checker are skipped.
func NewProber(cfg Config, targets []Target, logger *slog.Logger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultProbeInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	kept := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Checker != nil {
			kept = append(kept, t)
		}
	}

	return &Prober{
		cfg:     cfg,
		targets: kept,
		logger:  logger,
		results: make(map[string]error, len(kept)),
	}
}

// Start begins the probe loop until the context is canceled.
func (p *Prober) Start(ctx context.Context) {
	if p == nil || !p.cfg.Enabled || len(p.targets) == 0 {
		return
	}
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	go p.run(ctx)
}

func (p *Prober) run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-ctx.Done():
			p.logger.Info("healthcheck prober stopped")
			return
		}
	}
}

func (p *Prober) runOnce(ctx context.Context) {
	results := make(map[string]error, len(p.targets))
	for _, t := range p.targets {
		if ctx.Err() != nil {
			return
		}
		err := p.probe(ctx, t)
		metrics.RecordDependencyProbe(t.Name, err)
		results[t.Name] = err

		p.mu.RLock()
		prev, seen := p.results[t.Name]
		p.mu.RUnlock()
		switch {
		case err != nil && (!seen || prev == nil):
			p.logger.Warn("healthcheck probe failed", "dependency", t.Name, "error", err)
		case err == nil && seen && prev != nil:
			p.logger.Info("healthcheck probe recovered", "dependency", t.Name)
		}
	}

	p.mu.Lock()
	p.results = results
	p.lastRun = time.Now()
	p.mu.Unlock()
	p.probed.Store(true)
}

func (p *Prober) probe(ctx context.Context, t Target) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return t.Checker.Ping(probeCtx)
}

// Ping reports the last probe result, failing if any target failed. Before
// the first probe completes it checks every target directly.
func (p *Prober) Ping(ctx context.Context) error {
	if !p.probed.Load() {
		for _, t := range p.targets {
			if err := p.probe(ctx, t); err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
		}
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.targets {
		if err := p.results[t.Name]; err != nil {
			return fmt.Errorf("%s: %w", t.Name, err)
		}
	}
	return nil
}

// Status returns the last result per target ("ok" or the error text) and
// when the probe ran.
func (p *Prober) Status() (map[string]string, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.results))
	for name, err := range p.results {
		if err != nil {
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	return out, p.lastRun
}
