// Package main is the entry point for the mem0 memory service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/thotran113254/mem0-rest/internal/config"
	"github.com/thotran113254/mem0-rest/internal/observability"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	level := new(slog.LevelVar)
	redactor := observability.NewRedactor()
	bootLogger := observability.NewLogger(observability.LoggerConfig{Level: level, Output: os.Stdout}, redactor)
	slog.SetDefault(bootLogger.Slog())

	cfgManager, err := config.NewManager(*configPath, bootLogger.Slog())
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := cfgManager.Get()
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:  level,
		Output: os.Stdout,
		Format: cfg.Logging.Format,
	}, redactor)
	slog.SetDefault(logger.Slog())
	applyLogLevel(level, cfg.Logging.Level, logger.Slog())

	logger.Info("starting memory service", "version", version, "config", *configPath)

	if err := run(cfgManager, level, logger.Slog()); err != nil {
		logger.RedactedError("memory service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfgManager *config.Manager, level *slog.LevelVar, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() { _ = cfgManager.Close() }()

	cfg := cfgManager.Get()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger, tp.Tracer())
	if err != nil {
		return err
	}
	defer a.Close()

	// Only the log level is applied live; other settings need a restart.
	cfgManager.OnChange(func(next *config.Config) {
		applyLogLevel(level, next.Logging.Level, logger)
		logger.Info("configuration reloaded", "log_level", next.Logging.Level)
	})
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func applyLogLevel(level *slog.LevelVar, name string, logger *slog.Logger) {
	lvl, err := observability.ParseLevel(name)
	if err != nil {
		logger.Warn("invalid log level, keeping current", "level", name, "error", err)
		return
	}
	level.Set(lvl)
}
