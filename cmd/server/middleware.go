package main

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/thotran113254/mem0-rest/internal/config"
	"github.com/thotran113254/mem0-rest/internal/metrics"
	"github.com/thotran113254/mem0-rest/internal/observability"
)

// buildMiddlewareStack wraps the mux so that metrics see the routed pattern,
// spans carry the request id, and CORS rejections happen first.
func buildMiddlewareStack(cfg *config.Config, tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			return nil
		}
		handler := metrics.Middleware(next)
		handler = observability.TracingMiddleware(tracer, handler)
		handler = observability.RequestIDMiddleware(handler)
		handler = corsMiddleware(cfg.Server.CORSOrigins, handler)
		return handler
	}
}
