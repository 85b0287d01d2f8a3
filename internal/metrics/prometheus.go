// Package metrics provides Prometheus metrics for the memory service.
// It tracks memory operation outcomes and latencies, provider calls,
// history log append failures, and HTTP request latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "mem0"
)

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
// Provider round trips dominate, so the range extends to the default call timeout.
var LatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 2.0, 3.0, 5.0, 7.5, 10.0, 15.0, 20.0, 30.0, 60.0,
}

// =============================================================================
// Memory Operation Metrics
// =============================================================================

var (
	// MemoryOperations counts manager operations by outcome.
	// status is "ok" or the error kind (e.g. "NotFoundError").
	MemoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_operations_total",
			Help:      "Total number of memory operations",
		},
		[]string{"operation", "status"},
	)

	// MemoryOperationLatency tracks end-to-end manager operation latency.
	MemoryOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_operation_latency_seconds",
			Help:      "Memory operation latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"operation"},
	)

	// MemoriesCreated counts memories persisted by add operations.
	MemoriesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_created_total",
			Help:      "Total number of memories persisted",
		},
	)

	// MemoriesDeduplicated counts add candidates skipped as near duplicates.
	MemoriesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_deduplicated_total",
			Help:      "Total number of add candidates skipped as duplicates",
		},
	)

	// HistoryAppendFailures counts audit entries lost after a committed index write.
	HistoryAppendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_append_failures_total",
			Help:      "Total number of history entries that could not be appended",
		},
		[]string{"event"},
	)
)

// =============================================================================
// Provider Metrics
// =============================================================================

var (
	// ProviderCalls counts embedding and extraction provider calls.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of embedding and extraction provider calls",
		},
		[]string{"provider", "kind", "status"},
	)

	// ProviderLatency tracks provider round trip latency.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "kind"},
	)

	// ProviderRateLimited counts calls that waited on the local rate limiter.
	ProviderRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_rate_limited_total",
			Help:      "Total number of provider calls delayed or rejected by the rate limiter",
		},
		[]string{"kind", "outcome"},
	)

	// EmbeddingCacheHits counts embedding cache lookups.
	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_lookups_total",
			Help:      "Total number of embedding cache lookups",
		},
		[]string{"result"},
	)
)

// RecordOperation records the outcome and latency of a manager operation.
func RecordOperation(operation, status string, latency time.Duration) {
	MemoryOperations.WithLabelValues(operation, status).Inc()
	MemoryOperationLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordProviderCall records a provider round trip. kind is "embed" or "extract".
func RecordProviderCall(provider, kind string, err error, latency time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderCalls.WithLabelValues(provider, kind, status).Inc()
	ProviderLatency.WithLabelValues(provider, kind).Observe(latency.Seconds())
}

// RecordHistoryAppendFailure records a lost audit entry.
func RecordHistoryAppendFailure(event string) {
	HistoryAppendFailures.WithLabelValues(event).Inc()
}

// =============================================================================
// Dependency Health Metrics
// =============================================================================

// DependencyUp is 1 when the last probe of a backend succeeded.
var DependencyUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dependency_up",
		Help:      "Whether the last health probe of a backend succeeded",
	},
	[]string{"dependency"},
)

// RecordDependencyProbe records the outcome of one health probe.
func RecordDependencyProbe(dependency string, err error) {
	v := 1.0
	if err != nil {
		v = 0
	}
	DependencyUp.WithLabelValues(dependency).Set(v)
}
