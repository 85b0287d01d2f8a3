package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// History Backend Pool Metrics
// =============================================================================

var (
	// DBConnectionPoolSize tracks the PostgreSQL history pool.
	DBConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_db_connection_pool_size",
			Help:      "History database connection pool size",
		},
		[]string{"pool_type"}, // "active", "idle", "max"
	)

	// DBWaitCount is the cumulative number of connections waited for.
	DBWaitCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_db_wait_count",
			Help:      "Total number of connections waited for",
		},
	)

	// RedisConnectionPoolSize tracks the Redis history pool.
	RedisConnectionPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_redis_connection_pool_size",
			Help:      "History Redis connection pool size",
		},
		[]string{"pool_type"}, // "total", "idle", "stale"
	)
)

// UpdateDBPoolStats updates database connection pool metrics from sql.DBStats.
func UpdateDBPoolStats(stats sql.DBStats) {
	DBConnectionPoolSize.WithLabelValues("active").Set(float64(stats.InUse))
	DBConnectionPoolSize.WithLabelValues("idle").Set(float64(stats.Idle))
	DBConnectionPoolSize.WithLabelValues("max").Set(float64(stats.MaxOpenConnections))
	DBWaitCount.Set(float64(stats.WaitCount))
}

// UpdateRedisPoolStats updates Redis pool metrics. A nil stats is ignored.
func UpdateRedisPoolStats(stats *redis.PoolStats) {
	if stats == nil {
		return
	}
	RedisConnectionPoolSize.WithLabelValues("total").Set(float64(stats.TotalConns))
	RedisConnectionPoolSize.WithLabelValues("idle").Set(float64(stats.IdleConns))
	RedisConnectionPoolSize.WithLabelValues("stale").Set(float64(stats.StaleConns))
}
