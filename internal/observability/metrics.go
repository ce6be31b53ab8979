package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostOperations counts post service operations by name and outcome code.
	PostOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogsphere_post_operations_total",
		Help: "Total number of post operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// DatabaseQueryLatency records aggregator and repository latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blogsphere_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ChatConnections is the gauge of active chat WebSocket connections on this instance.
	ChatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blogsphere_chat_connections",
		Help: "Number of active chat WebSocket connections",
	})

	// ChatMessages counts chat messages by direction (inbound, relayed, dropped).
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogsphere_chat_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"direction"})

	// RedisErrors counts Redis errors by operation.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blogsphere_redis_errors_total",
		Help: "Total number of Redis errors by operation",
	}, []string{"operation"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordPostOperation increments the post operation counter.
// An empty outcome is recorded as "ok".
func RecordPostOperation(operation, outcome string) {
	if outcome == "" {
		outcome = "ok"
	}
	PostOperations.WithLabelValues(operation, outcome).Inc()
}
