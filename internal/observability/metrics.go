package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records query latency by outcome (ok, slow, error).
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_database_query_latency_seconds",
		Help:    "Database query latency in seconds by outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// PresenceOnlineUsers is the gauge of users currently marked online.
	PresenceOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_presence_online_users",
		Help: "Number of users currently tracked as online",
	})
)

// ObserveQuery records one database query with its outcome bucket.
func ObserveQuery(outcome string, elapsed time.Duration) {
	DatabaseQueryLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
