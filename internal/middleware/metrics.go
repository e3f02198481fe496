package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSockets is the gauge of live notification connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_active_websockets",
		Help: "Number of active WebSocket connections",
	})

	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ModerationTransitions counts committed status transitions.
	ModerationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_moderation_transitions_total",
		Help: "Total number of committed moderation transitions by from/to status",
	}, []string{"from", "to"})

	// TransitionConflicts counts transitions lost to a concurrent winner.
	TransitionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_moderation_transition_conflicts_total",
		Help: "Total number of transition requests that lost a race",
	})

	// ReviewQueueSize is the number of posts currently pending review.
	ReviewQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_review_queue_size",
		Help: "Number of posts pending moderator review",
	})

	// AnalysisCalls counts calls to the external analysis capability by outcome.
	AnalysisCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_analysis_calls_total",
		Help: "Total analysis capability invocations by outcome",
	}, []string{"outcome"})

	// AnalysisCacheHits counts violation-check lookups served without an
	// analysis call, by cache tier.
	AnalysisCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_analysis_cache_hits_total",
		Help: "Violation checks answered from cache by tier (local, redis, inflight)",
	}, []string{"tier"})

	// AnalysisLatency records analysis capability call latency.
	AnalysisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gatehouse_analysis_latency_seconds",
		Help:    "Latency of analysis capability calls",
		Buckets: prometheus.DefBuckets,
	})

	// NotificationsPublished counts fan-out events by type and target.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_notifications_published_total",
		Help: "Total notification events published by type and target",
	}, []string{"type", "target"})

	// NotificationDrops counts per-subscriber deliveries dropped by reason.
	NotificationDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_notification_drops_total",
		Help: "Notification deliveries dropped by reason",
	}, []string{"reason"})
)

// InitMetrics sets up the fiberprometheus middleware under the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	prom := fiberprometheus.New(serviceName)
	return prom
}

// MetricsMiddleware returns the request-instrumentation handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}

// RegisterMetricsRoute exposes the Prometheus scrape endpoint on the app.
func RegisterMetricsRoute(app *fiber.App, prom *fiberprometheus.FiberPrometheus) {
	prom.RegisterAt(app, "/metrics")
}
