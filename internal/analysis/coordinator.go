package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/observability"
	"gatehouse/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// Publisher is the slice of the fan-out service the coordinator needs.
type Publisher interface {
	Publish(ctx context.Context, event models.NotificationEvent)
}

// EscalationThreshold is the severity at or above which a completed check
// emits a violation.flagged event.
const EscalationThreshold = models.SeverityHigh

// Coordinator owns the call discipline around the analysis capability:
// minimum-content gating, two-tier caching, at-most-one in-flight call per
// fingerprint, and severity escalation. It is safe for concurrent use.
type Coordinator struct {
	analyzer  Analyzer
	cache     *CheckCache
	publisher Publisher
	policy    validation.ContentPolicy
	timeout   time.Duration

	group singleflight.Group
}

// NewCoordinator wires a coordinator. publisher may be nil when escalation
// fan-out is not needed (tests, offline tooling).
func NewCoordinator(
	analyzer Analyzer,
	cache *CheckCache,
	publisher Publisher,
	policy validation.ContentPolicy,
	timeout time.Duration,
) *Coordinator {
	return &Coordinator{
		analyzer:  analyzer,
		cache:     cache,
		publisher: publisher,
		policy:    policy,
		timeout:   timeout,
	}
}

// CheckContent produces a safety verdict for the given content.
//
// Sub-threshold content returns an unevaluated check without touching the
// capability. A cached result for the fingerprint is returned as-is.
// Otherwise at most one capability call runs per fingerprint; concurrent
// callers share its outcome. Failures surface as ErrAnalysisUnavailable and
// are never cached, so an immediate retry attempts a fresh call.
func (c *Coordinator) CheckContent(ctx context.Context, title, body string, notifyOnSevere bool) (*models.ViolationCheck, error) {
	fingerprint := Fingerprint(title, body)

	if !c.policy.MeetsFloor(title, body) {
		return &models.ViolationCheck{
			Fingerprint: fingerprint,
			Evaluated:   false,
			Severity:    models.SeverityNone,
			ComputedAt:  time.Now(),
		}, nil
	}

	if check, tier, ok := c.cache.Get(ctx, fingerprint); ok {
		middleware.AnalysisCacheHits.WithLabelValues(tier).Inc()
		return check, nil
	}

	result, err, shared := c.group.Do(fingerprint, func() (interface{}, error) {
		return c.analyze(ctx, fingerprint, title, body, notifyOnSevere)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		middleware.AnalysisCacheHits.WithLabelValues("inflight").Inc()
	}

	check := result.(models.ViolationCheck)
	return &check, nil
}

// analyze runs exactly once per fingerprint per flight.
func (c *Coordinator) analyze(ctx context.Context, fingerprint, title, body string, notifyOnSevere bool) (interface{}, error) {
	span, ctx := observability.NewSpan(ctx, "analysis.check")
	defer span.End()
	span.AddAttributes(attribute.String("analysis.fingerprint", fingerprint[:12]))

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	verdict, err := c.analyzer.Analyze(callCtx, title, body)
	middleware.AnalysisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		middleware.AnalysisCalls.WithLabelValues("error").Inc()
		span.SetError(err)
		// Indeterminate, never "clean". Nothing is cached so the next
		// caller retries immediately.
		return nil, fmt.Errorf("analysis failed for fingerprint %s: %w", fingerprint[:12], models.ErrAnalysisUnavailable)
	}
	middleware.AnalysisCalls.WithLabelValues("ok").Inc()

	check := models.ViolationCheck{
		Fingerprint: fingerprint,
		Evaluated:   true,
		Clean:       verdict.Clean,
		Severity:    verdict.Severity,
		Findings:    verdict.Findings,
		ComputedAt:  time.Now(),
	}
	c.cache.Set(ctx, fingerprint, check)
	span.AddAttributes(attribute.String("analysis.severity", string(check.Severity)))

	if notifyOnSevere && check.Severity.AtLeast(EscalationThreshold) && c.publisher != nil {
		slog.WarnContext(ctx, "severe content flagged",
			slog.String("fingerprint", fingerprint[:12]),
			slog.String("severity", string(check.Severity)),
		)
		c.publisher.Publish(ctx, models.NotificationEvent{
			Type:      models.NotifyViolationFlagged,
			Target:    models.TargetModeratorsAndAdmins,
			CreatedAt: time.Now(),
			Payload: map[string]any{
				"fingerprint": check.Fingerprint,
				"severity":    string(check.Severity),
				"findings":    check.Findings,
			},
		})
	}

	return check, nil
}

// Forget drops any in-flight computation for the fingerprint so later calls
// start fresh instead of attaching to a superseded flight. Used by the
// debouncer when newer content cancels an outstanding check.
func (c *Coordinator) Forget(fingerprint string) {
	c.group.Forget(fingerprint)
}
