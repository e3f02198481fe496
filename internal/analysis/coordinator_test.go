package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gatehouse/internal/models"
	"gatehouse/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = validation.ContentPolicy{MinTitleLen: 3, MinBodyLen: 20}

const testBody = "a body comfortably above the minimum length"

// fakeAnalyzer counts invocations and delegates to fn.
type fakeAnalyzer struct {
	calls int64
	fn    func(ctx context.Context, title, body string) (Verdict, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, title, body string) (Verdict, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.fn != nil {
		return f.fn(ctx, title, body)
	}
	return Verdict{Clean: true, Severity: models.SeverityNone}, nil
}

func (f *fakeAnalyzer) callCount() int64 { return atomic.LoadInt64(&f.calls) }

type capturePublisher struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (p *capturePublisher) Publish(_ context.Context, event models.NotificationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []models.NotificationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.NotificationEvent{}, p.events...)
}

func newTestCoordinator(analyzer Analyzer, pub Publisher) *Coordinator {
	return NewCoordinator(analyzer, NewCheckCache(128, time.Minute), pub, testPolicy, time.Second)
}

func TestCoordinator_BelowFloorNeverCallsCapability(t *testing.T) {
	t.Parallel()
	analyzer := &fakeAnalyzer{}
	coord := newTestCoordinator(analyzer, nil)

	check, err := coord.CheckContent(context.Background(), "T", "short", true)
	require.NoError(t, err)
	assert.False(t, check.Evaluated, "sub-threshold content is unevaluated, not clean")
	assert.False(t, check.Clean)
	assert.EqualValues(t, 0, analyzer.callCount())
}

func TestCoordinator_CachesByFingerprint(t *testing.T) {
	t.Parallel()
	analyzer := &fakeAnalyzer{}
	coord := newTestCoordinator(analyzer, nil)
	ctx := context.Background()

	first, err := coord.CheckContent(ctx, "Title", testBody, false)
	require.NoError(t, err)
	assert.True(t, first.Evaluated)

	// Identical normalized content within the TTL: no second call.
	second, err := coord.CheckContent(ctx, "  TITLE  ", strings.ToUpper(testBody), false)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.EqualValues(t, 1, analyzer.callCount())

	// Different content is a fresh fingerprint and a fresh call.
	_, err = coord.CheckContent(ctx, "Another title", testBody, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, analyzer.callCount())
}

func TestCoordinator_ConcurrentCallsShareOneFlight(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _, _ string) (Verdict, error) {
		close(started)
		<-release
		return Verdict{Clean: true, Severity: models.SeverityNone}, nil
	}}
	coord := newTestCoordinator(analyzer, nil)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*models.ViolationCheck, n)
	errs := make([]error, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = coord.CheckContent(context.Background(), "Title", testBody, false)
	}()
	<-started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.CheckContent(context.Background(), "Title", testBody, false)
		}(i)
	}
	// Give the late callers a moment to join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, analyzer.callCount(), "N concurrent callers share one capability call")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Fingerprint, results[i].Fingerprint)
	}
}

func TestCoordinator_SevereFindingEscalatesOnce(t *testing.T) {
	t.Parallel()
	analyzer := &fakeAnalyzer{fn: func(context.Context, string, string) (Verdict, error) {
		return Verdict{
			Clean:    false,
			Severity: models.SeverityCritical,
			Findings: []models.Finding{{Description: "disallowed content", Category: "abuse"}},
		}, nil
	}}
	pub := &capturePublisher{}
	coord := newTestCoordinator(analyzer, pub)

	check, err := coord.CheckContent(context.Background(), "Title", testBody, true)
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, check.Severity)

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, models.NotifyViolationFlagged, events[0].Type)
	assert.Equal(t, models.TargetModeratorsAndAdmins, events[0].Target)

	// Cached result does not re-escalate.
	_, err = coord.CheckContent(context.Background(), "Title", testBody, true)
	require.NoError(t, err)
	assert.Len(t, pub.all(), 1)
}

func TestCoordinator_SevereWithoutNotifyStaysQuiet(t *testing.T) {
	t.Parallel()
	analyzer := &fakeAnalyzer{fn: func(context.Context, string, string) (Verdict, error) {
		return Verdict{Clean: false, Severity: models.SeverityHigh}, nil
	}}
	pub := &capturePublisher{}
	coord := newTestCoordinator(analyzer, pub)

	_, err := coord.CheckContent(context.Background(), "Title", testBody, false)
	require.NoError(t, err)
	assert.Empty(t, pub.all())
}

func TestCoordinator_FailureIsUnavailableAndUncached(t *testing.T) {
	t.Parallel()
	fail := int64(1)
	analyzer := &fakeAnalyzer{fn: func(context.Context, string, string) (Verdict, error) {
		if atomic.LoadInt64(&fail) == 1 {
			return Verdict{}, errors.New("upstream 503")
		}
		return Verdict{Clean: true, Severity: models.SeverityNone}, nil
	}}
	coord := newTestCoordinator(analyzer, nil)
	ctx := context.Background()

	_, err := coord.CheckContent(ctx, "Title", testBody, false)
	require.ErrorIs(t, err, models.ErrAnalysisUnavailable)

	// Nothing cached: the immediate retry reaches the capability again.
	atomic.StoreInt64(&fail, 0)
	check, err := coord.CheckContent(ctx, "Title", testBody, false)
	require.NoError(t, err)
	assert.True(t, check.Evaluated)
	assert.EqualValues(t, 2, analyzer.callCount())
}

func TestCoordinator_TimeoutIsUnavailable(t *testing.T) {
	t.Parallel()
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _, _ string) (Verdict, error) {
		<-ctx.Done()
		return Verdict{}, ctx.Err()
	}}
	coord := NewCoordinator(analyzer, NewCheckCache(16, time.Minute), nil, testPolicy, 20*time.Millisecond)

	_, err := coord.CheckContent(context.Background(), "Title", testBody, false)
	require.ErrorIs(t, err, models.ErrAnalysisUnavailable)
}
