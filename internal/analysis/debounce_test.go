package analysis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gatehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAnalyzer remembers the bodies it was asked to analyze.
type recordingAnalyzer struct {
	mu     sync.Mutex
	bodies []string
}

func (r *recordingAnalyzer) Analyze(_ context.Context, _, body string) (Verdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	return Verdict{Clean: true, Severity: models.SeverityNone}, nil
}

func (r *recordingAnalyzer) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.bodies...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDebouncer_RapidEditsCoalesce(t *testing.T) {
	t.Parallel()
	analyzer := &recordingAnalyzer{}
	coord := newTestCoordinator(analyzer, nil)

	var done int64
	deb := NewDebouncer(40*time.Millisecond, coord, func(string, *models.ViolationCheck, error) {
		atomic.AddInt64(&done, 1)
	})
	defer deb.Stop()

	first := testBody + " first draft"
	second := testBody + " second draft"
	deb.Edit("session-1", "Title", first, false)
	deb.Edit("session-1", "Title", second, false)

	waitFor(t, func() bool { return atomic.LoadInt64(&done) == 1 })

	seen := analyzer.seen()
	require.Len(t, seen, 1, "two rapid edits produce one capability call")
	assert.Equal(t, second, seen[0], "only the latest content is analyzed")
}

func TestDebouncer_SeparateSessionsAreIndependent(t *testing.T) {
	t.Parallel()
	analyzer := &recordingAnalyzer{}
	coord := newTestCoordinator(analyzer, nil)

	var done int64
	deb := NewDebouncer(20*time.Millisecond, coord, func(string, *models.ViolationCheck, error) {
		atomic.AddInt64(&done, 1)
	})
	defer deb.Stop()

	deb.Edit("session-a", "Title", testBody+" from a", false)
	deb.Edit("session-b", "Title", testBody+" from b", false)

	waitFor(t, func() bool { return atomic.LoadInt64(&done) == 2 })
	assert.Len(t, analyzer.seen(), 2)
}

func TestDebouncer_CancelBeforeFire(t *testing.T) {
	t.Parallel()
	analyzer := &recordingAnalyzer{}
	coord := newTestCoordinator(analyzer, nil)

	deb := NewDebouncer(50*time.Millisecond, coord, nil)
	defer deb.Stop()

	deb.Edit("session-1", "Title", testBody, false)
	deb.Cancel("session-1")

	time.Sleep(120 * time.Millisecond)
	assert.Empty(t, analyzer.seen(), "a cancelled timer never reaches the capability")
}

func TestDebouncer_CancelIsIdempotent(t *testing.T) {
	t.Parallel()
	coord := newTestCoordinator(&recordingAnalyzer{}, nil)
	deb := NewDebouncer(10*time.Millisecond, coord, nil)
	defer deb.Stop()

	deb.Cancel("never-seen")
	deb.Edit("session-1", "Title", testBody, false)
	deb.Cancel("session-1")
	deb.Cancel("session-1")
}

// An edit arriving while a check is in flight cancels the flight; the stale
// result is discarded and only the newest content's result is delivered.
func TestDebouncer_EditSupersedesInFlightCheck(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	var analyzed int64
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _, body string) (Verdict, error) {
		if atomic.AddInt64(&analyzed, 1) == 1 {
			select {
			case <-block:
			case <-ctx.Done():
				return Verdict{}, ctx.Err()
			}
		}
		return Verdict{Clean: true, Severity: models.SeverityNone}, nil
	}}
	coord := newTestCoordinator(analyzer, nil)

	var mu sync.Mutex
	var delivered []string
	deb := NewDebouncer(10*time.Millisecond, coord, func(_ string, check *models.ViolationCheck, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			delivered = append(delivered, check.Fingerprint)
		} else {
			delivered = append(delivered, "error")
		}
	})
	defer deb.Stop()

	stale := testBody + " stale"
	fresh := testBody + " fresh"

	deb.Edit("session-1", "Title", stale, false)
	waitFor(t, func() bool { return atomic.LoadInt64(&analyzed) == 1 })

	// Supersede while the first check is blocked in flight.
	deb.Edit("session-1", "Title", fresh, false)
	close(block)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 1, "the superseded result is discarded, not delivered")
	assert.Equal(t, Fingerprint("Title", fresh), delivered[0])
}
