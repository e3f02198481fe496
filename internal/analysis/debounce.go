package analysis

import (
	"context"
	"sync"
	"time"

	"gatehouse/internal/models"
	"gatehouse/internal/observability"
)

// ResultFunc receives the outcome of a settled check for a session.
type ResultFunc func(sessionKey string, check *models.ViolationCheck, err error)

// Debouncer coalesces rapid edits into one check per settled content state.
// Each session (one client editing one piece of content) owns at most one
// pending timer and at most one in-flight check; a new edit replaces the
// timer and cancels the in-flight call instead of stacking work.
type Debouncer struct {
	window time.Duration
	coord  *Coordinator
	onDone ResultFunc

	mu       sync.Mutex
	sessions map[string]*editSession
	closed   bool
}

type editSession struct {
	gen         uint64
	timer       *time.Timer
	cancel      context.CancelFunc // cancels the in-flight check, if any
	inflightKey string             // fingerprint of the in-flight check
}

// NewDebouncer returns a debouncer that routes settled edits to coord.
// onDone may be nil.
func NewDebouncer(window time.Duration, coord *Coordinator, onDone ResultFunc) *Debouncer {
	if onDone == nil {
		onDone = func(string, *models.ViolationCheck, error) {}
	}
	return &Debouncer{
		window:   window,
		coord:    coord,
		onDone:   onDone,
		sessions: map[string]*editSession{},
	}
}

// Edit records new content for the session. The check fires after the window
// elapses with no further edits. Any pending timer is replaced and any
// in-flight check for older content is cancelled and forgotten, so the
// capability only ever sees the latest settled content.
func (d *Debouncer) Edit(sessionKey, title, body string, notifyOnSevere bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	s, ok := d.sessions[sessionKey]
	if !ok {
		s = &editSession{}
		d.sessions[sessionKey] = s
	}

	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	d.supersedeInFlightLocked(s)

	s.timer = time.AfterFunc(d.window, func() {
		d.fire(sessionKey, gen, title, body, notifyOnSevere)
	})
	d.mu.Unlock()
}

// fire runs when a timer elapses. The generation check under the lock makes
// cancellation race-free: a timer beaten by a newer Edit or a Cancel observes
// a different generation and does nothing.
func (d *Debouncer) fire(sessionKey string, gen uint64, title, body string, notifyOnSevere bool) {
	d.mu.Lock()
	s, ok := d.sessions[sessionKey]
	if !ok || s.gen != gen || d.closed {
		d.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.inflightKey = Fingerprint(title, body)
	s.timer = nil
	d.mu.Unlock()

	check, err := d.coord.CheckContent(ctx, title, body, notifyOnSevere)
	cancel()

	d.mu.Lock()
	if s.gen == gen {
		s.cancel = nil
		s.inflightKey = ""
		// Session bookkeeping is done; drop idle sessions.
		if s.timer == nil {
			delete(d.sessions, sessionKey)
		}
	}
	superseded := s.gen != gen
	d.mu.Unlock()

	// A superseded result is discarded, not delivered.
	if superseded {
		return
	}
	if err != nil {
		observability.LogAsyncOperationError(ctx, "debounced_check", err, map[string]interface{}{
			"session": sessionKey,
		})
	}
	d.onDone(sessionKey, check, err)
}

// Cancel drops any pending timer and in-flight check for the session.
// Safe to call for unknown sessions.
func (d *Debouncer) Cancel(sessionKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[sessionKey]
	if !ok {
		return
	}
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	d.supersedeInFlightLocked(s)
	delete(d.sessions, sessionKey)
}

// Stop cancels all sessions. The debouncer accepts no further edits.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for key, s := range d.sessions {
		s.gen++
		if s.timer != nil {
			s.timer.Stop()
		}
		d.supersedeInFlightLocked(s)
		delete(d.sessions, key)
	}
}

func (d *Debouncer) supersedeInFlightLocked(s *editSession) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.inflightKey != "" {
		d.coord.Forget(s.inflightKey)
		s.inflightKey = ""
	}
}
