// Package service contains the application's domain logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/repository"
	"gatehouse/internal/validation"
)

// Publisher delivers notification events to live subscribers. Delivery is
// best-effort; publish never returns an error to the caller.
type Publisher interface {
	Publish(ctx context.Context, event models.NotificationEvent)
}

// NopPublisher discards events. Used where no fan-out hub is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.NotificationEvent) {}

// TransitionRequest carries one requested status change.
type TransitionRequest struct {
	PostID    uint
	ActorID   uint
	ActorRole models.Role
	Target    models.PostStatus
	Notes     string

	// Replacement content, honored only on author resubmission.
	NewTitle    *string
	NewBody     *string
	NewCategory *string
}

// ModerationService owns transition legality and per-post serialization.
// All status changes go through RequestTransition; nothing else writes
// Post.Status.
type ModerationService struct {
	posts     repository.PostRepository
	events    repository.ModerationEventRepository
	publisher Publisher
	policy    validation.ContentPolicy

	locks postLocks
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	posts repository.PostRepository,
	events repository.ModerationEventRepository,
	publisher Publisher,
	policy validation.ContentPolicy,
) *ModerationService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &ModerationService{
		posts:     posts,
		events:    events,
		publisher: publisher,
		policy:    policy,
		locks:     postLocks{entries: map[uint]*postLockEntry{}},
	}
}

// transitionRule describes one legal (from, target) pair and its guard.
// Guards return nil to allow, or a Forbidden error explaining the refusal.
type transitionRule struct {
	from  models.PostStatus
	guard func(s *ModerationService, post *models.Post, req TransitionRequest) error
}

var transitionTable = map[models.PostStatus][]transitionRule{
	models.StatusPending: {
		{
			// draft -> pending: author submits.
			from: models.StatusDraft,
			guard: func(s *ModerationService, post *models.Post, req TransitionRequest) error {
				if post.AuthorID != req.ActorID {
					return models.NewForbiddenError("Only the author may submit a post")
				}
				if err := s.policy.CheckSubmittable(post.Title, post.Body); err != nil {
					return models.NewForbiddenError(err.Error())
				}
				return nil
			},
		},
		{
			// rejected -> pending: author resubmits, optionally with revised content.
			from: models.StatusRejected,
			guard: func(s *ModerationService, post *models.Post, req TransitionRequest) error {
				if post.AuthorID != req.ActorID {
					return models.NewForbiddenError("Only the author may resubmit a post")
				}
				title, body := post.Title, post.Body
				if req.NewTitle != nil {
					title = *req.NewTitle
				}
				if req.NewBody != nil {
					body = *req.NewBody
				}
				if err := s.policy.CheckSubmittable(title, body); err != nil {
					return models.NewForbiddenError(err.Error())
				}
				return nil
			},
		},
	},
	models.StatusApproved: {
		{
			from: models.StatusPending,
			guard: func(s *ModerationService, post *models.Post, req TransitionRequest) error {
				if !req.ActorRole.CanModerate() {
					return models.NewForbiddenError("Only moderators and admins may approve posts")
				}
				return nil
			},
		},
	},
	models.StatusRejected: {
		{
			from: models.StatusPending,
			guard: func(s *ModerationService, post *models.Post, req TransitionRequest) error {
				if !req.ActorRole.CanModerate() {
					return models.NewForbiddenError("Only moderators and admins may reject posts")
				}
				if strings.TrimSpace(req.Notes) == "" {
					return models.NewForbiddenError("Rejection requires review notes")
				}
				return nil
			},
		},
	},
}

// RequestTransition applies one status change. The post's status and the
// moderation log entry commit atomically; exactly one notification is
// emitted on success. Concurrent requests for the same post are serialized;
// the loser observes the new status and fails cleanly instead of leaving a
// half-applied state.
func (s *ModerationService) RequestTransition(ctx context.Context, req TransitionRequest) (*models.Post, error) {
	if !req.Target.Valid() {
		return nil, fmt.Errorf("unknown target status %q: %w", req.Target, models.ErrInvalidTransition)
	}

	unlock := s.locks.lock(req.PostID)
	defer unlock()

	post, err := s.posts.GetByID(ctx, req.PostID)
	if err != nil {
		return nil, err
	}

	rule, ok := findRule(post.Status, req.Target)
	if !ok {
		return nil, fmt.Errorf("no transition %s -> %s: %w", post.Status, req.Target, models.ErrInvalidTransition)
	}
	if err := rule.guard(s, post, req); err != nil {
		return nil, err
	}

	t := repository.StatusTransition{
		PostID:      req.PostID,
		From:        post.Status,
		To:          req.Target,
		ActorID:     req.ActorID,
		ActorRole:   req.ActorRole,
		NewTitle:    req.NewTitle,
		NewBody:     req.NewBody,
		NewCategory: req.NewCategory,
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		t.Notes = &notes
	} else if post.Status == models.StatusRejected && req.Target == models.StatusPending {
		// Resubmission starts a fresh review.
		t.ClearNotes = true
	}

	updated, err := s.posts.Transition(ctx, t)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			middleware.TransitionConflicts.Inc()
		}
		return nil, err
	}

	middleware.ModerationTransitions.WithLabelValues(string(t.From), string(t.To)).Inc()
	s.publisher.Publish(ctx, transitionEvent(updated, t))
	return updated, nil
}

func findRule(from, to models.PostStatus) (transitionRule, bool) {
	for _, rule := range transitionTable[to] {
		if rule.from == from {
			return rule, true
		}
	}
	return transitionRule{}, false
}

// transitionEvent maps a committed transition to its fan-out event.
// Approve/reject go to the author; submissions (and resubmissions) go to
// the review audience.
func transitionEvent(post *models.Post, t repository.StatusTransition) models.NotificationEvent {
	event := models.NotificationEvent{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		CreatedAt: time.Now(),
		Payload: map[string]any{
			"post_id": post.ID,
			"title":   post.Title,
			"status":  string(post.Status),
		},
	}

	switch t.To {
	case models.StatusApproved:
		event.Type = models.NotifyPostApproved
		event.Target = models.TargetAuthorOnly
	case models.StatusRejected:
		event.Type = models.NotifyPostRejected
		event.Target = models.TargetAuthorOnly
		if t.Notes != nil {
			event.Payload["notes"] = *t.Notes
		}
	default: // pending (submit and resubmit)
		event.Type = models.NotifyPostSubmitted
		event.Target = models.TargetModeratorsAndAdmins
		event.Payload["resubmission"] = t.From == models.StatusRejected
	}
	return event
}

// History returns the ordered moderation log for a post. Authors see their
// own history; moderators and admins see any.
func (s *ModerationService) History(ctx context.Context, postID, actorID uint, actorRole models.Role) ([]models.ModerationEvent, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID && !actorRole.CanModerate() {
		return nil, models.NewForbiddenError("Not allowed to view this post's moderation history")
	}
	return s.events.ListByPost(ctx, postID)
}

// ReviewQueue lists pending posts for moderators, oldest activity first
// handled by the repository ordering.
func (s *ModerationService) ReviewQueue(ctx context.Context, actorRole models.Role, limit, offset int) ([]*models.Post, error) {
	if !actorRole.CanModerate() {
		return nil, models.NewForbiddenError("Only moderators and admins may view the review queue")
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	posts, err := s.posts.ListByStatus(ctx, models.StatusPending, limit, offset)
	if err != nil {
		return nil, err
	}
	if count, err := s.posts.CountByStatus(ctx, models.StatusPending); err == nil {
		middleware.ReviewQueueSize.Set(float64(count))
	} else {
		slog.WarnContext(ctx, "failed to refresh review queue gauge", "err", err)
	}
	return posts, nil
}

// postLocks hands out one mutex per post ID, reference-counted so entries
// for idle posts do not accumulate.
type postLocks struct {
	mu      sync.Mutex
	entries map[uint]*postLockEntry
}

type postLockEntry struct {
	mu   sync.Mutex
	refs int
}

func (l *postLocks) lock(postID uint) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.entries[postID]
	if !ok {
		entry = &postLockEntry{}
		l.entries[postID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, postID)
		}
		l.mu.Unlock()
	}
}
