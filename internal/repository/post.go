// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatehouse/internal/cache"
	"gatehouse/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]*models.Post, error)
	ListByStatus(ctx context.Context, status models.PostStatus, limit, offset int) ([]*models.Post, error)
	ListApproved(ctx context.Context, category string, limit, offset int) ([]*models.Post, error)
	CountByStatus(ctx context.Context, status models.PostStatus) (int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	Transition(ctx context.Context, t StatusTransition) (*models.Post, error)
}

// StatusTransition describes a single recorded status change. The update is
// conditional on From still being the current status; a concurrent transition
// that got there first surfaces as models.ErrConflict.
type StatusTransition struct {
	PostID      uint
	From        models.PostStatus
	To          models.PostStatus
	ActorID     uint
	ActorRole   models.Role
	Notes       *string
	ClearNotes  bool
	NewTitle    *string
	NewBody     *string
	NewCategory *string
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByStatus(ctx context.Context, status models.PostStatus, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("status = ?", status).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListApproved(ctx context.Context, category string, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	q := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("status = ?", models.StatusApproved)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Order("last_transition_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) CountByStatus(ctx context.Context, status models.PostStatus) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Post{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

// Transition atomically applies a status change and records it in the
// moderation log. The UPDATE is conditional on the expected current status,
// so two racing transitions cannot both succeed: the loser sees zero rows
// updated and gets models.ErrConflict.
func (r *postRepository) Transition(ctx context.Context, t StatusTransition) (*models.Post, error) {
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":             t.To,
			"last_transition_at": now,
			"updated_at":         now,
		}
		if t.ActorRole.CanModerate() {
			updates["last_moderator_id"] = t.ActorID
		}
		if t.Notes != nil {
			updates["review_notes"] = *t.Notes
		} else if t.ClearNotes {
			updates["review_notes"] = ""
		}
		if t.NewTitle != nil {
			updates["title"] = *t.NewTitle
		}
		if t.NewBody != nil {
			updates["body"] = *t.NewBody
		}
		if t.NewCategory != nil {
			updates["category"] = *t.NewCategory
		}

		res := tx.Model(&models.Post{}).
			Where("id = ? AND status = ?", t.PostID, t.From).
			Updates(updates)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("post %d is no longer %s: %w", t.PostID, t.From, models.ErrConflict)
		}

		event := models.ModerationEvent{
			PostID:     t.PostID,
			FromStatus: t.From,
			ToStatus:   t.To,
			ActorID:    t.ActorID,
			ActorRole:  t.ActorRole,
			Notes:      t.Notes,
		}
		if err := tx.Create(&event).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, t.PostID)
	return r.GetByID(ctx, t.PostID)
}
