package repository

import (
	"context"

	"gatehouse/internal/models"

	"gorm.io/gorm"
)

// ModerationEventRepository reads the append-only moderation log. Writes
// happen inside PostRepository.Transition so the log entry and the status
// change commit together.
type ModerationEventRepository interface {
	ListByPost(ctx context.Context, postID uint) ([]models.ModerationEvent, error)
	ListRecent(ctx context.Context, limit int) ([]models.ModerationEvent, error)
}

type moderationEventRepository struct {
	db *gorm.DB
}

// NewModerationEventRepository returns a new ModerationEventRepository implementation.
func NewModerationEventRepository(db *gorm.DB) ModerationEventRepository {
	return &moderationEventRepository{db: db}
}

func (r *moderationEventRepository) ListByPost(ctx context.Context, postID uint) ([]models.ModerationEvent, error) {
	var events []models.ModerationEvent
	if err := readDB(r.db).WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *moderationEventRepository) ListRecent(ctx context.Context, limit int) ([]models.ModerationEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.ModerationEvent
	if err := readDB(r.db).WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}
