package models

import "time"

// ModerationEvent records one status transition of a post. Rows are
// append-only; they form the audit trail and a total order per post.
type ModerationEvent struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	PostID     uint       `gorm:"not null;index" json:"post_id"`
	FromStatus PostStatus `gorm:"not null" json:"from_status"`
	ToStatus   PostStatus `gorm:"not null" json:"to_status"`
	ActorID    uint       `gorm:"not null" json:"actor_id"`
	ActorRole  Role       `gorm:"not null" json:"actor_role"`
	Notes      *string    `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
