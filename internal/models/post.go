package models

import (
	"time"

	"gorm.io/gorm"
)

// PostStatus is the moderation lifecycle state of a post.
type PostStatus string

const (
	StatusDraft    PostStatus = "draft"
	StatusPending  PostStatus = "pending"
	StatusApproved PostStatus = "approved"
	StatusRejected PostStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Post is a unit of content under review. Status only changes through a
// recorded moderation transition; title and body are owned by the author.
type Post struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	AuthorID         uint           `gorm:"not null;index" json:"author_id"`
	Author           User           `gorm:"foreignKey:AuthorID" json:"author"`
	Category         string         `gorm:"index" json:"category"`
	Title            string         `gorm:"not null" json:"title"`
	Body             string         `gorm:"not null" json:"body"`
	Status           PostStatus     `gorm:"not null;default:draft;index" json:"status"`
	ReviewNotes      string         `json:"review_notes,omitempty"`
	LastTransitionAt *time.Time     `json:"last_transition_at,omitempty"`
	LastModeratorID  *uint          `json:"last_moderator_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
