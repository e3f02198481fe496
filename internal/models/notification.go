package models

import "time"

// NotificationType identifies the kind of fan-out event.
type NotificationType string

const (
	NotifyPostSubmitted    NotificationType = "post.submitted"
	NotifyPostApproved     NotificationType = "post.approved"
	NotifyPostRejected     NotificationType = "post.rejected"
	NotifyViolationFlagged NotificationType = "violation.flagged"
)

// TargetSelector decides which live subscribers receive an event.
type TargetSelector string

const (
	TargetAuthorOnly          TargetSelector = "author_only"
	TargetModeratorsAndAdmins TargetSelector = "moderators_and_admins"
	TargetBroadcast           TargetSelector = "broadcast"
)

// NotificationEvent is a single fan-out message. Delivery is attempted once
// per live subscriber; there is no offline queue.
type NotificationEvent struct {
	Type      NotificationType `json:"type"`
	PostID    uint             `json:"post_id,omitempty"`
	AuthorID  uint             `json:"author_id,omitempty"`
	Target    TargetSelector   `json:"-"`
	Payload   map[string]any   `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
