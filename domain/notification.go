package domain

import "time"

// NotificationKind names the reason a notification was produced.
type NotificationKind string

const (
	NotificationAssigned  NotificationKind = "assigned"
	NotificationMentioned NotificationKind = "mentioned"
	NotificationCommented NotificationKind = "commented"
	NotificationCompleted NotificationKind = "completed"
	NotificationDueSoon   NotificationKind = "due_soon"
	NotificationOverdue   NotificationKind = "overdue"
)

// Notification is a per-recipient record of something that happened to a
// task the recipient cares about. ReadAt is its only mutable field.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Kind        NotificationKind `json:"kind"`
	TaskID      string           `json:"task_id"`
	CommentID   string           `json:"comment_id,omitempty"`
	ActorID     string           `json:"actor_id,omitempty"`
	DueAt       *time.Time       `json:"due_at,omitempty"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (n *Notification) IsRead() bool {
	return n != nil && n.ReadAt != nil
}
