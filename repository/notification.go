package repository

import (
	"context"
	"time"

	"github.com/taskforge/backend/domain"
)

// NotificationFilter narrows ListByRecipient.
type NotificationFilter struct {
	UnreadOnly bool
	Kind       domain.NotificationKind
	Limit      int
	Offset     int
}

type NotificationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, filter NotificationFilter) ([]domain.Notification, error)
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	// Exists reports whether a notification with the same recipient, task,
	// kind and due date was already produced. DueAt may be nil for kinds
	// that do not key on a due date.
	Exists(ctx context.Context, recipientID, taskID string, kind domain.NotificationKind, dueAt *time.Time) (bool, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}
