// Package notification exposes each principal's notification inbox.
// Principals only ever see and acknowledge their own notifications;
// everything else behaves as if it did not exist.
package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type UseCase struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger

	// Now is the clock used for read receipts; tests pin it.
	Now func() time.Time
}

func New(notifications repository.NotificationRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		notifications: notifications,
		logger:        logger,
		Now:           time.Now,
	}
}

// List returns the actor's notifications, newest first.
func (uc *UseCase) List(ctx context.Context, actor domain.Principal, filter repository.NotificationFilter) ([]domain.Notification, error) {
	if !actor.Active {
		return nil, domain.Errorf(domain.ErrCodeForbidden, "principal %s is deactivated", actor.ID)
	}
	return uc.notifications.ListByRecipient(ctx, actor.ID, filter)
}

// MarkRead acknowledges one of the actor's notifications. Notifications
// addressed to someone else report not-found, and re-reading an already
// read notification is a no-op.
func (uc *UseCase) MarkRead(ctx context.Context, actor domain.Principal, notificationID string) error {
	if !actor.Active {
		return domain.Errorf(domain.ErrCodeForbidden, "principal %s is deactivated", actor.ID)
	}
	return uc.notifications.MarkRead(ctx, notificationID, actor.ID, uc.Now())
}

// MarkAllRead acknowledges every unread notification of the actor and
// reports how many it touched.
func (uc *UseCase) MarkAllRead(ctx context.Context, actor domain.Principal) (int, error) {
	if !actor.Active {
		return 0, domain.Errorf(domain.ErrCodeForbidden, "principal %s is deactivated", actor.ID)
	}
	n, err := uc.notifications.MarkAllRead(ctx, actor.ID, uc.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.logger.Debug("notifications acknowledged",
			zap.String("recipient_id", actor.ID),
			zap.Int("count", n))
	}
	return n, nil
}

// CountUnread returns the badge count for the actor's inbox.
func (uc *UseCase) CountUnread(ctx context.Context, actor domain.Principal) (int, error) {
	if !actor.Active {
		return 0, domain.Errorf(domain.ErrCodeForbidden, "principal %s is deactivated", actor.ID)
	}
	return uc.notifications.CountUnread(ctx, actor.ID)
}
