package memory

import (
	"context"
	"sort"
	"time"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type notificationStore struct{ s *Store }

var _ repository.NotificationRepository = notificationStore{}

func cloneNotification(n *domain.Notification) *domain.Notification {
	cp := *n
	if n.DueAt != nil {
		due := *n.DueAt
		cp.DueAt = &due
	}
	if n.ReadAt != nil {
		read := *n.ReadAt
		cp.ReadAt = &read
	}
	return &cp
}

func (v notificationStore) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	n, ok := v.s.notifications[id]
	if !ok {
		return nil, domain.ErrNotificationNotFound
	}
	return cloneNotification(n), nil
}

func (v notificationStore) ListByRecipient(ctx context.Context, recipientID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []domain.Notification
	for _, n := range v.s.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if filter.UnreadOnly && n.IsRead() {
			continue
		}
		if filter.Kind != "" && n.Kind != filter.Kind {
			continue
		}
		out = append(out, *cloneNotification(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return v.s.seq[out[i].ID] > v.s.seq[out[j].ID]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (v notificationStore) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.notifications[n.ID]; ok {
		return nil, domain.NewError(domain.ErrCodeConflict, "notification already exists")
	}
	v.s.notifications[n.ID] = cloneNotification(n)
	v.s.track(n.ID)
	return cloneNotification(n), nil
}

func (v notificationStore) Exists(ctx context.Context, recipientID, taskID string, kind domain.NotificationKind, dueAt *time.Time) (bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, n := range v.s.notifications {
		if n.RecipientID != recipientID || n.TaskID != taskID || n.Kind != kind {
			continue
		}
		if dueAt == nil && n.DueAt == nil {
			return true, nil
		}
		if dueAt != nil && n.DueAt != nil && dueAt.Equal(*n.DueAt) {
			return true, nil
		}
	}
	return false, nil
}

func (v notificationStore) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	n, ok := v.s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		read := at
		n.ReadAt = &read
	}
	return nil
}

func (v notificationStore) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	updated := 0
	for _, n := range v.s.notifications {
		if n.RecipientID != recipientID || n.ReadAt != nil {
			continue
		}
		read := at
		n.ReadAt = &read
		updated++
	}
	return updated, nil
}

func (v notificationStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	count := 0
	for _, n := range v.s.notifications {
		if n.RecipientID == recipientID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}
