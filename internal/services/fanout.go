package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

// DefaultDueSoonLookahead is how far ahead of the due date the reminder
// fires when the caller does not say otherwise.
const DefaultDueSoonLookahead = 24 * time.Hour

// scanBatchSize pages the due-date scans so one sweep never loads the whole
// task table.
const scanBatchSize = 200

// Fanout turns lifecycle events into per-recipient notifications and runs
// the due-date sweeps. The acting principal is never notified of their own
// action, and a mention outranks the plain commented notification for the
// same comment.
type Fanout struct {
	notifications repository.NotificationRepository
	tasks         repository.TaskRepository
	logger        *zap.Logger
}

func NewFanout(notifications repository.NotificationRepository, tasks repository.TaskRepository, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		notifications: notifications,
		tasks:         tasks,
		logger:        logger,
	}
}

func (f *Fanout) Name() string { return "notification-fanout" }

func (f *Fanout) Handle(ctx context.Context, event domain.Event) error {
	switch event.Kind {
	case domain.EventTaskCreated, domain.EventTaskAssigned:
		return f.notifyAssigned(ctx, event)
	case domain.EventStatusChanged, domain.EventTaskCompleted:
		if !event.CompletesTask() {
			return nil
		}
		return f.notifyCompleted(ctx, event)
	case domain.EventTaskCommented:
		return f.notifyCommented(ctx, event)
	default:
		return nil
	}
}

// notifyAssigned reaches every assignee the event added. Creation counts
// all initial assignees as added, which also covers instances stamped out
// by recurrence rules.
func (f *Fanout) notifyAssigned(ctx context.Context, event domain.Event) error {
	for _, recipient := range event.AddedAssignees() {
		if recipient == event.ActorID {
			continue
		}
		if _, err := f.create(ctx, domain.Notification{
			RecipientID: recipient,
			Kind:        domain.NotificationAssigned,
			TaskID:      event.TaskID,
			ActorID:     event.ActorID,
			CreatedAt:   event.OccurredAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fanout) notifyCompleted(ctx context.Context, event domain.Event) error {
	if event.After == nil || event.After.OwnerID == event.ActorID {
		return nil
	}
	_, err := f.create(ctx, domain.Notification{
		RecipientID: event.After.OwnerID,
		Kind:        domain.NotificationCompleted,
		TaskID:      event.TaskID,
		ActorID:     event.ActorID,
		CreatedAt:   event.OccurredAt,
	})
	return err
}

func (f *Fanout) notifyCommented(ctx context.Context, event domain.Event) error {
	notified := map[string]struct{}{event.ActorID: {}}
	for _, recipient := range event.MentionedIDs {
		if _, done := notified[recipient]; done {
			continue
		}
		notified[recipient] = struct{}{}
		if _, err := f.create(ctx, domain.Notification{
			RecipientID: recipient,
			Kind:        domain.NotificationMentioned,
			TaskID:      event.TaskID,
			CommentID:   event.CommentID,
			ActorID:     event.ActorID,
			CreatedAt:   event.OccurredAt,
		}); err != nil {
			return err
		}
	}
	if event.After == nil {
		return nil
	}
	for _, recipient := range event.After.Participants() {
		if _, done := notified[recipient]; done {
			continue
		}
		notified[recipient] = struct{}{}
		if _, err := f.create(ctx, domain.Notification{
			RecipientID: recipient,
			Kind:        domain.NotificationCommented,
			TaskID:      event.TaskID,
			CommentID:   event.CommentID,
			ActorID:     event.ActorID,
			CreatedAt:   event.OccurredAt,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ScanDueSoon reminds owner and assignees of open tasks falling due within
// the lookahead window. Repeated sweeps are idempotent: at most one
// reminder per recipient, task and due date.
func (f *Fanout) ScanDueSoon(ctx context.Context, now time.Time, lookahead time.Duration) ([]domain.Notification, error) {
	if lookahead <= 0 {
		lookahead = DefaultDueSoonLookahead
	}
	to := now.Add(lookahead)
	return f.scanWindow(ctx, domain.NotificationDueSoon, now, repository.TaskFilter{
		DueFrom:          &now,
		DueTo:            &to,
		ExcludeCompleted: true,
	}, func(dueAt time.Time) bool {
		return dueAt.After(now)
	})
}

// ScanOverdue notifies owner and assignees of open tasks whose due date has
// passed, once per recipient, task and due date.
func (f *Fanout) ScanOverdue(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	return f.scanWindow(ctx, domain.NotificationOverdue, now, repository.TaskFilter{
		DueTo:            &now,
		ExcludeCompleted: true,
	}, func(dueAt time.Time) bool {
		return dueAt.Before(now)
	})
}

func (f *Fanout) scanWindow(
	ctx context.Context,
	kind domain.NotificationKind,
	now time.Time,
	filter repository.TaskFilter,
	inWindow func(time.Time) bool,
) ([]domain.Notification, error) {
	var produced []domain.Notification
	filter.Limit = scanBatchSize
	for offset := 0; ; offset += scanBatchSize {
		filter.Offset = offset
		batch, err := f.tasks.List(ctx, filter)
		if err != nil {
			return produced, err
		}
		for i := range batch {
			task := &batch[i]
			if task.DueAt == nil || !inWindow(*task.DueAt) {
				continue
			}
			for _, recipient := range task.Participants() {
				seen, err := f.notifications.Exists(ctx, recipient, task.ID, kind, task.DueAt)
				if err != nil {
					return produced, err
				}
				if seen {
					continue
				}
				created, err := f.create(ctx, domain.Notification{
					RecipientID: recipient,
					Kind:        kind,
					TaskID:      task.ID,
					DueAt:       task.DueAt,
					CreatedAt:   now,
				})
				if err != nil {
					return produced, err
				}
				produced = append(produced, *created)
			}
		}
		if len(batch) < scanBatchSize {
			return produced, nil
		}
	}
}

func (f *Fanout) create(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	n.ID = uuid.NewString()
	created, err := f.notifications.Create(ctx, &n)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("notification produced",
		zap.String("kind", string(n.Kind)),
		zap.String("recipient_id", n.RecipientID),
		zap.String("task_id", n.TaskID))
	return created, nil
}
