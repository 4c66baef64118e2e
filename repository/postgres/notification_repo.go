package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a Postgres-backed implementation of NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) repository.NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `
	SELECT id, recipient_id, kind, task_id, comment_id, actor_id, due_at, read_at, created_at
	FROM notifications
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanNotification(row)
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, filter repository.NotificationFilter) ([]domain.Notification, error) {
	const query = `
	SELECT id, recipient_id, kind, task_id, comment_id, actor_id, due_at, read_at, created_at
	FROM notifications
	WHERE recipient_id = $1
	  AND ($2 = '' OR kind = $2)
	  AND (NOT $3 OR read_at IS NULL)
	ORDER BY created_at DESC, seq DESC
	LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		recipientID,
		filter.Kind,
		filter.UnreadOnly,
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if n == nil {
		return nil, domain.ErrInvalidPayload
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO notifications (id, recipient_id, kind, task_id, comment_id, actor_id, due_at, read_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		n.ID,
		n.RecipientID,
		n.Kind,
		n.TaskID,
		n.CommentID,
		n.ActorID,
		n.DueAt,
		n.ReadAt,
		nullTime(n.CreatedAt),
	).Scan(&n.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.ErrCodeConflict, "notification already exists")
		}
		return nil, err
	}

	return n, nil
}

func (r *notificationRepository) Exists(ctx context.Context, recipientID, taskID string, kind domain.NotificationKind, dueAt *time.Time) (bool, error) {
	const query = `
	SELECT EXISTS (
		SELECT 1 FROM notifications
		WHERE recipient_id = $1 AND task_id = $2 AND kind = $3
		  AND ((due_at IS NULL AND $4::timestamptz IS NULL) OR due_at = $4)
	)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, recipientID, taskID, kind, dueAt).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) error {
	const query = `
	UPDATE notifications
	SET read_at = COALESCE(read_at, $3)
	WHERE id = $1 AND recipient_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, recipientID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	const query = `
	UPDATE notifications
	SET read_at = $2
	WHERE recipient_id = $1 AND read_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, recipientID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `
	SELECT COUNT(*) FROM notifications
	WHERE recipient_id = $1 AND read_at IS NULL
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanNotification(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Notification, error) {
	var n domain.Notification

	if err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.Kind,
		&n.TaskID,
		&n.CommentID,
		&n.ActorID,
		&n.DueAt,
		&n.ReadAt,
		&n.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}

	return &n, nil
}
