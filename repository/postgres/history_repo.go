package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository returns a Postgres-backed implementation of HistoryRepository.
func NewHistoryRepository(pool *pgxpool.Pool) repository.HistoryRepository {
	return &historyRepository{pool: pool}
}

func (r *historyRepository) Append(ctx context.Context, entry domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO task_history (id, task_id, actor_id, action, from_status, to_status, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.ActorID,
		entry.Action,
		entry.FromStatus,
		entry.ToStatus,
		nullTime(entry.OccurredAt),
	)
	return err
}

func (r *historyRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]domain.HistoryEntry, error) {
	const query = `
	SELECT id, task_id, actor_id, action, from_status, to_status, occurred_at
	FROM task_history
	WHERE task_id = $1
	ORDER BY seq
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, taskID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.ActorID,
			&entry.Action,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.OccurredAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
