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

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `
	SELECT id, title, description, status, priority, due_at, owner_id, assignee_ids,
		category_id, tag_ids, recurrence_rule_id, source_template_id,
		deleted_at, completed_at, created_at, updated_at
	FROM tasks
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT id, title, description, status, priority, due_at, owner_id, assignee_ids,
		category_id, tag_ids, recurrence_rule_id, source_template_id,
		deleted_at, completed_at, created_at, updated_at
	FROM tasks
	WHERE (deleted_at IS NOT NULL) = $1
	  AND ($2 = '' OR owner_id = $2)
	  AND ($3 = '' OR $3 = ANY(assignee_ids))
	  AND ($4 = '' OR owner_id = $4 OR $4 = ANY(assignee_ids))
	  AND ($5 = '' OR EXISTS (
		SELECT 1 FROM principals p WHERE p.id = tasks.owner_id AND p.team_id = $5
	  ))
	  AND ($6 = '' OR status = $6)
	  AND (NOT $7 OR status <> 'completed')
	  AND ($8::timestamptz IS NULL OR due_at >= $8)
	  AND ($9::timestamptz IS NULL OR due_at <= $9)
	ORDER BY created_at, seq
	LIMIT $10 OFFSET $11
	`
	rows, err := r.pool.Query(ctx, query,
		filter.InTrash,
		filter.OwnerID,
		filter.AssigneeID,
		filter.ParticipantID,
		filter.OwnerTeamID,
		filter.Status,
		filter.ExcludeCompleted,
		filter.DueFrom,
		filter.DueTo,
		clampLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tasks (id, title, description, status, priority, due_at, owner_id, assignee_ids,
		category_id, tag_ids, recurrence_rule_id, source_template_id,
		deleted_at, completed_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		COALESCE($15, NOW()), COALESCE($16, NOW()))
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueAt,
		task.OwnerID,
		task.AssigneeIDs,
		task.CategoryID,
		task.TagIDs,
		task.RecurrenceRuleID,
		task.SourceTemplateID,
		task.DeletedAt,
		task.CompletedAt,
		nullTime(task.CreatedAt),
		nullTime(task.UpdatedAt),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.ErrCodeConflict, "task already exists")
		}
		return nil, err
	}

	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $2,
		description = $3,
		status = $4,
		priority = $5,
		due_at = $6,
		assignee_ids = $7,
		category_id = $8,
		tag_ids = $9,
		recurrence_rule_id = $10,
		source_template_id = $11,
		deleted_at = $12,
		completed_at = $13,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueAt,
		task.AssigneeIDs,
		task.CategoryID,
		task.TagIDs,
		task.RecurrenceRuleID,
		task.SourceTemplateID,
		task.DeletedAt,
		task.CompletedAt,
	).Scan(&task.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return err
	}

	return nil
}

func (r *taskRepository) CountForScope(ctx context.Context, scope domain.AnalyticsScope, now time.Time) (repository.TaskCounts, error) {
	const query = `
	SELECT status, priority, COUNT(*),
		COUNT(*) FILTER (WHERE due_at IS NOT NULL AND due_at < $3 AND status <> 'completed')
	FROM tasks
	WHERE deleted_at IS NULL
	  AND ($1 = '' OR owner_id = $1 OR $1 = ANY(assignee_ids))
	  AND ($2 = '' OR EXISTS (
		SELECT 1 FROM principals p WHERE p.id = tasks.owner_id AND p.team_id = $2
	  ))
	GROUP BY status, priority
	`

	var userID, teamID string
	if id, ok := scope.IsUser(); ok {
		userID = id
	}
	if id, ok := scope.IsTeam(); ok {
		teamID = id
	}

	rows, err := r.pool.Query(ctx, query, userID, teamID, now)
	if err != nil {
		return repository.TaskCounts{}, err
	}
	defer rows.Close()

	counts := repository.TaskCounts{
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[domain.TaskPriority]int),
	}
	for rows.Next() {
		var (
			status   domain.TaskStatus
			priority domain.TaskPriority
			total    int
			overdue  int
		)
		if err := rows.Scan(&status, &priority, &total, &overdue); err != nil {
			return repository.TaskCounts{}, err
		}
		counts.Total += total
		counts.ByStatus[status] += total
		counts.ByPriority[priority] += total
		counts.Overdue += overdue
	}
	return counts, rows.Err()
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueAt,
		&task.OwnerID,
		&task.AssigneeIDs,
		&task.CategoryID,
		&task.TagIDs,
		&task.RecurrenceRuleID,
		&task.SourceTemplateID,
		&task.DeletedAt,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	return &task, nil
}
