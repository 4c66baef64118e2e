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

type recurrenceRepository struct {
	pool *pgxpool.Pool
}

// NewRecurrenceRepository returns a Postgres-backed implementation of RecurrenceRepository.
func NewRecurrenceRepository(pool *pgxpool.Pool) repository.RecurrenceRepository {
	return &recurrenceRepository{pool: pool}
}

func (r *recurrenceRepository) GetByID(ctx context.Context, id string) (*domain.RecurrenceRule, error) {
	const query = `
	SELECT id, template_task_id, frequency, repeat_interval, anchor_at, next_fire_at,
		end_at, last_fired_at, active, created_at, updated_at
	FROM recurrence_rules
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanRule(row)
}

func (r *recurrenceRepository) ListDue(ctx context.Context, at time.Time, limit int) ([]domain.RecurrenceRule, error) {
	const query = `
	SELECT id, template_task_id, frequency, repeat_interval, anchor_at, next_fire_at,
		end_at, last_fired_at, active, created_at, updated_at
	FROM recurrence_rules
	WHERE active AND next_fire_at <= $1
	ORDER BY next_fire_at, seq
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, at, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.RecurrenceRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *recurrenceRepository) Create(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error) {
	if rule == nil {
		return nil, domain.ErrInvalidPayload
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO recurrence_rules (id, template_task_id, frequency, repeat_interval, anchor_at,
		next_fire_at, end_at, last_fired_at, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()), COALESCE($11, NOW()))
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		rule.ID,
		rule.TemplateTaskID,
		rule.Frequency,
		rule.Interval,
		rule.AnchorAt,
		rule.NextFireAt,
		rule.EndAt,
		rule.LastFiredAt,
		rule.Active,
		nullTime(rule.CreatedAt),
		nullTime(rule.UpdatedAt),
	).Scan(&rule.CreatedAt, &rule.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.ErrCodeConflict, "recurrence rule already exists")
		}
		return nil, err
	}

	return rule, nil
}

func (r *recurrenceRepository) Update(ctx context.Context, rule *domain.RecurrenceRule) error {
	if rule == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE recurrence_rules
	SET frequency = $2,
		repeat_interval = $3,
		anchor_at = $4,
		next_fire_at = $5,
		end_at = $6,
		last_fired_at = $7,
		active = $8,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		rule.ID,
		rule.Frequency,
		rule.Interval,
		rule.AnchorAt,
		rule.NextFireAt,
		rule.EndAt,
		rule.LastFiredAt,
		rule.Active,
	).Scan(&rule.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRuleNotFound
		}
		return err
	}

	return nil
}

func scanRule(row interface {
	Scan(dest ...interface{}) error
}) (*domain.RecurrenceRule, error) {
	var rule domain.RecurrenceRule

	if err := row.Scan(
		&rule.ID,
		&rule.TemplateTaskID,
		&rule.Frequency,
		&rule.Interval,
		&rule.AnchorAt,
		&rule.NextFireAt,
		&rule.EndAt,
		&rule.LastFiredAt,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}

	return &rule, nil
}
