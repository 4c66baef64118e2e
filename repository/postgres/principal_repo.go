package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type principalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository returns a Postgres-backed implementation of PrincipalRepository.
func NewPrincipalRepository(pool *pgxpool.Pool) repository.PrincipalRepository {
	return &principalRepository{pool: pool}
}

func (r *principalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	const query = `
	SELECT id, role, team_id, active, created_at, updated_at
	FROM principals
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanPrincipal(row)
}

func (r *principalRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Principal, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
	SELECT id, role, team_id, active, created_at, updated_at
	FROM principals
	WHERE id = ANY($1)
	ORDER BY array_position($1, id)
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	principals := make([]domain.Principal, 0, len(ids))
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, *p)
	}
	return principals, rows.Err()
}

func (r *principalRepository) Create(ctx context.Context, principal *domain.Principal) (*domain.Principal, error) {
	if principal == nil {
		return nil, domain.ErrInvalidPayload
	}
	if principal.ID == "" {
		principal.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO principals (id, role, team_id, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), COALESCE($6, NOW()))
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		principal.ID,
		principal.Role,
		principal.TeamID,
		principal.Active,
		nullTime(principal.CreatedAt),
		nullTime(principal.UpdatedAt),
	).Scan(&principal.CreatedAt, &principal.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.ErrCodeConflict, "principal already exists")
		}
		return nil, err
	}

	return principal, nil
}

func (r *principalRepository) Update(ctx context.Context, principal *domain.Principal) error {
	if principal == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE principals
	SET role = $2,
		team_id = $3,
		active = $4,
		updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		principal.ID,
		principal.Role,
		principal.TeamID,
		principal.Active,
	).Scan(&principal.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPrincipalNotFound
		}
		return err
	}

	return nil
}

func scanPrincipal(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Principal, error) {
	var p domain.Principal

	if err := row.Scan(
		&p.ID,
		&p.Role,
		&p.TeamID,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, err
	}

	return &p, nil
}
