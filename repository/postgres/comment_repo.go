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

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository returns a Postgres-backed implementation of CommentRepository.
func NewCommentRepository(pool *pgxpool.Pool) repository.CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	const query = `
	SELECT id, task_id, author_id, content, mentioned_user_ids, deleted_at, created_at
	FROM comments
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanComment(row)
}

func (r *commentRepository) ListByTask(ctx context.Context, taskID string, limit, offset int) ([]domain.Comment, error) {
	const query = `
	SELECT id, task_id, author_id, content, mentioned_user_ids, deleted_at, created_at
	FROM comments
	WHERE task_id = $1 AND deleted_at IS NULL
	ORDER BY created_at, seq
	LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, taskID, clampLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
	}
	return comments, rows.Err()
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if comment == nil {
		return nil, domain.ErrInvalidPayload
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO comments (id, task_id, author_id, content, mentioned_user_ids, deleted_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
	RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		comment.ID,
		comment.TaskID,
		comment.AuthorID,
		comment.Content,
		comment.MentionedUserIDs,
		comment.DeletedAt,
		nullTime(comment.CreatedAt),
	).Scan(&comment.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.ErrCodeConflict, "comment already exists")
		}
		return nil, err
	}

	return comment, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *domain.Comment) error {
	if comment == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE comments
	SET content = $2,
		mentioned_user_ids = $3,
		deleted_at = $4
	WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		comment.ID,
		comment.Content,
		comment.MentionedUserIDs,
		comment.DeletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommentNotFound
	}
	return nil
}

func scanComment(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Comment, error) {
	var comment domain.Comment

	if err := row.Scan(
		&comment.ID,
		&comment.TaskID,
		&comment.AuthorID,
		&comment.Content,
		&comment.MentionedUserIDs,
		&comment.DeletedAt,
		&comment.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommentNotFound
		}
		return nil, err
	}

	return &comment, nil
}
