package repository

import (
	"context"

	"github.com/taskforge/backend/domain"
)

type CommentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	// ListByTask returns live comments for a task, oldest first.
	ListByTask(ctx context.Context, taskID string, limit, offset int) ([]domain.Comment, error)
	Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	Update(ctx context.Context, comment *domain.Comment) error
}
