package repository

import (
	"context"

	"github.com/taskforge/backend/domain"
)

type PrincipalRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	// ListByIDs returns the principals found; callers detect missing IDs by
	// comparing lengths.
	ListByIDs(ctx context.Context, ids []string) ([]domain.Principal, error)
	Create(ctx context.Context, principal *domain.Principal) (*domain.Principal, error)
	Update(ctx context.Context, principal *domain.Principal) error
}
