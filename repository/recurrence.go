package repository

import (
	"context"
	"time"

	"github.com/taskforge/backend/domain"
)

type RecurrenceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.RecurrenceRule, error)
	// ListDue returns active rules with NextFireAt at or before the given
	// instant, oldest first.
	ListDue(ctx context.Context, at time.Time, limit int) ([]domain.RecurrenceRule, error)
	Create(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error)
	Update(ctx context.Context, rule *domain.RecurrenceRule) error
}
