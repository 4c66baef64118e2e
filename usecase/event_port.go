package usecase

import (
	"context"

	"github.com/taskforge/backend/domain"
)

// EventPublisher abstracts the lifecycle event bus so use cases stay
// transport-agnostic. Publish is called only after the mutation it describes
// has been committed.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// NopPublisher discards events. It stands in where side effects are
// deliberately disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event domain.Event) error { return nil }
