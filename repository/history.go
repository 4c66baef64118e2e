package repository

import (
	"context"

	"github.com/taskforge/backend/domain"
)

type HistoryRepository interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	// ListByTask returns entries oldest first.
	ListByTask(ctx context.Context, taskID string, limit int) ([]domain.HistoryEntry, error)
}
