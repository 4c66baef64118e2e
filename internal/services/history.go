package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

// HistoryRecorder appends every lifecycle event to the per-task audit
// trail. Registered first on the bus so the trail orders before any other
// side effect.
type HistoryRecorder struct {
	history repository.HistoryRepository
	logger  *zap.Logger
}

func NewHistoryRecorder(history repository.HistoryRepository, logger *zap.Logger) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{history: history, logger: logger}
}

func (r *HistoryRecorder) Name() string { return "history-recorder" }

func (r *HistoryRecorder) Handle(ctx context.Context, event domain.Event) error {
	entry := domain.HistoryEntry{
		ID:         uuid.NewString(),
		TaskID:     event.TaskID,
		ActorID:    event.ActorID,
		Action:     event.Kind,
		OccurredAt: event.OccurredAt,
	}
	if event.Before != nil {
		entry.FromStatus = event.Before.Status
	}
	if event.After != nil {
		entry.ToStatus = event.After.Status
	}
	return r.history.Append(ctx, entry)
}
