package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository/memory"
)

func TestHistoryRecorderTracksLifecycle(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	rec := NewHistoryRecorder(store.History(), zap.NewNop())
	base := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	pending := domain.Task{ID: "t1", Status: domain.StatusPending}
	inProgress := domain.Task{ID: "t1", Status: domain.StatusInProgress}
	deletedAt := base.Add(2 * time.Minute)
	trashed := inProgress
	trashed.DeletedAt = &deletedAt

	events := []domain.Event{
		{Kind: domain.EventTaskCreated, TaskID: "t1", ActorID: "alice", After: &pending, OccurredAt: base},
		{Kind: domain.EventStatusChanged, TaskID: "t1", ActorID: "alice", Before: &pending, After: &inProgress, OccurredAt: base.Add(time.Minute)},
		{Kind: domain.EventTaskDeleted, TaskID: "t1", ActorID: "alice", Before: &inProgress, After: &trashed, OccurredAt: deletedAt},
		{Kind: domain.EventTaskRestored, TaskID: "t1", ActorID: "alice", Before: &trashed, After: &inProgress, OccurredAt: base.Add(3 * time.Minute)},
	}
	for _, event := range events {
		if err := rec.Handle(ctx, event); err != nil {
			t.Fatalf("Handle(%s): %v", event.Kind, err)
		}
	}

	trail, err := store.History().ListByTask(ctx, "t1", 0)
	if err != nil {
		t.Fatalf("ListByTask: %v", err)
	}
	if len(trail) != len(events) {
		t.Fatalf("trail = %d entries, want %d", len(trail), len(events))
	}
	for i, event := range events {
		if trail[i].Action != event.Kind {
			t.Fatalf("trail[%d].Action = %s, want %s", i, trail[i].Action, event.Kind)
		}
		if trail[i].ActorID != "alice" || trail[i].OccurredAt != event.OccurredAt {
			t.Fatalf("trail[%d] = %+v, lost actor or timestamp", i, trail[i])
		}
	}

	// The created entry has no prior status; the transition entry has both ends.
	if trail[0].FromStatus != "" || trail[0].ToStatus != domain.StatusPending {
		t.Fatalf("created entry = %+v, want empty from and pending to", trail[0])
	}
	if trail[1].FromStatus != domain.StatusPending || trail[1].ToStatus != domain.StatusInProgress {
		t.Fatalf("transition entry = %+v, want pending to in_progress", trail[1])
	}
}
