package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

// Invalidator drops analytics snapshots whose scope a lifecycle event may
// have touched. Dropping too much is always safe; the next read recomputes.
type Invalidator struct {
	snapshots  repository.SnapshotStore
	principals repository.PrincipalRepository
	logger     *zap.Logger
}

func NewInvalidator(snapshots repository.SnapshotStore, principals repository.PrincipalRepository, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{
		snapshots:  snapshots,
		principals: principals,
		logger:     logger,
	}
}

func (i *Invalidator) Name() string { return "analytics-invalidator" }

func (i *Invalidator) Handle(ctx context.Context, event domain.Event) error {
	// Comments never move task counts.
	if event.Kind == domain.EventTaskCommented {
		return nil
	}
	scopes, err := i.scopesFor(ctx, event)
	if err != nil {
		return err
	}
	bucket := domain.DayBucket(event.OccurredAt)
	if err := i.snapshots.Invalidate(ctx, bucket, scopes...); err != nil {
		return err
	}
	i.logger.Debug("analytics snapshots invalidated",
		zap.String("kind", string(event.Kind)),
		zap.String("task_id", event.TaskID),
		zap.Int("scopes", len(scopes)))
	return nil
}

// scopesFor collects the global scope, the user scope of the owner and of
// every assignee the task had before or after, and the team scope of each
// of those principals.
func (i *Invalidator) scopesFor(ctx context.Context, event domain.Event) ([]domain.AnalyticsScope, error) {
	scopes := []domain.AnalyticsScope{domain.ScopeGlobal}
	seen := map[domain.AnalyticsScope]struct{}{domain.ScopeGlobal: {}}
	add := func(s domain.AnalyticsScope) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}

	var ids []string
	idSeen := make(map[string]struct{})
	touch := func(id string) {
		if id == "" {
			return
		}
		if _, ok := idSeen[id]; ok {
			return
		}
		idSeen[id] = struct{}{}
		ids = append(ids, id)
		add(domain.UserScope(id))
	}
	for _, task := range []*domain.Task{event.Before, event.After} {
		if task == nil {
			continue
		}
		touch(task.OwnerID)
		for _, id := range task.AssigneeIDs {
			touch(id)
		}
	}
	if len(ids) == 0 {
		return scopes, nil
	}

	principals, err := i.principals.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range principals {
		if p.TeamID != "" {
			add(domain.TeamScope(p.TeamID))
		}
	}
	return scopes, nil
}
