// Package analytics serves task aggregates from a per-scope, per-day
// snapshot cache. Snapshots are derived data: reads recompute them from the
// task store whenever the cache misses or the entry has outlived its
// staleness bound, and concurrent recomputes of one scope collapse into a
// single count query.
package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

// DefaultMaxAge bounds how stale a served snapshot can be even when no
// invalidation reached the cache.
const DefaultMaxAge = 5 * time.Minute

type UseCase struct {
	tasks     repository.TaskRepository
	snapshots repository.SnapshotStore
	group     singleflight.Group
	maxAge    time.Duration
	logger    *zap.Logger

	// Now is the clock used for bucketing and staleness; tests pin it.
	Now func() time.Time
}

func New(tasks repository.TaskRepository, snapshots repository.SnapshotStore, maxAge time.Duration, logger *zap.Logger) *UseCase {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:     tasks,
		snapshots: snapshots,
		maxAge:    maxAge,
		logger:    logger,
		Now:       time.Now,
	}
}

// Get returns the current snapshot for a scope the actor may inspect:
// everyone their own user scope, managers additionally their team, admins
// any scope including global.
func (uc *UseCase) Get(ctx context.Context, actor domain.Principal, scope domain.AnalyticsScope) (*domain.AnalyticsSnapshot, error) {
	if !scope.Valid() {
		return nil, domain.Errorf(domain.ErrCodeInvalid, "unknown analytics scope %q", scope)
	}
	if err := authorizeScope(actor, scope); err != nil {
		return nil, err
	}
	now := uc.Now()
	bucket := domain.DayBucket(now)

	cached, err := uc.snapshots.Get(ctx, scope, bucket)
	switch {
	case err == nil:
		if now.Sub(cached.ComputedAt) < uc.maxAge {
			return cached, nil
		}
	case !domain.IsDomainError(err, domain.ErrCodeNotFound):
		// A broken cache degrades to recomputing, never to failing reads.
		uc.logger.Warn("snapshot cache read failed",
			zap.String("scope", string(scope)),
			zap.Error(err))
	}
	return uc.recompute(ctx, scope, bucket)
}

func (uc *UseCase) recompute(ctx context.Context, scope domain.AnalyticsScope, bucket string) (*domain.AnalyticsSnapshot, error) {
	key := string(scope) + "|" + bucket
	v, err, _ := uc.group.Do(key, func() (any, error) {
		now := uc.Now()
		counts, err := uc.tasks.CountForScope(ctx, scope, now)
		if err != nil {
			return nil, err
		}
		snapshot := buildSnapshot(scope, bucket, counts, now)
		if err := uc.snapshots.Put(ctx, snapshot); err != nil {
			uc.logger.Warn("snapshot cache write failed",
				zap.String("scope", string(scope)),
				zap.Error(err))
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.AnalyticsSnapshot), nil
}

func authorizeScope(actor domain.Principal, scope domain.AnalyticsScope) error {
	if !actor.Active {
		return domain.Errorf(domain.ErrCodeForbidden, "principal %s is deactivated", actor.ID)
	}
	if actor.IsAdmin() {
		return nil
	}
	if scope == domain.UserScope(actor.ID) {
		return nil
	}
	if actor.IsManager() && actor.TeamID != "" && scope == domain.TeamScope(actor.TeamID) {
		return nil
	}
	return domain.Errorf(domain.ErrCodeForbidden, "principal %s may not read analytics scope %s", actor.ID, scope)
}

// buildSnapshot zero-fills every status and priority so consumers never
// branch on missing keys.
func buildSnapshot(scope domain.AnalyticsScope, bucket string, counts repository.TaskCounts, computedAt time.Time) *domain.AnalyticsSnapshot {
	byStatus := map[domain.TaskStatus]int{
		domain.StatusPending:    0,
		domain.StatusInProgress: 0,
		domain.StatusCompleted:  0,
	}
	for status, n := range counts.ByStatus {
		byStatus[status] = n
	}
	byPriority := map[domain.TaskPriority]int{
		domain.PriorityLow:    0,
		domain.PriorityMedium: 0,
		domain.PriorityHigh:   0,
		domain.PriorityUrgent: 0,
	}
	for priority, n := range counts.ByPriority {
		byPriority[priority] = n
	}
	rate := 0.0
	if counts.Total > 0 {
		rate = float64(byStatus[domain.StatusCompleted]) / float64(counts.Total)
	}
	return &domain.AnalyticsSnapshot{
		Scope:          scope,
		Bucket:         bucket,
		Total:          counts.Total,
		ByStatus:       byStatus,
		ByPriority:     byPriority,
		Overdue:        counts.Overdue,
		CompletionRate: rate,
		ComputedAt:     computedAt,
	}
}
