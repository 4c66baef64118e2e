package repository

import (
	"context"

	"github.com/taskforge/backend/domain"
)

// SnapshotStore caches analytics snapshots per scope and day bucket. Entries
// expire on their own (the staleness bound); Invalidate forces the next read
// to recompute.
type SnapshotStore interface {
	Get(ctx context.Context, scope domain.AnalyticsScope, bucket string) (*domain.AnalyticsSnapshot, error)
	Put(ctx context.Context, snapshot *domain.AnalyticsSnapshot) error
	Invalidate(ctx context.Context, bucket string, scopes ...domain.AnalyticsScope) error
}
