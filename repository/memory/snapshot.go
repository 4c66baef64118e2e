package memory

import (
	"context"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type snapshotStore struct{ s *Store }

var _ repository.SnapshotStore = snapshotStore{}

func snapshotKey(scope domain.AnalyticsScope, bucket string) string {
	return string(scope) + "|" + bucket
}

func cloneSnapshot(snap *domain.AnalyticsSnapshot) *domain.AnalyticsSnapshot {
	cp := *snap
	cp.ByStatus = make(map[domain.TaskStatus]int, len(snap.ByStatus))
	for k, n := range snap.ByStatus {
		cp.ByStatus[k] = n
	}
	cp.ByPriority = make(map[domain.TaskPriority]int, len(snap.ByPriority))
	for k, n := range snap.ByPriority {
		cp.ByPriority[k] = n
	}
	return &cp
}

func (v snapshotStore) Get(ctx context.Context, scope domain.AnalyticsScope, bucket string) (*domain.AnalyticsSnapshot, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	snap, ok := v.s.snapshots[snapshotKey(scope, bucket)]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return cloneSnapshot(snap), nil
}

func (v snapshotStore) Put(ctx context.Context, snapshot *domain.AnalyticsSnapshot) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.snapshots[snapshotKey(snapshot.Scope, snapshot.Bucket)] = cloneSnapshot(snapshot)
	return nil
}

func (v snapshotStore) Invalidate(ctx context.Context, bucket string, scopes ...domain.AnalyticsScope) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, scope := range scopes {
		delete(v.s.snapshots, snapshotKey(scope, bucket))
	}
	return nil
}
