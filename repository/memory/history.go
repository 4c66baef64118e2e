package memory

import (
	"context"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type historyStore struct{ s *Store }

var _ repository.HistoryRepository = historyStore{}

func (v historyStore) Append(ctx context.Context, entry domain.HistoryEntry) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.history[entry.TaskID] = append(v.s.history[entry.TaskID], entry)
	return nil
}

func (v historyStore) ListByTask(ctx context.Context, taskID string, limit int) ([]domain.HistoryEntry, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	entries := v.s.history[taskID]
	out := make([]domain.HistoryEntry, len(entries))
	copy(out, entries)
	return paginate(out, limit, 0), nil
}
