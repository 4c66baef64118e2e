// Package memory implements every repository port against process-local maps.
// It backs tests and local development; the daemon wires the postgres and
// redis implementations instead.
package memory

import (
	"sync"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

// Store holds all collections behind one lock. Per-port views are obtained
// through the accessor methods; they hand out clones so callers can never
// mutate stored state without going through Update.
type Store struct {
	mu            sync.RWMutex
	tasks         map[string]*domain.Task
	principals    map[string]*domain.Principal
	rules         map[string]*domain.RecurrenceRule
	comments      map[string]*domain.Comment
	notifications map[string]*domain.Notification
	history       map[string][]domain.HistoryEntry
	snapshots     map[string]*domain.AnalyticsSnapshot
	seq           map[string]int
	nextSeq       int
}

func NewStore() *Store {
	return &Store{
		tasks:         make(map[string]*domain.Task),
		principals:    make(map[string]*domain.Principal),
		rules:         make(map[string]*domain.RecurrenceRule),
		comments:      make(map[string]*domain.Comment),
		notifications: make(map[string]*domain.Notification),
		history:       make(map[string][]domain.HistoryEntry),
		snapshots:     make(map[string]*domain.AnalyticsSnapshot),
		seq:           make(map[string]int),
	}
}

func (s *Store) Tasks() repository.TaskRepository { return taskStore{s} }

func (s *Store) Principals() repository.PrincipalRepository { return principalStore{s} }

func (s *Store) Rules() repository.RecurrenceRepository { return ruleStore{s} }

func (s *Store) Comments() repository.CommentRepository { return commentStore{s} }

func (s *Store) Notifications() repository.NotificationRepository { return notificationStore{s} }

func (s *Store) History() repository.HistoryRepository { return historyStore{s} }

func (s *Store) Snapshots() repository.SnapshotStore { return snapshotStore{s} }

// track must be called with the write lock held.
func (s *Store) track(id string) {
	s.nextSeq++
	s.seq[id] = s.nextSeq
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	limit = clampLimit(limit)
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}
