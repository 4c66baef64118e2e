package memory

import (
	"context"
	"sort"
	"time"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/repository"
)

type taskStore struct{ s *Store }

var _ repository.TaskRepository = taskStore{}

func (v taskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	t, ok := v.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (v taskStore) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []domain.Task
	for _, t := range v.s.tasks {
		if !v.matchTask(t, filter) {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return v.s.seq[out[i].ID] < v.s.seq[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (v taskStore) matchTask(t *domain.Task, f repository.TaskFilter) bool {
	if t.IsDeleted() != f.InTrash {
		return false
	}
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if f.AssigneeID != "" && !t.HasAssignee(f.AssigneeID) {
		return false
	}
	if f.ParticipantID != "" && t.OwnerID != f.ParticipantID && !t.HasAssignee(f.ParticipantID) {
		return false
	}
	if f.OwnerTeamID != "" {
		owner, ok := v.s.principals[t.OwnerID]
		if !ok || owner.TeamID != f.OwnerTeamID {
			return false
		}
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ExcludeCompleted && t.IsCompleted() {
		return false
	}
	if f.DueFrom != nil && (t.DueAt == nil || t.DueAt.Before(*f.DueFrom)) {
		return false
	}
	if f.DueTo != nil && (t.DueAt == nil || t.DueAt.After(*f.DueTo)) {
		return false
	}
	return true
}

func (v taskStore) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.tasks[task.ID]; ok {
		return nil, domain.NewError(domain.ErrCodeConflict, "task already exists")
	}
	v.s.tasks[task.ID] = task.Clone()
	v.s.track(task.ID)
	return task.Clone(), nil
}

func (v taskStore) Update(ctx context.Context, task *domain.Task) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	v.s.tasks[task.ID] = task.Clone()
	return nil
}

func (v taskStore) CountForScope(ctx context.Context, scope domain.AnalyticsScope, now time.Time) (repository.TaskCounts, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	counts := repository.TaskCounts{
		ByStatus:   make(map[domain.TaskStatus]int),
		ByPriority: make(map[domain.TaskPriority]int),
	}
	for _, t := range v.s.tasks {
		if t.IsDeleted() || !v.s.inScope(t, scope) {
			continue
		}
		counts.Total++
		counts.ByStatus[t.Status]++
		counts.ByPriority[t.Priority]++
		if t.DueAt != nil && t.DueAt.Before(now) && !t.IsCompleted() {
			counts.Overdue++
		}
	}
	return counts, nil
}

// inScope must be called with at least the read lock held. Team scope groups
// tasks by the owner's team.
func (s *Store) inScope(t *domain.Task, scope domain.AnalyticsScope) bool {
	if scope == domain.ScopeGlobal {
		return true
	}
	if id, ok := scope.IsUser(); ok {
		return t.OwnerID == id || t.HasAssignee(id)
	}
	if teamID, ok := scope.IsTeam(); ok {
		owner, found := s.principals[t.OwnerID]
		return found && owner.TeamID == teamID
	}
	return false
}
