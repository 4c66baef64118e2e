package repository

import (
	"context"
	"time"

	"github.com/taskforge/backend/domain"
)

// TaskFilter narrows List. The zero value matches all live (non-trashed)
// tasks; InTrash flips the listing to trashed tasks only. ParticipantID
// matches owner or assignee; OwnerTeamID matches through the owner's team.
type TaskFilter struct {
	OwnerID          string
	AssigneeID       string
	ParticipantID    string
	OwnerTeamID      string
	Status           domain.TaskStatus
	InTrash          bool
	DueFrom          *time.Time
	DueTo            *time.Time
	ExcludeCompleted bool
	Limit            int
	Offset           int
}

// TaskCounts is the aggregate shape analytics snapshots are built from.
type TaskCounts struct {
	Total      int
	ByStatus   map[domain.TaskStatus]int
	ByPriority map[domain.TaskPriority]int
	Overdue    int
}

type TaskRepository interface {
	// GetByID returns the task regardless of trash state.
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	// CountForScope aggregates live tasks owned by or assigned to the scope's
	// principals. Overdue counts non-completed tasks due before now.
	CountForScope(ctx context.Context, scope domain.AnalyticsScope, now time.Time) (TaskCounts, error)
}
