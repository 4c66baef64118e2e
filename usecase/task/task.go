// Package task implements the task lifecycle state machine: creation,
// guarded transitions, trash listing and history reads. Every mutation is
// authorized first, applied under a per-task lock, then announced through
// the event publisher.
package task

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/pkg/keymutex"
	"github.com/taskforge/backend/repository"
	"github.com/taskforge/backend/usecase"
	"github.com/taskforge/backend/usecase/policy"
)

type UseCase struct {
	tasks      repository.TaskRepository
	principals repository.PrincipalRepository
	history    repository.HistoryRepository
	events     usecase.EventPublisher
	locks      *keymutex.M
	logger     *zap.Logger

	// Now is the clock used for every timestamp; tests pin it.
	Now func() time.Time
}

func New(
	tasks repository.TaskRepository,
	principals repository.PrincipalRepository,
	history repository.HistoryRepository,
	events usecase.EventPublisher,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = usecase.NopPublisher{}
	}
	return &UseCase{
		tasks:      tasks,
		principals: principals,
		history:    history,
		events:     events,
		locks:      keymutex.New(),
		logger:     logger,
		Now:        time.Now,
	}
}

// CreateInput carries the caller-validated fields of a new task.
type CreateInput struct {
	Title       string
	Description string
	Priority    domain.TaskPriority
	DueAt       *time.Time
	AssigneeIDs []string
	CategoryID  string
	TagIDs      []string
}

// Create builds a pending task owned by the actor. Creation carries no
// policy action; upstream decides who may create at all.
func (uc *UseCase) Create(ctx context.Context, actor domain.Principal, input CreateInput) (*domain.Task, error) {
	if actor.ID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "actor is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidTaskPriority(priority) {
		return nil, domain.Errorf(domain.ErrCodeInvalid, "unknown priority %q", priority)
	}
	assignees, err := uc.resolveAssignees(ctx, dedupIDs(input.AssigneeIDs))
	if err != nil {
		return nil, err
	}

	now := uc.Now()
	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: input.Description,
		Status:      domain.StatusPending,
		Priority:    priority,
		DueAt:       input.DueAt,
		OwnerID:     actor.ID,
		AssigneeIDs: assignees,
		CategoryID:  input.CategoryID,
		TagIDs:      dedupIDs(input.TagIDs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.Event{
		ID:         uuid.NewString(),
		Kind:       domain.EventTaskCreated,
		TaskID:     created.ID,
		ActorID:    actor.ID,
		After:      created.Clone(),
		OccurredAt: now,
	})
	return created, nil
}

// Get returns a task the actor may read. Trashed tasks surface only to
// principals allowed to view trash; everyone else sees not-found.
func (uc *UseCase) Get(ctx context.Context, actor domain.Principal, taskID string) (*domain.Task, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted() {
		if err := uc.authorize(ctx, actor, task, policy.ActionViewTrash); err != nil {
			return nil, domain.ErrTaskNotFound
		}
		return task, nil
	}
	if err := uc.authorize(ctx, actor, task, policy.ActionRead); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns live tasks within the actor's visibility: admins see
// everything, managers their team plus their own participation, users only
// tasks they own or are assigned.
func (uc *UseCase) List(ctx context.Context, actor domain.Principal, filter repository.TaskFilter) ([]domain.Task, error) {
	filter.InTrash = false
	switch actor.Role {
	case domain.RoleAdmin:
		return uc.tasks.List(ctx, filter)
	case domain.RoleManager:
		own := filter
		own.ParticipantID = actor.ID
		out, err := uc.tasks.List(ctx, own)
		if err != nil {
			return nil, err
		}
		if actor.TeamID != "" {
			team := filter
			team.OwnerTeamID = actor.TeamID
			teamTasks, err := uc.tasks.List(ctx, team)
			if err != nil {
				return nil, err
			}
			out = mergeTasks(out, teamTasks)
		}
		return out, nil
	default:
		filter.ParticipantID = actor.ID
		return uc.tasks.List(ctx, filter)
	}
}

// ListTrash returns soft-deleted tasks visible to the actor. The user role
// is denied outright.
func (uc *UseCase) ListTrash(ctx context.Context, actor domain.Principal, filter repository.TaskFilter) ([]domain.Task, error) {
	if !actor.Active || (actor.Role != domain.RoleAdmin && actor.Role != domain.RoleManager) {
		return nil, domain.Errorf(domain.ErrCodeForbidden, "principal %s may not view trash", actor.ID)
	}
	filter.InTrash = true
	if actor.Role == domain.RoleManager {
		own := filter
		own.OwnerID = actor.ID
		out, err := uc.tasks.List(ctx, own)
		if err != nil {
			return nil, err
		}
		if actor.TeamID != "" {
			team := filter
			team.OwnerTeamID = actor.TeamID
			teamTasks, err := uc.tasks.List(ctx, team)
			if err != nil {
				return nil, err
			}
			out = mergeTasks(out, teamTasks)
		}
		return out, nil
	}
	return uc.tasks.List(ctx, filter)
}

// ListHistory returns the audit trail of a task the actor may read.
func (uc *UseCase) ListHistory(ctx context.Context, actor domain.Principal, taskID string, limit int) ([]domain.HistoryEntry, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	action := policy.ActionRead
	if task.IsDeleted() {
		action = policy.ActionViewTrash
	}
	if err := uc.authorize(ctx, actor, task, action); err != nil {
		return nil, err
	}
	if uc.history == nil {
		return nil, nil
	}
	return uc.history.ListByTask(ctx, taskID, limit)
}

// BulkResult reports the outcome of one task inside a bulk transition.
type BulkResult struct {
	TaskID string
	Task   *domain.Task
	Err    error
}

// BulkTransition applies the same transition to several tasks. Each task is
// authorized and applied independently; one failure never aborts the rest.
func (uc *UseCase) BulkTransition(ctx context.Context, actor domain.Principal, taskIDs []string, action Action, payload TransitionPayload) []BulkResult {
	results := make([]BulkResult, 0, len(taskIDs))
	for _, id := range dedupIDs(taskIDs) {
		task, err := uc.Transition(ctx, actor, id, action, payload)
		results = append(results, BulkResult{TaskID: id, Task: task, Err: err})
	}
	return results
}

// authorize resolves the team facts manager rules need, then evaluates the
// policy. Non-managers skip the lookups.
func (uc *UseCase) authorize(ctx context.Context, actor domain.Principal, task *domain.Task, action policy.Action) error {
	in := policy.Input{Principal: actor, Task: *task}
	if actor.Role == domain.RoleManager && uc.principals != nil {
		owner, err := uc.principals.GetByID(ctx, task.OwnerID)
		switch {
		case err == nil:
			in.OwnerTeamID = owner.TeamID
		case !domain.IsDomainError(err, domain.ErrCodeNotFound):
			return err
		}
		if len(task.AssigneeIDs) > 0 {
			assignees, err := uc.principals.ListByIDs(ctx, task.AssigneeIDs)
			if err != nil {
				return err
			}
			for _, a := range assignees {
				in.AssigneeTeamIDs = append(in.AssigneeTeamIDs, a.TeamID)
			}
		}
	}
	return policy.Authorize(in, action)
}

// resolveAssignees checks that every ID names an existing active principal.
func (uc *UseCase) resolveAssignees(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := uc.principals.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Principal, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, domain.Errorf(domain.ErrCodeNotFound, "assignee %s not found", id)
		}
		if !p.Active {
			return nil, domain.Errorf(domain.ErrCodeInvalid, "assignee %s is deactivated", id)
		}
	}
	return ids, nil
}

func (uc *UseCase) publish(ctx context.Context, event domain.Event) {
	if err := uc.events.Publish(ctx, event); err != nil {
		uc.logger.Error("failed to publish lifecycle event",
			zap.String("kind", string(event.Kind)),
			zap.String("task_id", event.TaskID),
			zap.Error(err))
	}
}

func dedupIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mergeTasks(a, b []domain.Task) []domain.Task {
	seen := make(map[string]struct{}, len(a))
	for _, t := range a {
		seen[t.ID] = struct{}{}
	}
	for _, t := range b {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		a = append(a, t)
	}
	return a
}
