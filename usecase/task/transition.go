package task

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/usecase/policy"
)

// Action names a guarded lifecycle transition.
type Action string

const (
	ActionUpdateStatus Action = "update_status"
	ActionUpdateFields Action = "update_fields"
	ActionAssign       Action = "assign"
	ActionSoftDelete   Action = "soft_delete"
	ActionRestore      Action = "restore"
	ActionComplete     Action = "complete"
)

// ValidAction reports whether a is one of the lifecycle transitions.
func ValidAction(a Action) bool {
	switch a {
	case ActionUpdateStatus, ActionUpdateFields, ActionAssign,
		ActionSoftDelete, ActionRestore, ActionComplete:
		return true
	}
	return false
}

// policyAction maps a transition to the policy action guarding it. The
// complete shortcut shares the update_status permission.
func policyAction(a Action) policy.Action {
	switch a {
	case ActionUpdateStatus, ActionComplete:
		return policy.ActionUpdateStatus
	case ActionUpdateFields:
		return policy.ActionUpdateFields
	case ActionAssign:
		return policy.ActionAssign
	case ActionSoftDelete:
		return policy.ActionDelete
	case ActionRestore:
		return policy.ActionRestore
	}
	return policy.Action(a)
}

// TransitionPayload carries per-action arguments; fields irrelevant to the
// requested action are ignored.
type TransitionPayload struct {
	// Status is the target state for update_status.
	Status domain.TaskStatus
	// Fields is the patch for update_fields.
	Fields *FieldPatch
	// AssigneeIDs is the assignment set for assign. MergeAssignees keeps
	// the current assignees and adds to them instead of replacing.
	AssigneeIDs    []string
	MergeAssignees bool
}

// FieldPatch mutates the editable fields. Nil members stay untouched; a
// non-nil TagIDs replaces the tag set, ClearDueAt removes the due date.
type FieldPatch struct {
	Title       *string
	Description *string
	Priority    *domain.TaskPriority
	DueAt       *time.Time
	ClearDueAt  bool
	CategoryID  *string
	TagIDs      []string
}

func (p *FieldPatch) empty() bool {
	return p == nil || (p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.DueAt == nil && !p.ClearDueAt && p.CategoryID == nil && p.TagIDs == nil)
}

// Transition authorizes and applies one lifecycle transition under the
// task's lock. A trashed task accepts only restore; everything else is a
// conflict. On success exactly one event carrying before/after snapshots is
// published; on any failure the task is left untouched.
func (uc *UseCase) Transition(ctx context.Context, actor domain.Principal, taskID string, action Action, payload TransitionPayload) (*domain.Task, error) {
	if !ValidAction(action) {
		return nil, domain.Errorf(domain.ErrCodeInvalid, "unknown transition %q", action)
	}
	if taskID == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "task id is required")
	}
	uc.locks.Lock(taskID)
	defer uc.locks.Unlock(taskID)

	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	// Authorization is decided before transition validity so callers learn
	// about denial, not about state they may not see.
	if err := uc.authorize(ctx, actor, task, policyAction(action)); err != nil {
		return nil, err
	}
	if task.IsDeleted() && action != ActionRestore {
		return nil, domain.ErrTaskDeleted
	}

	before := task.Clone()
	now := uc.Now()
	var kind domain.EventKind
	switch action {
	case ActionUpdateStatus:
		kind = domain.EventStatusChanged
		err = applyStatus(task, payload.Status, now)
	case ActionUpdateFields:
		kind = domain.EventFieldsUpdated
		err = applyFields(task, payload.Fields)
	case ActionAssign:
		kind = domain.EventTaskAssigned
		err = uc.applyAssign(ctx, task, payload)
	case ActionSoftDelete:
		kind = domain.EventTaskDeleted
		task.DeletedAt = &now
	case ActionRestore:
		kind = domain.EventTaskRestored
		if !task.IsDeleted() {
			return nil, domain.ErrTaskNotDeleted
		}
		task.DeletedAt = nil
	case ActionComplete:
		kind = domain.EventTaskCompleted
		if task.IsCompleted() {
			return nil, domain.NewError(domain.ErrCodeConflict, "task is already completed")
		}
		task.Status = domain.StatusCompleted
		task.CompletedAt = &now
	}
	if err != nil {
		return nil, err
	}

	task.UpdatedAt = now
	if err := uc.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		TaskID:     task.ID,
		ActorID:    actor.ID,
		Before:     before,
		After:      task.Clone(),
		OccurredAt: now,
	})
	return task, nil
}

// applyStatus enforces the adjacency chain pending -> in_progress ->
// completed with completed -> pending as the reopen edge. Reaching completed
// stamps CompletedAt, reopening clears it.
func applyStatus(task *domain.Task, target domain.TaskStatus, now time.Time) error {
	if target == "" {
		return domain.NewError(domain.ErrCodeInvalid, "target status is required")
	}
	if !domain.ValidTaskStatus(target) {
		return domain.Errorf(domain.ErrCodeInvalid, "unknown status %q", target)
	}
	allowed := map[domain.TaskStatus]domain.TaskStatus{
		domain.StatusPending:    domain.StatusInProgress,
		domain.StatusInProgress: domain.StatusCompleted,
		domain.StatusCompleted:  domain.StatusPending,
	}
	if allowed[task.Status] != target {
		return domain.Errorf(domain.ErrCodeConflict, "cannot move task from %s to %s", task.Status, target)
	}
	task.Status = target
	switch target {
	case domain.StatusCompleted:
		stamp := now
		task.CompletedAt = &stamp
	case domain.StatusPending:
		task.CompletedAt = nil
	}
	return nil
}

func applyFields(task *domain.Task, patch *FieldPatch) error {
	if patch.empty() {
		return domain.NewError(domain.ErrCodeInvalid, "no fields to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.NewError(domain.ErrCodeInvalid, "title cannot be empty")
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		if !domain.ValidTaskPriority(*patch.Priority) {
			return domain.Errorf(domain.ErrCodeInvalid, "unknown priority %q", *patch.Priority)
		}
		task.Priority = *patch.Priority
	}
	if patch.ClearDueAt {
		task.DueAt = nil
	} else if patch.DueAt != nil {
		due := *patch.DueAt
		task.DueAt = &due
	}
	if patch.CategoryID != nil {
		task.CategoryID = *patch.CategoryID
	}
	if patch.TagIDs != nil {
		task.TagIDs = dedupIDs(patch.TagIDs)
	}
	return nil
}

// applyAssign replaces or extends the assignee set. The resulting set must
// be non-empty and every member must be an existing active principal.
func (uc *UseCase) applyAssign(ctx context.Context, task *domain.Task, payload TransitionPayload) error {
	ids := dedupIDs(payload.AssigneeIDs)
	if payload.MergeAssignees {
		merged := append([]string(nil), task.AssigneeIDs...)
		for _, id := range ids {
			if !task.HasAssignee(id) {
				merged = append(merged, id)
			}
		}
		ids = merged
	}
	if len(ids) == 0 {
		return domain.NewError(domain.ErrCodeInvalid, "assignee set cannot be empty")
	}
	resolved, err := uc.resolveAssignees(ctx, ids)
	if err != nil {
		return err
	}
	task.AssigneeIDs = resolved
	return nil
}
