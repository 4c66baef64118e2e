// Package policy decides whether a principal may perform an action on a
// task. Evaluation is pure: rules read only the input, never storage, so a
// decision can be replayed for dry-run validation.
package policy

import (
	"github.com/taskforge/backend/domain"
)

// Action names a guarded operation on a task.
type Action string

const (
	ActionRead         Action = "read"
	ActionUpdateStatus Action = "update_status"
	ActionUpdateFields Action = "update_fields"
	ActionAssign       Action = "assign"
	ActionDelete       Action = "delete"
	ActionRestore      Action = "restore"
	ActionComment      Action = "comment"
	ActionViewTrash    Action = "view_trash"
)

// ValidAction reports whether a is one of the guarded actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionRead, ActionUpdateStatus, ActionUpdateFields, ActionAssign,
		ActionDelete, ActionRestore, ActionComment, ActionViewTrash:
		return true
	}
	return false
}

// Input bundles everything a rule may consult. Team IDs of the task's owner
// and assignees are resolved by the caller beforehand; only manager rules
// read them.
type Input struct {
	Principal       domain.Principal
	Task            domain.Task
	OwnerTeamID     string
	AssigneeTeamIDs []string
}

// Authorize returns nil to allow or a FORBIDDEN-coded error to deny.
// Rules are evaluated in role order with first match winning; anything not
// explicitly allowed is denied.
func Authorize(in Input, action Action) error {
	if !ValidAction(action) {
		return domain.Errorf(domain.ErrCodeInvalid, "unknown action %q", action)
	}
	if !in.Principal.Active {
		return deny(in.Principal, action)
	}
	switch in.Principal.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleManager:
		return authorizeManager(in, action)
	case domain.RoleUser:
		return authorizeUser(in, action)
	}
	return deny(in.Principal, action)
}

// authorizeManager grants team scope for everything except delete and
// restore, which stay owner-only. A manager's own tasks count as team scope
// even when the manager has no team set.
func authorizeManager(in Input, action Action) error {
	owns := in.Task.OwnerID == in.Principal.ID
	if action == ActionDelete || action == ActionRestore {
		if owns {
			return nil
		}
		return deny(in.Principal, action)
	}
	if owns || in.Task.HasAssignee(in.Principal.ID) {
		return nil
	}
	if in.Principal.TeamID != "" {
		if in.OwnerTeamID == in.Principal.TeamID {
			return nil
		}
		for _, teamID := range in.AssigneeTeamIDs {
			if teamID == in.Principal.TeamID {
				return nil
			}
		}
	}
	return deny(in.Principal, action)
}

func authorizeUser(in Input, action Action) error {
	owns := in.Task.OwnerID == in.Principal.ID
	assigned := in.Task.HasAssignee(in.Principal.ID)
	switch action {
	case ActionRead, ActionComment, ActionUpdateStatus:
		if owns || assigned {
			return nil
		}
	case ActionUpdateFields:
		if owns {
			return nil
		}
	}
	return deny(in.Principal, action)
}

func deny(p domain.Principal, action Action) error {
	return domain.Errorf(domain.ErrCodeForbidden, "principal %s may not %s", p.ID, action)
}
