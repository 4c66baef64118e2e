package domain

import "time"

// EventKind names a lifecycle fact emitted after a committed task mutation.
type EventKind string

const (
	EventTaskCreated   EventKind = "created"
	EventStatusChanged EventKind = "status_changed"
	EventFieldsUpdated EventKind = "fields_updated"
	EventTaskAssigned  EventKind = "assigned"
	EventTaskDeleted   EventKind = "soft_deleted"
	EventTaskRestored  EventKind = "restored"
	EventTaskCompleted EventKind = "completed"
	EventTaskCommented EventKind = "commented"
)

// Event represents a change applied to a task. Before and After are immutable
// snapshots; subscribers must never mutate them. Before is nil for created.
type Event struct {
	ID           string    `json:"id"`
	Kind         EventKind `json:"kind"`
	TaskID       string    `json:"task_id"`
	ActorID      string    `json:"actor_id"`
	Before       *Task     `json:"before,omitempty"`
	After        *Task     `json:"after,omitempty"`
	CommentID    string    `json:"comment_id,omitempty"`
	MentionedIDs []string  `json:"mentioned_ids,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// AddedAssignees returns the assignee IDs present in After but not in Before.
func (e *Event) AddedAssignees() []string {
	if e == nil || e.After == nil {
		return nil
	}
	var added []string
	for _, id := range e.After.AssigneeIDs {
		if e.Before == nil || !e.Before.HasAssignee(id) {
			added = append(added, id)
		}
	}
	return added
}

// CompletesTask reports whether the event marks a task reaching completed:
// either the explicit completed event or a status change landing there.
func (e *Event) CompletesTask() bool {
	if e == nil {
		return false
	}
	if e.Kind == EventTaskCompleted {
		return true
	}
	return e.Kind == EventStatusChanged && e.After.IsCompleted() && !e.Before.IsCompleted()
}
