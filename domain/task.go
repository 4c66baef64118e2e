package domain

import "time"

// TaskStatus is the closed set of lifecycle states a task moves through.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// ValidTaskStatus reports whether s is one of the known lifecycle states.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// TaskPriority orders tasks by urgency. It never affects lifecycle rules.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// ValidTaskPriority reports whether p is one of the known priorities.
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task represents an activity item owned by one principal and assigned to others.
// A non-nil DeletedAt puts the task in the trash; trashed tasks accept no
// mutation except restore.
type Task struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Status           TaskStatus   `json:"status"`
	Priority         TaskPriority `json:"priority"`
	DueAt            *time.Time   `json:"due_at,omitempty"`
	OwnerID          string       `json:"owner_id"`
	AssigneeIDs      []string     `json:"assignee_ids,omitempty"`
	CategoryID       string       `json:"category_id,omitempty"`
	TagIDs           []string     `json:"tag_ids,omitempty"`
	RecurrenceRuleID string       `json:"recurrence_rule_id,omitempty"`
	SourceTemplateID string       `json:"source_template_id,omitempty"`
	DeletedAt        *time.Time   `json:"deleted_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

func (t *Task) IsDeleted() bool {
	return t != nil && t.DeletedAt != nil
}

func (t *Task) HasAssignee(principalID string) bool {
	if t == nil {
		return false
	}
	for _, id := range t.AssigneeIDs {
		if id == principalID {
			return true
		}
	}
	return false
}

// Participants returns the owner plus assignees, deduplicated, owner first.
func (t *Task) Participants() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.AssigneeIDs)+1)
	seen := map[string]struct{}{}
	if t.OwnerID != "" {
		out = append(out, t.OwnerID)
		seen[t.OwnerID] = struct{}{}
	}
	for _, id := range t.AssigneeIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Clone returns a deep copy suitable for before/after event snapshots.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.DueAt != nil {
		due := *t.DueAt
		cp.DueAt = &due
	}
	if t.DeletedAt != nil {
		del := *t.DeletedAt
		cp.DeletedAt = &del
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		cp.CompletedAt = &done
	}
	if t.AssigneeIDs != nil {
		cp.AssigneeIDs = append([]string(nil), t.AssigneeIDs...)
	}
	if t.TagIDs != nil {
		cp.TagIDs = append([]string(nil), t.TagIDs...)
	}
	return &cp
}
