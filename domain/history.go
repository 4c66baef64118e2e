package domain

import "time"

// HistoryEntry is an audit record of one committed task mutation, written by
// a subscriber after the fact. History is append-only.
type HistoryEntry struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	ActorID    string     `json:"actor_id"`
	Action     EventKind  `json:"action"`
	FromStatus TaskStatus `json:"from_status,omitempty"`
	ToStatus   TaskStatus `json:"to_status,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
