package domain

import (
	"strings"
	"time"
)

// AnalyticsScope identifies whose tasks a snapshot aggregates:
// "user:<id>", "team:<id>", or "global".
type AnalyticsScope string

const ScopeGlobal AnalyticsScope = "global"

func UserScope(principalID string) AnalyticsScope {
	return AnalyticsScope("user:" + principalID)
}

func TeamScope(teamID string) AnalyticsScope {
	return AnalyticsScope("team:" + teamID)
}

func (s AnalyticsScope) IsUser() (string, bool) {
	id, ok := strings.CutPrefix(string(s), "user:")
	return id, ok && id != ""
}

func (s AnalyticsScope) IsTeam() (string, bool) {
	id, ok := strings.CutPrefix(string(s), "team:")
	return id, ok && id != ""
}

func (s AnalyticsScope) Valid() bool {
	if s == ScopeGlobal {
		return true
	}
	if _, ok := s.IsUser(); ok {
		return true
	}
	_, ok := s.IsTeam()
	return ok
}

// AnalyticsSnapshot is a derived aggregate over live (non-trashed) tasks in
// one scope. Snapshots are cache entries: always recomputable, never a
// source of truth.
type AnalyticsSnapshot struct {
	Scope          AnalyticsScope       `json:"scope"`
	Bucket         string               `json:"bucket"`
	Total          int                  `json:"total"`
	ByStatus       map[TaskStatus]int   `json:"by_status"`
	ByPriority     map[TaskPriority]int `json:"by_priority"`
	Overdue        int                  `json:"overdue"`
	CompletionRate float64              `json:"completion_rate"`
	ComputedAt     time.Time            `json:"computed_at"`
}

// DayBucket formats ts as the UTC day key snapshots are partitioned by.
func DayBucket(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}
