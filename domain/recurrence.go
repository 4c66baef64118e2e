package domain

import "time"

// Frequency is the unit a recurrence rule advances by.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ValidFrequency reports whether f is one of the known frequencies.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// RecurrenceRule schedules materialization of copies of a template task.
// NextFireAt is the next occurrence to materialize; LastFiredAt marks the
// occurrence already materialized so a retried fire cannot duplicate it.
type RecurrenceRule struct {
	ID             string     `json:"id"`
	TemplateTaskID string     `json:"template_task_id"`
	Frequency      Frequency  `json:"frequency"`
	Interval       int        `json:"interval"`
	AnchorAt       time.Time  `json:"anchor_at"`
	NextFireAt     time.Time  `json:"next_fire_at"`
	EndAt          *time.Time `json:"end_at,omitempty"`
	LastFiredAt    *time.Time `json:"last_fired_at,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Advance returns the occurrence after from, per frequency and interval.
// Monthly advances rely on time.AddDate normalization for short months.
func (r *RecurrenceRule) Advance(from time.Time) time.Time {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	switch r.Frequency {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7*interval)
	case FrequencyMonthly:
		return from.AddDate(0, interval, 0)
	default:
		return from.AddDate(0, 0, interval)
	}
}

// Expired reports whether occurrence falls past the rule's end date.
func (r *RecurrenceRule) Expired(occurrence time.Time) bool {
	return r != nil && r.EndAt != nil && occurrence.After(*r.EndAt)
}

// AlreadyFired reports whether occurrence was materialized before.
func (r *RecurrenceRule) AlreadyFired(occurrence time.Time) bool {
	return r != nil && r.LastFiredAt != nil && !r.LastFiredAt.Before(occurrence)
}
