package monitor

import "time"

// Status is one probe cycle's view of the backing stores.
type Status struct {
	PostgreSQL     bool      `json:"postgresql"`
	Redis          bool      `json:"redis"`
	Journal        bool      `json:"journal"`
	JournalBacklog int       `json:"journal_backlog"`
	LastCheck      time.Time `json:"last_check"`
}

// Healthy reports whether both primary stores answered the probe. The
// journal is advisory: a missing dead-letter file degrades redelivery, not
// the engine.
func (s Status) Healthy() bool {
	return s.PostgreSQL && s.Redis
}
