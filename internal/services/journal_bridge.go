package services

import (
	"context"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/internal/events"
	"github.com/taskforge/backend/internal/infrastructure/journal"
)

// JournalBridge adapts the BoltDB journal to the event bus dead-letter
// port.
type JournalBridge struct {
	store *journal.Store
}

func NewJournalBridge(store *journal.Store) *JournalBridge {
	return &JournalBridge{store: store}
}

func (b *JournalBridge) Record(ctx context.Context, subscriber string, event domain.Event, cause error) error {
	if b.store == nil {
		return domain.ErrInvalidPayload
	}
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	return b.store.Append(journal.Entry{
		Subscriber: subscriber,
		Event:      event,
		Cause:      reason,
	})
}

var _ events.Journal = (*JournalBridge)(nil)
