package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/internal/events"
	"github.com/taskforge/backend/internal/infrastructure/journal"
)

type flakySubscriber struct {
	name     string
	failures int
	handled  []string
}

func (f *flakySubscriber) Name() string { return f.name }

func (f *flakySubscriber) Handle(_ context.Context, event domain.Event) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("still broken")
	}
	f.handled = append(f.handled, event.ID)
	return nil
}

func openJournal(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), "")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func record(t *testing.T, store *journal.Store, subscriber, eventID string) {
	t.Helper()
	bridge := NewJournalBridge(store)
	err := bridge.Record(context.Background(), subscriber, domain.Event{
		ID:         eventID,
		Kind:       domain.EventStatusChanged,
		TaskID:     "t1",
		OccurredAt: time.Now(),
	}, errors.New("first delivery failed"))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestRedeliveryRetriesUntilSuccess(t *testing.T) {
	store := openJournal(t)
	sub := &flakySubscriber{name: "fanout", failures: 1}
	rd := NewRedelivery(store, zap.NewNop(), RedeliveryConfig{MaxRetries: 5})
	rd.Register(sub)
	record(t, store, "fanout", "ev-1")

	// First drain fails and requeues.
	if err := rd.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if rd.Size() != 1 {
		t.Fatalf("backlog = %d after failed retry, want 1", rd.Size())
	}

	// Second drain succeeds and clears the entry.
	if err := rd.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if rd.Size() != 0 {
		t.Fatalf("backlog = %d after successful retry, want 0", rd.Size())
	}
	if len(sub.handled) != 1 || sub.handled[0] != "ev-1" {
		t.Fatalf("handled = %v, want [ev-1]", sub.handled)
	}
}

func TestRedeliveryDropsAfterMaxRetries(t *testing.T) {
	store := openJournal(t)
	sub := &flakySubscriber{name: "fanout", failures: 100}
	rd := NewRedelivery(store, zap.NewNop(), RedeliveryConfig{MaxRetries: 2})
	rd.Register(sub)
	record(t, store, "fanout", "ev-1")

	for i := 0; i < 2; i++ {
		if err := rd.Drain(context.Background()); err != nil {
			t.Fatalf("Drain %d: %v", i, err)
		}
	}
	if rd.Size() != 0 {
		t.Fatalf("backlog = %d, want dropped after max retries", rd.Size())
	}
	if len(sub.handled) != 0 {
		t.Fatalf("handled = %v, want none", sub.handled)
	}
}

func TestRedeliveryDropsUnknownSubscriber(t *testing.T) {
	store := openJournal(t)
	rd := NewRedelivery(store, zap.NewNop(), RedeliveryConfig{})
	record(t, store, "retired-subscriber", "ev-1")

	if err := rd.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if rd.Size() != 0 {
		t.Fatalf("backlog = %d, want unknown subscriber entry dropped", rd.Size())
	}
}

// The bus and the journal cooperate: a failing subscriber dead-letters the
// event, the redelivery worker replays it after the subscriber recovers.
func TestBusFailureIsReplayedFromJournal(t *testing.T) {
	store := openJournal(t)
	sub := &flakySubscriber{name: "fanout", failures: 1}
	bus := events.New(events.Config{}, NewJournalBridge(store), zap.NewNop())
	bus.Subscribe(sub)

	err := bus.Publish(context.Background(), domain.Event{
		ID:         "ev-9",
		Kind:       domain.EventTaskCreated,
		TaskID:     "t9",
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	rd := NewRedelivery(store, zap.NewNop(), RedeliveryConfig{})
	rd.Register(sub)
	if rd.Size() != 1 {
		t.Fatalf("backlog = %d after failed delivery, want 1", rd.Size())
	}
	if err := rd.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if rd.Size() != 0 || len(sub.handled) != 1 || sub.handled[0] != "ev-9" {
		t.Fatalf("replay incomplete: backlog=%d handled=%v", rd.Size(), sub.handled)
	}
}
