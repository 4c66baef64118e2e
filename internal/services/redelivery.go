package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/backend/internal/events"
	"github.com/taskforge/backend/internal/infrastructure/journal"
)

// RedeliveryConfig controls how dead-lettered events are retried.
type RedeliveryConfig struct {
	BatchSize  int
	MaxRetries int
}

// Redelivery replays journaled events against the subscriber that
// originally rejected them. Entries that keep failing are dropped after
// MaxRetries attempts; entries for subscribers no longer registered are
// dropped immediately.
type Redelivery struct {
	store       *journal.Store
	subscribers map[string]events.Subscriber
	logger      *zap.Logger
	cfg         RedeliveryConfig
}

func NewRedelivery(store *journal.Store, logger *zap.Logger, cfg RedeliveryConfig) *Redelivery {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redelivery{
		store:       store,
		subscribers: make(map[string]events.Subscriber),
		logger:      logger,
		cfg:         cfg,
	}
}

// Register makes a subscriber eligible for redelivery under its name.
func (r *Redelivery) Register(sub events.Subscriber) {
	r.subscribers[sub.Name()] = sub
}

// Drain retries one batch of journaled entries.
func (r *Redelivery) Drain(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	entries, err := r.store.GetBatch(r.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		sub, ok := r.subscribers[entry.Subscriber]
		if !ok {
			r.logger.Warn("dropping journal entry for unknown subscriber",
				zap.String("entry_id", entry.ID),
				zap.String("subscriber", entry.Subscriber))
			_ = r.store.Remove(entry)
			continue
		}

		if err := r.redeliver(ctx, sub, entry); err != nil {
			r.logger.Error("redelivery failed",
				zap.String("entry_id", entry.ID),
				zap.String("subscriber", entry.Subscriber),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))

			if err := r.store.Remove(entry); err != nil {
				r.logger.Warn("failed to remove journal entry", zap.Error(err))
				continue
			}
			if entry.Attempts+1 >= r.cfg.MaxRetries {
				r.logger.Warn("dropping journal entry (max retries reached)",
					zap.String("entry_id", entry.ID),
					zap.String("event_id", entry.Event.ID))
				continue
			}
			if err := r.store.Requeue(entry); err != nil {
				r.logger.Error("failed to requeue journal entry", zap.Error(err))
			}
			continue
		}

		if err := r.store.Remove(entry); err != nil {
			r.logger.Warn("failed to purge redelivered journal entry", zap.Error(err))
		}
	}
	return nil
}

func (r *Redelivery) redeliver(ctx context.Context, sub events.Subscriber, entry journal.Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return sub.Handle(ctx, entry.Event)
}

// Expire drops entries recorded before the cutoff regardless of attempts.
func (r *Redelivery) Expire(olderThan time.Time) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Cleanup(olderThan)
}

// Size reports the journal backlog for monitoring.
func (r *Redelivery) Size() int {
	if r == nil || r.store == nil {
		return 0
	}
	size, err := r.store.Size()
	if err != nil {
		return 0
	}
	return size
}
