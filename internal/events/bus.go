// Package events carries committed task lifecycle facts to in-process
// subscribers. Delivery for one event follows subscriber registration
// order; delivery across events follows publish order. Subscriber failures
// are isolated: logged, journaled, and never surfaced to the publisher.
package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/taskforge/backend/domain"
	"github.com/taskforge/backend/usecase"
)

// Subscriber consumes lifecycle events. Handle must treat the event as
// read-only; returning an error records the delivery in the journal.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, event domain.Event) error
}

// Func adapts a bare function to the Subscriber interface.
type Func struct {
	Label   string
	Handler func(ctx context.Context, event domain.Event) error
}

func (f Func) Name() string { return f.Label }

func (f Func) Handle(ctx context.Context, event domain.Event) error {
	return f.Handler(ctx, event)
}

// Journal records deliveries a subscriber failed to process, for operator
// inspection and redelivery.
type Journal interface {
	Record(ctx context.Context, subscriber string, event domain.Event, cause error) error
}

// Config controls bus behavior. QueueSize zero dispatches synchronously on
// the publishing goroutine; a positive size runs a single worker draining a
// bounded FIFO, and Publish blocks while the queue is full rather than
// dropping events.
type Config struct {
	QueueSize int
}

type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	queue       chan domain.Event
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	journal     Journal
	logger      *zap.Logger
}

var _ usecase.EventPublisher = (*Bus)(nil)

func New(cfg Config, journal Journal, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		done:    make(chan struct{}),
		journal: journal,
		logger:  logger,
	}
	if cfg.QueueSize > 0 {
		b.queue = make(chan domain.Event, cfg.QueueSize)
		b.wg.Add(1)
		go b.run()
	}
	return b
}

// Subscribe appends a subscriber; registration order is delivery order.
// Subscribers are expected to be registered before the first publish.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish hands the event to every subscriber. In queued mode the caller
// only waits for enqueueing; effects run on the worker.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	select {
	case <-b.done:
		return domain.NewError(domain.ErrCodeInternal, "event bus is closed")
	default:
	}
	if b.queue == nil {
		b.dispatch(ctx, event)
		return nil
	}
	select {
	case b.queue <- event:
		return nil
	case <-b.done:
		return domain.NewError(domain.ErrCodeInternal, "event bus is closed")
	}
}

// Depth reports how many events are waiting in the queue. A sync bus is
// always at depth zero.
func (b *Bus) Depth() int {
	if b.queue == nil {
		return 0
	}
	return len(b.queue)
}

// Close stops intake, drains queued events and waits for the worker.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.queue:
			b.dispatch(context.Background(), event)
		case <-b.done:
			for {
				select {
				case event := <-b.queue:
					b.dispatch(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()
	for _, sub := range subs {
		b.deliver(ctx, sub, event)
	}
}

func (b *Bus) deliver(ctx context.Context, sub Subscriber, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.report(ctx, sub, event, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := sub.Handle(ctx, event); err != nil {
		b.report(ctx, sub, event, err)
	}
}

func (b *Bus) report(ctx context.Context, sub Subscriber, event domain.Event, cause error) {
	b.logger.Error("event subscriber failed",
		zap.String("subscriber", sub.Name()),
		zap.String("kind", string(event.Kind)),
		zap.String("event_id", event.ID),
		zap.String("task_id", event.TaskID),
		zap.Error(cause))
	if b.journal == nil {
		return
	}
	if err := b.journal.Record(ctx, sub.Name(), event, cause); err != nil {
		b.logger.Error("failed to journal event delivery",
			zap.String("subscriber", sub.Name()),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}
