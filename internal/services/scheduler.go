package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskforge/backend/usecase/recurrence"
)

// SchedulerConfig sets the cadence of the periodic sweeps. Zero values fall
// back to the defaults below.
type SchedulerConfig struct {
	RecurrenceInterval time.Duration
	DueSoonInterval    time.Duration
	DueSoonLookahead   time.Duration
	OverdueInterval    time.Duration
	RedeliveryInterval time.Duration
	JournalRetention   time.Duration
}

func (c *SchedulerConfig) applyDefaults() {
	if c.RecurrenceInterval <= 0 {
		c.RecurrenceInterval = time.Minute
	}
	if c.DueSoonInterval <= 0 {
		c.DueSoonInterval = 15 * time.Minute
	}
	if c.DueSoonLookahead <= 0 {
		c.DueSoonLookahead = DefaultDueSoonLookahead
	}
	if c.OverdueInterval <= 0 {
		c.OverdueInterval = time.Hour
	}
	if c.RedeliveryInterval <= 0 {
		c.RedeliveryInterval = 30 * time.Second
	}
	if c.JournalRetention <= 0 {
		c.JournalRetention = 7 * 24 * time.Hour
	}
}

// Scheduler hosts the engine's periodic work: firing due recurrence rules,
// the due-soon and overdue sweeps, and journal redelivery. Components left
// nil simply get no job.
type Scheduler struct {
	engine     *recurrence.Engine
	fanout     *Fanout
	redelivery *Redelivery
	logger     *zap.Logger
	cron       *cron.Cron
	cfg        SchedulerConfig
}

func NewScheduler(
	engine *recurrence.Engine,
	fanout *Fanout,
	redelivery *Redelivery,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		engine:     engine,
		fanout:     fanout,
		redelivery: redelivery,
		logger:     logger,
		cron:       cron.New(cron.WithSeconds()),
		cfg:        cfg,
	}

	if s.engine != nil {
		s.add(cfg.RecurrenceInterval, s.fireRecurrences)
	}
	if s.fanout != nil {
		s.add(cfg.DueSoonInterval, s.sweepDueSoon)
		s.add(cfg.OverdueInterval, s.sweepOverdue)
	}
	if s.redelivery != nil {
		s.add(cfg.RedeliveryInterval, s.drainJournal)
		s.add(24*time.Hour, s.expireJournal)
	}
	return s
}

func (s *Scheduler) add(interval time.Duration, job func(context.Context)) {
	spec := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	_, _ = s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		job(ctx)
	})
}

// Start launches the cron scheduler.
func (s *Scheduler) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Duration("recurrence_interval", s.cfg.RecurrenceInterval),
		zap.Duration("due_soon_interval", s.cfg.DueSoonInterval),
		zap.Duration("overdue_interval", s.cfg.OverdueInterval))
}

// Stop waits for running jobs to finish or the context to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) fireRecurrences(ctx context.Context) {
	created, err := s.engine.FireDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("recurrence sweep failed", zap.Error(err))
	}
	if len(created) > 0 {
		s.logger.Info("recurrence instances created", zap.Int("count", len(created)))
	}
}

func (s *Scheduler) sweepDueSoon(ctx context.Context) {
	produced, err := s.fanout.ScanDueSoon(ctx, time.Now(), s.cfg.DueSoonLookahead)
	if err != nil {
		s.logger.Error("due-soon sweep failed", zap.Error(err))
	}
	if len(produced) > 0 {
		s.logger.Info("due-soon reminders produced", zap.Int("count", len(produced)))
	}
}

func (s *Scheduler) sweepOverdue(ctx context.Context) {
	produced, err := s.fanout.ScanOverdue(ctx, time.Now())
	if err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
	}
	if len(produced) > 0 {
		s.logger.Info("overdue notices produced", zap.Int("count", len(produced)))
	}
}

func (s *Scheduler) drainJournal(ctx context.Context) {
	if err := s.redelivery.Drain(ctx); err != nil {
		s.logger.Error("journal drain failed", zap.Error(err))
	}
}

func (s *Scheduler) expireJournal(context.Context) {
	if err := s.redelivery.Expire(time.Now().Add(-s.cfg.JournalRetention)); err != nil {
		s.logger.Error("journal cleanup failed", zap.Error(err))
	}
}
