// Package monitor keeps a freshness-bounded view of the engine's backing
// stores for the ops endpoints.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskforge/backend/internal/infrastructure/journal"
)

const (
	pgProbeTimeout    = 3 * time.Second
	redisProbeTimeout = 2 * time.Second
)

// Monitor polls the stores on a fixed cadence and caches the last result;
// readers never trigger a live probe.
type Monitor struct {
	pg      *pgxpool.Pool
	redis   *redislib.Client
	journal *journal.Store

	interval time.Duration
	logger   *zap.Logger

	mu   sync.RWMutex
	last Status

	done chan struct{}
}

func New(pg *pgxpool.Pool, redis *redislib.Client, jnl *journal.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		journal:  jnl,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the probe loop. The first cycle runs immediately so the
// status is populated before the listener accepts traffic.
func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) Stop() {
	close(m.done)
}

// GetStatus returns the result of the most recent probe cycle.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) run() {
	m.probe()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.done:
			return
		}
	}
}

func (m *Monitor) probe() {
	var s Status
	s.PostgreSQL = m.pingPostgres()
	s.Redis = m.pingRedis()
	s.Journal, s.JournalBacklog = m.journalBacklog()
	s.LastCheck = time.Now()

	m.mu.Lock()
	m.last = s
	m.mu.Unlock()

	if !s.Healthy() {
		m.logger.Warn("dependency probe degraded",
			zap.Bool("postgresql", s.PostgreSQL),
			zap.Bool("redis", s.Redis))
	}
}

func (m *Monitor) pingPostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), pgProbeTimeout)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) pingRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) journalBacklog() (bool, int) {
	if m.journal == nil {
		return false, 0
	}
	size, err := m.journal.Size()
	if err != nil {
		m.logger.Warn("journal size probe failed", zap.Error(err))
		return false, 0
	}
	return true, size
}
