package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskforge/backend/api/handler"
	"github.com/taskforge/backend/internal/config"
	"github.com/taskforge/backend/internal/events"
	"github.com/taskforge/backend/internal/infrastructure/journal"
	"github.com/taskforge/backend/internal/infrastructure/monitor"
	pgInfra "github.com/taskforge/backend/internal/infrastructure/postgres"
	redisInfra "github.com/taskforge/backend/internal/infrastructure/redis"
	"github.com/taskforge/backend/internal/middleware"
	"github.com/taskforge/backend/internal/router"
	"github.com/taskforge/backend/internal/services"
	"github.com/taskforge/backend/internal/services/lifecycle"
	"github.com/taskforge/backend/pkg/httpcontext"
	"github.com/taskforge/backend/pkg/logger"
	"github.com/taskforge/backend/repository/postgres"
	redisRepo "github.com/taskforge/backend/repository/redis"
	recurrenceUC "github.com/taskforge/backend/usecase/recurrence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.Context(context.Background())
	defer cancel()

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.RegisterCloser("redis", redisClient)

	journalStore, err := journal.Open(cfg.Journal.Path, cfg.Journal.Bucket)
	if err != nil {
		zapLogger.Fatal("failed to open journal", zap.Error(err))
	}
	manager.RegisterCloser("journal", journalStore)

	mon := monitor.New(pool, redisClient, journalStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	taskRepo := postgres.NewTaskRepository(pool)
	principalRepo := postgres.NewPrincipalRepository(pool)
	ruleRepo := postgres.NewRecurrenceRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	historyRepo := postgres.NewHistoryRepository(pool)
	snapshotStore := redisRepo.NewSnapshotStore(redisClient, cfg.Engine.SnapshotTTL)

	bus := events.New(
		events.Config{QueueSize: cfg.Engine.EventQueueSize},
		services.NewJournalBridge(journalStore),
		zapLogger,
	)
	manager.Register("event_bus", func(context.Context) error {
		bus.Close()
		return nil
	})

	redelivery := services.NewRedelivery(journalStore, zapLogger, services.RedeliveryConfig{
		BatchSize:  cfg.Journal.BatchSize,
		MaxRetries: cfg.Journal.MaxRetries,
	})

	historyRecorder := services.NewHistoryRecorder(historyRepo, zapLogger)
	invalidator := services.NewInvalidator(snapshotStore, principalRepo, zapLogger)
	fanout := services.NewFanout(notificationRepo, taskRepo, zapLogger)

	// History subscribes first so the audit trail is complete even when a
	// later subscriber fails.
	for _, sub := range []events.Subscriber{historyRecorder, invalidator, fanout} {
		bus.Subscribe(sub)
		redelivery.Register(sub)
	}

	recurrenceEngine := recurrenceUC.New(ruleRepo, taskRepo, principalRepo, bus, zapLogger)

	scheduler := services.NewScheduler(recurrenceEngine, fanout, redelivery, zapLogger, services.SchedulerConfig{
		RecurrenceInterval: cfg.Scheduler.RecurrenceInterval,
		DueSoonInterval:    cfg.Scheduler.DueSoonInterval,
		DueSoonLookahead:   cfg.Scheduler.DueSoonLookahead,
		OverdueInterval:    cfg.Scheduler.OverdueInterval,
		RedeliveryInterval: cfg.Scheduler.RedeliveryInterval,
		JournalRetention:   cfg.Scheduler.JournalRetention,
	})
	scheduler.Start()
	manager.Register("scheduler", func(ctx context.Context) error {
		scheduler.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
		Ops:    apiHandler.NewOpsHandler(journalStore, bus, ctxAdapter, zapLogger),
	}

	recoverMW := middleware.Recover(zapLogger)
	logMW := middleware.AccessLog(zapLogger)
	r := router.New(handlers, func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return logMW(recoverMW(next))
	})

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("ops listener started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("ops listener crashed", zap.Error(err))
		}
	}()
	manager.Register("ops_listener", func(context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
