package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servicesartisans_backend/internal/email"
	"servicesartisans_backend/internal/events"
	"servicesartisans_backend/internal/leads"
	"servicesartisans_backend/internal/notification"
	"servicesartisans_backend/internal/providers"
	"servicesartisans_backend/internal/scheduler"
	"servicesartisans_backend/platform/config"
	"servicesartisans_backend/platform/db"
	"servicesartisans_backend/platform/logger"
	"servicesartisans_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	sender := email.NewSender(cfg, log)

	// Notification module stages outbox rows for facts emitted by
	// worker-side dispatch continuations (declines and expiries).
	notificationModule := notification.NewModule(pool, eventBus, cfg.GetAppBaseURL(), log)

	val := validator.New()

	// Worker-side lead lifecycle wiring (no HTTP handlers required).
	providersModule := providers.NewModule(pool, val)
	leadsModule := leads.NewModule(pool, providersModule.CandidateSource(), eventBus, val, cfg, log)

	queueClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize queue client", "error", err)
		panic("failed to initialize queue client: " + err.Error())
	}
	defer func() { _ = queueClient.Close() }()

	dispatcher := scheduler.NewOutboxDispatcher(queueClient, notificationModule.Outbox(), log)
	go dispatcher.Run(ctx)

	// Periodic sweep of stale assignments, independent of enqueued jobs.
	go func() {
		if err := leadsModule.Sweeper().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("assignment sweeper stopped", "error", err)
		}
	}()

	// Catch up on work that came due while the process was down; the
	// ticker above only fires after a full sweep interval.
	if err := queueClient.ScheduleSweep(ctx, time.Now()); err != nil {
		log.Warn("startup sweep enqueue failed", "error", err)
	}

	worker, err := scheduler.NewWorker(cfg, leadsModule.Sweeper(), notificationModule.Outbox(), sender, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
