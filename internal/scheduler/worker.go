package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"servicesartisans_backend/internal/email"
	"servicesartisans_backend/internal/leads/maintenance"
	"servicesartisans_backend/internal/notification"
	"servicesartisans_backend/internal/notification/outbox"
	"servicesartisans_backend/platform/config"
	"servicesartisans_backend/platform/logger"
)

const maxDeliveryAttempts = 5

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper *maintenance.Sweeper
	outbox  *outbox.Repository
	sender  email.Sender
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper *maintenance.Sweeper, ob *outbox.Repository, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		outbox:  ob,
		sender:  sender,
		log:     log,
	}

	mux.HandleFunc(TaskLeadSweep, w.handleLeadSweep)
	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)

	return w, nil
}

func (w *Worker) handleLeadSweep(ctx context.Context, _ *asynq.Task) error {
	expired, err := w.sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.log.Info("sweep expired assignments", "count", expired)
	}
	return nil
}

// handleNotificationOutboxDue delivers one outbox record. Transient send
// failures return the record to pending for another attempt; after
// maxDeliveryAttempts it is marked failed and kept for inspection.
func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}
	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	rec, err := w.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := w.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	if err := notification.Deliver(ctx, rec, w.sender); err != nil {
		w.log.Warn("notification delivery failed", "outboxId", rec.ID, "template", rec.Template, "attempts", rec.Attempts+1, "error", err)
		if rec.Attempts+1 >= maxDeliveryAttempts {
			return w.outbox.MarkFailed(ctx, rec.ID, err.Error())
		}
		msg := err.Error()
		return w.outbox.MarkPending(ctx, rec.ID, &msg)
	}

	return w.outbox.MarkSucceeded(ctx, rec.ID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
