package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"servicesartisans_backend/internal/notification/outbox"
	"servicesartisans_backend/platform/logger"
)

const dispatchPollInterval = 2 * time.Second

// OutboxQueue is the slice of the outbox repository the dispatcher needs.
type OutboxQueue interface {
	ClaimPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
}

// OutboxDispatcher moves due pending outbox rows onto the asynq queue.
// Claiming uses FOR UPDATE SKIP LOCKED, so several dispatchers can run.
type OutboxDispatcher struct {
	client *Client
	repo   OutboxQueue
	log    *logger.Logger
}

func NewOutboxDispatcher(client *Client, repo OutboxQueue, log *logger.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{client: client, repo: repo, log: log}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(dispatchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		d.dispatchOnce(ctx)
	}
}

// dispatchOnce claims one batch of due rows and hands each to asynq at its
// run_at instant. Rows that fail to enqueue go back to pending with the
// error recorded; the next poll retries them.
func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	records, err := d.repo.ClaimPending(ctx, 50)
	if err != nil {
		d.log.Warn("outbox claim failed", "error", err)
		return
	}

	for _, rec := range records {
		payload := NotificationOutboxDuePayload{OutboxID: rec.ID.String()}
		if err := d.client.EnqueueOutboxDue(ctx, payload, rec.RunAt); err != nil {
			msg := err.Error()
			_ = d.repo.MarkPending(ctx, rec.ID, &msg)
		}
	}
}
