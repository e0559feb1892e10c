package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"servicesartisans_backend/internal/notification/outbox"
	"servicesartisans_backend/platform/logger"
)

type fakeOutboxQueue struct {
	records  []outbox.Record
	requeued []uuid.UUID
}

func (f *fakeOutboxQueue) ClaimPending(_ context.Context, _ int) ([]outbox.Record, error) {
	claimed := f.records
	f.records = nil
	return claimed, nil
}

func (f *fakeOutboxQueue) MarkPending(_ context.Context, id uuid.UUID, _ *string) error {
	f.requeued = append(f.requeued, id)
	return nil
}

func TestDispatchOnceEnqueuesClaimedRecords(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(schedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	queue := &fakeOutboxQueue{records: []outbox.Record{
		{ID: uuid.New(), RunAt: time.Now()},
		{ID: uuid.New(), RunAt: time.Now().Add(time.Minute)},
	}}
	dispatcher := NewOutboxDispatcher(client, queue, logger.New("development"))

	dispatcher.dispatchOnce(context.Background())

	if len(queue.requeued) != 0 {
		t.Errorf("no record should go back to pending, got %v", queue.requeued)
	}
	found := false
	for _, key := range srv.Keys() {
		if len(key) > 6 && key[:6] == "asynq:" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected asynq keys in redis, got %v", srv.Keys())
	}
}

func TestDispatchOnceRequeuesOnEnqueueFailure(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(schedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	// Kill redis so every enqueue fails.
	srv.Close()

	rec := outbox.Record{ID: uuid.New(), RunAt: time.Now()}
	queue := &fakeOutboxQueue{records: []outbox.Record{rec}}
	dispatcher := NewOutboxDispatcher(client, queue, logger.New("development"))

	dispatcher.dispatchOnce(context.Background())

	if len(queue.requeued) != 1 || queue.requeued[0] != rec.ID {
		t.Fatalf("expected the record back in pending, got %v", queue.requeued)
	}
}
