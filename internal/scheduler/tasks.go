// Package scheduler runs the background side of the system: the periodic
// lifecycle sweep and notification outbox delivery, both on asynq.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadSweep = "leads.sweep"

const TaskNotificationOutboxDue = "notification.outbox.due"

// LeadSweepPayload is intentionally empty; the sweep always works on the
// current clock. A payload type is kept for wire-format stability.
type LeadSweepPayload struct{}

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

func NewLeadSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(LeadSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadSweep, data), nil
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}
