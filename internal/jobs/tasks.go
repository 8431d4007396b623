// Package jobs runs background work over asynq: dispatching scheduled
// notification campaigns and sweeping ones stuck mid-send.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeDispatch   = "notification:dispatch"
	TaskTypeSweepStale = "notification:sweep_stale"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues is the queue priority map used by the worker.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type DispatchPayload struct {
	NotificationID int64 `json:"notificationId"`
}

// NewDispatchTask enqueues delivery of one scheduled campaign. MaxRetry is
// zero because delivery is at most once, a crashed attempt is finished by
// the stale sweep instead of re-sending.
func NewDispatchTask(notificationID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(DispatchPayload{NotificationID: notificationID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeDispatch, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
	), nil
}

// NewSweepStaleTask marks campaigns stuck in the sending state as stalled.
func NewSweepStaleTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTypeSweepStale, nil, asynq.Queue(QueueLow)), nil
}
