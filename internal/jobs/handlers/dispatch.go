// Package handlers contains the asynq task handlers for notification jobs.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/coinrush-app/coinrush-backend/internal/jobs"
	"github.com/coinrush-app/coinrush-backend/internal/notification"
)

// DispatchHandler fans out scheduled campaigns whose time has come.
type DispatchHandler struct {
	service *notification.Service
	log     *slog.Logger
}

func NewDispatchHandler(service *notification.Service, log *slog.Logger) *DispatchHandler {
	return &DispatchHandler{service: service, log: log}
}

// ProcessTask handles one dispatch task. A payload naming a campaign sends
// just that one, an empty payload polls for everything due.
func (h *DispatchHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if len(task.Payload()) > 0 {
		var payload jobs.DispatchPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			h.log.Error("dispatch: malformed payload", slog.String("error", err.Error()))
			return nil
		}
		if payload.NotificationID > 0 {
			return h.dispatch(ctx, payload.NotificationID)
		}
	}

	due, err := h.service.ListScheduledDue(ctx)
	if err != nil {
		return err
	}

	for _, record := range due {
		if err := h.dispatch(ctx, record.ID); err != nil {
			h.log.Error("dispatch: campaign failed",
				slog.Int64("notification_id", record.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

func (h *DispatchHandler) dispatch(ctx context.Context, id int64) error {
	h.log.Info("dispatch: sending scheduled campaign", slog.Int64("notification_id", id))
	return h.service.DispatchScheduled(ctx, id)
}
