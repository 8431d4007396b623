package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/coinrush-app/coinrush-backend/internal/notification"
)

// SweepHandler marks campaigns stuck in the sending state as stalled.
// A campaign stays in that state only when the process died mid-send, so
// anything older than the threshold is never going to finish on its own.
type SweepHandler struct {
	service    *notification.Service
	staleAfter time.Duration
	log        *slog.Logger
}

func NewSweepHandler(service *notification.Service, staleAfter time.Duration, log *slog.Logger) *SweepHandler {
	return &SweepHandler{
		service:    service,
		staleAfter: staleAfter,
		log:        log,
	}
}

func (h *SweepHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	count, err := h.service.SweepStalled(ctx, h.staleAfter)
	if err != nil {
		return err
	}

	if count > 0 {
		h.log.Warn("sweep: marked stalled campaigns", slog.Int64("count", count))
	}

	return nil
}
