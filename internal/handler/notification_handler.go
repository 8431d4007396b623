package handler

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	"github.com/coinrush-app/coinrush-backend/internal/jobs"
	"github.com/coinrush-app/coinrush-backend/internal/notification"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
)

// NotificationHandler exposes the campaign endpoints used by the admin panel
// and the in-game read receipt.
type NotificationHandler struct {
	service *notification.Service
	queue   jobs.Manager
	log     *slog.Logger
}

func NewNotificationHandler(service *notification.Service, queue jobs.Manager, log *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, queue: queue, log: log}
}

type sendNotificationRequest struct {
	Type        string            `json:"type"`
	Message     string            `json:"message"`
	Important   bool              `json:"important"`
	Conditions  domain.Conditions `json:"conditions"`
	Button      *domain.Button    `json:"button"`
	TestUserID  int64             `json:"testUserId"`
	ScheduledAt *time.Time        `json:"scheduledAt"`
}

// Send launches a campaign immediately, or schedules it when scheduledAt is
// set in the future.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req sendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	if req.Message == "" {
		FailValidation(c, "message is required")
		return
	}

	rule, err := notification.ParseRule(req.Type, req.Conditions, req.TestUserID)
	if err != nil {
		Fail(c, err)
		return
	}

	if req.ScheduledAt != nil && req.ScheduledAt.After(time.Now()) {
		record, err := h.service.Schedule(c.Request.Context(), rule, req.Message, req.Important, req.Button, *req.ScheduledAt)
		if err != nil {
			Fail(c, err)
			return
		}

		// The periodic dispatch poll would pick the campaign up anyway, the
		// queued task just delivers it on time rather than on the next tick.
		if task, err := jobs.NewDispatchTask(record.ID); err == nil {
			if _, err := h.queue.Enqueue(c.Request.Context(), task, asynq.ProcessAt(*req.ScheduledAt)); err != nil {
				h.log.Warn("enqueue scheduled dispatch failed",
					slog.Int64("notification_id", record.ID),
					slog.String("error", err.Error()),
				)
			}
		}

		OK(c, record)
		return
	}

	result, err := h.service.Send(c.Request.Context(), rule, req.Message, req.Important, req.Button)
	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, result)
}

type testNotificationRequest struct {
	UserID    int64          `json:"userId"`
	Message   string         `json:"message"`
	Important bool           `json:"important"`
	Button    *domain.Button `json:"button"`
}

// SendTest delivers a single marked test message without creating a campaign
// record.
func (h *NotificationHandler) SendTest(c *gin.Context) {
	var req testNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	if req.Message == "" {
		FailValidation(c, "message is required")
		return
	}

	if err := h.service.SendTest(c.Request.Context(), req.UserID, req.Message, req.Important, req.Button); err != nil {
		Fail(c, err)
		return
	}

	OKMessage(c, "Тестовое уведомление отправлено")
}

// MarkRead records a read receipt for a delivered campaign.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}

	OK(c, gin.H{"read": true})
}

// Stats reports campaign totals across all sent notifications.
func (h *NotificationHandler) Stats(c *gin.Context) {
	agg, err := h.service.Stats(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, agg)
}

// List returns all campaigns, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	notifications, err := h.service.List(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, notifications)
}

// Get returns a single campaign by id.
func (h *NotificationHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	record, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, record)
}

type updateNotificationRequest struct {
	Message     *string        `json:"message"`
	Important   *bool          `json:"important"`
	Button      *domain.Button `json:"button"`
	ScheduledAt *time.Time     `json:"scheduledAt"`
}

// Update edits a campaign that has not been sent yet.
func (h *NotificationHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	record, err := h.service.Update(c.Request.Context(), id, repository.NotificationUpdate{
		Message:     req.Message,
		Important:   req.Important,
		Button:      req.Button,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, record)
}

// Delete removes a campaign that has not been sent yet.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}

	OK(c, gin.H{"deleted": true})
}

// pathID parses the :id path parameter, responding with a validation error
// on malformed input.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		FailValidation(c, "некорректный идентификатор")
		return 0, false
	}

	return id, true
}
