package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
	"github.com/coinrush-app/coinrush-backend/pkg/metrics"
)

// CampaignResult is returned to the caller of a send operation.
type CampaignResult struct {
	NotificationID int64     `json:"notificationId"`
	TargetCount    int       `json:"targetCount"`
	SuccessCount   int       `json:"successCount"`
	FailedCount    int       `json:"failedCount"`
	Failures       []Failure `json:"failures"`
}

// Service orchestrates campaigns: resolve recipients, persist the record,
// fan out, and write back final stats.
type Service struct {
	selector      *Selector
	notifications repository.NotificationRepository
	dispatcher    *Dispatcher
	log           *slog.Logger
}

// NewService constructs the campaign service.
func NewService(
	selector *Selector,
	notifications repository.NotificationRepository,
	dispatcher *Dispatcher,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		selector:      selector,
		notifications: notifications,
		dispatcher:    dispatcher,
		log:           log,
	}
}

// Send runs a full campaign synchronously. The record's target snapshot is
// frozen at creation; the only later mutation is the single finalize write.
// Delivery is at-most-once and best-effort: there is no retry and no
// resumption if the process dies mid-loop (the sweep job flags such records
// as stalled).
func (s *Service) Send(ctx context.Context, rule TargetRule, message string, important bool, button *domain.Button) (*CampaignResult, error) {
	targets, err := s.selector.Resolve(ctx, rule)
	if err != nil {
		return nil, err
	}

	record := &domain.Notification{
		Type:       string(rule.Kind),
		Message:    message,
		Important:  important,
		Conditions: rule.Conditions(),
		Button:     button,
		Status:     domain.StatusSending,
		Stats: domain.DeliveryStats{
			TargetCount: len(targets),
			TargetUsers: targets,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.notifications.Create(ctx, record); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Info("campaign started",
		slog.Int64("notification_id", record.ID),
		slog.String("type", record.Type),
		slog.Int("target_count", len(targets)),
	)

	result := s.dispatcher.Dispatch(ctx, targets, message, important, button)

	// Cancellation stops the fan-out between recipients, but the counts
	// observed so far must still land in the record.
	if _, err := s.notifications.Finalize(context.WithoutCancel(ctx), record.ID, result.SentCount, result.FailedCount); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	metrics.RecordCampaign(record.Type, string(domain.StatusSent))

	s.log.Info("campaign finished",
		slog.Int64("notification_id", record.ID),
		slog.Int("sent", result.SentCount),
		slog.Int("failed", result.FailedCount),
	)

	return &CampaignResult{
		NotificationID: record.ID,
		TargetCount:    len(targets),
		SuccessCount:   result.SentCount,
		FailedCount:    result.FailedCount,
		Failures:       result.Failures,
	}, nil
}

// Schedule stores a campaign for later dispatch by the jobs worker.
func (s *Service) Schedule(ctx context.Context, rule TargetRule, message string, important bool, button *domain.Button, at time.Time) (*domain.Notification, error) {
	targets, err := s.selector.Resolve(ctx, rule)
	if err != nil {
		return nil, err
	}

	record := &domain.Notification{
		Type:        string(rule.Kind),
		Message:     message,
		Important:   important,
		Conditions:  rule.Conditions(),
		Button:      button,
		Status:      domain.StatusScheduled,
		ScheduledAt: &at,
		Stats: domain.DeliveryStats{
			TargetCount: len(targets),
			TargetUsers: targets,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.notifications.Create(ctx, record); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return record, nil
}

// DispatchScheduled sends a previously scheduled campaign using its frozen
// target snapshot.
func (s *Service) DispatchScheduled(ctx context.Context, id int64) error {
	if err := s.notifications.MarkSending(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// already picked up or no longer scheduled
			return nil
		}
		return apperrors.NewDatabaseError(err)
	}

	record, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}

	result := s.dispatcher.Dispatch(ctx, record.Stats.TargetUsers, record.Message, record.Important, record.Button)

	if _, err := s.notifications.Finalize(context.WithoutCancel(ctx), id, result.SentCount, result.FailedCount); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	metrics.RecordCampaign(record.Type, string(domain.StatusSent))

	return nil
}

// SendTest delivers a single test message without creating a campaign record.
func (s *Service) SendTest(ctx context.Context, userID int64, message string, important bool, button *domain.Button) error {
	if userID == 0 {
		return apperrors.NewValidationError("test user ID is required")
	}

	formatted := FormatMessage(message, important, true)
	if err := s.dispatcher.SendTo(ctx, userID, formatted, important, button); err != nil {
		return apperrors.NewDeliveryError(userID, err)
	}

	return nil
}

// List returns all campaigns, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Notification, error) {
	notifications, err := s.notifications.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return notifications, nil
}

// Get returns one campaign.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Notification, error) {
	record, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("notification")
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	return record, nil
}

// Update edits a campaign that has not been sent yet.
func (s *Service) Update(ctx context.Context, id int64, upd repository.NotificationUpdate) (*domain.Notification, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !record.Mutable() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf("notification %d already sent", id))
	}

	updated, err := s.notifications.Update(ctx, id, upd)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return updated, nil
}

// Delete removes a campaign that has not been sent yet.
func (s *Service) Delete(ctx context.Context, id int64) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !record.Mutable() {
		return apperrors.NewInvalidStateError(fmt.Sprintf("notification %d already sent", id))
	}

	if err := s.notifications.Delete(ctx, id); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	return nil
}

// MarkRead records a read receipt for the campaign.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	if err := s.notifications.IncrementRead(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("notification")
		}
		return apperrors.NewDatabaseError(err)
	}

	return nil
}

// Stats returns aggregate delivery stats across all campaigns.
func (s *Service) Stats(ctx context.Context) (*repository.NotificationAggregate, error) {
	agg, err := s.notifications.Aggregate(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return agg, nil
}

// SweepStalled marks campaigns stuck in the sending state beyond maxAge.
func (s *Service) SweepStalled(ctx context.Context, maxAge time.Duration) (int64, error) {
	count, err := s.notifications.MarkStalled(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}

	if count > 0 {
		s.log.Warn("stalled campaigns swept", slog.Int64("count", count))
	}

	return count, nil
}

// ListScheduledDue returns scheduled campaigns whose time has come.
func (s *Service) ListScheduledDue(ctx context.Context) ([]domain.Notification, error) {
	due, err := s.notifications.ListScheduledDue(ctx, time.Now().UTC())
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return due, nil
}
