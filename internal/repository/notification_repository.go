package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
)

// NotificationAggregate summarizes delivery stats across all campaigns.
type NotificationAggregate struct {
	TotalSent   int     `json:"totalSent"`
	TotalRead   int     `json:"totalRead"`
	AvgReadRate float64 `json:"avgReadRate"`
}

// NotificationUpdate carries the editable fields of a pre-sent campaign.
type NotificationUpdate struct {
	Message     *string
	Important   *bool
	Button      *domain.Button
	ScheduledAt *time.Time
}

// NotificationRepository owns Notification records and their delivery stats.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)
	List(ctx context.Context) ([]domain.Notification, error)
	// Finalize is the single atomic post-dispatch write: status becomes
	// "sent", sent_at is stamped, and final counts are recorded.
	Finalize(ctx context.Context, id int64, sentCount, failedCount int) (*domain.Notification, error)
	// MarkSending transitions a scheduled campaign into the sending state
	// and stamps sending_at; returns ErrNotFound when the record is missing
	// or not scheduled.
	MarkSending(ctx context.Context, id int64) error
	Update(ctx context.Context, id int64, upd NotificationUpdate) (*domain.Notification, error)
	Delete(ctx context.Context, id int64) error
	IncrementRead(ctx context.Context, id int64) error
	Aggregate(ctx context.Context) (*NotificationAggregate, error)
	// MarkStalled flags records whose delivery started before cutoff and
	// never finished, and returns how many were flagged. Staleness is
	// measured from sending_at: a campaign scheduled long after creation
	// only becomes sweep-eligible once its own fan-out has been running
	// past the threshold.
	MarkStalled(ctx context.Context, cutoff time.Time) (int64, error)
	ListScheduledDue(ctx context.Context, now time.Time) ([]domain.Notification, error)
}

type notificationRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewNotificationRepository creates a SQL-backed notification store.
func NewNotificationRepository(db *sql.DB, log *slog.Logger) NotificationRepository {
	return &notificationRepository{
		db:  db,
		log: log,
	}
}

const notificationColumns = `id, type, message, important, conditions, button, status,
	target_count, sent_count, failed_count, read_count, target_users,
	scheduled_at, sent_at, created_at`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	conditions, err := json.Marshal(n.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}

	var button []byte
	if n.Button != nil {
		if button, err = json.Marshal(n.Button); err != nil {
			return fmt.Errorf("encode button: %w", err)
		}
	}

	targets, err := json.Marshal(n.Stats.TargetUsers)
	if err != nil {
		return fmt.Errorf("encode target snapshot: %w", err)
	}

	// Direct sends enter "sending" at creation, so sending_at starts then;
	// scheduled campaigns get it stamped by MarkSending.
	var sendingAt *time.Time
	if n.Status == domain.StatusSending {
		now := n.CreatedAt
		sendingAt = &now
	}

	const query = `
		INSERT INTO notifications (type, message, important, conditions, button, status,
			target_count, sent_count, failed_count, read_count, target_users, scheduled_at, sending_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, $8, $9, $10, $11)
		RETURNING id
	`

	if err := r.db.QueryRowContext(
		ctx,
		query,
		n.Type,
		n.Message,
		n.Important,
		conditions,
		button,
		n.Status,
		n.Stats.TargetCount,
		targets,
		n.ScheduledAt,
		sendingAt,
		n.CreatedAt,
	).Scan(&n.ID); err != nil {
		r.logError("create", 0, err)
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE id = $1`, notificationColumns)

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("get_by_id", id, err)
		return nil, fmt.Errorf("select notification: %w", err)
	}

	return n, nil
}

func (r *notificationRepository) List(ctx context.Context) ([]domain.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications ORDER BY created_at DESC`, notificationColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logError("list", 0, err)
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}

	return notifications, rows.Err()
}

func (r *notificationRepository) Finalize(ctx context.Context, id int64, sentCount, failedCount int) (*domain.Notification, error) {
	query := fmt.Sprintf(`
		UPDATE notifications
		SET status = $2, sent_count = $3, failed_count = $4, sent_at = $5
		WHERE id = $1
		RETURNING %s`, notificationColumns)

	n, err := scanNotification(r.db.QueryRowContext(
		ctx, query, id, domain.StatusSent, sentCount, failedCount, time.Now().UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("finalize", id, err)
		return nil, fmt.Errorf("finalize notification: %w", err)
	}

	return n, nil
}

func (r *notificationRepository) MarkSending(ctx context.Context, id int64) error {
	const query = `UPDATE notifications SET status = $2, sending_at = $3 WHERE id = $1 AND status = $4`

	res, err := r.db.ExecContext(ctx, query, id, domain.StatusSending, time.Now().UTC(), domain.StatusScheduled)
	if err != nil {
		r.logError("mark_sending", id, err)
		return fmt.Errorf("mark notification sending: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification sending: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *notificationRepository) Update(ctx context.Context, id int64, upd NotificationUpdate) (*domain.Notification, error) {
	var button []byte
	if upd.Button != nil {
		encoded, err := json.Marshal(upd.Button)
		if err != nil {
			return nil, fmt.Errorf("encode button: %w", err)
		}
		button = encoded
	}

	query := fmt.Sprintf(`
		UPDATE notifications
		SET message      = COALESCE($2, message),
			important    = COALESCE($3, important),
			button       = COALESCE($4, button),
			scheduled_at = COALESCE($5, scheduled_at)
		WHERE id = $1
		RETURNING %s`, notificationColumns)

	n, err := scanNotification(r.db.QueryRowContext(
		ctx, query, id, upd.Message, upd.Important, button, upd.ScheduledAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("update", id, err)
		return nil, fmt.Errorf("update notification: %w", err)
	}

	return n, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		r.logError("delete", id, err)
		return fmt.Errorf("delete notification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *notificationRepository) IncrementRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read_count = read_count + 1 WHERE id = $1`, id)
	if err != nil {
		r.logError("increment_read", id, err)
		return fmt.Errorf("increment read count: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment read count: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *notificationRepository) Aggregate(ctx context.Context) (*NotificationAggregate, error) {
	const query = `
		SELECT
			COALESCE(SUM(sent_count), 0),
			COALESCE(SUM(read_count), 0),
			COALESCE(AVG(CASE WHEN sent_count > 0 THEN read_count::float / sent_count ELSE 0 END), 0)
		FROM notifications
	`

	var agg NotificationAggregate
	if err := r.db.QueryRowContext(ctx, query).Scan(&agg.TotalSent, &agg.TotalRead, &agg.AvgReadRate); err != nil {
		r.logError("aggregate", 0, err)
		return nil, fmt.Errorf("aggregate notification stats: %w", err)
	}

	return &agg, nil
}

func (r *notificationRepository) MarkStalled(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `UPDATE notifications SET status = $1 WHERE status = $2 AND sending_at < $3`

	res, err := r.db.ExecContext(ctx, query, domain.StatusStalled, domain.StatusSending, cutoff)
	if err != nil {
		r.logError("mark_stalled", 0, err)
		return 0, fmt.Errorf("mark stalled notifications: %w", err)
	}

	return res.RowsAffected()
}

func (r *notificationRepository) ListScheduledDue(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM notifications WHERE status = $1 AND scheduled_at <= $2 ORDER BY scheduled_at`,
		notificationColumns,
	)

	rows, err := r.db.QueryContext(ctx, query, domain.StatusScheduled, now)
	if err != nil {
		r.logError("list_scheduled_due", 0, err)
		return nil, fmt.Errorf("select due notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}

	return notifications, rows.Err()
}

func (r *notificationRepository) logError(operation string, id int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("notification repository operation failed",
		slog.String("operation", operation),
		slog.Int64("notification_id", id),
		slog.Any("error", err),
	)
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n          domain.Notification
		conditions []byte
		button     []byte
		targets    []byte
	)

	if err := row.Scan(
		&n.ID,
		&n.Type,
		&n.Message,
		&n.Important,
		&conditions,
		&button,
		&n.Status,
		&n.Stats.TargetCount,
		&n.Stats.SentCount,
		&n.Stats.FailedCount,
		&n.Stats.ReadCount,
		&targets,
		&n.ScheduledAt,
		&n.SentAt,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &n.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions: %w", err)
		}
	}
	if len(button) > 0 {
		n.Button = &domain.Button{}
		if err := json.Unmarshal(button, n.Button); err != nil {
			return nil, fmt.Errorf("decode button: %w", err)
		}
	}
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &n.Stats.TargetUsers); err != nil {
			return nil, fmt.Errorf("decode target snapshot: %w", err)
		}
	}

	return &n, nil
}
