package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
)

func notificationRows(id int64, status domain.NotificationStatus, targets string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "message", "important", "conditions", "button", "status",
		"target_count", "sent_count", "failed_count", "read_count", "target_users",
		"scheduled_at", "sent_at", "created_at",
	}).AddRow(
		id, "all", "hello", false, []byte(`{}`), nil, string(status),
		2, 0, 0, 0, []byte(targets),
		nil, nil, time.Now().UTC(),
	)
}

func TestNotificationCreateStoresSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	record := &domain.Notification{
		Type:      "all",
		Message:   "hello",
		Status:    domain.StatusSending,
		Stats:     domain.DeliveryStats{TargetCount: 2, TargetUsers: []int64{10, 20}},
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(
			record.Type, record.Message, record.Important,
			[]byte(`{}`), []byte(nil), string(record.Status),
			2, []byte(`[10,20]`), nil, record.CreatedAt, record.CreatedAt,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	require.NoError(t, repo.Create(context.Background(), record))
	assert.Equal(t, int64(5), record.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationCreateScheduledLeavesSendingUnset(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	at := time.Now().UTC().Add(48 * time.Hour)
	record := &domain.Notification{
		Type:        "all",
		Message:     "later",
		Status:      domain.StatusScheduled,
		ScheduledAt: &at,
		Stats:       domain.DeliveryStats{TargetCount: 1, TargetUsers: []int64{10}},
		CreatedAt:   time.Now().UTC(),
	}

	// sending_at stays NULL until MarkSending fires, so a far-future
	// campaign is never sweep-eligible before its own fan-out starts.
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(
			record.Type, record.Message, record.Important,
			[]byte(`{}`), []byte(nil), string(record.Status),
			1, []byte(`[10]`), at, nil, record.CreatedAt,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(6)))

	require.NoError(t, repo.Create(context.Background(), record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationFinalize(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	mock.ExpectQuery(`UPDATE notifications`).
		WithArgs(int64(5), string(domain.StatusSent), 8, 2, sqlmock.AnyArg()).
		WillReturnRows(notificationRows(5, domain.StatusSent, `[10,20]`))

	record, err := repo.Finalize(context.Background(), 5, 8, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, record.Status)
	assert.Equal(t, []int64{10, 20}, record.Stats.TargetUsers)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationFinalizeMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	mock.ExpectQuery(`UPDATE notifications`).
		WithArgs(int64(9), string(domain.StatusSent), 0, 0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.Finalize(context.Background(), 9, 0, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationMarkSending(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	mock.ExpectExec(`UPDATE notifications SET status = \$2, sending_at = \$3 WHERE id = \$1 AND status = \$4`).
		WithArgs(int64(5), string(domain.StatusSending), sqlmock.AnyArg(), string(domain.StatusScheduled)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSending(context.Background(), 5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkSendingAlreadyPicked(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	mock.ExpectExec(`UPDATE notifications`).
		WithArgs(int64(5), string(domain.StatusSending), sqlmock.AnyArg(), string(domain.StatusScheduled)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.MarkSending(context.Background(), 5), ErrNotFound)
}

func TestNotificationMarkStalled(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	cutoff := time.Now().UTC().Add(-time.Hour)
	mock.ExpectExec(`UPDATE notifications SET status = \$1 WHERE status = \$2 AND sending_at < \$3`).
		WithArgs(string(domain.StatusStalled), string(domain.StatusSending), cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.MarkStalled(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestNotificationGetByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewNotificationRepository(db, testLogger())

	mock.ExpectQuery(`SELECT .* FROM notifications WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
