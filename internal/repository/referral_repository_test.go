package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReferralCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewReferralRepository(db, testLogger())

	ref := &domain.Referral{
		ReferrerID: 100,
		UserID:     200,
		FirstName:  "Ivan",
		Username:   "ivan",
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO referrals`).
		WithArgs(ref.ReferrerID, ref.UserID, ref.FirstName, ref.LastName, ref.Username, ref.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := repo.Create(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralCreateDuplicateIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewReferralRepository(db, testLogger())

	ref := &domain.Referral{ReferrerID: 100, UserID: 200, CreatedAt: time.Now().UTC()}

	// ON CONFLICT DO NOTHING reports zero affected rows for the second insert.
	mock.ExpectExec(`INSERT INTO referrals`).
		WithArgs(ref.ReferrerID, ref.UserID, ref.FirstName, ref.LastName, ref.Username, ref.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.Create(context.Background(), ref)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralCountByReferrer(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := NewReferralRepository(db, testLogger())

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM referrals WHERE referrer_id = \$1`).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByReferrer(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, mock.ExpectationsWereMet())
}
