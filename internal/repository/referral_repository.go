package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
)

// ReferralRepository persists referral records. Insertion is idempotent per
// referred user: at most one record exists for a given user_id and duplicate
// attempts are a documented no-op, not an error.
type ReferralRepository interface {
	// Create inserts the referral unless one already exists for the referred
	// user. Returns true when a new record was stored.
	Create(ctx context.Context, ref *domain.Referral) (bool, error)
	CountByReferrer(ctx context.Context, referrerID int64) (int, error)
}

type referralRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewReferralRepository creates a SQL-backed referral store.
func NewReferralRepository(db *sql.DB, log *slog.Logger) ReferralRepository {
	return &referralRepository{
		db:  db,
		log: log,
	}
}

func (r *referralRepository) Create(ctx context.Context, ref *domain.Referral) (bool, error) {
	const query = `
		INSERT INTO referrals (referrer_id, user_id, first_name, last_name, username, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		ref.ReferrerID,
		ref.UserID,
		ref.FirstName,
		ref.LastName,
		ref.Username,
		ref.CreatedAt,
	)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to create referral",
				slog.Int64("referrer_id", ref.ReferrerID),
				slog.Int64("user_id", ref.UserID),
				slog.Any("error", err),
			)
		}
		return false, fmt.Errorf("insert referral: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert referral: %w", err)
	}

	return affected > 0, nil
}

func (r *referralRepository) CountByReferrer(ctx context.Context, referrerID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(
		ctx, `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, referrerID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}

	return count, nil
}
