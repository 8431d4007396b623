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

// ListUsersQuery describes pagination, search, and ordering for user listings.
type ListUsersQuery struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

// UserListStats aggregates counters shown next to the user listing.
type UserListStats struct {
	Total       int   `json:"total"`
	ActiveToday int   `json:"activeToday"`
	NewThisWeek int   `json:"newThisWeek"`
	TotalIncome int64 `json:"totalIncome"`
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
	List(ctx context.Context, q ListUsersQuery) ([]domain.User, int, error)
	ListStats(ctx context.Context, search string) (*UserListStats, error)
	AllIDs(ctx context.Context) ([]int64, error)
	IDsWithMinLevel(ctx context.Context, minLevel int) ([]int64, error)
	IDsWithMinIncome(ctx context.Context, minIncome int64) ([]int64, error)
	UpdateGameData(ctx context.Context, telegramID int64, data domain.GameData, lastLogin *time.Time) (*domain.User, error)
	ToggleBlocked(ctx context.Context, telegramID int64) (*domain.User, error)
	ResetProgress(ctx context.Context, telegramID int64, data domain.GameData) (*domain.User, error)
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

const userColumns = `telegram_id, first_name, last_name, username, photo_url, language_code, game_data, blocked, last_login, registered_at`

func (r *userRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT id, %s FROM users WHERE telegram_id = $1`, userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("find_by_telegram_id", telegramID, err)
		return nil, fmt.Errorf("select user by telegram id: %w", err)
	}

	return user, nil
}

// Upsert creates the user on first contact and refreshes profile fields and
// last_login on every subsequent /start.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	gameData, err := json.Marshal(user.GameData)
	if err != nil {
		return fmt.Errorf("encode game data: %w", err)
	}

	const query = `
		INSERT INTO users (telegram_id, first_name, last_name, username, photo_url, language_code, game_data, blocked, last_login, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (telegram_id) DO UPDATE SET
			first_name    = EXCLUDED.first_name,
			last_name     = EXCLUDED.last_name,
			username      = EXCLUDED.username,
			language_code = EXCLUDED.language_code,
			last_login    = EXCLUDED.last_login
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.TelegramID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.PhotoURL,
		user.LanguageCode,
		gameData,
		user.Blocked,
		user.LastLogin,
		user.RegisteredAt,
	); err != nil {
		r.logError("upsert", user.TelegramID, err)
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (r *userRepository) List(ctx context.Context, q ListUsersQuery) ([]domain.User, int, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}

	where, args := searchClause(q.Search, 1)

	order := "last_login"
	switch q.SortBy {
	case "level":
		order = "(game_data->'level'->>'current')::int"
	case "income":
		order = "(game_data->>'passiveIncome')::bigint"
	case "registeredAt":
		order = "registered_at"
	}

	direction := "DESC"
	if q.SortOrder == "asc" {
		direction = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT id, %s FROM users %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		userColumns, where, order, direction, len(args)+1, len(args)+2,
	)
	listArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)

	rows, err := r.db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		r.logError("list", 0, err)
		return nil, 0, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM users %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

func (r *userRepository) ListStats(ctx context.Context, search string) (*UserListStats, error) {
	where, args := searchClause(search, 3)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE last_login >= $1),
			COUNT(*) FILTER (WHERE registered_at >= $2),
			COALESCE(SUM((game_data->>'passiveIncome')::bigint), 0)
		FROM users %s`, where)

	now := time.Now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.AddDate(0, 0, -7)

	queryArgs := append([]any{todayStart, weekAgo}, args...)

	var stats UserListStats
	if err := r.db.QueryRowContext(ctx, query, queryArgs...).Scan(
		&stats.Total,
		&stats.ActiveToday,
		&stats.NewThisWeek,
		&stats.TotalIncome,
	); err != nil {
		r.logError("list_stats", 0, err)
		return nil, fmt.Errorf("aggregate user stats: %w", err)
	}

	return &stats, nil
}

// AllIDs returns every user's Telegram ID ordered ascending so fan-out order
// is deterministic.
func (r *userRepository) AllIDs(ctx context.Context) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT telegram_id FROM users ORDER BY telegram_id`)
}

func (r *userRepository) IDsWithMinLevel(ctx context.Context, minLevel int) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT telegram_id FROM users WHERE (game_data->'level'->>'current')::int >= $1 ORDER BY telegram_id`,
		minLevel,
	)
}

func (r *userRepository) IDsWithMinIncome(ctx context.Context, minIncome int64) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT telegram_id FROM users WHERE (game_data->>'passiveIncome')::bigint >= $1 ORDER BY telegram_id`,
		minIncome,
	)
}

func (r *userRepository) UpdateGameData(ctx context.Context, telegramID int64, data domain.GameData, lastLogin *time.Time) (*domain.User, error) {
	gameData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode game data: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET game_data = $2, last_login = COALESCE($3, last_login)
		WHERE telegram_id = $1
		RETURNING id, %s`, userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID, gameData, lastLogin))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("update_game_data", telegramID, err)
		return nil, fmt.Errorf("update game data: %w", err)
	}

	return user, nil
}

func (r *userRepository) ToggleBlocked(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := fmt.Sprintf(`
		UPDATE users SET blocked = NOT blocked
		WHERE telegram_id = $1
		RETURNING id, %s`, userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("toggle_blocked", telegramID, err)
		return nil, fmt.Errorf("toggle blocked: %w", err)
	}

	return user, nil
}

func (r *userRepository) ResetProgress(ctx context.Context, telegramID int64, data domain.GameData) (*domain.User, error) {
	gameData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode game data: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE users SET game_data = $2
		WHERE telegram_id = $1
		RETURNING id, %s`, userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID, gameData))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("reset_progress", telegramID, err)
		return nil, fmt.Errorf("reset progress: %w", err)
	}

	return user, nil
}

func (r *userRepository) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logError("query_ids", 0, err)
		return nil, fmt.Errorf("select user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *userRepository) logError(operation string, telegramID int64, err error) {
	if r.log == nil {
		return
	}

	r.log.Error("user repository operation failed",
		slog.String("operation", operation),
		slog.Int64("telegram_id", telegramID),
		slog.Any("error", err),
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user     domain.User
		gameData []byte
	)

	if err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.PhotoURL,
		&user.LanguageCode,
		&gameData,
		&user.Blocked,
		&user.LastLogin,
		&user.RegisteredAt,
	); err != nil {
		return nil, err
	}

	if len(gameData) > 0 {
		if err := json.Unmarshal(gameData, &user.GameData); err != nil {
			return nil, fmt.Errorf("decode game data: %w", err)
		}
	}

	return &user, nil
}

func searchClause(search string, firstArg int) (string, []any) {
	if search == "" {
		return "", nil
	}

	pattern := "%" + search + "%"
	clause := fmt.Sprintf(
		`WHERE first_name ILIKE $%d OR last_name ILIKE $%d OR username ILIKE $%d OR telegram_id::text LIKE $%d`,
		firstArg, firstArg, firstArg, firstArg,
	)

	return clause, []any{pattern}
}
