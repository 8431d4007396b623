// Package user provides business operations over player profiles.
package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
	"github.com/coinrush-app/coinrush-backend/internal/usercache"
)

const cacheTTL = 5 * time.Minute

// Service provides business operations over users and their referrals.
type Service struct {
	users     repository.UserRepository
	referrals repository.ReferralRepository
	cache     *usercache.Cache
	log       *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(
	users repository.UserRepository,
	referrals repository.ReferralRepository,
	cache *usercache.Cache,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:     users,
		referrals: referrals,
		cache:     cache,
		log:       log,
	}
}

// RegisterStart upserts the player on /start: first contact creates the
// profile with fresh game data, later contacts refresh names and last_login.
func (s *Service) RegisterStart(ctx context.Context, sender *telebot.User) (*domain.User, error) {
	if sender == nil {
		return nil, errors.New("telegram user is nil")
	}

	now := time.Now().UTC()

	existing, err := s.users.FindByTelegramID(ctx, sender.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logError("register_start.find", sender.ID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	profile := &domain.User{
		TelegramID:   sender.ID,
		FirstName:    sender.FirstName,
		LastName:     sender.LastName,
		Username:     sender.Username,
		LanguageCode: sender.LanguageCode,
		LastLogin:    now,
		RegisteredAt: now,
	}

	if existing != nil {
		profile.GameData = existing.GameData
		profile.Blocked = existing.Blocked
		profile.RegisteredAt = existing.RegisteredAt
	} else {
		profile.GameData = domain.NewGameData(now)
	}

	if err := s.users.Upsert(ctx, profile); err != nil {
		s.logError("register_start.upsert", sender.ID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	s.invalidate(ctx, sender.ID)

	return profile, nil
}

// RecordReferral stores the referral link between referrer and the new user.
// Duplicate referrals for the same referred user are a silent no-op, and
// self-referrals are ignored.
func (s *Service) RecordReferral(ctx context.Context, referrerID int64, sender *telebot.User) error {
	if sender == nil {
		return errors.New("telegram user is nil")
	}
	if referrerID == 0 || referrerID == sender.ID {
		return nil
	}

	created, err := s.referrals.Create(ctx, &domain.Referral{
		ReferrerID: referrerID,
		UserID:     sender.ID,
		FirstName:  sender.FirstName,
		LastName:   sender.LastName,
		Username:   sender.Username,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.logError("record_referral", sender.ID, err)
		return apperrors.NewDatabaseError(err)
	}

	if created {
		s.log.Info("referral recorded",
			slog.Int64("referrer_id", referrerID),
			slog.Int64("user_id", sender.ID),
		)
	}

	return nil
}

// Get returns a profile, preferring the cache.
func (s *Service) Get(ctx context.Context, telegramID int64) (*domain.User, error) {
	if cached, err := s.cache.Get(ctx, telegramID); err == nil && cached != nil {
		return cached, nil
	}

	profile, err := s.users.FindByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("user")
		}
		s.logError("get", telegramID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	if err := s.cache.Set(ctx, telegramID, profile, cacheTTL); err != nil {
		s.logError("get.cache_set", telegramID, err)
	}

	return profile, nil
}

// List returns a page of users with the listing aggregates.
func (s *Service) List(ctx context.Context, q repository.ListUsersQuery) ([]domain.User, int, *repository.UserListStats, error) {
	users, total, err := s.users.List(ctx, q)
	if err != nil {
		s.logError("list", 0, err)
		return nil, 0, nil, apperrors.NewDatabaseError(err)
	}

	stats, err := s.users.ListStats(ctx, q.Search)
	if err != nil {
		s.logError("list_stats", 0, err)
		return nil, 0, nil, apperrors.NewDatabaseError(err)
	}

	return users, total, stats, nil
}

// UpdateGameData replaces the player's game progress; lastLogin is refreshed
// only when provided.
func (s *Service) UpdateGameData(ctx context.Context, telegramID int64, data domain.GameData, lastLogin *time.Time) (*domain.User, error) {
	profile, err := s.users.UpdateGameData(ctx, telegramID, data, lastLogin)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("user")
		}
		s.logError("update_game_data", telegramID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	s.invalidate(ctx, telegramID)

	return profile, nil
}

// ToggleBlocked flips the blocked flag.
func (s *Service) ToggleBlocked(ctx context.Context, telegramID int64) (*domain.User, error) {
	profile, err := s.users.ToggleBlocked(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("user")
		}
		s.logError("toggle_blocked", telegramID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	s.invalidate(ctx, telegramID)

	return profile, nil
}

// ResetProgress restores the player's game data to its initial state.
func (s *Service) ResetProgress(ctx context.Context, telegramID int64) (*domain.User, error) {
	profile, err := s.users.ResetProgress(ctx, telegramID, domain.NewGameData(time.Now().UTC()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("user")
		}
		s.logError("reset_progress", telegramID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	s.invalidate(ctx, telegramID)

	return profile, nil
}

func (s *Service) invalidate(ctx context.Context, telegramID int64) {
	if err := s.cache.Invalidate(ctx, telegramID); err != nil {
		s.logError("cache_invalidate", telegramID, err)
	}
}

func (s *Service) logError(operation string, telegramID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.Int64("telegram_id", telegramID),
		slog.Any("error", err),
	)
}
