package user

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
	"github.com/coinrush-app/coinrush-backend/internal/usercache"
)

type fakeUserRepo struct {
	repository.UserRepository

	byID    map[int64]*domain.User
	upserts []domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) FindByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	user, ok := r.byID[telegramID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) Upsert(_ context.Context, user *domain.User) error {
	clone := *user
	r.byID[user.TelegramID] = &clone
	r.upserts = append(r.upserts, clone)
	return nil
}

type fakeReferralRepo struct {
	repository.ReferralRepository

	created []domain.Referral
	seen    map[int64]bool
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{seen: make(map[int64]bool)}
}

func (r *fakeReferralRepo) Create(_ context.Context, ref *domain.Referral) (bool, error) {
	if r.seen[ref.UserID] {
		return false, nil
	}
	r.seen[ref.UserID] = true
	r.created = append(r.created, *ref)
	return true, nil
}

func newTestService(t *testing.T, users *fakeUserRepo, referrals *fakeReferralRepo) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewService(
		users,
		referrals,
		usercache.NewCache(client),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func sender(id int64) *telebot.User {
	return &telebot.User{ID: id, FirstName: "Ivan", Username: "ivan", LanguageCode: "ru"}
}

func TestRegisterStartCreatesProfile(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestService(t, users, newFakeReferralRepo())

	profile, err := svc.RegisterStart(context.Background(), sender(1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), profile.TelegramID)
	assert.Equal(t, 1, profile.GameData.Level.Current)
	assert.Equal(t, int64(1000), profile.GameData.Energy.Max)
	assert.False(t, profile.Blocked)
}

func TestRegisterStartPreservesProgress(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestService(t, users, newFakeReferralRepo())

	first, err := svc.RegisterStart(context.Background(), sender(1))
	require.NoError(t, err)

	// Simulate gameplay between /start commands.
	progressed := *first
	progressed.GameData.Balance = 5000
	progressed.GameData.Level.Current = 7
	progressed.Blocked = true
	users.byID[1] = &progressed

	second, err := svc.RegisterStart(context.Background(), &telebot.User{ID: 1, FirstName: "Renamed"})
	require.NoError(t, err)

	assert.Equal(t, int64(5000), second.GameData.Balance)
	assert.Equal(t, 7, second.GameData.Level.Current)
	assert.True(t, second.Blocked)
	assert.Equal(t, "Renamed", second.FirstName)
	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
}

func TestRecordReferral(t *testing.T) {
	referrals := newFakeReferralRepo()
	svc := newTestService(t, newFakeUserRepo(), referrals)
	ctx := context.Background()

	require.NoError(t, svc.RecordReferral(ctx, 100, sender(200)))
	require.Len(t, referrals.created, 1)
	assert.Equal(t, int64(100), referrals.created[0].ReferrerID)

	// Duplicate and self-referral are silent no-ops.
	require.NoError(t, svc.RecordReferral(ctx, 100, sender(200)))
	require.NoError(t, svc.RecordReferral(ctx, 300, sender(300)))
	require.NoError(t, svc.RecordReferral(ctx, 0, sender(400)))
	assert.Len(t, referrals.created, 1)
}

func TestGetUsesCache(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestService(t, users, newFakeReferralRepo())
	ctx := context.Background()

	now := time.Now().UTC()
	users.byID[1] = &domain.User{TelegramID: 1, FirstName: "Ivan", GameData: domain.NewGameData(now)}

	first, err := svc.Get(ctx, 1)
	require.NoError(t, err)

	// A repo-side change is invisible until the cache entry is invalidated.
	users.byID[1].FirstName = "Changed"

	second, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.FirstName, second.FirstName)
}

func TestGetUnknownUser(t *testing.T) {
	svc := newTestService(t, newFakeUserRepo(), newFakeReferralRepo())

	_, err := svc.Get(context.Background(), 404)
	assert.Error(t, err)
}
