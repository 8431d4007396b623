package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
)

type fakeUserRepo struct {
	repository.UserRepository

	allIDs   []int64
	byLevel  map[int][]int64
	byIncome map[int64][]int64
	listErr  error
}

func (r *fakeUserRepo) AllIDs(context.Context) ([]int64, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.allIDs, nil
}

func (r *fakeUserRepo) IDsWithMinLevel(_ context.Context, minLevel int) ([]int64, error) {
	return r.byLevel[minLevel], nil
}

func (r *fakeUserRepo) IDsWithMinIncome(_ context.Context, minIncome int64) ([]int64, error) {
	return r.byIncome[minIncome], nil
}

type fakeNotificationRepo struct {
	nextID    int64
	records   map[int64]*domain.Notification
	sendingAt map[int64]time.Time
	finalized map[int64][2]int
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{
		nextID:    1,
		records:   make(map[int64]*domain.Notification),
		sendingAt: make(map[int64]time.Time),
		finalized: make(map[int64][2]int),
	}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	n.ID = r.nextID
	r.nextID++

	clone := *n
	r.records[clone.ID] = &clone
	if clone.Status == domain.StatusSending {
		r.sendingAt[clone.ID] = clone.CreatedAt
	}
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id int64) (*domain.Notification, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	clone := *record
	return &clone, nil
}

func (r *fakeNotificationRepo) List(context.Context) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, record := range r.records {
		out = append(out, *record)
	}
	return out, nil
}

func (r *fakeNotificationRepo) Finalize(ctx context.Context, id int64, sentCount, failedCount int) (*domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	record.Status = domain.StatusSent
	record.Stats.SentCount = sentCount
	record.Stats.FailedCount = failedCount
	now := time.Now().UTC()
	record.SentAt = &now
	r.finalized[id] = [2]int{sentCount, failedCount}

	clone := *record
	return &clone, nil
}

func (r *fakeNotificationRepo) MarkSending(_ context.Context, id int64) error {
	record, ok := r.records[id]
	if !ok || record.Status != domain.StatusScheduled {
		return repository.ErrNotFound
	}
	record.Status = domain.StatusSending
	r.sendingAt[id] = time.Now().UTC()
	return nil
}

func (r *fakeNotificationRepo) Update(_ context.Context, id int64, upd repository.NotificationUpdate) (*domain.Notification, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.Message != nil {
		record.Message = *upd.Message
	}
	if upd.Important != nil {
		record.Important = *upd.Important
	}

	clone := *record
	return &clone, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakeNotificationRepo) IncrementRead(_ context.Context, id int64) error {
	record, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	record.Stats.ReadCount++
	return nil
}

func (r *fakeNotificationRepo) Aggregate(context.Context) (*repository.NotificationAggregate, error) {
	return &repository.NotificationAggregate{}, nil
}

func (r *fakeNotificationRepo) MarkStalled(_ context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for id, record := range r.records {
		sendingAt, started := r.sendingAt[id]
		if record.Status == domain.StatusSending && started && sendingAt.Before(cutoff) {
			record.Status = domain.StatusStalled
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) ListScheduledDue(_ context.Context, now time.Time) ([]domain.Notification, error) {
	var due []domain.Notification
	for _, record := range r.records {
		if record.Status == domain.StatusScheduled && record.ScheduledAt != nil && !record.ScheduledAt.After(now) {
			due = append(due, *record)
		}
	}
	return due, nil
}

func newTestService(users *fakeUserRepo, repo *fakeNotificationRepo, messenger Messenger) *Service {
	return NewService(
		NewSelector(users),
		repo,
		newTestDispatcher(messenger, nil),
		testLogger(),
	)
}

func TestSendBroadcast(t *testing.T) {
	users := &fakeUserRepo{allIDs: []int64{1, 2, 3}}
	repo := newFakeNotificationRepo()
	messenger := &fakeMessenger{failFor: map[int64]error{2: errors.New("blocked")}}
	svc := newTestService(users, repo, messenger)

	rule, err := ParseRule("all", domain.Conditions{}, 0)
	require.NoError(t, err)

	result, err := svc.Send(context.Background(), rule, "hello", false, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TargetCount)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, int64(2), result.Failures[0].UserID)

	record, err := repo.GetByID(context.Background(), result.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, record.Status)
	assert.Equal(t, []int64{1, 2, 3}, record.Stats.TargetUsers)
	assert.NotNil(t, record.SentAt)
}

func TestSendSnapshotFrozenAtCreation(t *testing.T) {
	users := &fakeUserRepo{allIDs: []int64{1, 2}}
	repo := newFakeNotificationRepo()
	messenger := &snapshotMessenger{users: users}
	svc := newTestService(users, repo, messenger)

	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	result, err := svc.Send(context.Background(), rule, "hello", false, nil)
	require.NoError(t, err)

	// A user registered mid-dispatch never joins the running campaign.
	assert.Equal(t, 2, result.TargetCount)
	assert.Equal(t, 2, result.SuccessCount)
}

// snapshotMessenger mutates the user set during delivery to prove the target
// snapshot does not follow it.
type snapshotMessenger struct {
	users *fakeUserRepo
}

func (m *snapshotMessenger) Send(_ context.Context, _ int64, _ string, _ *domain.Button) error {
	m.users.allIDs = append(m.users.allIDs, 99)
	return nil
}

// cancellingMessenger cancels the context after delivering to one recipient.
type cancellingMessenger struct {
	cancel context.CancelFunc
	sent   []int64
}

func (m *cancellingMessenger) Send(_ context.Context, userID int64, _ string, _ *domain.Button) error {
	m.sent = append(m.sent, userID)
	m.cancel()
	return nil
}

func TestSendFinalizesAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users := &fakeUserRepo{allIDs: []int64{1, 2, 3}}
	repo := newFakeNotificationRepo()
	messenger := &cancellingMessenger{cancel: cancel}
	svc := newTestService(users, repo, messenger)

	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	result, err := svc.Send(ctx, rule, "hello", false, nil)
	require.NoError(t, err)

	// The caller going away stops the fan-out, but the counts delivered so
	// far still reach the record and it leaves the sending state.
	assert.Equal(t, []int64{1}, messenger.sent)
	record, err := repo.GetByID(context.Background(), result.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, record.Status)
	assert.Equal(t, 1, record.Stats.SentCount)
}

func TestSendSelectorErrorCreatesNoRecord(t *testing.T) {
	users := &fakeUserRepo{listErr: errors.New("db down")}
	repo := newFakeNotificationRepo()
	svc := newTestService(users, repo, &fakeMessenger{})

	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	_, err := svc.Send(context.Background(), rule, "hello", false, nil)

	require.Error(t, err)
	assert.Empty(t, repo.records)
}

func TestScheduleAndDispatch(t *testing.T) {
	users := &fakeUserRepo{byLevel: map[int][]int64{5: {10, 20}}}
	repo := newFakeNotificationRepo()
	messenger := &fakeMessenger{}
	svc := newTestService(users, repo, messenger)

	rule, err := ParseRule("level", domain.Conditions{MinLevel: 5}, 0)
	require.NoError(t, err)

	at := time.Now().Add(-time.Minute)
	record, err := svc.Schedule(context.Background(), rule, "soon", true, nil, at)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, record.Status)

	due, err := svc.ListScheduledDue(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, svc.DispatchScheduled(context.Background(), record.ID))
	assert.Equal(t, []int64{10, 20}, messenger.sent)

	final, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, final.Status)
}

func TestDispatchScheduledIsNoopWhenNotScheduled(t *testing.T) {
	users := &fakeUserRepo{allIDs: []int64{1}}
	repo := newFakeNotificationRepo()
	messenger := &fakeMessenger{}
	svc := newTestService(users, repo, messenger)

	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	result, err := svc.Send(context.Background(), rule, "hello", false, nil)
	require.NoError(t, err)

	// Already sent: a second dispatch attempt must not re-deliver.
	require.NoError(t, svc.DispatchScheduled(context.Background(), result.NotificationID))
	assert.Equal(t, []int64{1}, messenger.sent)
}

func TestUpdateRejectedAfterSend(t *testing.T) {
	users := &fakeUserRepo{allIDs: []int64{1}}
	repo := newFakeNotificationRepo()
	svc := newTestService(users, repo, &fakeMessenger{})

	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	result, err := svc.Send(context.Background(), rule, "hello", false, nil)
	require.NoError(t, err)

	msg := "edited"
	_, err = svc.Update(context.Background(), result.NotificationID, repository.NotificationUpdate{Message: &msg})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidState, appErr.Code)
}

func TestDeleteRejectedAfterSend(t *testing.T) {
	users := &fakeUserRepo{allIDs: []int64{1}}
	repo := newFakeNotificationRepo()
	svc := newTestService(users, repo, &fakeMessenger{})

	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	result, err := svc.Send(context.Background(), rule, "hello", false, nil)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), result.NotificationID)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInvalidState, appErr.Code)
	assert.Contains(t, repo.records, result.NotificationID)
}

func TestUpdateAndDeleteScheduled(t *testing.T) {
	users := &fakeUserRepo{allIDs: []int64{1}}
	repo := newFakeNotificationRepo()
	svc := newTestService(users, repo, &fakeMessenger{})

	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	at := time.Now().Add(time.Hour)
	record, err := svc.Schedule(context.Background(), rule, "later", false, nil, at)
	require.NoError(t, err)

	msg := "edited"
	updated, err := svc.Update(context.Background(), record.ID, repository.NotificationUpdate{Message: &msg})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Message)

	require.NoError(t, svc.Delete(context.Background(), record.ID))
	assert.NotContains(t, repo.records, record.ID)
}

func TestSendTestRequiresUser(t *testing.T) {
	svc := newTestService(&fakeUserRepo{}, newFakeNotificationRepo(), &fakeMessenger{})

	err := svc.SendTest(context.Background(), 0, "hello", false, nil)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestSendTestCreatesNoRecord(t *testing.T) {
	repo := newFakeNotificationRepo()
	messenger := &fakeMessenger{}
	svc := newTestService(&fakeUserRepo{}, repo, messenger)

	require.NoError(t, svc.SendTest(context.Background(), 7, "hello", true, nil))

	assert.Empty(t, repo.records)
	require.Len(t, messenger.texts, 1)
	assert.Equal(t, "[TEST] 🔔 ВАЖНО!\n\nhello", messenger.texts[0])
}

func TestSweepStalled(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.records[1] = &domain.Notification{ID: 1, Status: domain.StatusSending}
	repo.sendingAt[1] = time.Now().UTC().Add(-2 * time.Hour)
	repo.records[2] = &domain.Notification{ID: 2, Status: domain.StatusSending}
	repo.sendingAt[2] = time.Now().UTC()
	svc := newTestService(&fakeUserRepo{}, repo, &fakeMessenger{})

	count, err := svc.SweepStalled(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int64(1), count)
	assert.Equal(t, domain.StatusStalled, repo.records[1].Status)
	assert.Equal(t, domain.StatusSending, repo.records[2].Status)
}

func TestSweepMeasuresFromDeliveryStart(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := newTestService(&fakeUserRepo{allIDs: []int64{1}}, repo, &fakeMessenger{})

	// A campaign scheduled far ahead of its creation must not be
	// sweep-eligible the moment its fan-out begins.
	rule, _ := ParseRule("all", domain.Conditions{}, 0)
	at := time.Now().UTC().Add(-time.Minute)
	record, err := svc.Schedule(context.Background(), rule, "old schedule", false, nil, at)
	require.NoError(t, err)
	repo.records[record.ID].CreatedAt = time.Now().UTC().Add(-48 * time.Hour)

	require.NoError(t, repo.MarkSending(context.Background(), record.ID))

	count, err := svc.SweepStalled(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, domain.StatusSending, repo.records[record.ID].Status)
}
