package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
)

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []int64
	texts   []string
	failFor map[int64]error
}

func (m *fakeMessenger) Send(_ context.Context, userID int64, text string, _ *domain.Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[userID]; ok {
		return err
	}

	m.sent = append(m.sent, userID)
	m.texts = append(m.texts, text)
	return nil
}

type fakePusher struct {
	connected map[int64]bool
	pushed    []int64
}

func (p *fakePusher) SendIfConnected(userID int64, _ any) bool {
	if !p.connected[userID] {
		return false
	}
	p.pushed = append(p.pushed, userID)
	return true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(m Messenger, p SocketPusher) *Dispatcher {
	return NewDispatcher(m, p, time.Microsecond, testLogger())
}

func TestDispatchCountsConserve(t *testing.T) {
	messenger := &fakeMessenger{failFor: map[int64]error{
		2: errors.New("blocked by user"),
		4: errors.New("user deactivated"),
	}}
	dispatcher := newTestDispatcher(messenger, nil)

	targets := []int64{1, 2, 3, 4, 5}
	result := dispatcher.Dispatch(context.Background(), targets, "hi", false, nil)

	assert.Equal(t, 3, result.SentCount)
	assert.Equal(t, 2, result.FailedCount)
	assert.Equal(t, len(targets), result.SentCount+result.FailedCount)
	assert.Equal(t, []int64{1, 3, 5}, messenger.sent)
}

func TestDispatchFailuresRecordRecipient(t *testing.T) {
	cause := errors.New("bot was blocked")
	messenger := &fakeMessenger{failFor: map[int64]error{7: cause}}
	dispatcher := newTestDispatcher(messenger, nil)

	result := dispatcher.Dispatch(context.Background(), []int64{7}, "hi", false, nil)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, int64(7), result.Failures[0].UserID)
	assert.Equal(t, cause.Error(), result.Failures[0].Reason)
}

func TestDispatchNoRetry(t *testing.T) {
	calls := 0
	messenger := &countingMessenger{fn: func(int64) error {
		calls++
		return errors.New("flood limit")
	}}
	dispatcher := newTestDispatcher(messenger, nil)

	dispatcher.Dispatch(context.Background(), []int64{1}, "hi", false, nil)

	assert.Equal(t, 1, calls)
}

type countingMessenger struct {
	fn func(userID int64) error
}

func (m *countingMessenger) Send(_ context.Context, userID int64, _ string, _ *domain.Button) error {
	return m.fn(userID)
}

func TestDispatchSocketPushIsBestEffort(t *testing.T) {
	messenger := &fakeMessenger{}
	pusher := &fakePusher{connected: map[int64]bool{1: true}}
	dispatcher := newTestDispatcher(messenger, pusher)

	result := dispatcher.Dispatch(context.Background(), []int64{1, 2}, "hi", false, nil)

	// User 2 has no live connection; that must not show up as a failure.
	assert.Equal(t, 2, result.SentCount)
	assert.Zero(t, result.FailedCount)
	assert.Equal(t, []int64{1}, pusher.pushed)
}

func TestDispatchPushSkippedForFailedSend(t *testing.T) {
	messenger := &fakeMessenger{failFor: map[int64]error{1: errors.New("blocked")}}
	pusher := &fakePusher{connected: map[int64]bool{1: true}}
	dispatcher := newTestDispatcher(messenger, pusher)

	dispatcher.Dispatch(context.Background(), []int64{1}, "hi", false, nil)

	assert.Empty(t, pusher.pushed)
}

func TestDispatchFormatsImportantOnce(t *testing.T) {
	messenger := &fakeMessenger{}
	dispatcher := newTestDispatcher(messenger, nil)

	dispatcher.Dispatch(context.Background(), []int64{1, 2}, "update", true, nil)

	require.Len(t, messenger.texts, 2)
	for _, text := range messenger.texts {
		assert.Equal(t, "🔔 ВАЖНО!\n\nupdate", text)
	}
}

func TestDispatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	messenger := &countingMessenger{fn: func(userID int64) error {
		if userID == 2 {
			cancel()
		}
		return nil
	}}
	// A visible delay so the limiter wait after cancellation actually fails.
	dispatcher := NewDispatcher(messenger, nil, 5*time.Millisecond, testLogger())

	result := dispatcher.Dispatch(ctx, []int64{1, 2, 3, 4}, "hi", false, nil)

	assert.Equal(t, 2, result.SentCount)
	assert.Zero(t, result.FailedCount)
}

func TestDispatchEmptyTargets(t *testing.T) {
	dispatcher := newTestDispatcher(&fakeMessenger{}, nil)

	result := dispatcher.Dispatch(context.Background(), nil, "hi", false, nil)

	assert.Zero(t, result.SentCount)
	assert.Zero(t, result.FailedCount)
	assert.Empty(t, result.Failures)
}
