package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testHandler() *Handler {
	return NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestHandleNil(t *testing.T) {
	msg, retryable := testHandler().Handle(context.Background(), nil)

	assert.Empty(t, msg)
	assert.False(t, retryable)
}

func TestHandleAppError(t *testing.T) {
	appErr := NewDatabaseError(errors.New("pq: connection refused"))

	msg, retryable := testHandler().Handle(context.Background(), appErr)

	assert.Equal(t, appErr.UserMessage, msg)
	assert.True(t, retryable)
}

func TestHandleWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("sending campaign: %w", NewInvalidStateError("already sent"))

	msg, retryable := testHandler().Handle(context.Background(), wrapped)

	assert.Equal(t, "Операция невозможна в текущем состоянии", msg)
	assert.False(t, retryable)
}

func TestHandleUnclassifiedError(t *testing.T) {
	msg, retryable := testHandler().Handle(nil, errors.New("boom"))

	assert.Equal(t, fallbackUserMessage, msg)
	assert.False(t, retryable)
}
