package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
)

func performFail(t *testing.T, err error) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(c, err)

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestFailStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperrors.NewValidationError("bad rule"), http.StatusBadRequest},
		{"not found", apperrors.NewNotFoundError("notification"), http.StatusNotFound},
		{"invalid state", apperrors.NewInvalidStateError("already sent"), http.StatusBadRequest},
		{"rate limit", apperrors.NewRateLimitError(30), http.StatusTooManyRequests},
		{"database", apperrors.NewDatabaseError(errors.New("connection refused")), http.StatusInternalServerError},
		{"repo not found", repository.ErrNotFound, http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := performFail(t, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestFailHidesInternalDetails(t *testing.T) {
	cause := errors.New("pq: connection refused at 10.0.0.3:5432")
	_, body := performFail(t, apperrors.NewDatabaseError(cause))

	assert.NotContains(t, body.Error, "10.0.0.3")
	assert.NotContains(t, body.Error, "pq:")
}

func TestFailWrappedAppError(t *testing.T) {
	err := fmt.Errorf("handler: %w", apperrors.NewValidationError("bad input"))

	rec, _ := performFail(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOKMessageEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	OKMessage(c, "Тестовое уведомление отправлено")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Тестовое уведомление отправлено", body.Message)
	assert.Nil(t, body.Data)
}

func TestOKEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	OK(c, gin.H{"value": 1})

	assert.Equal(t, http.StatusOK, rec.Code)

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Empty(t, body.Error)
}
