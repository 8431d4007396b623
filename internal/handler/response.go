// Package handler contains the gin HTTP handlers for the public game API and
// the admin panel, plus the shared response envelope.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
)

// Envelope is the JSON shape every endpoint responds with.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK writes a successful response with the given payload.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// OKMessage writes a successful response carrying only a status message.
func OKMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message})
}

// Created writes a successful creation response.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Fail maps an error to an HTTP status and a client-safe message. Internal
// details stay in the logs, never in the response body.
func Fail(c *gin.Context, err error) {
	status, message := classify(err)
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: message})
}

// FailValidation reports a request-shape problem without an AppError in hand.
func FailValidation(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Success: false, Error: message})
}

func classify(err error) (int, string) {
	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound, "запись не найдена"
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.CodeValidation:
			return http.StatusBadRequest, appErr.UserMessage
		case apperrors.CodeNotFound:
			return http.StatusNotFound, appErr.UserMessage
		case apperrors.CodeInvalidState:
			return http.StatusBadRequest, appErr.UserMessage
		case apperrors.CodeRateLimit:
			return http.StatusTooManyRequests, appErr.UserMessage
		default:
			return http.StatusInternalServerError, appErr.UserMessage
		}
	}

	return http.StatusInternalServerError, "внутренняя ошибка сервера"
}
