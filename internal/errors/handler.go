package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/coinrush-app/coinrush-backend/pkg/logger"
)

const fallbackUserMessage = "Произошла ошибка. Попробуйте позже"

// Handler is the single sink for errors crossing a boundary (bot update,
// HTTP request, job run): it logs the classification, forwards severe
// errors to Sentry, and yields the user-facing text plus a retryable hint.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle processes the error and returns a message safe to show to the
// user together with whether a retry might succeed.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	appErr := asAppError(err)

	attrs := []slog.Attr{
		slog.String("code", appErr.Code),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
	}
	if cause := appErr.Unwrap(); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	log.LogAttrs(ctx, slog.LevelError, appErr.Message, attrs...)

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.report(err, appErr)
	}

	userMessage := appErr.UserMessage
	if userMessage == "" {
		userMessage = fallbackUserMessage
	}

	return userMessage, appErr.Retryable
}

// asAppError returns the AppError in err's chain, or wraps an unclassified
// error as a high-severity one so it is reported rather than dropped.
func asAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}

	return &AppError{
		Code:        CodeDatabase,
		Message:     err.Error(),
		UserMessage: fallbackUserMessage,
		Severity:    SeverityHigh,
		Retryable:   false,
		cause:       err,
	}
}

func (h *Handler) report(err error, appErr *AppError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		scope.SetTag("retryable", boolTag(appErr.Retryable))

		// Delivery and Telegram API failures group by platform rather
		// than by call site.
		if appErr.Code == CodeDelivery || appErr.Code == CodeExternalAPI {
			scope.SetTag("channel", "telegram")
		}

		if cause := appErr.Unwrap(); cause != nil {
			scope.SetExtra("cause", cause.Error())
		}

		sentry.CaptureException(err)
	})
}

func boolTag(v bool) string {
	if v {
		return "true"
	}

	return "false"
}
