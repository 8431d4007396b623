package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/ratelimit"
	"github.com/coinrush-app/coinrush-backend/pkg/metrics"
)

const (
	perUserLimit  = 20
	perUserWindow = time.Minute
)

// RecoveryMiddleware converts handler panics into logged errors so a single
// bad update cannot take the bot down.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("bot handler panic: %v", r)
					log.Error("recovered from bot handler panic",
						slog.Any("panic", r),
						slog.String("update", c.Text()),
					)
					if errHandler != nil {
						msg, _ := errHandler.Handle(context.Background(), err)
						err = c.Send(msg)
					}
				}
			}()

			return next(c)
		}
	}
}

// LoggingMiddleware records each processed update with a correlation id.
func LoggingMiddleware(log *slog.Logger) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			start := time.Now()
			err := next(c)

			attrs := []any{
				slog.String("command", commandName(c)),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", uuid.NewString()),
			}
			if sender := c.Sender(); sender != nil {
				attrs = append(attrs, slog.Int64("telegram_id", sender.ID))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				log.Error("bot update failed", attrs...)
			} else {
				log.Info("bot update handled", attrs...)
			}

			return err
		}
	}
}

// MetricsMiddleware reports per-command execution time and status to Prometheus.
func MetricsMiddleware() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			err := next(c)

			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.RecordCommand(commandName(c), status)

			return err
		}
	}
}

// RateLimitMiddleware enforces a per-user limit on incoming updates. Limiter
// failures fail open so Redis trouble does not silence the bot.
func RateLimitMiddleware(limiter ratelimit.Limiter, log *slog.Logger) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}

			key := fmt.Sprintf("bot:user:%d", sender.ID)
			result, err := limiter.Check(context.Background(), key, perUserLimit, perUserWindow)
			if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
				log.Warn("rate limiter error", slog.Int64("telegram_id", sender.ID), slog.String("error", err.Error()))
				return next(c)
			}

			if result != nil && !result.Allowed {
				log.Warn("bot rate limit exceeded", slog.Int64("telegram_id", sender.ID))
				return nil
			}

			return next(c)
		}
	}
}

func commandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil && cb.Data != "" {
		return cb.Data
	}
	if text := c.Text(); text != "" {
		return text
	}

	return "unknown"
}
