// Package bot wires the Telegram side of the backend: the /start command
// and the outbound messaging adapter used by notification fan-out.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/i18n"
	"github.com/coinrush-app/coinrush-backend/internal/ratelimit"
	"github.com/coinrush-app/coinrush-backend/internal/user"
	"github.com/coinrush-app/coinrush-backend/pkg/config"
)

const CommandStart = "/start"

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	cfg        config.BotConfig
	log        *slog.Logger
	users      *user.Service
	translator *i18n.Manager
	errHandler *apperrors.Handler
}

// New builds a telegram bot instance configured according to the application settings.
func New(
	cfg config.BotConfig,
	log *slog.Logger,
	users *user.Service,
	translator *i18n.Manager,
	errHandler *apperrors.Handler,
	limiter ratelimit.Limiter,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Token,
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: ":8443",
			Endpoint: &telebot.WebhookEndpoint{
				PublicURL: cfg.WebhookURL,
			},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot:    tb,
		cfg:        cfg,
		log:        log,
		users:      users,
		translator: translator,
		errHandler: errHandler,
	}

	tb.Use(RecoveryMiddleware(log, errHandler))
	tb.Use(LoggingMiddleware(log))
	tb.Use(MetricsMiddleware())
	if limiter != nil {
		tb.Use(RateLimitMiddleware(limiter, log))
	}

	tb.Handle(CommandStart, b.handleStart)

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such
// as the messaging adapter and health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}
