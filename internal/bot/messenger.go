package bot

import (
	"context"
	"errors"

	telebot "gopkg.in/telebot.v3"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
)

// Messenger delivers notification messages to individual users through the
// Telegram Bot API.
type Messenger struct {
	bot *telebot.Bot
}

func NewMessenger(b *Bot) *Messenger {
	return &Messenger{bot: b.Telebot()}
}

// Send delivers one message to one recipient. The optional button is rendered
// as a single-row inline URL keyboard.
func (m *Messenger) Send(ctx context.Context, userID int64, text string, button *domain.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := &telebot.SendOptions{
		ParseMode:             telebot.ModeHTML,
		DisableWebPagePreview: true,
	}

	if button != nil {
		markup := &telebot.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL(button.Text, button.URL)))
		opts.ReplyMarkup = markup
	}

	recipient := &telebot.User{ID: userID}
	if _, err := m.bot.Send(recipient, text, opts); err != nil {
		return classifySendError(userID, err)
	}

	return nil
}

// classifySendError keeps recipient-side failures (blocked bot, deleted
// account) distinct from Telegram API outages so delivery reports stay
// readable.
func classifySendError(userID int64, err error) error {
	switch {
	case errors.Is(err, telebot.ErrBlockedByUser),
		errors.Is(err, telebot.ErrUserIsDeactivated),
		errors.Is(err, telebot.ErrNotStartedByUser):
		return apperrors.NewDeliveryError(userID, err)
	case errors.Is(err, telebot.ErrTooLarge):
		return apperrors.NewValidationError("message is too large for telegram")
	default:
		return apperrors.NewExternalAPIError("telegram", err)
	}
}
