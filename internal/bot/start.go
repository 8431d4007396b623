package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"
)

const referralPayloadPrefix = "ref_"

// handleStart registers the sender, records an optional referral attribution
// from the deep-link payload and replies with the game entry button.
func (b *Bot) handleStart(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := b.users.RegisterStart(ctx, sender); err != nil {
		b.log.Error("register user on /start",
			slog.Int64("telegram_id", sender.ID),
			slog.String("error", err.Error()),
		)
		msg, _ := b.errHandler.Handle(ctx, err)
		return c.Send(msg)
	}

	payload := ""
	if msg := c.Message(); msg != nil {
		payload = msg.Payload
	}

	if referrerID, ok := parseReferralPayload(payload); ok {
		// Attribution must never break the greeting, errors are only logged.
		if err := b.users.RecordReferral(ctx, referrerID, sender); err != nil {
			b.log.Warn("record referral on /start",
				slog.Int64("referrer_id", referrerID),
				slog.Int64("telegram_id", sender.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	tr := b.translator.Translator(sender.LanguageCode)
	markup := &telebot.ReplyMarkup{}
	open := markup.WebApp(tr.T("bot.open_game"), &telebot.WebApp{URL: b.cfg.WebAppURL})
	markup.Inline(markup.Row(open))

	return c.Send(tr.T("bot.welcome"), markup)
}

// parseReferralPayload extracts the referrer identifier from a "ref_<id>"
// deep-link payload. Anything else is ignored.
func parseReferralPayload(payload string) (int64, bool) {
	raw, found := strings.CutPrefix(payload, referralPayloadPrefix)
	if !found {
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}
