package notification

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	"github.com/coinrush-app/coinrush-backend/pkg/metrics"
)

// Messenger sends a text message with an optional inline URL button to a
// user on the messaging platform. It is the source of truth for whether a
// recipient was reached.
type Messenger interface {
	Send(ctx context.Context, userID int64, text string, button *domain.Button) error
}

// SocketPusher delivers a payload to a live connection if one exists for the
// user. A missing connection is a silent no-op, not a failure.
type SocketPusher interface {
	SendIfConnected(userID int64, payload any) bool
}

// Failure records one recipient the messaging platform rejected.
type Failure struct {
	UserID int64  `json:"userId"`
	Reason string `json:"error"`
}

// Result aggregates a completed fan-out.
type Result struct {
	SentCount   int
	FailedCount int
	Failures    []Failure
}

// PushPayload is the JSON shape pushed over a live socket connection.
type PushPayload struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Important bool           `json:"important"`
	Button    *domain.Button `json:"button,omitempty"`
}

// Dispatcher drains a recipient snapshot through both delivery channels
// sequentially, pacing sends with a token-bucket limiter.
type Dispatcher struct {
	messenger Messenger
	pusher    SocketPusher
	limiter   *rate.Limiter
	log       *slog.Logger
}

// NewDispatcher builds a Dispatcher. sendDelay is the minimum interval
// between consecutive messaging-platform sends.
func NewDispatcher(messenger Messenger, pusher SocketPusher, sendDelay time.Duration, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if sendDelay <= 0 {
		sendDelay = 50 * time.Millisecond
	}

	return &Dispatcher{
		messenger: messenger,
		pusher:    pusher,
		limiter:   rate.NewLimiter(rate.Every(sendDelay), 1),
		log:       log,
	}
}

// Dispatch attempts delivery to every target. The message is formatted once
// and reused for all recipients. A messaging-platform failure for one
// recipient is recorded and never aborts the loop; the socket push is
// best-effort and does not affect counts. Cancelling ctx stops the loop
// between recipients; counts observed so far are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []int64, message string, important bool, button *domain.Button) *Result {
	formatted := FormatMessage(message, important, false)
	payload := PushPayload{
		Type:      "notification",
		Message:   formatted,
		Important: important,
		Button:    button,
	}

	start := time.Now()
	result := &Result{}

	for _, userID := range targets {
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.Warn("dispatch interrupted",
				slog.Int("sent", result.SentCount),
				slog.Int("failed", result.FailedCount),
				slog.Int("remaining", len(targets)-result.SentCount-result.FailedCount),
			)
			break
		}

		if err := d.messenger.Send(ctx, userID, formatted, button); err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, Failure{UserID: userID, Reason: err.Error()})
			metrics.RecordDelivery("telegram", "error")

			d.log.Warn("delivery failed",
				slog.Int64("user_id", userID),
				slog.Any("error", err),
			)
			continue
		}

		result.SentCount++
		metrics.RecordDelivery("telegram", "ok")

		if d.pusher != nil {
			if d.pusher.SendIfConnected(userID, payload) {
				metrics.RecordDelivery("websocket", "ok")
			} else {
				metrics.RecordDelivery("websocket", "skipped")
			}
		}
	}

	metrics.ObserveDispatch(time.Since(start))

	return result
}

// SendTo delivers an already formatted message to a single recipient through
// both channels. Used by the test-send path.
func (d *Dispatcher) SendTo(ctx context.Context, userID int64, formatted string, important bool, button *domain.Button) error {
	if err := d.messenger.Send(ctx, userID, formatted, button); err != nil {
		metrics.RecordDelivery("telegram", "error")
		return err
	}
	metrics.RecordDelivery("telegram", "ok")

	if d.pusher != nil {
		d.pusher.SendIfConnected(userID, PushPayload{
			Type:      "notification",
			Message:   formatted,
			Important: important,
			Button:    button,
		})
	}

	return nil
}

// FormatMessage builds the outbound text: an optional test-mode tag, an
// importance marker, then the message body.
func FormatMessage(message string, important, testMode bool) string {
	var formatted string
	if testMode {
		formatted += "[TEST] "
	}
	if important {
		formatted += "🔔 ВАЖНО!\n\n"
	}

	return formatted + message
}
