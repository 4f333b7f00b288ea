// Package notify is the outbound messaging port. Delivery is
// fire-and-forget: callers log failures and move on, a broken messenger
// never becomes a core failure.
package notify

import (
	"context"

	"github.com/dLukachev/maxbot/pkg/logger"
	maxbot "github.com/max-messenger/max-bot-api-client-go"
)

// Notifier sends a text message to a user identified by external identity.
type Notifier interface {
	Send(ctx context.Context, tid int64, text string) error
}

// MaxNotifier delivers through the Max messenger API. Direct dialogs use
// the user's identity as the chat ID.
type MaxNotifier struct {
	api *maxbot.Api
}

// NewMaxNotifier creates a messenger-backed notifier.
func NewMaxNotifier(api *maxbot.Api) *MaxNotifier {
	return &MaxNotifier{api: api}
}

// Send implements Notifier.
func (n *MaxNotifier) Send(ctx context.Context, tid int64, text string) error {
	_, err := n.api.Messages.Send(ctx, maxbot.NewMessage().SetChat(tid).SetText(text))
	return err
}

// LogNotifier is used when no bot token is configured and in tests; it
// only records the message.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, tid int64, text string) error {
	logger.Info(ctx).Int64("tid", tid).Str("text", text).Msg("notification (log only)")
	return nil
}
