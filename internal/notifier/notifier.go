// Package notifier turns created orders into Telegram messages. Delivery is
// best effort: failures are logged and never reach the order response.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/message"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

// ErrNotConfigured means Telegram is disabled or its token or chat id is empty.
var ErrNotConfigured = errors.New("notifier: telegram is not configured")

// Sender delivers one text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, token, chatID, text string) error
}

type Notifier struct {
	settings SettingsProvider
	sender   Sender
	printer  *message.Printer
}

func New(settings SettingsProvider, sender Sender, printer *message.Printer) *Notifier {
	return &Notifier{settings: settings, sender: sender, printer: printer}
}

// NotifyOrder formats and sends the new-order message. Failures wrap
// domain.ErrNotification; missing configuration returns ErrNotConfigured.
func (n *Notifier) NotifyOrder(ctx context.Context, s ports.OrderSummary) error {
	return n.SendText(ctx, FormatOrderMessage(s, n.printer))
}

// SendText sends arbitrary text with the current settings.
func (n *Notifier) SendText(ctx context.Context, text string) error {
	settings, err := n.settings.TelegramSettings(ctx)
	if err != nil {
		return fmt.Errorf("%w: load settings: %w", domain.ErrNotification, err)
	}
	if !settings.Usable() {
		return ErrNotConfigured
	}
	if err := n.sender.SendMessage(ctx, settings.BotToken, settings.ChatID, text); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotification, err)
	}
	return nil
}
