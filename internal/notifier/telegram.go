package notifier

import (
	"context"
	"fmt"

	"github.com/pfrederiksen/talkwatch/internal/telegram"
)

// sender is the part of telegram.Client the notifier needs
type sender interface {
	SendMessage(ctx context.Context, text string) error
}

// TelegramNotifier sends changes to a Telegram chat, either one message per
// meeting or a single digest per crawl.
type TelegramNotifier struct {
	client sender
	digest bool
}

// NewTelegramNotifier creates a notifier for the bot and chat.
func NewTelegramNotifier(botToken, chatID string, digest bool, opts ...telegram.Option) (*TelegramNotifier, error) {
	client, err := telegram.NewClient(botToken, chatID, opts...)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{client: client, digest: digest}, nil
}

// Notify sends the changes. Digests longer than one message are split.
func (n *TelegramNotifier) Notify(ctx context.Context, changes []Change) error {
	if len(changes) == 0 {
		return nil
	}

	if n.digest {
		created, changed := split(changes)
		for _, chunk := range telegram.Split(telegram.FormatDigest(created, changed), telegram.MaxMessageLength) {
			if err := n.client.SendMessage(ctx, chunk); err != nil {
				return fmt.Errorf("failed to send digest: %w", err)
			}
		}
		return nil
	}

	for _, change := range changes {
		text := telegram.FormatMeeting(change.Meeting, change.Created)
		if err := n.client.SendMessage(ctx, text); err != nil {
			return fmt.Errorf("failed to send message for meeting %d: %w", change.Meeting.ID, err)
		}
	}
	return nil
}
