package notifier

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

// Backends
const (
	BackendNone     = "none"
	BackendDryRun   = "dryrun"
	BackendTelegram = "telegram"
	BackendTwitter  = "twitter"
)

// Change is a meeting a crawl created or modified
type Change struct {
	Meeting *event.Meeting
	Created bool
}

// Notifier defines the interface for posting talk notifications
type Notifier interface {
	// Notify posts notifications for the given changes
	Notify(ctx context.Context, changes []Change) error
}

// Config selects and authenticates a backend
type Config struct {
	Backend string

	TelegramBotToken string
	TelegramChatID   string
	// TelegramDigest sends one message per crawl instead of one per meeting
	TelegramDigest bool

	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string
}

// New builds the configured notifier. BackendNone (or an empty backend)
// returns nil, nil. Dry-run output goes to out.
func New(cfg Config, out io.Writer) (Notifier, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendDryRun:
		return NewDryRunNotifier(out), nil
	case BackendTelegram:
		n, err := NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramDigest)
		if err != nil {
			return nil, err
		}
		return n, nil
	case BackendTwitter:
		n, err := NewTwitterNotifier(TwitterCredentials{
			APIKey:       cfg.TwitterAPIKey,
			APISecret:    cfg.TwitterAPISecret,
			AccessToken:  cfg.TwitterAccessToken,
			AccessSecret: cfg.TwitterAccessSecret,
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown notification backend %q", cfg.Backend)
}

// ChangesSince classifies meetings updated at or after since. Meetings
// created at or after since are new; the rest changed.
func ChangesSince(meetings []*event.Meeting, since time.Time) []Change {
	changes := make([]Change, 0, len(meetings))
	for _, m := range meetings {
		changes = append(changes, Change{Meeting: m, Created: !m.CreatedAt.Before(since)})
	}
	return changes
}

// split separates created from changed meetings, keeping their order
func split(changes []Change) (created, changed []*event.Meeting) {
	for _, c := range changes {
		if c.Created {
			created = append(created, c.Meeting)
		} else {
			changed = append(changed, c.Meeting)
		}
	}
	return created, changed
}
