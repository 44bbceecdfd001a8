package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/event"
	"github.com/pfrederiksen/talkwatch/internal/telegram"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "empty backend", cfg: Config{}, wantNil: true},
		{name: "none", cfg: Config{Backend: BackendNone}, wantNil: true},
		{name: "dry run", cfg: Config{Backend: BackendDryRun}},
		{name: "telegram", cfg: Config{Backend: BackendTelegram, TelegramBotToken: "t", TelegramChatID: "1"}},
		{name: "telegram without chat", cfg: Config{Backend: BackendTelegram, TelegramBotToken: "t"}, wantErr: true},
		{name: "twitter", cfg: Config{Backend: BackendTwitter, TwitterAPIKey: "k", TwitterAPISecret: "s",
			TwitterAccessToken: "t", TwitterAccessSecret: "ts"}},
		{name: "twitter without secrets", cfg: Config{Backend: BackendTwitter, TwitterAPIKey: "k"}, wantErr: true},
		{name: "unknown", cfg: Config{Backend: "pager"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.cfg, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (n == nil) != tt.wantNil {
				t.Errorf("New() = %v, wantNil %v", n, tt.wantNil)
			}
		})
	}
}

func TestChangesSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	old := &event.Meeting{ID: 1, CreatedAt: since.Add(-time.Hour)}
	exact := &event.Meeting{ID: 2, CreatedAt: since}
	fresh := &event.Meeting{ID: 3, CreatedAt: since.Add(time.Minute)}

	changes := ChangesSince([]*event.Meeting{old, exact, fresh}, since)
	want := []bool{false, true, true}
	if len(changes) != len(want) {
		t.Fatalf("got %d changes, want %d", len(changes), len(want))
	}
	for i, c := range changes {
		if c.Created != want[i] {
			t.Errorf("changes[%d].Created = %v, want %v", i, c.Created, want[i])
		}
	}

	created, changed := split(changes)
	if len(created) != 2 || len(changed) != 1 || changed[0].ID != 1 {
		t.Errorf("split() = %d created, %d changed", len(created), len(changed))
	}
}

func TestDryRunNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewDryRunNotifier(&buf)

	changes := []Change{
		{Meeting: meeting(1, "Ricci"), Created: true},
		{Meeting: meeting(2, "Knots")},
	}
	if err := n.Notify(context.Background(), changes); err != nil {
		t.Fatalf("DryRunNotifier.Notify() error = %v, want nil", err)
	}

	out := buf.String()
	for _, want := range []string{"--- Post 1/2 ---", "--- Post 2/2 ---", "New talk: Ricci", "Talk updated: Knots", "of 280)"} {
		if !strings.Contains(out, want) {
			t.Errorf("dry run output missing %q:\n%s", want, out)
		}
	}
}

// recordingSender collects messages instead of sending them
type recordingSender struct {
	messages []string
	err      error
}

func (s *recordingSender) SendMessage(ctx context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, text)
	return nil
}

func TestTelegramNotifier(t *testing.T) {
	changes := []Change{
		{Meeting: meeting(1, "Ricci"), Created: true},
		{Meeting: meeting(2, "Knots")},
	}

	t.Run("per meeting", func(t *testing.T) {
		sender := &recordingSender{}
		n := &TelegramNotifier{client: sender}
		if err := n.Notify(context.Background(), changes); err != nil {
			t.Fatalf("Notify() error: %v", err)
		}
		if len(sender.messages) != 2 {
			t.Fatalf("sent %d messages, want 2", len(sender.messages))
		}
		if !strings.Contains(sender.messages[0], "New talk") || !strings.Contains(sender.messages[1], "Talk updated") {
			t.Errorf("messages = %q", sender.messages)
		}
	})

	t.Run("digest", func(t *testing.T) {
		sender := &recordingSender{}
		n := &TelegramNotifier{client: sender, digest: true}
		if err := n.Notify(context.Background(), changes); err != nil {
			t.Fatalf("Notify() error: %v", err)
		}
		if len(sender.messages) != 1 || !strings.Contains(sender.messages[0], "1 new, 1 changed") {
			t.Errorf("messages = %q", sender.messages)
		}
	})

	t.Run("nothing to send", func(t *testing.T) {
		sender := &recordingSender{}
		n := &TelegramNotifier{client: sender, digest: true}
		if err := n.Notify(context.Background(), nil); err != nil {
			t.Fatalf("Notify() error: %v", err)
		}
		if len(sender.messages) != 0 {
			t.Errorf("sent %d messages, want 0", len(sender.messages))
		}
	})

	t.Run("send error", func(t *testing.T) {
		sendErr := errors.New("chat not found")
		n := &TelegramNotifier{client: &recordingSender{err: sendErr}}
		err := n.Notify(context.Background(), changes)
		if !errors.Is(err, sendErr) || !strings.Contains(err.Error(), "meeting 1") {
			t.Errorf("Notify() error = %v", err)
		}
	})
}

func TestTelegramNotifier_BotAPI(t *testing.T) {
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ChatID string `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.ChatID != "42" {
			t.Errorf("chat_id = %q", req.ChatID)
		}
		texts = append(texts, req.Text)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	n, err := NewTelegramNotifier("token", "42", false, telegram.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewTelegramNotifier() error: %v", err)
	}
	if err := n.Notify(context.Background(), []Change{{Meeting: meeting(1, "Ricci"), Created: true}}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if len(texts) != 1 || !strings.Contains(texts[0], "<b>Ricci</b>") {
		t.Errorf("texts = %q", texts)
	}
}
