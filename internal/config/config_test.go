package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/notifier"
	"github.com/pfrederiksen/talkwatch/internal/speaker"
	"github.com/pfrederiksen/talkwatch/internal/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != storage.DefaultPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, storage.DefaultPath)
	}
	if cfg.Timezone != "Asia/Shanghai" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.FetchTimeout != 12*time.Second {
		t.Errorf("FetchTimeout = %v, want 12s", cfg.FetchTimeout)
	}
	if cfg.CrawlDelay != time.Second {
		t.Errorf("CrawlDelay = %v, want 1s", cfg.CrawlDelay)
	}
	if cfg.MaxCandidates != 20 {
		t.Errorf("MaxCandidates = %d, want 20", cfg.MaxCandidates)
	}
	if !cfg.Enrich || cfg.SearchURL != speaker.DefaultSearchURL {
		t.Errorf("enrichment = %v %q", cfg.Enrich, cfg.SearchURL)
	}
	if cfg.Schedule != DefaultSchedule {
		t.Errorf("Schedule = %q, want %q", cfg.Schedule, DefaultSchedule)
	}
	if cfg.LogLevel != logger.LevelInfo {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Location == nil {
		t.Error("Location should be resolved")
	}
	if cfg.Notify.Backend != notifier.BackendNone || cfg.Notify.TelegramDigest {
		t.Errorf("Notify = %+v, want no backend", cfg.Notify)
	}
}

func TestLoad_ConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, filepath.Join(dir, "talkwatch.yaml"), `
timezone: UTC
schedule: "0 30 6 * * *"
max_candidates: 10
enrich: false
`)
	t.Setenv("TALKWATCH_MAX_CANDIDATES", "5")
	t.Setenv("TALKWATCH_CRAWL_DELAY", "250ms")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Location != time.UTC && cfg.Location.String() != "UTC" {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
	if cfg.Schedule != "0 30 6 * * *" {
		t.Errorf("Schedule = %q", cfg.Schedule)
	}
	if cfg.Enrich {
		t.Error("Enrich should come from the config file")
	}
	if cfg.MaxCandidates != 5 {
		t.Errorf("MaxCandidates = %d, want env value 5", cfg.MaxCandidates)
	}
	if cfg.CrawlDelay != 250*time.Millisecond {
		t.Errorf("CrawlDelay = %v, want 250ms", cfg.CrawlDelay)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, filepath.Join(dir, ".env"), "TALKWATCH_SEARCH_URL=http://localhost:9999/html/\n")
	t.Cleanup(func() { os.Unsetenv("TALKWATCH_SEARCH_URL") })

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SearchURL != "http://localhost:9999/html/" {
		t.Errorf("SearchURL = %q, want value from .env", cfg.SearchURL)
	}
}

func TestLoad_FlagsWin(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TALKWATCH_DB_PATH", "/from/env.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db-path", "", "")
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--db-path", "/from/flag.db"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DBPath != "/from/flag.db" {
		t.Errorf("DBPath = %q, want flag value", cfg.DBPath)
	}
	// unset flags fall back to their own default, which matches ours
	if cfg.LogLevel != logger.LevelInfo {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		configFile string
	}{
		{"missing explicit config file", nil, "/nonexistent/talkwatch.yaml"},
		{"bad log level", map[string]string{"TALKWATCH_LOG_LEVEL": "loud"}, ""},
		{"zero candidates", map[string]string{"TALKWATCH_MAX_CANDIDATES": "0"}, ""},
		{"negative delay", map[string]string{"TALKWATCH_CRAWL_DELAY": "-1s"}, ""},
		{"unknown notify backend", map[string]string{"TALKWATCH_NOTIFY": "pager"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(tt.configFile, nil); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TALKWATCH_TIMEZONE", "Mars/Olympus_Mons")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
}

func TestLoad_NotificationCredentials(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeFile(t, filepath.Join(dir, "talkwatch.yaml"), `
notify: Telegram
notify_digest: true
twitter_api_key: from-file
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "bare-token")
	t.Setenv("TALKWATCH_TELEGRAM_CHAT_ID", "42")
	t.Setenv("TWITTER_API_SECRET", "bare-secret")
	t.Setenv("TALKWATCH_TWITTER_API_SECRET", "prefixed-secret")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := notifier.Config{
		Backend:          notifier.BackendTelegram,
		TelegramBotToken: "bare-token",
		TelegramChatID:   "42",
		TelegramDigest:   true,
		TwitterAPIKey:    "from-file",
		// the prefixed variable is bound first
		TwitterAPISecret: "prefixed-secret",
	}
	if cfg.Notify != want {
		t.Errorf("Notify = %+v, want %+v", cfg.Notify, want)
	}
}
