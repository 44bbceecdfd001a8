// Package config loads talkwatch settings from defaults, an optional
// talkwatch.yaml, a .env file, TALKWATCH_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pfrederiksen/talkwatch/internal/event"
	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/notifier"
	"github.com/pfrederiksen/talkwatch/internal/scraper"
	"github.com/pfrederiksen/talkwatch/internal/speaker"
	"github.com/pfrederiksen/talkwatch/internal/storage"
)

const (
	EnvPrefix = "TALKWATCH"

	// DefaultSchedule runs once a day at 00:00:05 (seconds field first)
	DefaultSchedule = "5 0 0 * * *"
)

// Keys
const (
	KeyDBPath         = "db_path"
	KeyTimezone       = "timezone"
	KeyFetchTimeout   = "fetch_timeout"
	KeyCrawlDelay     = "crawl_delay"
	KeyMaxCandidates  = "max_candidates"
	KeyEnrich         = "enrich"
	KeySearchURL      = "search_url"
	KeyEnrichCacheTTL = "enrich_cache_ttl"
	KeySchedule       = "schedule"
	KeyLogLevel       = "log_level"
	KeyMetricsAddr    = "metrics_addr"

	KeyNotify              = "notify"
	KeyNotifyDigest        = "notify_digest"
	KeyTelegramBotToken    = "telegram_bot_token"
	KeyTelegramChatID      = "telegram_chat_id"
	KeyTwitterAPIKey       = "twitter_api_key"
	KeyTwitterAPISecret    = "twitter_api_secret"
	KeyTwitterAccessToken  = "twitter_access_token"
	KeyTwitterAccessSecret = "twitter_access_secret"
)

// credentialKeys are also read from their unprefixed environment variables,
// e.g. TELEGRAM_BOT_TOKEN or TWITTER_API_KEY.
var credentialKeys = []string{
	KeyTelegramBotToken, KeyTelegramChatID,
	KeyTwitterAPIKey, KeyTwitterAPISecret, KeyTwitterAccessToken, KeyTwitterAccessSecret,
}

// Config holds resolved settings
type Config struct {
	DBPath         string
	Timezone       string
	Location       *time.Location
	FetchTimeout   time.Duration
	CrawlDelay     time.Duration
	MaxCandidates  int
	Enrich         bool
	SearchURL      string
	EnrichCacheTTL time.Duration
	Schedule       string
	LogLevel       logger.Level
	MetricsAddr    string
	Notify         notifier.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDBPath, storage.DefaultPath)
	v.SetDefault(KeyTimezone, event.DefaultTimezone)
	v.SetDefault(KeyFetchTimeout, scraper.Timeout)
	v.SetDefault(KeyCrawlDelay, time.Second)
	v.SetDefault(KeyMaxCandidates, scraper.MaxCandidates)
	v.SetDefault(KeyEnrich, true)
	v.SetDefault(KeySearchURL, speaker.DefaultSearchURL)
	v.SetDefault(KeyEnrichCacheTTL, speaker.DefaultCacheTTL)
	v.SetDefault(KeySchedule, DefaultSchedule)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyNotify, notifier.BackendNone)
	v.SetDefault(KeyNotifyDigest, false)
}

func bindCredentialEnv(v *viper.Viper) error {
	for _, key := range credentialKeys {
		prefixed := EnvPrefix + "_" + strings.ToUpper(key)
		if err := v.BindEnv(key, prefixed, strings.ToUpper(key)); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load resolves the configuration. configFile may be empty, in which case
// talkwatch.yaml is looked up in the working directory and is optional.
// Flags that were set explicitly override everything else; flag names use
// dashes where keys use underscores.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := bindCredentialEnv(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("talkwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	return fromViper(v)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{
		KeyDBPath, KeyTimezone, KeyFetchTimeout, KeyCrawlDelay, KeyMaxCandidates,
		KeyEnrich, KeySearchURL, KeyEnrichCacheTTL, KeySchedule, KeyLogLevel, KeyMetricsAddr,
		KeyNotify, KeyNotifyDigest,
	} {
		flag := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", flag.Name, err)
		}
	}
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	level, err := logger.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBPath:         v.GetString(KeyDBPath),
		Timezone:       v.GetString(KeyTimezone),
		FetchTimeout:   v.GetDuration(KeyFetchTimeout),
		CrawlDelay:     v.GetDuration(KeyCrawlDelay),
		MaxCandidates:  v.GetInt(KeyMaxCandidates),
		Enrich:         v.GetBool(KeyEnrich),
		SearchURL:      v.GetString(KeySearchURL),
		EnrichCacheTTL: v.GetDuration(KeyEnrichCacheTTL),
		Schedule:       v.GetString(KeySchedule),
		LogLevel:       level,
		MetricsAddr:    v.GetString(KeyMetricsAddr),
		Notify: notifier.Config{
			Backend:             strings.ToLower(strings.TrimSpace(v.GetString(KeyNotify))),
			TelegramBotToken:    v.GetString(KeyTelegramBotToken),
			TelegramChatID:      v.GetString(KeyTelegramChatID),
			TelegramDigest:      v.GetBool(KeyNotifyDigest),
			TwitterAPIKey:       v.GetString(KeyTwitterAPIKey),
			TwitterAPISecret:    v.GetString(KeyTwitterAPISecret),
			TwitterAccessToken:  v.GetString(KeyTwitterAccessToken),
			TwitterAccessSecret: v.GetString(KeyTwitterAccessSecret),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("Unknown timezone, using UTC", logger.Fields{"timezone": cfg.Timezone})
		cfg.Location = time.UTC
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return fmt.Errorf("%s must not be empty", KeyDBPath)
	case c.FetchTimeout <= 0:
		return fmt.Errorf("%s must be positive, got %s", KeyFetchTimeout, c.FetchTimeout)
	case c.CrawlDelay < 0:
		return fmt.Errorf("%s must not be negative, got %s", KeyCrawlDelay, c.CrawlDelay)
	case c.MaxCandidates <= 0:
		return fmt.Errorf("%s must be positive, got %d", KeyMaxCandidates, c.MaxCandidates)
	case c.Schedule == "":
		return fmt.Errorf("%s must not be empty", KeySchedule)
	}

	switch c.Notify.Backend {
	case "", notifier.BackendNone, notifier.BackendDryRun, notifier.BackendTelegram, notifier.BackendTwitter:
	default:
		return fmt.Errorf("%s must be one of none, dryrun, telegram or twitter, got %q", KeyNotify, c.Notify.Backend)
	}
	return nil
}
