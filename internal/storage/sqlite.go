package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DefaultPath is where the database lives when no path is configured
const DefaultPath = "~/.local/share/talkwatch/talkwatch.db"

const (
	driverName = "sqlite3"
	dsnParams  = "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"

	// fixed-width so stored timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	// ErrValidation is returned when a record is missing required fields
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a page or meeting does not exist
	ErrNotFound = errors.New("not found")
	// ErrPageExists is returned when adding a URL that is already monitored
	ErrPageExists = errors.New("page already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS monitored_pages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	url             TEXT NOT NULL UNIQUE,
	created_at      TEXT NOT NULL,
	last_checked_at TEXT
);

CREATE TABLE IF NOT EXISTS meetings (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	source_page_url   TEXT NOT NULL,
	source_url        TEXT NOT NULL UNIQUE,
	title             TEXT,
	start_time        TEXT,
	start_date        TEXT,
	location          TEXT,
	speaker           TEXT,
	topic             TEXT,
	abstract          TEXT,
	mode              TEXT,
	online_link       TEXT,
	speaker_intro     TEXT,
	speaker_intro_url TEXT,
	content_hash      TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	last_seen_at      TEXT NOT NULL,
	last_updated_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS meetings_last_seen_at_idx ON meetings(last_seen_at);
CREATE INDEX IF NOT EXISTS meetings_start_date_idx ON meetings(start_date);

CREATE TABLE IF NOT EXISTS meeting_history (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id       INTEGER NOT NULL,
	recorded_at      TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	payload_snapshot TEXT NOT NULL,
	FOREIGN KEY(meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS meeting_history_meeting_id_idx ON meeting_history(meeting_id);
`

// Store is the SQLite-backed repository for pages and meetings
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the clock used for created/seen/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps an existing connection. The schema is not touched; call Migrate.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, driverName, fmt.Sprintf("file:%s?%s", path, dsnParams))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one connection serialises writers
	db.SetMaxOpenConns(1)

	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func expandPath(path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return path, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseOptionalTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
