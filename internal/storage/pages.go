package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

const pageSelectColumns = `id, url, created_at, last_checked_at`

type pageRow struct {
	ID            int64   `db:"id"`
	URL           string  `db:"url"`
	CreatedAt     string  `db:"created_at"`
	LastCheckedAt *string `db:"last_checked_at"`
}

func (r *pageRow) toPage() (*event.MonitoredPage, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	checked, err := parseOptionalTime(r.LastCheckedAt)
	if err != nil {
		return nil, err
	}
	return &event.MonitoredPage{
		ID:            r.ID,
		URL:           r.URL,
		CreatedAt:     created,
		LastCheckedAt: checked,
	}, nil
}

// AddPage registers a listing URL for crawling. Adding a URL twice returns
// ErrPageExists.
func (s *Store) AddPage(ctx context.Context, rawURL string) (*event.MonitoredPage, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validatePageURL(rawURL); err != nil {
		return nil, err
	}

	query := `INSERT INTO monitored_pages (url, created_at) VALUES (?, ?)`
	result, err := s.db.ExecContext(ctx, query, rawURL, s.timestamp())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrPageExists, rawURL)
		}
		return nil, fmt.Errorf("failed to insert page: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read page id: %w", err)
	}
	return s.GetPage(ctx, id)
}

// GetPage returns the page with the given id or ErrNotFound.
func (s *Store) GetPage(ctx context.Context, id int64) (*event.MonitoredPage, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM monitored_pages WHERE id = ?`
	return s.getPage(ctx, query, id)
}

// GetPageByURL returns the page registered for rawURL or ErrNotFound.
func (s *Store) GetPageByURL(ctx context.Context, rawURL string) (*event.MonitoredPage, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM monitored_pages WHERE url = ?`
	return s.getPage(ctx, query, strings.TrimSpace(rawURL))
}

func (s *Store) getPage(ctx context.Context, query string, arg interface{}) (*event.MonitoredPage, error) {
	var row pageRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page %v: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return row.toPage()
}

// ListPages returns every monitored page, most recently added first.
func (s *Store) ListPages(ctx context.Context) ([]*event.MonitoredPage, error) {
	query := `SELECT ` + pageSelectColumns + ` FROM monitored_pages ORDER BY id DESC`

	var rows []pageRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	pages := make([]*event.MonitoredPage, 0, len(rows))
	for i := range rows {
		page, err := rows[i].toPage()
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// MarkPageChecked sets the page's last_checked_at.
func (s *Store) MarkPageChecked(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE monitored_pages SET last_checked_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark page checked: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark page checked: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("page %d: %w", id, ErrNotFound)
	}
	return nil
}

// RemovePage stops monitoring a page. Meetings found on it are kept.
func (s *Store) RemovePage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM monitored_pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove page: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove page: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("page %d: %w", id, ErrNotFound)
	}
	return nil
}

func validatePageURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", ErrValidation)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) URL", ErrValidation, rawURL)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
