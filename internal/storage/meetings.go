package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

// DefaultListLimit caps ListMeetings when no limit is given
const DefaultListLimit = 200

const meetingSelectColumns = `id, source_page_url, source_url, title, start_time, start_date,
	location, speaker, topic, abstract, mode, online_link, speaker_intro, speaker_intro_url,
	content_hash, created_at, last_seen_at, last_updated_at`

const historySelectColumns = `id, meeting_id, recorded_at, content_hash, payload_snapshot`

// Outcome reports what UpsertMeeting did
type Outcome struct {
	MeetingID int64
	Created   bool
	Changed   bool
}

type meetingRow struct {
	ID              int64       `db:"id"`
	SourcePageURL   string      `db:"source_page_url"`
	SourceURL       string      `db:"source_url"`
	Title           *string     `db:"title"`
	StartTime       *string     `db:"start_time"`
	StartDate       *event.Date `db:"start_date"`
	Location        *string     `db:"location"`
	Speaker         *string     `db:"speaker"`
	Topic           *string     `db:"topic"`
	Abstract        *string     `db:"abstract"`
	Mode            event.Mode  `db:"mode"`
	OnlineLink      *string     `db:"online_link"`
	SpeakerIntro    *string     `db:"speaker_intro"`
	SpeakerIntroURL *string     `db:"speaker_intro_url"`
	ContentHash     string      `db:"content_hash"`
	CreatedAt       string      `db:"created_at"`
	LastSeenAt      string      `db:"last_seen_at"`
	LastUpdatedAt   string      `db:"last_updated_at"`
}

func (r *meetingRow) toMeeting() (*event.Meeting, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	seen, err := parseTime(r.LastSeenAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(r.LastUpdatedAt)
	if err != nil {
		return nil, err
	}

	return &event.Meeting{
		ID:              r.ID,
		SourcePageURL:   r.SourcePageURL,
		SourceURL:       r.SourceURL,
		Title:           r.Title,
		StartTime:       r.StartTime,
		StartDate:       r.StartDate,
		Location:        r.Location,
		Speaker:         r.Speaker,
		Topic:           r.Topic,
		Abstract:        r.Abstract,
		Mode:            r.Mode,
		OnlineLink:      r.OnlineLink,
		SpeakerIntro:    r.SpeakerIntro,
		SpeakerIntroURL: r.SpeakerIntroURL,
		ContentHash:     r.ContentHash,
		CreatedAt:       created,
		LastSeenAt:      seen,
		LastUpdatedAt:   updated,
	}, nil
}

type historyRow struct {
	ID              int64          `db:"id"`
	MeetingID       int64          `db:"meeting_id"`
	RecordedAt      string         `db:"recorded_at"`
	ContentHash     string         `db:"content_hash"`
	PayloadSnapshot types.JSONText `db:"payload_snapshot"`
}

func (r *historyRow) toRevision() (*event.Revision, error) {
	recorded, err := parseTime(r.RecordedAt)
	if err != nil {
		return nil, err
	}
	rev := &event.Revision{
		ID:          r.ID,
		MeetingID:   r.MeetingID,
		RecordedAt:  recorded,
		ContentHash: r.ContentHash,
	}
	if err := r.PayloadSnapshot.Unmarshal(&rev.Payload); err != nil {
		return nil, fmt.Errorf("decoding history %d: %w", r.ID, err)
	}
	return rev, nil
}

// UpsertMeeting inserts m or, if its source URL is already stored, refreshes
// the stored copy. Changed content snapshots the previous payload into
// meeting_history before overwriting it.
func (s *Store) UpsertMeeting(ctx context.Context, m *event.Meeting) (Outcome, error) {
	if err := validateMeeting(m); err != nil {
		return Outcome{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := s.timestamp()

	existing, err := selectMeetingBySource(ctx, tx, m.SourceURL)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Outcome{}, err
	}

	var outcome Outcome
	switch {
	case existing == nil:
		id, insertErr := insertMeeting(ctx, tx, m, now)
		if insertErr != nil {
			return Outcome{}, insertErr
		}
		outcome = Outcome{MeetingID: id, Created: true, Changed: true}

	case existing.ContentHash != m.ContentHash:
		if histErr := insertHistory(ctx, tx, existing, now); histErr != nil {
			return Outcome{}, histErr
		}
		if updateErr := updateMeeting(ctx, tx, existing.ID, m, now); updateErr != nil {
			return Outcome{}, updateErr
		}
		outcome = Outcome{MeetingID: existing.ID, Changed: true}

	default:
		query := `UPDATE meetings SET last_seen_at = ? WHERE id = ?`
		if _, execErr := tx.ExecContext(ctx, query, now, existing.ID); execErr != nil {
			return Outcome{}, fmt.Errorf("failed to touch meeting: %w", execErr)
		}
		outcome = Outcome{MeetingID: existing.ID}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return Outcome{}, fmt.Errorf("failed to commit upsert transaction: %w", commitErr)
	}
	return outcome, nil
}

func validateMeeting(m *event.Meeting) error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: meeting is nil", ErrValidation)
	case m.SourcePageURL == "":
		return fmt.Errorf("%w: source_page_url is required", ErrValidation)
	case m.SourceURL == "":
		return fmt.Errorf("%w: source_url is required", ErrValidation)
	case m.ContentHash == "":
		return fmt.Errorf("%w: content_hash is required", ErrValidation)
	}
	return nil
}

func selectMeetingBySource(ctx context.Context, tx *sqlx.Tx, sourceURL string) (*meetingRow, error) {
	query := `SELECT ` + meetingSelectColumns + ` FROM meetings WHERE source_url = ?`

	var row meetingRow
	if err := tx.GetContext(ctx, &row, query, sourceURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to select meeting: %w", err)
	}
	return &row, nil
}

func insertMeeting(ctx context.Context, tx *sqlx.Tx, m *event.Meeting, now string) (int64, error) {
	query := `
		INSERT INTO meetings (
			source_page_url, source_url, title, start_time, start_date, location, speaker,
			topic, abstract, mode, online_link, speaker_intro, speaker_intro_url,
			content_hash, created_at, last_seen_at, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		m.SourcePageURL, m.SourceURL, m.Title, m.StartTime, m.StartDate, m.Location, m.Speaker,
		m.Topic, m.Abstract, m.Mode, m.OnlineLink, m.SpeakerIntro, m.SpeakerIntroURL,
		m.ContentHash, now, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert meeting: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read meeting id: %w", err)
	}
	return id, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, previous *meetingRow, now string) error {
	old, err := previous.toMeeting()
	if err != nil {
		return err
	}
	snapshot, err := old.Payload().Canonical()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO meeting_history (meeting_id, recorded_at, content_hash, payload_snapshot)
		VALUES (?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, previous.ID, now, previous.ContentHash, types.JSONText(snapshot)); err != nil {
		return fmt.Errorf("failed to insert meeting history: %w", err)
	}
	return nil
}

func updateMeeting(ctx context.Context, tx *sqlx.Tx, id int64, m *event.Meeting, now string) error {
	query := `
		UPDATE meetings
		SET source_page_url = ?, title = ?, start_time = ?, start_date = ?, location = ?,
			speaker = ?, topic = ?, abstract = ?, mode = ?, online_link = ?,
			speaker_intro = ?, speaker_intro_url = ?, content_hash = ?,
			last_seen_at = ?, last_updated_at = ?
		WHERE id = ?
	`

	_, err := tx.ExecContext(ctx, query,
		m.SourcePageURL, m.Title, m.StartTime, m.StartDate, m.Location,
		m.Speaker, m.Topic, m.Abstract, m.Mode, m.OnlineLink,
		m.SpeakerIntro, m.SpeakerIntroURL, m.ContentHash,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	return nil
}

// ListMeetings returns up to limit meetings, most recently seen first.
// A non-positive limit selects DefaultListLimit.
func (s *Store) ListMeetings(ctx context.Context, limit int) ([]*event.Meeting, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT ` + meetingSelectColumns + ` FROM meetings ORDER BY last_seen_at DESC, id DESC LIMIT ?`

	var rows []meetingRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	return toMeetings(rows)
}

// MeetingsUpdatedSince returns meetings created or changed at or after since,
// oldest change first. A meeting with created_at >= since is new.
func (s *Store) MeetingsUpdatedSince(ctx context.Context, since time.Time) ([]*event.Meeting, error) {
	query := `SELECT ` + meetingSelectColumns + ` FROM meetings
		WHERE last_updated_at >= ? ORDER BY last_updated_at, id`

	var rows []meetingRow
	if err := s.db.SelectContext(ctx, &rows, query, formatTime(since)); err != nil {
		return nil, fmt.Errorf("failed to list updated meetings: %w", err)
	}
	return toMeetings(rows)
}

func toMeetings(rows []meetingRow) ([]*event.Meeting, error) {
	meetings := make([]*event.Meeting, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toMeeting()
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, nil
}

// GetMeeting returns the meeting with the given id or ErrNotFound.
func (s *Store) GetMeeting(ctx context.Context, id int64) (*event.Meeting, error) {
	query := `SELECT ` + meetingSelectColumns + ` FROM meetings WHERE id = ?`

	var row meetingRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("meeting %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return row.toMeeting()
}

// MeetingHistory returns the meeting's revisions, newest first.
func (s *Store) MeetingHistory(ctx context.Context, meetingID int64) ([]*event.Revision, error) {
	query := `SELECT ` + historySelectColumns + ` FROM meeting_history
		WHERE meeting_id = ? ORDER BY recorded_at DESC, id DESC`

	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, query, meetingID); err != nil {
		return nil, fmt.Errorf("failed to list meeting history: %w", err)
	}

	revisions := make([]*event.Revision, 0, len(rows))
	for i := range rows {
		rev, err := rows[i].toRevision()
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

// DeleteMeeting removes a meeting and, through the foreign key, its history.
func (s *Store) DeleteMeeting(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("meeting %d: %w", id, ErrNotFound)
	}
	return nil
}

