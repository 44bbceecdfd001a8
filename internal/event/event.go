package event

import (
	"bytes"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Mode describes how a talk is attended
type Mode string

const (
	ModeUnset   Mode = ""
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
	ModeHybrid  Mode = "hybrid"
	ModeUnknown Mode = "unknown"
)

// ParseMode maps a stored or user-supplied value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOnline, ModeOffline, ModeHybrid, ModeUnknown, ModeUnset:
		return Mode(s), nil
	}
	return ModeUnset, fmt.Errorf("invalid mode: %q", s)
}

// Display returns the mode as shown to users; an unset mode reads as "unknown".
func (m Mode) Display() string {
	if m == ModeUnset {
		return string(ModeUnknown)
	}
	return string(m)
}

// Scan implements sql.Scanner. NULL scans as ModeUnset.
func (m *Mode) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = ModeUnset
	case string:
		*m = Mode(v)
	case []byte:
		*m = Mode(v)
	default:
		return fmt.Errorf("cannot scan %T into Mode", src)
	}
	return nil
}

// Value implements driver.Valuer. ModeUnset is stored as NULL.
func (m Mode) Value() (driver.Value, error) {
	if m == ModeUnset {
		return nil, nil
	}
	return string(m), nil
}

// Meeting is one academic talk extracted from a detail page
type Meeting struct {
	ID              int64     `json:"id"`
	SourcePageURL   string    `json:"source_page_url"`
	SourceURL       string    `json:"source_url"`
	Title           *string   `json:"title"`
	StartTime       *string   `json:"start_time"`
	StartDate       *Date     `json:"start_date"`
	Location        *string   `json:"location"`
	Speaker         *string   `json:"speaker"`
	Topic           *string   `json:"topic"`
	Abstract        *string   `json:"abstract"`
	Mode            Mode      `json:"mode"`
	OnlineLink      *string   `json:"online_link"`
	SpeakerIntro    *string   `json:"speaker_intro"`
	SpeakerIntroURL *string   `json:"speaker_intro_url"`
	ContentHash     string    `json:"content_hash"`
	CreatedAt       time.Time `json:"created_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

// Payload holds the fields that make up a meeting's content fingerprint.
// Identifiers, timestamps and the resolved StartDate are not part of it.
type Payload struct {
	SourcePageURL   string  `json:"source_page_url"`
	SourceURL       string  `json:"source_url"`
	Title           *string `json:"title"`
	StartTime       *string `json:"start_time"`
	Location        *string `json:"location"`
	Speaker         *string `json:"speaker"`
	Topic           *string `json:"topic"`
	Abstract        *string `json:"abstract"`
	Mode            *string `json:"mode"`
	OnlineLink      *string `json:"online_link"`
	SpeakerIntro    *string `json:"speaker_intro"`
	SpeakerIntroURL *string `json:"speaker_intro_url"`
}

// Payload returns the fingerprinted subset of the meeting.
func (m *Meeting) Payload() Payload {
	var mode *string
	if m.Mode != ModeUnset {
		s := string(m.Mode)
		mode = &s
	}
	return Payload{
		SourcePageURL:   m.SourcePageURL,
		SourceURL:       m.SourceURL,
		Title:           m.Title,
		StartTime:       m.StartTime,
		Location:        m.Location,
		Speaker:         m.Speaker,
		Topic:           m.Topic,
		Abstract:        m.Abstract,
		Mode:            mode,
		OnlineLink:      m.OnlineLink,
		SpeakerIntro:    m.SpeakerIntro,
		SpeakerIntroURL: m.SpeakerIntroURL,
	}
}

// Canonical encodes the payload as JSON with lexicographically sorted keys,
// explicit nulls and no HTML escaping.
func (p Payload) Canonical() ([]byte, error) {
	fields := map[string]interface{}{
		"source_page_url":   p.SourcePageURL,
		"source_url":        p.SourceURL,
		"title":             p.Title,
		"start_time":        p.StartTime,
		"location":          p.Location,
		"speaker":           p.Speaker,
		"topic":             p.Topic,
		"abstract":          p.Abstract,
		"mode":              p.Mode,
		"online_link":       p.OnlineLink,
		"speaker_intro":     p.SpeakerIntro,
		"speaker_intro_url": p.SpeakerIntroURL,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding/json writes map keys in sorted order
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Fingerprint returns the hex SHA-256 of the payload's canonical form.
func Fingerprint(p Payload) string {
	data, err := p.Canonical()
	if err != nil {
		// only strings and nil pointers are encoded, so this cannot happen
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Seal computes and stores the meeting's ContentHash.
func (m *Meeting) Seal() {
	m.ContentHash = Fingerprint(m.Payload())
}

// IsStale reports whether the meeting's resolved date lies strictly before today.
// Meetings without a resolved date are never stale.
func (m *Meeting) IsStale(today Date) bool {
	if m.StartDate == nil {
		return false
	}
	return m.StartDate.Before(today)
}

// Revision is an append-only snapshot of a meeting's payload, taken just
// before an update replaced it.
type Revision struct {
	ID          int64     `json:"id"`
	MeetingID   int64     `json:"meeting_id"`
	RecordedAt  time.Time `json:"recorded_at"`
	ContentHash string    `json:"content_hash"`
	Payload     Payload   `json:"payload_snapshot"`
}

// MonitoredPage is a listing URL registered for periodic crawling
type MonitoredPage struct {
	ID            int64      `json:"id"`
	URL           string     `json:"url"`
	CreatedAt     time.Time  `json:"created_at"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
}

// StringPtr returns nil for an empty string and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
