package event

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone is the zone used to decide what "today" means
const DefaultTimezone = "Asia/Shanghai"

const dateLayout = "2006-01-02"

var (
	dateWithYearPattern = regexp.MustCompile(`(20\d{2})[年./-](\d{1,2})[月./-](\d{1,2})日?`)
	dateNoYearPattern   = regexp.MustCompile(`(\d{1,2})[月./-](\d{1,2})日?`)
)

// Date is a calendar date without a time of day or zone
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates the components and returns the date.
// ok is false when the month or day is out of range (e.g. February 30).
func NewDate(year int, month time.Month, day int) (d Date, ok bool) {
	if month < time.January || month > time.December || day < 1 {
		return Date{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// In returns midnight at the start of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// LoadLocation loads the named zone, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) Date {
	return DateOf(time.Now().In(loc))
}

// ParseStartDate recovers a calendar date from free text.
// A year-qualified date ("2025年3月10日", "2025-03-10") wins over a year-less
// one ("3月10日", "3/10"), which is placed in today's year. Only the first
// match of the winning pattern is considered; if it is not a real date the
// result is nil.
func ParseStartDate(text string, today Date) *Date {
	if m := dateWithYearPattern.FindStringSubmatch(text); m != nil {
		return buildDate(m[1], m[2], m[3])
	}

	if m := findYearless(text); m != nil {
		return buildDate(strconv.Itoa(today.Year), m[1], m[2])
	}
	return nil
}

// ResolveStartDate runs ParseStartDate over the start-time field followed by
// every page line, so a date outside the labelled line is still found.
func ResolveStartDate(startTime *string, lines []string, today Date) *Date {
	combined := Deref(startTime) + " " + strings.Join(lines, " ")
	return ParseStartDate(combined, today)
}

// findYearless returns the first year-less match not immediately preceded by
// a digit.
func findYearless(text string) []string {
	start := 0
	for start < len(text) {
		loc := dateNoYearPattern.FindStringSubmatchIndex(text[start:])
		if loc == nil {
			return nil
		}
		abs := start + loc[0]
		if abs > 0 && isDigit(text[abs-1]) {
			// matches begin with an ASCII digit, so one byte is one rune
			start = abs + 1
			continue
		}
		return []string{
			text[start+loc[0] : start+loc[1]],
			text[start+loc[2] : start+loc[3]],
			text[start+loc[4] : start+loc[5]],
		}
	}
	return nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func buildDate(year, month, day string) *Date {
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return nil
	}
	dd, err := strconv.Atoi(day)
	if err != nil {
		return nil
	}
	d, ok := NewDate(y, time.Month(m), dd)
	if !ok {
		return nil
	}
	return &d
}
