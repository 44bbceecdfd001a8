package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

const monthNames = `jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december`

var (
	sameMonthRange  = regexp.MustCompile(`(?i)^(` + monthNames + `)\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthRange = regexp.MustCompile(`(?i)^(` + monthNames + `)\s+(\d{1,2})\s*-\s*(` + monthNames + `)\s+(\d{1,2})$`)
	wholeMonth      = regexp.MustCompile(`(?i)^(` + monthNames + `)$`)
)

// Parse builds a Filter from a whitespace-separated query.
//
// Recognised tokens:
//   - from:2025-03-01, to:2025-03-31  inclusive date bounds
//   - date:"Mar 1-15"                 a month-name range, see ParseDateRange
//   - mode:online                     online, offline, hybrid or unknown
//   - speaker:zhang, location:"room 101"
//   - weekends                        Saturday and Sunday only
//   - anything else                   a keyword
//
// Values containing spaces are double-quoted. Repeated speaker, location
// and mode tokens widen the match; repeated keywords narrow it.
func Parse(query string, today event.Date) (*Filter, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, err
	}

	f := NewFilter()
	for _, tok := range tokens {
		key, value, hasKey := strings.Cut(tok, ":")
		if !hasKey || value == "" {
			if strings.EqualFold(tok, "weekends") {
				f.WeekendsOnly = true
				continue
			}
			f.Keywords = append(f.Keywords, tok)
			continue
		}

		switch strings.ToLower(key) {
		case "from":
			d, err := event.ParseDate(value)
			if err != nil {
				return nil, fmt.Errorf("invalid from date: %w", err)
			}
			f.DateFrom = &d
		case "to":
			d, err := event.ParseDate(value)
			if err != nil {
				return nil, fmt.Errorf("invalid to date: %w", err)
			}
			f.DateTo = &d
		case "date":
			from, to, err := ParseDateRange(value, today)
			if err != nil {
				return nil, err
			}
			f.DateFrom, f.DateTo = from, to
		case "mode":
			mode, err := event.ParseMode(strings.ToLower(value))
			if err != nil || mode == event.ModeUnset {
				return nil, fmt.Errorf("invalid mode %q: use online, offline, hybrid or unknown", value)
			}
			f.Modes = append(f.Modes, mode)
		case "speaker":
			f.Speakers = append(f.Speakers, value)
		case "location":
			f.Locations = append(f.Locations, value)
		default:
			// URLs and times ("14:00") are keywords, not unknown keys
			f.Keywords = append(f.Keywords, tok)
		}
	}

	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	return f, nil
}

// tokenize splits on whitespace, keeping double-quoted runs together and
// dropping the quotes.
func tokenize(query string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range query {
		switch {
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			current.WriteRune(r)
		}
	}

	if quoted {
		return nil, fmt.Errorf("unterminated quote in filter %q", query)
	}
	flush()
	return tokens, nil
}

// ParseDateRange parses a month-name date range relative to today.
//
// Supported formats:
//   - "Mar 1-15" or "March 1-15" - Same month, different days
//   - "March 1 - April 15" - Different months
//   - "March" - Entire month
//
// A month earlier than today's month is taken to be next year. For
// cross-month ranges, an end month before the start month rolls the end
// into the following year.
func ParseDateRange(input string, today event.Date) (*event.Date, *event.Date, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if matches := sameMonthRange.FindStringSubmatch(input); matches != nil {
		month := parseMonth(matches[1])
		year := yearForMonth(month, today)

		from, err := dateOf(year, month, matches[2])
		if err != nil {
			return nil, nil, err
		}
		to, err := dateOf(year, month, matches[3])
		if err != nil {
			return nil, nil, err
		}
		if from.After(*to) {
			return nil, nil, fmt.Errorf("start date must be before end date")
		}
		return from, to, nil
	}

	if matches := crossMonthRange.FindStringSubmatch(input); matches != nil {
		month1 := parseMonth(matches[1])
		month2 := parseMonth(matches[3])

		year1 := yearForMonth(month1, today)
		year2 := year1
		if month2 < month1 {
			year2++
		}

		from, err := dateOf(year1, month1, matches[2])
		if err != nil {
			return nil, nil, err
		}
		to, err := dateOf(year2, month2, matches[4])
		if err != nil {
			return nil, nil, err
		}
		if from.After(*to) {
			return nil, nil, fmt.Errorf("start date must be before end date")
		}
		return from, to, nil
	}

	if matches := wholeMonth.FindStringSubmatch(input); matches != nil {
		month := parseMonth(matches[1])
		year := yearForMonth(month, today)

		from := event.Date{Year: year, Month: month, Day: 1}
		// day 0 of the next month is the last day of this one
		to := event.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
		return &from, &to, nil
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use 'Mar 1-15', 'March 1 - April 15', or 'March'")
}

func dateOf(year int, month time.Month, day string) (*event.Date, error) {
	n, err := strconv.Atoi(day)
	if err != nil {
		return nil, fmt.Errorf("invalid day: %s", day)
	}
	d, ok := event.NewDate(year, month, n)
	if !ok {
		return nil, fmt.Errorf("invalid day: %s %d", month, n)
	}
	return &d, nil
}

// parseMonth converts a month name to time.Month
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))

	months := map[string]time.Month{
		"jan": time.January, "january": time.January,
		"feb": time.February, "february": time.February,
		"mar": time.March, "march": time.March,
		"apr": time.April, "april": time.April,
		"may": time.May,
		"jun": time.June, "june": time.June,
		"jul": time.July, "july": time.July,
		"aug": time.August, "august": time.August,
		"sep": time.September, "sept": time.September, "september": time.September,
		"oct": time.October, "october": time.October,
		"nov": time.November, "november": time.November,
		"dec": time.December, "december": time.December,
	}

	return months[name]
}

// yearForMonth returns today's year, or next year when month has already passed.
func yearForMonth(month time.Month, today event.Date) int {
	if month < today.Month {
		return today.Year + 1
	}
	return today.Year
}
