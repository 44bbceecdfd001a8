// Package filter narrows a list of meetings by date range, speaker,
// location, attendance mode and free-text keywords.
//
// Filters are usually built from a query string:
//
//	f, err := filter.Parse(`mode:online speaker:zhang from:2025-03-01 date:"Mar 1-15"`, today)
//	if err != nil {
//		return err
//	}
//	upcoming := f.Apply(meetings)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

// Filter represents meeting filtering criteria
type Filter struct {
	// Date range, inclusive on both ends
	DateFrom *event.Date `json:"date_from,omitempty"`
	DateTo   *event.Date `json:"date_to,omitempty"`

	// Case-insensitive substring matches
	Speakers  []string `json:"speakers,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`

	Modes []event.Mode `json:"modes,omitempty"`

	WeekendsOnly bool `json:"weekends_only,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
// The filter will match all meetings until criteria are added.
func NewFilter() *Filter {
	return &Filter{}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Speakers) == 0 &&
		len(f.Locations) == 0 &&
		len(f.Keywords) == 0 &&
		len(f.Modes) == 0 &&
		!f.WeekendsOnly
}

func (f *Filter) hasDateCriteria() bool {
	return f.DateFrom != nil || f.DateTo != nil || f.WeekendsOnly
}

// Matches checks if a meeting matches all active filter criteria.
//
// Matching logic:
//   - Date range: StartDate must fall within DateFrom and DateTo (inclusive).
//     Meetings without a resolved date never match a date criterion.
//   - Speakers, Locations: at least one entry must be a substring of the field
//   - Keywords: every keyword must appear in the title, topic, abstract or speaker
//   - Modes: the meeting's mode must be one of them; an unset mode counts as unknown
//   - WeekendsOnly: StartDate must be a Saturday or Sunday
func (f *Filter) Matches(m *event.Meeting) bool {
	if f.IsEmpty() {
		return true
	}

	if f.hasDateCriteria() {
		if m.StartDate == nil {
			return false
		}
		d := *m.StartDate
		if f.DateFrom != nil && d.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && d.After(*f.DateTo) {
			return false
		}
		if f.WeekendsOnly {
			weekday := d.In(time.UTC).Weekday()
			if weekday != time.Saturday && weekday != time.Sunday {
				return false
			}
		}
	}

	if len(f.Speakers) > 0 && !containsAny(event.Deref(m.Speaker), f.Speakers) {
		return false
	}

	if len(f.Locations) > 0 && !containsAny(event.Deref(m.Location), f.Locations) {
		return false
	}

	if len(f.Modes) > 0 {
		matched := false
		mode := event.Mode(m.Mode.Display())
		for _, want := range f.Modes {
			if event.Mode(want.Display()) == mode {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.Keywords) > 0 {
		haystack := strings.ToLower(strings.Join([]string{
			event.Deref(m.Title),
			event.Deref(m.Topic),
			event.Deref(m.Abstract),
			event.Deref(m.Speaker),
		}, "\n"))
		for _, kw := range f.Keywords {
			if !strings.Contains(haystack, strings.ToLower(kw)) {
				return false
			}
		}
	}

	return true
}

func containsAny(value string, needles []string) bool {
	value = strings.ToLower(value)
	for _, n := range needles {
		if strings.Contains(value, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Apply applies the filter to a list of meetings and returns only matching
// meetings. If the filter is empty, returns the original list unchanged.
func (f *Filter) Apply(meetings []*event.Meeting) []*event.Meeting {
	if f.IsEmpty() {
		return meetings
	}

	var filtered []*event.Meeting
	for _, m := range meetings {
		if f.Matches(m) {
			filtered = append(filtered, m)
		}
	}

	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "From: 2025-03-01 | To: 2025-03-15 | Speakers: zhang | Modes: online"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom))
	}

	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo))
	}

	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}

	if len(f.Speakers) > 0 {
		parts = append(parts, fmt.Sprintf("Speakers: %s", strings.Join(f.Speakers, ", ")))
	}

	if len(f.Locations) > 0 {
		parts = append(parts, fmt.Sprintf("Locations: %s", strings.Join(f.Locations, ", ")))
	}

	if len(f.Modes) > 0 {
		modes := make([]string, len(f.Modes))
		for i, m := range f.Modes {
			modes[i] = m.Display()
		}
		parts = append(parts, fmt.Sprintf("Modes: %s", strings.Join(modes, ", ")))
	}

	if len(f.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("Keywords: %s", strings.Join(f.Keywords, ", ")))
	}

	return strings.Join(parts, " | ")
}
