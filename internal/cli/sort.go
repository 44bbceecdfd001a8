package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByTitle SortOrder = "title"
	SortBySeen  SortOrder = "seen"
)

func parseSortOrder(value string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(value)))
	switch order {
	case SortByDate, SortByTitle, SortBySeen:
		return order, nil
	}
	return "", fmt.Errorf("invalid sort order: %s (must be 'date', 'title' or 'seen')", value)
}

// sortMeetings sorts meetings in place. The sort is stable, so meetings
// that compare equal keep their storage order.
func sortMeetings(meetings []*event.Meeting, order SortOrder) {
	switch order {
	case SortByDate:
		sort.SliceStable(meetings, func(i, j int) bool {
			return compareByDate(meetings[i], meetings[j])
		})
	case SortByTitle:
		sort.SliceStable(meetings, func(i, j int) bool {
			ti, tj := strings.ToLower(headline(meetings[i])), strings.ToLower(headline(meetings[j]))
			if ti != tj {
				return ti < tj
			}
			// If titles are equal, sort by date
			return compareByDate(meetings[i], meetings[j])
		})
	case SortBySeen:
		sort.SliceStable(meetings, func(i, j int) bool {
			return meetings[i].LastSeenAt.After(meetings[j].LastSeenAt)
		})
	}
}

// compareByDate orders dated meetings earliest first, then undated ones
func compareByDate(i, j *event.Meeting) bool {
	if i.StartDate != nil && j.StartDate != nil {
		if *i.StartDate != *j.StartDate {
			return i.StartDate.Before(*j.StartDate)
		}
		return event.Deref(i.StartTime) < event.Deref(j.StartTime)
	}

	// If only one date is valid, put the valid one first
	if i.StartDate != nil {
		return true
	}
	if j.StartDate != nil {
		return false
	}

	return strings.ToLower(headline(i)) < strings.ToLower(headline(j))
}
