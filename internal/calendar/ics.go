// Package calendar renders meetings as iCalendar (RFC 5545) documents.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

// DefaultDuration applies when StartTime names no end time
const DefaultDuration = time.Hour

// maxLineOctets is the folding limit for content lines, excluding CRLF
const maxLineOctets = 75

// ErrNoDate is returned for meetings whose start date could not be resolved
var ErrNoDate = errors.New("meeting has no start date")

// clock times such as "14:00" or "14：00"
var clockPattern = regexp.MustCompile(`([01]?\d|2[0-3])[:：]([0-5]\d)`)

// GenerateICS generates an iCalendar (.ics) file for one meeting. Clock
// times in StartTime are read in loc; without one the event is all-day.
func GenerateICS(m *event.Meeting, loc *time.Location) (string, error) {
	if m.StartDate == nil {
		return "", fmt.Errorf("meeting %d: %w", m.ID, ErrNoDate)
	}

	var ics strings.Builder
	writeHeader(&ics, "")
	writeEvent(&ics, m, loc, time.Now())
	ics.WriteString("END:VCALENDAR\r\n")

	return ics.String(), nil
}

// GenerateBulkICS generates one calendar holding every dated meeting.
// Meetings without a start date are skipped. Returns "" when none remain.
func GenerateBulkICS(meetings []*event.Meeting, calendarName string, loc *time.Location) string {
	now := time.Now()

	var body strings.Builder
	count := 0
	for _, m := range meetings {
		if m.StartDate == nil {
			continue
		}
		writeEvent(&body, m, loc, now)
		count++
	}
	if count == 0 {
		return ""
	}

	var ics strings.Builder
	writeHeader(&ics, calendarName)
	ics.WriteString(body.String())
	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeHeader(ics *strings.Builder, calendarName string) {
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//talkwatch//talkwatch//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	if calendarName != "" {
		writeLine(ics, "X-WR-CALNAME:"+escapeICS(calendarName))
	}
}

func writeEvent(ics *strings.Builder, m *event.Meeting, loc *time.Location, now time.Time) {
	if loc == nil {
		loc = time.UTC
	}

	ics.WriteString("BEGIN:VEVENT\r\n")
	writeLine(ics, fmt.Sprintf("UID:meeting-%d@talkwatch", m.ID))
	writeLine(ics, "DTSTAMP:"+formatICSTime(now))
	if !m.LastUpdatedAt.IsZero() {
		writeLine(ics, "LAST-MODIFIED:"+formatICSTime(m.LastUpdatedAt))
	}

	start, end, timed := eventSpan(*m.StartDate, event.Deref(m.StartTime), loc)
	if timed {
		writeLine(ics, "DTSTART:"+formatICSTime(start))
		writeLine(ics, "DTEND:"+formatICSTime(end))
	} else {
		writeLine(ics, "DTSTART;VALUE=DATE:"+formatICSDate(start))
		writeLine(ics, "DTEND;VALUE=DATE:"+formatICSDate(end))
	}

	summary := event.Deref(m.Title)
	if summary == "" {
		summary = event.Deref(m.Topic)
	}
	if summary == "" {
		summary = "Talk"
	}
	writeLine(ics, "SUMMARY:"+escapeICS(summary))

	if desc := description(m); desc != "" {
		writeLine(ics, "DESCRIPTION:"+escapeICS(desc))
	}

	if location := event.Deref(m.Location); location != "" {
		writeLine(ics, "LOCATION:"+escapeICS(location))
	}

	if m.SourceURL != "" {
		writeLine(ics, "URL:"+m.SourceURL)
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

// eventSpan returns start and end for the meeting. timed is false for an
// all-day event, whose end is the following day.
func eventSpan(date event.Date, startTime string, loc *time.Location) (start, end time.Time, timed bool) {
	clocks := clockPattern.FindAllStringSubmatch(startTime, 2)
	if len(clocks) == 0 {
		start = date.In(time.UTC)
		return start, start.AddDate(0, 0, 1), false
	}

	start = atClock(date, clocks[0], loc)
	end = start.Add(DefaultDuration)
	if len(clocks) > 1 {
		if candidate := atClock(date, clocks[1], loc); candidate.After(start) {
			end = candidate
		}
	}
	return start, end, true
}

func atClock(date event.Date, match []string, loc *time.Location) time.Time {
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	return time.Date(date.Year, date.Month, date.Day, hour, minute, 0, 0, loc)
}

func description(m *event.Meeting) string {
	var parts []string
	if speaker := event.Deref(m.Speaker); speaker != "" {
		parts = append(parts, "Speaker: "+speaker)
	}
	if topic := event.Deref(m.Topic); topic != "" && topic != event.Deref(m.Title) {
		parts = append(parts, "Topic: "+topic)
	}
	if startTime := event.Deref(m.StartTime); startTime != "" {
		parts = append(parts, "Time: "+startTime)
	}
	if m.Mode != event.ModeUnset {
		parts = append(parts, "Mode: "+m.Mode.Display())
	}
	if link := event.Deref(m.OnlineLink); link != "" {
		parts = append(parts, "Online: "+link)
	}
	if abstract := event.Deref(m.Abstract); abstract != "" {
		parts = append(parts, "", abstract)
	}
	if m.SourceURL != "" {
		parts = append(parts, "", "Source: "+m.SourceURL)
	}
	return strings.Join(parts, "\n")
}

// formatICSTime formats a time.Time as an iCalendar datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatICSDate(t time.Time) string {
	return t.Format("20060102")
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// writeLine writes a content line, folding it at maxLineOctets without
// splitting a UTF-8 sequence.
func writeLine(ics *strings.Builder, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
		// continuation lines start with a space
		limit = maxLineOctets - 1
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}
