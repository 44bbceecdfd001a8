package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/crawler"
	"github.com/pfrederiksen/talkwatch/internal/event"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const displayTime = "2006-01-02 15:04"

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

// writeMeetings lists meetings one per line, with details when verbose
func writeMeetings(w io.Writer, meetings []*event.Meeting, format OutputFormat, verbose bool) error {
	if format == FormatJSON {
		if meetings == nil {
			meetings = []*event.Meeting{}
		}
		return writeJSON(w, meetings)
	}

	if len(meetings) == 0 {
		fmt.Fprintln(w, "No meetings found.")
		return nil
	}

	for _, m := range meetings {
		fmt.Fprintf(w, "[%d] %s  %s\n", m.ID, dateLabel(m), headline(m))
		if verbose {
			writeField(w, "     ", "Speaker", m.Speaker)
			writeField(w, "     ", "Time", m.StartTime)
			writeField(w, "     ", "Location", m.Location)
			fmt.Fprintf(w, "     Mode: %s\n", m.Mode.Display())
			fmt.Fprintf(w, "     URL: %s\n", m.SourceURL)
		}
	}
	fmt.Fprintf(w, "\nTotal: %d meetings\n", len(meetings))
	return nil
}

// writeMeeting prints every stored field of one meeting
func writeMeeting(w io.Writer, m *event.Meeting, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, m)
	}

	fmt.Fprintf(w, "Meeting %d: %s\n", m.ID, headline(m))
	writeField(w, "  ", "Topic", m.Topic)
	writeField(w, "  ", "Speaker", m.Speaker)
	writeField(w, "  ", "Time", m.StartTime)
	if m.StartDate != nil {
		fmt.Fprintf(w, "  Date: %s\n", m.StartDate)
	}
	writeField(w, "  ", "Location", m.Location)
	fmt.Fprintf(w, "  Mode: %s\n", m.Mode.Display())
	writeField(w, "  ", "Online", m.OnlineLink)
	writeField(w, "  ", "Abstract", m.Abstract)
	writeField(w, "  ", "Speaker intro", m.SpeakerIntro)
	writeField(w, "  ", "Speaker intro URL", m.SpeakerIntroURL)
	fmt.Fprintf(w, "  Source: %s\n", m.SourceURL)
	fmt.Fprintf(w, "  Listing: %s\n", m.SourcePageURL)
	fmt.Fprintf(w, "  First seen: %s\n", m.CreatedAt.Local().Format(displayTime))
	fmt.Fprintf(w, "  Last seen: %s\n", m.LastSeenAt.Local().Format(displayTime))
	fmt.Fprintf(w, "  Last updated: %s\n", m.LastUpdatedAt.Local().Format(displayTime))
	fmt.Fprintf(w, "  Hash: %s\n", m.ContentHash)
	return nil
}

// historyEntry is the JSON shape of one revision with its diff
type historyEntry struct {
	RevisionID  int64               `json:"revision_id"`
	RecordedAt  time.Time           `json:"recorded_at"`
	ContentHash string              `json:"content_hash"`
	Changes     []event.FieldChange `json:"changes"`
}

// writeHistory prints revisions oldest first with the fields each update changed
func writeHistory(w io.Writer, m *event.Meeting, history []event.RevisionChange, format OutputFormat) error {
	if format == FormatJSON {
		entries := make([]historyEntry, 0, len(history))
		for _, h := range history {
			changes := h.Changes
			if changes == nil {
				changes = []event.FieldChange{}
			}
			entries = append(entries, historyEntry{
				RevisionID:  h.Revision.ID,
				RecordedAt:  h.Revision.RecordedAt,
				ContentHash: h.Revision.ContentHash,
				Changes:     changes,
			})
		}
		return writeJSON(w, entries)
	}

	if len(history) == 0 {
		fmt.Fprintf(w, "Meeting %d has not changed since it was first seen.\n", m.ID)
		return nil
	}

	fmt.Fprintf(w, "Meeting %d: %s\n", m.ID, headline(m))
	for _, h := range history {
		fmt.Fprintf(w, "\n%s  revision %d\n", h.Revision.RecordedAt.Local().Format(displayTime), h.Revision.ID)
		if len(h.Changes) == 0 {
			fmt.Fprintln(w, "  (no field differences)")
		}
		for _, c := range h.Changes {
			fmt.Fprintf(w, "  %s: %s -> %s\n", c.Field, quoteOrNone(c.OldValue), quoteOrNone(c.NewValue))
		}
	}
	return nil
}

func writePages(w io.Writer, pages []*event.MonitoredPage, format OutputFormat) error {
	if format == FormatJSON {
		if pages == nil {
			pages = []*event.MonitoredPage{}
		}
		return writeJSON(w, pages)
	}

	if len(pages) == 0 {
		fmt.Fprintln(w, "No monitored pages. Add one with: talkwatch pages add <url>")
		return nil
	}

	for _, p := range pages {
		checked := "never"
		if p.LastCheckedAt != nil {
			checked = p.LastCheckedAt.Local().Format(displayTime)
		}
		fmt.Fprintf(w, "[%d] %s  (last checked: %s)\n", p.ID, p.URL, checked)
	}
	return nil
}

// crawlOutput is the JSON shape of `crawl`
type crawlOutput struct {
	Summary crawler.Summary  `json:"summary"`
	Results []crawler.Result `json:"results,omitempty"`
}

func writeCrawl(w io.Writer, out crawlOutput, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, out)
	}

	for _, r := range out.Results {
		status := "unchanged"
		switch {
		case r.Created:
			status = "NEW"
		case r.Changed:
			status = "CHANGED"
		}
		fmt.Fprintf(w, "%-9s [%d] %s\n", status, r.MeetingID, r.SourceURL)
	}

	s := out.Summary
	fmt.Fprintf(w, "Crawled %d page(s): %d meetings stored (%d new, %d changed), %d stale skipped, %d failed",
		s.Pages, s.Total, s.Created, s.Changed, s.Stale, s.Failed)
	if s.PageErrors > 0 {
		fmt.Fprintf(w, ", %d page(s) unreachable", s.PageErrors)
	}
	fmt.Fprintln(w)
	return nil
}

func writeField(w io.Writer, indent, label string, value *string) {
	if value == nil || *value == "" {
		return
	}
	text := strings.ReplaceAll(*value, "\n", "\n"+indent+"  ")
	fmt.Fprintf(w, "%s%s: %s\n", indent, label, text)
}

func headline(m *event.Meeting) string {
	if title := event.Deref(m.Title); title != "" {
		return title
	}
	if topic := event.Deref(m.Topic); topic != "" {
		return topic
	}
	return m.SourceURL
}

func dateLabel(m *event.Meeting) string {
	if m.StartDate == nil {
		return "????-??-??"
	}
	return m.StartDate.String()
}

func quoteOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return fmt.Sprintf("%q", s)
}
