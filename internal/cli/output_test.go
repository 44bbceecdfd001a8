package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/crawler"
	"github.com/pfrederiksen/talkwatch/internal/event"
)

func TestWriteMeetings_Empty(t *testing.T) {
	var text, js bytes.Buffer

	if err := writeMeetings(&text, nil, FormatText, false); err != nil {
		t.Fatalf("writeMeetings() error: %v", err)
	}
	if !strings.Contains(text.String(), "No meetings found.") {
		t.Errorf("text output = %q", text.String())
	}

	if err := writeMeetings(&js, nil, FormatJSON, false); err != nil {
		t.Fatalf("writeMeetings() error: %v", err)
	}
	if strings.TrimSpace(js.String()) != "[]" {
		t.Errorf("json output = %q, want []", js.String())
	}
}

func TestWriteMeetings_Text(t *testing.T) {
	meetings := []*event.Meeting{
		{
			ID:        7,
			SourceURL: "https://math.example.edu/talks/7.html",
			Title:     event.StringPtr("Ricci flow"),
			Speaker:   event.StringPtr("Zhang San"),
			StartDate: &event.Date{Year: 2026, Month: time.March, Day: 15},
			Mode:      event.ModeOnline,
		},
		{
			ID:        8,
			SourceURL: "https://math.example.edu/talks/8.html",
		},
	}

	var buf bytes.Buffer
	if err := writeMeetings(&buf, meetings, FormatText, true); err != nil {
		t.Fatalf("writeMeetings() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"[7] 2026-03-15  Ricci flow",
		"Speaker: Zhang San",
		"Mode: online",
		"[8] ????-??-??  https://math.example.edu/talks/8.html",
		"Mode: unknown",
		"Total: 2 meetings",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHistory_Text(t *testing.T) {
	m := &event.Meeting{ID: 3, Title: event.StringPtr("Knot invariants")}
	history := []event.RevisionChange{
		{
			Revision: &event.Revision{ID: 1, RecordedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
			Changes: []event.FieldChange{
				{Field: "location", OldValue: "Room 101", NewValue: "Room 202"},
				{Field: "online_link", OldValue: "", NewValue: "https://zoom.us/j/1"},
			},
		},
	}

	var buf bytes.Buffer
	if err := writeHistory(&buf, m, history, FormatText); err != nil {
		t.Fatalf("writeHistory() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Meeting 3: Knot invariants",
		"revision 1",
		`location: "Room 101" -> "Room 202"`,
		`online_link: (none) -> "https://zoom.us/j/1"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCrawl_Text(t *testing.T) {
	out := crawlOutput{
		Summary: crawler.Summary{Pages: 2, PageErrors: 1, Total: 3, Created: 1, Changed: 1, Stale: 4, Failed: 2},
		Results: []crawler.Result{
			{MeetingID: 1, Created: true, Changed: true, SourceURL: "https://a.example/1"},
			{MeetingID: 2, Changed: true, SourceURL: "https://a.example/2"},
			{MeetingID: 3, SourceURL: "https://a.example/3"},
		},
	}

	var buf bytes.Buffer
	if err := writeCrawl(&buf, out, FormatText); err != nil {
		t.Fatalf("writeCrawl() error: %v", err)
	}
	text := buf.String()

	for _, want := range []string{
		"NEW       [1] https://a.example/1",
		"CHANGED   [2] https://a.example/2",
		"unchanged [3] https://a.example/3",
		"Crawled 2 page(s): 3 meetings stored (1 new, 1 changed), 4 stale skipped, 2 failed, 1 page(s) unreachable",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}
