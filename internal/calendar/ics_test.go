package calendar

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

var beijing = time.FixedZone("CST", 8*60*60)

func testMeeting() *event.Meeting {
	return &event.Meeting{
		ID:            42,
		SourceURL:     "https://math.example.edu/info/1010/4521.htm",
		Title:         event.StringPtr("Ricci flow on surfaces"),
		Speaker:       event.StringPtr("张三 (Peking University)"),
		StartTime:     event.StringPtr("2025年3月10日 14:00-15:30"),
		StartDate:     &event.Date{Year: 2025, Month: time.March, Day: 10},
		Location:      event.StringPtr("理科一号楼 1114, Beijing"),
		Abstract:      event.StringPtr("We survey recent progress; open problems remain."),
		Mode:          event.ModeHybrid,
		OnlineLink:    event.StringPtr("https://meeting.tencent.com/dm/abc"),
		LastUpdatedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestGenerateICS(t *testing.T) {
	ics, err := GenerateICS(testMeeting(), beijing)
	if err != nil {
		t.Fatalf("GenerateICS() error: %v", err)
	}
	unfolded := strings.ReplaceAll(ics, "\r\n ", "")

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//talkwatch//talkwatch//EN",
		"BEGIN:VEVENT",
		"UID:meeting-42@talkwatch",
		"DTSTAMP:",
		"LAST-MODIFIED:20250301T080000Z",
		"DTSTART:20250310T060000Z",
		"DTEND:20250310T073000Z",
		"SUMMARY:Ricci flow on surfaces",
		"LOCATION:理科一号楼 1114\\, Beijing",
		"URL:https://math.example.edu/info/1010/4521.htm",
		"Speaker: 张三 (Peking University)",
		"Online: https://meeting.tencent.com/dm/abc",
		"We survey recent progress\\; open problems remain.",
		"Source: https://math.example.edu/info/1010/4521.htm",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	for _, field := range requiredFields {
		if !strings.Contains(unfolded, field) {
			t.Errorf("ICS missing %q", field)
		}
	}

	if !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Error("ICS should use \\r\\n line endings")
	}
}

func TestGenerateICS_NoDate(t *testing.T) {
	m := testMeeting()
	m.StartDate = nil

	if _, err := GenerateICS(m, beijing); !errors.Is(err, ErrNoDate) {
		t.Errorf("GenerateICS() error = %v, want ErrNoDate", err)
	}
}

func TestGenerateICS_Times(t *testing.T) {
	tests := []struct {
		name      string
		startTime *string
		wantStart string
		wantEnd   string
	}{
		{
			name:      "start only defaults to one hour",
			startTime: event.StringPtr("3月10日 上午9:30"),
			wantStart: "DTSTART:20250310T013000Z",
			wantEnd:   "DTEND:20250310T023000Z",
		},
		{
			name:      "full-width colon",
			startTime: event.StringPtr("2025年3月10日 16：00-17：00"),
			wantStart: "DTSTART:20250310T080000Z",
			wantEnd:   "DTEND:20250310T090000Z",
		},
		{
			name:      "end before start is ignored",
			startTime: event.StringPtr("16:00-09:00"),
			wantStart: "DTSTART:20250310T080000Z",
			wantEnd:   "DTEND:20250310T090000Z",
		},
		{
			name:      "no clock time is all-day",
			startTime: event.StringPtr("2025年3月10日 下午"),
			wantStart: "DTSTART;VALUE=DATE:20250310",
			wantEnd:   "DTEND;VALUE=DATE:20250311",
		},
		{
			name:      "missing start time is all-day",
			startTime: nil,
			wantStart: "DTSTART;VALUE=DATE:20250310",
			wantEnd:   "DTEND;VALUE=DATE:20250311",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMeeting()
			m.StartTime = tt.startTime

			ics, err := GenerateICS(m, beijing)
			if err != nil {
				t.Fatalf("GenerateICS() error: %v", err)
			}
			if !strings.Contains(ics, tt.wantStart+"\r\n") {
				t.Errorf("ICS missing %q", tt.wantStart)
			}
			if !strings.Contains(ics, tt.wantEnd+"\r\n") {
				t.Errorf("ICS missing %q", tt.wantEnd)
			}
		})
	}
}

func TestGenerateICS_SummaryFallsBackToTopic(t *testing.T) {
	m := testMeeting()
	m.Title = nil
	m.Topic = event.StringPtr("Knot invariants")

	ics, err := GenerateICS(m, beijing)
	if err != nil {
		t.Fatalf("GenerateICS() error: %v", err)
	}
	if !strings.Contains(ics, "SUMMARY:Knot invariants\r\n") {
		t.Error("SUMMARY should fall back to the topic")
	}
}

func TestGenerateICS_FoldsLongLines(t *testing.T) {
	m := testMeeting()
	m.Abstract = event.StringPtr(strings.Repeat("黎曼曲面上的里奇流 Ricci flow ", 20))

	ics, err := GenerateICS(m, beijing)
	if err != nil {
		t.Fatalf("GenerateICS() error: %v", err)
	}

	for _, line := range strings.Split(strings.TrimSuffix(ics, "\r\n"), "\r\n") {
		if len(line) > maxLineOctets {
			t.Errorf("line exceeds %d octets (%d): %q", maxLineOctets, len(line), line)
		}
		if !utf8.ValidString(line) {
			t.Errorf("folding split a UTF-8 sequence: %q", line)
		}
	}

	unfolded := strings.ReplaceAll(ics, "\r\n ", "")
	if !strings.Contains(unfolded, strings.Repeat("黎曼曲面上的里奇流 Ricci flow ", 20)) {
		t.Error("unfolded DESCRIPTION should contain the full abstract")
	}
}

func TestGenerateBulkICS(t *testing.T) {
	first := testMeeting()
	second := testMeeting()
	second.ID = 43
	undated := testMeeting()
	undated.ID = 44
	undated.StartDate = nil

	ics := GenerateBulkICS([]*event.Meeting{first, second, undated}, "Math talks", beijing)

	if !strings.Contains(ics, "X-WR-CALNAME:Math talks") {
		t.Error("Missing calendar name")
	}
	if got := strings.Count(ics, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("Expected 2 BEGIN:VEVENT, got %d", got)
	}
	if got := strings.Count(ics, "BEGIN:VCALENDAR"); got != 1 {
		t.Errorf("Expected 1 BEGIN:VCALENDAR, got %d", got)
	}
	for _, uid := range []string{"UID:meeting-42@talkwatch", "UID:meeting-43@talkwatch"} {
		if !strings.Contains(ics, uid) {
			t.Errorf("Missing %s", uid)
		}
	}
	if strings.Contains(ics, "meeting-44@") {
		t.Error("undated meeting should be skipped")
	}
}

func TestGenerateBulkICS_Empty(t *testing.T) {
	if ics := GenerateBulkICS(nil, "Math talks", beijing); ics != "" {
		t.Error("Empty meetings should return empty string")
	}
}

func TestGenerateBulkICS_NoCalendarName(t *testing.T) {
	ics := GenerateBulkICS([]*event.Meeting{testMeeting()}, "", beijing)
	if strings.Contains(ics, "X-WR-CALNAME:") {
		t.Error("Should not include X-WR-CALNAME when name is empty")
	}
}

func TestFormatICSTime(t *testing.T) {
	testTime := time.Date(2026, 3, 15, 22, 30, 0, 0, beijing)
	if got := formatICSTime(testTime); got != "20260315T143000Z" {
		t.Errorf("formatICSTime() = %q, want %q", got, "20260315T143000Z")
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Simple text", "Simple text"},
		{"Text with, comma", "Text with\\, comma"},
		{"Text with; semicolon", "Text with\\; semicolon"},
		{"Text with\\backslash", "Text with\\\\backslash"},
		{"Text with\nnewline", "Text with\\nnewline"},
		{"Windows\r\nnewline", "Windows\\nnewline"},
		{"All, special; chars\\\n", "All\\, special\\; chars\\\\\\n"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeICS(tt.input); got != tt.expected {
				t.Errorf("escapeICS(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
