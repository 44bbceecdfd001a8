package filter

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

func datePtr(year int, month time.Month, day int) *event.Date {
	return &event.Date{Year: year, Month: month, Day: day}
}

func meeting(title, speaker, location string, mode event.Mode, start *event.Date) *event.Meeting {
	return &event.Meeting{
		SourceURL: "https://math.example.edu/talks/" + strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Title:     event.StringPtr(title),
		Speaker:   event.StringPtr(speaker),
		Location:  event.StringPtr(location),
		Mode:      mode,
		StartDate: start,
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"empty filter", NewFilter(), true},
		{"date from", &Filter{DateFrom: datePtr(2026, 3, 1)}, false},
		{"weekends only", &Filter{WeekendsOnly: true}, false},
		{"speaker", &Filter{Speakers: []string{"zhang"}}, false},
		{"mode", &Filter{Modes: []event.Mode{event.ModeOnline}}, false},
		{"keyword", &Filter{Keywords: []string{"ricci"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.IsEmpty(); got != tt.want {
				t.Errorf("Filter.IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	mar15 := datePtr(2026, 3, 15) // Sunday
	mar16 := datePtr(2026, 3, 16) // Monday

	talk := meeting("Ricci flow on surfaces", "张三 (Peking University)", "理科一号楼 1114", event.ModeOffline, mar15)
	talk.Abstract = event.StringPtr("We survey recent progress on Ricci flow.")

	tests := []struct {
		name    string
		filter  *Filter
		meeting *event.Meeting
		want    bool
	}{
		{"empty filter matches all", NewFilter(), talk, true},
		{"speaker substring", &Filter{Speakers: []string{"peking"}}, talk, true},
		{"speaker mismatch", &Filter{Speakers: []string{"tsinghua"}}, talk, false},
		{"any speaker matches", &Filter{Speakers: []string{"tsinghua", "张三"}}, talk, true},
		{"location substring", &Filter{Locations: []string{"1114"}}, talk, true},
		{"location mismatch", &Filter{Locations: []string{"zoom"}}, talk, false},
		{"mode matches", &Filter{Modes: []event.Mode{event.ModeOnline, event.ModeOffline}}, talk, true},
		{"mode mismatch", &Filter{Modes: []event.Mode{event.ModeOnline}}, talk, false},
		{
			name:    "unset mode counts as unknown",
			filter:  &Filter{Modes: []event.Mode{event.ModeUnknown}},
			meeting: meeting("Seminar", "", "", event.ModeUnset, nil),
			want:    true,
		},
		{"keyword in abstract", &Filter{Keywords: []string{"PROGRESS"}}, talk, true},
		{"all keywords required", &Filter{Keywords: []string{"ricci", "knots"}}, talk, false},
		{"within range", &Filter{DateFrom: datePtr(2026, 3, 1), DateTo: datePtr(2026, 3, 31)}, talk, true},
		{"range is inclusive", &Filter{DateFrom: mar15, DateTo: mar15}, talk, true},
		{"before range", &Filter{DateFrom: mar16}, talk, false},
		{"after range", &Filter{DateTo: datePtr(2026, 3, 14)}, talk, false},
		{
			name:    "undated meeting fails date bound",
			filter:  &Filter{DateFrom: datePtr(2026, 3, 1)},
			meeting: meeting("Colloquium", "", "", event.ModeUnset, nil),
			want:    false,
		},
		{"weekend", &Filter{WeekendsOnly: true}, talk, true},
		{
			name:    "weekday",
			filter:  &Filter{WeekendsOnly: true},
			meeting: meeting("Seminar", "", "", event.ModeOnline, mar16),
			want:    false,
		},
		{
			name: "all criteria",
			filter: &Filter{
				DateFrom:  datePtr(2026, 3, 1),
				Speakers:  []string{"张"},
				Locations: []string{"理科"},
				Modes:     []event.Mode{event.ModeOffline},
				Keywords:  []string{"ricci"},
			},
			meeting: talk,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.meeting); got != tt.want {
				t.Errorf("Filter.Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	meetings := []*event.Meeting{
		meeting("Ricci flow", "Zhang", "Room 1114", event.ModeOffline, datePtr(2026, 3, 15)),
		meeting("Knot invariants", "Li", "Tencent Meeting", event.ModeOnline, datePtr(2026, 3, 20)),
		meeting("Random matrices", "Wang", "Room 1418", event.ModeHybrid, datePtr(2026, 4, 2)),
	}

	t.Run("empty filter returns input", func(t *testing.T) {
		got := NewFilter().Apply(meetings)
		if len(got) != len(meetings) {
			t.Errorf("Apply() returned %d meetings, want %d", len(got), len(meetings))
		}
	})

	t.Run("keeps order of matches", func(t *testing.T) {
		f := &Filter{Locations: []string{"room"}}
		got := f.Apply(meetings)
		if len(got) != 2 || got[0] != meetings[0] || got[1] != meetings[2] {
			t.Errorf("Apply() = %v, want first and third meeting", got)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		f := &Filter{Speakers: []string{"nobody"}}
		if got := f.Apply(meetings); len(got) != 0 {
			t.Errorf("Apply() returned %d meetings, want 0", len(got))
		}
	})
}

func TestParseAndApply(t *testing.T) {
	today := event.Date{Year: 2026, Month: time.March, Day: 1}
	meetings := []*event.Meeting{
		meeting("Ricci flow", "Zhang San", "Room 1114", event.ModeOffline, datePtr(2026, 3, 15)),
		meeting("Knot invariants", "Li Si", "Tencent Meeting", event.ModeOnline, datePtr(2026, 3, 20)),
		meeting("Random matrices", "Wang Wu", "Room 1418", event.ModeOnline, datePtr(2026, 4, 2)),
		meeting("Open problems", "Zhao Liu", "Room 1114", event.ModeUnset, nil),
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Ricci flow", "Knot invariants", "Random matrices", "Open problems"}},
		{"mode:online", []string{"Knot invariants", "Random matrices"}},
		{`date:"Mar 1-18"`, []string{"Ricci flow"}},
		{"mode:online from:2026-03-01 to:2026-03-31", []string{"Knot invariants"}},
		{`location:"room 1114"`, []string{"Ricci flow", "Open problems"}},
		{"speaker:li speaker:wang", []string{"Knot invariants", "Random matrices"}},
		{"weekends", []string{"Ricci flow"}},
		{"matrices", []string{"Random matrices"}},
		{"mode:unknown", []string{"Open problems"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f, err := Parse(tt.query, today)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.query, err)
			}

			var got []string
			for _, m := range f.Apply(meetings) {
				got = append(got, event.Deref(m.Title))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q).Apply() = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestFilter_String(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   string
	}{
		{"empty", NewFilter(), "No active filters"},
		{
			name:   "dates",
			filter: &Filter{DateFrom: datePtr(2026, 3, 1), DateTo: datePtr(2026, 3, 15)},
			want:   "From: 2026-03-01 | To: 2026-03-15",
		},
		{
			name:   "speakers and modes",
			filter: &Filter{Speakers: []string{"zhang", "li"}, Modes: []event.Mode{event.ModeOnline}},
			want:   "Speakers: zhang, li | Modes: online",
		},
		{
			name:   "weekends and keywords",
			filter: &Filter{WeekendsOnly: true, Keywords: []string{"ricci"}},
			want:   "Weekends only | Keywords: ricci",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.String(); got != tt.want {
				t.Errorf("Filter.String() = %q, want %q", got, tt.want)
			}
		})
	}
}
