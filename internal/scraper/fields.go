package scraper

import (
	"regexp"
	"strings"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

// Field names a labelled value on a talk page
type Field string

const (
	FieldStartTime Field = "start_time"
	FieldLocation  Field = "location"
	FieldSpeaker   Field = "speaker"
	FieldTopic     Field = "topic"
	FieldAbstract  Field = "abstract"
)

// labels maps each field to its aliases; order matters for matching.
var labels = []struct {
	field   Field
	aliases []string
}{
	{FieldStartTime, []string{"时间", "Date", "Time"}},
	{FieldLocation, []string{"地点", "Location", "Venue", "Room"}},
	{FieldSpeaker, []string{"主讲人", "报告人", "Speaker", "Presenter"}},
	{FieldTopic, []string{"题目", "主题", "Title", "Topic"}},
	{FieldAbstract, []string{"摘要", "Abstract"}},
}

var (
	onlineKeywords  = []string{"线上", "online", "zoom", "腾讯会议", "meeting link", "teams"}
	offlineKeywords = []string{"线下", "offline", "现场"}

	urlPattern  = regexp.MustCompile(`https?://[^\s)]+`)
	datePattern = regexp.MustCompile(`\d{4}[年./-]\d{1,2}[月./-]\d{1,2}日?`)
	timePattern = regexp.MustCompile(`\d{1,2}:\d{2}`)
)

const labelTrim = " :："

// Fields holds everything recovered from a page's lines. Every member is
// always set; nil means the value was not found.
type Fields struct {
	StartTime  *string
	Location   *string
	Speaker    *string
	Topic      *string
	Abstract   *string
	Mode       event.Mode
	OnlineLink *string
}

func (f *Fields) slot(field Field) **string {
	switch field {
	case FieldStartTime:
		return &f.StartTime
	case FieldLocation:
		return &f.Location
	case FieldSpeaker:
		return &f.Speaker
	case FieldTopic:
		return &f.Topic
	case FieldAbstract:
		return &f.Abstract
	}
	return nil
}

// ExtractFields walks lines once, filling each labelled field from the first
// line that yields a value, then classifies the mode, picks the first URL and
// falls back to a bare date/time for the start time.
func ExtractFields(lines []string) Fields {
	fields := Fields{Mode: event.ModeUnset}

	for idx, line := range lines {
		for _, label := range labels {
			slot := fields.slot(label.field)
			if *slot != nil {
				continue
			}

			if value := splitLabelValue(line, label.aliases); value != "" {
				*slot = &value
				continue
			}

			if label.field != FieldAbstract {
				continue
			}
			if alias := firstContained(line, label.aliases); alias != "" {
				if block := collectBlock(lines, idx, alias); block != "" {
					*slot = &block
				}
			}
		}
	}

	joined := strings.Join(lines, " ")
	fields.Mode = classifyMode(strings.ToLower(joined))
	fields.OnlineLink = event.StringPtr(urlPattern.FindString(joined))

	if fields.StartTime == nil {
		date := datePattern.FindString(joined)
		clock := timePattern.FindString(joined)
		switch {
		case date != "" && clock != "":
			fields.StartTime = event.StringPtr(date + " " + clock)
		case date != "":
			fields.StartTime = event.StringPtr(date)
		}
	}

	return fields
}

// splitLabelValue returns the value introduced by any alias on the line:
// the text after the first colon when the alias precedes it, or the rest of
// a line that starts with the alias.
func splitLabelValue(line string, aliases []string) string {
	for _, alias := range aliases {
		if !strings.Contains(line, alias) {
			continue
		}

		if i := strings.IndexAny(line, ":："); i >= 0 {
			if strings.Contains(line[:i], alias) {
				if value := strings.TrimSpace(line[i+colonWidth(line[i:]):]); value != "" {
					return value
				}
			}
		}

		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, alias) {
			if value := strings.TrimLeft(stripped[len(alias):], labelTrim); value != "" {
				return value
			}
		}
	}
	return ""
}

// colonWidth reports the byte width of the colon at the start of s.
func colonWidth(s string) int {
	if strings.HasPrefix(s, "：") {
		return len("：")
	}
	return 1
}

// collectBlock gathers an unlabelled abstract: the rest of the label line
// plus every following line up to the next label line.
func collectBlock(lines []string, start int, alias string) string {
	var collected []string

	first := lines[start]
	if i := strings.Index(first, alias); i >= 0 {
		if remainder := strings.TrimLeft(first[i+len(alias):], labelTrim); remainder != "" {
			collected = append(collected, remainder)
		}
	}

	for _, line := range lines[start+1:] {
		if IsLabelLine(line) {
			break
		}
		if line != "" {
			collected = append(collected, line)
		}
	}

	return normalizeText(strings.Join(collected, " "))
}

// IsLabelLine reports whether line starts with, or contains colon-suffixed,
// any known field alias (case-insensitively).
func IsLabelLine(line string) bool {
	lowered := strings.ToLower(line)
	for _, label := range labels {
		for _, alias := range label.aliases {
			a := strings.ToLower(alias)
			if strings.HasPrefix(lowered, a) ||
				strings.Contains(lowered, a+":") ||
				strings.Contains(lowered, a+"：") {
				return true
			}
		}
	}
	return false
}

func firstContained(line string, aliases []string) string {
	for _, alias := range aliases {
		if strings.Contains(line, alias) {
			return alias
		}
	}
	return ""
}

// classifyMode inspects lowercased page text for online and offline cues.
func classifyMode(lowered string) event.Mode {
	online := containsAny(lowered, onlineKeywords)
	offline := containsAny(lowered, offlineKeywords)
	switch {
	case online && offline:
		return event.ModeHybrid
	case online:
		return event.ModeOnline
	case offline:
		return event.ModeOffline
	default:
		return event.ModeUnset
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
