package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pfrederiksen/talkwatch/internal/event"
)

// FormatMeeting formats one created or changed meeting as a Telegram message
func FormatMeeting(m *event.Meeting, created bool) string {
	var msg strings.Builder

	if created {
		msg.WriteString("🎓 <b>New talk</b>\n\n")
	} else {
		msg.WriteString("✏️ <b>Talk updated</b>\n\n")
	}

	msg.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(headline(m))))

	if speaker := event.Deref(m.Speaker); speaker != "" {
		msg.WriteString(fmt.Sprintf("👤 %s\n", html.EscapeString(speaker)))
	}

	if date := when(m); date != "" {
		msg.WriteString(fmt.Sprintf("📅 %s\n", html.EscapeString(date)))
	}

	if location := event.Deref(m.Location); location != "" {
		msg.WriteString(fmt.Sprintf("📍 %s\n", html.EscapeString(location)))
	}

	if m.Mode == event.ModeOnline || m.Mode == event.ModeHybrid {
		msg.WriteString(fmt.Sprintf("💻 %s", m.Mode))
		if link := event.Deref(m.OnlineLink); link != "" {
			msg.WriteString(fmt.Sprintf(": %s", html.EscapeString(link)))
		}
		msg.WriteString("\n")
	}

	msg.WriteString(fmt.Sprintf("\n🔗 <a href=\"%s\">Details</a>", html.EscapeString(m.SourceURL)))

	return msg.String()
}

// FormatDigest formats a crawl's created and changed meetings as one message,
// grouped by the listing page they were found on.
func FormatDigest(created, changed []*event.Meeting) string {
	total := len(created) + len(changed)
	if total == 0 {
		return "No new or changed talks."
	}

	var msg strings.Builder
	msg.WriteString("📬 <b>Talk digest</b>\n\n")
	msg.WriteString(fmt.Sprintf("%d new, %d changed\n\n", len(created), len(changed)))

	type entry struct {
		m       *event.Meeting
		created bool
	}
	byPage := make(map[string][]entry)
	for _, m := range created {
		byPage[m.SourcePageURL] = append(byPage[m.SourcePageURL], entry{m, true})
	}
	for _, m := range changed {
		byPage[m.SourcePageURL] = append(byPage[m.SourcePageURL], entry{m, false})
	}

	pages := make([]string, 0, len(byPage))
	for page := range byPage {
		pages = append(pages, page)
	}
	sort.Strings(pages)

	for _, page := range pages {
		entries := byPage[page]
		msg.WriteString(fmt.Sprintf("📄 <b>%s</b> (%d talk%s)\n", html.EscapeString(page), len(entries), pluralize(len(entries))))

		for _, e := range entries {
			marker := "🆕"
			if !e.created {
				marker = "✏️"
			}
			msg.WriteString(fmt.Sprintf("  %s <a href=\"%s\">%s</a>", marker,
				html.EscapeString(e.m.SourceURL), html.EscapeString(headline(e.m))))
			if date := when(e.m); date != "" {
				msg.WriteString(fmt.Sprintf(" (%s)", html.EscapeString(date)))
			}
			msg.WriteString("\n")
		}
		msg.WriteString("\n")
	}

	return strings.TrimRight(msg.String(), "\n")
}

// Split breaks text into chunks of at most limit characters, cutting at line
// breaks where possible. A single longer line is cut on rune boundaries.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	size := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
			size = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		for n > limit {
			runes := []rune(line)
			chunks = append(chunks, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		current.WriteString(line)
		size += n
	}
	flush()
	return chunks
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

// when prefers the page's own wording and falls back to the resolved date
func when(m *event.Meeting) string {
	if text := event.Deref(m.StartTime); text != "" {
		return text
	}
	if m.StartDate != nil {
		return m.StartDate.String()
	}
	return ""
}

func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
