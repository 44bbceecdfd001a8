package scraper

import (
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// lineSelector lists the block and table elements that become lines
const lineSelector = "p, li, td, tr, div"

// BuildLines flattens doc into normalized text lines in document order.
// Nested blocks each contribute a line, so text may repeat; lines shorter
// than two characters are dropped.
func BuildLines(doc *goquery.Document) []string {
	lines := make([]string, 0)
	doc.Find(lineSelector).Each(func(i int, sel *goquery.Selection) {
		text := selectionText(sel)
		if utf8.RuneCountInString(text) < 2 {
			return
		}
		lines = append(lines, text)
	})
	return lines
}

// ExtractTitle returns the first non-empty h1, h2 or h3 (in that order of
// preference), then the document <title>, else "".
func ExtractTitle(doc *goquery.Document) string {
	for _, tag := range []string{"h1", "h2", "h3"} {
		sel := doc.Find(tag).First()
		if sel.Length() == 0 {
			continue
		}
		if text := selectionText(sel); text != "" {
			return text
		}
	}
	return normalizeText(doc.Find("title").First().Text())
}
