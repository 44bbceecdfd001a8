package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxCandidates caps how many discovered links are crawled per listing page
const MaxCandidates = 20

// CrawlKeywords are matched case-insensitively against anchor text
var CrawlKeywords = []string{
	"讲座",
	"报告",
	"学术",
	"论坛",
	"研讨",
	"Seminar",
	"Colloquium",
	"Workshop",
	"Conference",
}

// DiscoverLinks returns absolute http(s) URLs of anchors whose text mentions
// an academic event, deduplicated in first-seen order.
func DiscoverLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	links := make([]string, 0)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		text := selectionText(sel)
		if text == "" || !matchesKeyword(text) {
			return
		}

		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(ref)
		if absolute.Scheme != "http" && absolute.Scheme != "https" {
			return
		}

		link := absolute.String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links
}

func matchesKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range CrawlKeywords {
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
