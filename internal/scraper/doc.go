// Package scraper provides HTTP fetching and HTML extraction for academic talk pages.
//
// The scraper package fetches listing and detail pages, discovers links whose
// anchor text mentions a lecture, seminar or similar event, flattens pages into
// normalized text lines and recovers labelled fields (time, location, speaker,
// topic, abstract) from those lines. It handles bilingual labels, full-width
// colons, free-form dates and missing fields; anything it cannot find is left
// nil rather than reported as an error.
package scraper
