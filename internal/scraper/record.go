package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/talkwatch/internal/event"
	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/metrics"
	"github.com/pfrederiksen/talkwatch/internal/speaker"
)

// Enricher finds a public introduction for a speaker
type Enricher interface {
	Lookup(ctx context.Context, name string) speaker.Result
}

// Builder turns a detail page into a sealed meeting record
type Builder struct {
	enricher Enricher
	loc      *time.Location
	now      func() time.Time
}

// NewBuilder creates a Builder. A nil enricher disables speaker lookups;
// loc is the zone "today" is computed in for year-less dates.
func NewBuilder(enricher Enricher, loc *time.Location) *Builder {
	if loc == nil {
		loc = event.LoadLocation(event.DefaultTimezone)
	}
	return &Builder{
		enricher: enricher,
		loc:      loc,
		now:      time.Now,
	}
}

// Build parses html fetched from detailURL (found on pageURL) into a meeting
// with its ContentHash set.
func (b *Builder) Build(ctx context.Context, pageURL, detailURL, html string) (*event.Meeting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", detailURL, err)
	}

	title := event.StringPtr(ExtractTitle(doc))
	lines := BuildLines(doc)
	fields := ExtractFields(lines)

	m := &event.Meeting{
		SourcePageURL: pageURL,
		SourceURL:     detailURL,
		Title:         firstNonNil(title, fields.Topic),
		StartTime:     fields.StartTime,
		Location:      fields.Location,
		Speaker:       fields.Speaker,
		Topic:         firstNonNil(fields.Topic, title),
		Abstract:      fields.Abstract,
		Mode:          fields.Mode,
		OnlineLink:    fields.OnlineLink,
	}

	m.SpeakerIntro, m.SpeakerIntroURL = b.enrich(ctx, fields.Speaker)

	today := event.DateOf(b.now().In(b.loc))
	m.StartDate = event.ResolveStartDate(fields.StartTime, lines, today)

	m.Seal()
	return m, nil
}

func (b *Builder) enrich(ctx context.Context, name *string) (*string, *string) {
	if b.enricher == nil || name == nil || utf8.RuneCountInString(*name) < 2 {
		return nil, nil
	}

	result := b.enricher.Lookup(ctx, *name)
	switch {
	case errors.Is(result.Err, speaker.ErrNoResult):
		metrics.Enrichment.WithLabelValues("empty").Inc()
		return nil, nil
	case result.Err != nil:
		metrics.Enrichment.WithLabelValues("failed").Inc()
		logger.Warn("Speaker search failed", logger.Fields{
			"speaker": *name,
			"error":   result.Err.Error(),
		})
		return nil, nil
	}

	metrics.Enrichment.WithLabelValues("found").Inc()
	return result.Intro, result.URL
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
