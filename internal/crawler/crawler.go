// Package crawler drives one crawl of the monitored listing pages: discover
// detail links, build a record per detail page, drop talks that already
// happened and hand the rest to the store.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/talkwatch/internal/event"
	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/metrics"
	"github.com/pfrederiksen/talkwatch/internal/scraper"
	"github.com/pfrederiksen/talkwatch/internal/storage"
)

const (
	// DefaultDelay is the pause after each stored detail page
	DefaultDelay = time.Second

	// minCandidates is how many discovered links a listing needs before they
	// are used instead of the listing page itself
	minCandidates = 2
)

// ErrCheckpoint wraps failures to record that a page was checked. The store
// is unusable when this happens, so the crawl stops.
var ErrCheckpoint = errors.New("recording page check")

// Fetcher downloads a page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
}

// RecordBuilder turns a detail page into a sealed meeting
type RecordBuilder interface {
	Build(ctx context.Context, pageURL, detailURL, html string) (*event.Meeting, error)
}

// Store persists crawl results
type Store interface {
	ListPages(ctx context.Context) ([]*event.MonitoredPage, error)
	UpsertMeeting(ctx context.Context, m *event.Meeting) (storage.Outcome, error)
	MarkPageChecked(ctx context.Context, id int64, at time.Time) error
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config tunes a Crawler. Zero values select the defaults; a negative Delay
// disables the pause.
type Config struct {
	Delay         time.Duration
	MaxCandidates int
	Location      *time.Location
	Clock         Clock
	Logger        *logger.Logger
}

// Result describes one stored detail page
type Result struct {
	MeetingID int64  `json:"meeting_id"`
	Created   bool   `json:"created"`
	Changed   bool   `json:"changed"`
	SourceURL string `json:"source_url"`
}

// Summary totals a crawl over several pages
type Summary struct {
	Pages      int `json:"pages"`
	PageErrors int `json:"page_errors"`
	Total      int `json:"total"`
	Created    int `json:"created"`
	Changed    int `json:"changed"`
	Stale      int `json:"stale"`
	Failed     int `json:"failed"`
}

type pageReport struct {
	results []Result
	stale   int
	failed  int
}

// Crawler runs crawls sequentially; it is not safe for concurrent use.
type Crawler struct {
	fetcher       Fetcher
	builder       RecordBuilder
	store         Store
	clock         Clock
	loc           *time.Location
	delay         time.Duration
	maxCandidates int
	log           *logger.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// New creates a Crawler.
func New(fetcher Fetcher, builder RecordBuilder, store Store, cfg Config) *Crawler {
	c := &Crawler{
		fetcher:       fetcher,
		builder:       builder,
		store:         store,
		clock:         cfg.Clock,
		loc:           cfg.Location,
		delay:         cfg.Delay,
		maxCandidates: cfg.MaxCandidates,
		log:           cfg.Logger,
		sleep:         sleepContext,
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.loc == nil {
		c.loc = event.LoadLocation(event.DefaultTimezone)
	}
	switch {
	case c.delay == 0:
		c.delay = DefaultDelay
	case c.delay < 0:
		c.delay = 0
	}
	if c.maxCandidates <= 0 {
		c.maxCandidates = scraper.MaxCandidates
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	return c
}

// CrawlAll crawls every monitored page in turn. A page whose listing cannot
// be fetched is logged and skipped; only a checkpoint failure aborts.
func (c *Crawler) CrawlAll(ctx context.Context) (Summary, error) {
	var summary Summary

	pages, err := c.store.ListPages(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing pages: %w", err)
	}

	for _, page := range pages {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		report, err := c.crawlPage(ctx, page)
		summary.add(report)

		if err != nil {
			if errors.Is(err, ErrCheckpoint) {
				return summary, err
			}
			summary.PageErrors++
			c.log.Error("Page crawl failed", logger.Fields{
				"page_id":  page.ID,
				"page_url": page.URL,
			}, err)
		}
	}

	metrics.LastCrawlSuccess.SetToCurrentTime()
	c.log.Info("Crawl finished", logger.Fields{
		"pages":       summary.Pages,
		"page_errors": summary.PageErrors,
		"stored":      summary.Total,
		"created":     summary.Created,
		"changed":     summary.Changed,
		"stale":       summary.Stale,
		"failed":      summary.Failed,
	})
	return summary, nil
}

// CrawlPage crawls one monitored page and returns the detail pages it stored.
// The page's last_checked_at is stamped whatever happens to the candidates.
func (c *Crawler) CrawlPage(ctx context.Context, page *event.MonitoredPage) ([]Result, error) {
	report, err := c.crawlPage(ctx, page)
	return report.results, err
}

// CrawlPageSummary is CrawlPage that also totals stale and failed candidates.
func (c *Crawler) CrawlPageSummary(ctx context.Context, page *event.MonitoredPage) (Summary, []Result, error) {
	var summary Summary
	report, err := c.crawlPage(ctx, page)
	summary.add(report)
	return summary, report.results, err
}

func (s *Summary) add(report pageReport) {
	s.Pages++
	s.Total += len(report.results)
	s.Stale += report.stale
	s.Failed += report.failed
	for _, r := range report.results {
		if r.Created {
			s.Created++
		} else if r.Changed {
			s.Changed++
		}
	}
}

func (c *Crawler) crawlPage(ctx context.Context, page *event.MonitoredPage) (pageReport, error) {
	start := time.Now()
	defer func() {
		metrics.PageCrawlDuration.Observe(time.Since(start).Seconds())
	}()

	log := c.log.With(logger.Fields{"page_id": page.ID, "page_url": page.URL})
	report := pageReport{results: make([]Result, 0)}

	listing, err := c.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		countFetchError(err)
		if stampErr := c.stamp(ctx, page); stampErr != nil {
			return report, stampErr
		}
		return report, fmt.Errorf("fetching listing %s: %w", page.URL, err)
	}

	detailURLs := c.candidates(listing)
	log.Info("Crawling page", logger.Fields{
		"final_url":  listing.URL,
		"candidates": len(detailURLs),
	})

	today := event.DateOf(c.clock.Now().In(c.loc))

	for _, detailURL := range detailURLs {
		if ctx.Err() != nil {
			break
		}

		result, stale, err := c.crawlDetail(ctx, listing.URL, detailURL, today)
		switch {
		case err != nil:
			report.failed++
			metrics.CrawlCandidates.WithLabelValues(metrics.OutcomeFailed).Inc()
			log.Warn("Candidate failed", logger.Fields{
				"detail_url": detailURL,
				"stage":      failureStage(err),
				"error":      err.Error(),
			})
			continue
		case stale:
			report.stale++
			metrics.CrawlCandidates.WithLabelValues(metrics.OutcomeStale).Inc()
			log.Debug("Skipping past talk", logger.Fields{"detail_url": detailURL})
			continue
		}

		report.results = append(report.results, result)
		metrics.CrawlCandidates.WithLabelValues(outcomeLabel(result)).Inc()

		if err := c.sleep(ctx, c.delay); err != nil {
			break
		}
	}

	if err := c.stamp(ctx, page); err != nil {
		return report, err
	}

	log.Info("Page crawled", logger.Fields{
		"stored": len(report.results),
		"stale":  report.stale,
		"failed": report.failed,
	})
	return report, ctx.Err()
}

// candidates returns the detail pages to visit for a fetched listing.
func (c *Crawler) candidates(listing *scraper.Page) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listing.HTML))
	if err != nil {
		return []string{listing.URL}
	}

	links := scraper.DiscoverLinks(doc, listing.URL)
	if len(links) < minCandidates {
		return []string{listing.URL}
	}
	if len(links) > c.maxCandidates {
		links = links[:c.maxCandidates]
	}
	return links
}

// crawlDetail fetches, builds and stores one detail page. stale is true when
// the talk's date is already past; nothing is stored then.
func (c *Crawler) crawlDetail(ctx context.Context, pageURL, detailURL string, today event.Date) (Result, bool, error) {
	detail, err := c.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		countFetchError(err)
		return Result{}, false, err
	}

	m, err := c.builder.Build(ctx, pageURL, detail.URL, detail.HTML)
	if err != nil {
		return Result{}, false, &buildError{err: err}
	}

	if m.IsStale(today) {
		return Result{}, true, nil
	}

	outcome, err := c.store.UpsertMeeting(ctx, m)
	if err != nil {
		return Result{}, false, err
	}

	return Result{
		MeetingID: outcome.MeetingID,
		Created:   outcome.Created,
		Changed:   outcome.Changed,
		SourceURL: detail.URL,
	}, false, nil
}

func (c *Crawler) stamp(ctx context.Context, page *event.MonitoredPage) error {
	// stamp even when the crawl itself was cancelled
	if err := c.store.MarkPageChecked(context.WithoutCancel(ctx), page.ID, c.clock.Now()); err != nil {
		return fmt.Errorf("%w %d: %w", ErrCheckpoint, page.ID, err)
	}
	return nil
}

type buildError struct {
	err error
}

func (e *buildError) Error() string { return "building record: " + e.err.Error() }
func (e *buildError) Unwrap() error { return e.err }

// failureStage names the step a candidate failed at.
func failureStage(err error) string {
	var be *buildError
	switch {
	case scraper.FetchErrorKind(err) != 0:
		return "fetch"
	case errors.As(err, &be):
		return "build"
	case errors.Is(err, storage.ErrValidation):
		return "validation"
	default:
		return "storage"
	}
}

func outcomeLabel(r Result) string {
	switch {
	case r.Created:
		return metrics.OutcomeCreated
	case r.Changed:
		return metrics.OutcomeChanged
	default:
		return metrics.OutcomeUnchanged
	}
}

func countFetchError(err error) {
	if kind := scraper.FetchErrorKind(err); kind != 0 {
		metrics.FetchErrors.WithLabelValues(kind.String()).Inc()
		return
	}
	metrics.FetchErrors.WithLabelValues("other").Inc()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
