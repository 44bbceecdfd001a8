// Package scheduler triggers periodic crawls from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pfrederiksen/talkwatch/internal/crawler"
	"github.com/pfrederiksen/talkwatch/internal/logger"
)

// parser accepts an optional leading seconds field and descriptors such as
// "@daily" or "@every 6h".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Runner performs one crawl
type Runner interface {
	CrawlAll(ctx context.Context) (crawler.Summary, error)
}

// Scheduler runs a Runner on a cron schedule. A tick that fires while the
// previous crawl is still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	log    *logger.Logger
	entry  cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
}

// ParseSchedule validates a cron expression
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// New creates a scheduler for spec evaluated in loc.
func New(spec string, loc *time.Location, runner Runner, log *logger.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Default()
	}

	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}

	adapter := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(parser),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		runner: runner,
		spec:   spec,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	s.entry = c.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Next returns when the next crawl is due
func (s *Scheduler) Next() time.Time {
	entry := s.cron.Entry(s.entry)
	if entry.Next.IsZero() {
		return entry.Schedule.Next(time.Now().In(s.cron.Location()))
	}
	return entry.Next
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a running crawl to stop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.log.Info("Scheduler started", logger.Fields{
		"schedule": s.spec,
		"next_run": s.Next().Format(time.RFC3339),
	})

	<-ctx.Done()

	s.cancel()

	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped", nil)
	return nil
}

func (s *Scheduler) tick() {
	started := time.Now()
	s.log.Info("Scheduled crawl started", nil)

	summary, err := s.runner.CrawlAll(s.ctx)
	if err != nil {
		s.log.Error("Scheduled crawl failed", logger.Fields{
			"duration_ms": time.Since(started).Milliseconds(),
		}, err)
		return
	}

	s.log.Info("Scheduled crawl finished", logger.Fields{
		"duration_ms": time.Since(started).Milliseconds(),
		"pages":       summary.Pages,
		"created":     summary.Created,
		"changed":     summary.Changed,
		"next_run":    s.Next().Format(time.RFC3339),
	})
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, toFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, toFields(keysAndValues), err)
}

func toFields(keysAndValues []interface{}) logger.Fields {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make(logger.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
