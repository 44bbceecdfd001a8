package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/talkwatch/internal/crawler"
	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/metrics"
	"github.com/pfrederiksen/talkwatch/internal/scheduler"
	"github.com/pfrederiksen/talkwatch/internal/speaker"
)

func newScheduleCmd(a *app) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Crawl all pages on the configured schedule until interrupted",
		Long: `Run crawls on a cron schedule (default "5 0 0 * * *", five seconds past
midnight in the configured timezone). A leading seconds field is optional;
descriptors such as @daily and "@every 6h" are accepted. When --metrics-addr
is set, Prometheus metrics are served on /metrics. With a notify backend
each crawl's created and changed talks are posted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runSchedule(ctx, runNow)
		},
	}

	cmd.Flags().BoolVar(&runNow, "now", false, "Crawl once immediately before waiting for the schedule")
	cmd.Flags().String("schedule", "", "Cron expression (default \"5 0 0 * * *\")")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().Duration("crawl-delay", 0, "Pause after each stored meeting (default 1s)")
	cmd.Flags().Int("max-candidates", 0, "Detail links followed per listing page (default 20)")
	cmd.Flags().Bool("enrich", true, "Look up speaker introductions")
	cmd.Flags().String("notify", "", "Post changes: none, dryrun, telegram or twitter (default none)")

	return cmd
}

func (a *app) runSchedule(ctx context.Context, runNow bool) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	cache := a.newSpeakerCache()
	var runner scheduler.Runner = a.newCrawler(store, cache)

	an, err := a.newAnnouncer(store, a.out)
	if err != nil {
		return err
	}
	if an != nil {
		runner = &notifyingRunner{runner: runner, announcer: an, now: time.Now}
	}
	if cache != nil {
		runner = &cacheSweepingRunner{runner: runner, cache: cache, log: logger.Default()}
	}

	s, err := scheduler.New(a.cfg.Schedule, a.cfg.Location, runner, logger.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsErr := make(chan error, 1)
	if a.cfg.MetricsAddr != "" {
		logger.Info("Serving metrics", logger.Fields{"addr": a.cfg.MetricsAddr})
		go func() {
			err := metrics.Serve(ctx, a.cfg.MetricsAddr)
			if err != nil {
				// stop the scheduler too
				cancel()
			}
			metricsErr <- err
		}()
	}

	if runNow {
		if _, err := runner.CrawlAll(ctx); err != nil {
			return fmt.Errorf("initial crawl: %w", err)
		}
	}

	fmt.Fprintf(a.out, "Next crawl at %s\n", s.Next().In(a.cfg.Location).Format(displayTime))

	if err := s.Run(ctx); err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		if err := <-metricsErr; err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}
	return nil
}

// cacheSweepingRunner drops expired speaker lookups after every scheduled
// crawl. The cache lives as long as the process and only expires entries
// lazily on Get.
type cacheSweepingRunner struct {
	runner scheduler.Runner
	cache  *speaker.Cache
	log    *logger.Logger
}

func (r *cacheSweepingRunner) CrawlAll(ctx context.Context) (crawler.Summary, error) {
	summary, err := r.runner.CrawlAll(ctx)
	if removed := r.cache.CleanExpired(); removed > 0 {
		r.log.Info("Expired speaker lookups removed", logger.Fields{
			"removed":   removed,
			"remaining": r.cache.Size(),
		})
	}
	return summary, err
}
