package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/talkwatch/internal/config"
	"github.com/pfrederiksen/talkwatch/internal/crawler"
	"github.com/pfrederiksen/talkwatch/internal/logger"
	"github.com/pfrederiksen/talkwatch/internal/scraper"
	"github.com/pfrederiksen/talkwatch/internal/speaker"
	"github.com/pfrederiksen/talkwatch/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitChanges = 2
)

// errChanges makes `crawl --exit-code` exit with ExitChanges
var errChanges = errors.New("meetings created or changed")

// app carries state shared by all subcommands of one invocation
type app struct {
	configFile string
	cfg        *config.Config
	out        io.Writer
	errOut     io.Writer
}

// NewRootCmd creates the root command writing to stdout and stderr
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Stdout, os.Stderr)
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "talkwatch",
		Short: "Track academic talk announcements on department websites",
		Long: `talkwatch crawls registered listing pages for seminar and colloquium
announcements, extracts each talk's details, and records every change to a
talk in a local SQLite database.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Config file (default ./talkwatch.yaml)")
	flags.String("db-path", storage.DefaultPath, "SQLite database path")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("timezone", "", "Zone used to decide what today is (default Asia/Shanghai)")

	cmd.AddCommand(
		newPagesCmd(a),
		newCrawlCmd(a),
		newMeetingsCmd(a),
		newScheduleCmd(a),
	)

	return cmd
}

func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	logger.SetDefault(logger.New(cfg.LogLevel, a.errOut))
	return nil
}

func (a *app) openStore(ctx context.Context) (*storage.Store, error) {
	store, err := storage.Open(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return store, nil
}

// newSpeakerCache returns nil when enrichment is off
func (a *app) newSpeakerCache() *speaker.Cache {
	if !a.cfg.Enrich {
		return nil
	}
	return speaker.NewCache(a.cfg.EnrichCacheTTL)
}

// newCrawler wires the fetcher, record builder and speaker search from config.
// Speaker lookups are skipped when cache is nil.
func (a *app) newCrawler(store crawler.Store, cache *speaker.Cache) *crawler.Crawler {
	cfg := a.cfg

	var enricher scraper.Enricher
	if cache != nil {
		enricher = speaker.NewClientWithCache(cfg.SearchURL, cfg.FetchTimeout, cache)
	}

	// a configured delay of zero means no pause
	delay := cfg.CrawlDelay
	if delay == 0 {
		delay = -1
	}

	return crawler.New(
		scraper.NewFetcher(cfg.FetchTimeout),
		scraper.NewBuilder(enricher, cfg.Location),
		store,
		crawler.Config{
			Delay:         delay,
			MaxCandidates: cfg.MaxCandidates,
			Location:      cfg.Location,
			Logger:        logger.Default(),
		},
	)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", arg)
	}
	return id, nil
}

func parseFormat(value string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(value))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", value)
	}
	return format, nil
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	return run(NewRootCmd(), os.Stderr)
}

func run(cmd *cobra.Command, errOut io.Writer) int {
	err := cmd.Execute()
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errChanges):
		return ExitChanges
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return ExitError
	}
}
