package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newCrawlCmd(a *app) *cobra.Command {
	var (
		pageID   int64
		format   string
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl monitored pages once",
		Long: `Crawl every monitored page, or only --page, and store the talks found.
With --exit-code the command exits 2 when any meeting was created or changed.
With --notify (or the notify setting) the created and changed talks are
posted to telegram or twitter; dryrun prints the posts instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			c := a.newCrawler(store, a.newSpeakerCache())

			// keep JSON output parseable
			var postOut io.Writer = a.out
			if outFormat == FormatJSON {
				postOut = a.errOut
			}
			an, err := a.newAnnouncer(store, postOut)
			if err != nil {
				return err
			}
			since := time.Now()

			var out crawlOutput
			if pageID > 0 {
				page, err := store.GetPage(ctx, pageID)
				if err != nil {
					return err
				}
				summary, results, err := c.CrawlPageSummary(ctx, page)
				if err != nil {
					return err
				}
				out = crawlOutput{Summary: summary, Results: results}
			} else {
				summary, err := c.CrawlAll(ctx)
				if err != nil {
					return err
				}
				out = crawlOutput{Summary: summary}
			}

			if an != nil && out.Summary.Created+out.Summary.Changed > 0 {
				an.announce(ctx, since)
			}

			if err := writeCrawl(a.out, out, outFormat); err != nil {
				return err
			}
			if exitCode && out.Summary.Created+out.Summary.Changed > 0 {
				return errChanges
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&pageID, "page", 0, "Crawl only the page with this id")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit 2 when meetings were created or changed")
	cmd.Flags().Duration("crawl-delay", 0, "Pause after each stored meeting (default 1s)")
	cmd.Flags().Int("max-candidates", 0, "Detail links followed per listing page (default 20)")
	cmd.Flags().Bool("enrich", true, "Look up speaker introductions")
	cmd.Flags().String("notify", "", "Post changes: none, dryrun, telegram or twitter (default none)")

	return cmd
}
