package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/talkwatch/internal/calendar"
	"github.com/pfrederiksen/talkwatch/internal/event"
	"github.com/pfrederiksen/talkwatch/internal/filter"
	"github.com/pfrederiksen/talkwatch/internal/storage"
)

func newMeetingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "meetings",
		Aliases: []string{"talks"},
		Short:   "Inspect stored meetings",
	}

	cmd.AddCommand(
		newMeetingsListCmd(a),
		newMeetingsShowCmd(a),
		newMeetingsHistoryCmd(a),
		newMeetingsICSCmd(a),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a meeting and its history",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runMeetingsDelete,
		},
	)
	return cmd
}

func newMeetingsListCmd(a *app) *cobra.Command {
	var (
		limit   int
		query   string
		order   string
		format  string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings, most recently seen first",
		Long: `List stored meetings. --filter takes a query such as
  mode:online speaker:doe from:2025-03-01 to:2025-03-31
  date:"Mar 1-15" location:"room 101" weekends ricci`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			var sortOrder SortOrder
			if order != "" {
				if sortOrder, err = parseSortOrder(order); err != nil {
					return err
				}
			}
			f, err := filter.Parse(query, event.Today(a.cfg.Location))
			if err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			meetings, err := store.ListMeetings(cmd.Context(), limit)
			if err != nil {
				return err
			}

			meetings = f.Apply(meetings)
			sortMeetings(meetings, sortOrder)
			if outFormat == FormatText && !f.IsEmpty() {
				fmt.Fprintf(a.out, "Filter: %s\n\n", f)
			}
			return writeMeetings(a.out, meetings, outFormat, verbose)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", storage.DefaultListLimit, "Maximum number of meetings read from the database")
	cmd.Flags().StringVar(&query, "filter", "", "Filter query")
	cmd.Flags().StringVar(&order, "sort", "", "Sort by: date, title or seen (default: storage order)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show speaker, time, location and URL")
	return cmd
}

func newMeetingsShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show every field of a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			m, err := store.GetMeeting(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeMeeting(a.out, m, outFormat)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newMeetingsHistoryCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show how a meeting changed over time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			m, err := store.GetMeeting(ctx, id)
			if err != nil {
				return err
			}
			revisions, err := store.MeetingHistory(ctx, id)
			if err != nil {
				return err
			}

			// stored newest first; the diff walks oldest first
			for i, j := 0, len(revisions)-1; i < j; i, j = i+1, j-1 {
				revisions[i], revisions[j] = revisions[j], revisions[i]
			}
			return writeHistory(a.out, m, event.History(m, revisions), outFormat)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newMeetingsICSCmd(a *app) *cobra.Command {
	var (
		output string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "ics <id> [id...]",
		Short: "Export meetings as an iCalendar file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			meetings := make([]*event.Meeting, 0, len(ids))
			for _, id := range ids {
				m, err := store.GetMeeting(cmd.Context(), id)
				if err != nil {
					return err
				}
				meetings = append(meetings, m)
			}

			var ics string
			if len(meetings) == 1 {
				if ics, err = calendar.GenerateICS(meetings[0], a.cfg.Location); err != nil {
					return err
				}
			} else {
				ics = calendar.GenerateBulkICS(meetings, name, a.cfg.Location)
				if ics == "" {
					return fmt.Errorf("none of the meetings has a start date: %w", calendar.ErrNoDate)
				}
			}

			if output == "" || output == "-" {
				_, err = fmt.Fprint(a.out, ics)
				return err
			}
			if err := os.WriteFile(output, []byte(ics), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(a.errOut, "Wrote %d meeting(s) to %s\n", len(meetings), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&name, "name", "talkwatch", "Calendar name when exporting several meetings")
	return cmd
}

func (a *app) runMeetingsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteMeeting(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted meeting %d\n", id)
	return nil
}
