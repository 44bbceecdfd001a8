package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/talkwatch/internal/storage"
)

func newPagesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage monitored listing pages",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <url>",
			Short: "Register a listing page for crawling",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runPagesAdd,
		},
		newPagesListCmd(a),
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Stop monitoring a page (its meetings are kept)",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runPagesRemove,
		},
	)
	return cmd
}

func newPagesListCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			pages, err := store.ListPages(cmd.Context())
			if err != nil {
				return err
			}
			return writePages(a.out, pages, outFormat)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func (a *app) runPagesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	page, err := store.AddPage(ctx, args[0])
	if errors.Is(err, storage.ErrPageExists) {
		existing, getErr := store.GetPageByURL(ctx, args[0])
		if getErr != nil {
			return getErr
		}
		fmt.Fprintf(a.out, "Page already monitored [%d] %s\n", existing.ID, existing.URL)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Added page [%d] %s\n", page.ID, page.URL)
	return nil
}

func (a *app) runPagesRemove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.RemovePage(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed page %d\n", id)
	return nil
}
