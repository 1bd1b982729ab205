package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
)

var displaysOpts struct {
	reconcile bool
}

var displaysCmd = &cobra.Command{
	Use:   "displays",
	Short: "List the displays the daemon is tracking",
	Long: `List the displays stickerlayd currently tracks, in index order.

Index numbers are 1-based and are what --display accepts, next to "all",
"primary", display ids and connector names.

Examples:
  # Show every display
  stickerlay displays

  # Re-enumerate monitors first, then list them
  stickerlay displays --reconcile

  # Pick a display with a dmenu-style launcher
  stickerlay displays --format dmenu | fuzzel -d`,
	Args: cobra.NoArgs,
	RunE: runDisplays,
}

func init() {
	rootCmd.AddCommand(displaysCmd)

	displaysCmd.Flags().BoolVar(&displaysOpts.reconcile, "reconcile", false,
		"Ask the daemon to re-enumerate monitors before listing")
}

func runDisplays(cmd *cobra.Command, args []string) error {
	formatter, err := createFormatter()
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		if displaysOpts.reconcile {
			res, err := client.Reconcile(ctx)
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			for id, ferr := range res.Failed {
				logger.Warn("overlay could not be created", "display_id", id, "error", ferr)
			}
		}

		displays, err := client.ListDisplays(ctx)
		if err != nil {
			return err
		}
		if globalOpts.display != "" {
			displays, err = core.SelectDisplays(displays, globalOpts.display)
			if err != nil {
				return err
			}
		}
		core.SortDisplays(displays)
		return formatter.Displays(os.Stdout, displays)
	})
}
