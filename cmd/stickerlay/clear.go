package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
)

var clearCmd = &cobra.Command{
	Use:   "clear [sticker]",
	Short: "Stop showing a sticker",
	Long: `Stop showing a sticker. Placements are kept, so setting the sticker again
puts it back where it was.

With a sticker name, that sticker is cleared from every display. Without
one, whatever is shown on the selected displays (default: all) is cleared.

Examples:
  stickerlay clear cat
  stickerlay clear
  stickerlay clear --display 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		var names []string
		if len(args) == 1 {
			names = []string{args[0]}
		} else {
			displays, err := selectDisplays(ctx, client, core.SelectAll)
			if err != nil {
				return err
			}
			seen := make(map[string]bool)
			for _, d := range displays {
				l, err := client.GetLayout(ctx, d.ID)
				if err != nil {
					return err
				}
				if name := l.StickerName(); name != "" && !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}

		total := 0
		for _, name := range names {
			n, err := client.ClearSticker(ctx, name)
			if err != nil {
				return fmt.Errorf("clear %s: %w", name, err)
			}
			total += n
		}
		logger.Debug("cleared stickers", "stickers", names, "displays", total)
		fmt.Printf("Cleared %d display(s)\n", total)
		return nil
	})
}
