package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/layout"
	"github.com/jmylchreest/stickerlay/internal/model"
)

var layoutOpts struct {
	active bool
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Show stored sticker layouts",
}

var layoutGetCmd = &cobra.Command{
	Use:   "get [display]",
	Short: "Show the layout of one or more displays",
	Long: `Show the stored layout for the selected displays.

The display can be given as an argument or through --display and defaults to
the primary display. Plain output includes the resolved pixel rectangle.

Examples:
  stickerlay layout get
  stickerlay layout get 2
  stickerlay layout get DP-1 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLayoutGet,
}

var layoutPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List placement presets",
	Long: `List the placement presets accepted by 'stickerlay place --preset'.

Presets are YAML files with an anchor (top-left, top, top-right, left,
center, right, bottom-left, bottom, bottom-right), a margin and optional
width and height, all as fractions of the display. Files in
~/.config/stickerlay/presets shadow the built-in presets of the same name.`,
	Args: cobra.NoArgs,
	RunE: runLayoutPresets,
}

var layoutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored layout",
	Long: `List every stored layout, including layouts of displays that are not
connected right now.`,
	Args: cobra.NoArgs,
	RunE: runLayoutList,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.AddCommand(layoutGetCmd)
	layoutCmd.AddCommand(layoutListCmd)
	layoutCmd.AddCommand(layoutPresetsCmd)

	layoutListCmd.Flags().BoolVar(&layoutOpts.active, "active", false,
		"Only list layouts that show a sticker")
}

func runLayoutGet(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		globalOpts.display = args[0]
	}
	formatter, err := createFormatter()
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		displays, err := selectDisplays(ctx, client, core.SelectPrimary)
		if err != nil {
			return err
		}

		layouts := make([]model.Layout, 0, len(displays))
		for _, d := range displays {
			l, err := client.GetLayout(ctx, d.ID)
			if err != nil {
				return err
			}
			layouts = append(layouts, l)
		}
		return formatter.Layouts(os.Stdout, layouts, boundsOf(displays))
	})
}

func runLayoutList(cmd *cobra.Command, args []string) error {
	formatter, err := createFormatter()
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		stored, err := client.GetLayouts(ctx)
		if err != nil {
			return err
		}
		displays, err := client.ListDisplays(ctx)
		if err != nil {
			return err
		}

		layouts := sortedLayouts(stored, displays)
		if layoutOpts.active {
			layouts = slices.DeleteFunc(layouts, func(l model.Layout) bool { return !l.HasSticker() })
		}
		return formatter.Layouts(os.Stdout, layouts, boundsOf(displays))
	})
}

// sortedLayouts orders layouts by display index; layouts of disconnected
// displays follow, sorted by id.
func sortedLayouts(stored map[model.DisplayID]model.Layout, displays []model.Display) []model.Layout {
	core.SortDisplays(displays)
	out := make([]model.Layout, 0, len(stored))
	seen := make(map[model.DisplayID]bool, len(displays))
	for _, d := range displays {
		if l, ok := stored[d.ID]; ok {
			out = append(out, l)
			seen[d.ID] = true
		}
	}

	var rest []model.DisplayID
	for id := range stored {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	for _, id := range rest {
		out = append(out, stored[id])
	}
	return out
}

func runLayoutPresets(cmd *cobra.Command, args []string) error {
	presets := layout.NewLoader(layout.PresetsDir()).List()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tANCHOR\tSIZE\tDESCRIPTION")
	for _, p := range presets {
		size := "keep"
		if p.Width > 0 || p.Height > 0 {
			size = fmt.Sprintf("%.0f%% x %.0f%%", p.Width*100, p.Height*100)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Anchor, size, p.Description)
	}
	return tw.Flush()
}
