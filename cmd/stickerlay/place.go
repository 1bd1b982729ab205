package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/layout"
	"github.com/jmylchreest/stickerlay/internal/model"
)

var placeOpts struct {
	x, y, width, height float64
	pixels              bool
	center              bool
	lockAspect          bool
	preset              string
}

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Move or resize the sticker on a display",
	Long: `Move or resize the sticker on the selected displays (default: primary).

Values are fractions of the display (0 to 1) unless --px is given, in which
case they are pixels relative to the display's top-left corner. Components
that are not given keep their current value. The daemon clamps the result
so the sticker stays on screen, and the move is mirrored to every display
in the current selection.

Examples:
  # Move the sticker to the top-right quarter
  stickerlay place --x 0.5 --y 0 --width 0.5 --height 0.5

  # Resize to 400px wide, keeping the image aspect ratio
  stickerlay place --px --width 400 --lock-aspect

  # Center the sticker on display 2
  stickerlay place --center --display 2

  # Use a preset, then nudge it
  stickerlay place --preset top-right --y 0.1

Presets are listed by 'stickerlay layout presets'. User presets live in
~/.config/stickerlay/presets/<name>.yaml.`,
	Args: cobra.NoArgs,
	RunE: runPlace,
}

func init() {
	rootCmd.AddCommand(placeCmd)

	placeCmd.Flags().Float64Var(&placeOpts.x, "x", 0, "Left edge")
	placeCmd.Flags().Float64Var(&placeOpts.y, "y", 0, "Top edge")
	placeCmd.Flags().Float64Var(&placeOpts.width, "width", 0, "Width")
	placeCmd.Flags().Float64Var(&placeOpts.height, "height", 0, "Height")
	placeCmd.Flags().BoolVar(&placeOpts.pixels, "px", false,
		"Interpret values as pixels instead of fractions")
	placeCmd.Flags().BoolVar(&placeOpts.center, "center", false,
		"Center the sticker after applying the size")
	placeCmd.Flags().BoolVar(&placeOpts.lockAspect, "lock-aspect", false,
		"Derive the height from the width and the image aspect ratio")
	placeCmd.Flags().StringVar(&placeOpts.preset, "preset", "",
		"Start from a named placement preset")
}

// placement holds the components given on the command line; nil means
// keep the current value.
type placement struct {
	Preset              *layout.Preset
	X, Y, Width, Height *float64
	Pixels              bool
	Center              bool
}

// Apply merges p into the current layout for a display with bounds. The
// preset applies first, explicit components override it.
func (p placement) Apply(current model.Layout, bounds model.Rect) model.Layout {
	if bounds.Empty() {
		bounds = model.DefaultReference
	}
	if p.Preset != nil {
		current = p.Preset.Apply(current)
	}
	px := current.ResolveExact(bounds)
	frac := model.PixelRect{X: current.XFrac, Y: current.YFrac, Width: current.WidthFrac, Height: current.HeightFrac}

	target := &frac
	if p.Pixels {
		target = &px
	}
	if p.X != nil {
		target.X = *p.X
	}
	if p.Y != nil {
		target.Y = *p.Y
	}
	if p.Width != nil {
		target.Width = *p.Width
	}
	if p.Height != nil {
		target.Height = *p.Height
	}

	next := current
	if p.Pixels {
		next = model.FromPixels(current.DisplayID, px, bounds)
		next.Sticker = current.Sticker
	} else {
		next = next.WithPlacement(frac.X, frac.Y, frac.Width, frac.Height)
	}
	if p.Center {
		next.XFrac = (1 - next.WidthFrac) / 2
		next.YFrac = (1 - next.HeightFrac) / 2
	}
	return next
}

func placementFromFlags(cmd *cobra.Command) (placement, error) {
	p := placement{Pixels: placeOpts.pixels, Center: placeOpts.center}
	if placeOpts.preset != "" {
		preset, err := layout.NewLoader(layout.PresetsDir()).Load(placeOpts.preset)
		if err != nil {
			return p, err
		}
		p.Preset = preset
	}
	flags := cmd.Flags()
	if flags.Changed("x") {
		p.X = &placeOpts.x
	}
	if flags.Changed("y") {
		p.Y = &placeOpts.y
	}
	if flags.Changed("width") {
		p.Width = &placeOpts.width
	}
	if flags.Changed("height") {
		p.Height = &placeOpts.height
	}
	return p, nil
}

func runPlace(cmd *cobra.Command, args []string) error {
	p, err := placementFromFlags(cmd)
	if err != nil {
		return err
	}
	if p.Preset == nil && p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil && !p.Center {
		return fmt.Errorf("nothing to change: give --preset or at least one of --x, --y, --width, --height or --center")
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
			current, err := client.GetLayout(ctx, d.ID)
			if err != nil {
				return err
			}
			next := p.Apply(current, d.Bounds)
			l, err := client.UpdatePlacement(ctx, d.ID, next.XFrac, next.YFrac, next.WidthFrac, next.HeightFrac, placeOpts.lockAspect)
			if err != nil {
				return fmt.Errorf("%s: %w", d.ID, err)
			}
			layouts = append(layouts, l)
		}
		return formatter.Layouts(os.Stdout, layouts, boundsOf(displays))
	})
}
