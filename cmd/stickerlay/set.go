package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
)

var setOpts struct {
	keepAspect bool
	quiet      bool
}

var setCmd = &cobra.Command{
	Use:   "set <sticker>",
	Short: "Show a sticker on the selected displays",
	Long: `Show a library sticker on the selected displays (default: primary).

With a single display the sticker joins the current selection when it is
already shown elsewhere. With several displays, exactly those displays show
the sticker and it is retracted from every other one.

A display without a stored layout is seeded from the configured default
rectangle. --keep-aspect resizes the seeded box to the image's aspect ratio.

Examples:
  stickerlay set cat
  stickerlay set cat --display all
  stickerlay set cat --display 1,3`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)

	setCmd.Flags().BoolVar(&setOpts.keepAspect, "keep-aspect", true,
		"Size a newly seeded layout to the sticker's aspect ratio")
	setCmd.Flags().BoolVarP(&setOpts.quiet, "quiet", "q", false,
		"Do not print the resulting layouts")
}

func runSet(cmd *cobra.Command, args []string) error {
	formatter, err := createFormatter()
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		name, err := resolveStickerName(ctx, client, args[0])
		if err != nil {
			return err
		}
		displays, err := selectDisplays(ctx, client, core.SelectPrimary)
		if err != nil {
			return err
		}

		var layouts []model.Layout
		if len(displays) == 1 {
			l, err := client.SetSticker(ctx, name, displays[0].ID, setOpts.keepAspect)
			if err != nil {
				return err
			}
			layouts = append(layouts, l)
		} else {
			result, err := client.SetStickerForDisplays(ctx, name, core.DisplayIDs(displays))
			if err != nil {
				return err
			}
			for _, d := range displays {
				if l, ok := result[d.ID]; ok {
					layouts = append(layouts, l)
				}
			}
		}

		if setOpts.quiet {
			return nil
		}
		return formatter.Layouts(os.Stdout, layouts, boundsOf(displays))
	})
}

// resolveStickerName matches arg against the daemon's library, accepting a
// unique case-insensitive prefix.
func resolveStickerName(ctx context.Context, client *dbus.Client, arg string) (string, error) {
	library, err := client.ListStickers(ctx)
	if err != nil {
		return "", err
	}
	s := core.LookupSticker(library, arg)
	if s == nil {
		return "", fmt.Errorf("sticker %q not found (see 'stickerlay stickers list')", arg)
	}
	return s.Name, nil
}
