package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/adapter/input"
	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

var importOpts struct {
	source string
	dryRun bool
}

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import layouts from another sticker tool",
	Long: `Import sticker layouts and settings written by another tool.

Sources:
  electron  an electron-store config.json with "layout" and "settings"
  stdin     a JSON object read from stdin, either an electron-store document
            or a map of display id to layout

A layout that is not bound to a display is applied to the selected displays
(default: primary). Image files referenced by the import are copied into the
sticker library when they exist and the library has no sticker of that name.

Examples:
  stickerlay import --source electron ~/.config/Sticker/config.json
  stickerlay import --source electron config.json --display all
  echo '{"DP-1":{"xFrac":0.1,"yFrac":0.1,"widthFrac":0.2,"heightFrac":0.2,"stickerName":"cat"}}' | stickerlay import`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importOpts.source, "source", "",
		"Import source ("+strings.Join(input.Sources(), ", ")+"); electron when a path is given, stdin otherwise")
	importCmd.Flags().BoolVar(&importOpts.dryRun, "dry-run", false,
		"Print the parsed layouts without applying them")
}

// importClient is the part of the daemon API an import uses.
type importClient interface {
	ListStickers(ctx context.Context) ([]stickers.Sticker, error)
	ImportSticker(ctx context.Context, path, name string) (stickers.Sticker, error)
	SetSticker(ctx context.Context, name string, id model.DisplayID, keepAspect bool) (model.Layout, error)
	SetStickerForDisplays(ctx context.Context, name string, ids []model.DisplayID) (map[model.DisplayID]model.Layout, error)
	UpdatePlacement(ctx context.Context, id model.DisplayID, x, y, w, h float64, lockAspect bool) (model.Layout, error)
	SetCaptureProtection(ctx context.Context, id *model.DisplayID, enabled bool) (bool, error)
}

// importSummary counts what an import changed.
type importSummary struct {
	Stickers int
	Layouts  int
	Skipped  []model.DisplayID
}

func runImport(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	source := importOpts.source
	if source == "" && path != "" {
		source = "electron"
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		displays, err := client.ListDisplays(ctx)
		if err != nil {
			return err
		}
		targets, err := core.SelectDisplays(displays, globalOpts.display)
		if err != nil {
			return err
		}

		adapter, err := input.NewAdapter(source, path)
		if err != nil {
			return err
		}
		if electron, ok := adapter.(*input.ElectronAdapter); ok {
			if primary := core.PrimaryDisplay(displays); primary != nil {
				electron.WithReference(primary.Bounds)
			}
		}

		imp, err := adapter.Import(ctx)
		if err != nil {
			return err
		}
		if imp.Empty() {
			return errors.New("nothing to import")
		}

		if importOpts.dryRun {
			formatter, err := createFormatter()
			if err != nil {
				return err
			}
			return formatter.Layouts(os.Stdout, importedLayouts(imp, targets), boundsOf(displays))
		}

		known := make(map[model.DisplayID]bool, len(displays))
		for _, d := range displays {
			known[d.ID] = true
		}
		summary, err := applyImport(ctx, client, imp, targets, known)
		if err != nil {
			return err
		}
		for _, id := range summary.Skipped {
			logger.Warn("skipped layout for unknown display", "display_id", id)
		}
		if imp.AlwaysOnTop != nil {
			logger.Info("always_on_top is a daemon setting; set [overlay] always_on_top in stickerlayd.toml",
				"value", *imp.AlwaysOnTop)
		}
		fmt.Printf("Imported %d layout(s), %d sticker file(s)\n", summary.Layouts, summary.Stickers)
		return nil
	})
}

// importedLayouts lists what an import would write, with the template
// expanded onto targets.
func importedLayouts(imp *input.Import, targets []model.Display) []model.Layout {
	var out []model.Layout
	if imp.Template != nil {
		for _, d := range targets {
			l := *imp.Template
			l.DisplayID = d.ID
			out = append(out, l)
		}
	}
	for _, id := range sortedIDs(imp.Layouts) {
		out = append(out, imp.Layouts[id])
	}
	return out
}

// applyImport copies referenced sticker files into the library, then
// writes the template onto targets and the per-display layouts onto the
// displays known to the daemon.
func applyImport(ctx context.Context, c importClient, imp *input.Import, targets []model.Display, known map[model.DisplayID]bool) (importSummary, error) {
	var summary importSummary

	names, imported, err := importStickerFiles(ctx, c, imp.StickerFiles)
	if err != nil {
		return summary, err
	}
	summary.Stickers = imported

	if imp.Template != nil && len(targets) > 0 {
		n, err := applyTemplate(ctx, c, *imp.Template, core.DisplayIDs(targets), names)
		if err != nil {
			return summary, err
		}
		summary.Layouts += n
	}

	for _, id := range sortedIDs(imp.Layouts) {
		if !known[id] {
			summary.Skipped = append(summary.Skipped, id)
			continue
		}
		if err := applyLayout(ctx, c, imp.Layouts[id], id, names); err != nil {
			return summary, fmt.Errorf("%s: %w", id, err)
		}
		summary.Layouts++
	}

	if imp.CaptureProtection != nil {
		if _, err := c.SetCaptureProtection(ctx, nil, *imp.CaptureProtection); err != nil {
			return summary, fmt.Errorf("capture protection: %w", err)
		}
	}
	return summary, nil
}

// importStickerFiles imports each file whose name is not yet in the
// library. It returns the library name for every imported sticker name.
func importStickerFiles(ctx context.Context, c importClient, files map[string]string) (map[string]string, int, error) {
	names := make(map[string]string, len(files))
	if len(files) == 0 {
		return names, 0, nil
	}

	library, err := c.ListStickers(ctx)
	if err != nil {
		return nil, 0, err
	}
	have := make(map[string]bool, len(library))
	for _, s := range library {
		have[s.Name] = true
	}

	imported := 0
	for _, name := range slices.Sorted(maps.Keys(files)) {
		names[name] = name
		if have[name] {
			continue
		}
		path := files[name]
		if _, err := os.Stat(path); err != nil {
			logger.Warn("sticker file not found, skipping", "sticker", name, "path", path)
			continue
		}
		s, err := c.ImportSticker(ctx, path, name)
		if err != nil {
			return nil, imported, fmt.Errorf("import sticker %s: %w", name, err)
		}
		names[name] = s.Name
		imported++
	}
	return names, imported, nil
}

// applyTemplate shows the template's sticker on ids and moves it into
// place. Every display ends up in one selection.
func applyTemplate(ctx context.Context, c importClient, tmpl model.Layout, ids []model.DisplayID, names map[string]string) (int, error) {
	if name := libraryName(tmpl, names); name != "" {
		if len(ids) == 1 {
			if _, err := c.SetSticker(ctx, name, ids[0], false); err != nil {
				return 0, err
			}
		} else {
			if _, err := c.SetStickerForDisplays(ctx, name, ids); err != nil {
				return 0, err
			}
		}
		if _, err := c.UpdatePlacement(ctx, ids[0], tmpl.XFrac, tmpl.YFrac, tmpl.WidthFrac, tmpl.HeightFrac, false); err != nil {
			return 0, err
		}
		return len(ids), nil
	}

	for _, id := range ids {
		if _, err := c.UpdatePlacement(ctx, id, tmpl.XFrac, tmpl.YFrac, tmpl.WidthFrac, tmpl.HeightFrac, false); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// applyLayout writes one display's layout. Displays sharing a sticker share
// a selection, so the last of them decides the common placement.
func applyLayout(ctx context.Context, c importClient, l model.Layout, id model.DisplayID, names map[string]string) error {
	if name := libraryName(l, names); name != "" {
		if _, err := c.SetSticker(ctx, name, id, false); err != nil {
			return err
		}
	}
	_, err := c.UpdatePlacement(ctx, id, l.XFrac, l.YFrac, l.WidthFrac, l.HeightFrac, false)
	return err
}

func libraryName(l model.Layout, names map[string]string) string {
	name := l.StickerName()
	if mapped, ok := names[name]; ok {
		return mapped
	}
	return name
}

func sortedIDs(m map[model.DisplayID]model.Layout) []model.DisplayID {
	ids := make([]model.DisplayID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
