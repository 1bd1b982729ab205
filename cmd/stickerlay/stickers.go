package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

var stickersOpts struct {
	// Filter options
	filter string
	search string
	since  string
	limit  int

	// Sort options
	sortBy    string
	sortOrder string

	// Add options
	name string
}

var stickersCmd = &cobra.Command{
	Use:     "stickers",
	Aliases: []string{"sticker"},
	Short:   "Manage the sticker library",
}

var stickersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List library stickers",
	Long: `List the stickers in the daemon's library.

Filter expressions combine conditions with commas; all must match.
Fields: name, ext, size, width (w), height (h), modified (mtime, age).
Operators: = != ~ (contains) ~= (regex) > < >= <=

Examples:
  stickerlay stickers list
  stickerlay stickers list --sort modified --order desc
  stickerlay stickers list --filter "ext=png,size>100KB"
  stickerlay stickers list --filter "age<7d" --format json
  stickerlay stickers list --format ids | fuzzel -d | xargs stickerlay set`,
	Args: cobra.NoArgs,
	RunE: runStickersList,
}

var stickersAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Copy an image into the library",
	Long: `Copy an image file into the sticker library. The sticker is named after
the file unless --name is given; a name that is already taken gets a unique
suffix. The file content decides whether it is a supported image, and a name
without extension gets the matching one.`,
	Args: cobra.ExactArgs(1),
	RunE: runStickersAdd,
}

var stickersRmCmd = &cobra.Command{
	Use:     "rm <sticker>",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete a sticker and clear it from every display",
	Args:    cobra.ExactArgs(1),
	RunE:    runStickersRm,
}

var stickersMvCmd = &cobra.Command{
	Use:     "mv <sticker> <new-name>",
	Aliases: []string{"rename"},
	Short:   "Rename a sticker; displays showing it follow the rename",
	Args:    cobra.ExactArgs(2),
	RunE:    runStickersMv,
}

func init() {
	rootCmd.AddCommand(stickersCmd)
	stickersCmd.AddCommand(stickersListCmd, stickersAddCmd, stickersRmCmd, stickersMvCmd)

	stickersListCmd.Flags().StringVar(&stickersOpts.filter, "filter", "",
		"Filter expression (e.g., \"ext=png,size>100KB\")")
	stickersListCmd.Flags().StringVarP(&stickersOpts.search, "search", "s", "",
		"Search sticker names")
	stickersListCmd.Flags().StringVar(&stickersOpts.since, "since", "",
		"Only stickers modified within the duration (e.g., 1h, 7d, 1w)")
	stickersListCmd.Flags().IntVarP(&stickersOpts.limit, "limit", "n", 0,
		"Maximum number of stickers to show (0=unlimited)")
	stickersListCmd.Flags().StringVar(&stickersOpts.sortBy, "sort", "",
		"Sort by field (name, modified, size; default from config)")
	stickersListCmd.Flags().StringVar(&stickersOpts.sortOrder, "order", "",
		"Sort order (asc, desc; default from config)")

	stickersAddCmd.Flags().StringVar(&stickersOpts.name, "name", "",
		"Library name (default: file name without extension)")
}

// listOptions turns the list flags into filter and sort options.
func listOptions() (*core.FilterExpr, core.FilterOptions, core.SortOptions, error) {
	var opts core.FilterOptions
	opts.Limit = stickersOpts.limit

	if stickersOpts.since != "" {
		d, err := core.ParseDuration(stickersOpts.since)
		if err != nil {
			return nil, opts, core.SortOptions{}, fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = d
	}

	expr, err := core.ParseFilter(stickersOpts.filter)
	if err != nil {
		return nil, opts, core.SortOptions{}, fmt.Errorf("invalid --filter: %w", err)
	}

	sortBy := stickersOpts.sortBy
	if sortBy == "" && cfg != nil {
		sortBy = cfg.Output.Sort
	}
	field, err := core.ParseSortField(sortBy)
	if err != nil {
		return nil, opts, core.SortOptions{}, err
	}
	sortOrder := stickersOpts.sortOrder
	if sortOrder == "" && cfg != nil {
		sortOrder = cfg.Output.Order
	}
	order, err := core.ParseSortOrder(sortOrder)
	if err != nil {
		return nil, opts, core.SortOptions{}, err
	}
	return expr, opts, core.SortOptions{Field: field, Order: order}, nil
}

// selectStickers applies search, filter expression, sorting and then the
// since/limit options, in that order.
func selectStickers(list []stickers.Sticker, search string, expr *core.FilterExpr, filter core.FilterOptions, order core.SortOptions) []stickers.Sticker {
	if search != "" {
		list = core.Search(list, search)
	}
	list = core.FilterWithExpr(list, expr)
	core.Sort(list, order)
	return core.Filter(list, filter)
}

func runStickersList(cmd *cobra.Command, args []string) error {
	expr, filter, order, err := listOptions()
	if err != nil {
		return err
	}
	formatter, err := createFormatter()
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		list, err := client.ListStickers(ctx)
		if err != nil {
			return err
		}
		list = selectStickers(list, stickersOpts.search, expr, filter, order)
		return formatter.Stickers(os.Stdout, list)
	})
}

func runStickersAdd(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		s, err := client.ImportSticker(ctx, path, stickersOpts.name)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s\n", s.Name)
		return nil
	})
}

func runStickersRm(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		name, err := resolveStickerName(ctx, client, args[0])
		if err != nil {
			return err
		}
		n, err := client.DeleteSticker(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s (cleared from %d display(s))\n", name, n)
		return nil
	})
}

func runStickersMv(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		name, err := resolveStickerName(ctx, client, args[0])
		if err != nil {
			return err
		}
		s, err := client.RenameSticker(ctx, name, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", name, s.Name)
		return nil
	})
}
