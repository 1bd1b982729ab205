// Package main provides the CLI entrypoint for stickerlay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/adapter/output"
	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// callTimeout bounds every one-shot call to the daemon.
const callTimeout = 10 * time.Second

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		format     string
		display    string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stickerlay",
	Short: "Pin a sticker image on top of every monitor",
	Long: `stickerlay controls the stickerlayd overlay daemon.

The daemon keeps one transparent, click-through overlay per monitor and
draws the chosen sticker at the same relative position on each of them.
Placements are stored as fractions of each display, so they survive
resolution changes.

Running stickerlay without a subcommand launches the interactive TUI.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalOpts.format == "" {
			globalOpts.format = cfg.Output.Format
		}
		return nil
	},
	// Default to TUI when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/stickerlay/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.format, "format", "f", "",
		"Output format (plain, json, yaml, dmenu, ids)")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.display, "display", "d", "",
		"Target displays: all, primary, a 1-based index, an id or connector name, or a comma list")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// connect opens a client to the running daemon.
func connect() (*dbus.Client, error) {
	client, err := dbus.NewClient(logger)
	if err != nil {
		return nil, fmt.Errorf("stickerlayd is not reachable (is it running?): %w", err)
	}
	return client, nil
}

// withClient runs fn with a connected client and a bounded context.
func withClient(fn func(ctx context.Context, client *dbus.Client) error) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(ctx, client)
}

// createFormatter creates the output formatter for --format.
func createFormatter() (output.Formatter, error) {
	format, err := output.ParseFormat(globalOpts.format)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format, output.DefaultFormatterOptions()), nil
}

// selectDisplays resolves --display (or fallback when unset) against the
// daemon's displays.
func selectDisplays(ctx context.Context, client *dbus.Client, fallback string) ([]model.Display, error) {
	displays, err := client.ListDisplays(ctx)
	if err != nil {
		return nil, err
	}
	expr := globalOpts.display
	if expr == "" {
		expr = fallback
	}
	return core.SelectDisplays(displays, expr)
}

// boundsOf indexes display bounds by id.
func boundsOf(displays []model.Display) map[model.DisplayID]model.Rect {
	out := make(map[model.DisplayID]model.Rect, len(displays))
	for _, d := range displays {
		out[d.ID] = d.Bounds
	}
	return out
}
