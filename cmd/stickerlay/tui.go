package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive placement TUI",
	Long: `Launch the terminal user interface for placing stickers.

The TUI lists the daemon's displays, previews each layout at the display's
aspect ratio and moves or resizes the sticker live. Changes made elsewhere,
for example by another stickerlay command, show up immediately.

Key bindings:
  j/k, ↑/↓     Select display (move sticker in place mode)
  h/l, ←/→     Move sticker left/right
  enter        Place the sticker on the selected display
  + / -        Grow or shrink
  H/L, J/K     Narrower/wider, taller/shorter
  f            Toggle fine steps
  s            Choose a sticker
  x            Clear the sticker
  p            Toggle capture protection
  r            Refresh
  ?            Show help
  q            Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	return tui.Run(tui.RunOptions{
		Context:    ctx,
		Config:     cfg,
		Controller: client,
	})
}
