package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/dbus"
)

var musicCmd = &cobra.Command{
	Use:   "music [play|pause|toggle|next|prev|status]",
	Short: "Control the background music playlist",
	Long: `Control the daemon's music player. The playlist is every mp3, ogg and
wav file in the music directory ([music] dir in stickerlayd.toml, default
~/.local/share/stickerlay/music), in file name order. When a track ends
the next one starts, wrapping to the first after the last.

Without an argument the current track is shown.

Examples:
  stickerlay music play
  stickerlay music next
  stickerlay music status --format json`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"play", "pause", "toggle", "next", "prev", "status"},
	RunE:      runMusic,
}

func init() {
	rootCmd.AddCommand(musicCmd)
}

// musicMethods maps command arguments to control interface methods.
var musicMethods = map[string]string{
	"play":     "MusicPlay",
	"pause":    "MusicPause",
	"toggle":   "MusicToggle",
	"next":     "MusicNext",
	"prev":     "MusicPrevious",
	"previous": "MusicPrevious",
	"status":   "NowPlaying",
}

func musicMethod(args []string) (string, error) {
	if len(args) == 0 {
		return "NowPlaying", nil
	}
	method, ok := musicMethods[args[0]]
	if !ok {
		return "", fmt.Errorf("unknown argument %q (use play, pause, toggle, next, prev or status)", args[0])
	}
	return method, nil
}

func runMusic(cmd *cobra.Command, args []string) error {
	method, err := musicMethod(args)
	if err != nil {
		return err
	}
	formatter, err := createFormatter()
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		np, err := client.Music(ctx, method)
		if err != nil {
			return err
		}
		return formatter.Music(os.Stdout, dbus.MusicInfoFrom(np))
	})
}
