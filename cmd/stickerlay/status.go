package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/dbus"
)

var statusOpts struct {
	waybar bool
}

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text    string `json:"text"`
	Alt     string `json:"alt,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Class   string `json:"class,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show the daemon's backend, overlays, current selection and the last
broadcast update.

With --waybar the status is written in Waybar's custom module JSON format:

  "custom/sticker": {
    "exec": "stickerlay status --waybar",
    "interval": 5,
    "return-type": "json",
    "on-click": "stickerlay protect on",
    "on-click-right": "stickerlay protect off"
  }

The module text is the selected sticker. Its class is "protected" or
"exposed" depending on capture protection, "idle" when nothing is shown and
"error" when the daemon cannot be reached.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.waybar, "waybar", false,
		"Output Waybar custom module JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusOpts.waybar {
		var st dbus.Status
		err := withClient(func(ctx context.Context, client *dbus.Client) error {
			var err error
			st, err = client.Status(ctx)
			return err
		})
		if err != nil {
			logger.Debug("status unavailable", "error", err)
			return outputWaybar(WaybarStatus{Text: "", Alt: "error", Class: "error", Tooltip: err.Error()})
		}
		return outputWaybar(waybarStatus(st, time.Now()))
	}

	formatter, err := createFormatter()
	if err != nil {
		return err
	}
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		return formatter.Status(os.Stdout, st)
	})
}

// waybarStatus summarises st for a status bar.
func waybarStatus(st dbus.Status, now time.Time) WaybarStatus {
	if st.SelectionSticker == "" {
		return WaybarStatus{
			Text:    "",
			Alt:     "idle",
			Class:   "idle",
			Tooltip: fmt.Sprintf("No sticker shown\n%d display(s), %s backend", st.Displays, st.Backend),
		}
	}

	class := "exposed"
	if st.CaptureProtection {
		class = "protected"
	}

	lines := []string{
		fmt.Sprintf("%s on %s", st.SelectionSticker, strings.Join(st.SelectionDisplays, ", ")),
		fmt.Sprintf("Capture protection: %s", onOff(st.CaptureProtection)),
	}
	failed := 0
	for _, ov := range st.Overlays {
		if ov.State == "failed" {
			failed++
		}
	}
	if failed > 0 {
		lines = append(lines, fmt.Sprintf("%d overlay(s) failed", failed))
		class = "error"
	}
	if st.LastUpdateAt > 0 {
		lines = append(lines, "Updated "+humanize.RelTime(time.Unix(st.LastUpdateAt, 0), now, "ago", "from now"))
	}

	return WaybarStatus{
		Text:    st.SelectionSticker,
		Alt:     class,
		Tooltip: strings.Join(lines, "\n"),
		Class:   class,
	}
}

// outputWaybar writes the status as JSON.
func outputWaybar(status WaybarStatus) error {
	encoder := json.NewEncoder(os.Stdout)
	return encoder.Encode(status)
}
