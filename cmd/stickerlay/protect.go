package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
)

var protectCmd = &cobra.Command{
	Use:   "protect on|off|status",
	Short: "Control screen-capture protection of the overlays",
	Long: `Hide the overlays from screenshots and screen sharing, or show them again.

Without --display the setting applies to every overlay and becomes the
default for overlays created later. Backends that cannot exclude windows
from capture report the request as unsupported.

Examples:
  stickerlay protect on
  stickerlay protect off --display DP-1
  stickerlay protect status`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "status"},
	RunE:      runProtect,
}

func init() {
	rootCmd.AddCommand(protectCmd)
}

func runProtect(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
		enabled = false
	case "status":
		return runProtectStatus()
	default:
		return fmt.Errorf("unknown argument %q (use on, off or status)", args[0])
	}

	return withClient(func(ctx context.Context, client *dbus.Client) error {
		var targets []*model.DisplayID
		if globalOpts.display == "" {
			targets = append(targets, nil)
		} else {
			displays, err := selectDisplays(ctx, client, "")
			if err != nil {
				return err
			}
			for _, d := range displays {
				targets = append(targets, &d.ID)
			}
		}

		for _, id := range targets {
			ok, err := client.SetCaptureProtection(ctx, id, enabled)
			if err != nil {
				return err
			}
			if !ok {
				logger.Warn("capture protection could not be applied", "display_id", targetName(id))
			}
		}
		fmt.Printf("Capture protection %s\n", args[0])
		return nil
	})
}

func runProtectStatus() error {
	return withClient(func(ctx context.Context, client *dbus.Client) error {
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if globalOpts.format != "plain" {
			formatter, err := createFormatter()
			if err != nil {
				return err
			}
			return formatter.Status(os.Stdout, st)
		}

		fmt.Printf("default: %s\n", onOff(st.CaptureProtection))
		for _, ov := range st.Overlays {
			fmt.Printf("%s: %s\n", ov.DisplayID, onOff(ov.CaptureProtected))
		}
		return nil
	})
}

func targetName(id *model.DisplayID) string {
	if id == nil {
		return "all"
	}
	return string(*id)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
