package daemon

import (
	"github.com/jmylchreest/stickerlay/internal/broadcast"
	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/store"
)

// StoreOptions derives layout store options from the daemon config.
func StoreOptions(cfg *config.DaemonConfig) store.Options {
	return store.Options{
		Reference: model.Rect{
			Width:  cfg.Layout.ReferenceWidth,
			Height: cfg.Layout.ReferenceHeight,
		},
		Seed: model.Rect{
			X:      cfg.Layout.DefaultX,
			Y:      cfg.Layout.DefaultY,
			Width:  cfg.Layout.DefaultWidth,
			Height: cfg.Layout.DefaultHeight,
		},
		MinStickerPixels: cfg.Layout.MinSize,
		SeedPolicy:       store.SeedPolicy(cfg.Layout.SeedPolicy),
	}
}

// WindowOptions derives overlay window options from the daemon config.
func WindowOptions(cfg *config.DaemonConfig) display.WindowOptions {
	return display.WindowOptions{
		CaptureProtection: cfg.Overlay.CaptureProtection,
		AlwaysOnTop:       cfg.Overlay.AlwaysOnTop,
		Namespace:         cfg.Overlay.Namespace,
	}
}

// captureDefault returns the capture protection default for new overlays. A
// global toggle recorded in the shared state outlives restarts; otherwise
// the config decides.
func captureDefault(cfg *config.DaemonConfig, state broadcast.StateStore) bool {
	if state != nil {
		if st, err := state.Load(); err == nil && st.CaptureLastTransition != nil && st.CaptureLastTransition.DisplayID == "" {
			return st.CaptureProtection
		}
	}
	return cfg.Overlay.CaptureProtection
}
