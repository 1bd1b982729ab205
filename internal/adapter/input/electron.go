package input

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// ElectronAdapter reads the electron-store config.json kept by the previous
// desktop app. It holds a single pixel layout against the reference
// resolution plus a settings block.
type ElectronAdapter struct {
	path      string
	reference model.Rect
}

// NewElectronAdapter creates an adapter for the config.json at path.
func NewElectronAdapter(path string) *ElectronAdapter {
	return &ElectronAdapter{path: path, reference: model.DefaultReference}
}

// WithReference sets the resolution pixel layouts are relative to.
func (a *ElectronAdapter) WithReference(r model.Rect) *ElectronAdapter {
	if !r.Empty() {
		a.reference = r
	}
	return a
}

// Name returns the adapter identifier.
func (a *ElectronAdapter) Name() string {
	return "electron"
}

type electronStore struct {
	Layout   *electronLayout   `json:"layout"`
	Settings *electronSettings `json:"settings"`
}

// electronLayout is written either in pixels or in percent of the screen.
type electronLayout struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`

	XPct      *float64 `json:"xPct"`
	YPct      *float64 `json:"yPct"`
	WidthPct  *float64 `json:"widthPct"`
	HeightPct *float64 `json:"heightPct"`

	Sticker json.RawMessage `json:"sticker"`
}

type electronSticker struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type electronSettings struct {
	AlwaysOnTop        *bool  `json:"alwaysOnTop"`
	Theme              string `json:"theme"`
	Startup            *bool  `json:"startup"`
	HideStickerCapture *bool  `json:"hideStickerCapture"`
}

// Import reads and converts the file.
func (a *ElectronAdapter) Import(ctx context.Context) (*Import, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, &AdapterError{Source: a.Name(), Message: "failed to read " + a.path, Err: err}
	}
	return parseElectronStore(data, a.reference)
}

func parseElectronStore(data []byte, reference model.Rect) (*Import, error) {
	var doc electronStore
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &AdapterError{Source: "electron", Message: "invalid config.json", Err: err}
	}

	imp := &Import{}
	if doc.Settings != nil {
		imp.CaptureProtection = doc.Settings.HideStickerCapture
		imp.AlwaysOnTop = doc.Settings.AlwaysOnTop
	}

	if doc.Layout == nil {
		return imp, nil
	}

	l, ok := doc.Layout.toLayout(reference)
	if !ok {
		return imp, nil
	}

	if s := doc.Layout.sticker(); s != nil {
		l.Sticker = &model.StickerRef{Name: s.Name}
		if s.Path != "" {
			imp.StickerFiles = map[string]string{s.Name: s.Path}
		}
	}
	imp.Template = &l
	return imp, nil
}

func (l *electronLayout) toLayout(reference model.Rect) (model.Layout, bool) {
	if l.XPct != nil || l.YPct != nil || l.WidthPct != nil || l.HeightPct != nil {
		return model.Layout{
			XFrac:      deref(l.XPct) / 100,
			YFrac:      deref(l.YPct) / 100,
			WidthFrac:  deref(l.WidthPct) / 100,
			HeightFrac: deref(l.HeightPct) / 100,
		}, true
	}
	if l.X == nil && l.Y == nil && l.Width == nil && l.Height == nil {
		return model.Layout{}, false
	}
	return model.FromPixels("", model.PixelRect{
		X:      deref(l.X),
		Y:      deref(l.Y),
		Width:  deref(l.Width),
		Height: deref(l.Height),
	}, reference), true
}

// sticker accepts an object with name and path, a bare file name or path,
// or null.
func (l *electronLayout) sticker() *electronSticker {
	if len(l.Sticker) == 0 || string(l.Sticker) == "null" {
		return nil
	}

	var obj electronSticker
	if err := json.Unmarshal(l.Sticker, &obj); err == nil {
		if obj.Name == "" && obj.Path != "" {
			obj.Name = filepath.Base(obj.Path)
		}
		if obj.Name == "" {
			return nil
		}
		return &obj
	}

	var s string
	if err := json.Unmarshal(l.Sticker, &s); err == nil && s != "" {
		if filepath.IsAbs(s) {
			return &electronSticker{Name: filepath.Base(s), Path: s}
		}
		return &electronSticker{Name: s}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
