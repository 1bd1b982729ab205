package output

import (
	"time"

	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// displayView is the structured output form of a display.
type displayView struct {
	ID      string `json:"id" yaml:"id"`
	Index   int    `json:"index" yaml:"index"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	X       int    `json:"x" yaml:"x"`
	Y       int    `json:"y" yaml:"y"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Primary bool   `json:"primary" yaml:"primary"`
}

func displayViews(displays []model.Display) []displayView {
	out := make([]displayView, 0, len(displays))
	for _, d := range displays {
		out = append(out, displayView{
			ID:      string(d.ID),
			Index:   d.Index,
			Name:    d.Name,
			X:       d.Bounds.X,
			Y:       d.Bounds.Y,
			Width:   d.Bounds.Width,
			Height:  d.Bounds.Height,
			Primary: d.IsPrimary,
		})
	}
	return out
}

// rectView is a pixel rectangle relative to the display origin.
type rectView struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// layoutView is the structured output form of a layout.
type layoutView struct {
	DisplayID  string    `json:"display_id" yaml:"display_id"`
	XFrac      float64   `json:"x_frac" yaml:"x_frac"`
	YFrac      float64   `json:"y_frac" yaml:"y_frac"`
	WidthFrac  float64   `json:"width_frac" yaml:"width_frac"`
	HeightFrac float64   `json:"height_frac" yaml:"height_frac"`
	Sticker    string    `json:"sticker,omitempty" yaml:"sticker,omitempty"`
	Pixels     *rectView `json:"pixels,omitempty" yaml:"pixels,omitempty"`
}

func layoutViews(layouts []model.Layout, bounds map[model.DisplayID]model.Rect) []layoutView {
	out := make([]layoutView, 0, len(layouts))
	for _, l := range layouts {
		v := layoutView{
			DisplayID:  string(l.DisplayID),
			XFrac:      l.XFrac,
			YFrac:      l.YFrac,
			WidthFrac:  l.WidthFrac,
			HeightFrac: l.HeightFrac,
			Sticker:    l.StickerName(),
		}
		if b, ok := bounds[l.DisplayID]; ok && !b.Empty() {
			r := l.Resolve(b)
			v.Pixels = &rectView{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
		}
		out = append(out, v)
	}
	return out
}

// stickerView is the structured output form of a library sticker.
type stickerView struct {
	Name     string    `json:"name" yaml:"name"`
	Path     string    `json:"path" yaml:"path"`
	Size     int64     `json:"size" yaml:"size"`
	Width    int       `json:"width" yaml:"width"`
	Height   int       `json:"height" yaml:"height"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

func stickerViews(list []stickers.Sticker) []stickerView {
	out := make([]stickerView, 0, len(list))
	for _, s := range list {
		out = append(out, stickerView{
			Name:     s.Name,
			Path:     s.Path,
			Size:     s.Size,
			Width:    s.Width,
			Height:   s.Height,
			Modified: s.ModTime,
		})
	}
	return out
}
