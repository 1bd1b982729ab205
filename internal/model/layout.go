package model

import "math"

// DefaultReference is the resolution legacy pixel-only layouts are relative to
// and the fallback used when a display's bounds are unknown.
var DefaultReference = Rect{Width: 1920, Height: 1080}

// DefaultSeed is the pixel-equivalent rectangle a new display starts with.
var DefaultSeed = Rect{X: 100, Y: 100, Width: 200, Height: 200}

// minFraction keeps sizes strictly positive when no minimum is configured.
const minFraction = 1e-6

// StickerRef is a handle to an image in the sticker library.
// Path may be empty for refs loaded from disk; it is resolved on render.
type StickerRef struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Layout is the placement record for one display, in fractions of that
// display's width and height.
type Layout struct {
	DisplayID  DisplayID   `json:"display_id" yaml:"display_id"`
	XFrac      float64     `json:"x_frac" yaml:"x_frac"`
	YFrac      float64     `json:"y_frac" yaml:"y_frac"`
	WidthFrac  float64     `json:"width_frac" yaml:"width_frac"`
	HeightFrac float64     `json:"height_frac" yaml:"height_frac"`
	Sticker    *StickerRef `json:"sticker" yaml:"sticker"`
}

// HasSticker reports whether the layout is in the Active state.
func (l Layout) HasSticker() bool {
	return l.Sticker != nil && l.Sticker.Name != ""
}

// StickerName returns the active sticker name or "".
func (l Layout) StickerName() string {
	if l.Sticker == nil {
		return ""
	}
	return l.Sticker.Name
}

// WithSticker returns a copy of l holding ref. A nil ref clears the sticker.
func (l Layout) WithSticker(ref *StickerRef) Layout {
	if ref != nil {
		cp := *ref
		ref = &cp
	}
	l.Sticker = ref
	return l
}

// WithPlacement returns a copy of l with the given fractional rectangle.
func (l Layout) WithPlacement(x, y, w, h float64) Layout {
	l.XFrac, l.YFrac, l.WidthFrac, l.HeightFrac = x, y, w, h
	return l
}

// Equal compares placement and sticker name.
func (l Layout) Equal(o Layout) bool {
	return l.DisplayID == o.DisplayID &&
		l.XFrac == o.XFrac && l.YFrac == o.YFrac &&
		l.WidthFrac == o.WidthFrac && l.HeightFrac == o.HeightFrac &&
		l.StickerName() == o.StickerName()
}

// PixelRect is a rectangle in floating point pixels.
type PixelRect struct {
	X, Y, Width, Height float64
}

// ResolveExact maps the layout onto bounds without rounding. The result is
// relative to the display origin.
func (l Layout) ResolveExact(bounds Rect) PixelRect {
	w, h := float64(bounds.Width), float64(bounds.Height)
	return PixelRect{
		X:      l.XFrac * w,
		Y:      l.YFrac * h,
		Width:  l.WidthFrac * w,
		Height: l.HeightFrac * h,
	}
}

// Resolve maps the layout onto bounds, rounded to whole pixels.
func (l Layout) Resolve(bounds Rect) Rect {
	p := l.ResolveExact(bounds)
	return Rect{
		X:      int(math.Round(p.X)),
		Y:      int(math.Round(p.Y)),
		Width:  int(math.Round(p.Width)),
		Height: int(math.Round(p.Height)),
	}
}

// PixelAspect returns the on-screen width/height ratio of the layout on bounds.
func (l Layout) PixelAspect(bounds Rect) float64 {
	p := l.ResolveExact(bounds)
	if p.Height <= 0 {
		return 1
	}
	return p.Width / p.Height
}

// FromPixels derives fractions from a pixel rectangle relative to bounds.
func FromPixels(id DisplayID, r PixelRect, bounds Rect) Layout {
	if bounds.Empty() {
		bounds = DefaultReference
	}
	w, h := float64(bounds.Width), float64(bounds.Height)
	return Layout{
		DisplayID:  id,
		XFrac:      r.X / w,
		YFrac:      r.Y / h,
		WidthFrac:  r.Width / w,
		HeightFrac: r.Height / h,
	}
}

// RectToPixels converts an integer rect to a PixelRect.
func RectToPixels(r Rect) PixelRect {
	return PixelRect{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}

// DefaultLayout seeds a layout from a pixel-equivalent rectangle against the
// display's own bounds.
func DefaultLayout(id DisplayID, bounds Rect, seed Rect) Layout {
	return Clamp(FromPixels(id, RectToPixels(seed), bounds), 0, 0)
}

// Clamp enforces 0 <= x, x+w <= 1, 0 <= y, y+h <= 1 with sizes in
// [min, 1]. Non-finite positions collapse to 0, non-finite or too small
// sizes to the minimum.
func Clamp(l Layout, minWidth, minHeight float64) Layout {
	l.WidthFrac = clampSize(l.WidthFrac, minWidth)
	l.HeightFrac = clampSize(l.HeightFrac, minHeight)
	l.XFrac = clampPosition(l.XFrac, l.WidthFrac)
	l.YFrac = clampPosition(l.YFrac, l.HeightFrac)
	return l
}

func clampSize(v, lo float64) float64 {
	if !(lo > minFraction) {
		lo = minFraction
	}
	if lo > 1 {
		lo = 1
	}
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > 1:
		return 1
	}
	return v
}

func clampPosition(v, size float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if hi := 1 - size; v > hi {
		return hi
	}
	return v
}

// Finite reports whether every value is a finite number.
func Finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SizingHint carries the native image proportions used when a sticker is
// first placed.
type SizingHint struct {
	AspectRatio float64 // width / height; <= 0 means no hint
}

// Valid reports whether the hint carries a usable ratio.
func (h SizingHint) Valid() bool {
	return h.AspectRatio > 0 && Finite(h.AspectRatio)
}

// Apply re-derives the layout's size so the sticker keeps the hinted aspect
// ratio on bounds. The on-screen width is kept; if the derived height does
// not fit, the height is capped and the width follows.
func (h SizingHint) Apply(l Layout, bounds Rect) Layout {
	if !h.Valid() {
		return l
	}
	if bounds.Empty() {
		bounds = DefaultReference
	}
	p := l.ResolveExact(bounds)
	p.Height = p.Width / h.AspectRatio
	if maxH := float64(bounds.Height); p.Height > maxH {
		p.Height = maxH
		p.Width = maxH * h.AspectRatio
	}
	derived := FromPixels(l.DisplayID, p, bounds)
	l.WidthFrac = derived.WidthFrac
	l.HeightFrac = derived.HeightFrac
	return l
}
