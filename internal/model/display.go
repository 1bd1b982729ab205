// Package model defines the display and layout records shared by stickerlay.
package model

import "strconv"

// DisplayID identifies a display within one enumeration snapshot.
// It is stable for the lifetime of the process and usually across restarts
// (connector names such as "DP-1"), but may change when the OS reconfigures
// outputs.
type DisplayID string

// Rect is an integer rectangle in global desktop pixel space.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// String returns the rectangle as "WxH+X+Y", the X11 geometry notation.
func (r Rect) String() string {
	return strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height) +
		"+" + strconv.Itoa(r.X) + "+" + strconv.Itoa(r.Y)
}

// Display represents one physical monitor.
type Display struct {
	ID        DisplayID `json:"id" yaml:"id"`
	Index     int       `json:"index" yaml:"index"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Bounds    Rect      `json:"bounds" yaml:"bounds"`
	IsPrimary bool      `json:"primary" yaml:"primary"`
}

// Label returns a human-readable label for the display.
func (d Display) Label() string {
	if d.IsPrimary {
		return "Primary Display"
	}
	return "Display " + strconv.Itoa(d.Index+1)
}
