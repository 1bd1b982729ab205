package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// JSONFormatter formats output as indented JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Displays writes displays as a JSON array.
func (f *JSONFormatter) Displays(w io.Writer, displays []model.Display) error {
	return f.encode(w, displayViews(displays))
}

// Layouts writes layouts as a JSON array.
func (f *JSONFormatter) Layouts(w io.Writer, layouts []model.Layout, bounds map[model.DisplayID]model.Rect) error {
	return f.encode(w, layoutViews(layouts, bounds))
}

// Stickers writes stickers as a JSON array.
func (f *JSONFormatter) Stickers(w io.Writer, list []stickers.Sticker) error {
	return f.encode(w, stickerViews(list))
}

// Status writes the daemon status as a JSON object.
func (f *JSONFormatter) Status(w io.Writer, st dbus.Status) error {
	return f.encode(w, st)
}

// Music writes the playlist state as a JSON object.
func (f *JSONFormatter) Music(w io.Writer, np dbus.MusicInfo) error {
	return f.encode(w, np)
}
