package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// YAMLFormatter formats output as YAML documents.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) encode(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// Displays writes displays as a YAML sequence.
func (f *YAMLFormatter) Displays(w io.Writer, displays []model.Display) error {
	return f.encode(w, displayViews(displays))
}

// Layouts writes layouts as a YAML sequence.
func (f *YAMLFormatter) Layouts(w io.Writer, layouts []model.Layout, bounds map[model.DisplayID]model.Rect) error {
	return f.encode(w, layoutViews(layouts, bounds))
}

// Stickers writes stickers as a YAML sequence.
func (f *YAMLFormatter) Stickers(w io.Writer, list []stickers.Sticker) error {
	return f.encode(w, stickerViews(list))
}

// Status writes the daemon status as a YAML mapping.
func (f *YAMLFormatter) Status(w io.Writer, st dbus.Status) error {
	return f.encode(w, st)
}

// Music writes the playlist state as YAML.
func (f *YAMLFormatter) Music(w io.Writer, np dbus.MusicInfo) error {
	return f.encode(w, np)
}
