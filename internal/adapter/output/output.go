// Package output provides output formatters for the stickerlay CLI.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// Formatter formats daemon state for output.
type Formatter interface {
	Displays(w io.Writer, displays []model.Display) error
	// Layouts writes layouts. bounds, when it has an entry for a layout's
	// display, adds the resolved pixel rectangle.
	Layouts(w io.Writer, layouts []model.Layout, bounds map[model.DisplayID]model.Rect) error
	Stickers(w io.Writer, list []stickers.Sticker) error
	Status(w io.Writer, st dbus.Status) error
	Music(w io.Writer, np dbus.MusicInfo) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatDmenu FormatType = "dmenu"
	FormatIDs   FormatType = "ids"
)

// FormatTypes lists every supported format.
func FormatTypes() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatYAML, FormatDmenu, FormatIDs}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (FormatType, error) {
	for _, f := range FormatTypes() {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (valid: plain, json, yaml, dmenu, ids)", s)
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter()
	case FormatYAML:
		return NewYAMLFormatter()
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string // Custom template for dmenu lines
	ShowIndex bool   // Prefix dmenu lines with a 1-based index
	Separator string // Field separator for dmenu format
	NoHeader  bool   // Omit the plain table header
}

// DefaultFormatterOptions returns sensible defaults.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		Separator: " | ",
	}
}
