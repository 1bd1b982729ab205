// Package input provides importers for layouts written by other tools.
package input

import (
	"context"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// Import is the result of reading an external layout source.
type Import struct {
	// Layouts holds per-display layouts keyed by display id.
	Layouts map[model.DisplayID]model.Layout

	// Template is a layout not bound to any display. Callers fan it out to
	// the displays they select. DisplayID is empty.
	Template *model.Layout

	// StickerFiles maps sticker names referenced by the import to image
	// files on disk, when the source records them.
	StickerFiles map[string]string

	// CaptureProtection and AlwaysOnTop are nil when the source has no
	// opinion.
	CaptureProtection *bool
	AlwaysOnTop       *bool
}

// Empty reports whether the import carries nothing to apply.
func (i *Import) Empty() bool {
	return i == nil || (len(i.Layouts) == 0 && i.Template == nil &&
		i.CaptureProtection == nil && i.AlwaysOnTop == nil)
}

// InputAdapter reads layouts from a source.
type InputAdapter interface {
	// Name returns the adapter identifier (e.g., "electron", "stdin").
	Name() string

	// Import reads the source and converts it to fractional layouts.
	Import(ctx context.Context) (*Import, error)
}

// Sources lists the supported adapter names.
func Sources() []string {
	return []string{"electron", "stdin"}
}

// NewAdapter creates an InputAdapter for the specified source. The electron
// adapter reads path; an empty path is an error.
func NewAdapter(source, path string) (InputAdapter, error) {
	switch source {
	case "electron":
		if path == "" {
			return nil, &AdapterError{
				Source:  source,
				Message: "a config.json path is required",
			}
		}
		return NewElectronAdapter(path), nil
	case "stdin", "":
		return NewStdinAdapter(), nil
	default:
		return nil, &AdapterError{
			Source:  source,
			Message: "unknown adapter",
		}
	}
}

// AdapterError represents an adapter-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Source + ": " + e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
