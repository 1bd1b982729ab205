package display

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// Monitor is a raw output as reported by a platform backend.
type Monitor struct {
	ID      string     // Connector or output name, e.g. "DP-1"
	Name    string     // Human-readable model, may be empty
	Bounds  model.Rect // Global desktop pixels
	Primary bool       // Platform primary flag, if the platform has one
}

// MonitorSource enumerates the platform's monitors in platform order.
type MonitorSource interface {
	Monitors(ctx context.Context) ([]Monitor, error)
}

// Registry turns platform monitors into Displays.
type Registry struct {
	source MonitorSource
	logger *slog.Logger
}

// NewRegistry creates a registry backed by source.
func NewRegistry(source MonitorSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{source: source, logger: logger}
}

// ListDisplays returns the current displays in enumeration order.
// Exactly one display is primary: the first one the platform flags, or the
// first display when the platform has no primary concept.
//
// A platform failure or an empty monitor list is returned as an error
// wrapping ErrEnumeration, never as an empty slice.
func (r *Registry) ListDisplays(ctx context.Context) ([]model.Display, error) {
	if r.source == nil {
		return nil, enumerationError("no monitor source configured", nil)
	}

	monitors, err := r.source.Monitors(ctx)
	if err != nil {
		return nil, enumerationError("failed to enumerate monitors", err)
	}
	if len(monitors) == 0 {
		return nil, enumerationError("platform reported no monitors", nil)
	}

	displays := make([]model.Display, 0, len(monitors))
	seen := make(map[model.DisplayID]bool, len(monitors))
	primary := -1

	for i, m := range monitors {
		id := model.DisplayID(m.ID)
		if id == "" {
			id = model.DisplayID("display-" + strconv.Itoa(i))
		}
		if seen[id] {
			dup := id
			id = model.DisplayID(string(id) + "#" + strconv.Itoa(i))
			r.logger.Warn("duplicate monitor id, disambiguating", "id", dup, "display_id", id)
		}
		seen[id] = true

		if m.Primary && primary < 0 {
			primary = i
		}

		displays = append(displays, model.Display{
			ID:     id,
			Index:  i,
			Name:   m.Name,
			Bounds: m.Bounds,
		})
	}

	if primary < 0 {
		primary = 0
	}
	displays[primary].IsPrimary = true

	return displays, nil
}

// PreviewDisplay picks the display a control surface should capture for its
// preview. When id is not present the primary display is used instead; the
// fallback is logged and reported through the second return value.
func (r *Registry) PreviewDisplay(ctx context.Context, id model.DisplayID) (model.Display, bool, error) {
	displays, err := r.ListDisplays(ctx)
	if err != nil {
		return model.Display{}, false, err
	}

	for _, d := range displays {
		if d.ID == id {
			return d, false, nil
		}
	}

	for _, d := range displays {
		if d.IsPrimary {
			r.logger.Warn("preview display not available, falling back to primary",
				"requested", id,
				"fallback", d.ID,
			)
			return d, true, nil
		}
	}

	// ListDisplays always marks a primary.
	return displays[0], true, nil
}

// Find returns the display with the given id from a snapshot.
func Find(displays []model.Display, id model.DisplayID) (model.Display, bool) {
	for _, d := range displays {
		if d.ID == id {
			return d, true
		}
	}
	return model.Display{}, false
}
