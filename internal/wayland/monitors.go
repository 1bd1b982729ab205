package wayland

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unsafe"

	"github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"

	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
)

// MonitorSource tracks the GDK monitor list. GDK may only be queried on the
// main thread, so the list is snapshotted there whenever it changes and
// Monitors serves the snapshot to any goroutine.
type MonitorSource struct {
	logger  *slog.Logger
	display *gdk.Display

	mu       sync.RWMutex
	snapshot []display.Monitor
	onChange func()

	// Main thread only.
	monitors map[string]*gdk.Monitor
}

// NewMonitorSource snapshots the monitors of d, or of the default display
// when d is nil. It must be called on the main thread.
func NewMonitorSource(d *gdk.Display, logger *slog.Logger) (*MonitorSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if d == nil {
		d = gdk.DisplayGetDefault()
	}
	if d == nil {
		return nil, errors.New("no GDK display available")
	}

	s := &MonitorSource{
		logger:   logger,
		display:  d,
		monitors: make(map[string]*gdk.Monitor),
	}
	s.Refresh()

	d.Monitors().ConnectItemsChanged(func(position, removed, added uint) {
		s.logger.Debug("monitor list changed", "removed", removed, "added", added)
		s.Refresh()

		s.mu.RLock()
		fn := s.onChange
		s.mu.RUnlock()
		if fn != nil {
			fn()
		}
	})
	return s, nil
}

// OnChange registers fn to run on the main thread after the monitor list
// changed and was snapshotted.
func (s *MonitorSource) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Refresh re-reads the monitor list. It must be called on the main thread.
func (s *MonitorSource) Refresh() {
	list := s.display.Monitors()
	n := list.NItems()

	snapshot := make([]display.Monitor, 0, n)
	monitors := make(map[string]*gdk.Monitor, n)
	for i := uint(0); i < n; i++ {
		mon := wrapMonitor(list.Item(i))
		if mon == nil {
			continue
		}

		id := connectorID(mon.Connector(), int(i))
		geom := mon.Geometry()
		snapshot = append(snapshot, display.Monitor{
			ID:   id,
			Name: monitorName(mon.Manufacturer(), mon.Model()),
			Bounds: model.Rect{
				X:      geom.X(),
				Y:      geom.Y(),
				Width:  geom.Width(),
				Height: geom.Height(),
			},
		})
		monitors[id] = mon
	}

	s.monitors = monitors
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
}

// Monitors returns the last snapshot. GTK has no primary monitor, so the
// registry picks the first one.
func (s *MonitorSource) Monitors(ctx context.Context) ([]display.Monitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snapshot), nil
}

// Monitor returns the GDK monitor for a connector. It must be called on the
// main thread.
func (s *MonitorSource) Monitor(id string) *gdk.Monitor {
	return s.monitors[id]
}

// connectorID falls back to the list position for monitors without a
// connector name, which some compositors leave unset.
func connectorID(connector string, index int) string {
	if connector = strings.TrimSpace(connector); connector != "" {
		return connector
	}
	return fmt.Sprintf("monitor-%d", index)
}

func monitorName(manufacturer, modelName string) string {
	return strings.TrimSpace(strings.TrimSpace(manufacturer) + " " + strings.TrimSpace(modelName))
}

// wrapMonitor wraps a glib.Object as a gdk.Monitor. gotk4 does not export
// its own wrapper, so the struct layout is mirrored here.
func wrapMonitor(obj *glib.Object) *gdk.Monitor {
	if obj == nil {
		return nil
	}
	type monitor struct {
		_ [0]func()
		*glib.Object
	}
	m := &monitor{Object: obj}
	return (*gdk.Monitor)(unsafe.Pointer(m))
}
