package display

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// overlay is the manager's record of one live window.
// Only the manager holds references to it.
type overlay struct {
	mu               sync.Mutex
	window           Window
	display          model.Display
	currentLayout    *model.Layout
	captureProtected bool
}

// OverlayStatus is a read-only view of one overlay for status reporting.
type OverlayStatus struct {
	Display          model.Display
	CaptureProtected bool
	Layout           *model.Layout
}

// ReconcileResult describes what a Reconcile pass changed.
type ReconcileResult struct {
	Created []model.DisplayID
	Removed []model.DisplayID
	Moved   []model.DisplayID
	Failed  map[model.DisplayID]error
}

// Changed reports whether the pass created, removed or moved any window.
func (r ReconcileResult) Changed() bool {
	return len(r.Created) > 0 || len(r.Removed) > 0 || len(r.Moved) > 0
}

// Manager keeps exactly one overlay window per live display.
type Manager struct {
	factory WindowFactory
	images  ImageResolver
	logger  *slog.Logger

	// reconcileMu serializes Reconcile and CloseAll, the only writers of
	// the window collection.
	reconcileMu sync.Mutex

	mu      sync.RWMutex
	windows map[model.DisplayID]*overlay
	order   []model.DisplayID // Registration order
	opts    WindowOptions     // Options for windows created from now on
}

// NewManager creates a window manager. images may be nil, in which case
// sticker refs must carry a path.
func NewManager(factory WindowFactory, images ImageResolver, opts WindowOptions, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory: factory,
		images:  images,
		logger:  logger,
		windows: make(map[model.DisplayID]*overlay),
		opts:    opts,
	}
}

// Reconcile creates a window for every display that lacks one and destroys
// windows whose display is gone. Calling it twice with the same displays
// does nothing the second time. A display whose window cannot be created is
// logged, reported in the result, and left without an overlay; the pass
// continues with the remaining displays.
func (m *Manager) Reconcile(displays []model.Display) ReconcileResult {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	result := ReconcileResult{Failed: make(map[model.DisplayID]error)}

	live := make(map[model.DisplayID]model.Display, len(displays))
	for _, d := range displays {
		live[d.ID] = d
	}

	// Collect removals under the lock, close outside it.
	m.mu.Lock()
	var stale []*overlay
	kept := m.order[:0:0]
	for _, id := range m.order {
		ov := m.windows[id]
		_, present := live[id]
		if present && !ov.window.Closed() {
			kept = append(kept, id)
			continue
		}
		if present {
			m.logger.Warn("overlay window closed externally, recreating", "display_id", id)
		}
		stale = append(stale, ov)
		delete(m.windows, id)
		result.Removed = append(result.Removed, id)
	}
	m.order = kept
	opts := m.opts
	m.mu.Unlock()

	for _, ov := range stale {
		ov.window.Close()
		m.logger.Debug("removed overlay", "display_id", ov.display.ID)
	}

	for _, d := range displays {
		m.mu.RLock()
		ov, exists := m.windows[d.ID]
		m.mu.RUnlock()

		if exists {
			if m.moveIfChanged(ov, d) {
				result.Moved = append(result.Moved, d.ID)
			}
			continue
		}

		created, err := m.createOverlay(d, opts)
		if err != nil {
			result.Failed[d.ID] = err
			m.logger.Error("failed to create overlay window",
				"display_id", d.ID,
				"bounds", d.Bounds.String(),
				"error", err,
			)
			continue
		}

		m.mu.Lock()
		m.windows[d.ID] = created
		m.order = append(m.order, d.ID)
		m.mu.Unlock()

		result.Created = append(result.Created, d.ID)
		m.logger.Debug("created overlay",
			"display_id", d.ID,
			"bounds", d.Bounds.String(),
			"capture_protected", created.captureProtected,
		)
	}

	if result.Changed() || len(result.Failed) > 0 {
		m.logger.Info("reconciled overlays",
			"created", len(result.Created),
			"removed", len(result.Removed),
			"moved", len(result.Moved),
			"failed", len(result.Failed),
			"active", m.ActiveCount(),
		)
	}

	return result
}

// createOverlay builds one window and applies the default capture
// protection. Platforms without capture protection keep the window running
// unprotected; any other capture error fails the creation.
func (m *Manager) createOverlay(d model.Display, opts WindowOptions) (*overlay, error) {
	if m.factory == nil {
		return nil, &DisplayError{Message: "no window factory configured", Cause: ErrWindowCreation}
	}

	w, err := m.factory.CreateWindow(d, opts)
	if err != nil {
		return nil, &DisplayError{
			Message: fmt.Sprintf("create overlay for %s", d.ID),
			Cause:   errors.Join(ErrWindowCreation, err),
		}
	}

	ov := &overlay{window: w, display: d}
	if !opts.CaptureProtection {
		return ov, nil
	}

	switch err := w.SetCaptureProtection(true); {
	case err == nil:
		ov.captureProtected = true
	case errors.Is(err, ErrCaptureUnsupported):
		m.logger.Warn("capture protection unavailable, overlay will appear in screen captures",
			"display_id", d.ID,
			"error", err,
		)
	default:
		w.Close()
		return nil, &DisplayError{
			Message: fmt.Sprintf("enable capture protection for %s", d.ID),
			Cause:   errors.Join(ErrWindowCreation, err),
		}
	}
	return ov, nil
}

// moveIfChanged follows a display whose bounds changed and re-renders the
// current layout against the new bounds.
func (m *Manager) moveIfChanged(ov *overlay, d model.Display) bool {
	ov.mu.Lock()
	defer ov.mu.Unlock()

	if ov.display.Bounds == d.Bounds {
		ov.display = d
		return false
	}

	m.logger.Debug("display bounds changed",
		"display_id", d.ID,
		"from", ov.display.Bounds.String(),
		"to", d.Bounds.String(),
	)
	ov.display = d
	ov.window.Move(d.Bounds)
	if ov.currentLayout != nil {
		ov.window.Render(m.frameFor(d, *ov.currentLayout))
	}
	return true
}

// ApplyLayout hands the layout to the window bound to id. The call returns
// once the frame is queued; a frame that has not been drawn yet is replaced.
// It returns false when no live window exists for id.
func (m *Manager) ApplyLayout(id model.DisplayID, l model.Layout) bool {
	m.mu.RLock()
	ov := m.windows[id]
	m.mu.RUnlock()

	if ov == nil || ov.window.Closed() {
		m.logger.Warn("no live overlay for display", "display_id", id)
		return false
	}

	ov.mu.Lock()
	defer ov.mu.Unlock()

	if ov.currentLayout != nil && ov.currentLayout.Equal(l) {
		return true
	}

	ov.window.Render(m.frameFor(ov.display, l))
	applied := l.WithSticker(l.Sticker)
	ov.currentLayout = &applied

	m.logger.Debug("applied layout",
		"display_id", id,
		"sticker", l.StickerName(),
		"rect", l.Resolve(ov.display.Bounds).String(),
	)
	return true
}

// Refresh renders the last applied layout of id again, re-reading its image.
func (m *Manager) Refresh(id model.DisplayID) bool {
	m.mu.RLock()
	ov := m.windows[id]
	m.mu.RUnlock()

	if ov == nil || ov.window.Closed() {
		return false
	}

	ov.mu.Lock()
	defer ov.mu.Unlock()
	if ov.currentLayout == nil {
		return false
	}
	ov.window.Render(m.frameFor(ov.display, *ov.currentLayout))
	return true
}

// frameFor resolves the layout against the display. An image that cannot
// be resolved renders nothing rather than failing delivery.
func (m *Manager) frameFor(d model.Display, l model.Layout) Frame {
	f := Frame{
		Bounds: d.Bounds,
		Target: l.Resolve(d.Bounds),
	}
	if !l.HasSticker() {
		return f
	}

	path := l.Sticker.Path
	if m.images != nil {
		resolved, err := m.images.ResolveStickerImage(*l.Sticker)
		if err != nil {
			m.logger.Warn("failed to resolve sticker image",
				"display_id", d.ID,
				"sticker", l.Sticker.Name,
				"error", err,
			)
			return f
		}
		path = resolved
	}
	if path == "" {
		return f
	}

	ref := *l.Sticker
	ref.Path = path
	f.Sticker = &ref
	f.ImagePath = path
	return f
}

// SetCaptureProtection toggles capture protection. A nil id applies to every
// live window and becomes the default for windows created later. It returns
// false when id names no live window.
func (m *Manager) SetCaptureProtection(id *model.DisplayID, enabled bool) bool {
	var targets []*overlay

	m.mu.Lock()
	if id == nil {
		m.opts.CaptureProtection = enabled
		for _, did := range m.order {
			targets = append(targets, m.windows[did])
		}
	} else if ov, ok := m.windows[*id]; ok {
		targets = append(targets, ov)
	}
	m.mu.Unlock()

	if id != nil && len(targets) == 0 {
		m.logger.Warn("no live overlay for display", "display_id", *id)
		return false
	}

	ok := true
	for _, ov := range targets {
		if !m.setCapture(ov, enabled) && id != nil {
			ok = false
		}
	}
	return ok
}

func (m *Manager) setCapture(ov *overlay, enabled bool) bool {
	ov.mu.Lock()
	defer ov.mu.Unlock()

	if ov.window.Closed() {
		return false
	}
	if ov.captureProtected == enabled {
		return true
	}

	err := ov.window.SetCaptureProtection(enabled)
	switch {
	case err == nil:
		ov.captureProtected = enabled
		m.logger.Debug("capture protection changed", "display_id", ov.display.ID, "enabled", enabled)
		return true
	case errors.Is(err, ErrCaptureUnsupported):
		m.logger.Warn("capture protection unavailable", "display_id", ov.display.ID)
		return true
	default:
		m.logger.Error("failed to change capture protection",
			"display_id", ov.display.ID,
			"enabled", enabled,
			"error", err,
		)
		return false
	}
}

// CaptureProtectionDefault returns the setting applied to new windows.
func (m *Manager) CaptureProtectionDefault() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opts.CaptureProtection
}

// CloseAll destroys every overlay window.
func (m *Manager) CloseAll() {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	m.mu.Lock()
	overlays := make([]*overlay, 0, len(m.windows))
	for _, id := range m.order {
		overlays = append(overlays, m.windows[id])
	}
	m.windows = make(map[model.DisplayID]*overlay)
	m.order = nil
	m.mu.Unlock()

	for _, ov := range overlays {
		ov.window.Close()
	}

	if len(overlays) > 0 {
		m.logger.Info("closed all overlays", "count", len(overlays))
	}
}

// DisplayIDs returns the ids of live overlays in registration order.
func (m *Manager) DisplayIDs() []model.DisplayID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Display returns the display a live overlay is bound to.
func (m *Manager) Display(id model.DisplayID) (model.Display, bool) {
	m.mu.RLock()
	ov, ok := m.windows[id]
	m.mu.RUnlock()
	if !ok {
		return model.Display{}, false
	}
	ov.mu.Lock()
	defer ov.mu.Unlock()
	return ov.display, true
}

// Overlays returns the state of every live overlay in registration order.
func (m *Manager) Overlays() []OverlayStatus {
	m.mu.RLock()
	overlays := make([]*overlay, 0, len(m.order))
	for _, id := range m.order {
		overlays = append(overlays, m.windows[id])
	}
	m.mu.RUnlock()

	out := make([]OverlayStatus, 0, len(overlays))
	for _, ov := range overlays {
		ov.mu.Lock()
		s := OverlayStatus{Display: ov.display, CaptureProtected: ov.captureProtected}
		if ov.currentLayout != nil {
			l := *ov.currentLayout
			s.Layout = &l
		}
		ov.mu.Unlock()
		out = append(out, s)
	}
	return out
}

// ActiveCount returns the number of live overlays.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.windows)
}
