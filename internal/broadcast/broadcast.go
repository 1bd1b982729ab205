// Package broadcast turns control-surface edits into layout writes and
// overlay deliveries for the right set of displays.
package broadcast

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/store"
)

// LayoutStore is the subset of store.Store the broadcaster writes through.
type LayoutStore interface {
	Get(id model.DisplayID) model.Layout
	Set(id model.DisplayID, l model.Layout) (model.Layout, error)
	All() map[model.DisplayID]model.Layout
	Bounds(id model.DisplayID) (model.Rect, bool)
}

// Overlays is the subset of display.Manager the broadcaster delivers to.
type Overlays interface {
	ApplyLayout(id model.DisplayID, l model.Layout) bool
	DisplayIDs() []model.DisplayID
}

// StateStore persists the shared state holding the active selection.
type StateStore interface {
	Load() (*store.SharedState, error)
	Save(state *store.SharedState) error
}

// Update describes one delivered layout. Every delivery made by a single
// operation shares the same ID.
type Update struct {
	ID        string
	DisplayID model.DisplayID
	Layout    model.Layout
	Delivered bool // False when the display had no live overlay
}

// UpdateFunc is called after each layout write.
type UpdateFunc func(Update)

// Broadcaster applies edits to the store and fans them out to overlays.
// Operations are serialized, so updates for one display keep call order.
type Broadcaster struct {
	mu        sync.Mutex
	layouts   LayoutStore
	overlays  Overlays
	state     StateStore
	logger    *slog.Logger
	selection *store.Selection
	onUpdate  UpdateFunc
}

// New creates a broadcaster. state may be nil, in which case the selection
// lives only in memory.
func New(layouts LayoutStore, overlays Overlays, state StateStore, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broadcaster{
		layouts:  layouts,
		overlays: overlays,
		state:    state,
		logger:   logger,
	}
	if state != nil {
		if s, err := state.Load(); err != nil {
			logger.Warn("failed to load shared state, starting without a selection", "error", err)
		} else if s.Selection != nil {
			b.selection = s.Selection
			logger.Debug("restored selection", "sticker", s.Selection.Sticker, "displays", len(s.Selection.Displays))
		}
	}
	return b
}

// OnUpdate sets the callback invoked after each layout write.
func (b *Broadcaster) OnUpdate(fn UpdateFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onUpdate = fn
}

// Selection returns the sticker and displays placement updates fan out to.
func (b *Broadcaster) Selection() *store.Selection {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selection == nil {
		return nil
	}
	cp := *b.selection
	cp.Displays = slices.Clone(b.selection.Displays)
	return &cp
}

// SetStickerForDisplay places sticker on one display. A valid hint
// re-derives the size so the image keeps its native aspect ratio.
func (b *Broadcaster) SetStickerForDisplay(sticker model.StickerRef, id model.DisplayID, hint *model.SizingHint) (model.Layout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	updateID := newUpdateID()
	l, err := b.setStickerLocked(updateID, sticker, id, hint)
	if err != nil {
		return l, err
	}

	// The display joins the selection for this sticker, or starts a new one.
	if b.selection != nil && b.selection.Sticker == sticker.Name {
		if !b.selection.Contains(id) {
			b.selection.Displays = b.orderByRegistration(append(b.selection.Displays, id))
		}
		b.saveSelectionLocked(updateID, b.selection.Sticker, b.selection.Displays)
	} else {
		b.saveSelectionLocked(updateID, sticker.Name, []model.DisplayID{id})
	}
	return l, nil
}

// SetStickerForDisplaySet places sticker on every display in ids and
// retracts it from every other display that currently shows it. The
// returned map holds the layout of every display that was written.
// Failures on one display do not stop the others.
func (b *Broadcaster) SetStickerForDisplaySet(sticker model.StickerRef, ids []model.DisplayID) (map[model.DisplayID]model.Layout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	updateID := newUpdateID()
	selected := b.orderByRegistration(ids)
	result := make(map[model.DisplayID]model.Layout, len(selected))
	var errs []error

	for _, id := range selected {
		l, err := b.setStickerLocked(updateID, sticker, id, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result[id] = l
	}

	cleared, err := b.retractLocked(updateID, sticker.Name, selected)
	if err != nil {
		errs = append(errs, err)
	}
	for id, l := range cleared {
		result[id] = l
	}

	b.saveSelectionLocked(updateID, sticker.Name, selected)

	b.logger.Info("set sticker for display set",
		"sticker", sticker.Name,
		"selected", len(selected),
		"cleared", len(cleared),
		"update_id", updateID,
	)
	return result, errors.Join(errs...)
}

// UpdatePlacement moves and resizes the sticker on id and on every other
// display in the current selection, each resolving the same fractions
// against its own bounds. Non-finite components keep their current value;
// the rest is clamped by the store.
func (b *Broadcaster) UpdatePlacement(id model.DisplayID, x, y, w, h float64) (model.Layout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updatePlacementLocked(newUpdateID(), id, x, y, w, h)
}

// UpdatePlacementLocked is UpdatePlacement with the height derived from the
// width so the sticker keeps its current on-screen aspect ratio on id.
func (b *Broadcaster) UpdatePlacementLocked(id model.DisplayID, x, y, w float64) (model.Layout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.layouts.Get(id)
	bounds, ok := b.layouts.Bounds(id)
	if !ok || bounds.Empty() {
		bounds = model.DefaultReference
	}
	aspect := cur.PixelAspect(bounds)
	h := w * float64(bounds.Width) / (aspect * float64(bounds.Height))
	return b.updatePlacementLocked(newUpdateID(), id, x, y, w, h)
}

func (b *Broadcaster) updatePlacementLocked(updateID string, id model.DisplayID, x, y, w, h float64) (model.Layout, error) {
	cur := b.layouts.Get(id)
	if !model.Finite(x, y, w, h) {
		b.logger.Debug("non-finite placement input, keeping current values",
			"display_id", id, "x", x, "y", y, "w", w, "h", h)
		x = finiteOr(x, cur.XFrac)
		y = finiteOr(y, cur.YFrac)
		w = finiteOr(w, cur.WidthFrac)
		h = finiteOr(h, cur.HeightFrac)
	}

	targets := []model.DisplayID{id}
	if b.selection.Contains(id) {
		targets = b.orderByRegistration(b.selection.Displays)
	}

	var result model.Layout
	var errs []error
	for _, t := range targets {
		next := b.layouts.Get(t).WithPlacement(x, y, w, h)
		stored, err := b.writeLocked(updateID, t, next)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if t == id {
			result = stored
		}
	}

	if result.DisplayID == "" {
		result = b.layouts.Get(id)
	}
	b.recordUpdateLocked(updateID)
	return result, errors.Join(errs...)
}

// ClearSticker retracts the named sticker from every display, for example
// after the sticker file was deleted.
func (b *Broadcaster) ClearSticker(name string) (map[model.DisplayID]model.Layout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	updateID := newUpdateID()
	cleared, err := b.retractLocked(updateID, name, nil)
	if b.selection != nil && b.selection.Sticker == name {
		b.saveSelectionLocked(updateID, "", nil)
	} else {
		b.recordUpdateLocked(updateID)
	}

	if len(cleared) > 0 {
		b.logger.Info("cleared sticker", "sticker", name, "displays", len(cleared), "update_id", updateID)
	}
	return cleared, err
}

// RenameSticker points every display showing from at the ref to, keeping
// placements unchanged.
func (b *Broadcaster) RenameSticker(from string, to model.StickerRef) (map[model.DisplayID]model.Layout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	updateID := newUpdateID()
	result := make(map[model.DisplayID]model.Layout)
	var errs []error

	for _, id := range b.holdersLocked(from) {
		stored, err := b.writeLocked(updateID, id, b.layouts.Get(id).WithSticker(&to))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result[id] = stored
	}

	if b.selection != nil && b.selection.Sticker == from {
		b.saveSelectionLocked(updateID, to.Name, b.selection.Displays)
	} else {
		b.recordUpdateLocked(updateID)
	}
	return result, errors.Join(errs...)
}

// Reapply delivers the stored layouts of ids, or of every live overlay when
// ids is empty, without writing the store. It returns how many were
// delivered.
func (b *Broadcaster) Reapply(ids ...model.DisplayID) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(ids) == 0 {
		ids = b.overlays.DisplayIDs()
	}
	updateID := newUpdateID()
	delivered := 0
	for _, id := range b.orderByRegistration(ids) {
		if b.deliverLocked(updateID, id, b.layouts.Get(id)) {
			delivered++
		}
	}
	return delivered
}

// setStickerLocked writes sticker into the layout of id and delivers it.
func (b *Broadcaster) setStickerLocked(updateID string, sticker model.StickerRef, id model.DisplayID, hint *model.SizingHint) (model.Layout, error) {
	next := b.layouts.Get(id).WithSticker(&sticker)
	if hint != nil && hint.Valid() {
		bounds, _ := b.layouts.Bounds(id)
		next = hint.Apply(next, bounds)
	}
	return b.writeLocked(updateID, id, next)
}

// retractLocked clears name from every display holding it that is not in
// keep, including displays that are currently unplugged.
func (b *Broadcaster) retractLocked(updateID, name string, keep []model.DisplayID) (map[model.DisplayID]model.Layout, error) {
	cleared := make(map[model.DisplayID]model.Layout)
	var errs []error

	for _, id := range b.holdersLocked(name) {
		if slices.Contains(keep, id) {
			continue
		}
		stored, err := b.writeLocked(updateID, id, b.layouts.Get(id).WithSticker(nil))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cleared[id] = stored
	}
	return cleared, errors.Join(errs...)
}

// holdersLocked returns every display whose layout shows name, live ones
// first in registration order.
func (b *Broadcaster) holdersLocked(name string) []model.DisplayID {
	if name == "" {
		return nil
	}
	var ids []model.DisplayID
	for id, l := range b.layouts.All() {
		if l.StickerName() == name {
			ids = append(ids, id)
		}
	}
	return b.orderByRegistration(ids)
}

// writeLocked persists l for id and delivers the stored result.
func (b *Broadcaster) writeLocked(updateID string, id model.DisplayID, l model.Layout) (model.Layout, error) {
	stored, err := b.layouts.Set(id, l)
	if err != nil {
		b.logger.Error("failed to store layout", "display_id", id, "error", err)
		return stored, fmt.Errorf("display %s: %w", id, err)
	}
	b.deliverLocked(updateID, id, stored)
	return stored, nil
}

func (b *Broadcaster) deliverLocked(updateID string, id model.DisplayID, l model.Layout) bool {
	ok := b.overlays.ApplyLayout(id, l)
	if !ok {
		b.logger.Debug("layout stored without a live overlay", "display_id", id, "update_id", updateID)
	}
	if b.onUpdate != nil {
		b.onUpdate(Update{ID: updateID, DisplayID: id, Layout: l, Delivered: ok})
	}
	return ok
}

// orderByRegistration sorts ids by overlay registration order, dropping
// duplicates. Ids without a live overlay keep their relative order at the
// end.
func (b *Broadcaster) orderByRegistration(ids []model.DisplayID) []model.DisplayID {
	want := make(map[model.DisplayID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	out := make([]model.DisplayID, 0, len(want))
	for _, id := range b.overlays.DisplayIDs() {
		if want[id] {
			out = append(out, id)
			delete(want, id)
		}
	}
	for _, id := range ids {
		if want[id] {
			out = append(out, id)
			delete(want, id)
		}
	}
	return out
}

// saveSelectionLocked replaces the selection and persists it with the
// update id.
func (b *Broadcaster) saveSelectionLocked(updateID, sticker string, ids []model.DisplayID) {
	if sticker == "" || len(ids) == 0 {
		b.selection = nil
	} else {
		b.selection = &store.Selection{Sticker: sticker, Displays: slices.Clone(ids), UpdatedAt: time.Now().Unix()}
	}
	b.persistStateLocked(func(s *store.SharedState) {
		s.SetSelection(sticker, ids)
		s.RecordUpdate(updateID)
	})
}

func (b *Broadcaster) recordUpdateLocked(updateID string) {
	b.persistStateLocked(func(s *store.SharedState) {
		s.RecordUpdate(updateID)
	})
}

func (b *Broadcaster) persistStateLocked(mutate func(*store.SharedState)) {
	if b.state == nil {
		return
	}
	s, err := b.state.Load()
	if err != nil {
		b.logger.Warn("failed to load shared state", "error", err)
		return
	}
	mutate(s)
	if err := b.state.Save(s); err != nil {
		b.logger.Warn("failed to save shared state", "error", err)
	}
}

func finiteOr(v, fallback float64) float64 {
	if model.Finite(v) {
		return v
	}
	return fallback
}

func newUpdateID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
