// Package store provides the layout store for overlay placements.
package store

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// ChangeType indicates the type of store change.
type ChangeType int

const (
	// ChangeTypeSet indicates a layout was written through Set.
	ChangeTypeSet ChangeType = iota
	// ChangeTypeHydrate indicates a layout was reloaded from persistence.
	ChangeTypeHydrate
)

// ChangeEvent signals a layout change.
type ChangeEvent struct {
	Type      ChangeType
	DisplayID model.DisplayID
	Layout    model.Layout
	Source    string
}

// SeedPolicy selects how default layouts are derived for new displays.
type SeedPolicy string

const (
	// SeedPixels converts the seed rectangle against each display's own
	// bounds, so every display starts at the same pixel position.
	SeedPixels SeedPolicy = "pixels"
	// SeedFraction converts the seed rectangle against the reference
	// resolution, so every display starts at the same fractions.
	SeedFraction SeedPolicy = "fraction"
)

// Options controls defaults and clamping.
type Options struct {
	Reference        model.Rect // Resolution used when bounds are unknown
	Seed             model.Rect // Pixel-equivalent default placement
	MinStickerPixels int        // Minimum on-screen sticker edge
	SeedPolicy       SeedPolicy
}

// DefaultOptions returns the built-in store options.
func DefaultOptions() Options {
	return Options{
		Reference:        model.DefaultReference,
		Seed:             model.DefaultSeed,
		MinStickerPixels: 24,
		SeedPolicy:       SeedPixels,
	}
}

// Store maps display ids to layouts with thread-safe operations.
type Store struct {
	mu          sync.RWMutex
	layouts     map[model.DisplayID]model.Layout
	bounds      map[model.DisplayID]model.Rect // Last known bounds per display
	persistence Persistence
	opts        Options
	logger      *slog.Logger

	subscribers []chan ChangeEvent
	closed      bool
}

// NewStore creates a new Store.
// If persistence is not nil, every Set is persisted before returning.
func NewStore(persistence Persistence, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		layouts:     make(map[model.DisplayID]model.Layout),
		bounds:      make(map[model.DisplayID]model.Rect),
		persistence: persistence,
		opts:        normalizeOptions(opts),
		logger:      logger,
	}
}

func normalizeOptions(opts Options) Options {
	def := DefaultOptions()
	if opts.Reference.Empty() {
		opts.Reference = def.Reference
	}
	if opts.Seed.Empty() {
		opts.Seed = def.Seed
	}
	if opts.MinStickerPixels < 0 {
		opts.MinStickerPixels = 0
	}
	if opts.SeedPolicy != SeedFraction {
		opts.SeedPolicy = SeedPixels
	}
	return opts
}

// SetOptions replaces the seeding and clamping options. Stored layouts are
// left untouched until their next Set.
func (s *Store) SetOptions(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = normalizeOptions(opts)
}

// Options returns the current options.
func (s *Store) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Register records a display's bounds. A display seen for the first time
// gets a default layout in memory; an existing layout, including one
// orphaned by an earlier unplug, is kept as is.
func (s *Store) Register(d model.Display) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bounds[d.ID] = d.Bounds
	if _, ok := s.layouts[d.ID]; ok {
		return
	}
	s.layouts[d.ID] = s.defaultLocked(d.ID)
	s.logger.Debug("seeded default layout", "display_id", d.ID, "policy", string(s.opts.SeedPolicy))
}

// Get returns the layout for id, or a fresh default if none exists.
func (s *Store) Get(id model.DisplayID) model.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.layouts[id]; ok {
		return l.WithSticker(l.Sticker)
	}
	return s.defaultLocked(id)
}

// Has reports whether a layout for id is held in memory.
func (s *Store) Has(id model.DisplayID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.layouts[id]
	return ok
}

// Set clamps l, replaces the stored layout for id and persists the whole
// snapshot before returning. The stored layout is returned.
func (s *Store) Set(id model.DisplayID, l model.Layout) (model.Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Layout{}, ErrStoreClosed
	}

	l.DisplayID = id
	minW, minH := s.minFractionsLocked(id)
	l = model.Clamp(l, minW, minH).WithSticker(l.Sticker)

	next := maps.Clone(s.layouts)
	next[id] = l
	if err := s.persistLocked(next); err != nil {
		return l, err
	}
	s.layouts[id] = l

	s.notifyChange(ChangeEvent{Type: ChangeTypeSet, DisplayID: id, Layout: l})
	return l.WithSticker(l.Sticker), nil
}

// All returns a copy of every stored layout, including orphans.
func (s *Store) All() map[model.DisplayID]model.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[model.DisplayID]model.Layout, len(s.layouts))
	for id, l := range s.layouts {
		result[id] = l.WithSticker(l.Sticker)
	}
	return result
}

// Bounds returns the last known bounds for id.
func (s *Store) Bounds(id model.DisplayID) (model.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bounds[id]
	return b, ok
}

// Count returns the number of stored layouts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layouts)
}

// Hydrate loads the persisted snapshot. Layouts that differ from the ones
// in memory replace them and are announced to subscribers.
func (s *Store) Hydrate() error {
	if s.persistence == nil {
		return nil
	}

	loaded, err := s.persistence.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}

	var changed []model.Layout
	for id, l := range loaded {
		l.DisplayID = id
		minW, minH := s.minFractionsLocked(id)
		l = model.Clamp(l, minW, minH)
		if cur, ok := s.layouts[id]; ok && cur.Equal(l) {
			continue
		}
		s.layouts[id] = l
		changed = append(changed, l)
	}

	for _, l := range changed {
		s.notifyChange(ChangeEvent{
			Type:      ChangeTypeHydrate,
			DisplayID: l.DisplayID,
			Layout:    l.WithSticker(l.Sticker),
			Source:    "persistence",
		})
	}
	s.mu.Unlock()

	if len(changed) > 0 {
		s.logger.Debug("hydrated layouts", "changed", len(changed), "total", len(loaded))
	}
	return nil
}

// Subscribe returns a channel that receives change events.
func (s *Store) Subscribe() <-chan ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan ChangeEvent, 32)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription.
func (s *Store) Unsubscribe(ch <-chan ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close releases resources and closes all subscriber channels.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil

	if s.persistence != nil {
		return s.persistence.Close()
	}
	return nil
}

// defaultLocked seeds a layout for id. Caller must hold the lock.
func (s *Store) defaultLocked(id model.DisplayID) model.Layout {
	bounds := s.opts.Reference
	if s.opts.SeedPolicy == SeedPixels {
		if b, ok := s.bounds[id]; ok && !b.Empty() {
			bounds = b
		}
	}
	return model.DefaultLayout(id, bounds, s.opts.Seed)
}

// minFractionsLocked converts the minimum sticker edge into fractions of the
// display. Caller must hold the lock.
func (s *Store) minFractionsLocked(id model.DisplayID) (float64, float64) {
	if s.opts.MinStickerPixels <= 0 {
		return 0, 0
	}
	b, ok := s.bounds[id]
	if !ok || b.Empty() {
		b = s.opts.Reference
	}
	px := float64(s.opts.MinStickerPixels)
	return px / float64(b.Width), px / float64(b.Height)
}

// persistLocked saves snapshot, which must not alias s.layouts. Caller must
// hold the lock.
func (s *Store) persistLocked(snapshot map[model.DisplayID]model.Layout) error {
	if s.persistence == nil {
		return nil
	}
	if err := s.persistence.Save(snapshot); err != nil {
		return fmt.Errorf("persist layouts: %w", err)
	}
	return nil
}

// notifyChange sends a change event to all subscribers (non-blocking).
func (s *Store) notifyChange(event ChangeEvent) {
	for _, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// Errors
var (
	ErrStoreClosed = storeError("store is closed")
)

type storeError string

func (e storeError) Error() string {
	return string(e)
}
