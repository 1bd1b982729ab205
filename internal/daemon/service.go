package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/broadcast"
	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
	"github.com/jmylchreest/stickerlay/internal/store"
)

// Deps are the platform pieces a Service is assembled from.
type Deps struct {
	Source      display.MonitorSource
	Factory     display.WindowFactory
	Persistence store.Persistence    // nil keeps layouts in memory only
	State       broadcast.StateStore // nil keeps the selection in memory only
	Library     *stickers.Library
	Music       *audio.Manager // nil disables the music methods

	// RunOnUI schedules fn on the toolkit thread. Window creation and
	// destruction go through it. nil runs fn inline.
	RunOnUI func(fn func())

	Backend string
	Version string
	Logger  *slog.Logger
}

// Service wires the display registry, layout store, overlay manager,
// broadcaster and sticker library together. It implements dbus.Controller.
type Service struct {
	registry    *display.Registry
	store       *store.Store
	manager     *display.Manager
	broadcaster *broadcast.Broadcaster
	library     *stickers.Library
	music       *audio.Manager
	state       broadcast.StateStore
	tracker     *OverlayStateTracker
	notifier    *InternalNotifier
	reconciler  *Reconciler
	logger      *slog.Logger
	runOnUI     func(fn func())
	backend     string
	version     string

	reconcileMu sync.Mutex // One reconcile pass at a time
	stickerMu   sync.Mutex // Library edits and the layout updates they imply

	mu                sync.RWMutex
	cfg               *config.DaemonConfig
	displays          []model.Display // Last successful enumeration
	lastUpdateID      string
	lastUpdateAt      time.Time
	onDisplaysChanged func(count int)
	onLayoutChanged   func(broadcast.Update)

	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

var errServiceClosed = errors.New("service closed")

// NewService assembles a Service from cfg and deps.
func NewService(cfg *config.DaemonConfig, deps Deps) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	if deps.Source == nil || deps.Factory == nil {
		return nil, errors.New("monitor source and window factory are required")
	}
	if deps.Library == nil {
		return nil, errors.New("sticker library is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := WindowOptions(cfg)
	opts.CaptureProtection = captureDefault(cfg, deps.State)

	layouts := store.NewStore(deps.Persistence, StoreOptions(cfg), logger.With("component", "store"))
	manager := display.NewManager(deps.Factory, deps.Library, opts, logger.With("component", "overlays"))

	s := &Service{
		registry:    display.NewRegistry(deps.Source, logger.With("component", "registry")),
		store:       layouts,
		manager:     manager,
		broadcaster: broadcast.New(layouts, manager, deps.State, logger.With("component", "broadcast")),
		library:     deps.Library,
		music:       deps.Music,
		state:       deps.State,
		tracker:     NewOverlayStateTracker(),
		notifier:    NewInternalNotifier(logger.With("component", "notifier")),
		logger:      logger,
		runOnUI:     deps.RunOnUI,
		backend:     deps.Backend,
		version:     deps.Version,
		cfg:         cfg,
		closing:     make(chan struct{}),
	}
	s.notifier.SetEnabled(cfg.Notify.Enabled)
	s.notifier.SetMinInterval(cfg.Notify.RateLimit.Duration())
	s.broadcaster.OnUpdate(s.handleUpdate)
	s.reconciler = NewReconciler(func(ctx context.Context) error {
		_, err := s.Reconcile(ctx)
		return err
	}, cfg.Reconcile.Interval.Duration(), logger.With("component", "reconciler"))

	return s, nil
}

// Notifier returns the internal notifier so callers can attach a handler.
func (s *Service) Notifier() *InternalNotifier {
	return s.notifier
}

// Store returns the layout store.
func (s *Service) Store() *store.Store {
	return s.store
}

// OnDisplaysChanged sets the callback invoked after a reconcile pass that
// created, removed or moved an overlay.
func (s *Service) OnDisplaysChanged(fn func(count int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisplaysChanged = fn
}

// OnLayoutChanged sets the callback invoked for every layout written or
// reapplied.
func (s *Service) OnLayoutChanged(fn func(broadcast.Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLayoutChanged = fn
}

// Start loads persisted layouts, runs the first reconcile pass and starts
// periodic reconciliation. It must not be called from the UI thread when
// RunOnUI is set. An enumeration failure here is fatal.
func (s *Service) Start(ctx context.Context) error {
	if err := s.store.Hydrate(); err != nil {
		if !errors.Is(err, store.ErrCorruptSnapshot) {
			return fmt.Errorf("load layouts: %w", err)
		}
		s.logger.Warn("layout file was corrupt, starting with defaults", "error", err)
	}

	events := s.store.Subscribe()
	s.wg.Add(1)
	go s.forwardStoreEvents(events)

	if _, err := s.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}

	s.reconciler.Start(ctx)
	s.logger.Info("service started", "displays", s.manager.ActiveCount(), "layouts", s.store.Count())
	return nil
}

// RequestReconcile schedules a reconcile pass, for example after the
// platform reports a monitor change.
func (s *Service) RequestReconcile() {
	s.reconciler.ReconcileNow()
}

// WatchStickers applies library changes made outside the daemon until the
// watcher is stopped.
func (s *Service) WatchStickers(w *stickers.Watcher) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range w.Events() {
			s.HandleStickerEvent(ev)
		}
	}()
}

// ApplyConfig applies a reloaded config without restarting overlays.
func (s *Service) ApplyConfig(cfg *config.DaemonConfig) {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	s.store.SetOptions(StoreOptions(cfg))
	s.notifier.SetEnabled(cfg.Notify.Enabled)
	s.notifier.SetMinInterval(cfg.Notify.RateLimit.Duration())
	s.reconciler.SetInterval(cfg.Reconcile.Interval.Duration())

	if prev == nil || prev.Overlay.CaptureProtection != cfg.Overlay.CaptureProtection {
		s.manager.SetCaptureProtection(nil, cfg.Overlay.CaptureProtection)
		s.logger.Info("capture protection default changed by config", "enabled", cfg.Overlay.CaptureProtection)
	}
	if s.music != nil && (prev == nil || prev.Music != cfg.Music) {
		s.music.UpdateConfig(cfg)
	}
	if prev != nil && (prev.Overlay.Backend != cfg.Overlay.Backend || prev.Overlay.Namespace != cfg.Overlay.Namespace) {
		s.logger.Warn("overlay backend and namespace changes take effect after restart")
	}
}

// Reconcile enumerates displays, registers them with the store and brings
// the overlay windows in line. Newly created overlays receive their stored
// layout.
func (s *Service) Reconcile(ctx context.Context) (display.ReconcileResult, error) {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	displays, err := s.registry.ListDisplays(ctx)
	if err != nil {
		s.notifier.NotifyEnumerationFailed(err)
		return display.ReconcileResult{}, err
	}

	for _, d := range displays {
		s.store.Register(d)
	}

	var result display.ReconcileResult
	if err := s.onUI(ctx, func() {
		result = s.manager.Reconcile(displays)
	}); err != nil {
		return display.ReconcileResult{}, err
	}

	s.tracker.Apply(result, s.manager.DisplayIDs())
	for id, ferr := range result.Failed {
		s.notifier.NotifyWindowCreationFailed(id, ferr)
	}
	for _, id := range result.Created {
		s.notifier.WindowRecovered(id)
	}
	if len(result.Created) > 0 {
		s.broadcaster.Reapply(result.Created...)
	}

	s.mu.Lock()
	s.displays = displays
	onChanged := s.onDisplaysChanged
	s.mu.Unlock()

	if result.Changed() {
		s.logger.Info("overlays reconciled",
			"created", len(result.Created),
			"removed", len(result.Removed),
			"moved", len(result.Moved),
			"failed", len(result.Failed),
		)
		if onChanged != nil {
			onChanged(len(displays))
		}
	}
	return result, nil
}

// ListDisplays enumerates the current displays.
func (s *Service) ListDisplays(ctx context.Context) ([]model.Display, error) {
	return s.registry.ListDisplays(ctx)
}

// PreviewDisplay returns the display to preview for id.
func (s *Service) PreviewDisplay(ctx context.Context, id model.DisplayID) (model.Display, bool, error) {
	return s.registry.PreviewDisplay(ctx, id)
}

// GetLayout returns the layout for id. An id never seen gets the default
// layout, which is not stored.
func (s *Service) GetLayout(id model.DisplayID) model.Layout {
	return s.store.Get(id)
}

// GetLayouts returns every stored layout.
func (s *Service) GetLayouts() map[model.DisplayID]model.Layout {
	return s.store.All()
}

// SetSticker places the named library sticker on id. keepAspect sizes the
// sticker to the image's native proportions.
func (s *Service) SetSticker(name string, id model.DisplayID, keepAspect bool) (model.Layout, error) {
	if err := s.checkKnown(id); err != nil {
		return model.Layout{}, err
	}

	s.stickerMu.Lock()
	defer s.stickerMu.Unlock()

	st, err := s.library.Get(name)
	if err != nil {
		return model.Layout{}, err
	}
	var hint *model.SizingHint
	if keepAspect && st.AspectRatio() > 0 {
		hint = &model.SizingHint{AspectRatio: st.AspectRatio()}
	}

	l, err := s.broadcaster.SetStickerForDisplay(st.Ref(), id, hint)
	s.reportWrite(err)
	return l, err
}

// SetStickerForDisplays places the named sticker on exactly ids.
func (s *Service) SetStickerForDisplays(name string, ids []model.DisplayID) (map[model.DisplayID]model.Layout, error) {
	for _, id := range ids {
		if err := s.checkKnown(id); err != nil {
			return nil, err
		}
	}

	s.stickerMu.Lock()
	defer s.stickerMu.Unlock()

	ref, err := s.library.Resolve(name)
	if err != nil {
		return nil, err
	}

	layouts, err := s.broadcaster.SetStickerForDisplaySet(ref, ids)
	s.reportWrite(err)
	return layouts, err
}

// UpdatePlacement moves and resizes the sticker on id and its selection.
// With lockAspect the height follows the width.
func (s *Service) UpdatePlacement(id model.DisplayID, x, y, w, h float64, lockAspect bool) (model.Layout, error) {
	if err := s.checkKnown(id); err != nil {
		return model.Layout{}, err
	}

	var l model.Layout
	var err error
	if lockAspect {
		l, err = s.broadcaster.UpdatePlacementLocked(id, x, y, w)
	} else {
		l, err = s.broadcaster.UpdatePlacement(id, x, y, w, h)
	}
	s.reportWrite(err)
	return l, err
}

// ClearSticker retracts name from every display.
func (s *Service) ClearSticker(name string) (int, error) {
	s.stickerMu.Lock()
	defer s.stickerMu.Unlock()

	cleared, err := s.broadcaster.ClearSticker(name)
	s.reportWrite(err)
	return len(cleared), err
}

// DeleteSticker removes name from the library and from every display.
func (s *Service) DeleteSticker(name string) (int, error) {
	s.stickerMu.Lock()
	defer s.stickerMu.Unlock()

	if err := s.library.Delete(name); err != nil {
		return 0, err
	}
	cleared, err := s.broadcaster.ClearSticker(name)
	s.reportWrite(err)
	return len(cleared), err
}

// RenameSticker renames a library sticker and repoints displays showing it.
func (s *Service) RenameSticker(oldName, newName string) (stickers.Sticker, error) {
	s.stickerMu.Lock()
	defer s.stickerMu.Unlock()

	st, err := s.library.Rename(oldName, newName)
	if err != nil {
		return stickers.Sticker{}, err
	}
	_, err = s.broadcaster.RenameSticker(oldName, st.Ref())
	s.reportWrite(err)
	return st, err
}

// ImportSticker copies an image into the library.
func (s *Service) ImportSticker(path, name string) (stickers.Sticker, error) {
	s.stickerMu.Lock()
	defer s.stickerMu.Unlock()
	return s.library.Import(path, name)
}

// ListStickers returns the library contents.
func (s *Service) ListStickers() ([]stickers.Sticker, error) {
	return s.library.List()
}

// HandleStickerEvent applies a library change made outside the daemon.
func (s *Service) HandleStickerEvent(ev stickers.Event) {
	s.stickerMu.Lock()
	defer s.stickerMu.Unlock()

	switch ev.Type {
	case stickers.EventRemoved:
		if _, err := s.library.Get(ev.Name); err == nil {
			// Replaced in place by an editor writing a new file.
			return
		}
		cleared, err := s.broadcaster.ClearSticker(ev.Name)
		s.reportWrite(err)
		if len(cleared) > 0 {
			s.logger.Info("sticker deleted on disk, retracted", "sticker", ev.Name, "displays", len(cleared))
		}
	case stickers.EventChanged:
		var holders []model.DisplayID
		for id, l := range s.store.All() {
			if l.StickerName() == ev.Name {
				holders = append(holders, id)
			}
		}
		refreshed := 0
		for _, id := range holders {
			if s.manager.Refresh(id) {
				refreshed++
			}
		}
		if refreshed > 0 {
			s.logger.Debug("sticker changed on disk, redrawn", "sticker", ev.Name, "displays", refreshed)
		}
	}
}

// SetCaptureProtection toggles capture protection on id, or on every
// overlay and the default for new ones when id is nil. It returns false when
// id has no live overlay.
func (s *Service) SetCaptureProtection(id *model.DisplayID, enabled bool) (bool, error) {
	ok := s.manager.SetCaptureProtection(id, enabled)
	if !ok {
		return false, nil
	}
	if s.state == nil {
		return true, nil
	}

	st, err := s.state.Load()
	if err != nil {
		return true, fmt.Errorf("load shared state: %w", err)
	}
	st.SetCaptureProtection(enabled, id, "dbus")
	if err := s.state.Save(st); err != nil {
		return true, fmt.Errorf("save shared state: %w", err)
	}
	return true, nil
}

// Status summarises the daemon for the status command.
func (s *Service) Status() dbus.Status {
	s.mu.RLock()
	displays := len(s.displays)
	lastID, lastAt := s.lastUpdateID, s.lastUpdateAt
	s.mu.RUnlock()

	capture := make(map[model.DisplayID]bool)
	for _, ov := range s.manager.Overlays() {
		capture[ov.Display.ID] = ov.CaptureProtected
	}

	st := dbus.Status{
		Version:           s.version,
		Backend:           s.backend,
		Displays:          int32(displays),
		CaptureProtection: s.manager.CaptureProtectionDefault(),
		Layouts:           int32(s.store.Count()),
		StickerDir:        s.library.Dir(),
		LastUpdateID:      lastID,
	}
	if !lastAt.IsZero() {
		st.LastUpdateAt = lastAt.Unix()
	}

	for _, ov := range s.tracker.All() {
		st.Overlays = append(st.Overlays, dbus.OverlayInfo{
			DisplayID:        string(ov.DisplayID),
			State:            ov.Status.String(),
			Reason:           ov.Reason,
			CaptureProtected: capture[ov.DisplayID],
			Attempts:         int32(ov.Attempts),
			UpdatedAt:        ov.UpdatedAt.Unix(),
		})
	}

	if sel := s.broadcaster.Selection(); sel != nil {
		st.SelectionSticker = sel.Sticker
		for _, id := range sel.Displays {
			st.SelectionDisplays = append(st.SelectionDisplays, string(id))
		}
	}
	return st
}

// MusicPlay resumes or starts the playlist.
func (s *Service) MusicPlay() (audio.NowPlaying, error) {
	return s.musicCall(func(m *audio.Manager) error { return m.Play() })
}

// MusicPause pauses the playlist.
func (s *Service) MusicPause() (audio.NowPlaying, error) {
	return s.musicCall(func(m *audio.Manager) error {
		m.Pause()
		return nil
	})
}

// MusicToggle flips between playing and paused.
func (s *Service) MusicToggle() (audio.NowPlaying, error) {
	return s.musicCall(func(m *audio.Manager) error {
		_, err := m.Toggle()
		return err
	})
}

// MusicNext skips to the next track.
func (s *Service) MusicNext() (audio.NowPlaying, error) {
	return s.musicCall(func(m *audio.Manager) error { return m.Next() })
}

// MusicPrevious goes back one track.
func (s *Service) MusicPrevious() (audio.NowPlaying, error) {
	return s.musicCall(func(m *audio.Manager) error { return m.Previous() })
}

// NowPlaying returns the playlist state.
func (s *Service) NowPlaying() (audio.NowPlaying, error) {
	return s.musicCall(func(*audio.Manager) error { return nil })
}

func (s *Service) musicCall(fn func(*audio.Manager) error) (audio.NowPlaying, error) {
	if s.music == nil {
		return audio.NowPlaying{}, audio.ErrDisabled
	}
	if err := fn(s.music); err != nil {
		return s.music.NowPlaying(), err
	}
	return s.music.NowPlaying(), nil
}

// Close stops reconciliation, destroys every overlay and closes the store.
// When RunOnUI is set it must be called from the UI thread.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		s.reconciler.Stop()
		s.manager.CloseAll()
		s.tracker.MarkRemoved()
		err = s.store.Close()
		s.wg.Wait()
		s.logger.Info("service stopped")
	})
	return err
}

// checkKnown rejects ids that were never registered and have no overlay.
func (s *Service) checkKnown(id model.DisplayID) error {
	if s.store.Has(id) {
		return nil
	}
	if _, ok := s.manager.Display(id); ok {
		return nil
	}
	return fmt.Errorf("%w: %s", display.ErrUnknownDisplay, id)
}

// forwardStoreEvents renders layouts reloaded from disk.
func (s *Service) forwardStoreEvents(events <-chan store.ChangeEvent) {
	defer s.wg.Done()
	for ev := range events {
		if ev.Type != store.ChangeTypeHydrate {
			continue
		}
		s.logger.Debug("layout changed on disk", "display_id", ev.DisplayID)
		s.manager.ApplyLayout(ev.DisplayID, ev.Layout)
	}
}

// handleUpdate records and forwards broadcaster deliveries.
func (s *Service) handleUpdate(u broadcast.Update) {
	s.mu.Lock()
	s.lastUpdateID = u.ID
	s.lastUpdateAt = time.Now()
	fn := s.onLayoutChanged
	s.mu.Unlock()

	if fn != nil {
		fn(u)
	}
}

// reportWrite raises a desktop notification for failed layout writes.
func (s *Service) reportWrite(err error) {
	if err != nil {
		s.notifier.NotifyPersistenceError(err)
	}
}

// onUI runs fn on the UI thread and waits for it. It gives up when ctx is
// done or the service is closing; fn is then skipped if it has not started.
func (s *Service) onUI(ctx context.Context, fn func()) error {
	if s.runOnUI == nil {
		fn()
		return nil
	}
	done := make(chan struct{})
	s.runOnUI(func() {
		defer close(done)
		select {
		case <-s.closing:
			return
		default:
		}
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closing:
		return errServiceClosed
	}
}
