package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// callTimeout bounds methods that enumerate displays or wait for the UI
// thread.
const callTimeout = 10 * time.Second

// Controller is what the control interface drives. The daemon's Service
// implements it.
type Controller interface {
	ListDisplays(ctx context.Context) ([]model.Display, error)
	PreviewDisplay(ctx context.Context, id model.DisplayID) (model.Display, bool, error)
	GetLayout(id model.DisplayID) model.Layout
	GetLayouts() map[model.DisplayID]model.Layout
	SetSticker(name string, id model.DisplayID, keepAspect bool) (model.Layout, error)
	SetStickerForDisplays(name string, ids []model.DisplayID) (map[model.DisplayID]model.Layout, error)
	UpdatePlacement(id model.DisplayID, x, y, w, h float64, lockAspect bool) (model.Layout, error)
	ClearSticker(name string) (int, error)
	DeleteSticker(name string) (int, error)
	RenameSticker(oldName, newName string) (stickers.Sticker, error)
	ImportSticker(path, name string) (stickers.Sticker, error)
	ListStickers() ([]stickers.Sticker, error)
	SetCaptureProtection(id *model.DisplayID, enabled bool) (bool, error)
	Reconcile(ctx context.Context) (display.ReconcileResult, error)
	Status() Status

	MusicPlay() (audio.NowPlaying, error)
	MusicPause() (audio.NowPlaying, error)
	MusicToggle() (audio.NowPlaying, error)
	MusicNext() (audio.NowPlaying, error)
	MusicPrevious() (audio.NowPlaying, error)
	NowPlaying() (audio.NowPlaying, error)
}

// ControlServer exports a Controller on the session bus.
type ControlServer struct {
	conn   *dbus.Conn
	logger *slog.Logger
	ctrl   Controller

	mu      sync.RWMutex
	running bool
}

// NewControlServer creates a new ControlServer.
func NewControlServer(ctrl Controller, logger *slog.Logger) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlServer{
		logger: logger,
		ctrl:   ctrl,
	}
}

// Start connects to the session bus and exports the control interface.
func (s *ControlServer) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, ServicePath, ServiceInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(ServicePath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ServiceInterface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ServicePath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(ServiceBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken (is stickerlayd already running?)", ServiceBusName)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("D-Bus control server started", "interface", ServiceInterface, "path", ServicePath)
	return nil
}

// Stop releases the bus name.
func (s *ControlServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(ServiceBusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// The session bus connection is shared; leave it open.
	}

	s.logger.Info("D-Bus control server stopped")
	return nil
}

// ListDisplays returns the current displays.
// D-Bus method: ListDisplays() -> a(sisiiiib)
func (s *ControlServer) ListDisplays() ([]DisplayInfo, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	displays, err := s.ctrl.ListDisplays(ctx)
	if err != nil {
		s.logger.Warn("ListDisplays failed", "error", err)
		return nil, ToError(err)
	}
	out := make([]DisplayInfo, len(displays))
	for i, d := range displays {
		out[i] = DisplayInfoFrom(d)
	}
	return out, nil
}

// PreviewDisplay returns the display a control surface should preview for
// id, and whether the primary display was substituted.
// D-Bus method: PreviewDisplay(s) -> (sisiiiib), b
func (s *ControlServer) PreviewDisplay(id string) (DisplayInfo, bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	d, fallback, err := s.ctrl.PreviewDisplay(ctx, model.DisplayID(id))
	if err != nil {
		return DisplayInfo{}, false, ToError(err)
	}
	return DisplayInfoFrom(d), fallback, nil
}

// GetLayout returns the layout for one display, or the default layout for
// an id the daemon has never seen.
// D-Bus method: GetLayout(s) -> (sdddds)
func (s *ControlServer) GetLayout(id string) (LayoutInfo, *dbus.Error) {
	return LayoutInfoFrom(s.ctrl.GetLayout(model.DisplayID(id))), nil
}

// GetLayouts returns every stored layout, including displays that are
// currently unplugged.
// D-Bus method: GetLayouts() -> a(sdddds)
func (s *ControlServer) GetLayouts() ([]LayoutInfo, *dbus.Error) {
	return LayoutInfos(s.ctrl.GetLayouts()), nil
}

// SetSticker places a sticker on one display.
// D-Bus method: SetSticker(ssb) -> (sdddds)
func (s *ControlServer) SetSticker(name, id string, keepAspect bool) (LayoutInfo, *dbus.Error) {
	s.logger.Debug("SetSticker called", "sticker", name, "display_id", id, "keep_aspect", keepAspect)
	l, err := s.ctrl.SetSticker(name, model.DisplayID(id), keepAspect)
	if err != nil {
		return LayoutInfo{}, ToError(err)
	}
	return LayoutInfoFrom(l), nil
}

// SetStickerForDisplays places a sticker on a set of displays and clears it
// everywhere else.
// D-Bus method: SetStickerForDisplays(sas) -> a(sdddds)
func (s *ControlServer) SetStickerForDisplays(name string, ids []string) ([]LayoutInfo, *dbus.Error) {
	s.logger.Debug("SetStickerForDisplays called", "sticker", name, "displays", ids)
	layouts, err := s.ctrl.SetStickerForDisplays(name, DisplayIDs(ids))
	if err != nil {
		return LayoutInfos(layouts), ToError(err)
	}
	return LayoutInfos(layouts), nil
}

// UpdatePlacement moves and resizes the sticker on a display and the rest of
// its selection.
// D-Bus method: UpdatePlacement(sddddb) -> (sdddds)
func (s *ControlServer) UpdatePlacement(id string, x, y, w, h float64, lockAspect bool) (LayoutInfo, *dbus.Error) {
	l, err := s.ctrl.UpdatePlacement(model.DisplayID(id), x, y, w, h, lockAspect)
	if err != nil {
		return LayoutInfoFrom(l), ToError(err)
	}
	return LayoutInfoFrom(l), nil
}

// ClearSticker retracts a sticker from every display.
// D-Bus method: ClearSticker(s) -> i
func (s *ControlServer) ClearSticker(name string) (int32, *dbus.Error) {
	n, err := s.ctrl.ClearSticker(name)
	return int32(n), ToError(err)
}

// DeleteSticker removes a sticker from the library and every display.
// D-Bus method: DeleteSticker(s) -> i
func (s *ControlServer) DeleteSticker(name string) (int32, *dbus.Error) {
	n, err := s.ctrl.DeleteSticker(name)
	return int32(n), ToError(err)
}

// RenameSticker renames a sticker, keeping it on the displays showing it.
// D-Bus method: RenameSticker(ss) -> (ssxxii)
func (s *ControlServer) RenameSticker(oldName, newName string) (StickerInfo, *dbus.Error) {
	st, err := s.ctrl.RenameSticker(oldName, newName)
	if err != nil {
		return StickerInfo{}, ToError(err)
	}
	return StickerInfoFrom(st), nil
}

// ImportSticker copies an image file into the library.
// D-Bus method: ImportSticker(ss) -> (ssxxii)
func (s *ControlServer) ImportSticker(path, name string) (StickerInfo, *dbus.Error) {
	st, err := s.ctrl.ImportSticker(path, name)
	if err != nil {
		return StickerInfo{}, ToError(err)
	}
	return StickerInfoFrom(st), nil
}

// ListStickers returns the sticker library.
// D-Bus method: ListStickers() -> a(ssxxii)
func (s *ControlServer) ListStickers() ([]StickerInfo, *dbus.Error) {
	list, err := s.ctrl.ListStickers()
	if err != nil {
		return nil, ToError(err)
	}
	out := make([]StickerInfo, len(list))
	for i, st := range list {
		out[i] = StickerInfoFrom(st)
	}
	return out, nil
}

// SetCaptureProtection toggles capture protection. An empty id applies to
// every overlay and to overlays created later.
// D-Bus method: SetCaptureProtection(sb) -> b
func (s *ControlServer) SetCaptureProtection(id string, enabled bool) (bool, *dbus.Error) {
	var target *model.DisplayID
	if id != "" {
		did := model.DisplayID(id)
		target = &did
	}
	ok, err := s.ctrl.SetCaptureProtection(target, enabled)
	return ok, ToError(err)
}

// Reconcile enumerates displays and brings the overlays in line.
// D-Bus method: Reconcile() -> (asasasa{ss})
func (s *ControlServer) Reconcile() (ReconcileInfo, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	res, err := s.ctrl.Reconcile(ctx)
	if err != nil {
		return ReconcileInfo{}, ToError(err)
	}
	return ReconcileInfoFrom(res), nil
}

// Status returns a daemon summary.
// D-Bus method: Status() -> (ssia(sssbix)bsassxis)
func (s *ControlServer) Status() (Status, *dbus.Error) {
	return s.ctrl.Status(), nil
}

// MusicPlay resumes or starts the playlist.
// D-Bus method: MusicPlay() -> (ssiibxx)
func (s *ControlServer) MusicPlay() (MusicInfo, *dbus.Error) {
	return musicReply(s.ctrl.MusicPlay())
}

// MusicPause pauses the playlist.
// D-Bus method: MusicPause() -> (ssiibxx)
func (s *ControlServer) MusicPause() (MusicInfo, *dbus.Error) {
	return musicReply(s.ctrl.MusicPause())
}

// MusicToggle flips between playing and paused.
// D-Bus method: MusicToggle() -> (ssiibxx)
func (s *ControlServer) MusicToggle() (MusicInfo, *dbus.Error) {
	return musicReply(s.ctrl.MusicToggle())
}

// MusicNext skips to the next track.
// D-Bus method: MusicNext() -> (ssiibxx)
func (s *ControlServer) MusicNext() (MusicInfo, *dbus.Error) {
	return musicReply(s.ctrl.MusicNext())
}

// MusicPrevious goes back one track.
// D-Bus method: MusicPrevious() -> (ssiibxx)
func (s *ControlServer) MusicPrevious() (MusicInfo, *dbus.Error) {
	return musicReply(s.ctrl.MusicPrevious())
}

// NowPlaying returns the current track and playback state.
// D-Bus method: NowPlaying() -> (ssiibxx)
func (s *ControlServer) NowPlaying() (MusicInfo, *dbus.Error) {
	return musicReply(s.ctrl.NowPlaying())
}

func musicReply(np audio.NowPlaying, err error) (MusicInfo, *dbus.Error) {
	if err != nil {
		return MusicInfo{}, ToError(err)
	}
	return MusicInfoFrom(np), nil
}

const (
	sigDisplay   = "(sisiiiib)"
	sigLayout    = "(sdddds)"
	sigSticker   = "(ssxxii)"
	sigReconcile = "(asasasa{ss})"
	sigStatus    = "(ssia(sssbix)bsassxis)"
	sigMusic     = "(ssiibxx)"
)

// controlMethods returns the D-Bus method introspection data.
func controlMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "ListDisplays",
			Args: []introspect.Arg{
				{Name: "displays", Type: "a" + sigDisplay, Direction: "out"},
			},
		},
		{
			Name: "PreviewDisplay",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "display", Type: sigDisplay, Direction: "out"},
				{Name: "fallback", Type: "b", Direction: "out"},
			},
		},
		{
			Name: "GetLayout",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "layout", Type: sigLayout, Direction: "out"},
			},
		},
		{
			Name: "GetLayouts",
			Args: []introspect.Arg{
				{Name: "layouts", Type: "a" + sigLayout, Direction: "out"},
			},
		},
		{
			Name: "SetSticker",
			Args: []introspect.Arg{
				{Name: "sticker", Type: "s", Direction: "in"},
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "keep_aspect", Type: "b", Direction: "in"},
				{Name: "layout", Type: sigLayout, Direction: "out"},
			},
		},
		{
			Name: "SetStickerForDisplays",
			Args: []introspect.Arg{
				{Name: "sticker", Type: "s", Direction: "in"},
				{Name: "ids", Type: "as", Direction: "in"},
				{Name: "layouts", Type: "a" + sigLayout, Direction: "out"},
			},
		},
		{
			Name: "UpdatePlacement",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "x", Type: "d", Direction: "in"},
				{Name: "y", Type: "d", Direction: "in"},
				{Name: "width", Type: "d", Direction: "in"},
				{Name: "height", Type: "d", Direction: "in"},
				{Name: "lock_aspect", Type: "b", Direction: "in"},
				{Name: "layout", Type: sigLayout, Direction: "out"},
			},
		},
		{
			Name: "ClearSticker",
			Args: []introspect.Arg{
				{Name: "sticker", Type: "s", Direction: "in"},
				{Name: "cleared", Type: "i", Direction: "out"},
			},
		},
		{
			Name: "DeleteSticker",
			Args: []introspect.Arg{
				{Name: "sticker", Type: "s", Direction: "in"},
				{Name: "cleared", Type: "i", Direction: "out"},
			},
		},
		{
			Name: "RenameSticker",
			Args: []introspect.Arg{
				{Name: "old_name", Type: "s", Direction: "in"},
				{Name: "new_name", Type: "s", Direction: "in"},
				{Name: "sticker", Type: sigSticker, Direction: "out"},
			},
		},
		{
			Name: "ImportSticker",
			Args: []introspect.Arg{
				{Name: "path", Type: "s", Direction: "in"},
				{Name: "name", Type: "s", Direction: "in"},
				{Name: "sticker", Type: sigSticker, Direction: "out"},
			},
		},
		{
			Name: "ListStickers",
			Args: []introspect.Arg{
				{Name: "stickers", Type: "a" + sigSticker, Direction: "out"},
			},
		},
		{
			Name: "SetCaptureProtection",
			Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "enabled", Type: "b", Direction: "in"},
				{Name: "applied", Type: "b", Direction: "out"},
			},
		},
		{
			Name: "Reconcile",
			Args: []introspect.Arg{
				{Name: "result", Type: sigReconcile, Direction: "out"},
			},
		},
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "status", Type: sigStatus, Direction: "out"},
			},
		},
		{
			Name: "MusicPlay",
			Args: []introspect.Arg{
				{Name: "music", Type: sigMusic, Direction: "out"},
			},
		},
		{
			Name: "MusicPause",
			Args: []introspect.Arg{
				{Name: "music", Type: sigMusic, Direction: "out"},
			},
		},
		{
			Name: "MusicToggle",
			Args: []introspect.Arg{
				{Name: "music", Type: sigMusic, Direction: "out"},
			},
		},
		{
			Name: "MusicNext",
			Args: []introspect.Arg{
				{Name: "music", Type: sigMusic, Direction: "out"},
			},
		},
		{
			Name: "MusicPrevious",
			Args: []introspect.Arg{
				{Name: "music", Type: sigMusic, Direction: "out"},
			},
		},
		{
			Name: "NowPlaying",
			Args: []introspect.Arg{
				{Name: "music", Type: sigMusic, Direction: "out"},
			},
		},
	}
}

// controlSignals returns the D-Bus signal introspection data.
func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "LayoutChanged",
			Args: []introspect.Arg{
				{Name: "layout", Type: sigLayout},
				{Name: "update_id", Type: "s"},
			},
		},
		{
			Name: "DisplaysChanged",
			Args: []introspect.Arg{
				{Name: "count", Type: "i"},
			},
		},
	}
}
