package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// ErrDaemonNotRunning means nothing owns the control bus name.
var ErrDaemonNotRunning = errors.New("stickerlayd is not running")

// LayoutSignal is a received LayoutChanged signal.
type LayoutSignal struct {
	Layout   model.Layout
	UpdateID string
}

// Client calls the control interface of a running daemon.
type Client struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
}

// NewClient opens a private session bus connection and checks that the
// daemon is running.
func NewClient(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, ServiceBusName).Store(&owned); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to query bus name: %w", err)
	}
	if !owned {
		_ = conn.Close()
		return nil, ErrDaemonNotRunning
	}

	return &Client{
		conn:   conn,
		obj:    conn.Object(ServiceBusName, ServicePath),
		logger: logger,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	c.logger.Debug("calling daemon", "method", method)
	return c.obj.CallWithContext(ctx, ServiceInterface+"."+method, 0, args...)
}

// ListDisplays returns the daemon's current displays.
func (c *Client) ListDisplays(ctx context.Context) ([]model.Display, error) {
	var infos []DisplayInfo
	if err := c.call(ctx, "ListDisplays").Store(&infos); err != nil {
		return nil, FromError(err)
	}
	out := make([]model.Display, len(infos))
	for i, info := range infos {
		out[i] = info.Model()
	}
	return out, nil
}

// PreviewDisplay returns the display to preview for id and whether the
// primary display was used instead.
func (c *Client) PreviewDisplay(ctx context.Context, id model.DisplayID) (model.Display, bool, error) {
	var info DisplayInfo
	var fallback bool
	if err := c.call(ctx, "PreviewDisplay", string(id)).Store(&info, &fallback); err != nil {
		return model.Display{}, false, FromError(err)
	}
	return info.Model(), fallback, nil
}

// GetLayout returns the layout for one display.
func (c *Client) GetLayout(ctx context.Context, id model.DisplayID) (model.Layout, error) {
	var info LayoutInfo
	if err := c.call(ctx, "GetLayout", string(id)).Store(&info); err != nil {
		return model.Layout{}, FromError(err)
	}
	return info.Model(), nil
}

// GetLayouts returns every stored layout.
func (c *Client) GetLayouts(ctx context.Context) (map[model.DisplayID]model.Layout, error) {
	var infos []LayoutInfo
	if err := c.call(ctx, "GetLayouts").Store(&infos); err != nil {
		return nil, FromError(err)
	}
	return LayoutMap(infos), nil
}

// SetSticker places a sticker on one display.
func (c *Client) SetSticker(ctx context.Context, name string, id model.DisplayID, keepAspect bool) (model.Layout, error) {
	var info LayoutInfo
	if err := c.call(ctx, "SetSticker", name, string(id), keepAspect).Store(&info); err != nil {
		return model.Layout{}, FromError(err)
	}
	return info.Model(), nil
}

// SetStickerForDisplays places a sticker on exactly ids.
func (c *Client) SetStickerForDisplays(ctx context.Context, name string, ids []model.DisplayID) (map[model.DisplayID]model.Layout, error) {
	var infos []LayoutInfo
	if err := c.call(ctx, "SetStickerForDisplays", name, idStrings(ids)).Store(&infos); err != nil {
		return nil, FromError(err)
	}
	return LayoutMap(infos), nil
}

// UpdatePlacement moves and resizes the sticker on id and its selection.
func (c *Client) UpdatePlacement(ctx context.Context, id model.DisplayID, x, y, w, h float64, lockAspect bool) (model.Layout, error) {
	var info LayoutInfo
	if err := c.call(ctx, "UpdatePlacement", string(id), x, y, w, h, lockAspect).Store(&info); err != nil {
		return model.Layout{}, FromError(err)
	}
	return info.Model(), nil
}

// ClearSticker retracts a sticker everywhere and returns how many displays
// were cleared.
func (c *Client) ClearSticker(ctx context.Context, name string) (int, error) {
	var n int32
	if err := c.call(ctx, "ClearSticker", name).Store(&n); err != nil {
		return 0, FromError(err)
	}
	return int(n), nil
}

// DeleteSticker deletes a sticker from the library and every display.
func (c *Client) DeleteSticker(ctx context.Context, name string) (int, error) {
	var n int32
	if err := c.call(ctx, "DeleteSticker", name).Store(&n); err != nil {
		return 0, FromError(err)
	}
	return int(n), nil
}

// RenameSticker renames a library sticker.
func (c *Client) RenameSticker(ctx context.Context, oldName, newName string) (stickers.Sticker, error) {
	var info StickerInfo
	if err := c.call(ctx, "RenameSticker", oldName, newName).Store(&info); err != nil {
		return stickers.Sticker{}, FromError(err)
	}
	return info.Model(), nil
}

// ImportSticker copies path into the library.
func (c *Client) ImportSticker(ctx context.Context, path, name string) (stickers.Sticker, error) {
	var info StickerInfo
	if err := c.call(ctx, "ImportSticker", path, name).Store(&info); err != nil {
		return stickers.Sticker{}, FromError(err)
	}
	return info.Model(), nil
}

// ListStickers returns the daemon's sticker library.
func (c *Client) ListStickers(ctx context.Context) ([]stickers.Sticker, error) {
	var infos []StickerInfo
	if err := c.call(ctx, "ListStickers").Store(&infos); err != nil {
		return nil, FromError(err)
	}
	out := make([]stickers.Sticker, len(infos))
	for i, info := range infos {
		out[i] = info.Model()
	}
	return out, nil
}

// SetCaptureProtection toggles capture protection on id, or on every
// overlay when id is nil.
func (c *Client) SetCaptureProtection(ctx context.Context, id *model.DisplayID, enabled bool) (bool, error) {
	target := ""
	if id != nil {
		target = string(*id)
	}
	var ok bool
	if err := c.call(ctx, "SetCaptureProtection", target, enabled).Store(&ok); err != nil {
		return false, FromError(err)
	}
	return ok, nil
}

// Reconcile asks the daemon to re-enumerate displays.
func (c *Client) Reconcile(ctx context.Context) (display.ReconcileResult, error) {
	var info ReconcileInfo
	if err := c.call(ctx, "Reconcile").Store(&info); err != nil {
		return display.ReconcileResult{}, FromError(err)
	}
	res := display.ReconcileResult{
		Created: DisplayIDs(info.Created),
		Removed: DisplayIDs(info.Removed),
		Moved:   DisplayIDs(info.Moved),
		Failed:  make(map[model.DisplayID]error, len(info.Failed)),
	}
	for id, msg := range info.Failed {
		res.Failed[model.DisplayID(id)] = errors.New(msg)
	}
	return res, nil
}

// Status returns the daemon summary.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := c.call(ctx, "Status").Store(&st); err != nil {
		return Status{}, FromError(err)
	}
	return st, nil
}

// Music runs one of the playlist methods (MusicPlay, MusicPause,
// MusicToggle, MusicNext, MusicPrevious or NowPlaying).
func (c *Client) Music(ctx context.Context, method string) (audio.NowPlaying, error) {
	var info MusicInfo
	if err := c.call(ctx, method).Store(&info); err != nil {
		return audio.NowPlaying{}, FromError(err)
	}
	return info.Model(), nil
}

// WatchLayouts subscribes to LayoutChanged signals until ctx is done.
func (c *Client) WatchLayouts(ctx context.Context) (<-chan LayoutSignal, error) {
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ServicePath),
		dbus.WithMatchInterface(ServiceInterface),
		dbus.WithMatchMember("LayoutChanged"),
	); err != nil {
		return nil, fmt.Errorf("failed to add match rule: %w", err)
	}

	raw := make(chan *dbus.Signal, 32)
	c.conn.Signal(raw)

	out := make(chan LayoutSignal, 32)
	go func() {
		defer close(out)
		defer c.conn.RemoveSignal(raw)

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-raw:
				if !ok {
					return
				}
				ls, ok := parseLayoutSignal(sig)
				if !ok {
					continue
				}
				select {
				case out <- ls:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// parseLayoutSignal decodes a LayoutChanged signal body.
func parseLayoutSignal(sig *dbus.Signal) (LayoutSignal, bool) {
	if sig == nil || sig.Name != ServiceInterface+".LayoutChanged" || len(sig.Body) < 2 {
		return LayoutSignal{}, false
	}
	var info LayoutInfo
	if err := dbus.Store(sig.Body[:1], &info); err != nil {
		return LayoutSignal{}, false
	}
	updateID, ok := sig.Body[1].(string)
	if !ok {
		return LayoutSignal{}, false
	}
	return LayoutSignal{Layout: info.Model(), UpdateID: updateID}, true
}
