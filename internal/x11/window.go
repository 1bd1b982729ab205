package x11

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	// Sticker formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xgraphics"

	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
)

// Factory creates override-redirect overlay windows.
type Factory struct {
	conn   *Connection
	logger *slog.Logger
}

// NewFactory creates a window factory on conn.
func NewFactory(conn *Connection, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{conn: conn, logger: logger}
}

// CreateWindow creates an unmapped overlay for d. It is mapped by the first
// frame with a sticker.
func (f *Factory) CreateWindow(d model.Display, opts display.WindowOptions) (display.Window, error) {
	xu := f.conn.XUtil
	conn := xu.Conn()
	screen := xu.Screen()

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		return nil, err
	}

	// Value list order follows the bit positions of the mask.
	err = xproto.CreateWindowChecked(
		conn,
		screen.RootDepth,
		wid,
		f.conn.Root,
		int16(d.Bounds.X), int16(d.Bounds.Y),
		1, 1,
		0,
		xproto.WindowClassInputOutput,
		screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{0, 1, xproto.EventMaskStructureNotify},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("create override-redirect window: %w", err)
	}

	// An empty input region makes the window click-through.
	err = shape.RectanglesChecked(conn, shape.SoSet, shape.SkInput, xproto.ClipOrderingUnsorted,
		wid, 0, 0, nil).Check()
	if err != nil {
		xproto.DestroyWindow(conn, wid)
		return nil, fmt.Errorf("clear input region: %w", err)
	}

	w := &Window{
		id:          d.ID,
		conn:        f.conn,
		wid:         wid,
		bounds:      d.Bounds,
		alwaysOnTop: opts.AlwaysOnTop,
		logger:      f.logger.With("display_id", d.ID),
	}

	xevent.DestroyNotifyFun(func(_ *xgbutil.XUtil, _ xevent.DestroyNotifyEvent) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if !w.closed {
			w.logger.Warn("overlay window destroyed externally")
			w.closed = true
			w.releaseLocked()
		}
	}).Connect(xu, wid)

	w.logger.Debug("overlay window created", "window", wid, "bounds", d.Bounds.String())
	return w, nil
}

// Window is an override-redirect window sized and shaped to the sticker.
// X requests are safe from any goroutine, so calls draw synchronously.
type Window struct {
	id          model.DisplayID
	conn        *Connection
	wid         xproto.Window
	alwaysOnTop bool
	logger      *slog.Logger

	mu     sync.Mutex
	bounds model.Rect
	last   *display.Frame
	ximg   *xgraphics.Image
	cache  imageKey
	mapped bool
	closed bool
}

type imageKey struct {
	path          string
	modTime       int64
	width, height int
}

// DisplayID returns the display this window covers.
func (w *Window) DisplayID() model.DisplayID { return w.id }

// Render draws f. An empty frame unmaps the window.
func (w *Window) Render(f display.Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.last = &f

	if err := w.drawLocked(f); err != nil {
		w.logger.Warn("failed to draw sticker, hiding overlay", "image", f.ImagePath, "error", err)
		w.unmapLocked()
	}
}

// Move records new display bounds and redraws the last frame there.
func (w *Window) Move(bounds model.Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.bounds = bounds
	if w.last != nil {
		f := *w.last
		f.Bounds = bounds
		if err := w.drawLocked(f); err != nil {
			w.logger.Warn("failed to redraw moved overlay", "error", err)
		}
	}
}

// SetCaptureProtection always fails: X11 has no way to exclude a window from
// screen capture.
func (w *Window) SetCaptureProtection(bool) error {
	return display.ErrCaptureUnsupported
}

// Close destroys the window.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	xevent.Detach(w.conn.XUtil, w.wid)
	w.releaseLocked()
	xproto.DestroyWindow(w.conn.XUtil.Conn(), w.wid)
}

// Closed reports whether the window was closed or destroyed.
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Window) drawLocked(f display.Frame) error {
	if f.Empty() {
		w.unmapLocked()
		return nil
	}

	key, err := keyFor(f)
	if err != nil {
		return err
	}
	if key != w.cache || w.ximg == nil {
		if err := w.loadLocked(f.ImagePath, key); err != nil {
			return err
		}
	}

	conn := w.conn.XUtil.Conn()
	mask, values := geometry(w.bounds, f.Target, w.alwaysOnTop)
	xproto.ConfigureWindow(conn, w.wid, mask, values)

	w.ximg.XPaint(w.wid)
	if !w.mapped {
		xproto.MapWindow(conn, w.wid)
		w.mapped = true
	}
	return nil
}

// geometry places the window over the sticker's target rectangle only. The
// window never covers the whole display.
func geometry(bounds, target model.Rect, onTop bool) (uint16, []uint32) {
	mask := xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight
	values := []uint32{
		uint32(int32(bounds.X + target.X)),
		uint32(int32(bounds.Y + target.Y)),
		uint32(max(target.Width, 1)),
		uint32(max(target.Height, 1)),
	}
	if onTop {
		mask |= xproto.ConfigWindowStackMode
		values = append(values, xproto.StackModeAbove)
	}
	return uint16(mask), values
}

// loadLocked decodes, scales and uploads the sticker image and shapes the
// window to its alpha.
func (w *Window) loadLocked(path string, key imageKey) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	scaled := xgraphics.Scale(src, key.width, key.height)

	ximg := xgraphics.NewConvert(w.conn.XUtil, scaled)
	if err := ximg.XSurfaceSet(w.wid); err != nil {
		ximg.Destroy()
		return fmt.Errorf("create pixmap: %w", err)
	}
	ximg.XDraw()

	shape.Rectangles(w.conn.XUtil.Conn(), shape.SoSet, shape.SkBounding, xproto.ClipOrderingUnsorted,
		w.wid, 0, 0, maskRects(scaled))

	if w.ximg != nil {
		w.ximg.Destroy()
	}
	w.ximg = ximg
	w.cache = key
	return nil
}

func (w *Window) unmapLocked() {
	if w.mapped {
		xproto.UnmapWindow(w.conn.XUtil.Conn(), w.wid)
		w.mapped = false
	}
}

func (w *Window) releaseLocked() {
	if w.ximg != nil {
		w.ximg.Destroy()
		w.ximg = nil
	}
	w.cache = imageKey{}
}

// keyFor identifies a decoded image. The modification time makes a sticker
// rewritten in place decode again.
func keyFor(f display.Frame) (imageKey, error) {
	info, err := os.Stat(f.ImagePath)
	if err != nil {
		return imageKey{}, err
	}
	return imageKey{
		path:    f.ImagePath,
		modTime: info.ModTime().UnixNano(),
		width:   f.Target.Width,
		height:  f.Target.Height,
	}, nil
}
