package wayland

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	layershell "github.com/diamondburned/gotk4-layer-shell/pkg/gtk4layershell"
	"github.com/diamondburned/gotk4/pkg/cairo"
	"github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gdkpixbuf/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
)

// ProtectedSuffix is appended to the layer-shell namespace of overlays that
// should be hidden from screen capture. Compositors match on it, e.g. a
// Hyprland `layerrule = noscreenshare, ^(stickerlay-protected)$`.
const ProtectedSuffix = "-protected"

// CSS classes set on overlay windows.
const (
	classOverlay   = "stickerlay-overlay"
	classProtected = "capture-protected"
	classSticker   = "sticker"
)

// RunOnUI schedules fn on the GTK main thread.
func RunOnUI(fn func()) {
	glib.IdleAdd(fn)
}

// Factory creates layer-shell overlay windows.
type Factory struct {
	app    *gtk.Application
	source *MonitorSource
	logger *slog.Logger
}

// NewFactory creates a window factory for app. Windows are bound to the GDK
// monitors tracked by source.
func NewFactory(app *gtk.Application, source *MonitorSource, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{app: app, source: source, logger: logger}
}

// CreateWindow creates and presents an overlay covering d. It must be called
// on the main thread.
func (f *Factory) CreateWindow(d model.Display, opts display.WindowOptions) (display.Window, error) {
	if !layershell.IsSupported() {
		return nil, errors.New("compositor does not support wlr-layer-shell")
	}
	mon := f.source.Monitor(string(d.ID))
	if mon == nil {
		return nil, fmt.Errorf("no GDK monitor for %s", d.ID)
	}

	w := &Window{
		id:        d.ID,
		namespace: opts.Namespace,
		mailbox:   display.NewMailbox(),
		logger:    f.logger.With("display_id", d.ID),
	}
	w.protected.Store(opts.CaptureProtection)

	w.window = gtk.NewWindow()
	w.window.SetApplication(f.app)
	w.window.SetDecorated(false)
	w.window.SetResizable(false)
	w.window.SetCanTarget(false)
	w.window.SetCanFocus(false)
	w.window.AddCSSClass(classOverlay)
	if opts.CaptureProtection {
		w.window.AddCSSClass(classProtected)
	}

	layershell.InitForWindow(w.window)
	layer := layershell.LayerShellLayerTop
	if opts.AlwaysOnTop {
		layer = layershell.LayerShellLayerOverlay
	}
	layershell.SetLayer(w.window, layer)
	layershell.SetMonitor(w.window, mon)
	for _, edge := range []layershell.LayerShellEdge{
		layershell.LayerShellEdgeLeft,
		layershell.LayerShellEdgeRight,
		layershell.LayerShellEdgeTop,
		layershell.LayerShellEdgeBottom,
	} {
		layershell.SetAnchor(w.window, edge, true)
	}
	layershell.SetExclusiveZone(w.window, -1) // Cover panels too
	layershell.SetKeyboardMode(w.window, layershell.LayerShellKeyboardModeNone)
	layershell.SetNamespace(w.window, namespaceFor(opts.Namespace, opts.CaptureProtection))

	w.picture = gtk.NewPicture()
	w.picture.AddCSSClass(classSticker)
	w.picture.SetCanTarget(false)
	w.picture.SetCanShrink(true)
	w.picture.SetKeepAspectRatio(false)
	w.picture.SetVisible(false)

	w.fixed = gtk.NewFixed()
	w.fixed.SetCanTarget(false)
	w.fixed.Put(w.picture, 0, 0)
	w.window.SetChild(w.fixed)

	// Mapping creates a fresh wl_surface, so the input region is set on
	// every map, including the one after a namespace switch.
	w.window.ConnectMap(w.passInput)
	w.window.ConnectDestroy(func() {
		if !w.closed.Swap(true) {
			w.logger.Warn("overlay window destroyed externally")
		}
	})

	w.window.Present()
	w.logger.Debug("overlay window created",
		"bounds", d.Bounds.String(),
		"namespace", namespaceFor(opts.Namespace, opts.CaptureProtection),
	)
	return w, nil
}

// Window is a transparent, click-through layer-shell surface covering one
// monitor. The sticker is a GtkPicture placed inside a GtkFixed.
type Window struct {
	id        model.DisplayID
	namespace string
	mailbox   *display.Mailbox
	logger    *slog.Logger

	closed    atomic.Bool
	protected atomic.Bool

	// Main thread only.
	window  *gtk.Window
	fixed   *gtk.Fixed
	picture *gtk.Picture
	loaded  textureKey
}

// textureKey identifies the texture currently shown: an image decoded at
// a given pixel size.
type textureKey struct {
	path          string
	width, height int
}

func textureKeyFor(f display.Frame) textureKey {
	return textureKey{
		path:   f.ImagePath,
		width:  max(f.Target.Width, 1),
		height: max(f.Target.Height, 1),
	}
}

// emptyInputRegion returns a region that accepts no pointer or touch input.
func emptyInputRegion() *cairo.Region {
	return cairo.RegionCreate()
}

// DisplayID returns the display this window covers.
func (w *Window) DisplayID() model.DisplayID { return w.id }

// Render queues f. Frames not yet drawn are superseded by newer ones.
func (w *Window) Render(f display.Frame) {
	if w.closed.Load() {
		return
	}
	if w.mailbox.Put(f) {
		glib.IdleAdd(w.drain)
	}
}

// Move is a no-op beyond logging: the surface is anchored to its monitor
// and follows it, and frames are relative to the display origin.
func (w *Window) Move(bounds model.Rect) {
	w.logger.Debug("overlay bounds changed", "bounds", bounds.String())
}

// SetCaptureProtection switches the layer-shell namespace. A namespace only
// applies to a new surface, so the window is unmapped and presented again.
func (w *Window) SetCaptureProtection(enabled bool) error {
	if w.closed.Load() {
		return nil
	}
	if w.protected.Swap(enabled) == enabled {
		return nil
	}

	glib.IdleAdd(func() {
		if w.closed.Load() {
			return
		}
		w.window.SetVisible(false)
		layershell.SetNamespace(w.window, namespaceFor(w.namespace, enabled))
		if enabled {
			w.window.AddCSSClass(classProtected)
		} else {
			w.window.RemoveCSSClass(classProtected)
		}
		w.window.Present()
		w.passInput()
	})
	return nil
}

// passInput gives the surface an empty input region so clicks reach the
// windows below. GtkWidget.can-target alone does not change the region the
// compositor sees.
func (w *Window) passInput() {
	native := w.window.Surface()
	if native == nil {
		return
	}
	gdk.BaseSurface(native).SetInputRegion(emptyInputRegion())
}

// Close destroys the window.
func (w *Window) Close() {
	if w.closed.Swap(true) {
		return
	}
	glib.IdleAdd(func() {
		w.window.Destroy()
	})
}

// Closed reports whether the window was closed or destroyed.
func (w *Window) Closed() bool {
	return w.closed.Load()
}

func (w *Window) drain() {
	f, ok := w.mailbox.Take()
	if !ok || w.closed.Load() {
		return
	}

	if f.Empty() {
		w.picture.SetVisible(false)
		return
	}
	if key := textureKeyFor(f); key != w.loaded {
		if err := w.load(key); err != nil {
			w.logger.Warn("failed to load sticker", "path", key.path, "error", err)
			w.picture.SetVisible(false)
			return
		}
	}
	w.picture.SetSizeRequest(f.Target.Width, f.Target.Height)
	w.fixed.Move(w.picture, float64(f.Target.X), float64(f.Target.Y))
	w.picture.SetVisible(true)
}

// load decodes the image at the target size. GtkFixed allocates children
// their natural size, which for a GtkPicture is the paintable's own size.
func (w *Window) load(key textureKey) error {
	pixbuf, err := gdkpixbuf.NewPixbufFromFileAtScale(key.path, key.width, key.height, false)
	if err != nil {
		return err
	}
	w.picture.SetPaintable(gdk.NewTextureForPixbuf(pixbuf))
	w.loaded = key
	return nil
}

func namespaceFor(namespace string, protected bool) string {
	if protected {
		return namespace + ProtectedSuffix
	}
	return namespace
}
