package theme

import (
	"context"
	"log/slog"
	"sync"

	"github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
)

// Loader owns the GTK CSS provider for overlay windows. Load, Apply and
// Provider must be called on the GTK main thread.
type Loader struct {
	mu       sync.Mutex
	logger   *slog.Logger
	provider *gtk.CSSProvider
	sheet    *Stylesheet
	watcher  *Watcher
}

// NewLoader creates a loader with an empty provider.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:   logger,
		provider: gtk.NewCSSProvider(),
	}
}

// Load loads the base stylesheet plus the user stylesheet at path. When the
// user stylesheet cannot be read the base stylesheet is still applied and
// the error is returned.
func (l *Loader) Load(path string) error {
	sheet, err := LoadStylesheet(path)
	if err != nil {
		l.logger.Warn("failed to load user stylesheet, using base", "path", path, "error", err)
		sheet = &Stylesheet{CSS: BaseCSS()}
	}

	l.mu.Lock()
	l.sheet = sheet
	l.mu.Unlock()

	l.provider.LoadFromString(sheet.CSS)
	if !sheet.IsBase() {
		l.logger.Info("loaded user stylesheet", "path", sheet.Path)
	}
	return err
}

// Apply attaches the provider to display, or the default display when nil.
func (l *Loader) Apply(display *gdk.Display) {
	if display == nil {
		display = gdk.DisplayGetDefault()
	}
	if display == nil {
		l.logger.Warn("no display available, cannot apply stylesheet")
		return
	}

	gtk.StyleContextAddProviderForDisplay(
		display,
		l.provider,
		gtk.STYLE_PROVIDER_PRIORITY_APPLICATION,
	)
}

// StartHotReload watches the user stylesheet and reloads the provider on
// the main thread when it changes. onError receives read failures.
func (l *Loader) StartHotReload(ctx context.Context, onError func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sheet == nil || l.sheet.IsBase() {
		return
	}
	if l.watcher != nil {
		l.watcher.Stop()
		l.watcher = nil
	}

	w := NewWatcher(l.sheet, l.logger)
	w.SetChangeCallback(func(css string) {
		glib.IdleAdd(func() { l.provider.LoadFromString(css) })
	})
	w.SetErrorCallback(onError)
	if err := w.Start(ctx); err != nil {
		l.logger.Warn("failed to start stylesheet watcher, edits need a restart", "error", err)
		return
	}
	l.watcher = w
}

// Switch replaces the user stylesheet with the one at path and restarts
// hot reload. Must be called on the GTK main thread.
func (l *Loader) Switch(ctx context.Context, path string, onError func(error)) {
	l.StopHotReload()
	if err := l.Load(path); err != nil && onError != nil {
		onError(err)
	}
	l.StartHotReload(ctx, onError)
}

// StopHotReload stops watching the user stylesheet.
func (l *Loader) StopHotReload() {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// Provider returns the underlying CSS provider.
func (l *Loader) Provider() *gtk.CSSProvider {
	return l.provider
}
