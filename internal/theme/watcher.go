package theme

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds the stylesheet when a CSS file next to the user
// stylesheet changes, so edits to imported partials are picked up too.
type Watcher struct {
	mu     sync.Mutex
	logger *slog.Logger
	sheet  *Stylesheet
	delay  time.Duration

	onChange func(css string)
	onError  func(err error)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a new stylesheet watcher.
func NewWatcher(sheet *Stylesheet, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{logger: logger, sheet: sheet, delay: 100 * time.Millisecond}
}

// SetDebounce sets how long the directory must stay quiet before the
// stylesheet is rebuilt.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delay = d
}

// SetChangeCallback sets the callback invoked with the new CSS.
func (w *Watcher) SetChangeCallback(callback func(css string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// SetErrorCallback sets the callback invoked when the stylesheet cannot be
// read.
func (w *Watcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

// Start begins watching. The base stylesheet is embedded and never watched.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		return nil
	}
	if w.sheet == nil || w.sheet.IsBase() {
		w.logger.Debug("no user stylesheet to watch")
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(w.sheet.Path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, fsw, w.delay, w.done)

	w.logger.Debug("stylesheet watcher started", "dir", dir)
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	w.logger.Debug("stylesheet watcher stopped")
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done != nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, delay time.Duration, done chan struct{}) {
	defer close(done)
	defer fsw.Close()

	settle := time.NewTimer(delay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".css") {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				settle.Reset(delay)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("stylesheet watcher error", "error", err)
		case <-settle.C:
			w.rebuild()
		}
	}
}

func (w *Watcher) rebuild() {
	w.mu.Lock()
	sheet, onChange, onError := w.sheet, w.onChange, w.onError
	w.mu.Unlock()

	changed, err := sheet.Rebuild()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Editors that save by rename briefly remove the file.
		w.logger.Debug("stylesheet missing", "path", sheet.Path)
	case err != nil:
		w.logger.Warn("failed to reload stylesheet", "path", sheet.Path, "error", err)
		if onError != nil {
			onError(err)
		}
	case changed:
		w.logger.Info("stylesheet changed, reloading", "path", sheet.Path)
		if onChange != nil {
			onChange(sheet.CSS)
		}
	}
}
