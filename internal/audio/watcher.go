package audio

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultSettle is how long the directory must be quiet before a rescan.
// Copying an album produces a burst of events.
const defaultSettle = 500 * time.Millisecond

// Watcher calls a function when playable files in the music directory are
// added, removed or renamed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	logger   *slog.Logger
	onChange func()
	settle   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		dir:      dir,
		logger:   logger,
		onChange: onChange,
		settle:   defaultSettle,
		done:     make(chan struct{}),
	}, nil
}

// SetSettleDelay sets the quiet period before onChange runs. It takes
// effect for events after the call.
func (w *Watcher) SetSettleDelay(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settle = d
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.running = true
	go w.watch()
	w.logger.Debug("music watcher started", "dir", w.dir)
	return nil
}

func (w *Watcher) watch() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !IsSupported(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Write) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("music watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// schedule runs onChange once the directory has been quiet for the settle
// delay.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Reset(w.settle)
		return
	}
	w.timer = time.AfterFunc(w.settle, w.onChange)
}

// Stop stops the watcher. A pending rescan is dropped.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return w.watcher.Close()
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	return w.watcher.Close()
}
