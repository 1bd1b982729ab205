package stickers

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventType is the kind of library change.
type EventType int

const (
	// EventChanged means a sticker was added or rewritten.
	EventChanged EventType = iota
	// EventRemoved means a sticker file disappeared.
	EventRemoved
)

// Event reports a change to one sticker file made outside the daemon.
type Event struct {
	Type EventType
	Name string
}

// Watcher reports sticker files added, rewritten or removed on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	logger  *slog.Logger
	events  chan Event
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for the library directory.
func NewWatcher(lib *Library, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher: fw,
		dir:     lib.Dir(),
		logger:  logger,
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}, nil
}

// Events returns the change stream. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
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
	return nil
}

func (w *Watcher) watch() {
	defer close(w.events)

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if !IsSupported(name) || validateName(name) != nil {
				continue
			}

			var out Event
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				out = Event{Type: EventRemoved, Name: name}
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				out = Event{Type: EventChanged, Name: name}
			default:
				continue
			}

			select {
			case w.events <- out:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("sticker watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.done)
	return w.watcher.Close()
}
