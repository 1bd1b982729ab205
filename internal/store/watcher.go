package store

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Hydrator reloads in-memory state from its backing file.
type Hydrator interface {
	Hydrate() error
}

// FileWatcher reloads the layout snapshot when another process edits it.
// Saves are atomic renames, so the parent directory is watched and events
// are filtered by file name. Bursts are collapsed into one reload.
type FileWatcher struct {
	fsw    *fsnotify.Watcher
	target Hydrator
	path   string
	logger *slog.Logger
	delay  time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	exited    chan struct{}
}

// NewFileWatcher creates a watcher that calls target.Hydrate after path
// changes. *Store satisfies Hydrator.
func NewFileWatcher(target Hydrator, path string, logger *slog.Logger) (*FileWatcher, error) {
	if target == nil {
		return nil, errors.New("store: file watcher needs a hydrate target")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		fsw:    fsw,
		target: target,
		path:   filepath.Clean(path),
		logger: logger,
		delay:  150 * time.Millisecond,
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period before a reload. Call before Start.
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.delay = d
}

// Start begins watching. Calling it again is a no-op.
func (fw *FileWatcher) Start() error {
	var err error
	fw.startOnce.Do(func() {
		if err = fw.fsw.Add(filepath.Dir(fw.path)); err != nil {
			close(fw.exited)
			return
		}
		go fw.loop()
	})
	return err
}

// Stop ends watching and waits for a pending reload to finish.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.quit)
		err = fw.fsw.Close()
		fw.startOnce.Do(func() { close(fw.exited) })
		<-fw.exited
	})
	return err
}

func (fw *FileWatcher) loop() {
	defer close(fw.exited)

	debounce := time.NewTimer(fw.delay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-fw.quit:
			return

		case ev, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				debounce.Reset(fw.delay)
			case ev.Has(fsnotify.Remove):
				fw.logger.Info("layout file removed; keeping in-memory layouts", "path", fw.path)
			}

		case <-debounce.C:
			fw.logger.Debug("layout file changed on disk", "path", fw.path)
			if err := fw.target.Hydrate(); err != nil {
				fw.logger.Warn("failed to reload layout file", "path", fw.path, "error", err)
			}

		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("layout watcher error", "error", err)
		}
	}
}
