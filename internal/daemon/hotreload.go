package daemon

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/jmylchreest/stickerlay/internal/config"
)

// ConfigChange describes one accepted reload of the daemon config.
type ConfigChange struct {
	Old *config.DaemonConfig
	New *config.DaemonConfig
	// Sections lists the top-level TOML tables whose values differ.
	Sections []string
}

// Has reports whether the named table changed.
func (c ConfigChange) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// RestartRequired reports whether the change touches settings only read at
// startup.
func (c ConfigChange) RestartRequired() bool {
	if c.Old == nil || c.New == nil {
		return false
	}
	return c.Old.Overlay.Backend != c.New.Overlay.Backend ||
		c.Old.Overlay.Namespace != c.New.Overlay.Namespace ||
		c.Old.Stickers.Dir != c.New.Stickers.Dir
}

// changedSections compares two configs table by table, in declaration order.
func changedSections(old, cfg *config.DaemonConfig) []string {
	if old == nil || cfg == nil {
		return nil
	}
	ov, nv := reflect.ValueOf(*old), reflect.ValueOf(*cfg)
	t := ov.Type()

	var out []string
	for i := range t.NumField() {
		if reflect.DeepEqual(ov.Field(i).Interface(), nv.Field(i).Interface()) {
			continue
		}
		name := t.Field(i).Tag.Get("toml")
		if name == "" {
			name = t.Field(i).Name
		}
		out = append(out, name)
	}
	return out
}

// ConfigWatcher polls the daemon config file and hands validated changes to
// a callback. A rewrite with identical content is ignored; an invalid file
// keeps the previous config.
type ConfigWatcher struct {
	mu       sync.Mutex
	logger   *slog.Logger
	path     string
	interval time.Duration

	current *config.DaemonConfig
	modTime time.Time
	digest  [sha256.Size]byte

	onReload func(ConfigChange)
	onError  func(error)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConfigWatcher creates a watcher for the daemon config at path. An
// empty path watches the default location.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		var err error
		if path, err = config.DaemonConfigPath(); err != nil {
			return nil, err
		}
	}
	return &ConfigWatcher{logger: logger, path: path, interval: time.Second}, nil
}

// SetPollInterval sets how often the file is checked. It takes effect on
// the next Start.
func (w *ConfigWatcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interval = interval
}

// SetReloadCallback sets the function receiving accepted changes.
func (w *ConfigWatcher) SetReloadCallback(fn func(ConfigChange)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// SetErrorCallback sets the function receiving load and validation errors.
func (w *ConfigWatcher) SetErrorCallback(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start records the current file state and polls until Stop is called or
// ctx is done. Starting a running watcher is a no-op.
func (w *ConfigWatcher) Start(ctx context.Context, initial *config.DaemonConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return nil
	}

	w.current = initial
	w.modTime, w.digest = time.Time{}, [sha256.Size]byte{}
	if info, err := os.Stat(w.path); err == nil {
		w.modTime = info.ModTime()
		if data, err := os.ReadFile(w.path); err == nil {
			w.digest = sha256.Sum256(data)
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.interval, w.done)

	w.logger.Debug("config watcher started", "path", w.path, "interval", w.interval)
	return nil
}

// Stop ends polling and waits for the loop to exit.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
	w.logger.Debug("config watcher stopped")
}

// CurrentConfig returns the last accepted config.
func (w *ConfigWatcher) CurrentConfig() *config.DaemonConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *ConfigWatcher) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll reloads the file when its modification time and content changed.
func (w *ConfigWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("failed to stat config file", "path", w.path, "error", err)
		}
		return
	}

	w.mu.Lock()
	if !info.ModTime().After(w.modTime) {
		w.mu.Unlock()
		return
	}
	w.modTime = info.ModTime()
	prevDigest := w.digest
	w.mu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		w.fail(fmt.Errorf("read %s: %w", w.path, err))
		return
	}
	digest := sha256.Sum256(data)
	if digest == prevDigest {
		w.logger.Debug("config file touched without changes", "path", w.path)
		return
	}

	cfg, err := config.ParseDaemonConfig(data)
	if err != nil {
		w.fail(err)
		return
	}

	w.mu.Lock()
	w.digest = digest
	change := ConfigChange{Old: w.current, New: cfg, Sections: changedSections(w.current, cfg)}
	w.current = cfg
	onReload := w.onReload
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path, "changed", change.Sections)
	if change.RestartRequired() {
		w.logger.Warn("backend, namespace or sticker directory changed; restart stickerlayd to apply")
	}
	if onReload != nil {
		onReload(change)
	}
}

func (w *ConfigWatcher) fail(err error) {
	w.logger.Warn("config file changed but could not be applied", "path", w.path, "error", err)
	w.mu.Lock()
	onError := w.onError
	w.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}
