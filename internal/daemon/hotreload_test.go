package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/config"
)

func writeDaemonConfig(t *testing.T, path, body string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestConfigWatcher_ReloadsValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stickerlayd.toml")
	base := time.Now().Add(-time.Hour)
	writeDaemonConfig(t, path, "[overlay]\ncapture_protection = true\n", base)

	w, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	w.SetPollInterval(10 * time.Millisecond)

	var mu sync.Mutex
	var reloaded *ConfigChange
	w.SetReloadCallback(func(change ConfigChange) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = &change
	})

	initial := config.DefaultDaemonConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()
	assert.Same(t, initial, w.CurrentConfig())

	writeDaemonConfig(t, path, "[overlay]\ncapture_protection = false\n", base.Add(time.Minute))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.False(t, reloaded.New.Overlay.CaptureProtection)
	assert.Same(t, initial, reloaded.Old)
	assert.Equal(t, []string{"overlay"}, reloaded.Sections)
	mu.Unlock()
	assert.False(t, w.CurrentConfig().Overlay.CaptureProtection)
}

func TestConfigWatcher_InvalidConfigKeepsCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stickerlayd.toml")
	base := time.Now().Add(-time.Hour)
	writeDaemonConfig(t, path, "", base)

	w, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	w.SetPollInterval(10 * time.Millisecond)

	errCh := make(chan error, 1)
	w.SetErrorCallback(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})
	w.SetReloadCallback(func(ConfigChange) {
		t.Error("invalid config must not be applied")
	})

	initial := config.DefaultDaemonConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()

	writeDaemonConfig(t, path, "[overlay]\nbackend = \"mir\"\n", base.Add(time.Minute))

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected validation error")
	}
	assert.Same(t, initial, w.CurrentConfig())
}

func TestConfigWatcher_StopsWithContext(t *testing.T) {
	w, err := NewConfigWatcher(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.NoError(t, err)
	w.SetPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, config.DefaultDaemonConfig()))
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestConfigWatcher_IgnoresTouchWithoutChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stickerlayd.toml")
	base := time.Now().Add(-time.Hour)
	body := "[overlay]\ncapture_protection = true\n"
	writeDaemonConfig(t, path, body, base)

	w, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	w.SetPollInterval(5 * time.Millisecond)

	reloads := make(chan ConfigChange, 4)
	w.SetReloadCallback(func(change ConfigChange) { reloads <- change })

	initial := config.DefaultDaemonConfig()
	require.NoError(t, w.Start(context.Background(), initial))
	defer w.Stop()

	writeDaemonConfig(t, path, body, base.Add(time.Minute))
	select {
	case <-reloads:
		t.Fatal("unchanged content must not reload")
	case <-time.After(100 * time.Millisecond):
	}

	writeDaemonConfig(t, path, body+"[theme]\ncss = \"~/sticker.css\"\n", base.Add(2*time.Minute))
	select {
	case change := <-reloads:
		assert.Equal(t, []string{"theme"}, change.Sections)
		assert.True(t, change.Has("theme"))
		assert.False(t, change.Has("layout"))
	case <-time.After(time.Second):
		t.Fatal("expected reload")
	}
}

func TestChangedSections(t *testing.T) {
	old := config.DefaultDaemonConfig()

	same := config.DefaultDaemonConfig()
	assert.Empty(t, changedSections(old, same))

	cfg := config.DefaultDaemonConfig()
	cfg.Layout.MinSize = old.Layout.MinSize + 10
	cfg.Stickers.Watch = !old.Stickers.Watch
	assert.Equal(t, []string{"layout", "stickers"}, changedSections(old, cfg))

	assert.Nil(t, changedSections(nil, cfg))
}

func TestConfigChange_RestartRequired(t *testing.T) {
	old := config.DefaultDaemonConfig()
	cfg := config.DefaultDaemonConfig()
	assert.False(t, ConfigChange{Old: old, New: cfg}.RestartRequired())

	cfg.Overlay.Namespace = "other"
	assert.True(t, ConfigChange{Old: old, New: cfg}.RestartRequired())

	assert.False(t, ConfigChange{New: cfg}.RestartRequired())
}
