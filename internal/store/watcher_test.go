package store

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/model"
)

type countingHydrator struct {
	calls atomic.Int32
}

func (c *countingHydrator) Hydrate() error {
	c.calls.Add(1)
	return nil
}

func TestFileWatcher_CollapsesBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.json")
	target := &countingHydrator{}

	fw, err := NewFileWatcher(target, path, nil)
	require.NoError(t, err)
	fw.SetDebounce(50 * time.Millisecond)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{'{', '}', byte('0' + i)}, 0o600))
	}

	assert.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.EqualValues(t, 1, target.calls.Load())
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	target := &countingHydrator{}

	fw, err := NewFileWatcher(target, filepath.Join(dir, "layouts.json"), nil)
	require.NoError(t, err)
	fw.SetDebounce(10 * time.Millisecond)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{}"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, target.calls.Load())
}

func TestFileWatcher_RehydratesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.json")
	p, err := NewFilePersistence(path, model.DefaultReference, nil)
	require.NoError(t, err)

	s := NewStore(p, DefaultOptions(), nil)
	defer s.Close()

	fw, err := NewFileWatcher(s, path, nil)
	require.NoError(t, err)
	fw.SetDebounce(10 * time.Millisecond)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	body := `{"DP-1": {"xFrac": 0.1, "yFrac": 0.2, "widthFrac": 0.3, "heightFrac": 0.3, "stickerName": "cat.png"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	assert.Eventually(t, func() bool { return s.Has("DP-1") }, 2*time.Second, 10*time.Millisecond)
	l := s.Get("DP-1")
	assert.InDelta(t, 0.1, l.XFrac, 1e-9)
	assert.Equal(t, "cat.png", l.StickerName())
}

func TestFileWatcher_StopWithoutStart(t *testing.T) {
	fw, err := NewFileWatcher(&countingHydrator{}, filepath.Join(t.TempDir(), "x.json"), nil)
	require.NoError(t, err)
	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}

func TestNewFileWatcher_RequiresTarget(t *testing.T) {
	_, err := NewFileWatcher(nil, "layouts.json", nil)
	assert.Error(t, err)
}
