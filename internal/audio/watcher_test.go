package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_CoalescesChanges(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := NewWatcher(dir, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	w.SetSettleDelay(100 * time.Millisecond)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	writeTracks(t, dir, "01.mp3", "02.mp3", "cover.png")

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w, err := NewWatcher(dir, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	w.SetSettleDelay(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	writeTracks(t, dir, "cover.png", "notes.txt")
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
