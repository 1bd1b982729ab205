package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/config"
)

// fakeOutput records what the manager asks of the audio device.
type fakeOutput struct {
	mu      sync.Mutex
	started []string
	paused  bool
	stopped int
	volume  float64
	onEnd   func()
	fail    map[string]bool
	closed  bool
}

func (f *fakeOutput) Start(track Track, onEnd func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[filepath.Base(track.Path)] {
		return errors.New("corrupt file")
	}
	f.started = append(f.started, filepath.Base(track.Path))
	f.paused = false
	f.onEnd = onEnd
	return nil
}

func (f *fakeOutput) SetPaused(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
}

func (f *fakeOutput) Position() (time.Duration, time.Duration) {
	return 30 * time.Second, 3 * time.Minute
}

func (f *fakeOutput) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	f.onEnd = nil
}

func (f *fakeOutput) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeOutput) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// finish simulates the current track reaching its end.
func (f *fakeOutput) finish() {
	f.mu.Lock()
	fn := f.onEnd
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeOutput) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func (f *fakeOutput) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func newMusicFixture(t *testing.T, mutate func(*config.DaemonConfig), tracks ...string) (*Manager, *fakeOutput, string) {
	t.Helper()
	dir := t.TempDir()
	writeTracks(t, dir, tracks...)

	cfg := config.DefaultDaemonConfig()
	cfg.Music.Dir = dir
	if mutate != nil {
		mutate(cfg)
	}
	out := &fakeOutput{}
	m := NewManager(cfg, out, nil)
	require.NoError(t, m.Start())
	t.Cleanup(m.Stop)
	return m, out, dir
}

func TestManager_PlayPauseResume(t *testing.T) {
	m, out, _ := newMusicFixture(t, nil, "01.mp3", "02.mp3")

	assert.InDelta(t, 0.8, out.volume, 1e-9)
	assert.Empty(t, out.Started())

	require.NoError(t, m.Play())
	assert.Equal(t, []string{"01.mp3"}, out.Started())

	np := m.NowPlaying()
	assert.True(t, np.Playing)
	assert.Equal(t, "01", np.Title)
	assert.Equal(t, 0, np.Index)
	assert.Equal(t, 2, np.Total)
	assert.Equal(t, 30*time.Second, np.Elapsed)

	m.Pause()
	assert.True(t, out.Paused())
	assert.False(t, m.NowPlaying().Playing)

	// Resuming keeps the position instead of restarting the track.
	require.NoError(t, m.Play())
	assert.False(t, out.Paused())
	assert.Equal(t, []string{"01.mp3"}, out.Started())
}

func TestManager_Toggle(t *testing.T) {
	m, out, _ := newMusicFixture(t, nil, "01.mp3")

	playing, err := m.Toggle()
	require.NoError(t, err)
	assert.True(t, playing)

	playing, err = m.Toggle()
	require.NoError(t, err)
	assert.False(t, playing)
	assert.True(t, out.Paused())
}

func TestManager_NextPreviousWrap(t *testing.T) {
	m, out, _ := newMusicFixture(t, nil, "01.mp3", "02.ogg", "03.wav")

	require.NoError(t, m.Previous())
	require.NoError(t, m.Next())
	require.NoError(t, m.Next())
	assert.Equal(t, []string{"03.wav", "01.mp3", "02.ogg"}, out.Started())
	assert.True(t, m.NowPlaying().Playing)
}

func TestManager_AdvancesWhenTrackEnds(t *testing.T) {
	m, out, _ := newMusicFixture(t, nil, "01.mp3", "02.mp3")

	require.NoError(t, m.Play())
	out.finish()
	assert.Eventually(t, func() bool { return len(out.Started()) == 2 }, time.Second, 10*time.Millisecond)

	out.finish()
	assert.Eventually(t, func() bool { return len(out.Started()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"01.mp3", "02.mp3", "01.mp3"}, out.Started())
	assert.Equal(t, 0, m.NowPlaying().Index)
}

func TestManager_StaleEndIgnored(t *testing.T) {
	m, out, _ := newMusicFixture(t, nil, "01.mp3", "02.mp3", "03.mp3")

	require.NoError(t, m.Play())
	out.mu.Lock()
	staleEnd := out.onEnd
	out.mu.Unlock()

	require.NoError(t, m.Next())
	staleEnd()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"01.mp3", "02.mp3"}, out.Started())
}

func TestManager_SkipsUnplayableTrack(t *testing.T) {
	m, out, _ := newMusicFixture(t, nil, "01.mp3", "02.mp3", "03.mp3")
	out.fail = map[string]bool{"02.mp3": true}

	require.NoError(t, m.Play())
	require.NoError(t, m.Next())
	assert.Equal(t, []string{"01.mp3", "03.mp3"}, out.Started())
	assert.Equal(t, 2, m.NowPlaying().Index)
}

func TestManager_EmptyAndDisabled(t *testing.T) {
	m, _, _ := newMusicFixture(t, nil)
	assert.ErrorIs(t, m.Play(), ErrEmptyPlaylist)
	assert.ErrorIs(t, m.Next(), ErrEmptyPlaylist)

	off, _, _ := newMusicFixture(t, func(c *config.DaemonConfig) { c.Music.Enabled = false }, "01.mp3")
	assert.ErrorIs(t, off.Play(), ErrDisabled)
	assert.ErrorIs(t, off.Previous(), ErrDisabled)
}

func TestManager_Autoplay(t *testing.T) {
	_, out, _ := newMusicFixture(t, func(c *config.DaemonConfig) { c.Music.Autoplay = true }, "01.mp3")
	assert.Equal(t, []string{"01.mp3"}, out.Started())
}

func TestManager_RescanMovesOffRemovedTrack(t *testing.T) {
	m, out, dir := newMusicFixture(t, nil, "01.mp3", "02.mp3")

	require.NoError(t, m.Play())
	require.NoError(t, os.Remove(filepath.Join(dir, "01.mp3")))
	require.NoError(t, m.Rescan())

	assert.Equal(t, []string{"01.mp3", "02.mp3"}, out.Started())
	np := m.NowPlaying()
	assert.Equal(t, "02", np.Title)
	assert.Equal(t, 1, np.Total)
}

func TestManager_UpdateConfig(t *testing.T) {
	m, out, _ := newMusicFixture(t, nil, "01.mp3")
	require.NoError(t, m.Play())

	other := t.TempDir()
	writeTracks(t, other, "x.ogg", "y.ogg")

	cfg := config.DefaultDaemonConfig()
	cfg.Music.Dir = other
	cfg.Music.Volume = 25
	m.UpdateConfig(cfg)

	assert.InDelta(t, 0.25, out.volume, 1e-9)
	assert.Equal(t, other, m.Dir())
	np := m.NowPlaying()
	assert.False(t, np.Playing)
	assert.Equal(t, 2, np.Total)

	cfg = config.DefaultDaemonConfig()
	cfg.Music.Dir = other
	cfg.Music.Enabled = false
	m.UpdateConfig(cfg)
	assert.ErrorIs(t, m.Play(), ErrDisabled)
}

func TestManager_StopClosesOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultDaemonConfig()
	cfg.Music.Dir = dir
	out := &fakeOutput{}
	m := NewManager(cfg, out, nil)
	require.NoError(t, m.Start())

	m.Stop()
	assert.True(t, out.closed)
	assert.ErrorIs(t, m.Play(), ErrDisabled)
}

func TestVolumeToExponent(t *testing.T) {
	assert.InDelta(t, 0.0, volumeToExponent(1), 1e-9)
	assert.InDelta(t, -1.0, volumeToExponent(0.5), 1e-9)
	assert.Less(t, volumeToExponent(0), -5.0)
}
