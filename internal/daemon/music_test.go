package daemon

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/display/displaytest"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// silentOutput accepts every track without opening an audio device.
type silentOutput struct {
	mu     sync.Mutex
	tracks []string
	paused bool
	volume float64
}

func (o *silentOutput) Start(track audio.Track, _ func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tracks = append(o.tracks, filepath.Base(track.Path))
	o.paused = false
	return nil
}

func (o *silentOutput) SetPaused(paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = paused
}

func (o *silentOutput) Position() (time.Duration, time.Duration) { return 0, time.Minute }
func (o *silentOutput) Stop()                                    {}
func (o *silentOutput) Close()                                   {}

func (o *silentOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
}

func newMusicService(t *testing.T, cfg *config.DaemonConfig) (*Service, *silentOutput) {
	t.Helper()

	musicDir := t.TempDir()
	for _, name := range []string{"01 - Haydn.mp3", "02 - Boccherini.ogg"} {
		require.NoError(t, os.WriteFile(filepath.Join(musicDir, name), []byte("x"), 0o644))
	}
	cfg.Music.Dir = musicDir

	lib, err := stickers.NewLibrary(filepath.Join(t.TempDir(), "stickers"), nil)
	require.NoError(t, err)

	out := &silentOutput{}
	music := audio.NewManager(cfg, out, nil)
	require.NoError(t, music.Start())
	t.Cleanup(music.Stop)

	svc, err := NewService(cfg, Deps{
		Source:  displaytest.NewSource(displaytest.Monitor("A", 0, 1920, 1080)),
		Factory: displaytest.NewFactory(),
		Library: lib,
		Music:   music,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, out
}

func TestService_MusicWithoutManager(t *testing.T) {
	f := newServiceFixture(t, nil, nil)

	_, err := f.svc.MusicPlay()
	assert.ErrorIs(t, err, audio.ErrDisabled)
	_, err = f.svc.NowPlaying()
	assert.ErrorIs(t, err, audio.ErrDisabled)
}

func TestService_MusicControls(t *testing.T) {
	svc, out := newMusicService(t, config.DefaultDaemonConfig())

	np, err := svc.NowPlaying()
	require.NoError(t, err)
	assert.False(t, np.Playing)
	assert.Equal(t, 2, np.Total)
	assert.Equal(t, "01 - Haydn", np.Title)

	np, err = svc.MusicPlay()
	require.NoError(t, err)
	assert.True(t, np.Playing)

	np, err = svc.MusicNext()
	require.NoError(t, err)
	assert.Equal(t, "02 - Boccherini", np.Title)

	np, err = svc.MusicPrevious()
	require.NoError(t, err)
	assert.Equal(t, 0, np.Index)

	np, err = svc.MusicToggle()
	require.NoError(t, err)
	assert.False(t, np.Playing)

	np, err = svc.MusicPause()
	require.NoError(t, err)
	assert.False(t, np.Playing)

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Equal(t, []string{"01 - Haydn.mp3", "02 - Boccherini.ogg", "01 - Haydn.mp3"}, out.tracks)
	assert.True(t, out.paused)
}

func TestService_ApplyConfigUpdatesMusic(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	svc, out := newMusicService(t, cfg)

	_, err := svc.MusicPlay()
	require.NoError(t, err)

	next := *cfg
	next.Music.Volume = 10
	next.Music.Enabled = false
	svc.ApplyConfig(&next)

	out.mu.Lock()
	assert.InDelta(t, 0.1, out.volume, 1e-9)
	out.mu.Unlock()

	np, err := svc.MusicPlay()
	assert.ErrorIs(t, err, audio.ErrDisabled)
	assert.False(t, np.Playing)
}
