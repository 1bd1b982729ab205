package audio

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/stickerlay/internal/config"
)

// NowPlaying describes the playlist position and playback state.
type NowPlaying struct {
	Title    string
	Path     string
	Index    int
	Total    int
	Playing  bool
	Elapsed  time.Duration
	Duration time.Duration
}

// Manager runs the music playlist: it scans the music directory, keeps the
// playlist in step with it and advances to the next track when one ends.
type Manager struct {
	mu       sync.Mutex
	logger   *slog.Logger
	out      Output
	playlist *Playlist
	watcher  *Watcher
	config   *config.DaemonConfig
	dir      string

	loaded  bool   // A track is open in the output, playing or paused
	playing bool
	gen     uint64 // Bumped on every start and stop; stale end callbacks are ignored
	closed  bool
}

// NewManager creates a music manager playing through out.
func NewManager(cfg *config.DaemonConfig, out Output, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}

	m := &Manager{
		logger:   logger,
		out:      out,
		playlist: NewPlaylist(nil),
		config:   cfg,
		dir:      musicDir(cfg),
	}
	out.SetVolume(volumeFraction(cfg))
	return m
}

// Dir returns the music directory.
func (m *Manager) Dir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}

// Start scans the music directory, watches it for changes and starts the
// playlist when autoplay is on.
func (m *Manager) Start() error {
	m.mu.Lock()
	dir := m.dir
	cfg := m.config
	m.mu.Unlock()

	if err := m.Rescan(); err != nil {
		return err
	}
	if err := m.watch(dir); err != nil {
		m.logger.Warn("music directory not watched", "dir", dir, "error", err)
	}

	m.logger.Info("music manager started", "dir", dir, "tracks", m.playlist.Len(), "enabled", cfg.Music.Enabled)
	if cfg.Music.Enabled && cfg.Music.Autoplay && m.playlist.Len() > 0 {
		return m.Play()
	}
	return nil
}

// Stop shuts down the manager and releases the audio device.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.closed = true
	w := m.watcher
	m.watcher = nil
	m.loaded, m.playing = false, false
	m.gen++
	m.mu.Unlock()

	if w != nil {
		_ = w.Stop()
	}
	m.out.Close()
	m.logger.Debug("music manager stopped")
}

// Play resumes a paused track or starts the current one.
func (m *Manager) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(); err != nil {
		return err
	}
	if m.loaded {
		if !m.playing {
			m.out.SetPaused(false)
			m.playing = true
		}
		return nil
	}
	track, ok := m.playlist.Current()
	if !ok {
		return ErrEmptyPlaylist
	}
	return m.playFromLocked(track, m.playlist.Next)
}

// Pause pauses playback. The position is kept.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded && m.playing {
		m.out.SetPaused(true)
		m.playing = false
	}
}

// Toggle pauses when playing and plays otherwise. It reports whether music
// is now playing.
func (m *Manager) Toggle() (bool, error) {
	m.mu.Lock()
	playing := m.playing
	m.mu.Unlock()

	if playing {
		m.Pause()
		return false, nil
	}
	if err := m.Play(); err != nil {
		return false, err
	}
	return true, nil
}

// Next skips to the next track, wrapping to the first, and plays it.
func (m *Manager) Next() error {
	return m.skip(m.playlist.Next)
}

// Previous goes back one track, wrapping to the last, and plays it.
func (m *Manager) Previous() error {
	return m.skip(m.playlist.Previous)
}

func (m *Manager) skip(step func() (Track, bool)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLocked(); err != nil {
		return err
	}
	track, ok := step()
	if !ok {
		return ErrEmptyPlaylist
	}
	return m.playFromLocked(track, step)
}

// NowPlaying returns the current track and playback state.
func (m *Manager) NowPlaying() NowPlaying {
	m.mu.Lock()
	defer m.mu.Unlock()

	np := NowPlaying{
		Index:   m.playlist.Index(),
		Total:   m.playlist.Len(),
		Playing: m.playing,
	}
	if track, ok := m.playlist.Current(); ok {
		np.Title = track.Title
		np.Path = track.Path
	}
	if m.loaded {
		np.Elapsed, np.Duration = m.out.Position()
	}
	return np
}

// Rescan reloads the playlist from the music directory. When the current
// track was removed, playback moves on to the new current track.
func (m *Manager) Rescan() error {
	m.mu.Lock()
	dir := m.dir
	m.mu.Unlock()

	tracks, err := ScanDir(dir)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dir != dir || m.closed {
		return nil
	}

	kept := m.playlist.Replace(tracks)
	m.logger.Debug("music playlist scanned", "dir", dir, "tracks", len(tracks))
	if kept || !m.loaded {
		return nil
	}

	wasPlaying := m.playing
	m.stopLocked()
	if !wasPlaying {
		return nil
	}
	track, ok := m.playlist.Current()
	if !ok {
		return nil
	}
	return m.playFromLocked(track, m.playlist.Next)
}

// UpdateConfig applies a reloaded config. Disabling music stops playback;
// a new directory replaces the playlist.
func (m *Manager) UpdateConfig(cfg *config.DaemonConfig) {
	m.mu.Lock()
	m.config = cfg
	m.out.SetVolume(volumeFraction(cfg))
	if !cfg.Music.Enabled {
		m.stopLocked()
	}
	dir := musicDir(cfg)
	dirChanged := dir != m.dir
	m.dir = dir
	old := m.watcher
	if dirChanged {
		m.watcher = nil
		m.stopLocked()
	}
	m.mu.Unlock()

	m.logger.Debug("music manager config updated", "dir", dir, "enabled", cfg.Music.Enabled)
	if !dirChanged {
		return
	}
	if old != nil {
		_ = old.Stop()
	}
	if err := m.Rescan(); err != nil {
		m.logger.Warn("failed to scan music directory", "dir", dir, "error", err)
	}
	if err := m.watch(dir); err != nil {
		m.logger.Warn("music directory not watched", "dir", dir, "error", err)
	}
}

// watch starts a directory watcher that rescans on change.
func (m *Manager) watch(dir string) error {
	if dir == "" {
		return errors.New("no music directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := NewWatcher(dir, func() {
		if err := m.Rescan(); err != nil {
			m.logger.Warn("failed to rescan music directory", "dir", dir, "error", err)
		}
	}, m.logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.dir != dir || m.watcher != nil {
		_ = w.Stop()
		return nil
	}
	m.watcher = w
	return nil
}

func (m *Manager) checkLocked() error {
	if m.closed || !m.config.Music.Enabled {
		return ErrDisabled
	}
	return nil
}

// playFromLocked starts track. A track that fails to open is skipped using
// step, at most once per playlist entry.
func (m *Manager) playFromLocked(track Track, step func() (Track, bool)) error {
	var err error
	for range max(m.playlist.Len(), 1) {
		if err = m.startLocked(track); err == nil {
			return nil
		}
		m.logger.Warn("skipping unplayable track", "path", track.Path, "error", err)
		next, ok := step()
		if !ok {
			break
		}
		track = next
	}
	m.stopLocked()
	return err
}

func (m *Manager) startLocked(track Track) error {
	m.gen++
	gen := m.gen
	if err := m.out.Start(track, func() { go m.trackEnded(gen) }); err != nil {
		return err
	}
	m.loaded, m.playing = true, true
	return nil
}

func (m *Manager) stopLocked() {
	if !m.loaded {
		return
	}
	m.gen++
	m.out.Stop()
	m.loaded, m.playing = false, false
}

// trackEnded advances to the next track, wrapping at the end of the list.
func (m *Manager) trackEnded(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.closed || !m.playing {
		return
	}
	track, ok := m.playlist.Next()
	if !ok {
		m.stopLocked()
		return
	}
	if err := m.playFromLocked(track, m.playlist.Next); err != nil {
		m.logger.Warn("playlist stopped", "error", err)
	}
}

func musicDir(cfg *config.DaemonConfig) string {
	if dir := cfg.MusicDir(); dir != "" {
		return dir
	}
	dir, err := DefaultDir()
	if err != nil {
		return ""
	}
	return dir
}

func volumeFraction(cfg *config.DaemonConfig) float64 {
	return float64(cfg.Music.Volume) / 100.0
}
