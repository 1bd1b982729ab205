package audio

import (
	"cmp"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrDisabled means music playback is turned off in the config.
	ErrDisabled = errors.New("music is disabled")
	// ErrEmptyPlaylist means the music directory holds no playable files.
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

// supportedExts are the extensions beep can decode.
var supportedExts = []string{".mp3", ".ogg", ".wav"}

// IsSupported reports whether name has a playable extension.
func IsSupported(name string) bool {
	return slices.Contains(supportedExts, strings.ToLower(filepath.Ext(name)))
}

// DefaultDir returns ~/.local/share/stickerlay/music, honouring
// XDG_DATA_HOME.
func DefaultDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "stickerlay", "music"), nil
}

// Track is one playable file.
type Track struct {
	Path  string
	Title string
}

// TrackFromPath derives a track title from the file name, e.g.
// "02 - Haydn_Cello_Concerto.mp3" becomes "02 - Haydn Cello Concerto".
func TrackFromPath(path string) Track {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.ReplaceAll(title, "_", " ")
	return Track{Path: path, Title: title}
}

// ScanDir lists the playable files in dir, sorted by file name. A missing
// directory is an empty playlist.
func ScanDir(dir string) ([]Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var tracks []Track
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		tracks = append(tracks, TrackFromPath(filepath.Join(dir, e.Name())))
	}
	slices.SortFunc(tracks, func(a, b Track) int {
		return cmp.Compare(strings.ToLower(filepath.Base(a.Path)), strings.ToLower(filepath.Base(b.Path)))
	})
	return tracks, nil
}

// Playlist is an ordered list of tracks with a cursor. Next and Previous
// wrap around.
type Playlist struct {
	mu     sync.RWMutex
	tracks []Track
	index  int
}

// NewPlaylist creates a playlist positioned on the first track.
func NewPlaylist(tracks []Track) *Playlist {
	return &Playlist{tracks: slices.Clone(tracks)}
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tracks)
}

// Index returns the cursor position.
func (p *Playlist) Index() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

// Current returns the track under the cursor.
func (p *Playlist) Current() (Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.tracks) == 0 {
		return Track{}, false
	}
	return p.tracks[p.index], true
}

// Next moves the cursor forward and returns the new track.
func (p *Playlist) Next() (Track, bool) {
	return p.step(1)
}

// Previous moves the cursor back and returns the new track.
func (p *Playlist) Previous() (Track, bool) {
	return p.step(-1)
}

func (p *Playlist) step(delta int) (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.tracks)
	if n == 0 {
		return Track{}, false
	}
	p.index = ((p.index+delta)%n + n) % n
	return p.tracks[p.index], true
}

// Replace swaps in a new track list. The cursor stays on the current
// track when it is still present, and otherwise moves to the first track.
// It reports whether the current track survived.
func (p *Playlist) Replace(tracks []Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	var current string
	if len(p.tracks) > 0 {
		current = p.tracks[p.index].Path
	}
	p.tracks = slices.Clone(tracks)
	p.index = 0
	if current == "" {
		return false
	}
	for i, t := range p.tracks {
		if t.Path == current {
			p.index = i
			return true
		}
	}
	return false
}
