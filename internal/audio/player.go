package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Output plays one track at a time.
type Output interface {
	// Start stops whatever is playing and streams track. onEnd is called
	// once when the track finishes on its own; it runs on the audio thread
	// and must not block.
	Start(track Track, onEnd func()) error
	SetPaused(paused bool)
	// Position returns the elapsed and total duration of the current track.
	Position() (elapsed, total time.Duration)
	Stop()
	SetVolume(volume float64)
	Close()
}

// Player streams tracks to the default audio device.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Volume control (0.0 to 1.0)
	volume float64

	initialized bool
	sampleRate  beep.SampleRate

	current *playback
}

// playback is the streamer chain of the track being played.
type playback struct {
	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	gain   *effects.Volume
}

// NewPlayer creates a new audio player. The speaker is opened on the first
// Start.
func NewPlayer(logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		logger:     logger,
		volume:     1.0,
		sampleRate: beep.SampleRate(44100),
	}
}

// Start implements Output.
func (p *Player) Start(track Track, onEnd func()) error {
	stream, format, err := decode(track.Path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureInitializedLocked(); err != nil {
		_ = stream.Close()
		return err
	}
	p.stopLocked()

	var s beep.Streamer = stream
	if format.SampleRate != p.sampleRate {
		s = beep.Resample(4, format.SampleRate, p.sampleRate, s)
	}
	pb := &playback{stream: stream, format: format, ctrl: &beep.Ctrl{Streamer: s}}
	pb.gain = &effects.Volume{Streamer: pb.ctrl, Base: 2}
	applyVolume(pb.gain, p.volume)
	p.current = pb

	speaker.Play(beep.Seq(pb.gain, beep.Callback(func() {
		if onEnd != nil {
			onEnd()
		}
	})))
	p.logger.Debug("playing track", "path", track.Path, "sample_rate", format.SampleRate)
	return nil
}

// SetPaused implements Output.
func (p *Player) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	speaker.Lock()
	p.current.ctrl.Paused = paused
	speaker.Unlock()
}

// Position implements Output.
func (p *Player) Position() (time.Duration, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0, 0
	}
	speaker.Lock()
	pos, length := p.current.stream.Position(), p.current.stream.Len()
	speaker.Unlock()
	rate := p.current.format.SampleRate
	return rate.D(pos), rate.D(length)
}

// Stop implements Output.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.current == nil {
		return
	}
	speaker.Clear()
	if err := p.current.stream.Close(); err != nil {
		p.logger.Debug("failed to close track", "error", err)
	}
	p.current = nil
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) {
	volume = min(max(volume, 0), 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.current != nil {
		speaker.Lock()
		applyVolume(p.current.gain, volume)
		speaker.Unlock()
	}
	p.logger.Debug("volume set", "volume", volume)
}

// Close stops playback and releases the audio device.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.initialized {
		speaker.Close()
		p.initialized = false
	}
	p.logger.Debug("audio player closed")
}

// ensureInitializedLocked opens the speaker at the player's sample rate.
// Tracks at other rates are resampled.
func (p *Player) ensureInitializedLocked() error {
	if p.initialized {
		return nil
	}

	bufferSize := p.sampleRate.N(100 * time.Millisecond)
	if err := speaker.Init(p.sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	p.initialized = true
	p.logger.Debug("speaker initialized", "sample_rate", p.sampleRate)
	return nil
}

// decode opens path with the decoder matching its extension. Closing the
// returned stream closes the file.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open track: %w", err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".ogg":
		stream, format, err = vorbis.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	default:
		_ = f.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported audio format: %s", ext)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode track: %w", err)
	}
	return stream, format, nil
}

func applyVolume(v *effects.Volume, volume float64) {
	v.Silent = volume <= 0
	v.Volume = volumeToExponent(volume)
}

// volumeToExponent converts a linear volume (0-1) to a base-2 gain exponent.
func volumeToExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log2(volume)
}
