// Package stickers manages the directory of sticker images the overlays
// display.
package stickers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders for DecodeConfig
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	_ "golang.org/x/image/webp"

	"github.com/jmylchreest/stickerlay/internal/model"
)

var (
	// ErrNotFound means no sticker with the given name exists.
	ErrNotFound = errors.New("sticker not found")
	// ErrExists means a sticker with the target name already exists.
	ErrExists = errors.New("sticker already exists")
	// ErrInvalidName means the name is empty or escapes the library.
	ErrInvalidName = errors.New("invalid sticker name")
	// ErrUnsupportedType means the file content is not a renderable image.
	ErrUnsupportedType = errors.New("unsupported image type")
)

// supportedExts are the image types the overlays can render.
var supportedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// Sticker describes one file in the library.
type Sticker struct {
	Name    string    `json:"name" yaml:"name"`
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	Width   int       `json:"width,omitempty" yaml:"width,omitempty"`
	Height  int       `json:"height,omitempty" yaml:"height,omitempty"`
}

// AspectRatio returns width/height, or 0 when dimensions are unknown.
func (s Sticker) AspectRatio() float64 {
	if s.Width <= 0 || s.Height <= 0 {
		return 0
	}
	return float64(s.Width) / float64(s.Height)
}

// Ref returns the StickerRef for the file.
func (s Sticker) Ref() model.StickerRef {
	return model.StickerRef{Name: s.Name, Path: s.Path}
}

// DefaultDir returns ~/.local/share/stickerlay/stickers, honouring
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
	return filepath.Join(dataHome, "stickerlay", "stickers"), nil
}

// Library is a flat directory of sticker images.
type Library struct {
	dir    string
	logger *slog.Logger
}

// NewLibrary opens dir, creating it if needed.
func NewLibrary(dir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sticker directory %s: %w", dir, err)
	}
	return &Library{dir: dir, logger: logger}, nil
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// IsSupported reports whether name has a renderable image extension.
func IsSupported(name string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(name))]
}

// List returns every sticker in the library, ordered by name.
func (l *Library) List() ([]Sticker, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sticker directory: %w", err)
	}

	stickers := make([]Sticker, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		s, err := l.stat(e.Name())
		if err != nil {
			l.logger.Debug("skipping unreadable sticker", "name", e.Name(), "error", err)
			continue
		}
		stickers = append(stickers, s)
	}
	return stickers, nil
}

// Get returns the sticker called name.
func (l *Library) Get(name string) (Sticker, error) {
	if err := validateName(name); err != nil {
		return Sticker{}, err
	}
	return l.stat(name)
}

// Resolve returns a ref to the sticker called name.
func (l *Library) Resolve(name string) (model.StickerRef, error) {
	s, err := l.Get(name)
	if err != nil {
		return model.StickerRef{}, err
	}
	return s.Ref(), nil
}

// ResolveStickerImage returns the file to render for ref. Refs are resolved
// by name so that layouts loaded from disk, which carry no path, render too.
func (l *Library) ResolveStickerImage(ref model.StickerRef) (string, error) {
	if ref.Name == "" {
		return "", ErrInvalidName
	}
	s, err := l.Get(ref.Name)
	if err != nil {
		return "", err
	}
	return s.Path, nil
}

// AspectRatio returns the native width/height of the sticker, or 0 when the
// format does not expose dimensions.
func (l *Library) AspectRatio(name string) (float64, error) {
	s, err := l.Get(name)
	if err != nil {
		return 0, err
	}
	return s.AspectRatio(), nil
}

// Import copies src into the library. An empty name keeps the source file
// name, and a name without extension gets the one matching the content. A
// name collision gets a unique suffix rather than overwriting.
func (l *Library) Import(src, name string) (Sticker, error) {
	ext, err := sniff(src)
	if err != nil {
		return Sticker{}, err
	}
	if name == "" {
		name = filepath.Base(src)
	}
	if filepath.Ext(name) == "" {
		name += ext
	}
	if err := validateName(name); err != nil {
		return Sticker{}, err
	}
	if !IsSupported(name) {
		return Sticker{}, fmt.Errorf("%w: unsupported image type %q", ErrInvalidName, filepath.Ext(name))
	}

	if _, err := os.Stat(l.path(name)); err == nil {
		ext := filepath.Ext(name)
		id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
		name = strings.TrimSuffix(name, ext) + "-" + strings.ToLower(id.String()) + ext
	}

	in, err := os.Open(src)
	if err != nil {
		return Sticker{}, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(l.dir, ".import-*")
	if err != nil {
		return Sticker{}, err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Sticker{}, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Sticker{}, err
	}
	if err := os.Rename(tmp.Name(), l.path(name)); err != nil {
		os.Remove(tmp.Name())
		return Sticker{}, err
	}

	l.logger.Info("imported sticker", "name", name, "source", src)
	return l.stat(name)
}

// Delete removes the sticker file.
func (l *Library) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := os.Remove(l.path(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	l.logger.Info("deleted sticker", "name", name)
	return nil
}

// Rename moves oldName to newName. The extension of oldName is kept when
// newName has none.
func (l *Library) Rename(oldName, newName string) (Sticker, error) {
	if err := validateName(oldName); err != nil {
		return Sticker{}, err
	}
	if filepath.Ext(newName) == "" {
		newName += filepath.Ext(oldName)
	}
	if err := validateName(newName); err != nil {
		return Sticker{}, err
	}
	if oldName == newName {
		return l.stat(oldName)
	}

	if _, err := os.Stat(l.path(oldName)); os.IsNotExist(err) {
		return Sticker{}, fmt.Errorf("%w: %s", ErrNotFound, oldName)
	}
	if _, err := os.Stat(l.path(newName)); err == nil {
		return Sticker{}, fmt.Errorf("%w: %s", ErrExists, newName)
	}
	if err := os.Rename(l.path(oldName), l.path(newName)); err != nil {
		return Sticker{}, err
	}

	l.logger.Info("renamed sticker", "from", oldName, "to", newName)
	return l.stat(newName)
}

func (l *Library) path(name string) string {
	return filepath.Join(l.dir, name)
}

func (l *Library) stat(name string) (Sticker, error) {
	p := l.path(name)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Sticker{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Sticker{}, err
	}
	if info.IsDir() {
		return Sticker{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	s := Sticker{Name: name, Path: p, Size: info.Size(), ModTime: info.ModTime()}
	s.Width, s.Height = dimensions(p)
	return s, nil
}

// sniff checks that src holds an image the overlays can render and returns
// the canonical extension for its content.
func sniff(src string) (string, error) {
	mtype, err := mimetype.DetectFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", src, err)
	}
	ext := mtype.Extension()
	if !strings.HasPrefix(mtype.String(), "image/") || !supportedExts[ext] {
		return "", fmt.Errorf("%w: %s is %s", ErrUnsupportedType, filepath.Base(src), mtype.String())
	}
	return ext, nil
}

// dimensions reads the image header. Formats without a registered decoder
// report 0x0.
func dimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
