package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// DataDir returns the path to the stickerlay data directory.
// Uses XDG_DATA_HOME or defaults to ~/.local/share/stickerlay.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "stickerlay"), nil
}

// LayoutsPath returns the path to the persisted layout snapshot.
func LayoutsPath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "layouts.json"), nil
}

// ErrCorruptSnapshot is returned when the layout file cannot be parsed.
// The unreadable file is moved aside with a ".corrupt" suffix.
var ErrCorruptSnapshot = errors.New("corrupt layout snapshot")

// Persistence loads and saves the whole layout mapping as one snapshot.
type Persistence interface {
	// Load reads every persisted layout.
	Load() (map[model.DisplayID]model.Layout, error)

	// Save replaces the persisted snapshot.
	Save(layouts map[model.DisplayID]model.Layout) error

	// Close releases resources.
	Close() error
}

// layoutRecord is the on-disk form of one layout. Records written before
// fractions existed only carry pixel fields.
type layoutRecord struct {
	XFrac       *float64 `json:"xFrac,omitempty"`
	YFrac       *float64 `json:"yFrac,omitempty"`
	WidthFrac   *float64 `json:"widthFrac,omitempty"`
	HeightFrac  *float64 `json:"heightFrac,omitempty"`
	StickerName string   `json:"stickerName,omitempty"`

	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

func (r layoutRecord) hasFractions() bool {
	return r.XFrac != nil || r.YFrac != nil || r.WidthFrac != nil || r.HeightFrac != nil
}

func (r layoutRecord) hasPixels() bool {
	return r.X != nil || r.Y != nil || r.Width != nil || r.Height != nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func ptr(v float64) *float64 {
	return &v
}

// FilePersistence stores the snapshot as a single JSON object keyed by
// display id.
type FilePersistence struct {
	mu        sync.Mutex
	path      string
	reference model.Rect
	logger    *slog.Logger
}

// NewFilePersistence creates a file-backed persistence. Legacy pixel records
// are converted against reference.
func NewFilePersistence(path string, reference model.Rect, logger *slog.Logger) (*FilePersistence, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if reference.Empty() {
		reference = model.DefaultReference
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return &FilePersistence{path: path, reference: reference, logger: logger}, nil
}

// Path returns the snapshot file path.
func (p *FilePersistence) Path() string {
	return p.path
}

// Load implements Persistence. A missing file is an empty snapshot. Legacy
// records are converted to fractions and the file is rewritten.
func (p *FilePersistence) Load() (map[model.DisplayID]model.Layout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[model.DisplayID]model.Layout{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", p.path, err)
	}

	var records map[string]layoutRecord
	if err := json.Unmarshal(data, &records); err != nil {
		corrupt := p.path + ".corrupt"
		if rerr := os.Rename(p.path, corrupt); rerr != nil {
			p.logger.Warn("failed to move corrupt layout file aside", "path", p.path, "error", rerr)
		}
		return nil, fmt.Errorf("%w: %s (moved to %s): %v", ErrCorruptSnapshot, p.path, corrupt, err)
	}

	layouts := make(map[model.DisplayID]model.Layout, len(records))
	migrated := 0
	for key, r := range records {
		id := model.DisplayID(key)
		var l model.Layout

		switch {
		case r.hasFractions():
			l = model.Layout{
				DisplayID:  id,
				XFrac:      deref(r.XFrac),
				YFrac:      deref(r.YFrac),
				WidthFrac:  deref(r.WidthFrac),
				HeightFrac: deref(r.HeightFrac),
			}
		case r.hasPixels():
			l = model.FromPixels(id, model.PixelRect{
				X:      deref(r.X),
				Y:      deref(r.Y),
				Width:  deref(r.Width),
				Height: deref(r.Height),
			}, p.reference)
			migrated++
		default:
			p.logger.Warn("skipping layout record without placement", "display_id", id)
			continue
		}

		if r.StickerName != "" {
			l.Sticker = &model.StickerRef{Name: r.StickerName}
		}
		layouts[id] = l
	}

	if migrated > 0 {
		p.logger.Info("converted legacy pixel layouts to fractions",
			"count", migrated,
			"reference", p.reference.String(),
		)
		if err := p.saveLocked(layouts); err != nil {
			return nil, err
		}
	}

	return layouts, nil
}

// Save implements Persistence. The file is replaced atomically.
func (p *FilePersistence) Save(layouts map[model.DisplayID]model.Layout) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveLocked(layouts)
}

func (p *FilePersistence) saveLocked(layouts map[model.DisplayID]model.Layout) error {
	records := make(map[string]layoutRecord, len(layouts))
	for id, l := range layouts {
		records[string(id)] = layoutRecord{
			XFrac:       ptr(l.XFrac),
			YFrac:       ptr(l.YFrac),
			WidthFrac:   ptr(l.WidthFrac),
			HeightFrac:  ptr(l.HeightFrac),
			StickerName: l.StickerName(),
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return err
	}

	tmpPath := p.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", p.path, err)
	}
	return nil
}

// Close implements Persistence.
func (p *FilePersistence) Close() error {
	return nil
}
