// Package layout provides named placement presets. A preset anchors the
// sticker to an edge, corner or the center of a display and can fix its
// size.
package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// Anchor names the point of the display a preset attaches to.
type Anchor string

const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTop         Anchor = "top"
	AnchorTopRight    Anchor = "top-right"
	AnchorLeft        Anchor = "left"
	AnchorCenter      Anchor = "center"
	AnchorRight       Anchor = "right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottom      Anchor = "bottom"
	AnchorBottomRight Anchor = "bottom-right"
)

// ValidAnchors lists all recognized anchors.
var ValidAnchors = map[Anchor]bool{
	AnchorTopLeft: true, AnchorTop: true, AnchorTopRight: true,
	AnchorLeft: true, AnchorCenter: true, AnchorRight: true,
	AnchorBottomLeft: true, AnchorBottom: true, AnchorBottomRight: true,
}

// Preset is a named placement. Sizes and margin are fractions of the
// display; a zero size keeps the current one.
type Preset struct {
	Name        string  `yaml:"-"`
	Description string  `yaml:"description"`
	Anchor      Anchor  `yaml:"anchor"`
	Margin      float64 `yaml:"margin"`
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
}

// Validate checks anchor and ranges.
func (p *Preset) Validate() error {
	if !ValidAnchors[p.Anchor] {
		return fmt.Errorf("unknown anchor %q", p.Anchor)
	}
	if p.Margin < 0 || p.Margin >= 0.5 {
		return fmt.Errorf("margin %.3f out of range [0, 0.5)", p.Margin)
	}
	if p.Width < 0 || p.Width > 1 || p.Height < 0 || p.Height > 1 {
		return errors.New("width and height must be within [0, 1]")
	}
	return nil
}

// Apply moves l to the preset's anchor and applies its size. The sticker
// is kept; clamping is left to the store.
func (p *Preset) Apply(l model.Layout) model.Layout {
	w, h := l.WidthFrac, l.HeightFrac
	if p.Width > 0 {
		w = p.Width
	}
	if p.Height > 0 {
		h = p.Height
	}

	var x, y float64
	switch p.Anchor {
	case AnchorTopLeft, AnchorLeft, AnchorBottomLeft:
		x = p.Margin
	case AnchorTopRight, AnchorRight, AnchorBottomRight:
		x = 1 - p.Margin - w
	default:
		x = (1 - w) / 2
	}
	switch p.Anchor {
	case AnchorTopLeft, AnchorTop, AnchorTopRight:
		y = p.Margin
	case AnchorBottomLeft, AnchorBottom, AnchorBottomRight:
		y = 1 - p.Margin - h
	default:
		y = (1 - h) / 2
	}
	return l.WithPlacement(x, y, w, h)
}

// ParsePreset parses a YAML preset. Unknown keys are rejected.
func ParsePreset(r io.Reader) (*Preset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Preset
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty preset")
		}
		return nil, fmt.Errorf("failed to parse preset: %w", err)
	}
	if p.Anchor == "" {
		p.Anchor = AnchorCenter
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParsePresetString parses a preset from a string.
func ParsePresetString(s string) (*Preset, error) {
	return ParsePreset(strings.NewReader(s))
}

// LoadPreset loads a preset from file; its name is the file name without
// extension.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preset: %w", err)
	}
	p, err := ParsePreset(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return p, nil
}

// PresetsDir returns ~/.config/stickerlay/presets, honouring
// XDG_CONFIG_HOME.
func PresetsDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "stickerlay", "presets")
}

// Loader handles loading presets from the user directory and the embedded
// defaults.
type Loader struct {
	presetsDir string
}

// NewLoader creates a new preset loader.
func NewLoader(presetsDir string) *Loader {
	return &Loader{presetsDir: presetsDir}
}

// Load loads a preset by name.
// Checks the user directory first, then falls back to the embedded presets.
func (l *Loader) Load(name string) (*Preset, error) {
	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid preset name: %s", name)
	}

	if l.presetsDir != "" {
		path := filepath.Join(l.presetsDir, name+presetExt)
		if _, err := os.Stat(path); err == nil {
			return LoadPreset(path)
		}
	}

	if p, ok := GetEmbeddedPreset(name); ok {
		return p, nil
	}
	return nil, fmt.Errorf("preset not found: %s", name)
}

// List returns every available preset, user presets shadowing embedded
// ones of the same name. Unreadable user presets are skipped.
func (l *Loader) List() []*Preset {
	names := ListEmbeddedPresets()
	if l.presetsDir != "" {
		if entries, err := os.ReadDir(l.presetsDir); err == nil {
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), presetExt) {
					names = append(names, strings.TrimSuffix(e.Name(), presetExt))
				}
			}
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)

	out := make([]*Preset, 0, len(names))
	for _, name := range names {
		if p, err := l.Load(name); err == nil {
			out = append(out, p)
		}
	}
	return out
}
