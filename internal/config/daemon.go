package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Integer milliseconds
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for stickerlayd.
// Loaded from ~/.config/stickerlay/stickerlayd.toml
type DaemonConfig struct {
	Overlay   OverlayConfig   `toml:"overlay"`
	Layout    LayoutConfig    `toml:"layout"`
	Stickers  StickersConfig  `toml:"stickers"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Notify    NotifyConfig    `toml:"notify"`
	Theme     ThemeConfig     `toml:"theme"`
	Music     MusicConfig     `toml:"music"`
}

// OverlayConfig contains overlay window settings.
type OverlayConfig struct {
	Backend           string `toml:"backend"`            // "auto", "wayland", "x11"
	AlwaysOnTop       bool   `toml:"always_on_top"`      // Overlay layer instead of top layer
	CaptureProtection bool   `toml:"capture_protection"` // Default for new overlays
	Namespace         string `toml:"namespace"`          // Layer-shell namespace prefix
}

// LayoutConfig contains placement defaults.
type LayoutConfig struct {
	ReferenceWidth  int    `toml:"reference_width"`  // Resolution legacy pixel layouts are relative to
	ReferenceHeight int    `toml:"reference_height"` //
	DefaultX        int    `toml:"default_x"`        // Pixel-equivalent default placement
	DefaultY        int    `toml:"default_y"`
	DefaultWidth    int    `toml:"default_width"`
	DefaultHeight   int    `toml:"default_height"`
	MinSize         int    `toml:"min_size"`    // Minimum sticker edge in pixels
	SeedPolicy      string `toml:"seed_policy"` // "pixels" or "fraction"
}

// StickersConfig contains sticker library settings.
type StickersConfig struct {
	Dir   string `toml:"dir"`   // Empty = ~/.local/share/stickerlay/stickers
	Watch bool   `toml:"watch"` // Retract stickers deleted outside stickerlay
}

// ReconcileConfig controls periodic display reconciliation.
type ReconcileConfig struct {
	Interval Duration `toml:"interval"` // 0 disables polling; monitor events still reconcile
}

// NotifyConfig controls desktop notifications about overlay failures.
type NotifyConfig struct {
	Enabled   bool     `toml:"enabled"`
	RateLimit Duration `toml:"rate_limit"` // Minimum gap between identical notifications
}

// ThemeConfig contains overlay styling.
type ThemeConfig struct {
	CSS string `toml:"css"` // Optional user stylesheet appended to the built-in one
}

// MusicConfig contains background music settings.
type MusicConfig struct {
	Enabled  bool   `toml:"enabled"`
	Dir      string `toml:"dir"`      // Empty = ~/.local/share/stickerlay/music
	Volume   int    `toml:"volume"`   // 0-100
	Autoplay bool   `toml:"autoplay"` // Start the playlist when the daemon starts
}

// Backend names an overlay platform.
type Backend string

const (
	BackendAuto    Backend = "auto"
	BackendWayland Backend = "wayland"
	BackendX11     Backend = "x11"
)

// ValidBackends returns all valid backend values.
func ValidBackends() []Backend {
	return []Backend{BackendAuto, BackendWayland, BackendX11}
}

// SeedPolicy values.
const (
	SeedPolicyPixels   = "pixels"
	SeedPolicyFraction = "fraction"
)

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Overlay: OverlayConfig{
			Backend:           string(BackendAuto),
			AlwaysOnTop:       true,
			CaptureProtection: true,
			Namespace:         "stickerlay",
		},
		Layout: LayoutConfig{
			ReferenceWidth:  1920,
			ReferenceHeight: 1080,
			DefaultX:        100,
			DefaultY:        100,
			DefaultWidth:    200,
			DefaultHeight:   200,
			MinSize:         24,
			SeedPolicy:      SeedPolicyPixels,
		},
		Stickers: StickersConfig{
			Watch: true,
		},
		Reconcile: ReconcileConfig{
			Interval: Duration(5 * time.Second),
		},
		Notify: NotifyConfig{
			Enabled:   true,
			RateLimit: Duration(time.Minute),
		},
		Music: MusicConfig{
			Enabled: true,
			Volume:  80,
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "stickerlayd.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from the default path.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig() (*DaemonConfig, error) {
	path, err := DaemonConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadDaemonConfigFile(path)
}

// LoadDaemonConfigFile loads the daemon configuration from path.
func LoadDaemonConfigFile(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseDaemonConfig(data)
}

// ParseDaemonConfig overlays TOML data onto the defaults and validates the
// result.
func ParseDaemonConfig(data []byte) (*DaemonConfig, error) {
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig writes config to path, or the default path when empty.
func SaveDaemonConfig(path string, config *DaemonConfig) error {
	if path == "" {
		var err error
		if path, err = DaemonConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	return writeTOML(path, config)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	validBackend := false
	for _, b := range ValidBackends() {
		if c.Overlay.Backend == string(b) {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid backend %q, must be one of: %v", c.Overlay.Backend, ValidBackends())
	}

	if c.Overlay.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}

	if c.Layout.ReferenceWidth <= 0 || c.Layout.ReferenceHeight <= 0 {
		return fmt.Errorf("reference resolution must be positive, got %dx%d",
			c.Layout.ReferenceWidth, c.Layout.ReferenceHeight)
	}
	if c.Layout.DefaultWidth <= 0 || c.Layout.DefaultHeight <= 0 {
		return fmt.Errorf("default sticker size must be positive, got %dx%d",
			c.Layout.DefaultWidth, c.Layout.DefaultHeight)
	}
	if c.Layout.DefaultX < 0 || c.Layout.DefaultY < 0 {
		return fmt.Errorf("default position must not be negative, got %d,%d", c.Layout.DefaultX, c.Layout.DefaultY)
	}
	if c.Layout.MinSize < 0 || c.Layout.MinSize > 1000 {
		return fmt.Errorf("min_size must be between 0 and 1000, got %d", c.Layout.MinSize)
	}
	if c.Layout.SeedPolicy != SeedPolicyPixels && c.Layout.SeedPolicy != SeedPolicyFraction {
		return fmt.Errorf("invalid seed_policy %q, must be %q or %q",
			c.Layout.SeedPolicy, SeedPolicyPixels, SeedPolicyFraction)
	}

	if c.Reconcile.Interval < 0 {
		return fmt.Errorf("reconcile interval must not be negative")
	}
	if iv := c.Reconcile.Interval.Duration(); iv > 0 && iv < 500*time.Millisecond {
		return fmt.Errorf("reconcile interval must be at least 500ms, got %s", iv)
	}

	if c.Music.Volume < 0 || c.Music.Volume > 100 {
		return fmt.Errorf("music volume must be between 0 and 100, got %d", c.Music.Volume)
	}

	return nil
}

// MusicDir returns the configured music directory with ~ expanded, or ""
// when the default should be used.
func (c *DaemonConfig) MusicDir() string {
	return expandPath(c.Music.Dir)
}

// StickerDir returns the configured sticker directory with ~ expanded, or
// "" when the default should be used.
func (c *DaemonConfig) StickerDir() string {
	return expandPath(c.Stickers.Dir)
}

// ThemeCSSPath returns the user stylesheet path with ~ expanded.
func (c *DaemonConfig) ThemeCSSPath() string {
	return expandPath(c.Theme.CSS)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
