// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultFormat    = "plain"
	DefaultNudgeStep = 0.01
	DefaultSortField = "name"
	DefaultSortOrder = "asc"
)

var (
	validFormats = []string{"plain", "json", "yaml"}
	validSorts   = []string{"name", "modified", "size"}
	validOrders  = []string{"asc", "desc"}
)

// Config represents the stickerlay CLI configuration.
// Loaded from ~/.config/stickerlay/config.toml
type Config struct {
	Output OutputConfig `toml:"output"`
	TUI    TUIConfig    `toml:"tui"`
}

// OutputConfig holds default output options.
type OutputConfig struct {
	Format string `toml:"format"` // plain, json, yaml
	Sort   string `toml:"sort"`   // Sticker list order: name, modified, size
	Order  string `toml:"order"`  // asc, desc
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	NudgeStep  float64 `toml:"nudge_step"`  // Fraction moved per key press
	LockAspect bool    `toml:"lock_aspect"` // Resize keeps the sticker's aspect ratio
	ShowHelp   bool    `toml:"show_help"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{Format: DefaultFormat, Sort: DefaultSortField, Order: DefaultSortOrder},
		TUI:    TUIConfig{NudgeStep: DefaultNudgeStep, LockAspect: true, ShowHelp: true},
	}
}

// configDir is $XDG_CONFIG_HOME/stickerlay, falling back to ~/.config.
func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "stickerlay"), nil
}

// ConfigPath returns the path to the CLI config file, or "" when no config
// directory can be determined.
func ConfigPath() string {
	dir, err := configDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// LoadConfig reads the CLI config at path, or the default path when empty.
// A missing file yields the defaults. An out-of-range nudge step falls back
// to the default; unknown output values are errors.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate lower-cases the output settings and checks them. An unusable
// nudge step is reset rather than rejected.
func (c *Config) Validate() error {
	c.Output.Format = strings.ToLower(c.Output.Format)
	c.Output.Sort = strings.ToLower(c.Output.Sort)
	c.Output.Order = strings.ToLower(c.Output.Order)

	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format %q, must be one of: %v", c.Output.Format, validFormats)
	}
	if c.Output.Sort == "" {
		c.Output.Sort = DefaultSortField
	}
	if !slices.Contains(validSorts, c.Output.Sort) {
		return fmt.Errorf("invalid sort field %q, must be one of: %v", c.Output.Sort, validSorts)
	}
	if c.Output.Order == "" {
		c.Output.Order = DefaultSortOrder
	}
	if !slices.Contains(validOrders, c.Output.Order) {
		return fmt.Errorf("invalid sort order %q, must be one of: %v", c.Output.Order, validOrders)
	}

	if c.TUI.NudgeStep <= 0 || c.TUI.NudgeStep > 0.5 {
		c.TUI.NudgeStep = DefaultNudgeStep
	}
	return nil
}

// Save writes the configuration to path, or the default path when empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	return writeTOML(path, c)
}

// writeTOML marshals v and replaces path through a temporary file.
func writeTOML(path string, v any) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
