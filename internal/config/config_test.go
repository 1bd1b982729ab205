package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "plain", cfg.Output.Format)
	assert.Equal(t, "name", cfg.Output.Sort)
	assert.Equal(t, "asc", cfg.Output.Order)
	assert.InDelta(t, 0.01, cfg.TUI.NudgeStep, 1e-9)
	assert.True(t, cfg.TUI.LockAspect)
	assert.True(t, cfg.TUI.ShowHelp)
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[output]
format = "json"
sort = "modified"

[tui]
nudge_step = 0.05
lock_aspect = false
show_help = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "modified", cfg.Output.Sort)
	assert.InDelta(t, 0.05, cfg.TUI.NudgeStep, 1e-9)
	assert.False(t, cfg.TUI.LockAspect)
	assert.False(t, cfg.TUI.ShowHelp)
}

func TestLoadConfig_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte("[output]\nformat = \"yaml\"\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, "name", cfg.Output.Sort)
	assert.True(t, cfg.TUI.ShowHelp)
}

func TestLoadConfig_NudgeStepOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte("[tui]\nnudge_step = 2.0\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.InDelta(t, DefaultNudgeStep, cfg.TUI.NudgeStep, 1e-9)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, os.WriteFile(path, []byte(`this is not valid toml [`), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Save(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.toml")

	cfg := DefaultConfig()
	cfg.Output.Format = "json"

	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "json", loaded.Output.Format)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/stickerlay/config.toml", ConfigPath())
}

func TestLoadConfig_RejectsUnknownOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"format", "[output]\nformat = \"xml\"\n"},
		{"sort", "[output]\nsort = \"colour\"\n"},
		{"order", "[output]\norder = \"sideways\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_ValidateNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "JSON"
	cfg.Output.Sort = ""
	cfg.Output.Order = "DESC"

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "name", cfg.Output.Sort)
	assert.Equal(t, "desc", cfg.Output.Order)
}
