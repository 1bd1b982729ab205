package layout

import (
	"embed"
	"slices"
	"strings"
)

//go:embed presets/*.yaml
var EmbeddedPresets embed.FS

const presetExt = ".yaml"

// GetEmbeddedPreset returns an embedded preset by name.
// The name should not include the .yaml extension.
func GetEmbeddedPreset(name string) (*Preset, bool) {
	data, err := EmbeddedPresets.ReadFile("presets/" + name + presetExt)
	if err != nil {
		return nil, false
	}

	p, err := ParsePresetString(string(data))
	if err != nil {
		return nil, false
	}
	p.Name = name
	return p, true
}

// ListEmbeddedPresets returns the names of all embedded presets, sorted.
func ListEmbeddedPresets() []string {
	entries, err := EmbeddedPresets.ReadDir("presets")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), presetExt) {
			names = append(names, strings.TrimSuffix(entry.Name(), presetExt))
		}
	}
	slices.Sort(names)
	return names
}
