package theme

import (
	"embed"
	"io/fs"
	"path/filepath"
	"strings"
)

// EmbeddedStyles contains the bundled stylesheets.
//
//go:embed styles/*.css
var EmbeddedStyles embed.FS

// BaseStylesheet is the name of the stylesheet every overlay gets.
const BaseStylesheet = "overlay"

// BaseCSS returns the embedded base stylesheet.
func BaseCSS() string {
	css, _ := GetEmbeddedStyle(BaseStylesheet)
	return css
}

// GetEmbeddedStyle retrieves a bundled stylesheet by name.
func GetEmbeddedStyle(name string) (string, bool) {
	data, err := EmbeddedStyles.ReadFile("styles/" + name + ".css")
	if err != nil {
		return "", false
	}
	return string(data), true
}

// GetEmbeddedPartial retrieves a bundled partial (files starting with _).
func GetEmbeddedPartial(name string) (string, bool) {
	if !strings.HasPrefix(name, "_") {
		name = "_" + name
	}
	if !strings.HasSuffix(name, ".css") {
		name = name + ".css"
	}
	data, err := EmbeddedStyles.ReadFile("styles/" + name)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// ListEmbeddedPartials returns the names of the bundled partials that user
// stylesheets can import.
func ListEmbeddedPartials() []string {
	entries, err := fs.ReadDir(EmbeddedStyles, "styles")
	if err != nil {
		return nil
	}

	var partials []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "_") || filepath.Ext(name) != ".css" {
			continue
		}
		partials = append(partials, name)
	}
	return partials
}
