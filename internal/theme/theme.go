package theme

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// importRegex matches @import "file.css"; or @import 'file.css'; or @import url("file.css");
var importRegex = regexp.MustCompile(`@import\s+(?:url\s*\(\s*)?["']([^"']+)["']\s*\)?;?`)

// Stylesheet is the CSS applied to overlay windows: the base stylesheet
// followed by the user's, if any.
type Stylesheet struct {
	Path    string    // User stylesheet, empty when only the base applies
	CSS     string    // Combined CSS with imports inlined
	ModTime time.Time // Modification time of the user stylesheet
}

// LoadStylesheet loads the user stylesheet at path on top of the base
// stylesheet. An empty path yields the base stylesheet alone.
func LoadStylesheet(path string) (*Stylesheet, error) {
	s := &Stylesheet{Path: path, CSS: BaseCSS()}
	if path == "" {
		return s, nil
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// IsBase reports whether no user stylesheet is configured.
func (s *Stylesheet) IsBase() bool {
	return s.Path == ""
}

// Reload re-reads the user stylesheet if it was modified.
// Returns true if the combined CSS changed.
func (s *Stylesheet) Reload() (bool, error) {
	if s.IsBase() {
		return false, nil
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		return false, err
	}
	if !s.ModTime.IsZero() && !info.ModTime().After(s.ModTime) {
		return false, nil
	}

	s.ModTime = info.ModTime()
	return s.Rebuild()
}

// Rebuild re-reads the user stylesheet and its imports regardless of
// modification time. Returns true if the combined CSS changed.
func (s *Stylesheet) Rebuild() (bool, error) {
	if s.IsBase() {
		return false, nil
	}

	user, err := os.ReadFile(s.Path)
	if err != nil {
		return false, err
	}

	css := BaseCSS() + "\n/* user: " + filepath.Base(s.Path) + " */\n" +
		ProcessImports(string(user), filepath.Dir(s.Path), nil)

	old := s.CSS
	s.CSS = css
	return old != css, nil
}

// ProcessImports resolves and inlines @import statements in CSS.
// Imports are resolved relative to baseDir, falling back to the bundled
// partials. The seen map prevents circular imports.
func ProcessImports(css string, baseDir string, seen map[string]bool) string {
	if seen == nil {
		seen = make(map[string]bool)
	}

	return importRegex.ReplaceAllStringFunc(css, func(match string) string {
		submatch := importRegex.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		importPath := submatch[1]

		fullPath := importPath
		if !filepath.IsAbs(importPath) {
			fullPath = filepath.Join(baseDir, importPath)
		}

		if seen[fullPath] {
			return "/* circular import prevented: " + importPath + " */"
		}
		seen[fullPath] = true

		imported, err := os.ReadFile(fullPath)
		if err != nil {
			baseName := filepath.Base(importPath)
			if strings.HasPrefix(baseName, "_") {
				if embedded, found := GetEmbeddedPartial(baseName); found {
					return "/* imported (embedded): " + importPath + " */\n" + embedded
				}
			}
			return "/* import failed: " + importPath + " - " + err.Error() + " */"
		}

		return "/* imported: " + importPath + " */\n" +
			ProcessImports(string(imported), filepath.Dir(fullPath), seen)
	})
}
