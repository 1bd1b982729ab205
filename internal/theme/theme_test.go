package theme

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSS(t *testing.T, path, css string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(css), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestBaseCSS(t *testing.T) {
	css := BaseCSS()
	assert.Contains(t, css, "window.stickerlay-overlay")
	assert.Contains(t, css, "transparent")

	_, ok := GetEmbeddedStyle("missing")
	assert.False(t, ok)
	assert.Contains(t, ListEmbeddedPartials(), "_debug.css")
}

func TestProcessImports(t *testing.T) {
	dir := t.TempDir()
	writeCSS(t, filepath.Join(dir, "_grandchild.css"), `.grandchild { color: blue; }`, time.Now())
	writeCSS(t, filepath.Join(dir, "_child.css"), "@import \"_grandchild.css\";\n.child { color: green; }", time.Now())

	result := ProcessImports("@import \"_child.css\";\n.sticker { opacity: 0.8; }", dir, nil)
	assert.Contains(t, result, "/* imported: _child.css */")
	assert.Contains(t, result, "/* imported: _grandchild.css */")
	assert.Contains(t, result, ".sticker { opacity: 0.8; }")
}

func TestProcessImports_CircularPrevention(t *testing.T) {
	dir := t.TempDir()
	writeCSS(t, filepath.Join(dir, "_a.css"), "@import \"_b.css\";\n.a {}", time.Now())
	writeCSS(t, filepath.Join(dir, "_b.css"), "@import \"_a.css\";\n.b {}", time.Now())

	result := ProcessImports(`@import "_a.css";`, dir, nil)
	assert.Contains(t, result, "/* imported: _b.css */")
	assert.Contains(t, result, "/* circular import prevented: _a.css */")
}

func TestProcessImports_EmbeddedPartialAndMissing(t *testing.T) {
	result := ProcessImports(`@import "_debug.css";`, t.TempDir(), nil)
	assert.Contains(t, result, "/* imported (embedded): _debug.css */")
	assert.Contains(t, result, "dashed")

	result = ProcessImports(`@import "nonexistent.css";`, t.TempDir(), nil)
	assert.Contains(t, result, "/* import failed: nonexistent.css")
}

func TestImportRegex(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`@import "file.css";`, "file.css"},
		{`@import 'file.css';`, "file.css"},
		{`@import url("file.css");`, "file.css"},
		{`@import url( "file.css" );`, "file.css"},
		{`@import "_partial.css"`, "_partial.css"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			matches := importRegex.FindStringSubmatch(tt.input)
			require.Len(t, matches, 2)
			assert.Equal(t, tt.expected, matches[1])
		})
	}
}

func TestLoadStylesheet(t *testing.T) {
	base, err := LoadStylesheet("")
	require.NoError(t, err)
	assert.True(t, base.IsBase())
	assert.Equal(t, BaseCSS(), base.CSS)

	changed, err := base.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	path := filepath.Join(t.TempDir(), "overlay.css")
	writeCSS(t, path, `.sticker { opacity: 0.5; }`, time.Now().Add(-time.Hour))

	sheet, err := LoadStylesheet(path)
	require.NoError(t, err)
	assert.False(t, sheet.IsBase())
	assert.Contains(t, sheet.CSS, "window.stickerlay-overlay")
	assert.Contains(t, sheet.CSS, "opacity: 0.5")

	_, err = LoadStylesheet(filepath.Join(t.TempDir(), "missing.css"))
	assert.Error(t, err)
}

func TestStylesheet_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.css")
	base := time.Now().Add(-time.Hour)
	writeCSS(t, path, `.sticker { opacity: 0.5; }`, base)

	sheet, err := LoadStylesheet(path)
	require.NoError(t, err)

	changed, err := sheet.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "unchanged mtime")

	writeCSS(t, path, `.sticker { opacity: 0.9; }`, base.Add(time.Minute))
	changed, err = sheet.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, sheet.CSS, "opacity: 0.9")
}

func TestWatcher_ReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.css")
	base := time.Now().Add(-time.Hour)
	writeCSS(t, path, `.sticker { opacity: 0.5; }`, base)

	sheet, err := LoadStylesheet(path)
	require.NoError(t, err)

	w := NewWatcher(sheet, nil)
	w.SetDebounce(10 * time.Millisecond)

	var mu sync.Mutex
	var got string
	w.SetChangeCallback(func(css string) {
		mu.Lock()
		defer mu.Unlock()
		got = css
	})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.True(t, w.IsRunning())

	writeCSS(t, path, `.sticker { opacity: 0.25; }`, base.Add(time.Minute))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != ""
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, got, "opacity: 0.25")
	mu.Unlock()
}

func TestWatcher_ReloadsOnImportedPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.css")
	partial := filepath.Join(dir, "colours.css")
	base := time.Now().Add(-time.Hour)
	writeCSS(t, partial, `.sticker { color: red; }`, base)
	writeCSS(t, path, `@import "colours.css";`, base)

	sheet, err := LoadStylesheet(path)
	require.NoError(t, err)
	require.Contains(t, sheet.CSS, "color: red")

	w := NewWatcher(sheet, nil)
	w.SetDebounce(10 * time.Millisecond)

	changes := make(chan string, 4)
	w.SetChangeCallback(func(css string) { changes <- css })
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(partial, []byte(`.sticker { color: blue; }`), 0o644))

	select {
	case css := <-changes:
		assert.Contains(t, css, "color: blue")
	case <-time.After(2 * time.Second):
		t.Fatal("partial edit was not picked up")
	}
}

func TestWatcher_BaseIsNotWatched(t *testing.T) {
	sheet, err := LoadStylesheet("")
	require.NoError(t, err)

	w := NewWatcher(sheet, nil)
	require.NoError(t, w.Start(context.Background()))
	assert.False(t, w.IsRunning())
	w.Stop()
}
