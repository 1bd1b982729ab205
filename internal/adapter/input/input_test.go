package input

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/model"
)

func TestNewAdapter(t *testing.T) {
	a, err := NewAdapter("stdin", "")
	require.NoError(t, err)
	assert.Equal(t, "stdin", a.Name())

	a, err = NewAdapter("electron", "/tmp/config.json")
	require.NoError(t, err)
	assert.Equal(t, "electron", a.Name())

	_, err = NewAdapter("electron", "")
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "electron", adapterErr.Source)

	_, err = NewAdapter("bogus", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown adapter")
}

func TestElectronAdapter_PixelLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"layout": {
			"x": 960, "y": 540, "width": 480, "height": 270,
			"sticker": {"name": "cat.png", "path": "/home/u/.config/app/stickers/cat.png"}
		},
		"settings": {"alwaysOnTop": false, "theme": "dark", "startup": false, "hideStickerCapture": true}
	}`), 0o600))

	imp, err := NewElectronAdapter(path).Import(context.Background())
	require.NoError(t, err)
	require.NotNil(t, imp.Template)

	l := *imp.Template
	assert.Equal(t, model.DisplayID(""), l.DisplayID)
	assert.InDelta(t, 0.5, l.XFrac, 1e-9)
	assert.InDelta(t, 0.5, l.YFrac, 1e-9)
	assert.InDelta(t, 0.25, l.WidthFrac, 1e-9)
	assert.InDelta(t, 0.25, l.HeightFrac, 1e-9)
	assert.Equal(t, "cat.png", l.StickerName())
	assert.Equal(t, "/home/u/.config/app/stickers/cat.png", imp.StickerFiles["cat.png"])

	require.NotNil(t, imp.CaptureProtection)
	assert.True(t, *imp.CaptureProtection)
	require.NotNil(t, imp.AlwaysOnTop)
	assert.False(t, *imp.AlwaysOnTop)
	assert.Empty(t, imp.Layouts)
}

func TestElectronAdapter_Reference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"layout":{"x":100,"y":100,"width":200,"height":200,"sticker":null}}`), 0o600))

	imp, err := NewElectronAdapter(path).
		WithReference(model.Rect{Width: 1000, Height: 1000}).
		Import(context.Background())
	require.NoError(t, err)
	require.NotNil(t, imp.Template)
	assert.InDelta(t, 0.1, imp.Template.XFrac, 1e-9)
	assert.InDelta(t, 0.2, imp.Template.WidthFrac, 1e-9)
	assert.False(t, imp.Template.HasSticker())
	assert.Nil(t, imp.CaptureProtection)
}

func TestElectronAdapter_PercentLayout(t *testing.T) {
	imp, err := parseElectronStore([]byte(`{
		"layout": {"xPct": 10, "yPct": 20, "widthPct": 30, "heightPct": 40, "sticker": "dog.gif"}
	}`), model.DefaultReference)
	require.NoError(t, err)
	require.NotNil(t, imp.Template)

	assert.InDelta(t, 0.1, imp.Template.XFrac, 1e-9)
	assert.InDelta(t, 0.2, imp.Template.YFrac, 1e-9)
	assert.InDelta(t, 0.3, imp.Template.WidthFrac, 1e-9)
	assert.InDelta(t, 0.4, imp.Template.HeightFrac, 1e-9)
	assert.Equal(t, "dog.gif", imp.Template.StickerName())
	assert.Empty(t, imp.StickerFiles)
}

func TestElectronAdapter_StickerForms(t *testing.T) {
	tests := []struct {
		name     string
		sticker  string
		wantName string
		wantPath string
	}{
		{"absolute path string", `"/data/stickers/owl.webp"`, "owl.webp", "/data/stickers/owl.webp"},
		{"object with path only", `{"path": "/data/stickers/fox.png"}`, "fox.png", "/data/stickers/fox.png"},
		{"empty object", `{}`, "", ""},
		{"empty string", `""`, "", ""},
		{"number", `42`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"layout":{"x":0,"y":0,"width":100,"height":100,"sticker":` + tt.sticker + `}}`
			imp, err := parseElectronStore([]byte(doc), model.DefaultReference)
			require.NoError(t, err)
			require.NotNil(t, imp.Template)
			assert.Equal(t, tt.wantName, imp.Template.StickerName())
			assert.Equal(t, tt.wantPath, imp.StickerFiles[tt.wantName])
		})
	}
}

func TestElectronAdapter_Errors(t *testing.T) {
	_, err := NewElectronAdapter(filepath.Join(t.TempDir(), "missing.json")).Import(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = parseElectronStore([]byte(`{not json`), model.DefaultReference)
	require.Error(t, err)

	imp, err := parseElectronStore([]byte(`{"layout":{}}`), model.DefaultReference)
	require.NoError(t, err)
	assert.True(t, imp.Empty())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewElectronAdapter("/nonexistent").Import(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStdinAdapter_LayoutMap(t *testing.T) {
	input := `{
		"DP-1": {"xFrac": 0.1, "yFrac": 0.2, "widthFrac": 0.3, "heightFrac": 0.4, "stickerName": "cat.png"},
		"HDMI-A-1": {"x": 192, "y": 108, "width": 384, "height": 216},
		"eDP-1": {"stickerName": "ignored.png"}
	}`

	imp, err := NewStdinAdapterWithReader(strings.NewReader(input)).Import(context.Background())
	require.NoError(t, err)
	require.Len(t, imp.Layouts, 2)
	assert.Nil(t, imp.Template)

	dp := imp.Layouts["DP-1"]
	assert.Equal(t, model.DisplayID("DP-1"), dp.DisplayID)
	assert.InDelta(t, 0.3, dp.WidthFrac, 1e-9)
	assert.Equal(t, "cat.png", dp.StickerName())

	hdmi := imp.Layouts["HDMI-A-1"]
	assert.InDelta(t, 0.1, hdmi.XFrac, 1e-9)
	assert.InDelta(t, 0.1, hdmi.YFrac, 1e-9)
	assert.InDelta(t, 0.2, hdmi.WidthFrac, 1e-9)
	assert.InDelta(t, 0.2, hdmi.HeightFrac, 1e-9)
	assert.False(t, hdmi.HasSticker())
}

func TestStdinAdapter_ElectronDocument(t *testing.T) {
	input := `{"settings": {"hideStickerCapture": false}}`

	imp, err := NewStdinAdapterWithReader(strings.NewReader(input)).Import(context.Background())
	require.NoError(t, err)
	require.NotNil(t, imp.CaptureProtection)
	assert.False(t, *imp.CaptureProtection)
	assert.Nil(t, imp.Template)
}

func TestStdinAdapter_EmptyAndInvalid(t *testing.T) {
	imp, err := NewStdinAdapterWithReader(strings.NewReader("")).Import(context.Background())
	require.NoError(t, err)
	assert.True(t, imp.Empty())

	_, err = NewStdinAdapterWithReader(strings.NewReader(`[1, 2]`)).Import(context.Background())
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, "stdin", adapterErr.Source)

	_, err = NewStdinAdapterWithReader(strings.NewReader(`{"DP-1": "wide"}`)).Import(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DP-1")
}
