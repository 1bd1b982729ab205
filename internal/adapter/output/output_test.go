package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

func testDisplays() []model.Display {
	return []model.Display{
		{ID: "DP-1", Index: 0, Name: "Dell U2720Q", Bounds: model.Rect{Width: 1920, Height: 1080}, IsPrimary: true},
		{ID: "HDMI-A-1", Index: 1, Bounds: model.Rect{X: 1920, Width: 2560, Height: 1440}},
	}
}

func testLayouts() []model.Layout {
	return []model.Layout{
		{DisplayID: "DP-1", XFrac: 0.5, YFrac: 0.5, WidthFrac: 0.25, HeightFrac: 0.25, Sticker: &model.StickerRef{Name: "cat.png"}},
		{DisplayID: "HDMI-A-1", XFrac: 0.1, YFrac: 0.1, WidthFrac: 0.1, HeightFrac: 0.1},
	}
}

func testStickers() []stickers.Sticker {
	return []stickers.Sticker{
		{Name: "cat.png", Path: "/s/cat.png", Size: 2048, Width: 400, Height: 200, ModTime: time.Now().Add(-time.Hour)},
		{Name: "dog.gif", Path: "/s/dog.gif", Size: 10},
	}
}

func testStatus() dbus.Status {
	return dbus.Status{
		Version:           "1.2.3",
		Backend:           "wayland",
		Displays:          2,
		CaptureProtection: true,
		SelectionSticker:  "cat.png",
		SelectionDisplays: []string{"DP-1"},
		Layouts:           2,
		StickerDir:        "/s",
		Overlays: []dbus.OverlayInfo{
			{DisplayID: "DP-1", State: "active", CaptureProtected: true},
			{DisplayID: "HDMI-A-1", State: "failed", Reason: "no layer surface", Attempts: 3},
		},
	}
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()
	assert.IsType(t, &PlainFormatter{}, NewFormatter(FormatPlain, opts))
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON, opts))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter(FormatYAML, opts))
	assert.IsType(t, &DmenuFormatter{}, NewFormatter(FormatDmenu, opts))
	assert.IsType(t, &IDsFormatter{}, NewFormatter(FormatIDs, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter("", opts))
}

func TestPlainFormatter_Displays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).Displays(&buf, testDisplays()))

	out := lines(&buf)
	require.Len(t, out, 3)
	assert.Contains(t, out[0], "GEOMETRY")
	assert.Contains(t, out[1], "1920x1080+0+0")
	assert.Contains(t, out[1], "*")
	assert.Contains(t, out[2], "HDMI-A-1")
}

func TestPlainFormatter_LayoutsResolvePixels(t *testing.T) {
	var buf bytes.Buffer
	bounds := map[model.DisplayID]model.Rect{"DP-1": {Width: 1920, Height: 1080}}

	opts := DefaultFormatterOptions()
	opts.NoHeader = true
	require.NoError(t, NewPlainFormatter(opts).Layouts(&buf, testLayouts(), bounds))

	out := lines(&buf)
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "cat.png")
	assert.Contains(t, out[0], "480x270+960+540")
	assert.Contains(t, out[1], "-")
}

func TestPlainFormatter_StickersAndStatus(t *testing.T) {
	var buf bytes.Buffer
	f := NewPlainFormatter(DefaultFormatterOptions())

	require.NoError(t, f.Stickers(&buf, testStickers()))
	assert.Contains(t, buf.String(), "2.0 kB")
	assert.Contains(t, buf.String(), "400x200")
	assert.Contains(t, buf.String(), "1 hour ago")

	buf.Reset()
	require.NoError(t, f.Status(&buf, testStatus()))
	out := buf.String()
	assert.Contains(t, out, "stickerlayd 1.2.3 (wayland)")
	assert.Contains(t, out, "Capture protection: on")
	assert.Contains(t, out, "cat.png on DP-1")
	assert.Contains(t, out, "no layer surface (3 attempts)")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter()

	require.NoError(t, f.Layouts(&buf, testLayouts(), map[model.DisplayID]model.Rect{"DP-1": {Width: 1920, Height: 1080}}))

	var result []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	require.Len(t, result, 2)
	assert.Equal(t, "cat.png", result[0]["sticker"])
	assert.Equal(t, 0.25, result[0]["width_frac"])
	assert.NotNil(t, result[0]["pixels"])
	assert.Nil(t, result[1]["pixels"])
	assert.NotContains(t, result[1], "sticker")
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter().Status(&buf, testStatus()))

	var result map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "wayland", result["backend"])
	assert.Equal(t, true, result["capture_protection"])
	assert.Len(t, result["overlays"], 2)
}

func TestDmenuFormatter(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultFormatterOptions()
	opts.ShowIndex = true
	require.NoError(t, NewDmenuFormatter(opts).Stickers(&buf, testStickers()))

	assert.Equal(t, []string{"1 | cat.png | 400x200", "2 | dog.gif"}, lines(&buf))
}

func TestDmenuFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index}}: {{.Item.DisplayID}} {{percent .Item.WidthFrac}}"
	require.NoError(t, NewDmenuFormatter(opts).Layouts(&buf, testLayouts(), nil))

	assert.Equal(t, []string{"1: DP-1 25.0%", "2: HDMI-A-1 10.0%"}, lines(&buf))
}

func TestIDsFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewIDsFormatter()

	require.NoError(t, f.Displays(&buf, testDisplays()))
	assert.Equal(t, []string{"DP-1", "HDMI-A-1"}, lines(&buf))

	buf.Reset()
	require.NoError(t, f.Layouts(&buf, testLayouts(), nil))
	assert.Equal(t, []string{"DP-1"}, lines(&buf))

	buf.Reset()
	require.NoError(t, f.Status(&buf, testStatus()))
	assert.Equal(t, []string{"DP-1"}, lines(&buf))
}

func TestFormatters_Music(t *testing.T) {
	np := dbus.MusicInfo{
		Title:    "Haydn Cello Concerto",
		Path:     "/music/Haydn_Cello_Concerto.mp3",
		Index:    0,
		Total:    3,
		Playing:  true,
		Elapsed:  (time.Minute + 5*time.Second).Milliseconds(),
		Duration: (9*time.Minute + 30*time.Second).Milliseconds(),
	}

	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).Music(&buf, np))
	out := buf.String()
	assert.Contains(t, out, "Haydn Cello Concerto (1/3)")
	assert.Contains(t, out, "playing")
	assert.Contains(t, out, "1:05 / 9:30")

	buf.Reset()
	require.NoError(t, NewJSONFormatter().Music(&buf, np))
	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, true, result["playing"])
	assert.Equal(t, float64(65000), result["elapsed_ms"])

	buf.Reset()
	require.NoError(t, NewIDsFormatter().Music(&buf, np))
	assert.Equal(t, []string{"/music/Haydn_Cello_Concerto.mp3"}, lines(&buf))

	buf.Reset()
	require.NoError(t, NewDmenuFormatter(DefaultFormatterOptions()).Music(&buf, np))
	assert.Equal(t, []string{"Haydn Cello Concerto | playing"}, lines(&buf))

	buf.Reset()
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).Music(&buf, dbus.MusicInfo{}))
	assert.Equal(t, "Playlist is empty\n", buf.String())
}
