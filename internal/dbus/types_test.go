package dbus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

func TestToError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"enumeration", fmt.Errorf("list: %w", display.ErrEnumeration), ErrorEnumeration},
		{"unknown display", fmt.Errorf("%w: DP-9", display.ErrUnknownDisplay), ErrorUnknownDisplay},
		{"not found", stickers.ErrNotFound, ErrorStickerNotFound},
		{"exists", stickers.ErrExists, ErrorStickerExists},
		{"invalid name", stickers.ErrInvalidName, ErrorInvalidName},
		{"unsupported type", fmt.Errorf("%w: a.png is text/plain", stickers.ErrUnsupportedType), ErrorUnsupportedType},
		{"music disabled", audio.ErrDisabled, ErrorMusicDisabled},
		{"empty playlist", audio.ErrEmptyPlaylist, ErrorEmptyPlaylist},
		{"other", errors.New("disk full"), ErrorFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dErr := ToError(tt.err)
			require.NotNil(t, dErr)
			assert.Equal(t, tt.expected, dErr.Name)
			assert.Equal(t, tt.err.Error(), dErr.Error())
		})
	}

	assert.Nil(t, ToError(nil))
}

func TestFromError_RoundTrip(t *testing.T) {
	original := fmt.Errorf("%w: DP-9", display.ErrUnknownDisplay)
	remote := *ToError(original)

	err := FromError(remote)
	require.Error(t, err)
	assert.ErrorIs(t, err, display.ErrUnknownDisplay)
	assert.Equal(t, original.Error(), err.Error())

	// Pointer form, as returned by some godbus paths.
	err = FromError(ToError(stickers.ErrNotFound))
	assert.ErrorIs(t, err, stickers.ErrNotFound)
}

func TestFromError_UnknownName(t *testing.T) {
	err := FromError(dbus.Error{Name: "org.example.Boom", Body: []any{"boom"}})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.NotErrorIs(t, err, display.ErrEnumeration)

	plain := errors.New("plain")
	assert.Same(t, plain, FromError(plain))
	assert.NoError(t, FromError(nil))
}

func TestDisplayInfo_RoundTrip(t *testing.T) {
	d := model.Display{
		ID:        "DP-2",
		Index:     1,
		Name:      "Dell U2720Q",
		Bounds:    model.Rect{X: 1920, Y: 0, Width: 2560, Height: 1440},
		IsPrimary: true,
	}
	assert.Equal(t, d, DisplayInfoFrom(d).Model())
}

func TestLayoutInfo_StickerMapping(t *testing.T) {
	empty := model.Layout{DisplayID: "A", XFrac: 0.1, YFrac: 0.2, WidthFrac: 0.3, HeightFrac: 0.4}
	info := LayoutInfoFrom(empty)
	assert.Empty(t, info.Sticker)
	assert.Nil(t, info.Model().Sticker)

	active := empty.WithSticker(&model.StickerRef{Name: "cat.png", Path: "/x/cat.png"})
	back := LayoutInfoFrom(active).Model()
	require.NotNil(t, back.Sticker)
	assert.Equal(t, "cat.png", back.Sticker.Name)
	assert.True(t, back.Equal(active))
}

func TestLayoutInfos_SortedByDisplay(t *testing.T) {
	layouts := map[model.DisplayID]model.Layout{
		"C": {DisplayID: "C"},
		"A": {DisplayID: "A"},
		"B": {DisplayID: "B"},
	}
	infos := LayoutInfos(layouts)
	require.Len(t, infos, 3)
	assert.Equal(t, "A", infos[0].DisplayID)
	assert.Equal(t, "C", infos[2].DisplayID)
	assert.Equal(t, layouts, LayoutMap(infos))
}

func TestStickerInfo_RoundTrip(t *testing.T) {
	s := stickers.Sticker{
		Name:    "cat.png",
		Path:    "/stickers/cat.png",
		Size:    2048,
		ModTime: time.Unix(1700000000, 0),
		Width:   320,
		Height:  200,
	}
	assert.Equal(t, s, StickerInfoFrom(s).Model())
}

func TestMusicInfo_RoundTrip(t *testing.T) {
	np := audio.NowPlaying{
		Title:    "Haydn Cello Concerto",
		Path:     "/music/Haydn_Cello_Concerto.mp3",
		Index:    1,
		Total:    3,
		Playing:  true,
		Elapsed:  95 * time.Second,
		Duration: 6 * time.Minute,
	}
	info := MusicInfoFrom(np)
	assert.Equal(t, int64(95000), info.Elapsed)
	assert.Equal(t, np, info.Model())
}

func TestReconcileInfoFrom(t *testing.T) {
	info := ReconcileInfoFrom(display.ReconcileResult{
		Created: []model.DisplayID{"A"},
		Removed: []model.DisplayID{"B"},
		Failed:  map[model.DisplayID]error{"C": errors.New("no surface")},
	})
	assert.Equal(t, []string{"A"}, info.Created)
	assert.Equal(t, []string{"B"}, info.Removed)
	assert.Empty(t, info.Moved)
	assert.Equal(t, map[string]string{"C": "no surface"}, info.Failed)
}

func TestNotificationHints(t *testing.T) {
	n := &Notification{}
	assert.Equal(t, 1, n.Urgency())
	assert.False(t, n.Transient())

	n.Hints = map[string]dbus.Variant{
		"urgency":   dbus.MakeVariant(byte(2)),
		"transient": dbus.MakeVariant(true),
	}
	assert.Equal(t, 2, n.Urgency())
	assert.True(t, n.Transient())
}

func TestParseLayoutSignal(t *testing.T) {
	l := model.Layout{DisplayID: "A", XFrac: 0.1, YFrac: 0.1, WidthFrac: 0.2, HeightFrac: 0.2}
	sig := &dbus.Signal{
		Name: ServiceInterface + ".LayoutChanged",
		Body: []any{LayoutInfoFrom(l), "01HXYZ"},
	}
	got, ok := parseLayoutSignal(sig)
	require.True(t, ok)
	assert.Equal(t, "01HXYZ", got.UpdateID)
	assert.True(t, got.Layout.Equal(l))

	_, ok = parseLayoutSignal(&dbus.Signal{Name: ServiceInterface + ".DisplaysChanged", Body: []any{int32(2)}})
	assert.False(t, ok)
}
