package dbus

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// fakeController records calls made through the control interface.
type fakeController struct {
	displays    []model.Display
	listErr     error
	layouts     map[model.DisplayID]model.Layout
	captureID   *model.DisplayID
	captureOn   bool
	placement   [4]float64
	lockAspect  bool
	selectedIDs []model.DisplayID
	musicErr    error
	music       audio.NowPlaying
}

func (f *fakeController) ListDisplays(context.Context) ([]model.Display, error) {
	return f.displays, f.listErr
}

func (f *fakeController) PreviewDisplay(_ context.Context, id model.DisplayID) (model.Display, bool, error) {
	for _, d := range f.displays {
		if d.ID == id {
			return d, false, nil
		}
	}
	return f.displays[0], true, nil
}

func (f *fakeController) GetLayout(id model.DisplayID) model.Layout {
	if l, ok := f.layouts[id]; ok {
		return l
	}
	return model.DefaultLayout(id, model.Rect{Width: 1920, Height: 1080}, model.DefaultSeed)
}

func (f *fakeController) GetLayouts() map[model.DisplayID]model.Layout { return f.layouts }

func (f *fakeController) SetSticker(name string, id model.DisplayID, _ bool) (model.Layout, error) {
	l := f.layouts[id].WithSticker(&model.StickerRef{Name: name})
	f.layouts[id] = l
	return l, nil
}

func (f *fakeController) SetStickerForDisplays(name string, ids []model.DisplayID) (map[model.DisplayID]model.Layout, error) {
	f.selectedIDs = ids
	out := make(map[model.DisplayID]model.Layout)
	for _, id := range ids {
		out[id] = f.layouts[id].WithSticker(&model.StickerRef{Name: name})
	}
	return out, nil
}

func (f *fakeController) UpdatePlacement(id model.DisplayID, x, y, w, h float64, lock bool) (model.Layout, error) {
	f.placement = [4]float64{x, y, w, h}
	f.lockAspect = lock
	return f.layouts[id], nil
}

func (f *fakeController) ClearSticker(string) (int, error)  { return 2, nil }
func (f *fakeController) DeleteSticker(string) (int, error) { return 0, stickers.ErrNotFound }
func (f *fakeController) RenameSticker(_, newName string) (stickers.Sticker, error) {
	return stickers.Sticker{Name: newName}, nil
}
func (f *fakeController) ImportSticker(_, name string) (stickers.Sticker, error) {
	return stickers.Sticker{Name: name}, nil
}
func (f *fakeController) ListStickers() ([]stickers.Sticker, error) {
	return []stickers.Sticker{{Name: "cat.png"}}, nil
}

func (f *fakeController) SetCaptureProtection(id *model.DisplayID, enabled bool) (bool, error) {
	f.captureID = id
	f.captureOn = enabled
	return true, nil
}

func (f *fakeController) Reconcile(context.Context) (display.ReconcileResult, error) {
	return display.ReconcileResult{Created: []model.DisplayID{"A"}}, nil
}

func (f *fakeController) Status() Status { return Status{Version: "test", Displays: int32(len(f.displays))} }

func (f *fakeController) musicStep(playing bool, delta int) (audio.NowPlaying, error) {
	if f.musicErr != nil {
		return audio.NowPlaying{}, f.musicErr
	}
	f.music.Playing = playing
	f.music.Index = (f.music.Index + delta + f.music.Total) % f.music.Total
	return f.music, nil
}

func (f *fakeController) MusicPlay() (audio.NowPlaying, error)     { return f.musicStep(true, 0) }
func (f *fakeController) MusicPause() (audio.NowPlaying, error)    { return f.musicStep(false, 0) }
func (f *fakeController) MusicToggle() (audio.NowPlaying, error)   { return f.musicStep(!f.music.Playing, 0) }
func (f *fakeController) MusicNext() (audio.NowPlaying, error)     { return f.musicStep(true, 1) }
func (f *fakeController) MusicPrevious() (audio.NowPlaying, error) { return f.musicStep(true, -1) }
func (f *fakeController) NowPlaying() (audio.NowPlaying, error)    { return f.musicStep(f.music.Playing, 0) }

func newFakeController() *fakeController {
	return &fakeController{
		displays: []model.Display{
			{ID: "A", Bounds: model.Rect{Width: 1920, Height: 1080}, IsPrimary: true},
			{ID: "B", Index: 1, Bounds: model.Rect{X: 1920, Width: 2560, Height: 1440}},
		},
		layouts: map[model.DisplayID]model.Layout{
			"A": {DisplayID: "A", WidthFrac: 0.1, HeightFrac: 0.1},
			"B": {DisplayID: "B", WidthFrac: 0.1, HeightFrac: 0.1},
		},
		music: audio.NowPlaying{Title: "Haydn", Total: 3},
	}
}

func TestControlServer_ListDisplays(t *testing.T) {
	ctrl := newFakeController()
	s := NewControlServer(ctrl, nil)

	infos, dErr := s.ListDisplays()
	require.Nil(t, dErr)
	require.Len(t, infos, 2)
	assert.Equal(t, "A", infos[0].ID)
	assert.True(t, infos[0].Primary)

	ctrl.listErr = display.ErrEnumeration
	_, dErr = s.ListDisplays()
	require.NotNil(t, dErr)
	assert.Equal(t, ErrorEnumeration, dErr.Name)
}

func TestControlServer_PreviewFallback(t *testing.T) {
	s := NewControlServer(newFakeController(), nil)

	info, fallback, dErr := s.PreviewDisplay("missing")
	require.Nil(t, dErr)
	assert.True(t, fallback)
	assert.Equal(t, "A", info.ID)
}

func TestControlServer_GetLayoutUnseenReturnsDefault(t *testing.T) {
	s := NewControlServer(newFakeController(), nil)

	info, dErr := s.GetLayout("Z")
	require.Nil(t, dErr)
	assert.Equal(t, "Z", info.DisplayID)
	assert.Empty(t, info.Sticker)
	assert.Greater(t, info.WidthFrac, 0.0)
}

func TestControlServer_SetCaptureProtectionEmptyIDMeansAll(t *testing.T) {
	ctrl := newFakeController()
	s := NewControlServer(ctrl, nil)

	ok, dErr := s.SetCaptureProtection("", false)
	require.Nil(t, dErr)
	assert.True(t, ok)
	assert.Nil(t, ctrl.captureID)
	assert.False(t, ctrl.captureOn)

	_, dErr = s.SetCaptureProtection("B", true)
	require.Nil(t, dErr)
	require.NotNil(t, ctrl.captureID)
	assert.Equal(t, model.DisplayID("B"), *ctrl.captureID)
}

func TestControlServer_UpdatePlacementPassesRawValues(t *testing.T) {
	ctrl := newFakeController()
	s := NewControlServer(ctrl, nil)

	_, dErr := s.UpdatePlacement("A", math.NaN(), 0.2, 0.3, 0.4, true)
	require.Nil(t, dErr)
	assert.True(t, math.IsNaN(ctrl.placement[0]))
	assert.Equal(t, 0.2, ctrl.placement[1])
	assert.True(t, ctrl.lockAspect)
}

func TestControlServer_SetStickerForDisplays(t *testing.T) {
	ctrl := newFakeController()
	s := NewControlServer(ctrl, nil)

	infos, dErr := s.SetStickerForDisplays("cat.png", []string{"B", "A"})
	require.Nil(t, dErr)
	assert.Equal(t, []model.DisplayID{"B", "A"}, ctrl.selectedIDs)
	require.Len(t, infos, 2)
	assert.Equal(t, "A", infos[0].DisplayID)
	assert.Equal(t, "cat.png", infos[1].Sticker)
}

func TestControlServer_StickerErrors(t *testing.T) {
	s := NewControlServer(newFakeController(), nil)

	n, dErr := s.ClearSticker("cat.png")
	assert.Nil(t, dErr)
	assert.Equal(t, int32(2), n)

	_, dErr = s.DeleteSticker("ghost.png")
	require.NotNil(t, dErr)
	assert.Equal(t, ErrorStickerNotFound, dErr.Name)
}

func TestControlServer_EmitWithoutConnection(t *testing.T) {
	s := NewControlServer(newFakeController(), nil)
	assert.Error(t, s.EmitDisplaysChanged(2))
	assert.Error(t, s.EmitLayoutChanged(model.Layout{DisplayID: "A"}, "x"))
}

func TestControlServer_Music(t *testing.T) {
	ctrl := newFakeController()
	s := NewControlServer(ctrl, nil)

	info, dErr := s.MusicPlay()
	require.Nil(t, dErr)
	assert.True(t, info.Playing)
	assert.Equal(t, "Haydn", info.Title)

	info, dErr = s.MusicPrevious()
	require.Nil(t, dErr)
	assert.Equal(t, int32(2), info.Index)

	info, dErr = s.MusicNext()
	require.Nil(t, dErr)
	assert.Equal(t, int32(0), info.Index)

	info, dErr = s.MusicToggle()
	require.Nil(t, dErr)
	assert.False(t, info.Playing)

	info, dErr = s.NowPlaying()
	require.Nil(t, dErr)
	assert.Equal(t, int32(3), info.Total)
}

func TestControlServer_MusicDisabled(t *testing.T) {
	ctrl := newFakeController()
	ctrl.musicErr = audio.ErrDisabled
	s := NewControlServer(ctrl, nil)

	_, dErr := s.MusicPause()
	require.NotNil(t, dErr)
	assert.Equal(t, ErrorMusicDisabled, dErr.Name)
}
