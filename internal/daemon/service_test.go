package daemon

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/stickerlay/internal/broadcast"
	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/display/displaytest"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
	"github.com/jmylchreest/stickerlay/internal/store"
)

// memState keeps the shared state in memory.
type memState struct {
	mu    sync.Mutex
	state *store.SharedState
}

func (m *memState) Load() (*store.SharedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return store.DefaultSharedState(), nil
	}
	cp := *m.state
	return &cp, nil
}

func (m *memState) Save(s *store.SharedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.state = &cp
	return nil
}

type serviceFixture struct {
	svc     *Service
	source  *displaytest.Source
	factory *displaytest.Factory
	library *stickers.Library
	state   *memState

	mu            sync.Mutex
	notifications []*dbus.Notification
}

func writeSticker(t *testing.T, lib *stickers.Library, name string, w, h int) {
	t.Helper()
	f, err := os.Create(filepath.Join(lib.Dir(), name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

func newServiceFixture(t *testing.T, cfg *config.DaemonConfig, persistence store.Persistence) *serviceFixture {
	t.Helper()

	lib, err := stickers.NewLibrary(filepath.Join(t.TempDir(), "stickers"), nil)
	require.NoError(t, err)
	writeSticker(t, lib, "cat.png", 100, 100)
	writeSticker(t, lib, "wide.png", 400, 200)

	f := &serviceFixture{
		source: displaytest.NewSource(
			displaytest.Monitor("A", 0, 1920, 1080),
			displaytest.Monitor("B", 1920, 2560, 1440),
		),
		factory: displaytest.NewFactory(),
		library: lib,
		state:   &memState{},
	}

	f.svc, err = NewService(cfg, Deps{
		Source:      f.source,
		Factory:     f.factory,
		Persistence: persistence,
		State:       f.state,
		Library:     lib,
		Backend:     "test",
		Version:     "0.0.0-test",
	})
	require.NoError(t, err)
	f.svc.Notifier().SetNotifyHandler(func(n *dbus.Notification) (uint32, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.notifications = append(f.notifications, n)
		return uint32(len(f.notifications)), nil
	})
	t.Cleanup(func() { _ = f.svc.Close() })
	return f
}

func (f *serviceFixture) summaries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.notifications {
		out = append(out, n.Summary)
	}
	return out
}

func (f *serviceFixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.Start(context.Background()))
}

func TestService_StartReconcilesAndSeeds(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	assert.Equal(t, 2, f.factory.Created())
	layouts := f.svc.GetLayouts()
	require.Len(t, layouts, 2)
	assert.False(t, layouts["A"].HasSticker())

	st := f.svc.Status()
	assert.Equal(t, int32(2), st.Displays)
	assert.Equal(t, "test", st.Backend)
	require.Len(t, st.Overlays, 2)
	assert.Equal(t, "active", st.Overlays[0].State)
	assert.True(t, st.Overlays[0].CaptureProtected)
	assert.True(t, st.CaptureProtection)
}

func TestService_StartFailsOnEnumeration(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.source.Fail(errors.New("no outputs"))

	err := f.svc.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, display.ErrEnumeration)
	assert.Equal(t, 0, f.factory.Created())
	assert.Contains(t, f.summaries(), "Display Detection Failed")
}

func TestService_SetStickerKeepAspect(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	l, err := f.svc.SetSticker("wide.png", "A", true)
	require.NoError(t, err)
	assert.Equal(t, "wide.png", l.StickerName())

	px := l.Resolve(model.Rect{Width: 1920, Height: 1080})
	assert.Equal(t, 200, px.Width)
	assert.Equal(t, 100, px.Height)

	frame, ok := f.factory.Window("A").LastFrame()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.library.Dir(), "wide.png"), frame.ImagePath)
}

func TestService_RejectsUnknownDisplayAndSticker(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	_, err := f.svc.SetSticker("cat.png", "Z", false)
	assert.ErrorIs(t, err, display.ErrUnknownDisplay)

	unseen := f.svc.GetLayout("Z")
	assert.Equal(t, model.DisplayID("Z"), unseen.DisplayID)
	assert.False(t, unseen.HasSticker())
	assert.NotContains(t, f.svc.GetLayouts(), model.DisplayID("Z"))

	_, err = f.svc.SetStickerForDisplays("cat.png", []model.DisplayID{"A", "Z"})
	assert.ErrorIs(t, err, display.ErrUnknownDisplay)
	assert.False(t, f.svc.GetLayouts()["A"].HasSticker())

	_, err = f.svc.SetSticker("ghost.png", "A", false)
	assert.ErrorIs(t, err, stickers.ErrNotFound)
}

func TestService_DeleteStickerRetractsEverywhere(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	_, err := f.svc.SetStickerForDisplays("cat.png", []model.DisplayID{"A", "B"})
	require.NoError(t, err)

	n, err := f.svc.DeleteSticker("cat.png")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoFileExists(t, filepath.Join(f.library.Dir(), "cat.png"))

	for _, id := range []model.DisplayID{"A", "B"} {
		l := f.svc.GetLayout(id)
		assert.False(t, l.HasSticker(), id)
		frame, ok := f.factory.Window(id).LastFrame()
		require.True(t, ok)
		assert.True(t, frame.Empty(), id)
	}
	assert.Empty(t, f.svc.Status().SelectionSticker)
}

func TestService_RenameKeepsDisplaysActive(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	_, err := f.svc.SetSticker("cat.png", "A", false)
	require.NoError(t, err)

	st, err := f.svc.RenameSticker("cat.png", "kitty")
	require.NoError(t, err)
	assert.Equal(t, "kitty.png", st.Name)

	l := f.svc.GetLayout("A")
	assert.Equal(t, "kitty.png", l.StickerName())

	frame, ok := f.factory.Window("A").LastFrame()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.library.Dir(), "kitty.png"), frame.ImagePath)
}

func TestService_StickerRemovedOnDisk(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	_, err := f.svc.SetSticker("cat.png", "A", false)
	require.NoError(t, err)

	// Still on disk: the event is stale and ignored.
	f.svc.HandleStickerEvent(stickers.Event{Type: stickers.EventRemoved, Name: "cat.png"})
	assert.True(t, f.svc.GetLayouts()["A"].HasSticker())

	require.NoError(t, os.Remove(filepath.Join(f.library.Dir(), "cat.png")))
	f.svc.HandleStickerEvent(stickers.Event{Type: stickers.EventRemoved, Name: "cat.png"})
	assert.False(t, f.svc.GetLayouts()["A"].HasSticker())
}

func TestService_StickerRewrittenOnDiskIsReapplied(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	_, err := f.svc.SetSticker("cat.png", "B", false)
	require.NoError(t, err)
	beforeA := len(f.factory.Window("A").Frames())
	beforeB := len(f.factory.Window("B").Frames())

	f.svc.HandleStickerEvent(stickers.Event{Type: stickers.EventChanged, Name: "cat.png"})
	assert.Len(t, f.factory.Window("B").Frames(), beforeB+1)
	assert.Len(t, f.factory.Window("A").Frames(), beforeA)
}

func TestService_OrphanLayoutRestoredOnReplug(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	_, err := f.svc.SetSticker("cat.png", "B", false)
	require.NoError(t, err)
	_, err = f.svc.UpdatePlacement("B", 0.5, 0.5, 0.25, 0.25, false)
	require.NoError(t, err)

	f.source.Set(displaytest.Monitor("A", 0, 1920, 1080))
	res, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.DisplayID{"B"}, res.Removed)

	// The layout outlives its display.
	l := f.svc.GetLayout("B")
	assert.Equal(t, "cat.png", l.StickerName())

	f.source.Set(
		displaytest.Monitor("A", 0, 1920, 1080),
		displaytest.Monitor("B", 1920, 2560, 1440),
	)
	res, err = f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.DisplayID{"B"}, res.Created)

	frame, ok := f.factory.Window("B").LastFrame()
	require.True(t, ok)
	assert.Equal(t, model.Rect{X: 1280, Y: 720, Width: 640, Height: 360}, frame.Target)
}

func TestService_WindowCreationFailureIsReported(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.factory.FailFor("B", errors.New("no layer surface"))
	f.start(t)

	assert.Equal(t, 1, f.factory.Created())
	assert.Contains(t, f.summaries(), "Overlay Unavailable")

	st, ok := f.svc.tracker.Get("B")
	require.True(t, ok)
	assert.Equal(t, OverlayStatusFailed, st.Status)
	assert.Equal(t, 1, st.Attempts)
	assert.Contains(t, st.Reason, "no layer surface")

	f.factory.FailFor("B", nil)
	res, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.DisplayID{"B"}, res.Created)

	st, _ = f.svc.tracker.Get("B")
	assert.Equal(t, OverlayStatusActive, st.Status)
	assert.Zero(t, st.Attempts)
}

func TestService_CaptureProtectionPersists(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	ok, err := f.svc.SetCaptureProtection(nil, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.factory.Window("A").CaptureProtected())
	assert.False(t, f.factory.Window("B").CaptureProtected())

	saved, err := f.state.Load()
	require.NoError(t, err)
	assert.False(t, saved.CaptureProtection)
	require.NotNil(t, saved.CaptureLastTransition)

	stale := model.DisplayID("Z")
	ok, err = f.svc.SetCaptureProtection(&stale, true)
	require.NoError(t, err)
	assert.False(t, ok)

	// A restarted daemon keeps the global toggle.
	assert.False(t, captureDefault(config.DefaultDaemonConfig(), f.state))
}

func TestService_ApplyConfig(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	cfg := config.DefaultDaemonConfig()
	cfg.Overlay.CaptureProtection = false
	cfg.Layout.MinSize = 100
	f.svc.ApplyConfig(cfg)

	assert.False(t, f.factory.Window("A").CaptureProtected())

	l, err := f.svc.UpdatePlacement("A", 0, 0, 0.001, 0.001, false)
	require.NoError(t, err)
	px := l.Resolve(model.Rect{Width: 1920, Height: 1080})
	assert.Equal(t, 100, px.Width)
	assert.Equal(t, 100, px.Height)
}

func TestService_LayoutChangedCallback(t *testing.T) {
	f := newServiceFixture(t, nil, nil)
	f.start(t)

	var updates []broadcast.Update
	f.svc.OnLayoutChanged(func(u broadcast.Update) { updates = append(updates, u) })

	_, err := f.svc.SetStickerForDisplays("cat.png", []model.DisplayID{"B", "A"})
	require.NoError(t, err)

	require.Len(t, updates, 2)
	assert.Equal(t, model.DisplayID("A"), updates[0].DisplayID)
	assert.Equal(t, updates[0].ID, updates[1].ID)
	assert.Equal(t, updates[0].ID, f.svc.Status().LastUpdateID)
	assert.Equal(t, []string{"A", "B"}, f.svc.Status().SelectionDisplays)
}

func TestService_ExternalLayoutEditIsRendered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.json")
	p, err := store.NewFilePersistence(path, model.DefaultReference, nil)
	require.NoError(t, err)

	f := newServiceFixture(t, nil, p)
	f.start(t)

	// Another writer replaces the file.
	other, err := store.NewFilePersistence(path, model.DefaultReference, nil)
	require.NoError(t, err)
	edited := f.svc.GetLayouts()
	a := edited["A"].WithPlacement(0.5, 0.5, 0.25, 0.25).WithSticker(&model.StickerRef{Name: "cat.png"})
	edited["A"] = a
	require.NoError(t, other.Save(edited))

	require.NoError(t, f.svc.Store().Hydrate())

	assert.Eventually(t, func() bool {
		frame, ok := f.factory.Window("A").LastFrame()
		return ok && frame.Target == model.Rect{X: 960, Y: 540, Width: 480, Height: 270}
	}, time.Second, 10*time.Millisecond)
}

func TestService_RunOnUIIsUsedForReconcile(t *testing.T) {
	lib, err := stickers.NewLibrary(t.TempDir(), nil)
	require.NoError(t, err)

	var calls int
	svc, err := NewService(nil, Deps{
		Source:  displaytest.NewSource(displaytest.Monitor("A", 0, 1920, 1080)),
		Factory: displaytest.NewFactory(),
		Library: lib,
		RunOnUI: func(fn func()) {
			calls++
			go fn()
		},
	})
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked, err := NewService(nil, Deps{
		Source:  displaytest.NewSource(displaytest.Monitor("A", 0, 1920, 1080)),
		Factory: displaytest.NewFactory(),
		Library: lib,
		RunOnUI: func(func()) {}, // never runs
	})
	require.NoError(t, err)
	defer blocked.Close()
	_, err = blocked.Reconcile(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
