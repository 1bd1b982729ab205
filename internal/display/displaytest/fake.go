// Package displaytest provides in-memory monitor sources and overlay windows
// for tests that exercise the display manager without a toolkit.
package displaytest

import (
	"context"
	"errors"
	"sync"

	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
)

// Source is a MonitorSource returning a mutable monitor list.
type Source struct {
	mu       sync.Mutex
	monitors []display.Monitor
	err      error
	calls    int
}

// NewSource creates a source reporting monitors.
func NewSource(monitors ...display.Monitor) *Source {
	return &Source{monitors: monitors}
}

// Set replaces the reported monitors.
func (s *Source) Set(monitors ...display.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors = monitors
}

// Fail makes the next calls return err. A nil err clears the failure.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times Monitors was called.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Monitors implements display.MonitorSource.
func (s *Source) Monitors(ctx context.Context) ([]display.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]display.Monitor(nil), s.monitors...), nil
}

// Monitor builds a monitor with the given size placed at x.
func Monitor(id string, x, width, height int) display.Monitor {
	return display.Monitor{ID: id, Name: id, Bounds: model.Rect{X: x, Width: width, Height: height}}
}

// Window records every call made by the manager.
type Window struct {
	mu       sync.Mutex
	id       model.DisplayID
	opts     display.WindowOptions
	bounds   model.Rect
	frames   []display.Frame
	capture  bool
	closed   bool
	captured error // Returned by SetCaptureProtection
}

// DisplayID implements display.Window.
func (w *Window) DisplayID() model.DisplayID { return w.id }

// Render implements display.Window.
func (w *Window) Render(f display.Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, f)
}

// Move implements display.Window.
func (w *Window) Move(bounds model.Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bounds = bounds
}

// SetCaptureProtection implements display.Window.
func (w *Window) SetCaptureProtection(enabled bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.captured != nil {
		return w.captured
	}
	w.capture = enabled
	return nil
}

// Close implements display.Window.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Closed implements display.Window.
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Frames returns every frame rendered so far.
func (w *Window) Frames() []display.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]display.Frame(nil), w.frames...)
}

// LastFrame returns the most recent frame.
func (w *Window) LastFrame() (display.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return display.Frame{}, false
	}
	return w.frames[len(w.frames)-1], true
}

// Bounds returns the bounds the window currently covers.
func (w *Window) Bounds() model.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

// CaptureProtected reports the last capture state that was applied.
func (w *Window) CaptureProtected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.capture
}

// Options returns the options the window was created with.
func (w *Window) Options() display.WindowOptions { return w.opts }

// Factory creates Windows and records them.
type Factory struct {
	mu            sync.Mutex
	windows       []*Window
	failFor       map[model.DisplayID]error
	captureErr    error
	createdCount  int
	byDisplayLast map[model.DisplayID]*Window
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		failFor:       make(map[model.DisplayID]error),
		byDisplayLast: make(map[model.DisplayID]*Window),
	}
}

// FailFor makes creation fail for id. A nil err clears the failure.
func (f *Factory) FailFor(id model.DisplayID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failFor, id)
		return
	}
	f.failFor[id] = err
}

// CaptureError makes every new window fail SetCaptureProtection with err.
func (f *Factory) CaptureError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captureErr = err
}

// CreateWindow implements display.WindowFactory.
func (f *Factory) CreateWindow(d model.Display, opts display.WindowOptions) (display.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failFor[d.ID]; ok {
		return nil, err
	}
	w := &Window{id: d.ID, opts: opts, bounds: d.Bounds, captured: f.captureErr}
	f.windows = append(f.windows, w)
	f.byDisplayLast[d.ID] = w
	f.createdCount++
	return w, nil
}

// Created returns how many windows were created.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createdCount
}

// Window returns the most recent window created for id.
func (f *Factory) Window(id model.DisplayID) *Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byDisplayLast[id]
}

// Closed returns how many created windows have been closed.
func (f *Factory) Closed() int {
	f.mu.Lock()
	windows := append([]*Window(nil), f.windows...)
	f.mu.Unlock()

	n := 0
	for _, w := range windows {
		if w.Closed() {
			n++
		}
	}
	return n
}

// Images resolves sticker names to fixed paths.
type Images map[string]string

// ErrNoImage is returned by Images for unknown stickers.
var ErrNoImage = errors.New("no such image")

// ResolveStickerImage implements display.ImageResolver.
func (i Images) ResolveStickerImage(ref model.StickerRef) (string, error) {
	if p, ok := i[ref.Name]; ok {
		return p, nil
	}
	return "", ErrNoImage
}
