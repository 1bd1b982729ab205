package display

import (
	"sync"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// Frame is one render instruction for an overlay window.
type Frame struct {
	Bounds    model.Rect        // Display bounds in global pixels
	Target    model.Rect        // Sticker rectangle relative to the display origin
	Sticker   *model.StickerRef // nil renders nothing
	ImagePath string            // Resolved image file, empty when Sticker is nil
}

// Empty reports whether the frame clears the overlay.
func (f Frame) Empty() bool {
	return f.Sticker == nil || f.ImagePath == "" || f.Target.Empty()
}

// WindowOptions configures a new overlay window.
type WindowOptions struct {
	CaptureProtection bool
	AlwaysOnTop       bool
	Namespace         string
}

// Window is one borderless, transparent, click-through overlay bound to a
// single display.
type Window interface {
	DisplayID() model.DisplayID
	// Render queues a frame for drawing and returns immediately. A frame that
	// has not been drawn yet is replaced by a newer one.
	Render(f Frame)
	// Move repositions the window onto new display bounds.
	Move(bounds model.Rect)
	SetCaptureProtection(enabled bool) error
	Close()
	Closed() bool
}

// WindowFactory creates platform overlay windows.
type WindowFactory interface {
	CreateWindow(d model.Display, opts WindowOptions) (Window, error)
}

// ImageResolver maps a sticker ref onto a renderable image file.
type ImageResolver interface {
	ResolveStickerImage(ref model.StickerRef) (string, error)
}

// Mailbox is a one-slot, last-write-wins frame queue shared between the
// control flow and a window's drawing loop.
type Mailbox struct {
	mu      sync.Mutex
	pending *Frame
	notify  chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Put stores f, replacing any undelivered frame. It reports whether the
// mailbox was empty, in which case the consumer needs waking.
func (m *Mailbox) Put(f Frame) bool {
	m.mu.Lock()
	wasEmpty := m.pending == nil
	m.pending = &f
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return wasEmpty
}

// Take removes and returns the pending frame.
func (m *Mailbox) Take() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Frame{}, false
	}
	f := *m.pending
	m.pending = nil
	return f, true
}

// Ready is signalled after every Put.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.notify
}
