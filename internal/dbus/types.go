package dbus

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/stickerlay/internal/audio"
	"github.com/jmylchreest/stickerlay/internal/display"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

const (
	// ServiceInterface is the control interface name.
	ServiceInterface = "io.github.jmylchreest.Stickerlay1"
	// ServicePath is the control object path.
	ServicePath = dbus.ObjectPath("/io/github/jmylchreest/Stickerlay1")
	// ServiceBusName is the bus name the daemon claims.
	ServiceBusName = "io.github.jmylchreest.Stickerlay1"
)

// D-Bus error names returned by the control interface.
const (
	ErrorEnumeration     = ServiceInterface + ".Error.Enumeration"
	ErrorUnknownDisplay  = ServiceInterface + ".Error.UnknownDisplay"
	ErrorStickerNotFound = ServiceInterface + ".Error.StickerNotFound"
	ErrorStickerExists   = ServiceInterface + ".Error.StickerExists"
	ErrorInvalidName     = ServiceInterface + ".Error.InvalidName"
	ErrorUnsupportedType = ServiceInterface + ".Error.UnsupportedType"
	ErrorMusicDisabled   = ServiceInterface + ".Error.MusicDisabled"
	ErrorEmptyPlaylist   = ServiceInterface + ".Error.EmptyPlaylist"
	ErrorFailed          = ServiceInterface + ".Error.Failed"
)

// errorSentinels maps error names to the package errors they stand for.
var errorSentinels = map[string]error{
	ErrorEnumeration:     display.ErrEnumeration,
	ErrorUnknownDisplay:  display.ErrUnknownDisplay,
	ErrorStickerNotFound: stickers.ErrNotFound,
	ErrorStickerExists:   stickers.ErrExists,
	ErrorInvalidName:     stickers.ErrInvalidName,
	ErrorUnsupportedType: stickers.ErrUnsupportedType,
	ErrorMusicDisabled:   audio.ErrDisabled,
	ErrorEmptyPlaylist:   audio.ErrEmptyPlaylist,
}

// ToError converts err into a named D-Bus error.
func ToError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrorFailed
	// Deterministic order so wrapped multi-errors map the same way every time.
	for _, n := range slices.Sorted(maps.Keys(errorSentinels)) {
		if errors.Is(err, errorSentinels[n]) {
			name = n
			break
		}
	}
	return dbus.NewError(name, []any{err.Error()})
}

// FromError converts a D-Bus error received by a client back into an error
// that matches the package sentinels with errors.Is.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var dbusErr dbus.Error
	if !errors.As(err, &dbusErr) {
		var ptr *dbus.Error
		if !errors.As(err, &ptr) || ptr == nil {
			return err
		}
		dbusErr = *ptr
	}
	return &remoteError{name: dbusErr.Name, msg: dbusErr.Error(), sentinel: errorSentinels[dbusErr.Name]}
}

// remoteError carries the daemon's message and unwraps to the matching
// sentinel, if any.
type remoteError struct {
	name     string
	msg      string
	sentinel error
}

func (e *remoteError) Error() string {
	if e.msg == "" {
		return e.name
	}
	return e.msg
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}

// DisplayInfo is the wire form of model.Display: (sisiiiib).
type DisplayInfo struct {
	ID      string
	Index   int32
	Name    string
	X       int32
	Y       int32
	Width   int32
	Height  int32
	Primary bool
}

// DisplayInfoFrom converts a display to its wire form.
func DisplayInfoFrom(d model.Display) DisplayInfo {
	return DisplayInfo{
		ID:      string(d.ID),
		Index:   int32(d.Index),
		Name:    d.Name,
		X:       int32(d.Bounds.X),
		Y:       int32(d.Bounds.Y),
		Width:   int32(d.Bounds.Width),
		Height:  int32(d.Bounds.Height),
		Primary: d.IsPrimary,
	}
}

// Model converts the wire form back to a model.Display.
func (d DisplayInfo) Model() model.Display {
	return model.Display{
		ID:    model.DisplayID(d.ID),
		Index: int(d.Index),
		Name:  d.Name,
		Bounds: model.Rect{
			X:      int(d.X),
			Y:      int(d.Y),
			Width:  int(d.Width),
			Height: int(d.Height),
		},
		IsPrimary: d.Primary,
	}
}

// LayoutInfo is the wire form of model.Layout: (sdddds). An empty Sticker
// means the display is empty.
type LayoutInfo struct {
	DisplayID  string
	XFrac      float64
	YFrac      float64
	WidthFrac  float64
	HeightFrac float64
	Sticker    string
}

// LayoutInfoFrom converts a layout to its wire form.
func LayoutInfoFrom(l model.Layout) LayoutInfo {
	return LayoutInfo{
		DisplayID:  string(l.DisplayID),
		XFrac:      l.XFrac,
		YFrac:      l.YFrac,
		WidthFrac:  l.WidthFrac,
		HeightFrac: l.HeightFrac,
		Sticker:    l.StickerName(),
	}
}

// Model converts the wire form back to a model.Layout.
func (l LayoutInfo) Model() model.Layout {
	out := model.Layout{
		DisplayID:  model.DisplayID(l.DisplayID),
		XFrac:      l.XFrac,
		YFrac:      l.YFrac,
		WidthFrac:  l.WidthFrac,
		HeightFrac: l.HeightFrac,
	}
	if l.Sticker != "" {
		out.Sticker = &model.StickerRef{Name: l.Sticker}
	}
	return out
}

// LayoutInfos converts a layout map to a slice sorted by display id.
func LayoutInfos(layouts map[model.DisplayID]model.Layout) []LayoutInfo {
	out := make([]LayoutInfo, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, LayoutInfoFrom(l))
	}
	slices.SortFunc(out, func(a, b LayoutInfo) int { return cmp.Compare(a.DisplayID, b.DisplayID) })
	return out
}

// LayoutMap converts wire layouts back to a map.
func LayoutMap(infos []LayoutInfo) map[model.DisplayID]model.Layout {
	out := make(map[model.DisplayID]model.Layout, len(infos))
	for _, info := range infos {
		l := info.Model()
		out[l.DisplayID] = l
	}
	return out
}

// StickerInfo is the wire form of stickers.Sticker: (ssxxii).
type StickerInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime int64 // Unix seconds
	Width   int32
	Height  int32
}

// StickerInfoFrom converts a library entry to its wire form.
func StickerInfoFrom(s stickers.Sticker) StickerInfo {
	return StickerInfo{
		Name:    s.Name,
		Path:    s.Path,
		Size:    s.Size,
		ModTime: s.ModTime.Unix(),
		Width:   int32(s.Width),
		Height:  int32(s.Height),
	}
}

// Model converts the wire form back to a stickers.Sticker.
func (s StickerInfo) Model() stickers.Sticker {
	return stickers.Sticker{
		Name:    s.Name,
		Path:    s.Path,
		Size:    s.Size,
		ModTime: time.Unix(s.ModTime, 0),
		Width:   int(s.Width),
		Height:  int(s.Height),
	}
}

// OverlayInfo reports the health of one display's overlay: (sssbix).
type OverlayInfo struct {
	DisplayID        string `json:"display_id" yaml:"display_id"`
	State            string `json:"state" yaml:"state"`
	Reason           string `json:"reason,omitempty" yaml:"reason,omitempty"`
	CaptureProtected bool   `json:"capture_protected" yaml:"capture_protected"`
	Attempts         int32  `json:"attempts" yaml:"attempts"`
	UpdatedAt        int64  `json:"updated_at" yaml:"updated_at"`
}

// Status is the daemon summary returned by the Status method.
type Status struct {
	Version           string        `json:"version" yaml:"version"`
	Backend           string        `json:"backend" yaml:"backend"`
	Displays          int32         `json:"displays" yaml:"displays"`
	Overlays          []OverlayInfo `json:"overlays" yaml:"overlays"`
	CaptureProtection bool          `json:"capture_protection" yaml:"capture_protection"`
	SelectionSticker  string        `json:"selection_sticker,omitempty" yaml:"selection_sticker,omitempty"`
	SelectionDisplays []string      `json:"selection_displays,omitempty" yaml:"selection_displays,omitempty"`
	LastUpdateID      string        `json:"last_update_id,omitempty" yaml:"last_update_id,omitempty"`
	LastUpdateAt      int64         `json:"last_update_at,omitempty" yaml:"last_update_at,omitempty"`
	Layouts           int32         `json:"layouts" yaml:"layouts"`
	StickerDir        string        `json:"sticker_dir" yaml:"sticker_dir"`
}

// MusicInfo is the wire form of audio.NowPlaying: (ssiibxx). Times are in
// milliseconds.
type MusicInfo struct {
	Title    string `json:"title" yaml:"title"`
	Path     string `json:"path" yaml:"path"`
	Index    int32  `json:"index" yaml:"index"`
	Total    int32  `json:"total" yaml:"total"`
	Playing  bool   `json:"playing" yaml:"playing"`
	Elapsed  int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
	Duration int64  `json:"duration_ms" yaml:"duration_ms"`
}

// MusicInfoFrom converts the playlist state to its wire form.
func MusicInfoFrom(np audio.NowPlaying) MusicInfo {
	return MusicInfo{
		Title:    np.Title,
		Path:     np.Path,
		Index:    int32(np.Index),
		Total:    int32(np.Total),
		Playing:  np.Playing,
		Elapsed:  np.Elapsed.Milliseconds(),
		Duration: np.Duration.Milliseconds(),
	}
}

// Model converts the wire form back to audio.NowPlaying.
func (m MusicInfo) Model() audio.NowPlaying {
	return audio.NowPlaying{
		Title:    m.Title,
		Path:     m.Path,
		Index:    int(m.Index),
		Total:    int(m.Total),
		Playing:  m.Playing,
		Elapsed:  time.Duration(m.Elapsed) * time.Millisecond,
		Duration: time.Duration(m.Duration) * time.Millisecond,
	}
}

// ReconcileInfo is the wire form of display.ReconcileResult.
type ReconcileInfo struct {
	Created []string
	Removed []string
	Moved   []string
	Failed  map[string]string
}

// ReconcileInfoFrom converts a reconcile result to its wire form.
func ReconcileInfoFrom(r display.ReconcileResult) ReconcileInfo {
	info := ReconcileInfo{
		Created: idStrings(r.Created),
		Removed: idStrings(r.Removed),
		Moved:   idStrings(r.Moved),
		Failed:  make(map[string]string, len(r.Failed)),
	}
	for id, err := range r.Failed {
		info.Failed[string(id)] = err.Error()
	}
	return info
}

// DisplayIDs converts strings received over the bus to display ids.
func DisplayIDs(ids []string) []model.DisplayID {
	out := make([]model.DisplayID, len(ids))
	for i, id := range ids {
		out[i] = model.DisplayID(id)
	}
	return out
}

func idStrings(ids []model.DisplayID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// Notification is an outgoing org.freedesktop.Notifications Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// Urgency extracts the urgency hint. Returns 1 (normal) if not specified.
func (n *Notification) Urgency() int {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return int(b)
		}
	}
	return 1
}

// Transient returns true if the transient hint is set.
func (n *Notification) Transient() bool {
	if v, ok := n.Hints["transient"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}
