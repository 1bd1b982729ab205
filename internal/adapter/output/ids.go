package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// IDsFormatter outputs just identifiers, one per line.
// Useful for piping to other commands (e.g., stickerlay set --stdin).
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

func writeIDs(w io.Writer, ids []string) error {
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// Displays writes display ids.
func (f *IDsFormatter) Displays(w io.Writer, displays []model.Display) error {
	ids := make([]string, len(displays))
	for i, d := range displays {
		ids[i] = string(d.ID)
	}
	return writeIDs(w, ids)
}

// Layouts writes the display ids of layouts that hold a sticker.
func (f *IDsFormatter) Layouts(w io.Writer, layouts []model.Layout, _ map[model.DisplayID]model.Rect) error {
	var ids []string
	for _, l := range layouts {
		if l.HasSticker() {
			ids = append(ids, string(l.DisplayID))
		}
	}
	return writeIDs(w, ids)
}

// Stickers writes sticker names.
func (f *IDsFormatter) Stickers(w io.Writer, list []stickers.Sticker) error {
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.Name
	}
	return writeIDs(w, ids)
}

// Status writes the displays with an active overlay.
func (f *IDsFormatter) Status(w io.Writer, st dbus.Status) error {
	var ids []string
	for _, ov := range st.Overlays {
		if ov.State == "active" {
			ids = append(ids, ov.DisplayID)
		}
	}
	return writeIDs(w, ids)
}

// Music writes the path of the current track.
func (f *IDsFormatter) Music(w io.Writer, np dbus.MusicInfo) error {
	if np.Path == "" {
		return nil
	}
	return writeIDs(w, []string{np.Path})
}
