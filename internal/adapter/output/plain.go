package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// PlainFormatter formats output as aligned text tables.
type PlainFormatter struct {
	opts FormatterOptions
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	return &PlainFormatter{opts: opts}
}

func (f *PlainFormatter) table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !f.opts.NoHeader {
		fmt.Fprintln(tw, strings.Join(header, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Displays writes one row per display.
func (f *PlainFormatter) Displays(w io.Writer, displays []model.Display) error {
	rows := make([][]string, 0, len(displays))
	for _, d := range displays {
		primary := ""
		if d.IsPrimary {
			primary = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(d.Index + 1),
			string(d.ID),
			orDash(d.Name),
			d.Bounds.String(),
			primary,
		})
	}
	return f.table(w, []string{"#", "ID", "NAME", "GEOMETRY", "PRIMARY"}, rows)
}

// Layouts writes one row per layout.
func (f *PlainFormatter) Layouts(w io.Writer, layouts []model.Layout, bounds map[model.DisplayID]model.Rect) error {
	rows := make([][]string, 0, len(layouts))
	for _, l := range layouts {
		pixels := "-"
		if b, ok := bounds[l.DisplayID]; ok && !b.Empty() {
			pixels = l.Resolve(b).String()
		}
		rows = append(rows, []string{
			string(l.DisplayID),
			orDash(l.StickerName()),
			fmt.Sprintf("%.3f,%.3f %.3fx%.3f", l.XFrac, l.YFrac, l.WidthFrac, l.HeightFrac),
			pixels,
		})
	}
	return f.table(w, []string{"DISPLAY", "STICKER", "PLACEMENT", "PIXELS"}, rows)
}

// Stickers writes one row per sticker.
func (f *PlainFormatter) Stickers(w io.Writer, list []stickers.Sticker) error {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		dims := "-"
		if s.Width > 0 && s.Height > 0 {
			dims = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		rows = append(rows, []string{
			s.Name,
			dims,
			humanize.Bytes(uint64(s.Size)),
			humanize.Time(s.ModTime),
		})
	}
	return f.table(w, []string{"NAME", "SIZE", "BYTES", "MODIFIED"}, rows)
}

// Status writes the daemon summary followed by the overlay table.
func (f *PlainFormatter) Status(w io.Writer, st dbus.Status) error {
	capture := "off"
	if st.CaptureProtection {
		capture = "on"
	}

	fmt.Fprintf(w, "Daemon:             stickerlayd %s (%s)\n", st.Version, st.Backend)
	fmt.Fprintf(w, "Displays:           %d\n", st.Displays)
	fmt.Fprintf(w, "Stored layouts:     %d\n", st.Layouts)
	fmt.Fprintf(w, "Capture protection: %s\n", capture)
	fmt.Fprintf(w, "Sticker directory:  %s\n", st.StickerDir)
	if st.SelectionSticker != "" {
		fmt.Fprintf(w, "Selection:          %s on %s\n", st.SelectionSticker, strings.Join(st.SelectionDisplays, ", "))
	}
	if st.LastUpdateID != "" {
		fmt.Fprintf(w, "Last update:        %s (%s)\n", st.LastUpdateID, humanize.Time(time.Unix(st.LastUpdateAt, 0)))
	}

	if len(st.Overlays) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(st.Overlays))
	for _, ov := range st.Overlays {
		protected := "no"
		if ov.CaptureProtected {
			protected = "yes"
		}
		reason := orDash(ov.Reason)
		if ov.Attempts > 0 {
			reason = fmt.Sprintf("%s (%d attempts)", reason, ov.Attempts)
		}
		rows = append(rows, []string{ov.DisplayID, ov.State, protected, reason})
	}
	return f.table(w, []string{"OVERLAY", "STATE", "PROTECTED", "REASON"}, rows)
}

// Music writes the current track and its progress.
func (f *PlainFormatter) Music(w io.Writer, np dbus.MusicInfo) error {
	if np.Total == 0 {
		_, err := fmt.Fprintln(w, "Playlist is empty")
		return err
	}
	fmt.Fprintf(w, "Track:    %s (%d/%d)\n", np.Title, np.Index+1, np.Total)
	fmt.Fprintf(w, "State:    %s\n", musicState(np))
	if np.Duration > 0 {
		elapsed := time.Duration(np.Elapsed) * time.Millisecond
		total := time.Duration(np.Duration) * time.Millisecond
		fmt.Fprintf(w, "Position: %s / %s\n", clock(elapsed), clock(total))
	}
	_, err := fmt.Fprintf(w, "File:     %s\n", np.Path)
	return err
}

func musicState(np dbus.MusicInfo) string {
	if np.Playing {
		return "playing"
	}
	return "paused"
}

// clock formats d as m:ss.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
