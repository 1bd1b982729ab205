package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// DmenuFormatter writes one line per item for dmenu, rofi or fuzzel. The
// first field is always the identifier so a picked line can be cut back to
// it.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("dmenu").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// templateData provides data for custom templates. Item is the display,
// layout or sticker being formatted.
type templateData struct {
	Index int
	Item  any
}

func (f *DmenuFormatter) writeLines(w io.Writer, items []any, fields func(i int) []string) error {
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	for i, item := range items {
		var line string
		if f.template != nil {
			var buf strings.Builder
			if err := f.template.Execute(&buf, templateData{Index: i + 1, Item: item}); err == nil {
				line = buf.String()
			}
		}
		if line == "" {
			parts := fields(i)
			if f.opts.ShowIndex {
				parts = append([]string{strconv.Itoa(i + 1)}, parts...)
			}
			line = strings.Join(parts, sep)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Displays writes "id | name | geometry".
func (f *DmenuFormatter) Displays(w io.Writer, displays []model.Display) error {
	items := make([]any, len(displays))
	for i, d := range displays {
		items[i] = d
	}
	return f.writeLines(w, items, func(i int) []string {
		d := displays[i]
		return nonEmpty(string(d.ID), d.Name, d.Bounds.String())
	})
}

// Layouts writes "display | sticker".
func (f *DmenuFormatter) Layouts(w io.Writer, layouts []model.Layout, _ map[model.DisplayID]model.Rect) error {
	items := make([]any, len(layouts))
	for i, l := range layouts {
		items[i] = l
	}
	return f.writeLines(w, items, func(i int) []string {
		return []string{string(layouts[i].DisplayID), orDash(layouts[i].StickerName())}
	})
}

// Stickers writes "name | dimensions".
func (f *DmenuFormatter) Stickers(w io.Writer, list []stickers.Sticker) error {
	items := make([]any, len(list))
	for i, s := range list {
		items[i] = s
	}
	return f.writeLines(w, items, func(i int) []string {
		s := list[i]
		if s.Width > 0 && s.Height > 0 {
			return []string{s.Name, fmt.Sprintf("%dx%d", s.Width, s.Height)}
		}
		return []string{s.Name}
	})
}

// Status writes one line per overlay: "display | state".
func (f *DmenuFormatter) Status(w io.Writer, st dbus.Status) error {
	items := make([]any, len(st.Overlays))
	for i, ov := range st.Overlays {
		items[i] = ov
	}
	return f.writeLines(w, items, func(i int) []string {
		return []string{st.Overlays[i].DisplayID, st.Overlays[i].State}
	})
}

// Music writes one line for the current track.
func (f *DmenuFormatter) Music(w io.Writer, np dbus.MusicInfo) error {
	if np.Path == "" {
		return nil
	}
	return f.writeLines(w, []any{np}, func(int) []string {
		return []string{np.Title, musicState(np)}
	})
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"percent": func(frac float64) string {
			return strconv.FormatFloat(frac*100, 'f', 1, 64) + "%"
		},
	}
}

func nonEmpty(fields ...string) []string {
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
