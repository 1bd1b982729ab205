package input

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/jmylchreest/stickerlay/internal/model"
)

// StdinAdapter reads layouts from standard input.
type StdinAdapter struct {
	reader    io.Reader
	reference model.Rect
}

// NewStdinAdapter creates a new StdinAdapter reading from os.Stdin.
func NewStdinAdapter() *StdinAdapter {
	return &StdinAdapter{reader: os.Stdin, reference: model.DefaultReference}
}

// NewStdinAdapterWithReader creates a new StdinAdapter with a custom reader.
func NewStdinAdapterWithReader(r io.Reader) *StdinAdapter {
	return &StdinAdapter{reader: r, reference: model.DefaultReference}
}

// Name returns the adapter identifier.
func (a *StdinAdapter) Name() string {
	return "stdin"
}

// Import reads layouts from standard input.
// Supports two formats:
// 1. a layout map keyed by display id, as written to layouts.json
// 2. an electron-store config.json document
func (a *StdinAdapter) Import(ctx context.Context) (*Import, error) {
	scanner := bufio.NewScanner(a.reader)
	const maxSize = 10 * 1024 * 1024 // 10MB max
	scanner.Buffer(make([]byte, 64*1024), maxSize)

	var data []byte
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data = append(data, scanner.Bytes()...)
		data = append(data, '\n')
	}

	if err := scanner.Err(); err != nil {
		return nil, &AdapterError{
			Source:  "stdin",
			Message: "failed to read stdin",
			Err:     err,
		}
	}

	if len(data) == 0 {
		return &Import{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &AdapterError{
			Source:  "stdin",
			Message: "expected a JSON object",
			Err:     err,
		}
	}

	_, hasLayout := fields["layout"]
	_, hasSettings := fields["settings"]
	if hasLayout || hasSettings {
		return parseElectronStore(data, a.reference)
	}

	return parseLayoutMap(fields, a.reference)
}

// layoutEntry is one display's record. Fraction fields win over pixels.
type layoutEntry struct {
	XFrac       *float64 `json:"xFrac"`
	YFrac       *float64 `json:"yFrac"`
	WidthFrac   *float64 `json:"widthFrac"`
	HeightFrac  *float64 `json:"heightFrac"`
	StickerName string   `json:"stickerName"`

	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

func parseLayoutMap(raw map[string]json.RawMessage, reference model.Rect) (*Import, error) {
	imp := &Import{Layouts: make(map[model.DisplayID]model.Layout, len(raw))}

	for key, msg := range raw {
		var e layoutEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, &AdapterError{
				Source:  "stdin",
				Message: "invalid layout for display " + key,
				Err:     err,
			}
		}

		id := model.DisplayID(key)
		var l model.Layout
		switch {
		case e.XFrac != nil || e.YFrac != nil || e.WidthFrac != nil || e.HeightFrac != nil:
			l = model.Layout{
				DisplayID:  id,
				XFrac:      deref(e.XFrac),
				YFrac:      deref(e.YFrac),
				WidthFrac:  deref(e.WidthFrac),
				HeightFrac: deref(e.HeightFrac),
			}
		case e.X != nil || e.Y != nil || e.Width != nil || e.Height != nil:
			l = model.FromPixels(id, model.PixelRect{
				X:      deref(e.X),
				Y:      deref(e.Y),
				Width:  deref(e.Width),
				Height: deref(e.Height),
			}, reference)
		default:
			continue
		}

		if e.StickerName != "" {
			l.Sticker = &model.StickerRef{Name: e.StickerName}
		}
		imp.Layouts[id] = l
	}

	return imp, nil
}
