package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/stickerlay/internal/model"
)

const (
	previewEmpty   = '·'
	previewSticker = '█'
	// Terminal cells are roughly twice as tall as they are wide.
	cellAspect = 2.0
	maxRows    = 24
)

var (
	previewBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	previewBlank   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	previewFilled  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	unknownDisplay = model.DefaultReference
)

// PreviewGrid rasterises the layout onto a cols-wide character grid with the
// display's aspect ratio. Every row has exactly cols runes. A sticker that
// covers any part of a cell fills it.
func PreviewGrid(bounds model.Rect, l model.Layout, cols int) []string {
	if bounds.Empty() {
		bounds = unknownDisplay
	}
	cols = max(cols, 1)
	rows := int(math.Round(float64(cols) * float64(bounds.Height) / float64(bounds.Width) / cellAspect))
	rows = min(max(rows, 1), maxRows)

	x0 := int(math.Floor(l.XFrac * float64(cols)))
	x1 := int(math.Ceil((l.XFrac + l.WidthFrac) * float64(cols)))
	y0 := int(math.Floor(l.YFrac * float64(rows)))
	y1 := int(math.Ceil((l.YFrac + l.HeightFrac) * float64(rows)))
	show := l.HasSticker()

	grid := make([]string, rows)
	var b strings.Builder
	for y := range rows {
		b.Reset()
		for x := range cols {
			if show && x >= x0 && x < x1 && y >= y0 && y < y1 {
				b.WriteRune(previewSticker)
			} else {
				b.WriteRune(previewEmpty)
			}
		}
		grid[y] = b.String()
	}
	return grid
}

// RenderPreview draws the grid inside a border, width columns wide overall.
func RenderPreview(bounds model.Rect, l model.Layout, width int) string {
	grid := PreviewGrid(bounds, l, width-2)
	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = colourRow(row)
	}
	return previewBorder.Render(strings.Join(lines, "\n"))
}

// colourRow styles runs of sticker and empty cells.
func colourRow(row string) string {
	var b strings.Builder
	runes := []rune(row)
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && runes[i] == runes[start] {
			continue
		}
		run := string(runes[start:i])
		if runes[start] == previewSticker {
			b.WriteString(previewFilled.Render(run))
		} else {
			b.WriteString(previewBlank.Render(run))
		}
		start = i
	}
	return b.String()
}
