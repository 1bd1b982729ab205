package x11

import (
	"image"

	"github.com/BurntSushi/xgb/xproto"
)

// alphaThreshold is the alpha at or above which a pixel is part of the
// window shape.
const alphaThreshold = 0x80

// maskRects returns the opaque area of img as rectangles relative to its
// origin. Runs of opaque pixels are collected per row, and identical runs on
// consecutive rows are merged into one taller rectangle.
func maskRects(img image.Image) []xproto.Rectangle {
	b := img.Bounds()
	var rects []xproto.Rectangle
	open := make(map[[2]int]int) // run (x, width) to its index in rects, for the previous row

	for y := b.Min.Y; y < b.Max.Y; y++ {
		next := make(map[[2]int]int)
		x := b.Min.X
		for x < b.Max.X {
			if !opaque(img, x, y) {
				x++
				continue
			}
			start := x
			for x < b.Max.X && opaque(img, x, y) {
				x++
			}
			run := [2]int{start - b.Min.X, x - start}

			if i, ok := open[run]; ok {
				rects[i].Height++
				next[run] = i
				continue
			}
			rects = append(rects, xproto.Rectangle{
				X:      int16(run[0]),
				Y:      int16(y - b.Min.Y),
				Width:  uint16(run[1]),
				Height: 1,
			})
			next[run] = len(rects) - 1
		}
		open = next
	}
	return rects
}

func opaque(img image.Image, x, y int) bool {
	_, _, _, a := img.At(x, y).RGBA()
	return a>>8 >= alphaThreshold
}
