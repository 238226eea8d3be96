package geometry

import (
	"image/color"
	"math"
	"unicode/utf16"
)

// PixelSize is the edge length of one pixelation cell
const PixelSize = 10

// PixelColors are the grayscale swatches used by blur overlays and redaction strokes
var PixelColors = [10]color.NRGBA{
	{0xff, 0xff, 0xff, 0xff},
	{0xf0, 0xf0, 0xf0, 0xff},
	{0xe0, 0xe0, 0xe0, 0xff},
	{0xd0, 0xd0, 0xd0, 0xff},
	{0xb0, 0xb0, 0xb0, 0xff},
	{0x90, 0x90, 0x90, 0xff},
	{0x70, 0x70, 0x70, 0xff},
	{0x50, 0x50, 0x50, 0xff},
	{0x38, 0x38, 0x38, 0xff},
	{0x20, 0x20, 0x20, 0xff},
}

// BlurBackground is painted under the pixel grid of a blur overlay
var BlurBackground = color.NRGBA{0x9c, 0xa3, 0xaf, 0xff}

const (
	lcgA = 1664525
	lcgC = 1013904223
	lcgM = 1 << 32
)

// HashSeed folds a string into a positive LCG seed using the
// shift-by-5-and-subtract rolling hash over UTF-16 code units.
func HashSeed(s string) uint64 {
	var h int32
	for _, cu := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(cu)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	if v == 0 {
		v = 1
	}
	return uint64(v)
}

// SeededPixelGrid returns cols*rows swatch indices in row-major order.
// The same seed and dimensions always produce the same sequence.
func SeededPixelGrid(seed string, cols, rows int) []int {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	current := HashSeed(seed)
	out := make([]int, cols*rows)
	for i := range out {
		current = (lcgA*current + lcgC) % lcgM
		idx := int(float64(current) / lcgM * float64(len(PixelColors)))
		if idx >= len(PixelColors) {
			idx = len(PixelColors) - 1
		}
		out[i] = idx
	}
	return out
}

// StrokeRandom is the sine based generator used for redaction stroke cells.
// It yields a value in [0,1) for an integer counter.
func StrokeRandom(seed int) float64 {
	x := math.Sin(float64(seed)) * 10000
	return x - math.Floor(x)
}

// StrokeColorIndex maps the counter to a swatch index
func StrokeColorIndex(seed int) int {
	idx := int(math.Floor(StrokeRandom(seed) * float64(len(PixelColors))))
	if idx >= len(PixelColors) {
		idx = len(PixelColors) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

