package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/scene"
)

// Cell is one PixelSize-aligned square of a rasterised stroke
type Cell struct {
	X, Y  int
	Color color.NRGBA
}

// StrokeCells returns the distinct cells touched by the strokes in paint
// order. A cell is touched when it overlaps the axis-aligned brush square
// around a sample. Colors come from a counter that advances once per new cell.
func StrokeCells(strokes []scene.Stroke) []Cell {
	const px = geometry.PixelSize
	seen := make(map[image.Point]struct{})
	var cells []Cell
	counter := 0

	for _, st := range strokes {
		half := st.BrushSize / 2
		for _, p := range st.Points {
			startX := int(math.Floor((p.X-half)/px)) * px
			startY := int(math.Floor((p.Y-half)/px)) * px
			for x := startX; float64(x) < p.X+half; x += px {
				for y := startY; float64(y) < p.Y+half; y += px {
					key := image.Pt(x, y)
					if _, ok := seen[key]; ok {
						continue
					}
					seen[key] = struct{}{}
					counter++
					cells = append(cells, Cell{
						X:     x,
						Y:     y,
						Color: geometry.PixelColors[geometry.StrokeColorIndex(counter)],
					})
				}
			}
		}
	}
	return cells
}

func drawStrokes(dst *image.NRGBA, strokes []scene.Stroke) int {
	const px = geometry.PixelSize
	cells := StrokeCells(strokes)
	for _, c := range cells {
		r := image.Rect(c.X, c.Y, c.X+px, c.Y+px).Intersect(dst.Bounds())
		if r.Empty() {
			continue
		}
		draw.Draw(dst, r, image.NewUniform(c.Color), image.Point{}, draw.Src)
	}
	return len(cells)
}
