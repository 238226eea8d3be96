package geometry

import (
	"github.com/menta2k/photo-redactor/pkg/types"
)

// Scale limits applied to every overlay
const (
	MinScale = 0.01
	MaxScale = 3.0
)

// ClampScale saturates a scale into [MinScale, MaxScale]
func ClampScale(s float64) float64 {
	return Clamp(s, MinScale, MaxScale)
}

// Clamp ensures a value is within the given bounds
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScaleBounds linearly maps a rectangle from a srcW x srcH frame into a dstW x dstH frame
func ScaleBounds(b types.Box, srcW, srcH, dstW, dstH float64) types.Box {
	if srcW <= 0 || srcH <= 0 {
		return b
	}
	sx := dstW / srcW
	sy := dstH / srcH
	return types.Box{
		X: b.X * sx,
		Y: b.Y * sy,
		W: b.W * sx,
		H: b.H * sy,
	}
}

// ScaleFactors returns the per-axis factors that map the from frame onto the to frame
func ScaleFactors(from, to types.Size) (float64, float64) {
	if from.Width <= 0 || from.Height <= 0 {
		return 1, 1
	}
	return to.Width / from.Width, to.Height / from.Height
}

// FitDisplay computes the on-screen size of an image: full screen width,
// height capped at maxHeightRatio of the screen, aspect ratio kept.
func FitDisplay(img, screen types.Size, maxHeightRatio float64) types.Size {
	if img.Width <= 0 || img.Height <= 0 {
		return types.Size{}
	}
	aspect := img.Width / img.Height
	w := screen.Width
	h := w / aspect
	if maxHeightRatio > 0 && h > screen.Height*maxHeightRatio {
		h = screen.Height * maxHeightRatio
		w = h * aspect
	}
	return types.Size{Width: w, Height: h}
}

// ExpandOval grows a face box vertically by factor and keeps it vertically centered,
// turning a tight face rectangle into the oval the overlay covers.
func ExpandOval(b types.Box, factor float64) types.Box {
	h := b.H * factor
	return types.Box{
		X: b.X,
		Y: b.Y - (h-b.H)/2,
		W: b.W,
		H: h,
	}
}
