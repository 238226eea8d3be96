package geometry

import (
	"math"

	"golang.org/x/image/math/f64"

	"github.com/menta2k/photo-redactor/pkg/types"
)

// Matrix is a 2D affine transform stored as [a, b, c, d, e, f]:
//
//	| a  c  e |
//	| b  d  f |
//	| 0  0  1 |
type Matrix [6]float64

// Identity returns the identity matrix
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Scale returns a scale matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// RotateDegrees returns a rotation matrix for an angle in degrees
func RotateDegrees(degrees float64) Matrix {
	rad := degrees * math.Pi / 180.0
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// Multiply returns m * other, which applies other first and then m
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

// TransformPoint applies the matrix to a point
func (m Matrix) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// TransformBox transforms a box and returns its axis-aligned bounding box
func (m Matrix) TransformBox(b types.Box) types.Box {
	x0, y0 := m.TransformPoint(b.X, b.Y)
	x1, y1 := m.TransformPoint(b.X+b.W, b.Y)
	x2, y2 := m.TransformPoint(b.X+b.W, b.Y+b.H)
	x3, y3 := m.TransformPoint(b.X, b.Y+b.H)

	minX := min(x0, x1, x2, x3)
	minY := min(y0, y1, y2, y3)
	maxX := max(x0, x1, x2, x3)
	maxY := max(y0, y1, y2, y3)

	return types.Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Determinant returns the determinant of the linear part
func (m Matrix) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse matrix and false when m is singular
func (m Matrix) Invert() (Matrix, bool) {
	det := m.Determinant()
	if det == 0 {
		return Identity(), false
	}

	inv := 1.0 / det
	return Matrix{
		m[3] * inv,
		-m[1] * inv,
		-m[2] * inv,
		m[0] * inv,
		(m[2]*m[5] - m[3]*m[4]) * inv,
		(m[1]*m[4] - m[0]*m[5]) * inv,
	}, true
}

// Aff3 converts the matrix to the layout expected by x/image/draw transformers
func (m Matrix) Aff3() f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

// Pivot builds the transform that maps a w x h local box onto the canvas so
// that the box center lands on (cx, cy), rotated and uniformly scaled about
// that center: T(cx,cy) * R(deg) * S(s) * T(-w/2,-h/2).
func Pivot(cx, cy, w, h, scale, degrees float64) Matrix {
	return Translate(cx, cy).
		Multiply(RotateDegrees(degrees)).
		Multiply(Scale(scale, scale)).
		Multiply(Translate(-w/2, -h/2))
}
