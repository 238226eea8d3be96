package types

// Box represents an axis-aligned rectangle in pixel coordinates
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the box area
func (b Box) Area() float64 {
	return b.W * b.H
}

// Center returns the box center
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Empty reports whether the box has no extent
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Point is a single 2D sample
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size holds pixel dimensions of an image or display surface
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NormalizedBox is a box with coordinates in [0,1] as returned by vision models
type NormalizedBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FaceResult contains the faces located by a vision model
type FaceResult struct {
	Faces []NormalizedBox `json:"faces"`
}

// ExportOptions configures how the compositor encodes its output
type ExportOptions struct {
	Format   string
	Quality  int
	Lossless bool
}
