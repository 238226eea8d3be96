// Package scene defines the editable scene: overlays placed over a photo and
// the freehand redaction strokes drawn on top of them.
package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// ErrInvalidMutation marks an operation that referenced an unknown overlay or stroke
var ErrInvalidMutation = errors.New("invalid mutation")

// Kind identifies how an overlay is rendered
type Kind int

const (
	// KindBlur renders a seeded pixel grid derived from the overlay id
	KindBlur Kind = iota
	// KindImage renders a referenced bitmap stretched over the box
	KindImage
	// KindEmoji renders a unicode glyph
	KindEmoji
)

// String returns the kind name used in scripts and logs
func (k Kind) String() string {
	switch k {
	case KindBlur:
		return "blur"
	case KindImage:
		return "image"
	case KindEmoji:
		return "emoji"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name back to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "blur":
		return KindBlur, nil
	case "image":
		return KindImage, nil
	case "emoji":
		return KindEmoji, nil
	}
	return 0, fmt.Errorf("unknown overlay kind %q", s)
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Content is the tagged payload of an overlay. Ref is the bitmap handle for
// KindImage and the glyph for KindEmoji; it is empty for KindBlur.
type Content struct {
	Kind Kind   `json:"kind"`
	Ref  string `json:"ref,omitempty"`
}

// Blur returns pixel grid content
func Blur() Content { return Content{Kind: KindBlur} }

// Image returns bitmap content referencing ref
func Image(ref string) Content { return Content{Kind: KindImage, Ref: ref} }

// Emoji returns glyph content
func Emoji(glyph string) Content { return Content{Kind: KindEmoji, Ref: glyph} }

// Overlay is a positioned, transformable sticker. X and Y are the top-left of
// the scaled box, so the pivot for scale and rotation is
// (X + W*Scale/2, Y + H*Scale/2).
type Overlay struct {
	ID       string  `json:"id"`
	Content  Content `json:"content"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
	Selected bool    `json:"selected"`
}

// Center returns the pivot point of the overlay
func (o Overlay) Center() (float64, float64) {
	return o.X + o.W*o.Scale/2, o.Y + o.H*o.Scale/2
}

// Transform maps the local w x h box onto the scene
func (o Overlay) Transform() geometry.Matrix {
	cx, cy := o.Center()
	return geometry.Pivot(cx, cy, o.W, o.H, o.Scale, o.Rotation)
}

// Bounds returns the axis-aligned box covered by the transformed overlay
func (o Overlay) Bounds() types.Box {
	return o.Transform().TransformBox(types.Box{W: o.W, H: o.H})
}

// Contains reports whether a scene point falls inside the overlay's oval
func (o Overlay) Contains(x, y float64) bool {
	inv, ok := o.Transform().Invert()
	if !ok || o.W <= 0 || o.H <= 0 {
		return false
	}
	lx, ly := inv.TransformPoint(x, y)
	rx, ry := o.W/2, o.H/2
	dx, dy := (lx-rx)/rx, (ly-ry)/ry
	return dx*dx+dy*dy <= 1
}

// Geometry is the transform part of an overlay
type Geometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
}

// Geometry returns the transform fields
func (o Overlay) Geometry() Geometry {
	return Geometry{X: o.X, Y: o.Y, Rotation: o.Rotation, Scale: o.Scale}
}

// Stroke is a committed freehand redaction stroke
type Stroke struct {
	ID        string        `json:"id"`
	Points    []types.Point `json:"points"`
	BrushSize float64       `json:"brush_size"`
}

// Clone returns a deep copy of the stroke
func (s Stroke) Clone() Stroke {
	s.Points = slices.Clone(s.Points)
	return s
}

// Scene is an ordered set of overlays (z-order is slice order) followed by strokes
type Scene struct {
	Overlays []Overlay `json:"overlays"`
	Strokes  []Stroke  `json:"strokes"`
}

// Clone returns a deep copy that shares no memory with s
func (s Scene) Clone() Scene {
	out := Scene{
		Overlays: slices.Clone(s.Overlays),
		Strokes:  make([]Stroke, len(s.Strokes)),
	}
	for i, st := range s.Strokes {
		out.Strokes[i] = st.Clone()
	}
	return out
}

// ScaleToSource maps display-space geometry into source-image space. Brush
// sizes scale by the mean of the two axis factors.
func (s Scene) ScaleToSource(sx, sy float64) Scene {
	out := s.Clone()
	for i := range out.Overlays {
		o := &out.Overlays[i]
		o.X *= sx
		o.Y *= sy
		o.W *= sx
		o.H *= sy
	}
	brush := (sx + sy) / 2
	for i := range out.Strokes {
		st := &out.Strokes[i]
		for j := range st.Points {
			st.Points[j].X *= sx
			st.Points[j].Y *= sy
		}
		st.BrushSize *= brush
	}
	return out
}

// HitTest returns the topmost overlay containing the point
func (s Scene) HitTest(x, y float64) (Overlay, bool) {
	for i := len(s.Overlays) - 1; i >= 0; i-- {
		if s.Overlays[i].Contains(x, y) {
			return s.Overlays[i], true
		}
	}
	return Overlay{}, false
}
