package stroke

import (
	"slices"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// DefaultBrushSize is the brush diameter in pixels
const DefaultBrushSize = 20

// Store accumulates freehand strokes. The in-progress point buffer is owned
// by the input goroutine; renderers read the immutable copy returned by
// Current, which is republished after every update.
type Store struct {
	brushSize float64
	committed []scene.Stroke
	undone    []scene.Stroke

	buffer    []types.Point
	drawing   bool
	published atomic.Pointer[[]types.Point]
}

// New creates a Store using DefaultBrushSize
func New() *Store {
	return NewWithBrush(DefaultBrushSize)
}

// NewWithBrush creates a Store with a custom brush size
func NewWithBrush(brushSize float64) *Store {
	if brushSize <= 0 {
		brushSize = DefaultBrushSize
	}
	s := &Store{brushSize: brushSize}
	s.publish()
	return s
}

// StartStroke begins a new point buffer with one point
func (s *Store) StartStroke(x, y float64) {
	s.buffer = []types.Point{{X: x, Y: y}}
	s.drawing = true
	s.publish()
}

// AddPoint appends to the in-progress stroke
func (s *Store) AddPoint(x, y float64) {
	if !s.drawing {
		klog.V(2).Infof("stroke point %.1f,%.1f without start, ignored", x, y)
		return
	}
	s.buffer = append(s.buffer, types.Point{X: x, Y: y})
	s.publish()
}

// EndStroke commits the buffer as an immutable stroke. It clears the local
// redo stack and returns false when nothing was drawn.
func (s *Store) EndStroke() (scene.Stroke, bool) {
	points := s.buffer
	s.buffer = nil
	s.drawing = false
	s.publish()

	if len(points) == 0 {
		return scene.Stroke{}, false
	}
	st := scene.Stroke{
		ID:        geometry.GenerateID(geometry.PrefixStroke),
		Points:    points,
		BrushSize: s.brushSize,
	}
	s.committed = append(s.committed, st)
	s.undone = nil
	return st.Clone(), true
}

// UndoLastStroke moves the newest committed stroke to the redo stack
func (s *Store) UndoLastStroke() (scene.Stroke, bool) {
	if len(s.committed) == 0 {
		return scene.Stroke{}, false
	}
	return s.Take(s.committed[len(s.committed)-1].ID)
}

// RedoLastStroke moves the newest undone stroke back to the committed list
func (s *Store) RedoLastStroke() (scene.Stroke, bool) {
	if len(s.undone) == 0 {
		return scene.Stroke{}, false
	}
	st := s.undone[len(s.undone)-1]
	s.Put(st)
	return st.Clone(), true
}

// Take removes a committed stroke by id and pushes it onto the redo stack
func (s *Store) Take(id string) (scene.Stroke, bool) {
	i := slices.IndexFunc(s.committed, func(st scene.Stroke) bool { return st.ID == id })
	if i < 0 {
		klog.V(2).Infof("stroke take %s: %v", id, scene.ErrInvalidMutation)
		return scene.Stroke{}, false
	}
	st := s.committed[i]
	s.committed = slices.Delete(s.committed, i, i+1)
	s.undone = append(s.undone, st)
	return st.Clone(), true
}

// Put appends a stroke to the committed list, dropping it from the redo stack
func (s *Store) Put(st scene.Stroke) {
	if i := slices.IndexFunc(s.undone, func(u scene.Stroke) bool { return u.ID == st.ID }); i >= 0 {
		s.undone = slices.Delete(s.undone, i, i+1)
	}
	if slices.ContainsFunc(s.committed, func(c scene.Stroke) bool { return c.ID == st.ID }) {
		return
	}
	s.committed = append(s.committed, st.Clone())
}

// Strokes returns a deep copy of the committed strokes
func (s *Store) Strokes() []scene.Stroke {
	out := make([]scene.Stroke, len(s.committed))
	for i, st := range s.committed {
		out[i] = st.Clone()
	}
	return out
}

// Current returns the latest published snapshot of the in-progress stroke
func (s *Store) Current() []types.Point {
	return *s.published.Load()
}

// Drawing reports whether a stroke is in progress
func (s *Store) Drawing() bool {
	return s.drawing
}

// CanRedo reports whether the local redo stack is non-empty
func (s *Store) CanRedo() bool {
	return len(s.undone) > 0
}

// BrushSize returns the brush diameter used for new strokes
func (s *Store) BrushSize() float64 {
	return s.brushSize
}

func (s *Store) publish() {
	snap := slices.Clone(s.buffer)
	s.published.Store(&snap)
}
