// Package editor ties the overlay store, the stroke store and the action
// history into one editing session. The Session is the single owner of the
// scene: gestures reach it through recorded operations and live Events, and
// exporters receive deep copies from Scene.
package editor

import (
	"fmt"
	"math/rand/v2"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/history"
	"github.com/menta2k/photo-redactor/pkg/overlay"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/stroke"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// Config holds session parameters
type Config struct {
	Overlay      overlay.Config
	BrushSize    float64
	HistoryLimit int
}

// DefaultConfig returns the standard session parameters
func DefaultConfig() Config {
	return Config{
		Overlay:      overlay.DefaultConfig(),
		BrushSize:    stroke.DefaultBrushSize,
		HistoryLimit: history.DefaultLimit,
	}
}

// view is the z-order and selection captured when an action is undone, so
// the matching redo lands on exactly the state the user left.
type view struct {
	order    []string
	selected string
}

// Session is one editing session. It is not safe for concurrent use.
type Session struct {
	overlays  *overlay.Store
	strokes   *stroke.Store
	history   *history.History
	redoViews []view
}

// New creates a Session with default configuration
func New() *Session {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Session with custom configuration
func NewWithConfig(config Config) *Session {
	return &Session{
		overlays: overlay.NewWithConfig(config.Overlay),
		strokes:  stroke.NewWithBrush(config.BrushSize),
		history:  history.NewWithLimit(config.HistoryLimit),
	}
}

// Overlays exposes the overlay store for unrecorded operations
func (s *Session) Overlays() *overlay.Store {
	return s.overlays
}

// Strokes exposes the stroke store
func (s *Session) Strokes() *stroke.Store {
	return s.strokes
}

// History exposes the action log
func (s *Session) History() *history.History {
	return s.history
}

// Scene returns a deep copy of the current scene
func (s *Session) Scene() scene.Scene {
	return scene.Scene{
		Overlays: s.overlays.Overlays(),
		Strokes:  s.strokes.Strokes(),
	}
}

// InitializeFromFaces resets the session to one overlay per face
func (s *Session) InitializeFromFaces(faces []types.Box) {
	s.overlays.InitializeFromFaces(faces)
	s.history.Clear()
	s.redoViews = nil
}

// Record appends an action and invalidates pending redo views
func (s *Session) Record(action history.Action) {
	s.history.Record(action)
	s.redoViews = nil
}

// AddAt places an overlay and records it
func (s *Session) AddAt(content scene.Content, x, y float64) scene.Overlay {
	o := s.overlays.AddAt(content, x, y)
	s.Record(history.AddOverlay{After: o, Index: s.overlays.Len() - 1})
	return o
}

// Delete removes an overlay and records it
func (s *Session) Delete(id string) error {
	o, idx, ok := s.overlays.Remove(id)
	if !ok {
		return fmt.Errorf("delete %s: %w", id, scene.ErrInvalidMutation)
	}
	s.Record(history.DeleteOverlay{Before: o, Index: idx})
	return nil
}

// Replace swaps one overlay's content and records before and after
func (s *Session) Replace(id string, content scene.Content) error {
	before, ok := s.overlays.Get(id)
	if !ok {
		return fmt.Errorf("replace %s: %w", id, scene.ErrInvalidMutation)
	}
	s.overlays.ReplaceOne(id, content)
	after, _ := s.overlays.Get(id)
	s.Record(history.ReplaceOverlay{Before: before, After: after})
	return nil
}

// ReplaceAll gives every overlay the same content as one recorded action
func (s *Session) ReplaceAll(content scene.Content) {
	s.recordBatch(func() { s.overlays.ReplaceAll(content) })
}

// ReplaceAllWithAssignments assigns contents by position as one recorded action
func (s *Session) ReplaceAllWithAssignments(contents []scene.Content) {
	s.recordBatch(func() { s.overlays.ReplaceAllWithAssignments(contents) })
}

// ReplaceAllRandom gives each overlay a random entry of pool as one recorded action
func (s *Session) ReplaceAllRandom(pool []scene.Content, rnd *rand.Rand) {
	if len(pool) == 0 {
		return
	}
	picks := make([]scene.Content, s.overlays.Len())
	for i := range picks {
		picks[i] = pool[rnd.IntN(len(pool))]
	}
	s.ReplaceAllWithAssignments(picks)
}

func (s *Session) recordBatch(mutate func()) {
	before := s.overlays.Overlays()
	if len(before) == 0 {
		return
	}
	mutate()
	s.Record(history.ReplaceAllOverlays{Before: before, After: s.overlays.Overlays()})
}

// CommitTransform records one TransformOverlay comparing before with the
// overlay's current state. Nothing is recorded when the geometry is unchanged.
func (s *Session) CommitTransform(before scene.Overlay) bool {
	after, ok := s.overlays.Get(before.ID)
	if !ok {
		klog.V(2).Infof("commit transform %s: %v", before.ID, scene.ErrInvalidMutation)
		return false
	}
	if after.Geometry() == before.Geometry() {
		return false
	}
	s.Record(history.TransformOverlay{Before: before, After: after})
	return true
}

// EndStroke commits the in-progress stroke and records it
func (s *Session) EndStroke() (scene.Stroke, bool) {
	st, ok := s.strokes.EndStroke()
	if !ok {
		return st, false
	}
	s.Record(history.AddStroke{Stroke: st})
	return st, true
}

// HitTest returns the topmost overlay whose oval contains the point
func (s *Session) HitTest(x, y float64) (scene.Overlay, bool) {
	return scene.Scene{Overlays: s.overlays.Overlays()}.HitTest(x, y)
}

// Overlay returns a snapshot of one overlay
func (s *Session) Overlay(id string) (scene.Overlay, bool) {
	return s.overlays.Get(id)
}

// Select selects an overlay, or deselects all for an empty id
func (s *Session) Select(id string) bool {
	return s.overlays.Select(id)
}

// SelectedID returns the selected overlay id or ""
func (s *Session) SelectedID() string {
	return s.overlays.SelectedID()
}

// Template returns the last chosen content
func (s *Session) Template() scene.Content {
	return s.overlays.Template()
}

// SetTemplate records the last chosen content
func (s *Session) SetTemplate(c scene.Content) {
	s.overlays.SetTemplate(c)
}

// SetLastUsedScale makes a scale sticky for later placements
func (s *Session) SetLastUsedScale(scale float64) {
	s.overlays.SetLastUsedScale(scale)
}

// StartStroke begins a freehand stroke
func (s *Session) StartStroke(x, y float64) {
	s.strokes.StartStroke(x, y)
}

// AddPoint extends the in-progress stroke
func (s *Session) AddPoint(x, y float64) {
	s.strokes.AddPoint(x, y)
}

// Event is a live transform update for one overlay. Nil fields are left alone.
type Event struct {
	OverlayID string
	Position  *types.Point
	Scale     *float64
	Rotation  *float64
}

// Apply consumes a live transform event without recording history
func (s *Session) Apply(e Event) bool {
	if _, ok := s.overlays.Get(e.OverlayID); !ok {
		klog.V(2).Infof("live event for %s: %v", e.OverlayID, scene.ErrInvalidMutation)
		return false
	}
	if e.Position != nil {
		s.overlays.UpdatePosition(e.OverlayID, e.Position.X, e.Position.Y)
	}
	if e.Scale != nil {
		s.overlays.UpdateScale(e.OverlayID, *e.Scale)
	}
	if e.Rotation != nil {
		s.overlays.UpdateRotation(e.OverlayID, *e.Rotation)
	}
	return true
}
