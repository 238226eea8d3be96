// Package overlay holds the ordered list of overlays placed over a photo and
// the placement policy derived from detected face sizes.
//
// A Store is owned by a single editing session and is not safe for
// concurrent use; hand a copy from Overlays to other goroutines.
package overlay

import (
	"slices"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// Config holds placement parameters for new overlays
type Config struct {
	// DefaultContent is used for face-initialised overlays and as the first template
	DefaultContent scene.Content
	// OvalExpansion stretches each face box vertically before sizing overlays
	OvalExpansion float64
	// DefaultSize is the box edge used when no face has been detected
	DefaultSize float64
}

// DefaultConfig returns the standard placement parameters
func DefaultConfig() Config {
	return Config{
		DefaultContent: scene.Blur(),
		OvalExpansion:  1.3,
		DefaultSize:    100,
	}
}

// Patch carries the snapshot fields restored by undo and redo
type Patch struct {
	Geometry *scene.Geometry
	Content  *scene.Content
}

// Store is the overlay collection of one editing session
type Store struct {
	config     Config
	overlays   []scene.Overlay
	selectedID string

	largest  types.Box
	smallest types.Box
	hasFaces bool

	lastUsedScale float64
	template      scene.Content
}

// New creates a Store with default configuration
func New() *Store {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Store with custom configuration
func NewWithConfig(config Config) *Store {
	if config.OvalExpansion <= 0 {
		config.OvalExpansion = 1
	}
	if config.DefaultSize <= 0 {
		config.DefaultSize = 100
	}
	return &Store{
		config:   config,
		template: config.DefaultContent,
	}
}

// InitializeFromFaces replaces the scene with one overlay per face. Every
// overlay gets the box of the largest face and a scale that shrinks it to
// its own face width.
func (s *Store) InitializeFromFaces(faces []types.Box) {
	s.overlays = nil
	s.selectedID = ""
	s.lastUsedScale = 0
	s.hasFaces = false
	s.largest, s.smallest = types.Box{}, types.Box{}

	if len(faces) == 0 {
		klog.V(1).Infof("no faces, scene cleared")
		return
	}

	ovals := make([]types.Box, 0, len(faces))
	for _, f := range faces {
		if f.Empty() {
			continue
		}
		ovals = append(ovals, geometry.ExpandOval(f, s.config.OvalExpansion))
	}
	if len(ovals) == 0 {
		return
	}

	s.largest, s.smallest = ovals[0], ovals[0]
	for _, o := range ovals[1:] {
		if o.Area() > s.largest.Area() {
			s.largest = o
		}
		if o.Area() < s.smallest.Area() {
			s.smallest = o
		}
	}
	s.hasFaces = true

	for _, o := range ovals {
		scale := geometry.ClampScale(o.W / s.largest.W)
		cx, cy := o.Center()
		s.overlays = append(s.overlays, scene.Overlay{
			ID:      geometry.GenerateID(geometry.PrefixOverlay),
			Content: s.config.DefaultContent,
			X:       cx - s.largest.W*scale/2,
			Y:       cy - s.largest.H*scale/2,
			W:       s.largest.W,
			H:       s.largest.H,
			Scale:   scale,
		})
	}
	klog.V(1).Infof("initialised %d overlays, box %.1fx%.1f", len(s.overlays), s.largest.W, s.largest.H)
}

// DefaultScale is the scale a new placement gets: the sticky last used
// scale when set, otherwise smallest/largest face width.
func (s *Store) DefaultScale() float64 {
	if s.lastUsedScale > 0 {
		return geometry.ClampScale(s.lastUsedScale)
	}
	if s.hasFaces && s.largest.W > 0 {
		return geometry.ClampScale(s.smallest.W / s.largest.W)
	}
	return 1
}

// AddAt appends a new selected overlay centered on (x, y)
func (s *Store) AddAt(content scene.Content, x, y float64) scene.Overlay {
	w, h := s.config.DefaultSize, s.config.DefaultSize
	if s.hasFaces {
		w, h = s.largest.W, s.largest.H
	}
	scale := s.DefaultScale()

	o := scene.Overlay{
		ID:       geometry.GenerateID(geometry.PrefixOverlay),
		Content:  content,
		X:        x - w*scale/2,
		Y:        y - h*scale/2,
		W:        w,
		H:        h,
		Scale:    scale,
		Selected: true,
	}
	s.deselectAll()
	s.overlays = append(s.overlays, o)
	s.selectedID = o.ID
	return o
}

// ReplaceOne swaps the content of one overlay, keeping its geometry
func (s *Store) ReplaceOne(id string, content scene.Content) bool {
	i := s.index(id)
	if i < 0 {
		return s.noop("replace", id)
	}
	s.overlays[i].Content = content
	return true
}

// ReplaceAll gives every overlay the same content
func (s *Store) ReplaceAll(content scene.Content) {
	for i := range s.overlays {
		s.overlays[i].Content = content
	}
}

// ReplaceAllWithAssignments gives overlay i contents[i], wrapping around
// when there are fewer contents than overlays.
func (s *Store) ReplaceAllWithAssignments(contents []scene.Content) {
	if len(contents) == 0 {
		return
	}
	for i := range s.overlays {
		s.overlays[i].Content = contents[i%len(contents)]
	}
}

// UpdatePosition moves an overlay
func (s *Store) UpdatePosition(id string, x, y float64) bool {
	i := s.index(id)
	if i < 0 {
		return s.noop("move", id)
	}
	s.overlays[i].X, s.overlays[i].Y = x, y
	return true
}

// UpdateScale sets a clamped scale and keeps the box center fixed
func (s *Store) UpdateScale(id string, scale float64) bool {
	i := s.index(id)
	if i < 0 {
		return s.noop("scale", id)
	}
	o := &s.overlays[i]
	cx, cy := o.Center()
	o.Scale = geometry.ClampScale(scale)
	o.X = cx - o.W*o.Scale/2
	o.Y = cy - o.H*o.Scale/2
	return true
}

// UpdateRotation sets the rotation in degrees
func (s *Store) UpdateRotation(id string, rotation float64) bool {
	i := s.index(id)
	if i < 0 {
		return s.noop("rotate", id)
	}
	s.overlays[i].Rotation = rotation
	return true
}

// Select marks one overlay selected and moves it to the end of the render
// order. An empty id deselects everything without reordering.
func (s *Store) Select(id string) bool {
	if id == "" {
		s.deselectAll()
		return true
	}
	i := s.index(id)
	if i < 0 {
		return s.noop("select", id)
	}
	o := s.overlays[i]
	s.overlays = slices.Delete(s.overlays, i, i+1)
	s.deselectAll()
	o.Selected = true
	s.overlays = append(s.overlays, o)
	s.selectedID = id
	return true
}

// Remove deletes an overlay and returns its snapshot and former index
func (s *Store) Remove(id string) (scene.Overlay, int, bool) {
	i := s.index(id)
	if i < 0 {
		s.noop("remove", id)
		return scene.Overlay{}, -1, false
	}
	o := s.overlays[i]
	s.overlays = slices.Delete(s.overlays, i, i+1)
	if s.selectedID == id {
		s.selectedID = ""
	}
	return o, i, true
}

// Restore re-inserts a snapshot verbatim at index, or at the end when index
// is out of range. An overlay with the same id is replaced in place.
func (s *Store) Restore(o scene.Overlay, index int) {
	if i := s.index(o.ID); i >= 0 {
		s.overlays[i] = o
	} else if index < 0 || index > len(s.overlays) {
		s.overlays = append(s.overlays, o)
	} else {
		s.overlays = slices.Insert(s.overlays, index, o)
	}
	if o.Selected {
		for i := range s.overlays {
			s.overlays[i].Selected = s.overlays[i].ID == o.ID
		}
		s.selectedID = o.ID
	}
}

// ApplyFullState patches geometry and/or content from a snapshot in one call
func (s *Store) ApplyFullState(id string, p Patch) bool {
	i := s.index(id)
	if i < 0 {
		return s.noop("apply", id)
	}
	o := &s.overlays[i]
	if p.Geometry != nil {
		o.X, o.Y = p.Geometry.X, p.Geometry.Y
		o.Rotation = p.Geometry.Rotation
		o.Scale = p.Geometry.Scale
	}
	if p.Content != nil {
		o.Content = *p.Content
	}
	return true
}

// Arrange reorders overlays to match order and sets the selection. Ids that
// are not listed keep their relative order after the listed ones.
func (s *Store) Arrange(order []string, selectedID string) {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	slices.SortStableFunc(s.overlays, func(a, b scene.Overlay) int {
		ra, oka := rank[a.ID]
		rb, okb := rank[b.ID]
		switch {
		case oka && okb:
			return ra - rb
		case oka:
			return -1
		case okb:
			return 1
		}
		return 0
	})
	s.selectedID = ""
	for i := range s.overlays {
		s.overlays[i].Selected = s.overlays[i].ID == selectedID
		if s.overlays[i].Selected {
			s.selectedID = selectedID
		}
	}
}

// Order returns overlay ids in render order
func (s *Store) Order() []string {
	ids := make([]string, len(s.overlays))
	for i, o := range s.overlays {
		ids[i] = o.ID
	}
	return ids
}

// Get returns a copy of one overlay
func (s *Store) Get(id string) (scene.Overlay, bool) {
	i := s.index(id)
	if i < 0 {
		return scene.Overlay{}, false
	}
	return s.overlays[i], true
}

// Overlays returns a copy of the overlays in render order
func (s *Store) Overlays() []scene.Overlay {
	return slices.Clone(s.overlays)
}

// SelectedID returns the selected overlay id or ""
func (s *Store) SelectedID() string {
	return s.selectedID
}

// Len returns the number of overlays
func (s *Store) Len() int {
	return len(s.overlays)
}

// Template returns the content used for the next placement or switch
func (s *Store) Template() scene.Content {
	return s.template
}

// SetTemplate records the last chosen content
func (s *Store) SetTemplate(c scene.Content) {
	s.template = c
}

// LastUsedScale returns the sticky scale, 0 when none was set
func (s *Store) LastUsedScale() float64 {
	return s.lastUsedScale
}

// SetLastUsedScale makes scale sticky for later placements
func (s *Store) SetLastUsedScale(scale float64) {
	s.lastUsedScale = geometry.ClampScale(scale)
}

// FaceBox returns the largest expanded face box, if any faces were seen
func (s *Store) FaceBox() (types.Box, bool) {
	return s.largest, s.hasFaces
}

func (s *Store) deselectAll() {
	for i := range s.overlays {
		s.overlays[i].Selected = false
	}
	s.selectedID = ""
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.overlays, func(o scene.Overlay) bool { return o.ID == id })
}

func (s *Store) noop(op, id string) bool {
	klog.V(2).Infof("overlay %s: %s: %v", op, id, scene.ErrInvalidMutation)
	return false
}
