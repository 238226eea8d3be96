// Package gesture maps pointer input onto editing-session mutations.
//
// Transform gestures (drag, pinch, rotate and the two corner handles) apply
// live updates to the session on every frame but record a single
// TransformOverlay action when the last simultaneous recogniser ends.
package gesture

import (
	"math"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/editor"
	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// Mode is the editor input mode
type Mode int

const (
	ModeIdle Mode = iota
	ModeAdd
	ModeSwitch
	ModeDraw
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAdd:
		return "add"
	case ModeSwitch:
		return "switch"
	case ModeDraw:
		return "draw"
	}
	return "unknown"
}

// Recognizer identifies a transform gesture
type Recognizer int

const (
	Drag Recognizer = iota
	Pinch
	Rotate
	ScaleHandle
	RotateHandle
)

// Handle sensitivities
const (
	ScaleHandleRate  = 0.005 // scale per pixel of vertical drag
	RotateHandleRate = 0.5   // degrees per pixel of horizontal drag
)

// Editor is the session surface the layer drives
type Editor interface {
	HitTest(x, y float64) (scene.Overlay, bool)
	Overlay(id string) (scene.Overlay, bool)
	Select(id string) bool
	SelectedID() string
	Template() scene.Content
	SetLastUsedScale(scale float64)
	AddAt(content scene.Content, x, y float64) scene.Overlay
	Replace(id string, content scene.Content) error
	Apply(e editor.Event) bool
	CommitTransform(before scene.Overlay) bool
	StartStroke(x, y float64)
	AddPoint(x, y float64)
	EndStroke() (scene.Stroke, bool)
}

type start struct {
	overlay scene.Overlay
	x, y    float64
}

// Layer is the input state machine. It runs on the UI goroutine.
type Layer struct {
	editor Editor
	mode   Mode

	targetID     string
	before       scene.Overlay
	active       map[Recognizer]start
	scaleTouched bool
	drawing      bool
}

// New creates a Layer in idle mode
func New(e Editor) *Layer {
	return &Layer{
		editor: e,
		active: make(map[Recognizer]start),
	}
}

// Mode returns the current mode
func (l *Layer) Mode() Mode {
	return l.mode
}

// SetMode switches modes. Leaving draw mode commits a stroke in progress.
func (l *Layer) SetMode(m Mode) {
	if l.mode == m {
		return
	}
	if l.mode == ModeDraw && l.drawing {
		l.endStroke()
	}
	klog.V(1).Infof("gesture mode %s -> %s", l.mode, m)
	l.mode = m
}

// Tap handles a single tap at (x, y)
func (l *Layer) Tap(x, y float64) {
	if l.mode == ModeDraw {
		return
	}
	if l.mode == ModeAdd {
		l.editor.AddAt(l.editor.Template(), x, y)
		return
	}
	hit, ok := l.editor.HitTest(x, y)
	switch l.mode {
	case ModeSwitch:
		if ok {
			if err := l.editor.Replace(hit.ID, l.editor.Template()); err != nil {
				klog.V(2).Infof("switch: %v", err)
			}
			return
		}
		l.editor.Select("")
	default:
		if ok {
			l.editor.Select(hit.ID)
			return
		}
		l.editor.Select("")
	}
}

// PanBegin starts a stroke in draw mode, otherwise a drag of the overlay
// under the pointer. It reports false when a drag found no overlay.
func (l *Layer) PanBegin(x, y float64) bool {
	if l.mode == ModeDraw {
		l.editor.StartStroke(x, y)
		l.drawing = true
		return true
	}
	return l.Begin(Drag, x, y)
}

// PanMove extends the stroke or drag
func (l *Layer) PanMove(x, y float64) {
	if l.mode == ModeDraw {
		if l.drawing {
			l.editor.AddPoint(x, y)
		}
		return
	}
	l.Update(Drag, x, y)
}

// PanEnd commits the stroke or drag
func (l *Layer) PanEnd() {
	if l.mode == ModeDraw {
		if l.drawing {
			l.endStroke()
		}
		return
	}
	l.End(Drag)
}

func (l *Layer) endStroke() {
	l.drawing = false
	if _, ok := l.editor.EndStroke(); !ok {
		klog.V(2).Infof("pan ended without points")
	}
}

// PinchBegin starts a pinch on the selected overlay
func (l *Layer) PinchBegin() bool { return l.Begin(Pinch, 0, 0) }

// PinchUpdate applies the cumulative pinch factor
func (l *Layer) PinchUpdate(factor float64) { l.Update(Pinch, factor, 0) }

// PinchEnd finishes the pinch
func (l *Layer) PinchEnd() { l.End(Pinch) }

// RotateBegin starts a two-finger rotation on the selected overlay
func (l *Layer) RotateBegin() bool { return l.Begin(Rotate, 0, 0) }

// RotateUpdate applies the cumulative rotation in radians
func (l *Layer) RotateUpdate(radians float64) { l.Update(Rotate, radians, 0) }

// RotateEnd finishes the rotation
func (l *Layer) RotateEnd() { l.End(Rotate) }

// Begin starts recogniser r. Drag targets the overlay under (x, y) and
// selects it; every other recogniser targets the selected overlay. All
// recognisers running at once share one pre-gesture snapshot.
func (l *Layer) Begin(r Recognizer, x, y float64) bool {
	var id string
	if r == Drag {
		hit, ok := l.editor.HitTest(x, y)
		if !ok {
			return false
		}
		id = hit.ID
	} else {
		id = l.editor.SelectedID()
	}
	if id == "" {
		return false
	}
	if len(l.active) > 0 && id != l.targetID {
		return false
	}

	if r == Drag && l.editor.SelectedID() != id {
		l.editor.Select(id)
	}
	cur, ok := l.editor.Overlay(id)
	if !ok {
		return false
	}
	if len(l.active) == 0 {
		l.targetID = id
		l.before = cur
		l.scaleTouched = false
	}
	l.active[r] = start{overlay: cur, x: x, y: y}
	return true
}

// Update feeds recogniser r. For Drag (a, b) is the pointer position, for
// Pinch a is the scale factor, for Rotate a is radians, for ScaleHandle b is
// the vertical translation and for RotateHandle a is the horizontal one.
func (l *Layer) Update(r Recognizer, a, b float64) {
	st, ok := l.active[r]
	if !ok {
		return
	}
	e := editor.Event{OverlayID: l.targetID}
	saved := st.overlay
	switch r {
	case Drag:
		// translate the center so a concurrent scale keeps pivoting about it
		cur, ok := l.editor.Overlay(l.targetID)
		if !ok {
			return
		}
		cx, cy := saved.Center()
		cx += a - st.x
		cy += b - st.y
		e.Position = &types.Point{X: cx - cur.W*cur.Scale/2, Y: cy - cur.H*cur.Scale/2}
	case Pinch:
		s := geometry.ClampScale(saved.Scale * a)
		e.Scale = &s
	case Rotate:
		deg := saved.Rotation + a*180/math.Pi
		e.Rotation = &deg
	case ScaleHandle:
		s := geometry.ClampScale(saved.Scale + b*ScaleHandleRate)
		e.Scale = &s
	case RotateHandle:
		deg := saved.Rotation + a*RotateHandleRate
		e.Rotation = &deg
	}
	l.editor.Apply(e)
}

// End finishes recogniser r. When it was the last one running, exactly one
// TransformOverlay is recorded and a changed scale becomes sticky.
func (l *Layer) End(r Recognizer) {
	if _, ok := l.active[r]; !ok {
		return
	}
	delete(l.active, r)
	if r == Pinch || r == ScaleHandle {
		l.scaleTouched = true
	}
	if len(l.active) > 0 {
		return
	}

	l.editor.CommitTransform(l.before)
	if l.scaleTouched {
		if cur, ok := l.editor.Overlay(l.targetID); ok {
			l.editor.SetLastUsedScale(cur.Scale)
		}
	}
	l.targetID = ""
	l.before = scene.Overlay{}
	l.scaleTouched = false
}

// Active reports whether a transform gesture is in flight
func (l *Layer) Active() bool {
	return len(l.active) > 0
}
