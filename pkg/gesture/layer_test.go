package gesture

import (
	"math"
	"testing"

	"github.com/menta2k/photo-redactor/pkg/editor"
	"github.com/menta2k/photo-redactor/pkg/history"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/types"
)

func newLayer() (*Layer, *editor.Session) {
	s := editor.New()
	return New(s), s
}

func transforms(s *editor.Session) []history.TransformOverlay {
	var out []history.TransformOverlay
	for _, a := range s.History().Entries() {
		if t, ok := a.(history.TransformOverlay); ok {
			out = append(out, t)
		}
	}
	return out
}

func TestPinchCoalescesHistory(t *testing.T) {
	l, s := newLayer()
	o := s.AddAt(scene.Blur(), 200, 200)
	pre, _ := s.Overlay(o.ID)

	if !l.PinchBegin() {
		t.Fatal("expected pinch to start on the selected overlay")
	}
	for i := 1; i <= 50; i++ {
		l.PinchUpdate(1 + float64(i)*0.02)
	}
	l.PinchEnd()

	got := transforms(s)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 TransformOverlay, got %d", len(got))
	}
	post, _ := s.Overlay(o.ID)
	if got[0].Before != pre {
		t.Errorf("before snapshot mismatch\n got %+v\nwant %+v", got[0].Before, pre)
	}
	if got[0].After != post {
		t.Errorf("after snapshot mismatch\n got %+v\nwant %+v", got[0].After, post)
	}
	if post.Scale != 2.0 {
		t.Errorf("expected final scale 2.0, got %v", post.Scale)
	}
	if s.Overlays().LastUsedScale() != 2.0 {
		t.Errorf("expected sticky scale 2.0, got %v", s.Overlays().LastUsedScale())
	}
}

func TestPinchClamps(t *testing.T) {
	l, s := newLayer()
	o := s.AddAt(scene.Blur(), 200, 200)
	l.PinchBegin()
	l.PinchUpdate(100)
	got, _ := s.Overlay(o.ID)
	if got.Scale != 3.0 {
		t.Errorf("expected clamp to 3.0, got %v", got.Scale)
	}
	l.PinchUpdate(0)
	got, _ = s.Overlay(o.ID)
	if got.Scale != 0.01 {
		t.Errorf("expected clamp to 0.01, got %v", got.Scale)
	}
	l.PinchEnd()
}

func TestSimultaneousPinchRotateSingleAction(t *testing.T) {
	l, s := newLayer()
	o := s.AddAt(scene.Blur(), 200, 200)
	cx0, cy0 := o.Center()

	l.PinchBegin()
	l.RotateBegin()
	for i := 1; i <= 20; i++ {
		l.PinchUpdate(1 + float64(i)*0.01)
		l.RotateUpdate(float64(i) * math.Pi / 40)
	}
	l.PinchEnd()
	if len(transforms(s)) != 0 {
		t.Fatal("recorded before the last recogniser ended")
	}
	l.RotateEnd()

	got := transforms(s)
	if len(got) != 1 {
		t.Fatalf("expected 1 TransformOverlay, got %d", len(got))
	}
	after := got[0].After
	if math.Abs(after.Rotation-90) > 1e-9 {
		t.Errorf("expected rotation 90, got %v", after.Rotation)
	}
	cx, cy := after.Center()
	if math.Abs(cx-cx0) > 1e-9 || math.Abs(cy-cy0) > 1e-9 {
		t.Errorf("pivot moved from %v,%v to %v,%v", cx0, cy0, cx, cy)
	}
}

func TestDragMovesAndRecordsOnce(t *testing.T) {
	l, s := newLayer()
	a := s.AddAt(scene.Blur(), 100, 100)
	b := s.AddAt(scene.Blur(), 400, 400)

	l.PanBegin(100, 100)
	if s.SelectedID() != a.ID {
		t.Fatal("expected drag to select the overlay under the pointer")
	}
	for i := 1; i <= 10; i++ {
		l.PanMove(100+float64(i)*3, 100+float64(i))
	}
	l.PanEnd()

	got, _ := s.Overlay(a.ID)
	if math.Abs(got.X-a.X-30) > 1e-9 || math.Abs(got.Y-a.Y-10) > 1e-9 {
		t.Errorf("expected move by 30,10, got %v,%v", got.X-a.X, got.Y-a.Y)
	}
	if len(transforms(s)) != 1 {
		t.Errorf("expected 1 TransformOverlay, got %d", len(transforms(s)))
	}
	if other, _ := s.Overlay(b.ID); other.X != b.X {
		t.Error("drag moved the wrong overlay")
	}
	if s.Overlays().LastUsedScale() != 0 {
		t.Error("drag must not set a sticky scale")
	}
}

func TestDragWithPinchKeepsPivot(t *testing.T) {
	l, s := newLayer()
	o := s.AddAt(scene.Blur(), 200, 200)
	cx0, cy0 := o.Center()

	if !l.PinchBegin() {
		t.Fatal("expected pinch to start")
	}
	if !l.PanBegin(200, 200) {
		t.Fatal("expected drag to start on the overlay")
	}
	l.PinchUpdate(2)
	l.PanMove(200, 200)

	got, _ := s.Overlay(o.ID)
	if got.Scale != o.Scale*2 {
		t.Errorf("expected scale %v, got %v", o.Scale*2, got.Scale)
	}
	cx, cy := got.Center()
	if math.Abs(cx-cx0) > 1e-9 || math.Abs(cy-cy0) > 1e-9 {
		t.Errorf("pivot moved from %v,%v to %v,%v", cx0, cy0, cx, cy)
	}

	l.PanMove(230, 210)
	got, _ = s.Overlay(o.ID)
	cx, cy = got.Center()
	if math.Abs(cx-cx0-30) > 1e-9 || math.Abs(cy-cy0-10) > 1e-9 {
		t.Errorf("expected center moved by 30,10, got %v,%v", cx-cx0, cy-cy0)
	}

	l.PinchEnd()
	l.PanEnd()
	if len(transforms(s)) != 1 {
		t.Errorf("expected 1 TransformOverlay, got %d", len(transforms(s)))
	}
}

func TestPanBeginMiss(t *testing.T) {
	l, s := newLayer()
	s.AddAt(scene.Blur(), 200, 200)
	if l.PanBegin(900, 900) {
		t.Error("expected drag on empty canvas to be rejected")
	}
}

func TestHandles(t *testing.T) {
	l, s := newLayer()
	o := s.AddAt(scene.Blur(), 200, 200)

	l.Begin(ScaleHandle, 0, 0)
	l.Update(ScaleHandle, 0, 100)
	l.End(ScaleHandle)
	got, _ := s.Overlay(o.ID)
	if math.Abs(got.Scale-1.5) > 1e-9 {
		t.Errorf("expected scale 1.5, got %v", got.Scale)
	}

	l.Begin(RotateHandle, 0, 0)
	l.Update(RotateHandle, 60, 0)
	l.End(RotateHandle)
	got, _ = s.Overlay(o.ID)
	if got.Rotation != 30 {
		t.Errorf("expected rotation 30, got %v", got.Rotation)
	}
	if len(transforms(s)) != 2 {
		t.Errorf("expected 2 TransformOverlay actions, got %d", len(transforms(s)))
	}
}

func TestNoSelectionNoGesture(t *testing.T) {
	l, s := newLayer()
	s.AddAt(scene.Blur(), 200, 200)
	s.Select("")
	if l.PinchBegin() {
		t.Error("expected pinch to be ignored without a selection")
	}
	l.PinchUpdate(2)
	l.PinchEnd()
	if len(transforms(s)) != 0 {
		t.Error("unexpected transform recorded")
	}
}

func TestAddModeTwoTaps(t *testing.T) {
	l, s := newLayer()
	template := scene.Emoji("🎭")
	s.SetTemplate(template)
	l.SetMode(ModeAdd)

	l.Tap(50, 50)
	l.Tap(80, 80)

	if l.Mode() != ModeAdd {
		t.Error("add mode must persist across placements")
	}
	overlays := s.Overlays().Overlays()
	if len(overlays) != 2 {
		t.Fatalf("expected 2 overlays, got %d", len(overlays))
	}
	centers := []types.Point{{X: 50, Y: 50}, {X: 80, Y: 80}}
	for i, o := range overlays {
		if o.Content != template {
			t.Errorf("overlay %d: unexpected content %+v", i, o.Content)
		}
		cx, cy := o.Center()
		if math.Abs(cx-centers[i].X) > 1e-9 || math.Abs(cy-centers[i].Y) > 1e-9 {
			t.Errorf("overlay %d centered at %v,%v, want %+v", i, cx, cy, centers[i])
		}
	}

	entries := s.History().Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(entries))
	}
	for i, e := range entries {
		add, ok := e.(history.AddOverlay)
		if !ok {
			t.Fatalf("action %d is %s, want AddOverlay", i, e.Type())
		}
		if add.After.ID != overlays[i].ID {
			t.Errorf("action %d refers to %s, want %s", i, add.After.ID, overlays[i].ID)
		}
	}
}

func TestAddModeStacksOverOverlays(t *testing.T) {
	l, s := newLayer()
	s.AddAt(scene.Blur(), 100, 100)
	l.SetMode(ModeAdd)
	l.Tap(100, 100)
	if s.Overlays().Len() != 2 {
		t.Errorf("expected a second overlay on top of the first, got %d", s.Overlays().Len())
	}
}

func TestSwitchModeReplaces(t *testing.T) {
	l, s := newLayer()
	o := s.AddAt(scene.Blur(), 100, 100)
	s.SetTemplate(scene.Image("hypurr/03"))
	l.SetMode(ModeSwitch)

	l.Tap(100, 100)

	got, _ := s.Overlay(o.ID)
	if got.Content != scene.Image("hypurr/03") {
		t.Errorf("expected content to be switched, got %+v", got.Content)
	}
	if got.X != o.X || got.Scale != o.Scale {
		t.Error("switch must keep geometry")
	}
	a, _ := s.History().PeekUndo()
	r, ok := a.(history.ReplaceOverlay)
	if !ok {
		t.Fatalf("expected ReplaceOverlay, got %s", a.Type())
	}
	if r.Before.Content != scene.Blur() || r.After.Content != scene.Image("hypurr/03") {
		t.Errorf("unexpected snapshots %+v -> %+v", r.Before.Content, r.After.Content)
	}
}

func TestIdleTapSelectsAndDeselects(t *testing.T) {
	l, s := newLayer()
	a := s.AddAt(scene.Blur(), 100, 100)
	s.AddAt(scene.Blur(), 400, 400)

	l.Tap(100, 100)
	if s.SelectedID() != a.ID {
		t.Fatal("expected tap to select overlay")
	}
	order := s.Overlays().Order()
	if order[len(order)-1] != a.ID {
		t.Error("expected selected overlay to render last")
	}

	l.Tap(700, 700)
	if s.SelectedID() != "" {
		t.Error("expected tap on empty canvas to deselect")
	}
	if s.History().Len() != 2 {
		t.Error("selection must not be recorded")
	}
}

func TestDrawMode(t *testing.T) {
	l, s := newLayer()
	o := s.AddAt(scene.Blur(), 100, 100)
	s.Select("")
	l.SetMode(ModeDraw)

	l.Tap(100, 100)
	if s.SelectedID() != "" {
		t.Error("tap must not select in draw mode")
	}

	l.PanBegin(10, 10)
	l.PanMove(20, 20)
	l.PanMove(30, 30)
	l.PanEnd()

	strokes := s.Strokes().Strokes()
	if len(strokes) != 1 || len(strokes[0].Points) != 3 {
		t.Fatalf("expected one 3-point stroke, got %+v", strokes)
	}
	a, _ := s.History().PeekUndo()
	if a.Type() != history.TypeAddStroke {
		t.Errorf("expected AddStroke, got %s", a.Type())
	}
	if got, _ := s.Overlay(o.ID); got.X != o.X {
		t.Error("draw pan must not move overlays")
	}
}

func TestLeavingDrawModeCommitsStroke(t *testing.T) {
	l, s := newLayer()
	l.SetMode(ModeDraw)
	l.PanBegin(0, 0)
	l.PanMove(5, 5)
	l.SetMode(ModeIdle)
	if len(s.Strokes().Strokes()) != 1 {
		t.Error("expected stroke to be committed on mode change")
	}
}
