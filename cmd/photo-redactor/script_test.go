package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/photo-redactor/pkg/editor"
	"github.com/menta2k/photo-redactor/pkg/gesture"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/stickers"
	"github.com/menta2k/photo-redactor/pkg/types"
)

func newRunner() *Runner {
	s := editor.New()
	return &Runner{Session: s, Layer: gesture.New(s)}
}

func TestRunAddAndUndo(t *testing.T) {
	r := newRunner()
	err := r.Run([]Command{
		{Op: "mode", Mode: "add"},
		{Op: "tap", X: 50, Y: 50},
		{Op: "tap", X: 80, Y: 80},
		{Op: "undo"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := r.Session.Overlays().Len(); n != 1 {
		t.Fatalf("expected 1 overlay after undo, got %d", n)
	}

	if err := r.Run([]Command{{Op: "redo"}}); err != nil {
		t.Fatal(err)
	}
	if n := r.Session.Overlays().Len(); n != 2 {
		t.Errorf("expected 2 overlays after redo, got %d", n)
	}
	if r.Layer.Mode() != gesture.ModeIdle {
		t.Errorf("expected idle mode after run, got %s", r.Layer.Mode())
	}
}

func TestRunTemplateAndReplaceAll(t *testing.T) {
	r := newRunner()
	r.Session.InitializeFromFaces([]types.Box{{X: 0, Y: 0, W: 100, H: 100}, {X: 200, Y: 0, W: 50, H: 50}})

	err := r.Run([]Command{
		{Op: "template", Sticker: "😎"},
		{Op: "replace_all"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, o := range r.Session.Overlays().Overlays() {
		if o.Content != scene.Emoji("😎") {
			t.Errorf("unexpected content %+v", o.Content)
		}
	}
	if r.Session.History().Len() != 1 {
		t.Errorf("expected one action, got %d", r.Session.History().Len())
	}
}

func TestRunDrawKeepsMode(t *testing.T) {
	r := newRunner()
	err := r.Run([]Command{
		{Op: "mode", Mode: "switch"},
		{Op: "draw", Points: []types.Point{{X: 10, Y: 10}, {X: 30, Y: 10}}},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := len(r.Session.Strokes().Strokes()); n != 1 {
		t.Errorf("expected 1 stroke, got %d", n)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"unknown op", Command{Op: "explode"}},
		{"unknown mode", Command{Op: "mode", Mode: "fly"}},
		{"pinch without selection", Command{Op: "pinch", Factor: 2}},
		{"rotate without selection", Command{Op: "rotate", Degrees: 45}},
		{"delete without selection", Command{Op: "delete"}},
		{"delete on empty canvas", Command{Op: "delete", X: 40, Y: 40}},
		{"drag on empty canvas", Command{Op: "drag", X: 40, Y: 40, DX: 10}},
		{"empty draw", Command{Op: "draw"}},
		{"randomize unavailable", Command{Op: "randomize"}},
		{"unknown sticker", Command{Op: "template", Sticker: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := newRunner().Run([]Command{tt.cmd}); err == nil {
				t.Error("expected error")
			}
		})
	}

	err := newRunner().Run([]Command{{Op: "template", Sticker: "nope"}})
	if !errors.Is(err, stickers.ErrUnknownSticker) {
		t.Errorf("expected ErrUnknownSticker, got %v", err)
	}
}

func TestRunDeleteAndUndo(t *testing.T) {
	r := newRunner()
	r.Session.InitializeFromFaces([]types.Box{{X: 0, Y: 0, W: 100, H: 100}, {X: 200, Y: 0, W: 100, H: 100}})

	err := r.Run([]Command{
		{Op: "tap", X: 50, Y: 50},
		{Op: "delete"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := r.Session.Overlays().Len(); n != 1 {
		t.Fatalf("expected 1 overlay after delete, got %d", n)
	}
	if _, ok := r.Session.HitTest(50, 50); ok {
		t.Error("deleted overlay still hit")
	}

	if err := r.Run([]Command{{Op: "undo"}}); err != nil {
		t.Fatal(err)
	}
	if n := r.Session.Overlays().Len(); n != 2 {
		t.Fatalf("expected 2 overlays after undo, got %d", n)
	}
	if _, ok := r.Session.HitTest(50, 50); !ok {
		t.Error("undo did not restore the overlay")
	}

	if err := r.Run([]Command{{Op: "delete", X: 250, Y: 50}}); err != nil {
		t.Fatalf("delete at point failed: %v", err)
	}
	if _, ok := r.Session.HitTest(250, 50); ok {
		t.Error("overlay at point not deleted")
	}
}

func TestRunDragMovesOverlay(t *testing.T) {
	r := newRunner()
	r.Session.InitializeFromFaces([]types.Box{{X: 0, Y: 0, W: 100, H: 100}})
	if err := r.Run([]Command{{Op: "drag", X: 50, Y: 50, DX: 200}}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, ok := r.Session.HitTest(250, 50); !ok {
		t.Error("expected overlay moved under 250,50")
	}
}

func TestRunPinchAndRotate(t *testing.T) {
	r := newRunner()
	r.Session.InitializeFromFaces([]types.Box{{X: 0, Y: 0, W: 100, H: 100}})
	err := r.Run([]Command{
		{Op: "tap", X: 50, Y: 50},
		{Op: "pinch", Factor: 2},
		{Op: "rotate", Degrees: 90},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	o := r.Session.Overlays().Overlays()[0]
	if o.Scale != 2 {
		t.Errorf("expected scale 2, got %.3f", o.Scale)
	}
	if o.Rotation < 89.999 || o.Rotation > 90.001 {
		t.Errorf("expected rotation 90, got %.3f", o.Rotation)
	}
	if r.Session.History().Len() != 2 {
		t.Errorf("expected 2 actions, got %d", r.Session.History().Len())
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edits.json")
	data := `[{"op":"mode","mode":"draw"},{"op":"draw","points":[{"x":1,"y":2}]}]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cmds, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if len(cmds) != 2 || cmds[1].Points[0].Y != 2 {
		t.Errorf("unexpected commands %+v", cmds)
	}

	os.WriteFile(path, []byte("{"), 0644)
	if _, err := LoadScript(path); err == nil {
		t.Error("expected parse error")
	}
}
