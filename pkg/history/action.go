package history

import (
	"github.com/menta2k/photo-redactor/pkg/scene"
)

// Type identifies an action variant
type Type int

const (
	TypeAddOverlay Type = iota
	TypeDeleteOverlay
	TypeTransformOverlay
	TypeReplaceOverlay
	TypeReplaceAllOverlays
	TypeAddStroke
)

var typeNames = map[Type]string{
	TypeAddOverlay:         "add_overlay",
	TypeDeleteOverlay:      "delete_overlay",
	TypeTransformOverlay:   "transform_overlay",
	TypeReplaceOverlay:     "replace_overlay",
	TypeReplaceAllOverlays: "replace_all_overlays",
	TypeAddStroke:          "add_stroke",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// Action is one self-contained history entry. Every variant carries the
// snapshots needed to undo and redo it without consulting the live scene.
type Action interface {
	Type() Type
}

// AddOverlay records a placement
type AddOverlay struct {
	After scene.Overlay
	Index int
}

// DeleteOverlay records a removal and the index the overlay occupied
type DeleteOverlay struct {
	Before scene.Overlay
	Index  int
}

// TransformOverlay records one move/scale/rotate gesture
type TransformOverlay struct {
	Before scene.Overlay
	After  scene.Overlay
}

// ReplaceOverlay records a content swap on one overlay
type ReplaceOverlay struct {
	Before scene.Overlay
	After  scene.Overlay
}

// ReplaceAllOverlays records a batch content swap. Before[i] and After[i]
// describe the same overlay.
type ReplaceAllOverlays struct {
	Before []scene.Overlay
	After  []scene.Overlay
}

// AddStroke records a committed stroke
type AddStroke struct {
	Stroke scene.Stroke
}

func (AddOverlay) Type() Type         { return TypeAddOverlay }
func (DeleteOverlay) Type() Type      { return TypeDeleteOverlay }
func (TransformOverlay) Type() Type   { return TypeTransformOverlay }
func (ReplaceOverlay) Type() Type     { return TypeReplaceOverlay }
func (ReplaceAllOverlays) Type() Type { return TypeReplaceAllOverlays }
func (AddStroke) Type() Type          { return TypeAddStroke }
