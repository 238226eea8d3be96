package editor

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/history"
	"github.com/menta2k/photo-redactor/pkg/overlay"
	"github.com/menta2k/photo-redactor/pkg/scene"
)

// Undo reverts the action under the history cursor. The cursor only moves
// once the stores accepted the inverse effect.
func (s *Session) Undo() (history.Action, error) {
	action, ok := s.history.PeekUndo()
	if !ok {
		return nil, nil
	}
	v := view{order: s.overlays.Order(), selected: s.overlays.SelectedID()}
	if err := s.revert(action); err != nil {
		return action, fmt.Errorf("undo %s: %w", action.Type(), err)
	}
	s.history.ConfirmUndo()
	s.redoViews = append(s.redoViews, v)
	klog.V(1).Infof("undo %s", action.Type())
	return action, nil
}

// Redo reapplies the action after the history cursor
func (s *Session) Redo() (history.Action, error) {
	action, ok := s.history.PeekRedo()
	if !ok {
		return nil, nil
	}
	if err := s.reapply(action); err != nil {
		return action, fmt.Errorf("redo %s: %w", action.Type(), err)
	}
	s.history.ConfirmRedo()
	if n := len(s.redoViews); n > 0 {
		v := s.redoViews[n-1]
		s.redoViews = s.redoViews[:n-1]
		s.overlays.Arrange(v.order, v.selected)
	}
	klog.V(1).Infof("redo %s", action.Type())
	return action, nil
}

func (s *Session) revert(action history.Action) error {
	switch a := action.(type) {
	case history.AddOverlay:
		if _, _, ok := s.overlays.Remove(a.After.ID); !ok {
			return missing(a.After.ID)
		}
	case history.DeleteOverlay:
		s.overlays.Restore(a.Before, a.Index)
	case history.TransformOverlay:
		return s.applyGeometry(a.Before)
	case history.ReplaceOverlay:
		return s.applyContent(a.Before)
	case history.ReplaceAllOverlays:
		for _, o := range a.Before {
			if err := s.applyContent(o); err != nil {
				return err
			}
		}
	case history.AddStroke:
		if _, ok := s.strokes.Take(a.Stroke.ID); !ok {
			return missing(a.Stroke.ID)
		}
	default:
		return fmt.Errorf("unsupported action %T", action)
	}
	return nil
}

func (s *Session) reapply(action history.Action) error {
	switch a := action.(type) {
	case history.AddOverlay:
		s.overlays.Restore(a.After, a.Index)
	case history.DeleteOverlay:
		if _, _, ok := s.overlays.Remove(a.Before.ID); !ok {
			return missing(a.Before.ID)
		}
	case history.TransformOverlay:
		return s.applyGeometry(a.After)
	case history.ReplaceOverlay:
		return s.applyContent(a.After)
	case history.ReplaceAllOverlays:
		for _, o := range a.After {
			if err := s.applyContent(o); err != nil {
				return err
			}
		}
	case history.AddStroke:
		s.strokes.Put(a.Stroke)
	default:
		return fmt.Errorf("unsupported action %T", action)
	}
	return nil
}

func (s *Session) applyGeometry(o scene.Overlay) error {
	g := o.Geometry()
	if !s.overlays.ApplyFullState(o.ID, overlay.Patch{Geometry: &g}) {
		return missing(o.ID)
	}
	return nil
}

func (s *Session) applyContent(o scene.Overlay) error {
	c := o.Content
	if !s.overlays.ApplyFullState(o.ID, overlay.Patch{Content: &c}) {
		return missing(o.ID)
	}
	return nil
}

func missing(id string) error {
	return fmt.Errorf("%s: %w", id, scene.ErrInvalidMutation)
}
