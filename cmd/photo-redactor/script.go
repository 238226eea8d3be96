package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/internal/utils"
	"github.com/menta2k/photo-redactor/pkg/editor"
	"github.com/menta2k/photo-redactor/pkg/gesture"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/stickers"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// Command is one step of an edit script. Coordinates are in display space.
type Command struct {
	Op      string        `json:"op"`
	Mode    string        `json:"mode,omitempty"`
	X       float64       `json:"x,omitempty"`
	Y       float64       `json:"y,omitempty"`
	DX      float64       `json:"dx,omitempty"`
	DY      float64       `json:"dy,omitempty"`
	Factor  float64       `json:"factor,omitempty"`
	Degrees float64       `json:"degrees,omitempty"`
	Sticker string        `json:"sticker,omitempty"`
	Points  []types.Point `json:"points,omitempty"`
}

// LoadScript reads a JSON list of commands
func LoadScript(path string) ([]Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var cmds []Command
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return cmds, nil
}

var modes = map[string]gesture.Mode{
	"idle":   gesture.ModeIdle,
	"add":    gesture.ModeAdd,
	"switch": gesture.ModeSwitch,
	"draw":   gesture.ModeDraw,
}

// Runner replays commands against a session through its gesture layer
type Runner struct {
	Session   *editor.Session
	Layer     *gesture.Layer
	Stickers  *stickers.Registry
	Randomize func() error
}

// Run executes cmds in order and stops at the first failing command
func (r *Runner) Run(cmds []Command) error {
	for i, c := range cmds {
		if err := r.step(c); err != nil {
			return fmt.Errorf("command %d (%s): %w", i+1, c.Op, err)
		}
	}
	// a script may end while still drawing
	r.Layer.SetMode(gesture.ModeIdle)
	return nil
}

func (r *Runner) step(c Command) error {
	klog.V(2).Infof("script: %+v", c)
	switch strings.ToLower(c.Op) {
	case "mode":
		m, ok := modes[strings.ToLower(c.Mode)]
		if !ok {
			return fmt.Errorf("unknown mode %q", c.Mode)
		}
		r.Layer.SetMode(m)
	case "tap":
		r.Layer.Tap(c.X, c.Y)
	case "drag":
		if !r.Layer.PanBegin(c.X, c.Y) {
			return fmt.Errorf("no overlay at %.0f,%.0f", c.X, c.Y)
		}
		r.Layer.PanMove(c.X+c.DX, c.Y+c.DY)
		r.Layer.PanEnd()
	case "delete":
		id := r.Session.SelectedID()
		if c.X != 0 || c.Y != 0 {
			o, ok := r.Session.HitTest(c.X, c.Y)
			if !ok {
				return fmt.Errorf("no overlay at %.0f,%.0f", c.X, c.Y)
			}
			id = o.ID
		}
		if id == "" {
			return fmt.Errorf("no overlay selected")
		}
		return r.Session.Delete(id)
	case "pinch":
		if !r.Layer.PinchBegin() {
			return fmt.Errorf("no overlay selected")
		}
		r.Layer.PinchUpdate(c.Factor)
		r.Layer.PinchEnd()
	case "rotate":
		if !r.Layer.RotateBegin() {
			return fmt.Errorf("no overlay selected")
		}
		r.Layer.RotateUpdate(c.Degrees * math.Pi / 180)
		r.Layer.RotateEnd()
	case "draw":
		if len(c.Points) == 0 {
			return fmt.Errorf("draw needs points")
		}
		prev := r.Layer.Mode()
		r.Layer.SetMode(gesture.ModeDraw)
		r.Layer.PanBegin(c.Points[0].X, c.Points[0].Y)
		for _, p := range c.Points[1:] {
			r.Layer.PanMove(p.X, p.Y)
		}
		r.Layer.PanEnd()
		r.Layer.SetMode(prev)
	case "template":
		content, err := r.resolve(c.Sticker)
		if err != nil {
			return err
		}
		r.Session.SetTemplate(content)
	case "replace_all":
		r.Session.ReplaceAll(r.Session.Template())
	case "randomize":
		if r.Randomize == nil {
			return fmt.Errorf("randomize unavailable")
		}
		return r.Randomize()
	case "undo":
		_, err := r.Session.Undo()
		return err
	case "redo":
		_, err := r.Session.Redo()
		return err
	default:
		return fmt.Errorf("unknown op")
	}
	return nil
}

// resolve maps a script sticker name onto overlay content: "blur", a
// registry id, one of the emojis or an image path
func (r *Runner) resolve(name string) (scene.Content, error) {
	if strings.EqualFold(name, "blur") {
		return scene.Blur(), nil
	}
	if r.Stickers != nil {
		if s, ok := r.Stickers.Get(name); ok {
			return s.Content, nil
		}
	}
	for _, s := range stickers.EmojiStickers() {
		if s.ID == name {
			return s.Content, nil
		}
	}
	if utils.FileExists(name) && utils.IsImageFile(name) {
		return scene.Image(name), nil
	}
	return scene.Content{}, fmt.Errorf("%q: %w", name, stickers.ErrUnknownSticker)
}
