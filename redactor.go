// Package redactor anonymizes faces in photos.
//
// An Editor opens a photo, asks a face detector where the faces are and
// covers each one with an oval overlay: a seeded pixel grid, a sticker
// image or an emoji. The session can then be edited through the gesture
// layer (add, switch, drag, pinch, rotate, pixel-brush strokes, undo and
// redo) and exported at the photo's native resolution.
//
// Basic usage:
//
//	ed, err := redactor.NewWithConfig(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ed.Close()
//
//	if err := ed.Open(ctx, "party.jpg"); err != nil {
//		log.Fatal(err)
//	}
//	ed.Randomize()
//
//	out, err := ed.ExportScene(ctx, "")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("wrote", out)
//
// Overlays live in display coordinates: the photo is fitted to the screen
// width with its height capped at a ratio of the screen height. ExportScene
// scales the scene back to source pixels before compositing.
package redactor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"os"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/internal/config"
	"github.com/menta2k/photo-redactor/internal/utils"
	"github.com/menta2k/photo-redactor/pkg/client"
	"github.com/menta2k/photo-redactor/pkg/compositor"
	"github.com/menta2k/photo-redactor/pkg/detection"
	"github.com/menta2k/photo-redactor/pkg/editor"
	"github.com/menta2k/photo-redactor/pkg/gemini"
	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/gesture"
	"github.com/menta2k/photo-redactor/pkg/llamacpp"
	"github.com/menta2k/photo-redactor/pkg/ollama"
	"github.com/menta2k/photo-redactor/pkg/overlay"
	"github.com/menta2k/photo-redactor/pkg/processing"
	"github.com/menta2k/photo-redactor/pkg/stickers"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// Version of the photo redactor library
const Version = "1.0.0"

// Default server addresses and model for the local vision backends
const (
	DefaultOllamaURL = "http://localhost:11434"
	DefaultModel     = "openbmb/minicpm-v4.5"
)

// ErrNoImage is returned by operations that need an opened photo
var ErrNoImage = errors.New("no image opened")

// Editor owns one photo at a time together with its editing session
type Editor struct {
	config     *config.Config
	processor  *processing.Processor
	detector   detection.FaceDetector
	stickers   *stickers.Registry
	compositor *compositor.Compositor
	rnd        *rand.Rand
	workDir    string

	source      string
	upright     string
	sourceSize  types.Size
	displaySize types.Size
	faces       []types.Box

	session *editor.Session
	layer   *gesture.Layer
}

// New creates an Editor with default configuration
func New(ctx context.Context) (*Editor, error) {
	return NewWithConfig(ctx, config.Default())
}

// NewWithConfig creates an Editor with custom configuration. The face
// detector is chosen by cfg.Detection.Backend.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Editor, error) {
	detector, err := NewDetector(ctx, cfg.Detection)
	if err != nil {
		return nil, err
	}
	return NewWithDetector(cfg, detector)
}

// NewWithDetector creates an Editor around an existing face detector
func NewWithDetector(cfg *config.Config, detector detection.FaceDetector) (*Editor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	registry := stickers.New(stickers.Config{
		AssetDir:       cfg.Stickers.AssetDir,
		CustomDir:      cfg.Stickers.CustomDir,
		DefaultSticker: cfg.Stickers.DefaultSticker,
	})
	if err := registry.Build(); err != nil {
		return nil, fmt.Errorf("failed to load stickers: %w", err)
	}

	workDir, err := os.MkdirTemp("", "photo-redactor-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	comp := compositor.NewWithConfig(registry, compositor.Config{
		Output: types.ExportOptions{
			Format:   cfg.Output.Format,
			Quality:  cfg.Output.Quality,
			Lossless: cfg.Output.Lossless,
		},
		OutputDir: cfg.Output.OutputDir,
		EmojiFont: cfg.Stickers.EmojiFont,
		MaxPixels: cfg.Output.MaxPixels,
	})

	return &Editor{
		config:     cfg,
		processor:  processing.NewProcessor(),
		detector:   detector,
		stickers:   registry,
		compositor: comp,
		rnd:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		workDir:    workDir,
	}, nil
}

// NewDetector builds the face detector for a backend. Vision backends fail
// soft: an unreachable or confused model yields zero faces.
func NewDetector(ctx context.Context, cfg config.DetectionConfig) (detection.FaceDetector, error) {
	opts := detection.DefaultOptions()
	opts.Model = cfg.Model
	if cfg.SendFormat != "" {
		opts.SendFormat = cfg.SendFormat
	}
	if cfg.SendSize > 0 {
		opts.SendSize = cfg.SendSize
	}
	if cfg.SendQuality > 0 {
		opts.SendQuality = cfg.SendQuality
	}

	var vc client.VisionClient
	switch cfg.Backend {
	case config.BackendNone, "":
		return detection.None{}, nil
	case config.BackendFile:
		return detection.FailSoft(detection.FileDetector{Path: cfg.FacesFile}), nil
	case config.BackendOllama:
		url := cfg.URL
		if url == "" {
			url = DefaultOllamaURL
		}
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		if opts.Model == "" {
			opts.Model = DefaultModel
		}
		vc = c
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		if opts.Model == "" {
			opts.Model = DefaultModel
		}
		vc = c
	case config.BackendGemini:
		c, err := gemini.NewClient(ctx, "", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		vc = c
	default:
		return nil, fmt.Errorf("unknown detection backend %q", cfg.Backend)
	}

	klog.V(1).Infof("face detection via %s (model %q)", cfg.Backend, opts.Model)
	return detection.FailSoft(detection.NewDetector(vc, opts)), nil
}

// Open loads a photo from a path or URL, detects faces and starts a fresh
// session with one overlay per face. The previous session is discarded.
func (e *Editor) Open(ctx context.Context, source string) error {
	upright, err := e.processor.Normalize(source, e.workDir)
	if err != nil {
		return &compositor.ImageLoadError{Path: source, Err: err}
	}
	img, err := e.processor.LoadImage(upright)
	if err != nil {
		return &compositor.ImageLoadError{Path: upright, Err: err}
	}

	faces, err := e.detect(ctx, img)
	if err != nil {
		return err
	}

	b := img.Bounds()
	src := types.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	screen := types.Size{Width: e.config.Editor.ScreenWidth, Height: e.config.Editor.ScreenHeight}
	disp := geometry.FitDisplay(src, screen, e.config.Editor.MaxDisplayHeightRatio)

	displayFaces := make([]types.Box, len(faces))
	for i, f := range faces {
		displayFaces[i] = geometry.ScaleBounds(f, src.Width, src.Height, disp.Width, disp.Height)
	}

	session := editor.NewWithConfig(editor.Config{
		Overlay: overlay.Config{
			DefaultContent: e.stickers.Default(),
			OvalExpansion:  e.config.Editor.OvalExpansion,
			DefaultSize:    e.config.Editor.DefaultSize,
		},
		BrushSize:    e.config.Editor.BrushSize,
		HistoryLimit: e.config.Editor.HistoryLimit,
	})
	session.InitializeFromFaces(displayFaces)

	e.source, e.upright = source, upright
	e.sourceSize, e.displaySize = src, disp
	e.faces = faces
	e.session = session
	e.layer = gesture.New(session)

	klog.Infof("opened %s (%.0fx%.0f, display %.0fx%.0f): %d faces",
		source, src.Width, src.Height, disp.Width, disp.Height, len(faces))
	return nil
}

func (e *Editor) detect(ctx context.Context, img image.Image) ([]types.Box, error) {
	dctx := ctx
	if e.config.Detection.Timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, e.config.Detection.Timeout)
		defer cancel()
	}

	faces, err := e.detector.DetectFaces(dctx, img)
	if err == nil {
		return faces, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		klog.Warningf("face detection timed out after %v, continuing without faces", e.config.Detection.Timeout)
	} else {
		klog.Warningf("continuing without face overlays: %v", err)
	}
	return nil, nil
}

// Session returns the editing session of the open photo, or nil
func (e *Editor) Session() *editor.Session {
	return e.session
}

// Layer returns the gesture layer driving the session, or nil
func (e *Editor) Layer() *gesture.Layer {
	return e.layer
}

// Stickers returns the sticker registry
func (e *Editor) Stickers() *stickers.Registry {
	return e.stickers
}

// Compositor returns the exporter
func (e *Editor) Compositor() *compositor.Compositor {
	return e.compositor
}

// Faces returns the detected faces in source pixels
func (e *Editor) Faces() []types.Box {
	return append([]types.Box(nil), e.faces...)
}

// SourceSize returns the size of the open photo
func (e *Editor) SourceSize() types.Size {
	return e.sourceSize
}

// DisplaySize returns the size the photo is edited at
func (e *Editor) DisplaySize() types.Size {
	return e.displaySize
}

// Randomize gives every overlay a random sticker, emoji or Blur as one
// undoable action
func (e *Editor) Randomize() error {
	if e.session == nil {
		return ErrNoImage
	}
	e.session.ReplaceAllRandom(e.stickers.Pool(), e.rnd)
	return nil
}

// SetSeed makes Randomize deterministic
func (e *Editor) SetSeed(seed uint64) {
	e.rnd = rand.New(rand.NewPCG(seed, seed))
}

// OutputPath names the export of the open photo using the output prefix
// and suffix
func (e *Editor) OutputPath() string {
	out := e.config.Output
	return utils.GenerateOutputFilename(e.source, out.OutputDir, out.Prefix, out.Suffix, out.Format)
}

// ExportScene composites the session onto the upright photo at native
// resolution and writes it to outPath. An empty outPath picks a fresh name
// in the output dir.
func (e *Editor) ExportScene(ctx context.Context, outPath string) (string, error) {
	if e.session == nil {
		return "", ErrNoImage
	}
	sx, sy := geometry.ScaleFactors(e.displaySize, e.sourceSize)
	sc := e.session.Scene().ScaleToSource(sx, sy)
	return e.compositor.Export(ctx, e.upright, sc, outPath)
}

// DebugImage returns the open photo with the detected face boxes drawn on it
func (e *Editor) DebugImage() (image.Image, error) {
	if e.session == nil {
		return nil, ErrNoImage
	}
	img, err := e.processor.LoadImage(e.upright)
	if err != nil {
		return nil, &compositor.ImageLoadError{Path: e.upright, Err: err}
	}
	return e.processor.DrawFaceBoxes(img, e.faces), nil
}

// Close removes the work dir holding normalized photos
func (e *Editor) Close() error {
	return os.RemoveAll(e.workDir)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
