// Package compositor flattens a scene onto its source photo at native
// resolution and publishes the encoded result atomically.
package compositor

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg/text"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/internal/utils"
	"github.com/menta2k/photo-redactor/pkg/processing"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// BitmapLoader resolves the content reference of an Image overlay
type BitmapLoader interface {
	LoadBitmap(ctx context.Context, ref string) (image.Image, error)
}

// Config holds compositor settings
type Config struct {
	Output    types.ExportOptions
	OutputDir string // used when Export is given no output path
	EmojiFont string // TTF/OTF path, Go Regular when empty or unreadable
	MaxPixels int    // largest surface or tile the compositor will allocate
}

// DefaultConfig returns the standard compositor settings
func DefaultConfig() Config {
	return Config{
		Output:    types.ExportOptions{Format: "png", Quality: 95},
		OutputDir: os.TempDir(),
		MaxPixels: 1 << 27,
	}
}

// Compositor renders scenes. Rendering is safe for concurrent use but at most
// one Export runs at a time.
type Compositor struct {
	config    Config
	loader    BitmapLoader
	processor *processing.Processor

	fontOnce sync.Once
	font     *text.FontSource
	fontErr  error

	exporting atomic.Bool
}

// New creates a Compositor with default configuration
func New(loader BitmapLoader) *Compositor {
	return NewWithConfig(loader, DefaultConfig())
}

// NewWithConfig creates a Compositor with custom configuration. A nil loader
// makes every Image overlay unresolvable.
func NewWithConfig(loader BitmapLoader, config Config) *Compositor {
	if config.MaxPixels <= 0 {
		config.MaxPixels = DefaultConfig().MaxPixels
	}
	return &Compositor{
		config:    config,
		loader:    loader,
		processor: processing.NewProcessor(),
	}
}

// Composite draws sc over src at src's resolution. Overlays paint in slice
// order, then strokes. The scene must already be in source coordinates.
func (c *Compositor) Composite(ctx context.Context, src image.Image, sc scene.Scene) (*image.NRGBA, error) {
	b := src.Bounds()
	if err := c.checkSurface(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	canvas := imaging.Clone(src)

	for _, o := range sc.Overlays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.drawOverlay(ctx, canvas, o); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells := drawStrokes(canvas, sc.Strokes)
	klog.V(1).Infof("composited %d overlays and %d stroke cells onto %dx%d",
		len(sc.Overlays), cells, b.Dx(), b.Dy())
	return canvas, nil
}

// Render composites and encodes the result to w
func (c *Compositor) Render(ctx context.Context, w io.Writer, src image.Image, sc scene.Scene) error {
	out, err := c.Composite(ctx, src, sc)
	if err != nil {
		return err
	}
	return c.processor.Encode(w, out, c.config.Output)
}

// Export loads the source photo, composites sc and publishes the encoded
// image at outPath. An empty outPath picks a fresh name in the output dir.
// The returned path is only written once the whole image has been encoded.
func (c *Compositor) Export(ctx context.Context, srcPath string, sc scene.Scene, outPath string) (string, error) {
	if !c.exporting.CompareAndSwap(false, true) {
		return "", ErrExportInProgress
	}
	defer c.exporting.Store(false)

	src, err := c.processor.LoadImage(srcPath)
	if err != nil {
		return "", &ImageLoadError{Path: srcPath, Err: err}
	}
	return c.publish(ctx, src, sc, outPath)
}

// ExportImage is Export for an already decoded source
func (c *Compositor) ExportImage(ctx context.Context, src image.Image, sc scene.Scene, outPath string) (string, error) {
	if !c.exporting.CompareAndSwap(false, true) {
		return "", ErrExportInProgress
	}
	defer c.exporting.Store(false)
	return c.publish(ctx, src, sc, outPath)
}

// Exporting reports whether an export is in flight
func (c *Compositor) Exporting() bool {
	return c.exporting.Load()
}

func (c *Compositor) publish(ctx context.Context, src image.Image, sc scene.Scene, outPath string) (string, error) {
	if outPath == "" {
		outPath = filepath.Join(c.config.OutputDir, fmt.Sprintf("anon_snap_%s.%s", uuid.NewString(), utils.OutputExtension(c.config.Output.Format)))
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outPath)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := c.Render(ctx, bw, src, sc); err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close output: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return "", fmt.Errorf("failed to publish output: %w", err)
	}
	committed = true
	klog.Infof("exported %s", outPath)
	return outPath, nil
}

func (c *Compositor) checkSurface(w, h int) error {
	if w <= 0 || h <= 0 {
		return &SurfaceAllocationError{Width: w, Height: h, Err: fmt.Errorf("empty surface")}
	}
	if int64(w)*int64(h) > int64(c.config.MaxPixels) {
		return &SurfaceAllocationError{Width: w, Height: h, Err: errSurfaceLimit}
	}
	return nil
}
