package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/scene"
	"github.com/menta2k/photo-redactor/pkg/types"
)

type mapLoader map[string]image.Image

func (m mapLoader) LoadBitmap(_ context.Context, ref string) (image.Image, error) {
	img, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("unknown bitmap %q", ref)
	}
	return img, nil
}

func createTestImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

var white = color.NRGBA{255, 255, 255, 255}

func blurScene() scene.Scene {
	return scene.Scene{Overlays: []scene.Overlay{{
		ID:      "abc",
		Content: scene.Blur(),
		W:       100,
		H:       100,
		Scale:   1,
	}}}
}

func near(a, b color.NRGBA, tol int) bool {
	d := func(x, y uint8) bool {
		v := int(x) - int(y)
		return v >= -tol && v <= tol
	}
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func TestExportDeterministic(t *testing.T) {
	dir := t.TempDir()
	src := createTestImage(200, 200, white)
	c := New(nil)

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		out := filepath.Join(dir, fmt.Sprintf("out%d.png", i))
		path, err := c.ExportImage(context.Background(), src, blurScene(), out)
		if err != nil {
			t.Fatalf("export %d failed: %v", i, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		outputs = append(outputs, data)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("expected byte-identical exports for identical input")
	}
}

func TestBlurOverlayPixels(t *testing.T) {
	src := createTestImage(200, 200, white)
	out, err := New(nil).Composite(context.Background(), src, blurScene())
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}

	grid := geometry.SeededPixelGrid("abc", 10, 10)
	want := geometry.PixelColors[grid[5*10+5]]
	if got := out.NRGBAAt(55, 55); !near(got, want, 2) {
		t.Errorf("center cell: got %v, want %v", got, want)
	}
	if got := out.NRGBAAt(1, 1); got != white {
		t.Errorf("corner outside the oval must keep the photo, got %v", got)
	}
	if got := out.NRGBAAt(150, 150); got != white {
		t.Errorf("pixel outside the overlay changed: %v", got)
	}
	if src.NRGBAAt(55, 55) != white {
		t.Error("source image must not be modified")
	}
}

func TestBlurGridFloorsFractionalSize(t *testing.T) {
	tile, err := blurTile("abc", 99.5, 40, 100, 40)
	if err != nil {
		t.Fatalf("blurTile failed: %v", err)
	}
	if b := tile.Bounds(); b.Dx() != 100 || b.Dy() != 40 {
		t.Fatalf("expected a 100x40 tile, got %v", b)
	}
	at := func(x, y int) color.NRGBA {
		return color.NRGBAModel.Convert(tile.At(x, y)).(color.NRGBA)
	}

	grid := geometry.SeededPixelGrid("abc", 9, 4)
	if got, want := at(85, 5), geometry.PixelColors[grid[8]]; !near(got, want, 2) {
		t.Errorf("last column: got %v, want %v", got, want)
	}
	if got := at(95, 5); !near(got, geometry.BlurBackground, 2) {
		t.Errorf("partial column must stay background, got %v", got)
	}
}

func TestRotatedOverlayKeepsCenter(t *testing.T) {
	src := createTestImage(300, 300, white)
	sc := scene.Scene{Overlays: []scene.Overlay{{
		ID: "abc", Content: scene.Blur(), X: 100, Y: 100, W: 100, H: 100, Scale: 1, Rotation: 45,
	}}}
	out, err := New(nil).Composite(context.Background(), src, sc)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if got := out.NRGBAAt(150, 150); got == white {
		t.Error("expected the pivot pixel to be covered")
	}
	if got := out.NRGBAAt(10, 10); got != white {
		t.Errorf("unexpected paint far from the overlay: %v", got)
	}
}

func TestImageOverlayDrawn(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	loader := mapLoader{"hypurr/01": createTestImage(10, 10, red)}
	sc := scene.Scene{Overlays: []scene.Overlay{{
		ID: "img", Content: scene.Image("hypurr/01"), W: 100, H: 100, Scale: 1,
	}}}
	out, err := New(loader).Composite(context.Background(), createTestImage(100, 100, white), sc)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if got := out.NRGBAAt(50, 50); !near(got, red, 2) {
		t.Errorf("expected red at the center, got %v", got)
	}
	if got := out.NRGBAAt(0, 0); got != white {
		t.Errorf("expected the oval clip to spare the corner, got %v", got)
	}
}

func TestMissingBitmapSkipped(t *testing.T) {
	src := createTestImage(100, 100, white)
	sc := scene.Scene{Overlays: []scene.Overlay{{
		ID: "img", Content: scene.Image("missing"), W: 100, H: 100, Scale: 1,
	}}}

	for name, c := range map[string]*Compositor{
		"loader":    New(mapLoader{}),
		"no loader": New(nil),
	} {
		out, err := c.Composite(context.Background(), src, sc)
		if err != nil {
			t.Fatalf("%s: unresolved bitmap must not fail the export: %v", name, err)
		}
		if !bytes.Equal(out.Pix, src.Pix) {
			t.Errorf("%s: expected the overlay to be omitted", name)
		}
	}
}

func TestEmojiOverlay(t *testing.T) {
	sc := scene.Scene{Overlays: []scene.Overlay{{
		ID: "e", Content: scene.Emoji("A"), W: 80, H: 80, Scale: 1,
	}}}
	c := NewWithConfig(nil, Config{EmojiFont: filepath.Join(t.TempDir(), "missing.ttf")})
	out, err := c.Composite(context.Background(), createTestImage(100, 100, white), sc)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 100 {
		t.Errorf("unexpected output size %v", out.Bounds())
	}
}

func TestExportSourceLoadError(t *testing.T) {
	dir := t.TempDir()
	_, err := New(nil).Export(context.Background(), filepath.Join(dir, "missing.jpg"), blurScene(), filepath.Join(dir, "out.png"))

	var loadErr *ImageLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ImageLoadError, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("an unreadable source must not be retryable")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.png")); !os.IsNotExist(err) {
		t.Error("no output may be written when the source fails")
	}
}

func TestExportInProgress(t *testing.T) {
	c := New(nil)
	c.exporting.Store(true)

	_, err := c.ExportImage(context.Background(), createTestImage(10, 10, white), scene.Scene{}, filepath.Join(t.TempDir(), "out.png"))
	if !errors.Is(err, ErrExportInProgress) {
		t.Fatalf("expected ErrExportInProgress, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("a busy compositor should be retryable")
	}

	c.exporting.Store(false)
	if _, err := c.ExportImage(context.Background(), createTestImage(10, 10, white), scene.Scene{}, filepath.Join(t.TempDir(), "out.png")); err != nil {
		t.Errorf("expected export to succeed once idle: %v", err)
	}
	if c.Exporting() {
		t.Error("export flag must be released")
	}
}

func TestExportCancelledLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).ExportImage(ctx, createTestImage(50, 50, white), blurScene(), filepath.Join(dir, "out.png"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected an empty output dir, found %d entries", len(entries))
	}
}

func TestExportGeneratedName(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = dir
	cfg.Output = types.ExportOptions{Format: "jpg", Quality: 80}

	path, err := NewWithConfig(nil, cfg).ExportImage(context.Background(), createTestImage(20, 20, white), scene.Scene{}, "")
	if err != nil {
		t.Fatalf("ExportImage failed: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "anon_snap_") || filepath.Ext(path) != ".jpg" {
		t.Errorf("unexpected generated path %s", path)
	}
}

func TestSurfaceLimit(t *testing.T) {
	c := NewWithConfig(nil, Config{MaxPixels: 100})
	_, err := c.Composite(context.Background(), createTestImage(20, 20, white), scene.Scene{})

	var surfErr *SurfaceAllocationError
	if !errors.As(err, &surfErr) {
		t.Fatalf("expected SurfaceAllocationError, got %v", err)
	}
	if surfErr.Width != 20 || surfErr.Height != 20 {
		t.Errorf("unexpected dimensions %dx%d", surfErr.Width, surfErr.Height)
	}
	if !IsRetryable(err) {
		t.Error("allocation failures should be retryable")
	}
}

func TestStrokeCellsDedup(t *testing.T) {
	strokes := []scene.Stroke{
		{Points: []types.Point{{X: 15, Y: 15}, {X: 15, Y: 15}}, BrushSize: 20},
		{Points: []types.Point{{X: 15, Y: 15}}, BrushSize: 20},
	}
	cells := StrokeCells(strokes)
	if len(cells) != 9 {
		t.Fatalf("expected 9 distinct cells, got %d", len(cells))
	}
	if cells[0].X != 0 || cells[0].Y != 0 || cells[8].X != 20 || cells[8].Y != 20 {
		t.Errorf("unexpected cell layout %+v", cells)
	}
	for i, c := range cells {
		want := geometry.PixelColors[geometry.StrokeColorIndex(i+1)]
		if c.Color != want {
			t.Errorf("cell %d: color %v, want %v", i, c.Color, want)
		}
	}
}

func TestStrokesPaintedOverOverlays(t *testing.T) {
	sc := blurScene()
	sc.Strokes = []scene.Stroke{{Points: []types.Point{{X: 55, Y: 55}}, BrushSize: 10}}
	out, err := New(nil).Composite(context.Background(), createTestImage(100, 100, white), sc)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	cells := StrokeCells(sc.Strokes)
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	if got := out.NRGBAAt(55, 55); got != cells[0].Color {
		t.Errorf("expected stroke cell color %v on top, got %v", cells[0].Color, got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", ErrExportInProgress, true},
		{"cancelled", fmt.Errorf("export: %w", context.Canceled), true},
		{"surface", &SurfaceAllocationError{Width: 1, Height: 1, Err: errSurfaceLimit}, true},
		{"corrupt source", &ImageLoadError{Path: "x", Err: errors.New("bad header")}, false},
		{"timeout", &ImageLoadError{Path: "x", Err: os.ErrDeadlineExceeded}, true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func BenchmarkComposite(b *testing.B) {
	src := createTestImage(1000, 1000, white)
	sc := blurScene()
	sc.Overlays[0].W, sc.Overlays[0].H = 400, 520
	c := New(nil)
	for i := 0; i < b.N; i++ {
		if _, err := c.Composite(context.Background(), src, sc); err != nil {
			b.Fatal(err)
		}
	}
}
