package processing

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/menta2k/photo-redactor/pkg/types"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

func TestEncodePNGDeterministic(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(64, 48)

	var a, b bytes.Buffer
	if err := p.Encode(&a, img, types.ExportOptions{Format: "png"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := p.Encode(&b, img, types.ExportOptions{Format: "png"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("expected identical PNG bytes for identical input")
	}
}

func TestEncodeFormats(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(32, 32)

	for _, format := range []string{"png", "jpg", "jpeg", "webp", ""} {
		var buf bytes.Buffer
		if err := p.Encode(&buf, img, types.ExportOptions{Format: format, Quality: 90}); err != nil {
			t.Errorf("format %q: %v", format, err)
			continue
		}
		if buf.Len() == 0 {
			t.Errorf("format %q produced no bytes", format)
		}
	}

	var buf bytes.Buffer
	if err := p.Encode(&buf, img, types.ExportOptions{Format: "tga"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(40, 30)

	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "test."+format)
		if err := p.SaveImage(img, path, format, 95, true); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}
		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", format, err)
		}
		if loaded.Bounds().Dx() != 40 || loaded.Bounds().Dy() != 30 {
			t.Errorf("%s: expected 40x30, got %v", format, loaded.Bounds())
		}
	}
}

func TestLoadImageMissing(t *testing.T) {
	p := NewProcessor()
	if _, err := p.LoadImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestNormalize(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")
	if err := p.SaveImage(createTestImage(20, 10), src, "jpg", 90, false); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}

	out, err := p.Normalize(src, filepath.Join(dir, "work"))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if filepath.Ext(out) != ".png" {
		t.Errorf("expected png output, got %s", out)
	}
	img, err := p.LoadImage(out)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("expected 20x10, got %v", img.Bounds())
	}
}

func TestPrepareImageBytesResizes(t *testing.T) {
	p := NewProcessor()
	data, err := p.PrepareImageBytes(createTestImage(400, 200), "png", 100, 85)
	if err != nil {
		t.Fatalf("PrepareImageBytes failed: %v", err)
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50, got %v", img.Bounds())
	}

	b64, err := p.PrepareImageForModel(createTestImage(10, 10), "jpg", 0, 80)
	if err != nil || b64 == "" {
		t.Errorf("PrepareImageForModel failed: %v", err)
	}
}

func TestMIMEType(t *testing.T) {
	if MIMEType("PNG") != "image/png" {
		t.Error("expected image/png")
	}
	if MIMEType("jpg") != "image/jpeg" {
		t.Error("expected image/jpeg")
	}
}

func TestDrawFaceBoxes(t *testing.T) {
	p := NewProcessor()
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	out := p.DrawFaceBoxes(src, []types.Box{{X: 10, Y: 10, W: 40, H: 40}})

	nrgba, ok := out.(*image.NRGBA)
	if !ok {
		t.Fatalf("expected *image.NRGBA, got %T", out)
	}
	if got := nrgba.NRGBAAt(10, 10); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("expected green box corner, got %v", got)
	}
	if got := nrgba.NRGBAAt(30, 30); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("expected red center mark, got %v", got)
	}
	if got := src.NRGBAAt(10, 10); got.A != 0 {
		t.Error("source image must not be modified")
	}
}
