package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"
	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/geometry"
	"github.com/menta2k/photo-redactor/pkg/scene"
)

// drawOverlay renders o into a local w x h tile and maps the tile onto dst
// through the overlay's pivot transform.
func (c *Compositor) drawOverlay(ctx context.Context, dst *image.NRGBA, o scene.Overlay) error {
	if o.W <= 0 || o.H <= 0 || o.Scale <= 0 {
		return nil
	}
	tw, th := int(math.Ceil(o.W)), int(math.Ceil(o.H))
	if err := c.checkSurface(tw, th); err != nil {
		return err
	}

	var tile image.Image
	switch o.Content.Kind {
	case scene.KindBlur:
		t, err := blurTile(o.ID, o.W, o.H, tw, th)
		if err != nil {
			return fmt.Errorf("blur overlay %s: %w", o.ID, err)
		}
		tile = clipOval(t, o.W, o.H)
	case scene.KindImage:
		bmp, err := c.loadBitmap(ctx, o.Content.Ref)
		if err != nil {
			klog.Warningf("skipping overlay %s: %v", o.ID, err)
			return nil
		}
		tile = clipOval(imaging.Resize(bmp, tw, th, imaging.Lanczos), o.W, o.H)
	case scene.KindEmoji:
		t, err := c.emojiTile(o.Content.Ref, o.W, o.H, tw, th)
		if err != nil {
			klog.Warningf("skipping overlay %s: %v", o.ID, err)
			return nil
		}
		tile = t
	default:
		klog.V(2).Infof("overlay %s has unknown kind %d", o.ID, o.Content.Kind)
		return nil
	}

	draw.BiLinear.Transform(dst, o.Transform().Aff3(), tile, tile.Bounds(), draw.Over, nil)
	return nil
}

func (c *Compositor) loadBitmap(ctx context.Context, ref string) (image.Image, error) {
	if c.loader == nil {
		return nil, &ImageLoadError{Path: ref, Err: fmt.Errorf("no bitmap loader")}
	}
	img, err := c.loader.LoadBitmap(ctx, ref)
	if err != nil {
		return nil, &ImageLoadError{Path: ref, Err: err}
	}
	if img == nil || img.Bounds().Empty() {
		return nil, &ImageLoadError{Path: ref, Err: fmt.Errorf("empty bitmap")}
	}
	return img, nil
}

// blurTile paints the gray background and the seeded pixel grid. Cells of
// one swatch are filled as a single path.
func blurTile(seed string, w, h float64, tw, th int) (image.Image, error) {
	dc := gg.NewContext(tw, th)
	defer dc.Close()

	dc.SetColor(geometry.BlurBackground)
	dc.DrawRectangle(0, 0, float64(tw), float64(th))
	if err := dc.Fill(); err != nil {
		return nil, err
	}

	const px = geometry.PixelSize
	cols, rows := int(w)/px, int(h)/px
	grid := geometry.SeededPixelGrid(seed, cols, rows)
	for swatch, col := range geometry.PixelColors {
		found := false
		for i, idx := range grid {
			if idx != swatch {
				continue
			}
			dc.DrawRectangle(float64(i%cols*px), float64(i/cols*px), px, px)
			found = true
		}
		if !found {
			continue
		}
		dc.SetColor(col)
		if err := dc.Fill(); err != nil {
			return nil, err
		}
	}
	return dc.Image(), nil
}

// emojiTile draws the glyph centered horizontally with its baseline at 75%
// of the box height and a font size of 80% of the shorter side.
func (c *Compositor) emojiTile(glyph string, w, h float64, tw, th int) (image.Image, error) {
	src, err := c.fontSource()
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(tw, th)
	defer dc.Close()

	dc.SetFont(src.Face(math.Min(w, h) * 0.8))
	dc.SetColor(color.Black)
	textW, _ := dc.MeasureString(glyph)
	dc.DrawString(glyph, (w-textW)/2, h*0.75)
	return dc.Image(), nil
}

func (c *Compositor) fontSource() (*text.FontSource, error) {
	c.fontOnce.Do(func() {
		if c.config.EmojiFont != "" {
			c.font, c.fontErr = text.NewFontSourceFromFile(c.config.EmojiFont)
			if c.fontErr == nil {
				return
			}
			klog.Warningf("emoji font %s unavailable, using Go Regular: %v", c.config.EmojiFont, c.fontErr)
		}
		c.font, c.fontErr = text.NewFontSource(goregular.TTF)
	})
	return c.font, c.fontErr
}

// ovalMask is opaque inside the ellipse inscribed in a w x h box
type ovalMask struct {
	w, h float64
	rect image.Rectangle
}

func (m *ovalMask) ColorModel() color.Model { return color.AlphaModel }

func (m *ovalMask) Bounds() image.Rectangle { return m.rect }

func (m *ovalMask) At(x, y int) color.Color {
	rx, ry := m.w/2, m.h/2
	dx := (float64(x) + 0.5 - rx) / rx
	dy := (float64(y) + 0.5 - ry) / ry
	if dx*dx+dy*dy <= 1 {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

// clipOval returns a copy of tile with everything outside the inscribed
// ellipse made transparent
func clipOval(tile image.Image, w, h float64) *image.NRGBA {
	b := tile.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := &ovalMask{w: w, h: h, rect: out.Bounds()}
	draw.DrawMask(out, out.Bounds(), tile, b.Min, mask, image.Point{}, draw.Src)
	return out
}
