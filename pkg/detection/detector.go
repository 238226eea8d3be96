package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/client"
	"github.com/menta2k/photo-redactor/pkg/processing"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// ErrFaceDetectionUnavailable wraps every detector failure. Callers treat it
// as zero faces.
var ErrFaceDetectionUnavailable = errors.New("face detection unavailable")

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks a vision model for every visible face
const DefaultPrompt = `You are a face locator for a privacy tool.

Return JSON only:
{
  "faces": [
    {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  ]
}

HARD RULES
- One entry per visible human face, including partial and background faces.
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- Each box should tightly include forehead to chin and ear to ear.
- If there are no faces, return {"faces": []}.
- Do not describe or identify anyone.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// FaceDetector finds faces in an image. Boxes are in image pixels.
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]types.Box, error)
}

// Options controls how images are sent to a vision model
type Options struct {
	Model       string
	Prompt      string
	SendFormat  string
	SendSize    int
	SendQuality int
}

// DefaultOptions returns the standard send settings
func DefaultOptions() Options {
	return Options{
		Prompt:      DefaultPrompt,
		SendFormat:  "jpg",
		SendSize:    1024,
		SendQuality: 85,
	}
}

// Detector locates faces with a vision model
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, opts Options) *Detector {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	return &Detector{client: c, processor: processing.NewProcessor(), opts: opts}
}

// DetectFaces sends a downsized copy of img and maps the answer back to
// img's pixel space
func (d *Detector) DetectFaces(ctx context.Context, img image.Image) ([]types.Box, error) {
	data, err := d.processor.PrepareImageForModel(img, d.opts.SendFormat, d.opts.SendSize, d.opts.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFaceDetectionUnavailable, err)
	}
	res, err := d.client.LocateFaces(ctx, d.opts.Model, d.opts.Prompt, processing.MIMEType(d.opts.SendFormat), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFaceDetectionUnavailable, err)
	}

	b := img.Bounds()
	sent := sentSize(b.Dx(), b.Dy(), d.opts.SendSize)
	faces := make([]types.Box, 0, len(res.Faces))
	for _, nb := range res.Faces {
		box := toPixels(normalizeBox(nb, sent), b.Dx(), b.Dy())
		if box.Empty() {
			continue
		}
		faces = append(faces, box)
	}
	klog.V(1).Infof("model %s found %d faces", d.opts.Model, len(faces))
	return faces, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	data, err := d.processor.PrepareImageForModel(img, d.opts.SendFormat, d.opts.SendSize, d.opts.SendQuality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.opts.Model, SimpleTestPrompt, processing.MIMEType(d.opts.SendFormat), data)
}

// sentSize returns the dimensions of the image after PrepareImageForModel
func sentSize(w, h, maxDim int) types.Size {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return types.Size{Width: float64(w), Height: float64(h)}
	}
	if w >= h {
		return types.Size{Width: float64(maxDim), Height: float64(h) * float64(maxDim) / float64(w)}
	}
	return types.Size{Width: float64(w) * float64(maxDim) / float64(h), Height: float64(maxDim)}
}

// normalizeBox clamps a model box into [0,1]. Models sometimes answer in
// pixels of the image they were sent; those are rescaled first.
func normalizeBox(b types.NormalizedBox, sent types.Size) types.NormalizedBox {
	if (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) && sent.Width > 0 && sent.Height > 0 {
		b = types.NormalizedBox{
			X: b.X / sent.Width,
			Y: b.Y / sent.Height,
			W: b.W / sent.Width,
			H: b.H / sent.Height,
		}
	}
	x0, y0 := clamp(b.X, 0, 1), clamp(b.Y, 0, 1)
	x1, y1 := clamp(b.X+b.W, 0, 1), clamp(b.Y+b.H, 0, 1)
	return types.NormalizedBox{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

func toPixels(b types.NormalizedBox, w, h int) types.Box {
	return types.Box{
		X: b.X * float64(w),
		Y: b.Y * float64(h),
		W: b.W * float64(w),
		H: b.H * float64(h),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FileDetector reads precomputed face boxes from a JSON file, either a bare
// array of boxes or an object with a "faces" array
type FileDetector struct {
	Path string
}

// DetectFaces ignores img and returns the boxes stored in the file
func (f FileDetector) DetectFaces(_ context.Context, _ image.Image) ([]types.Box, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFaceDetectionUnavailable, err)
	}
	var boxes []types.Box
	if err := json.Unmarshal(data, &boxes); err == nil {
		return boxes, nil
	}
	var wrapped struct {
		Faces []types.Box `json:"faces"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrFaceDetectionUnavailable, f.Path, err)
	}
	return wrapped.Faces, nil
}

// None never finds a face
type None struct{}

func (None) DetectFaces(context.Context, image.Image) ([]types.Box, error) {
	return nil, nil
}

type failSoft struct {
	inner FaceDetector
}

// FailSoft wraps d so that any failure is logged and reported as zero faces.
// Context cancellation is still returned.
func FailSoft(d FaceDetector) FaceDetector {
	return failSoft{inner: d}
}

func (f failSoft) DetectFaces(ctx context.Context, img image.Image) ([]types.Box, error) {
	faces, err := f.inner.DetectFaces(ctx, img)
	if err == nil {
		return faces, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	klog.Warningf("continuing without face overlays: %v", err)
	return nil, nil
}
