package stickers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/internal/utils"
)

// WriteThumbnails renders a PNG thumbnail of every image sticker into outDir,
// height pixels tall. Up-to-date thumbnails are kept. It returns the
// thumbnail paths by sticker id.
func (r *Registry) WriteThumbnails(outDir string, height int) (map[string]string, error) {
	if height <= 0 {
		return nil, fmt.Errorf("invalid thumbnail height %d", height)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}

	thumbs := make(map[string]string)
	for _, s := range r.List() {
		dest := filepath.Join(outDir, utils.SanitizeFilename(s.ID)+".png")
		if fresh(s.Path, dest) {
			thumbs[s.ID] = dest
			continue
		}

		img, err := imgio.Open(s.Path)
		if err != nil {
			klog.Warningf("thumbnail %s: %v", s.ID, err)
			continue
		}
		b := img.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 {
			klog.Warningf("thumbnail %s: empty image", s.ID)
			continue
		}
		width := int(float64(b.Dx()) * float64(height) / float64(b.Dy()))
		if width < 1 {
			width = 1
		}

		rimg := transform.Resize(img, width, height, transform.Lanczos)
		if err := imgio.Save(dest, rimg, imgio.PNGEncoder()); err != nil {
			return thumbs, fmt.Errorf("save thumbnail %s: %w", s.ID, err)
		}
		klog.V(1).Infof("created thumb %s (%dx%d)", dest, width, height)
		thumbs[s.ID] = dest
	}
	return thumbs, nil
}

// fresh reports whether dest exists and is newer than src
func fresh(src, dest string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	di, err := os.Stat(dest)
	if err != nil {
		return false
	}
	return !di.ModTime().Before(si.ModTime())
}
