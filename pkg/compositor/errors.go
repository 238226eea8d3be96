package compositor

import (
	"context"
	"errors"
	"fmt"
)

// ErrExportInProgress is returned when an export is requested while another
// one is still running
var ErrExportInProgress = errors.New("export already in progress")

// ImageLoadError reports an image that could not be read or decoded
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// Transient reports whether the underlying failure was a timeout rather than
// a corrupt file
func (e *ImageLoadError) Transient() bool {
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// SurfaceAllocationError reports an offscreen surface that could not be created
type SurfaceAllocationError struct {
	Width  int
	Height int
	Err    error
}

func (e *SurfaceAllocationError) Error() string {
	return fmt.Sprintf("failed to allocate %dx%d surface: %v", e.Width, e.Height, e.Err)
}

func (e *SurfaceAllocationError) Unwrap() error { return e.Err }

var errSurfaceLimit = errors.New("pixel limit exceeded")

// IsRetryable tells the host whether offering a retry makes sense. A corrupt
// source image is final; busy, cancelled, allocation and timeout failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var surf *SurfaceAllocationError
	if errors.As(err, &surf) {
		return true
	}
	if errors.Is(err, ErrExportInProgress) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var load *ImageLoadError
	if errors.As(err, &load) {
		return load.Transient()
	}
	return false
}
