package client

import (
	"context"

	"github.com/menta2k/photo-redactor/pkg/types"
)

// VisionClient is a vision-language model backend. imgB64 is a base64
// encoded image of type mimeType.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, mimeType, imgB64 string) (string, error)
	LocateFaces(ctx context.Context, model, prompt, mimeType, imgB64 string) (*types.FaceResult, error)
}
