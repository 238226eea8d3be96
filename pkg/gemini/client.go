// Package gemini is a vision backend for the Google Gemini API.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/pkg/client"
	"github.com/menta2k/photo-redactor/pkg/types"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// APIKeyEnv is read when no key is passed to NewClient
const APIKeyEnv = "GOOGLE_AI_API_KEY"

// Client wraps a genai client
type Client struct {
	client *genai.Client
}

// NewClient creates a Gemini client. baseURL overrides the API endpoint and
// may be empty.
func NewClient(ctx context.Context, apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: no API key (set %s)", APIKeyEnv)
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{client: c}, nil
}

// SimpleQuery asks a free-form question about an image
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, mimeType, imgB64 string) (string, error) {
	return c.generate(ctx, model, prompt, mimeType, imgB64, nil)
}

// LocateFaces asks the model for face boxes as JSON
func (c *Client) LocateFaces(ctx context.Context, model, prompt, mimeType, imgB64 string) (*types.FaceResult, error) {
	raw, err := c.generate(ctx, model, prompt, mimeType, imgB64, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	return client.ParseFaceResult(raw)
}

func (c *Client) generate(ctx context.Context, model, prompt, mimeType, imgB64 string, cfg *genai.GenerateContentConfig) (string, error) {
	if model == "" {
		model = DefaultModel
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imgBytes, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	klog.V(1).Infof("gemini %s answered in %s", model, time.Since(start))
	return text, nil
}
