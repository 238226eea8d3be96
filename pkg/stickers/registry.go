// Package stickers keeps the catalogue of overlay contents: bundled image
// assets, user-imported custom images and the fixed emoji set.
package stickers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/karrick/godirwalk"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/internal/utils"
	"github.com/menta2k/photo-redactor/pkg/processing"
	"github.com/menta2k/photo-redactor/pkg/scene"
)

// CustomPrefix starts the id of every user-imported sticker
const CustomPrefix = "custom_"

// ErrUnknownSticker is returned for ids the registry does not hold
var ErrUnknownSticker = errors.New("unknown sticker")

var emojis = []string{"😊", "😎", "🎭", "🤖", "⭐", "❤️", "🔥", "👻"}

// Sticker is one entry of the picker
type Sticker struct {
	ID      string        `json:"id"`
	Content scene.Content `json:"content"`
	Path    string        `json:"path,omitempty"`
	Custom  bool          `json:"custom,omitempty"`
}

// EmojiStickers returns the fixed emoji set
func EmojiStickers() []Sticker {
	out := make([]Sticker, len(emojis))
	for i, e := range emojis {
		out[i] = Sticker{ID: e, Content: scene.Emoji(e)}
	}
	return out
}

// Config locates sticker assets
type Config struct {
	AssetDir       string
	CustomDir      string
	DefaultSticker string
}

// Registry holds image stickers by id and caches decoded bitmaps. It is safe
// for concurrent use.
type Registry struct {
	config    Config
	processor *processing.Processor

	mu       sync.RWMutex
	stickers map[string]Sticker
	cache    map[string]image.Image
}

// New creates an empty registry. Call Build to populate it.
func New(config Config) *Registry {
	return &Registry{
		config:    config,
		processor: processing.NewProcessor(),
		stickers:  make(map[string]Sticker),
		cache:     make(map[string]image.Image),
	}
}

// Build rescans the asset and custom dirs. Missing dirs are skipped.
func (r *Registry) Build() error {
	found := make(map[string]Sticker)
	if err := walk(r.config.AssetDir, false, found); err != nil {
		return err
	}
	if err := walk(r.config.CustomDir, true, found); err != nil {
		return err
	}

	r.mu.Lock()
	r.stickers = found
	r.cache = make(map[string]image.Image)
	r.mu.Unlock()
	klog.V(1).Infof("sticker registry: %d image stickers", len(found))
	return nil
}

func walk(root string, custom bool, found map[string]Sticker) error {
	if root == "" || !utils.DirExists(root) {
		return nil
	}
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != root && strings.HasPrefix(filepath.Base(path), ".") {
				return godirwalk.SkipThis
			}
			if de.IsDir() || !utils.IsImageFile(path) {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			id := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
			if custom && !strings.HasPrefix(id, CustomPrefix) {
				return nil
			}
			found[id] = Sticker{ID: id, Content: scene.Image(id), Path: path, Custom: custom}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return nil
}

// List returns the image stickers sorted by id
func (r *Registry) List() []Sticker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sticker, 0, len(r.stickers))
	for _, s := range r.stickers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get looks up one image sticker
func (r *Registry) Get(id string) (Sticker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stickers[id]
	return s, ok
}

// Default returns the configured default sticker, else the first image
// sticker, else Blur
func (r *Registry) Default() scene.Content {
	if s, ok := r.Get(r.config.DefaultSticker); ok {
		return s.Content
	}
	if r.config.DefaultSticker != "" {
		klog.V(1).Infof("default sticker %q not found", r.config.DefaultSticker)
	}
	if list := r.List(); len(list) > 0 {
		return list[0].Content
	}
	return scene.Blur()
}

// Pool returns every content the randomizer may pick from
func (r *Registry) Pool() []scene.Content {
	pool := []scene.Content{scene.Blur()}
	for _, s := range r.List() {
		pool = append(pool, s.Content)
	}
	for _, s := range EmojiStickers() {
		pool = append(pool, s.Content)
	}
	return pool
}

// ImportCustom copies an image into the custom dir and registers it
func (r *Registry) ImportCustom(path string) (Sticker, error) {
	if r.config.CustomDir == "" {
		return Sticker{}, fmt.Errorf("no custom sticker directory configured")
	}
	if !utils.FileExists(path) {
		return Sticker{}, fmt.Errorf("import %s: file not found", path)
	}
	if !utils.IsImageFile(path) {
		return Sticker{}, fmt.Errorf("import %s: not an image", path)
	}
	if err := utils.EnsureDir(r.config.CustomDir); err != nil {
		return Sticker{}, fmt.Errorf("create custom dir: %w", err)
	}

	id := CustomPrefix + uuid.NewString()
	dest := filepath.Join(r.config.CustomDir, id+strings.ToLower(filepath.Ext(path)))
	if err := copy.Copy(path, dest); err != nil {
		return Sticker{}, fmt.Errorf("copy %s: %w", path, err)
	}

	s := Sticker{ID: id, Content: scene.Image(id), Path: dest, Custom: true}
	r.mu.Lock()
	r.stickers[id] = s
	r.mu.Unlock()
	klog.Infof("imported custom sticker %s from %s", id, path)
	return s, nil
}

// DeleteCustom removes a user-imported sticker and its file
func (r *Registry) DeleteCustom(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stickers[id]
	if !ok {
		return fmt.Errorf("delete %s: %w", id, ErrUnknownSticker)
	}
	if !s.Custom {
		return fmt.Errorf("delete %s: bundled stickers cannot be deleted", id)
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	delete(r.stickers, id)
	delete(r.cache, id)
	return nil
}

// LoadBitmap resolves an Image content reference. References are sticker
// ids or, for files picked outside the registry, plain paths.
func (r *Registry) LoadBitmap(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	img, ok := r.cache[ref]
	s, known := r.stickers[ref]
	r.mu.RUnlock()
	if ok {
		return img, nil
	}

	path := ref
	if known {
		path = s.Path
	} else if !utils.FileExists(ref) {
		return nil, fmt.Errorf("%s: %w", ref, ErrUnknownSticker)
	}

	img, err := r.processor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[ref] = img
	r.mu.Unlock()
	return img, nil
}
