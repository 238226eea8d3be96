package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. REDACTOR_DETECTION_BACKEND
const EnvPrefix = "REDACTOR"

// Detection backends
const (
	BackendNone     = "none"
	BackendFile     = "file"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendGemini   = "gemini"
)

// Config holds the application configuration
type Config struct {
	Editor    EditorConfig    `json:"editor"`
	Detection DetectionConfig `json:"detection"`
	Stickers  StickersConfig  `json:"stickers"`
	Output    OutputConfig    `json:"output"`
}

// EditorConfig holds editing session and display parameters
type EditorConfig struct {
	HistoryLimit          int     `json:"history_limit" split_words:"true"`
	BrushSize             float64 `json:"brush_size" split_words:"true"`
	OvalExpansion         float64 `json:"oval_expansion" split_words:"true"`
	DefaultSize           float64 `json:"default_size" split_words:"true"`
	ScreenWidth           float64 `json:"screen_width" split_words:"true"`
	ScreenHeight          float64 `json:"screen_height" split_words:"true"`
	MaxDisplayHeightRatio float64 `json:"max_display_height_ratio" split_words:"true"`
}

// DetectionConfig selects and tunes the face detector
type DetectionConfig struct {
	Backend     string        `json:"backend"`
	URL         string        `json:"url,omitempty"`
	Model       string        `json:"model,omitempty"`
	FacesFile   string        `json:"faces_file,omitempty" split_words:"true"`
	SendFormat  string        `json:"send_format" split_words:"true"`
	SendSize    int           `json:"send_size" split_words:"true"`
	SendQuality int           `json:"send_quality" split_words:"true"`
	Timeout     time.Duration `json:"timeout"`
}

// StickersConfig locates sticker assets
type StickersConfig struct {
	AssetDir       string `json:"asset_dir" split_words:"true"`
	CustomDir      string `json:"custom_dir" split_words:"true"`
	DefaultSticker string `json:"default_sticker,omitempty" split_words:"true"`
	EmojiFont      string `json:"emoji_font,omitempty" split_words:"true"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	Lossless  bool   `json:"lossless"`
	OutputDir string `json:"output_dir" split_words:"true"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
	MaxPixels int    `json:"max_pixels" split_words:"true"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			HistoryLimit:          50,
			BrushSize:             20,
			OvalExpansion:         1.3,
			DefaultSize:           100,
			ScreenWidth:           1080,
			ScreenHeight:          1920,
			MaxDisplayHeightRatio: 0.7,
		},
		Detection: DetectionConfig{
			Backend:     BackendNone,
			SendFormat:  "jpg",
			SendSize:    1024,
			SendQuality: 85,
			Timeout:     300 * time.Second,
		},
		Stickers: StickersConfig{
			AssetDir:  "./assets/stickers",
			CustomDir: filepath.Join(dataDir(), "stickers"),
		},
		Output: OutputConfig{
			Format:    "png",
			Quality:   95,
			OutputDir: os.TempDir(),
			Prefix:    "anon_",
			MaxPixels: 1 << 27,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overlays REDACTOR_* environment variables onto c. Unset
// variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Editor.HistoryLimit < 1 {
		return fmt.Errorf("editor.history_limit must be positive")
	}

	if c.Editor.BrushSize <= 0 {
		return fmt.Errorf("editor.brush_size must be positive")
	}

	if c.Editor.OvalExpansion < 1 {
		return fmt.Errorf("editor.oval_expansion must be at least 1")
	}

	if c.Editor.ScreenWidth <= 0 || c.Editor.ScreenHeight <= 0 {
		return fmt.Errorf("editor.screen_width and editor.screen_height must be positive")
	}

	if c.Editor.MaxDisplayHeightRatio <= 0 || c.Editor.MaxDisplayHeightRatio > 1 {
		return fmt.Errorf("editor.max_display_height_ratio must be between 0 and 1")
	}

	switch c.Detection.Backend {
	case BackendNone, BackendOllama, BackendLlamaCpp, BackendGemini:
	case BackendFile:
		if c.Detection.FacesFile == "" {
			return fmt.Errorf("detection.faces_file is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown detection.backend %q", c.Detection.Backend)
	}

	if c.Detection.SendQuality < 1 || c.Detection.SendQuality > 100 {
		return fmt.Errorf("detection.send_quality must be between 1 and 100")
	}

	switch c.Output.Format {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("unsupported output.format %q", c.Output.Format)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "photo-redactor", "config.json")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "photo-redactor")
}
