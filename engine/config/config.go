// Package config loads the viewer settings. Values are layered: defaults, then a YAML file, then
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every engine setting.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	Logging  LoggingConfig  `yaml:"logging"`
	Assets   AssetsConfig   `yaml:"assets"`
}

// WindowConfig holds the initial window geometry.
type WindowConfig struct {
	Title     string `yaml:"title"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	MinWidth  int    `yaml:"min_width"`
	MinHeight int    `yaml:"min_height"`
	MaxWidth  int    `yaml:"max_width"`
	MaxHeight int    `yaml:"max_height"`
}

// RendererConfig selects the GPU backend and frame settings.
type RendererConfig struct {
	Backend        string     `yaml:"backend"`          // wgpu or vulkan
	FramesInFlight int        `yaml:"frames_in_flight"` // CPU frames recorded ahead of the GPU
	MSAA           uint32     `yaml:"msaa"`             // 1, 4 or 8
	PresentMode    string     `yaml:"present_mode"`     // vsync or uncapped
	ForceSoftware  bool       `yaml:"force_software"`
	Validation     bool       `yaml:"validation"`
	ShaderDir      string     `yaml:"shader_dir"` // compiled SPIR-V for the Vulkan backend
	ClearColor     [4]float32 `yaml:"clear_color,flow"`
	TickRate       float64    `yaml:"tick_rate"`
}

// LoggingConfig holds log level and file settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AssetsConfig lists what the viewer loads at start-up.
type AssetsConfig struct {
	Models    []string `yaml:"models"`
	Animation int      `yaml:"animation"`
	Instances int      `yaml:"instances"`
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Default returns a Config with the engine defaults.
//
// Returns:
//   - *Config: the default configuration
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:     "Maat Viewer",
			Width:     1280,
			Height:    720,
			MinWidth:  320,
			MinHeight: 200,
			MaxWidth:  3840,
			MaxHeight: 2160,
		},
		Renderer: RendererConfig{
			Backend:        "wgpu",
			FramesInFlight: 2,
			MSAA:           1,
			PresentMode:    "vsync",
			ShaderDir:      "shaders",
			ClearColor:     [4]float32{0.05, 0.05, 0.08, 1},
			TickRate:       60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Assets: AssetsConfig{
			Animation: 0,
			Instances: 0,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not an error when path is empty.
//
// Parameters:
//   - path: the config file path, empty for defaults only
//
// Returns:
//   - *Config: the merged configuration
//   - error: a read, parse or validation error
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML, creating the parent directory.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: a marshal or write error
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the enumerated renderer settings and the window size.
func (c *Config) Validate() error {
	switch c.Renderer.Backend {
	case "wgpu", "vulkan":
	default:
		return fmt.Errorf("%w: renderer.backend %q", ErrInvalid, c.Renderer.Backend)
	}
	switch c.Renderer.PresentMode {
	case "vsync", "uncapped":
	default:
		return fmt.Errorf("%w: renderer.present_mode %q", ErrInvalid, c.Renderer.PresentMode)
	}
	switch c.Renderer.MSAA {
	case 1, 4, 8:
	default:
		return fmt.Errorf("%w: renderer.msaa %d", ErrInvalid, c.Renderer.MSAA)
	}
	if c.Renderer.FramesInFlight < 1 {
		return fmt.Errorf("%w: renderer.frames_in_flight %d", ErrInvalid, c.Renderer.FramesInFlight)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	return nil
}
