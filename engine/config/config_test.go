package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Renderer.Backend != "wgpu" {
		t.Errorf("expected backend wgpu, got %s", cfg.Renderer.Backend)
	}
	if cfg.Renderer.FramesInFlight != 2 {
		t.Errorf("expected 2 frames in flight, got %d", cfg.Renderer.FramesInFlight)
	}
	if cfg.Renderer.MSAA != 1 {
		t.Errorf("expected msaa 1, got %d", cfg.Renderer.MSAA)
	}
	if cfg.Renderer.PresentMode != "vsync" {
		t.Errorf("expected present mode vsync, got %s", cfg.Renderer.PresentMode)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.File != "" {
		t.Errorf("expected console logging at info, got %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
renderer:
  backend: vulkan
  msaa: 4
window:
  width: 800
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Renderer.Backend != "vulkan" || cfg.Renderer.MSAA != 4 {
		t.Errorf("renderer = %+v", cfg.Renderer)
	}
	if cfg.Window.Width != 800 {
		t.Errorf("expected width 800, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 720 {
		t.Errorf("unset height lost its default: %d", cfg.Window.Height)
	}
	if cfg.Renderer.FramesInFlight != 2 {
		t.Errorf("unset frames_in_flight lost its default: %d", cfg.Renderer.FramesInFlight)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"backend": "renderer:\n  backend: opengl\n",
		"msaa":    "renderer:\n  msaa: 3\n",
		"present": "renderer:\n  present_mode: adaptive\n",
		"frames":  "renderer:\n  frames_in_flight: 0\n",
	}
	dir := t.TempDir()
	for name, content := range cases {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	cfg, err := Load("")
	if err != nil || cfg.Renderer.Backend != "wgpu" {
		t.Errorf("Load(\"\") = %+v, %v", cfg, err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Renderer.Backend = "vulkan"
	cfg.Assets.Models = []string{"fox.glb"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Renderer.Backend != "vulkan" || len(loaded.Assets.Models) != 1 || loaded.Assets.Models[0] != "fox.glb" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Renderer.ClearColor != cfg.Renderer.ClearColor {
		t.Errorf("clear colour = %v, want %v", loaded.Renderer.ClearColor, cfg.Renderer.ClearColor)
	}
}

func TestApplyFlags(t *testing.T) {
	fs := flag.NewFlagSet("viewer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := ApplyFlags(fs, []string{"-backend", "vulkan", "-msaa", "8", "-uncapped", "-debug", "fox.glb", "cube.gltf"})
	if err != nil {
		t.Fatalf("ApplyFlags: %v", err)
	}
	if cfg.Renderer.Backend != "vulkan" || cfg.Renderer.MSAA != 8 || cfg.Renderer.PresentMode != "uncapped" {
		t.Errorf("renderer = %+v", cfg.Renderer)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
	if len(cfg.Assets.Models) != 2 || cfg.Assets.Models[1] != "cube.gltf" {
		t.Errorf("models = %v", cfg.Assets.Models)
	}
	if cfg.Assets.Animation != 0 {
		t.Errorf("unset animation flag changed the default: %d", cfg.Assets.Animation)
	}
}

func TestApplyFlagsValidates(t *testing.T) {
	fs := flag.NewFlagSet("viewer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ApplyFlags(fs, []string{"-msaa", "2"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}
