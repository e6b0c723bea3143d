package config

import (
	"flag"
	"fmt"
)

// Flags holds the values of the command-line overrides registered by RegisterFlags.
type Flags struct {
	Config        string
	Backend       string
	MSAA          uint
	Frames        int
	Width         int
	Height        int
	Uncapped      bool
	ForceSoftware bool
	Validation    bool
	Debug         bool
	LogFile       string
	Animation     int
	Instances     int
}

// RegisterFlags defines the override flags on fs. Zero values mean "not set".
//
// Parameters:
//   - fs: the flag set to register on
//
// Returns:
//   - *Flags: the destination of the parsed values
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.StringVar(&f.Backend, "backend", "", "Renderer backend (wgpu or vulkan)")
	fs.UintVar(&f.MSAA, "msaa", 0, "G-buffer sample count (1, 4 or 8)")
	fs.IntVar(&f.Frames, "frames", 0, "Frames in flight")
	fs.IntVar(&f.Width, "width", 0, "Window width")
	fs.IntVar(&f.Height, "height", 0, "Window height")
	fs.BoolVar(&f.Uncapped, "uncapped", false, "Present without vsync")
	fs.BoolVar(&f.ForceSoftware, "software", false, "Force a software adapter")
	fs.BoolVar(&f.Validation, "validation", false, "Enable the Vulkan validation layer")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Write logs to a rotating file")
	fs.IntVar(&f.Animation, "animation", -1, "Animation index to play")
	fs.IntVar(&f.Instances, "instances", -1, "Draw each model this many times instanced")
	return f
}

// Apply overlays the flags that were set onto cfg. Positional arguments are added as models.
//
// Parameters:
//   - cfg: the configuration to modify
//   - args: the positional arguments left after parsing
func (f *Flags) Apply(cfg *Config, args []string) {
	if f.Backend != "" {
		cfg.Renderer.Backend = f.Backend
	}
	if f.MSAA > 0 {
		cfg.Renderer.MSAA = uint32(f.MSAA)
	}
	if f.Frames > 0 {
		cfg.Renderer.FramesInFlight = f.Frames
	}
	if f.Width > 0 {
		cfg.Window.Width = f.Width
	}
	if f.Height > 0 {
		cfg.Window.Height = f.Height
	}
	if f.Uncapped {
		cfg.Renderer.PresentMode = "uncapped"
	}
	if f.ForceSoftware {
		cfg.Renderer.ForceSoftware = true
	}
	if f.Validation {
		cfg.Renderer.Validation = true
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.File = f.LogFile
	}
	if f.Animation >= 0 {
		cfg.Assets.Animation = f.Animation
	}
	if f.Instances >= 0 {
		cfg.Assets.Instances = f.Instances
	}
	cfg.Assets.Models = append(cfg.Assets.Models, args...)
}

// ApplyFlags parses args with fs, loads the file named by -config and overlays the flags.
//
// Parameters:
//   - fs: a flag set with no engine flags registered yet
//   - args: the command-line arguments without the program name
//
// Returns:
//   - *Config: the merged configuration
//   - error: a parse, load or validation error
func ApplyFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	f := RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := Load(f.Config)
	if err != nil {
		return nil, err
	}
	f.Apply(cfg, fs.Args())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("command line: %w", err)
	}
	return cfg, nil
}
