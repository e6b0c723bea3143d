// Command viewer opens a window and renders glTF models through the deferred renderer.
//
//	viewer [flags] model.glb [more.gltf ...]
//
// Drag with the left or middle button to orbit, scroll to zoom. N cycles animations, P pauses them and
// R reframes the camera.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/camera"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/config"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/light"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/loader"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/logger"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/profiler"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/scene"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/window"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.ApplyFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		logger.Log.Error("viewer failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.Config) error {
	// ── Logging ─────────────────────────────────────────────────────────
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	log := logger.Init(logCfg)

	backend, err := renderer.ParseBackendType(cfg.Renderer.Backend)
	if err != nil {
		return err
	}
	presentMode, err := renderer.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return err
	}

	// ── Window ──────────────────────────────────────────────────────────
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithMinSize(cfg.Window.MinWidth, cfg.Window.MinHeight),
		window.WithMaxSize(cfg.Window.MaxWidth, cfg.Window.MaxHeight),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	// ── Device + Renderer ───────────────────────────────────────────────
	device, err := renderer.OpenDevice(win, renderer.DeviceConfig{
		Backend:       backend,
		PresentMode:   presentMode,
		ForceSoftware: cfg.Renderer.ForceSoftware,
		Validation:    cfg.Renderer.Validation,
		AppName:       cfg.Window.Title,
		Logger:        logger.Named("gpu"),
	})
	if err != nil {
		return fmt.Errorf("failed to open %s device: %w", backend, err)
	}
	defer device.Release()

	// WGSL is embedded; only Vulkan needs the precompiled SPIR-V directory.
	spirvDir := ""
	if backend == renderer.BackendTypeVulkan {
		spirvDir = cfg.Renderer.ShaderDir
	}
	shaders, err := shader.DefaultLibrary(spirvDir)
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(device,
		renderer.WithLogger(logger.Named("renderer")),
		renderer.WithMSAA(renderer.MSAASampleCount(cfg.Renderer.MSAA)),
		renderer.WithFramesInFlight(cfg.Renderer.FramesInFlight),
		renderer.WithShaderLibrary(shaders),
		renderer.WithClearColor(cfg.Renderer.ClearColor),
	)
	if err != nil {
		return err
	}
	defer r.Release()

	// ── Camera + Lights ─────────────────────────────────────────────────
	extent := win.Extent()
	orbit := camera.NewOrbitController(
		camera.WithRadius(5),
		camera.WithAngles(0.5, 0.3),
		camera.WithRadiusBounds(0.05, 10000),
	)
	cam := camera.NewCamera(
		camera.WithFov(mgl32.DegToRad(45)),
		camera.WithAspect(aspect(int(extent.Width), int(extent.Height))),
		camera.WithClipPlanes(0.01, 10000),
		camera.WithFlipY(r.FlipY()),
		camera.WithController(orbit),
	)
	sun := light.Directional(mgl32.Vec3{-0.4, -1, -0.3}, mgl32.Vec3{1, 0.96, 0.9}, 3)
	fill := light.Point(mgl32.Vec3{-3, 4, 3}, mgl32.Vec3{0.6, 0.7, 1}, 20, 50)

	sc := scene.NewScene(
		scene.WithName("viewer"),
		scene.WithCamera(cam),
		scene.WithLights([3]float32{0.04, 0.04, 0.05}, sun, fill),
		scene.WithLogger(logger.Named("scene")),
	)

	// ── Models ──────────────────────────────────────────────────────────
	ldr := loader.NewLoader(loader.BackendTypeGLTF, loader.WithLogger(logger.Named("loader")))
	var models []*model.Model
	for _, path := range cfg.Assets.Models {
		doc, err := ldr.Load(path)
		if err != nil {
			return err
		}
		m, err := r.LoadModel(doc)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}
		if len(m.Animations) > 0 && cfg.Assets.Animation >= 0 {
			if err := r.SetActiveAnimation(m, cfg.Assets.Animation); err != nil {
				log.Warn("animation not found", zap.String("model", m.Name()), zap.Error(err))
			}
		}
		if cfg.Assets.Instances > 0 {
			spacing := instanceSpacing(m)
			sc.Add(m, scene.Grid(cfg.Assets.Instances, spacing)...)
		} else {
			sc.Add(m)
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		log.Warn("no models given, rendering an empty scene")
	}
	reframe := func() { frameModels(orbit, models) }
	reframe()

	// ── Input ───────────────────────────────────────────────────────────
	paused := false
	win.SetDragCallback(func(dx, dy float32) {
		orbit.Orbit(dx, dy)
	})
	win.SetScrollCallback(func(delta float32) {
		orbit.Zoom(delta)
	})
	win.SetKeyCallback(func(key common.Key, pressed bool) {
		if !pressed {
			return
		}
		switch key {
		case common.KeyN:
			for _, m := range models {
				if len(m.Animations) == 0 {
					continue
				}
				next := (m.ActiveAnimationIndex() + 1) % len(m.Animations)
				if err := r.SetActiveAnimation(m, next); err == nil {
					log.Info("playing animation", zap.String("model", m.Name()), zap.String("animation", m.Animations[next].Name))
				}
			}
		case common.KeyP:
			paused = !paused
			for _, m := range models {
				_ = sc.SetAnimate(m, !paused && len(m.Animations) > 0)
			}
		case common.KeyR:
			reframe()
		}
	})

	// ── Engine ──────────────────────────────────────────────────────────
	var prof *profiler.Profiler
	if cfg.Logging.Level == "debug" {
		prof = profiler.NewProfiler(profiler.WithLogger(logger.Named("profiler")))
	}
	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithScene(0, sc),
		engine.WithTickRate(cfg.Renderer.TickRate),
		engine.WithProfiler(prof),
		engine.WithLogger(logger.Named("engine")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return eng.Run(ctx)
}

func aspect(width, height int) float32 {
	if width <= 0 || height <= 0 {
		return 16.0 / 9.0
	}
	return float32(width) / float32(height)
}

// instanceSpacing keeps neighbouring instances of m from overlapping.
func instanceSpacing(m *model.Model) float32 {
	b, ok := m.Bounds()
	if !ok {
		return 1
	}
	size := b.Max.Sub(b.Min)
	return max(size.X(), size.Z(), 0.1) * 1.25
}

// frameModels points the orbit at the centre of every model and backs off far enough to see them.
func frameModels(orbit camera.OrbitController, models []*model.Model) {
	var all model.Bounds
	found := false
	for _, m := range models {
		b, ok := m.Bounds()
		if !ok {
			continue
		}
		if !found {
			all, found = b, true
			continue
		}
		for k := 0; k < 3; k++ {
			all.Min[k] = min(all.Min[k], b.Min[k])
			all.Max[k] = max(all.Max[k], b.Max[k])
		}
	}
	if !found {
		return
	}
	centre := all.Min.Add(all.Max).Mul(0.5)
	orbit.SetTarget(centre)
	orbit.SetRadius(max(all.Max.Sub(all.Min).Len()*1.5, 0.1))
}
