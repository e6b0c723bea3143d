package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/profiler"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/frame"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/scene"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/window"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by Run when the engine has no window or renderer.
var ErrNotConfigured = errors.New("engine needs a window and a renderer")

// maxCatchUpTicks bounds how many fixed ticks one loop iteration runs after a stall.
const maxCatchUpTicks = 5

// engine implements the Engine interface.
type engine struct {
	logger *zap.Logger

	window   window.Window
	renderer renderer.Renderer
	profiler *profiler.Profiler

	mu     sync.Mutex
	scenes map[int]scene.Scene

	tickRate     time.Duration
	tickCallback func(deltaTime float32)

	quitChannel chan struct{}
	quitOnce    sync.Once
}

// Engine owns the main loop. Every iteration polls the window, advances the scenes, and renders one
// frame: StartRender, each active scene's draws, EndRender. The loop runs on the calling goroutine,
// which must be the one that created the window.
type Engine interface {
	// Window returns the window the engine polls.
	Window() window.Window

	// Renderer returns the renderer frames are recorded with.
	Renderer() renderer.Renderer

	// SetTickRate sets the fixed tick rate in ticks per second.
	//
	// Parameters:
	//   - hz: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(hz float64)

	// SetTickCallback registers the function called at the fixed tick rate, before the frame is
	// rendered. Use it for input handling and game logic.
	//
	// Parameters:
	//   - callback: function receiving the fixed tick length in seconds
	SetTickCallback(callback func(deltaTime float32))

	// AddScene registers a scene at the given z-index key.
	// Scenes are drawn in ascending key order into the same frame.
	//
	// Parameters:
	//   - key: the z-index determining draw order (lower draws first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	RemoveScene(key int)

	// Scene returns the scene registered at key, or nil.
	Scene(key int) scene.Scene

	// Run drives the loop until the window closes, ctx is cancelled or Quit is called.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//
	// Returns:
	//   - error: ErrNotConfigured, or the fatal frame error that stopped the loop
	Run(ctx context.Context) error

	// Quit stops the loop after the current iteration. Safe to call multiple times and from any
	// goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options and hooks the window's resize
// callback up to the renderer and the scene cameras.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		logger:      zap.NewNop(),
		scenes:      make(map[int]scene.Scene),
		tickRate:    time.Second / 60,
		quitChannel: make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) SetTickRate(hz float64) {
	e.tickRate = tickInterval(hz)
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Run(ctx context.Context) error {
	if e.window == nil || e.renderer == nil {
		return ErrNotConfigured
	}
	e.logger.Info("engine started", zap.Duration("tick", e.tickRate))
	defer e.logger.Info("engine stopped")

	last := time.Now()
	var accumulator time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.quitChannel:
			return nil
		default:
		}

		if !e.window.PollEvents() {
			return nil
		}

		now := time.Now()
		dt := now.Sub(last)
		last = now

		if e.tickCallback != nil {
			accumulator = min(accumulator+dt, maxCatchUpTicks*e.tickRate)
			for accumulator >= e.tickRate {
				e.tickCallback(float32(e.tickRate.Seconds()))
				accumulator -= e.tickRate
			}
		}

		if err := e.frame(float32(dt.Seconds())); err != nil {
			if errors.Is(err, frame.ErrFatal) {
				e.logger.Error("rendering stopped", zap.Error(err))
				return err
			}
			e.logger.Warn("frame failed", zap.Error(err))
		}
	}
}

// frame advances and renders every active scene into one frame.
func (e *engine) frame(dt float32) error {
	start := time.Now()
	scenes := e.activeScenes()
	for _, s := range scenes {
		s.Update(e.renderer, dt)
	}
	// The first scene's camera and lights are used for the whole frame.
	if len(scenes) > 0 {
		scenes[0].Prepare(e.renderer)
	}

	ok, err := e.renderer.StartRender()
	if err != nil {
		return err
	}
	if !ok {
		if e.profiler != nil {
			e.profiler.Drop()
		}
		return nil
	}

	var drawErr error
	for _, s := range scenes {
		if err := s.Draw(e.renderer); err != nil && drawErr == nil {
			drawErr = err
		}
	}
	endErr := e.renderer.EndRender()

	if e.profiler != nil {
		e.profiler.Tick(time.Since(start))
	}
	return errors.Join(drawErr, endErr)
}

// activeScenes returns the active scenes in ascending key order.
func (e *engine) activeScenes() []scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	active := make([]scene.Scene, 0, len(keys))
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			active = append(active, s)
		}
	}
	return active
}

// resize forwards a framebuffer size change to the renderer and the scene cameras.
func (e *engine) resize(width, height int) {
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.scenes {
		if c := s.Camera(); c != nil {
			c.SetAspect(float32(width) / float32(height))
		}
	}
}

func tickInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = 60
	}
	return time.Duration(float64(time.Second) / hz)
}
