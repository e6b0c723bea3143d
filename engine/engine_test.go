package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/camera"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/frame"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu/gputest"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/vulkan_backend"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/scene"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// fakeWindow stays open for a fixed number of polls and runs an optional hook on each one.
type fakeWindow struct {
	polls    int
	open     int
	onPoll   func(poll int)
	onResize func(width, height int)
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *fakeWindow) SetScrollCallback(func(delta float32)) {}
func (w *fakeWindow) SetKeyCallback(func(key common.Key, pressed bool)) {}
func (w *fakeWindow) SetDragCallback(func(dx, dy float32)) {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) VulkanSurface() vulkan_backend.SurfaceSource { return vulkan_backend.SurfaceSource{} }
func (w *fakeWindow) Extent() gpu.Extent { return gpu.Extent{Width: 640, Height: 480} }
func (w *fakeWindow) IsRunning() bool { return w.polls < w.open }
func (w *fakeWindow) Close() error { return nil }

func (w *fakeWindow) PollEvents() bool {
	w.polls++
	if w.onPoll != nil {
		w.onPoll(w.polls)
	}
	return w.polls <= w.open
}

func triangleDocument() *model.DocumentData {
	return &model.DocumentData{
		Title:    "tri",
		NodeList: []model.NodeData{{Name: "root", Mesh: 0, Skin: -1, Scale: mgl32.Vec3{1, 1, 1}}},
		MeshList: []model.MeshData{{Name: "tri", Primitives: []model.PrimitiveData{{
			Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Indices:   []uint32{0, 1, 2},
		}}}},
		MaterialList: []material.Data{material.DefaultData()},
	}
}

func newTestEngine(t *testing.T, win *fakeWindow) (*gputest.Device, renderer.Renderer, scene.Scene) {
	t.Helper()
	dev := gputest.NewDevice(win.Extent(), 2)
	r, err := renderer.NewRenderer(dev)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Release)
	m, err := r.LoadModel(triangleDocument())
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	s := scene.NewScene(scene.WithCamera(camera.NewCamera()))
	s.Add(m)
	return dev, r, s
}

func TestRunRendersUntilWindowCloses(t *testing.T) {
	win := &fakeWindow{open: 3}
	dev, r, s := newTestEngine(t, win)
	e := NewEngine(WithWindow(win), WithRenderer(r), WithScene(0, s))

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(dev.Presents()); got != 3 {
		t.Errorf("presented %d frames, want 3", got)
	}
}

func TestResizeReachesRendererAndCamera(t *testing.T) {
	win := &fakeWindow{open: 2}
	dev, r, s := newTestEngine(t, win)
	win.onPoll = func(poll int) {
		if poll == 2 {
			win.onResize(1000, 500)
		}
	}
	e := NewEngine(WithWindow(win), WithRenderer(r), WithScene(0, s))
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recreations := dev.Recreations()
	if len(recreations) == 0 || recreations[len(recreations)-1] != (gpu.Extent{Width: 1000, Height: 500}) {
		t.Errorf("recreations = %v", recreations)
	}
	if aspect := s.Camera().Aspect(); aspect != 2 {
		t.Errorf("camera aspect = %v, want 2", aspect)
	}
}

func TestOutOfDateFrameIsSkipped(t *testing.T) {
	win := &fakeWindow{open: 3}
	dev, r, s := newTestEngine(t, win)
	dev.AcquireErrors = []error{gpu.ErrOutOfDate}
	e := NewEngine(WithWindow(win), WithRenderer(r), WithScene(0, s))

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(dev.Presents()); got != 2 {
		t.Errorf("presented %d frames, want 2", got)
	}
}

func TestFatalErrorStopsLoop(t *testing.T) {
	win := &fakeWindow{open: 10}
	dev, r, s := newTestEngine(t, win)
	dev.SubmitError = errors.New("device lost")
	e := NewEngine(WithWindow(win), WithRenderer(r), WithScene(0, s))

	err := e.Run(context.Background())
	if !errors.Is(err, frame.ErrFatal) {
		t.Fatalf("Run = %v, want ErrFatal", err)
	}
	if win.polls != 1 {
		t.Errorf("polled %d times after a fatal frame", win.polls)
	}
}

func TestQuitAndCancel(t *testing.T) {
	win := &fakeWindow{open: 1000}
	_, r, s := newTestEngine(t, win)
	e := NewEngine(WithWindow(win), WithRenderer(r), WithScene(0, s))
	win.onPoll = func(poll int) {
		if poll == 2 {
			e.Quit()
			e.Quit()
		}
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if win.polls != 2 {
		t.Errorf("polls after Quit = %d, want 2", win.polls)
	}

	win2 := &fakeWindow{open: 1000}
	_, r2, s2 := newTestEngine(t, win2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewEngine(WithWindow(win2), WithRenderer(r2), WithScene(0, s2)).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if win2.polls != 0 {
		t.Errorf("cancelled engine polled %d times", win2.polls)
	}
}

func TestTickCallbackRunsAtFixedRate(t *testing.T) {
	win := &fakeWindow{open: 2}
	_, r, s := newTestEngine(t, win)
	e := NewEngine(WithWindow(win), WithRenderer(r), WithScene(0, s), WithTickRate(1000))
	win.onPoll = func(int) { time.Sleep(3 * time.Millisecond) }

	var ticks int
	var step float32
	e.SetTickCallback(func(dt float32) {
		ticks++
		step = dt
	})
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ticks == 0 {
		t.Fatal("tick callback never ran")
	}
	if step != 0.001 {
		t.Errorf("tick length = %v, want 0.001", step)
	}
}

func TestRunRequiresWindowAndRenderer(t *testing.T) {
	if err := NewEngine().Run(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Run = %v", err)
	}
}
