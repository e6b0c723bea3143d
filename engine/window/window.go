package window

import (
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/vulkan_backend"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the platform window the renderer presents to. It is driven from the thread that created
// it: PollEvents dispatches the registered callbacks synchronously.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels, 0x0 while minimised
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key presses, repeats and releases.
	//
	// Parameters:
	//   - callback: function receiving the key and whether it is held
	SetKeyCallback(callback func(key common.Key, pressed bool))

	// SetDragCallback sets the callback for cursor motion while the left or middle button is held.
	//
	// Parameters:
	//   - callback: function receiving the cursor movement in pixels since the last event
	SetDragCallback(callback func(dx, dy float32))

	// PollEvents processes pending window events without blocking.
	//
	// Returns:
	//   - bool: false once the window has been asked to close
	PollEvents() bool

	// SurfaceDescriptor returns the platform surface descriptor for the WebGPU backend, created by the
	// wgpuglfw bridge. Nil once the window is closed.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// VulkanSurface returns the loader entry point, instance extensions and surface constructor the
	// Vulkan backend needs.
	VulkanSurface() vulkan_backend.SurfaceSource

	// Extent returns the framebuffer size in pixels.
	Extent() gpu.Extent

	// IsRunning returns true until the window is closed.
	IsRunning() bool

	// Close destroys the window and terminates the platform library.
	//
	// Returns:
	//   - error: error if the window was never created
	Close() error
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, platform state, and event callbacks.
type engineWindow struct {
	title string

	// Size limits applied to user resizing. Zero leaves a side unconstrained.
	minWidth, minHeight int
	maxWidth, maxHeight int

	// width and height are the framebuffer size in pixels, which differs from the window size on
	// high-DPI displays.
	width  int
	height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	onResize func(width, height int)
	onScroll func(delta float32)
	onKey    func(key common.Key, pressed bool)
	onDrag   func(dx, dy float32)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: error if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "Maat",
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key common.Key, pressed bool)) {
	w.onKey = callback
}

func (w *engineWindow) SetDragCallback(callback func(dx, dy float32)) {
	w.onDrag = callback
}

func (w *engineWindow) PollEvents() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) VulkanSurface() vulkan_backend.SurfaceSource {
	return platformVulkanSurface(w)
}

func (w *engineWindow) Extent() gpu.Extent {
	return gpu.Extent{Width: uint32(max(w.width, 0)), Height: uint32(max(w.height, 0))}
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

// resized records a new framebuffer size and forwards it.
func (w *engineWindow) resized(width, height int) {
	w.width = width
	w.height = height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
