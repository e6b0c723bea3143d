// package wgpu_backend implements gpu.Device on WebGPU. WebGPU has no subpasses, push constants or
// semaphores, so the device emulates them: every subpass becomes its own render pass, push constants
// become a uniform bind group addressed with dynamic offsets, and queue order replaces semaphores.
package wgpu_backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// errFrameHeld is returned by AcquireNextImage while the previous surface texture is not presented yet.
var errFrameHeld = errors.New("previous surface texture not yet presented")

type device struct {
	mu     *sync.Mutex
	logger *zap.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	format        gpu.Format
	extent        gpu.Extent
	vsync         bool
	forceFallback bool

	// swapchain stands for whichever surface texture is current. Framebuffers hold it and resolve it
	// to frameView when a render pass begins.
	swapchain    *swapchainImage
	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView

	pushLayout *wgpu.BindGroupLayout
}

var _ gpu.Device = &device{}

// NewDevice creates a WebGPU device presenting to the given surface and configures the swapchain.
// It locks the calling goroutine to its OS thread; every later call must come from that goroutine.
//
// Parameters:
//   - surfaceDescriptor: the platform surface, usually from the window
//   - extent: the initial swapchain size
//   - options: variadic list of DeviceBuilderOption functions to configure the device
//
// Returns:
//   - gpu.Device: the device
//   - error: an error if no adapter, device or surface format is available
func NewDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, extent gpu.Extent, options ...DeviceBuilderOption) (gpu.Device, error) {
	runtime.LockOSThread()
	d := &device{
		mu:     &sync.Mutex{},
		logger: zap.NewNop(),
		vsync:  true,
	}
	for _, opt := range options {
		opt(d)
	}
	d.swapchain = &swapchainImage{device: d}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = adapter

	// Four groups for the geometry pipeline (camera, skin, material, push constants).
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.initPushLayout(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.configure(extent); err != nil {
		d.Release()
		return nil, err
	}
	d.logger.Info("webgpu device created",
		zap.String("format", d.format.String()),
		zap.Uint32("width", extent.Width),
		zap.Uint32("height", extent.Height),
		zap.Bool("vsync", d.vsync))
	return d, nil
}

// configure sets up the surface at the given extent. The first surface format the renderer can target
// is used.
func (d *device) configure(extent gpu.Extent) error {
	capabilities := d.surface.GetCapabilities(d.adapter)
	found := false
	for _, f := range capabilities.Formats {
		if format, ok := surfaceFormat(f); ok {
			d.surfaceFormat, d.format, found = f, format, true
			break
		}
	}
	if !found {
		return errors.New("surface supports no RGBA8 or BGRA8 format")
	}

	presentMode := wgpu.PresentModeImmediate
	if d.vsync {
		presentMode = wgpu.PresentModeFifo
	}
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       extent.Width,
		Height:      extent.Height,
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	d.extent = extent
	return nil
}

func (d *device) initPushLayout() error {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}
	entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	entry.Buffer.HasDynamicOffset = true
	entry.Buffer.MinBindingSize = pushSlotSize

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "push constants",
		Entries: []wgpu.BindGroupLayoutEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("failed to create push constant layout: %w", err)
	}
	d.pushLayout = layout
	return nil
}

func (d *device) ShaderLanguage() gpu.ShaderLanguage {
	return gpu.ShaderLanguageWGSL
}

func (d *device) SwapchainFormat() gpu.Format {
	return d.format
}

func (d *device) SwapchainExtent() gpu.Extent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extent
}

// SwapchainImageCount is always 1: WebGPU hands out one current texture at a time.
func (d *device) SwapchainImageCount() int {
	return 1
}

func (d *device) SwapchainImage(index int) gpu.Image {
	return d.swapchain
}

func (d *device) RecreateSwapchain(extent gpu.Extent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseFrame()
	if err := d.configure(extent); err != nil {
		return err
	}
	d.logger.Debug("surface reconfigured", zap.Uint32("width", extent.Width), zap.Uint32("height", extent.Height))
	return nil
}

// AcquireNextImage takes the surface's current texture. Queue order already serialises the frame, so
// signal is not used.
func (d *device) AcquireNextImage(signal gpu.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameTexture != nil {
		return 0, errFrameHeld
	}
	texture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", gpu.ErrOutOfDate, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return 0, fmt.Errorf("failed to create surface view: %w", err)
	}
	d.frameTexture = texture
	d.frameView = view
	return 0, nil
}

func (d *device) Present(imageIndex uint32, wait gpu.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameTexture == nil {
		return nil
	}
	d.surface.Present()
	d.releaseFrame()
	return nil
}

func (d *device) releaseFrame() {
	if d.frameView != nil {
		d.frameView.Release()
		d.frameView = nil
	}
	if d.frameTexture != nil {
		d.frameTexture.Release()
		d.frameTexture = nil
	}
}

func (d *device) currentFrameView() *wgpu.TextureView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameView
}

func (d *device) Submit(info gpu.SubmitInfo) error {
	buffers := make([]*wgpu.CommandBuffer, 0, len(info.CommandBuffers))
	for _, cb := range info.CommandBuffers {
		c, ok := cb.(*commandBuffer)
		if !ok || c.finished == nil {
			return fmt.Errorf("command buffer %s was not recorded", cb.Label())
		}
		buffers = append(buffers, c.finished)
	}
	d.queue.Submit(buffers...)
	for _, cb := range info.CommandBuffers {
		c := cb.(*commandBuffer)
		c.finished.Release()
		c.finished = nil
	}
	return nil
}

func (d *device) WaitIdle() error {
	d.device.Poll(true, nil)
	return nil
}

func (d *device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseFrame()
	if d.pushLayout != nil {
		d.pushLayout.Release()
		d.pushLayout = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
