package renderer

import (
	"errors"
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/vulkan_backend"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/wgpu_backend"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// ErrNoSurface is returned when the window cannot provide a surface for the selected backend.
var ErrNoSurface = errors.New("window provides no surface for backend")

// SurfaceProvider is the window side of device creation: one surface source per backend and the
// initial framebuffer size.
type SurfaceProvider interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	VulkanSurface() vulkan_backend.SurfaceSource
	Extent() gpu.Extent
}

// DeviceConfig selects and configures the backend opened by OpenDevice.
type DeviceConfig struct {
	Backend     RendererBackendType
	PresentMode PresentMode
	// ForceSoftware asks the WebGPU backend for a fallback adapter.
	ForceSoftware bool
	// Validation enables the Vulkan validation layer.
	Validation bool
	AppName    string
	Logger     *zap.Logger
}

// OpenDevice creates the gpu.Device for cfg.Backend on the window's surface.
//
// Parameters:
//   - surface: the window to present to
//   - cfg: the backend selection and options
//
// Returns:
//   - gpu.Device: the opened device
//   - error: ErrNoSurface, or the backend's creation error
func OpenDevice(surface SurfaceProvider, cfg DeviceConfig) (gpu.Device, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Stringer("backend", cfg.Backend))
	vsync := cfg.PresentMode == PresentModeVSync
	extent := surface.Extent()

	switch cfg.Backend {
	case BackendTypeVulkan:
		source := surface.VulkanSurface()
		if source.ProcAddr == nil {
			return nil, fmt.Errorf("%w %s", ErrNoSurface, cfg.Backend)
		}
		opts := []vulkan_backend.DeviceBuilderOption{
			vulkan_backend.WithLogger(logger),
			vulkan_backend.WithVSync(vsync),
			vulkan_backend.WithValidation(cfg.Validation),
		}
		if cfg.AppName != "" {
			opts = append(opts, vulkan_backend.WithApplicationName(cfg.AppName))
		}
		return vulkan_backend.NewDevice(source, extent, opts...)
	default:
		desc := surface.SurfaceDescriptor()
		if desc == nil {
			return nil, fmt.Errorf("%w %s", ErrNoSurface, cfg.Backend)
		}
		return wgpu_backend.NewDevice(desc, extent,
			wgpu_backend.WithLogger(logger),
			wgpu_backend.WithVSync(vsync),
			wgpu_backend.WithForceFallbackAdapter(cfg.ForceSoftware),
		)
	}
}
