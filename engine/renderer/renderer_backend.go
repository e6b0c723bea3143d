package renderer

import "fmt"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend. This is the default.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeVulkan selects the native Vulkan backend.
	BackendTypeVulkan
)

// String returns the configuration name of the backend type.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeVulkan:
		return "vulkan"
	default:
		return "wgpu"
	}
}

// ParseBackendType converts a configuration name to a RendererBackendType.
//
// Parameters:
//   - name: "wgpu" or "vulkan"
//
// Returns:
//   - RendererBackendType: the backend type
//   - error: an error for unknown names
func ParseBackendType(name string) (RendererBackendType, error) {
	switch name {
	case "", "wgpu":
		return BackendTypeWGPU, nil
	case "vulkan":
		return BackendTypeVulkan, nil
	}
	return BackendTypeWGPU, fmt.Errorf("unknown renderer backend %q", name)
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// ParsePresentMode converts a configuration name to a PresentMode.
//
// Parameters:
//   - name: "vsync" or "uncapped"
//
// Returns:
//   - PresentMode: the present mode
//   - error: an error for unknown names
func ParsePresentMode(name string) (PresentMode, error) {
	switch name {
	case "", "vsync":
		return PresentModeVSync, nil
	case "uncapped":
		return PresentModeUncapped, nil
	}
	return PresentModeVSync, fmt.Errorf("unknown present mode %q", name)
}

// MSAASampleCount controls the number of samples per G-buffer pixel.
// Only specific power-of-two values are valid for GPU hardware.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA2x enables 2× multisample anti-aliasing.
	MSAA2x MSAASampleCount = 2

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8
)
