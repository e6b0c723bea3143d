package wgpu_backend

import "go.uber.org/zap"

// DeviceBuilderOption is a functional option for configuring a WebGPU device.
type DeviceBuilderOption func(*device)

// WithLogger sets the logger used for adapter selection and swapchain events.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - DeviceBuilderOption: a function that applies the logger
func WithLogger(logger *zap.Logger) DeviceBuilderOption {
	return func(d *device) {
		d.logger = logger
	}
}

// WithVSync selects FIFO presentation when enabled and immediate presentation otherwise.
//
// Parameters:
//   - enabled: whether presentation waits for vertical blank
//
// Returns:
//   - DeviceBuilderOption: a function that applies the present mode
func WithVSync(enabled bool) DeviceBuilderOption {
	return func(d *device) {
		d.vsync = enabled
	}
}

// WithForceFallbackAdapter requests the software fallback adapter.
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(d *device) {
		d.forceFallback = force
	}
}
