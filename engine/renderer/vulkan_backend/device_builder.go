package vulkan_backend

import "go.uber.org/zap"

// DeviceBuilderOption is a functional option for configuring a Vulkan device.
type DeviceBuilderOption func(*device)

// WithLogger sets the logger used for physical device selection and swapchain events.
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

// WithVSync selects FIFO presentation when enabled. Otherwise mailbox or immediate presentation is used
// when the surface offers it.
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

// WithValidation enables the Khronos validation layer.
func WithValidation(enabled bool) DeviceBuilderOption {
	return func(d *device) {
		d.validation = enabled
	}
}

// WithApplicationName sets the application name reported to the driver.
func WithApplicationName(name string) DeviceBuilderOption {
	return func(d *device) {
		d.appName = name
	}
}
