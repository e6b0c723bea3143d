package frame

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"go.uber.org/zap"
)

// SchedulerBuilderOption is a functional option for configuring a Scheduler during construction.
type SchedulerBuilderOption func(*scheduler)

// WithLogger is an option builder that sets the logger used for swapchain events.
//
// Parameters:
//   - logger: the logger, nil keeps the no-op default
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the logger option to a scheduler
func WithLogger(logger *zap.Logger) SchedulerBuilderOption {
	return func(s *scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResizeHook is an option builder that registers a hook run after every swapchain recreation.
//
// Parameters:
//   - hook: the hook
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the hook option to a scheduler
func WithResizeHook(hook ResizeHook) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.hooks = append(s.hooks, hook)
	}
}

// WithExtentSource is an option builder that sets where the scheduler reads the surface size when an
// acquire or present reports an out-of-date swapchain. The default is the device's current swapchain extent.
//
// Parameters:
//   - source: returns the current drawable size of the surface
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the extent source option to a scheduler
func WithExtentSource(source func() gpu.Extent) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.extentSource = source
	}
}
