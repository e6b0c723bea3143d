package dispatcher

import "go.uber.org/zap"

// DispatcherBuilderOption is a functional option for configuring a Dispatcher.
type DispatcherBuilderOption func(*dispatcher)

// WithLogger sets the logger used for skipped draws.
//
// Parameters:
//   - logger: the logger, nil is ignored
//
// Returns:
//   - DispatcherBuilderOption: the option
func WithLogger(logger *zap.Logger) DispatcherBuilderOption {
	return func(d *dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}
