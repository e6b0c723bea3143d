package animator

import "go.uber.org/zap"

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithLogger is an option builder that sets the logger used for asset warnings.
//
// Parameters:
//   - logger: the logger, nil keeps the no-op default
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the logger option to an animator
func WithLogger(logger *zap.Logger) AnimatorBuilderOption {
	return func(a *animator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMaxJoints is an option builder that sets the joint limit per skin.
//
// Parameters:
//   - maxJoints: the joint limit, values below 1 keep the default
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the max joints option to an animator
func WithMaxJoints(maxJoints int) AnimatorBuilderOption {
	return func(a *animator) {
		if maxJoints > 0 {
			a.maxJoints = maxJoints
		}
	}
}
