package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*Model)

// WithName is an option builder that overrides the name taken from the document.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *Model) {
		m.name = name
	}
}

// WithActiveAnimation is an option builder that selects the animation played first. Out-of-range
// indices fall back to the first animation.
//
// Parameters:
//   - index: the animation index
//
// Returns:
//   - ModelBuilderOption: a function that applies the active animation option to a model
func WithActiveAnimation(index int) ModelBuilderOption {
	return func(m *Model) {
		m.activeAnimation = index
	}
}
