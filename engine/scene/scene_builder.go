package scene

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/camera"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/light"
	"go.uber.org/zap"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier.
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithActive sets whether the scene is drawn.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithCamera sets the camera the scene is viewed through.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.camera = cam
	}
}

// WithLights sets the scene's lights and ambient colour.
//
// Parameters:
//   - ambient: the ambient colour added to every lit pixel
//   - lights: the lights
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(ambient [3]float32, lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.ambient = ambient
		s.lights = append(s.lights, lights...)
	}
}

// WithLogger sets the logger used by the scene.
func WithLogger(logger *zap.Logger) SceneBuilderOption {
	return func(s *scene) {
		if logger != nil {
			s.logger = logger
		}
	}
}
