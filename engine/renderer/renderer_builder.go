package renderer

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
	"go.uber.org/zap"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLogger sets the logger handed to the renderer and its subsystems.
//
// Parameters:
//   - logger: the logger, nil is ignored
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger *zap.Logger) RendererBuilderOption {
	return func(r *renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMSAA sets the multisample count of the G-buffer attachments.
// When not specified, the default is MSAAOff.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.samples = uint32(count)
	}
}

// WithFramesInFlight sets how many frames the CPU may record ahead of the GPU.
//
// Parameters:
//   - n: the number of frames in flight, values below 1 select the default of 2
//
// Returns:
//   - RendererBuilderOption: a function that applies the frames option to a renderer
func WithFramesInFlight(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.framesInFlight = n
	}
}

// WithShaderLibrary sets the shaders the pipelines are built from. The default is the embedded WGSL
// library, which a SPIR-V device cannot use.
//
// Parameters:
//   - lib: the shader library
//
// Returns:
//   - RendererBuilderOption: a function that applies the library option to a renderer
func WithShaderLibrary(lib shader.Library) RendererBuilderOption {
	return func(r *renderer) {
		r.shaders = lib
	}
}

// WithClearColor sets the colour the final attachment is cleared to.
func WithClearColor(c [4]float32) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithMaxJoints sets the joint limit per skin.
func WithMaxJoints(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxJoints = n
	}
}
