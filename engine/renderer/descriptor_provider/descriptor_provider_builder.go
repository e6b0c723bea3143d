package descriptor_provider

import "github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"

// ProviderOption is a functional option used to configure a Provider during construction.
type ProviderOption func(*provider)

// WithBuffer sets a buffer for a specific binding index. The provider takes ownership of the buffer.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - ProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf gpu.Buffer) ProviderOption {
	return func(p *provider) {
		p.buffers[binding] = buf
	}
}

// WithImage sets an image and its sampler for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this image
//   - img: the image to bind
//   - s: the sampler for combined image-sampler bindings, or nil
//
// Returns:
//   - ProviderOption: a function that sets the image for the specified binding
func WithImage(binding int, img gpu.Image, s gpu.Sampler) ProviderOption {
	return func(p *provider) {
		p.SetImage(binding, img, s)
	}
}
