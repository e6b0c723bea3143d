package pipeline

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexShader sets the vertex shader for this pipeline.
//
// Parameters:
//   - s: the vertex shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex shader for this pipeline
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for this pipeline.
//
// Parameters:
//   - s: the fragment shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader for this pipeline
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentShader = s
	}
}

// WithSubpass sets the render pass subpass this pipeline draws in.
//
// Parameters:
//   - subpass: the subpass index
//
// Returns:
//   - PipelineBuilderOption: a function that sets the subpass for this pipeline
func WithSubpass(subpass int) PipelineBuilderOption {
	return func(p *pipeline) {
		p.subpass = subpass
	}
}

// WithDepthTestEnabled sets whether depth testing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth testing should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth test enabled state for this pipeline
func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled sets whether depth writing is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether depth writes should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth write enabled state for this pipeline
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthWriteEnabled = enabled
	}
}

// WithBlendEnabled sets whether alpha blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend enabled state for this pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithCullMode sets the face culling mode for this pipeline.
//
// Parameters:
//   - mode: the cull mode
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode gpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithColorTargets sets how many colour attachments the fragment shader writes.
//
// Parameters:
//   - count: the number of colour targets
//
// Returns:
//   - PipelineBuilderOption: a function that sets the colour target count for this pipeline
func WithColorTargets(count int) PipelineBuilderOption {
	return func(p *pipeline) {
		p.colorTargets = count
	}
}

// WithSamples sets the rasterization sample count.
//
// Parameters:
//   - samples: the sample count, 1 for no multisampling
//
// Returns:
//   - PipelineBuilderOption: a function that sets the sample count for this pipeline
func WithSamples(samples uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.samples = samples
	}
}

// WithVertexBindings sets the vertex buffer bindings consumed by the vertex shader.
//
// Parameters:
//   - bindings: the vertex bindings
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex bindings for this pipeline
func WithVertexBindings(bindings ...gpu.VertexBinding) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexBindings = bindings
	}
}

// WithPushConstants sets the push constant block of the pipeline layout.
//
// Parameters:
//   - stages: the stages that read the block
//   - size: the block size in bytes
//
// Returns:
//   - PipelineBuilderOption: a function that sets the push constant range for this pipeline
func WithPushConstants(stages gpu.ShaderStage, size uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.pushConstants = gpu.PushConstantRange{Stages: stages, Size: size}
	}
}
