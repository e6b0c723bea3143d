package pipeline

import (
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
)

// Keys of the pipelines the deferred renderer creates.
const (
	KeyGeometryCullBack  = "geometry-cull-back"
	KeyGeometryCullNone  = "geometry-cull-none"
	KeyGeometryInstanced = "geometry-instanced"
	KeyLighting          = "lighting"
)

// pipeline is the implementation of the Pipeline interface.
// It holds the fixed-function configuration and shaders of one graphics pipeline and, after Init,
// the GPU pipeline object created from them.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string
	// subpass is the index of the render pass subpass this pipeline draws in
	subpass int

	// the following shader references are used for pipeline creation, they are required to be set before initializing a pipeline.

	vertexShader, fragmentShader shader.Shader

	// gpuPipeline is the created pipeline, nil before Init
	gpuPipeline gpu.Pipeline

	// The following properties are used to configure the pipeline during creation and can be toggled/set with the builder options.

	depthTestEnabled  bool
	depthWriteEnabled bool
	blendEnabled      bool
	cullMode          gpu.CullMode
	colorTargets      int
	samples           uint32
	vertexBindings    []gpu.VertexBinding
	pushConstants     gpu.PushConstantRange
}

// Pipeline defines the interface for a graphics pipeline in the deferred render pass. It holds all
// configuration state required for pipeline creation including depth, blend, cull and vertex input
// settings, and the GPU pipeline once Init has run.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Subpass returns the subpass of the render pass this pipeline draws in.
	//
	// Returns:
	//   - int: the subpass index
	Subpass() int

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex or fragment)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// GPU returns the created pipeline, or nil before Init.
	//
	// Returns:
	//   - gpu.Pipeline: the GPU pipeline or nil
	GPU() gpu.Pipeline

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - gpu.CullMode: the cull mode for this pipeline
	CullMode() gpu.CullMode

	// VertexBindings returns the vertex buffer bindings the vertex shader consumes.
	//
	// Returns:
	//   - []gpu.VertexBinding: the vertex bindings
	VertexBindings() []gpu.VertexBinding

	// PushConstants returns the push constant block of the pipeline layout.
	//
	// Returns:
	//   - gpu.PushConstantRange: the push constant range, Size 0 when unused
	PushConstants() gpu.PushConstantRange

	// Descriptor builds the device-level descriptor for this pipeline.
	//
	// Parameters:
	//   - lang: the shading language of the target device
	//   - renderPass: the render pass the pipeline is compatible with
	//   - setLayouts: the descriptor set layouts, indexed by set number
	//
	// Returns:
	//   - gpu.PipelineDescriptor: the descriptor
	//   - error: an error if a shader is missing or has no code for lang
	Descriptor(lang gpu.ShaderLanguage, renderPass gpu.RenderPass, setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineDescriptor, error)

	// Init creates the GPU pipeline. Calling Init again releases the previous pipeline first.
	//
	// Parameters:
	//   - device: the device that creates the pipeline
	//   - renderPass: the render pass the pipeline is compatible with
	//   - setLayouts: the descriptor set layouts, indexed by set number
	//
	// Returns:
	//   - error: an error if the pipeline could not be created
	Init(device gpu.Device, renderPass gpu.RenderPass, setLayouts []gpu.DescriptorSetLayout) error

	// Release destroys the GPU pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:       pipelineKey,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		blendEnabled:      false,
		cullMode:          gpu.CullModeBack,
		colorTargets:      1,
		samples:           1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Subpass() int {
	return p.subpass
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	default:
		return nil
	}
}

func (p *pipeline) GPU() gpu.Pipeline {
	return p.gpuPipeline
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() gpu.CullMode {
	return p.cullMode
}

func (p *pipeline) VertexBindings() []gpu.VertexBinding {
	return p.vertexBindings
}

func (p *pipeline) PushConstants() gpu.PushConstantRange {
	return p.pushConstants
}

func (p *pipeline) Descriptor(lang gpu.ShaderLanguage, renderPass gpu.RenderPass, setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineDescriptor, error) {
	if p.vertexShader == nil || p.fragmentShader == nil {
		return gpu.PipelineDescriptor{}, fmt.Errorf("pipeline %s requires a vertex and a fragment shader", p.pipelineKey)
	}
	vs, err := p.vertexShader.Source(lang)
	if err != nil {
		return gpu.PipelineDescriptor{}, fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}
	fs, err := p.fragmentShader.Source(lang)
	if err != nil {
		return gpu.PipelineDescriptor{}, fmt.Errorf("pipeline %s: %w", p.pipelineKey, err)
	}
	return gpu.PipelineDescriptor{
		Label:          p.pipelineKey,
		RenderPass:     renderPass,
		Subpass:        p.subpass,
		Vertex:         vs,
		Fragment:       fs,
		VertexBindings: p.vertexBindings,
		SetLayouts:     setLayouts,
		PushConstants:  p.pushConstants,
		CullMode:       p.cullMode,
		DepthTest:      p.depthTestEnabled,
		DepthWrite:     p.depthWriteEnabled,
		Blend:          p.blendEnabled,
		ColorTargets:   p.colorTargets,
		Samples:        p.samples,
	}, nil
}

func (p *pipeline) Init(device gpu.Device, renderPass gpu.RenderPass, setLayouts []gpu.DescriptorSetLayout) error {
	desc, err := p.Descriptor(device.ShaderLanguage(), renderPass, setLayouts)
	if err != nil {
		return err
	}
	created, err := device.CreatePipeline(desc)
	if err != nil {
		return fmt.Errorf("failed to create pipeline %s: %w", p.pipelineKey, err)
	}
	p.Release()
	p.gpuPipeline = created
	return nil
}

func (p *pipeline) Release() {
	if p.gpuPipeline != nil {
		p.gpuPipeline.Release()
		p.gpuPipeline = nil
	}
}
