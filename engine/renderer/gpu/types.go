// package gpu defines the backend-neutral GPU objects the renderer records against. Backends (WebGPU, Vulkan)
// implement Device and CommandBuffer; the rest of the engine never imports a graphics API directly.
package gpu

// Format identifies the pixel format of an image.
type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8Unorm
	FormatBGRA8UnormSrgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatDepth32Float
)

// IsDepth reports whether the format is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float
}

// String returns a short name for the format, used in logs.
func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA8UnormSrgb:
		return "rgba8unorm-srgb"
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	case FormatBGRA8UnormSrgb:
		return "bgra8unorm-srgb"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatDepth32Float:
		return "depth32float"
	default:
		return "undefined"
	}
}

// Extent is a two dimensional size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero, which happens while a window is minimized.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// ImageUsage is a bit set describing how an image will be used.
type ImageUsage uint32

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageDepthAttachment
	ImageUsageInputAttachment
	ImageUsageSampled
	ImageUsageTransferDst
	// ImageUsageTransient marks multisampled attachments whose contents never leave the render pass.
	ImageUsageTransient
)

// ImageDescriptor describes an image to create.
type ImageDescriptor struct {
	Label   string
	Extent  Extent
	Format  Format
	Samples uint32
	Usage   ImageUsage
}

// LoadOp defines what happens to an attachment at the start of a render pass.
type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
	LoadOpDontCare
)

// StoreOp defines what happens to an attachment at the end of a render pass.
type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// AttachmentDescription describes one attachment slot of a render pass.
type AttachmentDescription struct {
	Format  Format
	Samples uint32
	LoadOp  LoadOp
	StoreOp StoreOp
	// Present marks the attachment as a swapchain image that is presented after the pass.
	Present bool
}

// AttachmentUnused marks an unused attachment reference.
const AttachmentUnused = -1

// SubpassDescription lists the attachment indices a subpass uses.
// ResolveAttachments is either empty or parallel to ColorAttachments, with AttachmentUnused for
// colour attachments that are not resolved.
type SubpassDescription struct {
	ColorAttachments   []int
	ResolveAttachments []int
	DepthAttachment    int
	InputAttachments   []int
}

// RenderPassDescriptor describes a multi-subpass render pass.
type RenderPassDescriptor struct {
	Label       string
	Attachments []AttachmentDescription
	Subpasses   []SubpassDescription
}

// FramebufferDescriptor binds concrete images to the attachment slots of a render pass.
type FramebufferDescriptor struct {
	Label       string
	RenderPass  RenderPass
	Attachments []Image
	Extent      Extent
}

// ClearValue is the clear value for one attachment. Color is used for colour attachments, Depth for depth.
type ClearValue struct {
	Color [4]float32
	Depth float32
}

// RenderPassBeginInfo holds everything needed to begin a render pass instance.
type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent
	ClearValues []ClearValue
}

// BufferUsage is a bit set describing how a buffer will be used.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferDst
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// FilterMode selects texel filtering for a sampler.
type FilterMode int

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// AddressMode selects how out-of-range texture coordinates are handled.
type AddressMode int

const (
	AddressRepeat AddressMode = iota
	AddressClampToEdge
	AddressMirrorRepeat
)

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label       string
	MagFilter   FilterMode
	MinFilter   FilterMode
	AddressMode AddressMode
}

// ShaderStage is a bit set of programmable stages.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

// BindingType identifies the kind of resource bound at a descriptor binding.
type BindingType int

const (
	BindingUniformBuffer BindingType = iota
	BindingStorageBuffer
	BindingCombinedImageSampler
	BindingInputAttachment
)

// LayoutBinding describes one binding of a descriptor set layout.
type LayoutBinding struct {
	Binding uint32
	Type    BindingType
	Stages  ShaderStage
	// Multisampled marks input attachments that read a multisampled image.
	Multisampled bool
	// Depth marks image bindings that read a depth image.
	Depth bool
}

// DescriptorSetLayoutDescriptor describes a descriptor set layout.
type DescriptorSetLayoutDescriptor struct {
	Label    string
	Bindings []LayoutBinding
}

// DescriptorWrite points one binding of a descriptor set at a resource. Exactly one of Buffer or Image
// is set; Sampler accompanies Image for combined image-sampler bindings.
type DescriptorWrite struct {
	Binding uint32
	Buffer  Buffer
	Image   Image
	Sampler Sampler
}

// DescriptorSetDescriptor describes a descriptor set allocated from a layout.
type DescriptorSetDescriptor struct {
	Label  string
	Layout DescriptorSetLayout
	Writes []DescriptorWrite
}

// ShaderLanguage identifies the encoding of a shader module's code.
type ShaderLanguage int

const (
	ShaderLanguageSPIRV ShaderLanguage = iota
	ShaderLanguageWGSL
)

// ShaderSource is a precompiled shader module.
type ShaderSource struct {
	Label      string
	Language   ShaderLanguage
	EntryPoint string
	Code       []byte
}

// VertexFormat describes the layout of one vertex attribute.
type VertexFormat int

const (
	VertexFloat32x2 VertexFormat = iota
	VertexFloat32x3
	VertexFloat32x4
	VertexUint32x4
)

// Size returns the byte size of the format.
func (f VertexFormat) Size() uint32 {
	switch f {
	case VertexFloat32x2:
		return 8
	case VertexFloat32x3:
		return 12
	default:
		return 16
	}
}

// VertexAttribute describes one shader input location within a vertex binding.
type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

// VertexBinding describes one vertex buffer binding.
type VertexBinding struct {
	Binding     uint32
	Stride      uint32
	PerInstance bool
	Attributes  []VertexAttribute
}

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullModeBack CullMode = iota
	CullModeNone
	CullModeFront
)

// PushConstantRange describes the push constant block of a pipeline.
type PushConstantRange struct {
	Stages ShaderStage
	Size   uint32
}

// PipelineDescriptor describes a graphics pipeline for one subpass of a render pass.
type PipelineDescriptor struct {
	Label          string
	RenderPass     RenderPass
	Subpass        int
	Vertex         ShaderSource
	Fragment       ShaderSource
	VertexBindings []VertexBinding
	SetLayouts     []DescriptorSetLayout
	PushConstants  PushConstantRange
	CullMode       CullMode
	DepthTest      bool
	DepthWrite     bool
	Blend          bool
	// ColorTargets is the number of colour outputs written by the fragment shader.
	ColorTargets int
	Samples      uint32
}

// PipelineStage names the pipeline stage a semaphore wait applies to.
type PipelineStage int

const (
	PipelineStageTopOfPipe PipelineStage = iota
	PipelineStageColorAttachmentOutput
	PipelineStageTransfer
	PipelineStageAllCommands
)

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandBuffers   []CommandBuffer
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	SignalSemaphores []Semaphore
}
