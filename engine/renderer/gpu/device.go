package gpu

import "errors"

var (
	// ErrOutOfDate is returned by AcquireNextImage or Present when the swapchain no longer matches the surface.
	ErrOutOfDate = errors.New("swapchain out of date")
	// ErrSuboptimal is returned when the swapchain still works but should be recreated.
	ErrSuboptimal = errors.New("swapchain suboptimal")
	// ErrDeviceLost is returned when the device stopped responding. There is no recovery.
	ErrDeviceLost = errors.New("device lost")
)

// Image is a GPU image together with its default view.
type Image interface {
	Label() string
	Extent() Extent
	Format() Format
	Samples() uint32
	Release()
}

// Buffer is a GPU buffer.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// Sampler is a texture sampler.
type Sampler interface {
	Release()
}

// RenderPass is a compiled render pass.
type RenderPass interface {
	Label() string
	Descriptor() RenderPassDescriptor
	Release()
}

// Framebuffer is a set of images bound to a render pass.
type Framebuffer interface {
	Extent() Extent
	Release()
}

// DescriptorSetLayout is the layout shared by descriptor sets and pipelines.
type DescriptorSetLayout interface {
	Release()
}

// DescriptorSet is a set of resource bindings.
type DescriptorSet interface {
	Label() string
	Release()
}

// Pipeline is a compiled graphics pipeline.
type Pipeline interface {
	Label() string
	Release()
}

// Semaphore orders GPU work between submissions and presentation.
type Semaphore interface {
	Release()
}

// Device is the backend capability interface. It owns the swapchain, creates every GPU object and
// executes submissions. One device exists per renderer.
type Device interface {
	// ShaderLanguage returns the shading language the device compiles pipelines from.
	//
	// Returns:
	//   - ShaderLanguage: ShaderLanguageWGSL or ShaderLanguageSPIRV
	ShaderLanguage() ShaderLanguage

	// SwapchainFormat returns the pixel format of the swapchain images.
	//
	// Returns:
	//   - Format: the swapchain format
	SwapchainFormat() Format

	// SwapchainExtent returns the current size of the swapchain images.
	//
	// Returns:
	//   - Extent: the swapchain extent
	SwapchainExtent() Extent

	// SwapchainImageCount returns how many images the swapchain rotates through.
	//
	// Returns:
	//   - int: the swapchain image count
	SwapchainImageCount() int

	// SwapchainImage returns the swapchain image at the given index, usable as a framebuffer attachment.
	//
	// Parameters:
	//   - index: the swapchain image index
	//
	// Returns:
	//   - Image: the swapchain image
	SwapchainImage(index int) Image

	// RecreateSwapchain rebuilds the swapchain at the given extent. Swapchain images obtained earlier are invalid afterwards.
	//
	// Parameters:
	//   - extent: the new swapchain extent
	//
	// Returns:
	//   - error: an error if the swapchain could not be rebuilt
	RecreateSwapchain(extent Extent) error

	// AcquireNextImage acquires the next presentable image and arranges for signal to be signalled once it is ready.
	//
	// Parameters:
	//   - signal: the semaphore signalled when the image can be rendered to
	//
	// Returns:
	//   - uint32: the acquired swapchain image index
	//   - error: ErrOutOfDate or ErrSuboptimal when the swapchain must be recreated, another error on failure
	AcquireNextImage(signal Semaphore) (uint32, error)

	// Present queues the image for presentation once wait is signalled.
	//
	// Parameters:
	//   - imageIndex: the swapchain image to present
	//   - wait: the semaphore signalled by the rendering submission
	//
	// Returns:
	//   - error: ErrOutOfDate or ErrSuboptimal when the swapchain must be recreated, another error on failure
	Present(imageIndex uint32, wait Semaphore) error

	// CreateImage creates an image and its default view.
	CreateImage(desc ImageDescriptor) (Image, error)

	// WriteImage uploads tightly packed RGBA8 pixels covering the whole image.
	WriteImage(img Image, pixels []byte) error

	// CreateSampler creates a sampler.
	CreateSampler(desc SamplerDescriptor) (Sampler, error)

	// CreateBuffer creates a buffer that can be written from the host with WriteBuffer.
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// WriteBuffer copies data into buf at offset. The write is visible to every submission made after it returns.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// CreateRenderPass creates a render pass.
	CreateRenderPass(desc RenderPassDescriptor) (RenderPass, error)

	// CreateFramebuffer creates a framebuffer.
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)

	// CreateDescriptorSetLayout creates a descriptor set layout.
	CreateDescriptorSetLayout(desc DescriptorSetLayoutDescriptor) (DescriptorSetLayout, error)

	// CreateDescriptorSet allocates a descriptor set and writes its bindings.
	CreateDescriptorSet(desc DescriptorSetDescriptor) (DescriptorSet, error)

	// CreatePipeline creates a graphics pipeline.
	CreatePipeline(desc PipelineDescriptor) (Pipeline, error)

	// CreateSemaphore creates a semaphore.
	CreateSemaphore(label string) (Semaphore, error)

	// CreateCommandBuffer allocates a primary command buffer.
	CreateCommandBuffer(label string) (CommandBuffer, error)

	// Submit submits recorded command buffers to the graphics queue.
	//
	// Parameters:
	//   - info: the command buffers plus the semaphores to wait on and signal
	//
	// Returns:
	//   - error: ErrDeviceLost or another error if the submission failed
	Submit(info SubmitInfo) error

	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle() error

	// Release destroys the device and the swapchain. Objects created from the device must be released first.
	Release()
}

// CommandBuffer records GPU commands. Recording happens on one goroutine.
type CommandBuffer interface {
	Label() string

	// Reset discards previously recorded commands. It waits for the previous submission of this buffer to finish.
	Reset() error

	// Begin starts recording.
	Begin() error

	// End finishes recording.
	End() error

	// BeginRenderPass begins subpass 0 of a render pass instance.
	BeginRenderPass(info RenderPassBeginInfo)

	// NextSubpass advances to the next subpass of the current render pass.
	NextSubpass()

	// EndRenderPass ends the current render pass instance.
	EndRenderPass()

	// BindPipeline binds a graphics pipeline.
	BindPipeline(p Pipeline)

	// BindDescriptorSet binds set at the given set index of the bound pipeline's layout.
	BindDescriptorSet(index uint32, set DescriptorSet)

	// BindVertexBuffer binds buf to a vertex input binding.
	BindVertexBuffer(binding uint32, buf Buffer, offset uint64)

	// BindIndexBuffer binds a buffer of uint32 indices.
	BindIndexBuffer(buf Buffer, offset uint64)

	// PushConstants updates the push constant block of the bound pipeline.
	PushConstants(stages ShaderStage, offset uint32, data []byte)

	// DrawIndexed issues an indexed draw.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	// Draw issues a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// Release frees the command buffer.
	Release()
}
