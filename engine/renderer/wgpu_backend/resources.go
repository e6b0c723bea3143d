package wgpu_backend

import (
	"errors"
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type image struct {
	label   string
	extent  gpu.Extent
	format  gpu.Format
	samples uint32
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (i *image) Label() string      { return i.label }
func (i *image) Extent() gpu.Extent { return i.extent }
func (i *image) Format() gpu.Format { return i.format }
func (i *image) Samples() uint32    { return i.samples }

func (i *image) Release() {
	if i.view != nil {
		i.view.Release()
		i.view = nil
	}
	if i.texture != nil {
		i.texture.Release()
		i.texture = nil
	}
}

// swapchainImage is the stand-in for the current surface texture.
type swapchainImage struct {
	device *device
}

func (s *swapchainImage) Label() string      { return "swapchain" }
func (s *swapchainImage) Extent() gpu.Extent { return s.device.SwapchainExtent() }
func (s *swapchainImage) Format() gpu.Format { return s.device.format }
func (s *swapchainImage) Samples() uint32    { return 1 }
func (s *swapchainImage) Release()           {}

// textureView resolves an attachment to the view a render pass writes.
func textureView(img gpu.Image) *wgpu.TextureView {
	switch i := img.(type) {
	case *image:
		return i.view
	case *swapchainImage:
		return i.device.currentFrameView()
	default:
		return nil
	}
}

type buffer struct {
	label  string
	size   uint64
	buffer *wgpu.Buffer
}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Size() uint64  { return b.size }

func (b *buffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}

type sampler struct {
	sampler *wgpu.Sampler
}

func (s *sampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

// renderPass has no WebGPU object; command buffers split it into one pass per subpass.
type renderPass struct {
	desc gpu.RenderPassDescriptor
	uses attachmentUses
}

func (r *renderPass) Label() string                      { return r.desc.Label }
func (r *renderPass) Descriptor() gpu.RenderPassDescriptor { return r.desc }
func (r *renderPass) Release()                           {}

type framebuffer struct {
	attachments []gpu.Image
	extent      gpu.Extent
}

func (f *framebuffer) Extent() gpu.Extent { return f.extent }
func (f *framebuffer) Release()           {}

type descriptorSetLayout struct {
	bindings []gpu.LayoutBinding
	layout   *wgpu.BindGroupLayout
}

func (l *descriptorSetLayout) Release() {
	if l.layout != nil {
		l.layout.Release()
		l.layout = nil
	}
}

type descriptorSet struct {
	label string
	group *wgpu.BindGroup
}

func (s *descriptorSet) Label() string { return s.label }

func (s *descriptorSet) Release() {
	if s.group != nil {
		s.group.Release()
		s.group = nil
	}
}

type pipeline struct {
	label    string
	pipeline *wgpu.RenderPipeline
	// pushGroup is the bind group index of the emulated push constants, or -1.
	pushGroup int
}

func (p *pipeline) Label() string { return p.label }

func (p *pipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}

type semaphore struct{}

func (s *semaphore) Release() {}

func (d *device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	samples := max(desc.Samples, 1)
	texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Extent.Width,
			Height:             desc.Extent.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", desc.Label, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("failed to create view of %s: %w", desc.Label, err)
	}
	return &image{
		label:   desc.Label,
		extent:  desc.Extent,
		format:  desc.Format,
		samples: samples,
		texture: texture,
		view:    view,
	}, nil
}

func (d *device) WriteImage(img gpu.Image, pixels []byte) error {
	i, ok := img.(*image)
	if !ok {
		return fmt.Errorf("image %s cannot be written", img.Label())
	}
	if len(pixels) != int(i.extent.Width*i.extent.Height*4) {
		return fmt.Errorf("image %s needs %d bytes, got %d", i.label, i.extent.Width*i.extent.Height*4, len(pixels))
	}
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  i.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  i.extent.Width * 4,
			RowsPerImage: i.extent.Height,
		},
		&wgpu.Extent3D{
			Width:              i.extent.Width,
			Height:             i.extent.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (d *device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	address := addressMode(desc.AddressMode)
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %s: %w", desc.Label, err)
	}
	return &sampler{sampler: s}, nil
}

func (d *device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	// Queue writes must cover whole words.
	size := (desc.Size + 3) &^ 3
	b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", desc.Label, err)
	}
	return &buffer{label: desc.Label, size: desc.Size, buffer: b}, nil
}

func (d *device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok || b.buffer == nil {
		return fmt.Errorf("buffer %s cannot be written", buf.Label())
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %s of %d bytes", len(data), offset, b.label, b.size)
	}
	if len(data)%4 != 0 {
		padded := make([]byte, (len(data)+3)&^3)
		copy(padded, data)
		data = padded
	}
	d.queue.WriteBuffer(b.buffer, offset, data)
	return nil
}

func (d *device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	if len(desc.Subpasses) == 0 {
		return nil, fmt.Errorf("render pass %s has no subpasses", desc.Label)
	}
	return &renderPass{desc: desc, uses: newAttachmentUses(desc)}, nil
}

func (d *device) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	rp, ok := desc.RenderPass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("framebuffer %s: render pass was not created by this device", desc.Label)
	}
	if len(desc.Attachments) != len(rp.desc.Attachments) {
		return nil, fmt.Errorf("framebuffer %s has %d attachments, render pass %s needs %d",
			desc.Label, len(desc.Attachments), rp.desc.Label, len(rp.desc.Attachments))
	}
	return &framebuffer{attachments: append([]gpu.Image(nil), desc.Attachments...), extent: desc.Extent}, nil
}

func (d *device) CreateDescriptorSetLayout(desc gpu.DescriptorSetLayoutDescriptor) (gpu.DescriptorSetLayout, error) {
	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: layoutEntries(desc.Bindings),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group layout %s: %w", desc.Label, err)
	}
	return &descriptorSetLayout{bindings: append([]gpu.LayoutBinding(nil), desc.Bindings...), layout: layout}, nil
}

func (d *device) CreateDescriptorSet(desc gpu.DescriptorSetDescriptor) (gpu.DescriptorSet, error) {
	layout, ok := desc.Layout.(*descriptorSetLayout)
	if !ok {
		return nil, fmt.Errorf("descriptor set %s: layout was not created by this device", desc.Label)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Writes)+4)
	for _, w := range desc.Writes {
		switch {
		case w.Buffer != nil:
			b, ok := w.Buffer.(*buffer)
			if !ok {
				return nil, fmt.Errorf("descriptor set %s binding %d: foreign buffer", desc.Label, w.Binding)
			}
			entries = append(entries, wgpu.BindGroupEntry{
				Binding: w.Binding,
				Buffer:  b.buffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			})
		case w.Image != nil:
			view := textureView(w.Image)
			if view == nil {
				return nil, fmt.Errorf("descriptor set %s binding %d: image %s has no view", desc.Label, w.Binding, w.Image.Label())
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: w.Binding, TextureView: view})
			if w.Sampler != nil {
				s, ok := w.Sampler.(*sampler)
				if !ok {
					return nil, fmt.Errorf("descriptor set %s binding %d: foreign sampler", desc.Label, w.Binding)
				}
				entries = append(entries, wgpu.BindGroupEntry{Binding: w.Binding + samplerBindingOffset, Sampler: s.sampler})
			}
		default:
			return nil, fmt.Errorf("descriptor set %s binding %d: write has no resource", desc.Label, w.Binding)
		}
	}

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %s: %w", desc.Label, err)
	}
	return &descriptorSet{label: desc.Label, group: group}, nil
}

func (d *device) CreatePipeline(desc gpu.PipelineDescriptor) (gpu.Pipeline, error) {
	rp, ok := desc.RenderPass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: render pass was not created by this device", desc.Label)
	}
	if desc.Subpass < 0 || desc.Subpass >= len(rp.desc.Subpasses) {
		return nil, fmt.Errorf("pipeline %s: subpass %d out of range", desc.Label, desc.Subpass)
	}
	if desc.Vertex.Language != gpu.ShaderLanguageWGSL || desc.Fragment.Language != gpu.ShaderLanguageWGSL {
		return nil, errors.New("webgpu pipelines need WGSL shaders")
	}
	subpass := rp.desc.Subpasses[desc.Subpass]

	vs, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Vertex.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: string(desc.Vertex.Code)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %s: %w", desc.Vertex.Label, err)
	}
	defer vs.Release()
	fs, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Fragment.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: string(desc.Fragment.Code)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module %s: %w", desc.Fragment.Label, err)
	}
	defer fs.Release()

	groups := make([]*wgpu.BindGroupLayout, 0, len(desc.SetLayouts)+1)
	for i, l := range desc.SetLayouts {
		layout, ok := l.(*descriptorSetLayout)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: set layout %d was not created by this device", desc.Label, i)
		}
		groups = append(groups, layout.layout)
	}
	pushGroup := -1
	if desc.PushConstants.Size > 0 {
		if desc.PushConstants.Size > pushSlotSize {
			return nil, fmt.Errorf("pipeline %s: %d bytes of push constants exceed %d", desc.Label, desc.PushConstants.Size, pushSlotSize)
		}
		pushGroup = len(groups)
		groups = append(groups, d.pushLayout)
	}

	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout %s: %w", desc.Label, err)
	}
	defer layout.Release()

	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(desc.VertexBindings))
	for _, b := range desc.VertexBindings {
		attrs := make([]wgpu.VertexAttribute, 0, len(b.Attributes))
		for _, a := range b.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			})
		}
		step := wgpu.VertexStepModeVertex
		if b.PerInstance {
			step = wgpu.VertexStepModeInstance
		}
		vertexLayouts = append(vertexLayouts, wgpu.VertexBufferLayout{
			ArrayStride: uint64(b.Stride),
			StepMode:    step,
			Attributes:  attrs,
		})
	}

	colorCount := desc.ColorTargets
	if colorCount <= 0 || colorCount > len(subpass.ColorAttachments) {
		colorCount = len(subpass.ColorAttachments)
	}
	targets := make([]wgpu.ColorTargetState, 0, colorCount)
	samples := uint32(1)
	for _, index := range subpass.ColorAttachments[:colorCount] {
		a := rp.desc.Attachments[index]
		samples = max(samples, a.Samples)
		state := wgpu.ColorTargetState{
			Format:    d.attachmentFormat(a),
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if desc.Blend {
			state.Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{
					SrcFactor: wgpu.BlendFactorSrcAlpha,
					DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					Operation: wgpu.BlendOperationAdd,
				},
				Alpha: wgpu.BlendComponent{
					SrcFactor: wgpu.BlendFactorOne,
					DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					Operation: wgpu.BlendOperationAdd,
				},
			}
		}
		targets = append(targets, state)
	}

	var depthStencil *wgpu.DepthStencilState
	if subpass.DepthAttachment != gpu.AttachmentUnused {
		a := rp.desc.Attachments[subpass.DepthAttachment]
		samples = max(samples, a.Samples)
		compare := wgpu.CompareFunctionLess
		if !desc.DepthTest {
			compare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            textureFormat(a.Format),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode(desc.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline %s: %w", desc.Label, err)
	}
	return &pipeline{label: desc.Label, pipeline: created, pushGroup: pushGroup}, nil
}

// attachmentFormat returns the texture format of a render pass attachment. Presented attachments use the
// surface format.
func (d *device) attachmentFormat(a gpu.AttachmentDescription) wgpu.TextureFormat {
	if a.Present {
		return d.surfaceFormat
	}
	return textureFormat(a.Format)
}

func (d *device) CreateSemaphore(label string) (gpu.Semaphore, error) {
	return &semaphore{}, nil
}

func (d *device) CreateCommandBuffer(label string) (gpu.CommandBuffer, error) {
	return &commandBuffer{device: d, label: label}, nil
}
