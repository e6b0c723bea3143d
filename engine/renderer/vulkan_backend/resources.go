package vulkan_backend

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

type image struct {
	device  *device
	label   string
	extent  gpu.Extent
	format  gpu.Format
	samples uint32
	handle  vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	// owned is false for swapchain images, whose image handle belongs to the swapchain.
	owned bool
}

var _ gpu.Image = &image{}

func (i *image) Label() string      { return i.label }
func (i *image) Extent() gpu.Extent { return i.extent }
func (i *image) Format() gpu.Format { return i.format }
func (i *image) Samples() uint32    { return i.samples }

func (i *image) Release() {
	if i.view != vk.NullImageView {
		vk.DestroyImageView(i.device.device, i.view, nil)
		i.view = vk.NullImageView
	}
	if !i.owned {
		return
	}
	if i.handle != vk.NullImage {
		vk.DestroyImage(i.device.device, i.handle, nil)
		i.handle = vk.NullImage
	}
	if i.memory != vk.NullDeviceMemory {
		vk.FreeMemory(i.device.device, i.memory, nil)
		i.memory = vk.NullDeviceMemory
	}
}

type buffer struct {
	device *device
	label  string
	size   uint64
	handle vk.Buffer
	memory vk.DeviceMemory
	// mapped stays valid for the buffer's lifetime; the memory is host coherent.
	mapped unsafe.Pointer
}

var _ gpu.Buffer = &buffer{}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Size() uint64  { return b.size }

func (b *buffer) Release() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device.device, b.memory)
		b.mapped = nil
	}
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(b.device.device, b.handle, nil)
		b.handle = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.device.device, b.memory, nil)
		b.memory = vk.NullDeviceMemory
	}
}

type sampler struct {
	device *device
	handle vk.Sampler
}

func (s *sampler) Release() {
	if s.handle != nil {
		vk.DestroySampler(s.device.device, s.handle, nil)
		s.handle = nil
	}
}

type renderPass struct {
	device *device
	desc   gpu.RenderPassDescriptor
	handle vk.RenderPass
}

func (r *renderPass) Label() string                        { return r.desc.Label }
func (r *renderPass) Descriptor() gpu.RenderPassDescriptor { return r.desc }

func (r *renderPass) Release() {
	if r.handle != vk.NullRenderPass {
		vk.DestroyRenderPass(r.device.device, r.handle, nil)
		r.handle = vk.NullRenderPass
	}
}

type framebuffer struct {
	device *device
	extent gpu.Extent
	handle vk.Framebuffer
}

func (f *framebuffer) Extent() gpu.Extent { return f.extent }

func (f *framebuffer) Release() {
	if f.handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(f.device.device, f.handle, nil)
		f.handle = vk.NullFramebuffer
	}
}

type descriptorSetLayout struct {
	device   *device
	bindings []gpu.LayoutBinding
	handle   vk.DescriptorSetLayout
}

func (l *descriptorSetLayout) binding(index uint32) (gpu.LayoutBinding, bool) {
	for _, b := range l.bindings {
		if b.Binding == index {
			return b, true
		}
	}
	return gpu.LayoutBinding{}, false
}

func (l *descriptorSetLayout) Release() {
	if l.handle != nil {
		vk.DestroyDescriptorSetLayout(l.device.device, l.handle, nil)
		l.handle = nil
	}
}

// descriptorSet owns a pool sized for exactly one set of its layout, so releasing the set frees the pool.
type descriptorSet struct {
	device *device
	label  string
	pool   vk.DescriptorPool
	handle vk.DescriptorSet
}

func (s *descriptorSet) Label() string { return s.label }

func (s *descriptorSet) Release() {
	if s.pool != nil {
		vk.DestroyDescriptorPool(s.device.device, s.pool, nil)
		s.pool = nil
		s.handle = nil
	}
}

type pipeline struct {
	device *device
	label  string
	handle vk.Pipeline
	layout vk.PipelineLayout
}

func (p *pipeline) Label() string { return p.label }

func (p *pipeline) Release() {
	if p.handle != vk.NullPipeline {
		vk.DestroyPipeline(p.device.device, p.handle, nil)
		p.handle = vk.NullPipeline
	}
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(p.device.device, p.layout, nil)
		p.layout = vk.NullPipelineLayout
	}
}

type semaphore struct {
	device *device
	handle vk.Semaphore
}

func (s *semaphore) Release() {
	if s.handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.device.device, s.handle, nil)
		s.handle = vk.NullSemaphore
	}
}

// createView creates a 2D view over the whole image.
func (d *device) createView(handle vk.Image, f vk.Format, gpuFormat gpu.Format) (vk.ImageView, error) {
	info := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   f,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspectMask(gpuFormat),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := result(vk.CreateImageView(d.device, info, nil, &view), "failed to create image view"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// allocate allocates and binds memory with the given properties for the requirements.
func (d *device) allocate(reqs vk.MemoryRequirements, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	reqs.Deref()
	typeIndex, err := d.findMemoryType(reqs.MemoryTypeBits, properties)
	if err != nil {
		return vk.NullDeviceMemory, err
	}
	info := &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIndex,
	}
	var memory vk.DeviceMemory
	if err := result(vk.AllocateMemory(d.device, info, nil, &memory), "failed to allocate memory"); err != nil {
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}

func (d *device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("image %s has a zero extent", desc.Label)
	}
	samples := max(desc.Samples, 1)
	info := &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       sampleCount(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &image{
		device:  d,
		label:   desc.Label,
		extent:  desc.Extent,
		format:  desc.Format,
		samples: samples,
		owned:   true,
	}
	if err := result(vk.CreateImage(d.device, info, nil, &img.handle), "failed to create image "+desc.Label); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img.handle, &reqs)
	memory, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Release()
		return nil, fmt.Errorf("image %s: %w", desc.Label, err)
	}
	img.memory = memory
	if err := result(vk.BindImageMemory(d.device, img.handle, img.memory, 0), "failed to bind image memory"); err != nil {
		img.Release()
		return nil, err
	}

	view, err := d.createView(img.handle, info.Format, desc.Format)
	if err != nil {
		img.Release()
		return nil, fmt.Errorf("image %s: %w", desc.Label, err)
	}
	img.view = view
	return img, nil
}

// WriteImage copies pixels through a staging buffer and leaves the image in the shader read layout.
func (d *device) WriteImage(target gpu.Image, pixels []byte) error {
	img, ok := target.(*image)
	if !ok {
		return errors.New("image was not created by this device")
	}
	want := int(img.extent.Width) * int(img.extent.Height) * 4
	if len(pixels) != want {
		return fmt.Errorf("image %s: got %d bytes of pixels, want %d", img.label, len(pixels), want)
	}

	staging, err := d.newBuffer(img.label+" staging", uint64(len(pixels)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	defer staging.Release()
	vk.Memcopy(staging.mapped, pixels)

	return d.oneShot(func(cb vk.CommandBuffer) {
		transition(cb, img.handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: img.extent.Width, Height: img.extent.Height, Depth: 1},
		}
		vk.CmdCopyBufferToImage(cb, staging.handle, img.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
		transition(cb, img.handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

// transition records a layout change for a colour image used by uploads.
func transition(cb vk.CommandBuffer, handle vk.Image, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var src, dst vk.PipelineStageFlags
	if from == vk.ImageLayoutUndefined {
		src = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
	} else {
		src = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
	}
	vk.CmdPipelineBarrier(cb, src, dst, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// oneShot records and submits a command buffer and waits for the queue to drain.
func (d *device) oneShot(record func(cb vk.CommandBuffer)) error {
	allocInfo := &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := result(vk.AllocateCommandBuffers(d.device, allocInfo, buffers), "failed to allocate upload command buffer"); err != nil {
		return err
	}
	defer vk.FreeCommandBuffers(d.device, d.commandPool, 1, buffers)

	begin := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := result(vk.BeginCommandBuffer(buffers[0], begin), "failed to begin upload"); err != nil {
		return err
	}
	record(buffers[0])
	if err := result(vk.EndCommandBuffer(buffers[0]), "failed to end upload"); err != nil {
		return err
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    buffers,
	}
	if err := result(vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, vk.NullFence), "failed to submit upload"); err != nil {
		return err
	}
	return result(vk.QueueWaitIdle(d.queue), "failed to wait for upload")
}

func (d *device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	address := addressMode(desc.AddressMode)
	info := &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter(desc.MagFilter),
		MinFilter:               filter(desc.MinFilter),
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            address,
		AddressModeV:            address,
		AddressModeW:            address,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareOp:               vk.CompareOpAlways,
	}
	s := &sampler{device: d}
	if err := result(vk.CreateSampler(d.device, info, nil, &s.handle), "failed to create sampler "+desc.Label); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	return d.newBuffer(desc.Label, desc.Size, bufferUsage(desc.Usage))
}

// newBuffer creates a persistently mapped host-visible buffer. Vulkan rejects empty buffers, so the size is
// rounded up to at least four bytes.
func (d *device) newBuffer(label string, size uint64, usage vk.BufferUsageFlags) (*buffer, error) {
	size = max((size+3)&^3, 4)
	info := &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	b := &buffer{device: d, label: label, size: size}
	if err := result(vk.CreateBuffer(d.device, info, nil, &b.handle), "failed to create buffer "+label); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.handle, &reqs)
	memory, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("buffer %s: %w", label, err)
	}
	b.memory = memory
	if err := result(vk.BindBufferMemory(d.device, b.handle, b.memory, 0), "failed to bind buffer memory"); err != nil {
		b.Release()
		return nil, err
	}
	if err := result(vk.MapMemory(d.device, b.memory, 0, vk.DeviceSize(size), 0, &b.mapped), "failed to map buffer "+label); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (d *device) WriteBuffer(target gpu.Buffer, offset uint64, data []byte) error {
	b, ok := target.(*buffer)
	if !ok {
		return errors.New("buffer was not created by this device")
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("buffer %s: write of %d bytes at %d overflows %d", b.label, len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (d *device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	if len(desc.Subpasses) == 0 {
		return nil, fmt.Errorf("render pass %s has no subpasses", desc.Label)
	}
	layouts, err := newAttachmentLayouts(desc)
	if err != nil {
		return nil, fmt.Errorf("render pass %s: %w", desc.Label, err)
	}

	subpasses := make([]vk.SubpassDescription, 0, len(desc.Subpasses))
	for s, sp := range desc.Subpasses {
		sub := vk.SubpassDescription{PipelineBindPoint: vk.PipelineBindPointGraphics}
		if len(sp.ColorAttachments) > 0 {
			colors := make([]vk.AttachmentReference, 0, len(sp.ColorAttachments))
			for _, index := range sp.ColorAttachments {
				colors = append(colors, layouts.reference(s, index))
			}
			sub.ColorAttachmentCount = uint32(len(colors))
			sub.PColorAttachments = colors
		}
		if len(sp.ResolveAttachments) > 0 {
			resolves := make([]vk.AttachmentReference, 0, len(sp.ResolveAttachments))
			for _, index := range sp.ResolveAttachments {
				resolves = append(resolves, layouts.reference(s, index))
			}
			sub.PResolveAttachments = resolves
		}
		if sp.DepthAttachment != gpu.AttachmentUnused {
			depth := layouts.reference(s, sp.DepthAttachment)
			sub.PDepthStencilAttachment = &depth
		}
		if len(sp.InputAttachments) > 0 {
			inputs := make([]vk.AttachmentReference, 0, len(sp.InputAttachments))
			for _, index := range sp.InputAttachments {
				inputs = append(inputs, layouts.reference(s, index))
			}
			sub.InputAttachmentCount = uint32(len(inputs))
			sub.PInputAttachments = inputs
		}
		subpasses = append(subpasses, sub)
	}

	attachments := attachmentDescriptions(desc, layouts, d.swapFormat)
	dependencies := subpassDependencies(len(subpasses))
	info := &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	rp := &renderPass{device: d, desc: desc}
	if err := result(vk.CreateRenderPass(d.device, info, nil, &rp.handle), "failed to create render pass "+desc.Label); err != nil {
		return nil, err
	}
	return rp, nil
}

func (d *device) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	rp, ok := desc.RenderPass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("framebuffer %s: render pass was not created by this device", desc.Label)
	}
	if len(desc.Attachments) != len(rp.desc.Attachments) {
		return nil, fmt.Errorf("framebuffer %s: %d images for %d attachments", desc.Label, len(desc.Attachments), len(rp.desc.Attachments))
	}
	views := make([]vk.ImageView, 0, len(desc.Attachments))
	for i, a := range desc.Attachments {
		img, ok := a.(*image)
		if !ok {
			return nil, fmt.Errorf("framebuffer %s: attachment %d was not created by this device", desc.Label, i)
		}
		views = append(views, img.view)
	}
	info := &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Extent.Width,
		Height:          desc.Extent.Height,
		Layers:          1,
	}
	fb := &framebuffer{device: d, extent: desc.Extent}
	if err := result(vk.CreateFramebuffer(d.device, info, nil, &fb.handle), "failed to create framebuffer "+desc.Label); err != nil {
		return nil, err
	}
	return fb, nil
}

func (d *device) CreateDescriptorSetLayout(desc gpu.DescriptorSetLayoutDescriptor) (gpu.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(desc.Bindings))
	for _, b := range desc.Bindings {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Type),
			DescriptorCount: 1,
			StageFlags:      shaderStages(b.Stages),
		})
	}
	info := &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	l := &descriptorSetLayout{device: d, bindings: append([]gpu.LayoutBinding(nil), desc.Bindings...)}
	if err := result(vk.CreateDescriptorSetLayout(d.device, info, nil, &l.handle), "failed to create descriptor set layout "+desc.Label); err != nil {
		return nil, err
	}
	return l, nil
}

func (d *device) CreateDescriptorSet(desc gpu.DescriptorSetDescriptor) (gpu.DescriptorSet, error) {
	layout, ok := desc.Layout.(*descriptorSetLayout)
	if !ok {
		return nil, fmt.Errorf("descriptor set %s: layout was not created by this device", desc.Label)
	}

	counts := map[vk.DescriptorType]uint32{}
	for _, b := range layout.bindings {
		counts[descriptorType(b.Type)]++
	}
	sizes := make([]vk.DescriptorPoolSize, 0, len(counts))
	for t, n := range counts {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: n})
	}
	poolInfo := &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	set := &descriptorSet{device: d, label: desc.Label}
	if err := result(vk.CreateDescriptorPool(d.device, poolInfo, nil, &set.pool), "failed to create descriptor pool "+desc.Label); err != nil {
		return nil, err
	}

	allocInfo := &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     set.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.handle},
	}
	if err := result(vk.AllocateDescriptorSets(d.device, allocInfo, &set.handle), "failed to allocate descriptor set "+desc.Label); err != nil {
		set.Release()
		return nil, err
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(desc.Writes))
	for _, w := range desc.Writes {
		binding, ok := layout.binding(w.Binding)
		if !ok {
			set.Release()
			return nil, fmt.Errorf("descriptor set %s: binding %d is not in the layout", desc.Label, w.Binding)
		}
		write, err := descriptorWrite(set.handle, binding, w)
		if err != nil {
			set.Release()
			return nil, fmt.Errorf("descriptor set %s: %w", desc.Label, err)
		}
		writes = append(writes, write)
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
	}
	return set, nil
}

func descriptorWrite(set vk.DescriptorSet, binding gpu.LayoutBinding, w gpu.DescriptorWrite) (vk.WriteDescriptorSet, error) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      w.Binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType(binding.Type),
	}
	switch binding.Type {
	case gpu.BindingUniformBuffer, gpu.BindingStorageBuffer:
		buf, ok := w.Buffer.(*buffer)
		if !ok {
			return write, fmt.Errorf("binding %d needs a buffer from this device", w.Binding)
		}
		write.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: buf.handle,
			Range:  vk.DeviceSize(buf.size),
		}}
	case gpu.BindingCombinedImageSampler:
		img, ok := w.Image.(*image)
		if !ok {
			return write, fmt.Errorf("binding %d needs an image from this device", w.Binding)
		}
		smp, ok := w.Sampler.(*sampler)
		if !ok {
			return write, fmt.Errorf("binding %d needs a sampler from this device", w.Binding)
		}
		write.PImageInfo = []vk.DescriptorImageInfo{{
			Sampler:     smp.handle,
			ImageView:   img.view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}}
	case gpu.BindingInputAttachment:
		img, ok := w.Image.(*image)
		if !ok {
			return write, fmt.Errorf("binding %d needs an image from this device", w.Binding)
		}
		layout := vk.ImageLayoutShaderReadOnlyOptimal
		if img.format.IsDepth() {
			layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
		}
		write.PImageInfo = []vk.DescriptorImageInfo{{
			ImageView:   img.view,
			ImageLayout: layout,
		}}
	}
	return write, nil
}

func (d *device) CreatePipeline(desc gpu.PipelineDescriptor) (gpu.Pipeline, error) {
	rp, ok := desc.RenderPass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: render pass was not created by this device", desc.Label)
	}
	if desc.Subpass < 0 || desc.Subpass >= len(rp.desc.Subpasses) {
		return nil, fmt.Errorf("pipeline %s: subpass %d out of range", desc.Label, desc.Subpass)
	}
	if desc.Vertex.Language != gpu.ShaderLanguageSPIRV || desc.Fragment.Language != gpu.ShaderLanguageSPIRV {
		return nil, errors.New("vulkan pipelines need SPIR-V shaders")
	}
	subpass := rp.desc.Subpasses[desc.Subpass]

	vs, err := d.shaderModule(desc.Vertex)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(d.device, vs, nil)
	fs, err := d.shaderModule(desc.Fragment)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(d.device, fs, nil)

	setLayouts := make([]vk.DescriptorSetLayout, 0, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		layout, ok := l.(*descriptorSetLayout)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: set layout %d was not created by this device", desc.Label, i)
		}
		setLayouts = append(setLayouts, layout.handle)
	}
	layoutInfo := &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if desc.PushConstants.Size > 0 {
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: shaderStages(desc.PushConstants.Stages),
			Offset:     0,
			Size:       desc.PushConstants.Size,
		}}
	}
	p := &pipeline{device: d, label: desc.Label}
	if err := result(vk.CreatePipelineLayout(d.device, layoutInfo, nil, &p.layout), "failed to create pipeline layout "+desc.Label); err != nil {
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vs,
			PName:  safeString(entryPoint(desc.Vertex)),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fs,
			PName:  safeString(entryPoint(desc.Fragment)),
		},
	}

	var bindings []vk.VertexInputBindingDescription
	var attributes []vk.VertexInputAttributeDescription
	for _, b := range desc.VertexBindings {
		rate := vk.VertexInputRateVertex
		if b.PerInstance {
			rate = vk.VertexInputRateInstance
		}
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: rate,
		})
		for _, a := range b.Attributes {
			attributes = append(attributes, vk.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  b.Binding,
				Format:   vertexFormat(a.Format),
				Offset:   a.Offset,
			})
		}
	}
	vertexInput := &vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := &vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewport := &vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := &vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    cullMode(desc.CullMode),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	colorCount := desc.ColorTargets
	if colorCount <= 0 || colorCount > len(subpass.ColorAttachments) {
		colorCount = len(subpass.ColorAttachments)
	}
	samples := uint32(1)
	blends := make([]vk.PipelineColorBlendAttachmentState, 0, colorCount)
	for _, index := range subpass.ColorAttachments[:colorCount] {
		samples = max(samples, rp.desc.Attachments[index].Samples)
		blends = append(blends, vk.PipelineColorBlendAttachmentState{
			BlendEnable:         boolean(desc.Blend),
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		})
	}
	colorBlend := &vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blends)),
		PAttachments:    blends,
	}

	var depthStencil *vk.PipelineDepthStencilStateCreateInfo
	if subpass.DepthAttachment != gpu.AttachmentUnused {
		samples = max(samples, rp.desc.Attachments[subpass.DepthAttachment].Samples)
		depthStencil = &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  boolean(desc.DepthTest),
			DepthWriteEnable: boolean(desc.DepthWrite),
			DepthCompareOp:   vk.CompareOpLess,
		}
	}
	multisample := &vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCount(samples),
		MinSampleShading:     1.0,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := &vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   vertexInput,
		PInputAssemblyState: inputAssembly,
		PViewportState:      viewport,
		PRasterizationState: rasterizer,
		PMultisampleState:   multisample,
		PDepthStencilState:  depthStencil,
		PColorBlendState:    colorBlend,
		PDynamicState:       dynamic,
		Layout:              p.layout,
		RenderPass:          rp.handle,
		Subpass:             uint32(desc.Subpass),
		BasePipelineIndex:   -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := result(vk.CreateGraphicsPipelines(d.device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines), "failed to create pipeline "+desc.Label); err != nil {
		p.Release()
		return nil, err
	}
	p.handle = pipelines[0]
	return p, nil
}

func entryPoint(src gpu.ShaderSource) string {
	if src.EntryPoint == "" {
		return "main"
	}
	return src.EntryPoint
}

func (d *device) shaderModule(src gpu.ShaderSource) (vk.ShaderModule, error) {
	if len(src.Code) == 0 || len(src.Code)%4 != 0 {
		return vk.NullShaderModule, fmt.Errorf("shader %s: SPIR-V size %d is not a positive multiple of 4", src.Label, len(src.Code))
	}
	info := &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(src.Code)),
		PCode:    unsafe.Slice((*uint32)(unsafe.Pointer(&src.Code[0])), len(src.Code)/4),
	}
	var module vk.ShaderModule
	if err := result(vk.CreateShaderModule(d.device, info, nil, &module), "failed to create shader module "+src.Label); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

func (d *device) CreateSemaphore(label string) (gpu.Semaphore, error) {
	info := &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	s := &semaphore{device: d}
	if err := result(vk.CreateSemaphore(d.device, info, nil, &s.handle), "failed to create semaphore "+label); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *device) CreateCommandBuffer(label string) (gpu.CommandBuffer, error) {
	allocInfo := &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := result(vk.AllocateCommandBuffers(d.device, allocInfo, handles), "failed to allocate command buffer "+label); err != nil {
		return nil, err
	}
	fenceInfo := &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}
	var fence vk.Fence
	if err := result(vk.CreateFence(d.device, fenceInfo, nil, &fence), "failed to create fence for "+label); err != nil {
		vk.FreeCommandBuffers(d.device, d.commandPool, 1, handles)
		return nil, err
	}
	return &commandBuffer{device: d, label: label, handle: handles[0], fence: fence}, nil
}
