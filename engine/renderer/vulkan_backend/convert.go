package vulkan_backend

import (
	"errors"
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

func format(f gpu.Format) vk.Format {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatRGBA8UnormSrgb:
		return vk.FormatR8g8b8a8Srgb
	case gpu.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatBGRA8UnormSrgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatRGBA16Float:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.FormatRGBA32Float:
		return vk.FormatR32g32b32a32Sfloat
	case gpu.FormatDepth32Float:
		return vk.FormatD32Sfloat
	default:
		return vk.FormatUndefined
	}
}

// surfaceFormat maps a surface format back to the engine format. Only 8-bit RGBA/BGRA surfaces are accepted.
func surfaceFormat(f vk.Format) (gpu.Format, bool) {
	switch f {
	case vk.FormatB8g8r8a8Unorm:
		return gpu.FormatBGRA8Unorm, true
	case vk.FormatB8g8r8a8Srgb:
		return gpu.FormatBGRA8UnormSrgb, true
	case vk.FormatR8g8b8a8Unorm:
		return gpu.FormatRGBA8Unorm, true
	case vk.FormatR8g8b8a8Srgb:
		return gpu.FormatRGBA8UnormSrgb, true
	default:
		return gpu.FormatUndefined, false
	}
}

func sampleCount(samples uint32) vk.SampleCountFlagBits {
	switch samples {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	default:
		return vk.SampleCount1Bit
	}
}

func imageUsage(u gpu.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&gpu.ImageUsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&gpu.ImageUsageDepthAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&gpu.ImageUsageInputAttachment != 0 {
		out |= vk.ImageUsageInputAttachmentBit
	}
	if u&gpu.ImageUsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&gpu.ImageUsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	if u&gpu.ImageUsageTransient != 0 {
		out |= vk.ImageUsageTransientAttachmentBit
	}
	return vk.ImageUsageFlags(out)
}

func bufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&gpu.BufferUsageVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.BufferUsageIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.BufferUsageUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&gpu.BufferUsageStorage != 0 {
		out |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		out |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(out)
}

func aspectMask(f gpu.Format) vk.ImageAspectFlags {
	if f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func shaderStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&gpu.ShaderStageVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&gpu.ShaderStageFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(out)
}

func descriptorType(t gpu.BindingType) vk.DescriptorType {
	switch t {
	case gpu.BindingStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.BindingCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	case gpu.BindingInputAttachment:
		return vk.DescriptorTypeInputAttachment
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

func filter(f gpu.FilterMode) vk.Filter {
	if f == gpu.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func addressMode(m gpu.AddressMode) vk.SamplerAddressMode {
	switch m {
	case gpu.AddressClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case gpu.AddressMirrorRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	default:
		return vk.SamplerAddressModeRepeat
	}
}

func cullMode(m gpu.CullMode) vk.CullModeFlags {
	switch m {
	case gpu.CullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case gpu.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

func vertexFormat(f gpu.VertexFormat) vk.Format {
	switch f {
	case gpu.VertexFloat32x2:
		return vk.FormatR32g32Sfloat
	case gpu.VertexFloat32x3:
		return vk.FormatR32g32b32Sfloat
	case gpu.VertexUint32x4:
		return vk.FormatR32g32b32a32Uint
	default:
		return vk.FormatR32g32b32a32Sfloat
	}
}

func loadOp(op gpu.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gpu.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case gpu.LoadOpDontCare:
		return vk.AttachmentLoadOpDontCare
	default:
		return vk.AttachmentLoadOpClear
	}
}

func storeOp(op gpu.StoreOp) vk.AttachmentStoreOp {
	if op == gpu.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func pipelineStage(s gpu.PipelineStage) vk.PipelineStageFlags {
	switch s {
	case gpu.PipelineStageColorAttachmentOutput:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case gpu.PipelineStageTransfer:
		return vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpu.PipelineStageAllCommands:
		return vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	default:
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}

func boolean(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// result turns a Vulkan result code into an error, mapping the swapchain and device-loss codes to the gpu sentinels.
func result(res vk.Result, what string) error {
	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate:
		return fmt.Errorf("%s: %w", what, gpu.ErrOutOfDate)
	case vk.Suboptimal:
		return fmt.Errorf("%s: %w", what, gpu.ErrSuboptimal)
	case vk.ErrorDeviceLost:
		return fmt.Errorf("%s: %w", what, gpu.ErrDeviceLost)
	default:
		return fmt.Errorf("%s: %w", what, vk.Error(res))
	}
}

// safeStrings null-terminates every string for the C API.
func safeStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, safeString(s))
	}
	return out
}

func safeString(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		return s
	}
	return s + "\x00"
}

// attachmentLayouts is the image layout every attachment has in each subpass, plus the final layout of
// the render pass. Attachments a subpass does not touch keep the layout of their previous use.
type attachmentLayouts struct {
	perSubpass [][]vk.ImageLayout
	final      []vk.ImageLayout
}

var errAttachmentRange = errors.New("attachment index out of range")

func newAttachmentLayouts(desc gpu.RenderPassDescriptor) (attachmentLayouts, error) {
	count := len(desc.Attachments)
	l := attachmentLayouts{
		perSubpass: make([][]vk.ImageLayout, len(desc.Subpasses)),
		final:      make([]vk.ImageLayout, count),
	}
	for i := range l.final {
		l.final[i] = vk.ImageLayoutUndefined
	}

	set := func(subpass, index int, layout vk.ImageLayout) error {
		if index == gpu.AttachmentUnused {
			return nil
		}
		if index < 0 || index >= count {
			return fmt.Errorf("subpass %d: %w: %d", subpass, errAttachmentRange, index)
		}
		l.perSubpass[subpass][index] = layout
		l.final[index] = layout
		return nil
	}

	for s, sp := range desc.Subpasses {
		l.perSubpass[s] = make([]vk.ImageLayout, count)
		for _, index := range sp.ColorAttachments {
			if err := set(s, index, vk.ImageLayoutColorAttachmentOptimal); err != nil {
				return attachmentLayouts{}, err
			}
		}
		for _, index := range sp.ResolveAttachments {
			if err := set(s, index, vk.ImageLayoutColorAttachmentOptimal); err != nil {
				return attachmentLayouts{}, err
			}
		}
		if err := set(s, sp.DepthAttachment, vk.ImageLayoutDepthStencilAttachmentOptimal); err != nil {
			return attachmentLayouts{}, err
		}
		for _, index := range sp.InputAttachments {
			layout := vk.ImageLayoutShaderReadOnlyOptimal
			if index >= 0 && index < count && desc.Attachments[index].Format.IsDepth() {
				layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
			}
			if err := set(s, index, layout); err != nil {
				return attachmentLayouts{}, err
			}
		}
	}

	for i, a := range desc.Attachments {
		if a.Present {
			l.final[i] = vk.ImageLayoutPresentSrc
		}
	}
	return l, nil
}

// reference builds the attachment reference for index in subpass, or an unused reference.
func (l attachmentLayouts) reference(subpass, index int) vk.AttachmentReference {
	if index == gpu.AttachmentUnused {
		return vk.AttachmentReference{Attachment: vk.AttachmentUnused, Layout: vk.ImageLayoutUndefined}
	}
	return vk.AttachmentReference{Attachment: uint32(index), Layout: l.perSubpass[subpass][index]}
}

// attachmentDescriptions converts the attachments of a render pass. Loaded attachments start in their final
// layout; everything else starts undefined.
func attachmentDescriptions(desc gpu.RenderPassDescriptor, layouts attachmentLayouts, swapFormat vk.Format) []vk.AttachmentDescription {
	out := make([]vk.AttachmentDescription, 0, len(desc.Attachments))
	for i, a := range desc.Attachments {
		f := format(a.Format)
		if a.Present {
			f = swapFormat
		}
		initial := vk.ImageLayoutUndefined
		if a.LoadOp == gpu.LoadOpLoad {
			initial = layouts.final[i]
		}
		out = append(out, vk.AttachmentDescription{
			Format:         f,
			Samples:        sampleCount(a.Samples),
			LoadOp:         loadOp(a.LoadOp),
			StoreOp:        storeOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initial,
			FinalLayout:    layouts.final[i],
		})
	}
	return out
}

// subpassDependencies orders each subpass after the previous one. Later subpasses read earlier outputs
// through input attachments, so the dependencies are by-region.
func subpassDependencies(count int) []vk.SubpassDependency {
	attachmentStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	attachmentWrites := vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit)

	deps := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  attachmentStages,
		DstStageMask:  attachmentStages,
		SrcAccessMask: 0,
		DstAccessMask: attachmentWrites,
	}}
	for s := 1; s < count; s++ {
		deps = append(deps, vk.SubpassDependency{
			SrcSubpass:      uint32(s - 1),
			DstSubpass:      uint32(s),
			SrcStageMask:    attachmentStages,
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:   attachmentWrites,
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		})
	}
	return deps
}
