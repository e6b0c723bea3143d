package wgpu_backend

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// samplerBindingOffset is added to the binding of a combined image-sampler to place its sampler.
// WebGPU has no combined image-sampler binding, so the texture keeps the binding and the sampler moves.
const samplerBindingOffset = 16

func textureFormat(f gpu.Format) wgpu.TextureFormat {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case gpu.FormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case gpu.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case gpu.FormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case gpu.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case gpu.FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case gpu.FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatUndefined
	}
}

// surfaceFormat maps a surface format back to the engine's formats. ok is false for formats the
// renderer cannot target.
func surfaceFormat(f wgpu.TextureFormat) (gpu.Format, bool) {
	switch f {
	case wgpu.TextureFormatBGRA8Unorm:
		return gpu.FormatBGRA8Unorm, true
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return gpu.FormatBGRA8UnormSrgb, true
	case wgpu.TextureFormatRGBA8Unorm:
		return gpu.FormatRGBA8Unorm, true
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return gpu.FormatRGBA8UnormSrgb, true
	default:
		return gpu.FormatUndefined, false
	}
}

func textureUsage(u gpu.ImageUsage) wgpu.TextureUsage {
	var usage wgpu.TextureUsage
	if u&(gpu.ImageUsageColorAttachment|gpu.ImageUsageDepthAttachment) != 0 {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if u&(gpu.ImageUsageInputAttachment|gpu.ImageUsageSampled) != 0 {
		usage |= wgpu.TextureUsageTextureBinding
	}
	if u&gpu.ImageUsageTransferDst != 0 {
		usage |= wgpu.TextureUsageCopyDst
	}
	return usage
}

func bufferUsage(u gpu.BufferUsage) wgpu.BufferUsage {
	// Every buffer is written through the queue.
	usage := wgpu.BufferUsageCopyDst
	if u&gpu.BufferUsageVertex != 0 {
		usage |= wgpu.BufferUsageVertex
	}
	if u&gpu.BufferUsageIndex != 0 {
		usage |= wgpu.BufferUsageIndex
	}
	if u&gpu.BufferUsageUniform != 0 {
		usage |= wgpu.BufferUsageUniform
	}
	if u&gpu.BufferUsageStorage != 0 {
		usage |= wgpu.BufferUsageStorage
	}
	return usage
}

func shaderStages(s gpu.ShaderStage) wgpu.ShaderStage {
	stages := wgpu.ShaderStageNone
	if s&gpu.ShaderStageVertex != 0 {
		stages |= wgpu.ShaderStageVertex
	}
	if s&gpu.ShaderStageFragment != 0 {
		stages |= wgpu.ShaderStageFragment
	}
	return stages
}

func filterMode(f gpu.FilterMode) wgpu.FilterMode {
	if f == gpu.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func addressMode(a gpu.AddressMode) wgpu.AddressMode {
	switch a {
	case gpu.AddressClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gpu.AddressMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}

func cullMode(c gpu.CullMode) wgpu.CullMode {
	switch c {
	case gpu.CullModeNone:
		return wgpu.CullModeNone
	case gpu.CullModeFront:
		return wgpu.CullModeFront
	default:
		return wgpu.CullModeBack
	}
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case gpu.VertexUint32x4:
		return wgpu.VertexFormatUint32x4
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

func loadOp(op gpu.LoadOp) wgpu.LoadOp {
	if op == gpu.LoadOpLoad {
		return wgpu.LoadOpLoad
	}
	// Undefined contents may as well be cleared.
	return wgpu.LoadOpClear
}

func storeOp(op gpu.StoreOp) wgpu.StoreOp {
	if op == gpu.StoreOpDontCare {
		return wgpu.StoreOpDiscard
	}
	return wgpu.StoreOpStore
}

// layoutEntries converts descriptor set bindings to bind group layout entries. A combined image-sampler
// becomes a texture at its binding plus a sampler at binding+samplerBindingOffset, and an input
// attachment becomes a texture read with textureLoad.
//
// Parameters:
//   - bindings: the descriptor set bindings
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: the bind group layout entries
func layoutEntries(bindings []gpu.LayoutBinding) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings)+4)
	for _, b := range bindings {
		entry := wgpu.BindGroupLayoutEntry{
			Binding:    b.Binding,
			Visibility: shaderStages(b.Stages),
		}
		switch b.Type {
		case gpu.BindingUniformBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case gpu.BindingStorageBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case gpu.BindingCombinedImageSampler:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
			sampler := wgpu.BindGroupLayoutEntry{
				Binding:    b.Binding + samplerBindingOffset,
				Visibility: shaderStages(b.Stages),
			}
			sampler.Sampler.Type = wgpu.SamplerBindingTypeFiltering
			entries = append(entries, sampler)
		case gpu.BindingInputAttachment:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			if b.Depth {
				entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
			}
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
			entry.Texture.Multisampled = b.Multisampled
		}
		entries = append(entries, entry)
	}
	return entries
}

// attachmentUses records, for every attachment of a render pass, the first and last subpass touching it.
type attachmentUses struct {
	first []int
	last  []int
}

func newAttachmentUses(desc gpu.RenderPassDescriptor) attachmentUses {
	u := attachmentUses{first: make([]int, len(desc.Attachments)), last: make([]int, len(desc.Attachments))}
	for i := range u.first {
		u.first[i], u.last[i] = -1, -1
	}
	mark := func(index, subpass int) {
		if index < 0 || index >= len(u.first) {
			return
		}
		if u.first[index] < 0 {
			u.first[index] = subpass
		}
		u.last[index] = subpass
	}
	for s, sp := range desc.Subpasses {
		for _, i := range sp.ColorAttachments {
			mark(i, s)
		}
		for _, i := range sp.ResolveAttachments {
			mark(i, s)
		}
		for _, i := range sp.InputAttachments {
			mark(i, s)
		}
		mark(sp.DepthAttachment, s)
	}
	return u
}

// ops returns the load and store operations of an attachment within one emulated subpass. Only the
// first subpass applies the attachment's load op, and the contents are kept while a later subpass
// still reads them.
func (u attachmentUses) ops(desc gpu.RenderPassDescriptor, index, subpass int) (wgpu.LoadOp, wgpu.StoreOp) {
	a := desc.Attachments[index]
	load := wgpu.LoadOpLoad
	if u.first[index] == subpass {
		load = loadOp(a.LoadOp)
	}
	store := wgpu.StoreOpStore
	if u.last[index] == subpass {
		store = storeOp(a.StoreOp)
	}
	return load, store
}
