package gbuffer

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
)

// Attachment slots of the deferred render pass. Slots 7 to 11 hold the multisampled counterparts of
// slots 1 to 5 when the pass is multisampled.
const (
	AttachmentFinal = iota
	AttachmentAlbedo
	AttachmentMetallicRoughness
	AttachmentEmissive
	AttachmentNormal
	AttachmentPosition
	AttachmentDepth
	attachmentMSAABase
)

// ColorCount is the number of G-buffer colour targets written by the geometry subpass.
const ColorCount = 5

// ColorFormats are the formats of the G-buffer colour targets, in attachment order.
var ColorFormats = [ColorCount]gpu.Format{
	gpu.FormatRGBA8Unorm,
	gpu.FormatRGBA8Unorm,
	gpu.FormatRGBA16Float,
	gpu.FormatRGBA16Float,
	gpu.FormatRGBA16Float,
}

// DepthFormat is the format of the depth attachment.
const DepthFormat = gpu.FormatDepth32Float

// Descriptor set indices of the geometry and lighting pipelines.
const (
	SetCamera   = 0
	SetSkin     = 1
	SetMaterial = 2

	SetInputs = 0
	SetLights = 1
)

// ModelPushConstantSize is the size of the geometry push constant block, one mat4 model matrix.
const ModelPushConstantSize = 64

// CameraBindings returns the bindings of the camera set: one uniform holding view, projection and position.
func CameraBindings() []gpu.LayoutBinding {
	return []gpu.LayoutBinding{{
		Binding: 0,
		Type:    gpu.BindingUniformBuffer,
		Stages:  gpu.ShaderStageVertex | gpu.ShaderStageFragment,
	}}
}

// SkinBindings returns the bindings of the skin set: one storage buffer of joint matrices.
func SkinBindings() []gpu.LayoutBinding {
	return []gpu.LayoutBinding{{
		Binding: 0,
		Type:    gpu.BindingStorageBuffer,
		Stages:  gpu.ShaderStageVertex,
	}}
}

// MaterialBindings returns the bindings of the per-primitive material set.
func MaterialBindings() []gpu.LayoutBinding {
	return material.LayoutBindings()
}

// LightsBindings returns the bindings of the lighting uniform set.
func LightsBindings() []gpu.LayoutBinding {
	return []gpu.LayoutBinding{{
		Binding: 0,
		Type:    gpu.BindingUniformBuffer,
		Stages:  gpu.ShaderStageFragment,
	}}
}

// InputBindings returns the bindings of the lighting subpass input set: the five resolved colour targets
// at bindings 0 to 4 and depth at binding 5. Depth stays multisampled when samples is above 1.
//
// Parameters:
//   - samples: the sample count of the geometry subpass
//
// Returns:
//   - []gpu.LayoutBinding: the input attachment bindings
func InputBindings(samples uint32) []gpu.LayoutBinding {
	bindings := make([]gpu.LayoutBinding, 0, ColorCount+1)
	for i := 0; i < ColorCount; i++ {
		bindings = append(bindings, gpu.LayoutBinding{
			Binding: uint32(i),
			Type:    gpu.BindingInputAttachment,
			Stages:  gpu.ShaderStageFragment,
		})
	}
	return append(bindings, gpu.LayoutBinding{
		Binding:      ColorCount,
		Type:         gpu.BindingInputAttachment,
		Stages:       gpu.ShaderStageFragment,
		Depth:        true,
		Multisampled: samples > 1,
	})
}

// RenderPassDescriptor builds the two-subpass deferred render pass. Subpass 0 writes the G-buffer and
// depth, resolving multisampled targets at its end. Subpass 1 reads them as input attachments and writes
// the swapchain image.
//
// Parameters:
//   - colorFormat: the swapchain format
//   - samples: the sample count of the geometry subpass
//
// Returns:
//   - gpu.RenderPassDescriptor: the render pass description
func RenderPassDescriptor(colorFormat gpu.Format, samples uint32) gpu.RenderPassDescriptor {
	msaa := samples > 1
	attachments := []gpu.AttachmentDescription{{
		Format:  colorFormat,
		Samples: 1,
		LoadOp:  gpu.LoadOpClear,
		StoreOp: gpu.StoreOpStore,
		Present: true,
	}}
	for _, format := range ColorFormats {
		load := gpu.LoadOpClear
		if msaa {
			load = gpu.LoadOpDontCare
		}
		attachments = append(attachments, gpu.AttachmentDescription{
			Format:  format,
			Samples: 1,
			LoadOp:  load,
			StoreOp: gpu.StoreOpStore,
		})
	}
	attachments = append(attachments, gpu.AttachmentDescription{
		Format:  DepthFormat,
		Samples: samples,
		LoadOp:  gpu.LoadOpClear,
		StoreOp: gpu.StoreOpStore,
	})

	resolved := []int{AttachmentAlbedo, AttachmentMetallicRoughness, AttachmentEmissive, AttachmentNormal, AttachmentPosition}
	geometry := gpu.SubpassDescription{
		ColorAttachments: resolved,
		DepthAttachment:  AttachmentDepth,
	}
	if msaa {
		geometry.ColorAttachments = nil
		for i, format := range ColorFormats {
			attachments = append(attachments, gpu.AttachmentDescription{
				Format:  format,
				Samples: samples,
				LoadOp:  gpu.LoadOpClear,
				StoreOp: gpu.StoreOpDontCare,
			})
			geometry.ColorAttachments = append(geometry.ColorAttachments, attachmentMSAABase+i)
		}
		geometry.ResolveAttachments = resolved
	}

	lighting := gpu.SubpassDescription{
		ColorAttachments: []int{AttachmentFinal},
		DepthAttachment:  gpu.AttachmentUnused,
		InputAttachments: append(append([]int(nil), resolved...), AttachmentDepth),
	}

	return gpu.RenderPassDescriptor{
		Label:       "deferred",
		Attachments: attachments,
		Subpasses:   []gpu.SubpassDescription{geometry, lighting},
	}
}
