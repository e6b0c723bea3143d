package wgpu_backend

import (
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gbuffer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestLayoutEntriesSplitCombinedImageSamplers(t *testing.T) {
	entries := layoutEntries(material.LayoutBindings())

	byBinding := make(map[uint32]wgpu.BindGroupLayoutEntry, len(entries))
	for _, e := range entries {
		if _, dup := byBinding[e.Binding]; dup {
			t.Fatalf("binding %d declared twice", e.Binding)
		}
		byBinding[e.Binding] = e
	}
	if byBinding[0].Buffer.Type != wgpu.BufferBindingTypeUniform {
		t.Errorf("binding 0 buffer type = %v, want uniform", byBinding[0].Buffer.Type)
	}
	for b := uint32(1); b <= 5; b++ {
		if byBinding[b].Texture.SampleType != wgpu.TextureSampleTypeFloat {
			t.Errorf("binding %d is not a float texture", b)
		}
		s, ok := byBinding[b+samplerBindingOffset]
		if !ok || s.Sampler.Type != wgpu.SamplerBindingTypeFiltering {
			t.Errorf("binding %d has no filtering sampler at %d", b, b+samplerBindingOffset)
		}
	}
}

func TestLayoutEntriesInputAttachments(t *testing.T) {
	for _, samples := range []uint32{1, 4} {
		entries := layoutEntries(gbuffer.InputBindings(samples))
		if len(entries) != gbuffer.ColorCount+1 {
			t.Fatalf("samples %d: %d entries", samples, len(entries))
		}
		depth := entries[gbuffer.ColorCount]
		if depth.Texture.SampleType != wgpu.TextureSampleTypeDepth {
			t.Errorf("samples %d: depth input sample type = %v", samples, depth.Texture.SampleType)
		}
		if depth.Texture.Multisampled != (samples > 1) {
			t.Errorf("samples %d: depth multisampled = %v", samples, depth.Texture.Multisampled)
		}
		if entries[0].Texture.Multisampled {
			t.Errorf("samples %d: resolved colour input marked multisampled", samples)
		}
	}
}

func TestAttachmentOpsAcrossSubpasses(t *testing.T) {
	desc := gbuffer.RenderPassDescriptor(gpu.FormatBGRA8Unorm, 1)
	uses := newAttachmentUses(desc)

	load, store := uses.ops(desc, gbuffer.AttachmentAlbedo, 0)
	if load != wgpu.LoadOpClear || store != wgpu.StoreOpStore {
		t.Errorf("albedo in geometry subpass = %v/%v, want clear/store", load, store)
	}
	load, store = uses.ops(desc, gbuffer.AttachmentDepth, 0)
	if load != wgpu.LoadOpClear || store != wgpu.StoreOpStore {
		t.Errorf("depth in geometry subpass = %v/%v, want clear/store", load, store)
	}
	load, _ = uses.ops(desc, gbuffer.AttachmentFinal, 1)
	if load != wgpu.LoadOpClear {
		t.Errorf("final image first written in lighting subpass should clear, got %v", load)
	}
}

func TestAttachmentOpsDiscardMultisampledTargets(t *testing.T) {
	desc := gbuffer.RenderPassDescriptor(gpu.FormatBGRA8Unorm, 4)
	uses := newAttachmentUses(desc)
	msaa := desc.Subpasses[0].ColorAttachments[0]
	if _, store := uses.ops(desc, msaa, 0); store != wgpu.StoreOpDiscard {
		t.Errorf("multisampled albedo store = %v, want discard", store)
	}
}

func TestUsageConversion(t *testing.T) {
	tex := textureUsage(gpu.ImageUsageColorAttachment | gpu.ImageUsageInputAttachment)
	if tex&wgpu.TextureUsageRenderAttachment == 0 || tex&wgpu.TextureUsageTextureBinding == 0 {
		t.Errorf("texture usage = %v", tex)
	}
	buf := bufferUsage(gpu.BufferUsageVertex)
	if buf&wgpu.BufferUsageVertex == 0 || buf&wgpu.BufferUsageCopyDst == 0 {
		t.Errorf("buffer usage = %v", buf)
	}
	if f, ok := surfaceFormat(wgpu.TextureFormatBGRA8UnormSrgb); !ok || f != gpu.FormatBGRA8UnormSrgb {
		t.Errorf("surface format = %v, %v", f, ok)
	}
	if _, ok := surfaceFormat(wgpu.TextureFormatRGBA16Float); ok {
		t.Error("rgba16float accepted as a surface format")
	}
}
