package vulkan_backend

import (
	"errors"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gbuffer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

func TestAttachmentLayoutsDeferredPass(t *testing.T) {
	for _, samples := range []uint32{1, 4} {
		desc := gbuffer.RenderPassDescriptor(gpu.FormatBGRA8Unorm, samples)
		l, err := newAttachmentLayouts(desc)
		if err != nil {
			t.Fatalf("samples %d: %v", samples, err)
		}

		if got := l.final[gbuffer.AttachmentFinal]; got != vk.ImageLayoutPresentSrc {
			t.Errorf("samples %d: final attachment ends in %v, want present", samples, got)
		}
		if got := l.perSubpass[0][gbuffer.AttachmentDepth]; got != vk.ImageLayoutDepthStencilAttachmentOptimal {
			t.Errorf("samples %d: depth in geometry subpass = %v", samples, got)
		}
		if got := l.perSubpass[1][gbuffer.AttachmentDepth]; got != vk.ImageLayoutDepthStencilReadOnlyOptimal {
			t.Errorf("samples %d: depth in lighting subpass = %v", samples, got)
		}
		if got := l.perSubpass[0][gbuffer.AttachmentAlbedo]; got != vk.ImageLayoutColorAttachmentOptimal {
			t.Errorf("samples %d: albedo in geometry subpass = %v", samples, got)
		}
		if got := l.perSubpass[1][gbuffer.AttachmentAlbedo]; got != vk.ImageLayoutShaderReadOnlyOptimal {
			t.Errorf("samples %d: albedo in lighting subpass = %v", samples, got)
		}
		if got := l.final[gbuffer.AttachmentPosition]; got != vk.ImageLayoutShaderReadOnlyOptimal {
			t.Errorf("samples %d: position ends in %v", samples, got)
		}
	}
}

func TestAttachmentLayoutsRejectsBadIndex(t *testing.T) {
	desc := gpu.RenderPassDescriptor{
		Attachments: []gpu.AttachmentDescription{{Format: gpu.FormatRGBA8Unorm, Samples: 1}},
		Subpasses: []gpu.SubpassDescription{{
			ColorAttachments: []int{3},
			DepthAttachment:  gpu.AttachmentUnused,
		}},
	}
	if _, err := newAttachmentLayouts(desc); !errors.Is(err, errAttachmentRange) {
		t.Errorf("err = %v, want errAttachmentRange", err)
	}
}

func TestReferenceUnused(t *testing.T) {
	desc := gbuffer.RenderPassDescriptor(gpu.FormatBGRA8Unorm, 1)
	l, err := newAttachmentLayouts(desc)
	if err != nil {
		t.Fatal(err)
	}
	ref := l.reference(1, gpu.AttachmentUnused)
	if ref.Attachment != vk.AttachmentUnused || ref.Layout != vk.ImageLayoutUndefined {
		t.Errorf("unused reference = %+v", ref)
	}
	ref = l.reference(1, gbuffer.AttachmentNormal)
	if ref.Attachment != uint32(gbuffer.AttachmentNormal) || ref.Layout != vk.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("normal reference = %+v", ref)
	}
}

func TestAttachmentDescriptionsUseSwapchainFormat(t *testing.T) {
	desc := gbuffer.RenderPassDescriptor(gpu.FormatBGRA8Unorm, 4)
	l, err := newAttachmentLayouts(desc)
	if err != nil {
		t.Fatal(err)
	}
	out := attachmentDescriptions(desc, l, vk.FormatB8g8r8a8Srgb)
	if len(out) != len(desc.Attachments) {
		t.Fatalf("%d descriptions for %d attachments", len(out), len(desc.Attachments))
	}
	if out[gbuffer.AttachmentFinal].Format != vk.FormatB8g8r8a8Srgb {
		t.Errorf("final format = %v", out[gbuffer.AttachmentFinal].Format)
	}
	if out[gbuffer.AttachmentDepth].Samples != vk.SampleCount4Bit {
		t.Errorf("depth samples = %v", out[gbuffer.AttachmentDepth].Samples)
	}
	for i, d := range out {
		if d.InitialLayout != vk.ImageLayoutUndefined {
			t.Errorf("attachment %d starts in %v", i, d.InitialLayout)
		}
	}
}

func TestSubpassDependencies(t *testing.T) {
	deps := subpassDependencies(2)
	if len(deps) != 2 {
		t.Fatalf("%d dependencies, want 2", len(deps))
	}
	if deps[0].SrcSubpass != vk.SubpassExternal || deps[0].DstSubpass != 0 {
		t.Errorf("first dependency %d -> %d", deps[0].SrcSubpass, deps[0].DstSubpass)
	}
	second := deps[1]
	if second.SrcSubpass != 0 || second.DstSubpass != 1 {
		t.Errorf("second dependency %d -> %d", second.SrcSubpass, second.DstSubpass)
	}
	if second.DstAccessMask&vk.AccessFlags(vk.AccessInputAttachmentReadBit) == 0 {
		t.Error("lighting subpass does not wait for input attachment reads")
	}
	if second.DependencyFlags&vk.DependencyFlags(vk.DependencyByRegionBit) == 0 {
		t.Error("subpass dependency is not by-region")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, f := range []gpu.Format{gpu.FormatRGBA8Unorm, gpu.FormatRGBA8UnormSrgb, gpu.FormatBGRA8Unorm, gpu.FormatBGRA8UnormSrgb} {
		back, ok := surfaceFormat(format(f))
		if !ok || back != f {
			t.Errorf("format %v came back as %v (ok %v)", f, back, ok)
		}
	}
	if _, ok := surfaceFormat(vk.FormatR16g16b16a16Sfloat); ok {
		t.Error("half-float surface accepted")
	}
	if format(gpu.FormatDepth32Float) != vk.FormatD32Sfloat {
		t.Error("depth format mismatch")
	}
}

func TestSampleCount(t *testing.T) {
	cases := map[uint32]vk.SampleCountFlagBits{
		0:  vk.SampleCount1Bit,
		1:  vk.SampleCount1Bit,
		2:  vk.SampleCount2Bit,
		4:  vk.SampleCount4Bit,
		8:  vk.SampleCount8Bit,
		16: vk.SampleCount16Bit,
		3:  vk.SampleCount1Bit,
	}
	for in, want := range cases {
		if got := sampleCount(in); got != want {
			t.Errorf("sampleCount(%d) = %v, want %v", in, got, want)
		}
	}
}

func TestResultMapsSwapchainErrors(t *testing.T) {
	if err := result(vk.Success, "ok"); err != nil {
		t.Errorf("success = %v", err)
	}
	cases := map[vk.Result]error{
		vk.ErrorOutOfDate:  gpu.ErrOutOfDate,
		vk.Suboptimal:      gpu.ErrSuboptimal,
		vk.ErrorDeviceLost: gpu.ErrDeviceLost,
	}
	for res, want := range cases {
		if err := result(res, "acquire"); !errors.Is(err, want) {
			t.Errorf("result(%v) = %v, want %v", res, err, want)
		}
	}
	err := result(vk.ErrorOutOfHostMemory, "alloc")
	if err == nil || errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("out of memory = %v", err)
	}
}

func TestSafeString(t *testing.T) {
	if got := safeString("main"); got != "main\x00" {
		t.Errorf("safeString = %q", got)
	}
	if got := safeString("main\x00"); got != "main\x00" {
		t.Errorf("already terminated string changed to %q", got)
	}
	if got := safeStrings([]string{"a", "b\x00"}); got[0] != "a\x00" || got[1] != "b\x00" {
		t.Errorf("safeStrings = %q", got)
	}
}
