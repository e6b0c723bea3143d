package gbuffer

import (
	"errors"
	"strings"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu/gputest"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/pipeline"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
)

func newGBuffer(t *testing.T, dev *gputest.Device, samples uint32) GBuffer {
	t.Helper()
	lib, err := shader.DefaultLibrary("")
	if err != nil {
		t.Fatalf("DefaultLibrary: %v", err)
	}
	g, err := New(dev, Config{Samples: samples, Shaders: lib, ClearColor: [4]float32{0.1, 0.2, 0.3, 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNewBuildsPassPipelinesAndFramebuffers(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 800, Height: 600}, 3)
	g := newGBuffer(t, dev, 1)
	defer g.Release()

	if got := g.FramebufferCount(); got != 3 {
		t.Errorf("framebuffers = %d, want 3", got)
	}
	for _, key := range []string{pipeline.KeyGeometryCullBack, pipeline.KeyGeometryCullNone, pipeline.KeyGeometryInstanced, pipeline.KeyLighting} {
		p := g.Pipeline(key)
		if p == nil || p.GPU() == nil {
			t.Fatalf("pipeline %s was not created", key)
		}
	}
	if got := g.Pipeline(pipeline.KeyGeometryCullNone).CullMode(); got != gpu.CullModeNone {
		t.Errorf("cull-none pipeline cull mode = %v", got)
	}
	if got := len(g.Pipeline(pipeline.KeyGeometryInstanced).VertexBindings()); got != 2 {
		t.Errorf("instanced pipeline vertex bindings = %d, want 2", got)
	}
	instance := g.Pipeline(pipeline.KeyGeometryInstanced).VertexBindings()[1]
	if !instance.PerInstance || instance.Binding != 1 || instance.Stride != 112 {
		t.Errorf("instance binding = %+v", instance)
	}
	lighting := g.Pipeline(pipeline.KeyLighting)
	if lighting.Subpass() != 1 || lighting.DepthTestEnabled() {
		t.Errorf("lighting pipeline subpass %d depth test %v", lighting.Subpass(), lighting.DepthTestEnabled())
	}

	fb := g.Framebuffer(2).(*gputest.Framebuffer)
	atts := fb.Attachments()
	if len(atts) != 7 {
		t.Fatalf("framebuffer attachments = %d, want 7", len(atts))
	}
	if atts[AttachmentFinal] != dev.SwapchainImage(2) {
		t.Errorf("final attachment is not the swapchain image")
	}
	if atts[AttachmentAlbedo] != g.Attachment(AttachmentAlbedo) {
		t.Errorf("G-buffer images are not shared between framebuffers")
	}
	if g.InputSet() == nil {
		t.Error("input set was not created")
	}
}

func TestRenderPassLayout(t *testing.T) {
	single := RenderPassDescriptor(gpu.FormatBGRA8Unorm, 1)
	if len(single.Attachments) != 7 || len(single.Subpasses) != 2 {
		t.Fatalf("single-sample pass has %d attachments and %d subpasses", len(single.Attachments), len(single.Subpasses))
	}
	if got := single.Subpasses[0].ColorAttachments; len(got) != 5 || got[0] != AttachmentAlbedo {
		t.Errorf("geometry colours = %v", got)
	}
	if len(single.Subpasses[0].ResolveAttachments) != 0 {
		t.Errorf("single-sample pass resolves %v", single.Subpasses[0].ResolveAttachments)
	}
	if !single.Attachments[AttachmentFinal].Present {
		t.Error("final attachment is not presented")
	}

	msaa := RenderPassDescriptor(gpu.FormatBGRA8Unorm, 4)
	if len(msaa.Attachments) != 12 {
		t.Fatalf("msaa pass attachments = %d, want 12", len(msaa.Attachments))
	}
	geometry := msaa.Subpasses[0]
	for i, c := range geometry.ColorAttachments {
		if c != attachmentMSAABase+i || msaa.Attachments[c].Samples != 4 {
			t.Errorf("msaa colour %d = slot %d", i, c)
		}
		if geometry.ResolveAttachments[i] != AttachmentAlbedo+i {
			t.Errorf("colour %d resolves to %d", i, geometry.ResolveAttachments[i])
		}
	}
	if msaa.Attachments[AttachmentDepth].Samples != 4 {
		t.Error("depth is not multisampled")
	}
	lighting := msaa.Subpasses[1]
	if len(lighting.InputAttachments) != 6 || lighting.InputAttachments[5] != AttachmentDepth {
		t.Errorf("lighting inputs = %v", lighting.InputAttachments)
	}
	if lighting.DepthAttachment != gpu.AttachmentUnused {
		t.Errorf("lighting depth = %d", lighting.DepthAttachment)
	}

	if !InputBindings(4)[5].Multisampled || InputBindings(1)[5].Multisampled {
		t.Error("depth input multisampling does not follow the sample count")
	}
}

func TestMSAAUsesMultisampledLightingShader(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 64, Height: 64}, 2)
	g := newGBuffer(t, dev, 4)
	defer g.Release()

	fs := g.Pipeline(pipeline.KeyLighting).Shader(shader.ShaderTypeFragment)
	if fs.Key() != shader.KeyLightingMSAAFragment {
		t.Errorf("lighting fragment shader = %s", fs.Key())
	}
	if got := g.Attachment(attachmentMSAABase).Samples(); got != 4 {
		t.Errorf("msaa albedo samples = %d", got)
	}
	if got := len(g.Framebuffer(0).(*gputest.Framebuffer).Attachments()); got != 12 {
		t.Errorf("framebuffer attachments = %d, want 12", got)
	}
}

func TestResizeDestroysBeforeCreating(t *testing.T) {
	for _, samples := range []uint32{1, 4} {
		dev := gputest.NewDevice(gpu.Extent{Width: 800, Height: 600}, 3)
		g := newGBuffer(t, dev, samples)
		liveImages := dev.Live("image")

		dev.SetImageCount(2)
		if err := dev.RecreateSwapchain(gpu.Extent{Width: 1024, Height: 768}); err != nil {
			t.Fatal(err)
		}
		dev.ResetOps()
		if err := g.Resize(gpu.Extent{Width: 1024, Height: 768}, 2); err != nil {
			t.Fatalf("Resize: %v", err)
		}

		if got := g.FramebufferCount(); got != dev.SwapchainImageCount() {
			t.Errorf("samples %d: framebuffers = %d, want %d", samples, got, dev.SwapchainImageCount())
		}
		if got := dev.Live("image"); got != liveImages {
			t.Errorf("samples %d: live images = %d, want %d", samples, got, liveImages)
		}
		if got := dev.Live("framebuffer"); got != 2 {
			t.Errorf("samples %d: live framebuffers = %d, want 2", samples, got)
		}
		if g.Extent() != (gpu.Extent{Width: 1024, Height: 768}) {
			t.Errorf("extent = %+v", g.Extent())
		}

		firstCreate, lastRelease := -1, -1
		for i, op := range dev.Ops() {
			if op.Object == "renderpass" || op.Object == "pipeline" || op.Object == "layout" {
				t.Errorf("samples %d: resize touched %s", samples, op)
			}
			if op.Object != "image" && op.Object != "framebuffer" && op.Object != "descriptorset" {
				continue
			}
			if op.Kind == "create" && firstCreate == -1 {
				firstCreate = i
			}
			if op.Kind == "release" {
				lastRelease = i
			}
		}
		if firstCreate == -1 || lastRelease == -1 || lastRelease > firstCreate {
			t.Errorf("samples %d: releases must all precede creates, last release %d first create %d", samples, lastRelease, firstCreate)
		}
		g.Release()
	}
}

func TestResizeErrors(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 32, Height: 32}, 2)
	g := newGBuffer(t, dev, 1)
	defer g.Release()

	if err := g.Resize(gpu.Extent{Width: 0, Height: 32}, 2); !errors.Is(err, ErrZeroExtent) {
		t.Errorf("zero extent resize = %v", err)
	}
	if err := g.Resize(gpu.Extent{Width: 32, Height: 32}, 5); err == nil {
		t.Error("expected an error for more framebuffers than swapchain images")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 32, Height: 32}, 2)
	lib, _ := shader.DefaultLibrary("")
	if _, err := New(dev, Config{Samples: 3, Shaders: lib}); err == nil {
		t.Error("expected an error for 3 samples")
	}
	if _, err := New(dev, Config{Samples: 1}); err == nil {
		t.Error("expected an error without shaders")
	}
	delete(lib, shader.KeyLightingFragment)
	if _, err := New(dev, Config{Samples: 1, Shaders: lib}); err == nil || !strings.Contains(err.Error(), shader.KeyLightingFragment) {
		t.Errorf("missing shader error = %v", err)
	}
}

func TestRecordLightingAndBeginInfo(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 32, Height: 32}, 2)
	g := newGBuffer(t, dev, 1)
	defer g.Release()

	info := g.BeginInfo(1)
	if info.Framebuffer != g.Framebuffer(1) || info.Extent != g.Extent() {
		t.Errorf("begin info = %+v", info)
	}
	if info.ClearValues[AttachmentDepth].Depth != 1 {
		t.Errorf("depth clear = %v, want 1", info.ClearValues[AttachmentDepth].Depth)
	}
	if info.ClearValues[AttachmentFinal].Color != [4]float32{0.1, 0.2, 0.3, 1} {
		t.Errorf("final clear = %v", info.ClearValues[AttachmentFinal].Color)
	}

	cbi, _ := dev.CreateCommandBuffer("cb")
	cb := cbi.(*gputest.CommandBuffer)
	lightsLayout := g.LightsLayout()
	lights, _ := dev.CreateDescriptorSet(gpu.DescriptorSetDescriptor{Label: "lights", Layout: lightsLayout})
	g.RecordLighting(cb, lights)

	want := []string{"next-subpass", "bind-pipeline", "bind-set", "bind-set", "draw"}
	if got := strings.Join(cb.Names(), ","); got != strings.Join(want, ",") {
		t.Fatalf("commands = %s", got)
	}
	if cb.Commands[1].Label != pipeline.KeyLighting {
		t.Errorf("bound pipeline %s", cb.Commands[1].Label)
	}
	if cb.Commands[3].Index != SetLights || cb.Commands[3].Label != "lights" {
		t.Errorf("lights set bound at %d", cb.Commands[3].Index)
	}
	if cb.Commands[4].IndexCount != 3 {
		t.Errorf("fullscreen draw uses %d vertices", cb.Commands[4].IndexCount)
	}
}

func TestReleaseFreesEverything(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 32, Height: 32}, 2)
	g := newGBuffer(t, dev, 4)
	g.Release()
	for _, object := range []string{"image", "framebuffer", "pipeline", "layout", "renderpass", "descriptorset", "buffer"} {
		if got := dev.Live(object); got != 0 {
			t.Errorf("live %s after release = %d", object, got)
		}
	}
}
