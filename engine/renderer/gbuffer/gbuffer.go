package gbuffer

import (
	"errors"
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/descriptor_provider"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/pipeline"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
	"go.uber.org/zap"
)

// ErrZeroExtent is returned by Resize for an extent with a zero dimension.
var ErrZeroExtent = errors.New("gbuffer: zero extent")

// Config configures the deferred pipeline.
type Config struct {
	// Samples is the sample count of the geometry subpass: 1, 2, 4 or 8.
	Samples uint32
	// ColorFormat is the swapchain format. FormatUndefined uses the device's swapchain format.
	ColorFormat gpu.Format
	// Shaders provides the geometry and lighting shaders.
	Shaders shader.Library
	// ClearColor is the background colour written where no geometry was drawn.
	ClearColor [4]float32
	// Logger receives resize events. Nil disables logging.
	Logger *zap.Logger
}

// gBuffer is the implementation of the GBuffer interface.
type gBuffer struct {
	device gpu.Device
	cfg    Config
	logger *zap.Logger

	renderPass gpu.RenderPass

	cameraLayout   gpu.DescriptorSetLayout
	skinLayout     gpu.DescriptorSetLayout
	materialLayout gpu.DescriptorSetLayout
	inputLayout    gpu.DescriptorSetLayout
	lightsLayout   gpu.DescriptorSetLayout

	pipelines map[string]pipeline.Pipeline

	extent gpu.Extent
	// images is indexed by attachment slot; slot 0 is the swapchain image and stays nil.
	images       []gpu.Image
	framebuffers []gpu.Framebuffer
	inputs       descriptor_provider.Provider
}

// GBuffer defines the interface for the deferred G-buffer pipeline.
//
// A GBuffer owns the two-subpass render pass, the descriptor set layouts shared by every set the renderer
// creates, the geometry and lighting pipelines, and the size-dependent resources: attachment images,
// one framebuffer per swapchain image and the lighting input set. Only the size-dependent resources are
// rebuilt by Resize.
type GBuffer interface {
	// RenderPass returns the deferred render pass.
	//
	// Returns:
	//   - gpu.RenderPass: the render pass
	RenderPass() gpu.RenderPass

	// Samples returns the sample count of the geometry subpass.
	//
	// Returns:
	//   - uint32: the sample count
	Samples() uint32

	// Extent returns the extent of the current attachments.
	//
	// Returns:
	//   - gpu.Extent: the attachment extent
	Extent() gpu.Extent

	// Resize destroys every attachment image, framebuffer and the input set, then rebuilds them at the
	// new extent with one framebuffer per swapchain image. Old images are destroyed before new ones are
	// created. The render pass and pipelines are kept.
	//
	// Parameters:
	//   - extent: the new swapchain extent
	//   - imageCount: the swapchain image count
	//
	// Returns:
	//   - error: ErrZeroExtent for an empty extent, or a resource creation error
	Resize(extent gpu.Extent, imageCount int) error

	// FramebufferCount returns the number of framebuffers, equal to the swapchain image count after Resize.
	//
	// Returns:
	//   - int: the framebuffer count
	FramebufferCount() int

	// Framebuffer returns the framebuffer targeting the given swapchain image.
	//
	// Parameters:
	//   - imageIndex: the swapchain image index
	//
	// Returns:
	//   - gpu.Framebuffer: the framebuffer, or nil if out of range
	Framebuffer(imageIndex uint32) gpu.Framebuffer

	// Attachment returns the image bound at an attachment slot. Slot 0 is the swapchain image and
	// returns nil.
	//
	// Parameters:
	//   - slot: the attachment slot
	//
	// Returns:
	//   - gpu.Image: the attachment image, or nil
	Attachment(slot int) gpu.Image

	// BeginInfo returns the render pass begin info for the given swapchain image, with clear values for
	// every attachment.
	//
	// Parameters:
	//   - imageIndex: the acquired swapchain image index
	//
	// Returns:
	//   - gpu.RenderPassBeginInfo: the begin info
	BeginInfo(imageIndex uint32) gpu.RenderPassBeginInfo

	// Pipeline returns the pipeline registered under key, or nil.
	//
	// Parameters:
	//   - key: one of the pipeline.Key constants
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline or nil
	Pipeline(key string) pipeline.Pipeline

	// CameraLayout returns the layout of the camera set bound at SetCamera.
	CameraLayout() gpu.DescriptorSetLayout

	// SkinLayout returns the layout of the joint matrix set bound at SetSkin.
	SkinLayout() gpu.DescriptorSetLayout

	// MaterialLayout returns the layout of the material set bound at SetMaterial.
	MaterialLayout() gpu.DescriptorSetLayout

	// LightsLayout returns the layout of the lights set bound at SetLights in the lighting subpass.
	LightsLayout() gpu.DescriptorSetLayout

	// InputSet returns the lighting subpass input attachment set.
	InputSet() gpu.DescriptorSet

	// RecordLighting advances to the lighting subpass and draws the fullscreen triangle.
	//
	// Parameters:
	//   - cb: the command buffer inside the deferred render pass, in the geometry subpass
	//   - lights: the lights set
	RecordLighting(cb gpu.CommandBuffer, lights gpu.DescriptorSet)

	// Release destroys every resource owned by the G-buffer.
	Release()
}

var _ GBuffer = &gBuffer{}

// New creates the deferred pipeline and sizes it to the device's current swapchain. A zero swapchain
// extent defers sizing to the first Resize.
//
// Parameters:
//   - device: the device
//   - cfg: the pipeline configuration
//
// Returns:
//   - GBuffer: the deferred pipeline
//   - error: an error if a resource could not be created or the config is invalid
func New(device gpu.Device, cfg Config) (GBuffer, error) {
	switch cfg.Samples {
	case 0:
		cfg.Samples = 1
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("gbuffer: unsupported sample count %d", cfg.Samples)
	}
	if cfg.ColorFormat == gpu.FormatUndefined {
		cfg.ColorFormat = device.SwapchainFormat()
	}
	if cfg.Shaders == nil {
		return nil, errors.New("gbuffer: a shader library is required")
	}

	g := &gBuffer{
		device:    device,
		cfg:       cfg,
		logger:    cfg.Logger,
		pipelines: make(map[string]pipeline.Pipeline),
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}

	if err := g.init(); err != nil {
		g.Release()
		return nil, err
	}

	if extent := device.SwapchainExtent(); !extent.IsZero() {
		if err := g.Resize(extent, device.SwapchainImageCount()); err != nil {
			g.Release()
			return nil, err
		}
	}
	return g, nil
}

func (g *gBuffer) init() error {
	layouts := []struct {
		dst      *gpu.DescriptorSetLayout
		label    string
		bindings []gpu.LayoutBinding
	}{
		{&g.cameraLayout, "camera", CameraBindings()},
		{&g.skinLayout, "skin", SkinBindings()},
		{&g.materialLayout, "material", MaterialBindings()},
		{&g.inputLayout, "gbuffer inputs", InputBindings(g.cfg.Samples)},
		{&g.lightsLayout, "lights", LightsBindings()},
	}
	for _, l := range layouts {
		layout, err := g.device.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: l.label, Bindings: l.bindings})
		if err != nil {
			return fmt.Errorf("failed to create %s layout: %w", l.label, err)
		}
		*l.dst = layout
	}

	rp, err := g.device.CreateRenderPass(RenderPassDescriptor(g.cfg.ColorFormat, g.cfg.Samples))
	if err != nil {
		return fmt.Errorf("failed to create deferred render pass: %w", err)
	}
	g.renderPass = rp

	return g.initPipelines()
}

func (g *gBuffer) initPipelines() error {
	lib := g.cfg.Shaders
	get := func(key string) shader.Shader {
		s, _ := lib.Get(key)
		return s
	}
	for _, key := range []string{shader.KeyGeometryVertex, shader.KeyGeometryInstancedVertex, shader.KeyGeometryFragment, shader.KeyLightingVertex} {
		if _, err := lib.Get(key); err != nil {
			return err
		}
	}
	lightingFragment := shader.KeyLightingFragment
	if g.cfg.Samples > 1 {
		lightingFragment = shader.KeyLightingMSAAFragment
	}
	if _, err := lib.Get(lightingFragment); err != nil {
		return err
	}

	geometry := func(key string, vs shader.Shader, cull gpu.CullMode, bindings ...gpu.VertexBinding) pipeline.Pipeline {
		return pipeline.NewPipeline(key,
			pipeline.WithVertexShader(vs),
			pipeline.WithFragmentShader(get(shader.KeyGeometryFragment)),
			pipeline.WithSubpass(0),
			pipeline.WithCullMode(cull),
			pipeline.WithColorTargets(ColorCount),
			pipeline.WithSamples(g.cfg.Samples),
			pipeline.WithVertexBindings(bindings...),
			pipeline.WithPushConstants(gpu.ShaderStageVertex, ModelPushConstantSize),
		)
	}
	geometryLayouts := []gpu.DescriptorSetLayout{g.cameraLayout, g.skinLayout, g.materialLayout}

	pipelines := []struct {
		p       pipeline.Pipeline
		layouts []gpu.DescriptorSetLayout
	}{
		{geometry(pipeline.KeyGeometryCullBack, get(shader.KeyGeometryVertex), gpu.CullModeBack, model.VertexBinding()), geometryLayouts},
		{geometry(pipeline.KeyGeometryCullNone, get(shader.KeyGeometryVertex), gpu.CullModeNone, model.VertexBinding()), geometryLayouts},
		{geometry(pipeline.KeyGeometryInstanced, get(shader.KeyGeometryInstancedVertex), gpu.CullModeBack, model.VertexBinding(), model.InstanceBinding()), geometryLayouts},
		{pipeline.NewPipeline(pipeline.KeyLighting,
			pipeline.WithVertexShader(get(shader.KeyLightingVertex)),
			pipeline.WithFragmentShader(get(lightingFragment)),
			pipeline.WithSubpass(1),
			pipeline.WithDepthTestEnabled(false),
			pipeline.WithDepthWriteEnabled(false),
			pipeline.WithCullMode(gpu.CullModeNone),
		), []gpu.DescriptorSetLayout{g.inputLayout, g.lightsLayout}},
	}
	for _, entry := range pipelines {
		if err := entry.p.Init(g.device, g.renderPass, entry.layouts); err != nil {
			return err
		}
		g.pipelines[entry.p.PipelineKey()] = entry.p
	}
	return nil
}

func (g *gBuffer) RenderPass() gpu.RenderPass {
	return g.renderPass
}

func (g *gBuffer) Samples() uint32 {
	return g.cfg.Samples
}

func (g *gBuffer) Extent() gpu.Extent {
	return g.extent
}

func (g *gBuffer) releaseSized() {
	for _, fb := range g.framebuffers {
		fb.Release()
	}
	g.framebuffers = nil
	if g.inputs != nil {
		g.inputs.Release()
		g.inputs = nil
	}
	for _, img := range g.images {
		if img != nil {
			img.Release()
		}
	}
	g.images = nil
}

func (g *gBuffer) Resize(extent gpu.Extent, imageCount int) error {
	if extent.IsZero() {
		return ErrZeroExtent
	}
	if imageCount < 1 || imageCount > g.device.SwapchainImageCount() {
		return fmt.Errorf("gbuffer: image count %d does not match the swapchain's %d images", imageCount, g.device.SwapchainImageCount())
	}

	g.releaseSized()
	g.extent = extent

	if err := g.createImages(); err != nil {
		g.releaseSized()
		return err
	}
	if err := g.createFramebuffers(imageCount); err != nil {
		g.releaseSized()
		return err
	}
	if err := g.createInputSet(); err != nil {
		g.releaseSized()
		return err
	}

	g.logger.Debug("gbuffer resized",
		zap.Uint32("width", extent.Width),
		zap.Uint32("height", extent.Height),
		zap.Int("framebuffers", len(g.framebuffers)),
		zap.Uint32("samples", g.cfg.Samples))
	return nil
}

func (g *gBuffer) createImages() error {
	desc := g.renderPass.Descriptor()
	g.images = make([]gpu.Image, len(desc.Attachments))
	names := []string{"final", "albedo", "metallic-roughness", "emissive", "normal", "position", "depth"}
	for slot := 1; slot < len(desc.Attachments); slot++ {
		att := desc.Attachments[slot]
		var usage gpu.ImageUsage
		var label string
		switch {
		case slot == AttachmentDepth:
			usage = gpu.ImageUsageDepthAttachment | gpu.ImageUsageInputAttachment
			label = "gbuffer depth"
		case slot < AttachmentDepth:
			usage = gpu.ImageUsageColorAttachment | gpu.ImageUsageInputAttachment
			label = "gbuffer " + names[slot]
		default:
			usage = gpu.ImageUsageColorAttachment | gpu.ImageUsageTransient
			label = "gbuffer msaa " + names[slot-attachmentMSAABase+1]
		}
		img, err := g.device.CreateImage(gpu.ImageDescriptor{
			Label:   label,
			Extent:  g.extent,
			Format:  att.Format,
			Samples: att.Samples,
			Usage:   usage,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s image: %w", label, err)
		}
		g.images[slot] = img
	}
	return nil
}

func (g *gBuffer) createFramebuffers(imageCount int) error {
	g.framebuffers = make([]gpu.Framebuffer, 0, imageCount)
	for i := 0; i < imageCount; i++ {
		attachments := make([]gpu.Image, len(g.images))
		copy(attachments, g.images)
		attachments[AttachmentFinal] = g.device.SwapchainImage(i)
		fb, err := g.device.CreateFramebuffer(gpu.FramebufferDescriptor{
			Label:       fmt.Sprintf("deferred framebuffer %d", i),
			RenderPass:  g.renderPass,
			Attachments: attachments,
			Extent:      g.extent,
		})
		if err != nil {
			return fmt.Errorf("failed to create framebuffer %d: %w", i, err)
		}
		g.framebuffers = append(g.framebuffers, fb)
	}
	return nil
}

func (g *gBuffer) createInputSet() error {
	inputs := descriptor_provider.NewProvider("gbuffer inputs")
	for i := 0; i <= ColorCount; i++ {
		inputs.SetImage(i, g.images[AttachmentAlbedo+i], nil)
	}
	if err := inputs.Init(g.device, g.inputLayout, InputBindings(g.cfg.Samples), nil); err != nil {
		return err
	}
	g.inputs = inputs
	return nil
}

func (g *gBuffer) FramebufferCount() int {
	return len(g.framebuffers)
}

func (g *gBuffer) Framebuffer(imageIndex uint32) gpu.Framebuffer {
	if int(imageIndex) >= len(g.framebuffers) {
		return nil
	}
	return g.framebuffers[imageIndex]
}

func (g *gBuffer) Attachment(slot int) gpu.Image {
	if slot < 0 || slot >= len(g.images) {
		return nil
	}
	return g.images[slot]
}

func (g *gBuffer) BeginInfo(imageIndex uint32) gpu.RenderPassBeginInfo {
	attachments := g.renderPass.Descriptor().Attachments
	clears := make([]gpu.ClearValue, len(attachments))
	for i, att := range attachments {
		switch {
		case att.Format.IsDepth():
			clears[i].Depth = 1
		case att.Present:
			clears[i].Color = g.cfg.ClearColor
		}
	}
	return gpu.RenderPassBeginInfo{
		RenderPass:  g.renderPass,
		Framebuffer: g.Framebuffer(imageIndex),
		Extent:      g.extent,
		ClearValues: clears,
	}
}

func (g *gBuffer) Pipeline(key string) pipeline.Pipeline {
	return g.pipelines[key]
}

func (g *gBuffer) CameraLayout() gpu.DescriptorSetLayout {
	return g.cameraLayout
}

func (g *gBuffer) SkinLayout() gpu.DescriptorSetLayout {
	return g.skinLayout
}

func (g *gBuffer) MaterialLayout() gpu.DescriptorSetLayout {
	return g.materialLayout
}

func (g *gBuffer) LightsLayout() gpu.DescriptorSetLayout {
	return g.lightsLayout
}

func (g *gBuffer) InputSet() gpu.DescriptorSet {
	if g.inputs == nil {
		return nil
	}
	return g.inputs.Set()
}

func (g *gBuffer) RecordLighting(cb gpu.CommandBuffer, lights gpu.DescriptorSet) {
	cb.NextSubpass()
	cb.BindPipeline(g.pipelines[pipeline.KeyLighting].GPU())
	cb.BindDescriptorSet(SetInputs, g.InputSet())
	cb.BindDescriptorSet(SetLights, lights)
	cb.Draw(3, 1, 0, 0)
}

func (g *gBuffer) Release() {
	g.releaseSized()
	for key, p := range g.pipelines {
		p.Release()
		delete(g.pipelines, key)
	}
	if g.renderPass != nil {
		g.renderPass.Release()
		g.renderPass = nil
	}
	for _, l := range []*gpu.DescriptorSetLayout{&g.cameraLayout, &g.skinLayout, &g.materialLayout, &g.inputLayout, &g.lightsLayout} {
		if *l != nil {
			(*l).Release()
			*l = nil
		}
	}
}
