package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/camera"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/light"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/animator"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/descriptor_provider"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/dispatcher"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/frame"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gbuffer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ErrNotRendering is returned by draw and end calls made outside StartRender/EndRender.
var ErrNotRendering = errors.New("no frame is being recorded")

// geometryBuffer is a shared vertex or index buffer with a CPU copy used to refill it when it grows.
type geometryBuffer struct {
	label string
	usage gpu.BufferUsage
	buf   gpu.Buffer
	data  []byte
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	device gpu.Device
	logger *zap.Logger

	// construction config collected from builder options
	samples        uint32
	framesInFlight int
	shaders        shader.Library
	clearColor     [4]float32
	maxJoints      int

	gbuffer    gbuffer.GBuffer
	scheduler  frame.Scheduler
	dispatcher dispatcher.Dispatcher
	animator   animator.Animator

	// per-frame uniforms, indexed by frame-in-flight slot
	cameraSets []descriptor_provider.Provider
	lightSets  []descriptor_provider.Provider
	noSkin     descriptor_provider.Provider
	dummy      gpu.Image
	sampler    gpu.Sampler

	vertices geometryBuffer
	indices  geometryBuffer

	models []*model.Model

	cameraUniform camera.GPUCameraUniform
	lightsUniform light.GPULights

	imageIndex    uint32
	recording     bool
	pendingResize *gpu.Extent
	released      bool
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API that hides the deferred pipeline behind a streamlined frame flow:
// StartRender, any number of Draw calls, EndRender. It owns the shared geometry buffers every loaded
// model is appended to, the G-buffer, the frame ring and the skeletal animator. One CPU goroutine
// drives it.
type Renderer interface {
	// LoadModel builds a model from a scene document and uploads it: its geometry is appended to the
	// shared vertex and index buffers, its images become textures and its materials and skins get
	// their descriptor sets.
	//
	// Parameters:
	//   - doc: the scene document
	//   - options: model builder options
	//
	// Returns:
	//   - *model.Model: the uploaded model
	//   - error: an error if the document is malformed or a GPU resource could not be created
	LoadModel(doc model.Document, options ...model.ModelBuilderOption) (*model.Model, error)

	// UnloadModel releases a model's GPU resources and forgets it. Its geometry stays in the shared
	// buffers until the renderer is released.
	//
	// Parameters:
	//   - m: the model to unload
	UnloadModel(m *model.Model)

	// Models returns the loaded models in load order.
	Models() []*model.Model

	// UpdateAnimation advances the model's active animation by dt seconds and stages the joint
	// matrices of every skin for upload at the next StartRender.
	//
	// Parameters:
	//   - m: the model to animate
	//   - dt: elapsed seconds
	UpdateAnimation(m *model.Model, dt float32)

	// SetActiveAnimation selects the animation UpdateAnimation plays for m.
	//
	// Parameters:
	//   - m: the model
	//   - index: the animation index
	//
	// Returns:
	//   - error: an error if index is out of range
	SetActiveAnimation(m *model.Model, index int) error

	// SetCamera sets the camera used from the next StartRender on.
	//
	// Parameters:
	//   - c: the camera
	SetCamera(c camera.Camera)

	// SetLights sets the lights evaluated by the lighting subpass from the next StartRender on.
	//
	// Parameters:
	//   - lights: the lights, at most light.MaxGPULights enabled ones are used
	//   - ambient: the ambient colour
	SetLights(lights []light.Light, ambient [3]float32)

	// StartRender acquires the next swapchain image, uploads the frame's uniforms and joint
	// matrices and begins the deferred render pass.
	//
	// Returns:
	//   - bool: false when no frame is available, for example after a swapchain recreation; the
	//     caller skips the tick
	//   - error: an error wrapping frame.ErrFatal when rendering cannot continue
	StartRender() (bool, error)

	// DrawModel records every node of m, depth-first.
	//
	// Parameters:
	//   - m: the model to draw
	//
	// Returns:
	//   - error: ErrNotRendering outside a frame
	DrawModel(m *model.Model) error

	// DrawMesh records a single node of m.
	//
	// Parameters:
	//   - m: the model holding the node
	//   - nodeIndex: the node to draw
	//
	// Returns:
	//   - error: ErrNotRendering outside a frame, or an error if nodeIndex is out of range
	DrawMesh(m *model.Model, nodeIndex int) error

	// DrawInstanced stages one instance of m. Staged instances are drawn by EndRender.
	//
	// Parameters:
	//   - m: the model to draw
	//   - instance: the per-instance payload
	//
	// Returns:
	//   - error: ErrNotRendering outside a frame
	DrawInstanced(m *model.Model, instance model.GPUInstance) error

	// EndRender draws the staged instances, records the lighting subpass, submits and presents.
	//
	// Returns:
	//   - error: an error wrapping frame.ErrFatal when rendering cannot continue
	EndRender() error

	// RecreateSwapchain rebuilds the swapchain and the G-buffer at the given size immediately.
	//
	// Parameters:
	//   - width, height: the new surface size in pixels
	//
	// Returns:
	//   - error: an error wrapping frame.ErrFatal if recreation failed
	RecreateSwapchain(width, height uint32) error

	// Resize records a new surface size. The swapchain is recreated at the start of the next frame.
	//
	// Parameters:
	//   - width, height: the new surface size in pixels
	Resize(width, height int)

	// Extent returns the current swapchain extent.
	Extent() gpu.Extent

	// FlipY reports whether the device's clip space points Y down, which cameras must account for.
	FlipY() bool

	// Release waits for the device to go idle and destroys every resource the renderer created.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates the deferred renderer on an opened device.
//
// Parameters:
//   - device: the device, opened for the selected RendererBackendType
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if a GPU resource could not be created
func NewRenderer(device gpu.Device, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:             &sync.Mutex{},
		device:         device,
		logger:         zap.NewNop(),
		samples:        uint32(MSAAOff),
		framesInFlight: frame.DefaultFramesInFlight,
		clearColor:     [4]float32{0, 0, 0, 1},
		maxJoints:      animator.DefaultMaxJoints,
		vertices:       geometryBuffer{label: "vertices", usage: gpu.BufferUsageVertex | gpu.BufferUsageTransferDst},
		indices:        geometryBuffer{label: "indices", usage: gpu.BufferUsageIndex | gpu.BufferUsageTransferDst},
	}
	for _, opt := range options {
		opt(r)
	}
	if r.framesInFlight < 1 {
		r.framesInFlight = frame.DefaultFramesInFlight
	}
	if r.shaders == nil {
		lib, err := shader.DefaultLibrary("")
		if err != nil {
			return nil, err
		}
		r.shaders = lib
	}

	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	r.logger.Info("renderer created",
		zap.Uint32("samples", r.samples),
		zap.Int("frames_in_flight", r.framesInFlight),
		zap.Uint32("width", device.SwapchainExtent().Width),
		zap.Uint32("height", device.SwapchainExtent().Height))
	return r, nil
}

func (r *renderer) init() error {
	var err error
	r.gbuffer, err = gbuffer.New(r.device, gbuffer.Config{
		Samples:    r.samples,
		Shaders:    r.shaders,
		ClearColor: r.clearColor,
		Logger:     r.logger.Named("gbuffer"),
	})
	if err != nil {
		return fmt.Errorf("failed to create g-buffer: %w", err)
	}

	r.scheduler, err = frame.NewScheduler(r.device, r.framesInFlight,
		frame.WithLogger(r.logger.Named("frame")),
		frame.WithResizeHook(r.gbuffer.Resize),
	)
	if err != nil {
		return fmt.Errorf("failed to create frame scheduler: %w", err)
	}

	r.animator = animator.NewAnimator(
		animator.WithLogger(r.logger.Named("animator")),
		animator.WithMaxJoints(r.maxJoints),
	)
	r.dispatcher = dispatcher.NewDispatcher(r.device, r.gbuffer, r.framesInFlight,
		dispatcher.WithLogger(r.logger.Named("dispatcher")))

	r.cameraSets = make([]descriptor_provider.Provider, r.framesInFlight)
	r.lightSets = make([]descriptor_provider.Provider, r.framesInFlight)
	for i := 0; i < r.framesInFlight; i++ {
		r.cameraSets[i] = descriptor_provider.NewProvider(fmt.Sprintf("camera %d", i))
		if err := r.cameraSets[i].Init(r.device, r.gbuffer.CameraLayout(), gbuffer.CameraBindings(),
			map[int]uint64{0: uint64(r.cameraUniform.Size())}); err != nil {
			return err
		}
		r.lightSets[i] = descriptor_provider.NewProvider(fmt.Sprintf("lights %d", i))
		if err := r.lightSets[i].Init(r.device, r.gbuffer.LightsLayout(), gbuffer.LightsBindings(),
			map[int]uint64{0: uint64(r.lightsUniform.Size())}); err != nil {
			return err
		}
	}

	r.noSkin = descriptor_provider.NewProvider("no-skin")
	if err := r.noSkin.Init(r.device, r.gbuffer.SkinLayout(), gbuffer.SkinBindings(), map[int]uint64{0: 64}); err != nil {
		return err
	}
	if err := r.device.WriteBuffer(r.noSkin.Buffer(0), 0, common.Mat4Bytes(mgl32.Ident4())); err != nil {
		return fmt.Errorf("failed to write identity joint: %w", err)
	}

	white := common.WhitePixel()
	r.dummy, err = r.uploadImage(white)
	if err != nil {
		return err
	}
	r.sampler, err = r.device.CreateSampler(gpu.SamplerDescriptor{
		Label:       "texture sampler",
		MagFilter:   gpu.FilterLinear,
		MinFilter:   gpu.FilterLinear,
		AddressMode: gpu.AddressRepeat,
	})
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}

	r.cameraUniform = camera.NewCamera(camera.WithFlipY(r.FlipY())).Uniform()
	r.lightsUniform = light.NewGPULights(nil, [3]float32{1, 1, 1}, [3]float32{})
	return nil
}

func (r *renderer) uploadImage(img model.Image) (gpu.Image, error) {
	if img.Width == 0 || img.Height == 0 || len(img.Pixels) != int(img.Width*img.Height*4) {
		return nil, fmt.Errorf("image %s has %d bytes for %dx%d pixels", img.Name, len(img.Pixels), img.Width, img.Height)
	}
	tex, err := r.device.CreateImage(gpu.ImageDescriptor{
		Label:   "texture " + img.Name,
		Extent:  gpu.Extent{Width: img.Width, Height: img.Height},
		Format:  gpu.FormatRGBA8Unorm,
		Samples: 1,
		Usage:   gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", img.Name, err)
	}
	if err := r.device.WriteImage(tex, img.Pixels); err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to upload texture %s: %w", img.Name, err)
	}
	return tex, nil
}

// appendGeometry writes data after the buffer's current contents, replacing the buffer with a larger
// one when it is full. It returns the byte offset data was written at.
func (r *renderer) appendGeometry(g *geometryBuffer, data []byte) (uint64, error) {
	offset := uint64(len(g.data))
	g.data = append(g.data, data...)
	if len(data) == 0 {
		return offset, nil
	}

	if g.buf != nil && g.buf.Size() >= uint64(len(g.data)) {
		if err := r.device.WriteBuffer(g.buf, offset, data); err != nil {
			return 0, fmt.Errorf("failed to write %s: %w", g.label, err)
		}
		return offset, nil
	}

	capacity := uint64(64 * 1024)
	for capacity < uint64(len(g.data)) {
		capacity *= 2
	}
	if g.buf != nil {
		// The old buffer may still be read by frames in flight.
		if err := r.device.WaitIdle(); err != nil {
			return 0, fmt.Errorf("failed to wait before growing %s: %w", g.label, err)
		}
		g.buf.Release()
		g.buf = nil
	}
	buf, err := r.device.CreateBuffer(gpu.BufferDescriptor{Label: g.label, Size: capacity, Usage: g.usage})
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", g.label, err)
	}
	g.buf = buf
	if err := r.device.WriteBuffer(buf, 0, g.data); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", g.label, err)
	}
	r.logger.Debug("geometry buffer grown", zap.String("buffer", g.label), zap.Uint64("capacity", capacity))
	return offset, nil
}

func (r *renderer) LoadModel(doc model.Document, options ...model.ModelBuilderOption) (*model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return nil, errors.New("cannot load a model while a frame is being recorded")
	}

	m, err := model.NewModel(doc, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to build model %s: %w", doc.Name(), err)
	}
	if err := r.upload(m); err != nil {
		m.Release()
		return nil, fmt.Errorf("failed to upload model %s: %w", m.Name(), err)
	}
	r.models = append(r.models, m)
	r.logger.Info("model loaded",
		zap.String("model", m.Name()),
		zap.Int("nodes", len(m.Nodes)),
		zap.Int("vertices", len(m.Vertices)),
		zap.Int("indices", len(m.Indices)),
		zap.Int("materials", len(m.Materials)),
		zap.Int("textures", len(m.Textures)),
		zap.Int("skins", len(m.Skins)),
		zap.Int("animations", len(m.Animations)))
	return m, nil
}

func (r *renderer) upload(m *model.Model) error {
	vertexStride := uint64((&model.GPUVertex{}).Size())
	vertexOffset, err := r.appendGeometry(&r.vertices, model.MarshalVertices(m.Vertices))
	if err != nil {
		return err
	}
	indexOffset, err := r.appendGeometry(&r.indices, model.MarshalIndices(m.Indices))
	if err != nil {
		return err
	}
	m.Rebase(uint32(indexOffset/4), int32(vertexOffset/vertexStride))
	r.dispatcher.SetGeometry(r.vertices.buf, r.indices.buf)

	m.Textures = make([]gpu.Image, len(m.Images))
	for i, img := range m.Images {
		tex, err := r.uploadImage(img)
		if err != nil {
			r.logger.Warn("texture skipped, materials fall back to white",
				zap.String("model", m.Name()), zap.Int("image", i), zap.Error(err))
			continue
		}
		m.Textures[i] = tex
	}

	textures := material.Textures{Images: m.Textures, Dummy: r.dummy, Sampler: r.sampler}
	for _, mat := range m.Materials {
		if err := mat.Init(r.device, r.gbuffer.MaterialLayout(), textures); err != nil {
			return err
		}
	}

	for i := range m.Skins {
		skin := &m.Skins[i]
		joints := max(1, min(len(skin.Joints), r.animator.MaxJoints()))
		provider := descriptor_provider.NewProvider("skin " + skin.Name)
		if err := provider.Init(r.device, r.gbuffer.SkinLayout(), gbuffer.SkinBindings(),
			map[int]uint64{0: uint64(64 * joints)}); err != nil {
			return err
		}
		skin.Provider = provider
		r.animator.UpdateJoints(m, i)
	}
	return r.animator.Flush(r.device)
}

func (r *renderer) UnloadModel(m *model.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, loaded := range r.models {
		if loaded != m {
			continue
		}
		r.models = append(r.models[:i], r.models[i+1:]...)
		if err := r.device.WaitIdle(); err != nil {
			r.logger.Warn("wait idle failed before unloading", zap.Error(err))
		}
		if err := r.animator.Flush(r.device); err != nil {
			r.logger.Warn("joint flush failed before unloading", zap.Error(err))
		}
		r.animator.Forget(m)
		m.Release()
		r.logger.Info("model unloaded", zap.String("model", m.Name()))
		return
	}
}

func (r *renderer) Models() []*model.Model {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Model, len(r.models))
	copy(out, r.models)
	return out
}

func (r *renderer) UpdateAnimation(m *model.Model, dt float32) {
	if m == nil || m.Released() {
		return
	}
	r.animator.Update(m, dt)
	for i := range m.Skins {
		r.animator.UpdateJoints(m, i)
	}
}

func (r *renderer) SetActiveAnimation(m *model.Model, index int) error {
	return r.animator.SetActiveAnimation(m, index)
}

func (r *renderer) SetCamera(c camera.Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameraUniform = c.Uniform()
}

func (r *renderer) SetLights(lights []light.Light, ambient [3]float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	valid := make([]light.Light, 0, len(lights))
	for i, l := range lights {
		if err := l.Validate(); err != nil {
			r.logger.Warn("skipping light", zap.Int("light", i), zap.Error(err))
			continue
		}
		valid = append(valid, l)
	}
	// The camera position is filled in by StartRender.
	r.lightsUniform = light.NewGPULights(valid, ambient, [3]float32{})
}

func (r *renderer) StartRender() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pendingResize != nil {
		extent := *r.pendingResize
		r.pendingResize = nil
		if err := r.scheduler.RecreateSwapchain(extent.Width, extent.Height); err != nil {
			return false, err
		}
	}
	if r.gbuffer.FramebufferCount() == 0 {
		return false, nil
	}

	imageIndex, ok, err := r.scheduler.StartRender()
	if err != nil || !ok {
		return false, err
	}
	r.imageIndex = imageIndex
	slot := r.scheduler.Index()

	if err := r.animator.Flush(r.device); err != nil {
		r.abort()
		return false, fmt.Errorf("%w: %w", frame.ErrFatal, err)
	}
	r.lightsUniform.CameraPosition = r.cameraUniform.Position
	if err := r.device.WriteBuffer(r.cameraSets[slot].Buffer(0), 0, r.cameraUniform.Marshal()); err != nil {
		r.abort()
		return false, fmt.Errorf("%w: failed to write camera: %w", frame.ErrFatal, err)
	}
	if err := r.device.WriteBuffer(r.lightSets[slot].Buffer(0), 0, r.lightsUniform.Marshal()); err != nil {
		r.abort()
		return false, fmt.Errorf("%w: failed to write lights: %w", frame.ErrFatal, err)
	}

	cb := r.scheduler.CurrentCommandBuffer()
	cb.BeginRenderPass(r.gbuffer.BeginInfo(imageIndex))
	r.dispatcher.SetGlobals(r.cameraSets[slot].Set(), r.noSkin.Set())
	if err := r.dispatcher.Begin(cb); err != nil {
		r.logger.Debug("frame started without geometry", zap.Error(err))
	}
	r.recording = true
	return true, nil
}

// abort closes a frame that failed after acquisition so the scheduler can start the next one. The
// render pass is still recorded, without draws, so the acquired image reaches its present layout.
func (r *renderer) abort() {
	cb := r.scheduler.CurrentCommandBuffer()
	cb.BeginRenderPass(r.gbuffer.BeginInfo(r.imageIndex))
	cb.NextSubpass()
	cb.EndRenderPass()
	_ = r.scheduler.EndRender(r.imageIndex)
}

func (r *renderer) DrawModel(m *model.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRendering
	}
	r.dispatcher.DrawModel(r.scheduler.CurrentCommandBuffer(), m)
	return nil
}

func (r *renderer) DrawMesh(m *model.Model, nodeIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRendering
	}
	return r.dispatcher.DrawMesh(r.scheduler.CurrentCommandBuffer(), m, nodeIndex)
}

func (r *renderer) DrawInstanced(m *model.Model, instance model.GPUInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRendering
	}
	r.dispatcher.DrawInstanced(m, instance)
	return nil
}

func (r *renderer) EndRender() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRendering
	}
	r.recording = false

	slot := r.scheduler.Index()
	cb := r.scheduler.CurrentCommandBuffer()
	flushErr := r.dispatcher.FlushInstanced(cb, slot)
	r.gbuffer.RecordLighting(cb, r.lightSets[slot].Set())
	cb.EndRenderPass()

	if err := r.scheduler.EndRender(r.imageIndex); err != nil {
		return err
	}
	if flushErr != nil {
		r.logger.Warn("instanced draws dropped", zap.Error(flushErr))
	}
	return nil
}

func (r *renderer) RecreateSwapchain(width, height uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingResize = nil
	return r.scheduler.RecreateSwapchain(width, height)
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingResize = &gpu.Extent{Width: uint32(max(0, width)), Height: uint32(max(0, height))}
}

func (r *renderer) Extent() gpu.Extent {
	return r.device.SwapchainExtent()
}

func (r *renderer) FlipY() bool {
	return r.device.ShaderLanguage() == gpu.ShaderLanguageSPIRV
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	if err := r.device.WaitIdle(); err != nil {
		r.logger.Warn("wait idle failed during release", zap.Error(err))
	}
	for _, m := range r.models {
		m.Release()
	}
	r.models = nil

	if r.dispatcher != nil {
		r.dispatcher.Release()
	}
	for _, g := range []*geometryBuffer{&r.vertices, &r.indices} {
		if g.buf != nil {
			g.buf.Release()
			g.buf = nil
		}
		g.data = nil
	}
	for _, p := range append(append([]descriptor_provider.Provider{}, r.cameraSets...), r.lightSets...) {
		if p != nil {
			p.Release()
		}
	}
	if r.noSkin != nil {
		r.noSkin.Release()
	}
	if r.sampler != nil {
		r.sampler.Release()
	}
	if r.dummy != nil {
		r.dummy.Release()
	}
	if r.scheduler != nil {
		r.scheduler.Release()
	}
	if r.gbuffer != nil {
		r.gbuffer.Release()
	}
	r.logger.Info("renderer released")
}
