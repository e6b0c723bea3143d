// package gputest provides a recording gpu.Device that runs without a GPU.
// Every create and release is appended to an operation log in call order, and command buffers keep the
// commands recorded into them so tests can assert on draw streams.
package gputest

import (
	"fmt"
	"sync"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
)

// Op is one entry of the device operation log.
type Op struct {
	// Kind is "create" or "release".
	Kind string
	// Object is the object type, such as "image" or "framebuffer".
	Object string
	Label  string
}

// String formats the operation as kind:object:label.
func (o Op) String() string {
	return o.Kind + ":" + o.Object + ":" + o.Label
}

// Device is a recording implementation of gpu.Device.
type Device struct {
	mu sync.Mutex

	format     gpu.Format
	extent     gpu.Extent
	imageCount int
	swapchain  []*Image
	nextImage  uint32

	// AcquireErrors are returned by successive AcquireNextImage calls before normal acquisition resumes.
	AcquireErrors []error
	// PresentErrors are returned by successive Present calls before presentation succeeds again.
	PresentErrors []error
	// SubmitError, when set, is returned by every Submit.
	SubmitError error
	// FailCreate makes Create calls for the named object type fail.
	FailCreate map[string]error
	// WriteError, when set, is returned by every WriteBuffer.
	WriteError error

	ops         []Op
	submits     []gpu.SubmitInfo
	presents    []uint32
	recreations []gpu.Extent
	waitIdles   int
	live        map[string]int
	serial      int
}

var _ gpu.Device = &Device{}

// NewDevice creates a recording device with a swapchain of imageCount images at the given extent.
//
// Parameters:
//   - extent: the initial swapchain extent
//   - imageCount: the number of swapchain images
//
// Returns:
//   - *Device: the recording device
func NewDevice(extent gpu.Extent, imageCount int) *Device {
	d := &Device{
		format:     gpu.FormatBGRA8UnormSrgb,
		extent:     extent,
		imageCount: imageCount,
		FailCreate: make(map[string]error),
		live:       make(map[string]int),
	}
	d.buildSwapchain()
	return d
}

func (d *Device) buildSwapchain() {
	d.swapchain = make([]*Image, d.imageCount)
	for i := range d.swapchain {
		d.swapchain[i] = &Image{
			dev:       d,
			label:     fmt.Sprintf("swapchain-%d", i),
			desc:      gpu.ImageDescriptor{Extent: d.extent, Format: d.format, Samples: 1},
			swapchain: true,
		}
	}
}

// SetImageCount changes the number of images the next RecreateSwapchain produces.
func (d *Device) SetImageCount(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imageCount = n
}

// Ops returns a copy of the operation log.
func (d *Device) Ops() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Op, len(d.ops))
	copy(out, d.ops)
	return out
}

// ResetOps clears the operation log.
func (d *Device) ResetOps() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = nil
}

// Submits returns every submission made so far.
func (d *Device) Submits() []gpu.SubmitInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gpu.SubmitInfo, len(d.submits))
	copy(out, d.submits)
	return out
}

// Presents returns the image indices presented so far.
func (d *Device) Presents() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint32, len(d.presents))
	copy(out, d.presents)
	return out
}

// Recreations returns the extents passed to RecreateSwapchain.
func (d *Device) Recreations() []gpu.Extent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gpu.Extent, len(d.recreations))
	copy(out, d.recreations)
	return out
}

// WaitIdles returns how many times WaitIdle was called.
func (d *Device) WaitIdles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitIdles
}

// Live returns the number of created and not yet released objects of the given type.
func (d *Device) Live(object string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[object]
}

func (d *Device) record(kind, object, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, Op{Kind: kind, Object: object, Label: label})
	switch kind {
	case "create":
		d.live[object]++
	case "release":
		d.live[object]--
	}
}

func (d *Device) create(object, label string) (string, error) {
	d.mu.Lock()
	err := d.FailCreate[object]
	d.serial++
	if label == "" {
		label = fmt.Sprintf("%s-%d", object, d.serial)
	}
	d.mu.Unlock()
	if err != nil {
		return "", err
	}
	d.record("create", object, label)
	return label, nil
}

func (d *Device) ShaderLanguage() gpu.ShaderLanguage {
	return gpu.ShaderLanguageWGSL
}

func (d *Device) SwapchainFormat() gpu.Format {
	return d.format
}

func (d *Device) SwapchainExtent() gpu.Extent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extent
}

func (d *Device) SwapchainImageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.swapchain)
}

func (d *Device) SwapchainImage(index int) gpu.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swapchain[index]
}

func (d *Device) RecreateSwapchain(extent gpu.Extent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recreations = append(d.recreations, extent)
	d.extent = extent
	d.nextImage = 0
	d.buildSwapchain()
	return nil
}

func (d *Device) AcquireNextImage(signal gpu.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.AcquireErrors) > 0 {
		err := d.AcquireErrors[0]
		d.AcquireErrors = d.AcquireErrors[1:]
		if err != nil {
			return 0, err
		}
	}
	idx := d.nextImage
	d.nextImage = (d.nextImage + 1) % uint32(len(d.swapchain))
	return idx, nil
}

func (d *Device) Present(imageIndex uint32, wait gpu.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.PresentErrors) > 0 {
		err := d.PresentErrors[0]
		d.PresentErrors = d.PresentErrors[1:]
		if err != nil {
			return err
		}
	}
	d.presents = append(d.presents, imageIndex)
	return nil
}

func (d *Device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	label, err := d.create("image", desc.Label)
	if err != nil {
		return nil, err
	}
	desc.Label = label
	return &Image{dev: d, label: label, desc: desc}, nil
}

func (d *Device) WriteImage(img gpu.Image, pixels []byte) error {
	i, ok := img.(*Image)
	if !ok {
		return fmt.Errorf("gputest: foreign image %T", img)
	}
	want := int(i.desc.Extent.Width * i.desc.Extent.Height * 4)
	if len(pixels) != want {
		return fmt.Errorf("gputest: image %s expects %d bytes, got %d", i.label, want, len(pixels))
	}
	i.Pixels = append([]byte(nil), pixels...)
	return nil
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	label, err := d.create("sampler", desc.Label)
	if err != nil {
		return nil, err
	}
	return &object{dev: d, object: "sampler", label: label}, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	label, err := d.create("buffer", desc.Label)
	if err != nil {
		return nil, err
	}
	return &Buffer{object: object{dev: d, object: "buffer", label: label}, desc: desc, Data: make([]byte, desc.Size)}, nil
}

func (d *Device) WriteBuffer(buf gpu.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("gputest: foreign buffer %T", buf)
	}
	if d.WriteError != nil {
		return d.WriteError
	}
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows buffer %s (%d bytes)", len(data), offset, b.label, len(b.Data))
	}
	copy(b.Data[offset:], data)
	b.Writes++
	return nil
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	label, err := d.create("renderpass", desc.Label)
	if err != nil {
		return nil, err
	}
	return &RenderPass{object: object{dev: d, object: "renderpass", label: label}, desc: desc}, nil
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	if desc.RenderPass != nil && len(desc.Attachments) != len(desc.RenderPass.Descriptor().Attachments) {
		return nil, fmt.Errorf("gputest: framebuffer %s has %d attachments, render pass expects %d",
			desc.Label, len(desc.Attachments), len(desc.RenderPass.Descriptor().Attachments))
	}
	label, err := d.create("framebuffer", desc.Label)
	if err != nil {
		return nil, err
	}
	return &Framebuffer{object: object{dev: d, object: "framebuffer", label: label}, desc: desc}, nil
}

func (d *Device) CreateDescriptorSetLayout(desc gpu.DescriptorSetLayoutDescriptor) (gpu.DescriptorSetLayout, error) {
	label, err := d.create("layout", desc.Label)
	if err != nil {
		return nil, err
	}
	return &object{dev: d, object: "layout", label: label}, nil
}

func (d *Device) CreateDescriptorSet(desc gpu.DescriptorSetDescriptor) (gpu.DescriptorSet, error) {
	label, err := d.create("descriptorset", desc.Label)
	if err != nil {
		return nil, err
	}
	return &DescriptorSet{object: object{dev: d, object: "descriptorset", label: label}, Writes: desc.Writes}, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDescriptor) (gpu.Pipeline, error) {
	label, err := d.create("pipeline", desc.Label)
	if err != nil {
		return nil, err
	}
	return &Pipeline{object: object{dev: d, object: "pipeline", label: label}, Desc: desc}, nil
}

func (d *Device) CreateSemaphore(label string) (gpu.Semaphore, error) {
	label, err := d.create("semaphore", label)
	if err != nil {
		return nil, err
	}
	return &object{dev: d, object: "semaphore", label: label}, nil
}

func (d *Device) CreateCommandBuffer(label string) (gpu.CommandBuffer, error) {
	label, err := d.create("commandbuffer", label)
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{object: object{dev: d, object: "commandbuffer", label: label}}, nil
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SubmitError != nil {
		return d.SubmitError
	}
	for _, cb := range info.CommandBuffers {
		if c, ok := cb.(*CommandBuffer); ok {
			if c.recording {
				return fmt.Errorf("gputest: command buffer %s submitted while recording", c.label)
			}
			c.Submitted++
		}
	}
	d.submits = append(d.submits, info)
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitIdles++
	return nil
}

func (d *Device) Release() {
	d.record("release", "device", "device")
}

// object is the shared handle implementation for objects without extra state.
type object struct {
	dev    *Device
	object string
	label  string
}

func (o *object) Label() string {
	return o.label
}

func (o *object) Release() {
	o.dev.record("release", o.object, o.label)
}

// Image is a recorded image. Swapchain images are owned by the device and never logged.
type Image struct {
	dev       *Device
	label     string
	desc      gpu.ImageDescriptor
	swapchain bool
	// Pixels holds the last WriteImage upload.
	Pixels []byte
}

func (i *Image) Label() string { return i.label }
func (i *Image) Extent() gpu.Extent { return i.desc.Extent }
func (i *Image) Format() gpu.Format { return i.desc.Format }
func (i *Image) Samples() uint32 { return i.desc.Samples }
func (i *Image) Usage() gpu.ImageUsage { return i.desc.Usage }

func (i *Image) Release() {
	if i.swapchain {
		return
	}
	i.dev.record("release", "image", i.label)
}

// Buffer is a recorded buffer backed by host memory.
type Buffer struct {
	object
	desc gpu.BufferDescriptor
	// Data is the buffer contents after every WriteBuffer so far.
	Data []byte
	// Writes counts WriteBuffer calls.
	Writes int
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

// RenderPass is a recorded render pass.
type RenderPass struct {
	object
	desc gpu.RenderPassDescriptor
}

func (r *RenderPass) Descriptor() gpu.RenderPassDescriptor {
	return r.desc
}

// Framebuffer is a recorded framebuffer.
type Framebuffer struct {
	object
	desc gpu.FramebufferDescriptor
}

func (f *Framebuffer) Extent() gpu.Extent {
	return f.desc.Extent
}

// Attachments returns the images bound to the framebuffer.
func (f *Framebuffer) Attachments() []gpu.Image {
	return f.desc.Attachments
}

// DescriptorSet is a recorded descriptor set.
type DescriptorSet struct {
	object
	Writes []gpu.DescriptorWrite
}

// Pipeline is a recorded pipeline.
type Pipeline struct {
	object
	Desc gpu.PipelineDescriptor
}
