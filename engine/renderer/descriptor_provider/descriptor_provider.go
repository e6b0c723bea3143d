package descriptor_provider

import (
	"fmt"
	"sort"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
)

// provider is the unexported implementation of Provider.
type provider struct {
	// label is a debug label added for convenience.
	label string

	// set is the GPU descriptor set created for this provider, or nil before Init.
	set gpu.DescriptorSet
	// layout is the layout the set was allocated from. It is shared and not owned by the provider.
	layout gpu.DescriptorSetLayout
	// buffers holds the GPU buffers bound by this provider, keyed by binding index.
	buffers map[int]gpu.Buffer
	// owned marks the buffers Init created. Buffers staged with SetBuffer belong to the caller.
	owned map[int]bool
	// images holds the images bound by this provider, keyed by binding index. They are owned elsewhere.
	images map[int]gpu.Image
	// samplers holds the samplers paired with image bindings, keyed by binding index. They are owned elsewhere.
	samplers map[int]gpu.Sampler
}

// Provider defines the interface for components that require a GPU descriptor set.
// Components (skins, materials, the camera, the G-buffer lighting inputs) hold a Provider to describe
// their binding requirements. The renderer then calls Init to create the buffers and the set.
//
// Usage pattern:
//  1. Component creates a Provider and stages the images and samplers it binds
//  2. Renderer calls Init with the layout the provider's set is allocated from
//  3. Component stages BufferWrite values that the renderer flushes before submission
//  4. DrawDispatcher binds Set() at the layout's set index
type Provider interface {
	// Release releases the descriptor set and every buffer the provider created.
	// Images and samplers are shared and are left to their owners.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Set returns the descriptor set, or nil if Init has not run.
	//
	// Returns:
	//   - gpu.DescriptorSet: the descriptor set or nil
	Set() gpu.DescriptorSet

	// Layout returns the layout the set was allocated from, or nil if Init has not run.
	//
	// Returns:
	//   - gpu.DescriptorSetLayout: the layout or nil
	Layout() gpu.DescriptorSetLayout

	// Buffer returns the buffer bound at a binding, or nil if none is bound.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Buffer: the buffer or nil
	Buffer(binding int) gpu.Buffer

	// Buffers returns every buffer bound by the provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]gpu.Buffer: the buffers keyed by binding index
	Buffers() map[int]gpu.Buffer

	// Image returns the image bound at a binding, or nil if none is bound.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Image: the image or nil
	Image(binding int) gpu.Image

	// Sampler returns the sampler paired with an image binding, or nil if none is set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Sampler: the sampler or nil
	Sampler(binding int) gpu.Sampler

	// SetBuffer hands ownership of a buffer to the provider for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer to bind
	SetBuffer(binding int, buf gpu.Buffer)

	// SetImage binds an image, with an optional sampler for combined image-sampler bindings.
	//
	// Parameters:
	//   - binding: the binding index
	//   - img: the image to bind
	//   - s: the sampler, or nil for input attachments
	SetImage(binding int, img gpu.Image, s gpu.Sampler)

	// Init creates any missing buffers and allocates the descriptor set from layout.
	// Buffer bindings without a buffer get a new one sized from bufferSizes. Image bindings must
	// have been staged with SetImage first.
	//
	// Parameters:
	//   - device: the device that creates the resources
	//   - layout: the layout to allocate the set from
	//   - bindings: the bindings the layout was created with
	//   - bufferSizes: byte sizes for buffers the provider has to create, keyed by binding index
	//
	// Returns:
	//   - error: an error if a resource could not be created or an image binding is missing
	Init(device gpu.Device, layout gpu.DescriptorSetLayout, bindings []gpu.LayoutBinding, bufferSizes map[int]uint64) error
}

// Compile-time check that provider implements Provider
var _ Provider = &provider{}

// NewProvider creates a new Provider with the provided options.
//
// Parameters:
//   - label: the debug label used for the provider and its GPU objects
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - Provider: a new instance of Provider configured with the provided options
func NewProvider(label string, options ...ProviderOption) Provider {
	p := &provider{
		label:    label,
		buffers:  make(map[int]gpu.Buffer),
		owned:    make(map[int]bool),
		images:   make(map[int]gpu.Image),
		samplers: make(map[int]gpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *provider) Label() string {
	return p.label
}

func (p *provider) Set() gpu.DescriptorSet {
	return p.set
}

func (p *provider) Layout() gpu.DescriptorSetLayout {
	return p.layout
}

func (p *provider) Buffer(binding int) gpu.Buffer {
	return p.buffers[binding]
}

func (p *provider) Buffers() map[int]gpu.Buffer {
	return p.buffers
}

func (p *provider) Image(binding int) gpu.Image {
	return p.images[binding]
}

func (p *provider) Sampler(binding int) gpu.Sampler {
	return p.samplers[binding]
}

func (p *provider) SetBuffer(binding int, buf gpu.Buffer) {
	p.buffers[binding] = buf
}

func (p *provider) SetImage(binding int, img gpu.Image, s gpu.Sampler) {
	p.images[binding] = img
	if s != nil {
		p.samplers[binding] = s
	}
}

func (p *provider) Init(device gpu.Device, layout gpu.DescriptorSetLayout, bindings []gpu.LayoutBinding, bufferSizes map[int]uint64) error {
	sorted := make([]gpu.LayoutBinding, len(bindings))
	copy(sorted, bindings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Binding < sorted[j].Binding })

	writes := make([]gpu.DescriptorWrite, 0, len(sorted))
	for _, entry := range sorted {
		binding := int(entry.Binding)
		switch entry.Type {
		case gpu.BindingCombinedImageSampler, gpu.BindingInputAttachment:
			img := p.images[binding]
			if img == nil {
				return fmt.Errorf("%s: image binding %d has no image, call SetImage first", p.label, binding)
			}
			s := p.samplers[binding]
			if entry.Type == gpu.BindingCombinedImageSampler && s == nil {
				return fmt.Errorf("%s: image binding %d has no sampler", p.label, binding)
			}
			writes = append(writes, gpu.DescriptorWrite{Binding: entry.Binding, Image: img, Sampler: s})
		default:
			usage := gpu.BufferUsageUniform | gpu.BufferUsageTransferDst
			if entry.Type == gpu.BindingStorageBuffer {
				usage = gpu.BufferUsageStorage | gpu.BufferUsageTransferDst
			}
			buf := p.buffers[binding]
			if buf == nil {
				size, ok := bufferSizes[binding]
				if !ok || size == 0 {
					return fmt.Errorf("%s: buffer binding %d has no size", p.label, binding)
				}
				var err error
				buf, err = device.CreateBuffer(gpu.BufferDescriptor{
					Label: fmt.Sprintf("%s buffer %d", p.label, binding),
					Size:  size,
					Usage: usage,
				})
				if err != nil {
					return fmt.Errorf("failed to create %s buffer %d: %w", p.label, binding, err)
				}
				p.buffers[binding] = buf
				p.owned[binding] = true
			}
			writes = append(writes, gpu.DescriptorWrite{Binding: entry.Binding, Buffer: buf})
		}
	}

	set, err := device.CreateDescriptorSet(gpu.DescriptorSetDescriptor{
		Label:  p.label,
		Layout: layout,
		Writes: writes,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s descriptor set: %w", p.label, err)
	}
	p.layout = layout
	p.set = set
	return nil
}

func (p *provider) Release() {
	if p.set != nil {
		p.set.Release()
		p.set = nil
	}
	for i, buf := range p.buffers {
		if buf != nil && p.owned[i] {
			buf.Release()
		}
		delete(p.buffers, i)
		delete(p.owned, i)
	}
	p.layout = nil
}
