package material

import (
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/descriptor_provider"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

// AlphaMode selects how the base colour alpha is interpreted.
type AlphaMode uint32

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

// TextureSlot indexes the five PBR texture slots of a material.
type TextureSlot int

const (
	SlotBaseColor TextureSlot = iota
	SlotMetallicRoughness
	SlotNormal
	SlotOcclusion
	SlotEmissive
	// SlotCount is the number of texture slots.
	SlotCount
)

// NoTexture marks an empty texture slot.
const NoTexture = -1

// Data holds the surface properties of a material as read from a scene document.
type Data struct {
	Name            string
	BaseColorFactor mgl32.Vec4
	MetallicFactor  float32
	RoughnessFactor float32
	EmissiveFactor  mgl32.Vec3
	// Textures holds an image index per slot, or NoTexture.
	Textures    [SlotCount]int
	AlphaMode   AlphaMode
	AlphaCutoff float32
	DoubleSided bool
}

// DefaultData returns the glTF default material: white, fully metallic, fully rough, opaque, no textures.
//
// Returns:
//   - Data: the default material data
func DefaultData() Data {
	d := Data{
		Name:            "default",
		BaseColorFactor: mgl32.Vec4{1, 1, 1, 1},
		MetallicFactor:  1,
		RoughnessFactor: 1,
		AlphaCutoff:     0.5,
	}
	for i := range d.Textures {
		d.Textures[i] = NoTexture
	}
	return d
}

// Textures carries the images a material's texture indices resolve against.
type Textures struct {
	// Images is the model's image list. Nil entries are treated as absent.
	Images []gpu.Image
	// Dummy is the 1x1 image bound to every absent slot.
	Dummy gpu.Image
	// Sampler is shared by every slot.
	Sampler gpu.Sampler
}

// material is the implementation of the Material interface.
type material struct {
	data     Data
	present  [SlotCount]bool
	provider descriptor_provider.Provider
}

// Material defines the interface for a render material, encapsulating surface properties and the
// per-primitive descriptor set the geometry subpass binds at set 2.
//
// Surface properties are set at load time and are read-only through this interface. GPU resources are
// created by Init once the model's images have been uploaded.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Data retrieves the surface properties of the material.
	//
	// Returns:
	//   - Data: the material data
	Data() Data

	// DoubleSided reports whether back faces are drawn.
	//
	// Returns:
	//   - bool: true for double-sided materials
	DoubleSided() bool

	// Pipeline returns the key of the geometry pipeline this material draws with: cull-none for
	// double-sided materials and cull-back otherwise.
	//
	// Returns:
	//   - string: the pipeline key
	Pipeline() string

	// HasTexture reports whether a real image, not the dummy, is bound at slot. Valid after Init.
	//
	// Parameters:
	//   - slot: the texture slot
	//
	// Returns:
	//   - bool: true if the slot has an image
	HasTexture(slot TextureSlot) bool

	// Provider retrieves the descriptor provider holding this material's GPU resources.
	//
	// Returns:
	//   - descriptor_provider.Provider: the provider, or nil before Init
	Provider() descriptor_provider.Provider

	// Set returns the material descriptor set, or nil before Init.
	//
	// Returns:
	//   - gpu.DescriptorSet: the descriptor set
	Set() gpu.DescriptorSet

	// Init creates the material uniform and descriptor set. Slots whose index is NoTexture, out of range
	// or points at a nil image are bound to the dummy image.
	//
	// Parameters:
	//   - device: the device that creates the resources
	//   - layout: the material set layout created from LayoutBindings
	//   - textures: the images, dummy image and sampler to bind
	//
	// Returns:
	//   - error: an error if a resource could not be created
	Init(device gpu.Device, layout gpu.DescriptorSetLayout, textures Textures) error

	// Release destroys the uniform buffer and descriptor set. Images are owned by the model.
	Release()
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{data: DefaultData()}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// LayoutBindings returns the bindings of the material set: the parameter uniform at binding 0 and one
// combined image-sampler per texture slot at bindings 1 through 5.
//
// Returns:
//   - []gpu.LayoutBinding: the material set bindings
func LayoutBindings() []gpu.LayoutBinding {
	bindings := []gpu.LayoutBinding{{
		Binding: 0,
		Type:    gpu.BindingUniformBuffer,
		Stages:  gpu.ShaderStageFragment,
	}}
	for slot := SlotBaseColor; slot < SlotCount; slot++ {
		bindings = append(bindings, gpu.LayoutBinding{
			Binding: uint32(slot) + 1,
			Type:    gpu.BindingCombinedImageSampler,
			Stages:  gpu.ShaderStageFragment,
		})
	}
	return bindings
}

func (m *material) Name() string {
	return m.data.Name
}

func (m *material) Data() Data {
	return m.data
}

func (m *material) DoubleSided() bool {
	return m.data.DoubleSided
}

func (m *material) Pipeline() string {
	if m.data.DoubleSided {
		return pipeline.KeyGeometryCullNone
	}
	return pipeline.KeyGeometryCullBack
}

func (m *material) HasTexture(slot TextureSlot) bool {
	if slot < 0 || slot >= SlotCount {
		return false
	}
	return m.present[slot]
}

func (m *material) Provider() descriptor_provider.Provider {
	return m.provider
}

func (m *material) Set() gpu.DescriptorSet {
	if m.provider == nil {
		return nil
	}
	return m.provider.Set()
}

func (m *material) Init(device gpu.Device, layout gpu.DescriptorSetLayout, textures Textures) error {
	if textures.Dummy == nil || textures.Sampler == nil {
		return fmt.Errorf("material %s: a dummy image and a sampler are required", m.data.Name)
	}
	m.Release()

	provider := descriptor_provider.NewProvider("material " + m.data.Name)
	for slot := SlotBaseColor; slot < SlotCount; slot++ {
		img := textures.Dummy
		m.present[slot] = false
		if idx := m.data.Textures[slot]; idx >= 0 && idx < len(textures.Images) && textures.Images[idx] != nil {
			img = textures.Images[idx]
			m.present[slot] = true
		}
		provider.SetImage(int(slot)+1, img, textures.Sampler)
	}

	params := NewGPUMaterialParams(m.data, m.present)
	if err := provider.Init(device, layout, LayoutBindings(), map[int]uint64{0: uint64(params.Size())}); err != nil {
		provider.Release()
		return err
	}
	if err := device.WriteBuffer(provider.Buffer(0), 0, params.Marshal()); err != nil {
		provider.Release()
		return fmt.Errorf("failed to write material %s parameters: %w", m.data.Name, err)
	}
	m.provider = provider
	return nil
}

func (m *material) Release() {
	if m.provider != nil {
		m.provider.Release()
		m.provider = nil
	}
}
