package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu/gputest"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

func newTextures(t *testing.T, dev *gputest.Device, count int) Textures {
	t.Helper()
	one := gpu.Extent{Width: 1, Height: 1}
	dummy, err := dev.CreateImage(gpu.ImageDescriptor{Label: "dummy", Extent: one, Format: gpu.FormatRGBA8Unorm, Samples: 1})
	if err != nil {
		t.Fatal(err)
	}
	sampler, err := dev.CreateSampler(gpu.SamplerDescriptor{Label: "sampler"})
	if err != nil {
		t.Fatal(err)
	}
	images := make([]gpu.Image, count)
	for i := range images {
		images[i], _ = dev.CreateImage(gpu.ImageDescriptor{Extent: one, Format: gpu.FormatRGBA8Unorm, Samples: 1})
	}
	return Textures{Images: images, Dummy: dummy, Sampler: sampler}
}

func TestMaterialPipelineKey(t *testing.T) {
	if got := NewMaterial().Pipeline(); got != pipeline.KeyGeometryCullBack {
		t.Errorf("single-sided pipeline = %q, want %q", got, pipeline.KeyGeometryCullBack)
	}
	if got := NewMaterial(WithDoubleSided(true)).Pipeline(); got != pipeline.KeyGeometryCullNone {
		t.Errorf("double-sided pipeline = %q, want %q", got, pipeline.KeyGeometryCullNone)
	}
}

func TestMaterialInitBindsDummyForAbsentSlots(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 8, Height: 8}, 2)
	layout, _ := dev.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: "material", Bindings: LayoutBindings()})
	tex := newTextures(t, dev, 2)
	tex.Images[1] = nil

	m := NewMaterial(
		WithName("crate"),
		WithTexture(SlotBaseColor, 0),
		WithTexture(SlotNormal, 1),
		WithTexture(SlotEmissive, 9),
	)
	if err := m.Init(dev, layout, tex); err != nil {
		t.Fatalf("Init: %v", err)
	}

	set := m.Set().(*gputest.DescriptorSet)
	if len(set.Writes) != 6 {
		t.Fatalf("descriptor writes = %d, want 6", len(set.Writes))
	}
	want := map[uint32]gpu.Image{
		1: tex.Images[0],
		2: tex.Dummy,
		3: tex.Dummy,
		4: tex.Dummy,
		5: tex.Dummy,
	}
	for _, w := range set.Writes {
		if w.Binding == 0 {
			if w.Buffer == nil {
				t.Error("binding 0 has no uniform buffer")
			}
			continue
		}
		if w.Image != want[w.Binding] {
			t.Errorf("binding %d bound %s, want %s", w.Binding, w.Image.Label(), want[w.Binding].Label())
		}
		if w.Sampler != tex.Sampler {
			t.Errorf("binding %d has the wrong sampler", w.Binding)
		}
	}
	if !m.HasTexture(SlotBaseColor) || m.HasTexture(SlotNormal) || m.HasTexture(SlotEmissive) {
		t.Error("texture presence does not match the bound images")
	}

	m.Release()
	if got := dev.Live("buffer"); got != 0 {
		t.Errorf("live buffers after release = %d, want 0", got)
	}
}

func TestMaterialUniformContents(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 8, Height: 8}, 2)
	layout, _ := dev.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: "material"})
	tex := newTextures(t, dev, 1)

	data := DefaultData()
	data.BaseColorFactor = mgl32.Vec4{0.5, 0.25, 1, 1}
	data.RoughnessFactor = 0.3
	data.AlphaMode = AlphaMask
	data.DoubleSided = true
	data.Textures[SlotBaseColor] = 0
	m := NewMaterial(WithData(data))
	if err := m.Init(dev, layout, tex); err != nil {
		t.Fatalf("Init: %v", err)
	}

	buf := m.Provider().Buffer(0).(*gputest.Buffer)
	if len(buf.Data) != 80 {
		t.Fatalf("uniform size = %d, want 80", len(buf.Data))
	}
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf.Data[off:])) }
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(buf.Data[off:]) }

	if f32(0) != 0.5 || f32(4) != 0.25 {
		t.Errorf("base colour = %v %v", f32(0), f32(4))
	}
	if f32(32) != 1 || f32(36) != 0.3 || f32(40) != 0.5 {
		t.Errorf("factors = %v %v %v", f32(32), f32(36), f32(40))
	}
	if u32(48) != 1 || u32(52) != 0 {
		t.Errorf("texture flags = %d %d", u32(48), u32(52))
	}
	if u32(68) != uint32(AlphaMask) || u32(72) != 1 {
		t.Errorf("alpha mode %d double sided %d", u32(68), u32(72))
	}
}

func TestMaterialInitRequiresDummy(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 8, Height: 8}, 2)
	layout, _ := dev.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: "material"})
	if err := NewMaterial().Init(dev, layout, Textures{}); err == nil {
		t.Fatal("expected an error without a dummy image")
	}
}
