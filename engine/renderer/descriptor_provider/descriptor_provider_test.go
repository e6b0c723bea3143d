package descriptor_provider

import (
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu/gputest"
)

func TestProviderInitCreatesMissingBuffers(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 4, Height: 4}, 2)
	layout, _ := dev.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: "layout"})

	p := NewProvider("camera")
	bindings := []gpu.LayoutBinding{{Binding: 0, Type: gpu.BindingUniformBuffer, Stages: gpu.ShaderStageVertex}}
	if err := p.Init(dev, layout, bindings, map[int]uint64{0: 144}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Set() == nil {
		t.Fatal("expected a descriptor set after Init")
	}
	if got := p.Buffer(0).Size(); got != 144 {
		t.Fatalf("buffer size = %d, want 144", got)
	}
	if got := dev.Live("buffer"); got != 1 {
		t.Fatalf("live buffers = %d, want 1", got)
	}

	p.Release()
	if got := dev.Live("buffer"); got != 0 {
		t.Errorf("live buffers after release = %d, want 0", got)
	}
	if got := dev.Live("descriptorset"); got != 0 {
		t.Errorf("live sets after release = %d, want 0", got)
	}
}

func TestProviderKeepsStagedBuffers(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 4, Height: 4}, 2)
	layout, _ := dev.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: "layout"})
	shared, _ := dev.CreateBuffer(gpu.BufferDescriptor{Label: "shared", Size: 64})

	p := NewProvider("skin", WithBuffer(0, shared))
	bindings := []gpu.LayoutBinding{{Binding: 0, Type: gpu.BindingStorageBuffer, Stages: gpu.ShaderStageVertex}}
	if err := p.Init(dev, layout, bindings, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	p.Release()
	if got := dev.Live("buffer"); got != 1 {
		t.Errorf("staged buffer was released by the provider")
	}
}

func TestProviderInitErrors(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 4, Height: 4}, 2)
	layout, _ := dev.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: "layout"})

	t.Run("missing size", func(t *testing.T) {
		p := NewProvider("no size")
		err := p.Init(dev, layout, []gpu.LayoutBinding{{Binding: 0, Type: gpu.BindingUniformBuffer}}, nil)
		if err == nil {
			t.Fatal("expected an error for a buffer binding without a size")
		}
	})

	t.Run("missing image", func(t *testing.T) {
		p := NewProvider("no image")
		err := p.Init(dev, layout, []gpu.LayoutBinding{{Binding: 1, Type: gpu.BindingCombinedImageSampler}}, nil)
		if err == nil {
			t.Fatal("expected an error for an image binding without an image")
		}
	})

	t.Run("missing sampler", func(t *testing.T) {
		img, _ := dev.CreateImage(gpu.ImageDescriptor{Extent: gpu.Extent{Width: 1, Height: 1}, Format: gpu.FormatRGBA8Unorm, Samples: 1})
		p := NewProvider("no sampler", WithImage(1, img, nil))
		err := p.Init(dev, layout, []gpu.LayoutBinding{{Binding: 1, Type: gpu.BindingCombinedImageSampler}}, nil)
		if err == nil {
			t.Fatal("expected an error for a combined image sampler without a sampler")
		}
	})
}

func TestWriteBuffers(t *testing.T) {
	dev := gputest.NewDevice(gpu.Extent{Width: 4, Height: 4}, 2)
	layout, _ := dev.CreateDescriptorSetLayout(gpu.DescriptorSetLayoutDescriptor{Label: "layout"})
	p := NewProvider("lights")
	bindings := []gpu.LayoutBinding{{Binding: 0, Type: gpu.BindingUniformBuffer}}
	if err := p.Init(dev, layout, bindings, map[int]uint64{0: 8}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	err := WriteBuffers(dev, []BufferWrite{
		{Provider: p, Binding: 0, Offset: 4, Data: []byte{1, 2, 3, 4}},
		{Provider: p, Binding: 7, Data: []byte{9}},
	})
	if err != nil {
		t.Fatalf("WriteBuffers: %v", err)
	}
	buf := p.Buffer(0).(*gputest.Buffer)
	if buf.Data[4] != 1 || buf.Data[7] != 4 {
		t.Errorf("buffer data = %v", buf.Data)
	}
	if buf.Writes != 1 {
		t.Errorf("writes = %d, want 1", buf.Writes)
	}
}
