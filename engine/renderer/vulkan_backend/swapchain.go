package vulkan_backend

import (
	"errors"
	"fmt"
	"math"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

// createSwapchain builds a swapchain at extent, handing the previous one to the driver for reuse. The caller
// holds d.mu or is still constructing the device.
func (d *device) createSwapchain(extent gpu.Extent) error {
	var caps vk.SurfaceCapabilities
	if err := result(vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, d.surface, &caps), "failed to query surface capabilities"); err != nil {
		return err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	surfaceFmt, err := d.chooseSurfaceFormat()
	if err != nil {
		return err
	}
	gpuFormat, _ := surfaceFormat(surfaceFmt.Format)

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}
	chosen := chooseExtent(caps, extent)

	old := d.swapchain
	createInfo := &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFmt.Format,
		ImageColorSpace:  surfaceFmt.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: chosen.Width, Height: chosen.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      d.choosePresentMode(),
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	var swapchain vk.Swapchain
	if err := result(vk.CreateSwapchain(d.device, createInfo, nil, &swapchain), "failed to create swapchain"); err != nil {
		return err
	}

	d.releaseSwapchainImages()
	if old != nil {
		vk.DestroySwapchain(d.device, old, nil)
	}
	d.swapchain = swapchain
	d.swapFormat = surfaceFmt.Format
	d.format = gpuFormat
	d.extent = chosen

	var count uint32
	vk.GetSwapchainImages(d.device, d.swapchain, &count, nil)
	handles := make([]vk.Image, count)
	vk.GetSwapchainImages(d.device, d.swapchain, &count, handles)

	d.images = make([]*image, 0, count)
	for i, handle := range handles {
		img := &image{
			device:  d,
			label:   fmt.Sprintf("swapchain %d", i),
			extent:  chosen,
			format:  gpuFormat,
			samples: 1,
			handle:  handle,
			owned:   false,
		}
		view, err := d.createView(handle, d.swapFormat, gpuFormat)
		if err != nil {
			return err
		}
		img.view = view
		d.images = append(d.images, img)
	}
	return nil
}

// releaseSwapchainImages destroys the views of the swapchain images. The images belong to the swapchain.
func (d *device) releaseSwapchainImages() {
	for _, img := range d.images {
		img.Release()
	}
	d.images = nil
}

// chooseSurfaceFormat prefers BGRA8 sRGB and otherwise takes the first 8-bit RGBA/BGRA format offered.
func (d *device) chooseSurfaceFormat() (vk.SurfaceFormat, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.physical, d.surface, &count, nil)
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(d.physical, d.surface, &count, formats)

	var fallback *vk.SurfaceFormat
	for i := range formats {
		formats[i].Deref()
		if _, ok := surfaceFormat(formats[i].Format); !ok {
			continue
		}
		if formats[i].Format == vk.FormatB8g8r8a8Srgb && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return formats[i], nil
		}
		if fallback == nil {
			fallback = &formats[i]
		}
	}
	if fallback == nil {
		return vk.SurfaceFormat{}, errors.New("surface supports no RGBA8 or BGRA8 format")
	}
	return *fallback, nil
}

// choosePresentMode returns FIFO with vsync. Without it mailbox is preferred over immediate.
func (d *device) choosePresentMode() vk.PresentMode {
	if d.vsync {
		return vk.PresentModeFifo
	}
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(d.physical, d.surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(d.physical, d.surface, &count, modes)

	mode := vk.PresentModeFifo
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
		if m == vk.PresentModeImmediate {
			mode = m
		}
	}
	return mode
}

// chooseExtent uses the surface's current extent when it dictates one, else clamps the requested size.
func chooseExtent(caps vk.SurfaceCapabilities, requested gpu.Extent) gpu.Extent {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return gpu.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
	}
	return gpu.Extent{
		Width:  clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if hi > 0 && v > hi {
		v = hi
	}
	return max(v, lo)
}
