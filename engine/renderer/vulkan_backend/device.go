// package vulkan_backend implements gpu.Device on Vulkan through goki/vulkan. Render passes, subpasses,
// push constants and semaphores map one to one onto their Vulkan counterparts.
package vulkan_backend

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"unsafe"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
	"go.uber.org/zap"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// SurfaceSource is what the device needs from the window system.
type SurfaceSource struct {
	// ProcAddr is the vkGetInstanceProcAddr pointer of the loader.
	ProcAddr unsafe.Pointer
	// Extensions lists the instance extensions the window system requires.
	Extensions []string
	// CreateSurface creates a VkSurfaceKHR for the window and returns its raw handle.
	CreateSurface func(instance vk.Instance) (uintptr, error)
}

type device struct {
	mu     *sync.Mutex
	logger *zap.Logger

	appName    string
	vsync      bool
	validation bool

	instance    vk.Instance
	surface     vk.Surface
	physical    vk.PhysicalDevice
	device      vk.Device
	queue       vk.Queue
	queueFamily uint32
	memProps    vk.PhysicalDeviceMemoryProperties
	commandPool vk.CommandPool

	swapchain  vk.Swapchain
	swapFormat vk.Format
	format     gpu.Format
	extent     gpu.Extent
	images     []*image
}

var _ gpu.Device = &device{}

// NewDevice creates a Vulkan instance, picks a physical device that can present to the window and
// builds the swapchain. It locks the calling goroutine to its OS thread; every later call must come
// from that goroutine.
//
// Parameters:
//   - source: the loader entry point, instance extensions and surface factory of the window
//   - extent: the initial swapchain size, used when the surface does not dictate one
//   - options: variadic list of DeviceBuilderOption functions to configure the device
//
// Returns:
//   - gpu.Device: the device
//   - error: an error if Vulkan is unavailable or no suitable GPU exists
func NewDevice(source SurfaceSource, extent gpu.Extent, options ...DeviceBuilderOption) (gpu.Device, error) {
	runtime.LockOSThread()
	d := &device{
		mu:      &sync.Mutex{},
		logger:  zap.NewNop(),
		appName: "maat",
		vsync:   true,
	}
	for _, opt := range options {
		opt(d)
	}

	if source.ProcAddr == nil || source.CreateSurface == nil {
		return nil, errors.New("vulkan surface source is incomplete")
	}
	vk.SetGetInstanceProcAddr(source.ProcAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise vulkan loader: %w", err)
	}

	if err := d.createInstance(source.Extensions); err != nil {
		return nil, err
	}
	surface, err := source.CreateSurface(d.instance)
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("failed to create window surface: %w", err)
	}
	d.surface = vk.SurfaceFromPointer(surface)

	if err := d.pickPhysicalDevice(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.createSwapchain(extent); err != nil {
		d.Release()
		return nil, err
	}
	d.logger.Info("vulkan device created",
		zap.String("format", d.format.String()),
		zap.Uint32("width", d.extent.Width),
		zap.Uint32("height", d.extent.Height),
		zap.Int("images", len(d.images)),
		zap.Bool("vsync", d.vsync))
	return d, nil
}

func (d *device) createInstance(extensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(d.appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("maat"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 0, 0),
	}
	createInfo := &vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if d.validation {
		createInfo.EnabledLayerCount = 1
		createInfo.PpEnabledLayerNames = safeStrings([]string{validationLayer})
	}

	var instance vk.Instance
	if err := result(vk.CreateInstance(createInfo, nil, &instance), "failed to create vulkan instance"); err != nil {
		return err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return fmt.Errorf("failed to load instance functions: %w", err)
	}
	d.instance = instance
	return nil
}

// pickPhysicalDevice selects the first device with a queue family that does both graphics and present,
// preferring discrete GPUs.
func (d *device) pickPhysicalDevice() error {
	var count uint32
	if err := result(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "failed to enumerate GPUs"); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no vulkan capable GPU found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := result(vk.EnumeratePhysicalDevices(d.instance, &count, devices), "failed to enumerate GPUs"); err != nil {
		return err
	}

	found := false
	for _, pd := range devices {
		family, ok := d.presentFamily(pd)
		if !ok {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		discrete := props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
		if found && !discrete {
			continue
		}
		d.physical, d.queueFamily, found = pd, family, true
		d.logger.Debug("vulkan GPU candidate",
			zap.String("name", vk.ToString(props.DeviceName[:])),
			zap.Bool("discrete", discrete))
		if discrete {
			break
		}
	}
	if !found {
		return errors.New("no GPU can render and present to this surface")
	}

	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memProps)
	d.memProps.Deref()
	return nil
}

func (d *device) presentFamily(pd vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	for i, family := range families {
		family.Deref()
		if family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &supported)
		if supported == vk.True {
			return uint32(i), true
		}
	}
	return 0, false
}

func (d *device) createLogicalDevice() error {
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	extensions := []string{"VK_KHR_swapchain"}
	createInfo := &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueInfo},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
	}
	if d.validation {
		createInfo.EnabledLayerCount = 1
		createInfo.PpEnabledLayerNames = safeStrings([]string{validationLayer})
	}

	var dev vk.Device
	if err := result(vk.CreateDevice(d.physical, createInfo, nil, &dev), "failed to create logical device"); err != nil {
		return err
	}
	d.device = dev

	var queue vk.Queue
	vk.GetDeviceQueue(d.device, d.queueFamily, 0, &queue)
	d.queue = queue

	poolInfo := &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.queueFamily,
	}
	var pool vk.CommandPool
	if err := result(vk.CreateCommandPool(d.device, poolInfo, nil, &pool), "failed to create command pool"); err != nil {
		return err
	}
	d.commandPool = pool
	return nil
}

func (d *device) ShaderLanguage() gpu.ShaderLanguage {
	return gpu.ShaderLanguageSPIRV
}

func (d *device) SwapchainFormat() gpu.Format {
	return d.format
}

func (d *device) SwapchainExtent() gpu.Extent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extent
}

func (d *device) SwapchainImageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.images)
}

func (d *device) SwapchainImage(index int) gpu.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.images) {
		return nil
	}
	return d.images[index]
}

func (d *device) RecreateSwapchain(extent gpu.Extent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	vk.DeviceWaitIdle(d.device)
	if err := d.createSwapchain(extent); err != nil {
		return err
	}
	d.logger.Debug("swapchain recreated", zap.Uint32("width", d.extent.Width), zap.Uint32("height", d.extent.Height))
	return nil
}

// AcquireNextImage acquires a swapchain image. A suboptimal swapchain still delivered an image and
// signalled the semaphore, so the frame proceeds and Present reports the condition instead.
func (d *device) AcquireNextImage(signal gpu.Semaphore) (uint32, error) {
	sem, ok := signal.(*semaphore)
	if !ok {
		return 0, errors.New("acquire semaphore was not created by this device")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var index uint32
	res := vk.AcquireNextImage(d.device, d.swapchain, math.MaxUint64, sem.handle, nil, &index)
	if res == vk.Suboptimal {
		d.logger.Debug("swapchain suboptimal at acquire")
		return index, nil
	}
	if err := result(res, "failed to acquire swapchain image"); err != nil {
		return 0, err
	}
	return index, nil
}

func (d *device) Present(imageIndex uint32, wait gpu.Semaphore) error {
	info := &vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PImageIndices:  []uint32{imageIndex},
	}
	if sem, ok := wait.(*semaphore); ok {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{sem.handle}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	info.PSwapchains = []vk.Swapchain{d.swapchain}
	return result(vk.QueuePresent(d.queue, info), "failed to present")
}

// Submit submits each command buffer with its own fence so Reset can wait for exactly that buffer.
// Wait semaphores gate the first submission and signal semaphores follow the last; queue submission
// order covers everything in between.
func (d *device) Submit(info gpu.SubmitInfo) error {
	buffers := make([]*commandBuffer, 0, len(info.CommandBuffers))
	for _, cb := range info.CommandBuffers {
		c, ok := cb.(*commandBuffer)
		if !ok {
			return fmt.Errorf("command buffer %s was not created by this device", cb.Label())
		}
		buffers = append(buffers, c)
	}

	for i, c := range buffers {
		submit := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    []vk.CommandBuffer{c.handle},
		}
		if i == 0 && len(info.WaitSemaphores) > 0 {
			waits := make([]vk.Semaphore, 0, len(info.WaitSemaphores))
			stages := make([]vk.PipelineStageFlags, 0, len(info.WaitSemaphores))
			for j, s := range info.WaitSemaphores {
				waits = append(waits, s.(*semaphore).handle)
				stage := gpu.PipelineStageColorAttachmentOutput
				if j < len(info.WaitStages) {
					stage = info.WaitStages[j]
				}
				stages = append(stages, pipelineStage(stage))
			}
			submit.WaitSemaphoreCount = uint32(len(waits))
			submit.PWaitSemaphores = waits
			submit.PWaitDstStageMask = stages
		}
		if i == len(buffers)-1 && len(info.SignalSemaphores) > 0 {
			signals := make([]vk.Semaphore, 0, len(info.SignalSemaphores))
			for _, s := range info.SignalSemaphores {
				signals = append(signals, s.(*semaphore).handle)
			}
			submit.SignalSemaphoreCount = uint32(len(signals))
			submit.PSignalSemaphores = signals
		}

		vk.ResetFences(d.device, 1, []vk.Fence{c.fence})
		if err := result(vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, c.fence), "failed to submit "+c.label); err != nil {
			return err
		}
	}
	return nil
}

func (d *device) WaitIdle() error {
	return result(vk.DeviceWaitIdle(d.device), "failed to wait for device")
}

func (d *device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
	}
	d.releaseSwapchainImages()
	if d.swapchain != nil {
		vk.DestroySwapchain(d.device, d.swapchain, nil)
		d.swapchain = nil
	}
	if d.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.device, d.commandPool, nil)
		d.commandPool = vk.NullCommandPool
	}
	if d.device != nil {
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

// findMemoryType returns the first memory type allowed by typeBits that has every requested property.
func (d *device) findMemoryType(typeBits uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		d.memProps.MemoryTypes[i].Deref()
		if typeBits&(1<<i) != 0 && d.memProps.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type with properties %#x", uint32(properties))
}
