// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

var _ gfx.Device = (*Device)(nil)

// Device implements gfx.Device with a single queue family that
// supports both graphics and presentation. Calls must not overlap.
type Device struct {
	instance *Instance

	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device
	deviceQueue    vk.Queue
	queueFamily    uint32

	commandPool   vk.CommandPool
	pipelineCache vk.PipelineCache
	allocator     *MemoryAllocator

	next uint64

	buffers        map[gfx.BufferID]*buffer
	images         map[gfx.ImageID]*image
	views          map[gfx.ViewID]vk.ImageView
	samplers       map[gfx.SamplerID]vk.Sampler
	swapchains     map[gfx.SwapchainID]*swapchain
	semaphores     map[gfx.SemaphoreID]vk.Semaphore
	fences         map[gfx.FenceID]vk.Fence
	shaders        map[gfx.ShaderModuleID]vk.ShaderModule
	renderPasses   map[gfx.RenderPassID]*renderPass
	framebuffers   map[gfx.FramebufferID]vk.Framebuffer
	pipelines      map[gfx.PipelineID]*pipeline
	pools          map[gfx.DescriptorPoolID]vk.DescriptorPool
	sets           map[gfx.DescriptorSetID]descriptorSet
	commandBuffers map[gfx.CommandBufferID]vk.CommandBuffer

	log *log.Entry
}

// Suitability is the verdict on one physical device.
type Suitability struct {
	Suitable bool
	Reason   string
}

// DeviceIsSuitable checks that the device has a queue family with graphics
// and present support for the surface, the requested extensions and
// sampler anisotropy.
func (v *Instance) DeviceIsSuitable(device vk.PhysicalDevice, surface gfx.SurfaceID, extensions []string) (Suitability, uint32) {
	s, err := v.surface(surface)
	if err != nil {
		return Suitability{Reason: err.Error()}, 0
	}

	family, ok := queueFamily(device, s)
	if !ok {
		return Suitability{Reason: "no queue family with graphics and present support"}, 0
	}

	available, err := deviceExtensions(device)
	if err != nil {
		return Suitability{Reason: "vk.EnumerateDeviceExtensionProperties(): " + err.Error()}, 0
	}
	for _, ext := range extensions {
		if !contains(available, ext) {
			return Suitability{Reason: fmt.Sprintf("extension %s not supported", ext)}, 0
		}
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()
	if features.SamplerAnisotropy != vk.True {
		return Suitability{Reason: "sampler anisotropy not supported"}, 0
	}
	return Suitability{Suitable: true}, family
}

// queueFamily finds the first queue family that draws and presents to the surface.
func queueFamily(device vk.PhysicalDevice, surface vk.Surface) (uint32, bool) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var supportsPresent vk.Bool32
		if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(device, i, surface, &supportsPresent)); err != nil {
			continue
		}
		if supportsPresent.B() {
			return i, true
		}
	}
	return 0, false
}

// NewDevice picks the first suitable physical device for the surface
// and creates a logical device with the given extensions on it.
func (v *Instance) NewDevice(surface gfx.SurfaceID, extensions []string) (*Device, error) {
	if !contains(extensions, vk.KhrSwapchainExtensionName) {
		extensions = append(extensions, vk.KhrSwapchainExtensionName)
	}

	var (
		physicalDevice vk.PhysicalDevice
		family         uint32
		found          bool
	)
	for i, pd := range v.availableDevices {
		suitability, f := v.DeviceIsSuitable(pd, surface, extensions)
		if !suitability.Suitable {
			v.log.WithField("device", i).Infof("skipping device: %s", suitability.Reason)
			continue
		}
		physicalDevice, family, found = pd, f, true
		break
	}
	if !found {
		return nil, gfx.Configurationf("select device", "none of %d devices is suitable", len(v.availableDevices))
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
		}},
	}

	var logicalDevice vk.Device
	if err := vk.Error(vk.CreateDevice(physicalDevice, &dci, nil, &logicalDevice)); err != nil {
		return nil, fail("vk.CreateDevice()", err)
	}

	var deviceQueue vk.Queue
	vk.GetDeviceQueue(logicalDevice, family, 0, &deviceQueue)

	d := &Device{
		instance:       v,
		physicalDevice: physicalDevice,
		logicalDevice:  logicalDevice,
		deviceQueue:    deviceQueue,
		queueFamily:    family,
		allocator:      NewMemoryAllocator(physicalDevice, logicalDevice),
		buffers:        make(map[gfx.BufferID]*buffer),
		images:         make(map[gfx.ImageID]*image),
		views:          make(map[gfx.ViewID]vk.ImageView),
		samplers:       make(map[gfx.SamplerID]vk.Sampler),
		swapchains:     make(map[gfx.SwapchainID]*swapchain),
		semaphores:     make(map[gfx.SemaphoreID]vk.Semaphore),
		fences:         make(map[gfx.FenceID]vk.Fence),
		shaders:        make(map[gfx.ShaderModuleID]vk.ShaderModule),
		renderPasses:   make(map[gfx.RenderPassID]*renderPass),
		framebuffers:   make(map[gfx.FramebufferID]vk.Framebuffer),
		pipelines:      make(map[gfx.PipelineID]*pipeline),
		pools:          make(map[gfx.DescriptorPoolID]vk.DescriptorPool),
		sets:           make(map[gfx.DescriptorSetID]descriptorSet),
		commandBuffers: make(map[gfx.CommandBufferID]vk.CommandBuffer),
		log:            v.log,
	}

	if err := d.createCommandPool(); err != nil {
		vk.DestroyDevice(logicalDevice, nil)
		return nil, err
	}
	if err := d.createPipelineCache(); err != nil {
		vk.DestroyCommandPool(logicalDevice, d.commandPool, nil)
		vk.DestroyDevice(logicalDevice, nil)
		return nil, err
	}

	d.log.WithField("queueFamily", family).Info("vulkan device created")
	return d, nil
}

func (d *Device) createCommandPool() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(d.logicalDevice, &cpci, nil, &commandPool)); err != nil {
		return fail("vk.CreateCommandPool()", err)
	}
	d.commandPool = commandPool
	return nil
}

func (d *Device) createPipelineCache() error {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}

	var pipelineCache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(d.logicalDevice, &pcci, nil, &pipelineCache)); err != nil {
		return fail("vk.CreatePipelineCache()", err)
	}
	d.pipelineCache = pipelineCache
	return nil
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

// QueueWaitIdle implements interface
func (d *Device) QueueWaitIdle() error {
	if err := vk.Error(vk.QueueWaitIdle(d.deviceQueue)); err != nil {
		return fail("vk.QueueWaitIdle()", err)
	}
	return nil
}

// DeviceWaitIdle implements interface
func (d *Device) DeviceWaitIdle() error {
	if err := vk.Error(vk.DeviceWaitIdle(d.logicalDevice)); err != nil {
		return fail("vk.DeviceWaitIdle()", err)
	}
	return nil
}

// Leaks counts the objects still alive, per kind.
func (d *Device) Leaks() map[string]int {
	leaks := make(map[string]int)
	add := func(kind string, n int) {
		if n > 0 {
			leaks[kind] = n
		}
	}
	add("buffer", len(d.buffers))
	var owned int
	for _, img := range d.images {
		if img.memory != nil {
			owned++
		}
	}
	add("image", owned)
	add("view", len(d.views))
	add("sampler", len(d.samplers))
	add("swapchain", len(d.swapchains))
	add("semaphore", len(d.semaphores))
	add("fence", len(d.fences))
	add("shader", len(d.shaders))
	add("render pass", len(d.renderPasses))
	add("framebuffer", len(d.framebuffers))
	add("pipeline", len(d.pipelines))
	add("descriptor pool", len(d.pools))
	add("command buffer", len(d.commandBuffers))
	return leaks
}

// Destroy waits for the device and destroys it. Objects the caller
// leaked are logged and not freed.
func (d *Device) Destroy() {
	vk.DeviceWaitIdle(d.logicalDevice)

	if leaks := d.Leaks(); len(leaks) > 0 {
		d.log.WithField("leaks", leaks).Warn("destroying device with live objects")
	}

	vk.DestroyPipelineCache(d.logicalDevice, d.pipelineCache, nil)
	vk.DestroyCommandPool(d.logicalDevice, d.commandPool, nil)
	vk.DestroyDevice(d.logicalDevice, nil)
	d.log.Info("vulkan device destroyed")
}
