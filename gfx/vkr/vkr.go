// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements gfx.Device on top of Vulkan.
//
// Every Vulkan object lives in a per-type arena keyed by the opaque gfx
// handle handed out for it, so nothing outside this package ever sees a
// vk type. Buffers are host visible and coherent and stay mapped for their
// whole life, images are device local and filled through staging buffers.
package vkr

import (
	"unsafe"

	"github.com/devblok/vkframe/core"
	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultApplicationInfo describes the application to the Vulkan loader.
var DefaultApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   safeString("vkframe"),
	PEngineName:        safeString("vkframe"),
}

const (
	validationLayer      = "VK_LAYER_LUNARG_standard_validation"
	debugReportExtension = "VK_EXT_debug_report"
)

// PhysicalDeviceInfo is a summary of a physical device.
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	Name          string
	DriverVersion int
	Memory        uint
	Extensions    []string
	Layers        []string
	Invalid       bool
}

// Instance is a Vulkan instance together with the surfaces created for it.
type Instance struct {
	configuration core.InstanceConfiguration

	instance         vk.Instance
	availableDevices []vk.PhysicalDevice

	surfaces    map[gfx.SurfaceID]vk.Surface
	nextSurface gfx.SurfaceID

	log *log.Entry
}

// NewInstance loads Vulkan and creates an instance. procAddr is the
// vkGetInstanceProcAddr the windowing library resolved, nil loads
// the default library.
func NewInstance(appInfo *vk.ApplicationInfo, procAddr unsafe.Pointer, cfg core.InstanceConfiguration) (*Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, validationLayer)
		cfg.Extensions = append(cfg.Extensions, debugReportExtension)
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, fail("vk.CreateInstance()", err)
	}
	vk.InitInstance(instance)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	logger := log.WithField("component", "vkr")
	logger.WithFields(log.Fields{
		"devices": len(physicalDevices),
		"layers":  cfg.Layers,
	}).Debug("vulkan instance created")

	return &Instance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
		surfaces:         make(map[gfx.SurfaceID]vk.Surface),
		log:              logger,
	}, nil
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, fail("vk.EnumeratePhysicalDevices()", err)
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, fail("vk.EnumeratePhysicalDevices()", err)
	}
	return availableDevices, nil
}

// Handle returns the vk.Instance, as windowing libraries need it to create surfaces.
func (v *Instance) Handle() vk.Instance {
	return v.instance
}

// PhysicalDevicesInfo describes every physical device of the instance.
func (v *Instance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, device := range v.availableDevices {
		extensions, err := deviceExtensions(device)
		if err != nil {
			pdi[i].Invalid = true
		}
		pdi[i].Extensions = extensions

		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(device, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += uint(memoryProperties.MemoryHeaps[iMem].Size)
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &properties)
		properties.Deref()
		pdi[i].ID = int(properties.DeviceID)
		pdi[i].VendorID = int(properties.VendorID)
		pdi[i].Name = vk.ToString(properties.DeviceName[:])
		pdi[i].DriverVersion = int(properties.DriverVersion)
	}
	return pdi
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	properties := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &count, properties)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range properties {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// SetSurface registers a surface the windowing library created
// for this instance and returns its handle.
func (v *Instance) SetSurface(pSurface unsafe.Pointer) gfx.SurfaceID {
	v.nextSurface++
	v.surfaces[v.nextSurface] = vk.SurfaceFromPointer(uintptr(pSurface))
	return v.nextSurface
}

func (v *Instance) surface(id gfx.SurfaceID) (vk.Surface, error) {
	s, ok := v.surfaces[id]
	if !ok {
		return vk.NullSurface, unknown("surface", uint64(id))
	}
	return s, nil
}

// Destroy destroys the surfaces and the instance. Devices
// created from it have to be destroyed first.
func (v *Instance) Destroy() {
	for id, s := range v.surfaces {
		vk.DestroySurface(v.instance, s, nil)
		delete(v.surfaces, id)
	}
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}
