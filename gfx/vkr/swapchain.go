// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"

	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
)

type swapchain struct {
	swapchain vk.Swapchain
	images    []gfx.ImageID
}

func extent(e vk.Extent2D) gfx.Extent2D {
	e.Deref()
	return gfx.Extent2D{Width: e.Width, Height: e.Height}
}

// SurfaceCapabilities implements interface
func (d *Device) SurfaceCapabilities(id gfx.SurfaceID) (gfx.SurfaceCapabilities, error) {
	surface, err := d.instance.surface(id)
	if err != nil {
		return gfx.SurfaceCapabilities{}, err
	}

	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, surface, &caps)); err != nil {
		return gfx.SurfaceCapabilities{}, fail("vk.GetPhysicalDeviceSurfaceCapabilities()", err)
	}
	caps.Deref()

	result := gfx.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentExtent: extent(caps.CurrentExtent),
		MinExtent:     extent(caps.MinImageExtent),
		MaxExtent:     extent(caps.MaxImageExtent),
	}

	surfaceFormats, err := d.surfaceFormats(surface)
	if err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	for _, sf := range surfaceFormats {
		if f, ok := gfxFormat(sf.Format); ok {
			result.Formats = append(result.Formats, f)
		}
	}

	var modeCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, surface, &modeCount, nil)); err != nil {
		return gfx.SurfaceCapabilities{}, fail("vk.GetPhysicalDeviceSurfacePresentModes()", err)
	}
	modes := make([]vk.PresentMode, modeCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, surface, &modeCount, modes)); err != nil {
		return gfx.SurfaceCapabilities{}, fail("vk.GetPhysicalDeviceSurfacePresentModes()", err)
	}
	for _, m := range modes {
		if mode, ok := gfxPresentMode(m); ok {
			result.PresentModes = append(result.PresentModes, mode)
		}
	}
	return result, nil
}

func (d *Device) surfaceFormats(surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var surfaceFormatCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, surface, &surfaceFormatCount, nil)); err != nil {
		return nil, fail("vk.GetPhysicalDeviceSurfaceFormats()", err)
	}
	surfaceFormats := make([]vk.SurfaceFormat, surfaceFormatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, surface, &surfaceFormatCount, surfaceFormats)); err != nil {
		return nil, fail("vk.GetPhysicalDeviceSurfaceFormats()", err)
	}
	for i := range surfaceFormats {
		surfaceFormats[i].Deref()
	}
	return surfaceFormats, nil
}

var compositeAlphaFlags = []vk.CompositeAlphaFlagBits{
	vk.CompositeAlphaOpaqueBit,
	vk.CompositeAlphaPreMultipliedBit,
	vk.CompositeAlphaPostMultipliedBit,
	vk.CompositeAlphaInheritBit,
}

// CreateSwapchain implements interface
func (d *Device) CreateSwapchain(desc gfx.SwapchainDesc) (gfx.SwapchainID, []gfx.ImageID, error) {
	surface, err := d.instance.surface(desc.Surface)
	if err != nil {
		return 0, nil, err
	}

	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, surface, &caps)); err != nil {
		return 0, nil, fail("vk.GetPhysicalDeviceSurfaceCapabilities()", err)
	}
	caps.Deref()

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range compositeAlphaFlags {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	surfaceFormats, err := d.surfaceFormats(surface)
	if err != nil {
		return 0, nil, err
	}
	format := vkFormat(desc.Format)
	var colorSpace vk.ColorSpace
	for _, sf := range surfaceFormats {
		if sf.Format == format {
			colorSpace = sf.ColorSpace
			break
		}
	}

	var oldSwapchain vk.Swapchain
	if desc.Old != 0 {
		if old, ok := d.swapchains[desc.Old]; ok {
			oldSwapchain = old.swapchain
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         surface,
		MinImageCount:   desc.ImageCount,
		ImageFormat:     format,
		ImageColorSpace: colorSpace,
		ImageExtent: vk.Extent2D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}

	var sc vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(d.logicalDevice, &scci, nil, &sc)); err != nil {
		return 0, nil, fail("vk.CreateSwapchain()", err)
	}

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(d.logicalDevice, sc, &numImages, nil)); err != nil {
		vk.DestroySwapchain(d.logicalDevice, sc, nil)
		return 0, nil, fail("vk.GetSwapchainImages()", err)
	}
	images := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(d.logicalDevice, sc, &numImages, images)); err != nil {
		vk.DestroySwapchain(d.logicalDevice, sc, nil)
		return 0, nil, fail("vk.GetSwapchainImages()", err)
	}

	entry := &swapchain{swapchain: sc}
	for _, img := range images {
		id := gfx.ImageID(d.handle())
		d.images[id] = &image{image: img}
		entry.images = append(entry.images, id)
	}
	id := gfx.SwapchainID(d.handle())
	d.swapchains[id] = entry

	ids := make([]gfx.ImageID, len(entry.images))
	copy(ids, entry.images)
	return id, ids, nil
}

// DestroySwapchain implements interface
func (d *Device) DestroySwapchain(id gfx.SwapchainID) {
	sc, ok := d.swapchains[id]
	if !ok {
		return
	}
	for _, img := range sc.images {
		delete(d.images, img)
	}
	vk.DestroySwapchain(d.logicalDevice, sc.swapchain, nil)
	delete(d.swapchains, id)
}

// AcquireNextImage implements interface. A suboptimal swapchain still
// hands out the image, staleness is then reported at present.
func (d *Device) AcquireNextImage(id gfx.SwapchainID, signal gfx.SemaphoreID) (uint32, error) {
	sc, ok := d.swapchains[id]
	if !ok {
		return 0, unknown("swapchain", uint64(id))
	}
	sem, ok := d.semaphores[signal]
	if !ok {
		return 0, unknown("semaphore", uint64(signal))
	}

	var imageIndex uint32
	result := vk.AcquireNextImage(d.logicalDevice, sc.swapchain, math.MaxUint64, sem, nil, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, gfx.ErrSwapchainOutOfDate
	}
	return 0, fail("vk.AcquireNextImage()", vk.Error(result))
}

// QueuePresent implements interface
func (d *Device) QueuePresent(id gfx.SwapchainID, imageIndex uint32, wait gfx.SemaphoreID) error {
	sc, ok := d.swapchains[id]
	if !ok {
		return unknown("swapchain", uint64(id))
	}

	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.swapchain},
		PImageIndices:  []uint32{imageIndex},
	}
	if sem, ok := d.semaphores[wait]; ok {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{sem}
	}

	switch result := vk.QueuePresent(d.deviceQueue, &presentInfo); result {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return gfx.ErrSwapchainOutOfDate
	default:
		return fail("vk.QueuePresent()", vk.Error(result))
	}
}
