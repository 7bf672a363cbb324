// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
)

// image is either created by the device, with memory bound to it,
// or owned by a swapchain, with no memory.
type image struct {
	image  vk.Image
	memory *Memory
}

// CreateImage implements interface
func (d *Device) CreateImage(desc gfx.ImageDesc) (gfx.ImageID, error) {
	layers := desc.Layers
	if layers == 0 {
		layers = 1
	}
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vkFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   layers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if desc.Cube {
		ici.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	var img vk.Image
	if err := vk.Error(vk.CreateImage(d.logicalDevice, &ici, nil, &img)); err != nil {
		return 0, fail("vk.CreateImage()", err)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logicalDevice, img, &req)
	req.Deref()

	memory, err := d.allocator.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(d.logicalDevice, img, nil)
		return 0, err
	}

	if err := vk.Error(vk.BindImageMemory(d.logicalDevice, img, memory.memory, 0)); err != nil {
		memory.Release()
		vk.DestroyImage(d.logicalDevice, img, nil)
		return 0, fail("vk.BindImageMemory()", err)
	}

	id := gfx.ImageID(d.handle())
	d.images[id] = &image{image: img, memory: memory}
	return id, nil
}

// CreateImageView implements interface
func (d *Device) CreateImageView(id gfx.ImageID, desc gfx.ViewDesc) (gfx.ViewID, error) {
	img, ok := d.images[id]
	if !ok {
		return 0, unknown("image", uint64(id))
	}

	layers := desc.Layers
	if layers == 0 {
		layers = 1
	}
	viewType := vk.ImageViewType2d
	if desc.Cube {
		viewType = vk.ImageViewTypeCube
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.image,
		ViewType: viewType,
		Format:   vkFormat(desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vkAspect(desc.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.logicalDevice, &ivci, nil, &view)); err != nil {
		return 0, fail("vk.CreateImageView()", err)
	}
	vid := gfx.ViewID(d.handle())
	d.views[vid] = view
	return vid, nil
}

// DestroyImageView implements interface
func (d *Device) DestroyImageView(id gfx.ViewID) {
	if view, ok := d.views[id]; ok {
		vk.DestroyImageView(d.logicalDevice, view, nil)
		delete(d.views, id)
	}
}

// DestroyImage implements interface. Swapchain images are left to their swapchain.
func (d *Device) DestroyImage(id gfx.ImageID) {
	img, ok := d.images[id]
	if !ok || img.memory == nil {
		return
	}
	vk.DestroyImage(d.logicalDevice, img.image, nil)
	img.memory.Release()
	delete(d.images, id)
}

// CreateSampler implements interface
func (d *Device) CreateSampler() (gfx.SamplerID, error) {
	sci := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           16,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}

	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(d.logicalDevice, &sci, nil, &sampler)); err != nil {
		return 0, fail("vk.CreateSampler()", err)
	}
	id := gfx.SamplerID(d.handle())
	d.samplers[id] = sampler
	return id, nil
}

// DestroySampler implements interface
func (d *Device) DestroySampler(id gfx.SamplerID) {
	if sampler, ok := d.samplers[id]; ok {
		vk.DestroySampler(d.logicalDevice, sampler, nil)
		delete(d.samplers, id)
	}
}
