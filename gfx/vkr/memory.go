// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

var errNoMemoryType = errors.New("suitable memory type not found")

// Memory is one dedicated allocation.
type Memory struct {
	device vk.Device
	memory vk.DeviceMemory
	size   vk.DeviceSize
	mapped unsafe.Pointer
}

// Map maps the whole allocation once, later calls return the same view.
func (m *Memory) Map() ([]byte, error) {
	if m.mapped == nil {
		var ptr unsafe.Pointer
		if err := vk.Error(vk.MapMemory(m.device, m.memory, 0, m.size, 0, &ptr)); err != nil {
			return nil, fail("vk.MapMemory()", err)
		}
		m.mapped = ptr
	}
	return mappedBytes(m.mapped, int(m.size)), nil
}

// Release unmaps and frees the memory.
func (m *Memory) Release() {
	if m.mapped != nil {
		vk.UnmapMemory(m.device, m.memory)
		m.mapped = nil
	}
	vk.FreeMemory(m.device, m.memory, nil)
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(phyDevice vk.PhysicalDevice, device vk.Device) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()
	for idx := uint32(0); idx < memProperties.MemoryTypeCount; idx++ {
		memProperties.MemoryTypes[idx].Deref()
	}

	return &MemoryAllocator{
		device:        device,
		memProperties: memProperties,
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device        vk.Device
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Malloc allocates memory that fits the requirements.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (*Memory, error) {
	memTypeIdx, err := ma.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return nil, fail("find memory type", err)
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return nil, fail("vk.AllocateMemory()", err)
	}
	return &Memory{
		device: ma.device,
		memory: memory,
		size:   req.Size,
	}, nil
}

func (ma *MemoryAllocator) findMemoryType(filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < ma.memProperties.MemoryTypeCount; idx++ {
		if filter&(1<<idx) != 0 && (ma.memProperties.MemoryTypes[idx].PropertyFlags&prop) == prop {
			return idx, nil
		}
	}
	return 0, errNoMemoryType
}
