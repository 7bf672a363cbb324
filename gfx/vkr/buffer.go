// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
)

type buffer struct {
	buffer vk.Buffer
	memory *Memory
	size   uint64
}

// CreateBuffer implements interface
func (d *Device) CreateBuffer(size uint64, usage gfx.BufferUsage) (gfx.BufferID, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vkBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.logicalDevice, &createInfo, nil, &buf)); err != nil {
		return 0, fail("vk.CreateBuffer()", err)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logicalDevice, buf, &req)
	req.Deref()

	memory, err := d.allocator.Malloc(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(d.logicalDevice, buf, nil)
		return 0, err
	}

	if err := vk.Error(vk.BindBufferMemory(d.logicalDevice, buf, memory.memory, 0)); err != nil {
		memory.Release()
		vk.DestroyBuffer(d.logicalDevice, buf, nil)
		return 0, fail("vk.BindBufferMemory()", err)
	}

	id := gfx.BufferID(d.handle())
	d.buffers[id] = &buffer{
		buffer: buf,
		memory: memory,
		size:   size,
	}
	return id, nil
}

// MapBuffer implements interface
func (d *Device) MapBuffer(id gfx.BufferID) ([]byte, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, unknown("buffer", uint64(id))
	}
	mem, err := b.memory.Map()
	if err != nil {
		return nil, err
	}
	// The allocation may be larger than what was asked for.
	return mem[:b.size:b.size], nil
}

// DestroyBuffer implements interface
func (d *Device) DestroyBuffer(id gfx.BufferID) {
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	vk.DestroyBuffer(d.logicalDevice, b.buffer, nil)
	b.memory.Release()
	delete(d.buffers, id)
}
