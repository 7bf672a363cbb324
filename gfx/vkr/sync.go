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

// CreateSemaphore implements interface
func (d *Device) CreateSemaphore() (gfx.SemaphoreID, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(d.logicalDevice, &sci, nil, &semaphore)); err != nil {
		return 0, fail("vk.CreateSemaphore()", err)
	}
	id := gfx.SemaphoreID(d.handle())
	d.semaphores[id] = semaphore
	return id, nil
}

// DestroySemaphore implements interface
func (d *Device) DestroySemaphore(id gfx.SemaphoreID) {
	if s, ok := d.semaphores[id]; ok {
		vk.DestroySemaphore(d.logicalDevice, s, nil)
		delete(d.semaphores, id)
	}
}

// CreateFence implements interface
func (d *Device) CreateFence(signaled bool) (gfx.FenceID, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(d.logicalDevice, &fci, nil, &fence)); err != nil {
		return 0, fail("vk.CreateFence()", err)
	}
	id := gfx.FenceID(d.handle())
	d.fences[id] = fence
	return id, nil
}

// WaitForFence implements interface
func (d *Device) WaitForFence(id gfx.FenceID) error {
	fence, ok := d.fences[id]
	if !ok {
		return unknown("fence", uint64(id))
	}
	if err := vk.Error(vk.WaitForFences(d.logicalDevice, 1, []vk.Fence{fence}, vk.True, math.MaxUint64)); err != nil {
		return fail("vk.WaitForFences()", err)
	}
	return nil
}

// ResetFence implements interface
func (d *Device) ResetFence(id gfx.FenceID) error {
	fence, ok := d.fences[id]
	if !ok {
		return unknown("fence", uint64(id))
	}
	if err := vk.Error(vk.ResetFences(d.logicalDevice, 1, []vk.Fence{fence})); err != nil {
		return fail("vk.ResetFences()", err)
	}
	return nil
}

// DestroyFence implements interface
func (d *Device) DestroyFence(id gfx.FenceID) {
	if f, ok := d.fences[id]; ok {
		vk.DestroyFence(d.logicalDevice, f, nil)
		delete(d.fences, id)
	}
}
