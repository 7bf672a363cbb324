// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the rendering model the frame renderer is built on:
// opaque device handles, the formats and usages it understands, the
// declarative drawing description and the Device contract that the
// Vulkan implementation (package vkr) fulfils.
package gfx

// Handles are opaque indices into arenas owned by a Device.
// The zero value of every handle is the null handle.
type (
	SurfaceID        uint64
	BufferID         uint64
	ImageID          uint64
	ViewID           uint64
	SamplerID        uint64
	SwapchainID      uint64
	SemaphoreID      uint64
	FenceID          uint64
	ShaderModuleID   uint64
	RenderPassID     uint64
	FramebufferID    uint64
	PipelineID       uint64
	DescriptorPoolID uint64
	DescriptorSetID  uint64
	CommandBufferID  uint64
)

// Extent2D is the size of a surface, image or render area in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// UndefinedExtent is reported by surfaces that let the swapchain decide its size.
const UndefinedExtent = 0xFFFFFFFF

// Defined reports whether the extent carries a real size.
func (e Extent2D) Defined() bool {
	return e.Width != UndefinedExtent && e.Height != UndefinedExtent
}

// Empty reports whether either dimension is zero, as with a minimized window.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}
