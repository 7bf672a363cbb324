// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkframe/gfx"
	"github.com/devblok/vkframe/gfx/gfxtest"
)

func TestFailInjection(t *testing.T) {
	c := qt.New(t)
	dev := gfxtest.New()

	dev.FailAfter("CreateBuffer", 1)
	_, err := dev.CreateBuffer(16, gfx.BufferUsageVertex)
	c.Assert(err, qt.IsNil)
	_, err = dev.CreateBuffer(16, gfx.BufferUsageVertex)
	c.Assert(gfx.IsDevice(err), qt.Equals, true)
	c.Assert(errors.Is(err, gfxtest.ErrInjected), qt.Equals, true)
	_, err = dev.CreateBuffer(16, gfx.BufferUsageVertex)
	c.Assert(err, qt.IsNil)
	c.Assert(dev.Live(gfxtest.KindBuffer), qt.Equals, 2)
}

func TestDestroyOrderViolations(t *testing.T) {
	c := qt.New(t)
	dev := gfxtest.New()

	rp, err := dev.CreateRenderPass(gfx.RenderPassDesc{ColorFormat: gfx.FormatRGBA8Unorm})
	c.Assert(err, qt.IsNil)
	module, err := dev.CreateShaderModule([]byte{1, 2, 3, 4})
	c.Assert(err, qt.IsNil)
	p, err := dev.CreatePipeline(gfx.PipelineDesc{
		RenderPass:  rp,
		Vertex:      module,
		Fragment:    module,
		Layout:      gfx.VertexLayout{Stride: gfx.VertexStride},
		ColorOutput: true,
	})
	c.Assert(err, qt.IsNil)

	dev.DestroyRenderPass(rp)
	c.Assert(dev.Violations(), qt.HasLen, 1)
	dev.DestroyPipeline(p)
	dev.DestroyPipeline(p)
	c.Assert(dev.Violations(), qt.HasLen, 2)
}

func TestManualCompletion(t *testing.T) {
	c := qt.New(t)
	dev := gfxtest.New()
	dev.SetManual(true)

	fence, err := dev.CreateFence(false)
	c.Assert(err, qt.IsNil)
	cb, err := dev.AllocateCommandBuffer()
	c.Assert(err, qt.IsNil)
	c.Assert(dev.BeginCommandBuffer(cb, true), qt.IsNil)
	c.Assert(dev.EndCommandBuffer(cb), qt.IsNil)

	// nothing was submitted with the fence yet
	c.Assert(gfx.IsDevice(dev.WaitForFence(fence)), qt.Equals, true)

	c.Assert(dev.QueueSubmit(gfx.SubmitInfo{CommandBuffer: cb, Fence: fence}), qt.IsNil)
	c.Assert(dev.Pending(), qt.Equals, 1)

	done := make(chan error, 1)
	go func() { done <- dev.WaitForFence(fence) }()
	c.Assert(dev.Complete(5), qt.Equals, 1)
	c.Assert(<-done, qt.IsNil)
	c.Assert(dev.Pending(), qt.Equals, 0)
	c.Assert(dev.Submissions()[0].Done, qt.Equals, true)

	dev.FreeCommandBuffer(cb)
	dev.DestroyFence(fence)
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}

func TestCopyNeedsTransferLayout(t *testing.T) {
	c := qt.New(t)
	dev := gfxtest.New()

	buf, err := dev.CreateBuffer(4, gfx.BufferUsageTransferSrc)
	c.Assert(err, qt.IsNil)
	img, err := dev.CreateImage(gfx.ImageDesc{Format: gfx.FormatRGBA8Unorm, Extent: gfx.Extent2D{Width: 1, Height: 1}, Layers: 1})
	c.Assert(err, qt.IsNil)
	cb, err := dev.AllocateCommandBuffer()
	c.Assert(err, qt.IsNil)

	c.Assert(dev.BeginCommandBuffer(cb, true), qt.IsNil)
	dev.CmdCopyBufferToImage(cb, gfx.BufferImageCopy{Buffer: buf, Image: img, Extent: gfx.Extent2D{Width: 1, Height: 1}, Layers: 1})
	c.Assert(dev.EndCommandBuffer(cb), qt.IsNil)
	c.Assert(dev.QueueSubmit(gfx.SubmitInfo{CommandBuffer: cb}), qt.IsNil)

	c.Assert(dev.Violations(), qt.HasLen, 1)
	c.Assert(dev.Commands(cb), qt.HasLen, 1)
}

func TestSwapchainOutOfDate(t *testing.T) {
	c := qt.New(t)
	dev := gfxtest.New()

	sc, images, err := dev.CreateSwapchain(gfx.SwapchainDesc{
		Surface:     gfxtest.DefaultSurface,
		ImageCount:  2,
		Format:      gfx.FormatBGRA8Unorm,
		Extent:      gfx.Extent2D{Width: 800, Height: 600},
		PresentMode: gfx.PresentModeFifo,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(images, qt.HasLen, 2)

	sem, err := dev.CreateSemaphore()
	c.Assert(err, qt.IsNil)
	idx, err := dev.AcquireNextImage(sc, sem)
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, uint32(0))
	c.Assert(dev.QueuePresent(sc, idx, sem), qt.IsNil)

	dev.Resize(gfxtest.DefaultSurface, gfx.Extent2D{Width: 640, Height: 480})
	_, err = dev.AcquireNextImage(sc, sem)
	c.Assert(err, qt.Equals, gfx.ErrSwapchainOutOfDate)

	caps, err := dev.SurfaceCapabilities(gfxtest.DefaultSurface)
	c.Assert(err, qt.IsNil)
	c.Assert(caps.CurrentExtent, qt.Equals, gfx.Extent2D{Width: 640, Height: 480})

	dev.DestroySemaphore(sem)
	dev.DestroySwapchain(sc)
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
	c.Assert(dev.Violations(), qt.HasLen, 0)
}
