// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkframe/core"
	"github.com/devblok/vkframe/gfx"
	"github.com/devblok/vkframe/gfx/gfxtest"
)

var fallback = gfx.Extent2D{Width: 640, Height: 480}

func TestSwapchainCreateDestroy(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)

	for n := 2; n <= 8; n++ {
		for round := 0; round < 2; round++ {
			sc, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, uint32(n), fallback)
			c.Assert(err, qt.IsNil, qt.Commentf("%d images, round %d", n, round))
			c.Assert(sc.ImageCount(), qt.Equals, n)
			c.Assert(sc.Views(), qt.HasLen, n)
			c.Assert(sc.Sync().Slots(), qt.Equals, n)
			c.Assert(sc.Format(), qt.Equals, gfx.FormatBGRA8Unorm)
			c.Assert(sc.DepthFormat(), qt.Equals, core.DepthFormat)
			c.Assert(sc.ImageExtent(), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
			c.Assert(dev.ImageLayout(firstImage(c, dev, sc)), qt.Equals, gfx.LayoutUndefined)
			c.Assert(dev.Live(gfxtest.KindSwapchain), qt.Equals, 1)
			c.Assert(dev.Live(gfxtest.KindFence), qt.Equals, n)
			c.Assert(dev.Live(gfxtest.KindSemaphore), qt.Equals, 2*n)
			sc.Destroy()
			c.Assert(dev.Live(gfxtest.KindSwapchain), qt.Equals, 0)
			c.Assert(dev.Live(gfxtest.KindFence), qt.Equals, 0)
		}
	}

	// only the shared sampler is left
	c.Assert(dev.LiveTotal(), qt.Equals, 1)
	ctx.Destroy()
	c.Assert(dev.LiveTotal(), qt.Equals, 0)
	checkViolations(t, dev)
}

// firstImage returns the first swapchain image, which no one rendered to.
func firstImage(c *qt.C, dev *gfxtest.Device, sc *core.Swapchain) gfx.ImageID {
	images := dev.SwapchainImages(sc.Handle())
	c.Assert(images, qt.HasLen, sc.ImageCount())
	return images[0]
}

func TestSwapchainDepthLayout(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)

	sc, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 2, fallback)
	c.Assert(err, qt.IsNil)
	defer sc.Destroy()

	var depth gfx.ImageID
	for _, s := range dev.Submissions() {
		for _, cmd := range s.Commands {
			if cmd.Op == gfxtest.OpImageBarrier && cmd.Barrier.Aspect == gfx.AspectDepth {
				depth = cmd.Barrier.Image
			}
		}
	}
	c.Assert(depth, qt.Not(qt.Equals), gfx.ImageID(0))
	c.Assert(dev.ImageLayout(depth), qt.Equals, gfx.LayoutDepthAttachment)
}

func TestSwapchainUnsupportedCount(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)

	for _, n := range []uint32{1, 9} {
		_, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, n, fallback)
		c.Assert(gfx.IsConfiguration(err), qt.Equals, true, qt.Commentf("%d images: %v", n, err))
	}
	c.Assert(dev.Live(gfxtest.KindSwapchain), qt.Equals, 0)
}

func TestSwapchainRequiresFifo(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)
	dev.SetCapabilities(gfxtest.DefaultSurface, gfx.SurfaceCapabilities{
		MinImageCount: 2,
		CurrentExtent: gfx.Extent2D{Width: 800, Height: 600},
		Formats:       []gfx.Format{gfx.FormatBGRA8Unorm},
		PresentModes:  []gfx.PresentMode{gfx.PresentModeMailbox, gfx.PresentModeImmediate},
	})

	_, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 3, fallback)
	c.Assert(gfx.IsConfiguration(err), qt.Equals, true)
}

func TestSwapchainFallbackExtent(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)
	dev.SetCapabilities(gfxtest.DefaultSurface, gfx.SurfaceCapabilities{
		MinImageCount: 2,
		CurrentExtent: gfx.Extent2D{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
		Formats:       []gfx.Format{gfx.FormatRGBA8Unorm},
		PresentModes:  []gfx.PresentMode{gfx.PresentModeFifo},
	})

	sc, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 4, fallback)
	c.Assert(err, qt.IsNil)
	defer sc.Destroy()

	c.Assert(sc.ImageExtent(), qt.Equals, fallback)
	c.Assert(sc.Format(), qt.Equals, gfx.FormatRGBA8Unorm)
	extent, err := sc.Extent()
	c.Assert(err, qt.IsNil)
	c.Assert(extent, qt.Equals, fallback)
}

func TestSwapchainImageCountMismatch(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)
	dev.SetImageCount(4)

	_, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 3, fallback)
	c.Assert(gfx.IsInvariant(err), qt.Equals, true)
	c.Assert(dev.Live(gfxtest.KindSwapchain), qt.Equals, 0)
	checkViolations(t, dev)
}

func TestSwapchainRecreate(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)

	sc, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 3, fallback)
	c.Assert(err, qt.IsNil)
	old := sc.Handle()

	resized := gfx.Extent2D{Width: 1024, Height: 768}
	dev.Resize(gfxtest.DefaultSurface, resized)
	extent, err := sc.Extent()
	c.Assert(err, qt.IsNil)
	c.Assert(extent, qt.Equals, resized)
	c.Assert(sc.ImageExtent(), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})

	c.Assert(sc.Recreate(), qt.IsNil)
	c.Assert(sc.Handle(), qt.Not(qt.Equals), old)
	c.Assert(sc.ImageExtent(), qt.Equals, resized)
	c.Assert(sc.ImageCount(), qt.Equals, 3)
	c.Assert(dev.Live(gfxtest.KindSwapchain), qt.Equals, 1)
	c.Assert(dev.Live(gfxtest.KindFence), qt.Equals, 3)

	sc.Destroy()
	c.Assert(dev.LiveTotal(), qt.Equals, 1)
	checkViolations(t, dev)
}

func TestSwapchainRecreateCountChange(t *testing.T) {
	c := qt.New(t)
	dev, ctx := newContext(t)

	sc, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 3, fallback)
	c.Assert(err, qt.IsNil)

	dev.SetImageCount(5)
	err = sc.Recreate()
	c.Assert(gfx.IsInvariant(err), qt.Equals, true)
	c.Assert(dev.Live(gfxtest.KindSwapchain), qt.Equals, 0)

	sc.Destroy()
	c.Assert(dev.LiveTotal(), qt.Equals, 1)
	checkViolations(t, dev)
}

func TestSynchronizerWithoutAcquire(t *testing.T) {
	c := qt.New(t)
	_, ctx := newContext(t)

	sc, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 2, fallback)
	c.Assert(err, qt.IsNil)
	defer sc.Destroy()

	c.Assert(gfx.IsInvariant(sc.Sync().Submit(1)), qt.Equals, true)
	_, err = sc.Sync().Present()
	c.Assert(gfx.IsInvariant(err), qt.Equals, true)
}
