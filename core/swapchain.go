// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/vkframe/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DepthFormat is the format of the swapchain depth image.
const DepthFormat = gfx.FormatD16Unorm

// Swapchain is the presentable image chain of a surface, together with its
// views, a shared depth image and the frame synchronizer.
type Swapchain struct {
	ctx *DeviceContext
	log *log.Entry

	surface  gfx.SurfaceID
	desired  uint32
	fallback gfx.Extent2D

	handle gfx.SwapchainID
	images []gfx.ImageID
	views  []gfx.ViewID
	format gfx.Format
	extent gfx.Extent2D
	depth  *GpuImage
	sync   *FrameSynchronizer
}

// CreateSwapchain creates a swapchain of exactly desiredCount images. The
// surface must support FIFO presentation, the first surface format is used
// and fallbackExtent only applies when the surface does not define one.
func CreateSwapchain(ctx *DeviceContext, surface gfx.SurfaceID, desiredCount uint32, fallbackExtent gfx.Extent2D) (*Swapchain, error) {
	s := &Swapchain{
		ctx:      ctx,
		log:      ctx.logger("swapchain"),
		surface:  surface,
		desired:  desiredCount,
		fallback: fallbackExtent,
	}
	if err := s.create(0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(old gfx.SwapchainID) error {
	const op = "create swapchain"
	dev := s.ctx.Device

	caps, err := dev.SurfaceCapabilities(s.surface)
	if err != nil {
		return errors.Wrap(err, "query surface capabilities")
	}
	if !supportsFifo(caps.PresentModes) {
		return gfx.Configurationf(op, "surface does not support FIFO presentation")
	}
	if len(caps.Formats) == 0 {
		return gfx.Configurationf(op, "surface reports no formats")
	}
	if s.desired < caps.MinImageCount || (caps.MaxImageCount > 0 && s.desired > caps.MaxImageCount) {
		return gfx.Configurationf(op, "%d images requested, surface supports %d to %d",
			s.desired, caps.MinImageCount, caps.MaxImageCount)
	}

	extent := caps.CurrentExtent
	if !extent.Defined() {
		extent = s.fallback
	}
	if extent.Empty() {
		return gfx.Configurationf(op, "surface extent is empty")
	}

	handle, images, err := dev.CreateSwapchain(gfx.SwapchainDesc{
		Surface:     s.surface,
		ImageCount:  s.desired,
		Format:      caps.Formats[0],
		Extent:      extent,
		PresentMode: gfx.PresentModeFifo,
		Old:         old,
	})
	if err != nil {
		return errors.Wrap(err, op)
	}
	if uint32(len(images)) != s.desired {
		dev.DestroySwapchain(handle)
		return gfx.Invariantf("swapchain has %d images, %d requested", len(images), s.desired)
	}

	s.handle = handle
	s.images = images
	s.format = caps.Formats[0]
	s.extent = extent

	for i, img := range images {
		view, err := dev.CreateImageView(img, gfx.ViewDesc{
			Format: s.format,
			Aspect: gfx.AspectColor,
			Layers: 1,
		})
		if err != nil {
			s.Destroy()
			return errors.Wrapf(err, "swapchain image view %d", i)
		}
		s.views = append(s.views, view)
	}

	if err := s.createDepth(); err != nil {
		s.Destroy()
		return errors.Wrap(err, "swapchain depth image")
	}

	if s.sync, err = newFrameSynchronizer(s.ctx, s.handle, len(images)); err != nil {
		s.Destroy()
		return err
	}

	s.log.WithFields(log.Fields{
		"images": len(images),
		"format": s.format,
		"width":  extent.Width,
		"height": extent.Height,
	}).Info("swapchain created")
	return nil
}

func (s *Swapchain) createDepth() error {
	class, err := gfx.ImageTraits(gfx.UsageDepthBuffer, DepthFormat)
	if err != nil {
		return err
	}
	dev := s.ctx.Device
	depth := &GpuImage{Class: class, Extent: s.extent}
	if depth.Image, err = dev.CreateImage(gfx.ImageDesc{
		Format: class.Format,
		Extent: s.extent,
		Layers: class.Layers,
		Usage:  class.DeviceUsage,
	}); err != nil {
		return err
	}
	s.depth = depth
	if depth.View, err = dev.CreateImageView(depth.Image, gfx.ViewDesc{
		Format: class.Format,
		Aspect: class.Aspect,
		Layers: class.Layers,
	}); err != nil {
		return err
	}
	return s.ctx.oneShot(func(cmd gfx.CommandBufferID) {
		dev.CmdImageBarrier(cmd, readBarrier(depth, gfx.LayoutUndefined, gfx.StageTopOfPipe, 0))
	})
}

// teardown destroys views, the depth image and the synchronizer,
// leaving the swapchain object itself alive.
func (s *Swapchain) teardown() {
	dev := s.ctx.Device
	for _, v := range s.views {
		dev.DestroyImageView(v)
	}
	s.views = nil
	s.images = nil
	if s.depth != nil {
		if s.depth.View != 0 {
			dev.DestroyImageView(s.depth.View)
		}
		dev.DestroyImage(s.depth.Image)
		s.depth = nil
	}
	if s.sync != nil {
		s.sync.destroy()
		s.sync = nil
	}
}

// Destroy destroys views, the depth image, the synchronization primitives
// and then the swapchain. The device must be idle.
func (s *Swapchain) Destroy() {
	s.teardown()
	if s.handle != 0 {
		s.ctx.Device.DestroySwapchain(s.handle)
		s.handle = 0
		s.log.Debug("swapchain destroyed")
	}
}

// Recreate rebuilds the swapchain for the current surface, passing the old
// swapchain as a hint and destroying it afterwards. A different number of
// images than before is an invariant error. The device must be idle.
func (s *Swapchain) Recreate() error {
	old := s.handle
	s.teardown()
	s.handle = 0

	err := s.create(old)
	if old != 0 {
		s.ctx.Device.DestroySwapchain(old)
	}
	return err
}

// Extent queries the surface for its current extent. When the surface
// leaves it undefined, the fallback extent is returned.
func (s *Swapchain) Extent() (gfx.Extent2D, error) {
	caps, err := s.ctx.Device.SurfaceCapabilities(s.surface)
	if err != nil {
		return gfx.Extent2D{}, errors.Wrap(err, "query surface capabilities")
	}
	if !caps.CurrentExtent.Defined() {
		return s.fallback, nil
	}
	return caps.CurrentExtent, nil
}

// ImageExtent is the extent the swapchain images were created with.
func (s *Swapchain) ImageExtent() gfx.Extent2D {
	return s.extent
}

// ImageCount returns the number of swapchain images.
func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// Format returns the surface format in use.
func (s *Swapchain) Format() gfx.Format {
	return s.format
}

// DepthFormat returns the format of the depth image.
func (s *Swapchain) DepthFormat() gfx.Format {
	if s.depth == nil {
		return gfx.FormatUndefined
	}
	return s.depth.Class.Format
}

// Views returns the view of every swapchain image.
func (s *Swapchain) Views() []gfx.ViewID {
	return s.views
}

// DepthView returns the view of the depth image.
func (s *Swapchain) DepthView() gfx.ViewID {
	if s.depth == nil {
		return 0
	}
	return s.depth.View
}

// Sync returns the frame synchronizer.
func (s *Swapchain) Sync() *FrameSynchronizer {
	return s.sync
}

// Handle returns the device handle of the swapchain.
func (s *Swapchain) Handle() gfx.SwapchainID {
	return s.handle
}

func supportsFifo(modes []gfx.PresentMode) bool {
	for _, m := range modes {
		if m == gfx.PresentModeFifo {
			return true
		}
	}
	return false
}
