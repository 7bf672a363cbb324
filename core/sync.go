// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/vkframe/gfx"
	"github.com/pkg/errors"
)

// PresentStatus is the outcome of a presentation.
type PresentStatus int

// Present statuses
const (
	PresentOK PresentStatus = iota
	PresentOutOfDate
)

type frameSync struct {
	available gfx.SemaphoreID
	finished  gfx.SemaphoreID
	fence     gfx.FenceID
}

// FrameSynchronizer holds one image-available semaphore, render-finished
// semaphore and frame fence per swapchain image, and cycles through them.
// A slot's fence is waited on before the slot is reused, which is the
// only place the frame loop blocks.
type FrameSynchronizer struct {
	ctx       *DeviceContext
	swapchain gfx.SwapchainID

	frames  []frameSync
	next    int
	current int
}

func newFrameSynchronizer(ctx *DeviceContext, swapchain gfx.SwapchainID, n int) (*FrameSynchronizer, error) {
	fs := &FrameSynchronizer{
		ctx:       ctx,
		swapchain: swapchain,
		current:   -1,
	}
	dev := ctx.Device
	for i := 0; i < n; i++ {
		var (
			f   frameSync
			err error
		)
		if f.available, err = dev.CreateSemaphore(); err != nil {
			fs.destroy()
			return nil, errors.Wrapf(err, "image available semaphore %d", i)
		}
		if f.finished, err = dev.CreateSemaphore(); err != nil {
			dev.DestroySemaphore(f.available)
			fs.destroy()
			return nil, errors.Wrapf(err, "render finished semaphore %d", i)
		}
		// signaled, so that the first use of a slot does not wait
		if f.fence, err = dev.CreateFence(true); err != nil {
			dev.DestroySemaphore(f.available)
			dev.DestroySemaphore(f.finished)
			fs.destroy()
			return nil, errors.Wrapf(err, "frame fence %d", i)
		}
		fs.frames = append(fs.frames, f)
	}
	return fs, nil
}

// Slots returns the number of frame slots.
func (fs *FrameSynchronizer) Slots() int {
	return len(fs.frames)
}

// Acquire acquires the next swapchain image, waits until the frame that
// last used its slot has finished and returns the slot. The image index
// must equal the slot. gfx.ErrSwapchainOutOfDate is returned as is, and
// the slot is not consumed.
func (fs *FrameSynchronizer) Acquire() (int, error) {
	slot := fs.next
	f := fs.frames[slot]
	dev := fs.ctx.Device

	idx, err := dev.AcquireNextImage(fs.swapchain, f.available)
	if err == gfx.ErrSwapchainOutOfDate {
		return -1, err
	} else if err != nil {
		return -1, errors.Wrap(err, "acquire next image")
	}
	if int(idx) != slot {
		return -1, gfx.Invariantf("acquired image %d, expected %d", idx, slot)
	}

	if err := dev.WaitForFence(f.fence); err != nil {
		return -1, gfx.Invariantf("wait for frame fence %d: %s", slot, err)
	}
	if err := dev.ResetFence(f.fence); err != nil {
		return -1, errors.Wrapf(err, "reset frame fence %d", slot)
	}

	fs.current = slot
	fs.next = (slot + 1) % len(fs.frames)
	return slot, nil
}

// Submit submits the command buffer of the acquired slot. It waits for the
// image at the color output stage and signals the slot's fence.
func (fs *FrameSynchronizer) Submit(cmd gfx.CommandBufferID) error {
	if fs.current < 0 {
		return gfx.Invariantf("submit without an acquired image")
	}
	f := fs.frames[fs.current]
	return errors.Wrap(fs.ctx.Device.QueueSubmit(gfx.SubmitInfo{
		CommandBuffer: cmd,
		Wait:          f.available,
		WaitStage:     gfx.StageColorAttachmentOutput,
		Signal:        f.finished,
		Fence:         f.fence,
	}), "submit frame")
}

// Present presents the acquired image once rendering finished.
func (fs *FrameSynchronizer) Present() (PresentStatus, error) {
	if fs.current < 0 {
		return PresentOK, gfx.Invariantf("present without an acquired image")
	}
	slot := fs.current
	fs.current = -1

	err := fs.ctx.Device.QueuePresent(fs.swapchain, uint32(slot), fs.frames[slot].finished)
	switch {
	case err == gfx.ErrSwapchainOutOfDate:
		return PresentOutOfDate, nil
	case err != nil:
		return PresentOK, errors.Wrap(err, "present")
	}
	return PresentOK, nil
}

// destroy releases every primitive, the device must be idle.
func (fs *FrameSynchronizer) destroy() {
	dev := fs.ctx.Device
	for _, f := range fs.frames {
		dev.DestroySemaphore(f.available)
		dev.DestroySemaphore(f.finished)
		dev.DestroyFence(f.fence)
	}
	fs.frames = nil
	fs.current = -1
	fs.next = 0
}
