// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest

import (
	"github.com/devblok/vkframe/gfx"
)

// SetManual switches between completing submissions immediately and
// keeping them pending until Complete is called.
func (d *Device) SetManual(manual bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.manual = manual
	if !manual {
		d.completeLocked(len(d.submissions))
	}
}

// Complete finishes up to n of the oldest pending submissions and returns
// how many it finished.
func (d *Device) Complete(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completeLocked(n)
}

// Pending returns the number of submissions the timeline has not finished.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, s := range d.submissions {
		if !s.Done {
			n++
		}
	}
	return n
}

// FailNext makes the next call of the named device method fail with a
// gfx.DeviceError wrapping ErrInjected.
func (d *Device) FailNext(op string) {
	d.FailAfter(op, 0)
}

// FailAfter lets n calls of the named device method succeed and fails the one after.
func (d *Device) FailAfter(op string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = &failure{skip: n, err: ErrInjected}
}

// SetImageCount makes every following swapchain have n images regardless
// of the requested count. Zero restores honoring the request.
func (d *Device) SetImageCount(n uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imageCount = n
}

// SetCapabilities replaces what the surface reports.
func (d *Device) SetCapabilities(id gfx.SurfaceID, caps gfx.SurfaceCapabilities) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.surfaces[id]
	if !ok {
		s = &surface{}
		d.surfaces[id] = s
	}
	s.caps = caps
}

// Resize changes the current extent of the surface and makes its swapchain
// out of date.
func (d *Device) Resize(id gfx.SurfaceID, extent gfx.Extent2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.surfaces[id]; ok {
		s.caps.CurrentExtent = extent
		s.generation++
	}
}

// StaleAtNextPresent lets the next acquire succeed and makes the surface
// go out of date right before the following present.
func (d *Device) StaleAtNextPresent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staleAtPresent = true
}

// SkipNextAcquire makes the next acquire hand out the image after the expected one.
func (d *Device) SkipNextAcquire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.skipAcquire = true
}

// FailNextFenceWait makes the next fence wait return an error.
func (d *Device) FailNextFenceWait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failFenceWait = true
}

// Live returns the number of live objects of a kind. Swapchain images
// count as images.
func (d *Device) Live(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveLocked(kind)
}

// LiveTotal returns the number of live objects of all kinds.
func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for k := Kind(0); k < kindCount; k++ {
		n += d.liveLocked(k)
	}
	return n
}

func (d *Device) liveLocked(kind Kind) int {
	switch kind {
	case KindBuffer:
		return len(d.buffers)
	case KindImage:
		return len(d.images)
	case KindView:
		return len(d.views)
	case KindSampler:
		return len(d.samplers)
	case KindSwapchain:
		return len(d.swapchains)
	case KindSemaphore:
		return len(d.semaphores)
	case KindFence:
		return len(d.fences)
	case KindShaderModule:
		return len(d.shaders)
	case KindRenderPass:
		return len(d.renderPasses)
	case KindFramebuffer:
		return len(d.framebuffers)
	case KindPipeline:
		return len(d.pipelines)
	case KindDescriptorPool:
		return len(d.pools)
	case KindDescriptorSet:
		return len(d.sets)
	case KindCommandBuffer:
		return len(d.commandBuffers)
	}
	return 0
}

// Violations returns every protocol violation seen so far.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Submissions returns a copy of the submission history, oldest first.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Submission, len(d.submissions))
	for i, s := range d.submissions {
		out[i] = *s
	}
	return out
}

// Presents returns every successful presentation, oldest first.
func (d *Device) Presents() []Present {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Present(nil), d.presents...)
}

// Commands returns the commands currently recorded in a command buffer.
func (d *Device) Commands(id gfx.CommandBufferID) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.commandBuffers[id]
	if !ok {
		return nil
	}
	return append([]Command(nil), cb.commands...)
}

// ImageData returns what the last executed copy wrote into the image.
func (d *Device) ImageData(id gfx.ImageID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[id]
	if !ok {
		return nil
	}
	return append([]byte(nil), img.data...)
}

// ImageLayout returns the layout the timeline last left the image in.
func (d *Device) ImageLayout(id gfx.ImageID) gfx.Layout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.images[id]; ok {
		return img.layout
	}
	return gfx.LayoutUndefined
}

// SwapchainImages returns the images of a live swapchain.
func (d *Device) SwapchainImages(id gfx.SwapchainID) []gfx.ImageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sc, ok := d.swapchains[id]; ok {
		return append([]gfx.ImageID(nil), sc.images...)
	}
	return nil
}

func (d *Device) completeLocked(n int) int {
	var done int
	for _, s := range d.submissions {
		if done == n {
			break
		}
		if s.Done {
			continue
		}
		d.execute(s)
		s.Done = true
		done++
	}
	if done > 0 {
		d.cond.Broadcast()
	}
	return done
}

// execute runs the commands of a submission against the tracked image
// state and signals its fence.
func (d *Device) execute(s *Submission) {
	var pass gfx.RenderPassBegin
	for _, c := range s.Commands {
		switch c.Op {
		case OpBeginRenderPass:
			pass = c.RenderPass
		case OpEndRenderPass:
			d.finishRenderPass(pass)
		case OpImageBarrier:
			img, ok := d.images[c.Barrier.Image]
			if !ok {
				d.violate("barrier on destroyed image %d", c.Barrier.Image)
				continue
			}
			if c.Barrier.OldLayout != gfx.LayoutUndefined && c.Barrier.OldLayout != img.layout {
				d.violate("barrier on image %d expects layout %d, image is in %d", c.Barrier.Image, c.Barrier.OldLayout, img.layout)
			}
			img.layout = c.Barrier.NewLayout
		case OpCopyBufferToImage:
			buf, bok := d.buffers[c.Copy.Buffer]
			img, iok := d.images[c.Copy.Image]
			if !bok || !iok {
				d.violate("copy between destroyed objects %d and %d", c.Copy.Buffer, c.Copy.Image)
				continue
			}
			if img.layout != gfx.LayoutTransferDst {
				d.violate("copy into image %d in layout %d", c.Copy.Image, img.layout)
			}
			img.data = append(img.data[:0], buf.mem...)
		}
	}
	if cb, ok := d.commandBuffers[s.Info.CommandBuffer]; ok {
		cb.pending--
	}
	if f, ok := d.fences[s.Info.Fence]; ok {
		f.signaled = true
	}
}

func (d *Device) finishRenderPass(begin gfx.RenderPassBegin) {
	rp, ok := d.renderPasses[begin.RenderPass]
	if !ok {
		d.violate("render pass %d destroyed while in use", begin.RenderPass)
		return
	}
	fb, ok := d.framebuffers[begin.Framebuffer]
	if !ok {
		d.violate("framebuffer %d destroyed while in use", begin.Framebuffer)
		return
	}
	attachments := fb.Attachments
	if rp.ColorFormat != gfx.FormatUndefined && len(attachments) > 0 {
		d.setViewLayout(attachments[0], rp.ColorFinal)
		attachments = attachments[1:]
	}
	if rp.DepthFormat != gfx.FormatUndefined && len(attachments) > 0 {
		d.setViewLayout(attachments[0], rp.DepthFinal)
	}
}

func (d *Device) setViewLayout(id gfx.ViewID, layout gfx.Layout) {
	v, ok := d.views[id]
	if !ok {
		d.violate("view %d destroyed while in use", id)
		return
	}
	if img, ok := d.images[v.image]; ok {
		img.layout = layout
	}
}
