// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfxtest

import (
	"fmt"

	"github.com/devblok/vkframe/gfx"
)

var _ gfx.Device = (*Device)(nil)

// SurfaceCapabilities implements gfx.Device.
func (d *Device) SurfaceCapabilities(id gfx.SurfaceID) (gfx.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("SurfaceCapabilities"); err != nil {
		return gfx.SurfaceCapabilities{}, err
	}
	s, ok := d.surfaces[id]
	if !ok {
		return gfx.SurfaceCapabilities{}, deviceError("SurfaceCapabilities", "unknown surface %d", id)
	}
	caps := s.caps
	caps.Formats = append([]gfx.Format(nil), s.caps.Formats...)
	caps.PresentModes = append([]gfx.PresentMode(nil), s.caps.PresentModes...)
	return caps, nil
}

// CreateBuffer implements gfx.Device.
func (d *Device) CreateBuffer(size uint64, usage gfx.BufferUsage) (gfx.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateBuffer"); err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, deviceError("CreateBuffer", "zero size")
	}
	id := gfx.BufferID(d.id())
	d.buffers[id] = &buffer{usage: usage, mem: make([]byte, size)}
	return id, nil
}

// MapBuffer implements gfx.Device.
func (d *Device) MapBuffer(id gfx.BufferID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("MapBuffer"); err != nil {
		return nil, err
	}
	b, ok := d.buffers[id]
	if !ok {
		return nil, deviceError("MapBuffer", "unknown buffer %d", id)
	}
	return b.mem, nil
}

// DestroyBuffer implements gfx.Device.
func (d *Device) DestroyBuffer(id gfx.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[id]; !ok {
		d.violate("destroy of unknown buffer %d", id)
		return
	}
	delete(d.buffers, id)
}

// CreateImage implements gfx.Device.
func (d *Device) CreateImage(desc gfx.ImageDesc) (gfx.ImageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImage"); err != nil {
		return 0, err
	}
	switch {
	case desc.Format == gfx.FormatUndefined:
		return 0, deviceError("CreateImage", "undefined format")
	case desc.Extent.Empty():
		return 0, deviceError("CreateImage", "empty extent")
	case desc.Layers == 0:
		return 0, deviceError("CreateImage", "no layers")
	case desc.Cube && desc.Layers != 6:
		return 0, deviceError("CreateImage", "cube image with %d layers", desc.Layers)
	}
	id := gfx.ImageID(d.id())
	d.images[id] = &image{desc: desc}
	return id, nil
}

// CreateImageView implements gfx.Device.
func (d *Device) CreateImageView(id gfx.ImageID, desc gfx.ViewDesc) (gfx.ViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImageView"); err != nil {
		return 0, err
	}
	img, ok := d.images[id]
	if !ok {
		return 0, deviceError("CreateImageView", "unknown image %d", id)
	}
	if desc.Layers > img.desc.Layers {
		return 0, deviceError("CreateImageView", "view of %d layers over %d", desc.Layers, img.desc.Layers)
	}
	img.views++
	vid := gfx.ViewID(d.id())
	d.views[vid] = &view{image: id, desc: desc}
	return vid, nil
}

// DestroyImageView implements gfx.Device.
func (d *Device) DestroyImageView(id gfx.ViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.views[id]
	if !ok {
		d.violate("destroy of unknown view %d", id)
		return
	}
	for fid, fb := range d.framebuffers {
		for _, a := range fb.Attachments {
			if a == id {
				d.violate("view %d destroyed before framebuffer %d", id, fid)
			}
		}
	}
	if img, ok := d.images[v.image]; ok {
		img.views--
	}
	delete(d.views, id)
}

// DestroyImage implements gfx.Device.
func (d *Device) DestroyImage(id gfx.ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[id]
	switch {
	case !ok:
		d.violate("destroy of unknown image %d", id)
		return
	case img.swapchain != 0:
		d.violate("destroy of image %d owned by swapchain %d", id, img.swapchain)
		return
	case img.views > 0:
		d.violate("image %d destroyed with %d live views", id, img.views)
	}
	delete(d.images, id)
}

// CreateSampler implements gfx.Device.
func (d *Device) CreateSampler() (gfx.SamplerID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSampler"); err != nil {
		return 0, err
	}
	id := gfx.SamplerID(d.id())
	d.samplers[id] = struct{}{}
	return id, nil
}

// DestroySampler implements gfx.Device.
func (d *Device) DestroySampler(id gfx.SamplerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.samplers[id]; !ok {
		d.violate("destroy of unknown sampler %d", id)
		return
	}
	delete(d.samplers, id)
}

// CreateSwapchain implements gfx.Device.
func (d *Device) CreateSwapchain(desc gfx.SwapchainDesc) (gfx.SwapchainID, []gfx.ImageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSwapchain"); err != nil {
		return 0, nil, err
	}
	s, ok := d.surfaces[desc.Surface]
	if !ok {
		return 0, nil, deviceError("CreateSwapchain", "unknown surface %d", desc.Surface)
	}
	if !hasFormat(s.caps.Formats, desc.Format) {
		return 0, nil, deviceError("CreateSwapchain", "format %s not supported", desc.Format)
	}
	if !hasMode(s.caps.PresentModes, desc.PresentMode) {
		return 0, nil, deviceError("CreateSwapchain", "present mode %d not supported", desc.PresentMode)
	}
	if desc.ImageCount < s.caps.MinImageCount || (s.caps.MaxImageCount > 0 && desc.ImageCount > s.caps.MaxImageCount) {
		return 0, nil, deviceError("CreateSwapchain", "image count %d out of range", desc.ImageCount)
	}
	if desc.Extent.Empty() {
		return 0, nil, deviceError("CreateSwapchain", "empty extent")
	}
	if desc.Old != 0 {
		if _, ok := d.swapchains[desc.Old]; !ok {
			d.violate("swapchain created with unknown old swapchain %d", desc.Old)
		}
	}
	if s.swapchain != 0 && s.swapchain != desc.Old {
		if _, live := d.swapchains[s.swapchain]; live {
			d.violate("surface %d already has swapchain %d", desc.Surface, s.swapchain)
		}
	}

	count := desc.ImageCount
	if d.imageCount > 0 {
		count = d.imageCount
	}
	id := gfx.SwapchainID(d.id())
	sc := &swapchain{desc: desc, generation: s.generation}
	for i := uint32(0); i < count; i++ {
		img := gfx.ImageID(d.id())
		d.images[img] = &image{
			desc: gfx.ImageDesc{
				Format: desc.Format,
				Extent: desc.Extent,
				Layers: 1,
				Usage:  gfx.ImageUsageColorAttachment,
			},
			swapchain: id,
		}
		sc.images = append(sc.images, img)
	}
	d.swapchains[id] = sc
	s.swapchain = id
	return id, append([]gfx.ImageID(nil), sc.images...), nil
}

// DestroySwapchain implements gfx.Device.
func (d *Device) DestroySwapchain(id gfx.SwapchainID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc, ok := d.swapchains[id]
	if !ok {
		d.violate("destroy of unknown swapchain %d", id)
		return
	}
	for _, img := range sc.images {
		if d.images[img].views > 0 {
			d.violate("swapchain %d destroyed while image %d has views", id, img)
		}
		delete(d.images, img)
	}
	delete(d.swapchains, id)
	if s, ok := d.surfaces[sc.desc.Surface]; ok && s.swapchain == id {
		s.swapchain = 0
	}
}

func (d *Device) outOfDate(sc *swapchain) bool {
	s, ok := d.surfaces[sc.desc.Surface]
	return !ok || s.generation != sc.generation || s.swapchain != d.swapchainID(sc)
}

func (d *Device) swapchainID(sc *swapchain) gfx.SwapchainID {
	for id, other := range d.swapchains {
		if other == sc {
			return id
		}
	}
	return 0
}

// AcquireNextImage implements gfx.Device. Images are handed out in order.
func (d *Device) AcquireNextImage(id gfx.SwapchainID, sem gfx.SemaphoreID) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AcquireNextImage"); err != nil {
		return 0, err
	}
	sc, ok := d.swapchains[id]
	if !ok {
		return 0, deviceError("AcquireNextImage", "unknown swapchain %d", id)
	}
	if d.outOfDate(sc) {
		return 0, gfx.ErrSwapchainOutOfDate
	}
	s, ok := d.semaphores[sem]
	if !ok {
		return 0, deviceError("AcquireNextImage", "unknown semaphore %d", sem)
	}
	if s.signals > 0 {
		d.violate("acquire signals semaphore %d that is already signaled", sem)
	}
	s.signals++
	if d.skipAcquire {
		d.skipAcquire = false
		sc.next = (sc.next + 1) % uint32(len(sc.images))
	}
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return idx, nil
}

// QueuePresent implements gfx.Device.
func (d *Device) QueuePresent(id gfx.SwapchainID, idx uint32, wait gfx.SemaphoreID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("QueuePresent"); err != nil {
		return err
	}
	sc, ok := d.swapchains[id]
	if !ok {
		return deviceError("QueuePresent", "unknown swapchain %d", id)
	}
	if idx >= uint32(len(sc.images)) {
		return deviceError("QueuePresent", "image %d out of range", idx)
	}
	if s, ok := d.semaphores[wait]; ok {
		if s.signals == 0 {
			d.violate("present waits on semaphore %d that is never signaled", wait)
		} else {
			s.signals--
		}
	} else if wait != 0 {
		d.violate("present waits on unknown semaphore %d", wait)
	}
	if d.staleAtPresent {
		d.staleAtPresent = false
		if s, ok := d.surfaces[sc.desc.Surface]; ok {
			s.generation++
		}
	}
	if d.outOfDate(sc) {
		return gfx.ErrSwapchainOutOfDate
	}
	d.presents = append(d.presents, Present{Swapchain: id, Image: idx})
	return nil
}

// CreateSemaphore implements gfx.Device.
func (d *Device) CreateSemaphore() (gfx.SemaphoreID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSemaphore"); err != nil {
		return 0, err
	}
	id := gfx.SemaphoreID(d.id())
	d.semaphores[id] = &semaphore{}
	return id, nil
}

// DestroySemaphore implements gfx.Device.
func (d *Device) DestroySemaphore(id gfx.SemaphoreID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.semaphores[id]; !ok {
		d.violate("destroy of unknown semaphore %d", id)
		return
	}
	delete(d.semaphores, id)
}

// CreateFence implements gfx.Device.
func (d *Device) CreateFence(signaled bool) (gfx.FenceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFence"); err != nil {
		return 0, err
	}
	id := gfx.FenceID(d.id())
	d.fences[id] = &fence{signaled: signaled}
	return id, nil
}

// WaitForFence implements gfx.Device, it blocks until a pending
// submission carrying the fence completes.
func (d *Device) WaitForFence(id gfx.FenceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFenceWait {
		d.failFenceWait = false
		return deviceError("WaitForFence", "device lost")
	}
	for {
		f, ok := d.fences[id]
		if !ok {
			return deviceError("WaitForFence", "unknown fence %d", id)
		}
		if f.signaled {
			return nil
		}
		if !d.fencePending(id) {
			return deviceError("WaitForFence", "fence %d would never signal", id)
		}
		d.cond.Wait()
	}
}

func (d *Device) fencePending(id gfx.FenceID) bool {
	for _, s := range d.submissions {
		if !s.Done && s.Info.Fence == id {
			return true
		}
	}
	return false
}

// ResetFence implements gfx.Device.
func (d *Device) ResetFence(id gfx.FenceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[id]
	if !ok {
		return deviceError("ResetFence", "unknown fence %d", id)
	}
	if d.fencePending(id) {
		d.violate("reset of fence %d in use by a pending submission", id)
	}
	f.signaled = false
	return nil
}

// DestroyFence implements gfx.Device.
func (d *Device) DestroyFence(id gfx.FenceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[id]; !ok {
		d.violate("destroy of unknown fence %d", id)
		return
	}
	if d.fencePending(id) {
		d.violate("fence %d destroyed while in use", id)
	}
	delete(d.fences, id)
}

// CreateShaderModule implements gfx.Device.
func (d *Device) CreateShaderModule(code []byte) (gfx.ShaderModuleID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateShaderModule"); err != nil {
		return 0, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, deviceError("CreateShaderModule", "code of %d bytes is not SPIR-V", len(code))
	}
	id := gfx.ShaderModuleID(d.id())
	d.shaders[id] = len(code)
	return id, nil
}

// DestroyShaderModule implements gfx.Device.
func (d *Device) DestroyShaderModule(id gfx.ShaderModuleID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.shaders[id]; !ok {
		d.violate("destroy of unknown shader module %d", id)
		return
	}
	delete(d.shaders, id)
}

// CreateRenderPass implements gfx.Device.
func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPassID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateRenderPass"); err != nil {
		return 0, err
	}
	if desc.ColorFormat == gfx.FormatUndefined && desc.DepthFormat == gfx.FormatUndefined {
		return 0, deviceError("CreateRenderPass", "no attachments")
	}
	if desc.DepthFormat != gfx.FormatUndefined && !desc.DepthFormat.IsDepth() {
		return 0, deviceError("CreateRenderPass", "depth attachment of format %s", desc.DepthFormat)
	}
	id := gfx.RenderPassID(d.id())
	d.renderPasses[id] = desc
	return id, nil
}

// DestroyRenderPass implements gfx.Device.
func (d *Device) DestroyRenderPass(id gfx.RenderPassID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.renderPasses[id]; !ok {
		d.violate("destroy of unknown render pass %d", id)
		return
	}
	for pid, p := range d.pipelines {
		if p.RenderPass == id {
			d.violate("render pass %d destroyed before pipeline %d", id, pid)
		}
	}
	for fid, fb := range d.framebuffers {
		if fb.RenderPass == id {
			d.violate("render pass %d destroyed before framebuffer %d", id, fid)
		}
	}
	delete(d.renderPasses, id)
}

// CreateFramebuffer implements gfx.Device.
func (d *Device) CreateFramebuffer(desc gfx.FramebufferDesc) (gfx.FramebufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFramebuffer"); err != nil {
		return 0, err
	}
	rp, ok := d.renderPasses[desc.RenderPass]
	if !ok {
		return 0, deviceError("CreateFramebuffer", "unknown render pass %d", desc.RenderPass)
	}
	var want int
	if rp.ColorFormat != gfx.FormatUndefined {
		want++
	}
	if rp.DepthFormat != gfx.FormatUndefined {
		want++
	}
	if len(desc.Attachments) != want {
		return 0, deviceError("CreateFramebuffer", "%d attachments for a render pass with %d", len(desc.Attachments), want)
	}
	for _, a := range desc.Attachments {
		v, ok := d.views[a]
		if !ok {
			return 0, deviceError("CreateFramebuffer", "unknown view %d", a)
		}
		if img := d.images[v.image]; img.desc.Extent != desc.Extent {
			return 0, deviceError("CreateFramebuffer", "view %d is %dx%d, framebuffer %dx%d",
				a, img.desc.Extent.Width, img.desc.Extent.Height, desc.Extent.Width, desc.Extent.Height)
		}
	}
	id := gfx.FramebufferID(d.id())
	desc.Attachments = append([]gfx.ViewID(nil), desc.Attachments...)
	d.framebuffers[id] = desc
	return id, nil
}

// DestroyFramebuffer implements gfx.Device.
func (d *Device) DestroyFramebuffer(id gfx.FramebufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.framebuffers[id]; !ok {
		d.violate("destroy of unknown framebuffer %d", id)
		return
	}
	delete(d.framebuffers, id)
}

// CreatePipeline implements gfx.Device.
func (d *Device) CreatePipeline(desc gfx.PipelineDesc) (gfx.PipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreatePipeline"); err != nil {
		return 0, err
	}
	rp, ok := d.renderPasses[desc.RenderPass]
	if !ok {
		return 0, deviceError("CreatePipeline", "unknown render pass %d", desc.RenderPass)
	}
	if _, ok := d.shaders[desc.Vertex]; !ok {
		return 0, deviceError("CreatePipeline", "unknown vertex shader %d", desc.Vertex)
	}
	if _, ok := d.shaders[desc.Fragment]; !ok {
		return 0, deviceError("CreatePipeline", "unknown fragment shader %d", desc.Fragment)
	}
	if desc.DepthTest && rp.DepthFormat == gfx.FormatUndefined {
		return 0, deviceError("CreatePipeline", "depth test without a depth attachment")
	}
	if desc.ColorOutput && rp.ColorFormat == gfx.FormatUndefined {
		return 0, deviceError("CreatePipeline", "color output without a color attachment")
	}
	if desc.Layout.Stride == 0 {
		return 0, deviceError("CreatePipeline", "zero vertex stride")
	}
	id := gfx.PipelineID(d.id())
	d.pipelines[id] = desc
	return id, nil
}

// DestroyPipeline implements gfx.Device.
func (d *Device) DestroyPipeline(id gfx.PipelineID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelines[id]; !ok {
		d.violate("destroy of unknown pipeline %d", id)
		return
	}
	for sid, s := range d.sets {
		if s.pipeline == id {
			d.violate("pipeline %d destroyed before descriptor set %d", id, sid)
		}
	}
	delete(d.pipelines, id)
}

// CreateDescriptorPool implements gfx.Device.
func (d *Device) CreateDescriptorPool(desc gfx.DescriptorPoolDesc) (gfx.DescriptorPoolID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	if desc.MaxSets == 0 {
		return 0, deviceError("CreateDescriptorPool", "zero sets")
	}
	id := gfx.DescriptorPoolID(d.id())
	d.pools[id] = &pool{desc: desc}
	return id, nil
}

// DestroyDescriptorPool implements gfx.Device.
func (d *Device) DestroyDescriptorPool(id gfx.DescriptorPoolID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[id]
	if !ok {
		d.violate("destroy of unknown descriptor pool %d", id)
		return
	}
	for _, s := range p.sets {
		delete(d.sets, s)
	}
	delete(d.pools, id)
}

// AllocateDescriptorSet implements gfx.Device.
func (d *Device) AllocateDescriptorSet(pid gfx.DescriptorPoolID, pipeline gfx.PipelineID) (gfx.DescriptorSetID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateDescriptorSet"); err != nil {
		return 0, err
	}
	p, ok := d.pools[pid]
	if !ok {
		return 0, deviceError("AllocateDescriptorSet", "unknown pool %d", pid)
	}
	desc, ok := d.pipelines[pipeline]
	if !ok {
		return 0, deviceError("AllocateDescriptorSet", "unknown pipeline %d", pipeline)
	}
	if uint32(len(p.sets)) == p.desc.MaxSets ||
		p.uniforms+1 > p.desc.Uniforms ||
		p.samplers+uint32(desc.Textures) > p.desc.Samplers {
		return 0, deviceError("AllocateDescriptorSet", "pool %d out of memory", pid)
	}
	p.uniforms++
	p.samplers += uint32(desc.Textures)
	id := gfx.DescriptorSetID(d.id())
	p.sets = append(p.sets, id)
	d.sets[id] = &set{pool: pid, pipeline: pipeline}
	return id, nil
}

// UpdateDescriptorSet implements gfx.Device.
func (d *Device) UpdateDescriptorSet(id gfx.DescriptorSetID, w gfx.DescriptorWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sets[id]
	if !ok {
		return deviceError("UpdateDescriptorSet", "unknown descriptor set %d", id)
	}
	desc := d.pipelines[s.pipeline]
	if len(w.Views) != desc.Textures {
		d.violate("descriptor set %d written with %d views, layout has %d", id, len(w.Views), desc.Textures)
	}
	if b, ok := d.buffers[w.Uniform]; !ok || uint64(len(b.mem)) < w.UniformSize {
		d.violate("descriptor set %d uniform buffer %d missing or too small", id, w.Uniform)
	}
	for _, v := range w.Views {
		if _, ok := d.views[v]; !ok {
			d.violate("descriptor set %d references unknown view %d", id, v)
		}
	}
	if len(w.Views) > 0 {
		if _, ok := d.samplers[w.Sampler]; !ok {
			d.violate("descriptor set %d references unknown sampler %d", id, w.Sampler)
		}
	}
	w.Views = append([]gfx.ViewID(nil), w.Views...)
	s.write = &w
	return nil
}

// AllocateCommandBuffer implements gfx.Device.
func (d *Device) AllocateCommandBuffer() (gfx.CommandBufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateCommandBuffer"); err != nil {
		return 0, err
	}
	id := gfx.CommandBufferID(d.id())
	d.commandBuffers[id] = &commandBuffer{}
	return id, nil
}

// FreeCommandBuffer implements gfx.Device.
func (d *Device) FreeCommandBuffer(id gfx.CommandBufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.commandBuffers[id]
	if !ok {
		d.violate("free of unknown command buffer %d", id)
		return
	}
	if cb.pending > 0 {
		d.violate("command buffer %d freed while pending", id)
	}
	delete(d.commandBuffers, id)
}

// BeginCommandBuffer implements gfx.Device.
func (d *Device) BeginCommandBuffer(id gfx.CommandBufferID, oneShot bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("BeginCommandBuffer"); err != nil {
		return err
	}
	cb, ok := d.commandBuffers[id]
	if !ok {
		return deviceError("BeginCommandBuffer", "unknown command buffer %d", id)
	}
	if cb.pending > 0 {
		d.violate("command buffer %d rerecorded while pending", id)
	}
	cb.commands = cb.commands[:0]
	cb.recording = true
	return nil
}

// EndCommandBuffer implements gfx.Device.
func (d *Device) EndCommandBuffer(id gfx.CommandBufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("EndCommandBuffer"); err != nil {
		return err
	}
	cb, ok := d.commandBuffers[id]
	if !ok {
		return deviceError("EndCommandBuffer", "unknown command buffer %d", id)
	}
	if !cb.recording {
		d.violate("end of command buffer %d that is not recording", id)
	}
	cb.recording = false
	return nil
}

func (d *Device) record(id gfx.CommandBufferID, c Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.commandBuffers[id]
	if !ok || !cb.recording {
		d.violate("%s recorded into command buffer %d that is not recording", c.Op, id)
		return
	}
	cb.commands = append(cb.commands, c)
}

// CmdBeginRenderPass implements gfx.Device.
func (d *Device) CmdBeginRenderPass(id gfx.CommandBufferID, begin gfx.RenderPassBegin) {
	d.record(id, Command{Op: OpBeginRenderPass, RenderPass: begin})
}

// CmdEndRenderPass implements gfx.Device.
func (d *Device) CmdEndRenderPass(id gfx.CommandBufferID) {
	d.record(id, Command{Op: OpEndRenderPass})
}

// CmdBindPipeline implements gfx.Device.
func (d *Device) CmdBindPipeline(id gfx.CommandBufferID, p gfx.PipelineID) {
	d.record(id, Command{Op: OpBindPipeline, Pipeline: p})
}

// CmdBindDescriptorSet implements gfx.Device.
func (d *Device) CmdBindDescriptorSet(id gfx.CommandBufferID, p gfx.PipelineID, s gfx.DescriptorSetID) {
	d.record(id, Command{Op: OpBindDescriptorSet, Pipeline: p, Set: s})
}

// CmdBindVertexBuffer implements gfx.Device.
func (d *Device) CmdBindVertexBuffer(id gfx.CommandBufferID, b gfx.BufferID) {
	d.record(id, Command{Op: OpBindVertexBuffer, Buffer: b})
}

// CmdBindIndexBuffer implements gfx.Device.
func (d *Device) CmdBindIndexBuffer(id gfx.CommandBufferID, b gfx.BufferID) {
	d.record(id, Command{Op: OpBindIndexBuffer, Buffer: b})
}

// CmdDraw implements gfx.Device.
func (d *Device) CmdDraw(id gfx.CommandBufferID, vertices uint32) {
	d.record(id, Command{Op: OpDraw, Count: vertices})
}

// CmdDrawIndexed implements gfx.Device.
func (d *Device) CmdDrawIndexed(id gfx.CommandBufferID, indices uint32) {
	d.record(id, Command{Op: OpDrawIndexed, Count: indices})
}

// CmdImageBarrier implements gfx.Device.
func (d *Device) CmdImageBarrier(id gfx.CommandBufferID, b gfx.ImageBarrier) {
	d.record(id, Command{Op: OpImageBarrier, Barrier: b})
}

// CmdCopyBufferToImage implements gfx.Device.
func (d *Device) CmdCopyBufferToImage(id gfx.CommandBufferID, c gfx.BufferImageCopy) {
	d.record(id, Command{Op: OpCopyBufferToImage, Copy: c})
}

// QueueSubmit implements gfx.Device.
func (d *Device) QueueSubmit(info gfx.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("QueueSubmit"); err != nil {
		return err
	}
	cb, ok := d.commandBuffers[info.CommandBuffer]
	if !ok {
		return deviceError("QueueSubmit", "unknown command buffer %d", info.CommandBuffer)
	}
	if cb.recording {
		d.violate("command buffer %d submitted while recording", info.CommandBuffer)
	}
	if info.Wait != 0 {
		s, ok := d.semaphores[info.Wait]
		switch {
		case !ok:
			return deviceError("QueueSubmit", "unknown wait semaphore %d", info.Wait)
		case s.signals == 0:
			d.violate("submit waits on semaphore %d that is never signaled", info.Wait)
		default:
			s.signals--
		}
	}
	if info.Signal != 0 {
		s, ok := d.semaphores[info.Signal]
		if !ok {
			return deviceError("QueueSubmit", "unknown signal semaphore %d", info.Signal)
		}
		if s.signals > 0 {
			d.violate("submit signals semaphore %d that is already signaled", info.Signal)
		}
		s.signals++
	}
	if info.Fence != 0 {
		f, ok := d.fences[info.Fence]
		if !ok {
			return deviceError("QueueSubmit", "unknown fence %d", info.Fence)
		}
		if f.signaled || d.fencePending(info.Fence) {
			d.violate("submit with fence %d that is not reset", info.Fence)
		}
	}
	cb.pending++
	sub := &Submission{Info: info, Commands: append([]Command(nil), cb.commands...)}
	d.submissions = append(d.submissions, sub)
	if !d.manual {
		d.completeLocked(len(d.submissions))
	}
	return nil
}

// QueueWaitIdle implements gfx.Device by finishing every pending submission.
func (d *Device) QueueWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("QueueWaitIdle"); err != nil {
		return err
	}
	d.completeLocked(len(d.submissions))
	return nil
}

// DeviceWaitIdle implements gfx.Device by finishing every pending submission.
func (d *Device) DeviceWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("DeviceWaitIdle"); err != nil {
		return err
	}
	d.completeLocked(len(d.submissions))
	return nil
}

func hasFormat(formats []gfx.Format, f gfx.Format) bool {
	for _, x := range formats {
		if x == f {
			return true
		}
	}
	return false
}

func hasMode(modes []gfx.PresentMode, m gfx.PresentMode) bool {
	for _, x := range modes {
		if x == m {
			return true
		}
	}
	return false
}

func (s *Submission) String() string {
	return fmt.Sprintf("submit cb %d (%d commands, done %t)", s.Info.CommandBuffer, len(s.Commands), s.Done)
}
