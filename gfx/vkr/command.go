// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
)

// AllocateCommandBuffer implements interface
func (d *Device) AllocateCommandBuffer() (gfx.CommandBufferID, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(d.logicalDevice, &cbai, commandBuffers)); err != nil {
		return 0, fail("vk.AllocateCommandBuffers()", err)
	}
	id := gfx.CommandBufferID(d.handle())
	d.commandBuffers[id] = commandBuffers[0]
	return id, nil
}

// FreeCommandBuffer implements interface
func (d *Device) FreeCommandBuffer(id gfx.CommandBufferID) {
	if cmd, ok := d.commandBuffers[id]; ok {
		vk.FreeCommandBuffers(d.logicalDevice, d.commandPool, 1, []vk.CommandBuffer{cmd})
		delete(d.commandBuffers, id)
	}
}

// BeginCommandBuffer implements interface
func (d *Device) BeginCommandBuffer(id gfx.CommandBufferID, oneShot bool) error {
	cmd, ok := d.commandBuffers[id]
	if !ok {
		return unknown("command buffer", uint64(id))
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneShot {
		cbbi.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := vk.Error(vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return fail("vk.BeginCommandBuffer()", err)
	}
	return nil
}

// EndCommandBuffer implements interface
func (d *Device) EndCommandBuffer(id gfx.CommandBufferID) error {
	cmd, ok := d.commandBuffers[id]
	if !ok {
		return unknown("command buffer", uint64(id))
	}
	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return fail("vk.EndCommandBuffer()", err)
	}
	return nil
}

// CmdBeginRenderPass implements interface
func (d *Device) CmdBeginRenderPass(id gfx.CommandBufferID, begin gfx.RenderPassBegin) {
	cmd := d.commandBuffers[id]
	rp := d.renderPasses[begin.RenderPass]
	if cmd == nil || rp == nil {
		return
	}

	var clearValues []vk.ClearValue
	if rp.color {
		var color vk.ClearValue
		color.SetColor(begin.Clear.Color[:])
		clearValues = append(clearValues, color)
	}
	if rp.depth {
		var depth vk.ClearValue
		depth.SetDepthStencil(begin.Clear.Depth, 0)
		clearValues = append(clearValues, depth)
	}

	area := vk.Extent2D{
		Width:  begin.Extent.Width,
		Height: begin.Extent.Height,
	}
	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.renderPass,
		Framebuffer: d.framebuffers[begin.Framebuffer],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: area,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cmd, &rpbi, vk.SubpassContentsInline)

	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(area.Width),
		Height:   float32(area.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: area,
	}
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})
}

// CmdEndRenderPass implements interface
func (d *Device) CmdEndRenderPass(id gfx.CommandBufferID) {
	if cmd, ok := d.commandBuffers[id]; ok {
		vk.CmdEndRenderPass(cmd)
	}
}

// CmdBindPipeline implements interface
func (d *Device) CmdBindPipeline(id gfx.CommandBufferID, pipelineID gfx.PipelineID) {
	cmd, ok := d.commandBuffers[id]
	p, found := d.pipelines[pipelineID]
	if !ok || !found {
		return
	}
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p.pipeline)
}

// CmdBindDescriptorSet implements interface
func (d *Device) CmdBindDescriptorSet(id gfx.CommandBufferID, pipelineID gfx.PipelineID, setID gfx.DescriptorSetID) {
	cmd, ok := d.commandBuffers[id]
	p, found := d.pipelines[pipelineID]
	set, allocated := d.sets[setID]
	if !ok || !found || !allocated {
		return
	}
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, p.layout, 0, 1, []vk.DescriptorSet{set.set}, 0, nil)
}

// CmdBindVertexBuffer implements interface
func (d *Device) CmdBindVertexBuffer(id gfx.CommandBufferID, bufferID gfx.BufferID) {
	cmd, ok := d.commandBuffers[id]
	b, found := d.buffers[bufferID]
	if !ok || !found {
		return
	}
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{b.buffer}, []vk.DeviceSize{0})
}

// CmdBindIndexBuffer implements interface
func (d *Device) CmdBindIndexBuffer(id gfx.CommandBufferID, bufferID gfx.BufferID) {
	cmd, ok := d.commandBuffers[id]
	b, found := d.buffers[bufferID]
	if !ok || !found {
		return
	}
	vk.CmdBindIndexBuffer(cmd, b.buffer, 0, vk.IndexTypeUint32)
}

// CmdDraw implements interface
func (d *Device) CmdDraw(id gfx.CommandBufferID, vertices uint32) {
	if cmd, ok := d.commandBuffers[id]; ok {
		vk.CmdDraw(cmd, vertices, 1, 0, 0)
	}
}

// CmdDrawIndexed implements interface
func (d *Device) CmdDrawIndexed(id gfx.CommandBufferID, indices uint32) {
	if cmd, ok := d.commandBuffers[id]; ok {
		vk.CmdDrawIndexed(cmd, indices, 1, 0, 0, 0)
	}
}

// CmdImageBarrier implements interface
func (d *Device) CmdImageBarrier(id gfx.CommandBufferID, b gfx.ImageBarrier) {
	cmd, ok := d.commandBuffers[id]
	img, found := d.images[b.Image]
	if !ok || !found {
		return
	}
	layers := b.Layers
	if layers == 0 {
		layers = 1
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vkAccess(b.SrcAccess),
		DstAccessMask:       vkAccess(b.DstAccess),
		OldLayout:           vkLayout(b.OldLayout),
		NewLayout:           vkLayout(b.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vkAspect(b.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}
	vk.CmdPipelineBarrier(cmd, vkStage(b.SrcStage), vkStage(b.DstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// CmdCopyBufferToImage implements interface
func (d *Device) CmdCopyBufferToImage(id gfx.CommandBufferID, c gfx.BufferImageCopy) {
	cmd, ok := d.commandBuffers[id]
	buf, bufOK := d.buffers[c.Buffer]
	img, imgOK := d.images[c.Image]
	if !ok || !bufOK || !imgOK {
		return
	}
	layers := c.Layers
	if layers == 0 {
		layers = 1
	}

	bic := vk.BufferImageCopy{
		ImageOffset: vk.Offset3D{},
		ImageExtent: vk.Extent3D{
			Width:  c.Extent.Width,
			Height: c.Extent.Height,
			Depth:  1,
		},
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}
	vk.CmdCopyBufferToImage(cmd, buf.buffer, img.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{bic})
}

// QueueSubmit implements interface
func (d *Device) QueueSubmit(s gfx.SubmitInfo) error {
	cmd, ok := d.commandBuffers[s.CommandBuffer]
	if !ok {
		return unknown("command buffer", uint64(s.CommandBuffer))
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if sem, ok := d.semaphores[s.Wait]; ok {
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{sem}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{vkStage(s.WaitStage)}
	}
	if sem, ok := d.semaphores[s.Signal]; ok {
		submit.SignalSemaphoreCount = 1
		submit.PSignalSemaphores = []vk.Semaphore{sem}
	}

	var fence vk.Fence
	if s.Fence != 0 {
		if fence, ok = d.fences[s.Fence]; !ok {
			return unknown("fence", uint64(s.Fence))
		}
	}

	if err := vk.Error(vk.QueueSubmit(d.deviceQueue, 1, []vk.SubmitInfo{submit}, fence)); err != nil {
		return fail("vk.QueueSubmit()", err)
	}
	return nil
}
