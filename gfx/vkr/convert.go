// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
)

var formats = map[gfx.Format]vk.Format{
	gfx.FormatUndefined:  vk.FormatUndefined,
	gfx.FormatRGBA8Unorm: vk.FormatR8g8b8a8Unorm,
	gfx.FormatRGBA8SRGB:  vk.FormatR8g8b8a8Srgb,
	gfx.FormatBGRA8Unorm: vk.FormatB8g8r8a8Unorm,
	gfx.FormatBGRA8SRGB:  vk.FormatB8g8r8a8Srgb,
	gfx.FormatD16Unorm:   vk.FormatD16Unorm,
}

func vkFormat(f gfx.Format) vk.Format {
	return formats[f]
}

// gfxFormat maps back a surface format, reporting false for
// formats the renderer does not know.
func gfxFormat(f vk.Format) (gfx.Format, bool) {
	for k, v := range formats {
		if v == f && k != gfx.FormatUndefined {
			return k, true
		}
	}
	return gfx.FormatUndefined, false
}

var layouts = map[gfx.Layout]vk.ImageLayout{
	gfx.LayoutUndefined:       vk.ImageLayoutUndefined,
	gfx.LayoutTransferDst:     vk.ImageLayoutTransferDstOptimal,
	gfx.LayoutShaderReadOnly:  vk.ImageLayoutShaderReadOnlyOptimal,
	gfx.LayoutColorAttachment: vk.ImageLayoutColorAttachmentOptimal,
	gfx.LayoutDepthAttachment: vk.ImageLayoutDepthStencilAttachmentOptimal,
	gfx.LayoutPresentSrc:      vk.ImageLayoutPresentSrc,
}

func vkLayout(l gfx.Layout) vk.ImageLayout {
	return layouts[l]
}

func vkAspect(a gfx.Aspect) vk.ImageAspectFlags {
	if a == gfx.AspectDepth {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func vkImageUsage(u gfx.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&gfx.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	if u&gfx.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if u&gfx.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&gfx.ImageUsageDepthAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}

func vkBufferUsage(u gfx.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if u&gfx.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if u&gfx.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if u&gfx.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if u&gfx.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	return vk.BufferUsageFlags(flags)
}

func vkStage(s gfx.PipelineStage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	if s&gfx.StageTopOfPipe != 0 {
		flags |= vk.PipelineStageTopOfPipeBit
	}
	if s&gfx.StageTransfer != 0 {
		flags |= vk.PipelineStageTransferBit
	}
	if s&gfx.StageFragmentShader != 0 {
		flags |= vk.PipelineStageFragmentShaderBit
	}
	if s&gfx.StageEarlyFragmentTests != 0 {
		flags |= vk.PipelineStageEarlyFragmentTestsBit
	}
	if s&gfx.StageLateFragmentTests != 0 {
		flags |= vk.PipelineStageLateFragmentTestsBit
	}
	if s&gfx.StageColorAttachmentOutput != 0 {
		flags |= vk.PipelineStageColorAttachmentOutputBit
	}
	return vk.PipelineStageFlags(flags)
}

func vkAccess(a gfx.Access) vk.AccessFlags {
	var flags vk.AccessFlagBits
	if a&gfx.AccessTransferWrite != 0 {
		flags |= vk.AccessTransferWriteBit
	}
	if a&gfx.AccessShaderRead != 0 {
		flags |= vk.AccessShaderReadBit
	}
	if a&gfx.AccessColorAttachmentWrite != 0 {
		flags |= vk.AccessColorAttachmentWriteBit
	}
	if a&gfx.AccessDepthAttachmentWrite != 0 {
		flags |= vk.AccessDepthStencilAttachmentWriteBit
	}
	return vk.AccessFlags(flags)
}

var presentModes = map[gfx.PresentMode]vk.PresentMode{
	gfx.PresentModeImmediate:   vk.PresentModeImmediate,
	gfx.PresentModeMailbox:     vk.PresentModeMailbox,
	gfx.PresentModeFifo:        vk.PresentModeFifo,
	gfx.PresentModeFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func vkPresentMode(m gfx.PresentMode) vk.PresentMode {
	return presentModes[m]
}

func gfxPresentMode(m vk.PresentMode) (gfx.PresentMode, bool) {
	for k, v := range presentModes {
		if v == m {
			return k, true
		}
	}
	return 0, false
}

// vertexFormats holds the attribute format per float component count.
var vertexFormats = [...]vk.Format{
	1: vk.FormatR32Sfloat,
	2: vk.FormatR32g32Sfloat,
	3: vk.FormatR32g32b32Sfloat,
	4: vk.FormatR32g32b32a32Sfloat,
}

func vkVertexFormat(components uint32) (vk.Format, bool) {
	if components == 0 || int(components) >= len(vertexFormats) {
		return vk.FormatUndefined, false
	}
	return vertexFormats[components], true
}
