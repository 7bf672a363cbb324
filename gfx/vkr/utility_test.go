// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"encoding/binary"
	"testing"

	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
)

func TestSliceUint32(t *testing.T) {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], 0x07230203)
	binary.LittleEndian.PutUint32(data[4:], 1)
	binary.LittleEndian.PutUint32(data[8:], 0xdeadbeef)

	words := SliceUint32(data)
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(words))
	}
	if words[0] != 0x07230203 || words[2] != 0xdeadbeef {
		t.Errorf("unexpected words %x", words)
	}
	if SliceUint32([]byte{1, 2}) != nil {
		t.Error("short code should give no words")
	}
}

func TestSafeStrings(t *testing.T) {
	safe := safeStrings([]string{"VK_KHR_swapchain", ""})
	if safe[0] != "VK_KHR_swapchain\x00" || safe[1] != "\x00" {
		t.Errorf("strings not terminated: %q", safe)
	}
}

func TestFormatsRoundTrip(t *testing.T) {
	for _, f := range []gfx.Format{
		gfx.FormatRGBA8Unorm,
		gfx.FormatRGBA8SRGB,
		gfx.FormatBGRA8Unorm,
		gfx.FormatBGRA8SRGB,
		gfx.FormatD16Unorm,
	} {
		back, ok := gfxFormat(vkFormat(f))
		if !ok || back != f {
			t.Errorf("%s mapped back to %s", f, back)
		}
	}
	if _, ok := gfxFormat(vk.FormatR16g16b16a16Sfloat); ok {
		t.Error("unknown surface format should not map")
	}
}

func TestLayoutsMapped(t *testing.T) {
	for l := gfx.LayoutUndefined; l <= gfx.LayoutPresentSrc; l++ {
		if _, ok := layouts[l]; !ok {
			t.Errorf("layout %d has no mapping", l)
		}
	}
}

func TestPresentModesRoundTrip(t *testing.T) {
	for m := gfx.PresentModeImmediate; m <= gfx.PresentModeFifoRelaxed; m++ {
		back, ok := gfxPresentMode(vkPresentMode(m))
		if !ok || back != m {
			t.Errorf("present mode %d mapped back to %d", m, back)
		}
	}
}

func TestVertexFormats(t *testing.T) {
	cases := []struct {
		components uint32
		format     vk.Format
		ok         bool
	}{
		{0, vk.FormatUndefined, false},
		{2, vk.FormatR32g32Sfloat, true},
		{3, vk.FormatR32g32b32Sfloat, true},
		{5, vk.FormatUndefined, false},
	}
	for _, c := range cases {
		format, ok := vkVertexFormat(c.components)
		if ok != c.ok || format != c.format {
			t.Errorf("%d components: got %d/%t", c.components, format, ok)
		}
	}
}

func TestFlags(t *testing.T) {
	usage := vkImageUsage(gfx.ImageUsageColorAttachment | gfx.ImageUsageSampled)
	if usage != vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageSampledBit) {
		t.Errorf("unexpected image usage %b", usage)
	}
	stage := vkStage(gfx.StageTransfer | gfx.StageFragmentShader)
	if stage != vk.PipelineStageFlags(vk.PipelineStageTransferBit|vk.PipelineStageFragmentShaderBit) {
		t.Errorf("unexpected stage %b", stage)
	}
	if vkAspect(gfx.AspectDepth) != vk.ImageAspectFlags(vk.ImageAspectDepthBit) {
		t.Error("depth aspect not mapped")
	}
}

func TestUnknownHandle(t *testing.T) {
	err := unknown("fence", 7)
	if !gfx.IsDevice(err) {
		t.Fatalf("expected a device error, got %T", err)
	}
	if err.Error() != "fence 7: unknown handle" {
		t.Errorf("unexpected message %q", err)
	}
}

func TestSubpassDependencyDepthOnly(t *testing.T) {
	dep := subpassDependency(false, true)
	late := vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
	if dep.SrcStageMask&late == 0 || dep.DstStageMask&late == 0 {
		t.Errorf("late fragment tests not in stage masks %b/%b", dep.SrcStageMask, dep.DstStageMask)
	}
	if dep.SrcStageMask&vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) == 0 {
		t.Errorf("sampling by an earlier pass not waited on, src stage %b", dep.SrcStageMask)
	}
	if dep.SrcAccessMask&vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit) == 0 {
		t.Errorf("earlier depth writes not made available, src access %b", dep.SrcAccessMask)
	}
	if dep.DstAccessMask&vk.AccessFlags(vk.AccessColorAttachmentWriteBit) != 0 {
		t.Error("depth only pass should not touch color access")
	}
}

func TestSubpassDependencyColorOnly(t *testing.T) {
	dep := subpassDependency(true, false)
	color := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	if dep.SrcStageMask != color || dep.DstStageMask != color {
		t.Errorf("unexpected stage masks %b/%b", dep.SrcStageMask, dep.DstStageMask)
	}
	if dep.SrcAccessMask != 0 {
		t.Errorf("unexpected src access %b", dep.SrcAccessMask)
	}
	if dep.SrcSubpass != vk.SubpassExternal || dep.DstSubpass != 0 {
		t.Error("dependency must come from outside the pass")
	}
}
