// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/devblok/vkframe/gfx"
	vk "github.com/devblok/vulkan"
)

type renderPass struct {
	renderPass vk.RenderPass
	color      bool
	depth      bool
}

type pipeline struct {
	pipeline  vk.Pipeline
	layout    vk.PipelineLayout
	setLayout vk.DescriptorSetLayout
}

type descriptorSet struct {
	set  vk.DescriptorSet
	pool gfx.DescriptorPoolID
}

// CreateShaderModule implements interface
func (d *Device) CreateShaderModule(code []byte) (gfx.ShaderModuleID, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, fail("vk.CreateShaderModule()", fmt.Errorf("code size %d is not a multiple of 4", len(code)))
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    SliceUint32(code),
	}

	var shader vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(d.logicalDevice, &smci, nil, &shader)); err != nil {
		return 0, fail("vk.CreateShaderModule()", err)
	}
	id := gfx.ShaderModuleID(d.handle())
	d.shaders[id] = shader
	return id, nil
}

// DestroyShaderModule implements interface
func (d *Device) DestroyShaderModule(id gfx.ShaderModuleID) {
	if s, ok := d.shaders[id]; ok {
		vk.DestroyShaderModule(d.logicalDevice, s, nil)
		delete(d.shaders, id)
	}
}

// CreateRenderPass implements interface
func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPassID, error) {
	loadOp := vk.AttachmentLoadOpClear
	if desc.Load {
		loadOp = vk.AttachmentLoadOpLoad
	}
	initial := func(l gfx.Layout) vk.ImageLayout {
		if !desc.Load {
			return vk.ImageLayoutUndefined
		}
		return vkLayout(l)
	}

	var (
		attachments []vk.AttachmentDescription
		colorRefs   []vk.AttachmentReference
		depthRef    *vk.AttachmentReference
	)
	if desc.ColorFormat != gfx.FormatUndefined {
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vkFormat(desc.ColorFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initial(desc.ColorInitial),
			FinalLayout:    vkLayout(desc.ColorFinal),
		})
	}
	if desc.DepthFormat != gfx.FormatUndefined {
		depthRef = &vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vkFormat(desc.DepthFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initial(desc.DepthInitial),
			FinalLayout:    vkLayout(desc.DepthFinal),
		})
	}
	if len(attachments) == 0 {
		return 0, gfx.Configurationf("create render pass", "no attachments")
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}


	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency(len(colorRefs) > 0, depthRef != nil)},
	}

	var rp vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.logicalDevice, &rpci, nil, &rp)); err != nil {
		return 0, fail("vk.CreateRenderPass()", err)
	}
	id := gfx.RenderPassID(d.handle())
	d.renderPasses[id] = &renderPass{
		renderPass: rp,
		color:      len(colorRefs) > 0,
		depth:      depthRef != nil,
	}
	return id, nil
}

// subpassDependency orders the pass after earlier use of its attachments.
// A depth attachment may have been written by the depth tests or sampled
// by a fragment shader of an earlier pass.
func subpassDependency(color, depth bool) vk.SubpassDependency {
	var (
		srcStage  vk.PipelineStageFlagBits
		dstStage  vk.PipelineStageFlagBits
		srcAccess vk.AccessFlagBits
		dstAccess vk.AccessFlagBits
	)
	if color {
		srcStage |= vk.PipelineStageColorAttachmentOutputBit
		dstStage |= vk.PipelineStageColorAttachmentOutputBit
		dstAccess |= vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit
	}
	if depth {
		srcStage |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit | vk.PipelineStageFragmentShaderBit
		dstStage |= vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit
		srcAccess |= vk.AccessDepthStencilAttachmentWriteBit
		dstAccess |= vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit
	}
	return vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(srcStage),
		SrcAccessMask: vk.AccessFlags(srcAccess),
		DstStageMask:  vk.PipelineStageFlags(dstStage),
		DstAccessMask: vk.AccessFlags(dstAccess),
	}
}

// DestroyRenderPass implements interface
func (d *Device) DestroyRenderPass(id gfx.RenderPassID) {
	if rp, ok := d.renderPasses[id]; ok {
		vk.DestroyRenderPass(d.logicalDevice, rp.renderPass, nil)
		delete(d.renderPasses, id)
	}
}

// CreateFramebuffer implements interface
func (d *Device) CreateFramebuffer(desc gfx.FramebufferDesc) (gfx.FramebufferID, error) {
	rp, ok := d.renderPasses[desc.RenderPass]
	if !ok {
		return 0, unknown("render pass", uint64(desc.RenderPass))
	}
	attachments := make([]vk.ImageView, 0, len(desc.Attachments))
	for _, v := range desc.Attachments {
		view, ok := d.views[v]
		if !ok {
			return 0, unknown("view", uint64(v))
		}
		attachments = append(attachments, view)
	}

	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           desc.Extent.Width,
		Height:          desc.Extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(d.logicalDevice, &fci, nil, &framebuffer)); err != nil {
		return 0, fail("vk.CreateFramebuffer()", err)
	}
	id := gfx.FramebufferID(d.handle())
	d.framebuffers[id] = framebuffer
	return id, nil
}

// DestroyFramebuffer implements interface
func (d *Device) DestroyFramebuffer(id gfx.FramebufferID) {
	if fb, ok := d.framebuffers[id]; ok {
		vk.DestroyFramebuffer(d.logicalDevice, fb, nil)
		delete(d.framebuffers, id)
	}
}

func (d *Device) createSetLayout(textures int) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}}
	for i := 0; i < textures; i++ {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i + 1),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var setLayout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.logicalDevice, &dslci, nil, &setLayout)); err != nil {
		return setLayout, fail("vk.CreateDescriptorSetLayout()", err)
	}
	return setLayout, nil
}

// CreatePipeline implements interface. Viewport and scissor are
// dynamic and set when a render pass begins.
func (d *Device) CreatePipeline(desc gfx.PipelineDesc) (gfx.PipelineID, error) {
	rp, ok := d.renderPasses[desc.RenderPass]
	if !ok {
		return 0, unknown("render pass", uint64(desc.RenderPass))
	}
	vert, ok := d.shaders[desc.Vertex]
	if !ok {
		return 0, unknown("vertex shader", uint64(desc.Vertex))
	}
	frag, ok := d.shaders[desc.Fragment]
	if !ok {
		return 0, unknown("fragment shader", uint64(desc.Fragment))
	}

	attributes := make([]vk.VertexInputAttributeDescription, 0, len(desc.Layout.Attributes))
	for _, a := range desc.Layout.Attributes {
		format, ok := vkVertexFormat(a.Components)
		if !ok {
			return 0, gfx.Configurationf("create pipeline", "attribute %d has %d components", a.Location, a.Components)
		}
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   format,
			Offset:   a.Offset,
		})
	}
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    desc.Layout.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}

	setLayout, err := d.createSetLayout(desc.Textures)
	if err != nil {
		return 0, err
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	var pipelineLayout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(d.logicalDevice, &plci, nil, &pipelineLayout)); err != nil {
		vk.DestroyDescriptorSetLayout(d.logicalDevice, setLayout, nil)
		return 0, fail("vk.CreatePipelineLayout()", err)
	}

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageVertexBit,
		Module: vert,
		PName:  safeString("main"),
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vk.ShaderStageFragmentBit,
		Module: frag,
		PName:  safeString("main"),
	}}

	depthTest := vk.Bool32(vk.False)
	if desc.DepthTest && rp.depth {
		depthTest = vk.True
	}

	var blendAttachments []vk.PipelineColorBlendAttachmentState
	if desc.ColorOutput && rp.color {
		blendAttachments = []vk.PipelineColorBlendAttachmentState{{
			ColorWriteMask: 0xF,
			BlendEnable:    vk.False,
		}}
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       depthTest,
			DepthWriteEnable:      depthTest,
			DepthCompareOp:        vk.CompareOpLess,
			DepthBoundsTestEnable: vk.False,
			StencilTestEnable:     vk.False,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blendAttachments)),
			PAttachments:    blendAttachments,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     pipelineLayout,
		RenderPass: rp.renderPass,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(d.logicalDevice, d.pipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		vk.DestroyPipelineLayout(d.logicalDevice, pipelineLayout, nil)
		vk.DestroyDescriptorSetLayout(d.logicalDevice, setLayout, nil)
		return 0, fail("vk.CreateGraphicsPipelines()", err)
	}

	id := gfx.PipelineID(d.handle())
	d.pipelines[id] = &pipeline{
		pipeline:  pipelines[0],
		layout:    pipelineLayout,
		setLayout: setLayout,
	}
	return id, nil
}

// DestroyPipeline implements interface
func (d *Device) DestroyPipeline(id gfx.PipelineID) {
	p, ok := d.pipelines[id]
	if !ok {
		return
	}
	vk.DestroyPipeline(d.logicalDevice, p.pipeline, nil)
	vk.DestroyPipelineLayout(d.logicalDevice, p.layout, nil)
	vk.DestroyDescriptorSetLayout(d.logicalDevice, p.setLayout, nil)
	delete(d.pipelines, id)
}

// CreateDescriptorPool implements interface
func (d *Device) CreateDescriptorPool(desc gfx.DescriptorPoolDesc) (gfx.DescriptorPoolID, error) {
	var poolSizes []vk.DescriptorPoolSize
	if desc.Uniforms > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: desc.Uniforms,
		})
	}
	if desc.Samplers > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: desc.Samplers,
		})
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var descriptorPool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(d.logicalDevice, &dpci, nil, &descriptorPool)); err != nil {
		return 0, fail("vk.CreateDescriptorPool()", err)
	}
	id := gfx.DescriptorPoolID(d.handle())
	d.pools[id] = descriptorPool
	return id, nil
}

// DestroyDescriptorPool implements interface
func (d *Device) DestroyDescriptorPool(id gfx.DescriptorPoolID) {
	pool, ok := d.pools[id]
	if !ok {
		return
	}
	for setID, set := range d.sets {
		if set.pool == id {
			delete(d.sets, setID)
		}
	}
	vk.DestroyDescriptorPool(d.logicalDevice, pool, nil)
	delete(d.pools, id)
}

// AllocateDescriptorSet implements interface
func (d *Device) AllocateDescriptorSet(poolID gfx.DescriptorPoolID, pipelineID gfx.PipelineID) (gfx.DescriptorSetID, error) {
	pool, ok := d.pools[poolID]
	if !ok {
		return 0, unknown("descriptor pool", uint64(poolID))
	}
	p, ok := d.pipelines[pipelineID]
	if !ok {
		return 0, unknown("pipeline", uint64(pipelineID))
	}

	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{p.setLayout},
	}
	var set vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(d.logicalDevice, &dsai, &set)); err != nil {
		return 0, fail("vk.AllocateDescriptorSets()", err)
	}
	id := gfx.DescriptorSetID(d.handle())
	d.sets[id] = descriptorSet{set: set, pool: poolID}
	return id, nil
}

// UpdateDescriptorSet implements interface
func (d *Device) UpdateDescriptorSet(id gfx.DescriptorSetID, write gfx.DescriptorWrite) error {
	set, ok := d.sets[id]
	if !ok {
		return unknown("descriptor set", uint64(id))
	}
	uniform, ok := d.buffers[write.Uniform]
	if !ok {
		return unknown("buffer", uint64(write.Uniform))
	}

	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set.set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: uniform.buffer,
			Offset: 0,
			Range:  vk.DeviceSize(write.UniformSize),
		}},
	}}

	if len(write.Views) > 0 {
		sampler, ok := d.samplers[write.Sampler]
		if !ok {
			return unknown("sampler", uint64(write.Sampler))
		}
		for i, v := range write.Views {
			view, ok := d.views[v]
			if !ok {
				return unknown("view", uint64(v))
			}
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set.set,
				DstBinding:      uint32(i + 1),
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				PImageInfo: []vk.DescriptorImageInfo{{
					ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
					ImageView:   view,
					Sampler:     sampler,
				}},
			})
		}
	}

	vk.UpdateDescriptorSets(d.logicalDevice, uint32(len(writes)), writes, 0, nil)
	return nil
}
