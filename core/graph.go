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

// pntLayout is the vertex input of gfx.VertexFormatPNT32:
// position, normal and texture coordinates.
var pntLayout = gfx.VertexLayout{
	Stride: gfx.VertexStride,
	Attributes: []gfx.VertexAttribute{
		{Location: 0, Offset: 0, Components: 3},
		{Location: 1, Offset: 12, Components: 3},
		{Location: 2, Offset: 24, Components: 2},
	},
}

// StepResources are the device objects of one step for one swapchain image.
type StepResources struct {
	Shader   gfx.ShaderKind
	Pipeline gfx.PipelineID
	Uniform  gfx.BufferID
	Set      gfx.DescriptorSetID

	uniform []byte
}

// PassResources are the device objects of one pass for one swapchain image.
type PassResources struct {
	RenderPass  gfx.RenderPassID
	Framebuffer gfx.FramebufferID
	Extent      gfx.Extent2D
	Steps       []StepResources
}

// PerImageResources is everything drawing into one swapchain image needs,
// including the command buffer recorded for it.
type PerImageResources struct {
	Passes   []PassResources
	Pool     gfx.DescriptorPoolID
	Commands gfx.CommandBufferID
}

// Graph holds the per-image resources built from a drawing description,
// one entry per swapchain image.
type Graph struct {
	Images      []*PerImageResources
	Description gfx.DrawingDescription
}

// GraphBuilder turns drawing descriptions into graphs.
type GraphBuilder struct {
	ctx     *DeviceContext
	log     *log.Entry
	shaders *ShaderLibrary
}

// NewGraphBuilder returns a builder that takes shaders from the library.
func NewGraphBuilder(ctx *DeviceContext, shaders *ShaderLibrary) *GraphBuilder {
	return &GraphBuilder{
		ctx:     ctx,
		log:     ctx.logger("graph"),
		shaders: shaders,
	}
}

type stepPlan struct {
	step     gfx.Step
	info     gfx.ShaderClass
	shaders  ShaderPair
	vertices *GpuBuffer
	textures []*GpuImage
}

type passPlan struct {
	pass   gfx.Pass
	color  *GpuImage
	depth  *GpuImage
	extent gfx.Extent2D
	rp     gfx.RenderPassDesc
	steps  []stepPlan
}

// Build creates one PerImageResources per swapchain image. The whole
// description is checked against the store and the shader library before
// any device object is created, and a failure halfway destroys everything
// built so far.
func (b *GraphBuilder) Build(desc gfx.DrawingDescription, store *ResourceStore, sc *Swapchain) (*Graph, error) {
	plans, err := b.plan(desc, store, sc)
	if err != nil {
		return nil, err
	}

	g := &Graph{Description: desc}
	for i := 0; i < sc.ImageCount(); i++ {
		res, err := b.buildImage(i, plans, sc)
		if err != nil {
			b.Destroy(g)
			return nil, errors.Wrapf(err, "build resources of image %d", i)
		}
		g.Images = append(g.Images, res)
	}

	b.log.WithFields(log.Fields{
		"images": len(g.Images),
		"passes": len(desc.Passes),
		"steps":  desc.StepCount(),
	}).Info("render graph built")
	return g, nil
}

// Rebuild waits for the device to go idle, destroys the graph and builds
// a new one from the description. between runs once the old graph is gone,
// when it is not nil, and a failure there skips the build. The returned
// graph is the one left alive: g when the device never went idle.
func (b *GraphBuilder) Rebuild(g *Graph, desc gfx.DrawingDescription, store *ResourceStore, sc *Swapchain, between func() error) (*Graph, error) {
	if err := b.ctx.WaitIdle(); err != nil {
		return g, err
	}
	b.Destroy(g)
	if between != nil {
		if err := between(); err != nil {
			return nil, err
		}
	}
	return b.Build(desc, store, sc)
}

func (b *GraphBuilder) plan(desc gfx.DrawingDescription, store *ResourceStore, sc *Swapchain) ([]passPlan, error) {
	const op = "build render graph"
	if len(desc.Passes) == 0 {
		return nil, gfx.Configurationf(op, "description has no passes")
	}

	plans := make([]passPlan, 0, len(desc.Passes))
	for p, pass := range desc.Passes {
		plan := passPlan{pass: pass}

		switch pass.Target.Kind {
		case gfx.TargetDefault:
			plan.extent = sc.ImageExtent()
			plan.rp = gfx.RenderPassDesc{
				ColorFormat:  sc.Format(),
				ColorInitial: gfx.LayoutUndefined,
				ColorFinal:   gfx.LayoutPresentSrc,
				DepthFormat:  sc.DepthFormat(),
				DepthInitial: gfx.LayoutDepthAttachment,
				DepthFinal:   gfx.LayoutDepthAttachment,
				Load:         pass.KeepContents,
			}
			if pass.KeepContents {
				plan.rp.ColorInitial = gfx.LayoutPresentSrc
			}
		case gfx.TargetOffscreen:
			if err := planOffscreen(p, &plan, store); err != nil {
				return nil, err
			}
		default:
			return nil, gfx.Configurationf(op, "pass %d has unknown target kind %d", p, pass.Target.Kind)
		}

		if len(pass.Steps) == 0 {
			return nil, gfx.Configurationf(op, "pass %d has no steps", p)
		}
		for s, step := range pass.Steps {
			sp, err := b.planStep(p, s, step, &plan, store)
			if err != nil {
				return nil, err
			}
			plan.steps = append(plan.steps, sp)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func planOffscreen(p int, plan *passPlan, store *ResourceStore) error {
	const op = "build render graph"
	target := plan.pass.Target
	if target.ColorTexture == gfx.NoTexture && target.DepthTexture == gfx.NoTexture {
		return gfx.Configurationf(op, "offscreen pass %d names no texture", p)
	}

	plan.rp.Load = plan.pass.KeepContents
	if target.ColorTexture != gfx.NoTexture {
		color, err := store.Texture(target.ColorTexture)
		if err != nil {
			return gfx.Configurationf(op, "pass %d color target: %s", p, err)
		}
		if color.Class.Usage != gfx.UsageOffscreenColor {
			return gfx.Configurationf(op, "pass %d color target %d has usage %s", p, target.ColorTexture, color.Class.Usage)
		}
		plan.color = color
		plan.extent = color.Extent
		plan.rp.ColorFormat = color.Class.Format
		plan.rp.ColorInitial = color.Class.ReadLayout
		plan.rp.ColorFinal = gfx.LayoutColorAttachment
	}
	if target.DepthTexture != gfx.NoTexture {
		depth, err := store.Texture(target.DepthTexture)
		if err != nil {
			return gfx.Configurationf(op, "pass %d depth target: %s", p, err)
		}
		if depth.Class.Usage != gfx.UsageOffscreenDepth {
			return gfx.Configurationf(op, "pass %d depth target %d has usage %s", p, target.DepthTexture, depth.Class.Usage)
		}
		if plan.color != nil && plan.color.Extent != depth.Extent {
			return gfx.Configurationf(op, "pass %d color and depth targets differ in size", p)
		}
		plan.depth = depth
		plan.extent = depth.Extent
		plan.rp.DepthFormat = depth.Class.Format
		plan.rp.DepthInitial = depth.Class.ReadLayout
		plan.rp.DepthFinal = gfx.LayoutDepthAttachment
	}
	return nil
}

func (b *GraphBuilder) planStep(p, s int, step gfx.Step, plan *passPlan, store *ResourceStore) (stepPlan, error) {
	const op = "build render graph"
	sp := stepPlan{step: step}

	var err error
	if sp.info, err = gfx.ShaderInfo(step.Shader); err != nil {
		return sp, err
	}
	if sp.shaders, err = b.shaders.Pair(step.Shader); err != nil {
		return sp, err
	}
	if sp.vertices, err = store.Buffer(step.VertexBuffer); err != nil {
		return sp, gfx.Configurationf(op, "pass %d step %d: %s", p, s, err)
	}
	if sp.vertices.Format != gfx.VertexFormatPNT32 {
		return sp, gfx.Configurationf(op, "pass %d step %d: no vertex layout for format %d", p, s, sp.vertices.Format)
	}
	if step.Indexed && sp.vertices.IndexCount == 0 {
		return sp, gfx.Configurationf(op, "pass %d step %d: indexed draw of vertex buffer %d without indices", p, s, step.VertexBuffer)
	}
	if step.DepthTest && plan.rp.DepthFormat == gfx.FormatUndefined {
		return sp, gfx.Configurationf(op, "pass %d step %d: depth test in a pass without depth", p, s)
	}
	if sp.info.ColorOutput && plan.rp.ColorFormat == gfx.FormatUndefined {
		return sp, gfx.Configurationf(op, "pass %d step %d: shader %s writes color in a depth only pass", p, s, step.Shader)
	}
	if len(step.Textures) != sp.info.Textures {
		return sp, gfx.Configurationf(op, "pass %d step %d: shader %s takes %d textures, %d given",
			p, s, step.Shader, sp.info.Textures, len(step.Textures))
	}
	for _, idx := range step.Textures {
		tex, err := store.Texture(idx)
		if err != nil {
			return sp, gfx.Configurationf(op, "pass %d step %d: %s", p, s, err)
		}
		if !tex.Class.Sampled {
			return sp, gfx.Configurationf(op, "pass %d step %d: texture %d of usage %s cannot be sampled", p, s, idx, tex.Class.Usage)
		}
		if tex == plan.color || tex == plan.depth {
			return sp, gfx.Configurationf(op, "pass %d step %d: texture %d is sampled while rendered into", p, s, idx)
		}
		sp.textures = append(sp.textures, tex)
	}
	return sp, nil
}

func (b *GraphBuilder) buildImage(i int, plans []passPlan, sc *Swapchain) (*PerImageResources, error) {
	dev := b.ctx.Device
	res := &PerImageResources{}

	var steps, samplers uint32
	for _, plan := range plans {
		for _, sp := range plan.steps {
			steps++
			samplers += uint32(sp.info.Textures)
		}
	}

	var err error
	if res.Pool, err = dev.CreateDescriptorPool(gfx.DescriptorPoolDesc{
		MaxSets:  steps,
		Uniforms: steps,
		Samplers: samplers,
	}); err != nil {
		return nil, errors.Wrap(err, "descriptor pool")
	}

	for p, plan := range plans {
		pass, err := b.buildPass(res, i, plan, sc)
		if err != nil {
			b.destroyImage(res)
			return nil, errors.Wrapf(err, "pass %d", p)
		}
		res.Passes = append(res.Passes, pass)
	}

	if err := b.record(res, plans); err != nil {
		b.destroyImage(res)
		return nil, err
	}
	return res, nil
}

// buildPass creates the render pass, framebuffer and per-step objects of a
// pass. Partially created objects are appended to res before an error is
// returned, so destroying res cleans them up.
func (b *GraphBuilder) buildPass(res *PerImageResources, i int, plan passPlan, sc *Swapchain) (PassResources, error) {
	dev := b.ctx.Device
	pass := PassResources{Extent: plan.extent}

	var err error
	if pass.RenderPass, err = dev.CreateRenderPass(plan.rp); err != nil {
		return pass, b.keep(res, pass, errors.Wrap(err, "render pass"))
	}

	var attachments []gfx.ViewID
	if plan.pass.Target.Kind == gfx.TargetDefault {
		attachments = []gfx.ViewID{sc.Views()[i], sc.DepthView()}
	} else {
		if plan.color != nil {
			attachments = append(attachments, plan.color.View)
		}
		if plan.depth != nil {
			attachments = append(attachments, plan.depth.View)
		}
	}
	if pass.Framebuffer, err = dev.CreateFramebuffer(gfx.FramebufferDesc{
		RenderPass:  pass.RenderPass,
		Attachments: attachments,
		Extent:      plan.extent,
	}); err != nil {
		return pass, b.keep(res, pass, errors.Wrap(err, "framebuffer"))
	}

	for s, sp := range plan.steps {
		step := StepResources{Shader: sp.step.Shader}
		err := b.buildStep(&step, pass.RenderPass, res.Pool, sp)
		pass.Steps = append(pass.Steps, step)
		if err != nil {
			return pass, b.keep(res, pass, errors.Wrapf(err, "step %d", s))
		}
	}
	return pass, nil
}

// keep records a partially built pass in res so it is destroyed with it.
func (b *GraphBuilder) keep(res *PerImageResources, pass PassResources, err error) error {
	res.Passes = append(res.Passes, pass)
	return err
}

func (b *GraphBuilder) buildStep(step *StepResources, rp gfx.RenderPassID, pool gfx.DescriptorPoolID, sp stepPlan) error {
	dev := b.ctx.Device

	var err error
	if step.Pipeline, err = dev.CreatePipeline(gfx.PipelineDesc{
		RenderPass:  rp,
		Vertex:      sp.shaders.Vertex,
		Fragment:    sp.shaders.Fragment,
		Layout:      pntLayout,
		DepthTest:   sp.step.DepthTest,
		ColorOutput: sp.info.ColorOutput,
		UniformSize: uint32(sp.info.UniformSize),
		Textures:    sp.info.Textures,
	}); err != nil {
		return errors.Wrapf(err, "pipeline for shader %s", sp.step.Shader)
	}

	if step.Uniform, err = dev.CreateBuffer(uint64(sp.info.UniformSize), gfx.BufferUsageUniform); err != nil {
		return errors.Wrap(err, "uniform buffer")
	}
	if step.uniform, err = dev.MapBuffer(step.Uniform); err != nil {
		return errors.Wrap(err, "map uniform buffer")
	}

	if step.Set, err = dev.AllocateDescriptorSet(pool, step.Pipeline); err != nil {
		return errors.Wrap(err, "descriptor set")
	}
	views := make([]gfx.ViewID, len(sp.textures))
	for i, t := range sp.textures {
		views[i] = t.View
	}
	return errors.Wrap(dev.UpdateDescriptorSet(step.Set, gfx.DescriptorWrite{
		Uniform:     step.Uniform,
		UniformSize: uint64(sp.info.UniformSize),
		Views:       views,
		Sampler:     b.ctx.Sampler,
	}), "update descriptor set")
}

// record prerecords the command buffer of one image. Steps are drawn in
// declared order, offscreen outputs get a barrier right after their pass.
func (b *GraphBuilder) record(res *PerImageResources, plans []passPlan) error {
	dev := b.ctx.Device

	var err error
	if res.Commands, err = dev.AllocateCommandBuffer(); err != nil {
		return errors.Wrap(err, "allocate command buffer")
	}
	cmd := res.Commands
	if err := dev.BeginCommandBuffer(cmd, false); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	for p, plan := range plans {
		pass := res.Passes[p]
		dev.CmdBeginRenderPass(cmd, gfx.RenderPassBegin{
			RenderPass:  pass.RenderPass,
			Framebuffer: pass.Framebuffer,
			Extent:      pass.Extent,
			Clear: gfx.ClearValues{
				Color: plan.pass.ClearColor,
				Depth: 1,
			},
		})
		for s, sp := range plan.steps {
			step := pass.Steps[s]
			dev.CmdBindPipeline(cmd, step.Pipeline)
			dev.CmdBindDescriptorSet(cmd, step.Pipeline, step.Set)
			dev.CmdBindVertexBuffer(cmd, sp.vertices.Buffer)
			if sp.step.Indexed {
				dev.CmdBindIndexBuffer(cmd, sp.vertices.Index)
				dev.CmdDrawIndexed(cmd, sp.vertices.IndexCount)
			} else {
				dev.CmdDraw(cmd, sp.vertices.Count)
			}
		}
		dev.CmdEndRenderPass(cmd)

		if plan.color != nil {
			dev.CmdImageBarrier(cmd, gfx.ImageBarrier{
				Image:     plan.color.Image,
				Aspect:    gfx.AspectColor,
				Layers:    plan.color.Class.Layers,
				OldLayout: gfx.LayoutColorAttachment,
				NewLayout: gfx.LayoutShaderReadOnly,
				SrcStage:  gfx.StageColorAttachmentOutput,
				DstStage:  gfx.StageFragmentShader,
				SrcAccess: gfx.AccessColorAttachmentWrite,
				DstAccess: gfx.AccessShaderRead,
			})
		}
		if plan.depth != nil {
			dev.CmdImageBarrier(cmd, gfx.ImageBarrier{
				Image:     plan.depth.Image,
				Aspect:    gfx.AspectDepth,
				Layers:    plan.depth.Class.Layers,
				OldLayout: gfx.LayoutDepthAttachment,
				NewLayout: gfx.LayoutShaderReadOnly,
				SrcStage:  gfx.StageLateFragmentTests,
				DstStage:  gfx.StageFragmentShader,
				SrcAccess: gfx.AccessDepthAttachmentWrite,
				DstAccess: gfx.AccessShaderRead,
			})
		}
	}
	return errors.Wrap(dev.EndCommandBuffer(cmd), "end command buffer")
}

// Destroy releases every per-image resource of the graph. The device
// must be idle. A nil graph is ignored.
func (b *GraphBuilder) Destroy(g *Graph) {
	if g == nil {
		return
	}
	for _, res := range g.Images {
		b.destroyImage(res)
	}
	g.Images = nil
}

// destroyImage destroys in order: command buffer, descriptor pool,
// pipelines, uniform buffers, framebuffers, render passes.
func (b *GraphBuilder) destroyImage(res *PerImageResources) {
	dev := b.ctx.Device
	if res.Commands != 0 {
		dev.FreeCommandBuffer(res.Commands)
		res.Commands = 0
	}
	if res.Pool != 0 {
		dev.DestroyDescriptorPool(res.Pool)
		res.Pool = 0
	}
	for _, pass := range res.Passes {
		for _, step := range pass.Steps {
			if step.Pipeline != 0 {
				dev.DestroyPipeline(step.Pipeline)
			}
		}
	}
	for _, pass := range res.Passes {
		for _, step := range pass.Steps {
			if step.Uniform != 0 {
				dev.DestroyBuffer(step.Uniform)
			}
		}
	}
	for _, pass := range res.Passes {
		if pass.Framebuffer != 0 {
			dev.DestroyFramebuffer(pass.Framebuffer)
		}
	}
	for _, pass := range res.Passes {
		if pass.RenderPass != 0 {
			dev.DestroyRenderPass(pass.RenderPass)
		}
	}
	res.Passes = nil
}
