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

type graphEnv struct {
	dev     *gfxtest.Device
	ctx     *core.DeviceContext
	store   *core.ResourceStore
	shaders *core.ShaderLibrary
	sc      *core.Swapchain
	builder *core.GraphBuilder
}

func newGraphEnv(c *qt.C, t *testing.T, set gfx.ResourcePreloadSet) *graphEnv {
	env := &graphEnv{}
	env.dev, env.ctx = newContext(t)

	var err error
	env.shaders, err = core.NewShaderLibrary(env.ctx, testShaders())
	c.Assert(err, qt.IsNil)
	env.sc, err = core.CreateSwapchain(env.ctx, gfxtest.DefaultSurface, 3, fallback)
	c.Assert(err, qt.IsNil)
	env.store = core.NewResourceStore(env.ctx)
	c.Assert(env.store.Load(set), qt.IsNil)
	env.builder = core.NewGraphBuilder(env.ctx, env.shaders)
	return env
}

func (env *graphEnv) destroy() {
	env.sc.Destroy()
	env.store.Destroy()
	env.shaders.Destroy()
	env.ctx.Destroy()
}

func TestBuildCounts(t *testing.T) {
	c := qt.New(t)
	scene := triangleScene()
	scene.description.Passes[0].Steps = append(scene.description.Passes[0].Steps,
		gfx.Step{Shader: gfx.ShaderText, VertexBuffer: 0, Textures: []int{0}})
	env := newGraphEnv(c, t, scene.preloads)

	g, err := env.builder.Build(scene.description, env.store, env.sc)
	c.Assert(err, qt.IsNil)
	c.Assert(g.Images, qt.HasLen, 3)
	c.Assert(env.dev.Live(gfxtest.KindRenderPass), qt.Equals, 3)
	c.Assert(env.dev.Live(gfxtest.KindFramebuffer), qt.Equals, 3)
	c.Assert(env.dev.Live(gfxtest.KindPipeline), qt.Equals, 6)
	c.Assert(env.dev.Live(gfxtest.KindDescriptorPool), qt.Equals, 3)
	c.Assert(env.dev.Live(gfxtest.KindDescriptorSet), qt.Equals, 6)
	c.Assert(env.dev.Live(gfxtest.KindCommandBuffer), qt.Equals, 3)

	for i, res := range g.Images {
		c.Assert(res.Passes, qt.HasLen, 1)
		c.Assert(res.Passes[0].Steps, qt.HasLen, 2)
		c.Assert(res.Passes[0].Extent, qt.Equals, env.sc.ImageExtent())
		c.Assert(res.Passes[0].Steps[1].Shader, qt.Equals, gfx.ShaderText, qt.Commentf("image %d", i))
	}

	env.builder.Destroy(g)
	env.builder.Destroy(g)
	env.builder.Destroy(nil)
	c.Assert(env.dev.Live(gfxtest.KindPipeline), qt.Equals, 0)
	c.Assert(env.dev.Live(gfxtest.KindRenderPass), qt.Equals, 0)
	c.Assert(env.dev.Live(gfxtest.KindCommandBuffer), qt.Equals, 0)
	env.destroy()
	c.Assert(env.dev.LiveTotal(), qt.Equals, 0)
	checkViolations(t, env.dev)
}

func TestRecordedCommands(t *testing.T) {
	c := qt.New(t)
	scene := triangleScene()
	env := newGraphEnv(c, t, scene.preloads)
	defer env.destroy()

	g, err := env.builder.Build(scene.description, env.store, env.sc)
	c.Assert(err, qt.IsNil)
	defer env.builder.Destroy(g)

	res := g.Images[1]
	cmds := env.dev.Commands(res.Commands)
	var ops []gfxtest.Op
	for _, cmd := range cmds {
		ops = append(ops, cmd.Op)
	}
	c.Assert(ops, qt.DeepEquals, []gfxtest.Op{
		gfxtest.OpBeginRenderPass,
		gfxtest.OpBindPipeline,
		gfxtest.OpBindDescriptorSet,
		gfxtest.OpBindVertexBuffer,
		gfxtest.OpDraw,
		gfxtest.OpEndRenderPass,
	})
	c.Assert(cmds[0].RenderPass.RenderPass, qt.Equals, res.Passes[0].RenderPass)
	c.Assert(cmds[0].RenderPass.Framebuffer, qt.Equals, res.Passes[0].Framebuffer)
	c.Assert(cmds[0].RenderPass.Clear.Depth, qt.Equals, float32(1))
	c.Assert(cmds[1].Pipeline, qt.Equals, res.Passes[0].Steps[0].Pipeline)
	c.Assert(cmds[4].Count, qt.Equals, uint32(3))
}

func TestOffscreenBarrier(t *testing.T) {
	c := qt.New(t)
	scene := offscreenScene()
	env := newGraphEnv(c, t, scene.preloads)
	defer env.destroy()

	g, err := env.builder.Build(scene.description, env.store, env.sc)
	c.Assert(err, qt.IsNil)
	defer env.builder.Destroy(g)

	target, err := env.store.Texture(1)
	c.Assert(err, qt.IsNil)

	res := g.Images[0]
	c.Assert(res.Passes, qt.HasLen, 2)
	c.Assert(res.Passes[0].Extent, qt.Equals, gfx.Extent2D{Width: 64, Height: 64})

	cmds := env.dev.Commands(res.Commands)
	var ends, barrier int
	for i, cmd := range cmds {
		switch cmd.Op {
		case gfxtest.OpEndRenderPass:
			ends++
			if ends == 1 {
				barrier = i + 1
			}
		case gfxtest.OpDrawIndexed:
			c.Assert(cmd.Count, qt.Equals, uint32(6))
		}
	}
	c.Assert(ends, qt.Equals, 2)
	c.Assert(cmds[barrier].Op, qt.Equals, gfxtest.OpImageBarrier)
	c.Assert(cmds[barrier].Barrier.Image, qt.Equals, target.Image)
	c.Assert(cmds[barrier].Barrier.OldLayout, qt.Equals, gfx.LayoutColorAttachment)
	c.Assert(cmds[barrier].Barrier.NewLayout, qt.Equals, gfx.LayoutShaderReadOnly)
	c.Assert(cmds[barrier+1].Op, qt.Equals, gfxtest.OpBeginRenderPass)
}

func TestBuildFailureCleansUp(t *testing.T) {
	for _, op := range []string{"CreatePipeline", "CreateFramebuffer", "AllocateDescriptorSet", "CreateBuffer", "AllocateCommandBuffer", "CreateRenderPass"} {
		op := op
		t.Run(op, func(t *testing.T) {
			c := qt.New(t)
			scene := offscreenScene()
			env := newGraphEnv(c, t, scene.preloads)
			defer env.destroy()
			before := env.dev.LiveTotal()

			// image 0 builds, a later one fails
			env.dev.FailAfter(op, 2)
			_, err := env.builder.Build(scene.description, env.store, env.sc)
			c.Assert(gfx.IsDevice(err), qt.Equals, true, qt.Commentf("%v", err))
			c.Assert(env.dev.Live(gfxtest.KindPipeline), qt.Equals, 0)
			c.Assert(env.dev.Live(gfxtest.KindRenderPass), qt.Equals, 0)
			c.Assert(env.dev.Live(gfxtest.KindFramebuffer), qt.Equals, 0)
			c.Assert(env.dev.Live(gfxtest.KindDescriptorPool), qt.Equals, 0)
			c.Assert(env.dev.LiveTotal(), qt.Equals, before)
			checkViolations(t, env.dev)
		})
	}
}

func TestRebuild(t *testing.T) {
	c := qt.New(t)
	scene := triangleScene()
	env := newGraphEnv(c, t, scene.preloads)
	defer env.destroy()

	g, err := env.builder.Build(scene.description, env.store, env.sc)
	c.Assert(err, qt.IsNil)

	// the device never idles, the old graph survives
	env.dev.FailNext("DeviceWaitIdle")
	kept, err := env.builder.Rebuild(g, scene.description, env.store, env.sc, nil)
	c.Assert(gfx.IsDevice(err), qt.Equals, true, qt.Commentf("%v", err))
	c.Assert(kept, qt.Equals, g)
	c.Assert(env.dev.Live(gfxtest.KindRenderPass), qt.Equals, 3)

	// the old graph is gone before between runs
	var passes int
	g, err = env.builder.Rebuild(g, scene.description, env.store, env.sc, func() error {
		passes = env.dev.Live(gfxtest.KindRenderPass)
		return env.sc.Recreate()
	})
	c.Assert(err, qt.IsNil)
	c.Assert(passes, qt.Equals, 0)
	c.Assert(g.Images, qt.HasLen, 3)
	c.Assert(env.dev.Live(gfxtest.KindRenderPass), qt.Equals, 3)
	c.Assert(env.dev.Live(gfxtest.KindFramebuffer), qt.Equals, 3)

	g, err = env.builder.Rebuild(g, scene.description, env.store, env.sc, func() error {
		return gfx.Configurationf("rebuild", "surface lost")
	})
	c.Assert(gfx.IsConfiguration(err), qt.Equals, true)
	c.Assert(g, qt.IsNil)
	c.Assert(env.dev.Live(gfxtest.KindRenderPass), qt.Equals, 0)
	c.Assert(env.dev.Live(gfxtest.KindCommandBuffer), qt.Equals, 0)
	checkViolations(t, env.dev)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		edit func(d *gfx.DrawingDescription)
	}{{
		name: "no passes",
		edit: func(d *gfx.DrawingDescription) { d.Passes = nil },
	}, {
		name: "no steps",
		edit: func(d *gfx.DrawingDescription) { d.Passes[1].Steps = nil },
	}, {
		name: "missing vertex buffer",
		edit: func(d *gfx.DrawingDescription) { d.Passes[1].Steps[0].VertexBuffer = 5 },
	}, {
		name: "missing texture",
		edit: func(d *gfx.DrawingDescription) { d.Passes[1].Steps[0].Textures = []int{5} },
	}, {
		name: "texture count",
		edit: func(d *gfx.DrawingDescription) { d.Passes[1].Steps[0].Textures = []int{0, 1} },
	}, {
		name: "sampling the target",
		edit: func(d *gfx.DrawingDescription) { d.Passes[0].Steps[0].Textures = []int{1} },
	}, {
		name: "sample texture as target",
		edit: func(d *gfx.DrawingDescription) { d.Passes[0].Target = gfx.OffscreenTarget(0, gfx.NoTexture) },
	}, {
		name: "offscreen target without textures",
		edit: func(d *gfx.DrawingDescription) { d.Passes[0].Target = gfx.OffscreenTarget(gfx.NoTexture, gfx.NoTexture) },
	}, {
		name: "depth test without depth",
		edit: func(d *gfx.DrawingDescription) { d.Passes[0].Steps[0].DepthTest = true },
	}, {
		name: "indexed without indices",
		edit: func(d *gfx.DrawingDescription) { d.Passes[1].Steps[0].VertexBuffer = 1 },
	}, {
		name: "unknown shader",
		edit: func(d *gfx.DrawingDescription) { d.Passes[1].Steps[0].Shader = gfx.ShaderKind(99) },
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			c := qt.New(t)
			scene := offscreenScene()
			scene.preloads.Vertices[1] = triangle()
			env := newGraphEnv(c, t, scene.preloads)
			defer env.destroy()
			before := env.dev.LiveTotal()

			desc := scene.description
			desc.Passes = append([]gfx.Pass(nil), desc.Passes...)
			for i := range desc.Passes {
				desc.Passes[i].Steps = append([]gfx.Step(nil), desc.Passes[i].Steps...)
			}
			test.edit(&desc)

			_, err := env.builder.Build(desc, env.store, env.sc)
			c.Assert(gfx.IsConfiguration(err), qt.Equals, true, qt.Commentf("%v", err))
			c.Assert(env.dev.LiveTotal(), qt.Equals, before)
		})
	}
}

func TestMissingShader(t *testing.T) {
	c := qt.New(t)
	scene := triangleScene()
	dev, ctx := newContext(t)

	files := testShaders()
	delete(files, "basic.frag.spv")
	shaders, err := core.NewShaderLibrary(ctx, files)
	c.Assert(err, qt.IsNil)
	defer shaders.Destroy()
	_, err = shaders.Pair(gfx.ShaderBasic)
	c.Assert(gfx.IsConfiguration(err), qt.Equals, true)

	// all other kinds are there
	c.Assert(dev.Live(gfxtest.KindShaderModule), qt.Equals, 2*(len(gfx.ShaderKinds())-1))

	sc, err := core.CreateSwapchain(ctx, gfxtest.DefaultSurface, 2, fallback)
	c.Assert(err, qt.IsNil)
	defer sc.Destroy()
	store := core.NewResourceStore(ctx)
	defer store.Destroy()
	c.Assert(store.Load(scene.preloads), qt.IsNil)

	_, err = core.NewGraphBuilder(ctx, shaders).Build(scene.description, store, sc)
	c.Assert(gfx.IsConfiguration(err), qt.Equals, true)
}
