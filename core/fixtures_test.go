// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"encoding/binary"
	"io/ioutil"
	"math"
	"testing"

	"github.com/devblok/vkframe/core"
	"github.com/devblok/vkframe/gfx"
	"github.com/devblok/vkframe/gfx/gfxtest"
	log "github.com/sirupsen/logrus"
)

func quietLogger() *log.Logger {
	logger := log.New()
	logger.Out = ioutil.Discard
	return logger
}

func newContext(t *testing.T) (*gfxtest.Device, *core.DeviceContext) {
	t.Helper()
	dev := gfxtest.New()
	ctx, err := core.NewDeviceContext(dev, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return dev, ctx
}

// testShaders holds a fake module pair for every shader kind.
func testShaders() core.ShaderFiles {
	files := make(core.ShaderFiles)
	for _, kind := range gfx.ShaderKinds() {
		info, _ := gfx.ShaderInfo(kind)
		files[info.Name+".vert.spv"] = []byte{0x03, 0x02, 0x23, 0x07}
		files[info.Name+".frag.spv"] = []byte{0x03, 0x02, 0x23, 0x07}
	}
	return files
}

func rendererConfig() core.RendererConfiguration {
	return core.RendererConfiguration{
		SwapchainSize: 3,
		ScreenWidth:   640,
		ScreenHeight:  480,
	}
}

// vertices encodes positions into PNT32 vertices with zero normals
// and texture coordinates.
func vertices(positions ...[3]float32) []byte {
	data := make([]byte, len(positions)*gfx.VertexStride)
	for i, p := range positions {
		for c, v := range p {
			binary.LittleEndian.PutUint32(data[i*gfx.VertexStride+4*c:], math.Float32bits(v))
		}
	}
	return data
}

func triangle() gfx.VertexSpec {
	return gfx.VertexSpec{
		Format: gfx.VertexFormatPNT32,
		Data:   vertices([3]float32{0, -0.5, 0}, [3]float32{0.5, 0.5, 0}, [3]float32{-0.5, 0.5, 0}),
	}
}

func quad() gfx.VertexSpec {
	return gfx.VertexSpec{
		Format:  gfx.VertexFormatPNT32,
		Data:    vertices([3]float32{-1, -1, 0}, [3]float32{1, -1, 0}, [3]float32{1, 1, 0}, [3]float32{-1, 1, 0}),
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

func checker() gfx.TextureSpec {
	return gfx.TextureSpec{
		Usage:  gfx.UsageSampleTexture,
		Format: gfx.FormatRGBA8Unorm,
		Width:  2,
		Height: 2,
		Pixels: []byte{
			255, 255, 255, 255, 0, 0, 0, 255,
			0, 0, 0, 255, 255, 255, 255, 255,
		},
	}
}

// testScene draws whatever it is given, uniform data is zeroed and
// sized for the shader unless uniformSize overrides it.
type testScene struct {
	preloads    gfx.ResourcePreloadSet
	description gfx.DrawingDescription
	uniformSize int
	calls       int
}

func (s *testScene) Preloads() gfx.ResourcePreloadSet { return s.preloads }

func (s *testScene) Description() gfx.DrawingDescription { return s.description }

func (s *testScene) UniformData(pass, step int) []byte {
	s.calls++
	if s.uniformSize > 0 {
		return make([]byte, s.uniformSize)
	}
	info, _ := gfx.ShaderInfo(s.description.Passes[pass].Steps[step].Shader)
	return make([]byte, info.UniformSize)
}

// triangleScene draws vertex buffer 0 with texture 0 into the swapchain.
func triangleScene() *testScene {
	return &testScene{
		preloads: gfx.ResourcePreloadSet{
			Vertices: map[int]gfx.VertexSpec{0: triangle()},
			Textures: map[int]gfx.TextureSpec{0: checker()},
		},
		description: gfx.DrawingDescription{Passes: []gfx.Pass{{
			Target:     gfx.DefaultTarget(),
			ClearColor: [4]float32{0, 0, 0, 1},
			Steps: []gfx.Step{
				{Shader: gfx.ShaderBasic, VertexBuffer: 0, Textures: []int{0}, DepthTest: true},
			},
		}}},
	}
}

// offscreenScene renders the quad into texture 1, then samples texture 1
// in a post processing pass onto the swapchain.
func offscreenScene() *testScene {
	return &testScene{
		preloads: gfx.ResourcePreloadSet{
			Vertices: map[int]gfx.VertexSpec{0: quad()},
			Textures: map[int]gfx.TextureSpec{
				0: checker(),
				1: {Usage: gfx.UsageOffscreenColor, Format: gfx.FormatRGBA8Unorm, Width: 64, Height: 64},
			},
		},
		description: gfx.DrawingDescription{Passes: []gfx.Pass{
			{
				Target: gfx.OffscreenTarget(1, gfx.NoTexture),
				Steps: []gfx.Step{
					{Shader: gfx.ShaderBasic, VertexBuffer: 0, Textures: []int{0}, Indexed: true},
				},
			},
			{
				Target: gfx.DefaultTarget(),
				Steps: []gfx.Step{
					{Shader: gfx.ShaderPost, VertexBuffer: 0, Textures: []int{1}, Indexed: true},
				},
			},
		}},
	}
}

func newRenderer(t *testing.T, scene core.Scene) (*gfxtest.Device, *core.Renderer) {
	t.Helper()
	dev, ctx := newContext(t)
	r, err := core.NewRenderer(ctx, gfxtest.DefaultSurface, rendererConfig(), testShaders(), scene)
	if err != nil {
		t.Fatal(err)
	}
	return dev, r
}

func checkViolations(t *testing.T, dev *gfxtest.Device) {
	t.Helper()
	for _, v := range dev.Violations() {
		t.Error(v)
	}
}
