// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/devblok/vkframe/gfx"
	"github.com/devblok/vkframe/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Preload indices the description refers to.
const (
	vertexCube = iota
	vertexGround
	vertexOverlay
)

// Textures that change on reload take new indices per variant, the store
// never uploads an index it already holds.
const (
	textureShadow = iota
	textureChecker
	textureSky
	textureStride
)

const (
	shadowMapSize = 1024
	skySize       = 256
)

// demoScene draws a spinning cube over a ground plane inside a skybox,
// with the light's depth map shown in a corner.
type demoScene struct {
	mutex   sync.Mutex
	cube    *model.Mesh
	ground  *model.Mesh
	preload gfx.ResourcePreloadSet
	aspect  float32

	// variant flips the checker colors, switched on reload
	variant int
}

func (s *demoScene) checkerIndex() int {
	return textureChecker + textureStride*s.variant
}

func (s *demoScene) skyIndex() int {
	return textureSky + textureStride*s.variant
}

func newDemoScene(cubeData []byte, width, height uint32) (*demoScene, error) {
	cube, err := model.ImportColladaObject(cubeData)
	if err != nil {
		return nil, errors.Wrap(err, "import cube")
	}

	ground := model.Quad(8)
	ground.SetRotation(glm.HomogRotate3DX(-math.Pi / 2))
	ground.SetPosition(glm.Translate3D(0, -1.5, 0))

	s := &demoScene{
		cube:   cube,
		ground: ground,
	}
	s.Resize(width, height)
	if err := s.buildPreloads(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *demoScene) buildPreloads() error {
	sky, err := model.CrossFaces(skyCross(skySize, s.variant))
	if err != nil {
		return err
	}
	skySpec, err := model.CubemapSpec(sky, skySize)
	if err != nil {
		return err
	}
	overlay := model.Quad(0.5)
	overlay.SetPosition(glm.Translate3D(0.7, -0.7, 0))

	s.preload = gfx.ResourcePreloadSet{
		Vertices: map[int]gfx.VertexSpec{
			vertexCube:    s.cube.VertexSpec(),
			vertexGround:  s.ground.VertexSpec(),
			vertexOverlay: model.VertexSpec(transformed(overlay), overlay.Indices()),
		},
		Textures: map[int]gfx.TextureSpec{
			s.checkerIndex(): model.TextureSpec(checker(64, 8, s.variant)),
			textureShadow: {
				Usage:  gfx.UsageOffscreenDepth,
				Format: gfx.FormatD16Unorm,
				Width:  shadowMapSize,
				Height: shadowMapSize,
			},
			s.skyIndex(): skySpec,
		},
	}
	return nil
}

// Reload switches the scene's textures, the renderer picks them up on
// ReplaceSceneResources.
func (s *demoScene) Reload() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.variant = (s.variant + 1) % 2
	return s.buildPreloads()
}

// Resize updates the projection aspect ratio.
func (s *demoScene) Resize(width, height uint32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if height == 0 {
		return
	}
	s.aspect = float32(width) / float32(height)
}

// Animate spins the cube.
func (s *demoScene) Animate(elapsed time.Duration) {
	angle := float32(elapsed.Seconds()) * 0.8
	s.cube.SetRotation(glm.HomogRotate3DY(angle).Mul4(glm.HomogRotate3DX(angle / 3)))
}

// Preloads implements core.Scene
func (s *demoScene) Preloads() gfx.ResourcePreloadSet {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.preload
}

// Description implements core.Scene
func (s *demoScene) Description() gfx.DrawingDescription {
	s.mutex.Lock()
	checkerTex, skyTex := s.checkerIndex(), s.skyIndex()
	s.mutex.Unlock()

	return gfx.DrawingDescription{
		Passes: []gfx.Pass{
			{
				Target: gfx.OffscreenTarget(gfx.NoTexture, textureShadow),
				Steps: []gfx.Step{
					{Shader: gfx.ShaderShadow, VertexBuffer: vertexCube, DepthTest: true},
				},
			},
			{
				Target:     gfx.DefaultTarget(),
				ClearColor: [4]float32{0.05, 0.05, 0.08, 1},
				Steps: []gfx.Step{
					{Shader: gfx.ShaderSkybox, VertexBuffer: vertexCube, Textures: []int{skyTex}},
					{Shader: gfx.ShaderBasic, VertexBuffer: vertexGround, Textures: []int{checkerTex}, Indexed: true, DepthTest: true},
					{Shader: gfx.ShaderBasic, VertexBuffer: vertexCube, Textures: []int{checkerTex}, DepthTest: true},
				},
			},
			{
				Target:       gfx.DefaultTarget(),
				KeepContents: true,
				Steps: []gfx.Step{
					{Shader: gfx.ShaderPost, VertexBuffer: vertexOverlay, Textures: []int{textureShadow}, Indexed: true},
				},
			},
		},
	}
}

// UniformData implements core.Scene
func (s *demoScene) UniformData(pass, step int) []byte {
	s.mutex.Lock()
	aspect := s.aspect
	s.mutex.Unlock()

	view := glm.LookAtV(glm.Vec3{4, 3, 6}, glm.Vec3{0, 0, 0}, glm.Vec3{0, 1, 0})
	projection := model.Perspective(glm.DegToRad(45), aspect, 0.1, 100)
	light := model.Perspective(glm.DegToRad(60), 1, 1, 30).
		Mul4(glm.LookAtV(glm.Vec3{-3, 8, 2}, glm.Vec3{0, 0, 0}, glm.Vec3{0, 1, 0}))

	switch {
	case pass == 0:
		return model.ShadowUniform{LightMVP: light.Mul4(s.cube.Transform())}.Bytes()
	case pass == 1 && step == 0:
		sky := view.Mat3().Mat4()
		return model.SkyboxUniform{View: sky, Projection: projection}.Bytes()
	case pass == 1 && step == 1:
		return model.BasicUniform{Model: s.ground.Transform(), View: view, Projection: projection}.Bytes()
	case pass == 1 && step == 2:
		return model.BasicUniform{Model: s.cube.Transform(), View: view, Projection: projection}.Bytes()
	default:
		return model.PostUniform{Parameters: glm.Vec4{1, 0, 0, 0}}.Bytes()
	}
}

// transformed bakes the mesh transform into its vertices.
func transformed(m *model.Mesh) []model.Vertex {
	out := make([]model.Vertex, len(m.Vertices()))
	t := m.Transform()
	for i, v := range m.Vertices() {
		out[i] = v
		out[i].Pos = t.Mul4x1(v.Pos.Vec4(1)).Vec3()
	}
	return out
}

func checker(size, cells, variant int) image.Image {
	a, b := color.RGBA{R: 200, G: 200, B: 200, A: 255}, color.RGBA{R: 60, G: 90, B: 140, A: 255}
	if variant == 1 {
		a, b = color.RGBA{R: 230, G: 170, B: 60, A: 255}, color.RGBA{R: 40, G: 40, B: 40, A: 255}
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / cells
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, a)
			} else {
				img.SetRGBA(x, y, b)
			}
		}
	}
	return img
}

// skyCross paints a vertical gradient over a horizontal cross layout.
func skyCross(face, variant int) image.Image {
	top, bottom := color.RGBA{R: 40, G: 90, B: 200, A: 255}, color.RGBA{R: 220, G: 230, B: 255, A: 255}
	if variant == 1 {
		top, bottom = color.RGBA{R: 20, G: 10, B: 40, A: 255}, color.RGBA{R: 200, G: 90, B: 60, A: 255}
	}
	img := image.NewRGBA(image.Rect(0, 0, 4*face, 3*face))
	height := img.Rect.Dy()
	for y := 0; y < height; y++ {
		t := float64(y) / float64(height-1)
		c := color.RGBA{
			R: lerp(top.R, bottom.R, t),
			G: lerp(top.G, bottom.G, t),
			B: lerp(top.B, bottom.B, t),
			A: 255,
		}
		for x := 0; x < img.Rect.Dx(); x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
