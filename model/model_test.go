// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/devblok/vkframe/gfx"
	"github.com/devblok/vkframe/model"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"
	glm "github.com/go-gl/mathgl/mgl32"
)

var testdata packr.Box

func init() {
	testdata = packr.NewBox("./testdata")
}

func TestVertexEncoding(t *testing.T) {
	c := qt.New(t)

	vertices := []model.Vertex{
		{Pos: glm.Vec3{1, 2, 3}, Normal: glm.Vec3{0, 1, 0}, UV: glm.Vec2{0.25, 0.75}},
		{Pos: glm.Vec3{-1, -2, -3}, Normal: glm.Vec3{0, 0, -1}, UV: glm.Vec2{1, 0}},
	}
	data := model.EncodeVertices(vertices)
	c.Assert(data, qt.HasLen, 2*gfx.VertexStride)

	uvX := math.Float32frombits(binary.LittleEndian.Uint32(data[model.UVOffset:]))
	c.Assert(uvX, qt.Equals, float32(0.25))
	normalZ := math.Float32frombits(binary.LittleEndian.Uint32(data[gfx.VertexStride+model.NormalOffset+8:]))
	c.Assert(normalZ, qt.Equals, float32(-1))

	back, err := model.DecodeVertices(data)
	c.Assert(err, qt.IsNil)
	c.Assert(back, qt.DeepEquals, vertices)

	_, err = model.DecodeVertices(data[:40])
	c.Assert(err, qt.ErrorMatches, "40 bytes is not a whole number of vertices")
}

func TestVertexLayout(t *testing.T) {
	c := qt.New(t)

	layout := model.VertexLayout()
	c.Assert(layout.Stride, qt.Equals, uint32(gfx.VertexStride))

	var floats uint32
	for _, attr := range layout.Attributes {
		floats += attr.Components
	}
	c.Assert(floats*4, qt.Equals, layout.Stride)
}

func TestQuad(t *testing.T) {
	c := qt.New(t)

	quad := model.Quad(2)
	spec := quad.VertexSpec()
	c.Assert(spec.Format, qt.Equals, gfx.VertexFormatPNT32)
	c.Assert(spec.Count(), qt.Equals, 4)
	c.Assert(spec.Indices, qt.HasLen, 6)
	for _, idx := range spec.Indices {
		c.Assert(int(idx) < spec.Count(), qt.Equals, true)
	}
}

func TestMeshTransform(t *testing.T) {
	c := qt.New(t)

	var obj model.Object = model.NewMesh(nil, nil)
	c.Assert(obj.Transform(), qt.Equals, glm.Ident4())

	obj.SetRotation(glm.HomogRotate3DZ(math.Pi / 2))
	c.Assert(obj.Position(), qt.Equals, glm.Ident4(), qt.Commentf("rotation must not move the object"))

	obj.SetPosition(glm.Translate3D(1, 0, 0))
	moved := obj.Transform().Mul4x1(glm.Vec4{1, 0, 0, 1})
	c.Assert(moved.ApproxEqualThreshold(glm.Vec4{1, 1, 0, 1}, 1e-6), qt.Equals, true)
}

func TestImportCollada(t *testing.T) {
	c := qt.New(t)

	data, err := testdata.Find("triangle.dae")
	c.Assert(err, qt.IsNil)

	mesh, err := model.ImportColladaObject(data)
	c.Assert(err, qt.IsNil)
	c.Assert(mesh.Indices(), qt.IsNil)

	c.Assert(mesh.Vertices(), qt.DeepEquals, []model.Vertex{
		{Pos: glm.Vec3{0, 0, 0}, Normal: glm.Vec3{0, 0, 1}, UV: glm.Vec2{0, 1}},
		{Pos: glm.Vec3{1, 0, 0}, Normal: glm.Vec3{0, 0, 1}, UV: glm.Vec2{1, 1}},
		{Pos: glm.Vec3{0, 1, 0}, Normal: glm.Vec3{0, 0, 1}, UV: glm.Vec2{0, 0}},
	})
}

func TestImportColladaErrors(t *testing.T) {
	c := qt.New(t)

	_, err := model.ImportColladaObject([]byte(`<COLLADA></COLLADA>`))
	c.Assert(err, qt.ErrorMatches, "collada: document has no geometry")

	noPositions := `<COLLADA><library_geometries><geometry id="g"><mesh>
		<triangles count="1"><input semantic="NORMAL" source="#n" offset="0"/><p>0 0 0</p></triangles>
		</mesh></geometry></library_geometries></COLLADA>`
	_, err = model.ImportColladaObject([]byte(noPositions))
	c.Assert(err, qt.ErrorMatches, "collada: mesh has no positions")

	_, err = model.ImportColladaObject([]byte(`<COLLADA>`))
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestUniformSizes(t *testing.T) {
	c := qt.New(t)

	blocks := map[gfx.ShaderKind]model.Uniform{
		gfx.ShaderBasic:  model.BasicUniform{},
		gfx.ShaderSkybox: model.SkyboxUniform{},
		gfx.ShaderText:   model.TextUniform{},
		gfx.ShaderShadow: model.ShadowUniform{},
		gfx.ShaderPost:   model.PostUniform{},
	}
	for _, kind := range gfx.ShaderKinds() {
		block, ok := blocks[kind]
		c.Assert(ok, qt.Equals, true, qt.Commentf("no uniform block for kind %d", int(kind)))

		info, err := gfx.ShaderInfo(kind)
		c.Assert(err, qt.IsNil)
		c.Assert(block.Bytes(), qt.HasLen, info.UniformSize, qt.Commentf("shader %s", info.Name))
	}
}

func TestUniformLayout(t *testing.T) {
	c := qt.New(t)

	u := model.BasicUniform{Model: glm.Translate3D(5, 6, 7)}
	data := u.Bytes()
	// column major, translation sits in the last column
	tx := math.Float32frombits(binary.LittleEndian.Uint32(data[12*4:]))
	c.Assert(tx, qt.Equals, float32(5))
}

func TestPixels(t *testing.T) {
	c := qt.New(t)

	gray := image.NewGray(image.Rect(2, 2, 4, 3))
	gray.SetGray(3, 2, color.Gray{Y: 200})
	pix := model.Pixels(gray)
	c.Assert(pix, qt.DeepEquals, []byte{0, 0, 0, 255, 200, 200, 200, 255})

	spec := model.TextureSpec(gray)
	c.Assert(spec.Width, qt.Equals, uint32(2))
	c.Assert(spec.Height, qt.Equals, uint32(1))
	c.Assert(spec.Pixels, qt.HasLen, int(spec.Width*spec.Height)*gfx.FormatRGBA8Unorm.TexelSize())
}

func TestPixelsCopiesSource(t *testing.T) {
	c := qt.New(t)

	red := color.RGBA{R: 255, A: 255}
	img := model.Solid(red, 2, 2)
	spec := model.TextureSpec(img)

	img.SetRGBA(0, 0, color.RGBA{B: 255, A: 255})
	c.Assert(spec.Pixels[:4], qt.DeepEquals, []byte{255, 0, 0, 255})

	spec.Pixels[4] = 7
	c.Assert(img.RGBAAt(1, 0), qt.Equals, red)
}

func TestCubemap(t *testing.T) {
	c := qt.New(t)

	red := color.RGBA{R: 255, A: 255}
	cross := model.Solid(red, 8, 6)
	faces, err := model.CrossFaces(cross)
	c.Assert(err, qt.IsNil)
	c.Assert(faces, qt.HasLen, 6)

	spec, err := model.CubemapSpec(faces, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(spec.Usage, qt.Equals, gfx.UsageCubemap)
	c.Assert(spec.Pixels, qt.HasLen, 6*2*2*4)
	c.Assert(spec.Pixels[:4], qt.DeepEquals, []byte{255, 0, 0, 255})

	_, err = model.CubemapSpec(faces[:5], 4)
	c.Assert(err, qt.ErrorMatches, "cubemap needs 6 faces, got 5")

	_, err = model.CrossFaces(model.Solid(red, 8, 8))
	c.Assert(err, qt.ErrorMatches, "8x8 is not a horizontal cross")
}
