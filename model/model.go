// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the data that scenes hand to the renderer:
// vertices in the PNT32 layout, uniform blocks for the shader kinds,
// imported meshes and texture pixels.
package model

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/devblok/vkframe/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Object represents the engine supported model
type Object interface {

	// SetPosition sets the object's current position in space.
	// Has to be thread-safe
	SetPosition(glm.Mat4)

	// Position gets the object's current position in space.
	// Has to be thread-safe
	Position() glm.Mat4

	// SetRotation sets the object's rotation matrix.
	// Has to be thread-safe
	SetRotation(glm.Mat4)

	// Rotation gets the object's rotation matrix.
	// Has to be thread-safe
	Rotation() glm.Mat4

	// Transform is the model matrix, position applied after rotation.
	Transform() glm.Mat4

	// Vertices returns the vertices in draw order.
	Vertices() []Vertex
}

// Vertex is a model vertex, laid out as gfx.VertexFormatPNT32.
type Vertex struct {
	Pos    glm.Vec3
	Normal glm.Vec3
	UV     glm.Vec2
}

// Offsets of the attributes inside an encoded vertex.
const (
	PositionOffset = 0
	NormalOffset   = 12
	UVOffset       = 24
)

// VertexLayout is the pipeline input layout of encoded vertices.
func VertexLayout() gfx.VertexLayout {
	return gfx.VertexLayout{
		Stride: gfx.VertexStride,
		Attributes: []gfx.VertexAttribute{
			{Location: 0, Offset: PositionOffset, Components: 3},
			{Location: 1, Offset: NormalOffset, Components: 3},
			{Location: 2, Offset: UVOffset, Components: 2},
		},
	}
}

// EncodeVertices packs vertices as little endian floats,
// gfx.VertexStride bytes each.
func EncodeVertices(vertices []Vertex) []byte {
	data := make([]byte, len(vertices)*gfx.VertexStride)
	for i, v := range vertices {
		floats := [8]float32{
			v.Pos[0], v.Pos[1], v.Pos[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.UV[0], v.UV[1],
		}
		at := data[i*gfx.VertexStride:]
		for c, f := range floats {
			binary.LittleEndian.PutUint32(at[4*c:], math.Float32bits(f))
		}
	}
	return data
}

// DecodeVertices unpacks vertices written by EncodeVertices.
func DecodeVertices(data []byte) ([]Vertex, error) {
	if len(data)%gfx.VertexStride != 0 {
		return nil, errors.Errorf("%d bytes is not a whole number of vertices", len(data))
	}
	vertices := make([]Vertex, len(data)/gfx.VertexStride)
	for i := range vertices {
		var floats [8]float32
		at := data[i*gfx.VertexStride:]
		for c := range floats {
			floats[c] = math.Float32frombits(binary.LittleEndian.Uint32(at[4*c:]))
		}
		vertices[i] = Vertex{
			Pos:    glm.Vec3{floats[0], floats[1], floats[2]},
			Normal: glm.Vec3{floats[3], floats[4], floats[5]},
			UV:     glm.Vec2{floats[6], floats[7]},
		}
	}
	return vertices, nil
}

// VertexSpec builds the preload spec of vertices, with optional indices.
func VertexSpec(vertices []Vertex, indices []uint32) gfx.VertexSpec {
	return gfx.VertexSpec{
		Format:  gfx.VertexFormatPNT32,
		Data:    EncodeVertices(vertices),
		Indices: indices,
	}
}

// Mesh is an Object held in memory.
type Mesh struct {
	mutex    sync.RWMutex
	position glm.Mat4
	rotation glm.Mat4

	vertices []Vertex
	indices  []uint32
}

// NewMesh creates a mesh at the origin.
func NewMesh(vertices []Vertex, indices []uint32) *Mesh {
	return &Mesh{
		position: glm.Ident4(),
		rotation: glm.Ident4(),
		vertices: vertices,
		indices:  indices,
	}
}

// SetPosition implements interface
func (m *Mesh) SetPosition(pos glm.Mat4) {
	m.mutex.Lock()
	m.position = pos
	m.mutex.Unlock()
}

// Position implements interface
func (m *Mesh) Position() glm.Mat4 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.position
}

// SetRotation implements interface
func (m *Mesh) SetRotation(rot glm.Mat4) {
	m.mutex.Lock()
	m.rotation = rot
	m.mutex.Unlock()
}

// Rotation implements interface
func (m *Mesh) Rotation() glm.Mat4 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.rotation
}

// Transform implements interface
func (m *Mesh) Transform() glm.Mat4 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.position.Mul4(m.rotation)
}

// Vertices implements interface
func (m *Mesh) Vertices() []Vertex {
	return m.vertices
}

// Indices returns the index list, nil for unindexed meshes.
func (m *Mesh) Indices() []uint32 {
	return m.indices
}

// VertexSpec returns the preload spec of the mesh.
func (m *Mesh) VertexSpec() gfx.VertexSpec {
	return VertexSpec(m.vertices, m.indices)
}

// Quad is a two triangle square in the xy plane, facing +z.
func Quad(size float32) *Mesh {
	h := size / 2
	n := glm.Vec3{0, 0, 1}
	return NewMesh([]Vertex{
		{Pos: glm.Vec3{-h, -h, 0}, Normal: n, UV: glm.Vec2{0, 1}},
		{Pos: glm.Vec3{h, -h, 0}, Normal: n, UV: glm.Vec2{1, 1}},
		{Pos: glm.Vec3{h, h, 0}, Normal: n, UV: glm.Vec2{1, 0}},
		{Pos: glm.Vec3{-h, h, 0}, Normal: n, UV: glm.Vec2{0, 0}},
	}, []uint32{0, 1, 2, 2, 3, 0})
}
