// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/binary"
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Uniform is a uniform block of one of the shader kinds.
type Uniform interface {
	// Bytes returns the block in std140 layout.
	Bytes() []byte
}

// BasicUniform feeds the basic shader.
type BasicUniform struct {
	Model      glm.Mat4
	View       glm.Mat4
	Projection glm.Mat4
}

// Bytes implements interface
func (u BasicUniform) Bytes() []byte {
	return packFloats(u.Model[:], u.View[:], u.Projection[:])
}

// SkyboxUniform feeds the skybox shader. The view matrix should have
// its translation removed.
type SkyboxUniform struct {
	View       glm.Mat4
	Projection glm.Mat4
}

// Bytes implements interface
func (u SkyboxUniform) Bytes() []byte {
	return packFloats(u.View[:], u.Projection[:])
}

// TextUniform feeds the text shader.
type TextUniform struct {
	MVP   glm.Mat4
	Color glm.Vec4
}

// Bytes implements interface
func (u TextUniform) Bytes() []byte {
	return packFloats(u.MVP[:], u.Color[:])
}

// ShadowUniform feeds the shadow shader.
type ShadowUniform struct {
	LightMVP glm.Mat4
}

// Bytes implements interface
func (u ShadowUniform) Bytes() []byte {
	return packFloats(u.LightMVP[:])
}

// PostUniform feeds the post processing shader.
type PostUniform struct {
	Parameters glm.Vec4
}

// Bytes implements interface
func (u PostUniform) Bytes() []byte {
	return packFloats(u.Parameters[:])
}

// Perspective is a Vulkan projection, y pointing down and depth in [0, 1].
func Perspective(fovy, aspect, near, far float32) glm.Mat4 {
	clip := glm.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	return clip.Mul4(glm.Perspective(fovy, aspect, near, far))
}

func packFloats(parts ...[]float32) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	data := make([]byte, 4*n)
	var at int
	for _, p := range parts {
		for _, f := range p {
			binary.LittleEndian.PutUint32(data[at:], math.Float32bits(f))
			at += 4
		}
	}
	return data
}
