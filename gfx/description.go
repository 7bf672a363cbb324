// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// VertexSpec is the creation spec of a vertex buffer.
type VertexSpec struct {
	Format VertexFormat

	// Data holds Count vertices of Format, VertexStride bytes each.
	Data []byte

	// Indices is optional, when set an index buffer is created alongside.
	Indices []uint32
}

// Count returns the number of whole vertices in Data.
func (v VertexSpec) Count() int {
	return len(v.Data) / VertexStride
}

// TextureSpec is the creation spec of an image.
type TextureSpec struct {
	Usage  Usage
	Format Format
	Width  uint32
	Height uint32

	// Pixels must be set for usages that require initial data and
	// must be nil for all others. Cubemaps carry six faces back to back.
	Pixels []byte
}

// Extent returns the texture size.
func (t TextureSpec) Extent() Extent2D {
	return Extent2D{Width: t.Width, Height: t.Height}
}

// ResourcePreloadSet maps caller-chosen stable indices to creation specs.
type ResourcePreloadSet struct {
	Vertices map[int]VertexSpec
	Textures map[int]TextureSpec
}

// TargetKind selects where a pass renders to.
type TargetKind int

// Render targets
const (
	TargetDefault TargetKind = iota
	TargetOffscreen
)

// NoTexture marks an unused attachment slot of an offscreen target.
const NoTexture = -1

// Target is the render target of a pass. For TargetOffscreen, ColorTexture and
// DepthTexture name preloaded textures (or NoTexture), at least one must be set.
type Target struct {
	Kind         TargetKind
	ColorTexture int
	DepthTexture int
}

// DefaultTarget renders to the current swapchain image and the swapchain depth image.
func DefaultTarget() Target {
	return Target{Kind: TargetDefault, ColorTexture: NoTexture, DepthTexture: NoTexture}
}

// OffscreenTarget renders into preloaded textures.
func OffscreenTarget(color, depth int) Target {
	return Target{Kind: TargetOffscreen, ColorTexture: color, DepthTexture: depth}
}

// Step is a single draw within a pass.
type Step struct {
	Shader       ShaderKind
	VertexBuffer int
	Textures     []int

	// Indexed draws with the index buffer of the vertex entry.
	Indexed   bool
	DepthTest bool
}

// Pass is an ordered list of steps drawn into one target.
type Pass struct {
	Target     Target
	ClearColor [4]float32

	// KeepContents loads the previous contents of the target
	// instead of clearing them.
	KeepContents bool

	Steps []Step
}

// DrawingDescription is the declarative drawing description of a scene.
// Passes and their steps execute strictly in declared order.
type DrawingDescription struct {
	Passes []Pass
}

// StepCount returns the total number of steps over all passes.
func (d DrawingDescription) StepCount() int {
	var n int
	for _, p := range d.Passes {
		n += len(p.Steps)
	}
	return n
}
