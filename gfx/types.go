// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import "fmt"

// Format identifies a pixel format.
type Format int

// Supported pixel formats
const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8SRGB
	FormatBGRA8Unorm
	FormatBGRA8SRGB
	FormatD16Unorm
)

var formatNames = map[Format]string{
	FormatUndefined:  "Undefined",
	FormatRGBA8Unorm: "RGBA8Unorm",
	FormatRGBA8SRGB:  "RGBA8SRGB",
	FormatBGRA8Unorm: "BGRA8Unorm",
	FormatBGRA8SRGB:  "BGRA8SRGB",
	FormatD16Unorm:   "D16Unorm",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// IsDepth reports whether the format is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatD16Unorm
}

// TexelSize returns the size of a single texel in bytes,
// zero for FormatUndefined.
func (f Format) TexelSize() int {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8SRGB, FormatBGRA8Unorm, FormatBGRA8SRGB:
		return 4
	case FormatD16Unorm:
		return 2
	}
	return 0
}

// Usage tags what an image is created for. Together with the Format
// it selects an entry of the image table.
type Usage int

// Image usages
const (
	UsageSampleTexture Usage = iota
	UsageDepthBuffer
	UsageOffscreenColor
	UsageOffscreenDepth
	UsageCubemap
	usageCount
)

var usageNames = [...]string{
	UsageSampleTexture:  "SampleTexture",
	UsageDepthBuffer:    "DepthBuffer",
	UsageOffscreenColor: "OffscreenColor",
	UsageOffscreenDepth: "OffscreenDepth",
	UsageCubemap:        "Cubemap",
}

func (u Usage) String() string {
	if u >= 0 && u < usageCount {
		return usageNames[u]
	}
	return fmt.Sprintf("Usage(%d)", int(u))
}

// Layout is an image layout.
type Layout int

// Image layouts
const (
	LayoutUndefined Layout = iota
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutPresentSrc
)

// Aspect selects the color or depth part of an image.
type Aspect int

// Image aspects
const (
	AspectColor Aspect = iota
	AspectDepth
)

// ImageUsage is a set of device usage bits for an image.
type ImageUsage uint32

// Image usage bits
const (
	ImageUsageTransferDst ImageUsage = 1 << iota
	ImageUsageSampled
	ImageUsageColorAttachment
	ImageUsageDepthAttachment
)

// BufferUsage is a set of device usage bits for a buffer.
type BufferUsage uint32

// Buffer usage bits
const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageTransferSrc
)

// PipelineStage is a set of pipeline stage bits used by barriers and submits.
type PipelineStage uint32

// Pipeline stage bits
const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageTransfer
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
)

// Access is a set of memory access bits used by barriers.
type Access uint32

// Memory access bits
const (
	AccessTransferWrite Access = 1 << iota
	AccessShaderRead
	AccessColorAttachmentWrite
	AccessDepthAttachmentWrite
)

// PresentMode is a swapchain presentation mode.
type PresentMode int

// Presentation modes
const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

// ShaderKind names one of the fixed, precompiled shader pairs.
type ShaderKind int

// Shader kinds
const (
	ShaderBasic ShaderKind = iota
	ShaderSkybox
	ShaderText
	ShaderShadow
	ShaderPost
	shaderKindCount
)

func (k ShaderKind) String() string {
	if class, err := ShaderInfo(k); err == nil {
		return class.Name
	}
	return fmt.Sprintf("ShaderKind(%d)", int(k))
}

// VertexFormat identifies the layout of vertex data.
type VertexFormat int

// Vertex formats
const (
	VertexFormatUndefined VertexFormat = iota
	// VertexFormatPNT32 is position 3f, normal 3f, uv 2f, 32 bytes per vertex.
	VertexFormatPNT32
)

// VertexStride is the size of one VertexFormatPNT32 vertex in bytes.
const VertexStride = 32
