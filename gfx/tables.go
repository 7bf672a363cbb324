// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import "fmt"

// ImageClass describes how images of one (usage, format) pair are created and read.
type ImageClass struct {
	Usage  Usage
	Format Format

	Aspect Aspect
	Layers uint32
	Cube   bool

	// RequiresData is true when pixels must be supplied at load time,
	// false when they must not be.
	RequiresData bool

	// ReadLayout is the layout the image rests in after upload or after
	// a render pass wrote to it.
	ReadLayout Layout

	// Sampled is true when shaders may bind the image.
	Sampled bool

	DeviceUsage ImageUsage
}

type imageKey struct {
	usage  Usage
	format Format
}

var imageTable = map[imageKey]ImageClass{
	{UsageDepthBuffer, FormatD16Unorm}: {
		Aspect:      AspectDepth,
		Layers:      1,
		ReadLayout:  LayoutDepthAttachment,
		DeviceUsage: ImageUsageDepthAttachment,
	},
	{UsageOffscreenColor, FormatRGBA8Unorm}: {
		Aspect:      AspectColor,
		Layers:      1,
		ReadLayout:  LayoutShaderReadOnly,
		Sampled:     true,
		DeviceUsage: ImageUsageColorAttachment | ImageUsageSampled,
	},
	{UsageOffscreenDepth, FormatD16Unorm}: {
		Aspect:      AspectDepth,
		Layers:      1,
		ReadLayout:  LayoutShaderReadOnly,
		Sampled:     true,
		DeviceUsage: ImageUsageDepthAttachment | ImageUsageSampled,
	},
	{UsageSampleTexture, FormatRGBA8Unorm}: {
		Aspect:       AspectColor,
		Layers:       1,
		RequiresData: true,
		ReadLayout:   LayoutShaderReadOnly,
		Sampled:      true,
		DeviceUsage:  ImageUsageTransferDst | ImageUsageSampled,
	},
	{UsageCubemap, FormatRGBA8Unorm}: {
		Aspect:       AspectColor,
		Layers:       6,
		Cube:         true,
		RequiresData: true,
		ReadLayout:   LayoutShaderReadOnly,
		Sampled:      true,
		DeviceUsage:  ImageUsageTransferDst | ImageUsageSampled,
	},
}

// ImageTraits looks up the image class of a (usage, format) pair.
// Pairs outside the table are configuration errors.
func ImageTraits(usage Usage, format Format) (ImageClass, error) {
	class, ok := imageTable[imageKey{usage, format}]
	if !ok {
		return ImageClass{}, Configurationf("image table", "usage %s does not support format %s", usage, format)
	}
	class.Usage = usage
	class.Format = format
	return class, nil
}

// ShaderClass describes one fixed shader pair.
type ShaderClass struct {
	Kind ShaderKind

	// Name is the base name of the compiled shader files,
	// <name>.vert.spv and <name>.frag.spv.
	Name string

	// UniformSize is the exact size of the uniform data the shader expects.
	UniformSize int

	// Textures is the number of combined samplers bound after the uniform buffer.
	Textures int

	// ColorOutput is false for depth-only shaders.
	ColorOutput bool
}

var shaderTable = map[ShaderKind]ShaderClass{
	// model, view, projection
	ShaderBasic: {Name: "basic", UniformSize: 192, Textures: 1, ColorOutput: true},
	// view, projection
	ShaderSkybox: {Name: "skybox", UniformSize: 128, Textures: 1, ColorOutput: true},
	// mvp, color
	ShaderText: {Name: "text", UniformSize: 80, Textures: 1, ColorOutput: true},
	// light mvp
	ShaderShadow: {Name: "shadow", UniformSize: 64, Textures: 0, ColorOutput: false},
	// parameters vec4
	ShaderPost: {Name: "post", UniformSize: 16, Textures: 1, ColorOutput: true},
}

// ShaderInfo looks up the shader class of a shader kind.
func ShaderInfo(kind ShaderKind) (ShaderClass, error) {
	class, ok := shaderTable[kind]
	if !ok {
		return ShaderClass{}, Configurationf("shader table", "no shader for kind %d", int(kind))
	}
	class.Kind = kind
	return class, nil
}

// ShaderKinds lists every shader kind in declaration order.
func ShaderKinds() []ShaderKind {
	kinds := make([]ShaderKind, 0, shaderKindCount)
	for k := ShaderKind(0); k < shaderKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// ValidateTables checks that every usage has exactly one image table entry,
// and every shader kind a well formed shader entry. It is run once at startup.
func ValidateTables() error {
	seen := make(map[Usage]int)
	for key, class := range imageTable {
		if key.usage < 0 || key.usage >= usageCount {
			return fmt.Errorf("image table: unknown usage %d", int(key.usage))
		}
		if key.format.TexelSize() == 0 {
			return fmt.Errorf("image table: %s has no texel size", key.format)
		}
		if class.Layers == 0 {
			return fmt.Errorf("image table: %s/%s has no layers", key.usage, key.format)
		}
		if key.format.IsDepth() != (class.Aspect == AspectDepth) {
			return fmt.Errorf("image table: %s/%s aspect does not match format", key.usage, key.format)
		}
		seen[key.usage]++
	}
	for u := Usage(0); u < usageCount; u++ {
		if seen[u] != 1 {
			return fmt.Errorf("image table: usage %s has %d entries", u, seen[u])
		}
	}

	names := make(map[string]ShaderKind)
	for k := ShaderKind(0); k < shaderKindCount; k++ {
		class, ok := shaderTable[k]
		if !ok {
			return fmt.Errorf("shader table: kind %d has no entry", int(k))
		}
		if class.Name == "" || class.UniformSize <= 0 || class.UniformSize%16 != 0 {
			return fmt.Errorf("shader table: kind %d is malformed", int(k))
		}
		if other, dup := names[class.Name]; dup {
			return fmt.Errorf("shader table: kinds %d and %d share name %s", int(other), int(k), class.Name)
		}
		names[class.Name] = k
	}
	if len(shaderTable) != int(shaderKindCount) {
		return fmt.Errorf("shader table: %d entries for %d kinds", len(shaderTable), int(shaderKindCount))
	}
	return nil
}
