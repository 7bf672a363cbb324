// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"image"
	"image/color"

	"github.com/devblok/vkframe/gfx"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Pixels converts any image to tightly packed RGBA8 rows. The result never
// shares memory with img.
func Pixels(img image.Image) []byte {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*rgba.Rect.Dx() && rgba.Rect.Min == (image.Point{}) {
		return append([]byte(nil), rgba.Pix[:4*rgba.Rect.Dx()*rgba.Rect.Dy()]...)
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return rgba.Pix
}

// Scale resizes an image to width x height with bilinear filtering.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

// Solid is a single colored image, a placeholder for missing textures.
func Solid(c color.Color, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// TextureSpec builds the preload spec of a sampled texture.
func TextureSpec(img image.Image) gfx.TextureSpec {
	b := img.Bounds()
	return gfx.TextureSpec{
		Usage:  gfx.UsageSampleTexture,
		Format: gfx.FormatRGBA8Unorm,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: Pixels(img),
	}
}

// Cubemap faces in layer order.
const (
	FacePositiveX = iota
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ
	faceCount
)

// CubemapSpec builds the preload spec of a cubemap. Every face is scaled
// to size x size.
func CubemapSpec(faces []image.Image, size int) (gfx.TextureSpec, error) {
	if len(faces) != faceCount {
		return gfx.TextureSpec{}, errors.Errorf("cubemap needs %d faces, got %d", faceCount, len(faces))
	}
	if size <= 0 {
		return gfx.TextureSpec{}, errors.Errorf("invalid cubemap size %d", size)
	}

	faceBytes := 4 * size * size
	pixels := make([]byte, 0, faceCount*faceBytes)
	for i, face := range faces {
		if face == nil {
			return gfx.TextureSpec{}, errors.Errorf("cubemap face %d missing", i)
		}
		pixels = append(pixels, Scale(face, size, size).Pix...)
	}

	return gfx.TextureSpec{
		Usage:  gfx.UsageCubemap,
		Format: gfx.FormatRGBA8Unorm,
		Width:  uint32(size),
		Height: uint32(size),
		Pixels: pixels,
	}, nil
}

// CrossFaces cuts the six faces out of a horizontal cross layout,
// four faces wide and three high.
func CrossFaces(cross image.Image) ([]image.Image, error) {
	b := cross.Bounds()
	size := b.Dx() / 4
	if size == 0 || b.Dy() != 3*size {
		return nil, errors.Errorf("%dx%d is not a horizontal cross", b.Dx(), b.Dy())
	}
	cells := [faceCount]image.Point{
		FacePositiveX: {2, 1},
		FaceNegativeX: {0, 1},
		FacePositiveY: {1, 0},
		FaceNegativeY: {1, 2},
		FacePositiveZ: {1, 1},
		FaceNegativeZ: {3, 1},
	}
	faces := make([]image.Image, faceCount)
	for i, cell := range cells {
		min := b.Min.Add(cell.Mul(size))
		face := image.NewRGBA(image.Rect(0, 0, size, size))
		draw.Draw(face, face.Rect, cross, min, draw.Src)
		faces[i] = face
	}
	return faces, nil
}
