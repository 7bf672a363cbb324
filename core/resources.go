// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"encoding/binary"
	"sort"

	"github.com/devblok/vkframe/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// GpuBuffer is a host visible vertex buffer, with an optional index buffer.
type GpuBuffer struct {
	Buffer gfx.BufferID
	Size   uint64
	Format gfx.VertexFormat
	Count  uint32

	Index      gfx.BufferID
	IndexCount uint32
}

// GpuImage is an image with a view over all of its layers.
type GpuImage struct {
	Image  gfx.ImageID
	View   gfx.ViewID
	Class  gfx.ImageClass
	Extent gfx.Extent2D
}

// StoreStats counts live store entries.
type StoreStats struct {
	Buffers  int
	Textures int
}

// ResourceStore owns the buffers and textures of a scene, keyed by the
// indices of its preload set. Entries survive swapchain recreation.
type ResourceStore struct {
	ctx *DeviceContext
	log *log.Entry

	buffers   map[int]*GpuBuffer
	textures  map[int]*GpuImage
	destroyed bool
}

// NewResourceStore creates an empty store.
func NewResourceStore(ctx *DeviceContext) *ResourceStore {
	return &ResourceStore{
		ctx:      ctx,
		log:      ctx.logger("resources"),
		buffers:  make(map[int]*GpuBuffer),
		textures: make(map[int]*GpuImage),
	}
}

// Load creates every entry of the set that is not loaded yet. The new
// entries are all validated before anything is allocated, and a device
// failure releases everything this call created, so a failed Load leaves
// the store as it was.
func (s *ResourceStore) Load(set gfx.ResourcePreloadSet) error {
	if s.destroyed {
		return ErrDestroyed
	}

	var vertices, textures []int
	for _, idx := range vertexIndices(set.Vertices) {
		if _, ok := s.buffers[idx]; ok {
			continue
		}
		if err := validateVertexSpec(idx, set.Vertices[idx]); err != nil {
			return err
		}
		vertices = append(vertices, idx)
	}
	classes := make(map[int]gfx.ImageClass)
	for _, idx := range textureIndices(set.Textures) {
		if _, ok := s.textures[idx]; ok {
			continue
		}
		class, err := validateTextureSpec(idx, set.Textures[idx])
		if err != nil {
			return err
		}
		classes[idx] = class
		textures = append(textures, idx)
	}

	var (
		newBuffers  = make(map[int]*GpuBuffer)
		newTextures = make(map[int]*GpuImage)
	)
	rollback := func() {
		for _, b := range newBuffers {
			s.destroyBuffer(b)
		}
		for _, t := range newTextures {
			s.destroyTexture(t)
		}
	}

	for _, idx := range vertices {
		buf, err := s.createVertexBuffer(set.Vertices[idx])
		if err != nil {
			rollback()
			return errors.Wrapf(err, "vertex buffer %d", idx)
		}
		newBuffers[idx] = buf
	}
	for _, idx := range textures {
		img, err := s.createTexture(classes[idx], set.Textures[idx])
		if err != nil {
			rollback()
			return errors.Wrapf(err, "texture %d", idx)
		}
		newTextures[idx] = img
	}

	for idx, b := range newBuffers {
		s.buffers[idx] = b
	}
	for idx, t := range newTextures {
		s.textures[idx] = t
	}
	if len(vertices)+len(textures) > 0 {
		s.log.WithFields(log.Fields{
			"buffers":  len(vertices),
			"textures": len(textures),
		}).Debug("scene resources loaded")
	}
	return nil
}

func validateVertexSpec(idx int, spec gfx.VertexSpec) error {
	op := "load vertices"
	switch {
	case spec.Format != gfx.VertexFormatPNT32:
		return gfx.Configurationf(op, "entry %d has unsupported vertex format %d", idx, spec.Format)
	case len(spec.Data) == 0:
		return gfx.Configurationf(op, "entry %d has no vertices", idx)
	case len(spec.Data)%gfx.VertexStride != 0:
		return gfx.Configurationf(op, "entry %d has %d bytes, not a multiple of %d", idx, len(spec.Data), gfx.VertexStride)
	}
	count := spec.Count()
	for i, v := range spec.Indices {
		if int(v) >= count {
			return gfx.Configurationf(op, "entry %d index %d points at vertex %d of %d", idx, i, v, count)
		}
	}
	return nil
}

func validateTextureSpec(idx int, spec gfx.TextureSpec) (gfx.ImageClass, error) {
	op := "load textures"
	class, err := gfx.ImageTraits(spec.Usage, spec.Format)
	if err != nil {
		return class, errors.Wrapf(err, "texture %d", idx)
	}
	if spec.Width == 0 || spec.Height == 0 {
		return class, gfx.Configurationf(op, "entry %d has size %dx%d", idx, spec.Width, spec.Height)
	}
	want := int(spec.Width) * int(spec.Height) * spec.Format.TexelSize() * int(class.Layers)
	switch {
	case class.RequiresData && len(spec.Pixels) != want:
		return class, gfx.Configurationf(op, "entry %d has %d bytes of pixels, want %d", idx, len(spec.Pixels), want)
	case !class.RequiresData && spec.Pixels != nil:
		return class, gfx.Configurationf(op, "entry %d of usage %s does not take pixels", idx, spec.Usage)
	}
	return class, nil
}

func (s *ResourceStore) createVertexBuffer(spec gfx.VertexSpec) (*GpuBuffer, error) {
	dev := s.ctx.Device
	b := &GpuBuffer{
		Size:   uint64(len(spec.Data)),
		Format: spec.Format,
		Count:  uint32(spec.Count()),
	}

	var err error
	if b.Buffer, err = dev.CreateBuffer(b.Size, gfx.BufferUsageVertex); err != nil {
		return nil, err
	}
	mem, err := dev.MapBuffer(b.Buffer)
	if err != nil {
		s.destroyBuffer(b)
		return nil, err
	}
	copy(mem, spec.Data)

	if len(spec.Indices) == 0 {
		return b, nil
	}
	b.IndexCount = uint32(len(spec.Indices))
	if b.Index, err = dev.CreateBuffer(uint64(4*len(spec.Indices)), gfx.BufferUsageIndex); err != nil {
		s.destroyBuffer(b)
		return nil, err
	}
	if mem, err = dev.MapBuffer(b.Index); err != nil {
		s.destroyBuffer(b)
		return nil, err
	}
	for i, v := range spec.Indices {
		binary.LittleEndian.PutUint32(mem[4*i:], v)
	}
	return b, nil
}

func (s *ResourceStore) createTexture(class gfx.ImageClass, spec gfx.TextureSpec) (*GpuImage, error) {
	dev := s.ctx.Device
	t := &GpuImage{Class: class, Extent: spec.Extent()}

	var err error
	t.Image, err = dev.CreateImage(gfx.ImageDesc{
		Format: class.Format,
		Extent: t.Extent,
		Layers: class.Layers,
		Cube:   class.Cube,
		Usage:  class.DeviceUsage,
	})
	if err != nil {
		return nil, err
	}
	t.View, err = dev.CreateImageView(t.Image, gfx.ViewDesc{
		Format: class.Format,
		Aspect: class.Aspect,
		Layers: class.Layers,
		Cube:   class.Cube,
	})
	if err != nil {
		s.destroyTexture(t)
		return nil, err
	}

	if class.RequiresData {
		err = s.upload(t, spec.Pixels)
	} else {
		err = s.ctx.oneShot(func(cmd gfx.CommandBufferID) {
			dev.CmdImageBarrier(cmd, readBarrier(t, gfx.LayoutUndefined, gfx.StageTopOfPipe, 0))
		})
	}
	if err != nil {
		s.destroyTexture(t)
		return nil, err
	}
	return t, nil
}

// upload copies pixels into the image through a staging buffer and leaves
// the image in the read layout of its class.
func (s *ResourceStore) upload(t *GpuImage, pixels []byte) error {
	dev := s.ctx.Device
	staging, err := dev.CreateBuffer(uint64(len(pixels)), gfx.BufferUsageTransferSrc)
	if err != nil {
		return err
	}
	defer dev.DestroyBuffer(staging)

	mem, err := dev.MapBuffer(staging)
	if err != nil {
		return err
	}
	copy(mem, pixels)

	return s.ctx.oneShot(func(cmd gfx.CommandBufferID) {
		dev.CmdImageBarrier(cmd, gfx.ImageBarrier{
			Image:     t.Image,
			Aspect:    t.Class.Aspect,
			Layers:    t.Class.Layers,
			OldLayout: gfx.LayoutUndefined,
			NewLayout: gfx.LayoutTransferDst,
			SrcStage:  gfx.StageTopOfPipe,
			DstStage:  gfx.StageTransfer,
			DstAccess: gfx.AccessTransferWrite,
		})
		dev.CmdCopyBufferToImage(cmd, gfx.BufferImageCopy{
			Buffer: staging,
			Image:  t.Image,
			Extent: t.Extent,
			Layers: t.Class.Layers,
		})
		dev.CmdImageBarrier(cmd, readBarrier(t, gfx.LayoutTransferDst, gfx.StageTransfer, gfx.AccessTransferWrite))
	})
}

// readBarrier moves an image into the layout it is read from.
func readBarrier(t *GpuImage, from gfx.Layout, stage gfx.PipelineStage, access gfx.Access) gfx.ImageBarrier {
	b := gfx.ImageBarrier{
		Image:     t.Image,
		Aspect:    t.Class.Aspect,
		Layers:    t.Class.Layers,
		OldLayout: from,
		NewLayout: t.Class.ReadLayout,
		SrcStage:  stage,
		SrcAccess: access,
	}
	switch t.Class.ReadLayout {
	case gfx.LayoutDepthAttachment:
		b.DstStage = gfx.StageEarlyFragmentTests
		b.DstAccess = gfx.AccessDepthAttachmentWrite
	default:
		b.DstStage = gfx.StageFragmentShader
		b.DstAccess = gfx.AccessShaderRead
	}
	return b
}

// Buffer returns a loaded vertex buffer.
func (s *ResourceStore) Buffer(idx int) (*GpuBuffer, error) {
	b, ok := s.buffers[idx]
	if !ok {
		return nil, errors.Wrapf(gfx.ErrNotLoaded, "vertex buffer %d", idx)
	}
	return b, nil
}

// Texture returns a loaded texture.
func (s *ResourceStore) Texture(idx int) (*GpuImage, error) {
	t, ok := s.textures[idx]
	if !ok {
		return nil, errors.Wrapf(gfx.ErrNotLoaded, "texture %d", idx)
	}
	return t, nil
}

// ReadBuffer returns a copy of the vertex bytes currently in the buffer.
func (s *ResourceStore) ReadBuffer(idx int) ([]byte, error) {
	b, err := s.Buffer(idx)
	if err != nil {
		return nil, err
	}
	mem, err := s.ctx.Device.MapBuffer(b.Buffer)
	if err != nil {
		return nil, errors.Wrapf(err, "read vertex buffer %d", idx)
	}
	out := make([]byte, b.Size)
	copy(out, mem)
	return out, nil
}

// Unload frees the vertex buffers and textures stored under the given
// indices. The caller makes sure no built graph references them.
func (s *ResourceStore) Unload(indices ...int) {
	for _, idx := range indices {
		if b, ok := s.buffers[idx]; ok {
			s.destroyBuffer(b)
			delete(s.buffers, idx)
		}
		if t, ok := s.textures[idx]; ok {
			s.destroyTexture(t)
			delete(s.textures, idx)
		}
	}
}

// Retain frees every entry the set does not name and returns how many
// entries were freed.
func (s *ResourceStore) Retain(set gfx.ResourcePreloadSet) int {
	var n int
	for idx, b := range s.buffers {
		if _, keep := set.Vertices[idx]; !keep {
			s.destroyBuffer(b)
			delete(s.buffers, idx)
			n++
		}
	}
	for idx, t := range s.textures {
		if _, keep := set.Textures[idx]; !keep {
			s.destroyTexture(t)
			delete(s.textures, idx)
			n++
		}
	}
	if n > 0 {
		s.log.WithField("freed", n).Debug("unused scene resources released")
	}
	return n
}

// Stats returns the number of loaded entries.
func (s *ResourceStore) Stats() StoreStats {
	return StoreStats{Buffers: len(s.buffers), Textures: len(s.textures)}
}

// Destroy frees every entry. Everything built on top of the store must be
// destroyed first. Calling it again does nothing.
func (s *ResourceStore) Destroy() {
	if s.destroyed {
		return
	}
	for idx, b := range s.buffers {
		s.destroyBuffer(b)
		delete(s.buffers, idx)
	}
	for idx, t := range s.textures {
		s.destroyTexture(t)
		delete(s.textures, idx)
	}
	s.destroyed = true
	s.log.Debug("resource store destroyed")
}

func (s *ResourceStore) destroyBuffer(b *GpuBuffer) {
	if b.Index != 0 {
		s.ctx.Device.DestroyBuffer(b.Index)
	}
	if b.Buffer != 0 {
		s.ctx.Device.DestroyBuffer(b.Buffer)
	}
}

func (s *ResourceStore) destroyTexture(t *GpuImage) {
	if t.View != 0 {
		s.ctx.Device.DestroyImageView(t.View)
	}
	if t.Image != 0 {
		s.ctx.Device.DestroyImage(t.Image)
	}
}

func vertexIndices(m map[int]gfx.VertexSpec) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func textureIndices(m map[int]gfx.TextureSpec) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
