// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfxtest provides a software gfx.Device that keeps a GPU timeline
// in memory. It records command buffers, executes them on completion of a
// submission, tracks every live object and collects protocol violations,
// such as destroying a render pass that pipelines still use.
//
// By default submissions complete as soon as they are made. In manual mode
// they stay pending until Complete is called, which lets tests observe
// fence backpressure.
package gfxtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/devblok/vkframe/gfx"
)

// DefaultSurface is the surface every new Device starts with.
const DefaultSurface gfx.SurfaceID = 1

// ErrInjected is wrapped by every failure injected with FailNext or FailAfter.
var ErrInjected = errors.New("gfxtest: injected failure")

// Kind is a kind of device object.
type Kind int

// Object kinds
const (
	KindBuffer Kind = iota
	KindImage
	KindView
	KindSampler
	KindSwapchain
	KindSemaphore
	KindFence
	KindShaderModule
	KindRenderPass
	KindFramebuffer
	KindPipeline
	KindDescriptorPool
	KindDescriptorSet
	KindCommandBuffer
	kindCount
)

var kindNames = [...]string{
	"buffer", "image", "view", "sampler", "swapchain", "semaphore", "fence",
	"shader module", "render pass", "framebuffer", "pipeline",
	"descriptor pool", "descriptor set", "command buffer",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Op names a recorded command.
type Op string

// Recorded commands
const (
	OpBeginRenderPass   Op = "BeginRenderPass"
	OpEndRenderPass     Op = "EndRenderPass"
	OpBindPipeline      Op = "BindPipeline"
	OpBindDescriptorSet Op = "BindDescriptorSet"
	OpBindVertexBuffer  Op = "BindVertexBuffer"
	OpBindIndexBuffer   Op = "BindIndexBuffer"
	OpDraw              Op = "Draw"
	OpDrawIndexed       Op = "DrawIndexed"
	OpImageBarrier      Op = "ImageBarrier"
	OpCopyBufferToImage Op = "CopyBufferToImage"
)

// Command is one recorded command, only the fields of its Op are set.
type Command struct {
	Op         Op
	RenderPass gfx.RenderPassBegin
	Pipeline   gfx.PipelineID
	Set        gfx.DescriptorSetID
	Buffer     gfx.BufferID
	Count      uint32
	Barrier    gfx.ImageBarrier
	Copy       gfx.BufferImageCopy
}

// Submission is a queue submission together with the commands it carried.
type Submission struct {
	Info     gfx.SubmitInfo
	Commands []Command
	Done     bool
}

// Present is a successful presentation.
type Present struct {
	Swapchain gfx.SwapchainID
	Image     uint32
}

type surface struct {
	caps       gfx.SurfaceCapabilities
	generation int
	swapchain  gfx.SwapchainID
}

type buffer struct {
	usage gfx.BufferUsage
	mem   []byte
}

type image struct {
	desc      gfx.ImageDesc
	layout    gfx.Layout
	views     int
	swapchain gfx.SwapchainID
	data      []byte
}

type view struct {
	image gfx.ImageID
	desc  gfx.ViewDesc
}

type swapchain struct {
	desc       gfx.SwapchainDesc
	images     []gfx.ImageID
	generation int
	next       uint32
}

type semaphore struct {
	signals int
}

type fence struct {
	signaled bool
}

type pool struct {
	desc     gfx.DescriptorPoolDesc
	sets     []gfx.DescriptorSetID
	uniforms uint32
	samplers uint32
}

type set struct {
	pool     gfx.DescriptorPoolID
	pipeline gfx.PipelineID
	write    *gfx.DescriptorWrite
}

type commandBuffer struct {
	commands  []Command
	recording bool
	pending   int
}

type failure struct {
	skip int
	err  error
}

// Device is a software gfx.Device. The zero value is not usable, use New.
type Device struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64

	surfaces       map[gfx.SurfaceID]*surface
	buffers        map[gfx.BufferID]*buffer
	images         map[gfx.ImageID]*image
	views          map[gfx.ViewID]*view
	samplers       map[gfx.SamplerID]struct{}
	swapchains     map[gfx.SwapchainID]*swapchain
	semaphores     map[gfx.SemaphoreID]*semaphore
	fences         map[gfx.FenceID]*fence
	shaders        map[gfx.ShaderModuleID]int
	renderPasses   map[gfx.RenderPassID]gfx.RenderPassDesc
	framebuffers   map[gfx.FramebufferID]gfx.FramebufferDesc
	pipelines      map[gfx.PipelineID]gfx.PipelineDesc
	pools          map[gfx.DescriptorPoolID]*pool
	sets           map[gfx.DescriptorSetID]*set
	commandBuffers map[gfx.CommandBufferID]*commandBuffer

	manual      bool
	submissions []*Submission
	presents    []Present
	violations  []string
	failures    map[string]*failure

	imageCount     uint32
	staleAtPresent bool
	skipAcquire    bool
	failFenceWait  bool
}

// New returns a device with DefaultSurface: two to eight images,
// 800x600, BGRA8 and RGBA8 formats, FIFO and mailbox present modes.
func New() *Device {
	d := &Device{
		surfaces:       make(map[gfx.SurfaceID]*surface),
		buffers:        make(map[gfx.BufferID]*buffer),
		images:         make(map[gfx.ImageID]*image),
		views:          make(map[gfx.ViewID]*view),
		samplers:       make(map[gfx.SamplerID]struct{}),
		swapchains:     make(map[gfx.SwapchainID]*swapchain),
		semaphores:     make(map[gfx.SemaphoreID]*semaphore),
		fences:         make(map[gfx.FenceID]*fence),
		shaders:        make(map[gfx.ShaderModuleID]int),
		renderPasses:   make(map[gfx.RenderPassID]gfx.RenderPassDesc),
		framebuffers:   make(map[gfx.FramebufferID]gfx.FramebufferDesc),
		pipelines:      make(map[gfx.PipelineID]gfx.PipelineDesc),
		pools:          make(map[gfx.DescriptorPoolID]*pool),
		sets:           make(map[gfx.DescriptorSetID]*set),
		commandBuffers: make(map[gfx.CommandBufferID]*commandBuffer),
		failures:       make(map[string]*failure),
	}
	d.cond = sync.NewCond(&d.mu)
	d.surfaces[DefaultSurface] = &surface{
		caps: gfx.SurfaceCapabilities{
			MinImageCount: 2,
			MaxImageCount: 8,
			CurrentExtent: gfx.Extent2D{Width: 800, Height: 600},
			MinExtent:     gfx.Extent2D{Width: 1, Height: 1},
			MaxExtent:     gfx.Extent2D{Width: 4096, Height: 4096},
			Formats:       []gfx.Format{gfx.FormatBGRA8Unorm, gfx.FormatRGBA8Unorm},
			PresentModes:  []gfx.PresentMode{gfx.PresentModeFifo, gfx.PresentModeMailbox},
		},
	}
	return d
}

func (d *Device) id() uint64 {
	d.next++
	return d.next
}

func (d *Device) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) fail(op string) error {
	f, ok := d.failures[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(d.failures, op)
	return &gfx.DeviceError{Op: op, Err: f.err}
}

func deviceError(op, format string, args ...interface{}) error {
	return &gfx.DeviceError{Op: op, Err: fmt.Errorf(format, args...)}
}
