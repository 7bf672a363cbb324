// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// SurfaceCapabilities is what the surface reports about the swapchains it accepts.
type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of zero means there is no upper bound.
	MaxImageCount uint32

	CurrentExtent Extent2D
	MinExtent     Extent2D
	MaxExtent     Extent2D

	Formats      []Format
	PresentModes []PresentMode
}

// ImageDesc describes an image to create, including its memory.
type ImageDesc struct {
	Format Format
	Extent Extent2D
	Layers uint32
	Cube   bool
	Usage  ImageUsage
}

// ViewDesc describes a view over an image.
type ViewDesc struct {
	Format Format
	Aspect Aspect
	Layers uint32
	Cube   bool
}

// SwapchainDesc describes a swapchain to create. Old, when set, is
// handed to the platform as a transition hint and stays owned by the caller.
type SwapchainDesc struct {
	Surface     SurfaceID
	ImageCount  uint32
	Format      Format
	Extent      Extent2D
	PresentMode PresentMode
	Old         SwapchainID
}

// RenderPassDesc describes a single-subpass render pass. An attachment
// with FormatUndefined is absent.
type RenderPassDesc struct {
	ColorFormat  Format
	ColorInitial Layout
	ColorFinal   Layout

	DepthFormat  Format
	DepthInitial Layout
	DepthFinal   Layout

	// Load keeps previous contents instead of clearing them,
	// the initial layouts only matter when it is set.
	Load bool
}

// FramebufferDesc describes a framebuffer. Attachments are in render pass
// order, color first.
type FramebufferDesc struct {
	RenderPass  RenderPassID
	Attachments []ViewID
	Extent      Extent2D
}

// VertexAttribute is one float vector attribute of a vertex.
type VertexAttribute struct {
	Location   uint32
	Offset     uint32
	Components uint32
}

// VertexLayout is the vertex input layout of a pipeline, single binding.
type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// PipelineDesc describes a graphics pipeline together with its layout. The
// descriptor set layout is one uniform buffer at binding 0 followed by
// Textures combined samplers.
type PipelineDesc struct {
	RenderPass RenderPassID
	Vertex     ShaderModuleID
	Fragment   ShaderModuleID
	Layout     VertexLayout

	DepthTest   bool
	ColorOutput bool

	UniformSize uint32
	Textures    int
}

// DescriptorPoolDesc sizes a descriptor pool.
type DescriptorPoolDesc struct {
	MaxSets  uint32
	Uniforms uint32
	Samplers uint32
}

// DescriptorWrite fills a descriptor set laid out by PipelineDesc.
type DescriptorWrite struct {
	Uniform     BufferID
	UniformSize uint64
	Views       []ViewID
	Sampler     SamplerID
}

// ImageBarrier is a pipeline barrier on a single image.
type ImageBarrier struct {
	Image     ImageID
	Aspect    Aspect
	Layers    uint32
	OldLayout Layout
	NewLayout Layout
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

// BufferImageCopy copies tightly packed texels from a buffer into all layers of an image.
type BufferImageCopy struct {
	Buffer BufferID
	Image  ImageID
	Extent Extent2D
	Layers uint32
}

// ClearValues are used when a render pass clears its attachments.
type ClearValues struct {
	Color [4]float32
	Depth float32
}

// RenderPassBegin starts a render pass instance. Viewport and scissor
// are set to cover Extent.
type RenderPassBegin struct {
	RenderPass  RenderPassID
	Framebuffer FramebufferID
	Extent      Extent2D
	Clear       ClearValues
}

// SubmitInfo is a single queue submission. Zero handles are omitted.
type SubmitInfo struct {
	CommandBuffer CommandBufferID
	Wait          SemaphoreID
	WaitStage     PipelineStage
	Signal        SemaphoreID
	Fence         FenceID
}

// Device is a logical GPU device with a single graphics and present queue.
// Calls are made from one goroutine at a time.
type Device interface {
	// SurfaceCapabilities queries the surface live.
	SurfaceCapabilities(SurfaceID) (SurfaceCapabilities, error)

	// CreateBuffer creates a host visible buffer and binds memory to it.
	CreateBuffer(size uint64, usage BufferUsage) (BufferID, error)

	// MapBuffer returns the persistently mapped memory of the buffer,
	// valid until the buffer is destroyed.
	MapBuffer(BufferID) ([]byte, error)
	DestroyBuffer(BufferID)

	// CreateImage creates a device local image and binds memory to it.
	CreateImage(ImageDesc) (ImageID, error)
	CreateImageView(ImageID, ViewDesc) (ViewID, error)
	DestroyImageView(ViewID)
	DestroyImage(ImageID)
	CreateSampler() (SamplerID, error)
	DestroySampler(SamplerID)

	// CreateSwapchain creates a swapchain and returns the images it owns.
	CreateSwapchain(SwapchainDesc) (SwapchainID, []ImageID, error)
	DestroySwapchain(SwapchainID)

	// AcquireNextImage returns the index of the next presentable image and
	// signals the semaphore once it is available. ErrSwapchainOutOfDate
	// is returned on a stale surface.
	AcquireNextImage(SwapchainID, SemaphoreID) (uint32, error)

	// QueuePresent presents the image after the semaphore is signaled.
	// ErrSwapchainOutOfDate is returned on a stale surface.
	QueuePresent(swapchain SwapchainID, image uint32, wait SemaphoreID) error

	CreateSemaphore() (SemaphoreID, error)
	DestroySemaphore(SemaphoreID)
	CreateFence(signaled bool) (FenceID, error)

	// WaitForFence blocks without a timeout until the fence is signaled.
	WaitForFence(FenceID) error
	ResetFence(FenceID) error
	DestroyFence(FenceID)

	CreateShaderModule(code []byte) (ShaderModuleID, error)
	DestroyShaderModule(ShaderModuleID)
	CreateRenderPass(RenderPassDesc) (RenderPassID, error)
	DestroyRenderPass(RenderPassID)
	CreateFramebuffer(FramebufferDesc) (FramebufferID, error)
	DestroyFramebuffer(FramebufferID)
	CreatePipeline(PipelineDesc) (PipelineID, error)
	DestroyPipeline(PipelineID)

	CreateDescriptorPool(DescriptorPoolDesc) (DescriptorPoolID, error)
	// DestroyDescriptorPool frees the pool and every set allocated from it.
	DestroyDescriptorPool(DescriptorPoolID)
	AllocateDescriptorSet(DescriptorPoolID, PipelineID) (DescriptorSetID, error)
	UpdateDescriptorSet(DescriptorSetID, DescriptorWrite) error

	AllocateCommandBuffer() (CommandBufferID, error)
	FreeCommandBuffer(CommandBufferID)
	BeginCommandBuffer(cmd CommandBufferID, oneShot bool) error
	EndCommandBuffer(CommandBufferID) error
	CmdBeginRenderPass(CommandBufferID, RenderPassBegin)
	CmdEndRenderPass(CommandBufferID)
	CmdBindPipeline(CommandBufferID, PipelineID)
	CmdBindDescriptorSet(CommandBufferID, PipelineID, DescriptorSetID)
	CmdBindVertexBuffer(CommandBufferID, BufferID)
	CmdBindIndexBuffer(CommandBufferID, BufferID)
	CmdDraw(cmd CommandBufferID, vertices uint32)
	CmdDrawIndexed(cmd CommandBufferID, indices uint32)
	CmdImageBarrier(CommandBufferID, ImageBarrier)
	CmdCopyBufferToImage(CommandBufferID, BufferImageCopy)

	QueueSubmit(SubmitInfo) error
	QueueWaitIdle() error
	DeviceWaitIdle() error
}
