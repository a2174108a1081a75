// Package native is the boundary between gx and the graphics driver.
//
// gx never calls Vulkan directly: it records and submits work through the
// Device and CommandBuffer interfaces declared here. The vulkan package
// implements them on top of a real GPU, nativetest implements them in memory
// so the resource and synchronization logic of gx can be tested without one.
//
// Object interfaces are opaque. Each carries a single accessor returning the
// raw driver handle, which also keeps the interfaces from being mutually
// assignable.
package native

type Buffer interface {
	BufferHandle() uintptr
	Size() uint64
	// Mapped is the persistently mapped host memory of the buffer, nil when
	// the buffer is not host visible.
	Mapped() []byte
	Coherent() bool
	// DeviceAddress is zero unless the buffer was created with
	// BufferUsageDeviceAddress.
	DeviceAddress() uint64
}

type Image interface {
	ImageHandle() uintptr
}

type ImageView interface {
	ImageViewHandle() uintptr
}

type Sampler interface {
	SamplerHandle() uintptr
}

type ShaderModule interface {
	ShaderModuleHandle() uintptr
}

type DescriptorSetLayout interface {
	DescriptorSetLayoutHandle() uintptr
}

type DescriptorPool interface {
	DescriptorPoolHandle() uintptr
}

type DescriptorSet interface {
	DescriptorSetHandle() uintptr
}

type PipelineLayout interface {
	PipelineLayoutHandle() uintptr
}

type Pipeline interface {
	PipelineHandle() uintptr
}

type Fence interface {
	FenceHandle() uintptr
}

type Semaphore interface {
	SemaphoreHandle() uintptr
}

// Device owns every driver object and the single graphics queue gx submits to.
type Device interface {
	Properties() Properties
	FormatFeatures(Format) FormatFeature
	WaitIdle() error
	Raw() RawHandles

	CreateBuffer(BufferDesc) (Buffer, error)
	DestroyBuffer(Buffer)
	FlushMapped(b Buffer, offset, size uint64) error
	InvalidateMapped(b Buffer, offset, size uint64) error

	CreateImage(ImageDesc) (Image, error)
	DestroyImage(Image)
	CreateImageView(Image, ImageViewDesc) (ImageView, error)
	DestroyImageView(ImageView)

	CreateSampler(SamplerDesc) (Sampler, error)
	DestroySampler(Sampler)

	CreateShaderModule(spirv []byte) (ShaderModule, error)
	DestroyShaderModule(ShaderModule)

	CreateDescriptorSetLayout(DescriptorSetLayoutDesc) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(DescriptorSetLayout)
	CreateDescriptorPool(DescriptorPoolDesc) (DescriptorPool, error)
	DestroyDescriptorPool(DescriptorPool)
	AllocateDescriptorSet(DescriptorPool, DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(PipelineLayoutDesc) (PipelineLayout, error)
	DestroyPipelineLayout(PipelineLayout)
	CreateGraphicsPipeline(GraphicsPipelineDesc) (Pipeline, error)
	DestroyPipeline(Pipeline)

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(Fence)
	// FenceStatus reports whether the fence is signaled without blocking.
	FenceStatus(Fence) (bool, error)
	WaitForFences(fences []Fence, timeout uint64) error
	ResetFences(fences ...Fence) error

	CreateSemaphore() (Semaphore, error)
	CreateTimelineSemaphore(initial uint64) (Semaphore, error)
	DestroySemaphore(Semaphore)
	WaitTimeline(s Semaphore, value uint64, timeout uint64) error

	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(CommandBuffer)
	Submit(SubmitInfo) error

	// HasSurface reports whether CreateSwapchain can be called.
	HasSurface() bool
	// SurfaceExtent is the current drawable size of the surface.
	SurfaceExtent() Extent2D
	SurfaceSupportsStorage(Format) bool
	CreateSwapchain(SwapchainDesc) (Swapchain, error)
}

type Swapchain interface {
	Images() []Image
	Extent() Extent2D
	Format() Format
	// AcquireNextImage signals the semaphore once the returned image is ready.
	// StatusSuboptimal and StatusOutOfDate are reported without an error.
	AcquireNextImage(timeout uint64, signal Semaphore) (uint32, Status, error)
	Present(wait Semaphore, index uint32) (Status, error)
	Destroy()
}

// CommandBuffer records work for a single submission. Begin starts a one
// time submit recording.
type CommandBuffer interface {
	CommandBufferHandle() uintptr
	Begin() error
	End() error
	Reset() error

	PipelineBarrier(images []ImageBarrier, buffers []BufferBarrier)
	CopyBuffer(src, dst Buffer, regions ...BufferCopy)
	CopyBufferToImage(src Buffer, dst Image, dstLayout Layout, regions ...BufferImageCopy)
	CopyImageToBuffer(src Image, srcLayout Layout, dst Buffer, regions ...BufferImageCopy)
	CopyImage(src Image, srcLayout Layout, dst Image, dstLayout Layout, regions ...ImageCopy)
	BlitImage(src Image, srcLayout Layout, dst Image, dstLayout Layout, filter Filter, regions ...ImageBlit)
	UpdateBuffer(dst Buffer, offset uint64, data []byte)

	BeginRendering(RenderingInfo)
	EndRendering()
	BindPipeline(BindPoint, Pipeline)
	BindDescriptorSets(bp BindPoint, layout PipelineLayout, first uint32, sets ...DescriptorSet)
	PushConstants(layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	BindIndexBuffer(b Buffer, offset uint64, t IndexType)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	DrawIndirect(b Buffer, offset uint64, drawCount, stride uint32)
	DrawIndexedIndirect(b Buffer, offset uint64, drawCount, stride uint32)

	SetViewport(Viewport)
	SetScissor(Rect2D)
	SetDepthTestEnable(bool)
	SetDepthWriteEnable(bool)
	SetDepthCompareOp(CompareOp)
	SetDepthBiasEnable(bool)
	SetDepthBias(constant, clamp, slope float32)
}
