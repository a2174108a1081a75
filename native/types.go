package native

type Extent2D struct {
	Width, Height uint32
}

type Extent3D struct {
	Width, Height, Depth uint32
}

type Offset2D struct {
	X, Y int32
}

type Offset3D struct {
	X, Y, Z int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

type SubresourceRange struct {
	Aspect         ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

type SubresourceLayers struct {
	Aspect         ImageAspect
	MipLevel       uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// Limits holds the device limits gx checks. The descriptor counts are the
// update after bind limits that apply to the bindless pool.
type Limits struct {
	MaxImageDimension2D             uint32
	MaxStorageBufferRange           uint32
	MaxPushConstantsSize            uint32
	NonCoherentAtomSize             uint64
	MaxUpdateAfterBindSampledImages uint32
	MaxUpdateAfterBindSamplers      uint32
	MaxUpdateAfterBindStorageImages uint32
	MaxColorAttachments             uint32
	MaxSamplerAnisotropy            float32
	FramebufferColorSampleMask      SampleCount
}

type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

type Properties struct {
	DeviceName    string
	DeviceType    DeviceType
	APIVersion    uint32
	DriverVersion uint32
	VendorID      uint32
	DeviceID      uint32
	Limits        Limits
	MemoryHeaps   []MemoryHeap
}

type BufferDesc struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryProperty
	Label  string
}

type ImageDesc struct {
	Type        ImageType
	Format      Format
	Extent      Extent3D
	MipLevels   uint32
	ArrayLayers uint32
	Samples     SampleCount
	Usage       ImageUsage
	Memory      MemoryProperty
	Flags       ImageCreateFlags
	Label       string
}

type ImageViewDesc struct {
	ViewType ImageViewType
	Format   Format
	Range    SubresourceRange
}

type SamplerDesc struct {
	MagFilter     Filter
	MinFilter     Filter
	MipmapMode    MipmapMode
	MipmapEnabled bool
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	Anisotropy    bool
	MaxAnisotropy float32
	MinLod        float32
	MaxLod        float32
	Label         string
}

type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
	Flags   DescriptorBindingFlags
}

type DescriptorSetLayoutDesc struct {
	Bindings []DescriptorSetLayoutBinding
	// UpdateAfterBindPool requests a layout that can only be allocated from
	// an update-after-bind pool.
	UpdateAfterBindPool bool
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolDesc struct {
	MaxSets         uint32
	Sizes           []DescriptorPoolSize
	UpdateAfterBind bool
	FreeSets        bool
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  Layout
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

type DescriptorWrite struct {
	Set          DescriptorSet
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType
	Images       []DescriptorImageInfo
	Buffers      []DescriptorBufferInfo
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type PipelineLayoutDesc struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

// GraphicsPipelineDesc builds a dynamic-rendering pipeline with one shader
// module that carries both the vertex and fragment entry points. Viewport,
// scissor, depth test, depth write, depth compare op and depth bias are
// dynamic state.
type GraphicsPipelineDesc struct {
	Layout        PipelineLayout
	Module        ShaderModule
	VertexEntry   string
	FragmentEntry string
	Topology      Topology
	Polygon       PolygonMode
	Cull          CullMode
	Samples       SampleCount
	Blend         Blend
	ColorFormats  []Format
	DepthFormat   Format
	Label         string
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferImageCopy mirrors VkBufferImageCopy. RowLength and ImageHeight of
// zero mean tightly packed.
type BufferImageCopy struct {
	BufferOffset uint64
	RowLength    uint32
	ImageHeight  uint32
	Subresource  SubresourceLayers
	Offset       Offset3D
	Extent       Extent3D
}

type ImageCopy struct {
	SrcSubresource SubresourceLayers
	SrcOffset      Offset3D
	DstSubresource SubresourceLayers
	DstOffset      Offset3D
	Extent         Extent3D
}

type ImageBlit struct {
	SrcSubresource SubresourceLayers
	SrcOffsets     [2]Offset3D
	DstSubresource SubresourceLayers
	DstOffsets     [2]Offset3D
}

type ImageBarrier struct {
	Image     Image
	SrcStage  PipelineStage
	SrcAccess Access
	DstStage  PipelineStage
	DstAccess Access
	OldLayout Layout
	NewLayout Layout
	Range     SubresourceRange
}

type BufferBarrier struct {
	Buffer    Buffer
	SrcStage  PipelineStage
	SrcAccess Access
	DstStage  PipelineStage
	DstAccess Access
	Offset    uint64
	Size      uint64
}

type ClearColor [4]float32

type ClearDepthStencil struct {
	Depth   float32
	Stencil uint32
}

type RenderingAttachment struct {
	View        ImageView
	Layout      Layout
	ResolveMode ResolveMode
	ResolveView ImageView
	// ResolveLayout applies to ResolveView when ResolveMode is not ResolveNone.
	ResolveLayout Layout
	LoadOp        LoadOp
	StoreOp       StoreOp
	ClearColor    ClearColor
	ClearDepth    ClearDepthStencil
}

type RenderingInfo struct {
	Area   Rect2D
	Layers uint32
	Color  []RenderingAttachment
	// Depth is nil when the pass has no depth attachment.
	Depth *RenderingAttachment
}

type SemaphoreSubmit struct {
	Semaphore Semaphore
	// Value is only read for timeline semaphores.
	Value uint64
	Stage PipelineStage
}

type SubmitInfo struct {
	Command CommandBuffer
	Waits   []SemaphoreSubmit
	Signals []SemaphoreSubmit
	Fence   Fence
}

type SwapchainDesc struct {
	Width       uint32
	Height      uint32
	Format      Format
	ColorSpace  ColorSpace
	PresentMode PresentMode
	Usage       ImageUsage
	MinImages   uint32
	// Old is retired by the new swapchain when set.
	Old Swapchain
}

// RawHandles exposes the dispatchable Vulkan objects to code that has to
// talk to Vulkan directly, such as an editor UI backend. Devices without a
// Vulkan instance leave every field zero.
type RawHandles struct {
	Instance         uintptr
	PhysicalDevice   uintptr
	Device           uintptr
	Queue            uintptr
	QueueFamilyIndex uint32
}
