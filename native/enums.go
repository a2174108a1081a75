package native

// The numeric values of every enum in this file match the corresponding
// Vulkan enumerant, so a Vulkan backed Device converts them with a plain cast.

type Layout int32

const (
	LayoutUndefined              Layout = 0
	LayoutGeneral                Layout = 1
	LayoutColorAttachment        Layout = 2
	LayoutDepthStencilAttachment Layout = 3
	LayoutDepthStencilReadOnly   Layout = 4
	LayoutShaderReadOnly         Layout = 5
	LayoutTransferSrc            Layout = 6
	LayoutTransferDst            Layout = 7
	LayoutPreinitialized         Layout = 8
	LayoutDepthAttachment        Layout = 1000241000
	LayoutDepthReadOnly          Layout = 1000241001
	LayoutReadOnly               Layout = 1000314000
	LayoutAttachment             Layout = 1000314001
	LayoutPresentSrc             Layout = 1000001002
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "UNDEFINED"
	case LayoutGeneral:
		return "GENERAL"
	case LayoutColorAttachment:
		return "COLOR_ATTACHMENT_OPTIMAL"
	case LayoutDepthStencilAttachment:
		return "DEPTH_STENCIL_ATTACHMENT_OPTIMAL"
	case LayoutDepthStencilReadOnly:
		return "DEPTH_STENCIL_READ_ONLY_OPTIMAL"
	case LayoutShaderReadOnly:
		return "SHADER_READ_ONLY_OPTIMAL"
	case LayoutTransferSrc:
		return "TRANSFER_SRC_OPTIMAL"
	case LayoutTransferDst:
		return "TRANSFER_DST_OPTIMAL"
	case LayoutPreinitialized:
		return "PREINITIALIZED"
	case LayoutDepthAttachment:
		return "DEPTH_ATTACHMENT_OPTIMAL"
	case LayoutDepthReadOnly:
		return "DEPTH_READ_ONLY_OPTIMAL"
	case LayoutReadOnly:
		return "READ_ONLY_OPTIMAL"
	case LayoutAttachment:
		return "ATTACHMENT_OPTIMAL"
	case LayoutPresentSrc:
		return "PRESENT_SRC"
	}
	return "UNKNOWN_LAYOUT"
}

// PipelineStage is a synchronization1 stage mask.
type PipelineStage uint32

const (
	StageNone                       PipelineStage = 0
	StageTopOfPipe                  PipelineStage = 0x00000001
	StageDrawIndirect               PipelineStage = 0x00000002
	StageVertexInput                PipelineStage = 0x00000004
	StageVertexShader               PipelineStage = 0x00000008
	StageFragmentShader             PipelineStage = 0x00000080
	StageEarlyFragmentTests         PipelineStage = 0x00000100
	StageLateFragmentTests          PipelineStage = 0x00000200
	StageColorAttachmentOutput      PipelineStage = 0x00000400
	StageComputeShader              PipelineStage = 0x00000800
	StageTransfer                   PipelineStage = 0x00001000
	StageBottomOfPipe               PipelineStage = 0x00002000
	StageHost                       PipelineStage = 0x00004000
	StageAllGraphics                PipelineStage = 0x00008000
	StageAllCommands                PipelineStage = 0x00010000
	StageAccelerationStructureBuild PipelineStage = 0x02000000
)

type Access uint32

const (
	AccessNone                 Access = 0
	AccessIndirectCommandRead  Access = 0x00000001
	AccessIndexRead            Access = 0x00000002
	AccessVertexAttributeRead  Access = 0x00000004
	AccessUniformRead          Access = 0x00000008
	AccessShaderRead           Access = 0x00000020
	AccessShaderWrite          Access = 0x00000040
	AccessColorAttachmentRead  Access = 0x00000080
	AccessColorAttachmentWrite Access = 0x00000100
	AccessDepthStencilRead     Access = 0x00000200
	AccessDepthStencilWrite    Access = 0x00000400
	AccessTransferRead         Access = 0x00000800
	AccessTransferWrite        Access = 0x00001000
	AccessHostRead             Access = 0x00002000
	AccessHostWrite            Access = 0x00004000
	AccessMemoryRead           Access = 0x00008000
	AccessMemoryWrite          Access = 0x00010000
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc                     BufferUsage = 0x00000001
	BufferUsageTransferDst                     BufferUsage = 0x00000002
	BufferUsageUniform                         BufferUsage = 0x00000010
	BufferUsageStorage                         BufferUsage = 0x00000020
	BufferUsageIndex                           BufferUsage = 0x00000040
	BufferUsageVertex                          BufferUsage = 0x00000080
	BufferUsageIndirect                        BufferUsage = 0x00000100
	BufferUsageDeviceAddress                   BufferUsage = 0x00020000
	BufferUsageAccelerationStructureBuildInput BufferUsage = 0x00080000
)

type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x00000001
	ImageUsageTransferDst            ImageUsage = 0x00000002
	ImageUsageSampled                ImageUsage = 0x00000004
	ImageUsageStorage                ImageUsage = 0x00000008
	ImageUsageColorAttachment        ImageUsage = 0x00000010
	ImageUsageDepthStencilAttachment ImageUsage = 0x00000020
	ImageUsageTransientAttachment    ImageUsage = 0x00000040
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal     MemoryProperty = 0x00000001
	MemoryHostVisible     MemoryProperty = 0x00000002
	MemoryHostCoherent    MemoryProperty = 0x00000004
	MemoryHostCached      MemoryProperty = 0x00000008
	MemoryLazilyAllocated MemoryProperty = 0x00000010
)

type ImageAspect uint32

const (
	AspectColor   ImageAspect = 0x00000001
	AspectDepth   ImageAspect = 0x00000002
	AspectStencil ImageAspect = 0x00000004
	AspectPlane0  ImageAspect = 0x00000010
	AspectPlane1  ImageAspect = 0x00000020
	AspectPlane2  ImageAspect = 0x00000040
)

type ImageType int32

const (
	ImageType1D ImageType = 0
	ImageType2D ImageType = 1
	ImageType3D ImageType = 2
)

type ImageViewType int32

const (
	ViewType1D        ImageViewType = 0
	ViewType2D        ImageViewType = 1
	ViewType3D        ImageViewType = 2
	ViewTypeCube      ImageViewType = 3
	ViewType1DArray   ImageViewType = 4
	ViewType2DArray   ImageViewType = 5
	ViewTypeCubeArray ImageViewType = 6
)

type ImageCreateFlags uint32

const ImageCreateCubeCompatible ImageCreateFlags = 0x00000010

type SampleCount uint32

const (
	Samples1  SampleCount = 0x01
	Samples2  SampleCount = 0x02
	Samples4  SampleCount = 0x04
	Samples8  SampleCount = 0x08
	Samples16 SampleCount = 0x10
)

type Filter int32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

type MipmapMode int32

const (
	MipmapNearest MipmapMode = 0
	MipmapLinear  MipmapMode = 1
)

type AddressMode int32

const (
	AddressRepeat         AddressMode = 0
	AddressMirroredRepeat AddressMode = 1
	AddressClampToEdge    AddressMode = 2
	AddressClampToBorder  AddressMode = 3
)

type DescriptorType int32

const (
	DescriptorSampler       DescriptorType = 0
	DescriptorSampledImage  DescriptorType = 2
	DescriptorStorageImage  DescriptorType = 3
	DescriptorUniformBuffer DescriptorType = 6
	DescriptorStorageBuffer DescriptorType = 7
)

type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000010
	ShaderStageCompute  ShaderStage = 0x00000020
)

type DescriptorBindingFlags uint32

const (
	BindingUpdateAfterBind          DescriptorBindingFlags = 0x00000001
	BindingUpdateUnusedWhilePending DescriptorBindingFlags = 0x00000002
	BindingPartiallyBound           DescriptorBindingFlags = 0x00000004
)

type FormatFeature uint32

const (
	FeatureSampledImage             FormatFeature = 0x00000001
	FeatureStorageImage             FormatFeature = 0x00000002
	FeatureColorAttachment          FormatFeature = 0x00000080
	FeatureColorAttachmentBlend     FormatFeature = 0x00000100
	FeatureDepthStencilAttachment   FormatFeature = 0x00000200
	FeatureBlitSrc                  FormatFeature = 0x00000400
	FeatureBlitDst                  FormatFeature = 0x00000800
	FeatureSampledImageFilterLinear FormatFeature = 0x00001000
)

type LoadOp int32

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
	LoadOpNone     LoadOp = 1000400000
)

type StoreOp int32

const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
	StoreOpNone     StoreOp = 1000301000
)

type ResolveMode uint32

const (
	ResolveNone       ResolveMode = 0
	ResolveSampleZero ResolveMode = 0x01
	ResolveAverage    ResolveMode = 0x02
	ResolveMin        ResolveMode = 0x04
	ResolveMax        ResolveMode = 0x08
)

type CompareOp int32

const (
	CompareNever          CompareOp = 0
	CompareLess           CompareOp = 1
	CompareEqual          CompareOp = 2
	CompareLessOrEqual    CompareOp = 3
	CompareGreater        CompareOp = 4
	CompareNotEqual       CompareOp = 5
	CompareGreaterOrEqual CompareOp = 6
	CompareAlways         CompareOp = 7
)

type CullMode uint32

const (
	CullNone  CullMode = 0
	CullFront CullMode = 1
	CullBack  CullMode = 2
)

type PolygonMode int32

const (
	PolygonFill  PolygonMode = 0
	PolygonLine  PolygonMode = 1
	PolygonPoint PolygonMode = 2
)

type Topology int32

const (
	TopologyPointList     Topology = 0
	TopologyLineList      Topology = 1
	TopologyLineStrip     Topology = 2
	TopologyTriangleList  Topology = 3
	TopologyTriangleStrip Topology = 4
)

type IndexType int32

const (
	IndexUint16 IndexType = 0
	IndexUint32 IndexType = 1
)

type BindPoint int32

const (
	BindPointGraphics BindPoint = 0
	BindPointCompute  BindPoint = 1
)

type PresentMode int32

const (
	PresentImmediate   PresentMode = 0
	PresentMailbox     PresentMode = 1
	PresentFifo        PresentMode = 2
	PresentFifoRelaxed PresentMode = 3
)

// ColorSpace values follow VkColorSpaceKHR.
type ColorSpace int32

const ColorSpaceSRGBNonlinear ColorSpace = 0

// Blend selects one of the fixed blend setups a pipeline can be built with.
type Blend int

const (
	BlendOff Blend = iota
	BlendAdditive
	BlendAlpha
)

// Status is the non-error outcome of an acquire or present.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

type DeviceType int32

const (
	DeviceTypeOther         DeviceType = 0
	DeviceTypeIntegratedGPU DeviceType = 1
	DeviceTypeDiscreteGPU   DeviceType = 2
	DeviceTypeVirtualGPU    DeviceType = 3
	DeviceTypeCPU           DeviceType = 4
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

// RemainingMipLevels and RemainingArrayLayers select everything past the base.
const (
	RemainingMipLevels   = ^uint32(0)
	RemainingArrayLayers = ^uint32(0)
	WholeSize            = ^uint64(0)
)
