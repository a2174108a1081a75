package gx

import "github.com/celer/gx/native"

type BufferUsage uint8

const (
	BufferUsageIndex BufferUsage = 1 << iota
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndirect
)

type TextureUsage uint8

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageStorage
	TextureUsageAttachment
)

// StorageType selects the memory a resource lives in. The zero value is
// device local memory.
type StorageType uint8

const (
	StorageDevice StorageType = iota
	StorageHostVisible
	StorageMemoryless
)

func (s StorageType) memory() native.MemoryProperty {
	switch s {
	case StorageHostVisible:
		return native.MemoryHostVisible | native.MemoryHostCoherent
	case StorageMemoryless:
		return native.MemoryDeviceLocal | native.MemoryLazilyAllocated
	}
	return native.MemoryDeviceLocal
}

type TextureType uint8

const (
	TextureType2D TextureType = iota
	TextureType3D
	TextureTypeCube
)

type SampleCount uint8

const (
	SampleCountX1 SampleCount = iota
	SampleCountX2
	SampleCountX4
	SampleCountX8
)

func (s SampleCount) native() native.SampleCount {
	return native.SampleCount(1 << s)
}

type BlendingMode uint8

const (
	BlendOff BlendingMode = iota
	BlendAdditive
	BlendAlpha
)

func (b BlendingMode) native() native.Blend {
	switch b {
	case BlendAdditive:
		return native.BlendAdditive
	case BlendAlpha:
		return native.BlendAlpha
	}
	return native.BlendOff
}

type CullMode uint8

const (
	CullBack CullMode = iota
	CullOff
	CullFront
)

func (c CullMode) native() native.CullMode {
	switch c {
	case CullOff:
		return native.CullNone
	case CullFront:
		return native.CullFront
	}
	return native.CullBack
}

type PolygonMode uint8

const (
	PolygonFill PolygonMode = iota
	PolygonLine
)

func (p PolygonMode) native() native.PolygonMode {
	if p == PolygonLine {
		return native.PolygonLine
	}
	return native.PolygonFill
}

type TopologyMode uint8

const (
	TopologyTriangle TopologyMode = iota
	TopologyLineList
	TopologyLineStrip
)

func (t TopologyMode) native() native.Topology {
	switch t {
	case TopologyLineList:
		return native.TopologyLineList
	case TopologyLineStrip:
		return native.TopologyLineStrip
	}
	return native.TopologyTriangleList
}

type SamplerFilter uint8

const (
	FilterLinear SamplerFilter = iota
	FilterNearest
)

func (f SamplerFilter) native() native.Filter {
	if f == FilterNearest {
		return native.FilterNearest
	}
	return native.FilterLinear
}

type SamplerMip uint8

const (
	MipDisabled SamplerMip = iota
	MipNearest
	MipLinear
)

type SamplerWrap uint8

const (
	WrapRepeat SamplerWrap = iota
	WrapClamp
	WrapMirrorRepeat
)

func (w SamplerWrap) native() native.AddressMode {
	switch w {
	case WrapClamp:
		return native.AddressClampToEdge
	case WrapMirrorRepeat:
		return native.AddressMirroredRepeat
	}
	return native.AddressRepeat
}

type LoadOp uint8

const (
	LoadDontCare LoadOp = iota
	LoadNone
	LoadClear
	LoadLoad
)

func (l LoadOp) native() native.LoadOp {
	switch l {
	case LoadNone:
		return native.LoadOpNone
	case LoadClear:
		return native.LoadOpClear
	case LoadLoad:
		return native.LoadOpLoad
	}
	return native.LoadOpDontCare
}

type StoreOp uint8

const (
	StoreDontCare StoreOp = iota
	StoreNone
	StoreStore
)

func (s StoreOp) native() native.StoreOp {
	switch s {
	case StoreNone:
		return native.StoreOpNone
	case StoreStore:
		return native.StoreOpStore
	}
	return native.StoreOpDontCare
}

type ResolveMode uint8

const (
	ResolveAverage ResolveMode = iota
	ResolveMin
	ResolveMax
	ResolveSampleZero
)

func (r ResolveMode) native() native.ResolveMode {
	switch r {
	case ResolveMin:
		return native.ResolveMin
	case ResolveMax:
		return native.ResolveMax
	case ResolveSampleZero:
		return native.ResolveSampleZero
	}
	return native.ResolveAverage
}

type CompareOp uint8

const (
	CompareAlways CompareOp = iota
	CompareNever
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
)

func (c CompareOp) native() native.CompareOp {
	switch c {
	case CompareNever:
		return native.CompareNever
	case CompareLess:
		return native.CompareLess
	case CompareEqual:
		return native.CompareEqual
	case CompareLessEqual:
		return native.CompareLessOrEqual
	case CompareGreater:
		return native.CompareGreater
	case CompareNotEqual:
		return native.CompareNotEqual
	case CompareGreaterEqual:
		return native.CompareGreaterOrEqual
	}
	return native.CompareAlways
}
