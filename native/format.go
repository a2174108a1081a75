package native

type Format int32

const (
	FormatUndefined          Format = 0
	FormatR8Unorm            Format = 9
	FormatR8G8Unorm          Format = 16
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32Uint            Format = 98
	FormatR32Sfloat          Format = 100
	FormatR32G32Uint         Format = 101
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Uint   Format = 107
	FormatR32G32B32A32Sfloat Format = 109
	FormatD16Unorm           Format = 124
	FormatD32Sfloat          Format = 126
	FormatD16UnormS8Uint     Format = 128
	FormatD24UnormS8Uint     Format = 129
	FormatD32SfloatS8Uint    Format = 130
	FormatBC7Unorm           Format = 145
	FormatBC7Srgb            Format = 146
	FormatETC2R8G8B8Unorm    Format = 147
	FormatETC2R8G8B8Srgb     Format = 148
	FormatG8B8R83Plane420    Format = 1000156002
	FormatG8B8R82Plane420    Format = 1000156003
)

// FormatInfo describes the memory footprint of one texel block of a format.
type FormatInfo struct {
	Format        Format
	BytesPerBlock uint32
	BlockWidth    uint32
	BlockHeight   uint32
	Planes        uint32
	Depth         bool
	Stencil       bool
	Compressed    bool
}

var formatTable = []FormatInfo{
	{Format: FormatUndefined, BytesPerBlock: 1, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR8Unorm, BytesPerBlock: 1, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR8G8Unorm, BytesPerBlock: 2, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR8G8B8A8Unorm, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR8G8B8A8Srgb, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatB8G8R8A8Unorm, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatB8G8R8A8Srgb, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR16G16B16A16Sfloat, BytesPerBlock: 8, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR32Uint, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR32Sfloat, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR32G32Uint, BytesPerBlock: 8, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR32G32Sfloat, BytesPerBlock: 8, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR32G32B32Sfloat, BytesPerBlock: 12, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR32G32B32A32Uint, BytesPerBlock: 16, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatR32G32B32A32Sfloat, BytesPerBlock: 16, BlockWidth: 1, BlockHeight: 1, Planes: 1},
	{Format: FormatD16Unorm, BytesPerBlock: 2, BlockWidth: 1, BlockHeight: 1, Planes: 1, Depth: true},
	{Format: FormatD32Sfloat, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1, Depth: true},
	{Format: FormatD16UnormS8Uint, BytesPerBlock: 3, BlockWidth: 1, BlockHeight: 1, Planes: 1, Depth: true, Stencil: true},
	{Format: FormatD24UnormS8Uint, BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Planes: 1, Depth: true, Stencil: true},
	{Format: FormatD32SfloatS8Uint, BytesPerBlock: 5, BlockWidth: 1, BlockHeight: 1, Planes: 1, Depth: true, Stencil: true},
	{Format: FormatBC7Unorm, BytesPerBlock: 16, BlockWidth: 4, BlockHeight: 4, Planes: 1, Compressed: true},
	{Format: FormatBC7Srgb, BytesPerBlock: 16, BlockWidth: 4, BlockHeight: 4, Planes: 1, Compressed: true},
	{Format: FormatETC2R8G8B8Unorm, BytesPerBlock: 8, BlockWidth: 4, BlockHeight: 4, Planes: 1, Compressed: true},
	{Format: FormatETC2R8G8B8Srgb, BytesPerBlock: 8, BlockWidth: 4, BlockHeight: 4, Planes: 1, Compressed: true},
	{Format: FormatG8B8R83Plane420, BytesPerBlock: 24, BlockWidth: 4, BlockHeight: 4, Planes: 3, Compressed: true},
	{Format: FormatG8B8R82Plane420, BytesPerBlock: 24, BlockWidth: 4, BlockHeight: 4, Planes: 2, Compressed: true},
}

// Info returns the block description of f. Unknown formats report ok=false
// and the single byte description of FormatUndefined.
func (f Format) Info() (FormatInfo, bool) {
	for _, info := range formatTable {
		if info.Format == f {
			return info, true
		}
	}
	return formatTable[0], false
}

func (f Format) NumPlanes() uint32 {
	info, _ := f.Info()
	return info.Planes
}

func (f Format) IsDepthOrStencil() bool {
	info, _ := f.Info()
	return info.Depth || info.Stencil
}

// Aspect is the image aspect a full view of the format covers.
func (f Format) Aspect() ImageAspect {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat:
		return AspectDepth
	case FormatD16UnormS8Uint, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return AspectDepth | AspectStencil
	}
	return AspectColor
}

// BytesPerLayer is the size of one array layer of mip level `level` of an
// image whose base extent is width x height.
func (f Format) BytesPerLayer(width, height, level uint32) uint32 {
	w := max(width>>level, 1)
	h := max(height>>level, 1)
	info, _ := f.Info()
	if !info.Compressed {
		return info.BytesPerBlock * w * h
	}
	blocksX := (w + info.BlockWidth - 1) / info.BlockWidth
	blocksY := (h + info.BlockHeight - 1) / info.BlockHeight
	return blocksX * blocksY * info.BytesPerBlock
}

// BytesPerPlane is the size of one plane of a multi-planar 4:2:0 image.
// Single plane formats return BytesPerLayer of the base level.
func (f Format) BytesPerPlane(width, height, plane uint32) uint32 {
	switch f.NumPlanes() {
	case 2:
		return width * height / (plane + 1)
	case 3:
		if plane == 0 {
			return width * height
		}
		return width * height / 4
	}
	return f.BytesPerLayer(width, height, 0)
}

// PlaneExtent is the texel extent of one plane of a multi-planar image.
func (f Format) PlaneExtent(extent Extent2D, plane uint32) Extent2D {
	switch f.NumPlanes() {
	case 2, 3:
		if plane == 0 {
			return extent
		}
		return Extent2D{Width: extent.Width >> 1, Height: extent.Height >> 1}
	}
	return extent
}

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "UNDEFINED"
	case FormatR8Unorm:
		return "R8_UNORM"
	case FormatR8G8Unorm:
		return "R8G8_UNORM"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatR16G16B16A16Sfloat:
		return "R16G16B16A16_SFLOAT"
	case FormatR32Uint:
		return "R32_UINT"
	case FormatR32Sfloat:
		return "R32_SFLOAT"
	case FormatR32G32Uint:
		return "R32G32_UINT"
	case FormatR32G32Sfloat:
		return "R32G32_SFLOAT"
	case FormatR32G32B32Sfloat:
		return "R32G32B32_SFLOAT"
	case FormatR32G32B32A32Uint:
		return "R32G32B32A32_UINT"
	case FormatR32G32B32A32Sfloat:
		return "R32G32B32A32_SFLOAT"
	case FormatD16Unorm:
		return "D16_UNORM"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD16UnormS8Uint:
		return "D16_UNORM_S8_UINT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatBC7Unorm:
		return "BC7_UNORM"
	case FormatBC7Srgb:
		return "BC7_SRGB"
	case FormatETC2R8G8B8Unorm:
		return "ETC2_R8G8B8_UNORM"
	case FormatETC2R8G8B8Srgb:
		return "ETC2_R8G8B8_SRGB"
	case FormatG8B8R83Plane420:
		return "G8_B8_R8_3PLANE_420_UNORM"
	case FormatG8B8R82Plane420:
		return "G8_B8R8_2PLANE_420_UNORM"
	}
	return "UNKNOWN_FORMAT"
}
