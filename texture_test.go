package gx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
	"github.com/celer/gx/native/nativetest"
)

func TestTextureRoundTripRestoresLayout(t *testing.T) {
	g, dev := newTestGX(t)
	const size = 256
	data := pattern(size*size*4, 0x3c)
	h := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: size, Height: size},
		NumMipLevels: 1,
		Usage:        TextureUsageSampled,
		Format:       native.FormatR8G8B8A8Unorm,
		Data:         data,
		DebugName:    "round trip",
	})
	require.True(t, h.Valid())
	assert.Equal(t, native.LayoutShaderReadOnly, g.TextureLayout(h))
	assert.Equal(t, native.Extent2D{Width: size, Height: size}, g.TextureExtent(h))
	assert.Equal(t, native.FormatR8G8B8A8Unorm, g.TextureFormat(h))
	assert.Equal(t, native.Samples1, g.TextureSampleCount(h))

	out := make([]byte, len(data))
	g.DownloadTexture(h, out, FullRange(native.Extent3D{Width: size, Height: size, Depth: 1}))
	assert.Equal(t, data, out)

	assert.Equal(t, native.LayoutShaderReadOnly, g.TextureLayout(h))
	img := g.TextureImage(h).(*nativetest.Image)
	assert.Equal(t, native.LayoutShaderReadOnly, img.Layout(0, 0))
	assert.Empty(t, dev.Errors())
}

func TestTextureUploadSubRegionAndMips(t *testing.T) {
	g, _ := newTestGX(t)
	level0 := pattern(4*4*4, 1)
	level1 := pattern(2*2*4, 2)
	h := g.CreateTexture(TextureSpec{
		Dimension:        native.Extent2D{Width: 4, Height: 4},
		NumMipLevels:     2,
		Usage:            TextureUsageSampled,
		Format:           native.FormatR8G8B8A8Unorm,
		Data:             append(append([]byte(nil), level0...), level1...),
		DataNumMipLevels: 2,
		DebugName:        "mipped",
	})
	require.True(t, h.Valid())

	img := g.TextureImage(h).(*nativetest.Image)
	assert.Equal(t, level0, img.Bytes(0, 0))
	assert.Equal(t, level1, img.Bytes(1, 0))

	out := make([]byte, len(level1))
	g.DownloadTexture(h, out, TexRange{
		Dimensions:   native.Extent3D{Width: 2, Height: 2, Depth: 1},
		NumLayers:    1,
		MipLevel:     1,
		NumMipLevels: 1,
	})
	assert.Equal(t, level1, out)
}

func TestGenerateMipmaps(t *testing.T) {
	g, dev := newTestGX(t)
	data := make([]byte, 8*8*4)
	for i := range data {
		data[i] = 0x80
	}
	h := g.CreateTexture(TextureSpec{
		Dimension:       native.Extent2D{Width: 8, Height: 8},
		NumMipLevels:    4,
		Usage:           TextureUsageSampled,
		Format:          native.FormatR8G8B8A8Unorm,
		Data:            data,
		GenerateMipmaps: true,
		DebugName:       "generated",
	})
	require.True(t, h.Valid())
	assert.Equal(t, 3, dev.Stats().Blits)

	img := g.TextureImage(h).(*nativetest.Image)
	for mip := uint32(1); mip < 4; mip++ {
		assert.Equal(t, native.LayoutShaderReadOnly, img.Layout(mip, 0))
	}
	assert.Equal(t, []byte{0x80, 0x80, 0x80, 0x80}, img.Bytes(3, 0))
}

func TestGenerateMipmapsSkipsFormatsWithoutBlit(t *testing.T) {
	logs := captureLog(t)
	g, dev := newTestGX(t, nativetest.WithFormatFeatures(native.FormatR8G8B8A8Srgb, native.FeatureSampledImage))
	h := g.CreateTexture(TextureSpec{
		Dimension:       native.Extent2D{Width: 4, Height: 4},
		NumMipLevels:    3,
		Usage:           TextureUsageSampled,
		Format:          native.FormatR8G8B8A8Srgb,
		Data:            make([]byte, 4*4*4),
		GenerateMipmaps: true,
		DebugName:       "no blit",
	})
	require.True(t, h.Valid())
	assert.Equal(t, 0, dev.Stats().Blits)
	assert.Contains(t, logs.String(), "format does not support blits")
}

func TestCubeTextureUploadsSixFaces(t *testing.T) {
	g, _ := newTestGX(t)
	face := 2 * 2 * 4
	data := make([]byte, 6*face)
	for i := 0; i < 6; i++ {
		copy(data[i*face:], pattern(face, byte(i)))
	}
	h := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 2, Height: 2},
		NumMipLevels: 1,
		Type:         TextureTypeCube,
		Usage:        TextureUsageSampled,
		Format:       native.FormatR8G8B8A8Unorm,
		Data:         data,
		DebugName:    "cube",
	})
	require.True(t, h.Valid())
	assert.Equal(t, uint32(6), g.Texture(h).Layers())

	img := g.TextureImage(h).(*nativetest.Image)
	for i := uint32(0); i < 6; i++ {
		assert.Equal(t, pattern(face, byte(i)), img.Bytes(0, i), "face %d", i)
	}
}

func TestCreateTextureRejectsBadSpecs(t *testing.T) {
	g, _ := newTestGX(t)
	assert.True(t, g.CreateTexture(TextureSpec{
		Dimension: native.Extent2D{Width: 4, Height: 4},
		Format:    native.FormatR8G8B8A8Unorm,
	}).Empty())

	assert.Panics(t, func() {
		g.CreateTexture(TextureSpec{
			Dimension:    native.Extent2D{Width: 4, Height: 4},
			NumMipLevels: 1,
			Samples:      SampleCountX4,
			Usage:        TextureUsageStorage,
			Format:       native.FormatR8G8B8A8Unorm,
		})
	})
}

func TestTextureUsageFlags(t *testing.T) {
	depth := textureUsageFlags(TextureSpec{Usage: TextureUsageAttachment, Format: native.FormatD32Sfloat})
	assert.NotZero(t, depth&native.ImageUsageDepthStencilAttachment)
	assert.Zero(t, depth&native.ImageUsageColorAttachment)

	color := textureUsageFlags(TextureSpec{Usage: TextureUsageAttachment | TextureUsageSampled, Format: native.FormatR8G8B8A8Unorm})
	assert.NotZero(t, color&native.ImageUsageColorAttachment)
	assert.NotZero(t, color&native.ImageUsageSampled)
	assert.NotZero(t, color&native.ImageUsageTransferDst)

	transient := textureUsageFlags(TextureSpec{Usage: TextureUsageAttachment, Storage: StorageMemoryless, Format: native.FormatR8G8B8A8Unorm})
	assert.NotZero(t, transient&native.ImageUsageTransientAttachment)
	assert.Zero(t, transient&native.ImageUsageTransferSrc)
}

func TestValidateRange(t *testing.T) {
	ext := native.Extent3D{Width: 16, Height: 8, Depth: 1}
	assert.True(t, ValidateRange(ext, 1, 1, FullRange(ext)))
	assert.True(t, ValidateRange(ext, 2, 1, TexRange{
		Offset:       native.Offset3D{X: 4},
		Dimensions:   native.Extent3D{Width: 4, Height: 4, Depth: 1},
		NumLayers:    1,
		MipLevel:     1,
		NumMipLevels: 1,
	}))
	assert.False(t, ValidateRange(ext, 1, 1, TexRange{Dimensions: ext}))
	assert.False(t, ValidateRange(ext, 1, 1, FullRange(native.Extent3D{Width: 32, Height: 8, Depth: 1})))
	assert.False(t, ValidateRange(ext, 1, 1, TexRange{
		Offset:       native.Offset3D{X: 1},
		Dimensions:   ext,
		NumLayers:    1,
		NumMipLevels: 1,
	}))
	assert.False(t, ValidateRange(ext, 1, 1, TexRange{
		Offset:       native.Offset3D{Y: -1},
		Dimensions:   native.Extent3D{Width: 1, Height: 1, Depth: 1},
		NumLayers:    1,
		NumMipLevels: 1,
	}))
}

func TestValidateRangeChecksLevelsAndLayers(t *testing.T) {
	ext := native.Extent3D{Width: 16, Height: 16, Depth: 1}
	level := func(mip, count uint32) TexRange {
		return TexRange{
			Dimensions:   native.Extent3D{Width: 1, Height: 1, Depth: 1},
			NumLayers:    1,
			MipLevel:     mip,
			NumMipLevels: count,
		}
	}
	assert.True(t, ValidateRange(ext, 3, 1, level(2, 1)))
	assert.True(t, ValidateRange(ext, 3, 1, level(0, 3)))
	assert.False(t, ValidateRange(ext, 3, 1, level(3, 1)))
	assert.False(t, ValidateRange(ext, 3, 1, level(1, 3)))

	layer := func(first, count uint32) TexRange {
		r := FullRange(ext)
		r.Layer = first
		r.NumLayers = count
		return r
	}
	assert.True(t, ValidateRange(ext, 1, 6, layer(5, 1)))
	assert.True(t, ValidateRange(ext, 1, 6, layer(0, 6)))
	assert.False(t, ValidateRange(ext, 1, 6, layer(6, 1)))
	assert.False(t, ValidateRange(ext, 1, 6, layer(4, 3)))
}

func TestUploadRejectsOutOfRangeLevels(t *testing.T) {
	logs := captureLog(t)
	g, dev := newTestGX(t)
	h := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 4, Height: 4},
		NumMipLevels: 1,
		Usage:        TextureUsageSampled,
		Format:       native.FormatR8G8B8A8Unorm,
		DebugName:    "one level",
	})
	require.True(t, h.Valid())
	copies := dev.Stats().BufferImageCopies

	g.UploadTexture(h, pattern(4, 1), TexRange{
		Dimensions:   native.Extent3D{Width: 1, Height: 1, Depth: 1},
		NumLayers:    1,
		MipLevel:     1,
		NumMipLevels: 1,
	})
	assert.Equal(t, copies, dev.Stats().BufferImageCopies)
	assert.Contains(t, logs.String(), "texture range levels exceed")
	assert.Empty(t, dev.Errors())
}

func TestUploadRejectsShortData(t *testing.T) {
	logs := captureLog(t)
	g, dev := newTestGX(t)
	h := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 4, Height: 4},
		NumMipLevels: 1,
		Usage:        TextureUsageSampled,
		Format:       native.FormatR8G8B8A8Unorm,
		Data:         pattern(4*4*4, 7),
		DebugName:    "short upload",
	})
	require.True(t, h.Valid())

	assert.NotPanics(t, func() {
		g.UploadTexture(h, pattern(8, 1), FullRange(native.Extent3D{Width: 4, Height: 4, Depth: 1}))
	})
	assert.Contains(t, logs.String(), "texture upload data is shorter than the range")
	img := g.TextureImage(h).(*nativetest.Image)
	assert.Equal(t, pattern(4*4*4, 7), img.Bytes(0, 0))
	assert.Empty(t, dev.Errors())
}

func TestCreateTextureWithShortDataLeavesImageEmpty(t *testing.T) {
	logs := captureLog(t)
	g, _ := newTestGX(t)
	var h TextureHandle
	assert.NotPanics(t, func() {
		h = g.CreateTexture(TextureSpec{
			Dimension:    native.Extent2D{Width: 4, Height: 4},
			NumMipLevels: 1,
			Usage:        TextureUsageSampled,
			Format:       native.FormatR8G8B8A8Unorm,
			Data:         pattern(8, 1),
			DebugName:    "short data",
		})
	})
	assert.True(t, h.Valid())
	assert.Contains(t, logs.String(), "texture upload data is shorter than the range")
}

func TestDownloadRejectsShortBuffer(t *testing.T) {
	logs := captureLog(t)
	g, _ := newTestGX(t)
	h := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 4, Height: 4},
		NumMipLevels: 1,
		Usage:        TextureUsageSampled,
		Format:       native.FormatR8G8B8A8Unorm,
		Data:         pattern(4*4*4, 3),
		DebugName:    "short download",
	})
	require.True(t, h.Valid())

	out := make([]byte, 8)
	assert.NotPanics(t, func() {
		g.DownloadTexture(h, out, FullRange(native.Extent3D{Width: 4, Height: 4, Depth: 1}))
	})
	assert.Equal(t, make([]byte, 8), out)
	assert.Contains(t, logs.String(), "texture download buffer is shorter than the range")
	assert.Equal(t, native.LayoutShaderReadOnly, g.TextureLayout(h))
}
