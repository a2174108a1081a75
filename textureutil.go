package gx

import (
	"image"
	"image/draw"
	_ "image/jpeg" // decoders for LoadTexture
	_ "image/png"
	"math/bits"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

// MipLevelCount is the length of the full mip chain of a width x height
// image.
func MipLevelCount(width, height uint32) uint32 {
	return uint32(bits.Len32(max(width, height, 1)))
}

// toRGBA returns src as tightly packed RGBA8 pixels starting at the origin.
func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	if m, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) && m.Stride == b.Dx()*4 {
		return m
	}
	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Bounds(), src, b.Min, draw.Src)
	return m
}

// CreateTextureFromImage uploads img as a sampled RGBA8 texture. With
// mipmaps set the full chain is allocated and generated from level 0.
func (g *GX) CreateTextureFromImage(img image.Image, mipmaps bool, name string) TextureHandle {
	m := toRGBA(img)
	w, h := uint32(m.Rect.Dx()), uint32(m.Rect.Dy())
	if w == 0 || h == 0 {
		log().Warn("texture from an empty image", "name", name)
		return TextureHandle{}
	}
	levels := uint32(1)
	if mipmaps {
		levels = MipLevelCount(w, h)
	}
	return g.CreateTexture(TextureSpec{
		Dimension:       native.Extent2D{Width: w, Height: h},
		NumMipLevels:    levels,
		Usage:           TextureUsageSampled,
		Format:          native.FormatR8G8B8A8Unorm,
		Data:            m.Pix,
		GenerateMipmaps: mipmaps,
		DebugName:       name,
	})
}

// LoadTexture decodes a PNG or JPEG file into a texture.
func (g *GX) LoadTexture(path string, mipmaps bool) (TextureHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return TextureHandle{}, errors.Wrap(err, "open texture")
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if errors.Is(err, image.ErrFormat) {
		return TextureHandle{}, errors.Wrapf(ErrUnsupportedFormat, "decode %s", path)
	}
	if err != nil {
		return TextureHandle{}, errors.Wrapf(err, "decode %s", path)
	}
	h := g.CreateTextureFromImage(src, mipmaps, path)
	if h.Empty() {
		return h, errors.Newf("create texture from %s image %s", format, path)
	}
	return h, nil
}
