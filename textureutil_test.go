package gx

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
	"github.com/celer/gx/native/nativetest"
)

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, uint32(1), MipLevelCount(1, 1))
	assert.Equal(t, uint32(1), MipLevelCount(0, 0))
	assert.Equal(t, uint32(9), MipLevelCount(256, 256))
	assert.Equal(t, uint32(10), MipLevelCount(640, 480))
	assert.Equal(t, uint32(3), MipLevelCount(4, 1))
}

func gradient(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x80, A: 0xff})
		}
	}
	return m
}

func TestToRGBASubImage(t *testing.T) {
	src := gradient(4, 4)
	sub := src.SubImage(image.Rect(1, 1, 3, 3))
	m := toRGBA(sub)
	assert.Equal(t, image.Rect(0, 0, 2, 2), m.Rect)
	assert.Equal(t, color.RGBA{R: 16, G: 16, B: 0x80, A: 0xff}, m.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 32, G: 32, B: 0x80, A: 0xff}, m.RGBAAt(1, 1))

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	assert.Same(t, rgba, toRGBA(rgba))
}

func TestLoadTexture(t *testing.T) {
	g, dev := newTestGX(t)
	path := filepath.Join(t.TempDir(), "gradient.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, gradient(4, 2)))
	require.NoError(t, f.Close())

	h, err := g.LoadTexture(path, false)
	require.NoError(t, err)
	assert.Equal(t, native.Extent2D{Width: 4, Height: 2}, g.TextureExtent(h))
	assert.Equal(t, native.FormatR8G8B8A8Unorm, g.TextureFormat(h))
	assert.Equal(t, path, g.Texture(h).Label())

	img := g.TextureImage(h).(*nativetest.Image)
	assert.Equal(t, toRGBA(gradient(4, 2)).Pix, img.Bytes(0, 0))

	g.DestroyTexture(h)
	assert.Empty(t, dev.Errors())
}

func TestLoadTextureMipmapped(t *testing.T) {
	g, _ := newTestGX(t)
	path := filepath.Join(t.TempDir(), "mips.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, gradient(4, 4)))
	require.NoError(t, f.Close())

	h, err := g.LoadTexture(path, true)
	require.NoError(t, err)
	defer g.DestroyTexture(h)
	assert.Equal(t, uint32(3), g.Texture(h).Levels())
	assert.Equal(t, native.LayoutShaderReadOnly, g.TextureLayout(h))
}

func TestLoadTextureErrors(t *testing.T) {
	g, _ := newTestGX(t)
	dir := t.TempDir()
	_, err := g.LoadTexture(filepath.Join(dir, "missing.png"), false)
	assert.Error(t, err)

	bogus := filepath.Join(dir, "bogus.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0o644))
	_, err = g.LoadTexture(bogus, false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
