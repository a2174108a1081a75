package gx

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
	"github.com/celer/gx/native/nativetest"
)

func newTestGX(t *testing.T, opts ...nativetest.Option) (*GX, *nativetest.Device) {
	t.Helper()
	dev := nativetest.New(opts...)
	g, err := New(dev, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		g.Destroy()
		assert.Empty(t, dev.Errors())
	})
	return g, dev
}

// captureLog routes gx logging into a buffer for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func TestNewCreatesDefaults(t *testing.T) {
	g, dev := newTestGX(t)

	dummy := g.Texture(g.dummyTexture)
	require.NotNil(t, dummy)
	assert.Equal(t, uint32(0), g.dummyTexture.Index())
	assert.Equal(t, native.LayoutShaderReadOnly, dummy.Layout())
	assert.NotNil(t, g.Buffer(g.GlobalBuffer()))
	assert.True(t, g.LinearSampler().Valid())
	assert.True(t, g.NearestSampler().Valid())

	textures, samplers := g.BindlessCapacity()
	assert.Equal(t, uint32(16), textures)
	assert.Equal(t, uint32(16), samplers)

	// Headless devices get no swapchain.
	assert.Equal(t, uint32(0), g.NumSwapchainImages())
	assert.True(t, g.IsSwapchainDirty())
	assert.Equal(t, 2, dev.Live("descriptor set layout"))
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StagingMinSize = "1GB"
	cfg.StagingMaxSize = "1MB"
	_, err := New(nativetest.New(), cfg)
	assert.Error(t, err)
}

func TestDummyTextureContents(t *testing.T) {
	g, _ := newTestGX(t)
	out := make([]byte, numDummyPixels*4)
	g.DownloadTexture(g.dummyTexture, out, FullRange(native.Extent3D{Width: dummyTextureSize, Height: dummyTextureSize, Depth: 1}))

	for _, p := range [][2]int{{0, 0}, {1, 0}, {3, 5}, {255, 128}} {
		x, y := p[0], p[1]
		i := (y*dummyTextureSize + x) * 4
		v := byte(x ^ y)
		assert.Equal(t, []byte{v, v, v, 0xff}, out[i:i+4], "pixel %d,%d", x, y)
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	dev := nativetest.New()
	g, err := New(dev, DefaultConfig())
	require.NoError(t, err)

	buf := g.CreateBuffer(BufferSpec{Size: 64, Usage: BufferUsageStorage, DebugName: "scratch"})
	require.True(t, buf.Valid())
	g.Upload(buf, make([]byte, 64), 0)
	g.DestroyBuffer(buf)

	g.Destroy()
	assert.Equal(t, 0, dev.Live(""), "objects left alive after Destroy")
	assert.Empty(t, dev.Errors())

	// A second Destroy is a no-op.
	g.Destroy()
}

func TestDestroyReportsLeaks(t *testing.T) {
	logs := captureLog(t)
	dev := nativetest.New()
	g, err := New(dev, DefaultConfig())
	require.NoError(t, err)

	g.CreateBuffer(BufferSpec{Size: 16, Usage: BufferUsageUniform, DebugName: "leaked"})
	g.CreateTexture(TextureSpec{
		Dimension: native.Extent2D{Width: 4, Height: 4},
		Usage:     TextureUsageSampled,
		Format:    native.FormatR8G8B8A8Unorm,
		DebugName: "leaked texture",
	})
	g.Destroy()

	assert.Contains(t, logs.String(), "leaked buffers")
	assert.Contains(t, logs.String(), "leaked textures")
	assert.NotContains(t, logs.String(), "leaked samplers")
	assert.Equal(t, 0, dev.Live(""))
	assert.Empty(t, dev.Errors())
}

func TestOnlyOneCommandOutstanding(t *testing.T) {
	g, _ := newTestGX(t)
	cmd := g.AcquireCommand()
	assert.Panics(t, func() { g.AcquireCommand() })

	h := g.SubmitCommand(cmd, TextureHandle{})
	assert.False(t, h.Empty())
	assert.Equal(t, h, cmd.LastSubmitHandle())
	assert.Panics(t, func() { g.SubmitCommand(cmd, TextureHandle{}) })

	g.SubmitCommand(g.AcquireCommand(), TextureHandle{})
}

func TestRequestImGuiRequiredData(t *testing.T) {
	g, _ := newTestGX(t, nativetest.WithSurface(320, 240, 3))
	data := g.RequestImGuiRequiredData()
	assert.Equal(t, native.FormatB8G8R8A8Unorm, data.ColorFormat)
	assert.Equal(t, uint32(3), data.NumImages)

	sampler, view := g.RequestViewportImageData(g.dummyTexture)
	assert.NotNil(t, sampler)
	assert.Equal(t, g.Texture(g.dummyTexture).View(), view)
}

func TestDestroyStaleHandlesWarns(t *testing.T) {
	logs := captureLog(t)
	g, dev := newTestGX(t)

	buf := g.CreateBuffer(BufferSpec{Size: 64, Usage: BufferUsageStorage, DebugName: "stale buffer"})
	tex := newTestTexture(t, g, 2, 2, TextureUsageSampled, "stale texture")
	smp := g.CreateSampler(SamplerSpec{DebugName: "stale sampler"})
	g.DestroyBuffer(buf)
	g.DestroyTexture(tex)
	g.DestroySampler(smp)

	// The freed slots are reused at the next generation.
	buf2 := g.CreateBuffer(BufferSpec{Size: 64, Usage: BufferUsageStorage, DebugName: "reused buffer"})
	tex2 := newTestTexture(t, g, 2, 2, TextureUsageSampled, "reused texture")
	smp2 := g.CreateSampler(SamplerSpec{DebugName: "reused sampler"})
	buffers, textures, samplers := g.buffers.NumObjects(), g.textures.NumObjects(), g.samplers.NumObjects()

	assert.NotPanics(t, func() {
		g.DestroyBuffer(buf)
		g.DestroyTexture(tex)
		g.DestroySampler(smp)
	})
	assert.Equal(t, buffers, g.buffers.NumObjects())
	assert.Equal(t, textures, g.textures.NumObjects())
	assert.Equal(t, samplers, g.samplers.NumObjects())
	assert.NotNil(t, g.buffers.Get(buf2))
	assert.NotNil(t, g.textures.Get(tex2))
	assert.NotNil(t, g.samplers.Get(smp2))

	out := logs.String()
	assert.Contains(t, out, "destroy of a stale buffer handle")
	assert.Contains(t, out, "destroy of a stale texture handle")
	assert.Contains(t, out, "destroy of a stale sampler handle")

	g.DestroyBuffer(buf2)
	g.DestroyTexture(tex2)
	g.DestroySampler(smp2)
	assert.Empty(t, dev.Errors())
}

func TestDestroyEmptyHandlesIsSilent(t *testing.T) {
	logs := captureLog(t)
	g, _ := newTestGX(t)
	g.DestroyBuffer(BufferHandle{})
	g.DestroyTexture(TextureHandle{})
	g.DestroySampler(SamplerHandle{})
	assert.NotContains(t, logs.String(), "stale")
}
