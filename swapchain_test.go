package gx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
	"github.com/celer/gx/native/nativetest"
)

// renderFrame clears the next swapchain image and presents it.
func renderFrame(t *testing.T, g *GX, clear [4]float32) TextureHandle {
	t.Helper()
	tex := g.AcquireCurrentSwapchainTexture()
	require.True(t, tex.Valid(), "no swapchain image")

	cmd := g.AcquireCommand()
	var pass RenderPass
	pass.Color[0] = ColorAttachment{Texture: tex, LoadOp: LoadClear, StoreOp: StoreStore, Clear: &clear}
	cmd.CmdBeginRendering(pass, Dependencies{})
	cmd.CmdEndRendering()
	cmd.CmdTransitionLayout(tex, native.LayoutPresentSrc)
	g.SubmitCommand(cmd, tex)
	return tex
}

func swapchainImage(g *GX, index uint32) *nativetest.Image {
	return g.swapchain.sc.(*nativetest.Swapchain).Image(index)
}

func TestSwapchainPresentsRoundRobin(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithSurface(320, 240, 3))
	require.Equal(t, uint32(3), g.NumSwapchainImages())
	assert.Equal(t, native.Extent2D{Width: 320, Height: 240}, g.SwapchainExtent())
	assert.Equal(t, native.FormatB8G8R8A8Unorm, g.SwapchainFormat())
	assert.False(t, g.IsSwapchainDirty())

	for i := 0; i < 6; i++ {
		renderFrame(t, g, [4]float32{1, 0, 0, 1})
	}
	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2}, dev.Presented())
	assert.Equal(t, uint64(6), g.FrameNum())

	// B8G8R8A8 stores red in the third byte.
	assert.Equal(t, []byte{0, 0, 0xff, 0xff}, swapchainImage(g, 1).Bytes(0, 0)[:4])
	assert.Equal(t, native.LayoutPresentSrc, swapchainImage(g, 2).Layout(0, 0))
}

func TestSwapchainPacesFramesWithTimeline(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithSurface(64, 64, 2), nativetest.WithManualQueue())

	renderFrame(t, g, [4]float32{0, 1, 0, 1})
	assert.Positive(t, dev.Pending())
	assert.Empty(t, dev.Presented())

	// The next acquire of image 0 has to wait for the first frame's signal,
	// which retires the first frame.
	for i := 0; i < 4; i++ {
		renderFrame(t, g, [4]float32{0, 1, 0, 1})
	}
	assert.NotEmpty(t, dev.Presented())
	require.NoError(t, g.DeviceWaitIdle())
	assert.Equal(t, []uint32{0, 1, 0, 1, 0}, dev.Presented())
}

func TestSwapchainOutOfDateNeedsResize(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithSurface(320, 240, 3))
	renderFrame(t, g, [4]float32{})
	old := g.swapchain.textures[0]

	dev.SetAcquireStatus(native.StatusOutOfDate)
	assert.True(t, g.AcquireCurrentSwapchainTexture().Empty())
	assert.True(t, g.IsSwapchainDirty())

	dev.SetAcquireStatus(native.StatusSuccess)
	dev.SetSurfaceExtent(640, 480)
	require.NoError(t, g.ResizeSwapchain(0, 0))
	assert.False(t, g.IsSwapchainDirty())
	assert.Equal(t, native.Extent2D{Width: 640, Height: 480}, g.SwapchainExtent())
	assert.Nil(t, g.Texture(old), "old swapchain textures are released")
	assert.Equal(t, 1, dev.Live("swapchain"))

	renderFrame(t, g, [4]float32{})
	assert.Equal(t, uint64(1), g.FrameNum())
}

func TestSwapchainSuboptimalPresentMarksDirty(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithSurface(320, 240, 3))
	dev.SetPresentStatus(native.StatusSuboptimal)
	renderFrame(t, g, [4]float32{})
	assert.True(t, g.IsSwapchainDirty())
	assert.Equal(t, uint64(1), g.FrameNum())

	dev.SetPresentStatus(native.StatusSuccess)
	require.NoError(t, g.ResizeSwapchain(320, 240))
	assert.False(t, g.IsSwapchainDirty())
}

func TestSwapchainOutOfDatePresentKeepsImage(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithSurface(320, 240, 3))
	dev.SetPresentStatus(native.StatusOutOfDate)
	tex := renderFrame(t, g, [4]float32{})
	assert.True(t, g.IsSwapchainDirty())
	assert.Equal(t, uint64(0), g.FrameNum())
	assert.Equal(t, tex, g.AcquireCurrentSwapchainTexture())
}

func TestHeadlessSwapchainCalls(t *testing.T) {
	g, _ := newTestGX(t)
	assert.True(t, g.AcquireCurrentSwapchainTexture().Empty())
	assert.ErrorIs(t, g.ResizeSwapchain(100, 100), ErrNoSurface)
	assert.Equal(t, uint64(0), g.FrameNum())
}

func TestSubmitPresentNeedsSwapchainTexture(t *testing.T) {
	g, _ := newTestGX(t, nativetest.WithSurface(64, 64, 3))
	tex := newTestTexture(t, g, 4, 4, TextureUsageSampled, "not presentable")
	cmd := g.AcquireCommand()
	assert.Panics(t, func() { g.SubmitCommand(cmd, tex) })
}
