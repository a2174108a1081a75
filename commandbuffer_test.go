package gx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
	"github.com/celer/gx/native/nativetest"
)

func newTestPipeline(t *testing.T, g *GX) (ShaderHandle, PipelineHandle) {
	t.Helper()
	shader := g.CreateShader(ShaderSpec{SPIRV: make([]byte, 64), DebugName: "test shader"})
	require.True(t, shader.Valid())
	pipeline := g.CreatePipeline(PipelineSpec{
		Formats:   PipelineFormats{Color: []native.Format{native.FormatR8G8B8A8Unorm}},
		Shader:    shader,
		DebugName: "test pipeline",
	})
	t.Cleanup(func() {
		g.DestroyPipeline(pipeline)
		g.DestroyShader(shader)
	})
	return shader, pipeline
}

func countExecuted(dev *nativetest.Device, name string) int {
	n := 0
	for _, e := range dev.Executed() {
		if e == name {
			n++
		}
	}
	return n
}

func colorPass(tex TextureHandle, clear *[4]float32) RenderPass {
	var pass RenderPass
	pass.Color[0] = ColorAttachment{Texture: tex, LoadOp: LoadClear, StoreOp: StoreStore, Clear: clear}
	return pass
}

func TestBeginRenderingClearsAndTransitions(t *testing.T) {
	g, dev := newTestGX(t)
	target := newTestTexture(t, g, 16, 16, TextureUsageAttachment|TextureUsageSampled, "target")
	dep := newTestTexture(t, g, 4, 4, TextureUsageAttachment|TextureUsageSampled, "dependency")

	cmd := g.AcquireCommand()
	var deps Dependencies
	deps.Textures[0] = dep
	cmd.CmdBeginRendering(colorPass(target, &[4]float32{0, 0, 1, 1}), deps)
	assert.True(t, cmd.IsRendering())
	assert.Equal(t, native.LayoutColorAttachment, g.TextureLayout(target))
	assert.Equal(t, native.LayoutShaderReadOnly, g.TextureLayout(dep))
	cmd.CmdEndRendering()
	assert.False(t, cmd.IsRendering())
	g.SubmitCommand(cmd, TextureHandle{})

	info := dev.LastRendering()
	require.NotNil(t, info)
	require.Len(t, info.Color, 1)
	assert.Nil(t, info.Depth)
	assert.Equal(t, native.Extent2D{Width: 16, Height: 16}, info.Area.Extent)
	assert.Equal(t, native.LoadOpClear, info.Color[0].LoadOp)

	img := g.TextureImage(target).(*nativetest.Image)
	assert.Equal(t, []byte{0, 0, 0xff, 0xff}, img.Bytes(0, 0)[:4])
}

func TestBeginRenderingTakesExtentFromDepth(t *testing.T) {
	g, dev := newTestGX(t)
	depth := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 8, Height: 4},
		NumMipLevels: 1,
		Usage:        TextureUsageAttachment,
		Format:       native.FormatD32Sfloat,
		DebugName:    "depth",
	})
	require.True(t, depth.Valid())

	clear := float32(1)
	cmd := g.AcquireCommand()
	cmd.CmdBeginRendering(RenderPass{Depth: DepthAttachment{Texture: depth, LoadOp: LoadClear, Clear: &clear}}, Dependencies{})
	cmd.CmdEndRendering()
	g.SubmitCommand(cmd, TextureHandle{})

	info := dev.LastRendering()
	require.NotNil(t, info)
	assert.Empty(t, info.Color)
	require.NotNil(t, info.Depth)
	assert.Equal(t, float32(1), info.Depth.ClearDepth.Depth)
	assert.Equal(t, native.Extent2D{Width: 8, Height: 4}, info.Area.Extent)
	assert.Equal(t, native.LayoutDepthStencilAttachment, g.TextureLayout(depth))
}

func TestRenderPassMisuse(t *testing.T) {
	g, _ := newTestGX(t)
	target := newTestTexture(t, g, 4, 4, TextureUsageAttachment, "target")
	cmd := g.AcquireCommand()

	assert.Panics(t, func() { cmd.CmdEndRendering() })
	assert.Panics(t, func() { cmd.CmdBeginRendering(RenderPass{}, Dependencies{}) })

	cmd.CmdBeginRendering(colorPass(target, nil), Dependencies{})
	assert.Panics(t, func() { cmd.CmdBeginRendering(colorPass(target, nil), Dependencies{}) })
	assert.Panics(t, func() { g.SubmitCommand(cmd, TextureHandle{}) })
	cmd.CmdEndRendering()
	g.SubmitCommand(cmd, TextureHandle{})
}

func TestBindRenderPipelineBuildsLazily(t *testing.T) {
	g, dev := newTestGX(t)
	shader, pipeline := newTestPipeline(t, g)
	target := newTestTexture(t, g, 4, 4, TextureUsageAttachment, "target")
	assert.Equal(t, 0, dev.Stats().PipelinesCreated)

	dev.ClearExecuted()
	cmd := g.AcquireCommand()
	cmd.CmdBeginRendering(colorPass(target, nil), Dependencies{})
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdDraw(3, 0, 0, 0)
	cmd.CmdDraw(0, 1, 0, 0)
	cmd.CmdEndRendering()
	g.SubmitCommand(cmd, TextureHandle{})

	assert.Equal(t, 1, dev.Stats().PipelinesCreated)
	assert.Equal(t, 1, countExecuted(dev, "BindPipeline"))
	assert.Equal(t, 1, countExecuted(dev, "BindDescriptorSets"))
	assert.Equal(t, 1, dev.Stats().Draws)

	// A reloaded shader rebuilds the pipeline on its next bind.
	require.NoError(t, g.ReloadShader(shader, make([]byte, 32)))
	cmd = g.AcquireCommand()
	cmd.CmdBeginRendering(colorPass(target, nil), Dependencies{})
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdEndRendering()
	g.SubmitCommand(cmd, TextureHandle{})
	assert.Equal(t, 2, dev.Stats().PipelinesCreated)

	// The old pipeline goes once its last user is recycled.
	g.imm.WaitAll()
	g.processDeferredTasks()
	assert.Equal(t, 1, dev.Live("pipeline"))
	assert.Equal(t, 1, dev.Live("shader module"))
}

func TestBindRenderPipelineRebuildsAfterBindlessGrowth(t *testing.T) {
	g, dev := newTestGX(t)
	_, pipeline := newTestPipeline(t, g)
	target := newTestTexture(t, g, 4, 4, TextureUsageAttachment, "target")

	cmd := g.AcquireCommand()
	cmd.CmdBeginRendering(colorPass(target, nil), Dependencies{})
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdEndRendering()
	g.SubmitCommand(cmd, TextureHandle{})

	for i := 0; i < 16; i++ {
		newTestTexture(t, g, 2, 2, TextureUsageSampled, "filler")
	}
	cmd = g.AcquireCommand()
	cmd.CmdBeginRendering(colorPass(target, nil), Dependencies{})
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdEndRendering()
	g.SubmitCommand(cmd, TextureHandle{})

	assert.Equal(t, 2, dev.Stats().PipelinesCreated)
	assert.Equal(t, g.bindlessLayout, g.pipelines.Get(pipeline).lastLayout)
}

func TestPushConstants(t *testing.T) {
	logs := captureLog(t)
	g, dev := newTestGX(t)
	_, pipeline := newTestPipeline(t, g)

	cmd := g.AcquireCommand()
	cmd.CmdPushConstants(make([]byte, 16), 0)
	assert.Contains(t, logs.String(), "no render pipeline bound")
	assert.Panics(t, func() { cmd.CmdPushConstants(make([]byte, 6), 0) })

	data := PerObjectData{ID: 7, VertexBufferAddress: 0x1000}
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdPushObjectData(data)
	g.SubmitCommand(cmd, TextureHandle{})
	assert.Equal(t, data.Bytes(), dev.LastPushConstants())
}

func TestPushConstantsOverLimitAreDropped(t *testing.T) {
	logs := captureLog(t)
	g, dev := newTestGX(t)
	_, pipeline := newTestPipeline(t, g)

	data := PerObjectData{ID: 3}
	cmd := g.AcquireCommand()
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdPushObjectData(data)
	cmd.CmdPushConstants(make([]byte, 16), 248)
	g.SubmitCommand(cmd, TextureHandle{})

	assert.Contains(t, logs.String(), "push constants exceed the device limit")
	assert.Equal(t, 1, countExecuted(dev, "PushConstants"))
	assert.Equal(t, data.Bytes(), dev.LastPushConstants())
	assert.Empty(t, dev.Errors())
}

func TestUpdateBuffer(t *testing.T) {
	g, dev := newTestGX(t)
	h := g.CreateBuffer(BufferSpec{Size: 64, Usage: BufferUsageStorage | BufferUsageIndirect, DebugName: "updated"})
	require.True(t, h.Valid())

	data := pattern(16, 9)
	cmd := g.AcquireCommand()
	cmd.CmdUpdateBuffer(h, 8, data)
	g.SubmitCommand(cmd, TextureHandle{})
	assert.Equal(t, 1, dev.Stats().BufferUpdates)

	out := make([]byte, 16)
	g.Download(h, out, 8)
	assert.Equal(t, data, out)

	cmd = g.AcquireCommand()
	assert.Panics(t, func() { cmd.CmdUpdateBuffer(h, 0, make([]byte, 5)) })
	assert.Panics(t, func() { cmd.CmdUpdateBuffer(h, 2, make([]byte, 4)) })
	assert.Panics(t, func() { cmd.CmdUpdateBuffer(h, 60, make([]byte, 8)) })
	g.SubmitCommand(cmd, TextureHandle{})
	assert.Equal(t, 1, dev.Stats().BufferUpdates)
}

func TestDrawIndirectNeedsIndirectUsage(t *testing.T) {
	g, dev := newTestGX(t)
	indirect := g.CreateBuffer(BufferSpec{Size: 64, Usage: BufferUsageIndirect, DebugName: "indirect"})
	plain := g.CreateBuffer(BufferSpec{Size: 64, Usage: BufferUsageStorage, DebugName: "plain"})

	cmd := g.AcquireCommand()
	assert.Panics(t, func() { cmd.CmdDrawIndirect(plain, 0, 1, 16) })
	cmd.CmdDrawIndirect(indirect, 0, 2, 16)
	cmd.CmdDrawIndexedIndirect(indirect, 0, 1, 20)
	g.SubmitCommand(cmd, TextureHandle{})
	assert.Equal(t, 3, dev.Stats().Draws)
}

func TestBlitToSwapchain(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithSurface(16, 16, 2))
	src := newTestTexture(t, g, 8, 8, TextureUsageAttachment|TextureUsageSampled, "offscreen")

	swap := g.AcquireCurrentSwapchainTexture()
	require.True(t, swap.Valid())
	cmd := g.AcquireCommand()
	cmd.CmdBeginRendering(colorPass(src, &[4]float32{1, 0, 0, 1}), Dependencies{})
	cmd.CmdEndRendering()
	cmd.CmdBlitToSwapchain(src)
	assert.Equal(t, native.LayoutTransferSrc, g.TextureLayout(src))
	assert.Equal(t, native.LayoutTransferDst, g.TextureLayout(swap))
	cmd.CmdTransitionSwapchainLayout(native.LayoutPresentSrc)
	g.SubmitCommand(cmd, swap)

	assert.Equal(t, 1, dev.Stats().Blits)
	assert.Equal(t, []uint32{0}, dev.Presented())
	srcImg := g.TextureImage(src).(*nativetest.Image)
	assert.Equal(t, srcImg.Bytes(0, 0)[:4], swapchainImage(g, 0).Bytes(0, 0)[:4])
}

func TestCopyImage(t *testing.T) {
	g, _ := newTestGX(t)
	data := pattern(4*4*4, 0x21)
	src := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 4, Height: 4},
		NumMipLevels: 1,
		Usage:        TextureUsageSampled,
		Format:       native.FormatR8G8B8A8Unorm,
		Data:         data,
		DebugName:    "copy source",
	})
	dst := newTestTexture(t, g, 4, 4, TextureUsageSampled, "copy destination")

	cmd := g.AcquireCommand()
	cmd.CmdCopyImage(src, dst, native.Extent2D{Width: 4, Height: 4})
	cmd.CmdTransitionLayout(src, native.LayoutShaderReadOnly)
	cmd.CmdTransitionLayout(dst, native.LayoutShaderReadOnly)
	g.SubmitCommand(cmd, TextureHandle{})

	assert.Equal(t, data, g.TextureImage(dst).(*nativetest.Image).Bytes(0, 0))
}

func TestCopyImageToBuffer(t *testing.T) {
	g, _ := newTestGX(t)
	data := pattern(2*2*4, 0x42)
	src := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 2, Height: 2},
		NumMipLevels: 1,
		Usage:        TextureUsageSampled,
		Format:       native.FormatR8G8B8A8Unorm,
		Data:         data,
		DebugName:    "readback source",
	})
	buf := g.CreateBuffer(BufferSpec{Size: 16, Usage: BufferUsageStorage, DebugName: "readback"})

	cmd := g.AcquireCommand()
	cmd.CmdCopyImageToBuffer(src, buf, native.BufferImageCopy{
		Subresource: native.SubresourceLayers{Aspect: native.AspectColor, LayerCount: 1},
		Extent:      native.Extent3D{Width: 2, Height: 2, Depth: 1},
	})
	assert.Equal(t, native.LayoutTransferSrc, g.TextureLayout(src))
	g.SubmitCommand(cmd, TextureHandle{})

	out := make([]byte, 16)
	g.Download(buf, out, 0)
	assert.Equal(t, data, out)
}
