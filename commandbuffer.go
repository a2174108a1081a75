package gx

import (
	"github.com/celer/gx/native"
)

// MaxColorAttachments is the number of color attachment slots of a
// RenderPass.
const MaxColorAttachments = 16

// MaxSubmitDependencies bounds the textures and buffers a render pass can
// declare as read by its draws.
const MaxSubmitDependencies = 4

// maxUpdateBufferSize is the largest inline update vkCmdUpdateBuffer takes.
const maxUpdateBufferSize = 65536

// ColorAttachment is one color target of a render pass. Clear is only
// applied when LoadOp is LoadClear and it is set.
type ColorAttachment struct {
	Texture        TextureHandle
	ResolveTexture TextureHandle
	ResolveMode    ResolveMode
	LoadOp         LoadOp
	StoreOp        StoreOp
	Clear          *[4]float32
}

type DepthAttachment struct {
	Texture        TextureHandle
	ResolveTexture TextureHandle
	ResolveMode    ResolveMode
	LoadOp         LoadOp
	StoreOp        StoreOp
	Clear          *float32
}

// RenderPass names the attachments of a dynamic rendering pass. Color
// attachments are taken up to the first slot without a texture.
type RenderPass struct {
	Color [MaxColorAttachments]ColorAttachment
	Depth DepthAttachment
}

// Dependencies lists resources written earlier in the frame and read by the
// draws of a pass. Textures are moved to the shader read only layout and
// buffers get a barrier against earlier transfer writes.
type Dependencies struct {
	Textures [MaxSubmitDependencies]TextureHandle
	Buffers  [MaxSubmitDependencies]BufferHandle
}

type DepthState struct {
	CompareOp         CompareOp
	DepthWriteEnabled bool
}

// CommandBuffer records into one slot of the immediate ring. It is obtained
// from AcquireCommand and handed back with SubmitCommand, after which it
// must not be used again.
type CommandBuffer struct {
	gx      *GX
	wrapper *CommandBufferWrapper

	isRendering       bool
	lastBoundPipeline native.Pipeline
	currentPipeline   PipelineHandle
	lastSubmit        SubmitHandle
}

func newCommandBuffer(g *GX) *CommandBuffer {
	return &CommandBuffer{gx: g, wrapper: g.imm.Acquire()}
}

// Native returns the native command buffer for recording commands the
// package does not wrap.
func (c *CommandBuffer) Native() native.CommandBuffer {
	assertf(c.wrapper != nil, "command buffer used after submit")
	return c.wrapper.cmd
}

func (c *CommandBuffer) IsRendering() bool { return c.isRendering }

// LastSubmitHandle is the handle the buffer was submitted with, empty until
// SubmitCommand.
func (c *CommandBuffer) LastSubmitHandle() SubmitHandle { return c.lastSubmit }

func (c *CommandBuffer) texture(h TextureHandle) *AllocatedTexture {
	t := c.gx.textures.Get(h)
	assertf(t != nil, "invalid texture handle %s", h)
	return t
}

func (c *CommandBuffer) CmdBeginRendering(pass RenderPass, deps Dependencies) {
	assertf(!c.isRendering, "render pass already in progress")
	cmd := c.Native()

	numColor := 0
	for numColor < MaxColorAttachments && pass.Color[numColor].Texture.Valid() {
		numColor++
	}

	for _, h := range deps.Textures {
		if h.Empty() {
			continue
		}
		t := c.texture(h)
		assertf(!t.isSwapchain, "swapchain image %q cannot be a render pass dependency", t.label)
		// Multisampled images are never read by shaders.
		if t.samples == native.Samples1 && t.layout != native.LayoutShaderReadOnly {
			t.transitionLayout(cmd, native.LayoutShaderReadOnly, t.fullRange())
		}
	}
	for _, h := range deps.Buffers {
		if h.Empty() {
			continue
		}
		b := c.gx.buffers.Get(h)
		assertf(b != nil, "invalid buffer handle %s", h)
		dst := native.StageVertexShader | native.StageFragmentShader
		if b.usage&native.BufferUsageIndirect != 0 {
			dst |= native.StageDrawIndirect
		}
		if b.usage&native.BufferUsageIndex != 0 {
			dst |= native.StageVertexInput
		}
		c.bufferBarrier(b, native.StageTransfer|native.StageComputeShader, dst)
	}

	info := native.RenderingInfo{Layers: 1}
	var extent native.Extent2D
	for i := 0; i < numColor; i++ {
		att := pass.Color[i]
		t := c.texture(att.Texture)
		if t.layout != native.LayoutColorAttachment {
			t.transitionLayout(cmd, native.LayoutColorAttachment, t.fullRange())
		}
		ra := native.RenderingAttachment{
			View:    t.view,
			Layout:  native.LayoutColorAttachment,
			LoadOp:  att.LoadOp.native(),
			StoreOp: att.StoreOp.native(),
		}
		if att.LoadOp == LoadClear && att.Clear != nil {
			ra.ClearColor = *att.Clear
		}
		if att.ResolveTexture.Valid() {
			r := c.texture(att.ResolveTexture)
			c.prepareResolve(cmd, r)
			ra.ResolveMode = att.ResolveMode.native()
			ra.ResolveView = r.view
			ra.ResolveLayout = native.LayoutColorAttachment
		}
		if i == 0 {
			extent = native.Extent2D{Width: t.extent.Width, Height: t.extent.Height}
		}
		info.Color = append(info.Color, ra)
	}

	if d := pass.Depth; d.Texture.Valid() {
		t := c.texture(d.Texture)
		assertf(t.format.IsDepthOrStencil(), "depth attachment %q has color format %s", t.label, t.format)
		if t.layout != native.LayoutDepthStencilAttachment {
			t.transitionLayout(cmd, native.LayoutDepthStencilAttachment, t.fullRange())
		}
		ra := native.RenderingAttachment{
			View:    t.view,
			Layout:  native.LayoutDepthStencilAttachment,
			LoadOp:  d.LoadOp.native(),
			StoreOp: d.StoreOp.native(),
		}
		if d.LoadOp == LoadClear && d.Clear != nil {
			ra.ClearDepth.Depth = *d.Clear
		}
		if d.ResolveTexture.Valid() {
			r := c.texture(d.ResolveTexture)
			c.prepareResolve(cmd, r)
			ra.ResolveMode = d.ResolveMode.native()
			ra.ResolveView = r.view
			ra.ResolveLayout = native.LayoutDepthStencilAttachment
		}
		if numColor == 0 {
			extent = native.Extent2D{Width: t.extent.Width, Height: t.extent.Height}
		}
		info.Depth = &ra
	}
	assertf(extent.Width > 0 && extent.Height > 0, "render pass has no attachments")
	info.Area = native.Rect2D{Extent: extent}

	c.CmdSetScissor(extent)
	c.CmdSetViewport(extent)
	c.CmdBindDepthState(DepthState{})

	c.gx.checkAndUpdateDescriptorSets()
	// The bindless set may have been replaced since the last pass.
	c.lastBoundPipeline = nil

	cmd.SetDepthCompareOp(native.CompareAlways)
	cmd.SetDepthBiasEnable(false)
	cmd.BeginRendering(info)
	c.isRendering = true
}

// prepareResolve moves a resolve target into its attachment layout. Depth
// resolves are marked so later transitions include the color attachment
// stage they run in.
func (c *CommandBuffer) prepareResolve(cmd native.CommandBuffer, t *AllocatedTexture) {
	t.isResolveAttachment = true
	want := native.LayoutColorAttachment
	if t.format.IsDepthOrStencil() {
		want = native.LayoutDepthStencilAttachment
	}
	if t.layout != want {
		t.transitionLayout(cmd, want, t.fullRange())
	}
}

func (c *CommandBuffer) CmdEndRendering() {
	assertf(c.isRendering, "no render pass in progress")
	c.isRendering = false
	c.Native().EndRendering()
}

func (c *CommandBuffer) CmdBindRenderPipeline(h PipelineHandle) {
	if h.Empty() {
		log().Warn("binding an empty render pipeline handle")
		return
	}
	c.currentPipeline = h
	p := c.gx.resolveRenderPipeline(h)
	if p == nil {
		return
	}
	if p.pipeline != c.lastBoundPipeline {
		c.lastBoundPipeline = p.pipeline
		cmd := c.Native()
		cmd.BindPipeline(native.BindPointGraphics, p.pipeline)
		c.gx.bindDefaultDescriptorSets(cmd, native.BindPointGraphics, p.layout)
	}
}

func (c *CommandBuffer) CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if vertexCount == 0 {
		return
	}
	c.Native().Draw(vertexCount, max(instanceCount, 1), firstVertex, firstInstance)
}

func (c *CommandBuffer) CmdDrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if indexCount == 0 {
		return
	}
	c.Native().DrawIndexed(indexCount, max(instanceCount, 1), firstIndex, vertexOffset, firstInstance)
}

// CmdDrawIndirect issues drawCount draws whose parameters are read from buf
// at offset, stride bytes apart.
func (c *CommandBuffer) CmdDrawIndirect(h BufferHandle, offset uint64, drawCount, stride uint32) {
	b := c.gx.buffers.Get(h)
	assertf(b != nil, "invalid indirect buffer %s", h)
	assertf(b.usage&native.BufferUsageIndirect != 0, "buffer %q was not created for indirect draws", b.label)
	c.Native().DrawIndirect(b.buf, offset, drawCount, stride)
}

func (c *CommandBuffer) CmdDrawIndexedIndirect(h BufferHandle, offset uint64, drawCount, stride uint32) {
	b := c.gx.buffers.Get(h)
	assertf(b != nil, "invalid indirect buffer %s", h)
	assertf(b.usage&native.BufferUsageIndirect != 0, "buffer %q was not created for indirect draws", b.label)
	c.Native().DrawIndexedIndirect(b.buf, offset, drawCount, stride)
}

// CmdBindIndexBuffer binds 32 bit indices starting at the front of the
// buffer.
func (c *CommandBuffer) CmdBindIndexBuffer(h BufferHandle) {
	b := c.gx.buffers.Get(h)
	assertf(b != nil, "invalid index buffer %s", h)
	c.Native().BindIndexBuffer(b.buf, 0, native.IndexUint32)
}

func (c *CommandBuffer) CmdSetViewport(extent native.Extent2D) {
	c.Native().SetViewport(native.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	})
}

func (c *CommandBuffer) CmdSetScissor(extent native.Extent2D) {
	c.Native().SetScissor(native.Rect2D{Extent: extent})
}

func (c *CommandBuffer) CmdSetScissorRect(r native.Rect2D) {
	c.Native().SetScissor(r)
}

func (c *CommandBuffer) CmdSetDepthBiasEnable(enable bool) {
	c.Native().SetDepthBiasEnable(enable)
}

func (c *CommandBuffer) CmdSetDepthBias(constantFactor, slopeFactor, clamp float32) {
	c.Native().SetDepthBias(constantFactor, clamp, slopeFactor)
}

// CmdBindDepthState sets the dynamic depth state. Testing is only enabled
// when it can change the result, that is when the compare op is not
// always or depth is written.
func (c *CommandBuffer) CmdBindDepthState(s DepthState) {
	cmd := c.Native()
	op := s.CompareOp.native()
	cmd.SetDepthWriteEnable(s.DepthWriteEnabled)
	cmd.SetDepthTestEnable(op != native.CompareAlways || s.DepthWriteEnabled)
	cmd.SetDepthCompareOp(op)
}

// CmdPushConstants pushes data at offset to the vertex and fragment stages
// of the bound pipeline.
func (c *CommandBuffer) CmdPushConstants(data []byte, offset uint32) {
	size := uint32(len(data))
	assertf(size%4 == 0, "push constant size %d is not a multiple of 4", size)
	limit := c.gx.dev.Properties().Limits.MaxPushConstantsSize
	if size+offset > limit {
		log().Error("push constants exceed the device limit, dropping them", "size", size, "offset", offset, "limit", limit)
		return
	}
	if c.currentPipeline.Empty() {
		log().Warn("no render pipeline bound, dropping push constants")
		return
	}
	p := c.gx.pipelines.Get(c.currentPipeline)
	if p == nil || p.layout == nil {
		log().Warn("bound render pipeline is not resolved, dropping push constants", "pipeline", c.currentPipeline.String())
		return
	}
	c.Native().PushConstants(p.layout, native.ShaderStageVertex|native.ShaderStageFragment, offset, data)
}

// CmdPushObjectData pushes the per object block at offset 0.
func (c *CommandBuffer) CmdPushObjectData(d PerObjectData) {
	c.CmdPushConstants(d.Bytes(), 0)
}

// CmdTransitionLayout moves every level and layer of a texture to
// newLayout.
func (c *CommandBuffer) CmdTransitionLayout(h TextureHandle, newLayout native.Layout) {
	t := c.texture(h)
	t.transitionLayout(c.Native(), newLayout, t.fullRange())
}

// CmdTransitionSwapchainLayout moves the current swapchain image to
// newLayout with a full barrier.
func (c *CommandBuffer) CmdTransitionSwapchainLayout(newLayout native.Layout) {
	sc := c.gx.swapchain
	assertf(sc != nil, "no swapchain")
	t := sc.currentTexture()
	c.Native().PipelineBarrier([]native.ImageBarrier{imageBarrier(t.image,
		stageAccess{native.StageAllCommands, native.AccessMemoryWrite},
		stageAccess{native.StageAllCommands, native.AccessMemoryRead | native.AccessMemoryWrite},
		t.layout, newLayout, t.fullRange())}, nil)
	t.layout = newLayout
}

func (c *CommandBuffer) CmdGenerateMipmap(h TextureHandle) {
	t := c.texture(h)
	if t.numLevels <= 1 {
		return
	}
	t.generateMipmap(c.Native())
}

func blitFilter(t *AllocatedTexture) native.Filter {
	if t.format.IsDepthOrStencil() {
		return native.FilterNearest
	}
	return native.FilterLinear
}

func extentOffset(e native.Extent3D) native.Offset3D {
	return native.Offset3D{X: int32(e.Width), Y: int32(e.Height), Z: 1}
}

// toTransfer moves t to the transfer layout unless it already is in it.
func (c *CommandBuffer) toTransfer(t *AllocatedTexture, l native.Layout) {
	if t.layout != l {
		t.transitionLayout(c.Native(), l, t.fullRange())
	}
}

// CmdBlitImage scales level 0 of src over the whole of level 0 of dst.
func (c *CommandBuffer) CmdBlitImage(src, dst TextureHandle) {
	s, d := c.texture(src), c.texture(dst)
	c.toTransfer(s, native.LayoutTransferSrc)
	c.toTransfer(d, native.LayoutTransferDst)
	c.Native().BlitImage(s.image, native.LayoutTransferSrc, d.image, native.LayoutTransferDst, blitFilter(s), native.ImageBlit{
		SrcSubresource: native.SubresourceLayers{Aspect: s.format.Aspect(), LayerCount: 1},
		SrcOffsets:     [2]native.Offset3D{{}, extentOffset(s.extent)},
		DstSubresource: native.SubresourceLayers{Aspect: d.format.Aspect(), LayerCount: 1},
		DstOffsets:     [2]native.Offset3D{{}, extentOffset(d.extent)},
	})
}

// CmdCopyImage copies the top left size texels of level 0.
func (c *CommandBuffer) CmdCopyImage(src, dst TextureHandle, size native.Extent2D) {
	s, d := c.texture(src), c.texture(dst)
	c.toTransfer(s, native.LayoutTransferSrc)
	c.toTransfer(d, native.LayoutTransferDst)
	c.Native().CopyImage(s.image, native.LayoutTransferSrc, d.image, native.LayoutTransferDst, native.ImageCopy{
		SrcSubresource: native.SubresourceLayers{Aspect: s.format.Aspect(), LayerCount: 1},
		DstSubresource: native.SubresourceLayers{Aspect: d.format.Aspect(), LayerCount: 1},
		Extent:         native.Extent3D{Width: size.Width, Height: size.Height, Depth: 1},
	})
}

// CmdBlitToSwapchain scales level 0 of src onto the current swapchain
// image, leaving it in the transfer destination layout.
func (c *CommandBuffer) CmdBlitToSwapchain(src TextureHandle) {
	sc := c.gx.swapchain
	assertf(sc != nil, "no swapchain")
	c.CmdBlitImage(src, sc.currentHandle())
}

func (c *CommandBuffer) CmdCopyImageToBuffer(src TextureHandle, dst BufferHandle, region native.BufferImageCopy) {
	t := c.texture(src)
	b := c.gx.buffers.Get(dst)
	assertf(b != nil, "invalid buffer handle %s", dst)
	if t.layout != native.LayoutTransferSrc && t.layout != native.LayoutGeneral {
		t.transitionLayout(c.Native(), native.LayoutTransferSrc, t.fullRange())
	}
	c.Native().CopyImageToBuffer(t.image, t.layout, b.buf, region)
}

// bufferBarrier orders earlier accesses of a whole buffer in srcStage
// before later ones in dstStage. Transfer stages get transfer access and
// everything else shader access.
func (c *CommandBuffer) bufferBarrier(b *AllocatedBuffer, srcStage, dstStage native.PipelineStage) {
	access := func(stage native.PipelineStage) native.Access {
		if stage&native.StageTransfer != 0 {
			return native.AccessTransferRead | native.AccessTransferWrite
		}
		return native.AccessShaderRead | native.AccessShaderWrite
	}
	barrier := native.BufferBarrier{
		Buffer:    b.buf,
		SrcStage:  srcStage,
		SrcAccess: access(srcStage),
		DstStage:  dstStage,
		DstAccess: access(dstStage),
		Size:      native.WholeSize,
	}
	if dstStage&native.StageDrawIndirect != 0 {
		barrier.DstAccess |= native.AccessIndirectCommandRead
	}
	if b.usage&native.BufferUsageIndex != 0 {
		barrier.DstAccess |= native.AccessIndexRead
	}
	c.Native().PipelineBarrier(nil, []native.BufferBarrier{barrier})
}

// CmdUpdateBuffer writes data into the buffer inline in the command stream.
// The update is fenced off from earlier work and made visible to vertex
// shaders, and to indirect draws for indirect buffers.
func (c *CommandBuffer) CmdUpdateBuffer(h BufferHandle, offset uint64, data []byte) {
	b := c.gx.buffers.Get(h)
	assertf(b != nil, "invalid buffer handle %s", h)
	if len(data) == 0 {
		log().Warn("empty buffer update", "buffer", b.label)
		return
	}
	assertf(len(data) <= maxUpdateBufferSize, "buffer update of %d bytes exceeds %d", len(data), maxUpdateBufferSize)
	assertf(len(data)%4 == 0, "buffer update size %d is not a multiple of 4", len(data))
	assertf(offset%4 == 0, "buffer update offset %d is not a multiple of 4", offset)
	assertf(offset+uint64(len(data)) <= b.size, "buffer update of %d bytes at %d overflows %q", len(data), offset, b.label)

	c.bufferBarrier(b, native.StageAllCommands, native.StageTransfer)
	c.Native().UpdateBuffer(b.buf, offset, data)

	dst := native.StageVertexShader
	if b.usage&native.BufferUsageIndirect != 0 {
		dst |= native.StageDrawIndirect
	}
	c.bufferBarrier(b, native.StageTransfer, dst)
}
