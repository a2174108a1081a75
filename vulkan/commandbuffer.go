package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

// commandBuffer records into a primary command buffer of the backend's
// command pool.
type commandBuffer struct {
	vk    vk.CommandBuffer
	procs *deviceProcs
}

func (c *commandBuffer) CommandBufferHandle() uintptr { return uintptr(unsafe.Pointer(c.vk)) }

func (d *Backend) createCommandPool() error {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit | vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: d.queueFamily.index,
	}
	return errors.Wrap(vk.Error(vk.CreateCommandPool(d.device, &createInfo, nil, &d.commandPool)), "create command pool")
}

func (d *Backend) AllocateCommandBuffer() (native.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmds := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(d.device, &allocInfo, cmds)); err != nil {
		return nil, errors.Wrap(err, "allocate command buffer")
	}
	return &commandBuffer{vk: cmds[0], procs: d.procs}, nil
}

func (d *Backend) FreeCommandBuffer(c native.CommandBuffer) {
	vk.FreeCommandBuffers(d.device, d.commandPool, 1, []vk.CommandBuffer{c.(*commandBuffer).vk})
}

func (c *commandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return errors.Wrap(vk.Error(vk.BeginCommandBuffer(c.vk, &beginInfo)), "begin command buffer")
}

func (c *commandBuffer) End() error {
	return errors.Wrap(vk.Error(vk.EndCommandBuffer(c.vk)), "end command buffer")
}

func (c *commandBuffer) Reset() error {
	return errors.Wrap(vk.Error(vk.ResetCommandBuffer(c.vk, 0)), "reset command buffer")
}

// PipelineBarrier records every barrier in one vkCmdPipelineBarrier, with
// the stage masks of all barriers merged.
func (c *commandBuffer) PipelineBarrier(images []native.ImageBarrier, buffers []native.BufferBarrier) {
	if len(images) == 0 && len(buffers) == 0 {
		return
	}
	var src, dst native.PipelineStage
	imageBarriers := make([]vk.ImageMemoryBarrier, len(images))
	for i, b := range images {
		src |= b.SrcStage
		dst |= b.DstStage
		imageBarriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image.(*image).vk,
			SubresourceRange:    subresourceRange(b.Range),
		}
	}
	bufferBarriers := make([]vk.BufferMemoryBarrier, len(buffers))
	for i, b := range buffers {
		src |= b.SrcStage
		dst |= b.DstStage
		bufferBarriers[i] = vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              b.Buffer.(*buffer).vk,
			Offset:              vk.DeviceSize(b.Offset),
			Size:                vk.DeviceSize(b.Size),
		}
	}
	if src == native.StageNone {
		src = native.StageTopOfPipe
	}
	if dst == native.StageNone {
		dst = native.StageBottomOfPipe
	}
	vk.CmdPipelineBarrier(c.vk, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0,
		0, nil,
		uint32(len(bufferBarriers)), bufferBarriers,
		uint32(len(imageBarriers)), imageBarriers)
}

func (c *commandBuffer) CopyBuffer(src, dst native.Buffer, regions ...native.BufferCopy) {
	vkRegions := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		vkRegions[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(c.vk, src.(*buffer).vk, dst.(*buffer).vk, uint32(len(vkRegions)), vkRegions)
}

func bufferImageCopies(regions []native.BufferImageCopy) []vk.BufferImageCopy {
	out := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		out[i] = vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(r.BufferOffset),
			BufferRowLength:   r.RowLength,
			BufferImageHeight: r.ImageHeight,
			ImageSubresource:  subresourceLayers(r.Subresource),
			ImageOffset:       offset3D(r.Offset),
			ImageExtent:       extent3D(r.Extent),
		}
	}
	return out
}

func (c *commandBuffer) CopyBufferToImage(src native.Buffer, dst native.Image, dstLayout native.Layout, regions ...native.BufferImageCopy) {
	vkRegions := bufferImageCopies(regions)
	vk.CmdCopyBufferToImage(c.vk, src.(*buffer).vk, dst.(*image).vk, vk.ImageLayout(dstLayout), uint32(len(vkRegions)), vkRegions)
}

func (c *commandBuffer) CopyImageToBuffer(src native.Image, srcLayout native.Layout, dst native.Buffer, regions ...native.BufferImageCopy) {
	vkRegions := bufferImageCopies(regions)
	vk.CmdCopyImageToBuffer(c.vk, src.(*image).vk, vk.ImageLayout(srcLayout), dst.(*buffer).vk, uint32(len(vkRegions)), vkRegions)
}

func (c *commandBuffer) CopyImage(src native.Image, srcLayout native.Layout, dst native.Image, dstLayout native.Layout, regions ...native.ImageCopy) {
	vkRegions := make([]vk.ImageCopy, len(regions))
	for i, r := range regions {
		vkRegions[i] = vk.ImageCopy{
			SrcSubresource: subresourceLayers(r.SrcSubresource),
			SrcOffset:      offset3D(r.SrcOffset),
			DstSubresource: subresourceLayers(r.DstSubresource),
			DstOffset:      offset3D(r.DstOffset),
			Extent:         extent3D(r.Extent),
		}
	}
	vk.CmdCopyImage(c.vk, src.(*image).vk, vk.ImageLayout(srcLayout), dst.(*image).vk, vk.ImageLayout(dstLayout), uint32(len(vkRegions)), vkRegions)
}

func (c *commandBuffer) BlitImage(src native.Image, srcLayout native.Layout, dst native.Image, dstLayout native.Layout, filter native.Filter, regions ...native.ImageBlit) {
	vkRegions := make([]vk.ImageBlit, len(regions))
	for i, r := range regions {
		vkRegions[i] = vk.ImageBlit{
			SrcSubresource: subresourceLayers(r.SrcSubresource),
			SrcOffsets:     [2]vk.Offset3D{offset3D(r.SrcOffsets[0]), offset3D(r.SrcOffsets[1])},
			DstSubresource: subresourceLayers(r.DstSubresource),
			DstOffsets:     [2]vk.Offset3D{offset3D(r.DstOffsets[0]), offset3D(r.DstOffsets[1])},
		}
	}
	vk.CmdBlitImage(c.vk, src.(*image).vk, vk.ImageLayout(srcLayout), dst.(*image).vk, vk.ImageLayout(dstLayout), uint32(len(vkRegions)), vkRegions, vk.Filter(filter))
}

func (c *commandBuffer) UpdateBuffer(dst native.Buffer, offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdUpdateBuffer(c.vk, dst.(*buffer).vk, vk.DeviceSize(offset), vk.DeviceSize(len(data)), unsafe.Pointer(&data[0]))
}

func renderingAttachment(a native.RenderingAttachment, depth bool) vk.RenderingAttachmentInfo {
	info := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   a.View.(*imageView).vk,
		ImageLayout: vk.ImageLayout(a.Layout),
		ResolveMode: vk.ResolveModeFlagBits(a.ResolveMode),
		LoadOp:      vk.AttachmentLoadOp(a.LoadOp),
		StoreOp:     vk.AttachmentStoreOp(a.StoreOp),
	}
	if a.ResolveMode != native.ResolveNone && a.ResolveView != nil {
		info.ResolveImageView = a.ResolveView.(*imageView).vk
		info.ResolveImageLayout = vk.ImageLayout(a.ResolveLayout)
	}
	if depth {
		info.ClearValue = vk.NewClearDepthStencil(a.ClearDepth.Depth, a.ClearDepth.Stencil)
	} else {
		info.ClearValue = vk.NewClearValue(a.ClearColor[:])
	}
	return info
}

func (c *commandBuffer) BeginRendering(ri native.RenderingInfo) {
	colors := make([]vk.RenderingAttachmentInfo, len(ri.Color))
	for i, a := range ri.Color {
		colors[i] = renderingAttachment(a, false)
	}
	renderInfo := vk.RenderingInfo{
		SType: vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: ri.Area.Offset.X, Y: ri.Area.Offset.Y},
			Extent: vk.Extent2D{Width: ri.Area.Extent.Width, Height: ri.Area.Extent.Height},
		},
		LayerCount:           ri.Layers,
		ColorAttachmentCount: uint32(len(colors)),
		PColorAttachments:    colors,
	}
	if ri.Depth != nil {
		renderInfo.PDepthAttachment = []vk.RenderingAttachmentInfo{renderingAttachment(*ri.Depth, true)}
	}
	c.procs.beginRendering(c.vk, &renderInfo)
}

func (c *commandBuffer) EndRendering() {
	c.procs.endRendering(c.vk)
}

func (c *commandBuffer) BindPipeline(bp native.BindPoint, p native.Pipeline) {
	vk.CmdBindPipeline(c.vk, vk.PipelineBindPoint(bp), p.(*pipeline).vk)
}

func (c *commandBuffer) BindDescriptorSets(bp native.BindPoint, layout native.PipelineLayout, first uint32, sets ...native.DescriptorSet) {
	vkSets := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		vkSets[i] = s.(*descriptorSet).vk
	}
	vk.CmdBindDescriptorSets(c.vk, vk.PipelineBindPoint(bp), layout.(*pipelineLayout).vk, first, uint32(len(vkSets)), vkSets, 0, nil)
}

func (c *commandBuffer) PushConstants(layout native.PipelineLayout, stages native.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.vk, layout.(*pipelineLayout).vk, vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *commandBuffer) BindIndexBuffer(b native.Buffer, offset uint64, t native.IndexType) {
	vk.CmdBindIndexBuffer(c.vk, b.(*buffer).vk, vk.DeviceSize(offset), vk.IndexType(t))
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.vk, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.vk, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *commandBuffer) DrawIndirect(b native.Buffer, offset uint64, drawCount, stride uint32) {
	vk.CmdDrawIndirect(c.vk, b.(*buffer).vk, vk.DeviceSize(offset), drawCount, stride)
}

func (c *commandBuffer) DrawIndexedIndirect(b native.Buffer, offset uint64, drawCount, stride uint32) {
	vk.CmdDrawIndexedIndirect(c.vk, b.(*buffer).vk, vk.DeviceSize(offset), drawCount, stride)
}

func (c *commandBuffer) SetViewport(v native.Viewport) {
	vk.CmdSetViewport(c.vk, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
}

func (c *commandBuffer) SetScissor(r native.Rect2D) {
	vk.CmdSetScissor(c.vk, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}})
}

func (c *commandBuffer) SetDepthTestEnable(enable bool) {
	cmdSetBool(c.procs.cmdSetDepthTestEnable, c.vk, enable)
}

func (c *commandBuffer) SetDepthWriteEnable(enable bool) {
	cmdSetBool(c.procs.cmdSetDepthWriteEnable, c.vk, enable)
}

func (c *commandBuffer) SetDepthCompareOp(op native.CompareOp) {
	c.procs.setDepthCompareOp(c.vk, vk.CompareOp(op))
}

func (c *commandBuffer) SetDepthBiasEnable(enable bool) {
	cmdSetBool(c.procs.cmdSetDepthBiasEnable, c.vk, enable)
}

func (c *commandBuffer) SetDepthBias(constant, clamp, slope float32) {
	vk.CmdSetDepthBias(c.vk, constant, clamp, slope)
}
