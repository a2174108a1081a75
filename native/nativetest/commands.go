package nativetest

import (
	"math"

	"github.com/celer/gx/native"
)

// CommandBuffer records closures that the device runs, with its lock held,
// when the submission that carries them retires.
type CommandBuffer struct {
	object
	dev       *Device
	recording bool
	ended     bool
	pending   int
	ops       []func()
}

func (c *CommandBuffer) CommandBufferHandle() uintptr { return c.id }

func (c *CommandBuffer) record(name string, op func()) {
	d := c.dev
	if !c.recording {
		d.mu.Lock()
		d.errorf("%s recorded outside of Begin/End", name)
		d.mu.Unlock()
		return
	}
	c.ops = append(c.ops, func() {
		d.executed = append(d.executed, name)
		if op != nil {
			op()
		}
	})
}

func (c *CommandBuffer) Begin() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.pending > 0 {
		c.dev.errorf("command buffer %d begun while its submission is pending", c.id)
	}
	if c.recording {
		c.dev.errorf("command buffer %d begun twice", c.id)
	}
	c.ops = nil
	c.recording = true
	c.ended = false
	return nil
}

func (c *CommandBuffer) End() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if !c.recording {
		c.dev.errorf("command buffer %d ended without Begin", c.id)
	}
	c.recording = false
	c.ended = true
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.pending > 0 {
		c.dev.errorf("command buffer %d reset while its submission is pending", c.id)
	}
	c.ops = nil
	c.recording = false
	c.ended = false
	return nil
}

func levelCount(r native.SubresourceRange, total uint32) uint32 {
	if r.LevelCount == native.RemainingMipLevels {
		return total - r.BaseMipLevel
	}
	return r.LevelCount
}

func layerCount(r native.SubresourceRange, total uint32) uint32 {
	if r.LayerCount == native.RemainingArrayLayers {
		return total - r.BaseArrayLayer
	}
	return r.LayerCount
}

// compatibleLayout reports whether a layout named in a command matches the
// tracked one. The generic attachment and read-only layouts of
// synchronization2 match their specific counterparts.
func compatibleLayout(tracked, used native.Layout) bool {
	if tracked == used {
		return true
	}
	switch used {
	case native.LayoutAttachment:
		return tracked == native.LayoutColorAttachment || tracked == native.LayoutDepthStencilAttachment || tracked == native.LayoutDepthAttachment
	case native.LayoutReadOnly:
		return tracked == native.LayoutShaderReadOnly || tracked == native.LayoutDepthStencilReadOnly || tracked == native.LayoutDepthReadOnly
	}
	return false
}

func (d *Device) checkLayout(img *Image, mip, layer uint32, used native.Layout, what string) {
	tracked := img.layouts[subresource{mip: mip, layer: layer}]
	if !compatibleLayout(tracked, used) {
		d.errorf("%s uses image %q mip %d layer %d as %s but it is in %s", what, img.label, mip, layer, used, tracked)
	}
}

func (d *Device) checkLive(what string, objs ...tracked) {
	for _, o := range objs {
		if o == nil {
			continue
		}
		if b := o.base(); b.destroyed {
			d.errorf("%s executed with destroyed %s %q", what, b.kind, b.label)
		}
	}
}

func (c *CommandBuffer) PipelineBarrier(images []native.ImageBarrier, buffers []native.BufferBarrier) {
	images = append([]native.ImageBarrier(nil), images...)
	d := c.dev
	c.record("PipelineBarrier", func() {
		d.stats.Barriers++
		for _, b := range buffers {
			d.checkLive("PipelineBarrier", b.Buffer.(*Buffer))
		}
		for _, b := range images {
			img := b.Image.(*Image)
			d.checkLive("PipelineBarrier", img)
			levels := levelCount(b.Range, img.desc.MipLevels)
			layers := layerCount(b.Range, img.desc.ArrayLayers)
			for mip := b.Range.BaseMipLevel; mip < b.Range.BaseMipLevel+levels; mip++ {
				for layer := b.Range.BaseArrayLayer; layer < b.Range.BaseArrayLayer+layers; layer++ {
					key := subresource{mip: mip, layer: layer}
					if b.OldLayout != native.LayoutUndefined && !compatibleLayout(img.layouts[key], b.OldLayout) {
						d.errorf("barrier on image %q mip %d layer %d from %s but it is in %s",
							img.label, mip, layer, b.OldLayout, img.layouts[key])
					}
					img.layouts[key] = b.NewLayout
				}
			}
		}
	})
}

func (c *CommandBuffer) CopyBuffer(src, dst native.Buffer, regions ...native.BufferCopy) {
	s, t := src.(*Buffer), dst.(*Buffer)
	d := c.dev
	c.record("CopyBuffer", func() {
		d.stats.BufferCopies++
		d.checkLive("CopyBuffer", s, t)
		for _, r := range regions {
			if r.SrcOffset+r.Size > uint64(len(s.gpu)) || r.DstOffset+r.Size > uint64(len(t.gpu)) {
				d.errorf("CopyBuffer region %+v out of bounds", r)
				continue
			}
			copy(t.gpu[r.DstOffset:r.DstOffset+r.Size], s.gpu[r.SrcOffset:r.SrcOffset+r.Size])
		}
	})
}

func (c *CommandBuffer) UpdateBuffer(dst native.Buffer, offset uint64, data []byte) {
	t := dst.(*Buffer)
	data = append([]byte(nil), data...)
	d := c.dev
	c.record("UpdateBuffer", func() {
		d.stats.BufferUpdates++
		d.checkLive("UpdateBuffer", t)
		if offset+uint64(len(data)) > uint64(len(t.gpu)) {
			d.errorf("UpdateBuffer of %d bytes at %d out of bounds", len(data), offset)
			return
		}
		copy(t.gpu[offset:], data)
	})
}

// transferRegion walks the texel rows of a buffer/image copy region and
// calls fn with the matching buffer and image byte ranges. Compressed and
// multi-planar formats are transferred a whole plane at a time.
func (d *Device) transferRegion(img *Image, buf *Buffer, r native.BufferImageCopy, fn func(bufBytes, imgBytes []byte)) {
	info, _ := img.desc.Format.Info()
	sub := r.Subresource
	plane := planeIndex(sub.Aspect)
	if info.Compressed || info.Planes > 1 {
		if r.Offset != (native.Offset3D{}) {
			d.errorf("partial copy of %s image %q is not simulated", img.desc.Format, img.label)
			return
		}
		off := r.BufferOffset
		for l := uint32(0); l < sub.LayerCount; l++ {
			dst := img.storage(sub.MipLevel, sub.BaseArrayLayer+l, plane)
			if off+uint64(len(dst)) > uint64(len(buf.gpu)) {
				d.errorf("copy of image %q reads past the end of the buffer", img.label)
				return
			}
			fn(buf.gpu[off:off+uint64(len(dst))], dst)
			off += uint64(len(dst))
		}
		return
	}
	bpp := uint64(info.BytesPerBlock)
	ext := img.mipExtent(sub.MipLevel)
	rowLength := uint64(r.RowLength)
	if rowLength == 0 {
		rowLength = uint64(r.Extent.Width)
	}
	imageHeight := uint64(r.ImageHeight)
	if imageHeight == 0 {
		imageHeight = uint64(r.Extent.Height)
	}
	depth := uint64(max(r.Extent.Depth, 1))
	if uint64(r.Offset.X)+uint64(r.Extent.Width) > uint64(ext.Width) ||
		uint64(r.Offset.Y)+uint64(r.Extent.Height) > uint64(ext.Height) ||
		uint64(r.Offset.Z)+depth > uint64(ext.Depth) {
		d.errorf("copy region %+v exceeds mip %d of image %q", r.Extent, sub.MipLevel, img.label)
		return
	}
	layerBytes := rowLength * imageHeight * depth * bpp
	rowBytes := uint64(r.Extent.Width) * bpp
	for l := uint64(0); l < uint64(sub.LayerCount); l++ {
		texels := img.storage(sub.MipLevel, sub.BaseArrayLayer+uint32(l), 0)
		for z := uint64(0); z < depth; z++ {
			for y := uint64(0); y < uint64(r.Extent.Height); y++ {
				src := r.BufferOffset + l*layerBytes + ((z*imageHeight+y)*rowLength)*bpp
				if src+rowBytes > uint64(len(buf.gpu)) {
					d.errorf("copy of image %q reads past the end of the buffer", img.label)
					return
				}
				dst := (((z+uint64(r.Offset.Z))*uint64(ext.Height)+y+uint64(r.Offset.Y))*uint64(ext.Width) + uint64(r.Offset.X)) * bpp
				fn(buf.gpu[src:src+rowBytes], texels[dst:dst+rowBytes])
			}
		}
	}
}

func (c *CommandBuffer) CopyBufferToImage(src native.Buffer, dst native.Image, dstLayout native.Layout, regions ...native.BufferImageCopy) {
	buf, img := src.(*Buffer), dst.(*Image)
	d := c.dev
	c.record("CopyBufferToImage", func() {
		d.stats.BufferImageCopies++
		d.checkLive("CopyBufferToImage", buf, img)
		for _, r := range regions {
			for l := uint32(0); l < r.Subresource.LayerCount; l++ {
				d.checkLayout(img, r.Subresource.MipLevel, r.Subresource.BaseArrayLayer+l, dstLayout, "CopyBufferToImage")
			}
			d.transferRegion(img, buf, r, func(b, i []byte) { copy(i, b) })
		}
	})
}

func (c *CommandBuffer) CopyImageToBuffer(src native.Image, srcLayout native.Layout, dst native.Buffer, regions ...native.BufferImageCopy) {
	img, buf := src.(*Image), dst.(*Buffer)
	d := c.dev
	c.record("CopyImageToBuffer", func() {
		d.stats.ImageBufferCopies++
		d.checkLive("CopyImageToBuffer", buf, img)
		for _, r := range regions {
			for l := uint32(0); l < r.Subresource.LayerCount; l++ {
				d.checkLayout(img, r.Subresource.MipLevel, r.Subresource.BaseArrayLayer+l, srcLayout, "CopyImageToBuffer")
			}
			d.transferRegion(img, buf, r, func(b, i []byte) { copy(b, i) })
		}
	})
}

func (c *CommandBuffer) CopyImage(src native.Image, srcLayout native.Layout, dst native.Image, dstLayout native.Layout, regions ...native.ImageCopy) {
	s, t := src.(*Image), dst.(*Image)
	d := c.dev
	c.record("CopyImage", func() {
		d.checkLive("CopyImage", s, t)
		info, _ := s.desc.Format.Info()
		bpp := int(info.BytesPerBlock)
		for _, r := range regions {
			for l := uint32(0); l < r.SrcSubresource.LayerCount; l++ {
				sl, tl := r.SrcSubresource.BaseArrayLayer+l, r.DstSubresource.BaseArrayLayer+l
				d.checkLayout(s, r.SrcSubresource.MipLevel, sl, srcLayout, "CopyImage")
				d.checkLayout(t, r.DstSubresource.MipLevel, tl, dstLayout, "CopyImage")
				se, te := s.mipExtent(r.SrcSubresource.MipLevel), t.mipExtent(r.DstSubresource.MipLevel)
				from := s.storage(r.SrcSubresource.MipLevel, sl, 0)
				to := t.storage(r.DstSubresource.MipLevel, tl, 0)
				for y := 0; y < int(r.Extent.Height); y++ {
					so := ((int(r.SrcOffset.Y)+y)*int(se.Width) + int(r.SrcOffset.X)) * bpp
					to0 := ((int(r.DstOffset.Y)+y)*int(te.Width) + int(r.DstOffset.X)) * bpp
					copy(to[to0:to0+int(r.Extent.Width)*bpp], from[so:so+int(r.Extent.Width)*bpp])
				}
			}
		}
	})
}

// BlitImage is simulated with nearest filtering regardless of filter.
func (c *CommandBuffer) BlitImage(src native.Image, srcLayout native.Layout, dst native.Image, dstLayout native.Layout, filter native.Filter, regions ...native.ImageBlit) {
	s, t := src.(*Image), dst.(*Image)
	d := c.dev
	c.record("BlitImage", func() {
		d.stats.Blits++
		d.checkLive("BlitImage", s, t)
		info, _ := s.desc.Format.Info()
		if info.Compressed {
			d.errorf("blit of compressed image %q", s.label)
			return
		}
		bpp := int(info.BytesPerBlock)
		for _, r := range regions {
			for l := uint32(0); l < r.SrcSubresource.LayerCount; l++ {
				sl, tl := r.SrcSubresource.BaseArrayLayer+l, r.DstSubresource.BaseArrayLayer+l
				d.checkLayout(s, r.SrcSubresource.MipLevel, sl, srcLayout, "BlitImage")
				d.checkLayout(t, r.DstSubresource.MipLevel, tl, dstLayout, "BlitImage")
				se, te := s.mipExtent(r.SrcSubresource.MipLevel), t.mipExtent(r.DstSubresource.MipLevel)
				from := s.storage(r.SrcSubresource.MipLevel, sl, 0)
				to := t.storage(r.DstSubresource.MipLevel, tl, 0)
				sx0, sy0 := int(r.SrcOffsets[0].X), int(r.SrcOffsets[0].Y)
				sw, sh := int(r.SrcOffsets[1].X)-sx0, int(r.SrcOffsets[1].Y)-sy0
				dx0, dy0 := int(r.DstOffsets[0].X), int(r.DstOffsets[0].Y)
				dw, dh := int(r.DstOffsets[1].X)-dx0, int(r.DstOffsets[1].Y)-dy0
				if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 ||
					sx0+sw > int(se.Width) || sy0+sh > int(se.Height) ||
					dx0+dw > int(te.Width) || dy0+dh > int(te.Height) {
					d.errorf("blit region %+v out of bounds", r)
					continue
				}
				for y := 0; y < dh; y++ {
					sy := sy0 + y*sh/dh
					for x := 0; x < dw; x++ {
						sx := sx0 + x*sw/dw
						so := (sy*int(se.Width) + sx) * bpp
						do := ((dy0+y)*int(te.Width) + dx0 + x) * bpp
						copy(to[do:do+bpp], from[so:so+bpp])
					}
				}
			}
		}
	})
}

func unorm8(v float32) byte {
	return byte(math.Round(float64(min(max(v, 0), 1)) * 255))
}

func (c *CommandBuffer) BeginRendering(info native.RenderingInfo) {
	info.Color = append([]native.RenderingAttachment(nil), info.Color...)
	d := c.dev
	c.record("BeginRendering", func() {
		d.stats.RenderPasses++
		d.lastRendering = &info
		for _, att := range info.Color {
			v := att.View.(*ImageView)
			d.checkLive("BeginRendering", v, v.image)
			base := v.desc.Range.BaseMipLevel
			layer := v.desc.Range.BaseArrayLayer
			d.checkLayout(v.image, base, layer, att.Layout, "BeginRendering")
			if att.LoadOp != native.LoadOpClear {
				continue
			}
			var px [4]byte
			switch v.image.desc.Format {
			case native.FormatR8G8B8A8Unorm, native.FormatR8G8B8A8Srgb:
				px = [4]byte{unorm8(att.ClearColor[0]), unorm8(att.ClearColor[1]), unorm8(att.ClearColor[2]), unorm8(att.ClearColor[3])}
			case native.FormatB8G8R8A8Unorm, native.FormatB8G8R8A8Srgb:
				px = [4]byte{unorm8(att.ClearColor[2]), unorm8(att.ClearColor[1]), unorm8(att.ClearColor[0]), unorm8(att.ClearColor[3])}
			default:
				continue
			}
			texels := v.image.storage(base, layer, 0)
			for i := 0; i+4 <= len(texels); i += 4 {
				copy(texels[i:i+4], px[:])
			}
		}
		if info.Depth != nil {
			v := info.Depth.View.(*ImageView)
			d.checkLive("BeginRendering", v, v.image)
			d.checkLayout(v.image, v.desc.Range.BaseMipLevel, v.desc.Range.BaseArrayLayer, info.Depth.Layout, "BeginRendering")
		}
	})
}

func (c *CommandBuffer) EndRendering() { c.record("EndRendering", nil) }

func (c *CommandBuffer) BindPipeline(bp native.BindPoint, p native.Pipeline) {
	pipe := p.(*Pipeline)
	d := c.dev
	c.record("BindPipeline", func() {
		d.checkLive("BindPipeline", pipe, pipe.Desc.Layout.(*PipelineLayout))
	})
}

func (c *CommandBuffer) BindDescriptorSets(bp native.BindPoint, layout native.PipelineLayout, first uint32, sets ...native.DescriptorSet) {
	l := layout.(*PipelineLayout)
	sets = append([]native.DescriptorSet(nil), sets...)
	d := c.dev
	c.record("BindDescriptorSets", func() {
		d.checkLive("BindDescriptorSets", l)
		for _, s := range sets {
			set := s.(*DescriptorSet)
			d.checkLive("BindDescriptorSets", set.pool)
		}
	})
}

func (c *CommandBuffer) PushConstants(layout native.PipelineLayout, stages native.ShaderStage, offset uint32, data []byte) {
	data = append([]byte(nil), data...)
	d := c.dev
	c.record("PushConstants", func() {
		if offset+uint32(len(data)) > d.props.Limits.MaxPushConstantsSize {
			d.errorf("push constants of %d bytes at %d exceed the device limit", len(data), offset)
		}
		d.lastPushConstants = data
	})
}

func (c *CommandBuffer) BindIndexBuffer(b native.Buffer, offset uint64, t native.IndexType) {
	buf := b.(*Buffer)
	d := c.dev
	c.record("BindIndexBuffer", func() { d.checkLive("BindIndexBuffer", buf) })
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d := c.dev
	c.record("Draw", func() { d.stats.Draws++ })
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d := c.dev
	c.record("DrawIndexed", func() { d.stats.Draws++ })
}

func (c *CommandBuffer) DrawIndirect(b native.Buffer, offset uint64, drawCount, stride uint32) {
	buf := b.(*Buffer)
	d := c.dev
	c.record("DrawIndirect", func() {
		d.checkLive("DrawIndirect", buf)
		d.stats.Draws += int(drawCount)
	})
}

func (c *CommandBuffer) DrawIndexedIndirect(b native.Buffer, offset uint64, drawCount, stride uint32) {
	buf := b.(*Buffer)
	d := c.dev
	c.record("DrawIndexedIndirect", func() {
		d.checkLive("DrawIndexedIndirect", buf)
		d.stats.Draws += int(drawCount)
	})
}

func (c *CommandBuffer) SetViewport(native.Viewport)        { c.record("SetViewport", nil) }
func (c *CommandBuffer) SetScissor(native.Rect2D)           { c.record("SetScissor", nil) }
func (c *CommandBuffer) SetDepthTestEnable(bool)            { c.record("SetDepthTestEnable", nil) }
func (c *CommandBuffer) SetDepthWriteEnable(bool)           { c.record("SetDepthWriteEnable", nil) }
func (c *CommandBuffer) SetDepthCompareOp(native.CompareOp) { c.record("SetDepthCompareOp", nil) }
func (c *CommandBuffer) SetDepthBiasEnable(bool)            { c.record("SetDepthBiasEnable", nil) }
func (c *CommandBuffer) SetDepthBias(constant, clamp, slope float32) {
	c.record("SetDepthBias", nil)
}
