package gx

import (
	"fmt"

	"github.com/celer/gx/native"
)

const stagingAlignment = 16

func alignSize(size, alignment uint64) uint64 {
	return (size + alignment - 1) &^ (alignment - 1)
}

// memoryRegion is a range of the staging buffer tagged with the submission
// that last read from it. The range can be handed out again once that
// submission is complete.
type memoryRegion struct {
	offset uint64
	size   uint64
	handle SubmitHandle
}

// StagingDevice moves data between the host and device local resources
// through one host visible buffer. The buffer grows on demand up to a
// maximum and is carved into regions that are recycled as the copies that
// used them complete.
type StagingDevice struct {
	gx      *GX
	buffer  BufferHandle
	size    uint64
	minSize uint64
	maxSize uint64
	counter int
	regions []memoryRegion
}

func newStagingDevice(g *GX, minSize, maxSize uint64) *StagingDevice {
	limits := g.dev.Properties().Limits
	maxSize = min(uint64(limits.MaxStorageBufferRange), maxSize)
	assertf(minSize <= maxSize, "staging min size %d is larger than max size %d", minSize, maxSize)
	return &StagingDevice{gx: g, minSize: minSize, maxSize: maxSize}
}

// Size is the current size of the staging buffer, zero before first use.
func (s *StagingDevice) Size() uint64 { return s.size }

func (s *StagingDevice) MaxSize() uint64 { return s.maxSize }

func (s *StagingDevice) stagingBuffer() *AllocatedBuffer {
	buf := s.gx.buffers.Get(s.buffer)
	assertf(buf != nil, "staging buffer missing")
	return buf
}

// BufferSubData writes data into buf at dstOffset. Host visible buffers are
// written directly. Anything else goes through the staging buffer in as
// many chunks as the free regions allow.
func (s *StagingDevice) BufferSubData(buf *AllocatedBuffer, dstOffset uint64, data []byte) {
	if buf.isMapped() {
		buf.bufferSubData(s.gx.dev, dstOffset, data)
		return
	}
	dst := buf.buf
	usage := buf.usage
	for len(data) > 0 {
		desc := s.nextFreeOffset(uint64(len(data)))
		chunk := min(uint64(len(data)), desc.size)

		staging := s.stagingBuffer()
		staging.bufferSubData(s.gx.dev, desc.offset, data[:chunk])

		w := s.gx.imm.Acquire()
		w.cmd.CopyBuffer(staging.buf, dst, native.BufferCopy{SrcOffset: desc.offset, DstOffset: dstOffset, Size: chunk})

		barrier := native.BufferBarrier{
			Buffer:    dst,
			SrcStage:  native.StageTransfer,
			SrcAccess: native.AccessTransferWrite,
			DstStage:  native.StageAllCommands,
			Offset:    dstOffset,
			Size:      chunk,
		}
		if usage&native.BufferUsageIndirect != 0 {
			barrier.DstStage |= native.StageDrawIndirect
			barrier.DstAccess |= native.AccessIndirectCommandRead
		}
		if usage&native.BufferUsageIndex != 0 {
			barrier.DstStage |= native.StageVertexInput
			barrier.DstAccess |= native.AccessIndexRead
		}
		if usage&native.BufferUsageVertex != 0 {
			barrier.DstStage |= native.StageVertexInput
			barrier.DstAccess |= native.AccessVertexAttributeRead
		}
		if usage&native.BufferUsageAccelerationStructureBuildInput != 0 {
			barrier.DstStage |= native.StageAccelerationStructureBuild
			barrier.DstAccess |= native.AccessMemoryRead
		}
		w.cmd.PipelineBarrier(nil, []native.BufferBarrier{barrier})

		desc.handle = s.gx.imm.Submit(w)
		s.regions = append(s.regions, desc)

		data = data[chunk:]
		dstOffset += chunk
	}
}

// GetBufferSubData reads len(out) bytes of buf at srcOffset. Device local
// buffers are copied into the staging buffer and read back once the copy
// completes.
func (s *StagingDevice) GetBufferSubData(buf *AllocatedBuffer, srcOffset uint64, out []byte) {
	if buf.isMapped() {
		buf.getBufferSubData(s.gx.dev, srcOffset, out)
		return
	}
	src := buf.buf
	for len(out) > 0 {
		desc := s.nextFreeOffset(uint64(len(out)))
		chunk := min(uint64(len(out)), desc.size)
		staging := s.stagingBuffer()

		w := s.gx.imm.Acquire()
		w.cmd.PipelineBarrier(nil, []native.BufferBarrier{{
			Buffer:    src,
			SrcStage:  native.StageAllCommands,
			SrcAccess: native.AccessMemoryWrite,
			DstStage:  native.StageTransfer,
			DstAccess: native.AccessTransferRead,
			Offset:    srcOffset,
			Size:      chunk,
		}})
		w.cmd.CopyBuffer(src, staging.buf, native.BufferCopy{SrcOffset: srcOffset, DstOffset: desc.offset, Size: chunk})
		desc.handle = s.gx.imm.Submit(w)
		s.regions = append(s.regions, desc)

		s.gx.imm.Wait(desc.handle)
		staging.getBufferSubData(s.gx.dev, desc.offset, out[:chunk])

		out = out[chunk:]
		srcOffset += chunk
	}
}

// claim returns a staging region of at least size bytes. A single
// wait-and-reset is allowed to make room before giving up.
func (s *StagingDevice) claim(size uint64) memoryRegion {
	s.ensureSize(size)
	assertf(size <= s.size, "image data of %d bytes does not fit a staging buffer of %d bytes", size, s.size)
	desc := s.nextFreeOffset(size)
	if desc.size < size {
		s.waitAndReset()
		desc = s.nextFreeOffset(size)
	}
	assertf(desc.size >= size, "no staging region of %d bytes after reset", size)
	return desc
}

// ImageData3D uploads the single mip level of a 3D texture.
func (s *StagingDevice) ImageData3D(tex *AllocatedTexture, offset native.Offset3D, extent native.Extent3D, format native.Format, data []byte) {
	assertf(tex.numLevels == 1, "3D images can only be uploaded with exactly one mip level")
	assertf(offset == native.Offset3D{}, "3D images can only be uploaded whole")

	storageSize := uint64(format.BytesPerLayer(extent.Width, extent.Height, 0)) * uint64(extent.Depth)
	desc := s.claim(storageSize)

	staging := s.stagingBuffer()
	staging.bufferSubData(s.gx.dev, desc.offset, data[:storageSize])

	w := s.gx.imm.Acquire()
	color := native.SubresourceRange{Aspect: native.AspectColor, LevelCount: 1, LayerCount: 1}
	w.cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(tex.image,
		stageAccess{native.StageTopOfPipe, native.AccessNone},
		stageAccess{native.StageTransfer, native.AccessTransferWrite},
		native.LayoutUndefined, native.LayoutTransferDst, color)}, nil)

	w.cmd.CopyBufferToImage(staging.buf, tex.image, native.LayoutTransferDst, native.BufferImageCopy{
		BufferOffset: desc.offset,
		Subresource:  native.SubresourceLayers{Aspect: native.AspectColor, LayerCount: 1},
		Offset:       offset,
		Extent:       extent,
	})

	w.cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(tex.image,
		stageAccess{native.StageTransfer, native.AccessTransferWrite},
		stageAccess{native.StageAllCommands, native.AccessMemoryRead | native.AccessMemoryWrite},
		native.LayoutTransferDst, native.LayoutShaderReadOnly, color)}, nil)

	tex.layout = native.LayoutShaderReadOnly
	desc.handle = s.gx.imm.Submit(w)
	s.regions = append(s.regions, desc)
}

// ImageData2D uploads numMips levels of numLayers layers starting at
// baseMip and baseLayer. Data holds the levels one after another, each level
// holding its layers, each layer holding its planes. The region must cover
// the whole base level.
func (s *StagingDevice) ImageData2D(tex *AllocatedTexture, region native.Rect2D, baseMip, numMips, baseLayer, numLayers uint32, format native.Format, data []byte) {
	w0 := max(tex.extent.Width>>baseMip, 1)
	h0 := max(tex.extent.Height>>baseMip, 1)
	assertf(region.Offset == native.Offset2D{} && region.Extent.Width == w0 && region.Extent.Height == h0,
		"uploading mip levels with a region smaller than the base level is not supported")

	var layerSize uint64
	for i := uint32(0); i < numMips; i++ {
		layerSize += uint64(format.BytesPerLayer(w0, h0, i))
	}
	storageSize := layerSize * uint64(numLayers)
	desc := s.claim(storageSize)

	w := s.gx.imm.Acquire()
	staging := s.stagingBuffer()
	staging.bufferSubData(s.gx.dev, desc.offset, data[:storageSize])

	numPlanes := format.NumPlanes()
	if numPlanes > 1 {
		assertf(baseLayer == 0 && baseMip == 0, "multi-planar images upload from layer 0 mip 0")
		assertf(numLayers == 1 && numMips == 1, "multi-planar images have one layer and one mip")
		assertf(tex.typ == native.ImageType2D, "multi-planar images must be 2D")
		assertf(tex.extent.Width == region.Extent.Width && tex.extent.Height == region.Extent.Height,
			"multi-planar images upload whole")
	}
	aspect := native.AspectColor
	switch numPlanes {
	case 2:
		aspect = native.AspectPlane0 | native.AspectPlane1
	case 3:
		aspect = native.AspectPlane0 | native.AspectPlane1 | native.AspectPlane2
	}

	var offset uint64
	for mip := uint32(0); mip < numMips; mip++ {
		for layer := uint32(0); layer != numLayers; layer++ {
			currentMip := baseMip + mip
			currentLayer := baseLayer + layer
			r := native.SubresourceRange{Aspect: aspect, BaseMipLevel: currentMip, LevelCount: 1, BaseArrayLayer: currentLayer, LayerCount: 1}

			w.cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(tex.image,
				stageAccess{native.StageTopOfPipe, native.AccessNone},
				stageAccess{native.StageTransfer, native.AccessTransferWrite},
				native.LayoutUndefined, native.LayoutTransferDst, r)}, nil)

			var planeOffset uint64
			for plane := uint32(0); plane != numPlanes; plane++ {
				extent := format.PlaneExtent(native.Extent2D{
					Width:  max(1, region.Extent.Width>>mip),
					Height: max(1, region.Extent.Height>>mip),
				}, plane)
				planeAspect := aspect
				if numPlanes > 1 {
					planeAspect = native.AspectPlane0 << plane
				}
				w.cmd.CopyBufferToImage(staging.buf, tex.image, native.LayoutTransferDst, native.BufferImageCopy{
					BufferOffset: desc.offset + offset + planeOffset,
					Subresource:  native.SubresourceLayers{Aspect: planeAspect, MipLevel: currentMip, BaseArrayLayer: currentLayer, LayerCount: 1},
					Offset:       native.Offset3D{X: region.Offset.X >> mip, Y: region.Offset.Y >> mip},
					Extent:       native.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
				})
				planeOffset += uint64(format.BytesPerPlane(region.Extent.Width, region.Extent.Height, plane))
			}

			w.cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(tex.image,
				stageAccess{native.StageTransfer, native.AccessTransferWrite},
				stageAccess{native.StageAllCommands, native.AccessMemoryRead | native.AccessMemoryWrite},
				native.LayoutTransferDst, native.LayoutShaderReadOnly, r)}, nil)

			offset += uint64(format.BytesPerLayer(region.Extent.Width, region.Extent.Height, mip))
		}
	}
	tex.layout = native.LayoutShaderReadOnly

	desc.handle = s.gx.imm.Submit(w)
	s.regions = append(s.regions, desc)
}

// GetImageData reads one layer of tex back into out and restores the
// layout the texture was in. It blocks until the copy is done.
func (s *StagingDevice) GetImageData(tex *AllocatedTexture, offset native.Offset3D, extent native.Extent3D, r native.SubresourceRange, format native.Format, out []byte) {
	assertf(tex.layout != native.LayoutUndefined, "reading back a texture that was never written")
	assertf(r.LayerCount == 1, "image readback handles one layer at a time")

	storageSize := uint64(format.BytesPerLayer(extent.Width, extent.Height, 0)) * uint64(extent.Depth)
	desc := s.claim(storageSize)
	staging := s.stagingBuffer()
	original := tex.layout

	w := s.gx.imm.Acquire()
	w.cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(tex.image,
		stageAccess{native.StageBottomOfPipe, native.AccessMemoryRead | native.AccessMemoryWrite},
		stageAccess{native.StageTransfer, native.AccessTransferRead},
		original, native.LayoutTransferSrc, r)}, nil)
	w.cmd.CopyImageToBuffer(tex.image, native.LayoutTransferSrc, staging.buf, native.BufferImageCopy{
		BufferOffset: desc.offset,
		ImageHeight:  extent.Height,
		Subresource: native.SubresourceLayers{
			Aspect:         r.Aspect,
			MipLevel:       r.BaseMipLevel,
			BaseArrayLayer: r.BaseArrayLayer,
			LayerCount:     r.LayerCount,
		},
		Offset: offset,
		Extent: extent,
	})
	desc.handle = s.gx.imm.Submit(w)
	s.regions = append(s.regions, desc)

	s.waitAndReset()
	staging.getBufferSubData(s.gx.dev, desc.offset, out[:storageSize])

	w = s.gx.imm.Acquire()
	w.cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(tex.image,
		stageAccess{native.StageTransfer, native.AccessTransferRead},
		stageAccess{native.StageTopOfPipe, native.AccessMemoryRead | native.AccessMemoryWrite},
		native.LayoutTransferSrc, original, r)}, nil)
	s.gx.imm.Wait(s.gx.imm.Submit(w))
}

// ensureSize grows the staging buffer to hold need bytes, within the
// configured bounds. The buffer never shrinks.
func (s *StagingDevice) ensureSize(need uint64) {
	need = min(max(alignSize(need, stagingAlignment), s.minSize), s.maxSize)
	if !s.buffer.Empty() {
		if need <= s.size || s.size == s.maxSize {
			return
		}
	}

	s.waitAndReset()
	if !s.buffer.Empty() {
		s.gx.DestroyBuffer(s.buffer)
		s.buffer = BufferHandle{}
	}
	// Some platforms cap the total of host visible device memory, so the old
	// buffer has to be gone before a large new one is allocated.
	if need+s.size > s.maxSize {
		s.gx.waitDeferredTasks()
	}

	old := s.size
	s.size = need
	name := fmt.Sprintf("staging buffer %d", s.counter)
	s.counter++
	s.buffer = s.gx.createBufferHandle(need, native.BufferUsageTransferSrc|native.BufferUsageTransferDst, StorageHostVisible.memory(), name)
	assertf(!s.buffer.Empty(), "failed to create %s", name)
	log().Debug("staging buffer resized", bytesAttr("from", old), bytesAttr("to", need))

	s.regions = s.regions[:0]
	s.regions = append(s.regions, memoryRegion{offset: 0, size: s.size})
}

// nextFreeOffset claims a region for size bytes. It prefers the first ready
// region large enough, then the largest ready region, and otherwise waits
// for the whole buffer to drain. The returned region may be smaller than
// requested.
func (s *StagingDevice) nextFreeOffset(size uint64) memoryRegion {
	aligned := alignSize(size, stagingAlignment)
	s.ensureSize(aligned)
	assertf(len(s.regions) > 0, "staging buffer has no regions")

	best := 0
	for i, r := range s.regions {
		if !s.gx.imm.IsReady(r.handle, false) {
			continue
		}
		if r.size >= aligned {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			if unused := r.size - aligned; unused > 0 {
				s.regions = append([]memoryRegion{{offset: r.offset + aligned, size: unused}}, s.regions...)
			}
			return memoryRegion{offset: r.offset, size: aligned}
		}
		if r.size > s.regions[best].size {
			best = i
		}
	}
	if r := s.regions[best]; s.gx.imm.IsReady(r.handle, false) {
		s.regions = append(s.regions[:best], s.regions[best+1:]...)
		return memoryRegion{offset: r.offset, size: r.size}
	}

	s.waitAndReset()
	s.regions = s.regions[:0]
	var unused uint64
	if s.size > aligned {
		unused = s.size - aligned
	}
	if unused > 0 {
		s.regions = append(s.regions, memoryRegion{offset: s.size - unused, size: unused})
	}
	return memoryRegion{offset: 0, size: s.size - unused}
}

// waitAndReset waits for every copy that used the staging buffer and makes
// the whole buffer one free region.
func (s *StagingDevice) waitAndReset() {
	for _, r := range s.regions {
		s.gx.imm.Wait(r.handle)
	}
	s.regions = s.regions[:0]
	s.regions = append(s.regions, memoryRegion{offset: 0, size: s.size})
}

// Destroy releases the staging buffer through the deferred path.
func (s *StagingDevice) Destroy() {
	if !s.buffer.Empty() {
		s.waitAndReset()
		s.gx.DestroyBuffer(s.buffer)
		s.buffer = BufferHandle{}
	}
	s.regions = nil
	s.size = 0
}
