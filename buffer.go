package gx

import (
	"github.com/celer/gx/native"
)

// AllocatedBuffer is the record a BufferHandle resolves to.
type AllocatedBuffer struct {
	buf      native.Buffer
	size     uint64
	usage    native.BufferUsage
	memory   native.MemoryProperty
	mapped   []byte
	coherent bool
	address  uint64
	label    string
}

// BufferSpec describes a buffer to create. Storage defaults to device local
// memory. When Data is set it is uploaded right after creation.
type BufferSpec struct {
	Size      uint64
	Usage     BufferUsage
	Storage   StorageType
	Data      []byte
	DebugName string
}

func (b *AllocatedBuffer) Native() native.Buffer     { return b.buf }
func (b *AllocatedBuffer) Size() uint64              { return b.size }
func (b *AllocatedBuffer) Usage() native.BufferUsage { return b.usage }
func (b *AllocatedBuffer) Label() string             { return b.label }
func (b *AllocatedBuffer) isMapped() bool            { return b.mapped != nil }

// bufferSubData writes into a host visible buffer and flushes the range
// when the memory is not coherent. It does nothing on device local buffers.
func (b *AllocatedBuffer) bufferSubData(dev native.Device, offset uint64, data []byte) {
	if !b.isMapped() {
		return
	}
	assertf(offset+uint64(len(data)) <= b.size, "write of %d bytes at %d overflows buffer %q of %d bytes", len(data), offset, b.label, b.size)
	copy(b.mapped[offset:], data)
	if !b.coherent {
		check(dev.FlushMapped(b.buf, offset, uint64(len(data))), "flush mapped memory")
	}
}

func (b *AllocatedBuffer) getBufferSubData(dev native.Device, offset uint64, out []byte) {
	if !b.isMapped() {
		return
	}
	assertf(offset+uint64(len(out)) <= b.size, "read of %d bytes at %d overflows buffer %q of %d bytes", len(out), offset, b.label, b.size)
	if !b.coherent {
		check(dev.InvalidateMapped(b.buf, offset, uint64(len(out))), "invalidate mapped memory")
	}
	copy(out, b.mapped[offset:])
}

func bufferUsageFlags(usage BufferUsage, storage StorageType) native.BufferUsage {
	var flags native.BufferUsage
	if storage == StorageDevice {
		flags = native.BufferUsageTransferDst | native.BufferUsageTransferSrc
	}
	if usage&BufferUsageIndex != 0 {
		flags |= native.BufferUsageIndex
	}
	if usage&BufferUsageUniform != 0 {
		flags |= native.BufferUsageUniform | native.BufferUsageDeviceAddress
	}
	if usage&BufferUsageStorage != 0 {
		flags |= native.BufferUsageStorage | native.BufferUsageTransferDst | native.BufferUsageDeviceAddress
	}
	if usage&BufferUsageIndirect != 0 {
		flags |= native.BufferUsageIndirect | native.BufferUsageDeviceAddress
	}
	return flags
}

func (g *GX) createBufferImpl(size uint64, usage native.BufferUsage, memory native.MemoryProperty, label string) (AllocatedBuffer, error) {
	assertf(size > 0, "buffer %q needs a size greater than 0", label)
	buf, err := g.dev.CreateBuffer(native.BufferDesc{Size: size, Usage: usage, Memory: memory, Label: label})
	if err != nil {
		return AllocatedBuffer{}, err
	}
	b := AllocatedBuffer{
		buf:      buf,
		size:     size,
		usage:    usage,
		memory:   memory,
		mapped:   buf.Mapped(),
		coherent: buf.Coherent(),
		label:    label,
	}
	if usage&native.BufferUsageDeviceAddress != 0 {
		b.address = buf.DeviceAddress()
		assertf(b.address != 0, "buffer %q has no device address", label)
	}
	return b, nil
}

func (g *GX) createBufferHandle(size uint64, usage native.BufferUsage, memory native.MemoryProperty, label string) BufferHandle {
	b, err := g.createBufferImpl(size, usage, memory, label)
	if err != nil {
		log().Error("create buffer failed", "name", label, "err", err)
		return BufferHandle{}
	}
	return g.buffers.Create(b)
}

// CreateBuffer creates a buffer and uploads spec.Data when present. A spec
// without usage bits is rejected with a warning and an empty handle.
func (g *GX) CreateBuffer(spec BufferSpec) BufferHandle {
	usage := bufferUsageFlags(spec.Usage, spec.Storage)
	if usage == 0 {
		log().Warn("buffer spec has no usage", "name", spec.DebugName)
		return BufferHandle{}
	}
	if spec.Size == 0 {
		log().Warn("buffer spec has no size", "name", spec.DebugName)
		return BufferHandle{}
	}
	h := g.createBufferHandle(spec.Size, usage, spec.Storage.memory(), spec.DebugName)
	if h.Empty() {
		return h
	}
	if spec.Data != nil {
		g.Upload(h, spec.Data, 0)
	}
	g.awaitingCreation = true
	return h
}

// DestroyBuffer recycles the handle at once and releases the native buffer
// after the work in flight has completed.
func (g *GX) DestroyBuffer(h BufferHandle) {
	if h.Empty() {
		return
	}
	b := g.buffers.Get(h)
	if b == nil {
		log().Warn("destroy of a stale buffer handle", "buffer", h.String())
		return
	}
	buf := b.buf
	b.mapped = nil
	g.deferTask(func() { g.dev.DestroyBuffer(buf) }, SubmitHandle{})
	g.buffers.Destroy(h)
}

// Upload writes data into the buffer at offset. Host visible buffers are
// written in place, others go through the staging buffer.
func (g *GX) Upload(h BufferHandle, data []byte, offset uint64) {
	if len(data) == 0 {
		log().Warn("upload of empty data", "buffer", h.String())
		return
	}
	b := g.buffers.Get(h)
	if b == nil {
		log().Warn("upload to invalid buffer", "buffer", h.String())
		return
	}
	if offset+uint64(len(data)) > b.size {
		log().Error("buffer upload out of range", "buffer", b.label,
			bytesAttr("size", uint64(len(data))), "offset", offset, bytesAttr("capacity", b.size))
		return
	}
	g.staging.BufferSubData(b, offset, data)
}

// Download reads len(out) bytes at offset. Device local buffers are read
// back through the staging buffer and block until the copy is done.
func (g *GX) Download(h BufferHandle, out []byte, offset uint64) {
	if len(out) == 0 {
		log().Warn("download into empty slice", "buffer", h.String())
		return
	}
	b := g.buffers.Get(h)
	if b == nil {
		log().Error("download from invalid buffer", "buffer", h.String())
		return
	}
	if offset+uint64(len(out)) > b.size {
		log().Error("buffer download out of range", "buffer", b.label,
			bytesAttr("size", uint64(len(out))), "offset", offset, bytesAttr("capacity", b.size))
		return
	}
	g.staging.GetBufferSubData(b, offset, out)
}

// GPUAddress is the device address of the buffer plus offset. Only buffers
// with uniform, storage or indirect usage have one.
func (g *GX) GPUAddress(h BufferHandle, offset uint64) uint64 {
	b := g.buffers.Get(h)
	assertf(b != nil && b.address != 0, "buffer %s has no device address", h)
	return b.address + offset
}

// BufferMappedBytes is the persistent host mapping of a host visible buffer,
// nil for device local ones. Writes through it to non-coherent memory are
// not flushed; use Upload for that.
func (g *GX) BufferMappedBytes(h BufferHandle) []byte {
	if b := g.buffers.Get(h); b != nil {
		return b.mapped
	}
	return nil
}

func (g *GX) Buffer(h BufferHandle) *AllocatedBuffer { return g.buffers.Get(h) }
