package nativetest

import (
	"github.com/celer/gx/native"
)

type object struct {
	id        uintptr
	kind      string
	label     string
	destroyed bool
}

func (o *object) ID() uintptr     { return o.id }
func (o *object) Destroyed() bool { return o.destroyed }
func (o *object) Label() string   { return o.label }
func (o *object) base() *object   { return o }

type tracked interface {
	base() *object
}

// Buffer keeps two copies of host visible memory when the device simulates
// non-coherent memory: host is what Mapped returns, gpu is what commands
// read and write. FlushMapped and InvalidateMapped move bytes between them.
type Buffer struct {
	object
	desc     native.BufferDesc
	host     []byte
	gpu      []byte
	coherent bool
	address  uint64
}

func (b *Buffer) BufferHandle() uintptr { return b.id }
func (b *Buffer) Size() uint64          { return b.desc.Size }
func (b *Buffer) Usage() native.BufferUsage {
	return b.desc.Usage
}

func (b *Buffer) Mapped() []byte {
	if b.desc.Memory&native.MemoryHostVisible == 0 {
		return nil
	}
	return b.host
}

func (b *Buffer) Coherent() bool        { return b.coherent }
func (b *Buffer) DeviceAddress() uint64 { return b.address }

// GPUBytes is the device side view of the buffer contents.
func (b *Buffer) GPUBytes() []byte { return b.gpu }

type subresource struct {
	mip, layer, plane uint32
}

type Image struct {
	object
	desc    native.ImageDesc
	data    map[subresource][]byte
	layouts map[subresource]native.Layout
}

func (i *Image) ImageHandle() uintptr   { return i.id }
func (i *Image) Desc() native.ImageDesc { return i.desc }

func (i *Image) mipExtent(mip uint32) native.Extent3D {
	return native.Extent3D{
		Width:  max(i.desc.Extent.Width>>mip, 1),
		Height: max(i.desc.Extent.Height>>mip, 1),
		Depth:  max(i.desc.Extent.Depth>>mip, 1),
	}
}

func planeIndex(aspect native.ImageAspect) uint32 {
	switch {
	case aspect&native.AspectPlane1 != 0:
		return 1
	case aspect&native.AspectPlane2 != 0:
		return 2
	}
	return 0
}

func (i *Image) planeSize(mip, plane uint32) int {
	f := i.desc.Format
	if f.NumPlanes() > 1 {
		return int(f.BytesPerPlane(i.desc.Extent.Width, i.desc.Extent.Height, plane))
	}
	return int(f.BytesPerLayer(i.desc.Extent.Width, i.desc.Extent.Height, mip)) * int(i.mipExtent(mip).Depth)
}

func (i *Image) storage(mip, layer, plane uint32) []byte {
	key := subresource{mip, layer, plane}
	buf, ok := i.data[key]
	if !ok {
		buf = make([]byte, i.planeSize(mip, plane))
		i.data[key] = buf
	}
	return buf
}

// Bytes returns the tightly packed texels of one subresource.
func (i *Image) Bytes(mip, layer uint32) []byte {
	return i.storage(mip, layer, 0)
}

// Layout is the layout the simulated queue last transitioned the
// subresource to.
func (i *Image) Layout(mip, layer uint32) native.Layout {
	return i.layouts[subresource{mip: mip, layer: layer}]
}

type ImageView struct {
	object
	image *Image
	desc  native.ImageViewDesc
}

func (v *ImageView) ImageViewHandle() uintptr { return v.id }
func (v *ImageView) Image() *Image            { return v.image }

type Sampler struct {
	object
	Desc native.SamplerDesc
}

func (s *Sampler) SamplerHandle() uintptr { return s.id }

type ShaderModule struct {
	object
	Code []byte
}

func (s *ShaderModule) ShaderModuleHandle() uintptr { return s.id }

type DescriptorSetLayout struct {
	object
	Desc native.DescriptorSetLayoutDesc
}

func (l *DescriptorSetLayout) DescriptorSetLayoutHandle() uintptr { return l.id }

func (l *DescriptorSetLayout) binding(n uint32) (native.DescriptorSetLayoutBinding, bool) {
	for _, b := range l.Desc.Bindings {
		if b.Binding == n {
			return b, true
		}
	}
	return native.DescriptorSetLayoutBinding{}, false
}

type DescriptorPool struct {
	object
	Desc      native.DescriptorPoolDesc
	allocated uint32
}

func (p *DescriptorPool) DescriptorPoolHandle() uintptr { return p.id }

type DescriptorSet struct {
	object
	pool    *DescriptorPool
	layout  *DescriptorSetLayout
	images  map[uint32][]native.DescriptorImageInfo
	buffers map[uint32][]native.DescriptorBufferInfo
}

func (s *DescriptorSet) DescriptorSetHandle() uintptr { return s.id }
func (s *DescriptorSet) Layout() *DescriptorSetLayout { return s.layout }

// Images returns the image descriptors written to a binding, indexed by
// array element.
func (s *DescriptorSet) Images(binding uint32) []native.DescriptorImageInfo {
	return s.images[binding]
}

func (s *DescriptorSet) Buffers(binding uint32) []native.DescriptorBufferInfo {
	return s.buffers[binding]
}

type PipelineLayout struct {
	object
	Desc native.PipelineLayoutDesc
}

func (l *PipelineLayout) PipelineLayoutHandle() uintptr { return l.id }

type Pipeline struct {
	object
	Desc native.GraphicsPipelineDesc
}

func (p *Pipeline) PipelineHandle() uintptr { return p.id }

type Fence struct {
	object
	signaled bool
}

func (f *Fence) FenceHandle() uintptr { return f.id }

type Semaphore struct {
	object
	timeline bool
	value    uint64
	signaled bool
}

func (s *Semaphore) SemaphoreHandle() uintptr { return s.id }

// Value is the current payload of a timeline semaphore.
func (s *Semaphore) Value() uint64 { return s.value }
