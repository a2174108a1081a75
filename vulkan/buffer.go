package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

type buffer struct {
	vk      vk.Buffer
	size    uint64
	memory  memoryRange
	address uint64
	label   string
}

func (b *buffer) BufferHandle() uintptr { return uintptr(unsafe.Pointer(b.vk)) }
func (b *buffer) Size() uint64          { return b.size }
func (b *buffer) Mapped() []byte        { return b.memory.bytes() }
func (b *buffer) Coherent() bool        { return b.memory.block.coherent }
func (b *buffer) DeviceAddress() uint64 { return b.address }

func (d *Backend) CreateBuffer(desc native.BufferDesc) (native.Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	b := &buffer{size: desc.Size, label: desc.Label}
	if err := vk.Error(vk.CreateBuffer(d.device, &createInfo, nil, &b.vk)); err != nil {
		return nil, errors.Wrapf(err, "create buffer %q", desc.Label)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.vk, &req)
	req.Deref()
	mem, err := d.memory.allocate(req, desc.Memory)
	if err != nil {
		vk.DestroyBuffer(d.device, b.vk, nil)
		return nil, errors.Wrapf(err, "allocate memory for buffer %q", desc.Label)
	}
	b.memory = mem
	if err := vk.Error(vk.BindBufferMemory(d.device, b.vk, mem.block.memory, vk.DeviceSize(mem.offset()))); err != nil {
		d.memory.free(mem)
		vk.DestroyBuffer(d.device, b.vk, nil)
		return nil, errors.Wrapf(err, "bind memory for buffer %q", desc.Label)
	}

	if desc.Usage&native.BufferUsageDeviceAddress != 0 {
		info := vk.BufferDeviceAddressInfo{
			SType:  vk.StructureTypeBufferDeviceAddressInfo,
			Buffer: b.vk,
		}
		b.address = d.procs.bufferAddress(d.device, &info)
	}
	return b, nil
}

func (d *Backend) DestroyBuffer(nb native.Buffer) {
	b := nb.(*buffer)
	vk.DestroyBuffer(d.device, b.vk, nil)
	d.memory.free(b.memory)
}

func (d *Backend) FlushMapped(nb native.Buffer, offset, size uint64) error {
	b := nb.(*buffer)
	return d.memory.flush(b.memory, offset, size)
}

func (d *Backend) InvalidateMapped(nb native.Buffer, offset, size uint64) error {
	b := nb.(*buffer)
	return d.memory.invalidate(b.memory, offset, size)
}
