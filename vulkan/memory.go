package vulkan

import (
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

const memoryBlockSize = 64 * units.MiB

// memoryBlock is one vkDeviceMemory allocation. Host visible blocks stay
// mapped for their whole life.
type memoryBlock struct {
	memory    vk.DeviceMemory
	typeIndex uint32
	size      uint64
	mapped    unsafe.Pointer
	coherent  bool
	dedicated bool
	allocator FirstFitAllocator
}

// memoryRange is a sub-allocation of a block.
type memoryRange struct {
	block *memoryBlock
	alloc *Allocation
}

func (r memoryRange) offset() uint64 { return r.alloc.Offset }

// bytes is the mapped view of the range, nil for device local memory.
func (r memoryRange) bytes() []byte {
	if r.block.mapped == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(r.block.mapped, r.alloc.Offset)), r.alloc.Size)
}

// memoryAllocator sub-allocates resources from blocks of memoryBlockSize,
// one list per memory type. Requests above half a block get a dedicated
// allocation.
type memoryAllocator struct {
	device   vk.Device
	physical *physicalDevice
	blocks   map[uint32][]*memoryBlock
}

func newMemoryAllocator(device vk.Device, physical *physicalDevice) *memoryAllocator {
	return &memoryAllocator{
		device:   device,
		physical: physical,
		blocks:   make(map[uint32][]*memoryBlock),
	}
}

func memoryPropertyFlags(p native.MemoryProperty) vk.MemoryPropertyFlags {
	return vk.MemoryPropertyFlags(p)
}

func (m *memoryAllocator) allocate(req vk.MemoryRequirements, props native.MemoryProperty) (memoryRange, error) {
	typeIndex, ok := m.physical.findMemoryType(req.MemoryTypeBits, memoryPropertyFlags(props))
	if !ok && props&native.MemoryLazilyAllocated != 0 {
		// Lazily allocated memory is optional, plain device memory will do.
		typeIndex, ok = m.physical.findMemoryType(req.MemoryTypeBits, memoryPropertyFlags(props&^native.MemoryLazilyAllocated))
	}
	if !ok {
		return memoryRange{}, errors.Newf("no memory type for properties %#x", uint32(props))
	}
	size, align := uint64(req.Size), uint64(req.Alignment)

	if size > memoryBlockSize/2 {
		b, err := m.newBlock(typeIndex, size, true)
		if err != nil {
			return memoryRange{}, err
		}
		return memoryRange{block: b, alloc: b.allocator.Allocate(size, 1)}, nil
	}

	for _, b := range m.blocks[typeIndex] {
		if a := b.allocator.Allocate(size, align); a != nil {
			return memoryRange{block: b, alloc: a}, nil
		}
	}
	b, err := m.newBlock(typeIndex, memoryBlockSize, false)
	if err != nil {
		return memoryRange{}, err
	}
	m.blocks[typeIndex] = append(m.blocks[typeIndex], b)
	return memoryRange{block: b, alloc: b.allocator.Allocate(size, align)}, nil
}

func (m *memoryAllocator) newBlock(typeIndex uint32, size uint64, dedicated bool) (*memoryBlock, error) {
	// Every block can back buffers that are read through their device
	// address.
	flagsInfo := vk.MemoryAllocateFlagsInfo{
		SType: vk.StructureTypeMemoryAllocateFlagsInfo,
		Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
	}
	cFlagsInfo, _ := flagsInfo.PassRef()
	defer flagsInfo.Free()
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           unsafe.Pointer(cFlagsInfo),
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}
	b := &memoryBlock{typeIndex: typeIndex, size: size, dedicated: dedicated}
	b.allocator.Size = size
	if err := vk.Error(vk.AllocateMemory(m.device, &allocInfo, nil, &b.memory)); err != nil {
		return nil, errors.Wrapf(err, "allocate %s of device memory", units.BytesSize(float64(size)))
	}

	flags := m.physical.memoryFlags(typeIndex)
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		var ptr unsafe.Pointer
		if err := vk.Error(vk.MapMemory(m.device, b.memory, 0, vk.DeviceSize(vk.WholeSize), 0, &ptr)); err != nil {
			vk.FreeMemory(m.device, b.memory, nil)
			return nil, errors.Wrap(err, "map device memory")
		}
		b.mapped = ptr
		b.coherent = flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0
	}
	log().Debug("memory block allocated",
		slog.Uint64("type", uint64(typeIndex)),
		slog.String("size", units.BytesSize(float64(size))),
		slog.Bool("dedicated", dedicated),
		slog.Bool("mapped", b.mapped != nil))
	return b, nil
}

func (m *memoryAllocator) free(r memoryRange) {
	if r.block == nil {
		return
	}
	r.block.allocator.Free(r.alloc)
	if r.block.dedicated {
		m.freeBlock(r.block)
	}
}

func (m *memoryAllocator) freeBlock(b *memoryBlock) {
	if b.mapped != nil {
		vk.UnmapMemory(m.device, b.memory)
		b.mapped = nil
	}
	vk.FreeMemory(m.device, b.memory, nil)
}

// mappedRange expands [offset, offset+size) of r to the non-coherent atom
// size, clamped to the block.
func (m *memoryAllocator) mappedRange(r memoryRange, offset, size uint64) vk.MappedMemoryRange {
	atom := uint64(m.physical.properties.Limits.NonCoherentAtomSize)
	if atom == 0 {
		atom = 1
	}
	start := r.alloc.Offset + offset
	if size == native.WholeSize || offset+size > r.alloc.Size {
		size = r.alloc.Size - offset
	}
	end := alignUp(start+size, atom)
	start -= start % atom
	if end > r.block.size {
		end = r.block.size
	}
	return vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: r.block.memory,
		Offset: vk.DeviceSize(start),
		Size:   vk.DeviceSize(end - start),
	}
}

func (m *memoryAllocator) flush(r memoryRange, offset, size uint64) error {
	if r.block.coherent || r.block.mapped == nil {
		return nil
	}
	rng := []vk.MappedMemoryRange{m.mappedRange(r, offset, size)}
	return errors.Wrap(vk.Error(vk.FlushMappedMemoryRanges(m.device, 1, rng)), "flush mapped memory")
}

func (m *memoryAllocator) invalidate(r memoryRange, offset, size uint64) error {
	if r.block.coherent || r.block.mapped == nil {
		return nil
	}
	rng := []vk.MappedMemoryRange{m.mappedRange(r, offset, size)}
	return errors.Wrap(vk.Error(vk.InvalidateMappedMemoryRanges(m.device, 1, rng)), "invalidate mapped memory")
}

// destroy frees every shared block. Blocks that still hold allocations are
// reported, since their resources were leaked.
func (m *memoryAllocator) destroy() {
	for typeIndex, blocks := range m.blocks {
		for _, b := range blocks {
			if !b.allocator.Empty() {
				log().Error("memory block still in use at shutdown",
					slog.Uint64("type", uint64(typeIndex)),
					slog.String("used", units.BytesSize(float64(b.allocator.Used()))))
			}
			m.freeBlock(b)
		}
	}
	m.blocks = nil
}
