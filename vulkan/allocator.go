package vulkan

import (
	"fmt"
	"sort"
)

// Allocation is a range of a memory block.
type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// FirstFitAllocator hands out ranges of a fixed size block. It keeps the
// live allocations sorted by offset and places new ones in the first gap
// that fits.
type FirstFitAllocator struct {
	Size   uint64
	allocs []*Allocation
	used   uint64
}

func alignUp(a, align uint64) uint64 {
	if align <= 1 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return a - m + align
}

// Allocate returns nil when no gap of size bytes at the requested alignment
// is left.
func (p *FirstFitAllocator) Allocate(size, align uint64) *Allocation {
	if size == 0 || size > p.Size-p.used {
		return nil
	}
	var start uint64
	for i, c := range p.allocs {
		l := alignUp(start, align)
		if l <= c.Offset && c.Offset-l >= size {
			return p.insert(i, l, size)
		}
		start = c.Offset + c.Size
	}
	l := alignUp(start, align)
	if l > p.Size || p.Size-l < size {
		return nil
	}
	return p.insert(len(p.allocs), l, size)
}

func (p *FirstFitAllocator) insert(i int, offset, size uint64) *Allocation {
	na := &Allocation{Offset: offset, Size: size}
	p.allocs = append(p.allocs, nil)
	copy(p.allocs[i+1:], p.allocs[i:])
	p.allocs[i] = na
	p.used += size
	return na
}

// Free releases a. Freeing an allocation that did not come from p is a no-op.
func (p *FirstFitAllocator) Free(a *Allocation) {
	i := sort.Search(len(p.allocs), func(i int) bool { return p.allocs[i].Offset >= a.Offset })
	if i < len(p.allocs) && p.allocs[i] == a {
		p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
		p.used -= a.Size
	}
}

// Used is the number of bytes handed out, alignment padding excluded.
func (p *FirstFitAllocator) Used() uint64 { return p.used }

func (p *FirstFitAllocator) Empty() bool { return len(p.allocs) == 0 }

func (p *FirstFitAllocator) String() string {
	return fmt.Sprintf("%v", p.allocs)
}
