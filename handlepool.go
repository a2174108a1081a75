package gx

import "math"

const listEnd = math.MaxUint32

type poolEntry[T any] struct {
	obj      T
	gen      uint32
	nextFree uint32
	live     bool
}

// HandlePool stores objects in a slice and hands out generational handles
// to them. Destroyed slots go on a free list threaded through the entries
// and are reused by later creates with a bumped generation.
//
// Pointers returned by Get stay valid until the next Create on the pool.
type HandlePool[T any] struct {
	entries    []poolEntry[T]
	freeHead   uint32
	numObjects uint32
}

func NewHandlePool[T any]() *HandlePool[T] {
	return &HandlePool[T]{freeHead: listEnd}
}

func (p *HandlePool[T]) Create(obj T) Handle[T] {
	var idx uint32
	if p.freeHead != listEnd {
		idx = p.freeHead
		e := &p.entries[idx]
		p.freeHead = e.nextFree
		e.obj = obj
		e.nextFree = listEnd
		e.live = true
	} else {
		idx = uint32(len(p.entries))
		p.entries = append(p.entries, poolEntry[T]{obj: obj, gen: 1, nextFree: listEnd, live: true})
	}
	p.numObjects++
	return Handle[T]{index: idx, gen: p.entries[idx].gen}
}

// Destroy releases the slot of h. Destroying the empty handle does nothing.
// A handle that does not name a live entry is a programming error.
func (p *HandlePool[T]) Destroy(h Handle[T]) {
	if h.Empty() {
		return
	}
	assertf(int(h.index) < len(p.entries), "handle index %d out of range %d", h.index, len(p.entries))
	e := &p.entries[h.index]
	assertf(e.gen == h.gen && e.live, "stale handle %s, slot is at generation %d", h, e.gen)

	var zero T
	e.obj = zero
	e.gen++
	e.live = false
	e.nextFree = p.freeHead
	p.freeHead = h.index
	p.numObjects--
}

func (p *HandlePool[T]) Get(h Handle[T]) *T {
	if h.Empty() || int(h.index) >= len(p.entries) {
		return nil
	}
	e := &p.entries[h.index]
	if e.gen != h.gen || !e.live {
		return nil
	}
	return &e.obj
}

// HandleAt returns the handle currently naming slot index, or the empty
// handle when index is out of range.
func (p *HandlePool[T]) HandleAt(index uint32) Handle[T] {
	if int(index) >= len(p.entries) {
		return Handle[T]{}
	}
	return Handle[T]{index: index, gen: p.entries[index].gen}
}

func (p *HandlePool[T]) Find(obj *T) Handle[T] {
	if obj == nil {
		return Handle[T]{}
	}
	for i := range p.entries {
		if &p.entries[i].obj == obj {
			return Handle[T]{index: uint32(i), gen: p.entries[i].gen}
		}
	}
	return Handle[T]{}
}

func (p *HandlePool[T]) Clear() {
	p.entries = nil
	p.freeHead = listEnd
	p.numObjects = 0
}

func (p *HandlePool[T]) NumObjects() uint32 { return p.numObjects }

// Len is the number of slots, free ones included.
func (p *HandlePool[T]) Len() int { return len(p.entries) }

func (p *HandlePool[T]) Each(fn func(Handle[T], *T)) {
	for i := range p.entries {
		e := &p.entries[i]
		if e.live {
			fn(Handle[T]{index: uint32(i), gen: e.gen}, &e.obj)
		}
	}
}

// slot returns the object stored at index whether or not it is live. Freed
// slots hold the zero value.
func (p *HandlePool[T]) slot(index int) *T {
	return &p.entries[index].obj
}
