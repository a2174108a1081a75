package gx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObject struct {
	name string
}

func TestHandlePoolCreateGetDestroy(t *testing.T) {
	p := NewHandlePool[testObject]()
	a := p.Create(testObject{"a"})
	b := p.Create(testObject{"b"})

	require.True(t, a.Valid())
	assert.Equal(t, uint32(0), a.Index())
	assert.Equal(t, uint32(1), b.Index())
	assert.Equal(t, "a", p.Get(a).name)
	assert.Equal(t, "b", p.Get(b).name)
	assert.Equal(t, uint32(2), p.NumObjects())

	p.Destroy(a)
	assert.Nil(t, p.Get(a))
	assert.Equal(t, uint32(1), p.NumObjects())
	assert.Equal(t, 2, p.Len())

	// The freed slot is reused with a new generation, so the old handle
	// stays dead.
	c := p.Create(testObject{"c"})
	assert.Equal(t, a.Index(), c.Index())
	assert.Equal(t, a.Gen()+1, c.Gen())
	assert.Nil(t, p.Get(a))
	assert.Equal(t, "c", p.Get(c).name)
	assert.Equal(t, c, p.HandleAt(c.Index()))
	assert.Equal(t, c, p.Find(p.Get(c)))
}

func TestHandlePoolEmptyHandle(t *testing.T) {
	p := NewHandlePool[testObject]()
	var h Handle[testObject]
	assert.True(t, h.Empty())
	assert.Nil(t, p.Get(h))
	assert.NotPanics(t, func() { p.Destroy(h) })
	assert.Equal(t, "handle(empty)", h.String())
	assert.True(t, p.HandleAt(3).Empty())
	assert.True(t, p.Find(nil).Empty())
}

func TestHandlePoolDestroyStalePanics(t *testing.T) {
	p := NewHandlePool[testObject]()
	h := p.Create(testObject{})
	p.Destroy(h)
	assert.Panics(t, func() { p.Destroy(h) })
	assert.Panics(t, func() { p.Destroy(Handle[testObject]{index: 7, gen: 1}) })
}

func TestHandlePoolFreeListOrder(t *testing.T) {
	p := NewHandlePool[testObject]()
	hs := []Handle[testObject]{
		p.Create(testObject{}),
		p.Create(testObject{}),
		p.Create(testObject{}),
	}
	p.Destroy(hs[0])
	p.Destroy(hs[2])

	// Most recently freed first.
	assert.Equal(t, uint32(2), p.Create(testObject{}).Index())
	assert.Equal(t, uint32(0), p.Create(testObject{}).Index())
	assert.Equal(t, uint32(3), p.Create(testObject{}).Index())
}

func TestHandlePoolEach(t *testing.T) {
	p := NewHandlePool[testObject]()
	a := p.Create(testObject{"a"})
	b := p.Create(testObject{"b"})
	p.Create(testObject{"c"})
	p.Destroy(b)

	var seen []string
	p.Each(func(h Handle[testObject], o *testObject) {
		seen = append(seen, o.name)
		p.Destroy(h)
	})
	assert.Equal(t, []string{"a", "c"}, seen)
	assert.Equal(t, uint32(0), p.NumObjects())
	assert.Nil(t, p.Get(a))
	assert.Equal(t, testObject{}, *p.slot(int(a.Index())))

	p.Clear()
	assert.Equal(t, 0, p.Len())
}

func TestHandleUint64(t *testing.T) {
	h := Handle[testObject]{index: 5, gen: 9}
	assert.Equal(t, uint64(9)<<32|5, h.Uint64())
	assert.Equal(t, "handle(5:9)", h.String())

	s := SubmitHandle{BufferIndex: 3, SubmitID: 42}
	assert.Equal(t, s, SubmitHandleFromUint64(s.Uint64()))
	assert.True(t, SubmitHandle{BufferIndex: 3}.Empty())
}
