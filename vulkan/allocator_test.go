package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	assert.Equal(t, uint64(12), alignUp(12, 3))
	assert.Equal(t, uint64(12), alignUp(10, 3))
	assert.Equal(t, uint64(7), alignUp(7, 1))
	assert.Equal(t, uint64(256), alignUp(1, 256))
}

func TestAllocator(t *testing.T) {
	a := FirstFitAllocator{Size: 1024}

	assert.Nil(t, a.Allocate(2048, 1))

	fa := a.Allocate(512, 1)
	require.NotNil(t, fa)
	assert.Equal(t, uint64(0), fa.Offset)

	assert.Nil(t, a.Allocate(768, 1))

	k := a.Allocate(500, 1)
	require.NotNil(t, k)
	assert.Equal(t, uint64(512), k.Offset)

	assert.Nil(t, a.Allocate(50, 1))
	require.NotNil(t, a.Allocate(5, 1))
	assert.Nil(t, a.Allocate(20, 1))

	a.Free(k)
	again := a.Allocate(500, 1)
	require.NotNil(t, again)
	assert.Equal(t, uint64(512), again.Offset, "reuses the freed gap")

	a.Free(fa)
	for _, size := range []uint64{20, 40, 12} {
		assert.NotNil(t, a.Allocate(size, 1), "size %d", size)
	}
	assert.Nil(t, a.Allocate(500, 1))
	assert.NotNil(t, a.Allocate(5, 1))
	assert.Equal(t, uint64(20+40+12+5+500+5), a.Used())
}

func TestAllocatorAlignment(t *testing.T) {
	a := FirstFitAllocator{Size: 4096}
	first := a.Allocate(10, 1)
	require.NotNil(t, first)

	aligned := a.Allocate(100, 256)
	require.NotNil(t, aligned)
	assert.Equal(t, uint64(256), aligned.Offset)

	// The padding in front of the aligned block is still usable.
	small := a.Allocate(16, 16)
	require.NotNil(t, small)
	assert.Equal(t, uint64(16), small.Offset)

	assert.Nil(t, a.Allocate(4096-356, 256), "tail does not fit once aligned")
}

func TestAllocatorFreeUnknown(t *testing.T) {
	a := FirstFitAllocator{Size: 64}
	x := a.Allocate(32, 1)
	require.NotNil(t, x)
	a.Free(&Allocation{Offset: 0, Size: 32})
	assert.False(t, a.Empty())
	a.Free(x)
	assert.True(t, a.Empty())
	assert.Zero(t, a.Used())
}
