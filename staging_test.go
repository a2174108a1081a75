package gx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native/nativetest"
)

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7) ^ seed
	}
	return b
}

func TestStagingBufferRoundTrip(t *testing.T) {
	g, _ := newTestGX(t)
	data := pattern(1000, 0x5a)
	h := g.CreateBuffer(BufferSpec{Size: 1024, Usage: BufferUsageStorage, Data: data, DebugName: "device buffer"})
	require.True(t, h.Valid())
	assert.Nil(t, g.BufferMappedBytes(h))

	out := make([]byte, 1000)
	g.Download(h, out, 0)
	assert.Equal(t, data, out)

	// Partial write at an offset.
	g.Upload(h, []byte{1, 2, 3, 4}, 500)
	part := make([]byte, 8)
	g.Download(h, part, 498)
	assert.Equal(t, []byte{data[498], data[499], 1, 2, 3, 4, data[504], data[505]}, part)
}

func TestStagingChunksLargeUploads(t *testing.T) {
	dev := nativetest.New()
	cfg := DefaultConfig()
	cfg.StagingMinSize = "64KB"
	cfg.StagingMaxSize = "256KB"
	g, err := New(dev, cfg)
	require.NoError(t, err)
	defer g.Destroy()
	assert.Equal(t, uint64(256<<10), g.Staging().MaxSize())

	data := pattern(600<<10, 0x11)
	h := g.CreateBuffer(BufferSpec{Size: uint64(len(data)), Usage: BufferUsageStorage, DebugName: "large"})
	before := dev.Stats().BufferCopies
	g.Upload(h, data, 0)
	assert.GreaterOrEqual(t, dev.Stats().BufferCopies-before, 3)
	assert.Equal(t, uint64(256<<10), g.Staging().Size())

	out := make([]byte, len(data))
	g.Download(h, out, 0)
	assert.Equal(t, data, out)
	assert.Empty(t, dev.Errors())
}

func TestStagingInFlightRegionsDoNotOverlap(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithManualQueue())
	a := g.CreateBuffer(BufferSpec{Size: 4096, Usage: BufferUsageStorage, DebugName: "a"})
	b := g.CreateBuffer(BufferSpec{Size: 4096, Usage: BufferUsageStorage, DebugName: "b"})

	da, db := pattern(4096, 1), pattern(4096, 2)
	g.Upload(a, da, 0)
	g.Upload(b, db, 0)
	// Both copies are still queued, so each must have read its own part
	// of the staging buffer.
	assert.Positive(t, dev.Pending())

	out := make([]byte, 4096)
	g.Download(a, out, 0)
	assert.Equal(t, da, out)
	g.Download(b, out, 0)
	assert.Equal(t, db, out)
}

func TestHostVisibleBuffersSkipStaging(t *testing.T) {
	g, dev := newTestGX(t, nativetest.WithNonCoherentMemory())
	h := g.CreateBuffer(BufferSpec{Size: 64, Usage: BufferUsageUniform, Storage: StorageHostVisible, DebugName: "mapped"})
	require.NotNil(t, g.BufferMappedBytes(h))

	copies := dev.Stats().BufferCopies
	flushes := dev.Stats().Flushes
	g.Upload(h, pattern(64, 3), 0)
	assert.Equal(t, copies, dev.Stats().BufferCopies)
	assert.Equal(t, flushes+1, dev.Stats().Flushes)

	out := make([]byte, 64)
	g.Download(h, out, 0)
	assert.Equal(t, pattern(64, 3), out)
	assert.Positive(t, dev.Stats().Invalidates)
}

func TestUploadOutOfRangeIsRejected(t *testing.T) {
	logs := captureLog(t)
	g, dev := newTestGX(t)
	h := g.CreateBuffer(BufferSpec{Size: 16, Usage: BufferUsageStorage, DebugName: "small"})
	copies := dev.Stats().BufferCopies
	g.Upload(h, make([]byte, 32), 0)
	assert.Equal(t, copies, dev.Stats().BufferCopies)
	assert.Contains(t, logs.String(), "buffer upload out of range")
}

func TestAlignSize(t *testing.T) {
	assert.Equal(t, uint64(0), alignSize(0, 16))
	assert.Equal(t, uint64(16), alignSize(1, 16))
	assert.Equal(t, uint64(16), alignSize(16, 16))
	assert.Equal(t, uint64(32), alignSize(17, 16))
}
