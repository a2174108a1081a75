package nativetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
)

func TestManualQueueRetiresOnFenceWait(t *testing.T) {
	d := New(WithManualQueue())

	src, err := d.CreateBuffer(native.BufferDesc{Size: 16, Usage: native.BufferUsageTransferSrc, Memory: native.MemoryHostVisible | native.MemoryHostCoherent})
	require.NoError(t, err)
	dst, err := d.CreateBuffer(native.BufferDesc{Size: 16, Usage: native.BufferUsageTransferDst, Memory: native.MemoryDeviceLocal})
	require.NoError(t, err)
	copy(src.Mapped(), "0123456789abcdef")

	cmd, err := d.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.Begin())
	cmd.CopyBuffer(src, dst, native.BufferCopy{Size: 16})
	require.NoError(t, cmd.End())

	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	require.NoError(t, d.Submit(native.SubmitInfo{Command: cmd, Fence: fence}))

	assert.Equal(t, 1, d.Pending())
	assert.Nil(t, dst.Mapped())
	assert.Equal(t, make([]byte, 16), dst.(*Buffer).GPUBytes())

	ok, err := d.FenceStatus(fence)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, d.WaitForFences([]native.Fence{fence}, 0), ErrTimeout)

	require.NoError(t, d.WaitForFences([]native.Fence{fence}, ^uint64(0)))
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, "0123456789abcdef", string(dst.(*Buffer).GPUBytes()))
	assert.Empty(t, d.Errors())
}

func TestNonCoherentMemoryNeedsFlush(t *testing.T) {
	d := New(WithNonCoherentMemory())
	b, err := d.CreateBuffer(native.BufferDesc{Size: 4, Memory: native.MemoryHostVisible | native.MemoryHostCoherent})
	require.NoError(t, err)
	assert.False(t, b.Coherent())

	copy(b.Mapped(), []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{0, 0, 0, 0}, b.(*Buffer).GPUBytes())
	require.NoError(t, d.FlushMapped(b, 0, native.WholeSize))
	assert.Equal(t, []byte{1, 2, 3, 4}, b.(*Buffer).GPUBytes())
}

func TestImageRoundTripTracksLayouts(t *testing.T) {
	d := New()
	img, err := d.CreateImage(native.ImageDesc{
		Type:        native.ImageType2D,
		Format:      native.FormatR8G8B8A8Unorm,
		Extent:      native.Extent3D{Width: 4, Height: 4, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     native.Samples1,
		Label:       "img",
	})
	require.NoError(t, err)
	stage, err := d.CreateBuffer(native.BufferDesc{Size: 64, Memory: native.MemoryHostVisible | native.MemoryHostCoherent})
	require.NoError(t, err)
	for i := range stage.Mapped() {
		stage.Mapped()[i] = byte(i)
	}

	full := native.SubresourceRange{Aspect: native.AspectColor, LevelCount: 1, LayerCount: 1}
	region := native.BufferImageCopy{
		Subresource: native.SubresourceLayers{Aspect: native.AspectColor, LayerCount: 1},
		Extent:      native.Extent3D{Width: 4, Height: 4, Depth: 1},
	}
	cmd, err := d.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.Begin())
	cmd.PipelineBarrier([]native.ImageBarrier{{Image: img, NewLayout: native.LayoutTransferDst, Range: full}}, nil)
	cmd.CopyBufferToImage(stage, img, native.LayoutTransferDst, region)
	cmd.PipelineBarrier([]native.ImageBarrier{{Image: img, OldLayout: native.LayoutTransferDst, NewLayout: native.LayoutTransferSrc, Range: full}}, nil)
	require.NoError(t, cmd.End())
	require.NoError(t, d.Submit(native.SubmitInfo{Command: cmd}))

	assert.Equal(t, native.LayoutTransferSrc, img.(*Image).Layout(0, 0))
	assert.Equal(t, stage.Mapped(), img.(*Image).Bytes(0, 0))
	assert.Empty(t, d.Errors())

	// A barrier from the wrong layout is reported.
	require.NoError(t, cmd.Begin())
	cmd.PipelineBarrier([]native.ImageBarrier{{Image: img, OldLayout: native.LayoutShaderReadOnly, NewLayout: native.LayoutGeneral, Range: full}}, nil)
	require.NoError(t, cmd.End())
	require.NoError(t, d.Submit(native.SubmitInfo{Command: cmd}))
	assert.Len(t, d.Errors(), 1)
}

func TestDestroyedObjectsAreReported(t *testing.T) {
	d := New()
	var destroyed []string
	d.OnDestroy = func(kind, label string) { destroyed = append(destroyed, kind+":"+label) }

	b, err := d.CreateBuffer(native.BufferDesc{Size: 4, Label: "vb"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Live("buffer"))

	cmd, err := d.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.Begin())
	cmd.UpdateBuffer(b, 0, []byte{1})
	require.NoError(t, cmd.End())

	d.DestroyBuffer(b)
	require.NoError(t, d.Submit(native.SubmitInfo{Command: cmd}))
	d.DestroyBuffer(b)

	assert.Equal(t, []string{"buffer:vb"}, destroyed)
	assert.Equal(t, 0, d.Live("buffer"))
	require.Len(t, d.Errors(), 2)
	assert.Contains(t, d.Errors()[0], "destroyed buffer")
	assert.Contains(t, d.Errors()[1], "destroyed twice")
}

func TestTimelineWaitDrainsQueue(t *testing.T) {
	d := New(WithManualQueue())
	tl, err := d.CreateTimelineSemaphore(2)
	require.NoError(t, err)
	require.NoError(t, d.WaitTimeline(tl, 2, 0))

	cmd, err := d.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.Begin())
	require.NoError(t, cmd.End())
	require.NoError(t, d.Submit(native.SubmitInfo{
		Command: cmd,
		Signals: []native.SemaphoreSubmit{{Semaphore: tl, Value: 5, Stage: native.StageAllCommands}},
	}))

	assert.ErrorIs(t, d.WaitTimeline(tl, 5, 0), ErrTimeout)
	require.NoError(t, d.WaitTimeline(tl, 5, ^uint64(0)))
	assert.Equal(t, uint64(5), tl.(*Semaphore).Value())
	assert.ErrorIs(t, d.WaitTimeline(tl, 6, ^uint64(0)), ErrDeadlock)
}

func TestSwapchainPresentChecksLayout(t *testing.T) {
	d := New(WithSurface(8, 8, 2))
	sc, err := d.CreateSwapchain(native.SwapchainDesc{Width: 8, Height: 8, Format: native.FormatB8G8R8A8Unorm})
	require.NoError(t, err)
	require.Len(t, sc.Images(), 2)

	sem, err := d.CreateSemaphore()
	require.NoError(t, err)
	idx, status, err := sc.AcquireNextImage(^uint64(0), sem)
	require.NoError(t, err)
	assert.Equal(t, native.StatusSuccess, status)
	assert.Equal(t, uint32(0), idx)

	// The acquire semaphore is consumed by the present, which then finds the
	// image still in UNDEFINED.
	_, err = sc.Present(sem, idx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, d.Presented())
	require.Len(t, d.Errors(), 1)
	assert.Contains(t, d.Errors()[0], "layout")

	d.SetAcquireStatus(native.StatusOutOfDate)
	_, status, err = sc.AcquireNextImage(^uint64(0), sem)
	require.NoError(t, err)
	assert.Equal(t, native.StatusOutOfDate, status)
}
