package gx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native/nativetest"
)

func newTestImmediate(t *testing.T, opts ...nativetest.Option) (*ImmediateCommands, *nativetest.Device) {
	t.Helper()
	dev := nativetest.New(opts...)
	ic, err := NewImmediateCommands(dev)
	require.NoError(t, err)
	t.Cleanup(func() {
		ic.Destroy()
		assert.Equal(t, 0, dev.Live("fence"))
		assert.Equal(t, 0, dev.Live("command buffer"))
		assert.Empty(t, dev.Errors())
	})
	return ic, dev
}

func TestImmediateSubmitHandles(t *testing.T) {
	ic, _ := newTestImmediate(t)

	w := ic.Acquire()
	assert.Equal(t, SubmitHandle{BufferIndex: 0, SubmitID: 1}, w.Handle())
	assert.Equal(t, w.Handle(), ic.NextSubmitHandle())
	h := ic.Submit(w)
	assert.Equal(t, h, ic.LastSubmitHandle())

	w = ic.Acquire()
	assert.Equal(t, SubmitHandle{BufferIndex: 1, SubmitID: 2}, w.Handle())
	h2 := ic.Submit(w)

	// The queue retires right away, but the slot is only recycled once the
	// ring notices.
	assert.True(t, ic.IsReady(h, false))
	assert.False(t, ic.IsReady(h, true))
	ic.WaitAll()
	assert.True(t, ic.IsReady(h, true))
	assert.True(t, ic.IsReady(h2, true))
	assert.True(t, ic.IsReady(SubmitHandle{}, true))
}

func TestImmediateWaitRetiresSubmission(t *testing.T) {
	ic, dev := newTestImmediate(t, nativetest.WithManualQueue())

	h1 := ic.Submit(ic.Acquire())
	h2 := ic.Submit(ic.Acquire())
	assert.Equal(t, 2, dev.Pending())
	assert.False(t, ic.IsReady(h1, false))

	ic.Wait(h1)
	assert.True(t, ic.IsReady(h1, true))
	assert.False(t, ic.IsReady(h2, false))
	assert.Equal(t, 1, dev.Pending())

	ic.Wait(SubmitHandle{})
	assert.Equal(t, 0, dev.Pending())
	assert.True(t, ic.IsReady(h2, false))
}

func TestImmediateRingExhaustion(t *testing.T) {
	ic, dev := newTestImmediate(t, nativetest.WithManualQueue())

	first := ic.Submit(ic.Acquire())
	for i := 1; i < immediateSlots; i++ {
		ic.Submit(ic.Acquire())
	}
	assert.Equal(t, immediateSlots, dev.Pending())

	// The ring is full, so acquiring blocks on the oldest submission and
	// reuses its slot.
	w := ic.Acquire()
	assert.Equal(t, first.BufferIndex, w.Handle().BufferIndex)
	assert.Equal(t, uint32(immediateSlots+1), w.Handle().SubmitID)
	assert.Equal(t, immediateSlots-1, dev.Pending())
	assert.True(t, ic.IsReady(first, true))
	ic.Submit(w)
}

func TestImmediateSemaphores(t *testing.T) {
	ic, dev := newTestImmediate(t)

	sem, err := dev.CreateSemaphore()
	require.NoError(t, err)
	timeline, err := dev.CreateTimelineSemaphore(0)
	require.NoError(t, err)
	defer dev.DestroySemaphore(sem)
	defer dev.DestroySemaphore(timeline)

	// A timeline value is signaled by the submission it was attached to.
	w := ic.Acquire()
	ic.SignalSemaphore(timeline, 1)
	assert.Panics(t, func() { ic.SignalSemaphore(timeline, 2) })
	ic.Submit(w)
	require.NoError(t, dev.WaitTimeline(timeline, 1, 0))

	// The semaphore of the last submission is handed out once and can be
	// waited on by a later submission.
	last := ic.AcquireLastSubmitSemaphore()
	assert.NotNil(t, last)
	assert.Nil(t, ic.AcquireLastSubmitSemaphore())

	ic.WaitSemaphore(last)
	assert.Panics(t, func() { ic.WaitSemaphore(sem) })
	ic.Submit(ic.Acquire())
}
