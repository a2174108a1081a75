package gx

import (
	"math"

	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

// CommandBufferWrapper is one slot of the immediate command ring. A slot is
// free when Cmd is nil, encoding between Acquire and Submit, and pending
// from Submit until its fence is seen signaled.
type CommandBufferWrapper struct {
	cmd        native.CommandBuffer
	allocated  native.CommandBuffer
	handle     SubmitHandle
	fence      native.Fence
	semaphore  native.Semaphore
	isEncoding bool
}

func (w *CommandBufferWrapper) Cmd() native.CommandBuffer { return w.cmd }
func (w *CommandBufferWrapper) Handle() SubmitHandle      { return w.handle }

// ImmediateCommands is a fixed ring of command buffers with a fence and a
// binary semaphore each. Every submission waits on the semaphore of the one
// before it, so work reaches the queue in submission order.
type ImmediateCommands struct {
	dev     native.Device
	buffers [immediateSlots]CommandBufferWrapper

	lastSubmitSemaphore native.Semaphore
	waitSemaphore       native.Semaphore
	signalSemaphore     native.SemaphoreSubmit

	numAvailable     uint32
	submitCounter    uint32
	lastSubmitHandle SubmitHandle
	nextSubmitHandle SubmitHandle
}

func NewImmediateCommands(dev native.Device) (*ImmediateCommands, error) {
	ic := &ImmediateCommands{
		dev:           dev,
		numAvailable:  immediateSlots,
		submitCounter: 1,
	}
	for i := range ic.buffers {
		buf := &ic.buffers[i]
		var err error
		if buf.semaphore, err = dev.CreateSemaphore(); err != nil {
			ic.destroyObjects()
			return nil, errors.Wrap(err, "create immediate semaphore")
		}
		if buf.fence, err = dev.CreateFence(false); err != nil {
			ic.destroyObjects()
			return nil, errors.Wrap(err, "create immediate fence")
		}
		if buf.allocated, err = dev.AllocateCommandBuffer(); err != nil {
			ic.destroyObjects()
			return nil, errors.Wrap(err, "allocate immediate command buffer")
		}
		buf.handle.BufferIndex = uint32(i)
	}
	return ic, nil
}

// Destroy waits for every pending submission and releases the ring.
func (ic *ImmediateCommands) Destroy() {
	ic.WaitAll()
	ic.destroyObjects()
}

func (ic *ImmediateCommands) destroyObjects() {
	for i := range ic.buffers {
		buf := &ic.buffers[i]
		if buf.fence != nil {
			ic.dev.DestroyFence(buf.fence)
		}
		if buf.semaphore != nil {
			ic.dev.DestroySemaphore(buf.semaphore)
		}
		if buf.allocated != nil {
			ic.dev.FreeCommandBuffer(buf.allocated)
		}
		*buf = CommandBufferWrapper{}
	}
}

// Acquire returns a slot in the encoding state with its command buffer
// begun. When the ring is exhausted it blocks on the oldest submission.
func (ic *ImmediateCommands) Acquire() *CommandBufferWrapper {
	if ic.numAvailable == 0 {
		ic.purge()
	}
	for ic.numAvailable == 0 {
		log().Debug("waiting for an immediate command buffer")
		ic.waitOldest()
		ic.purge()
	}

	var current *CommandBufferWrapper
	for i := range ic.buffers {
		if ic.buffers[i].cmd == nil {
			current = &ic.buffers[i]
			break
		}
	}
	assertf(current != nil, "no free immediate command buffer with %d available", ic.numAvailable)

	current.handle.SubmitID = ic.submitCounter
	ic.numAvailable--
	current.cmd = current.allocated
	current.isEncoding = true
	check(current.cmd.Begin(), "begin command buffer")
	ic.nextSubmitHandle = current.handle
	return current
}

func (ic *ImmediateCommands) waitOldest() {
	var oldest *CommandBufferWrapper
	for i := range ic.buffers {
		buf := &ic.buffers[i]
		if buf.cmd == nil || buf.isEncoding {
			continue
		}
		if oldest == nil || buf.handle.SubmitID < oldest.handle.SubmitID {
			oldest = buf
		}
	}
	assertf(oldest != nil, "immediate command ring exhausted by buffers that were never submitted")
	check(ic.dev.WaitForFences([]native.Fence{oldest.fence}, math.MaxUint64), "wait for fence")
}

// WaitSemaphore makes the next submission wait on s. It is consumed by that
// submission.
func (ic *ImmediateCommands) WaitSemaphore(s native.Semaphore) {
	assertf(ic.waitSemaphore == nil, "wait semaphore already set for the next submission")
	ic.waitSemaphore = s
}

// SignalSemaphore makes the next submission signal s, a timeline semaphore,
// with value.
func (ic *ImmediateCommands) SignalSemaphore(s native.Semaphore, value uint64) {
	assertf(ic.signalSemaphore.Semaphore == nil, "signal semaphore already set for the next submission")
	ic.signalSemaphore = native.SemaphoreSubmit{Semaphore: s, Value: value, Stage: native.StageAllCommands}
}

// AcquireLastSubmitSemaphore hands the semaphore of the latest submission
// to the caller, typically a present, so the next submission no longer
// waits on it.
func (ic *ImmediateCommands) AcquireLastSubmitSemaphore() native.Semaphore {
	s := ic.lastSubmitSemaphore
	ic.lastSubmitSemaphore = nil
	return s
}

func (ic *ImmediateCommands) Submit(w *CommandBufferWrapper) SubmitHandle {
	assertf(w.isEncoding, "submit of a command buffer that is not encoding")
	check(w.cmd.End(), "end command buffer")

	info := native.SubmitInfo{Command: w.cmd, Fence: w.fence}
	if ic.waitSemaphore != nil {
		info.Waits = append(info.Waits, native.SemaphoreSubmit{Semaphore: ic.waitSemaphore, Stage: native.StageAllCommands})
	}
	if ic.lastSubmitSemaphore != nil {
		info.Waits = append(info.Waits, native.SemaphoreSubmit{Semaphore: ic.lastSubmitSemaphore, Stage: native.StageAllCommands})
	}
	info.Signals = append(info.Signals, native.SemaphoreSubmit{Semaphore: w.semaphore, Stage: native.StageAllCommands})
	if ic.signalSemaphore.Semaphore != nil {
		info.Signals = append(info.Signals, ic.signalSemaphore)
	}
	check(ic.dev.Submit(info), "queue submit")

	ic.lastSubmitSemaphore = w.semaphore
	ic.lastSubmitHandle = w.handle
	ic.waitSemaphore = nil
	ic.signalSemaphore = native.SemaphoreSubmit{}
	w.isEncoding = false

	ic.submitCounter++
	if ic.submitCounter == 0 {
		ic.submitCounter++
	}
	return ic.lastSubmitHandle
}

// IsReady reports whether the submission h has completed. With fast set it
// only checks whether the slot was recycled, without asking the driver.
func (ic *ImmediateCommands) IsReady(h SubmitHandle, fast bool) bool {
	if h.Empty() {
		return true
	}
	buf := &ic.buffers[h.BufferIndex]
	if buf.cmd == nil {
		return true
	}
	if buf.handle.SubmitID != h.SubmitID {
		return true
	}
	if fast {
		return false
	}
	ok, err := ic.dev.FenceStatus(buf.fence)
	check(err, "get fence status")
	return ok
}

// Wait blocks until h completes. The empty handle waits for the whole
// device to go idle.
func (ic *ImmediateCommands) Wait(h SubmitHandle) {
	if h.Empty() {
		check(ic.dev.WaitIdle(), "device wait idle")
		return
	}
	if ic.IsReady(h, false) {
		return
	}
	if ic.buffers[h.BufferIndex].isEncoding {
		// Waiting on work that was never submitted would never return.
		return
	}
	check(ic.dev.WaitForFences([]native.Fence{ic.buffers[h.BufferIndex].fence}, math.MaxUint64), "wait for fence")
	ic.purge()
}

func (ic *ImmediateCommands) WaitAll() {
	var fences []native.Fence
	for i := range ic.buffers {
		buf := &ic.buffers[i]
		if buf.cmd != nil && !buf.isEncoding {
			fences = append(fences, buf.fence)
		}
	}
	if len(fences) > 0 {
		check(ic.dev.WaitForFences(fences, math.MaxUint64), "wait for fences")
	}
	ic.purge()
}

// purge recycles every submitted slot whose fence is signaled, starting
// after the most recent submission.
func (ic *ImmediateCommands) purge() {
	n := uint32(len(ic.buffers))
	for i := uint32(0); i != n; i++ {
		buf := &ic.buffers[(i+ic.lastSubmitHandle.BufferIndex+1)%n]
		if buf.cmd == nil || buf.isEncoding {
			continue
		}
		done, err := ic.dev.FenceStatus(buf.fence)
		check(err, "get fence status")
		if !done {
			continue
		}
		check(buf.cmd.Reset(), "reset command buffer")
		check(ic.dev.ResetFences(buf.fence), "reset fence")
		buf.cmd = nil
		ic.numAvailable++
	}
}

func (ic *ImmediateCommands) LastSubmitHandle() SubmitHandle { return ic.lastSubmitHandle }
func (ic *ImmediateCommands) NextSubmitHandle() SubmitHandle { return ic.nextSubmitHandle }
