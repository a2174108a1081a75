package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

// Submit queues one command buffer. Binary and timeline semaphores can be
// mixed; values of binary semaphores are ignored by the driver.
func (d *Backend) Submit(info native.SubmitInfo) error {
	var timeline bool
	waits := make([]vk.Semaphore, len(info.Waits))
	waitStages := make([]vk.PipelineStageFlags, len(info.Waits))
	waitValues := make([]uint64, len(info.Waits))
	for i, w := range info.Waits {
		s := w.Semaphore.(*semaphore)
		timeline = timeline || s.timeline
		waits[i] = s.vk
		waitStages[i] = vk.PipelineStageFlags(w.Stage)
		waitValues[i] = w.Value
	}
	signals := make([]vk.Semaphore, len(info.Signals))
	signalValues := make([]uint64, len(info.Signals))
	for i, s := range info.Signals {
		sem := s.Semaphore.(*semaphore)
		timeline = timeline || sem.timeline
		signals[i] = sem.vk
		signalValues[i] = s.Value
	}

	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{info.Command.(*commandBuffer).vk},
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}
	if timeline {
		timelineInfo := vk.TimelineSemaphoreSubmitInfo{
			SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
			WaitSemaphoreValueCount:   uint32(len(waitValues)),
			PWaitSemaphoreValues:      waitValues,
			SignalSemaphoreValueCount: uint32(len(signalValues)),
			PSignalSemaphoreValues:    signalValues,
		}
		cTimelineInfo, _ := timelineInfo.PassRef()
		defer timelineInfo.Free()
		submit.PNext = unsafe.Pointer(cTimelineInfo)
	}

	f := vk.NullFence
	if info.Fence != nil {
		f = info.Fence.(*fence).vk
	}
	return deviceError(vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, f), "queue submit")
}

func (d *Backend) WaitIdle() error {
	return deviceError(vk.DeviceWaitIdle(d.device), "device wait idle")
}
