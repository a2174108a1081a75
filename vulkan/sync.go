package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

type fence struct {
	vk vk.Fence
}

func (f *fence) FenceHandle() uintptr { return uintptr(unsafe.Pointer(f.vk)) }

type semaphore struct {
	vk       vk.Semaphore
	timeline bool
}

func (s *semaphore) SemaphoreHandle() uintptr { return uintptr(unsafe.Pointer(s.vk)) }

// deviceError maps VK_ERROR_DEVICE_LOST to native.ErrDeviceLost so callers
// can tell it apart from other failures.
func deviceError(r vk.Result, op string) error {
	if r == vk.Success {
		return nil
	}
	if r == vk.ErrorDeviceLost {
		return errors.Wrap(native.ErrDeviceLost, op)
	}
	return errors.Wrap(vk.Error(r), op)
}

func (d *Backend) CreateFence(signaled bool) (native.Fence, error) {
	createInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	f := &fence{}
	if err := vk.Error(vk.CreateFence(d.device, &createInfo, nil, &f.vk)); err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return f, nil
}

func (d *Backend) DestroyFence(f native.Fence) {
	vk.DestroyFence(d.device, f.(*fence).vk, nil)
}

func (d *Backend) FenceStatus(f native.Fence) (bool, error) {
	switch r := vk.GetFenceStatus(d.device, f.(*fence).vk); r {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, deviceError(r, "get fence status")
	}
}

func (d *Backend) WaitForFences(fences []native.Fence, timeout uint64) error {
	if len(fences) == 0 {
		return nil
	}
	vkFences := make([]vk.Fence, len(fences))
	for i, f := range fences {
		vkFences[i] = f.(*fence).vk
	}
	r := vk.WaitForFences(d.device, uint32(len(vkFences)), vkFences, vk.True, timeout)
	if r == vk.Timeout {
		return errors.Wrap(native.ErrTimeout, "wait for fences")
	}
	return deviceError(r, "wait for fences")
}

func (d *Backend) ResetFences(fences ...native.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	vkFences := make([]vk.Fence, len(fences))
	for i, f := range fences {
		vkFences[i] = f.(*fence).vk
	}
	return deviceError(vk.ResetFences(d.device, uint32(len(vkFences)), vkFences), "reset fences")
}

func (d *Backend) CreateSemaphore() (native.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	s := &semaphore{}
	if err := vk.Error(vk.CreateSemaphore(d.device, &createInfo, nil, &s.vk)); err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return s, nil
}

func (d *Backend) CreateTimelineSemaphore(initial uint64) (native.Semaphore, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  initial,
	}
	cTypeInfo, _ := typeInfo.PassRef()
	defer typeInfo.Free()
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(cTypeInfo),
	}
	s := &semaphore{timeline: true}
	if err := vk.Error(vk.CreateSemaphore(d.device, &createInfo, nil, &s.vk)); err != nil {
		return nil, errors.Wrap(err, "create timeline semaphore")
	}
	return s, nil
}

func (d *Backend) DestroySemaphore(s native.Semaphore) {
	vk.DestroySemaphore(d.device, s.(*semaphore).vk, nil)
}

func (d *Backend) WaitTimeline(ns native.Semaphore, value uint64, timeout uint64) error {
	s := ns.(*semaphore)
	if !s.timeline {
		return errors.AssertionFailedf("wait on a binary semaphore")
	}
	waitInfo := vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    []vk.Semaphore{s.vk},
		PValues:        []uint64{value},
	}
	r := d.procs.waitTimeline(d.device, &waitInfo, timeout)
	if r == vk.Timeout {
		return errors.Wrap(native.ErrTimeout, "wait timeline semaphore")
	}
	return deviceError(r, "wait timeline semaphore")
}
