package gx

import "fmt"

// SubmitHandle names one submission of the immediate command ring: the ring
// slot it used and the submission counter at the time. A zero SubmitID is
// the empty handle, which is always considered complete.
type SubmitHandle struct {
	BufferIndex uint32
	SubmitID    uint32
}

func SubmitHandleFromUint64(v uint64) SubmitHandle {
	return SubmitHandle{BufferIndex: uint32(v & 0xffffffff), SubmitID: uint32(v >> 32)}
}

func (h SubmitHandle) Empty() bool { return h.SubmitID == 0 }

func (h SubmitHandle) Uint64() uint64 {
	return uint64(h.SubmitID)<<32 | uint64(h.BufferIndex)
}

func (h SubmitHandle) String() string {
	return fmt.Sprintf("submit(%d@%d)", h.SubmitID, h.BufferIndex)
}
