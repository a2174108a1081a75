package gx

// deferredTask releases a native object once the submission it was queued
// behind has completed.
type deferredTask struct {
	fn     func()
	handle SubmitHandle
}

// deferTask queues fn to run after the submission h. The empty handle means
// the submission currently being recorded, or the next one if none is.
func (g *GX) deferTask(fn func(), h SubmitHandle) {
	if h.Empty() {
		h = g.imm.NextSubmitHandle()
	}
	g.deferred = append(g.deferred, deferredTask{fn: fn, handle: h})
}

// processDeferredTasks runs queued tasks in order for as long as their
// submissions are done. It stops at the first one still in flight.
func (g *GX) processDeferredTasks() {
	n := 0
	for _, t := range g.deferred {
		if !g.imm.IsReady(t.handle, true) {
			break
		}
		t.fn()
		n++
	}
	g.deferred = g.deferred[n:]
}

// waitDeferredTasks blocks on every queued task's submission and runs them
// all.
func (g *GX) waitDeferredTasks() {
	for _, t := range g.deferred {
		g.imm.Wait(t.handle)
		t.fn()
	}
	g.deferred = nil
}

// NumDeferredTasks is the number of releases still waiting on the GPU.
func (g *GX) NumDeferredTasks() int { return len(g.deferred) }
