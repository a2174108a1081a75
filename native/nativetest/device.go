// Package nativetest provides an in-memory native.Device.
//
// Commands recorded into its command buffers are executed on the CPU when
// the simulated queue retires the submission. By default every submission
// retires as soon as it is submitted. WithManualQueue leaves submissions
// pending until the test calls Retire, or until the code under test blocks
// on a fence, a timeline value or WaitIdle, which is how a real queue
// behaves from the host's point of view.
//
// Misuse that a validation layer would report, such as a layout mismatch in
// a barrier or a descriptor pointing at a destroyed view, is collected and
// returned by Errors instead of panicking.
package nativetest

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

var (
	ErrTimeout  = native.ErrTimeout
	ErrDeadlock = errors.New("nativetest: waiting on work that was never submitted")
)

// Stats counts driver level activity.
type Stats struct {
	Submits            int
	Presents           int
	Draws              int
	Blits              int
	BufferCopies       int
	BufferImageCopies  int
	ImageBufferCopies  int
	BufferUpdates      int
	Barriers           int
	Flushes            int
	Invalidates        int
	DescriptorUpdates  int
	PipelinesCreated   int
	PipelinesDestroyed int
	RenderPasses       int
}

type submission struct {
	ops     []func()
	cmd     *CommandBuffer
	waits   []native.SemaphoreSubmit
	signals []native.SemaphoreSubmit
	fence   *Fence
	present *presentOp
}

type Option func(*Device)

// WithManualQueue keeps submissions pending until they are retired.
func WithManualQueue() Option {
	return func(d *Device) { d.manual = true }
}

func WithLimits(l native.Limits) Option {
	return func(d *Device) { d.props.Limits = l }
}

// WithNonCoherentMemory makes every host visible buffer non-coherent.
func WithNonCoherentMemory() Option {
	return func(d *Device) { d.nonCoherent = true }
}

// WithSurface gives the device a presentable surface of the given size.
func WithSurface(width, height, images uint32) Option {
	return func(d *Device) {
		d.surface = true
		d.surfaceExtent = native.Extent2D{Width: width, Height: height}
		d.swapchainImages = images
	}
}

func WithFormatFeatures(f native.Format, features native.FormatFeature) Option {
	return func(d *Device) { d.features[f] = features }
}

type Device struct {
	mu sync.Mutex

	props           native.Properties
	manual          bool
	nonCoherent     bool
	surface         bool
	surfaceExtent   native.Extent2D
	swapchainImages uint32
	features        map[native.Format]native.FormatFeature

	nextID      uintptr
	nextAddress uint64
	objects     map[uintptr]tracked
	queue       []*submission
	errs        []string
	stats       Stats

	acquireStatus native.Status
	presentStatus native.Status
	presented     []uint32
	lastRendering *native.RenderingInfo
	executed      []string

	lastPushConstants []byte

	// OnDestroy, when set, is called for every object destroyed through the
	// device, after it is marked destroyed.
	OnDestroy func(kind, label string)
}

var _ native.Device = (*Device)(nil)

func DefaultLimits() native.Limits {
	return native.Limits{
		MaxImageDimension2D:        16384,
		MaxStorageBufferRange:      1 << 30,
		MaxPushConstantsSize:       256,
		NonCoherentAtomSize:        64,
		MaxUpdateAfterBindSampledImages:     1 << 20,
		MaxUpdateAfterBindSamplers:          1 << 20,
		MaxUpdateAfterBindStorageImages:     1 << 20,
		MaxColorAttachments:        8,
		MaxSamplerAnisotropy:       16,
		FramebufferColorSampleMask: native.Samples1 | native.Samples2 | native.Samples4 | native.Samples8,
	}
}

func New(opts ...Option) *Device {
	d := &Device{
		props: native.Properties{
			DeviceName: "nativetest",
			DeviceType: native.DeviceTypeCPU,
			APIVersion: 1<<22 | 3<<12,
			Limits:     DefaultLimits(),
			MemoryHeaps: []native.MemoryHeap{
				{Size: 8 << 30, DeviceLocal: true},
				{Size: 16 << 30},
			},
		},
		features:        map[native.Format]native.FormatFeature{},
		objects:         map[uintptr]tracked{},
		nextAddress:     0x10000,
		swapchainImages: 3,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) register(o tracked, kind, label string) {
	d.nextID++
	b := o.base()
	b.id = d.nextID
	b.kind = kind
	b.label = label
	d.objects[b.id] = o
}

func (d *Device) destroy(o tracked) {
	if o == nil {
		return
	}
	b := o.base()
	if b.destroyed {
		d.errorf("%s %q destroyed twice", b.kind, b.label)
		return
	}
	b.destroyed = true
	if d.OnDestroy != nil {
		d.OnDestroy(b.kind, b.label)
	}
}

func (d *Device) errorf(format string, args ...any) {
	d.errs = append(d.errs, fmt.Sprintf(format, args...))
}

// Errors returns every validation style error observed so far.
func (d *Device) Errors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.errs...)
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Live counts objects of a kind that were created and not destroyed.
// An empty kind counts everything.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, o := range d.objects {
		b := o.base()
		if !b.destroyed && (kind == "" || b.kind == kind) {
			n++
		}
	}
	return n
}

// Pending is the number of submissions the simulated queue has not retired.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Retire executes up to n pending submissions in submission order and
// returns how many were retired.
func (d *Device) Retire(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	done := 0
	for done < n && len(d.queue) > 0 {
		d.retireOne()
		done++
	}
	return done
}

func (d *Device) SetAcquireStatus(s native.Status) {
	d.mu.Lock()
	d.acquireStatus = s
	d.mu.Unlock()
}

func (d *Device) SetPresentStatus(s native.Status) {
	d.mu.Lock()
	d.presentStatus = s
	d.mu.Unlock()
}

// SetSurfaceExtent changes the size reported for the surface, as a window
// resize would.
func (d *Device) SetSurfaceExtent(width, height uint32) {
	d.mu.Lock()
	d.surfaceExtent = native.Extent2D{Width: width, Height: height}
	d.mu.Unlock()
}

// Presented lists the swapchain image indices presented so far.
func (d *Device) Presented() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.presented...)
}

// LastRendering is the most recent BeginRendering executed by the queue.
func (d *Device) LastRendering() *native.RenderingInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRendering
}

// Executed lists the names of the commands the queue has run, in order.
func (d *Device) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

func (d *Device) ClearExecuted() {
	d.mu.Lock()
	d.executed = nil
	d.mu.Unlock()
}

func (d *Device) LastPushConstants() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastPushConstants
}

func (d *Device) retireOne() {
	s := d.queue[0]
	d.queue = d.queue[1:]
	for _, w := range s.waits {
		sem := w.Semaphore.(*Semaphore)
		if sem.timeline {
			if sem.value < w.Value {
				d.errorf("submission waits on timeline value %d, semaphore is at %d", w.Value, sem.value)
			}
			continue
		}
		if !sem.signaled {
			d.errorf("submission waits on binary semaphore %d that is not signaled", sem.id)
		}
		sem.signaled = false
	}
	for _, op := range s.ops {
		op()
	}
	if s.present != nil {
		s.present.run(d)
	}
	for _, sig := range s.signals {
		sem := sig.Semaphore.(*Semaphore)
		if sem.timeline {
			if sig.Value <= sem.value {
				d.errorf("timeline signal %d does not advance past %d", sig.Value, sem.value)
			}
			sem.value = max(sem.value, sig.Value)
			continue
		}
		if sem.signaled {
			d.errorf("binary semaphore %d signaled twice", sem.id)
		}
		sem.signaled = true
	}
	if s.fence != nil {
		s.fence.signaled = true
	}
	if s.cmd != nil {
		s.cmd.pending--
	}
}

// drainUntil retires submissions until done reports true or the queue is
// empty.
func (d *Device) drainUntil(done func() bool) error {
	for !done() {
		if len(d.queue) == 0 {
			return ErrDeadlock
		}
		d.retireOne()
	}
	return nil
}

func (d *Device) Properties() native.Properties {
	return d.props
}

func (d *Device) FormatFeatures(f native.Format) native.FormatFeature {
	d.mu.Lock()
	defer d.mu.Unlock()
	if feat, ok := d.features[f]; ok {
		return feat
	}
	feat := native.FeatureSampledImage | native.FeatureBlitSrc | native.FeatureBlitDst | native.FeatureSampledImageFilterLinear
	if f.IsDepthOrStencil() {
		return feat | native.FeatureDepthStencilAttachment
	}
	return feat | native.FeatureStorageImage | native.FeatureColorAttachment | native.FeatureColorAttachmentBlend
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queue) > 0 {
		d.retireOne()
	}
	return nil
}

func (d *Device) Raw() native.RawHandles {
	return native.RawHandles{}
}

func (d *Device) CreateBuffer(desc native.BufferDesc) (native.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Size == 0 {
		return nil, errors.New("nativetest: zero sized buffer")
	}
	b := &Buffer{desc: desc}
	b.gpu = make([]byte, desc.Size)
	b.host = b.gpu
	if desc.Memory&native.MemoryHostVisible != 0 {
		b.coherent = desc.Memory&native.MemoryHostCoherent != 0 && !d.nonCoherent
		if !b.coherent {
			b.host = make([]byte, desc.Size)
		}
	}
	if desc.Usage&native.BufferUsageDeviceAddress != 0 {
		b.address = d.nextAddress
		d.nextAddress += (desc.Size + 0xff) &^ 0xff
	}
	d.register(b, "buffer", desc.Label)
	return b, nil
}

func (d *Device) DestroyBuffer(b native.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(b.(*Buffer))
}

func (d *Device) FlushMapped(b native.Buffer, offset, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := b.(*Buffer)
	if size == native.WholeSize {
		size = buf.desc.Size - offset
	}
	if offset+size > buf.desc.Size {
		return errors.Newf("nativetest: flush range %d+%d exceeds buffer size %d", offset, size, buf.desc.Size)
	}
	d.stats.Flushes++
	copy(buf.gpu[offset:offset+size], buf.host[offset:offset+size])
	return nil
}

func (d *Device) InvalidateMapped(b native.Buffer, offset, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := b.(*Buffer)
	if size == native.WholeSize {
		size = buf.desc.Size - offset
	}
	if offset+size > buf.desc.Size {
		return errors.Newf("nativetest: invalidate range %d+%d exceeds buffer size %d", offset, size, buf.desc.Size)
	}
	d.stats.Invalidates++
	copy(buf.host[offset:offset+size], buf.gpu[offset:offset+size])
	return nil
}

func (d *Device) CreateImage(desc native.ImageDesc) (native.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 || desc.Extent.Depth == 0 {
		return nil, errors.Newf("nativetest: invalid image extent %+v", desc.Extent)
	}
	if desc.MipLevels == 0 || desc.ArrayLayers == 0 {
		return nil, errors.New("nativetest: image needs at least one mip level and layer")
	}
	if _, ok := desc.Format.Info(); !ok {
		return nil, errors.Newf("nativetest: unsupported format %s", desc.Format)
	}
	img := &Image{
		desc:    desc,
		data:    map[subresource][]byte{},
		layouts: map[subresource]native.Layout{},
	}
	d.register(img, "image", desc.Label)
	return img, nil
}

func (d *Device) DestroyImage(i native.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(i.(*Image))
}

func (d *Device) CreateImageView(i native.Image, desc native.ImageViewDesc) (native.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := i.(*Image)
	if img.destroyed {
		return nil, errors.New("nativetest: view of a destroyed image")
	}
	v := &ImageView{image: img, desc: desc}
	d.register(v, "image view", img.label)
	return v, nil
}

func (d *Device) DestroyImageView(v native.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(v.(*ImageView))
}

func (d *Device) CreateSampler(desc native.SamplerDesc) (native.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Sampler{Desc: desc}
	d.register(s, "sampler", desc.Label)
	return s, nil
}

func (d *Device) DestroySampler(s native.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(s.(*Sampler))
}

func (d *Device) CreateShaderModule(spirv []byte) (native.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, errors.Newf("nativetest: SPIR-V size %d is not a multiple of 4", len(spirv))
	}
	m := &ShaderModule{Code: append([]byte(nil), spirv...)}
	d.register(m, "shader module", "")
	return m, nil
}

func (d *Device) DestroyShaderModule(m native.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(m.(*ShaderModule))
}

func (d *Device) CreateDescriptorSetLayout(desc native.DescriptorSetLayoutDesc) (native.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &DescriptorSetLayout{Desc: desc}
	d.register(l, "descriptor set layout", "")
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(l native.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(l.(*DescriptorSetLayout))
}

func (d *Device) CreateDescriptorPool(desc native.DescriptorPoolDesc) (native.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &DescriptorPool{Desc: desc}
	d.register(p, "descriptor pool", "")
	return p, nil
}

// DestroyDescriptorPool also frees every set allocated from the pool.
func (d *Device) DestroyDescriptorPool(p native.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := p.(*DescriptorPool)
	for _, o := range d.objects {
		if s, ok := o.(*DescriptorSet); ok && s.pool == pool && !s.destroyed {
			d.destroy(s)
		}
	}
	d.destroy(pool)
}

func (d *Device) AllocateDescriptorSet(p native.DescriptorPool, l native.DescriptorSetLayout) (native.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := p.(*DescriptorPool)
	layout := l.(*DescriptorSetLayout)
	if pool.destroyed || layout.destroyed {
		return nil, errors.New("nativetest: allocation from a destroyed pool or layout")
	}
	if pool.allocated >= pool.Desc.MaxSets {
		return nil, errors.New("nativetest: descriptor pool exhausted")
	}
	if layout.Desc.UpdateAfterBindPool && !pool.Desc.UpdateAfterBind {
		return nil, errors.New("nativetest: update-after-bind layout needs an update-after-bind pool")
	}
	pool.allocated++
	s := &DescriptorSet{
		pool:    pool,
		layout:  layout,
		images:  map[uint32][]native.DescriptorImageInfo{},
		buffers: map[uint32][]native.DescriptorBufferInfo{},
	}
	d.register(s, "descriptor set", "")
	return s, nil
}

func (d *Device) UpdateDescriptorSets(writes []native.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.DescriptorUpdates++
	for _, w := range writes {
		set := w.Set.(*DescriptorSet)
		if set.pool.destroyed {
			d.errorf("descriptor write to a set of a destroyed pool")
			continue
		}
		binding, ok := set.layout.binding(w.Binding)
		if !ok {
			d.errorf("descriptor write to unknown binding %d", w.Binding)
			continue
		}
		if binding.Type != w.Type {
			d.errorf("descriptor write of type %d to binding %d of type %d", w.Type, w.Binding, binding.Type)
		}
		count := uint32(len(w.Images) + len(w.Buffers))
		if w.ArrayElement+count > binding.Count {
			d.errorf("descriptor write of %d elements at %d overflows binding %d of %d", count, w.ArrayElement, w.Binding, binding.Count)
			continue
		}
		if len(w.Images) > 0 {
			dst := set.images[w.Binding]
			if need := int(w.ArrayElement) + len(w.Images); len(dst) < need {
				dst = append(dst, make([]native.DescriptorImageInfo, need-len(dst))...)
			}
			for i, info := range w.Images {
				if v, ok := info.View.(*ImageView); ok && v.destroyed {
					d.errorf("binding %d element %d references a destroyed image view", w.Binding, int(w.ArrayElement)+i)
				}
				if s, ok := info.Sampler.(*Sampler); ok && s.destroyed {
					d.errorf("binding %d element %d references a destroyed sampler", w.Binding, int(w.ArrayElement)+i)
				}
				dst[int(w.ArrayElement)+i] = info
			}
			set.images[w.Binding] = dst
		}
		if len(w.Buffers) > 0 {
			dst := set.buffers[w.Binding]
			if need := int(w.ArrayElement) + len(w.Buffers); len(dst) < need {
				dst = append(dst, make([]native.DescriptorBufferInfo, need-len(dst))...)
			}
			copy(dst[w.ArrayElement:], w.Buffers)
			set.buffers[w.Binding] = dst
		}
	}
}

func (d *Device) CreatePipelineLayout(desc native.PipelineLayoutDesc) (native.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sl := range desc.SetLayouts {
		if sl.(*DescriptorSetLayout).destroyed {
			return nil, errors.New("nativetest: pipeline layout references a destroyed set layout")
		}
	}
	l := &PipelineLayout{Desc: desc}
	d.register(l, "pipeline layout", "")
	return l, nil
}

func (d *Device) DestroyPipelineLayout(l native.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(l.(*PipelineLayout))
}

func (d *Device) CreateGraphicsPipeline(desc native.GraphicsPipelineDesc) (native.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Module == nil || desc.Module.(*ShaderModule).destroyed {
		return nil, errors.New("nativetest: pipeline needs a live shader module")
	}
	if desc.Layout == nil || desc.Layout.(*PipelineLayout).destroyed {
		return nil, errors.New("nativetest: pipeline needs a live layout")
	}
	p := &Pipeline{Desc: desc}
	d.stats.PipelinesCreated++
	d.register(p, "pipeline", desc.Label)
	return p, nil
}

func (d *Device) DestroyPipeline(p native.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.PipelinesDestroyed++
	d.destroy(p.(*Pipeline))
}

func (d *Device) CreateFence(signaled bool) (native.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := &Fence{signaled: signaled}
	d.register(f, "fence", "")
	return f, nil
}

func (d *Device) DestroyFence(f native.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(f.(*Fence))
}

func (d *Device) FenceStatus(f native.Fence) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return f.(*Fence).signaled, nil
}

func (d *Device) WaitForFences(fences []native.Fence, timeout uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	all := func() bool {
		for _, f := range fences {
			if !f.(*Fence).signaled {
				return false
			}
		}
		return true
	}
	if timeout == 0 {
		if all() {
			return nil
		}
		return ErrTimeout
	}
	return d.drainUntil(all)
}

func (d *Device) ResetFences(fences ...native.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range fences {
		f.(*Fence).signaled = false
	}
	return nil
}

func (d *Device) CreateSemaphore() (native.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Semaphore{}
	d.register(s, "semaphore", "")
	return s, nil
}

func (d *Device) CreateTimelineSemaphore(initial uint64) (native.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Semaphore{timeline: true, value: initial}
	d.register(s, "timeline semaphore", "")
	return s, nil
}

func (d *Device) DestroySemaphore(s native.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(s.(*Semaphore))
}

func (d *Device) WaitTimeline(s native.Semaphore, value uint64, timeout uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sem := s.(*Semaphore)
	if !sem.timeline {
		return errors.New("nativetest: timeline wait on a binary semaphore")
	}
	reached := func() bool { return sem.value >= value }
	if timeout == 0 {
		if reached() {
			return nil
		}
		return ErrTimeout
	}
	return d.drainUntil(reached)
}

func (d *Device) AllocateCommandBuffer() (native.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &CommandBuffer{dev: d}
	d.register(c, "command buffer", "")
	return c, nil
}

func (d *Device) FreeCommandBuffer(c native.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy(c.(*CommandBuffer))
}

func (d *Device) Submit(info native.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmd := info.Command.(*CommandBuffer)
	if cmd.recording {
		return errors.New("nativetest: submitting a command buffer that is still recording")
	}
	if !cmd.ended {
		return errors.New("nativetest: submitting a command buffer that was never ended")
	}
	s := &submission{
		ops:     append([]func(){}, cmd.ops...),
		cmd:     cmd,
		waits:   append([]native.SemaphoreSubmit(nil), info.Waits...),
		signals: append([]native.SemaphoreSubmit(nil), info.Signals...),
	}
	if info.Fence != nil {
		f := info.Fence.(*Fence)
		if f.signaled {
			d.errorf("submission with a fence that is already signaled")
		}
		s.fence = f
	}
	cmd.pending++
	d.stats.Submits++
	d.queue = append(d.queue, s)
	if !d.manual {
		for len(d.queue) > 0 {
			d.retireOne()
		}
	}
	return nil
}

func (d *Device) HasSurface() bool { return d.surface }

func (d *Device) SurfaceExtent() native.Extent2D {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceExtent
}

func (d *Device) SurfaceSupportsStorage(native.Format) bool { return true }
