package nativetest

import (
	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

type Swapchain struct {
	object
	dev    *Device
	images []*Image
	extent native.Extent2D
	format native.Format
	next   uint32
}

type presentOp struct {
	sc    *Swapchain
	index uint32
}

func (p *presentOp) run(d *Device) {
	if p.sc.destroyed {
		d.errorf("present to a destroyed swapchain")
		return
	}
	img := p.sc.images[p.index]
	if l := img.layouts[subresource{}]; l != native.LayoutPresentSrc {
		d.errorf("present of swapchain image %d in layout %s", p.index, l)
	}
	d.presented = append(d.presented, p.index)
}

func (d *Device) CreateSwapchain(desc native.SwapchainDesc) (native.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.surface {
		return nil, errors.New("nativetest: device has no surface")
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, errors.Newf("nativetest: invalid swapchain extent %dx%d", desc.Width, desc.Height)
	}
	if old, ok := desc.Old.(*Swapchain); ok && old.destroyed {
		return nil, errors.New("nativetest: old swapchain already destroyed")
	}
	sc := &Swapchain{
		dev:    d,
		extent: native.Extent2D{Width: desc.Width, Height: desc.Height},
		format: desc.Format,
	}
	for i := uint32(0); i < max(d.swapchainImages, desc.MinImages); i++ {
		img := &Image{
			desc: native.ImageDesc{
				Type:        native.ImageType2D,
				Format:      desc.Format,
				Extent:      native.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1},
				MipLevels:   1,
				ArrayLayers: 1,
				Samples:     native.Samples1,
				Usage:       desc.Usage,
			},
			data:    map[subresource][]byte{},
			layouts: map[subresource]native.Layout{},
		}
		d.register(img, "swapchain image", "")
		sc.images = append(sc.images, img)
	}
	d.register(sc, "swapchain", "")
	return sc, nil
}

func (s *Swapchain) Images() []native.Image {
	out := make([]native.Image, len(s.images))
	for i, img := range s.images {
		out[i] = img
	}
	return out
}

func (s *Swapchain) Extent() native.Extent2D { return s.extent }
func (s *Swapchain) Format() native.Format   { return s.format }

// Image gives tests access to the contents of a swapchain image.
func (s *Swapchain) Image(index uint32) *Image { return s.images[index] }

// AcquireNextImage hands out images round-robin and signals the semaphore
// immediately, unless the device is set to report StatusOutOfDate.
func (s *Swapchain) AcquireNextImage(timeout uint64, signal native.Semaphore) (uint32, native.Status, error) {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.destroyed {
		return 0, native.StatusSuccess, errors.New("nativetest: acquire from a destroyed swapchain")
	}
	if d.acquireStatus == native.StatusOutOfDate {
		return 0, native.StatusOutOfDate, nil
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	if signal != nil {
		sem := signal.(*Semaphore)
		if sem.signaled {
			d.errorf("acquire signals semaphore %d that is already signaled", sem.id)
		}
		sem.signaled = true
	}
	return idx, d.acquireStatus, nil
}

// Present is queued behind earlier submissions. The returned status is the
// one configured with SetPresentStatus.
func (s *Swapchain) Present(wait native.Semaphore, index uint32) (native.Status, error) {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if index >= uint32(len(s.images)) {
		return native.StatusSuccess, errors.Newf("nativetest: present of image %d out of %d", index, len(s.images))
	}
	sub := &submission{present: &presentOp{sc: s, index: index}}
	if wait != nil {
		sub.waits = []native.SemaphoreSubmit{{Semaphore: wait}}
	}
	d.stats.Presents++
	d.queue = append(d.queue, sub)
	if !d.manual {
		for len(d.queue) > 0 {
			d.retireOne()
		}
	}
	return d.presentStatus, nil
}

func (s *Swapchain) Destroy() {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, img := range s.images {
		d.destroy(img)
	}
	d.destroy(s)
}
