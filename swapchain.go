package gx

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

const maxSwapchainImages = 16

const (
	swapchainFormat     = native.FormatB8G8R8A8Unorm
	swapchainColorSpace = native.ColorSpaceSRGBNonlinear
)

// Swapchain wraps the native swapchain. Its images are registered in the
// texture pool as non-owning textures so they can be used like any other
// render target. Frames are paced with the context's timeline semaphore:
// an image is only acquired again once the submission that last rendered
// to it has signaled.
type Swapchain struct {
	gx     *GX
	sc     native.Swapchain
	extent native.Extent2D
	format native.Format

	textures           []TextureHandle
	acquireSemaphores  []native.Semaphore
	timelineWaitValues []uint64

	currentIndex uint32
	frameNum     uint64
	getNextImage bool
	dirty        bool
}

func newSwapchain(g *GX, width, height uint32) (*Swapchain, error) {
	usage := native.ImageUsageColorAttachment | native.ImageUsageTransferSrc | native.ImageUsageTransferDst
	if g.dev.SurfaceSupportsStorage(swapchainFormat) {
		usage |= native.ImageUsageStorage
	}
	sc, err := g.dev.CreateSwapchain(native.SwapchainDesc{
		Width:       width,
		Height:      height,
		Format:      swapchainFormat,
		ColorSpace:  swapchainColorSpace,
		PresentMode: g.presentMode,
		Usage:       usage,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	images := sc.Images()
	if len(images) > maxSwapchainImages {
		sc.Destroy()
		return nil, errors.Newf("swapchain image count %d exceeds the supported maximum of %d", len(images), maxSwapchainImages)
	}

	s := &Swapchain{
		gx:                 g,
		sc:                 sc,
		extent:             sc.Extent(),
		format:             sc.Format(),
		timelineWaitValues: make([]uint64, len(images)),
		getNextImage:       true,
	}
	ext := native.Extent3D{Width: s.extent.Width, Height: s.extent.Height, Depth: 1}
	features := g.dev.FormatFeatures(s.format)
	for i, img := range images {
		view, err := g.dev.CreateImageView(img, native.ImageViewDesc{
			ViewType: native.ViewType2D,
			Format:   s.format,
			Range:    fullRange(s.format, 1, 1),
		})
		if err != nil {
			s.destroy()
			return nil, errors.Wrapf(err, "create view of swapchain image %d", i)
		}
		s.textures = append(s.textures, g.textures.Create(AllocatedTexture{
			image:       img,
			view:        view,
			usage:       usage,
			memory:      native.MemoryDeviceLocal,
			extent:      ext,
			typ:         native.ImageType2D,
			format:      s.format,
			features:    features,
			samples:     native.Samples1,
			numLevels:   1,
			numLayers:   1,
			layout:      native.LayoutUndefined,
			isSwapchain: true,
			label:       fmt.Sprintf("swapchain image %d", i),
		}))

		sem, err := g.dev.CreateSemaphore()
		if err != nil {
			s.destroy()
			return nil, errors.Wrap(err, "create acquire semaphore")
		}
		s.acquireSemaphores = append(s.acquireSemaphores, sem)
	}
	g.awaitingCreation = true
	log().Info("swapchain created", "width", s.extent.Width, "height", s.extent.Height,
		"images", len(images), "format", s.format.String())
	return s, nil
}

// destroy releases the views and handles of the swapchain images and the
// swapchain itself. Callers wait for the device to be idle first, so the
// views are destroyed right away rather than deferred.
func (s *Swapchain) destroy() {
	g := s.gx
	for _, h := range s.textures {
		if t := g.textures.Get(h); t != nil {
			g.dev.DestroyImageView(t.view)
			g.textures.Destroy(h)
		}
	}
	s.textures = nil
	if s.sc != nil {
		s.sc.Destroy()
		s.sc = nil
	}
	for _, sem := range s.acquireSemaphores {
		g.dev.DestroySemaphore(sem)
	}
	s.acquireSemaphores = nil
	g.awaitingCreation = true
}

func (s *Swapchain) NumImages() uint32 { return uint32(len(s.textures)) }

func (s *Swapchain) currentTexture() *AllocatedTexture {
	t := s.gx.textures.Get(s.textures[s.currentIndex])
	assertf(t != nil, "swapchain image %d missing from the texture pool", s.currentIndex)
	return t
}

func (s *Swapchain) currentHandle() TextureHandle {
	if s.currentIndex < s.NumImages() {
		return s.textures[s.currentIndex]
	}
	return TextureHandle{}
}

// acquireCurrentImage returns the image of the frame being recorded,
// acquiring a new one after every present. The acquire semaphore becomes a
// wait of the next submission.
func (s *Swapchain) acquireCurrentImage() TextureHandle {
	if !s.getNextImage {
		return s.currentHandle()
	}
	g := s.gx
	check(g.dev.WaitTimeline(g.timeline, s.timelineWaitValues[s.currentIndex], math.MaxUint64), "wait for timeline semaphore")

	sem := s.acquireSemaphores[s.currentIndex]
	idx, status, err := s.sc.AcquireNextImage(math.MaxUint64, sem)
	check(err, "acquire next swapchain image")
	if status == native.StatusOutOfDate {
		// Nothing was acquired and the semaphore stays unsignaled.
		s.dirty = true
		return TextureHandle{}
	}
	if status == native.StatusSuboptimal {
		s.dirty = true
	}
	assertf(idx < s.NumImages(), "acquired swapchain image %d out of %d", idx, s.NumImages())
	s.currentIndex = idx
	s.getNextImage = false
	g.imm.WaitSemaphore(sem)
	return s.currentHandle()
}

// present queues the current image for presentation behind the last
// submission. Out of date and suboptimal results only mark the swapchain
// dirty; recreating it is up to the caller.
func (s *Swapchain) present() {
	t := s.currentTexture()
	assertf(t.layout == native.LayoutPresentSrc, "swapchain image %d is in layout %s, not PRESENT_SRC", s.currentIndex, t.layout)
	sem := s.gx.imm.AcquireLastSubmitSemaphore()

	status, err := s.sc.Present(sem, s.currentIndex)
	check(err, "present")
	if status == native.StatusOutOfDate || status == native.StatusSuboptimal || s.dirty {
		s.dirty = true
		if status == native.StatusOutOfDate {
			return
		}
	}
	s.getNextImage = true
	s.frameNum++
}
