package vulkan

import (
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

type swapchain struct {
	backend *Backend
	vk      vk.Swapchain
	images  []native.Image
	extent  native.Extent2D
	format  native.Format
}

func (s *swapchain) Images() []native.Image  { return s.images }
func (s *swapchain) Extent() native.Extent2D { return s.extent }
func (s *swapchain) Format() native.Format   { return s.format }

func (s *swapchain) AcquireNextImage(timeout uint64, signal native.Semaphore) (uint32, native.Status, error) {
	var index uint32
	r := vk.AcquireNextImage(s.backend.device, s.vk, timeout, signal.(*semaphore).vk, vk.NullFence, &index)
	switch r {
	case vk.Success:
		return index, native.StatusSuccess, nil
	case vk.Suboptimal:
		return index, native.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, native.StatusOutOfDate, nil
	case vk.Timeout, vk.NotReady:
		return 0, native.StatusSuccess, errors.Wrap(native.ErrTimeout, "acquire next image")
	}
	return 0, native.StatusSuccess, deviceError(r, "acquire next image")
}

func (s *swapchain) Present(wait native.Semaphore, index uint32) (native.Status, error) {
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.vk},
		PImageIndices:  []uint32{index},
	}
	if wait != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{wait.(*semaphore).vk}
	}
	switch r := vk.QueuePresent(s.backend.queue, &presentInfo); r {
	case vk.Success:
		return native.StatusSuccess, nil
	case vk.Suboptimal:
		return native.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return native.StatusOutOfDate, nil
	default:
		return native.StatusSuccess, deviceError(r, "queue present")
	}
}

func (s *swapchain) Destroy() {
	vk.DestroySwapchain(s.backend.device, s.vk, nil)
	s.images = nil
}

func (d *Backend) HasSurface() bool { return d.surface != vk.NullSurface }

func (d *Backend) surfaceCapabilities() (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physical.vk, d.surface, &caps))
	if err != nil {
		return caps, errors.Wrap(err, "get surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

// SurfaceExtent is the current extent of the surface. Platforms that leave
// it to the swapchain report the framebuffer size of the window.
func (d *Backend) SurfaceExtent() native.Extent2D {
	if !d.HasSurface() {
		return native.Extent2D{}
	}
	caps, err := d.surfaceCapabilities()
	if err == nil && caps.CurrentExtent.Width != math.MaxUint32 {
		return native.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
	}
	if d.window != nil {
		w, h := d.window.GetFramebufferSize()
		return native.Extent2D{Width: uint32(w), Height: uint32(h)}
	}
	return native.Extent2D{Width: d.cfg.Width, Height: d.cfg.Height}
}

func (d *Backend) SurfaceSupportsStorage(f native.Format) bool {
	if !d.HasSurface() {
		return false
	}
	caps, err := d.surfaceCapabilities()
	if err != nil {
		return false
	}
	return caps.SupportedUsageFlags&vk.ImageUsageFlags(vk.ImageUsageStorageBit) != 0 &&
		d.FormatFeatures(f)&native.FeatureStorageImage != 0
}

func (d *Backend) surfaceFormats() ([]vk.SurfaceFormat, error) {
	var n uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physical.vk, d.surface, &n, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, n)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physical.vk, d.surface, &n, formats)); err != nil {
		return nil, err
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats, nil
}

func (d *Backend) surfacePresentModes() ([]vk.PresentMode, error) {
	var n uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physical.vk, d.surface, &n, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, n)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physical.vk, d.surface, &n, modes)); err != nil {
		return nil, err
	}
	return modes, nil
}

// chooseSurfaceFormat returns the requested format when the surface has it,
// otherwise B8G8R8A8 or R8G8B8A8 unorm, otherwise the first one offered.
func chooseSurfaceFormat(formats []vk.SurfaceFormat, want native.Format, space native.ColorSpace) (vk.SurfaceFormat, bool) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, false
	}
	for _, f := range formats {
		if f.Format == vk.Format(want) && f.ColorSpace == vk.ColorSpace(space) {
			return f, true
		}
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm || f.Format == vk.FormatR8g8b8a8Unorm {
			return f, true
		}
	}
	return formats[0], true
}

func choosePresentMode(modes []vk.PresentMode, want native.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == vk.PresentMode(want) {
			return m
		}
	}
	// FIFO is the only mode every surface has to support.
	return vk.PresentModeFifo
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi != 0 && v > hi {
		return hi
	}
	return v
}

func (d *Backend) CreateSwapchain(desc native.SwapchainDesc) (native.Swapchain, error) {
	if !d.HasSurface() {
		return nil, errors.New("backend has no surface")
	}
	caps, err := d.surfaceCapabilities()
	if err != nil {
		return nil, err
	}
	formats, err := d.surfaceFormats()
	if err != nil {
		return nil, errors.Wrap(err, "get surface formats")
	}
	format, ok := chooseSurfaceFormat(formats, desc.Format, desc.ColorSpace)
	if !ok {
		return nil, errors.New("surface reports no formats")
	}
	modes, err := d.surfacePresentModes()
	if err != nil {
		return nil, errors.Wrap(err, "get surface present modes")
	}
	presentMode := choosePresentMode(modes, desc.PresentMode)

	extent := vk.Extent2D{
		Width:  clamp(desc.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(desc.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
	minImages := desc.MinImages
	if minImages == 0 {
		minImages = caps.MinImageCount + 1
	}
	minImages = clamp(minImages, caps.MinImageCount, caps.MaxImageCount)

	usage := vk.ImageUsageFlags(desc.Usage) & caps.SupportedUsageFlags
	old := vk.NullSwapchain
	if desc.Old != nil {
		old = desc.Old.(*swapchain).vk
	}
	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    minImages,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       usage,
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	sc := &swapchain{
		backend: d,
		extent:  native.Extent2D{Width: extent.Width, Height: extent.Height},
		format:  native.Format(format.Format),
	}
	if err := vk.Error(vk.CreateSwapchain(d.device, &createInfo, nil, &sc.vk)); err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	var n uint32
	if err := vk.Error(vk.GetSwapchainImages(d.device, sc.vk, &n, nil)); err != nil {
		sc.Destroy()
		return nil, errors.Wrap(err, "get swapchain images")
	}
	images := make([]vk.Image, n)
	if err := vk.Error(vk.GetSwapchainImages(d.device, sc.vk, &n, images)); err != nil {
		sc.Destroy()
		return nil, errors.Wrap(err, "get swapchain images")
	}
	for i := range images {
		sc.images = append(sc.images, &image{vk: images[i], label: "swapchain"})
	}

	log().Info("swapchain created",
		slog.Int("images", len(sc.images)),
		slog.Uint64("width", uint64(extent.Width)),
		slog.Uint64("height", uint64(extent.Height)),
		slog.Int("present_mode", int(presentMode)))
	return sc, nil
}

// createSurface asks glfw for a window surface on the instance.
func (d *Backend) createSurface() error {
	ptr, err := d.window.CreateWindowSurface(d.instance.vk, nil)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}
	d.surface = vk.SurfaceFromPointer(ptr)
	return nil
}
