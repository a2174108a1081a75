package gx

import (
	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

const (
	dummyTextureSize = 256
	numDummyPixels   = dummyTextureSize * dummyTextureSize
)

// GX is the rendering context. It owns every resource created through it
// and hands out handles to them. A GX is not safe for concurrent use: all
// calls are expected to come from the render thread.
type GX struct {
	dev         native.Device
	imm         *ImmediateCommands
	staging     *StagingDevice
	swapchain   *Swapchain
	timeline    native.Semaphore
	presentMode native.PresentMode

	buffers   *HandlePool[AllocatedBuffer]
	textures  *HandlePool[AllocatedTexture]
	samplers  *HandlePool[AllocatedSampler]
	shaders   *HandlePool[ShaderModule]
	pipelines *HandlePool[RenderPipeline]

	dummyTexture   TextureHandle
	linearSampler  SamplerHandle
	nearestSampler SamplerHandle
	globalBuffer   BufferHandle

	globalLayout native.DescriptorSetLayout
	globalPool   native.DescriptorPool
	globalSet    native.DescriptorSet

	bindlessLayout native.DescriptorSetLayout
	bindlessPool   native.DescriptorPool
	bindlessSet    native.DescriptorSet
	maxTextures    uint32
	maxSamplers    uint32

	// awaitingCreation is set whenever a texture or sampler comes or goes,
	// so the bindless set is rewritten before the next render pass.
	awaitingCreation             bool
	awaitingNewImmutableSamplers bool

	deferred       []deferredTask
	currentCommand *CommandBuffer
}

// New creates a context on dev. A swapchain is created when the device has
// a surface; without one GX renders offscreen only.
func New(dev native.Device, cfg Config) (*GX, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	minStaging, _ := cfg.stagingMin()
	maxStaging, _ := cfg.stagingMax()
	presentMode, _ := cfg.presentMode()

	g := &GX{
		dev:         dev,
		presentMode: presentMode,
		buffers:     NewHandlePool[AllocatedBuffer](),
		textures:    NewHandlePool[AllocatedTexture](),
		samplers:    NewHandlePool[AllocatedSampler](),
		shaders:     NewHandlePool[ShaderModule](),
		pipelines:   NewHandlePool[RenderPipeline](),
		maxTextures: cfg.InitialTextures,
		maxSamplers: cfg.InitialSamplers,
	}
	var err error
	if g.imm, err = NewImmediateCommands(dev); err != nil {
		return nil, err
	}
	g.staging = newStagingDevice(g, minStaging, maxStaging)

	if err := g.init(); err != nil {
		g.Destroy()
		return nil, err
	}
	return g, nil
}

func (g *GX) init() error {
	// The dummy texture takes slot 0 of the texture pool, which is what
	// shaders get for any slot without a usable texture.
	pixels := make([]byte, numDummyPixels*4)
	for y := 0; y < dummyTextureSize; y++ {
		for x := 0; x < dummyTextureSize; x++ {
			v := byte(x ^ y)
			i := (y*dummyTextureSize + x) * 4
			pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = v, v, v, 0xff
		}
	}
	g.dummyTexture = g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: dummyTextureSize, Height: dummyTextureSize},
		NumMipLevels: 1,
		Usage:        TextureUsageSampled | TextureUsageStorage,
		Format:       native.FormatR8G8B8A8Unorm,
		Data:         pixels,
		DebugName:    "dummy texture",
	})
	if g.dummyTexture.Empty() {
		return errors.New("create dummy texture")
	}

	if g.dev.HasSurface() {
		ext := g.dev.SurfaceExtent()
		if err := g.createSwapchain(ext.Width, ext.Height); err != nil {
			return err
		}
	}

	g.linearSampler = g.CreateSampler(SamplerSpec{
		MagFilter: FilterLinear,
		MinFilter: FilterLinear,
		WrapU:     WrapClamp,
		WrapV:     WrapClamp,
		WrapW:     WrapClamp,
		DebugName: "linear sampler",
	})
	g.nearestSampler = g.CreateSampler(SamplerSpec{
		MagFilter: FilterNearest,
		MinFilter: FilterNearest,
		WrapU:     WrapClamp,
		WrapV:     WrapClamp,
		WrapW:     WrapClamp,
		DebugName: "nearest sampler",
	})
	if g.linearSampler.Empty() || g.nearestSampler.Empty() {
		return errors.New("create default samplers")
	}

	g.globalBuffer = g.CreateBuffer(BufferSpec{
		Size:      PerFrameDataSize,
		Usage:     BufferUsageUniform,
		Storage:   StorageDevice,
		DebugName: "global buffer",
	})
	if g.globalBuffer.Empty() {
		return errors.New("create global buffer")
	}
	if err := g.createGlobalDescriptorSet(); err != nil {
		return err
	}

	g.growDescriptorPool(g.maxTextures, g.maxSamplers)
	return nil
}

// createSwapchain builds the swapchain and the timeline semaphore frames
// are paced with. The semaphore starts one short of the image count so the
// first round of acquires does not block.
func (g *GX) createSwapchain(width, height uint32) error {
	sc, err := newSwapchain(g, width, height)
	if err != nil {
		return err
	}
	g.swapchain = sc
	g.timeline, err = g.dev.CreateTimelineSemaphore(uint64(sc.NumImages() - 1))
	if err != nil {
		return errors.Wrap(err, "create timeline semaphore")
	}
	return nil
}

func (g *GX) destroySwapchain() {
	if g.swapchain != nil {
		g.swapchain.destroy()
		g.swapchain = nil
	}
	if g.timeline != nil {
		g.dev.DestroySemaphore(g.timeline)
		g.timeline = nil
	}
}

// Destroy waits for the device, releases everything the context owns and
// reports objects the caller never destroyed. The device itself is left to
// its owner.
func (g *GX) Destroy() {
	if g.imm == nil {
		return
	}
	check(g.dev.WaitIdle(), "device wait idle")
	g.awaitingCreation = true

	g.staging.Destroy()
	g.destroySwapchain()

	g.DestroyTexture(g.dummyTexture)
	g.DestroyBuffer(g.globalBuffer)
	g.DestroySampler(g.linearSampler)
	g.DestroySampler(g.nearestSampler)

	if n := g.shaders.NumObjects(); n > 0 {
		log().Error("leaked shader modules", "count", n)
		g.shaders.Each(func(h ShaderHandle, _ *ShaderModule) { g.DestroyShader(h) })
	}
	if n := g.pipelines.NumObjects(); n > 0 {
		log().Error("leaked render pipelines", "count", n)
		g.pipelines.Each(func(h PipelineHandle, _ *RenderPipeline) { g.DestroyPipeline(h) })
	}
	if n := g.samplers.NumObjects(); n > 0 {
		log().Error("leaked samplers", "count", n)
		g.samplers.Each(func(h SamplerHandle, _ *AllocatedSampler) { g.DestroySampler(h) })
	}
	if n := g.textures.NumObjects(); n > 0 {
		log().Error("leaked textures", "count", n)
		g.textures.Each(func(h TextureHandle, _ *AllocatedTexture) { g.DestroyTexture(h) })
	}
	if n := g.buffers.NumObjects(); n > 0 {
		log().Error("leaked buffers", "count", n)
		g.buffers.Each(func(h BufferHandle, _ *AllocatedBuffer) { g.DestroyBuffer(h) })
	}
	g.buffers.Clear()
	g.textures.Clear()
	g.samplers.Clear()
	g.shaders.Clear()
	g.pipelines.Clear()

	g.waitDeferredTasks()
	g.imm.Destroy()
	g.imm = nil

	if g.globalLayout != nil {
		g.dev.DestroyDescriptorSetLayout(g.globalLayout)
	}
	if g.globalPool != nil {
		g.dev.DestroyDescriptorPool(g.globalPool)
	}
	if g.bindlessLayout != nil {
		g.dev.DestroyDescriptorSetLayout(g.bindlessLayout)
	}
	if g.bindlessPool != nil {
		g.dev.DestroyDescriptorPool(g.bindlessPool)
	}
	g.globalLayout, g.globalPool, g.globalSet = nil, nil, nil
	g.bindlessLayout, g.bindlessPool, g.bindlessSet = nil, nil, nil
}

// AcquireCommand starts recording a command buffer. Only one command buffer
// may be outstanding; it has to be handed back with SubmitCommand before
// the next acquire.
func (g *GX) AcquireCommand() *CommandBuffer {
	assertf(g.currentCommand == nil, "cannot acquire more than one command buffer at a time")
	g.currentCommand = newCommandBuffer(g)
	return g.currentCommand
}

// SubmitCommand submits cmd. When present names the current swapchain
// texture the submission also signals the frame's timeline value and the
// image is presented. Deferred releases whose work is done run afterwards.
func (g *GX) SubmitCommand(cmd *CommandBuffer, present TextureHandle) SubmitHandle {
	assertf(cmd != nil && cmd.wrapper != nil, "submit of a command buffer that was not acquired")
	assertf(cmd == g.currentCommand, "submit of a command buffer that is not the current one")
	assertf(!cmd.isRendering, "submit inside a render pass")
	presenting := !present.Empty()
	if presenting {
		tex := g.textures.Get(present)
		assertf(tex != nil && tex.isSwapchain, "submitted texture %s must be a swapchain image", present)
		assertf(g.swapchain != nil, "present without a swapchain")
		sc := g.swapchain
		signal := sc.frameNum + uint64(sc.NumImages())
		sc.timelineWaitValues[sc.currentIndex] = signal
		g.imm.SignalSemaphore(g.timeline, signal)
	}
	cmd.lastSubmit = g.imm.Submit(cmd.wrapper)
	if presenting {
		g.swapchain.present()
	}
	g.processDeferredTasks()

	handle := cmd.lastSubmit
	cmd.wrapper = nil
	g.currentCommand = nil
	return handle
}

// AcquireCurrentSwapchainTexture returns the swapchain image to render the
// frame into. It returns the empty handle when there is no swapchain or the
// swapchain went out of date; IsSwapchainDirty then reports true.
func (g *GX) AcquireCurrentSwapchainTexture() TextureHandle {
	if g.swapchain == nil {
		log().Warn("acquire of a swapchain texture without a swapchain")
		return TextureHandle{}
	}
	return g.swapchain.acquireCurrentImage()
}

// ResizeSwapchain recreates the swapchain at the given size. A zero width
// or height, as reported for minimized windows, falls back to the surface
// extent, and nothing happens while that is zero too.
func (g *GX) ResizeSwapchain(width, height uint32) error {
	if !g.dev.HasSurface() {
		return ErrNoSurface
	}
	if width == 0 || height == 0 {
		ext := g.dev.SurfaceExtent()
		width, height = ext.Width, ext.Height
	}
	if width == 0 || height == 0 {
		log().Debug("swapchain resize skipped for an empty surface")
		return nil
	}
	if err := g.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "device wait idle")
	}
	g.destroySwapchain()
	if err := g.createSwapchain(width, height); err != nil {
		return err
	}
	g.awaitingCreation = true
	return nil
}

func (g *GX) IsSwapchainDirty() bool {
	return g.swapchain == nil || g.swapchain.dirty
}

func (g *GX) SwapchainExtent() native.Extent2D {
	if g.swapchain == nil {
		return native.Extent2D{}
	}
	return g.swapchain.extent
}

func (g *GX) SwapchainFormat() native.Format {
	if g.swapchain == nil {
		return native.FormatUndefined
	}
	return g.swapchain.format
}

func (g *GX) NumSwapchainImages() uint32 {
	if g.swapchain == nil {
		return 0
	}
	return g.swapchain.NumImages()
}

// FrameNum counts the frames presented since the swapchain was created.
func (g *GX) FrameNum() uint64 {
	if g.swapchain == nil {
		return 0
	}
	return g.swapchain.frameNum
}

func (g *GX) Device() native.Device { return g.dev }

func (g *GX) DeviceWaitIdle() error {
	return errors.Wrap(g.dev.WaitIdle(), "device wait idle")
}

func (g *GX) Staging() *StagingDevice { return g.staging }

// ImGuiRequiredData carries what an imgui renderer backend needs to talk
// to the device directly.
type ImGuiRequiredData struct {
	native.RawHandles
	ColorFormat native.Format
	NumImages   uint32
}

func (g *GX) RequestImGuiRequiredData() ImGuiRequiredData {
	return ImGuiRequiredData{
		RawHandles:  g.dev.Raw(),
		ColorFormat: g.SwapchainFormat(),
		NumImages:   g.NumSwapchainImages(),
	}
}

// RequestViewportImageData returns the linear sampler and the view of a
// texture, for showing it inside an editor UI.
func (g *GX) RequestViewportImageData(h TextureHandle) (native.Sampler, native.ImageView) {
	var sampler native.Sampler
	if s := g.samplers.Get(g.linearSampler); s != nil {
		sampler = s.sampler
	}
	return sampler, g.TextureImageView(h)
}
