// Package vulkan implements native.Device on a Vulkan 1.3 driver.
//
// A Backend owns the instance, the optional window surface, the logical
// device with its single graphics queue, a command pool and the memory
// allocator every buffer and image is placed with.
package vulkan

import (
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx"
	"github.com/celer/gx/native"
)

// Config is the backend part of gx.Config, see gx.Config.Backend.
type Config = gx.BackendConfig

type Backend struct {
	cfg    Config
	window *glfw.Window

	instance    *instance
	surface     vk.Surface
	physical    *physicalDevice
	queueFamily queueFamily

	device        vk.Device
	procs         *deviceProcs
	queue         vk.Queue
	commandPool   vk.CommandPool
	pipelineCache vk.PipelineCache
	memory        *memoryAllocator

	properties     native.Properties
	formatFeatures map[native.Format]native.FormatFeature
}

// NewBackend creates a backend that presents to window. glfw must be
// initialized and the window created with the NoAPI client hint.
func NewBackend(cfg Config, window *glfw.Window) (*Backend, error) {
	if window == nil {
		return nil, errors.New("nil window, use NewHeadlessBackend for offscreen rendering")
	}
	if err := initLoader(true); err != nil {
		return nil, err
	}
	return newBackend(cfg, window, window.GetRequiredInstanceExtensions())
}

// NewHeadlessBackend creates a backend without a surface. GX contexts on it
// render offscreen only.
func NewHeadlessBackend(cfg Config) (*Backend, error) {
	if err := initLoader(false); err != nil {
		return nil, err
	}
	return newBackend(cfg, nil, nil)
}

func newBackend(cfg Config, window *glfw.Window, extensions []string) (d *Backend, err error) {
	d = &Backend{
		cfg:            cfg,
		window:         window,
		surface:        vk.NullSurface,
		formatFeatures: make(map[native.Format]native.FormatFeature),
	}
	defer func() {
		if err != nil {
			d.Destroy()
			d = nil
		}
	}()

	if d.instance, err = createInstance(cfg, extensions); err != nil {
		return nil, err
	}
	if window != nil {
		if err = d.createSurface(); err != nil {
			return nil, err
		}
	}
	if d.physical, d.queueFamily, err = pickPhysicalDevice(d.instance, d.surface); err != nil {
		return nil, err
	}
	if err = d.createLogicalDevice(); err != nil {
		return nil, err
	}
	if d.procs, err = loadDeviceProcs(d.instance.vk, d.device); err != nil {
		return nil, err
	}
	vk.GetDeviceQueue(d.device, d.queueFamily.index, 0, &d.queue)
	if err = d.createCommandPool(); err != nil {
		return nil, err
	}
	cacheInfo := vk.PipelineCacheCreateInfo{SType: vk.StructureTypePipelineCacheCreateInfo}
	if err = vk.Error(vk.CreatePipelineCache(d.device, &cacheInfo, nil, &d.pipelineCache)); err != nil {
		return nil, errors.Wrap(err, "create pipeline cache")
	}
	d.memory = newMemoryAllocator(d.device, d.physical)
	d.properties = d.physical.nativeProperties()

	attrs := []any{
		slog.String("device", d.properties.DeviceName),
		slog.String("type", d.properties.DeviceType.String()),
		slog.Uint64("queue_family", uint64(d.queueFamily.index)),
	}
	for _, h := range d.properties.MemoryHeaps {
		if h.DeviceLocal {
			attrs = append(attrs, slog.String("vram", units.BytesSize(float64(h.Size))))
			break
		}
	}
	log().Info("vulkan device selected", attrs...)
	return d, nil
}

func (d *Backend) createLogicalDevice() error {
	var supported vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(d.physical.vk, &supported)
	supported.Deref()
	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:         supported.SamplerAnisotropy,
		MultiDrawIndirect:         supported.MultiDrawIndirect,
		DrawIndirectFirstInstance: supported.DrawIndirectFirstInstance,
		FillModeNonSolid:          supported.FillModeNonSolid,
		ShaderInt64:               supported.ShaderInt64,
	}

	vulkan12Features := vk.PhysicalDeviceVulkan12Features{
		SType:                                        vk.StructureTypePhysicalDeviceVulkan12Features,
		DescriptorIndexing:                           vk.True,
		RuntimeDescriptorArray:                       vk.True,
		DescriptorBindingPartiallyBound:              vk.True,
		DescriptorBindingSampledImageUpdateAfterBind: vk.True,
		DescriptorBindingStorageImageUpdateAfterBind: vk.True,
		DescriptorBindingUpdateUnusedWhilePending:    vk.True,
		ShaderSampledImageArrayNonUniformIndexing:    vk.True,
		ShaderStorageImageArrayNonUniformIndexing:    vk.True,
		TimelineSemaphore:                            vk.True,
		BufferDeviceAddress:                          vk.True,
		ScalarBlockLayout:                            vk.True,
	}
	cVulkan12Features, _ := vulkan12Features.PassRef()
	defer vulkan12Features.Free()
	dynamicRenderFeature := vk.PhysicalDeviceDynamicRenderingFeatures{
		SType:            vk.StructureTypePhysicalDeviceDynamicRenderingFeatures,
		DynamicRendering: vk.True,
		PNext:            unsafe.Pointer(cVulkan12Features),
	}
	cDynamicRenderFeature, _ := dynamicRenderFeature.PassRef()
	defer dynamicRenderFeature.Free()
	sync2 := vk.PhysicalDeviceSynchronization2Features{
		SType:            vk.StructureTypePhysicalDeviceSynchronization2Features,
		Synchronization2: vk.True,
		PNext:            unsafe.Pointer(cDynamicRenderFeature),
	}
	cSync2, _ := sync2.PassRef()
	defer sync2.Free()

	var extensions []string
	if d.surface != vk.NullSurface {
		if !d.physical.supportsExtension("VK_KHR_swapchain") {
			return errors.Newf("device %q cannot present", d.physical.name())
		}
		extensions = append(extensions, "VK_KHR_swapchain")
	}
	extensions = safeStrings(extensions)
	layers := safeStrings(d.instance.layers)

	createInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		PNext:                unsafe.Pointer(cSync2),
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.queueFamily.index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}
	if err := vk.Error(vk.CreateDevice(d.physical.vk, &createInfo, nil, &d.device)); err != nil {
		return errors.Wrapf(err, "create device on %q", d.physical.name())
	}
	return nil
}

// Destroy releases the backend. Every object created through it has to be
// destroyed first; gx.GX.Destroy takes care of that for its own objects.
func (d *Backend) Destroy() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		if d.memory != nil {
			d.memory.destroy()
		}
		if d.pipelineCache != nil {
			vk.DestroyPipelineCache(d.device, d.pipelineCache, nil)
		}
		if d.commandPool != nil {
			vk.DestroyCommandPool(d.device, d.commandPool, nil)
		}
		vk.DestroyDevice(d.device, nil)
		d.device = nil
	}
	if d.instance != nil {
		if d.surface != vk.NullSurface {
			vk.DestroySurface(d.instance.vk, d.surface, nil)
			d.surface = vk.NullSurface
		}
		d.instance.destroy()
		d.instance = nil
	}
}

func (d *Backend) Properties() native.Properties { return d.properties }

// FormatFeatures reports the optimal tiling features of f. Results are
// cached since they never change for a device.
func (d *Backend) FormatFeatures(f native.Format) native.FormatFeature {
	if feat, ok := d.formatFeatures[f]; ok {
		return feat
	}
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physical.vk, vk.Format(f), &props)
	props.Deref()
	feat := native.FormatFeature(props.OptimalTilingFeatures)
	d.formatFeatures[f] = feat
	return feat
}

func (d *Backend) Raw() native.RawHandles {
	return native.RawHandles{
		Instance:         uintptr(unsafe.Pointer(d.instance.vk)),
		PhysicalDevice:   uintptr(unsafe.Pointer(d.physical.vk)),
		Device:           uintptr(unsafe.Pointer(d.device)),
		Queue:            uintptr(unsafe.Pointer(d.queue)),
		QueueFamilyIndex: d.queueFamily.index,
	}
}

var _ native.Device = (*Backend)(nil)
