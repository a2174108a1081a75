package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

type queueFamily struct {
	index      uint32
	properties vk.QueueFamilyProperties
}

func (q queueFamily) isGraphics() bool {
	return q.properties.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
}

func (q queueFamily) supportsPresent(pd vk.PhysicalDevice, surface vk.Surface) bool {
	var supported vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(pd, q.index, surface, &supported)
	return supported == vk.True
}

func (q queueFamily) String() string {
	return fmt.Sprintf("{ Index: %d Graphics: %v Queues: %d }", q.index, q.isGraphics(), q.properties.QueueCount)
}

type physicalDevice struct {
	vk         vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	memory     vk.PhysicalDeviceMemoryProperties
	indexing   vk.PhysicalDeviceDescriptorIndexingProperties
	families   []queueFamily
}

func newPhysicalDevice(inst *instance, pd vk.PhysicalDevice) *physicalDevice {
	p := &physicalDevice{vk: pd}

	p.indexing.SType = vk.StructureTypePhysicalDeviceDescriptorIndexingProperties
	props2 := vk.PhysicalDeviceProperties2{SType: vk.StructureTypePhysicalDeviceProperties2}
	physicalDeviceProperties2(inst.properties2, pd, &props2, &p.indexing)
	p.properties = props2.Properties

	vk.GetPhysicalDeviceMemoryProperties(pd, &p.memory)
	p.memory.Deref()
	for i := uint32(0); i < p.memory.MemoryTypeCount; i++ {
		p.memory.MemoryTypes[i].Deref()
	}
	for i := uint32(0); i < p.memory.MemoryHeapCount; i++ {
		p.memory.MemoryHeaps[i].Deref()
	}

	var n uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, nil)
	props := make([]vk.QueueFamilyProperties, n)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, props)
	for i := range props {
		props[i].Deref()
		p.families = append(p.families, queueFamily{index: uint32(i), properties: props[i]})
	}
	return p
}

func (p *physicalDevice) name() string {
	return vk.ToString(p.properties.DeviceName[:])
}

// graphicsFamily returns the first family that can draw and, when a surface
// is given, present to it.
func (p *physicalDevice) graphicsFamily(surface vk.Surface) (queueFamily, bool) {
	for _, q := range p.families {
		if !q.isGraphics() {
			continue
		}
		if surface != vk.NullSurface && !q.supportsPresent(p.vk, surface) {
			continue
		}
		return q, true
	}
	return queueFamily{}, false
}

// extensions lists the device extensions the driver reports.
func (p *physicalDevice) extensions() []string {
	var n uint32
	if vk.EnumerateDeviceExtensionProperties(p.vk, "", &n, nil) != vk.Success {
		return nil
	}
	props := make([]vk.ExtensionProperties, n)
	if vk.EnumerateDeviceExtensionProperties(p.vk, "", &n, props) != vk.Success {
		return nil
	}
	names := make([]string, 0, n)
	for _, e := range props {
		e.Deref()
		names = append(names, vk.ToString(e.ExtensionName[:]))
	}
	return names
}

func (p *physicalDevice) supportsExtension(name string) bool {
	return contains(p.extensions(), name)
}

// findMemoryType picks the first memory type allowed by typeBits that has
// every flag in required.
func (p *physicalDevice) findMemoryType(typeBits uint32, required vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < p.memory.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		if p.memory.MemoryTypes[i].PropertyFlags&required == required {
			return i, true
		}
	}
	return 0, false
}

func (p *physicalDevice) memoryFlags(typeIndex uint32) vk.MemoryPropertyFlags {
	return p.memory.MemoryTypes[typeIndex].PropertyFlags
}

func (p *physicalDevice) nativeProperties() native.Properties {
	l := p.properties.Limits
	props := native.Properties{
		DeviceName:    p.name(),
		DeviceType:    native.DeviceType(p.properties.DeviceType),
		APIVersion:    p.properties.ApiVersion,
		DriverVersion: p.properties.DriverVersion,
		VendorID:      p.properties.VendorID,
		DeviceID:      p.properties.DeviceID,
		Limits: native.Limits{
			MaxImageDimension2D:        l.MaxImageDimension2D,
			MaxStorageBufferRange:      l.MaxStorageBufferRange,
			MaxPushConstantsSize:       l.MaxPushConstantsSize,
			NonCoherentAtomSize:        uint64(l.NonCoherentAtomSize),
			MaxUpdateAfterBindSampledImages:     p.indexing.MaxDescriptorSetUpdateAfterBindSampledImages,
			MaxUpdateAfterBindSamplers:          p.indexing.MaxDescriptorSetUpdateAfterBindSamplers,
			MaxUpdateAfterBindStorageImages:     p.indexing.MaxDescriptorSetUpdateAfterBindStorageImages,
			MaxColorAttachments:        l.MaxColorAttachments,
			MaxSamplerAnisotropy:       l.MaxSamplerAnisotropy,
			FramebufferColorSampleMask: native.SampleCount(l.FramebufferColorSampleCounts),
		},
	}
	for i := uint32(0); i < p.memory.MemoryHeapCount; i++ {
		h := p.memory.MemoryHeaps[i]
		props.MemoryHeaps = append(props.MemoryHeaps, native.MemoryHeap{
			Size:        uint64(h.Size),
			DeviceLocal: h.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0,
		})
	}
	return props
}

// pickPhysicalDevice prefers a discrete GPU with a usable graphics family,
// then falls back to the first device that has one.
func pickPhysicalDevice(inst *instance, surface vk.Surface) (*physicalDevice, queueFamily, error) {
	devices, err := inst.physicalDevices()
	if err != nil {
		return nil, queueFamily{}, errors.Wrap(err, "enumerate physical devices")
	}
	if len(devices) == 0 {
		return nil, queueFamily{}, errors.New("no vulkan devices found")
	}

	var fallback *physicalDevice
	var fallbackFamily queueFamily
	for _, d := range devices {
		pd := newPhysicalDevice(inst, d)
		if pd.properties.ApiVersion < vk.MakeVersion(1, 3, 0) {
			log().Debug("skipping device without vulkan 1.3", "device", pd.name())
			continue
		}
		q, ok := pd.graphicsFamily(surface)
		if !ok {
			continue
		}
		if pd.properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			return pd, q, nil
		}
		if fallback == nil {
			fallback, fallbackFamily = pd, q
		}
	}
	if fallback == nil {
		return nil, queueFamily{}, errors.New("no vulkan 1.3 device with a graphics queue")
	}
	return fallback, fallbackFamily, nil
}
