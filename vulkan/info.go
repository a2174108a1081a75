package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

// InitializeHeadless loads the system Vulkan loader without glfw. It must
// be called before SupportedLayers, SupportedExtensions or QueryDevices
// when no backend has been created yet.
func InitializeHeadless() error {
	return initLoader(false)
}

// DeviceInfo describes one physical device as the backend sees it.
type DeviceInfo struct {
	Properties    native.Properties
	QueueFamilies []string
	Extensions    []string
	// Eligible is set when the device could back a headless GX context.
	Eligible bool
}

// QueryDevices creates a short lived instance and reports every physical
// device behind it.
func QueryDevices(cfg Config) ([]DeviceInfo, error) {
	inst, err := createInstance(cfg, nil)
	if err != nil {
		return nil, err
	}
	defer inst.destroy()

	devices, err := inst.physicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}
	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		pd := newPhysicalDevice(inst, d)
		info := DeviceInfo{Properties: pd.nativeProperties()}
		for _, q := range pd.families {
			info.QueueFamilies = append(info.QueueFamilies, q.String())
		}
		info.Extensions = pd.extensions()
		_, hasGraphics := pd.graphicsFamily(vk.NullSurface)
		info.Eligible = hasGraphics && pd.properties.ApiVersion >= vk.MakeVersion(1, 3, 0)
		infos = append(infos, info)
	}
	return infos, nil
}
