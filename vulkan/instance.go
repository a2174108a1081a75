package vulkan

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// initLoader resolves vkGetInstanceProcAddr, through glfw when a window is
// used and from the system loader otherwise.
func initLoader(withGLFW bool) error {
	if withGLFW {
		setInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	} else {
		fn, err := systemInstanceProcAddr()
		if err != nil {
			return errors.Wrap(err, "find vulkan loader")
		}
		setInstanceProcAddr(fn)
	}
	return errors.Wrap(vk.Init(), "init vulkan")
}

// SupportedLayers lists the instance layers the loader knows about.
func SupportedLayers() ([]string, error) {
	var n uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, n)
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&n, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names, nil
}

// SupportedExtensions lists the instance extensions the loader knows about.
func SupportedExtensions() ([]string, error) {
	var n uint32
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, n)
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &n, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

type instance struct {
	vk          vk.Instance
	properties2 unsafe.Pointer
	debug       vk.DebugReportCallback
	hasDebug    bool
	layers      []string
	extensions  []string
}

func createInstance(cfg Config, required []string) (*instance, error) {
	supported, err := SupportedExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}
	inst := &instance{}
	for _, ext := range required {
		if !contains(supported, ext) {
			return nil, errors.Newf("instance extension %q is not supported", ext)
		}
		inst.extensions = append(inst.extensions, ext)
	}

	if cfg.Validation {
		layers, err := SupportedLayers()
		if err != nil {
			return nil, errors.Wrap(err, "enumerate instance layers")
		}
		if contains(layers, validationLayer) {
			inst.layers = append(inst.layers, validationLayer)
		} else {
			log().Warn("validation requested but not installed", slog.String("layer", validationLayer))
		}
		if contains(supported, "VK_EXT_debug_report") {
			inst.extensions = append(inst.extensions, "VK_EXT_debug_report")
		}
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 3, 0),
		ApplicationVersion: parseVersion(cfg.AppVersion),
		PApplicationName:   safeString(cfg.AppName),
		PEngineName:        safeString("gx"),
	}
	extensions := safeStrings(inst.extensions)
	layers := safeStrings(inst.layers)
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}
	if err := vk.Error(vk.CreateInstance(&createInfo, nil, &inst.vk)); err != nil {
		return nil, errors.Wrap(err, "create instance")
	}
	if err := vk.InitInstance(inst.vk); err != nil {
		vk.DestroyInstance(inst.vk, nil)
		return nil, errors.Wrap(err, "load instance functions")
	}
	if inst.properties2, err = loadProperties2(inst.vk); err != nil {
		vk.DestroyInstance(inst.vk, nil)
		return nil, err
	}

	if contains(inst.extensions, "VK_EXT_debug_report") {
		ret := vk.CreateDebugReportCallback(inst.vk, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugCallback,
		}, nil, &inst.debug)
		if err := vk.Error(ret); err != nil {
			log().Warn("debug report callback unavailable", slog.Any("error", err))
		} else {
			inst.hasDebug = true
		}
	}
	return inst, nil
}

func debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	level := slog.LevelDebug
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		level = slog.LevelError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		level = slog.LevelWarn
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		level = slog.LevelInfo
	}
	log().Log(context.Background(), level, pMessage, slog.String("layer", pLayerPrefix), slog.Int("code", int(messageCode)))
	return vk.False
}

// physicalDevices returns every physical device of the instance.
func (i *instance) physicalDevices() ([]vk.PhysicalDevice, error) {
	var n uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(i.vk, &n, nil)); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	devices := make([]vk.PhysicalDevice, n)
	if err := vk.Error(vk.EnumeratePhysicalDevices(i.vk, &n, devices)); err != nil {
		return nil, err
	}
	return devices, nil
}

func (i *instance) destroy() {
	if i.hasDebug {
		vk.DestroyDebugReportCallback(i.vk, i.debug, nil)
	}
	vk.DestroyInstance(i.vk, nil)
}
