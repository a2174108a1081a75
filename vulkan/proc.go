package vulkan

/*
#cgo linux freebsd LDFLAGS: -ldl

#include <stdint.h>
#include <stddef.h>
#include <stdlib.h>

#if defined(_WIN32)
#include <windows.h>
#elif defined(__unix__) || defined(__unix) || defined(unix)
#include <dlfcn.h>
#endif

typedef void (*gxVoidFn)(void);
typedef gxVoidFn (*gxGetProcAddrFn)(void*, const char*);

typedef void (*gxCmdRenderingFn)(void*, const void*);
typedef void (*gxCmdFn)(void*);
typedef void (*gxCmdBoolFn)(void*, uint32_t);
typedef void (*gxCmdEnumFn)(void*, int32_t);
typedef uint64_t (*gxAddressFn)(void*, const void*);
typedef int32_t (*gxWaitSemaphoresFn)(void*, const void*, uint64_t);
typedef void (*gxProperties2Fn)(void*, void*);

static gxGetProcAddrFn gxGetInstanceProcAddr = NULL;

static void gxSetGetInstanceProcAddr(void* fn) {
	gxGetInstanceProcAddr = (gxGetProcAddrFn)fn;
}

// gxLoadSystemLoader finds vkGetInstanceProcAddr in the system Vulkan
// loader. It returns NULL where there is no loader to open by name.
static void* gxLoadSystemLoader(void) {
#if defined(_WIN32)
	HMODULE lib = LoadLibraryA("vulkan-1.dll");
	if (lib == NULL) {
		return NULL;
	}
	return (void*)GetProcAddress(lib, "vkGetInstanceProcAddr");
#elif defined(__APPLE__)
	return NULL;
#elif defined(__unix__) || defined(__unix) || defined(unix)
	void* lib = dlopen("libvulkan.so.1", RTLD_NOW | RTLD_LOCAL);
	if (lib == NULL) {
		lib = dlopen("libvulkan.so", RTLD_NOW | RTLD_LOCAL);
	}
	if (lib == NULL) {
		return NULL;
	}
	return dlsym(lib, "vkGetInstanceProcAddr");
#else
	return NULL;
#endif
}

static void* gxInstanceProc(void* instance, const char* name) {
	if (gxGetInstanceProcAddr == NULL) {
		return NULL;
	}
	return (void*)gxGetInstanceProcAddr(instance, name);
}

static void* gxDeviceProc(void* instance, void* device, const char* name) {
	gxGetProcAddrFn getDeviceProcAddr = (gxGetProcAddrFn)gxInstanceProc(instance, "vkGetDeviceProcAddr");
	if (getDeviceProcAddr == NULL) {
		return NULL;
	}
	return (void*)getDeviceProcAddr(device, name);
}

static void gxCmdBeginRendering(void* fn, void* cmd, void* info) {
	((gxCmdRenderingFn)fn)(cmd, info);
}

static void gxCmdEndRendering(void* fn, void* cmd) {
	((gxCmdFn)fn)(cmd);
}

static void gxCmdSetBool(void* fn, void* cmd, uint32_t value) {
	((gxCmdBoolFn)fn)(cmd, value);
}

static void gxCmdSetEnum(void* fn, void* cmd, int32_t value) {
	((gxCmdEnumFn)fn)(cmd, value);
}

static uint64_t gxGetBufferDeviceAddress(void* fn, void* device, void* info) {
	return ((gxAddressFn)fn)(device, info);
}

static int32_t gxWaitSemaphores(void* fn, void* device, void* info, uint64_t timeout) {
	return ((gxWaitSemaphoresFn)fn)(device, info, timeout);
}

static void gxGetPhysicalDeviceProperties2(void* fn, void* physical, void* props) {
	((gxProperties2Fn)fn)(physical, props);
}
*/
import "C"

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

// The binding has no functions for the Vulkan 1.2 and 1.3 commands gx
// needs. They are looked up at runtime through the same
// vkGetInstanceProcAddr the binding loads from, and called through the
// trampolines above with structs marshalled by the binding's PassRef.

// setInstanceProcAddr hands fn to both the binding and the lookups here.
func setInstanceProcAddr(fn unsafe.Pointer) {
	C.gxSetGetInstanceProcAddr(fn)
	vk.SetGetInstanceProcAddr(fn)
}

// systemInstanceProcAddr opens the platform Vulkan loader without a window
// library.
func systemInstanceProcAddr() (unsafe.Pointer, error) {
	fn := C.gxLoadSystemLoader()
	if fn == nil {
		return nil, errors.New("vulkan loader not found")
	}
	return fn, nil
}

func instanceProc(inst vk.Instance, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.gxInstanceProc(unsafe.Pointer(inst), cname)
}

func deviceProc(inst vk.Instance, device vk.Device, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.gxDeviceProc(unsafe.Pointer(inst), unsafe.Pointer(device), cname)
}

// deviceProcs holds the device level commands outside the binding.
type deviceProcs struct {
	cmdBeginRendering      unsafe.Pointer
	cmdEndRendering        unsafe.Pointer
	cmdSetDepthTestEnable  unsafe.Pointer
	cmdSetDepthWriteEnable unsafe.Pointer
	cmdSetDepthCompareOp   unsafe.Pointer
	cmdSetDepthBiasEnable  unsafe.Pointer
	getBufferDeviceAddress unsafe.Pointer
	waitSemaphores         unsafe.Pointer
}

// loadDeviceProcs resolves each command by its core name, falling back to
// the extension it was promoted from.
func loadDeviceProcs(inst vk.Instance, device vk.Device) (*deviceProcs, error) {
	return resolveDeviceProcs(func(name string) unsafe.Pointer {
		return deviceProc(inst, device, name)
	})
}

func resolveDeviceProcs(proc func(name string) unsafe.Pointer) (*deviceProcs, error) {
	p := &deviceProcs{}
	commands := []struct {
		dst   *unsafe.Pointer
		names []string
	}{
		{&p.cmdBeginRendering, []string{"vkCmdBeginRendering", "vkCmdBeginRenderingKHR"}},
		{&p.cmdEndRendering, []string{"vkCmdEndRendering", "vkCmdEndRenderingKHR"}},
		{&p.cmdSetDepthTestEnable, []string{"vkCmdSetDepthTestEnable", "vkCmdSetDepthTestEnableEXT"}},
		{&p.cmdSetDepthWriteEnable, []string{"vkCmdSetDepthWriteEnable", "vkCmdSetDepthWriteEnableEXT"}},
		{&p.cmdSetDepthCompareOp, []string{"vkCmdSetDepthCompareOp", "vkCmdSetDepthCompareOpEXT"}},
		{&p.cmdSetDepthBiasEnable, []string{"vkCmdSetDepthBiasEnable", "vkCmdSetDepthBiasEnableEXT"}},
		{&p.getBufferDeviceAddress, []string{"vkGetBufferDeviceAddress", "vkGetBufferDeviceAddressKHR"}},
		{&p.waitSemaphores, []string{"vkWaitSemaphores", "vkWaitSemaphoresKHR"}},
	}
	for _, c := range commands {
		for _, name := range c.names {
			if fn := proc(name); fn != nil {
				*c.dst = fn
				break
			}
		}
		if *c.dst == nil {
			return nil, errors.Newf("device does not expose %s", c.names[0])
		}
	}
	return p, nil
}

func (p *deviceProcs) beginRendering(cmd vk.CommandBuffer, info *vk.RenderingInfo) {
	ref, _ := info.PassRef()
	defer info.Free()
	C.gxCmdBeginRendering(p.cmdBeginRendering, unsafe.Pointer(cmd), unsafe.Pointer(ref))
}

func (p *deviceProcs) endRendering(cmd vk.CommandBuffer) {
	C.gxCmdEndRendering(p.cmdEndRendering, unsafe.Pointer(cmd))
}

func cmdSetBool(fn unsafe.Pointer, cmd vk.CommandBuffer, value bool) {
	C.gxCmdSetBool(fn, unsafe.Pointer(cmd), C.uint32_t(bool32(value)))
}

func (p *deviceProcs) setDepthCompareOp(cmd vk.CommandBuffer, op vk.CompareOp) {
	C.gxCmdSetEnum(p.cmdSetDepthCompareOp, unsafe.Pointer(cmd), C.int32_t(op))
}

func (p *deviceProcs) bufferAddress(device vk.Device, info *vk.BufferDeviceAddressInfo) uint64 {
	ref, _ := info.PassRef()
	defer info.Free()
	return uint64(C.gxGetBufferDeviceAddress(p.getBufferDeviceAddress, unsafe.Pointer(device), unsafe.Pointer(ref)))
}

func (p *deviceProcs) waitTimeline(device vk.Device, info *vk.SemaphoreWaitInfo, timeout uint64) vk.Result {
	ref, _ := info.PassRef()
	defer info.Free()
	return vk.Result(C.gxWaitSemaphores(p.waitSemaphores, unsafe.Pointer(device), unsafe.Pointer(ref), C.uint64_t(timeout)))
}

// loadProperties2 resolves vkGetPhysicalDeviceProperties2, which is an
// instance level command.
func loadProperties2(inst vk.Instance) (unsafe.Pointer, error) {
	for _, name := range []string{"vkGetPhysicalDeviceProperties2", "vkGetPhysicalDeviceProperties2KHR"} {
		if fn := instanceProc(inst, name); fn != nil {
			return fn, nil
		}
	}
	return nil, errors.New("instance does not expose vkGetPhysicalDeviceProperties2")
}

// physicalDeviceProperties2 fills props and the descriptor indexing
// properties chained behind it. Everything is read back before the C copies
// are freed.
func physicalDeviceProperties2(fn unsafe.Pointer, pd vk.PhysicalDevice, props *vk.PhysicalDeviceProperties2, indexing *vk.PhysicalDeviceDescriptorIndexingProperties) {
	indexingRef, _ := indexing.PassRef()
	defer indexing.Free()
	props.PNext = unsafe.Pointer(indexingRef)
	ref, _ := props.PassRef()
	defer props.Free()
	C.gxGetPhysicalDeviceProperties2(fn, unsafe.Pointer(pd), unsafe.Pointer(ref))
	props.Deref()
	props.Properties.Deref()
	props.Properties.Limits.Deref()
	indexing.Deref()
}
