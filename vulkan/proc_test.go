package vulkan

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProcs(names ...string) (func(string) unsafe.Pointer, map[string]unsafe.Pointer) {
	table := map[string]unsafe.Pointer{}
	for _, name := range names {
		fn := new(byte)
		table[name] = unsafe.Pointer(fn)
	}
	return func(name string) unsafe.Pointer { return table[name] }, table
}

func TestResolveDeviceProcsPrefersCore(t *testing.T) {
	proc, table := fakeProcs(
		"vkCmdBeginRendering", "vkCmdBeginRenderingKHR",
		"vkCmdEndRendering",
		"vkCmdSetDepthTestEnable",
		"vkCmdSetDepthWriteEnable",
		"vkCmdSetDepthCompareOp",
		"vkCmdSetDepthBiasEnable",
		"vkGetBufferDeviceAddress",
		"vkWaitSemaphores",
	)
	p, err := resolveDeviceProcs(proc)
	require.NoError(t, err)
	assert.Equal(t, table["vkCmdBeginRendering"], p.cmdBeginRendering)
	assert.Equal(t, table["vkWaitSemaphores"], p.waitSemaphores)
}

func TestResolveDeviceProcsFallsBackToExtensions(t *testing.T) {
	proc, table := fakeProcs(
		"vkCmdBeginRenderingKHR",
		"vkCmdEndRenderingKHR",
		"vkCmdSetDepthTestEnableEXT",
		"vkCmdSetDepthWriteEnableEXT",
		"vkCmdSetDepthCompareOpEXT",
		"vkCmdSetDepthBiasEnableEXT",
		"vkGetBufferDeviceAddressKHR",
		"vkWaitSemaphoresKHR",
	)
	p, err := resolveDeviceProcs(proc)
	require.NoError(t, err)
	assert.Equal(t, table["vkCmdBeginRenderingKHR"], p.cmdBeginRendering)
	assert.Equal(t, table["vkCmdSetDepthCompareOpEXT"], p.cmdSetDepthCompareOp)
	assert.Equal(t, table["vkGetBufferDeviceAddressKHR"], p.getBufferDeviceAddress)
}

func TestResolveDeviceProcsReportsMissing(t *testing.T) {
	proc, _ := fakeProcs(
		"vkCmdBeginRendering",
		"vkCmdEndRendering",
		"vkCmdSetDepthTestEnable",
	)
	p, err := resolveDeviceProcs(proc)
	assert.Nil(t, p)
	assert.EqualError(t, err, "device does not expose vkCmdSetDepthWriteEnable")
}
