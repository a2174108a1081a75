package vulkan

import (
	"strconv"
	"strings"
	"unsafe"

	vk "github.com/goki/vulkan"
)

const end = "\x00"

func safeString(s string) string {
	if strings.HasSuffix(s, end) {
		return s
	}
	return s + end
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// parseVersion reads "major.minor.patch", missing or malformed parts are 0.
func parseVersion(s string) uint32 {
	var v [3]int
	for i, part := range strings.SplitN(s, ".", 3) {
		v[i], _ = strconv.Atoi(strings.TrimSpace(part))
	}
	return vk.MakeVersion(v[0], v[1], v[2])
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

// bytesAsUint32 views SPIR-V bytes as words. len(b) must be a multiple of 4.
func bytesAsUint32(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}
