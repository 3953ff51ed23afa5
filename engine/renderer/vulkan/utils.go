package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

func unsafePtr[T any](v *T) unsafe.Pointer {
	return unsafe.Pointer(v)
}

// findMemoryIndex returns the first memory type matching the filter and the
// requested property flags, or -1.
func findMemoryIndex(memory *vk.PhysicalDeviceMemoryProperties, typeFilter uint32, flags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < memory.MemoryTypeCount; i++ {
		memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && memory.MemoryTypes[i].PropertyFlags&flags == flags {
			return int32(i)
		}
	}
	core.LogWarn("vulkan: unable to find suitable memory type")
	return -1
}

// alignUp rounds v up to the next multiple of alignment, which must be a
// power of two.
func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}

// sliceUint32 reinterprets SPIR-V bytes as the word slice the shader module
// create info expects. The caller guarantees len(code) is a multiple of 4.
func sliceUint32(code []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&code[0])), len(code)/4)
}
