package vulkan

/*
#include <stdlib.h>
#include "khr_raytracing.h"
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// shaderEntryPoint backs the pName field of ray-tracing stage infos. The C
// string outlives every pipeline created from it.
var shaderEntryPoint = uintptr(unsafe.Pointer(C.CString("main")))

// rawHandle reinterprets an 8-byte Vulkan handle as its numeric value. The
// binding models non-dispatchable handles as opaque pointers, which the
// extension structs carry as plain 64-bit words.
func rawHandle[H any](h H) uint64 {
	return *(*uint64)(unsafe.Pointer(&h))
}

// handleFromRaw is the inverse of rawHandle.
func handleFromRaw[H any](raw uint64) H {
	return *(*H)(unsafe.Pointer(&raw))
}

func dispatchablePtr[H any](h H) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&h))
}

// loadRayTracingProcs resolves the acceleration-structure and ray-tracing
// pipeline entry points for the logical device. Must run after device
// creation and before any build or trace call.
func loadRayTracingProcs(getInstanceProcAddr unsafe.Pointer, instance vk.Instance, device vk.Device) error {
	if getInstanceProcAddr == nil {
		return fmt.Errorf("vulkan: no instance proc address loader supplied")
	}
	if C.loadRayTracingProcs(getInstanceProcAddr, dispatchablePtr(instance), dispatchablePtr(device)) != 0 {
		return fmt.Errorf("vulkan: ray tracing entry point %s not found", C.GoString(C.missingRayTracingProc()))
	}
	return nil
}

func createAccelerationStructure(device vk.Device, info *accelerationStructureCreateInfo) (AccelerationStructureHandle, vk.Result) {
	var handle AccelerationStructureHandle
	res := C.shimCreateAccelerationStructure(dispatchablePtr(device),
		unsafe.Pointer(info), (*C.uint64_t)(unsafe.Pointer(&handle)))
	return handle, vk.Result(res)
}

func destroyAccelerationStructure(device vk.Device, handle AccelerationStructureHandle) {
	C.shimDestroyAccelerationStructure(dispatchablePtr(device), C.uint64_t(handle))
}

func getAccelerationStructureBuildSizes(device vk.Device, buildInfo *accelerationStructureBuildGeometryInfo, primitiveCounts []uint32, sizes *accelerationStructureBuildSizesInfo) {
	C.shimGetAccelerationStructureBuildSizes(dispatchablePtr(device),
		C.uint32_t(accelerationStructureBuildTypeDevice),
		unsafe.Pointer(buildInfo),
		(*C.uint32_t)(unsafe.Pointer(&primitiveCounts[0])),
		unsafe.Pointer(sizes))
	runtime.KeepAlive(buildInfo)
	runtime.KeepAlive(primitiveCounts)
}

func cmdBuildAccelerationStructures(cmd vk.CommandBuffer, infos []accelerationStructureBuildGeometryInfo, ranges []*accelerationStructureBuildRangeInfo) {
	rangePtrs := make([]uintptr, len(ranges))
	for i, r := range ranges {
		rangePtrs[i] = uintptr(unsafe.Pointer(r))
	}
	C.shimCmdBuildAccelerationStructures(dispatchablePtr(cmd),
		C.uint32_t(len(infos)),
		unsafe.Pointer(&infos[0]),
		unsafe.Pointer(&rangePtrs[0]))
	runtime.KeepAlive(infos)
	runtime.KeepAlive(ranges)
	runtime.KeepAlive(rangePtrs)
}

func getAccelerationStructureDeviceAddress(device vk.Device, handle AccelerationStructureHandle) uint64 {
	info := accelerationStructureDeviceAddressInfo{
		SType:                 vk.StructureTypeAccelerationStructureDeviceAddressInfo,
		AccelerationStructure: handle,
	}
	return uint64(C.shimGetAccelerationStructureDeviceAddress(dispatchablePtr(device), unsafe.Pointer(&info)))
}

func createRayTracingPipelines(device vk.Device, infos []rayTracingPipelineCreateInfo) ([]vk.Pipeline, vk.Result) {
	raw := make([]uint64, len(infos))
	res := C.shimCreateRayTracingPipelines(dispatchablePtr(device),
		C.uint32_t(len(infos)),
		unsafe.Pointer(&infos[0]),
		(*C.uint64_t)(unsafe.Pointer(&raw[0])))
	runtime.KeepAlive(infos)
	if vk.Result(res) != vk.Success {
		return nil, vk.Result(res)
	}
	pipelines := make([]vk.Pipeline, len(raw))
	for i, r := range raw {
		pipelines[i] = handleFromRaw[vk.Pipeline](r)
	}
	return pipelines, vk.Success
}

func getRayTracingShaderGroupHandles(device vk.Device, pipeline vk.Pipeline, firstGroup, groupCount uint32, data []byte) vk.Result {
	return vk.Result(C.shimGetRayTracingShaderGroupHandles(dispatchablePtr(device),
		C.uint64_t(rawHandle(pipeline)),
		C.uint32_t(firstGroup), C.uint32_t(groupCount),
		C.size_t(len(data)), unsafe.Pointer(&data[0])))
}

func cmdTraceRays(cmd vk.CommandBuffer, raygen, miss, hit, callable *stridedDeviceAddressRegion, width, height, depth uint32) {
	C.shimCmdTraceRays(dispatchablePtr(cmd),
		unsafe.Pointer(raygen), unsafe.Pointer(miss), unsafe.Pointer(hit), unsafe.Pointer(callable),
		C.uint32_t(width), C.uint32_t(height), C.uint32_t(depth))
}

func getBufferDeviceAddress(device vk.Device, buffer vk.Buffer) vk.DeviceAddress {
	info := bufferDeviceAddressInfo{
		SType:  vk.StructureTypeBufferDeviceAddressInfo,
		Buffer: rawHandle(buffer),
	}
	return vk.DeviceAddress(C.shimGetBufferDeviceAddress(dispatchablePtr(device), unsafe.Pointer(&info)))
}
