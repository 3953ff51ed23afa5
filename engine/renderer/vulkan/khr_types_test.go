package vulkan

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// The driver reads these structs through raw pointers, so every size and
// field offset must match the extension headers on 64-bit platforms.

func TestAccelerationStructLayouts(t *testing.T) {
	assert.Equal(t, uintptr(24), unsafe.Sizeof(stridedDeviceAddressRegion{}))

	assert.Equal(t, uintptr(64), unsafe.Sizeof(accelerationStructureGeometryTrianglesData{}))
	var tri accelerationStructureGeometryTrianglesData
	assert.Equal(t, uintptr(16), unsafe.Offsetof(tri.VertexFormat))
	assert.Equal(t, uintptr(24), unsafe.Offsetof(tri.VertexData))
	assert.Equal(t, uintptr(40), unsafe.Offsetof(tri.MaxVertex))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(tri.IndexData))

	assert.Equal(t, uintptr(32), unsafe.Sizeof(accelerationStructureGeometryInstancesData{}))

	assert.Equal(t, uintptr(96), unsafe.Sizeof(accelerationStructureGeometry{}))
	var geo accelerationStructureGeometry
	assert.Equal(t, uintptr(24), unsafe.Offsetof(geo.Triangles))
	assert.Equal(t, uintptr(88), unsafe.Offsetof(geo.Flags))

	assert.Equal(t, uintptr(80), unsafe.Sizeof(accelerationStructureBuildGeometryInfo{}))
	var build accelerationStructureBuildGeometryInfo
	assert.Equal(t, uintptr(32), unsafe.Offsetof(build.SrcAccelerationStructure))
	assert.Equal(t, uintptr(56), unsafe.Offsetof(build.PGeometries))
	assert.Equal(t, uintptr(72), unsafe.Offsetof(build.ScratchData))

	assert.Equal(t, uintptr(16), unsafe.Sizeof(accelerationStructureBuildRangeInfo{}))

	assert.Equal(t, uintptr(40), unsafe.Sizeof(accelerationStructureBuildSizesInfo{}))
	var sizes accelerationStructureBuildSizesInfo
	assert.Equal(t, uintptr(16), unsafe.Offsetof(sizes.AccelerationStructureSize))

	assert.Equal(t, uintptr(64), unsafe.Sizeof(accelerationStructureCreateInfo{}))
	var create accelerationStructureCreateInfo
	assert.Equal(t, uintptr(24), unsafe.Offsetof(create.Buffer))
	assert.Equal(t, uintptr(40), unsafe.Offsetof(create.Size))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(create.Type))

	assert.Equal(t, uintptr(24), unsafe.Sizeof(accelerationStructureDeviceAddressInfo{}))
	assert.Equal(t, uintptr(24), unsafe.Sizeof(bufferDeviceAddressInfo{}))
	assert.Equal(t, uintptr(32), unsafe.Sizeof(writeDescriptorSetAccelerationStructure{}))
}

func TestRayTracingPipelineLayouts(t *testing.T) {
	assert.Equal(t, uintptr(48), unsafe.Sizeof(pipelineShaderStageCreateInfo{}))
	var stage pipelineShaderStageCreateInfo
	assert.Equal(t, uintptr(24), unsafe.Offsetof(stage.Module))
	assert.Equal(t, uintptr(32), unsafe.Offsetof(stage.PName))

	assert.Equal(t, uintptr(48), unsafe.Sizeof(rayTracingShaderGroupCreateInfo{}))
	var group rayTracingShaderGroupCreateInfo
	assert.Equal(t, uintptr(40), unsafe.Offsetof(group.PShaderGroupCaptureReplayHandle))

	assert.Equal(t, uintptr(104), unsafe.Sizeof(rayTracingPipelineCreateInfo{}))
	var pipe rayTracingPipelineCreateInfo
	assert.Equal(t, uintptr(24), unsafe.Offsetof(pipe.PStages))
	assert.Equal(t, uintptr(40), unsafe.Offsetof(pipe.PGroups))
	assert.Equal(t, uintptr(80), unsafe.Offsetof(pipe.Layout))
}

func TestFeatureChainLayouts(t *testing.T) {
	assert.Equal(t, uintptr(96), unsafe.Sizeof(physicalDeviceDescriptorIndexingFeatures{}))
	var indexing physicalDeviceDescriptorIndexingFeatures
	assert.Equal(t, uintptr(84), unsafe.Offsetof(indexing.DescriptorBindingPartiallyBound))
	assert.Equal(t, uintptr(92), unsafe.Offsetof(indexing.RuntimeDescriptorArray))

	assert.Equal(t, uintptr(32), unsafe.Sizeof(physicalDeviceBufferDeviceAddressFeatures{}))
	assert.Equal(t, uintptr(40), unsafe.Sizeof(physicalDeviceAccelerationStructureFeatures{}))
	assert.Equal(t, uintptr(40), unsafe.Sizeof(physicalDeviceRayTracingPipelineFeatures{}))

	assert.Equal(t, uintptr(48), unsafe.Sizeof(physicalDeviceRayTracingPipelineProperties{}))
	var props physicalDeviceRayTracingPipelineProperties
	assert.Equal(t, uintptr(16), unsafe.Offsetof(props.ShaderGroupHandleSize))
	assert.Equal(t, uintptr(40), unsafe.Offsetof(props.ShaderGroupHandleAlignment))
}

func TestGeometryInstancesOverlay(t *testing.T) {
	geo := accelerationStructureGeometry{GeometryType: geometryTypeInstances}
	geo.setInstances(accelerationStructureGeometryInstancesData{Data: 0xDEADBEEF})

	overlaid := (*accelerationStructureGeometryInstancesData)(unsafe.Pointer(&geo.Triangles))
	assert.Equal(t, uint64(0xDEADBEEF), overlaid.Data)
}
