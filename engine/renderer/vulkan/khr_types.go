package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Go-side mirrors of the VK_KHR_acceleration_structure and
// VK_KHR_ray_tracing_pipeline structs. The driver reads these through raw
// pointers, so field order and the explicit padding must reproduce the C
// layout on 64-bit platforms byte for byte; khr_types_test.go pins every
// size and offset. Nested pointers are stored as uintptr so the cgo
// checker does not reject structs referencing Go allocations; callers keep
// the referents alive across the call.

// AccelerationStructureHandle is a non-dispatchable VkAccelerationStructureKHR.
type AccelerationStructureHandle uint64

// NullAccelerationStructureHandle is the zero handle.
const NullAccelerationStructureHandle AccelerationStructureHandle = 0

const (
	accelerationStructureTypeTopLevel    uint32 = 0
	accelerationStructureTypeBottomLevel uint32 = 1

	accelerationStructureBuildTypeDevice uint32 = 1

	buildAccelerationStructureModeBuild       uint32 = 0
	buildAccelerationStructurePreferFastTrace uint32 = 0x4

	geometryTypeTriangles uint32 = 0
	geometryTypeInstances uint32 = 2

	geometryOpaque uint32 = 0x1

	geometryInstanceTriangleFacingCullDisable uint32 = 0x1

	rayTracingShaderGroupTypeGeneral           uint32 = 0
	rayTracingShaderGroupTypeTrianglesHitGroup uint32 = 1

	shaderUnused = ^uint32(0)
)

// stridedDeviceAddressRegion is VkStridedDeviceAddressRegionKHR.
type stridedDeviceAddressRegion struct {
	DeviceAddress uint64
	Stride        uint64
	Size          uint64
}

// accelerationStructureGeometryTrianglesData is
// VkAccelerationStructureGeometryTrianglesDataKHR with the device-or-host
// address unions collapsed to device addresses; builds here never read
// host memory.
type accelerationStructureGeometryTrianglesData struct {
	SType         vk.StructureType
	_             uint32
	PNext         uintptr
	VertexFormat  vk.Format
	_             uint32
	VertexData    uint64
	VertexStride  uint64
	MaxVertex     uint32
	IndexType     vk.IndexType
	IndexData     uint64
	TransformData uint64
}

// accelerationStructureGeometryInstancesData is
// VkAccelerationStructureGeometryInstancesDataKHR.
type accelerationStructureGeometryInstancesData struct {
	SType           vk.StructureType
	_               uint32
	PNext           uintptr
	ArrayOfPointers vk.Bool32
	_               uint32
	Data            uint64
}

// accelerationStructureGeometry is VkAccelerationStructureGeometryKHR. The
// C declaration holds a union of the three geometry variants; triangles is
// its largest member, so the instances variant is overlaid through
// setInstances.
type accelerationStructureGeometry struct {
	SType        vk.StructureType
	_            uint32
	PNext        uintptr
	GeometryType uint32
	_            uint32
	Triangles    accelerationStructureGeometryTrianglesData
	Flags        uint32
	_            uint32
}

func (g *accelerationStructureGeometry) setInstances(data accelerationStructureGeometryInstancesData) {
	*(*accelerationStructureGeometryInstancesData)(unsafe.Pointer(&g.Triangles)) = data
}

// accelerationStructureBuildGeometryInfo is
// VkAccelerationStructureBuildGeometryInfoKHR.
type accelerationStructureBuildGeometryInfo struct {
	SType                    vk.StructureType
	_                        uint32
	PNext                    uintptr
	Type                     uint32
	Flags                    uint32
	Mode                     uint32
	_                        uint32
	SrcAccelerationStructure AccelerationStructureHandle
	DstAccelerationStructure AccelerationStructureHandle
	GeometryCount            uint32
	_                        uint32
	PGeometries              uintptr
	PPGeometries             uintptr
	ScratchData              uint64
}

// accelerationStructureBuildRangeInfo is VkAccelerationStructureBuildRangeInfoKHR.
type accelerationStructureBuildRangeInfo struct {
	PrimitiveCount  uint32
	PrimitiveOffset uint32
	FirstVertex     uint32
	TransformOffset uint32
}

// accelerationStructureBuildSizesInfo is VkAccelerationStructureBuildSizesInfoKHR.
type accelerationStructureBuildSizesInfo struct {
	SType                     vk.StructureType
	_                         uint32
	PNext                     uintptr
	AccelerationStructureSize uint64
	UpdateScratchSize         uint64
	BuildScratchSize          uint64
}

// accelerationStructureCreateInfo is VkAccelerationStructureCreateInfoKHR.
type accelerationStructureCreateInfo struct {
	SType         vk.StructureType
	_             uint32
	PNext         uintptr
	CreateFlags   uint32
	_             uint32
	Buffer        uint64
	Offset        uint64
	Size          uint64
	Type          uint32
	_             uint32
	DeviceAddress uint64
}

// accelerationStructureDeviceAddressInfo is
// VkAccelerationStructureDeviceAddressInfoKHR.
type accelerationStructureDeviceAddressInfo struct {
	SType                 vk.StructureType
	_                     uint32
	PNext                 uintptr
	AccelerationStructure AccelerationStructureHandle
}

// bufferDeviceAddressInfo is VkBufferDeviceAddressInfo.
type bufferDeviceAddressInfo struct {
	SType  vk.StructureType
	_      uint32
	PNext  uintptr
	Buffer uint64
}

// writeDescriptorSetAccelerationStructure is
// VkWriteDescriptorSetAccelerationStructureKHR, chained behind a
// WriteDescriptorSet through PNext.
type writeDescriptorSetAccelerationStructure struct {
	SType                      vk.StructureType
	_                          uint32
	PNext                      uintptr
	AccelerationStructureCount uint32
	_                          uint32
	PAccelerationStructures    uintptr
}

// pipelineShaderStageCreateInfo is VkPipelineShaderStageCreateInfo laid
// out for direct driver consumption; the wrapped binding type carries Go
// strings and cannot be embedded in an extension struct array.
type pipelineShaderStageCreateInfo struct {
	SType               vk.StructureType
	_                   uint32
	PNext               uintptr
	Flags               uint32
	Stage               vk.ShaderStageFlagBits
	Module              uint64
	PName               uintptr
	PSpecializationInfo uintptr
}

// rayTracingShaderGroupCreateInfo is VkRayTracingShaderGroupCreateInfoKHR.
type rayTracingShaderGroupCreateInfo struct {
	SType                           vk.StructureType
	_                               uint32
	PNext                           uintptr
	Type                            uint32
	GeneralShader                   uint32
	ClosestHitShader                uint32
	AnyHitShader                    uint32
	IntersectionShader              uint32
	_                               uint32
	PShaderGroupCaptureReplayHandle uintptr
}

// rayTracingPipelineCreateInfo is VkRayTracingPipelineCreateInfoKHR.
type rayTracingPipelineCreateInfo struct {
	SType                        vk.StructureType
	_                            uint32
	PNext                        uintptr
	Flags                        uint32
	StageCount                   uint32
	PStages                      uintptr
	GroupCount                   uint32
	_                            uint32
	PGroups                      uintptr
	MaxPipelineRayRecursionDepth uint32
	_                            uint32
	PLibraryInfo                 uintptr
	PLibraryInterface            uintptr
	PDynamicState                uintptr
	Layout                       uint64
	BasePipelineHandle           uint64
	BasePipelineIndex            int32
	_                            uint32
}

// The device-creation feature chain is read by the driver in C layout, so
// every link in it must mirror the C structs, including the two core
// feature structs the extensions sit on top of.

// physicalDeviceDescriptorIndexingFeatures is
// VkPhysicalDeviceDescriptorIndexingFeatures.
type physicalDeviceDescriptorIndexingFeatures struct {
	SType                                              vk.StructureType
	_                                                  uint32
	PNext                                              uintptr
	ShaderInputAttachmentArrayDynamicIndexing          vk.Bool32
	ShaderUniformTexelBufferArrayDynamicIndexing       vk.Bool32
	ShaderStorageTexelBufferArrayDynamicIndexing       vk.Bool32
	ShaderUniformBufferArrayNonUniformIndexing         vk.Bool32
	ShaderSampledImageArrayNonUniformIndexing          vk.Bool32
	ShaderStorageBufferArrayNonUniformIndexing         vk.Bool32
	ShaderStorageImageArrayNonUniformIndexing          vk.Bool32
	ShaderInputAttachmentArrayNonUniformIndexing       vk.Bool32
	ShaderUniformTexelBufferArrayNonUniformIndexing    vk.Bool32
	ShaderStorageTexelBufferArrayNonUniformIndexing    vk.Bool32
	DescriptorBindingUniformBufferUpdateAfterBind      vk.Bool32
	DescriptorBindingSampledImageUpdateAfterBind       vk.Bool32
	DescriptorBindingStorageImageUpdateAfterBind       vk.Bool32
	DescriptorBindingStorageBufferUpdateAfterBind      vk.Bool32
	DescriptorBindingUniformTexelBufferUpdateAfterBind vk.Bool32
	DescriptorBindingStorageTexelBufferUpdateAfterBind vk.Bool32
	DescriptorBindingUpdateUnusedWhilePending          vk.Bool32
	DescriptorBindingPartiallyBound                    vk.Bool32
	DescriptorBindingVariableDescriptorCount           vk.Bool32
	RuntimeDescriptorArray                             vk.Bool32
}

// physicalDeviceBufferDeviceAddressFeatures is
// VkPhysicalDeviceBufferDeviceAddressFeatures.
type physicalDeviceBufferDeviceAddressFeatures struct {
	SType                            vk.StructureType
	_                                uint32
	PNext                            uintptr
	BufferDeviceAddress              vk.Bool32
	BufferDeviceAddressCaptureReplay vk.Bool32
	BufferDeviceAddressMultiDevice   vk.Bool32
	_                                uint32
}

// physicalDeviceAccelerationStructureFeatures is
// VkPhysicalDeviceAccelerationStructureFeaturesKHR.
type physicalDeviceAccelerationStructureFeatures struct {
	SType                                                 vk.StructureType
	_                                                     uint32
	PNext                                                 uintptr
	AccelerationStructure                                 vk.Bool32
	AccelerationStructureCaptureReplay                    vk.Bool32
	AccelerationStructureIndirectBuild                    vk.Bool32
	AccelerationStructureHostCommands                     vk.Bool32
	DescriptorBindingAccelerationStructureUpdateAfterBind vk.Bool32
	_                                                     uint32
}

// physicalDeviceRayTracingPipelineFeatures is
// VkPhysicalDeviceRayTracingPipelineFeaturesKHR.
type physicalDeviceRayTracingPipelineFeatures struct {
	SType                                                 vk.StructureType
	_                                                     uint32
	PNext                                                 uintptr
	RayTracingPipeline                                    vk.Bool32
	RayTracingPipelineShaderGroupHandleCaptureReplay      vk.Bool32
	RayTracingPipelineShaderGroupHandleCaptureReplayMixed vk.Bool32
	RayTracingPipelineTraceRaysIndirect                   vk.Bool32
	RayTraversalPrimitiveCulling                          vk.Bool32
	_                                                     uint32
}

// physicalDeviceRayTracingPipelineProperties is
// VkPhysicalDeviceRayTracingPipelinePropertiesKHR, written by the driver
// through a PhysicalDeviceProperties2 chain.
type physicalDeviceRayTracingPipelineProperties struct {
	SType                              vk.StructureType
	_                                  uint32
	PNext                              uintptr
	ShaderGroupHandleSize              uint32
	MaxRayRecursionDepth               uint32
	MaxShaderGroupStride               uint32
	ShaderGroupBaseAlignment           uint32
	ShaderGroupHandleCaptureReplaySize uint32
	MaxRayDispatchInvocationCount      uint32
	ShaderGroupHandleAlignment         uint32
	MaxRayHitAttributeSize             uint32
}
