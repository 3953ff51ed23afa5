package vulkan

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

// VulkanAccelerationStructure owns the top-level structure together with
// every bottom-level structure and geometry buffer it references. Split
// ownership would let a bottom level die while the top level still points
// at it, so everything is destroyed through this one handle.
type VulkanAccelerationStructure struct {
	ctx       *VulkanContext
	TopLevel  AccelerationStructureHandle
	topBuffer *VulkanBuffer
	bottom    []bottomLevel
}

type bottomLevel struct {
	handle       AccelerationStructureHandle
	buffer       *VulkanBuffer
	vertexBuffer *VulkanBuffer
	indexBuffer  *VulkanBuffer
}

func (as *VulkanAccelerationStructure) Destroy() {
	device := as.ctx.Device.LogicalDevice
	if as.TopLevel != NullAccelerationStructureHandle {
		destroyAccelerationStructure(device, as.TopLevel)
		as.TopLevel = NullAccelerationStructureHandle
	}
	if as.topBuffer != nil {
		as.topBuffer.Destroy()
		as.topBuffer = nil
	}
	for i := range as.bottom {
		b := &as.bottom[i]
		if b.handle != NullAccelerationStructureHandle {
			destroyAccelerationStructure(device, b.handle)
			b.handle = NullAccelerationStructureHandle
		}
		if b.buffer != nil {
			b.buffer.Destroy()
		}
		if b.vertexBuffer != nil {
			b.vertexBuffer.Destroy()
		}
		if b.indexBuffer != nil {
			b.indexBuffer.Destroy()
		}
	}
	as.bottom = nil
}

// buildAccelerationStructures builds one bottom-level structure per mesh and
// a top-level structure over the instances. Builds run synchronously on the
// graphics queue, one submit per structure.
func buildAccelerationStructures(ctx *VulkanContext, meshes []gpu.MeshGeometry, instances []gpu.InstanceRecord) (*VulkanAccelerationStructure, error) {
	if len(meshes) == 0 {
		return nil, fmt.Errorf("vulkan: no meshes to build acceleration structures from")
	}

	as := &VulkanAccelerationStructure{ctx: ctx}
	for i, mesh := range meshes {
		bl, err := buildBottomLevel(ctx, fmt.Sprintf("blas-%d", i), mesh)
		if err != nil {
			as.Destroy()
			return nil, err
		}
		as.bottom = append(as.bottom, bl)
	}

	if err := as.buildTopLevel(instances); err != nil {
		as.Destroy()
		return nil, err
	}

	core.LogDebug("vulkan: built %d bottom-level structures, %d instances", len(as.bottom), len(instances))
	return as, nil
}

func buildBottomLevel(ctx *VulkanContext, label string, mesh gpu.MeshGeometry) (bottomLevel, error) {
	geometryUsage := vk.BufferUsageFlags(
		vk.BufferUsageAccelerationStructureBuildInputReadOnlyBit |
			vk.BufferUsageShaderDeviceAddressBit)

	vertexBuffer, err := newDeviceLocalBuffer(ctx, label+"-vertices", mesh.Vertices, geometryUsage)
	if err != nil {
		return bottomLevel{}, err
	}
	indexBuffer, err := newDeviceLocalBuffer(ctx, label+"-indices", mesh.Indices, geometryUsage)
	if err != nil {
		vertexBuffer.Destroy()
		return bottomLevel{}, err
	}

	geometry := accelerationStructureGeometry{
		SType:        vk.StructureTypeAccelerationStructureGeometry,
		GeometryType: geometryTypeTriangles,
		Triangles: accelerationStructureGeometryTrianglesData{
			SType:        vk.StructureTypeAccelerationStructureGeometryTrianglesData,
			VertexFormat: vk.FormatR32g32b32Sfloat,
			VertexData:   uint64(vertexBuffer.DeviceAddress()),
			VertexStride: uint64(shaders.MeshVertexSize),
			MaxVertex:    mesh.VertexCount - 1,
			IndexType:    vk.IndexTypeUint32,
			IndexData:    uint64(indexBuffer.DeviceAddress()),
		},
		Flags: geometryOpaque,
	}
	primitiveCount := mesh.IndexCount / 3

	bl := bottomLevel{vertexBuffer: vertexBuffer, indexBuffer: indexBuffer}
	handle, buffer, err := buildStructure(ctx, label, accelerationStructureTypeBottomLevel, geometry, primitiveCount)
	if err != nil {
		vertexBuffer.Destroy()
		indexBuffer.Destroy()
		return bottomLevel{}, err
	}
	bl.handle = handle
	bl.buffer = buffer
	return bl, nil
}

func (as *VulkanAccelerationStructure) buildTopLevel(instances []gpu.InstanceRecord) error {
	instanceData := make([]byte, 0, len(instances)*64)
	for _, inst := range instances {
		if int(inst.MeshIndex) >= len(as.bottom) {
			return fmt.Errorf("vulkan: instance references mesh %d of %d", inst.MeshIndex, len(as.bottom))
		}
		addr := getAccelerationStructureDeviceAddress(as.ctx.Device.LogicalDevice, as.bottom[inst.MeshIndex].handle)
		instanceData = append(instanceData, packInstance(inst.Transform, inst.MeshIndex, addr)...)
	}

	instanceBuffer, err := newDeviceLocalBuffer(as.ctx, "tlas-instances", instanceData,
		vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureBuildInputReadOnlyBit|vk.BufferUsageShaderDeviceAddressBit))
	if err != nil {
		return err
	}
	defer instanceBuffer.Destroy()

	geometry := accelerationStructureGeometry{
		SType:        vk.StructureTypeAccelerationStructureGeometry,
		GeometryType: geometryTypeInstances,
	}
	geometry.setInstances(accelerationStructureGeometryInstancesData{
		SType: vk.StructureTypeAccelerationStructureGeometryInstancesData,
		Data:  uint64(instanceBuffer.DeviceAddress()),
	})

	handle, buffer, err := buildStructure(as.ctx, "tlas", accelerationStructureTypeTopLevel, geometry, uint32(len(instances)))
	if err != nil {
		return err
	}
	as.TopLevel = handle
	as.topBuffer = buffer
	return nil
}

// buildStructure allocates backing storage and scratch for one structure
// and runs the build on the graphics queue.
func buildStructure(ctx *VulkanContext, label string, kind uint32, geometry accelerationStructureGeometry, primitiveCount uint32) (AccelerationStructureHandle, *VulkanBuffer, error) {
	geometries := []accelerationStructureGeometry{geometry}
	buildInfo := accelerationStructureBuildGeometryInfo{
		SType:         vk.StructureTypeAccelerationStructureBuildGeometryInfo,
		Type:          kind,
		Flags:         buildAccelerationStructurePreferFastTrace,
		Mode:          buildAccelerationStructureModeBuild,
		GeometryCount: 1,
		PGeometries:   uintptr(unsafe.Pointer(&geometries[0])),
	}

	sizeInfo := accelerationStructureBuildSizesInfo{
		SType: vk.StructureTypeAccelerationStructureBuildSizesInfo,
	}
	getAccelerationStructureBuildSizes(ctx.Device.LogicalDevice, &buildInfo, []uint32{primitiveCount}, &sizeInfo)

	buffer, err := newBuffer(ctx, label, sizeInfo.AccelerationStructureSize,
		vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureStorageBit|vk.BufferUsageShaderDeviceAddressBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return NullAccelerationStructureHandle, nil, err
	}

	createInfo := accelerationStructureCreateInfo{
		SType:  vk.StructureTypeAccelerationStructureCreateInfo,
		Buffer: rawHandle(buffer.Handle),
		Size:   sizeInfo.AccelerationStructureSize,
		Type:   kind,
	}
	handle, res := createAccelerationStructure(ctx.Device.LogicalDevice, &createInfo)
	if res != vk.Success {
		buffer.Destroy()
		return NullAccelerationStructureHandle, nil, fmt.Errorf("vulkan: creating %s failed: %s", label, vk.Error(res))
	}

	scratch, err := newBuffer(ctx, label+"-scratch", sizeInfo.BuildScratchSize,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageShaderDeviceAddressBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		destroyAccelerationStructure(ctx.Device.LogicalDevice, handle)
		buffer.Destroy()
		return NullAccelerationStructureHandle, nil, err
	}
	defer scratch.Destroy()

	buildInfo.DstAccelerationStructure = handle
	buildInfo.ScratchData = uint64(scratch.DeviceAddress())

	rangeInfo := accelerationStructureBuildRangeInfo{PrimitiveCount: primitiveCount}
	err = runOneTimeCommands(ctx, func(cmd vk.CommandBuffer) {
		cmdBuildAccelerationStructures(cmd,
			[]accelerationStructureBuildGeometryInfo{buildInfo},
			[]*accelerationStructureBuildRangeInfo{&rangeInfo})
	})
	runtime.KeepAlive(geometries)
	if err != nil {
		destroyAccelerationStructure(ctx.Device.LogicalDevice, handle)
		buffer.Destroy()
		return NullAccelerationStructureHandle, nil, err
	}

	return handle, buffer, nil
}

// packInstance serializes one VkAccelerationStructureInstanceKHR. The C
// struct carries 24/8 bit fields, so the record is packed by hand: a 3x4
// row-major transform, meshIndex|mask, sbtOffset|flags, then the
// bottom-level device address. 64 bytes total. The mesh index rides in the
// instance custom index so the hit shader can find its mesh record.
func packInstance(transform [3][4]float32, meshIndex uint32, blasAddress uint64) []byte {
	const instanceMask = 0xFF
	buf := make([]byte, 64)
	off := 0
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(transform[row][col]))
			off += 4
		}
	}
	binary.LittleEndian.PutUint32(buf[48:], meshIndex&0x00FFFFFF|uint32(instanceMask)<<24)
	binary.LittleEndian.PutUint32(buf[52:], geometryInstanceTriangleFacingCullDisable<<24)
	binary.LittleEndian.PutUint64(buf[56:], blasAddress)
	return buf
}
