package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

// maxImageTextures bounds the variable-count sampled image array. Scenes
// bind only as many descriptors as they carry textures.
const maxImageTextures = 1024

// descriptorManager owns the set layouts, the pool and the allocated sets.
// One set exists per descriptor set index in the shader program; all of
// them live for the whole scene binding and are rewritten on BindScene.
type descriptorManager struct {
	ctx     *VulkanContext
	pool    vk.DescriptorPool
	layouts [shaders.SetCount]vk.DescriptorSetLayout
	sets    [shaders.SetCount]vk.DescriptorSet
}

func storageBufferBindings(count uint32, stages vk.ShaderStageFlags) []vk.DescriptorSetLayoutBinding {
	bindings := make([]vk.DescriptorSetLayoutBinding, count)
	for i := range bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      stages,
		}
	}
	return bindings
}

func newDescriptorManager(ctx *VulkanContext) (*descriptorManager, error) {
	m := &descriptorManager{ctx: ctx}

	hit := vk.ShaderStageFlags(vk.ShaderStageClosestHitBit)
	miss := vk.ShaderStageFlags(vk.ShaderStageMissBit)
	gen := vk.ShaderStageFlags(vk.ShaderStageRaygenBit)

	type setSpec struct {
		bindings []vk.DescriptorSetLayoutBinding
		variable bool
	}
	specs := [shaders.SetCount]setSpec{
		shaders.SetAccelerationStructure: {bindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeAccelerationStructure,
			DescriptorCount: 1,
			StageFlags:      gen | hit,
		}}},
		shaders.SetCamera: {bindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      gen,
		}}},
		shaders.SetStorageImage: {bindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			DescriptorCount: 1,
			StageFlags:      gen,
		}}},
		shaders.SetMeshData: {bindings: storageBufferBindings(3, gen | hit)},
		shaders.SetImageTextures: {bindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: maxImageTextures,
			StageFlags:      hit,
		}}, variable: true},
		shaders.SetConstantColours:    {bindings: storageBufferBindings(1, gen | hit | miss)},
		shaders.SetMaterials:          {bindings: storageBufferBindings(4, gen | hit)},
		shaders.SetProceduralTextures: {bindings: storageBufferBindings(2, hit)},
		shaders.SetSky: {bindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      miss,
		}}},
		shaders.SetLightAliasTable: {bindings: storageBufferBindings(1, gen | hit)},
	}

	for i, spec := range specs {
		createInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(spec.bindings)),
			PBindings:    spec.bindings,
		}
		if spec.variable {
			flags := []vk.DescriptorBindingFlags{
				vk.DescriptorBindingFlags(vk.DescriptorBindingVariableDescriptorCountBit | vk.DescriptorBindingPartiallyBoundBit),
			}
			flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
				SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
				BindingCount:  1,
				PBindingFlags: flags,
			}
			createInfo.PNext = unsafePtr(&flagsInfo)
		}
		if res := vk.CreateDescriptorSetLayout(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &m.layouts[i]); res != vk.Success {
			m.destroy()
			return nil, fmt.Errorf("vulkan: descriptor set layout %d creation failed: %s", i, vk.Error(res))
		}
	}

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeAccelerationStructure, DescriptorCount: 1},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 4},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: 2},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 16},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxImageTextures},
	}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       shaders.SetCount,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if res := vk.CreateDescriptorPool(ctx.Device.LogicalDevice, &poolCreateInfo, ctx.Allocator, &m.pool); res != vk.Success {
		m.destroy()
		return nil, fmt.Errorf("vulkan: descriptor pool creation failed: %s", vk.Error(res))
	}

	return m, nil
}

// allocateSets allocates one descriptor set per layout. imageCount sizes the
// variable-count texture array; it must not exceed maxImageTextures.
func (m *descriptorManager) allocateSets(imageCount uint32) error {
	m.freeSets()

	counts := make([]uint32, shaders.SetCount)
	counts[shaders.SetImageTextures] = imageCount
	countInfo := vk.DescriptorSetVariableDescriptorCountAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetVariableDescriptorCountAllocateInfo,
		DescriptorSetCount: shaders.SetCount,
		PDescriptorCounts:  counts,
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		PNext:              unsafePtr(&countInfo),
		DescriptorPool:     m.pool,
		DescriptorSetCount: shaders.SetCount,
		PSetLayouts:        m.layouts[:],
	}
	sets := make([]vk.DescriptorSet, shaders.SetCount)
	if res := vk.AllocateDescriptorSets(m.ctx.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		return fmt.Errorf("vulkan: descriptor set allocation failed: %s", vk.Error(res))
	}
	copy(m.sets[:], sets)
	return nil
}

func (m *descriptorManager) writeBuffer(set int, binding uint32, descriptorType vk.DescriptorType, buffer *VulkanBuffer) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          m.sets[set],
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Range:  vk.DeviceSize(vk.WholeSize),
		}},
	}
}

func (m *descriptorManager) writeStorageImage(view vk.ImageView) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          m.sets[shaders.SetStorageImage],
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}
	vk.UpdateDescriptorSets(m.ctx.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (m *descriptorManager) writeCamera(buffer *VulkanBuffer) {
	write := m.writeBuffer(shaders.SetCamera, 0, vk.DescriptorTypeUniformBuffer, buffer)
	vk.UpdateDescriptorSets(m.ctx.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// writeScene rewrites every scene-lifetime descriptor. The acceleration
// structure write chains the dedicated KHR info struct through PNext.
func (m *descriptorManager) writeScene(accel *VulkanAccelerationStructure, buffers sceneBuffers, textures []*VulkanImage, sampler vk.Sampler) {
	topLevel := accel.TopLevel
	accelInfo := writeDescriptorSetAccelerationStructure{
		SType:                      vk.StructureTypeWriteDescriptorSetAccelerationStructure,
		AccelerationStructureCount: 1,
		PAccelerationStructures:    uintptr(unsafe.Pointer(&topLevel)),
	}
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			PNext:           unsafePtr(&accelInfo),
			DstSet:          m.sets[shaders.SetAccelerationStructure],
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeAccelerationStructure,
		},
		m.writeBuffer(shaders.SetMeshData, 0, vk.DescriptorTypeStorageBuffer, buffers.meshVertices),
		m.writeBuffer(shaders.SetMeshData, 1, vk.DescriptorTypeStorageBuffer, buffers.meshIndices),
		m.writeBuffer(shaders.SetMeshData, 2, vk.DescriptorTypeStorageBuffer, buffers.meshRecords),
		m.writeBuffer(shaders.SetConstantColours, 0, vk.DescriptorTypeStorageBuffer, buffers.constantColours),
		m.writeBuffer(shaders.SetMaterials, 0, vk.DescriptorTypeStorageBuffer, buffers.lambertian),
		m.writeBuffer(shaders.SetMaterials, 1, vk.DescriptorTypeStorageBuffer, buffers.metal),
		m.writeBuffer(shaders.SetMaterials, 2, vk.DescriptorTypeStorageBuffer, buffers.dielectric),
		m.writeBuffer(shaders.SetMaterials, 3, vk.DescriptorTypeStorageBuffer, buffers.diffuseLight),
		m.writeBuffer(shaders.SetProceduralTextures, 0, vk.DescriptorTypeStorageBuffer, buffers.checker),
		m.writeBuffer(shaders.SetProceduralTextures, 1, vk.DescriptorTypeStorageBuffer, buffers.noise),
		m.writeBuffer(shaders.SetSky, 0, vk.DescriptorTypeUniformBuffer, buffers.sky),
		m.writeBuffer(shaders.SetLightAliasTable, 0, vk.DescriptorTypeStorageBuffer, buffers.lightAlias),
	}

	if len(textures) > 0 {
		imageInfos := make([]vk.DescriptorImageInfo, len(textures))
		for i, t := range textures {
			imageInfos[i] = vk.DescriptorImageInfo{
				Sampler:     sampler,
				ImageView:   t.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          m.sets[shaders.SetImageTextures],
			DstBinding:      0,
			DescriptorCount: uint32(len(imageInfos)),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      imageInfos,
		})
	}

	vk.UpdateDescriptorSets(m.ctx.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	runtime.KeepAlive(&topLevel)
}

func (m *descriptorManager) freeSets() {
	if m.sets[0] == vk.NullDescriptorSet {
		return
	}
	vk.FreeDescriptorSets(m.ctx.Device.LogicalDevice, m.pool, shaders.SetCount, &m.sets[0])
	for i := range m.sets {
		m.sets[i] = vk.NullDescriptorSet
	}
}

func (m *descriptorManager) destroy() {
	device := m.ctx.Device.LogicalDevice
	if m.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(device, m.pool, m.ctx.Allocator)
		m.pool = vk.NullDescriptorPool
	}
	for i, layout := range m.layouts {
		if layout != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(device, layout, m.ctx.Allocator)
			m.layouts[i] = vk.NullDescriptorSetLayout
		}
	}
}
