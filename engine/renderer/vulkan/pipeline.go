package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

// shader group order inside the ray-tracing pipeline. The binding table
// regions are carved out of one buffer in this order.
const (
	groupRayGen = iota
	groupMiss
	groupHit
	groupCount
)

func newShaderModule(ctx *VulkanContext, code []byte) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &module); res != vk.Success {
		return vk.NullShaderModule, fmt.Errorf("vulkan: shader module creation failed: %s", vk.Error(res))
	}
	return module, nil
}

// rayTracingPipeline owns the trace pipeline, its layout and the shader
// binding table regions handed to the trace call.
type rayTracingPipeline struct {
	ctx    *VulkanContext
	Handle vk.Pipeline
	Layout vk.PipelineLayout

	bindingTable *VulkanBuffer
	RayGenRegion stridedDeviceAddressRegion
	MissRegion   stridedDeviceAddressRegion
	HitRegion    stridedDeviceAddressRegion
	CallRegion   stridedDeviceAddressRegion
}

func newRayTracingPipeline(ctx *VulkanContext, program *shaders.Program, setLayouts []vk.DescriptorSetLayout) (*rayTracingPipeline, error) {
	rayGen, err := newShaderModule(ctx, program.RayGen)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(ctx.Device.LogicalDevice, rayGen, ctx.Allocator)
	rayMiss, err := newShaderModule(ctx, program.RayMiss)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(ctx.Device.LogicalDevice, rayMiss, ctx.Allocator)
	closestHit, err := newShaderModule(ctx, program.ClosestHit)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(ctx.Device.LogicalDevice, closestHit, ctx.Allocator)

	pushRanges := []vk.PushConstantRange{
		{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageRaygenBit),
			Offset:     shaders.RayGenPushConstantsOffset,
			Size:       shaders.RayGenPushConstantsSize,
		},
		{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageClosestHitBit),
			Offset:     shaders.ClosestHitPushConstantsOffset,
			Size:       shaders.ClosestHitPushConstantsSize,
		},
	}
	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushRanges)),
		PPushConstantRanges:    pushRanges,
	}
	p := &rayTracingPipeline{ctx: ctx}
	if res := vk.CreatePipelineLayout(ctx.Device.LogicalDevice, &layoutCreateInfo, ctx.Allocator, &p.Layout); res != vk.Success {
		return nil, fmt.Errorf("vulkan: ray-tracing pipeline layout creation failed: %s", vk.Error(res))
	}

	stages := []pipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageRaygenBit,
			Module: rawHandle(rayGen),
			PName:  shaderEntryPoint,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageMissBit,
			Module: rawHandle(rayMiss),
			PName:  shaderEntryPoint,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageClosestHitBit,
			Module: rawHandle(closestHit),
			PName:  shaderEntryPoint,
		},
	}
	groups := make([]rayTracingShaderGroupCreateInfo, groupCount)
	groups[groupRayGen] = rayTracingShaderGroupCreateInfo{
		SType:              vk.StructureTypeRayTracingShaderGroupCreateInfo,
		Type:               rayTracingShaderGroupTypeGeneral,
		GeneralShader:      0,
		ClosestHitShader:   shaderUnused,
		AnyHitShader:       shaderUnused,
		IntersectionShader: shaderUnused,
	}
	groups[groupMiss] = rayTracingShaderGroupCreateInfo{
		SType:              vk.StructureTypeRayTracingShaderGroupCreateInfo,
		Type:               rayTracingShaderGroupTypeGeneral,
		GeneralShader:      1,
		ClosestHitShader:   shaderUnused,
		AnyHitShader:       shaderUnused,
		IntersectionShader: shaderUnused,
	}
	groups[groupHit] = rayTracingShaderGroupCreateInfo{
		SType:              vk.StructureTypeRayTracingShaderGroupCreateInfo,
		Type:               rayTracingShaderGroupTypeTrianglesHitGroup,
		GeneralShader:      shaderUnused,
		ClosestHitShader:   2,
		AnyHitShader:       shaderUnused,
		IntersectionShader: shaderUnused,
	}

	createInfo := rayTracingPipelineCreateInfo{
		SType:                        vk.StructureTypeRayTracingPipelineCreateInfo,
		StageCount:                   uint32(len(stages)),
		PStages:                      uintptr(unsafe.Pointer(&stages[0])),
		GroupCount:                   uint32(len(groups)),
		PGroups:                      uintptr(unsafe.Pointer(&groups[0])),
		MaxPipelineRayRecursionDepth: 1,
		Layout:                       rawHandle(p.Layout),
	}
	pipelines, res := createRayTracingPipelines(ctx.Device.LogicalDevice, []rayTracingPipelineCreateInfo{createInfo})
	runtime.KeepAlive(stages)
	runtime.KeepAlive(groups)
	if res != vk.Success {
		p.destroy()
		return nil, fmt.Errorf("vulkan: ray-tracing pipeline creation failed: %s", vk.Error(res))
	}
	p.Handle = pipelines[0]

	if err := p.buildBindingTable(); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

// buildBindingTable copies the group handles into one device buffer with
// each region starting on a base-aligned offset.
func (p *rayTracingPipeline) buildBindingTable() error {
	d := &p.ctx.Device
	handleSize := uint64(d.ShaderGroupHandleSize)
	stride := alignUp(handleSize, uint64(d.ShaderGroupHandleAlignment))
	regionSize := alignUp(stride, uint64(d.ShaderGroupBaseAlignment))

	handles := make([]byte, groupCount*int(handleSize))
	if res := getRayTracingShaderGroupHandles(d.LogicalDevice, p.Handle, 0, groupCount, handles); res != vk.Success {
		return fmt.Errorf("vulkan: fetching shader group handles failed: %s", vk.Error(res))
	}

	table := make([]byte, regionSize*groupCount)
	for g := 0; g < groupCount; g++ {
		copy(table[uint64(g)*regionSize:], handles[uint64(g)*handleSize:uint64(g+1)*handleSize])
	}

	buffer, err := newDeviceLocalBuffer(p.ctx, "shader-binding-table", table,
		vk.BufferUsageFlags(vk.BufferUsageShaderBindingTableBit|vk.BufferUsageShaderDeviceAddressBit))
	if err != nil {
		return err
	}
	p.bindingTable = buffer

	base := uint64(buffer.DeviceAddress())
	region := func(group int) stridedDeviceAddressRegion {
		return stridedDeviceAddressRegion{
			DeviceAddress: base + uint64(group)*regionSize,
			Stride:        stride,
			Size:          regionSize,
		}
	}
	p.RayGenRegion = region(groupRayGen)
	p.MissRegion = region(groupMiss)
	p.HitRegion = region(groupHit)
	p.CallRegion = stridedDeviceAddressRegion{}
	return nil
}

func (p *rayTracingPipeline) destroy() {
	device := p.ctx.Device.LogicalDevice
	if p.bindingTable != nil {
		p.bindingTable.Destroy()
		p.bindingTable = nil
	}
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(device, p.Handle, p.ctx.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, p.Layout, p.ctx.Allocator)
		p.Layout = vk.NullPipelineLayout
	}
}

// resolvePipeline draws a fullscreen triangle that samples the accumulation
// image into the swapchain image.
type resolvePipeline struct {
	ctx        *VulkanContext
	RenderPass vk.RenderPass
	Handle     vk.Pipeline
	Layout     vk.PipelineLayout

	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	Set       vk.DescriptorSet
	Sampler   vk.Sampler
}

func newResolvePipeline(ctx *VulkanContext, program *shaders.Program, colorFormat vk.Format) (*resolvePipeline, error) {
	p := &resolvePipeline{ctx: ctx}

	if err := p.createRenderPass(colorFormat); err != nil {
		return nil, err
	}
	if err := p.createDescriptors(); err != nil {
		p.destroy()
		return nil, err
	}
	if err := p.createPipeline(program); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

func (p *resolvePipeline) createRenderPass(colorFormat vk.Format) error {
	attachment := vk.AttachmentDescription{
		Format:        colorFormat,
		Samples:       vk.SampleCount1Bit,
		LoadOp:        vk.AttachmentLoadOpClear,
		StoreOp:       vk.AttachmentStoreOpStore,
		StencilLoadOp: vk.AttachmentLoadOpDontCare,
		InitialLayout: vk.ImageLayoutUndefined,
		FinalLayout:   vk.ImageLayoutPresentSrc,
	}
	colorRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorRef},
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageRayTracingShaderBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
	}
	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{attachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	if res := vk.CreateRenderPass(p.ctx.Device.LogicalDevice, &createInfo, p.ctx.Allocator, &p.RenderPass); res != vk.Success {
		return fmt.Errorf("vulkan: resolve render pass creation failed: %s", vk.Error(res))
	}
	return nil
}

func (p *resolvePipeline) createDescriptors() error {
	device := p.ctx.Device.LogicalDevice

	samplerCreateInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterNearest,
		MinFilter:    vk.FilterNearest,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
	}
	if res := vk.CreateSampler(device, &samplerCreateInfo, p.ctx.Allocator, &p.Sampler); res != vk.Success {
		return fmt.Errorf("vulkan: resolve sampler creation failed: %s", vk.Error(res))
	}

	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}
	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}
	if res := vk.CreateDescriptorSetLayout(device, &layoutCreateInfo, p.ctx.Allocator, &p.setLayout); res != vk.Success {
		return fmt.Errorf("vulkan: resolve set layout creation failed: %s", vk.Error(res))
	}

	poolSize := vk.DescriptorPoolSize{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes:    []vk.DescriptorPoolSize{poolSize},
	}
	if res := vk.CreateDescriptorPool(device, &poolCreateInfo, p.ctx.Allocator, &p.pool); res != vk.Success {
		return fmt.Errorf("vulkan: resolve descriptor pool creation failed: %s", vk.Error(res))
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{p.setLayout},
	}
	if res := vk.AllocateDescriptorSets(device, &allocInfo, &p.Set); res != vk.Success {
		return fmt.Errorf("vulkan: resolve descriptor set allocation failed: %s", vk.Error(res))
	}
	return nil
}

func (p *resolvePipeline) createPipeline(program *shaders.Program) error {
	device := p.ctx.Device.LogicalDevice

	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.setLayout},
	}
	if res := vk.CreatePipelineLayout(device, &layoutCreateInfo, p.ctx.Allocator, &p.Layout); res != vk.Success {
		return fmt.Errorf("vulkan: resolve pipeline layout creation failed: %s", vk.Error(res))
	}

	vert, err := newShaderModule(p.ctx, program.ResolveVert)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(device, vert, p.ctx.Allocator)
	frag, err := newShaderModule(p.ctx, program.ResolveFrag)
	if err != nil {
		return err
	}
	defer vk.DestroyShaderModule(device, frag, p.ctx.Allocator)

	entry := safeString("main")
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vert,
			PName:  entry,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  entry,
		},
	}

	// The vertex stage synthesizes a fullscreen triangle from gl_VertexIndex;
	// no vertex buffers are bound.
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}
	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              p.Layout,
		RenderPass:          p.RenderPass,
	}
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{createInfo}, p.ctx.Allocator, pipelines)
	if res != vk.Success {
		return fmt.Errorf("vulkan: resolve pipeline creation failed: %s", vk.Error(res))
	}
	p.Handle = pipelines[0]
	return nil
}

// bindSource points the resolve set at the accumulation image. Called after
// every accumulation image (re)creation.
func (p *resolvePipeline) bindSource(img *VulkanImage) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          p.Set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     p.Sampler,
			ImageView:   img.View,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}
	vk.UpdateDescriptorSets(p.ctx.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (p *resolvePipeline) destroy() {
	device := p.ctx.Device.LogicalDevice
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(device, p.Handle, p.ctx.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, p.Layout, p.ctx.Allocator)
		p.Layout = vk.NullPipelineLayout
	}
	if p.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(device, p.pool, p.ctx.Allocator)
		p.pool = vk.NullDescriptorPool
	}
	if p.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, p.setLayout, p.ctx.Allocator)
		p.setLayout = vk.NullDescriptorSetLayout
	}
	if p.Sampler != vk.NullSampler {
		vk.DestroySampler(device, p.Sampler, p.ctx.Allocator)
		p.Sampler = vk.NullSampler
	}
	if p.RenderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(device, p.RenderPass, p.ctx.Allocator)
		p.RenderPass = vk.NullRenderPass
	}
}
