package vulkan

import (
	"fmt"
	"image"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

// Options configure backend creation. CreateSurface and
// GetInstanceProcAddr are supplied by the windowing layer so this package
// never links against it.
type Options struct {
	AppName             string
	InstanceExtensions  []string
	CreateSurface       func(vk.Instance) (vk.Surface, error)
	GetInstanceProcAddr unsafe.Pointer
	Width, Height       uint32
	ShaderDir           string
	EnableValidation    bool
}

// Backend implements gpu.Device on Vulkan hardware ray tracing.
type Backend struct {
	ctx *VulkanContext

	swapchain    *VulkanSwapchain
	accumulation *VulkanImage
	descriptors  *descriptorManager
	trace        *rayTracingPipeline
	resolve      *resolvePipeline

	textureSampler vk.Sampler
	cameraBuffer   *VulkanBuffer

	cmd            vk.CommandBuffer
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       *VulkanFence

	sceneBound bool
}

// sceneBuffers are the scene-lifetime buffers downcast to their Vulkan
// types, in descriptor write order.
type sceneBuffers struct {
	meshVertices    *VulkanBuffer
	meshIndices     *VulkanBuffer
	meshRecords     *VulkanBuffer
	constantColours *VulkanBuffer
	lambertian      *VulkanBuffer
	metal           *VulkanBuffer
	dielectric      *VulkanBuffer
	diffuseLight    *VulkanBuffer
	checker         *VulkanBuffer
	noise           *VulkanBuffer
	sky             *VulkanBuffer
	lightAlias      *VulkanBuffer
}

// New brings up the whole backend: instance, surface, device, swapchain,
// accumulation target, pipelines and per-frame synchronization.
func New(opts Options) (*Backend, error) {
	program, err := shaders.LoadProgram(opts.ShaderDir)
	if err != nil {
		return nil, err
	}

	ctx, err := NewContext(opts.AppName, opts.InstanceExtensions, opts.EnableValidation)
	if err != nil {
		return nil, err
	}
	ctx.InstanceProcAddr = opts.GetInstanceProcAddr
	b := &Backend{ctx: ctx}

	surface, err := opts.CreateSurface(ctx.Instance)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	ctx.Surface = surface

	if err := DeviceCreate(ctx); err != nil {
		b.Destroy()
		return nil, err
	}

	if b.swapchain, err = newSwapchain(ctx, opts.Width, opts.Height); err != nil {
		b.Destroy()
		return nil, err
	}
	if b.accumulation, err = newAccumulationImage(ctx, b.swapchain.Extent.Width, b.swapchain.Extent.Height); err != nil {
		b.Destroy()
		return nil, err
	}
	if b.descriptors, err = newDescriptorManager(ctx); err != nil {
		b.Destroy()
		return nil, err
	}
	if b.trace, err = newRayTracingPipeline(ctx, program, b.descriptors.layouts[:]); err != nil {
		b.Destroy()
		return nil, err
	}
	if b.resolve, err = newResolvePipeline(ctx, program, b.swapchain.Format); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.swapchain.createFramebuffers(ctx, b.resolve.RenderPass); err != nil {
		b.Destroy()
		return nil, err
	}
	b.resolve.bindSource(b.accumulation)

	if err := b.createSceneSampler(); err != nil {
		b.Destroy()
		return nil, err
	}
	if b.cameraBuffer, err = newHostVisibleBuffer(ctx, "camera", make([]byte, shaders.CameraSize),
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.createFrameSync(); err != nil {
		b.Destroy()
		return nil, err
	}

	core.LogInfo("vulkan: backend ready at %dx%d", b.swapchain.Extent.Width, b.swapchain.Extent.Height)
	return b, nil
}

func (b *Backend) createSceneSampler() error {
	createInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		MaxLod:       vk.LodClampNone,
	}
	if res := vk.CreateSampler(b.ctx.Device.LogicalDevice, &createInfo, b.ctx.Allocator, &b.textureSampler); res != vk.Success {
		return fmt.Errorf("vulkan: scene sampler creation failed: %s", vk.Error(res))
	}
	return nil
}

func (b *Backend) createFrameSync() error {
	device := b.ctx.Device.LogicalDevice
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	if res := vk.CreateSemaphore(device, &semaphoreCreateInfo, b.ctx.Allocator, &b.imageAvailable); res != vk.Success {
		return fmt.Errorf("vulkan: semaphore creation failed: %s", vk.Error(res))
	}
	if res := vk.CreateSemaphore(device, &semaphoreCreateInfo, b.ctx.Allocator, &b.renderFinished); res != vk.Success {
		return fmt.Errorf("vulkan: semaphore creation failed: %s", vk.Error(res))
	}
	fence, err := newFence(b.ctx, true)
	if err != nil {
		return err
	}
	b.inFlight = fence

	cmd, err := allocateCommandBuffer(b.ctx)
	if err != nil {
		return err
	}
	b.cmd = cmd
	return nil
}

func (b *Backend) SurfaceSize() (uint32, uint32) {
	return b.ctx.FramebufferWidth, b.ctx.FramebufferHeight
}

func (b *Backend) CreateStorageBuffer(name string, data []byte) (gpu.Buffer, error) {
	return newDeviceLocalBuffer(b.ctx, name, data, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit))
}

func (b *Backend) CreateUniformBuffer(name string, data []byte) (gpu.Buffer, error) {
	return newDeviceLocalBuffer(b.ctx, name, data, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
}

func (b *Backend) CreateTexture(name string, img *image.RGBA) (gpu.Texture, error) {
	return newTextureImage(b.ctx, name, img)
}

func (b *Backend) BuildAccelerationStructures(meshes []gpu.MeshGeometry, instances []gpu.InstanceRecord) (gpu.AccelerationStructure, error) {
	return buildAccelerationStructures(b.ctx, meshes, instances)
}

func vulkanBuffer(buf gpu.Buffer) (*VulkanBuffer, error) {
	vb, ok := buf.(*VulkanBuffer)
	if !ok || vb == nil {
		return nil, fmt.Errorf("vulkan: scene binding is not a vulkan buffer")
	}
	return vb, nil
}

// BindScene rewrites every scene-lifetime descriptor. The device is idled
// first so no in-flight batch observes the swap.
func (b *Backend) BindScene(bindings *gpu.SceneBindings) error {
	if err := b.WaitIdle(); err != nil {
		return err
	}

	accel, ok := bindings.Acceleration.(*VulkanAccelerationStructure)
	if !ok || accel == nil {
		return fmt.Errorf("vulkan: scene binding carries no acceleration structure")
	}

	var bufs sceneBuffers
	for _, pair := range []struct {
		src gpu.Buffer
		dst **VulkanBuffer
	}{
		{bindings.MeshVertices, &bufs.meshVertices},
		{bindings.MeshIndices, &bufs.meshIndices},
		{bindings.MeshRecords, &bufs.meshRecords},
		{bindings.ConstantColour, &bufs.constantColours},
		{bindings.Lambertian, &bufs.lambertian},
		{bindings.Metal, &bufs.metal},
		{bindings.Dielectric, &bufs.dielectric},
		{bindings.DiffuseLight, &bufs.diffuseLight},
		{bindings.Checker, &bufs.checker},
		{bindings.Noise, &bufs.noise},
		{bindings.Sky, &bufs.sky},
		{bindings.LightAlias, &bufs.lightAlias},
	} {
		vb, err := vulkanBuffer(pair.src)
		if err != nil {
			return err
		}
		*pair.dst = vb
	}

	textures := make([]*VulkanImage, len(bindings.ImageTextures))
	for i, t := range bindings.ImageTextures {
		img, ok := t.(*VulkanImage)
		if !ok || img == nil {
			return fmt.Errorf("vulkan: scene texture %d is not a vulkan image", i)
		}
		textures[i] = img
	}
	if len(textures) > maxImageTextures {
		return fmt.Errorf("vulkan: scene carries %d image textures, limit is %d", len(textures), maxImageTextures)
	}

	if err := b.descriptors.allocateSets(uint32(len(textures))); err != nil {
		return err
	}
	b.descriptors.writeScene(accel, bufs, textures, b.textureSampler)
	b.descriptors.writeCamera(b.cameraBuffer)
	b.descriptors.writeStorageImage(b.accumulation.View)
	b.sceneBound = true
	return nil
}

// Resize recreates the presentation chain and the accumulation target for
// the new drawable size.
func (b *Backend) Resize(width, height uint32) (uint32, uint32, error) {
	if err := b.WaitIdle(); err != nil {
		return 0, 0, err
	}

	b.accumulation.Destroy()
	b.swapchain.destroy(b.ctx)

	swapchain, err := newSwapchain(b.ctx, width, height)
	if err != nil {
		return 0, 0, err
	}
	b.swapchain = swapchain
	if err := b.swapchain.createFramebuffers(b.ctx, b.resolve.RenderPass); err != nil {
		return 0, 0, err
	}

	if b.accumulation, err = newAccumulationImage(b.ctx, swapchain.Extent.Width, swapchain.Extent.Height); err != nil {
		return 0, 0, err
	}
	b.resolve.bindSource(b.accumulation)
	if b.sceneBound {
		b.descriptors.writeStorageImage(b.accumulation.View)
	}

	return swapchain.Extent.Width, swapchain.Extent.Height, nil
}

// RenderBatch traces one sample batch into the accumulation image, resolves
// it into the next swapchain image and presents.
func (b *Backend) RenderBatch(p *gpu.BatchParams) error {
	if !b.sceneBound {
		return fmt.Errorf("vulkan: no scene bound")
	}
	if len(p.PushConstants) != shaders.PushConstantsSize {
		return fmt.Errorf("vulkan: push constant block is %d bytes, want %d", len(p.PushConstants), shaders.PushConstantsSize)
	}

	if err := b.inFlight.Wait(b.ctx); err != nil {
		return err
	}
	if err := b.cameraBuffer.write(p.Camera); err != nil {
		return err
	}

	imageIndex, err := b.swapchain.acquireNextImage(b.ctx, b.imageAvailable)
	if err != nil {
		return err
	}
	if err := b.inFlight.Reset(b.ctx); err != nil {
		return err
	}

	if err := b.recordBatch(p, imageIndex); err != nil {
		return err
	}

	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{b.imageAvailable},
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{b.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.renderFinished},
	}
	res := vk.QueueSubmit(b.ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, b.inFlight.Handle)
	switch res {
	case vk.Success:
	case vk.ErrorDeviceLost:
		return core.ErrDeviceLost
	default:
		return fmt.Errorf("vulkan: batch submit failed: %s", vk.Error(res))
	}

	return b.swapchain.present(b.ctx, b.renderFinished, imageIndex)
}

func (b *Backend) recordBatch(p *gpu.BatchParams, imageIndex uint32) error {
	vk.ResetCommandBuffer(b.cmd, 0)
	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if res := vk.BeginCommandBuffer(b.cmd, &beginInfo); res != vk.Success {
		return fmt.Errorf("vulkan: command buffer begin failed: %s", vk.Error(res))
	}

	vk.CmdBindPipeline(b.cmd, vk.PipelineBindPointRayTracing, b.trace.Handle)
	vk.CmdBindDescriptorSets(b.cmd, vk.PipelineBindPointRayTracing, b.trace.Layout,
		0, shaders.SetCount, b.descriptors.sets[:], 0, nil)
	vk.CmdPushConstants(b.cmd, b.trace.Layout, vk.ShaderStageFlags(vk.ShaderStageRaygenBit),
		shaders.RayGenPushConstantsOffset, shaders.RayGenPushConstantsSize,
		unsafePtr(&p.PushConstants[0]))
	vk.CmdPushConstants(b.cmd, b.trace.Layout, vk.ShaderStageFlags(vk.ShaderStageClosestHitBit),
		shaders.ClosestHitPushConstantsOffset, shaders.ClosestHitPushConstantsSize,
		unsafePtr(&p.PushConstants[shaders.ClosestHitPushConstantsOffset]))

	cmdTraceRays(b.cmd,
		&b.trace.RayGenRegion, &b.trace.MissRegion, &b.trace.HitRegion, &b.trace.CallRegion,
		b.swapchain.Extent.Width, b.swapchain.Extent.Height, 1)

	clear := vk.NewClearValue([]float32{0, 0, 0, 1})
	renderPassBegin := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      b.resolve.RenderPass,
		Framebuffer:     b.swapchain.Framebuffers[imageIndex],
		RenderArea:      vk.Rect2D{Extent: b.swapchain.Extent},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{clear},
	}
	vk.CmdBeginRenderPass(b.cmd, &renderPassBegin, vk.SubpassContentsInline)

	viewport := vk.Viewport{
		Width:    float32(b.swapchain.Extent.Width),
		Height:   float32(b.swapchain.Extent.Height),
		MaxDepth: 1,
	}
	vk.CmdSetViewport(b.cmd, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(b.cmd, 0, 1, []vk.Rect2D{{Extent: b.swapchain.Extent}})
	vk.CmdBindPipeline(b.cmd, vk.PipelineBindPointGraphics, b.resolve.Handle)
	vk.CmdBindDescriptorSets(b.cmd, vk.PipelineBindPointGraphics, b.resolve.Layout,
		0, 1, []vk.DescriptorSet{b.resolve.Set}, 0, nil)
	vk.CmdDraw(b.cmd, 3, 1, 0, 0)
	vk.CmdEndRenderPass(b.cmd)

	if res := vk.EndCommandBuffer(b.cmd); res != vk.Success {
		return fmt.Errorf("vulkan: command buffer end failed: %s", vk.Error(res))
	}
	return nil
}

func (b *Backend) WaitIdle() error {
	return b.ctx.Device.WaitIdle()
}

// Destroy tears the backend down in reverse creation order. Scene-lifetime
// resources are the render engine's to destroy before this is called.
func (b *Backend) Destroy() {
	if b.ctx == nil {
		return
	}
	if b.ctx.Device.LogicalDevice != nil {
		b.WaitIdle()
	}
	device := b.ctx.Device.LogicalDevice

	if b.inFlight != nil {
		b.inFlight.Destroy(b.ctx)
		b.inFlight = nil
	}
	if b.imageAvailable != vk.NullSemaphore {
		vk.DestroySemaphore(device, b.imageAvailable, b.ctx.Allocator)
		b.imageAvailable = vk.NullSemaphore
	}
	if b.renderFinished != vk.NullSemaphore {
		vk.DestroySemaphore(device, b.renderFinished, b.ctx.Allocator)
		b.renderFinished = vk.NullSemaphore
	}
	if b.cameraBuffer != nil {
		b.cameraBuffer.Destroy()
		b.cameraBuffer = nil
	}
	if b.textureSampler != vk.NullSampler {
		vk.DestroySampler(device, b.textureSampler, b.ctx.Allocator)
		b.textureSampler = vk.NullSampler
	}
	if b.resolve != nil {
		b.resolve.destroy()
		b.resolve = nil
	}
	if b.trace != nil {
		b.trace.destroy()
		b.trace = nil
	}
	if b.descriptors != nil {
		b.descriptors.destroy()
		b.descriptors = nil
	}
	if b.accumulation != nil {
		b.accumulation.Destroy()
		b.accumulation = nil
	}
	if b.swapchain != nil {
		b.swapchain.destroy(b.ctx)
		b.swapchain = nil
	}
	if device != nil {
		DeviceDestroy(b.ctx)
	}
	b.ctx.Destroy()
	b.ctx = nil
}
