package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

// VulkanDevice holds the selected physical device and the logical device
// created from it, plus the queues rendering and presentation run on.
type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties

	// Shader group handle sizing for the binding table, queried from the
	// ray-tracing pipeline properties.
	ShaderGroupHandleSize      uint32
	ShaderGroupHandleAlignment uint32
	ShaderGroupBaseAlignment   uint32
}

// requiredDeviceExtensions lists what hardware ray tracing needs on top of
// presentation.
func requiredDeviceExtensions() []string {
	return []string{
		safeString(vk.KhrSwapchainExtensionName),
		safeString("VK_KHR_acceleration_structure"),
		safeString("VK_KHR_ray_tracing_pipeline"),
		safeString("VK_KHR_deferred_host_operations"),
		safeString("VK_KHR_buffer_device_address"),
		safeString("VK_EXT_descriptor_indexing"),
	}
}

// DeviceCreate picks a physical device that supports ray tracing and
// creates the logical device with the ray-tracing feature chain enabled.
func DeviceCreate(ctx *VulkanContext) error {
	if err := selectPhysicalDevice(ctx); err != nil {
		return err
	}

	d := &ctx.Device

	core.LogInfo("vulkan: creating logical device...")

	queueIndices := []uint32{d.GraphicsQueueIndex}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		queueIndices = append(queueIndices, d.PresentQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(queueIndices))
	for i, idx := range queueIndices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	// Feature chain: descriptor indexing for the variable-count texture
	// array, buffer device address for acceleration builds, then the two
	// ray-tracing features. The driver walks this chain in C layout, hence
	// the mirrored structs.
	indexingFeatures := physicalDeviceDescriptorIndexingFeatures{
		SType:                                     vk.StructureTypePhysicalDeviceDescriptorIndexingFeatures,
		RuntimeDescriptorArray:                    vk.True,
		DescriptorBindingVariableDescriptorCount:  vk.True,
		DescriptorBindingPartiallyBound:           vk.True,
		ShaderSampledImageArrayNonUniformIndexing: vk.True,
	}
	addressFeatures := physicalDeviceBufferDeviceAddressFeatures{
		SType:               vk.StructureTypePhysicalDeviceBufferDeviceAddressFeatures,
		BufferDeviceAddress: vk.True,
		PNext:               uintptr(unsafe.Pointer(&indexingFeatures)),
	}
	accelFeatures := physicalDeviceAccelerationStructureFeatures{
		SType:                 vk.StructureTypePhysicalDeviceAccelerationStructureFeatures,
		AccelerationStructure: vk.True,
		PNext:                 uintptr(unsafe.Pointer(&addressFeatures)),
	}
	rtFeatures := physicalDeviceRayTracingPipelineFeatures{
		SType:              vk.StructureTypePhysicalDeviceRayTracingPipelineFeatures,
		RayTracingPipeline: vk.True,
		PNext:              uintptr(unsafe.Pointer(&accelFeatures)),
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafePtr(&rtFeatures),
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(requiredDeviceExtensions())),
		PpEnabledExtensionNames: requiredDeviceExtensions(),
	}

	var device vk.Device
	res := vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, ctx.Allocator, &device)
	runtime.KeepAlive(&indexingFeatures)
	runtime.KeepAlive(&addressFeatures)
	runtime.KeepAlive(&accelFeatures)
	if res != vk.Success {
		return fmt.Errorf("vulkan: device creation failed: %s", vk.Error(res))
	}
	d.LogicalDevice = device

	if err := loadRayTracingProcs(ctx.InstanceProcAddr, ctx.Instance, device); err != nil {
		return err
	}

	var graphicsQueue vk.Queue
	vk.GetDeviceQueue(device, d.GraphicsQueueIndex, 0, &graphicsQueue)
	d.GraphicsQueue = graphicsQueue

	var presentQueue vk.Queue
	vk.GetDeviceQueue(device, d.PresentQueueIndex, 0, &presentQueue)
	d.PresentQueue = presentQueue

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device, &poolCreateInfo, ctx.Allocator, &pool); res != vk.Success {
		return fmt.Errorf("vulkan: command pool creation failed: %s", vk.Error(res))
	}
	d.GraphicsCommandPool = pool

	queryRayTracingProperties(d)

	core.LogInfo("vulkan: logical device created")
	return nil
}

func selectPhysicalDevice(ctx *VulkanContext) error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(ctx.Instance, &count, nil); res != vk.Success || count == 0 {
		return fmt.Errorf("vulkan: no physical devices found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(ctx.Instance, &count, devices); res != vk.Success {
		return fmt.Errorf("vulkan: enumerating physical devices failed: %s", vk.Error(res))
	}

	for _, candidate := range devices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(candidate, &props)
		props.Deref()

		name := vk.ToString(props.DeviceName[:])

		if !supportsExtensions(candidate, requiredDeviceExtensions()) {
			core.LogDebug("vulkan: %s lacks ray tracing extensions, skipping", name)
			continue
		}

		graphicsIndex, presentIndex, ok := findQueueFamilies(candidate, ctx.Surface)
		if !ok {
			core.LogDebug("vulkan: %s lacks graphics/present queues, skipping", name)
			continue
		}

		ctx.Device.PhysicalDevice = candidate
		ctx.Device.Properties = props
		ctx.Device.GraphicsQueueIndex = graphicsIndex
		ctx.Device.PresentQueueIndex = presentIndex

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(candidate, &memory)
		memory.Deref()
		ctx.Device.Memory = memory

		core.LogInfo("vulkan: selected device %q", name)
		return nil
	}

	return fmt.Errorf("vulkan: no device supports hardware ray tracing with presentation")
}

func supportsExtensions(device vk.PhysicalDevice, required []string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}

	names := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		names[vk.ToString(available[i].ExtensionName[:])] = true
	}
	for _, req := range required {
		if !names[trimNull(req)] {
			return false
		}
	}
	return true
}

func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (uint32, uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	graphicsIndex := -1
	presentIndex := -1

	for i := range families {
		families[i].Deref()

		if graphicsIndex < 0 && families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			graphicsIndex = i
		}

		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supported)
		if presentIndex < 0 && supported == vk.True {
			presentIndex = i
		}

		if graphicsIndex >= 0 && presentIndex >= 0 {
			break
		}
	}

	if graphicsIndex < 0 || presentIndex < 0 {
		return 0, 0, false
	}
	return uint32(graphicsIndex), uint32(presentIndex), true
}

func queryRayTracingProperties(d *VulkanDevice) {
	rtProps := physicalDeviceRayTracingPipelineProperties{
		SType: vk.StructureTypePhysicalDeviceRayTracingPipelineProperties,
	}
	props2 := vk.PhysicalDeviceProperties2{
		SType: vk.StructureTypePhysicalDeviceProperties2,
		PNext: unsafePtr(&rtProps),
	}
	vk.GetPhysicalDeviceProperties2(d.PhysicalDevice, &props2)

	d.ShaderGroupHandleSize = rtProps.ShaderGroupHandleSize
	d.ShaderGroupHandleAlignment = rtProps.ShaderGroupHandleAlignment
	d.ShaderGroupBaseAlignment = rtProps.ShaderGroupBaseAlignment
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *VulkanDevice) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.LogicalDevice); res != vk.Success {
		return fmt.Errorf("vulkan: device wait idle failed: %s", vk.Error(res))
	}
	return nil
}

// DeviceDestroy releases the command pool. The logical device itself is
// destroyed with the context.
func DeviceDestroy(ctx *VulkanContext) {
	if ctx.Device.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(ctx.Device.LogicalDevice, ctx.Device.GraphicsCommandPool, ctx.Allocator)
		ctx.Device.GraphicsCommandPool = vk.NullCommandPool
	}
}

func trimNull(s string) string {
	for len(s) > 0 && s[len(s)-1] == '\x00' {
		s = s[:len(s)-1]
	}
	return s
}
