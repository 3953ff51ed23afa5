package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

// VulkanContext bundles the instance-level state every wrapper in this
// package needs.
type VulkanContext struct {
	Instance  vk.Instance
	Surface   vk.Surface
	Allocator *vk.AllocationCallbacks

	// InstanceProcAddr is the vkGetInstanceProcAddr entry point handed in
	// by the windowing layer, used to resolve the ray-tracing extension
	// functions the static binding does not cover.
	InstanceProcAddr unsafe.Pointer

	Device VulkanDevice

	debugMessenger vk.DebugReportCallback

	FramebufferWidth  uint32
	FramebufferHeight uint32
}

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// NewContext creates the instance. Surface and device creation follow as
// separate steps because the surface needs the window and the device needs
// the surface.
func NewContext(appName string, requiredExtensions []string, enableValidation bool) (*VulkanContext, error) {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("lumen"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 3, 0),
	}

	extensions := make([]string, 0, len(requiredExtensions)+1)
	for _, e := range requiredExtensions {
		extensions = append(extensions, safeString(e))
	}

	var layers []string
	if enableValidation {
		if hasValidationLayer() {
			layers = append(layers, safeString(validationLayerName))
			extensions = append(extensions, safeString(vk.ExtDebugReportExtensionName))
			core.LogInfo("vulkan: validation layers enabled")
		} else {
			core.LogWarn("vulkan: validation requested but %s is not installed", validationLayerName)
		}
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return nil, fmt.Errorf("vulkan: instance creation failed: %s", vk.Error(res))
	}
	vk.InitInstance(instance)

	ctx := &VulkanContext{Instance: instance}

	if len(layers) > 0 {
		ctx.setupDebugMessenger()
	}

	return ctx, nil
}

func hasValidationLayer() bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	props := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, props); res != vk.Success {
		return false
	}
	for i := range props {
		props[i].Deref()
		if vk.ToString(props[i].LayerName[:]) == validationLayerName {
			return true
		}
	}
	return false
}

func (ctx *VulkanContext) setupDebugMessenger() {
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugReportCallback,
	}
	var messenger vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(ctx.Instance, &createInfo, ctx.Allocator, &messenger); res != vk.Success {
		core.LogWarn("vulkan: could not install debug callback: %s", vk.Error(res))
		return
	}
	ctx.debugMessenger = messenger
}

func debugReportCallback(flags vk.DebugReportFlags, _ vk.DebugReportObjectType,
	_ uint64, _ uint64, _ int32, layerPrefix string, message string, _ unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("vulkan [%s]: %s", layerPrefix, message)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("vulkan [%s]: %s", layerPrefix, message)
	default:
		core.LogDebug("vulkan [%s]: %s", layerPrefix, message)
	}
	return vk.False
}

// Destroy tears down in reverse creation order. The device must already be
// idle.
func (ctx *VulkanContext) Destroy() {
	if ctx.Device.LogicalDevice != nil {
		vk.DestroyDevice(ctx.Device.LogicalDevice, ctx.Allocator)
		ctx.Device.LogicalDevice = nil
	}
	if ctx.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
	}
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
		ctx.Surface = vk.NullSurface
	}
	if ctx.Instance != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
}

// safeString null-terminates for the C side.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}
