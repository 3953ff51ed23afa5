package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
)

type VulkanFence struct {
	Handle vk.Fence
}

func newFence(ctx *VulkanContext, signaled bool) (*VulkanFence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: fence creation failed: %s", vk.Error(res))
	}
	return &VulkanFence{Handle: handle}, nil
}

// Wait blocks without timeout. Scene construction deliberately waits
// forever rather than limping on with half-built resources.
func (f *VulkanFence) Wait(ctx *VulkanContext) error {
	res := vk.WaitForFences(ctx.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, math.MaxUint64)
	if res != vk.Success {
		return fmt.Errorf("vulkan: fence wait failed: %s", vk.Error(res))
	}
	return nil
}

func (f *VulkanFence) Reset(ctx *VulkanContext) error {
	if res := vk.ResetFences(ctx.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		return fmt.Errorf("vulkan: fence reset failed: %s", vk.Error(res))
	}
	return nil
}

func (f *VulkanFence) Destroy(ctx *VulkanContext) {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(ctx.Device.LogicalDevice, f.Handle, ctx.Allocator)
		f.Handle = vk.NullFence
	}
}
