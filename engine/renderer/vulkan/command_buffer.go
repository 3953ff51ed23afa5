package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

func allocateCommandBuffer(ctx *VulkanContext) (vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        ctx.Device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(ctx.Device.LogicalDevice, &allocInfo, buffers); res != vk.Success {
		return nil, fmt.Errorf("vulkan: allocating command buffer failed: %s", vk.Error(res))
	}
	return buffers[0], nil
}

// runOneTimeCommands records commands into a transient buffer, submits and
// blocks until the GPU finished. Scene loading uses this for uploads and
// acceleration builds; it never appears on the per-frame path.
func runOneTimeCommands(ctx *VulkanContext, record func(vk.CommandBuffer)) error {
	cmd, err := allocateCommandBuffer(ctx)
	if err != nil {
		return err
	}
	defer vk.FreeCommandBuffers(ctx.Device.LogicalDevice, ctx.Device.GraphicsCommandPool, 1, []vk.CommandBuffer{cmd})

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cmd, &beginInfo); res != vk.Success {
		return fmt.Errorf("vulkan: beginning one-time command buffer failed: %s", vk.Error(res))
	}

	record(cmd)

	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return fmt.Errorf("vulkan: ending one-time command buffer failed: %s", vk.Error(res))
	}

	fence, err := newFence(ctx, false)
	if err != nil {
		return err
	}
	defer fence.Destroy(ctx)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if res := vk.QueueSubmit(ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
		return fmt.Errorf("vulkan: one-time submit failed: %s", vk.Error(res))
	}

	return fence.Wait(ctx)
}
