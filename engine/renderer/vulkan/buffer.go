package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
)

// VulkanBuffer wraps a buffer with its backing memory. Device-local buffers
// are filled through a transient staging buffer. ID tags the resource in
// debug logs; labels alone are not unique across scene reloads.
type VulkanBuffer struct {
	ctx    *VulkanContext
	ID     uuid.UUID
	label  string
	Handle vk.Buffer
	Memory vk.DeviceMemory
	size   uint64
}

func (b *VulkanBuffer) Name() string { return b.label }
func (b *VulkanBuffer) Size() uint64 { return b.size }

func (b *VulkanBuffer) Destroy() {
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(b.ctx.Device.LogicalDevice, b.Handle, b.ctx.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.ctx.Device.LogicalDevice, b.Memory, b.ctx.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}

// DeviceAddress returns the buffer's GPU virtual address for acceleration
// structure builds.
func (b *VulkanBuffer) DeviceAddress() vk.DeviceAddress {
	return getBufferDeviceAddress(b.ctx.Device.LogicalDevice, b.Handle)
}

// newBuffer creates an empty buffer with bound memory.
func newBuffer(ctx *VulkanContext, label string, size uint64, usage vk.BufferUsageFlags, memProps vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("vulkan: buffer %q would be empty", label)
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: creating buffer %q failed: %s", label, vk.Error(res))
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex := findMemoryIndex(&ctx.Device.Memory, requirements.MemoryTypeBits, memProps)
	if memoryIndex < 0 {
		vk.DestroyBuffer(ctx.Device.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("vulkan: no memory type for buffer %q", label)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	// Device addresses require the allocation to be flagged as well.
	if usage&vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit) != 0 {
		flagsInfo := vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		}
		allocInfo.PNext = unsafePtr(&flagsInfo)
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device.LogicalDevice, &allocInfo, ctx.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(ctx.Device.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("vulkan: allocating %d bytes for buffer %q failed: %s", size, label, vk.Error(res))
	}
	if res := vk.BindBufferMemory(ctx.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(ctx.Device.LogicalDevice, memory, ctx.Allocator)
		vk.DestroyBuffer(ctx.Device.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("vulkan: binding memory for buffer %q failed: %s", label, vk.Error(res))
	}

	b := &VulkanBuffer{ctx: ctx, ID: uuid.New(), label: label, Handle: handle, Memory: memory, size: size}
	core.LogDebug("vulkan: buffer %q (%s) created, %d bytes", label, b.ID, size)
	return b, nil
}

// write maps host-visible memory and copies data in.
func (b *VulkanBuffer) write(data []byte) error {
	var mapped unsafe.Pointer
	if res := vk.MapMemory(b.ctx.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
		return fmt.Errorf("vulkan: mapping buffer %q failed: %s", b.label, vk.Error(res))
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(b.ctx.Device.LogicalDevice, b.Memory)
	return nil
}

// newDeviceLocalBuffer creates a device-local buffer and fills it by
// staging; the upload submits synchronously.
func newDeviceLocalBuffer(ctx *VulkanContext, label string, data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	staging, err := newBuffer(ctx, label+"-staging", uint64(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := staging.write(data); err != nil {
		return nil, err
	}

	buffer, err := newBuffer(ctx, label, uint64(len(data)),
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	err = runOneTimeCommands(ctx, func(cmd vk.CommandBuffer) {
		region := vk.BufferCopy{Size: vk.DeviceSize(len(data))}
		vk.CmdCopyBuffer(cmd, staging.Handle, buffer.Handle, 1, []vk.BufferCopy{region})
	})
	if err != nil {
		buffer.Destroy()
		return nil, err
	}

	return buffer, nil
}

// newHostVisibleBuffer creates a host-visible buffer filled directly, used
// for the transient per-batch camera uniform.
func newHostVisibleBuffer(ctx *VulkanContext, label string, data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	buffer, err := newBuffer(ctx, label, uint64(len(data)), usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	if err := buffer.write(data); err != nil {
		buffer.Destroy()
		return nil, err
	}
	return buffer, nil
}
