package vulkan

import (
	"fmt"
	"image"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
)

// VulkanImage wraps an image, its memory and its view.
type VulkanImage struct {
	ctx    *VulkanContext
	ID     uuid.UUID
	label  string
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
}

func (img *VulkanImage) Name() string { return img.label }

func (img *VulkanImage) Destroy() {
	device := img.ctx.Device.LogicalDevice
	if img.View != vk.NullImageView {
		vk.DestroyImageView(device, img.View, img.ctx.Allocator)
		img.View = vk.NullImageView
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(device, img.Handle, img.ctx.Allocator)
		img.Handle = vk.NullImage
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, img.Memory, img.ctx.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
}

func newImage(ctx *VulkanContext, label string, width, height uint32, format vk.Format, usage vk.ImageUsageFlags) (*VulkanImage, error) {
	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if res := vk.CreateImage(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: creating image %q failed: %s", label, vk.Error(res))
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex := findMemoryIndex(&ctx.Device.Memory, requirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex < 0 {
		vk.DestroyImage(ctx.Device.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("vulkan: no memory type for image %q", label)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device.LogicalDevice, &allocInfo, ctx.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(ctx.Device.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("vulkan: allocating memory for image %q failed: %s", label, vk.Error(res))
	}
	if res := vk.BindImageMemory(ctx.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(ctx.Device.LogicalDevice, memory, ctx.Allocator)
		vk.DestroyImage(ctx.Device.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("vulkan: binding memory for image %q failed: %s", label, vk.Error(res))
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(ctx.Device.LogicalDevice, &viewCreateInfo, ctx.Allocator, &view); res != vk.Success {
		vk.FreeMemory(ctx.Device.LogicalDevice, memory, ctx.Allocator)
		vk.DestroyImage(ctx.Device.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("vulkan: creating view for image %q failed: %s", label, vk.Error(res))
	}

	img := &VulkanImage{
		ctx: ctx, ID: uuid.New(), label: label, Handle: handle, Memory: memory, View: view,
		Format: format, Width: width, Height: height,
	}
	core.LogDebug("vulkan: image %q (%s) created, %dx%d", label, img.ID, width, height)
	return img, nil
}

// newAccumulationImage creates the storage image batches accumulate into.
// High-precision linear space; only the resolve pass converts for display.
func newAccumulationImage(ctx *VulkanContext, width, height uint32) (*VulkanImage, error) {
	img, err := newImage(ctx, "accumulation", width, height, vk.FormatR32g32b32a32Sfloat,
		vk.ImageUsageFlags(vk.ImageUsageStorageBit|vk.ImageUsageSampledBit))
	if err != nil {
		return nil, err
	}

	// Storage images start in the general layout and stay there.
	err = runOneTimeCommands(ctx, func(cmd vk.CommandBuffer) {
		transitionImageLayout(cmd, img.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral)
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// newTextureImage uploads RGBA pixels into a sampled srgb image.
func newTextureImage(ctx *VulkanContext, label string, src *image.RGBA) (*VulkanImage, error) {
	width := uint32(src.Bounds().Dx())
	height := uint32(src.Bounds().Dy())

	img, err := newImage(ctx, label, width, height, vk.FormatR8g8b8a8Srgb,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit))
	if err != nil {
		return nil, err
	}

	staging, err := newBuffer(ctx, label+"-staging", uint64(len(src.Pix)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	defer staging.Destroy()

	if err := staging.write(src.Pix); err != nil {
		img.Destroy()
		return nil, err
	}

	err = runOneTimeCommands(ctx, func(cmd vk.CommandBuffer) {
		transitionImageLayout(cmd, img.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)

		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
		}
		vk.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle,
			vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

		transitionImageLayout(cmd, img.Handle, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}

	core.LogDebug("vulkan: uploaded texture %q %dx%d", label, width, height)
	return img, nil
}

func transitionImageLayout(cmd vk.CommandBuffer, img vk.Image, oldLayout, newLayout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	srcStage := vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	dstStage := vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)

	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)

	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit |
			vk.PipelineStageRayTracingShaderBit)

	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutGeneral:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageRayTracingShaderBit |
			vk.PipelineStageFragmentShaderBit)
	}

	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
