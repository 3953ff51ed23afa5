package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
)

// VulkanSwapchain owns the presentation images and the per-image
// framebuffers used by the resolve pass.
type VulkanSwapchain struct {
	Handle       vk.Swapchain
	Format       vk.Format
	Extent       vk.Extent2D
	Images       []vk.Image
	Views        []vk.ImageView
	Framebuffers []vk.Framebuffer
}

func newSwapchain(ctx *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(ctx.Device.PhysicalDevice, ctx.Surface, &capabilities); res != vk.Success {
		return nil, fmt.Errorf("vulkan: querying surface capabilities failed: %s", vk.Error(res))
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	format, colorSpace, err := chooseSurfaceFormat(ctx)
	if err != nil {
		return nil, err
	}
	presentMode := choosePresentMode(ctx)

	extent := vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != ^uint32(0) {
		extent = capabilities.CurrentExtent
	} else {
		extent.Width = core.Clamp(extent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
		extent.Height = core.Clamp(extent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)
	}

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      format,
		ImageColorSpace:  colorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	d := &ctx.Device
	if d.GraphicsQueueIndex != d.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{d.GraphicsQueueIndex, d.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(d.LogicalDevice, &createInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: swapchain creation failed: %s", vk.Error(res))
	}

	var count uint32
	vk.GetSwapchainImages(d.LogicalDevice, handle, &count, nil)
	images := make([]vk.Image, count)
	vk.GetSwapchainImages(d.LogicalDevice, handle, &count, images)

	views := make([]vk.ImageView, count)
	for i, img := range images {
		viewCreateInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(d.LogicalDevice, &viewCreateInfo, ctx.Allocator, &views[i]); res != vk.Success {
			return nil, fmt.Errorf("vulkan: swapchain image view creation failed: %s", vk.Error(res))
		}
	}

	ctx.FramebufferWidth = extent.Width
	ctx.FramebufferHeight = extent.Height

	core.LogDebug("vulkan: swapchain created, %d images at %dx%d", count, extent.Width, extent.Height)

	return &VulkanSwapchain{
		Handle: handle,
		Format: format,
		Extent: extent,
		Images: images,
		Views:  views,
	}, nil
}

func chooseSurfaceFormat(ctx *VulkanContext) (vk.Format, vk.ColorSpace, error) {
	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(ctx.Device.PhysicalDevice, ctx.Surface, &count, nil)
	if count == 0 {
		return 0, 0, fmt.Errorf("vulkan: surface reports no formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(ctx.Device.PhysicalDevice, ctx.Surface, &count, formats)

	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Srgb && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return formats[i].Format, formats[i].ColorSpace, nil
		}
	}
	formats[0].Deref()
	return formats[0].Format, formats[0].ColorSpace, nil
}

func choosePresentMode(ctx *VulkanContext) vk.PresentMode {
	var count uint32
	vk.GetPhysicalDeviceSurfacePresentModes(ctx.Device.PhysicalDevice, ctx.Surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(ctx.Device.PhysicalDevice, ctx.Surface, &count, modes)

	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	// Fifo is the only mode guaranteed to exist.
	return vk.PresentModeFifo
}

// createFramebuffers builds one framebuffer per swapchain image for the
// resolve render pass.
func (sc *VulkanSwapchain) createFramebuffers(ctx *VulkanContext, renderPass vk.RenderPass) error {
	sc.Framebuffers = make([]vk.Framebuffer, len(sc.Views))
	for i, view := range sc.Views {
		createInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           sc.Extent.Width,
			Height:          sc.Extent.Height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &sc.Framebuffers[i]); res != vk.Success {
			return fmt.Errorf("vulkan: framebuffer creation failed: %s", vk.Error(res))
		}
	}
	return nil
}

// acquireNextImage returns core.ErrSwapchainOutOfDate when the surface
// changed underneath the swapchain.
func (sc *VulkanSwapchain) acquireNextImage(ctx *VulkanContext, semaphore vk.Semaphore) (uint32, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(ctx.Device.LogicalDevice, sc.Handle, ^uint64(0), semaphore, vk.NullFence, &imageIndex)
	switch res {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainOutOfDate
	}
	return 0, fmt.Errorf("vulkan: acquiring swapchain image failed: %s", vk.Error(res))
}

// present queues the image for display.
func (sc *VulkanSwapchain) present(ctx *VulkanContext, waitSemaphore vk.Semaphore, imageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{waitSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	res := vk.QueuePresent(ctx.Device.PresentQueue, &presentInfo)
	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrSwapchainOutOfDate
	}
	return fmt.Errorf("vulkan: presenting failed: %s", vk.Error(res))
}

func (sc *VulkanSwapchain) destroy(ctx *VulkanContext) {
	device := ctx.Device.LogicalDevice
	for _, fb := range sc.Framebuffers {
		vk.DestroyFramebuffer(device, fb, ctx.Allocator)
	}
	sc.Framebuffers = nil
	for _, view := range sc.Views {
		vk.DestroyImageView(device, view, ctx.Allocator)
	}
	sc.Views = nil
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device, sc.Handle, ctx.Allocator)
		sc.Handle = vk.NullSwapchain
	}
}
