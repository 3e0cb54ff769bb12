package vulkan

import (
	"fmt"
	gomath "math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	// Images are owned by the swapchain; only their views are ours.
	Images []*VulkanImage

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering, one per image.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	return createSwapchain(context, width, height, vsync, vk.NullSwapchain)
}

// SwapchainRecreate builds a new swapchain from the old one and destroys the
// old one afterwards.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport); err != nil {
		return nil, err
	}
	next, err := createSwapchain(context, width, height, vsync, vs.Handle)
	vs.destroySwapchain(context)
	return next, err
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	vs.destroySwapchain(context)
}

func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailable vk.Semaphore) (uint32, vk.Result) {
	var index uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailable, vk.NullFence, &index)
	return index, res
}

func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, presentQueue vk.Queue, renderComplete vk.Semaphore, imageIndex uint32) vk.Result {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var res vk.Result
	_ = context.locks.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		res = vk.QueuePresent(presentQueue, &presentInfo)
		return nil
	})
	return res
}

func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, want := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, mode := range modes {
			if mode == want {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

func createSwapchain(context *VulkanContext, width, height uint32, vsync bool, old vk.Swapchain) (*VulkanSwapchain, error) {
	support := &context.Device.SwapchainSupport
	if support.FormatCount == 0 {
		return nil, fmt.Errorf("%w: surface reports no formats", core.ErrUnsupported)
	}
	swapchain := &VulkanSwapchain{ImageFormat: support.Formats[0]}
	for _, format := range support.Formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			break
		}
	}
	presentMode := choosePresentMode(support.PresentModes, vsync)

	extent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != gomath.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}
	minExtent, maxExtent := support.Capabilities.MinImageExtent, support.Capabilities.MaxImageExtent
	extent.Width = math.Clamp(extent.Width, minExtent.Width, maxExtent.Width)
	extent.Height = math.Clamp(extent.Height, minExtent.Height, maxExtent.Height)
	swapchain.Extent = extent

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	}

	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &info, context.Allocator, &swapchain.Handle); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateSwapchainKHR: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	context.CurrentFrame = 0

	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		swapchain.destroySwapchain(context)
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	handles := make([]vk.Image, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, handles); res != vk.Success {
		swapchain.destroySwapchain(context)
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}

	for _, handle := range handles {
		image := &VulkanImage{
			Handle: handle,
			Width:  extent.Width,
			Height: extent.Height,
			Layers: 1,
			Mips:   1,
			Format: swapchain.ImageFormat.Format,
			Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			Layout: vk.ImageLayoutUndefined,
		}
		view, err := ImageViewCreate(context, image, vk.ImageViewType2d)
		if err != nil {
			swapchain.destroySwapchain(context)
			return nil, err
		}
		image.View, image.LayerView = view, view
		swapchain.Images = append(swapchain.Images, image)
	}

	if context.Device.DepthFormat == vk.FormatUndefined && !DeviceDetectDepthFormat(context.Device, depthCandidates) {
		swapchain.destroySwapchain(context)
		return nil, fmt.Errorf("%w: no supported depth format", core.ErrUnsupported)
	}
	depth, err := ImageCreate(context, VulkanImageConfig{
		Type:       vk.ImageType2d,
		Width:      extent.Width,
		Height:     extent.Height,
		Format:     context.Device.DepthFormat,
		Tiling:     vk.ImageTilingOptimal,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		Memory:     vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		Aspect:     depthAspect(context.Device.DepthFormat),
		CreateView: true,
	})
	if err != nil {
		swapchain.destroySwapchain(context)
		return nil, err
	}
	swapchain.DepthAttachment = depth

	core.LogInfo("Swapchain created with %d images of %dx%d.", swapchain.ImageCount, extent.Width, extent.Height)
	return swapchain, nil
}

func depthAspect(format vk.Format) vk.ImageAspectFlags {
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if format == vk.FormatD24UnormS8Uint || format == vk.FormatD32SfloatS8Uint {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext) {
	for _, fb := range vs.Framebuffers {
		fb.Destroy(context)
	}
	vs.Framebuffers = nil
	vs.DepthAttachment.ImageDestroy(context)
	vs.DepthAttachment = nil
	for _, image := range vs.Images {
		vk.DestroyImageView(context.Device.LogicalDevice, image.View, context.Allocator)
	}
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
