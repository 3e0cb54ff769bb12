package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	// View covers every layer and mip; cube images get a cube view.
	View vk.ImageView
	// LayerView is the framebuffer attachment view: mip 0 of every layer and
	// every aspect. Equal to View when the two would not differ.
	LayerView vk.ImageView
	Width     uint32
	Height    uint32
	Layers    uint32
	Mips      uint32
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
	// Layout is the layout the image is in once all recorded work executes.
	Layout vk.ImageLayout
}

type VulkanImageConfig struct {
	Type       vk.ImageType
	Width      uint32
	Height     uint32
	Depth      uint32
	Layers     uint32
	Mips       uint32
	Format     vk.Format
	Tiling     vk.ImageTiling
	Usage      vk.ImageUsageFlags
	Memory     vk.MemoryPropertyFlags
	Aspect     vk.ImageAspectFlags
	Cube       bool
	CreateView bool
}

func ImageCreate(context *VulkanContext, config VulkanImageConfig) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:  config.Width,
		Height: config.Height,
		Layers: max(config.Layers, 1),
		Mips:   max(config.Mips, 1),
		Format: config.Format,
		Aspect: config.Aspect,
		Layout: vk.ImageLayoutUndefined,
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: config.Type,
		Extent: vk.Extent3D{
			Width:  config.Width,
			Height: config.Height,
			Depth:  max(config.Depth, 1),
		},
		MipLevels:     image.Mips,
		ArrayLayers:   image.Layers,
		Format:        config.Format,
		Tiling:        config.Tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         config.Usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	if config.Cube {
		info.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	if res := vk.CreateImage(context.Device.LogicalDevice, &info, context.Allocator, &image.Handle); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateImage: %s", core.ErrResourceCreation, VulkanResultString(res))
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &requirements)
	requirements.Deref()
	memoryType := context.FindMemoryIndex(requirements.MemoryTypeBits, config.Memory)
	if memoryType == -1 {
		image.ImageDestroy(context)
		return nil, fmt.Errorf("%w: required memory type not found, image not valid", core.ErrResourceCreation)
	}
	allocate := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocate, context.Allocator, &image.Memory); res != vk.Success {
		image.ImageDestroy(context)
		return nil, fmt.Errorf("%w: vkAllocateMemory: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	if res := vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		image.ImageDestroy(context)
		return nil, resultError("vkBindImageMemory", res)
	}

	if config.CreateView {
		viewType := vk.ImageViewType2d
		switch {
		case config.Cube:
			viewType = vk.ImageViewTypeCube
		case config.Type == vk.ImageType3d:
			viewType = vk.ImageViewType3d
		}
		view, err := ImageViewCreate(context, image, viewType)
		if err != nil {
			image.ImageDestroy(context)
			return nil, err
		}
		image.View, image.LayerView = view, view
		stencil := image.Aspect&vk.ImageAspectFlags(vk.ImageAspectStencilBit) != 0
		if config.Type == vk.ImageType2d && (image.Layers > 1 || image.Mips > 1 || stencil) {
			layered, err := attachmentViewCreate(context, image)
			if err != nil {
				image.ImageDestroy(context)
				return nil, err
			}
			image.LayerView = layered
		}
	}
	return image, nil
}

func ImageViewCreate(context *VulkanContext, image *VulkanImage, viewType vk.ImageViewType) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: viewType,
		Format:   image.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: image.Aspect,
			LevelCount: image.Mips,
			LayerCount: image.Layers,
		},
	}
	if viewType == vk.ImageViewType3d {
		info.SubresourceRange.LayerCount = 1
	}
	// Sampled depth-stencil views read depth only.
	if image.Aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
		info.SubresourceRange.AspectMask = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &info, context.Allocator, &view); res != vk.Success {
		return vk.NullImageView, fmt.Errorf("%w: vkCreateImageView: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return view, nil
}

func attachmentViewCreate(context *VulkanContext, image *VulkanImage) (vk.ImageView, error) {
	viewType := vk.ImageViewType2d
	if image.Layers > 1 {
		viewType = vk.ImageViewType2dArray
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: viewType,
		Format:   image.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: image.Aspect,
			LevelCount: 1,
			LayerCount: image.Layers,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &info, context.Allocator, &view); res != vk.Success {
		return vk.NullImageView, fmt.Errorf("%w: vkCreateImageView: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return view, nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	if vi == nil {
		return
	}
	device := context.Device.LogicalDevice
	if vi.LayerView != vk.NullImageView && vi.LayerView != vi.View {
		vk.DestroyImageView(device, vi.LayerView, context.Allocator)
	}
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(device, vi.View, context.Allocator)
	}
	vi.View, vi.LayerView = vk.NullImageView, vk.NullImageView
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(device, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
}

// layoutUsage is the access and the pipeline stages an image layout is used in.
func layoutUsage(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit)
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessDepthStencilAttachmentReadBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageEarlyFragmentTestsBit)
	case vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

// Transition records a barrier moving every subresource from the tracked
// layout to layout.
func (vi *VulkanImage) Transition(commandBuffer *VulkanCommandBuffer, layout vk.ImageLayout) {
	if vi.Layout == layout {
		return
	}
	srcAccess, srcStage := layoutUsage(vi.Layout)
	dstAccess, dstStage := layoutUsage(layout)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           vi.Layout,
		NewLayout:           layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vi.Aspect,
			LevelCount: vi.Mips,
			LayerCount: vi.Layers,
		},
	}
	vk.CmdPipelineBarrier(commandBuffer.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	vi.Layout = layout
}
