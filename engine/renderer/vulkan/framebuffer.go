package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Width       uint32
	Height      uint32
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width, height, layers uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	framebuffer := &VulkanFramebuffer{
		Width:       width,
		Height:      height,
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(framebuffer.Attachments)),
		PAttachments:    framebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          max(layers, 1),
	}
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &info, context.Allocator, &framebuffer.Handle); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateFramebuffer: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return framebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
		vfb.Handle = vk.NullFramebuffer
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
