package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief What a render pass is compatible with: the formats of every
 * attachment and the color slots the subpass writes, one mask bit per
 * enabled slot.
 */
type attachmentLayout struct {
	colors       [metadata.MaxRenderTargets]vk.Format
	count        uint8
	mask         uint8
	depth        vk.Format
	depthStencil bool
	backbuffer   bool
}

/**
 * @brief Render passes are cached per attachment layout and per load
 * variant. Only the backbuffer ever starts a pass fresh: its images hold
 * undefined contents after acquire.
 */
type passKey struct {
	layout attachmentLayout
	fresh  bool
}

type VulkanRenderpass struct {
	Handle vk.RenderPass
	Key    passKey
}

func (l attachmentLayout) colorFinal() vk.ImageLayout {
	if l.backbuffer {
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutShaderReadOnlyOptimal
}

func (l attachmentLayout) depthFinal() vk.ImageLayout {
	if l.backbuffer {
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	}
	return vk.ImageLayoutDepthStencilReadOnlyOptimal
}

func (l attachmentLayout) enabled(slot int) bool {
	return l.mask&(1<<slot) != 0
}

type passDescription struct {
	attachments []vk.AttachmentDescription
	colorRefs   []vk.AttachmentReference
	depthRef    *vk.AttachmentReference
}

// describePass lays out color attachments first, in slot order, followed by
// the depth attachment. Disabled slots keep their attachment but the subpass
// does not reference it.
func describePass(key passKey) passDescription {
	var desc passDescription
	load, colorInitial := vk.AttachmentLoadOpLoad, key.layout.colorFinal()
	depthInitial := key.layout.depthFinal()
	if key.fresh {
		load, colorInitial, depthInitial = vk.AttachmentLoadOpDontCare, vk.ImageLayoutUndefined, vk.ImageLayoutUndefined
	}
	for i := 0; i < int(key.layout.count); i++ {
		desc.attachments = append(desc.attachments, vk.AttachmentDescription{
			Format:         key.layout.colors[i],
			Samples:        vk.SampleCount1Bit,
			LoadOp:         load,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  colorInitial,
			FinalLayout:    key.layout.colorFinal(),
		})
		ref := vk.AttachmentReference{Attachment: vk.AttachmentUnused, Layout: vk.ImageLayoutColorAttachmentOptimal}
		if key.layout.enabled(i) {
			ref.Attachment = uint32(i)
		}
		desc.colorRefs = append(desc.colorRefs, ref)
	}
	if key.layout.depth != vk.FormatUndefined {
		stencilLoad, stencilStore := vk.AttachmentLoadOpDontCare, vk.AttachmentStoreOpDontCare
		if key.layout.depthStencil {
			stencilLoad, stencilStore = load, vk.AttachmentStoreOpStore
		}
		desc.attachments = append(desc.attachments, vk.AttachmentDescription{
			Format:         key.layout.depth,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         load,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  stencilLoad,
			StencilStoreOp: stencilStore,
			InitialLayout:  depthInitial,
			FinalLayout:    key.layout.depthFinal(),
		})
		desc.depthRef = &vk.AttachmentReference{
			Attachment: uint32(key.layout.count),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	return desc
}

func RenderpassCreate(context *VulkanContext, key passKey) (*VulkanRenderpass, error) {
	desc := describePass(key)
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(desc.colorRefs)),
		PColorAttachments:    desc.colorRefs,
	}
	if desc.depthRef != nil {
		subpass.PDepthStencilAttachment = desc.depthRef
	}

	attachmentStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
		vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	attachmentAccess := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
		vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	shaderStages := vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit | vk.PipelineStageFragmentShaderBit)
	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  attachmentStages | shaderStages,
			SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DstStageMask:  attachmentStages,
			DstAccessMask: attachmentAccess,
		},
		{
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  attachmentStages,
			SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DstStageMask:  shaderStages | attachmentStages,
			DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit) | attachmentAccess,
		},
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(desc.attachments)),
		PAttachments:    desc.attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var handle vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &info, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateRenderPass: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return &VulkanRenderpass{Handle: handle, Key: key}, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

// RenderpassBegin starts the pass over the whole framebuffer. Clears are
// recorded inside the pass.
func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height},
		},
	}
	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
