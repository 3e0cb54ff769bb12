package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, primary bool) (*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelPrimary
	if !primary {
		level = vk.CommandBufferLevelSecondary
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              level,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &info, handles); res != vk.Success {
		return nil, fmt.Errorf("%w: vkAllocateCommandBuffers: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return &VulkanCommandBuffer{Handle: handles[0], State: COMMAND_BUFFER_STATE_READY}, nil
}

func (c *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if c.Handle != nil {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{c.Handle})
		c.Handle = nil
	}
	c.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (c *VulkanCommandBuffer) Begin(singleUse, renderpassContinue, simultaneousUse bool) error {
	info := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if singleUse {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if renderpassContinue {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if simultaneousUse {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if res := vk.BeginCommandBuffer(c.Handle, &info); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	c.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (c *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(c.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	c.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (c *VulkanCommandBuffer) Recording() bool {
	return c != nil && (c.State == COMMAND_BUFFER_STATE_RECORDING || c.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS)
}

func (c *VulkanCommandBuffer) UpdateSubmitted() { c.State = COMMAND_BUFFER_STATE_SUBMITTED }
func (c *VulkanCommandBuffer) Reset()           { c.State = COMMAND_BUFFER_STATE_READY }

// AllocateAndBeginSingleUse returns a primary command buffer that is already
// recording.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse submits the buffer, waits for the queue to drain and frees it.
func (c *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue, family uint32) error {
	defer c.Free(context, pool)
	if err := c.End(); err != nil {
		return err
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.Handle},
	}
	return context.locks.SafeQueueCall(family, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, vk.NullFence); res != vk.Success {
			return resultError("vkQueueSubmit", res)
		}
		return resultError("vkQueueWaitIdle", vk.QueueWaitIdle(queue))
	})
}
