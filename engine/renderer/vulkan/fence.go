package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if createSignaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &info, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateFence: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return &VulkanFence{Handle: handle, IsSignaled: createSignaled}, nil
}

func (f *VulkanFence) Destroy(context *VulkanContext) {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, f.Handle, context.Allocator)
		f.Handle = vk.NullFence
	}
	f.IsSignaled = false
}

// Wait blocks until the fence signals or timeoutNs elapses. A fence already
// known to be signaled returns at once.
func (f *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) bool {
	if f.IsSignaled {
		return true
	}
	switch res := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNs); res {
	case vk.Success:
		f.IsSignaled = true
		return true
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	default:
		core.LogError("fence wait failed with %s", VulkanResultString(res))
	}
	return false
}

func (f *VulkanFence) Reset(context *VulkanContext) error {
	if !f.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		return resultError("vkResetFences", res)
	}
	f.IsSignaled = false
	return nil
}
