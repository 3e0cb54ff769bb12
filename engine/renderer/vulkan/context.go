package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

// MaxFramesInFlight is the number of frames recorded ahead of the GPU.
const MaxFramesInFlight = 2

/**
 * @brief Resources owned by one frame in flight. They are reused once the
 * frame's fence signals, which is also when garbage runs.
 */
type frameResources struct {
	commandBuffer  *VulkanCommandBuffer
	imageAvailable vk.Semaphore
	queueComplete  vk.Semaphore
	inFlight       *VulkanFence
	descriptors    *descriptorPool
	immediate      *immediateChunks
	garbage        []func()
}

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Bumped on every resize. The swapchain is recreated when it no longer
	// matches FramebufferSizeLastGeneration.
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device    *VulkanDevice
	Swapchain *VulkanSwapchain

	frames [MaxFramesInFlight]frameResources
	// Fences of the frame that last rendered to each swapchain image. Not owned.
	ImagesInFlight []*VulkanFence

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool

	locks *VulkanLockPool
}

func (vc *VulkanContext) frame() *frameResources {
	return &vc.frames[vc.CurrentFrame]
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	memory := vc.Device.Memory
	for i := uint32(0); i < memory.MemoryTypeCount; i++ {
		memory.MemoryTypes[i].Deref()
		flags := memory.MemoryTypes[i].PropertyFlags
		if typeFilter&(1<<i) != 0 && flags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
