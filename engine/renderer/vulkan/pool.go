package vulkan

import "sync"

type LockGroup string

const (
	ResourceManagement  LockGroup = "resource_management"
	PipelineManagement  LockGroup = "pipeline_management"
	MemoryManagement    LockGroup = "memory_management"
	SwapchainManagement LockGroup = "swapchain_management"
)

/**
 * @brief VulkanLockPool serializes calls that touch externally synchronized
 * Vulkan objects: queues, and the pools objects are created from.
 */
type VulkanLockPool struct {
	mu     sync.Mutex
	locks  map[LockGroup]*sync.Mutex
	queues map[uint32]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:  make(map[LockGroup]*sync.Mutex),
		queues: make(map[uint32]*sync.Mutex),
	}
}

func (p *VulkanLockPool) group(g LockGroup) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[g]
	if !ok {
		l = &sync.Mutex{}
		p.locks[g] = l
	}
	return l
}

func (p *VulkanLockPool) queue(family uint32) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.queues[family]
	if !ok {
		l = &sync.Mutex{}
		p.queues[family] = l
	}
	return l
}

func (p *VulkanLockPool) SafeCall(g LockGroup, fn func() error) error {
	l := p.group(g)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SafeQueueCall holds the lock of one queue family for fn. Families that
// share a queue share the lock.
func (p *VulkanLockPool) SafeQueueCall(family uint32, fn func() error) error {
	l := p.queue(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}
