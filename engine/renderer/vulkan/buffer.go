package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief A host visible, coherent buffer that stays mapped for its lifetime.
 */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	mapped unsafe.Pointer
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{Size: size}
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	device := context.Device.LogicalDevice
	if res := vk.CreateBuffer(device, &info, context.Allocator, &buffer.Handle); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateBuffer: %s", core.ErrResourceCreation, VulkanResultString(res))
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer.Handle, &requirements)
	requirements.Deref()
	memoryType := context.FindMemoryIndex(requirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryType == -1 {
		buffer.Destroy(context)
		return nil, fmt.Errorf("%w: no host visible memory for a buffer of %d bytes", core.ErrResourceCreation, size)
	}
	allocate := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(device, &allocate, context.Allocator, &buffer.Memory); res != vk.Success {
		buffer.Destroy(context)
		return nil, fmt.Errorf("%w: vkAllocateMemory: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	if res := vk.BindBufferMemory(device, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		buffer.Destroy(context)
		return nil, resultError("vkBindBufferMemory", res)
	}
	if res := vk.MapMemory(device, buffer.Memory, 0, vk.DeviceSize(vk.WholeSize), 0, &buffer.mapped); res != vk.Success {
		buffer.Destroy(context)
		return nil, resultError("vkMapMemory", res)
	}
	return buffer, nil
}

// Write copies data into the mapped memory at offset.
func (b *VulkanBuffer) Write(offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	dst := unsafe.Slice((*byte)(b.mapped), b.Size)
	copy(dst[offset:], data)
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.Memory)
		b.mapped = nil
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
}

type vkBuffer struct {
	native *VulkanBuffer
	desc   metadata.BufferDesc
	// layouts holding a vertex binding that reads this buffer
	layouts map[core.ID]struct{}
}

func bufferUsage(bind metadata.BindFlags) vk.BufferUsageFlags {
	usage := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	if bind == 0 {
		bind = metadata.BindVertexBuffer | metadata.BindIndexBuffer | metadata.BindConstantBuffer
	}
	if bind.Has(metadata.BindVertexBuffer) {
		usage |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if bind.Has(metadata.BindIndexBuffer) {
		usage |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if bind.Has(metadata.BindConstantBuffer) {
		usage |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if bind.Has(metadata.BindUnorderedAccess) {
		usage |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	return usage
}

func (d *Device) CreateBuffer(desc metadata.BufferDesc, data []byte) (*metadata.Buffer, error) {
	if desc.Size == 0 {
		desc.Size = uint64(len(data))
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer %q has zero size", core.ErrResourceCreation, desc.Name)
	}
	if uint64(len(data)) > desc.Size {
		return nil, fmt.Errorf("%w: %d bytes of initial data exceed buffer %q of %d bytes",
			core.ErrResourceCreation, len(data), desc.Name, desc.Size)
	}
	if desc.Usage == metadata.UsageImmutable && len(data) == 0 {
		return nil, fmt.Errorf("%w: immutable buffer %q needs initial data", core.ErrResourceCreation, desc.Name)
	}

	size := desc.Size
	if desc.Bind.Has(metadata.BindConstantBuffer) {
		// std140 blocks are read in 16 byte rows
		size = metadata.GetAligned(size, 16)
	}
	native, err := BufferCreate(d.context, size, bufferUsage(desc.Bind))
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", desc.Name, err)
	}
	native.Write(0, data)

	id := d.buffers.Insert(&vkBuffer{native: native, desc: desc, layouts: make(map[core.ID]struct{})})
	return &metadata.Buffer{ID: id, Desc: desc}, nil
}

// UpdateBuffer writes through the persistent mapping. Writes are not ordered
// against draws of frames still in flight.
func (d *Device) UpdateBuffer(buffer *metadata.Buffer, offset uint64, data []byte) error {
	b, ok := d.buffers.Get(buffer.Handle())
	if !ok {
		return fmt.Errorf("%w: buffer %s", core.ErrInvalidHandle, buffer.Handle())
	}
	if b.desc.Usage == metadata.UsageImmutable {
		return fmt.Errorf("%w: buffer %q is immutable", core.ErrUnsupported, b.desc.Name)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("update of %d bytes at offset %d exceeds buffer %q of %d bytes",
			len(data), offset, b.desc.Name, b.desc.Size)
	}
	b.native.Write(offset, data)
	return nil
}

// DestroyBuffer drops every vertex binding that read the buffer. The native
// buffer lives until the frames that may use it have retired.
func (d *Device) DestroyBuffer(buffer *metadata.Buffer) {
	b, ok := d.buffers.Remove(buffer.Handle())
	if !ok {
		core.LogWarn("DestroyBuffer called with an invalid buffer %s", buffer.Handle())
		return
	}
	for layoutID := range b.layouts {
		l, ok := d.layouts.Get(layoutID)
		if !ok {
			continue
		}
		stale := l.bindings.Invalidate(buffer.ID)
		for _, binding := range stale {
			if d.vertex == binding {
				d.vertex = nil
			}
		}
		d.metrics.CountBindingsInvalidated(len(stale))
	}
	d.reg.ForgetBuffer(buffer.ID)
	d.dirty |= dirtyVertex | dirtyIndex | dirtyDescriptors
	d.release(func() { b.native.Destroy(d.context) })
}

func (d *Device) SetIndexBuffer(buffer *metadata.Buffer, format metadata.Format) {
	if buffer != nil {
		core.Assert(format == metadata.FormatR16Uint || format == metadata.FormatR32Uint,
			"index format %s is not R16Uint or R32Uint", format)
	}
	if !d.reg.SwapIndexBuffer(buffer.Handle(), format) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyIndex
}
