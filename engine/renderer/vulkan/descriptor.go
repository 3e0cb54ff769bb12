package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

// Every program shares one set layout: constant buffers first, then sampled
// images, then samplers, in slot order.
const (
	maxDescriptorTextures = 8
	maxDescriptorSamplers = maxDescriptorTextures

	constantBinding = 0
	textureBinding  = constantBinding + state.MaxConstantBuffers
	samplerBinding  = textureBinding + maxDescriptorTextures
	bindingCount    = samplerBinding + maxDescriptorSamplers

	setsPerPool = 256
)

/**
 * @brief A growing list of descriptor pools owned by one frame. Sets are
 * allocated per draw and all released together when the frame is reused.
 */
type descriptorPool struct {
	pools   []vk.DescriptorPool
	current int
}

func newDescriptorPool() *descriptorPool {
	return &descriptorPool{}
}

func createPool(context *VulkanContext) (vk.DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: setsPerPool * state.MaxConstantBuffers},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: setsPerPool * maxDescriptorTextures},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: setsPerPool * maxDescriptorSamplers},
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       setsPerPool,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &info, context.Allocator, &pool); res != vk.Success {
		return vk.NullDescriptorPool, fmt.Errorf("%w: vkCreateDescriptorPool: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return pool, nil
}

// allocate returns a set from the current pool, moving on to the next pool
// once one runs out.
func (p *descriptorPool) allocate(context *VulkanContext, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	for {
		if p.current == len(p.pools) {
			pool, err := createPool(context)
			if err != nil {
				return vk.NullDescriptorSet, err
			}
			p.pools = append(p.pools, pool)
		}
		info := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     p.pools[p.current],
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}
		var set vk.DescriptorSet
		switch res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &info, &set); res {
		case vk.Success:
			return set, nil
		case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			p.current++
		default:
			return vk.NullDescriptorSet, resultError("vkAllocateDescriptorSets", res)
		}
	}
}

func (p *descriptorPool) reset(context *VulkanContext) error {
	for _, pool := range p.pools[:min(p.current+1, len(p.pools))] {
		if res := vk.ResetDescriptorPool(context.Device.LogicalDevice, pool, 0); res != vk.Success {
			return resultError("vkResetDescriptorPool", res)
		}
	}
	p.current = 0
	return nil
}

func (p *descriptorPool) destroy(context *VulkanContext) {
	for _, pool := range p.pools {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, pool, context.Allocator)
	}
	p.pools = nil
	p.current = 0
}

func (d *Device) createPipelineLayout() error {
	ctx := d.context
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, bindingCount)
	for i := 0; i < bindingCount; i++ {
		kind := vk.DescriptorTypeUniformBuffer
		switch {
		case i >= samplerBinding:
			kind = vk.DescriptorTypeSampler
		case i >= textureBinding:
			kind = vk.DescriptorTypeSampledImage
		}
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  kind,
			DescriptorCount: 1,
			StageFlags:      stages,
		})
	}
	setInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if res := vk.CreateDescriptorSetLayout(ctx.Device.LogicalDevice, &setInfo, ctx.Allocator, &d.setLayout); res != vk.Success {
		return fmt.Errorf("%w: vkCreateDescriptorSetLayout: %s", core.ErrResourceCreation, VulkanResultString(res))
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{d.setLayout},
	}
	if res := vk.CreatePipelineLayout(ctx.Device.LogicalDevice, &layoutInfo, ctx.Allocator, &d.pipelineLayout); res != vk.Success {
		return fmt.Errorf("%w: vkCreatePipelineLayout: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	return nil
}

func (d *Device) destroyPipelineLayout() {
	ctx := d.context
	if d.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(ctx.Device.LogicalDevice, d.pipelineLayout, ctx.Allocator)
		d.pipelineLayout = vk.NullPipelineLayout
	}
	if d.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(ctx.Device.LogicalDevice, d.setLayout, ctx.Allocator)
		d.setLayout = vk.NullDescriptorSetLayout
	}
}

// writeDescriptors fills a fresh set from the register. Unbound slots read
// the fallback buffer, texture and sampler.
func (d *Device) writeDescriptors(cb *VulkanCommandBuffer) error {
	ctx := d.context
	set, err := ctx.frame().descriptors.allocate(ctx, d.setLayout)
	if err != nil {
		return err
	}

	buffers := make([]vk.DescriptorBufferInfo, state.MaxConstantBuffers)
	for slot := range buffers {
		buffers[slot] = vk.DescriptorBufferInfo{Buffer: d.zero.Handle, Range: vk.DeviceSize(d.zero.Size)}
		if b, ok := d.buffers.Get(d.reg.ConstantBuffer(slot)); ok {
			buffers[slot] = vk.DescriptorBufferInfo{Buffer: b.native.Handle, Range: vk.DeviceSize(b.desc.Size)}
		}
	}
	images := make([]vk.DescriptorImageInfo, maxDescriptorTextures)
	for slot := range images {
		tex := d.white
		if t, ok := d.textures.Get(d.reg.Texture(slot)); ok {
			tex = t
		}
		images[slot] = vk.DescriptorImageInfo{ImageView: tex.image.View, ImageLayout: tex.image.Layout}
	}
	samplers := make([]vk.DescriptorImageInfo, maxDescriptorSamplers)
	for slot := range samplers {
		samplers[slot] = vk.DescriptorImageInfo{Sampler: d.defaultSampler}
		if s := d.reg.Sampler(slot); s != nil {
			if native, ok := s.Native().(vk.Sampler); ok && native != vk.NullSampler {
				samplers[slot].Sampler = native
			}
		}
	}

	writes := make([]vk.WriteDescriptorSet, 0, bindingCount)
	for slot := range buffers {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(constantBinding + slot),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     buffers[slot : slot+1],
		})
	}
	for slot := range images {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(textureBinding + slot),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampledImage,
			PImageInfo:      images[slot : slot+1],
		})
	}
	for slot := range samplers {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(samplerBinding + slot),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeSampler,
			PImageInfo:      samplers[slot : slot+1],
		})
	}
	vk.UpdateDescriptorSets(ctx.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, d.pipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	return nil
}
