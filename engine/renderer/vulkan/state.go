package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func (d *Device) CreateBlendState(desc metadata.BlendDesc) *metadata.BlendState {
	return metadata.NewBlendState(d.nextSerial(), desc)
}

func (d *Device) CreateRasterizerState(desc metadata.RasterizerDesc) *metadata.RasterizerState {
	return metadata.NewRasterizerState(d.nextSerial(), desc)
}

func (d *Device) CreateDepthStencilState(desc metadata.DepthStencilDesc) *metadata.DepthStencilState {
	return metadata.NewDepthStencilState(d.nextSerial(), desc)
}

func samplerInfo(desc metadata.SamplerDesc, anisotropy bool) vk.SamplerCreateInfo {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter(desc.MagFilter),
		MinFilter:               filter(desc.MinFilter),
		MipmapMode:              mipmapMode(desc.MipFilter),
		AddressModeU:            addressModes[desc.AddressU],
		AddressModeV:            addressModes[desc.AddressV],
		AddressModeW:            addressModes[desc.AddressW],
		MinLod:                  desc.MinLOD,
		MaxLod:                  desc.MaxLOD,
		CompareEnable:           boolean(desc.CompareEnable),
		CompareOp:               compareOps[desc.CompareFunc],
		BorderColor:             borderColor(desc.BorderColor),
		UnnormalizedCoordinates: vk.False,
	}
	if anisotropy && desc.MaxAnisotropy > 1 {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = float32(desc.MaxAnisotropy)
	}
	return info
}

func (d *Device) createSampler(desc metadata.SamplerDesc) (vk.Sampler, error) {
	info := samplerInfo(desc, d.context.Device.Enabled.SamplerAnisotropy == vk.True)
	var sampler vk.Sampler
	if res := vk.CreateSampler(d.context.Device.LogicalDevice, &info, d.context.Allocator, &sampler); res != vk.Success {
		return vk.NullSampler, resultError("vkCreateSampler", res)
	}
	return sampler, nil
}

func (d *Device) CreateSamplerState(desc metadata.SamplerDesc) (*metadata.SamplerState, error) {
	sampler, err := d.createSampler(desc)
	if err != nil {
		return nil, err
	}
	s := metadata.NewSamplerState(d.nextSerial(), desc, sampler)
	d.samplers[s] = sampler
	return s, nil
}

/** @brief nil selects the default blend state. */
func (d *Device) SetBlendState(s *metadata.BlendState) {
	if s == nil {
		s = d.defaults.blend
	}
	if _, changed := d.reg.SwapBlend(s); !changed {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyPipeline
}

func (d *Device) SetRasterizerState(s *metadata.RasterizerState) {
	if s == nil {
		s = d.defaults.rasterizer
	}
	if _, changed := d.reg.SwapRasterizer(s); !changed {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyPipeline | dirtyViewport
}

// SetDepthStencilState only rebuilds the pipeline when the state object
// changed. The reference is dynamic.
func (d *Device) SetDepthStencilState(s *metadata.DepthStencilState, stencilRef uint8) {
	if s == nil {
		s = d.defaults.depthStencil
	}
	prev, changed := d.reg.SwapDepthStencil(s, stencilRef)
	if !changed {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	if prev != s {
		d.dirty |= dirtyPipeline
	}
	d.dirty |= dirtyStencilRef
}

func (d *Device) SetPrimitiveTopology(topology metadata.PrimitiveTopology) {
	core.Assert(topology != metadata.TopologyQuadList, "quad lists are only accepted by the immediate renderer")
	if !d.reg.SwapTopology(topology) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyPipeline
}

func (d *Device) SetViewport(vp metadata.Viewport) {
	if !d.reg.SwapViewport(vp) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyViewport
}

func (d *Device) SetTexture(slot int, texture *metadata.Texture) {
	if !d.reg.SwapTexture(slot, texture.Handle()) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	if slot >= maxDescriptorTextures && texture != nil {
		core.LogWarn("texture slot %d is beyond the %d slots shaders can read on this device", slot, maxDescriptorTextures)
	}
	d.dirty |= dirtyDescriptors
}

func (d *Device) SetSampler(slot int, sampler *metadata.SamplerState) {
	if !d.reg.SwapSampler(slot, sampler) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyDescriptors
}

func (d *Device) SetConstantBuffer(slot int, buffer *metadata.Buffer) {
	if !d.reg.SwapConstantBuffer(slot, buffer.Handle()) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyDescriptors
}
