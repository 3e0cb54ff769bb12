package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief Everything a graphics pipeline bakes in besides its shaders. State
 * objects are identified by serial, so two equal descs created separately
 * still build separate pipelines.
 */
type pipelineKey struct {
	blend        uint64
	rasterizer   uint64
	depthStencil uint64
	topology     metadata.PrimitiveTopology
	layout       core.ID
	strides      [metadata.MaxVertexBuffers]uint32
	attachments  attachmentLayout
}

/**
 * @brief A linked set of shader stages and the pipelines built from it.
 */
type vkProgram struct {
	hash      uint64
	stages    []vk.PipelineShaderStageCreateInfo
	pipelines map[pipelineKey]vk.Pipeline
}

func (p *vkProgram) destroy(context *VulkanContext) {
	if p == nil {
		return
	}
	for key, pipeline := range p.pipelines {
		_ = context.locks.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipeline(context.Device.LogicalDevice, pipeline, context.Allocator)
			return nil
		})
		delete(p.pipelines, key)
	}
}

type pipelineConfig struct {
	program      *vkProgram
	renderpass   *VulkanRenderpass
	layout       vk.PipelineLayout
	blend        metadata.BlendDesc
	rasterizer   metadata.RasterizerDesc
	depthStencil metadata.DepthStencilDesc
	topology     vk.PrimitiveTopology
	input        *metadata.InputLayoutDesc
	strides      []uint32
	features     vk.PhysicalDeviceFeatures
}

// vertexInput describes one binding per layout slot and one attribute per
// element.
func vertexInput(input *metadata.InputLayoutDesc, strides []uint32) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, error) {
	if input == nil {
		return nil, nil, nil
	}
	var bindings []vk.VertexInputBindingDescription
	for slot := 0; slot < input.Slots(); slot++ {
		rate := vk.VertexInputRateVertex
		if input.PerInstance(uint32(slot)) {
			rate = vk.VertexInputRateInstance
		}
		var stride uint32
		if slot < len(strides) {
			stride = strides[slot]
		}
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   uint32(slot),
			Stride:    stride,
			InputRate: rate,
		})
	}
	attributes := make([]vk.VertexInputAttributeDescription, 0, len(input.Elements))
	for _, e := range input.Elements {
		format, ok := attributeFormat(e)
		if !ok {
			return nil, nil, fmt.Errorf("%w: attribute %d has format %s with %d components",
				core.ErrUnsupported, e.Location, e.Format, e.Components)
		}
		if e.PerInstance && e.InstanceStepRate > 1 {
			core.LogWarn("attribute %d: instance step rate %d is not supported, stepping every instance",
				e.Location, e.InstanceStepRate)
		}
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: e.Location,
			Binding:  e.Slot,
			Format:   format,
			Offset:   e.Offset,
		})
	}
	return bindings, attributes, nil
}

func rasterizationState(desc metadata.RasterizerDesc, features vk.PhysicalDeviceFeatures) vk.PipelineRasterizationStateCreateInfo {
	info := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        boolean(!desc.DepthClipEnable && features.DepthClamp == vk.True),
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(cullModes[desc.CullMode]),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         boolean(desc.DepthBias != 0 || desc.SlopeScaledDepthBias != 0),
		DepthBiasConstantFactor: desc.DepthBias,
		DepthBiasSlopeFactor:    desc.SlopeScaledDepthBias,
	}
	if desc.FrontCounterClockwise {
		info.FrontFace = vk.FrontFaceCounterClockwise
	}
	if desc.FillMode == metadata.FillWireframe {
		if features.FillModeNonSolid == vk.True {
			info.PolygonMode = vk.PolygonModeLine
		} else {
			core.LogWarn("wireframe fill is not supported by the device, drawing solid")
		}
	}
	return info
}

func depthStencilState(desc metadata.DepthStencilDesc) vk.PipelineDepthStencilStateCreateInfo {
	return vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   boolean(desc.DepthEnable),
		DepthWriteEnable:  boolean(desc.DepthEnable && desc.DepthWrite),
		DepthCompareOp:    compareOps[desc.DepthFunc],
		StencilTestEnable: boolean(desc.StencilEnable),
		Front:             stencilFace(desc.Front, desc.StencilReadMask, desc.StencilWriteMask),
		Back:              stencilFace(desc.Back, desc.StencilReadMask, desc.StencilWriteMask),
		MaxDepthBounds:    1.0,
	}
}

// blendAttachments builds one blend state per color slot of the pass.
// Without independent blend every slot takes slot 0.
func blendAttachments(desc metadata.BlendDesc, count int, independent bool) []vk.PipelineColorBlendAttachmentState {
	out := make([]vk.PipelineColorBlendAttachmentState, count)
	for i := range out {
		rt := desc.RenderTarget[0]
		if desc.IndependentBlend && independent {
			rt = desc.RenderTarget[i]
		}
		out[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         boolean(rt.BlendEnable),
			SrcColorBlendFactor: blendFactors[rt.SrcBlend],
			DstColorBlendFactor: blendFactors[rt.DestBlend],
			ColorBlendOp:        blendOps[rt.BlendOp],
			SrcAlphaBlendFactor: blendFactors[rt.SrcBlendAlpha],
			DstAlphaBlendFactor: blendFactors[rt.DestBlendAlpha],
			AlphaBlendOp:        blendOps[rt.BlendOpAlpha],
			ColorWriteMask:      colorWriteMask(rt.WriteMask),
		}
	}
	return out
}

func NewGraphicsPipeline(context *VulkanContext, config *pipelineConfig) (vk.Pipeline, error) {
	// Viewport and scissor are dynamic; only the counts are baked.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := rasterizationState(config.rasterizer, config.features)

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: boolean(config.blend.AlphaToCoverage),
	}

	depthStencil := depthStencilState(config.depthStencil)

	attachments := blendAttachments(config.blend, int(config.renderpass.Key.layout.count), config.features.IndependentBlend == vk.True)
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateStencilReference,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindings, attributes, err := vertexInput(config.input, config.strides)
	if err != nil {
		return vk.NullPipeline, err
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               config.topology,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.program.stages)),
		PStages:             config.program.stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              config.layout,
		RenderPass:          config.renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		res := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pipelines)
		if !VulkanResultIsSuccess(res) {
			return fmt.Errorf("%w: vkCreateGraphicsPipelines: %s", core.ErrResourceCreation, VulkanResultString(res))
		}
		return nil
	}); err != nil {
		return vk.NullPipeline, err
	}
	core.LogDebug("Graphics pipeline created!")
	return pipelines[0], nil
}

// currentPipelineKey reads the register into a pipeline key for the open pass.
func (d *Device) currentPipelineKey() pipelineKey {
	key := pipelineKey{
		blend:        d.reg.Blend().Serial(),
		rasterizer:   d.reg.Rasterizer().Serial(),
		depthStencil: d.reg.DepthStencil().Serial(),
		topology:     d.reg.Topology(),
		layout:       d.reg.Layout(),
		attachments:  d.pass.Key.layout,
	}
	_, strides := d.reg.VertexBuffers()
	copy(key.strides[:], strides)
	return key
}

// bindPipeline binds the pipeline matching the program and register,
// building it on first use.
func (d *Device) bindPipeline(cb *VulkanCommandBuffer) error {
	key := d.currentPipelineKey()
	if d.dirty&dirtyPipeline == 0 && d.pipeline != vk.NullPipeline && key == d.boundKey {
		return nil
	}
	pipeline, ok := d.program.pipelines[key]
	if !ok {
		var input *metadata.InputLayoutDesc
		if l, ok := d.layouts.Get(key.layout); ok {
			input = &l.desc
		}
		// Pipelines are built against the loading pass; the fresh variant is
		// compatible with it.
		rp, err := d.passFor(passKey{layout: key.attachments})
		if err != nil {
			return err
		}
		pipeline, err = NewGraphicsPipeline(d.context, &pipelineConfig{
			program:      d.program,
			renderpass:   rp,
			layout:       d.pipelineLayout,
			blend:        d.reg.Blend().Desc(),
			rasterizer:   d.reg.Rasterizer().Desc(),
			depthStencil: d.reg.DepthStencil().Desc(),
			topology:     topologies[key.topology],
			input:        input,
			strides:      key.strides[:],
			features:     d.context.Device.Enabled,
		})
		if err != nil {
			return err
		}
		d.program.pipelines[key] = pipeline
	}
	vk.CmdBindPipeline(cb.Handle, vk.PipelineBindPointGraphics, pipeline)
	d.pipeline, d.boundKey = pipeline, key
	d.dirty &^= dirtyPipeline
	return nil
}
