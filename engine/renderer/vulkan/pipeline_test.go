package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func TestPipelineKeyIsComparable(t *testing.T) {
	a := pipelineKey{blend: 1, rasterizer: 2, depthStencil: 3, topology: metadata.TopologyTriangleList, attachments: multiLayout(0b111)}
	b := a
	assert.Equal(t, a, b)

	b.strides[1] = 16
	assert.NotEqual(t, a, b)

	c := a
	c.attachments.mask = 0b011
	assert.NotEqual(t, a, c)

	cache := map[pipelineKey]int{a: 1}
	_, ok := cache[b]
	assert.False(t, ok)
}

func TestBlendAttachmentsWithoutIndependentBlend(t *testing.T) {
	desc := metadata.DefaultBlendDesc()
	desc.IndependentBlend = true
	desc.RenderTarget[0].BlendEnable = true
	desc.RenderTarget[1].SrcBlend = metadata.BlendSrcAlpha

	shared := blendAttachments(desc, 3, false)
	require.Len(t, shared, 3)
	for _, a := range shared {
		assert.Equal(t, vk.True, a.BlendEnable)
		assert.Equal(t, vk.BlendFactorOne, a.SrcColorBlendFactor)
	}

	independent := blendAttachments(desc, 3, true)
	assert.Equal(t, vk.True, independent[0].BlendEnable)
	assert.Equal(t, vk.False, independent[1].BlendEnable)
	assert.Equal(t, vk.BlendFactorSrcAlpha, independent[1].SrcColorBlendFactor)
}

func TestVertexInput(t *testing.T) {
	input := &metadata.InputLayoutDesc{
		Name: "instanced",
		Elements: []metadata.InputElement{
			{Location: 0, Format: metadata.FormatR32Float, Components: 3},
			{Location: 1, Format: metadata.FormatRGBA8Unorm, Components: 4, Offset: 12},
			{Location: 2, Format: metadata.FormatR32Float, Components: 4, Slot: 1, PerInstance: true},
		},
	}
	bindings, attributes, err := vertexInput(input, []uint32{16, 64})
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	assert.Equal(t, uint32(16), bindings[0].Stride)
	assert.Equal(t, vk.VertexInputRateVertex, bindings[0].InputRate)
	assert.Equal(t, uint32(64), bindings[1].Stride)
	assert.Equal(t, vk.VertexInputRateInstance, bindings[1].InputRate)

	require.Len(t, attributes, 3)
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, attributes[1].Format)
	assert.Equal(t, uint32(12), attributes[1].Offset)
	assert.Equal(t, uint32(1), attributes[2].Binding)
}

func TestVertexInputWithoutLayout(t *testing.T) {
	bindings, attributes, err := vertexInput(nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, bindings)
	assert.Empty(t, attributes)
}

func TestRasterizationStateFeatures(t *testing.T) {
	desc := metadata.DefaultRasterizerDesc()
	desc.DepthClipEnable = false
	desc.FillMode = metadata.FillWireframe
	desc.DepthBias = 2

	none := rasterizationState(desc, vk.PhysicalDeviceFeatures{})
	assert.Equal(t, vk.False, none.DepthClampEnable)
	assert.Equal(t, vk.PolygonModeFill, none.PolygonMode)
	assert.Equal(t, vk.True, none.DepthBiasEnable)
	assert.Equal(t, float32(2), none.DepthBiasConstantFactor)

	full := rasterizationState(desc, vk.PhysicalDeviceFeatures{DepthClamp: vk.True, FillModeNonSolid: vk.True})
	assert.Equal(t, vk.True, full.DepthClampEnable)
	assert.Equal(t, vk.PolygonModeLine, full.PolygonMode)
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), full.CullMode)
	assert.Equal(t, vk.FrontFaceClockwise, full.FrontFace)
}

func TestDepthStencilStateIgnoresWritesWithoutTest(t *testing.T) {
	desc := metadata.DefaultDepthStencilDesc()
	desc.DepthEnable = false
	info := depthStencilState(desc)
	assert.Equal(t, vk.False, info.DepthTestEnable)
	assert.Equal(t, vk.False, info.DepthWriteEnable)
	assert.Equal(t, uint32(0xFF), info.Front.CompareMask)
	assert.Equal(t, vk.CompareOpAlways, info.Back.CompareOp)
}
