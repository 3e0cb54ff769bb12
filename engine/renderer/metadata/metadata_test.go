package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDepthStencil(t *testing.T) {
	assert.True(t, FormatD24UnormS8Uint.HasStencil())
	assert.True(t, FormatD32FloatS8Uint.HasStencil())
	assert.False(t, FormatD32Float.HasStencil())
	assert.False(t, FormatD16Unorm.HasStencil())
	assert.True(t, FormatD16Unorm.IsDepth())
	assert.False(t, FormatRGBA8Unorm.IsDepth())
	assert.Equal(t, 4, FormatRGBA8Unorm.BytesPerPixel())
	assert.Equal(t, "d24s8", FormatD24UnormS8Uint.String())
}

func TestBlendStateNormalizesSharedDesc(t *testing.T) {
	desc := DefaultBlendDesc()
	desc.RenderTarget[0].BlendEnable = true
	desc.RenderTarget[3].WriteMask = ColorWriteRed

	shared := NewBlendState(1, desc).Desc()
	for i := 0; i < MaxRenderTargets; i++ {
		assert.Equal(t, desc.RenderTarget[0], shared.RenderTarget[i])
	}

	desc.IndependentBlend = true
	independent := NewBlendState(2, desc).Desc()
	assert.Equal(t, ColorWriteRed, independent.RenderTarget[3].WriteMask)
	assert.False(t, independent.RenderTarget[1].BlendEnable)
}

func TestDetectEntryPoint(t *testing.T) {
	src := "float4 vs_main(VSIn v) { return v.pos; }\nfloat4 ps_main () {}"
	assert.True(t, DetectEntryPoint(src, "vs_main"))
	assert.True(t, DetectEntryPoint(src, "ps_main"))
	assert.False(t, DetectEntryPoint(src, "gs_main"))
	assert.False(t, DetectEntryPoint(src, "main"))

	stage := ShaderStageSource{Source: "void main() {}"}
	assert.True(t, stage.Present())
	assert.Equal(t, "main", stage.Entry())

	stage.Detect = func(string, string) bool { return false }
	assert.False(t, stage.Present())
}

func TestInputLayoutSlots(t *testing.T) {
	desc := InputLayoutDesc{Elements: []InputElement{
		{Location: 0, Format: FormatR32Float, Components: 3, Slot: 0},
		{Location: 1, Format: FormatR8Unorm, Components: 4, Offset: 12, Slot: 0},
		{Location: 2, Format: FormatR32Float, Components: 4, Slot: 2, PerInstance: true},
	}}
	assert.Equal(t, 3, desc.Slots())
	assert.True(t, desc.PerInstance(2))
	assert.False(t, desc.PerInstance(0))
	assert.Equal(t, uint32(12), desc.Elements[0].Size())
	assert.True(t, desc.Elements[1].Normalized())
}

func TestStageMask(t *testing.T) {
	m := MaskVertex | MaskPixel
	assert.True(t, m.Has(StageVertex))
	assert.False(t, m.Has(StageGeometry))
	assert.Equal(t, "pixel", StagePixel.String())
	var s *Shader
	assert.False(t, s.Implements(StageVertex))
}

func TestGetAligned(t *testing.T) {
	assert.Equal(t, uint64(0), GetAligned(0, 16))
	assert.Equal(t, uint64(16), GetAligned(1, 16))
	assert.Equal(t, uint64(80), GetAligned(80, 16))
	assert.Equal(t, uint64(96), GetAligned(81, 16))
}
