package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

var blendFactors = [...]vk.BlendFactor{
	metadata.BlendZero:         vk.BlendFactorZero,
	metadata.BlendOne:          vk.BlendFactorOne,
	metadata.BlendSrcColor:     vk.BlendFactorSrcColor,
	metadata.BlendInvSrcColor:  vk.BlendFactorOneMinusSrcColor,
	metadata.BlendSrcAlpha:     vk.BlendFactorSrcAlpha,
	metadata.BlendInvSrcAlpha:  vk.BlendFactorOneMinusSrcAlpha,
	metadata.BlendDestAlpha:    vk.BlendFactorDstAlpha,
	metadata.BlendInvDestAlpha: vk.BlendFactorOneMinusDstAlpha,
	metadata.BlendDestColor:    vk.BlendFactorDstColor,
	metadata.BlendInvDestColor: vk.BlendFactorOneMinusDstColor,
	metadata.BlendSrcAlphaSat:  vk.BlendFactorSrcAlphaSaturate,
	metadata.BlendConstant:     vk.BlendFactorConstantColor,
	metadata.BlendInvConstant:  vk.BlendFactorOneMinusConstantColor,
}

var blendOps = [...]vk.BlendOp{
	metadata.BlendOpAdd:         vk.BlendOpAdd,
	metadata.BlendOpSubtract:    vk.BlendOpSubtract,
	metadata.BlendOpRevSubtract: vk.BlendOpReverseSubtract,
	metadata.BlendOpMin:         vk.BlendOpMin,
	metadata.BlendOpMax:         vk.BlendOpMax,
}

var compareOps = [...]vk.CompareOp{
	metadata.CompareNever:        vk.CompareOpNever,
	metadata.CompareLess:         vk.CompareOpLess,
	metadata.CompareEqual:        vk.CompareOpEqual,
	metadata.CompareLessEqual:    vk.CompareOpLessOrEqual,
	metadata.CompareGreater:      vk.CompareOpGreater,
	metadata.CompareNotEqual:     vk.CompareOpNotEqual,
	metadata.CompareGreaterEqual: vk.CompareOpGreaterOrEqual,
	metadata.CompareAlways:       vk.CompareOpAlways,
}

var stencilOps = [...]vk.StencilOp{
	metadata.StencilKeep:    vk.StencilOpKeep,
	metadata.StencilZero:    vk.StencilOpZero,
	metadata.StencilReplace: vk.StencilOpReplace,
	metadata.StencilIncrSat: vk.StencilOpIncrementAndClamp,
	metadata.StencilDecrSat: vk.StencilOpDecrementAndClamp,
	metadata.StencilInvert:  vk.StencilOpInvert,
	metadata.StencilIncr:    vk.StencilOpIncrementAndWrap,
	metadata.StencilDecr:    vk.StencilOpDecrementAndWrap,
}

var cullModes = [...]vk.CullModeFlagBits{
	metadata.CullNone:  vk.CullModeNone,
	metadata.CullFront: vk.CullModeFrontBit,
	metadata.CullBack:  vk.CullModeBackBit,
}

var addressModes = [...]vk.SamplerAddressMode{
	metadata.AddressWrap:   vk.SamplerAddressModeRepeat,
	metadata.AddressMirror: vk.SamplerAddressModeMirroredRepeat,
	metadata.AddressClamp:  vk.SamplerAddressModeClampToEdge,
	metadata.AddressBorder: vk.SamplerAddressModeClampToBorder,
}

var topologies = map[metadata.PrimitiveTopology]vk.PrimitiveTopology{
	metadata.TopologyPointList:     vk.PrimitiveTopologyPointList,
	metadata.TopologyLineList:      vk.PrimitiveTopologyLineList,
	metadata.TopologyLineStrip:     vk.PrimitiveTopologyLineStrip,
	metadata.TopologyTriangleList:  vk.PrimitiveTopologyTriangleList,
	metadata.TopologyTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
}

var formats = map[metadata.Format]vk.Format{
	metadata.FormatR8Unorm:        vk.FormatR8Unorm,
	metadata.FormatRG8Unorm:       vk.FormatR8g8Unorm,
	metadata.FormatRGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	metadata.FormatBGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	metadata.FormatRGBA16Float:    vk.FormatR16g16b16a16Sfloat,
	metadata.FormatRGBA32Float:    vk.FormatR32g32b32a32Sfloat,
	metadata.FormatR32Float:       vk.FormatR32Sfloat,
	metadata.FormatRG32Float:      vk.FormatR32g32Sfloat,
	metadata.FormatRGB32Float:     vk.FormatR32g32b32Sfloat,
	metadata.FormatD16Unorm:       vk.FormatD16Unorm,
	metadata.FormatD24UnormS8Uint: vk.FormatD24UnormS8Uint,
	metadata.FormatD32Float:       vk.FormatD32Sfloat,
	metadata.FormatD32FloatS8Uint: vk.FormatD32SfloatS8Uint,
	metadata.FormatR16Uint:        vk.FormatR16Uint,
	metadata.FormatR32Uint:        vk.FormatR32Uint,
}

func nativeFormat(f metadata.Format) (vk.Format, bool) {
	vf, ok := formats[f]
	return vf, ok
}

// Vertex attribute formats by component type, indexed by component count - 1.
var (
	unorm8Attribs  = [4]vk.Format{vk.FormatR8Unorm, vk.FormatR8g8Unorm, vk.FormatR8g8b8Unorm, vk.FormatR8g8b8a8Unorm}
	half16Attribs  = [4]vk.Format{vk.FormatR16Sfloat, vk.FormatR16g16Sfloat, vk.FormatR16g16b16Sfloat, vk.FormatR16g16b16a16Sfloat}
	float32Attribs = [4]vk.Format{vk.FormatR32Sfloat, vk.FormatR32g32Sfloat, vk.FormatR32g32b32Sfloat, vk.FormatR32g32b32a32Sfloat}
	uint16Attribs  = [4]vk.Format{vk.FormatR16Uint, vk.FormatR16g16Uint, vk.FormatR16g16b16Uint, vk.FormatR16g16b16a16Uint}
	uint32Attribs  = [4]vk.Format{vk.FormatR32Uint, vk.FormatR32g32Uint, vk.FormatR32g32b32Uint, vk.FormatR32g32b32a32Uint}
)

// attributeFormat maps an element's component type and count onto a vertex
// input format.
func attributeFormat(e metadata.InputElement) (vk.Format, bool) {
	if e.Components < 1 || e.Components > 4 {
		return vk.FormatUndefined, false
	}
	n := e.Components - 1
	switch e.Format {
	case metadata.FormatBGRA8Unorm:
		if e.Components == 4 {
			return vk.FormatB8g8r8a8Unorm, true
		}
		return unorm8Attribs[n], true
	case metadata.FormatR8Unorm, metadata.FormatRG8Unorm, metadata.FormatRGBA8Unorm:
		return unorm8Attribs[n], true
	case metadata.FormatRGBA16Float:
		return half16Attribs[n], true
	case metadata.FormatR32Float, metadata.FormatRG32Float, metadata.FormatRGB32Float, metadata.FormatRGBA32Float:
		return float32Attribs[n], true
	case metadata.FormatR16Uint:
		return uint16Attribs[n], true
	case metadata.FormatR32Uint:
		return uint32Attribs[n], true
	}
	return vk.FormatUndefined, false
}

func indexType(f metadata.Format) vk.IndexType {
	if f == metadata.FormatR16Uint {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func filter(f metadata.Filter) vk.Filter {
	if f == metadata.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func mipmapMode(f metadata.Filter) vk.SamplerMipmapMode {
	if f == metadata.FilterNearest {
		return vk.SamplerMipmapModeNearest
	}
	return vk.SamplerMipmapModeLinear
}

// borderColor picks the closest of the fixed border colors.
func borderColor(c [4]float32) vk.BorderColor {
	switch {
	case c[3] < 0.5:
		return vk.BorderColorFloatTransparentBlack
	case c[0] > 0.5 && c[1] > 0.5 && c[2] > 0.5:
		return vk.BorderColorFloatOpaqueWhite
	}
	return vk.BorderColorFloatOpaqueBlack
}

func colorWriteMask(m metadata.ColorWriteMask) vk.ColorComponentFlags {
	var f vk.ColorComponentFlags
	if m&metadata.ColorWriteRed != 0 {
		f |= vk.ColorComponentFlags(vk.ColorComponentRBit)
	}
	if m&metadata.ColorWriteGreen != 0 {
		f |= vk.ColorComponentFlags(vk.ColorComponentGBit)
	}
	if m&metadata.ColorWriteBlue != 0 {
		f |= vk.ColorComponentFlags(vk.ColorComponentBBit)
	}
	if m&metadata.ColorWriteAlpha != 0 {
		f |= vk.ColorComponentFlags(vk.ColorComponentABit)
	}
	return f
}

func boolean(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func stencilFace(d metadata.StencilOpDesc, readMask, writeMask uint8) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      stencilOps[d.FailOp],
		PassOp:      stencilOps[d.PassOp],
		DepthFailOp: stencilOps[d.DepthFailOp],
		CompareOp:   compareOps[d.Func],
		CompareMask: uint32(readMask),
		WriteMask:   uint32(writeMask),
	}
}

func aspectMask(f metadata.Format) vk.ImageAspectFlags {
	if !f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	m := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if f.HasStencil() {
		m |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return m
}

var stageFlags = [metadata.ShaderStageCount]vk.ShaderStageFlagBits{
	metadata.StageVertex:   vk.ShaderStageVertexBit,
	metadata.StagePixel:    vk.ShaderStageFragmentBit,
	metadata.StageGeometry: vk.ShaderStageGeometryBit,
	metadata.StageHull:     vk.ShaderStageTessellationControlBit,
	metadata.StageDomain:   vk.ShaderStageTessellationEvaluationBit,
	metadata.StageCompute:  vk.ShaderStageComputeBit,
}

// viewport flips Y so the viewport origin is the bottom left corner, the
// same convention as the OpenGL device.
func viewport(vp metadata.Viewport, targetHeight uint32) vk.Viewport {
	return vk.Viewport{
		X:        float32(vp.X),
		Y:        float32(int32(targetHeight) - vp.Y),
		Width:    float32(vp.Width),
		Height:   -float32(vp.Height),
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
}

func scissor(vp metadata.Viewport, targetHeight uint32) vk.Rect2D {
	y := int32(targetHeight) - vp.Y - int32(vp.Height)
	return vk.Rect2D{
		Offset: vk.Offset2D{X: max(vp.X, 0), Y: max(y, 0)},
		Extent: vk.Extent2D{Width: vp.Width, Height: vp.Height},
	}
}

// spirvWords reads little-endian SPIR-V bytes as 32-bit words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// frontendFormat maps a native format back, FormatUnknown when the device
// format has no frontend name.
func frontendFormat(vf vk.Format) metadata.Format {
	for f, native := range formats {
		if native == vf {
			return f
		}
	}
	return metadata.FormatUnknown
}
