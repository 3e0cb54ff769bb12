package opengl

import (
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

var blendFactors = [...]glapi.Enum{
	metadata.BlendZero:         glapi.ZERO,
	metadata.BlendOne:          glapi.ONE,
	metadata.BlendSrcColor:     glapi.SRC_COLOR,
	metadata.BlendInvSrcColor:  glapi.ONE_MINUS_SRC_COLOR,
	metadata.BlendSrcAlpha:     glapi.SRC_ALPHA,
	metadata.BlendInvSrcAlpha:  glapi.ONE_MINUS_SRC_ALPHA,
	metadata.BlendDestAlpha:    glapi.DST_ALPHA,
	metadata.BlendInvDestAlpha: glapi.ONE_MINUS_DST_ALPHA,
	metadata.BlendDestColor:    glapi.DST_COLOR,
	metadata.BlendInvDestColor: glapi.ONE_MINUS_DST_COLOR,
	metadata.BlendSrcAlphaSat:  glapi.SRC_ALPHA_SATURATE,
	metadata.BlendConstant:     glapi.CONSTANT_COLOR,
	metadata.BlendInvConstant:  glapi.ONE_MINUS_CONSTANT_COLOR,
}

var blendOps = [...]glapi.Enum{
	metadata.BlendOpAdd:         glapi.FUNC_ADD,
	metadata.BlendOpSubtract:    glapi.FUNC_SUBTRACT,
	metadata.BlendOpRevSubtract: glapi.FUNC_REVERSE_SUBTRACT,
	metadata.BlendOpMin:         glapi.MIN,
	metadata.BlendOpMax:         glapi.MAX,
}

var compareFuncs = [...]glapi.Enum{
	metadata.CompareNever:        glapi.NEVER,
	metadata.CompareLess:         glapi.LESS,
	metadata.CompareEqual:        glapi.EQUAL,
	metadata.CompareLessEqual:    glapi.LEQUAL,
	metadata.CompareGreater:      glapi.GREATER,
	metadata.CompareNotEqual:     glapi.NOTEQUAL,
	metadata.CompareGreaterEqual: glapi.GEQUAL,
	metadata.CompareAlways:       glapi.ALWAYS,
}

var stencilOps = [...]glapi.Enum{
	metadata.StencilKeep:    glapi.KEEP,
	metadata.StencilZero:    glapi.ZERO,
	metadata.StencilReplace: glapi.REPLACE,
	metadata.StencilIncrSat: glapi.INCR,
	metadata.StencilDecrSat: glapi.DECR,
	metadata.StencilInvert:  glapi.INVERT,
	metadata.StencilIncr:    glapi.INCR_WRAP,
	metadata.StencilDecr:    glapi.DECR_WRAP,
}

var addressModes = [...]glapi.Enum{
	metadata.AddressWrap:   glapi.REPEAT,
	metadata.AddressMirror: glapi.MIRRORED_REPEAT,
	metadata.AddressClamp:  glapi.CLAMP_TO_EDGE,
	metadata.AddressBorder: glapi.CLAMP_TO_BORDER,
}

func (d *Device) enable(cap glapi.Enum, on bool) {
	if on {
		d.gl.Enable(cap)
	} else {
		d.gl.Disable(cap)
	}
}

func (d *Device) CreateBlendState(desc metadata.BlendDesc) *metadata.BlendState {
	return metadata.NewBlendState(d.nextSerial(), desc)
}

func (d *Device) CreateRasterizerState(desc metadata.RasterizerDesc) *metadata.RasterizerState {
	return metadata.NewRasterizerState(d.nextSerial(), desc)
}

func (d *Device) CreateDepthStencilState(desc metadata.DepthStencilDesc) *metadata.DepthStencilState {
	return metadata.NewDepthStencilState(d.nextSerial(), desc)
}

func (d *Device) CreateSamplerState(desc metadata.SamplerDesc) (*metadata.SamplerState, error) {
	name := d.gl.GenSampler()
	d.gl.SamplerParameteri(name, glapi.TEXTURE_MIN_FILTER, int32(minFilter(desc.MinFilter, desc.MipFilter)))
	d.gl.SamplerParameteri(name, glapi.TEXTURE_MAG_FILTER, int32(magFilter(desc.MagFilter)))
	d.gl.SamplerParameteri(name, glapi.TEXTURE_WRAP_S, int32(addressModes[desc.AddressU]))
	d.gl.SamplerParameteri(name, glapi.TEXTURE_WRAP_T, int32(addressModes[desc.AddressV]))
	d.gl.SamplerParameteri(name, glapi.TEXTURE_WRAP_R, int32(addressModes[desc.AddressW]))
	d.gl.SamplerParameterf(name, glapi.TEXTURE_MIN_LOD, desc.MinLOD)
	d.gl.SamplerParameterf(name, glapi.TEXTURE_MAX_LOD, desc.MaxLOD)
	if desc.MaxAnisotropy > 1 {
		d.gl.SamplerParameterf(name, glapi.TEXTURE_MAX_ANISOTROPY, float32(desc.MaxAnisotropy))
	}
	if desc.CompareEnable {
		d.gl.SamplerParameteri(name, glapi.TEXTURE_COMPARE_MODE, int32(glapi.COMPARE_REF_TO_TEXTURE))
		d.gl.SamplerParameteri(name, glapi.TEXTURE_COMPARE_FUNC, int32(compareFuncs[desc.CompareFunc]))
	}
	if desc.AddressU == metadata.AddressBorder || desc.AddressV == metadata.AddressBorder || desc.AddressW == metadata.AddressBorder {
		d.gl.SamplerParameterfv(name, glapi.TEXTURE_BORDER_COLOR, desc.BorderColor[:])
	}
	s := metadata.NewSamplerState(d.nextSerial(), desc, name)
	d.samplers[s] = name
	return s, nil
}

func minFilter(min, mip metadata.Filter) glapi.Enum {
	switch {
	case min == metadata.FilterNearest && mip == metadata.FilterNearest:
		return glapi.NEAREST_MIPMAP_NEAREST
	case min == metadata.FilterLinear && mip == metadata.FilterNearest:
		return glapi.LINEAR_MIPMAP_NEAREST
	case min == metadata.FilterNearest:
		return glapi.NEAREST_MIPMAP_LINEAR
	}
	return glapi.LINEAR_MIPMAP_LINEAR
}

func magFilter(f metadata.Filter) glapi.Enum {
	if f == metadata.FilterNearest {
		return glapi.NEAREST
	}
	return glapi.LINEAR
}

/** @brief nil selects the default blend state. */
func (d *Device) SetBlendState(s *metadata.BlendState) {
	if s == nil {
		s = d.defaults.blend
	}
	prev, changed := d.reg.SwapBlend(s)
	if !changed {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()

	next := s.Desc()
	if prev == nil || prev.Desc().AlphaToCoverage != next.AlphaToCoverage {
		d.enable(glapi.SAMPLE_ALPHA_TO_COVERAGE, next.AlphaToCoverage)
	}

	changedSlots := state.ChangedAttachments(prev, s)
	for i := 0; i < metadata.MaxRenderTargets; i++ {
		if changedSlots&(1<<i) == 0 {
			continue
		}
		n := next.RenderTarget[i]
		var p metadata.RenderTargetBlendDesc
		if prev != nil {
			p = prev.Desc().RenderTarget[i]
		}
		d.applyAttachmentBlend(uint32(i), prev == nil, p, n)
	}
}

func (d *Device) applyAttachmentBlend(buf uint32, full bool, p, n metadata.RenderTargetBlendDesc) {
	if full || p.BlendEnable != n.BlendEnable {
		if n.BlendEnable {
			d.gl.Enablei(glapi.BLEND, buf)
		} else {
			d.gl.Disablei(glapi.BLEND, buf)
		}
	}
	if full || p.SrcBlend != n.SrcBlend || p.DestBlend != n.DestBlend ||
		p.SrcBlendAlpha != n.SrcBlendAlpha || p.DestBlendAlpha != n.DestBlendAlpha {
		d.gl.BlendFuncSeparatei(buf,
			blendFactors[n.SrcBlend], blendFactors[n.DestBlend],
			blendFactors[n.SrcBlendAlpha], blendFactors[n.DestBlendAlpha])
	}
	if full || p.BlendOp != n.BlendOp || p.BlendOpAlpha != n.BlendOpAlpha {
		d.gl.BlendEquationSeparatei(buf, blendOps[n.BlendOp], blendOps[n.BlendOpAlpha])
	}
	if full || p.WriteMask != n.WriteMask {
		m := n.WriteMask
		d.gl.ColorMaski(buf,
			m&metadata.ColorWriteRed != 0, m&metadata.ColorWriteGreen != 0,
			m&metadata.ColorWriteBlue != 0, m&metadata.ColorWriteAlpha != 0)
	}
}

/** @brief nil selects the default rasterizer state. */
func (d *Device) SetRasterizerState(s *metadata.RasterizerState) {
	if s == nil {
		s = d.defaults.rasterizer
	}
	prev, changed := d.reg.SwapRasterizer(s)
	if !changed {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()

	full := prev == nil
	var p metadata.RasterizerDesc
	if !full {
		p = prev.Desc()
	}
	n := s.Desc()

	if full || p.CullMode != n.CullMode {
		switch n.CullMode {
		case metadata.CullNone:
			d.gl.Disable(glapi.CULL_FACE)
		case metadata.CullFront:
			d.gl.Enable(glapi.CULL_FACE)
			d.gl.CullFace(glapi.FRONT)
		default:
			d.gl.Enable(glapi.CULL_FACE)
			d.gl.CullFace(glapi.BACK)
		}
	}
	if full || p.FrontCounterClockwise != n.FrontCounterClockwise {
		if n.FrontCounterClockwise {
			d.gl.FrontFace(glapi.CCW)
		} else {
			d.gl.FrontFace(glapi.CW)
		}
	}
	if full || p.FillMode != n.FillMode {
		if n.FillMode == metadata.FillWireframe {
			d.gl.PolygonMode(glapi.FRONT_AND_BACK, glapi.LINE)
		} else {
			d.gl.PolygonMode(glapi.FRONT_AND_BACK, glapi.FILL)
		}
	}
	if full || p.DepthBias != n.DepthBias || p.SlopeScaledDepthBias != n.SlopeScaledDepthBias {
		biased := n.DepthBias != 0 || n.SlopeScaledDepthBias != 0
		d.enable(glapi.POLYGON_OFFSET_FILL, biased)
		if biased {
			d.gl.PolygonOffset(n.SlopeScaledDepthBias, n.DepthBias)
		}
	}
	if full || p.DepthClipEnable != n.DepthClipEnable {
		d.enable(glapi.DEPTH_CLAMP, !n.DepthClipEnable)
	}
	if full || p.ScissorEnable != n.ScissorEnable {
		d.enable(glapi.SCISSOR_TEST, n.ScissorEnable)
	}
}

/** @brief nil selects the default depth-stencil state. */
func (d *Device) SetDepthStencilState(s *metadata.DepthStencilState, stencilRef uint8) {
	if s == nil {
		s = d.defaults.depthStencil
	}
	prevRef := d.reg.StencilRef()
	prev, changed := d.reg.SwapDepthStencil(s, stencilRef)
	if !changed {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()

	full := prev == nil
	var p metadata.DepthStencilDesc
	if !full {
		p = prev.Desc()
	}
	n := s.Desc()

	if full || p.DepthEnable != n.DepthEnable {
		d.enable(glapi.DEPTH_TEST, n.DepthEnable)
	}
	if full || p.DepthWrite != n.DepthWrite {
		d.gl.DepthMask(n.DepthWrite)
	}
	if full || p.DepthFunc != n.DepthFunc {
		d.gl.DepthFunc(compareFuncs[n.DepthFunc])
	}
	if full || p.StencilEnable != n.StencilEnable {
		d.enable(glapi.STENCIL_TEST, n.StencilEnable)
	}
	refChanged := full || prevRef != stencilRef || p.StencilReadMask != n.StencilReadMask
	d.applyStencilFace(glapi.FRONT, full, refChanged, p.Front, n.Front, stencilRef, n.StencilReadMask)
	d.applyStencilFace(glapi.BACK, full, refChanged, p.Back, n.Back, stencilRef, n.StencilReadMask)
	if full || p.StencilWriteMask != n.StencilWriteMask {
		d.gl.StencilMaskSeparate(glapi.FRONT_AND_BACK, uint32(n.StencilWriteMask))
	}
}

func (d *Device) applyStencilFace(face glapi.Enum, full, refChanged bool, p, n metadata.StencilOpDesc, ref, readMask uint8) {
	if refChanged || p.Func != n.Func {
		d.gl.StencilFuncSeparate(face, compareFuncs[n.Func], int32(ref), uint32(readMask))
	}
	if full || p.FailOp != n.FailOp || p.DepthFailOp != n.DepthFailOp || p.PassOp != n.PassOp {
		d.gl.StencilOpSeparate(face, stencilOps[n.FailOp], stencilOps[n.DepthFailOp], stencilOps[n.PassOp])
	}
}

// SetPrimitiveTopology only records the mode; GL takes it per draw.
func (d *Device) SetPrimitiveTopology(topology metadata.PrimitiveTopology) {
	core.Assert(topology != metadata.TopologyQuadList, "quad lists are only accepted by the immediate renderer")
	if !d.reg.SwapTopology(topology) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
}

func (d *Device) SetViewport(vp metadata.Viewport) {
	if !d.reg.SwapViewport(vp) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.gl.Viewport(vp.X, vp.Y, int32(vp.Width), int32(vp.Height))
	d.gl.DepthRange(float64(vp.MinDepth), float64(vp.MaxDepth))
}

func (d *Device) SetTexture(slot int, texture *metadata.Texture) {
	if !d.reg.SwapTexture(slot, texture.Handle()) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	unit := uint32(slot)
	if t, ok := d.textures.Get(texture.Handle()); ok {
		d.bindTexture(unit, t.target, t.name)
		return
	}
	target := d.units[unit].target
	if target == 0 {
		target = glapi.TEXTURE_2D
	}
	d.bindTexture(unit, target, 0)
}

func (d *Device) SetSampler(slot int, sampler *metadata.SamplerState) {
	if !d.reg.SwapSampler(slot, sampler) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	var name uint32
	if sampler != nil {
		name = d.samplers[sampler]
	}
	d.gl.BindSampler(uint32(slot), name)
}

func (d *Device) SetConstantBuffer(slot int, buffer *metadata.Buffer) {
	if !d.reg.SwapConstantBuffer(slot, buffer.Handle()) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	var name uint32
	if b, ok := d.buffers.Get(buffer.Handle()); ok {
		name = b.name
	}
	d.gl.BindBufferBase(glapi.UNIFORM_BUFFER, uint32(slot), name)
}
