package metadata

/** @brief Number of render target slots with independent blend state. */
const MaxRenderTargets = 8

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestAlpha
	BlendInvDestAlpha
	BlendDestColor
	BlendInvDestColor
	BlendSrcAlphaSat
	BlendConstant
	BlendInvConstant
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

type ColorWriteMask uint8

const (
	ColorWriteRed ColorWriteMask = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha

	ColorWriteAll = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

/**
 * @brief Blend configuration of a single render target slot.
 */
type RenderTargetBlendDesc struct {
	BlendEnable    bool
	SrcBlend       BlendFactor
	DestBlend      BlendFactor
	BlendOp        BlendOp
	SrcBlendAlpha  BlendFactor
	DestBlendAlpha BlendFactor
	BlendOpAlpha   BlendOp
	WriteMask      ColorWriteMask
}

type BlendDesc struct {
	AlphaToCoverage bool
	/** @brief When false, RenderTarget[0] applies to every slot. */
	IndependentBlend bool
	RenderTarget     [MaxRenderTargets]RenderTargetBlendDesc
}

type FillMode uint8

const (
	FillSolid FillMode = iota
	FillWireframe
)

type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

type RasterizerDesc struct {
	FillMode              FillMode
	CullMode              CullMode
	FrontCounterClockwise bool
	DepthBias             float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       bool
	ScissorEnable         bool
}

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrSat
	StencilDecrSat
	StencilInvert
	StencilIncr
	StencilDecr
)

type StencilOpDesc struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	Func        CompareFunc
}

type DepthStencilDesc struct {
	DepthEnable      bool
	DepthWrite       bool
	DepthFunc        CompareFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	Front            StencilOpDesc
	Back             StencilOpDesc
}

type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

type AddressMode uint8

const (
	AddressWrap AddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
)

type SamplerDesc struct {
	MinFilter     Filter
	MagFilter     Filter
	MipFilter     Filter
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	MaxAnisotropy uint32
	CompareEnable bool
	CompareFunc   CompareFunc
	MinLOD        float32
	MaxLOD        float32
	BorderColor   [4]float32
}

func DefaultBlendDesc() BlendDesc {
	d := BlendDesc{}
	for i := range d.RenderTarget {
		d.RenderTarget[i] = RenderTargetBlendDesc{
			SrcBlend:       BlendOne,
			DestBlend:      BlendZero,
			BlendOp:        BlendOpAdd,
			SrcBlendAlpha:  BlendOne,
			DestBlendAlpha: BlendZero,
			BlendOpAlpha:   BlendOpAdd,
			WriteMask:      ColorWriteAll,
		}
	}
	return d
}

// AlphaBlendDesc is standard non-premultiplied alpha blending on every slot.
func AlphaBlendDesc() BlendDesc {
	d := DefaultBlendDesc()
	for i := range d.RenderTarget {
		rt := &d.RenderTarget[i]
		rt.BlendEnable = true
		rt.SrcBlend = BlendSrcAlpha
		rt.DestBlend = BlendInvSrcAlpha
		rt.SrcBlendAlpha = BlendOne
		rt.DestBlendAlpha = BlendInvSrcAlpha
	}
	return d
}

func DefaultRasterizerDesc() RasterizerDesc {
	return RasterizerDesc{
		FillMode:        FillSolid,
		CullMode:        CullBack,
		DepthClipEnable: true,
	}
}

func DefaultDepthStencilDesc() DepthStencilDesc {
	keep := StencilOpDesc{FailOp: StencilKeep, DepthFailOp: StencilKeep, PassOp: StencilKeep, Func: CompareAlways}
	return DepthStencilDesc{
		DepthEnable:      true,
		DepthWrite:       true,
		DepthFunc:        CompareLess,
		StencilReadMask:  0xFF,
		StencilWriteMask: 0xFF,
		Front:            keep,
		Back:             keep,
	}
}

func DefaultSamplerDesc() SamplerDesc {
	return SamplerDesc{
		MinFilter:     FilterLinear,
		MagFilter:     FilterLinear,
		MipFilter:     FilterLinear,
		AddressU:      AddressClamp,
		AddressV:      AddressClamp,
		AddressW:      AddressClamp,
		MaxAnisotropy: 1,
		CompareFunc:   CompareNever,
		MaxLOD:        1000,
	}
}

// BlendState is immutable after creation. Devices compare states by pointer.
type BlendState struct {
	serial uint64
	desc   BlendDesc
}

// NewBlendState normalizes a non-independent description so every slot
// carries RenderTarget[0].
func NewBlendState(serial uint64, desc BlendDesc) *BlendState {
	if !desc.IndependentBlend {
		for i := 1; i < MaxRenderTargets; i++ {
			desc.RenderTarget[i] = desc.RenderTarget[0]
		}
	}
	return &BlendState{serial: serial, desc: desc}
}

func (s *BlendState) Serial() uint64  { return s.serial }
func (s *BlendState) Desc() BlendDesc { return s.desc }

type RasterizerState struct {
	serial uint64
	desc   RasterizerDesc
}

func NewRasterizerState(serial uint64, desc RasterizerDesc) *RasterizerState {
	return &RasterizerState{serial: serial, desc: desc}
}

func (s *RasterizerState) Serial() uint64       { return s.serial }
func (s *RasterizerState) Desc() RasterizerDesc { return s.desc }

type DepthStencilState struct {
	serial uint64
	desc   DepthStencilDesc
}

func NewDepthStencilState(serial uint64, desc DepthStencilDesc) *DepthStencilState {
	return &DepthStencilState{serial: serial, desc: desc}
}

func (s *DepthStencilState) Serial() uint64         { return s.serial }
func (s *DepthStencilState) Desc() DepthStencilDesc { return s.desc }

// SamplerState carries the backend sampler object it was created with.
type SamplerState struct {
	serial uint64
	desc   SamplerDesc
	native interface{}
}

func NewSamplerState(serial uint64, desc SamplerDesc, native interface{}) *SamplerState {
	return &SamplerState{serial: serial, desc: desc, native: native}
}

func (s *SamplerState) Serial() uint64      { return s.serial }
func (s *SamplerState) Desc() SamplerDesc   { return s.desc }
func (s *SamplerState) Native() interface{} { return s.native }
