package metadata

/** @brief CPU access requested for a resource. */
type Access uint8

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
	AccessReadWrite
)

/** @brief Expected update frequency of a resource. */
type Usage uint8

const (
	/** @brief GPU read/write, occasional CPU updates. */
	UsageDefault Usage = iota
	/** @brief Initialized at creation and never written again. */
	UsageImmutable
	/** @brief Rewritten by the CPU every frame or more often. */
	UsageDynamic
	/** @brief Used for transfers between GPU and CPU. */
	UsageStaging
)

/** @brief Pipeline stages a resource can be bound to. Bitwise-combinable. */
type BindFlags uint16

const (
	BindVertexBuffer BindFlags = 1 << iota
	BindIndexBuffer
	BindConstantBuffer
	BindShaderInput
	BindRenderTarget
	BindDepthStencil
	BindUnorderedAccess
)

func (b BindFlags) Has(flag BindFlags) bool {
	return b&flag == flag
}

/** @brief The closed set of pixel, depth and index formats. */
type Format uint8

const (
	FormatUnknown Format = iota
	FormatR8Unorm
	FormatRG8Unorm
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA16Float
	FormatRGBA32Float
	FormatR32Float
	FormatRG32Float
	FormatRGB32Float
	FormatD16Unorm
	FormatD24UnormS8Uint
	FormatD32Float
	FormatD32FloatS8Uint
	FormatR16Uint
	FormatR32Uint
)

var formatNames = map[Format]string{
	FormatUnknown:        "unknown",
	FormatR8Unorm:        "r8",
	FormatRG8Unorm:       "rg8",
	FormatRGBA8Unorm:     "rgba8",
	FormatBGRA8Unorm:     "bgra8",
	FormatRGBA16Float:    "rgba16f",
	FormatRGBA32Float:    "rgba32f",
	FormatR32Float:       "r32f",
	FormatRG32Float:      "rg32f",
	FormatRGB32Float:     "rgb32f",
	FormatD16Unorm:       "d16",
	FormatD24UnormS8Uint: "d24s8",
	FormatD32Float:       "d32f",
	FormatD32FloatS8Uint: "d32fs8",
	FormatR16Uint:        "r16ui",
	FormatR32Uint:        "r32ui",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "invalid"
}

func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD24UnormS8Uint, FormatD32Float, FormatD32FloatS8Uint:
		return true
	}
	return false
}

// HasStencil reports whether a depth format carries stencil bits.
func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32FloatS8Uint
}

// BytesPerPixel returns the texel size, or 0 for formats without a fixed size.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatRG8Unorm, FormatD16Unorm, FormatR16Uint:
		return 2
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatR32Float, FormatD24UnormS8Uint, FormatD32Float, FormatR32Uint:
		return 4
	case FormatRGBA16Float, FormatRG32Float, FormatD32FloatS8Uint:
		return 8
	case FormatRGB32Float:
		return 12
	case FormatRGBA32Float:
		return 16
	}
	return 0
}

/** @brief Primitive assembly mode for draws. */
type PrimitiveTopology uint8

const (
	TopologyUndefined PrimitiveTopology = iota
	TopologyPointList
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	/** @brief Only accepted by the immediate renderer, expanded to triangles. */
	TopologyQuadList
)
