package metadata

import "github.com/spaghettifunk/anima-gpu/engine/core"

type RenderTargetKind uint8

const (
	/** @brief The surface's default framebuffer. Owned by the device. */
	RenderTargetBackbuffer RenderTargetKind = iota
	RenderTarget2D
	/** @brief A layered target over the six faces of a cube texture. */
	RenderTargetCube
	/** @brief Several color attachments selected through an enable mask. */
	RenderTargetMulti
)

/** @brief Viewport in pixels plus depth range. */
type Viewport struct {
	X        int32
	Y        int32
	Width    uint32
	Height   uint32
	MinDepth float32
	MaxDepth float32
}

func FullViewport(width, height uint32) Viewport {
	return Viewport{Width: width, Height: height, MaxDepth: 1}
}

type RenderTargetDesc struct {
	Kind   RenderTargetKind
	Width  uint32
	Height uint32
	/** @brief One format per color slot. 2D and cube targets use exactly one. */
	ColorFormats []Format
	/** @brief FormatUnknown means no depth attachment. */
	DepthFormat Format
	Name        string
}

/**
 * @brief A render target owns its color attachments and optional depth
 * attachment. The framebuffer is resolved through ID on the owning device.
 */
type RenderTarget struct {
	ID       core.ID
	Desc     RenderTargetDesc
	Viewport Viewport
	Color    []*Texture
	Depth    *Texture
}

func (rt *RenderTarget) Handle() core.ID {
	if rt == nil {
		return core.InvalidID
	}
	return rt.ID
}

// Slots returns the number of color attachment slots.
func (rt *RenderTarget) Slots() int {
	return len(rt.Color)
}

func (rt *RenderTarget) IsBackbuffer() bool {
	return rt.Desc.Kind == RenderTargetBackbuffer
}

/**
 * @brief The buffers to clear. Can be combined.
 */
type ClearFlags uint8

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil

	ClearAll = ClearColor | ClearDepth | ClearStencil
)

type ClearDesc struct {
	Flags   ClearFlags
	Color   [4]float32
	Depth   float32
	Stencil uint8
}
