package state

import (
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

const (
	MaxTextureSlots    = 16
	MaxSamplerSlots    = 16
	MaxConstantBuffers = 4
)

/** @brief State categories that carry a first-apply requirement. */
type Category uint16

const (
	CategoryBlend Category = 1 << iota
	CategoryRasterizer
	CategoryDepthStencil
	CategoryTopology
	CategoryViewport
	CategoryLayout
	CategoryIndexBuffer

	CategoryAll = CategoryBlend | CategoryRasterizer | CategoryDepthStencil |
		CategoryTopology | CategoryViewport | CategoryLayout | CategoryIndexBuffer
)

/**
 * @brief Register mirrors what is bound in the native context. Every Swap
 * method records the new value and reports whether a native transition is
 * needed. Callers must emit that transition in the same call.
 */
type Register struct {
	blend        *metadata.BlendState
	rasterizer   *metadata.RasterizerState
	depthStencil *metadata.DepthStencilState
	stencilRef   uint8
	layout       core.ID
	shaders      [metadata.ShaderStageCount]core.ID
	textures     [MaxTextureSlots]core.ID
	samplers     [MaxSamplerSlots]*metadata.SamplerState
	constants    [MaxConstantBuffers]core.ID
	vertex       [metadata.MaxVertexBuffers]core.ID
	strides      [metadata.MaxVertexBuffers]uint32
	vertexCount  int
	index        core.ID
	indexFormat  metadata.Format
	topology     metadata.PrimitiveTopology
	viewport     metadata.Viewport

	applied Category
}

func NewRegister() *Register {
	return &Register{}
}

func (r *Register) first(c Category) bool {
	if r.applied&c == 0 {
		r.applied |= c
		return true
	}
	return false
}

// Invalidate forces the next swap of every category in c to apply.
func (r *Register) Invalidate(c Category) {
	r.applied &^= c
}

func (r *Register) SwapBlend(s *metadata.BlendState) (*metadata.BlendState, bool) {
	prev := r.blend
	first := r.first(CategoryBlend)
	r.blend = s
	return prev, first || prev != s
}

func (r *Register) SwapRasterizer(s *metadata.RasterizerState) (*metadata.RasterizerState, bool) {
	prev := r.rasterizer
	first := r.first(CategoryRasterizer)
	r.rasterizer = s
	return prev, first || prev != s
}

func (r *Register) SwapDepthStencil(s *metadata.DepthStencilState, ref uint8) (*metadata.DepthStencilState, bool) {
	prev, prevRef := r.depthStencil, r.stencilRef
	first := r.first(CategoryDepthStencil)
	r.depthStencil, r.stencilRef = s, ref
	return prev, first || prev != s || prevRef != ref
}

func (r *Register) SwapTopology(t metadata.PrimitiveTopology) bool {
	first := r.first(CategoryTopology)
	changed := r.topology != t
	r.topology = t
	return first || changed
}

func (r *Register) SwapViewport(vp metadata.Viewport) bool {
	first := r.first(CategoryViewport)
	changed := r.viewport != vp
	r.viewport = vp
	return first || changed
}

func (r *Register) SwapLayout(id core.ID) bool {
	first := r.first(CategoryLayout)
	changed := r.layout != id
	r.layout = id
	return first || changed
}

func (r *Register) SwapIndexBuffer(id core.ID, format metadata.Format) bool {
	first := r.first(CategoryIndexBuffer)
	changed := r.index != id || r.indexFormat != format
	r.index, r.indexFormat = id, format
	return first || changed
}

// SwapShader records the shader bound to one stage.
func (r *Register) SwapShader(stage metadata.ShaderStage, id core.ID) bool {
	changed := r.shaders[stage] != id
	r.shaders[stage] = id
	return changed
}

func (r *Register) SwapTexture(slot int, id core.ID) bool {
	core.Assert(slot >= 0 && slot < MaxTextureSlots, "texture slot %d out of range", slot)
	changed := r.textures[slot] != id
	r.textures[slot] = id
	return changed
}

func (r *Register) SwapSampler(slot int, s *metadata.SamplerState) bool {
	core.Assert(slot >= 0 && slot < MaxSamplerSlots, "sampler slot %d out of range", slot)
	changed := r.samplers[slot] != s
	r.samplers[slot] = s
	return changed
}

func (r *Register) SwapConstantBuffer(slot int, id core.ID) bool {
	core.Assert(slot >= 0 && slot < MaxConstantBuffers, "constant buffer slot %d out of range", slot)
	changed := r.constants[slot] != id
	r.constants[slot] = id
	return changed
}

// SwapVertexBuffers records the bound vertex buffers and their strides.
func (r *Register) SwapVertexBuffers(ids []core.ID, strides []uint32) bool {
	core.Assert(len(ids) <= metadata.MaxVertexBuffers, "%d vertex buffers exceed the %d slots", len(ids), metadata.MaxVertexBuffers)
	changed := r.vertexCount != len(ids)
	for i := 0; i < metadata.MaxVertexBuffers; i++ {
		var id core.ID
		var stride uint32
		if i < len(ids) {
			id, stride = ids[i], strides[i]
		}
		if r.vertex[i] != id || r.strides[i] != stride {
			changed = true
		}
		r.vertex[i], r.strides[i] = id, stride
	}
	r.vertexCount = len(ids)
	return changed
}

// ForgetBuffer clears every buffer slot that references id. Native contexts
// unbind a resource when it is deleted, so the Register follows.
func (r *Register) ForgetBuffer(id core.ID) {
	for i := range r.constants {
		if r.constants[i] == id {
			r.constants[i] = core.InvalidID
		}
	}
	for i := range r.vertex {
		if r.vertex[i] == id {
			r.vertex[i] = core.InvalidID
		}
	}
	if r.index == id {
		r.index = core.InvalidID
	}
}

func (r *Register) ForgetTexture(id core.ID) {
	for i := range r.textures {
		if r.textures[i] == id {
			r.textures[i] = core.InvalidID
		}
	}
}

func (r *Register) ForgetSampler(s *metadata.SamplerState) {
	for i := range r.samplers {
		if r.samplers[i] == s {
			r.samplers[i] = nil
		}
	}
}

func (r *Register) ForgetShader(id core.ID) {
	for i := range r.shaders {
		if r.shaders[i] == id {
			r.shaders[i] = core.InvalidID
		}
	}
}

func (r *Register) ForgetLayout(id core.ID) {
	if r.layout == id {
		r.layout = core.InvalidID
	}
}

func (r *Register) Blend() *metadata.BlendState               { return r.blend }
func (r *Register) Rasterizer() *metadata.RasterizerState     { return r.rasterizer }
func (r *Register) DepthStencil() *metadata.DepthStencilState { return r.depthStencil }
func (r *Register) StencilRef() uint8                         { return r.stencilRef }
func (r *Register) Layout() core.ID                           { return r.layout }
func (r *Register) IndexBuffer() core.ID                      { return r.index }
func (r *Register) IndexFormat() metadata.Format              { return r.indexFormat }
func (r *Register) Topology() metadata.PrimitiveTopology      { return r.topology }
func (r *Register) Viewport() metadata.Viewport               { return r.viewport }

func (r *Register) Shader(stage metadata.ShaderStage) core.ID { return r.shaders[stage] }
func (r *Register) Shaders() [metadata.ShaderStageCount]core.ID {
	return r.shaders
}

func (r *Register) Texture(slot int) core.ID                { return r.textures[slot] }
func (r *Register) Sampler(slot int) *metadata.SamplerState { return r.samplers[slot] }
func (r *Register) ConstantBuffer(slot int) core.ID         { return r.constants[slot] }

func (r *Register) VertexBuffers() ([]core.ID, []uint32) {
	return r.vertex[:r.vertexCount], r.strides[:r.vertexCount]
}

// Snapshot returns a copy that can later be handed to Restore.
func (r *Register) Snapshot() Register {
	return *r
}

// Restore overwrites the register with a snapshot and returns the categories
// whose values differ, so the caller can reapply them.
func (r *Register) Restore(s Register) Category {
	var diff Category
	if r.blend != s.blend {
		diff |= CategoryBlend
	}
	if r.rasterizer != s.rasterizer {
		diff |= CategoryRasterizer
	}
	if r.depthStencil != s.depthStencil || r.stencilRef != s.stencilRef {
		diff |= CategoryDepthStencil
	}
	if r.topology != s.topology {
		diff |= CategoryTopology
	}
	if r.viewport != s.viewport {
		diff |= CategoryViewport
	}
	if r.layout != s.layout {
		diff |= CategoryLayout
	}
	if r.index != s.index || r.indexFormat != s.indexFormat {
		diff |= CategoryIndexBuffer
	}
	*r = s
	return diff
}

// ChangedAttachments returns a bit per render target slot whose blend
// description differs between prev and next. A nil prev changes every slot.
func ChangedAttachments(prev, next *metadata.BlendState) uint8 {
	if next == nil {
		return 0
	}
	if prev == nil {
		return 0xFF
	}
	if prev == next {
		return 0
	}
	p, n := prev.Desc(), next.Desc()
	var mask uint8
	for i := 0; i < metadata.MaxRenderTargets; i++ {
		if p.RenderTarget[i] != n.RenderTarget[i] {
			mask |= 1 << i
		}
	}
	return mask
}
