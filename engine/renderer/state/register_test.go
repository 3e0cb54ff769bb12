package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func TestFirstSwapAlwaysApplies(t *testing.T) {
	r := NewRegister()

	// nil matches the zero value but was never applied natively
	_, changed := r.SwapBlend(nil)
	assert.True(t, changed)
	_, changed = r.SwapBlend(nil)
	assert.False(t, changed)

	assert.True(t, r.SwapTopology(metadata.TopologyUndefined))
	assert.False(t, r.SwapTopology(metadata.TopologyUndefined))
	assert.True(t, r.SwapViewport(metadata.Viewport{}))
	assert.True(t, r.SwapLayout(core.InvalidID))
	assert.True(t, r.SwapIndexBuffer(core.InvalidID, metadata.FormatUnknown))
}

func TestSwapIsIdempotent(t *testing.T) {
	r := NewRegister()
	a := metadata.NewBlendState(1, metadata.DefaultBlendDesc())
	b := metadata.NewBlendState(2, metadata.AlphaBlendDesc())

	prev, changed := r.SwapBlend(a)
	assert.Nil(t, prev)
	assert.True(t, changed)

	prev, changed = r.SwapBlend(a)
	assert.Same(t, a, prev)
	assert.False(t, changed)

	prev, changed = r.SwapBlend(b)
	assert.Same(t, a, prev)
	assert.True(t, changed)
	assert.Same(t, b, r.Blend())

	ds := metadata.NewDepthStencilState(3, metadata.DefaultDepthStencilDesc())
	_, changed = r.SwapDepthStencil(ds, 0)
	assert.True(t, changed)
	_, changed = r.SwapDepthStencil(ds, 1)
	assert.True(t, changed, "stencil reference is part of the category")
	_, changed = r.SwapDepthStencil(ds, 1)
	assert.False(t, changed)
}

func TestSlotSwaps(t *testing.T) {
	r := NewRegister()
	id := core.ID(42)

	assert.True(t, r.SwapTexture(3, id))
	assert.False(t, r.SwapTexture(3, id))
	assert.Equal(t, id, r.Texture(3))

	assert.True(t, r.SwapConstantBuffer(0, id))
	assert.False(t, r.SwapConstantBuffer(0, id))

	assert.True(t, r.SwapVertexBuffers([]core.ID{1, 2}, []uint32{12, 16}))
	assert.False(t, r.SwapVertexBuffers([]core.ID{1, 2}, []uint32{12, 16}))
	assert.True(t, r.SwapVertexBuffers([]core.ID{2, 1}, []uint32{16, 12}))
	ids, strides := r.VertexBuffers()
	assert.Equal(t, []core.ID{2, 1}, ids)
	assert.Equal(t, []uint32{16, 12}, strides)

	assert.Panics(t, func() { r.SwapTexture(MaxTextureSlots, id) })
	assert.Panics(t, func() { r.SwapConstantBuffer(-1, id) })
}

func TestForgetBuffer(t *testing.T) {
	r := NewRegister()
	r.SwapConstantBuffer(1, 7)
	r.SwapVertexBuffers([]core.ID{7, 8}, []uint32{4, 4})
	r.SwapIndexBuffer(7, metadata.FormatR16Uint)
	r.SwapTexture(0, 7)

	r.ForgetBuffer(7)
	assert.Equal(t, core.InvalidID, r.ConstantBuffer(1))
	assert.Equal(t, core.InvalidID, r.IndexBuffer())
	ids, _ := r.VertexBuffers()
	assert.Equal(t, []core.ID{core.InvalidID, 8}, ids)
	// textures live in a separate arena and keep their slot
	assert.Equal(t, core.ID(7), r.Texture(0))
}

func TestSnapshotRestore(t *testing.T) {
	r := NewRegister()
	a := metadata.NewBlendState(1, metadata.DefaultBlendDesc())
	r.SwapBlend(a)
	r.SwapTopology(metadata.TopologyTriangleList)
	snap := r.Snapshot()

	r.SwapBlend(metadata.NewBlendState(2, metadata.AlphaBlendDesc()))
	r.SwapTopology(metadata.TopologyLineList)
	r.SwapTexture(0, 5)

	diff := r.Restore(snap)
	assert.Equal(t, CategoryBlend|CategoryTopology, diff)
	assert.Same(t, a, r.Blend())
	assert.Equal(t, metadata.TopologyTriangleList, r.Topology())
	assert.Equal(t, core.InvalidID, r.Texture(0))
}

func TestChangedAttachments(t *testing.T) {
	base := metadata.DefaultBlendDesc()
	base.IndependentBlend = true
	a := metadata.NewBlendState(1, base)

	one := base
	one.RenderTarget[5].BlendEnable = true
	b := metadata.NewBlendState(2, one)

	assert.Equal(t, uint8(0xFF), ChangedAttachments(nil, a))
	assert.Equal(t, uint8(0), ChangedAttachments(a, a))
	assert.Equal(t, uint8(1<<5), ChangedAttachments(a, b))

	same := metadata.NewBlendState(3, base)
	require.NotSame(t, a, same)
	assert.Equal(t, uint8(0), ChangedAttachments(a, same))
}
