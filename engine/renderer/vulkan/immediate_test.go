package vulkan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func TestImmediateChunksReserve(t *testing.T) {
	a := &immediateChunk{buffer: &metadata.Buffer{}, capacity: 8}
	b := &immediateChunk{buffer: &metadata.Buffer{}, capacity: 32}
	chunks := &immediateChunks{vertices: []*immediateChunk{a, b}}

	chunk, first := chunks.reserve(6)
	assert.Same(t, a, chunk)
	assert.Equal(t, 0, first)

	// the rest of a is too small, so b takes it
	chunk, first = chunks.reserve(6)
	assert.Same(t, b, chunk)
	assert.Equal(t, 0, first)

	chunk, first = chunks.reserve(2)
	assert.Same(t, a, chunk)
	assert.Equal(t, 6, first)

	chunk, _ = chunks.reserve(64)
	assert.Nil(t, chunk)

	chunks.reset()
	chunk, first = chunks.reserve(8)
	assert.Same(t, a, chunk)
	assert.Equal(t, 0, first)
}

func TestImmediateTransformsAreNotReusedWithinAFrame(t *testing.T) {
	x, y := &metadata.Buffer{}, &metadata.Buffer{}
	chunks := &immediateChunks{transforms: []*metadata.Buffer{x, y}}

	assert.Same(t, x, chunks.nextTransform())
	assert.Same(t, y, chunks.nextTransform())
	assert.Nil(t, chunks.nextTransform())

	chunks.reset()
	assert.Same(t, x, chunks.nextTransform())
}

func TestImmediateShaderMatchesDescriptorBindings(t *testing.T) {
	for _, binding := range []int{constantBinding, textureBinding, samplerBinding} {
		assert.Contains(t, immediateShader, fmt.Sprintf("@binding(%d)", binding))
	}
	vs := metadata.ShaderStageSource{Source: immediateShader, EntryPoint: "vs_main"}
	ps := metadata.ShaderStageSource{Source: immediateShader, EntryPoint: "ps_main"}
	require.True(t, vs.Present())
	require.True(t, ps.Present())
}

func TestImmediateBackendWaitsForCreate(t *testing.T) {
	d := newOfflineDevice(t)
	b := newImmediateBackend(d)
	// nothing was created, so there is nothing to release
	b.destroy()
	assert.False(t, b.created)
	require.NoError(t, b.Grow(4096))
	assert.Equal(t, 4096, b.capacity)
}
