package shadercache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func TestKeyTracksSource(t *testing.T) {
	a := NewKey("vulkan", metadata.StageVertex, "vs_main", "fn vs_main() {}")
	b := NewKey("vulkan", metadata.StageVertex, "vs_main", "fn vs_main() {}")
	c := NewKey("vulkan", metadata.StageVertex, "vs_main", "fn vs_main() { }")
	d := NewKey("vulkan", metadata.StagePixel, "vs_main", "fn vs_main() {}")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a.String(), "vulkan/vertex/vs_main/")
}

func TestLRUStoreLoad(t *testing.T) {
	c, err := NewLRU(2)
	require.NoError(t, err)

	k1 := NewKey("vulkan", metadata.StageVertex, "main", "1")
	k2 := NewKey("vulkan", metadata.StageVertex, "main", "2")
	k3 := NewKey("vulkan", metadata.StageVertex, "main", "3")

	_, ok := c.Load(k1)
	assert.False(t, ok)

	code := []byte{0x03, 0x02, 0x23, 0x07}
	require.NoError(t, c.Store(k1, code))
	code[0] = 0xFF // the cache keeps its own copy

	got, ok := c.Load(k1)
	require.True(t, ok)
	assert.Equal(t, byte(0x03), got[0])

	require.NoError(t, c.Store(k2, []byte{1}))
	_, _ = c.Load(k1)
	require.NoError(t, c.Store(k3, []byte{1}))

	// k2 was the least recently used entry
	_, ok = c.Load(k2)
	assert.False(t, ok)
	_, ok = c.Load(k1)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	assert.ErrorIs(t, c.Store(k2, nil), ErrEmptyBytecode)

	c.Remove(k1)
	_, ok = c.Load(k1)
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestNewLRURejectsSize(t *testing.T) {
	_, err := NewLRU(0)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	assert.NoError(t, c.Store(Key{}, []byte{1}))
	_, ok := c.Load(Key{})
	assert.False(t, ok)
}
