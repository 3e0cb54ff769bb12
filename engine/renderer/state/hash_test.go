package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func stages(ids ...core.ID) [metadata.ShaderStageCount]core.ID {
	var s [metadata.ShaderStageCount]core.ID
	copy(s[:], ids)
	return s
}

func TestCombineStagesDeterministic(t *testing.T) {
	a := stages(1, 2)
	assert.Equal(t, CombineStages(a), CombineStages(stages(1, 2)))
}

func TestCombineStagesDistinguishesAssignments(t *testing.T) {
	seen := map[uint64][metadata.ShaderStageCount]core.ID{}
	for vs := core.ID(0); vs < 16; vs++ {
		for ps := core.ID(0); ps < 16; ps++ {
			for gs := core.ID(0); gs < 4; gs++ {
				s := stages(vs, ps, gs)
				h := CombineStages(s)
				prev, dup := seen[h]
				assert.False(t, dup, "%v collides with %v", s, prev)
				seen[h] = s
			}
		}
	}

	// the same shader in a different stage is another program
	assert.NotEqual(t, CombineStages(stages(5, 0)), CombineStages(stages(0, 5)))
	assert.NotEqual(t, CombineStages(stages(1, 2)), CombineStages(stages(2, 1)))
}

func TestEmpty(t *testing.T) {
	assert.True(t, Empty(stages()))
	assert.False(t, Empty(stages(0, 0, 0, 0, 0, 9)))
}

func TestLayoutKeyOrderSensitive(t *testing.T) {
	ab := LayoutKey([]core.ID{1, 2}, nil)
	ba := LayoutKey([]core.ID{2, 1}, nil)
	assert.NotEqual(t, ab, ba)
	assert.Equal(t, ab, LayoutKey([]core.ID{1, 2}, nil))
	assert.NotEqual(t, LayoutKey([]core.ID{1}, nil), LayoutKey([]core.ID{1, 0}, nil))
}

func TestLayoutKeyStrideSensitive(t *testing.T) {
	assert.NotEqual(t, LayoutKey([]core.ID{1}, []uint32{20}), LayoutKey([]core.ID{1}, []uint32{32}))
	assert.Equal(t, LayoutKey([]core.ID{1, 2}, []uint32{16}), LayoutKey([]core.ID{1, 2}, []uint32{16, 0}))
}
