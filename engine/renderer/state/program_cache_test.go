package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgramCacheLinkedAndFailed(t *testing.T) {
	c := NewProgramCache[uint32]()
	linked, broken := stages(1, 2), stages(1, 3)
	hl, hb := CombineStages(linked), CombineStages(broken)

	_, status := c.Get(hl)
	assert.Equal(t, ProgramMissing, status)

	c.Store(hl, linked, 100)
	c.StoreFailed(hb, broken)

	p, status := c.Get(hl)
	assert.Equal(t, ProgramLinked, status)
	assert.Equal(t, uint32(100), p)

	_, status = c.Get(hb)
	assert.Equal(t, ProgramFailed, status)
	assert.Equal(t, 2, c.References(1))
	assert.Equal(t, 2, c.Len())
}

func TestProgramCachePurge(t *testing.T) {
	c := NewProgramCache[uint32]()
	c.Store(CombineStages(stages(1, 2)), stages(1, 2), 10)
	c.Store(CombineStages(stages(1, 4)), stages(1, 4), 11)
	c.StoreFailed(CombineStages(stages(1, 3)), stages(1, 3))
	c.Store(CombineStages(stages(5, 2)), stages(5, 2), 12)

	// failed entries are removed but carry no program to release
	released := c.Purge(1)
	assert.ElementsMatch(t, []uint32{10, 11}, released)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.References(1))
	assert.Equal(t, 1, c.References(2))
	assert.Equal(t, 0, c.References(3))

	_, status := c.Get(CombineStages(stages(1, 3)))
	assert.Equal(t, ProgramMissing, status)

	assert.Nil(t, c.Purge(1))
	assert.Equal(t, []uint32{12}, c.Drain())
	assert.Equal(t, 0, c.Len())
}

func TestProgramCacheOverwrite(t *testing.T) {
	c := NewProgramCache[uint32]()
	h := CombineStages(stages(1, 2))
	c.StoreFailed(h, stages(1, 2))
	c.Store(h, stages(1, 2), 7)

	p, status := c.Get(h)
	assert.Equal(t, ProgramLinked, status)
	assert.Equal(t, uint32(7), p)
	assert.Equal(t, 1, c.References(2))
}
