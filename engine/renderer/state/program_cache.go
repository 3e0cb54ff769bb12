package state

import (
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

type ProgramStatus uint8

const (
	ProgramMissing ProgramStatus = iota
	ProgramLinked
	ProgramFailed
)

type programEntry[P any] struct {
	program P
	failed  bool
	stages  [metadata.ShaderStageCount]core.ID
}

/**
 * @brief ProgramCache maps a stage combination hash to a linked program. Failed
 * links are cached too, and stay cached until one of the contributing shaders
 * is purged.
 */
type ProgramCache[P any] struct {
	entries  map[uint64]*programEntry[P]
	byShader map[core.ID]map[uint64]struct{}
}

func NewProgramCache[P any]() *ProgramCache[P] {
	return &ProgramCache[P]{
		entries:  make(map[uint64]*programEntry[P]),
		byShader: make(map[core.ID]map[uint64]struct{}),
	}
}

func (c *ProgramCache[P]) Get(hash uint64) (P, ProgramStatus) {
	e, ok := c.entries[hash]
	if !ok {
		var zero P
		return zero, ProgramMissing
	}
	if e.failed {
		return e.program, ProgramFailed
	}
	return e.program, ProgramLinked
}

func (c *ProgramCache[P]) Store(hash uint64, stages [metadata.ShaderStageCount]core.ID, program P) {
	c.put(hash, &programEntry[P]{program: program, stages: stages})
}

func (c *ProgramCache[P]) StoreFailed(hash uint64, stages [metadata.ShaderStageCount]core.ID) {
	c.put(hash, &programEntry[P]{failed: true, stages: stages})
}

func (c *ProgramCache[P]) put(hash uint64, e *programEntry[P]) {
	c.drop(hash)
	c.entries[hash] = e
	for _, id := range e.stages {
		if !id.Valid() {
			continue
		}
		set, ok := c.byShader[id]
		if !ok {
			set = make(map[uint64]struct{})
			c.byShader[id] = set
		}
		set[hash] = struct{}{}
	}
}

func (c *ProgramCache[P]) drop(hash uint64) (*programEntry[P], bool) {
	e, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	delete(c.entries, hash)
	for _, id := range e.stages {
		if set, ok := c.byShader[id]; ok {
			delete(set, hash)
			if len(set) == 0 {
				delete(c.byShader, id)
			}
		}
	}
	return e, true
}

// Purge removes every entry that shader contributed to, linked or failed, and
// returns the linked programs so the caller can release them.
func (c *ProgramCache[P]) Purge(shader core.ID) []P {
	set := c.byShader[shader]
	if len(set) == 0 {
		return nil
	}
	hashes := make([]uint64, 0, len(set))
	for h := range set {
		hashes = append(hashes, h)
	}
	var out []P
	for _, h := range hashes {
		if e, ok := c.drop(h); ok && !e.failed {
			out = append(out, e.program)
		}
	}
	return out
}

// Drain empties the cache and returns every linked program.
func (c *ProgramCache[P]) Drain() []P {
	out := make([]P, 0, len(c.entries))
	for _, e := range c.entries {
		if !e.failed {
			out = append(out, e.program)
		}
	}
	c.entries = make(map[uint64]*programEntry[P])
	c.byShader = make(map[core.ID]map[uint64]struct{})
	return out
}

func (c *ProgramCache[P]) Len() int {
	return len(c.entries)
}

// References returns how many cached combinations shader contributes to.
func (c *ProgramCache[P]) References(shader core.ID) int {
	return len(c.byShader[shader])
}
