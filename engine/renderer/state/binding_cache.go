package state

import (
	"slices"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

type bindingEntry[B any] struct {
	binding B
	buffers []core.ID
}

/**
 * @brief BindingCache holds the native vertex bindings of one input layout,
 * keyed by the ordered identities and strides of the bound buffers, plus a
 * single dynamic binding that is rewired on every use.
 */
type BindingCache[B any] struct {
	entries  map[string]*bindingEntry[B]
	byBuffer map[core.ID]map[string]struct{}

	dynamic *bindingEntry[B]
}

func NewBindingCache[B any]() *BindingCache[B] {
	return &BindingCache[B]{
		entries:  make(map[string]*bindingEntry[B]),
		byBuffer: make(map[core.ID]map[string]struct{}),
	}
}

// Lookup returns the binding for buffers read at strides, allocating it on a
// miss. fresh is true when the binding was just allocated and still needs
// attribute wiring.
func (c *BindingCache[B]) Lookup(buffers []core.ID, strides []uint32, alloc func() B) (binding B, fresh bool) {
	key := LayoutKey(buffers, strides)
	if e, ok := c.entries[key]; ok {
		return e.binding, false
	}
	e := &bindingEntry[B]{binding: alloc(), buffers: append([]core.ID(nil), buffers...)}
	c.entries[key] = e
	for _, id := range e.buffers {
		if !id.Valid() {
			continue
		}
		set, ok := c.byBuffer[id]
		if !ok {
			set = make(map[string]struct{})
			c.byBuffer[id] = set
		}
		set[key] = struct{}{}
	}
	return e.binding, true
}

// Dynamic returns the reserved dynamic binding, allocating it on first use,
// and records buffers as its current contents. previous holds the buffers it
// was wired with before this call, nil for a new binding.
func (c *BindingCache[B]) Dynamic(buffers []core.ID, alloc func() B) (binding B, previous []core.ID) {
	if c.dynamic == nil {
		c.dynamic = &bindingEntry[B]{binding: alloc()}
	}
	previous = slices.Clone(c.dynamic.buffers)
	c.dynamic.buffers = append(c.dynamic.buffers[:0], buffers...)
	return c.dynamic.binding, previous
}

// Invalidate removes every binding that references buffer and returns them
// for release. If the dynamic binding was using buffer it is released too and
// reallocated on next use.
func (c *BindingCache[B]) Invalidate(buffer core.ID) []B {
	var out []B
	for key := range c.byBuffer[buffer] {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		delete(c.entries, key)
		for _, id := range e.buffers {
			if set, ok := c.byBuffer[id]; ok {
				delete(set, key)
				if len(set) == 0 {
					delete(c.byBuffer, id)
				}
			}
		}
		out = append(out, e.binding)
	}
	delete(c.byBuffer, buffer)

	if c.dynamic != nil && slices.Contains(c.dynamic.buffers, buffer) {
		out = append(out, c.dynamic.binding)
		c.dynamic = nil
	}
	return out
}

// References reports whether any binding, static or dynamic, uses buffer.
func (c *BindingCache[B]) References(buffer core.ID) bool {
	if len(c.byBuffer[buffer]) > 0 {
		return true
	}
	return c.dynamic != nil && slices.Contains(c.dynamic.buffers, buffer)
}

// Buffers returns every buffer referenced by the cache.
func (c *BindingCache[B]) Buffers() []core.ID {
	out := make([]core.ID, 0, len(c.byBuffer))
	for id := range c.byBuffer {
		out = append(out, id)
	}
	if c.dynamic != nil {
		for _, id := range c.dynamic.buffers {
			if id.Valid() && len(c.byBuffer[id]) == 0 && !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// Drain empties the cache and returns every binding including the dynamic one.
func (c *BindingCache[B]) Drain() []B {
	out := make([]B, 0, len(c.entries)+1)
	for _, e := range c.entries {
		out = append(out, e.binding)
	}
	if c.dynamic != nil {
		out = append(out, c.dynamic.binding)
	}
	c.entries = make(map[string]*bindingEntry[B])
	c.byBuffer = make(map[core.ID]map[string]struct{})
	c.dynamic = nil
	return out
}

// Len returns the number of static bindings.
func (c *BindingCache[B]) Len() int {
	return len(c.entries)
}

func (c *BindingCache[B]) HasDynamic() bool {
	return c.dynamic != nil
}
