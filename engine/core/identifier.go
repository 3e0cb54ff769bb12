package core

import "fmt"

// ID is a generational handle: the low 32 bits index a slot, the high 32 bits
// hold the slot generation. The zero value never resolves.
type ID uint64

const InvalidID ID = 0

func newID(index, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32 {
	return uint32(id)
}

func (id ID) Generation() uint32 {
	return uint32(id >> 32)
}

func (id ID) Valid() bool {
	return id != InvalidID
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Index(), id.Generation())
}

type slot[T any] struct {
	value      T
	generation uint32
	used       bool
}

// Registry owns backend objects keyed by ID. Removing an entry bumps the slot
// generation so IDs held elsewhere go stale instead of aliasing a newer object.
type Registry[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		// slot 0 is reserved so that InvalidID never resolves
		slots: make([]slot[T], 1, 64),
	}
}

func (r *Registry[T]) Insert(value T) ID {
	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{generation: 1})
		index = uint32(len(r.slots) - 1)
	}
	s := &r.slots[index]
	s.value = value
	s.used = true
	r.count++
	return newID(index, s.generation)
}

func (r *Registry[T]) Get(id ID) (T, bool) {
	var zero T
	index := id.Index()
	if id == InvalidID || int(index) >= len(r.slots) {
		return zero, false
	}
	s := &r.slots[index]
	if !s.used || s.generation != id.Generation() {
		return zero, false
	}
	return s.value, true
}

func (r *Registry[T]) Remove(id ID) (T, bool) {
	value, ok := r.Get(id)
	if !ok {
		return value, false
	}
	var zero T
	s := &r.slots[id.Index()]
	s.value = zero
	s.used = false
	s.generation++
	r.free = append(r.free, id.Index())
	r.count--
	return value, true
}

func (r *Registry[T]) Len() int {
	return r.count
}

// Each visits live entries in slot order. fn must not insert or remove.
func (r *Registry[T]) Each(fn func(id ID, value T)) {
	for i := 1; i < len(r.slots); i++ {
		s := &r.slots[i]
		if s.used {
			fn(newID(uint32(i), s.generation), s.value)
		}
	}
}

// Drain removes every entry and returns the values in slot order.
func (r *Registry[T]) Drain() []T {
	out := make([]T, 0, r.count)
	for i := 1; i < len(r.slots); i++ {
		s := &r.slots[i]
		if !s.used {
			continue
		}
		out = append(out, s.value)
		var zero T
		s.value = zero
		s.used = false
		s.generation++
		r.free = append(r.free, uint32(i))
	}
	r.count = 0
	return out
}
