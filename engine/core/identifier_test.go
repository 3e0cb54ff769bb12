package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsertGet(t *testing.T) {
	r := NewRegistry[string]()
	a := r.Insert("a")
	b := r.Insert("b")

	require.True(t, a.Valid())
	require.NotEqual(t, a, b)

	v, ok := r.Get(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryInvalidIDNeverResolves(t *testing.T) {
	r := NewRegistry[int]()
	r.Insert(1)
	_, ok := r.Get(InvalidID)
	assert.False(t, ok)
}

func TestRegistryRemoveBumpsGeneration(t *testing.T) {
	r := NewRegistry[string]()
	old := r.Insert("old")

	v, ok := r.Remove(old)
	require.True(t, ok)
	assert.Equal(t, "old", v)

	fresh := r.Insert("new")
	assert.Equal(t, old.Index(), fresh.Index(), "freed slot is reused")
	assert.NotEqual(t, old, fresh, "reused slot gets a new generation")

	_, ok = r.Get(old)
	assert.False(t, ok, "stale id must not resolve to the new object")

	_, ok = r.Remove(old)
	assert.False(t, ok)
}

func TestRegistryEachAndDrain(t *testing.T) {
	r := NewRegistry[int]()
	ids := []ID{r.Insert(10), r.Insert(20), r.Insert(30)}
	r.Remove(ids[1])

	var seen []int
	r.Each(func(id ID, v int) {
		seen = append(seen, v)
	})
	assert.Equal(t, []int{10, 30}, seen)

	assert.Equal(t, []int{10, 30}, r.Drain())
	assert.Equal(t, 0, r.Len())
	_, ok := r.Get(ids[0])
	assert.False(t, ok)
}
