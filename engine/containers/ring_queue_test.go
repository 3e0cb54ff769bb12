package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)
	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	require.NoError(t, rq.Enqueue(3))
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	front, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, front)

	for _, want := range []int{1, 2, 3} {
		got, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueuePushWraps(t *testing.T) {
	rq := NewRingQueue[int](3)
	for i := 1; i <= 5; i++ {
		rq.Push(i)
	}
	assert.True(t, rq.IsFull())
	assert.Equal(t, 3, rq.Len())

	var got []int
	rq.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{3, 4, 5}, got)
}
