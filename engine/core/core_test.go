package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() {
		require.NoError(t, SetLogLevel("info"))
	})

	require.NoError(t, SetLogLevel("warn"))
	LogInfo("hidden %d", 1)
	assert.Empty(t, buf.String())

	LogWarn("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")

	assert.Error(t, SetLogLevel("loud"))
}

func TestAssertPanics(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)

	assert.NotPanics(t, func() { Assert(true, "fine") })
	assert.PanicsWithValue(t, "assertion failed: slot 9 out of range", func() {
		Assert(false, "slot %d out of range", 9)
	})
	assert.Contains(t, buf.String(), "slot 9 out of range")
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var got []uint32

	first := "first"
	second := "second"
	require.True(t, bus.Register(EVENT_CODE_RESIZED, first, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		got = append(got, data.U32[0])
		return false
	}))
	require.True(t, bus.Register(EVENT_CODE_RESIZED, second, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		got = append(got, data.U32[1])
		return true
	}))
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, first, nil), "duplicate listener")

	handled := bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{U32: [4]uint32{640, 480}})
	assert.True(t, handled)
	assert.Equal(t, []uint32{640, 480}, got)

	require.True(t, bus.Unregister(EVENT_CODE_RESIZED, second))
	assert.False(t, bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{}))
	assert.False(t, bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	m.CountDraw()
	m.CountDraw()
	m.CountRedundant()
	m.CountBindingsInvalidated(3)

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.DrawCalls)
	assert.Equal(t, uint64(1), s.RedundantSets)
	assert.Equal(t, uint64(3), s.BindingsInvalidated)
	assert.Equal(t, uint64(AVG_COUNT), s.Frames)
}

func TestInputTransitions(t *testing.T) {
	in := NewInput()

	assert.True(t, in.ProcessKey(KEY_SPACE, true))
	assert.False(t, in.ProcessKey(KEY_SPACE, true), "no change")
	assert.True(t, in.IsKeyDown(KEY_SPACE))
	assert.True(t, in.Pressed(KEY_SPACE))

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_SPACE))
	assert.False(t, in.Pressed(KEY_SPACE), "held keys are not pressed again")

	assert.True(t, in.ProcessKey(KEY_SPACE, false))
	assert.True(t, in.IsKeyUp(KEY_SPACE))

	assert.False(t, in.ProcessKey(KEY_UNKNOWN, true))
	assert.False(t, in.ProcessKey(KEYS_MAX_KEYS, true))
	assert.False(t, in.IsKeyDown(KEYS_MAX_KEYS))
}
