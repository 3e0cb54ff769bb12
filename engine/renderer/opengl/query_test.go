package opengl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

func TestOcclusionQueryResultIsNonBlocking(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	q, err := d.CreateQuery(metadata.QueryOcclusion)
	require.NoError(t, err)

	_, ok := d.QueryResult(q)
	assert.False(t, ok, "never issued")

	d.BeginQuery(q)
	_, ok = d.QueryResult(q)
	assert.False(t, ok, "still active")
	d.EndQuery(q)

	_, ok = d.QueryResult(q)
	assert.False(t, ok, "result not available yet")

	fake.queryReady = true
	v, ok := d.QueryResult(q)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), v)

	glq, _ := d.queries.Get(q.ID)
	assert.Contains(t, fake.calls, call("BeginQuery", glapi.SAMPLES_PASSED, glq.name))
	assert.Contains(t, fake.calls, call("EndQuery", glapi.SAMPLES_PASSED))
}

func TestTimestampQueryWritesAtEnd(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	q, err := d.CreateQuery(metadata.QueryTimestamp)
	require.NoError(t, err)
	glq, _ := d.queries.Get(q.ID)
	fake.reset()

	d.BeginQuery(q)
	assert.Empty(t, fake.calls)
	d.EndQuery(q)
	assert.Equal(t, []string{call("QueryCounter", glq.name, glapi.TIMESTAMP)}, fake.calls)
}

func TestDestroyActiveQuery(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	q, err := d.CreateQuery(metadata.QueryOcclusion)
	require.NoError(t, err)
	d.BeginQuery(q)
	fake.reset()

	d.DestroyQuery(q)
	assert.Equal(t, 1, fake.count("EndQuery("))
	assert.Equal(t, 1, fake.count("DeleteQuery("))
	_, ok := d.QueryResult(q)
	assert.False(t, ok)

	_, err = d.CreateQuery(metadata.QueryKind(9))
	assert.ErrorIs(t, err, core.ErrUnsupported)
}
