package opengl

import (
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

type glQuery struct {
	name   uint32
	kind   metadata.QueryKind
	active bool
	issued bool
}

func (d *Device) CreateQuery(kind metadata.QueryKind) (*metadata.Query, error) {
	if kind != metadata.QueryOcclusion && kind != metadata.QueryTimestamp {
		return nil, fmt.Errorf("%w: query kind %d", core.ErrUnsupported, kind)
	}
	id := d.queries.Insert(&glQuery{name: d.gl.GenQuery(), kind: kind})
	return &metadata.Query{ID: id, Kind: kind}, nil
}

// BeginQuery starts counting samples. Timestamps are written at EndQuery.
func (d *Device) BeginQuery(query *metadata.Query) {
	q, ok := d.queries.Get(query.ID)
	core.Assert(ok, "BeginQuery with destroyed query %s", query.ID)
	if q.kind != metadata.QueryOcclusion {
		return
	}
	core.Assert(!q.active, "BeginQuery on a query that is already active")
	d.gl.BeginQuery(glapi.SAMPLES_PASSED, q.name)
	q.active = true
}

func (d *Device) EndQuery(query *metadata.Query) {
	q, ok := d.queries.Get(query.ID)
	core.Assert(ok, "EndQuery with destroyed query %s", query.ID)
	switch q.kind {
	case metadata.QueryOcclusion:
		core.Assert(q.active, "EndQuery without BeginQuery")
		d.gl.EndQuery(glapi.SAMPLES_PASSED)
		q.active = false
	case metadata.QueryTimestamp:
		d.gl.QueryCounter(q.name, glapi.TIMESTAMP)
	}
	q.issued = true
}

// QueryResult never blocks. It reports false until the GPU has written the
// value.
func (d *Device) QueryResult(query *metadata.Query) (uint64, bool) {
	q, ok := d.queries.Get(query.ID)
	if !ok || !q.issued || q.active {
		return 0, false
	}
	if d.gl.GetQueryObjectui(q.name, glapi.QUERY_RESULT_AVAILABLE) == glapi.FALSE {
		return 0, false
	}
	return d.gl.GetQueryObjectui64(q.name, glapi.QUERY_RESULT), true
}

func (d *Device) DestroyQuery(query *metadata.Query) {
	q, ok := d.queries.Remove(query.ID)
	if !ok {
		core.LogWarn("DestroyQuery called with an invalid query %s", query.ID)
		return
	}
	if q.active {
		d.gl.EndQuery(glapi.SAMPLES_PASSED)
	}
	d.gl.DeleteQuery(q.name)
}
