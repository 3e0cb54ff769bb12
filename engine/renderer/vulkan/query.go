package vulkan

import (
	"fmt"
	"slices"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief One query in a pool of its own. frame is the submission the last
 * result was recorded in; results cannot be read before it was submitted.
 */
type vkQuery struct {
	pool   vk.QueryPool
	kind   metadata.QueryKind
	active bool
	issued bool
	frame  uint64
}

func (q *vkQuery) destroy(context *VulkanContext) {
	if q.pool != vk.NullQueryPool {
		vk.DestroyQueryPool(context.Device.LogicalDevice, q.pool, context.Allocator)
		q.pool = vk.NullQueryPool
	}
}

func (d *Device) CreateQuery(kind metadata.QueryKind) (*metadata.Query, error) {
	var queryType vk.QueryType
	switch kind {
	case metadata.QueryOcclusion:
		queryType = vk.QueryTypeOcclusion
	case metadata.QueryTimestamp:
		if d.context.Device.Properties.Limits.TimestampComputeAndGraphics != vk.True {
			return nil, fmt.Errorf("%w: the device has no graphics timestamps", core.ErrUnsupported)
		}
		queryType = vk.QueryTypeTimestamp
	default:
		return nil, fmt.Errorf("%w: query kind %d", core.ErrUnsupported, kind)
	}
	info := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  queryType,
		QueryCount: 1,
	}
	q := &vkQuery{kind: kind}
	if res := vk.CreateQueryPool(d.context.Device.LogicalDevice, &info, d.context.Allocator, &q.pool); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateQueryPool: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	id := d.queries.Insert(q)
	return &metadata.Query{ID: id, Kind: kind}, nil
}

// resetQuery ends the open render pass, since a reset cannot be recorded
// inside one.
func (d *Device) resetQuery(cb *VulkanCommandBuffer, q *vkQuery) {
	d.endPass()
	vk.CmdResetQueryPool(cb.Handle, q.pool, 0, 1)
}

// BeginQuery starts counting samples of the draws in the current render
// target. Timestamps are written at EndQuery.
func (d *Device) BeginQuery(query *metadata.Query) {
	q, ok := d.queries.Get(query.ID)
	core.Assert(ok, "BeginQuery with destroyed query %s", query.ID)
	if q.kind != metadata.QueryOcclusion {
		return
	}
	core.Assert(!q.active, "BeginQuery on a query that is already active")
	cb := d.recording()
	if cb == nil {
		core.LogWarn("BeginQuery skipped: no frame is being recorded")
		return
	}
	d.resetQuery(cb, q)
	if !d.beginPass() {
		return
	}
	vk.CmdBeginQuery(cb.Handle, q.pool, 0, 0)
	q.active, q.issued = true, false
	d.activeQueries = append(d.activeQueries, q)
}

func (d *Device) EndQuery(query *metadata.Query) {
	q, ok := d.queries.Get(query.ID)
	core.Assert(ok, "EndQuery with destroyed query %s", query.ID)
	cb := d.recording()
	switch q.kind {
	case metadata.QueryOcclusion:
		if cb == nil || !q.active {
			core.LogWarn("EndQuery without a matching BeginQuery in this frame")
			return
		}
		vk.CmdEndQuery(cb.Handle, q.pool, 0)
		q.active = false
		d.activeQueries = slices.DeleteFunc(d.activeQueries, func(a *vkQuery) bool { return a == q })
	case metadata.QueryTimestamp:
		if cb == nil {
			core.LogWarn("EndQuery skipped: no frame is being recorded")
			return
		}
		d.resetQuery(cb, q)
		vk.CmdWriteTimestamp(cb.Handle, vk.PipelineStageBottomOfPipeBit, q.pool, 0)
	}
	q.issued, q.frame = true, d.submitted
}

// endQueries closes occlusion queries still open when their render pass
// ends. Their results are dropped.
func (d *Device) endQueries(cb *VulkanCommandBuffer) {
	for _, q := range d.activeQueries {
		core.LogWarn("occlusion query ended with its render pass, result dropped")
		vk.CmdEndQuery(cb.Handle, q.pool, 0)
		q.active, q.issued = false, false
	}
	d.activeQueries = d.activeQueries[:0]
}

// QueryResult never blocks. It reports false until the GPU has written the
// value. Timestamps are converted to nanoseconds.
func (d *Device) QueryResult(query *metadata.Query) (uint64, bool) {
	q, ok := d.queries.Get(query.ID)
	if !ok || !q.issued || q.active || q.frame >= d.submitted {
		return 0, false
	}
	var value uint64
	res := vk.GetQueryPoolResults(d.context.Device.LogicalDevice, q.pool, 0, 1, 8, unsafe.Pointer(&value), 8,
		vk.QueryResultFlags(vk.QueryResult64Bit))
	if res != vk.Success {
		return 0, false
	}
	if q.kind == metadata.QueryTimestamp {
		value = uint64(float64(value) * float64(d.context.Device.Properties.Limits.TimestampPeriod))
	}
	return value, true
}

func (d *Device) DestroyQuery(query *metadata.Query) {
	q, ok := d.queries.Remove(query.ID)
	if !ok {
		core.LogWarn("DestroyQuery called with an invalid query %s", query.ID)
		return
	}
	if q.active {
		if cb := d.recording(); cb != nil {
			vk.CmdEndQuery(cb.Handle, q.pool, 0)
		}
		d.activeQueries = slices.DeleteFunc(d.activeQueries, func(a *vkQuery) bool { return a == q })
	}
	d.release(func() { q.destroy(d.context) })
}
