package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

/**
 * @brief The resolved vertex buffer handles of one ordered buffer
 * combination, ready for vkCmdBindVertexBuffers.
 */
type vkBinding struct {
	buffers []vk.Buffer
	offsets []vk.DeviceSize
}

type vkLayout struct {
	desc     metadata.InputLayoutDesc
	slots    int
	bindings *state.BindingCache[*vkBinding]
}

func (d *Device) CreateInputLayout(desc metadata.InputLayoutDesc) (*metadata.InputLayout, error) {
	if len(desc.Elements) == 0 {
		return nil, fmt.Errorf("%w: input layout %q has no elements", core.ErrResourceCreation, desc.Name)
	}
	for _, e := range desc.Elements {
		if e.Slot >= metadata.MaxVertexBuffers {
			return nil, fmt.Errorf("%w: element at location %d reads slot %d, at most %d slots exist",
				core.ErrResourceCreation, e.Location, e.Slot, metadata.MaxVertexBuffers)
		}
		if e.Components < 1 || e.Components > 4 {
			return nil, fmt.Errorf("%w: element at location %d has %d components",
				core.ErrResourceCreation, e.Location, e.Components)
		}
		if _, ok := attributeFormat(e); !ok {
			return nil, fmt.Errorf("%w: format %s is not a vertex attribute format",
				core.ErrResourceCreation, e.Format)
		}
	}
	l := &vkLayout{
		desc:     desc,
		slots:    desc.Slots(),
		bindings: state.NewBindingCache[*vkBinding](),
	}
	id := d.layouts.Insert(l)
	return &metadata.InputLayout{ID: id, Desc: desc}, nil
}

func (d *Device) DestroyInputLayout(layout *metadata.InputLayout) {
	l, ok := d.layouts.Remove(layout.Handle())
	if !ok {
		core.LogWarn("DestroyInputLayout called with an invalid layout %s", layout.Handle())
		return
	}
	for _, id := range l.bindings.Buffers() {
		if b, ok := d.buffers.Get(id); ok {
			delete(b.layouts, layout.ID)
		}
	}
	for _, binding := range l.bindings.Drain() {
		if d.vertex == binding {
			d.vertex = nil
		}
	}
	d.reg.ForgetLayout(layout.ID)
	d.dirty |= dirtyPipeline | dirtyVertex
}

// SetInputLayout rebinds the vertex buffers already set against the new layout.
func (d *Device) SetInputLayout(layout *metadata.InputLayout) {
	if !d.reg.SwapLayout(layout.Handle()) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.dirty |= dirtyPipeline
	ids, strides := d.reg.VertexBuffers()
	buffers := make([]*metadata.Buffer, len(ids))
	for i, id := range ids {
		if b, ok := d.buffers.Get(id); ok {
			buffers[i] = &metadata.Buffer{ID: id, Desc: b.desc}
		}
	}
	d.SetVertexBuffers(buffers, append([]uint32(nil), strides...), d.vertexDynamic)
}

func (d *Device) allocBinding() *vkBinding {
	return &vkBinding{}
}

// fill resolves every slot of the binding. Empty slots read the fallback
// buffer so the binding always covers slots the layout declares.
func (d *Device) fill(binding *vkBinding, ids []core.ID, slots int) {
	n := max(len(ids), slots)
	binding.buffers = binding.buffers[:0]
	binding.offsets = binding.offsets[:0]
	fallback := vk.NullBuffer
	if d.zero != nil {
		fallback = d.zero.Handle
	}
	for i := 0; i < n; i++ {
		handle := fallback
		if i < len(ids) {
			if b, ok := d.buffers.Get(ids[i]); ok {
				handle = b.native.Handle
			}
		}
		binding.buffers = append(binding.buffers, handle)
		binding.offsets = append(binding.offsets, 0)
	}
}

/**
 * @brief Binds buffers to the current layout's slots in order. The static path
 * reuses one binding per ordered buffer combination; forceDynamic refills the
 * layout's single dynamic binding instead.
 */
func (d *Device) SetVertexBuffers(buffers []*metadata.Buffer, strides []uint32, forceDynamic bool) {
	d.clearIndexBuffer()

	ids := make([]core.ID, len(buffers))
	resolved := make([]uint32, len(buffers))
	bound := false
	for i, b := range buffers {
		ids[i] = b.Handle()
		var stride uint32
		if i < len(strides) {
			stride = strides[i]
		}
		if stride == 0 && b != nil {
			stride = b.Desc.Stride
		}
		resolved[i] = stride
		bound = bound || b != nil
	}

	layoutID := d.reg.Layout()
	l, hasLayout := d.layouts.Get(layoutID)
	if hasLayout {
		core.Assert(len(buffers) <= l.slots, "%d vertex buffers bound to layout %q with %d slots",
			len(buffers), l.desc.Name, l.slots)
	}
	if d.reg.SwapVertexBuffers(ids, resolved) {
		// Strides are baked into the pipeline.
		d.dirty |= dirtyPipeline
	}
	d.vertexDynamic = forceDynamic
	d.dirty |= dirtyVertex

	if !bound || !hasLayout {
		d.vertex = nil
		return
	}

	var binding *vkBinding
	fresh := true
	if forceDynamic {
		binding, _ = l.bindings.Dynamic(ids, d.allocBinding)
	} else {
		binding, fresh = l.bindings.Lookup(ids, resolved, d.allocBinding)
		if fresh {
			d.metrics.CountBindingCreated()
		}
	}
	if fresh {
		d.fill(binding, ids, l.slots)
	}
	d.vertex = binding

	for _, id := range ids {
		if b, ok := d.buffers.Get(id); ok {
			b.layouts[layoutID] = struct{}{}
		}
	}
}

func (d *Device) clearIndexBuffer() {
	if d.reg.SwapIndexBuffer(core.InvalidID, metadata.FormatUnknown) {
		d.dirty |= dirtyIndex
	}
}
