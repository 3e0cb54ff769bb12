package opengl

import (
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

// attribWiring points one attribute at the buffer bound to ARRAY_BUFFER.
type attribWiring func(stride uint32)

type glLayout struct {
	desc      metadata.InputLayoutDesc
	slots     int
	wiring    [metadata.MaxVertexBuffers][]attribWiring
	locations [metadata.MaxVertexBuffers][]uint32
	bindings  *state.BindingCache[uint32]
}

type attribType struct {
	xtype   glapi.Enum
	integer bool
}

var attribTypes = map[metadata.Format]attribType{
	metadata.FormatR8Unorm:     {xtype: glapi.UNSIGNED_BYTE},
	metadata.FormatRG8Unorm:    {xtype: glapi.UNSIGNED_BYTE},
	metadata.FormatRGBA8Unorm:  {xtype: glapi.UNSIGNED_BYTE},
	metadata.FormatBGRA8Unorm:  {xtype: glapi.UNSIGNED_BYTE},
	metadata.FormatRGBA16Float: {xtype: glapi.HALF_FLOAT},
	metadata.FormatR32Float:    {xtype: glapi.FLOAT},
	metadata.FormatRG32Float:   {xtype: glapi.FLOAT},
	metadata.FormatRGB32Float:  {xtype: glapi.FLOAT},
	metadata.FormatRGBA32Float: {xtype: glapi.FLOAT},
	metadata.FormatR16Uint:     {xtype: glapi.UNSIGNED_SHORT, integer: true},
	metadata.FormatR32Uint:     {xtype: glapi.UNSIGNED_INT, integer: true},
}

func (d *Device) CreateInputLayout(desc metadata.InputLayoutDesc) (*metadata.InputLayout, error) {
	if len(desc.Elements) == 0 {
		return nil, fmt.Errorf("%w: input layout %q has no elements", core.ErrResourceCreation, desc.Name)
	}
	l := &glLayout{
		desc:     desc,
		slots:    desc.Slots(),
		bindings: state.NewBindingCache[uint32](),
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
		at, ok := attribTypes[e.Format]
		if !ok {
			return nil, fmt.Errorf("%w: format %s is not a vertex attribute format",
				core.ErrResourceCreation, e.Format)
		}
		l.wiring[e.Slot] = append(l.wiring[e.Slot], d.wireAttribute(e, at))
		l.locations[e.Slot] = append(l.locations[e.Slot], e.Location)
	}
	id := d.layouts.Insert(l)
	return &metadata.InputLayout{ID: id, Desc: desc}, nil
}

func (d *Device) wireAttribute(e metadata.InputElement, at attribType) attribWiring {
	var divisor uint32
	if e.PerInstance {
		divisor = max(e.InstanceStepRate, 1)
	}
	normalized := e.Normalized()
	return func(stride uint32) {
		d.gl.EnableVertexAttribArray(e.Location)
		if at.integer {
			d.gl.VertexAttribIPointer(e.Location, int32(e.Components), at.xtype, int32(stride), int(e.Offset))
		} else {
			d.gl.VertexAttribPointer(e.Location, int32(e.Components), at.xtype, normalized, int32(stride), int(e.Offset))
		}
		d.gl.VertexAttribDivisor(e.Location, divisor)
	}
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
	for _, vao := range l.bindings.Drain() {
		d.deleteVertexArray(vao)
	}
	d.reg.ForgetLayout(layout.ID)
}

// SetInputLayout rewires the vertex buffers already set against the new layout.
func (d *Device) SetInputLayout(layout *metadata.InputLayout) {
	if !d.reg.SwapLayout(layout.Handle()) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	ids, strides := d.reg.VertexBuffers()
	buffers := make([]*metadata.Buffer, len(ids))
	for i, id := range ids {
		if b, ok := d.buffers.Get(id); ok {
			buffers[i] = &metadata.Buffer{ID: id, Desc: b.desc}
		}
	}
	d.SetVertexBuffers(buffers, append([]uint32(nil), strides...), d.vertexDynamic)
}

/**
 * @brief Binds buffers to the current layout's slots in order. The static path
 * reuses one vertex array per ordered buffer combination; forceDynamic rewires
 * the layout's single dynamic vertex array instead.
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
	d.reg.SwapVertexBuffers(ids, resolved)
	d.vertexDynamic = forceDynamic

	if !bound || !hasLayout {
		d.bindVertexArray(0)
		return
	}

	var (
		vao      uint32
		previous []core.ID
	)
	fresh := true
	if forceDynamic {
		vao, previous = l.bindings.Dynamic(ids, d.gl.GenVertexArray)
	} else {
		vao, fresh = l.bindings.Lookup(ids, resolved, d.gl.GenVertexArray)
		if fresh {
			d.metrics.CountBindingCreated()
		}
	}
	d.bindVertexArray(vao)
	d.gl.BindBuffer(glapi.ELEMENT_ARRAY_BUFFER, 0)

	if fresh {
		wired := make([]bool, l.slots)
		for i, id := range ids {
			b, ok := d.buffers.Get(id)
			if !ok || len(l.wiring[i]) == 0 {
				continue
			}
			d.gl.BindBuffer(glapi.ARRAY_BUFFER, b.name)
			for _, wire := range l.wiring[i] {
				wire(resolved[i])
			}
			wired[i] = true
		}
		d.gl.BindBuffer(glapi.ARRAY_BUFFER, 0)
		// the dynamic vertex array keeps attributes of slots it no longer reads
		for i, id := range previous {
			if i < l.slots && !wired[i] && id.Valid() {
				for _, loc := range l.locations[i] {
					d.gl.DisableVertexAttribArray(loc)
				}
			}
		}
	}

	for _, id := range ids {
		if b, ok := d.buffers.Get(id); ok {
			b.layouts[layoutID] = struct{}{}
		}
	}
}

func (d *Device) clearIndexBuffer() {
	if d.reg.SwapIndexBuffer(core.InvalidID, metadata.FormatUnknown) && d.vao != 0 {
		d.gl.BindBuffer(glapi.ELEMENT_ARRAY_BUFFER, 0)
	}
}
