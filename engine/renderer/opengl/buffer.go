package opengl

import (
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

type glBuffer struct {
	name uint32
	desc metadata.BufferDesc
	// layouts holding a vertex binding that reads this buffer
	layouts map[core.ID]struct{}
}

func bufferUsage(u metadata.Usage) glapi.Enum {
	switch u {
	case metadata.UsageDynamic:
		return glapi.DYNAMIC_DRAW
	case metadata.UsageStaging:
		return glapi.STREAM_READ
	}
	return glapi.STATIC_DRAW
}

func (d *Device) CreateBuffer(desc metadata.BufferDesc, data []byte) (*metadata.Buffer, error) {
	if desc.Size == 0 {
		desc.Size = uint64(len(data))
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer %q has zero size", core.ErrResourceCreation, desc.Name)
	}
	if uint64(len(data)) > desc.Size {
		return nil, fmt.Errorf("%w: %d bytes of initial data exceed buffer %q of %d bytes",
			core.ErrResourceCreation, len(data), desc.Name, desc.Size)
	}
	if desc.Usage == metadata.UsageImmutable && len(data) == 0 {
		return nil, fmt.Errorf("%w: immutable buffer %q needs initial data", core.ErrResourceCreation, desc.Name)
	}

	name := d.gl.GenBuffer()
	d.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, name)
	if uint64(len(data)) == desc.Size {
		d.gl.BufferData(glapi.COPY_WRITE_BUFFER, int(desc.Size), data, bufferUsage(desc.Usage))
	} else {
		d.gl.BufferData(glapi.COPY_WRITE_BUFFER, int(desc.Size), nil, bufferUsage(desc.Usage))
		d.gl.BufferSubData(glapi.COPY_WRITE_BUFFER, 0, data)
	}
	d.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, 0)

	id := d.buffers.Insert(&glBuffer{name: name, desc: desc, layouts: make(map[core.ID]struct{})})
	return &metadata.Buffer{ID: id, Desc: desc}, nil
}

func (d *Device) UpdateBuffer(buffer *metadata.Buffer, offset uint64, data []byte) error {
	b, ok := d.buffers.Get(buffer.Handle())
	if !ok {
		return fmt.Errorf("%w: buffer %s", core.ErrInvalidHandle, buffer.Handle())
	}
	if b.desc.Usage == metadata.UsageImmutable {
		return fmt.Errorf("%w: buffer %q is immutable", core.ErrUnsupported, b.desc.Name)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("update of %d bytes at offset %d exceeds buffer %q of %d bytes",
			len(data), offset, b.desc.Name, b.desc.Size)
	}
	d.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, b.name)
	d.gl.BufferSubData(glapi.COPY_WRITE_BUFFER, int(offset), data)
	d.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, 0)
	return nil
}

// DestroyBuffer drops every vertex binding that read the buffer before
// deleting it.
func (d *Device) DestroyBuffer(buffer *metadata.Buffer) {
	b, ok := d.buffers.Remove(buffer.Handle())
	if !ok {
		core.LogWarn("DestroyBuffer called with an invalid buffer %s", buffer.Handle())
		return
	}
	for layoutID := range b.layouts {
		l, ok := d.layouts.Get(layoutID)
		if !ok {
			continue
		}
		stale := l.bindings.Invalidate(buffer.ID)
		for _, vao := range stale {
			d.deleteVertexArray(vao)
		}
		d.metrics.CountBindingsInvalidated(len(stale))
	}
	d.reg.ForgetBuffer(buffer.ID)
	d.gl.DeleteBuffer(b.name)
}

func (d *Device) deleteVertexArray(vao uint32) {
	if d.vao == vao {
		d.vao = 0
	}
	d.gl.DeleteVertexArray(vao)
}

func (d *Device) SetIndexBuffer(buffer *metadata.Buffer, format metadata.Format) {
	if buffer != nil {
		core.Assert(format == metadata.FormatR16Uint || format == metadata.FormatR32Uint,
			"index format %s is not R16Uint or R32Uint", format)
	}
	// the element binding is vertex array state, so there is nowhere to put it
	// without one
	if d.vao == 0 && buffer.Handle().Valid() {
		core.LogWarn("index buffer %s ignored: no vertex array is bound", buffer.Handle())
		d.clearIndexBuffer()
		return
	}
	if !d.reg.SwapIndexBuffer(buffer.Handle(), format) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	var name uint32
	if b, ok := d.buffers.Get(buffer.Handle()); ok {
		name = b.name
	}
	if d.vao != 0 {
		d.gl.BindBuffer(glapi.ELEMENT_ARRAY_BUFFER, name)
	}
}
