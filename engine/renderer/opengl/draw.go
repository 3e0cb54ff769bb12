package opengl

import (
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

var primitiveModes = map[metadata.PrimitiveTopology]glapi.Enum{
	metadata.TopologyPointList:     glapi.POINTS,
	metadata.TopologyLineList:      glapi.LINES,
	metadata.TopologyLineStrip:     glapi.LINE_STRIP,
	metadata.TopologyTriangleList:  glapi.TRIANGLES,
	metadata.TopologyTriangleStrip: glapi.TRIANGLE_STRIP,
}

// drawMode returns the primitive mode, or false when the draw must be skipped.
func (d *Device) drawMode(call string) (glapi.Enum, bool) {
	if !d.programValid {
		core.LogWarn("%s skipped: no valid program is bound", call)
		return 0, false
	}
	mode, ok := primitiveModes[d.reg.Topology()]
	if !ok {
		core.LogWarn("%s skipped: no primitive topology is set", call)
		return 0, false
	}
	return mode, true
}

func (d *Device) indexType(call string) (glapi.Enum, int, bool) {
	if !d.reg.IndexBuffer().Valid() {
		core.LogWarn("%s skipped: no index buffer is bound", call)
		return 0, 0, false
	}
	if d.reg.IndexFormat() == metadata.FormatR16Uint {
		return glapi.UNSIGNED_SHORT, 2, true
	}
	return glapi.UNSIGNED_INT, 4, true
}

func (d *Device) Draw(vertexCount, startVertex uint32) {
	mode, ok := d.drawMode("Draw")
	if !ok {
		return
	}
	d.gl.DrawArrays(mode, int32(startVertex), int32(vertexCount))
	d.metrics.CountDraw()
}

func (d *Device) DrawIndexed(indexCount, startIndex uint32, baseVertex int32) {
	mode, ok := d.drawMode("DrawIndexed")
	if !ok {
		return
	}
	xtype, size, ok := d.indexType("DrawIndexed")
	if !ok {
		return
	}
	d.gl.DrawElementsBaseVertex(mode, int32(indexCount), xtype, int(startIndex)*size, baseVertex)
	d.metrics.CountDraw()
}

func (d *Device) DrawInstanced(vertexCount, instanceCount, startVertex uint32) {
	mode, ok := d.drawMode("DrawInstanced")
	if !ok {
		return
	}
	d.gl.DrawArraysInstanced(mode, int32(startVertex), int32(vertexCount), int32(instanceCount))
	d.metrics.CountDraw()
}

func (d *Device) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32) {
	mode, ok := d.drawMode("DrawIndexedInstanced")
	if !ok {
		return
	}
	xtype, size, ok := d.indexType("DrawIndexedInstanced")
	if !ok {
		return
	}
	d.gl.DrawElementsInstancedBaseVertex(mode, int32(indexCount), xtype, int(startIndex)*size, int32(instanceCount), baseVertex)
	d.metrics.CountDraw()
}
