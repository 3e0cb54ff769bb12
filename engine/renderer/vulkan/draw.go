package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

// prepareDraw records whatever the register changed since the last draw and
// reports whether the draw can be recorded.
func (d *Device) prepareDraw(call string, indexed bool) (*VulkanCommandBuffer, bool) {
	cb := d.recording()
	if cb == nil {
		core.LogWarn("%s skipped: no frame is being recorded", call)
		return nil, false
	}
	if !d.programValid {
		core.LogWarn("%s skipped: no valid program is bound", call)
		return nil, false
	}
	if _, ok := topologies[d.reg.Topology()]; !ok {
		core.LogWarn("%s skipped: no primitive topology is set", call)
		return nil, false
	}
	if indexed && !d.reg.IndexBuffer().Valid() {
		core.LogWarn("%s skipped: no index buffer is bound", call)
		return nil, false
	}
	if !d.beginPass() {
		return nil, false
	}
	if err := d.bindPipeline(cb); err != nil {
		core.LogError("%s skipped: %s", call, err)
		return nil, false
	}

	if d.dirty&dirtyViewport != 0 {
		vp := d.reg.Viewport()
		rect := scissor(vp, d.passHeight)
		if !d.reg.Rasterizer().Desc().ScissorEnable {
			rect = vk.Rect2D{Extent: vk.Extent2D{Width: d.passWidth, Height: d.passHeight}}
		}
		vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport(vp, d.passHeight)})
		vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{rect})
	}
	if d.dirty&dirtyStencilRef != 0 {
		vk.CmdSetStencilReference(cb.Handle, vk.StencilFaceFlags(vk.StencilFrontAndBack), uint32(d.reg.StencilRef()))
	}
	// Descriptor sets are bound against the pipeline layout, which every
	// pipeline shares, so only content changes rewrite them.
	if d.dirty&dirtyDescriptors != 0 {
		if err := d.writeDescriptors(cb); err != nil {
			core.LogError("%s skipped: %s", call, err)
			return nil, false
		}
	}
	if d.dirty&dirtyVertex != 0 && d.vertex != nil && len(d.vertex.buffers) > 0 {
		vk.CmdBindVertexBuffers(cb.Handle, 0, uint32(len(d.vertex.buffers)), d.vertex.buffers, d.vertex.offsets)
	}
	if indexed && d.dirty&dirtyIndex != 0 {
		b, ok := d.buffers.Get(d.reg.IndexBuffer())
		if !ok {
			core.LogWarn("%s skipped: the index buffer was destroyed", call)
			return nil, false
		}
		vk.CmdBindIndexBuffer(cb.Handle, b.native.Handle, 0, indexType(d.reg.IndexFormat()))
		d.dirty &^= dirtyIndex
	}
	d.dirty &^= dirtyViewport | dirtyStencilRef | dirtyDescriptors | dirtyVertex
	return cb, true
}

func (d *Device) Draw(vertexCount, startVertex uint32) {
	d.DrawInstanced(vertexCount, 1, startVertex)
}

func (d *Device) DrawIndexed(indexCount, startIndex uint32, baseVertex int32) {
	d.DrawIndexedInstanced(indexCount, 1, startIndex, baseVertex)
}

func (d *Device) DrawInstanced(vertexCount, instanceCount, startVertex uint32) {
	cb, ok := d.prepareDraw("Draw", false)
	if !ok {
		return
	}
	vk.CmdDraw(cb.Handle, vertexCount, instanceCount, startVertex, 0)
	d.metrics.CountDraw()
}

func (d *Device) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32) {
	cb, ok := d.prepareDraw("DrawIndexed", true)
	if !ok {
		return
	}
	vk.CmdDrawIndexed(cb.Handle, indexCount, instanceCount, startIndex, baseVertex, 0)
	d.metrics.CountDraw()
}

// markAllDirty forces the next draw to record every piece of state again.
func (d *Device) markAllDirty() {
	d.dirty = dirtyAll
}
