package opengl

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

type glTarget struct {
	fbo         uint32
	drawBuffers []glapi.Enum
}

func (d *Device) Backbuffer() *metadata.RenderTarget {
	return d.backbuffer
}

func (d *Device) CreateRenderTarget(desc metadata.RenderTargetDesc) (*metadata.RenderTarget, error) {
	switch desc.Kind {
	case metadata.RenderTargetBackbuffer:
		return nil, fmt.Errorf("%w: the backbuffer is owned by the device", core.ErrUnsupported)
	case metadata.RenderTarget2D, metadata.RenderTargetCube:
		if len(desc.ColorFormats) > 1 {
			return nil, fmt.Errorf("%w: render target %q has %d color formats, 2D and cube targets take one",
				core.ErrResourceCreation, desc.Name, len(desc.ColorFormats))
		}
	case metadata.RenderTargetMulti:
		if len(desc.ColorFormats) == 0 || len(desc.ColorFormats) > metadata.MaxRenderTargets {
			return nil, fmt.Errorf("%w: multi render target %q needs 1 to %d color formats",
				core.ErrResourceCreation, desc.Name, metadata.MaxRenderTargets)
		}
	}
	if len(desc.ColorFormats) == 0 && desc.DepthFormat == metadata.FormatUnknown {
		return nil, fmt.Errorf("%w: render target %q has no attachment", core.ErrResourceCreation, desc.Name)
	}
	if desc.DepthFormat != metadata.FormatUnknown && !desc.DepthFormat.IsDepth() {
		return nil, fmt.Errorf("%w: %s is not a depth format", core.ErrResourceCreation, desc.DepthFormat)
	}

	dim := metadata.Texture2D
	if desc.Kind == metadata.RenderTargetCube {
		dim = metadata.TextureCube
	}
	rt := &metadata.RenderTarget{Desc: desc, Viewport: metadata.FullViewport(desc.Width, desc.Height)}
	release := func() {
		for _, c := range rt.Color {
			d.DestroyTexture(c)
		}
		if rt.Depth != nil {
			d.DestroyTexture(rt.Depth)
		}
	}
	for i, f := range desc.ColorFormats {
		tex, err := d.CreateTexture(metadata.TextureDesc{
			Dimension: dim,
			Format:    f,
			Width:     desc.Width,
			Height:    desc.Height,
			MipLevels: 1,
			Bind:      metadata.BindRenderTarget | metadata.BindShaderInput,
			Name:      fmt.Sprintf("%s.color%d", desc.Name, i),
		}, nil)
		if err != nil {
			release()
			return nil, err
		}
		rt.Color = append(rt.Color, tex)
	}
	if desc.DepthFormat != metadata.FormatUnknown {
		tex, err := d.CreateTexture(metadata.TextureDesc{
			Dimension: dim,
			Format:    desc.DepthFormat,
			Width:     desc.Width,
			Height:    desc.Height,
			MipLevels: 1,
			Bind:      metadata.BindDepthStencil | metadata.BindShaderInput,
			Name:      desc.Name + ".depth",
		}, nil)
		if err != nil {
			release()
			return nil, err
		}
		rt.Depth = tex
	}

	t := &glTarget{fbo: d.gl.GenFramebuffer()}
	prev, prevBound := d.framebuffer, d.fbBound
	d.bindFramebuffer(t.fbo)
	for i, c := range rt.Color {
		ct, _ := d.textures.Get(c.ID)
		d.gl.FramebufferTexture(glapi.FRAMEBUFFER, glapi.COLOR_ATTACHMENT0+uint32(i), ct.name, 0)
		t.drawBuffers = append(t.drawBuffers, glapi.COLOR_ATTACHMENT0+uint32(i))
	}
	if rt.Depth != nil {
		dt, _ := d.textures.Get(rt.Depth.ID)
		attachment := glapi.DEPTH_ATTACHMENT
		if desc.DepthFormat.HasStencil() {
			attachment = glapi.DEPTH_STENCIL_ATTACHMENT
		}
		d.gl.FramebufferTexture(glapi.FRAMEBUFFER, attachment, dt.name, 0)
	}
	if len(t.drawBuffers) == 0 {
		d.gl.DrawBuffer(glapi.NONE)
	} else {
		d.gl.DrawBuffers(t.drawBuffers)
	}
	status := d.gl.CheckFramebufferStatus(glapi.FRAMEBUFFER)
	if prevBound {
		d.bindFramebuffer(prev)
	}
	if status != glapi.FRAMEBUFFER_COMPLETE {
		d.deleteFramebuffer(t.fbo)
		release()
		return nil, fmt.Errorf("%w: framebuffer of %q is incomplete (0x%04x)", core.ErrResourceCreation, desc.Name, status)
	}

	rt.ID = d.targets.Insert(t)
	return rt, nil
}

func (d *Device) deleteFramebuffer(fbo uint32) {
	if d.framebuffer == fbo {
		d.bindFramebuffer(0)
	}
	d.gl.DeleteFramebuffer(fbo)
}

func (d *Device) DestroyRenderTarget(rt *metadata.RenderTarget) {
	if rt == nil || rt.IsBackbuffer() {
		core.LogWarn("DestroyRenderTarget called with the backbuffer")
		return
	}
	t, ok := d.targets.Remove(rt.ID)
	if !ok {
		core.LogWarn("DestroyRenderTarget called with an invalid render target %s", rt.ID)
		return
	}
	d.stack = slices.DeleteFunc(d.stack, func(s *metadata.RenderTarget) bool { return s == rt })
	if d.current == rt {
		d.SetRenderTarget(d.backbuffer, nil)
	}
	d.deleteFramebuffer(t.fbo)
	for _, c := range rt.Color {
		d.DestroyTexture(c)
	}
	if rt.Depth != nil {
		d.DestroyTexture(rt.Depth)
	}
	rt.Color, rt.Depth = nil, nil
}

// SetRenderTarget binds rt, or the backbuffer when rt is nil, applies its
// viewport and clears it when clear is not nil.
func (d *Device) SetRenderTarget(rt *metadata.RenderTarget, clear *metadata.ClearDesc) {
	if rt == nil {
		rt = d.backbuffer
	}
	if rt.IsBackbuffer() {
		if !d.fbBound || d.framebuffer != 0 {
			d.bindFramebuffer(0)
			d.gl.DrawBuffer(glapi.BACK)
		}
	} else {
		t, ok := d.targets.Get(rt.ID)
		core.Assert(ok, "SetRenderTarget with destroyed render target %q", rt.Desc.Name)
		d.bindFramebuffer(t.fbo)
	}
	d.current = rt
	d.SetViewport(rt.Viewport)
	if clear != nil {
		d.Clear(*clear)
	}
}

// SetRenderTargetMask selects the active color attachments of rt. Slots
// beyond len(mask) are disabled.
func (d *Device) SetRenderTargetMask(rt *metadata.RenderTarget, mask []bool) {
	core.Assert(rt != nil && !rt.IsBackbuffer(), "SetRenderTargetMask needs an offscreen render target")
	t, ok := d.targets.Get(rt.ID)
	core.Assert(ok, "SetRenderTargetMask with destroyed render target %q", rt.Desc.Name)

	bufs := make([]glapi.Enum, rt.Slots())
	for i := range bufs {
		if i < len(mask) && mask[i] {
			bufs[i] = glapi.COLOR_ATTACHMENT0 + uint32(i)
		} else {
			bufs[i] = glapi.NONE
		}
	}
	if slices.Equal(bufs, t.drawBuffers) {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()

	prev, prevBound := d.framebuffer, d.fbBound
	d.bindFramebuffer(t.fbo)
	d.gl.DrawBuffers(bufs)
	if prevBound {
		d.bindFramebuffer(prev)
	}
	t.drawBuffers = bufs
}

func (d *Device) PushRenderTarget(rt *metadata.RenderTarget, clear *metadata.ClearDesc) {
	d.stack = append(d.stack, d.current)
	d.SetRenderTarget(rt, clear)
}

func (d *Device) PopRenderTarget() {
	n := len(d.stack)
	if n == 0 {
		core.LogWarn("PopRenderTarget on an empty stack")
		d.SetRenderTarget(d.backbuffer, nil)
		return
	}
	prev := d.stack[n-1]
	d.stack = d.stack[:n-1]
	d.SetRenderTarget(prev, nil)
}

/**
 * @brief Clears the current target. Depth and stencil bits are only cleared
 * when the target carries them, and their write masks are forced open for the
 * duration of the clear.
 */
func (d *Device) Clear(desc metadata.ClearDesc) {
	rt := d.current
	depthFormat := rt.Desc.DepthFormat
	var mask glapi.Enum
	if desc.Flags&metadata.ClearColor != 0 && (rt.IsBackbuffer() || rt.Slots() > 0) {
		c := desc.Color
		d.gl.ClearColor(c[0], c[1], c[2], c[3])
		mask |= glapi.COLOR_BUFFER_BIT
	}
	if desc.Flags&metadata.ClearDepth != 0 && depthFormat.IsDepth() {
		d.gl.ClearDepth(float64(desc.Depth))
		mask |= glapi.DEPTH_BUFFER_BIT
	}
	if desc.Flags&metadata.ClearStencil != 0 && depthFormat.HasStencil() {
		d.gl.ClearStencil(int32(desc.Stencil))
		mask |= glapi.STENCIL_BUFFER_BIT
	}
	if mask == 0 {
		return
	}

	ds := metadata.DefaultDepthStencilDesc()
	if cur := d.reg.DepthStencil(); cur != nil {
		ds = cur.Desc()
	}
	forceDepth := mask&glapi.DEPTH_BUFFER_BIT != 0 && !ds.DepthWrite
	forceStencil := mask&glapi.STENCIL_BUFFER_BIT != 0 && ds.StencilWriteMask != 0xFF
	if forceDepth {
		d.gl.DepthMask(true)
	}
	if forceStencil {
		d.gl.StencilMaskSeparate(glapi.FRONT_AND_BACK, 0xFF)
	}
	d.gl.Clear(mask)
	if forceDepth {
		d.gl.DepthMask(false)
	}
	if forceStencil {
		d.gl.StencilMaskSeparate(glapi.FRONT_AND_BACK, uint32(ds.StencilWriteMask))
	}
}
