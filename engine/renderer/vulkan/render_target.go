package vulkan

import (
	"fmt"
	"slices"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief Offscreen target state. A framebuffer is created per color mask the
 * target is rendered with, since the mask is part of the render pass.
 */
type vkTarget struct {
	layout       attachmentLayout
	views        []vk.ImageView
	width        uint32
	height       uint32
	layers       uint32
	framebuffers map[uint8]*VulkanFramebuffer
}

func (t *vkTarget) destroy(context *VulkanContext) {
	for mask, fb := range t.framebuffers {
		fb.Destroy(context)
		delete(t.framebuffers, mask)
	}
}

func (d *Device) Backbuffer() *metadata.RenderTarget {
	return d.backbuffer
}

func (d *Device) backbufferLayout() attachmentLayout {
	var l attachmentLayout
	l.colors[0] = d.context.Swapchain.ImageFormat.Format
	l.count, l.mask = 1, 1
	l.depth = d.context.Device.DepthFormat
	l.depthStencil = d.backbuffer.Desc.DepthFormat.HasStencil()
	l.backbuffer = true
	return l
}

// passFor returns the cached render pass for key, creating it on first use.
func (d *Device) passFor(key passKey) (*VulkanRenderpass, error) {
	if rp, ok := d.passes[key]; ok {
		return rp, nil
	}
	rp, err := RenderpassCreate(d.context, key)
	if err != nil {
		return nil, err
	}
	d.passes[key] = rp
	return rp, nil
}

// createBackbufferFramebuffers builds one framebuffer per swapchain image
// against the loading backbuffer pass. The fresh pass is compatible.
func (d *Device) createBackbufferFramebuffers() error {
	sc := d.context.Swapchain
	rp, err := d.passFor(passKey{layout: d.backbufferLayout()})
	if err != nil {
		return err
	}
	for _, fb := range sc.Framebuffers {
		fb.Destroy(d.context)
	}
	sc.Framebuffers = sc.Framebuffers[:0]
	for _, image := range sc.Images {
		fb, err := FramebufferCreate(d.context, rp, sc.Extent.Width, sc.Extent.Height, 1,
			[]vk.ImageView{image.View, sc.DepthAttachment.LayerView})
		if err != nil {
			return err
		}
		sc.Framebuffers = append(sc.Framebuffers, fb)
	}
	return nil
}

func validateTargetDesc(desc metadata.RenderTargetDesc) error {
	switch desc.Kind {
	case metadata.RenderTargetBackbuffer:
		return fmt.Errorf("%w: the backbuffer is owned by the device", core.ErrUnsupported)
	case metadata.RenderTarget2D, metadata.RenderTargetCube:
		if len(desc.ColorFormats) > 1 {
			return fmt.Errorf("%w: render target %q has %d color formats, 2D and cube targets take one",
				core.ErrResourceCreation, desc.Name, len(desc.ColorFormats))
		}
	case metadata.RenderTargetMulti:
		if len(desc.ColorFormats) == 0 || len(desc.ColorFormats) > metadata.MaxRenderTargets {
			return fmt.Errorf("%w: multi render target %q needs 1 to %d color formats",
				core.ErrResourceCreation, desc.Name, metadata.MaxRenderTargets)
		}
	}
	if len(desc.ColorFormats) == 0 && desc.DepthFormat == metadata.FormatUnknown {
		return fmt.Errorf("%w: render target %q has no attachment", core.ErrResourceCreation, desc.Name)
	}
	if desc.DepthFormat != metadata.FormatUnknown && !desc.DepthFormat.IsDepth() {
		return fmt.Errorf("%w: %s is not a depth format", core.ErrResourceCreation, desc.DepthFormat)
	}
	for _, f := range desc.ColorFormats {
		if f.IsDepth() {
			return fmt.Errorf("%w: %s is not a color format", core.ErrResourceCreation, f)
		}
	}
	return nil
}

func (d *Device) CreateRenderTarget(desc metadata.RenderTargetDesc) (*metadata.RenderTarget, error) {
	if err := validateTargetDesc(desc); err != nil {
		return nil, err
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
	t := &vkTarget{width: desc.Width, height: desc.Height, layers: 1, framebuffers: make(map[uint8]*VulkanFramebuffer)}
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
		ct, _ := d.textures.Get(tex.ID)
		t.layout.colors[i] = ct.image.Format
		t.views = append(t.views, ct.image.LayerView)
		t.layers = ct.image.Layers
	}
	t.layout.count = uint8(len(desc.ColorFormats))
	t.layout.mask = uint8(1<<t.layout.count - 1)
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
		dt, _ := d.textures.Get(tex.ID)
		t.layout.depth = dt.image.Format
		t.layout.depthStencil = desc.DepthFormat.HasStencil()
		t.views = append(t.views, dt.image.LayerView)
		t.layers = dt.image.Layers
	}
	if _, err := d.framebufferFor(t); err != nil {
		release()
		return nil, fmt.Errorf("render target %q: %w", desc.Name, err)
	}

	rt.ID = d.targets.Insert(t)
	return rt, nil
}

// framebufferFor returns the framebuffer matching the target's current mask.
func (d *Device) framebufferFor(t *vkTarget) (*VulkanFramebuffer, error) {
	if fb, ok := t.framebuffers[t.layout.mask]; ok {
		return fb, nil
	}
	rp, err := d.passFor(passKey{layout: t.layout})
	if err != nil {
		return nil, err
	}
	fb, err := FramebufferCreate(d.context, rp, t.width, t.height, t.layers, t.views)
	if err != nil {
		return nil, err
	}
	t.framebuffers[t.layout.mask] = fb
	return fb, nil
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
	d.release(func() { t.destroy(d.context) })
	for _, c := range rt.Color {
		d.DestroyTexture(c)
	}
	if rt.Depth != nil {
		d.DestroyTexture(rt.Depth)
	}
	rt.Color, rt.Depth = nil, nil
}

// SetRenderTarget makes rt, or the backbuffer when rt is nil, the target of
// the following draws and applies its viewport. The render pass opens with
// the first clear or draw.
func (d *Device) SetRenderTarget(rt *metadata.RenderTarget, clear *metadata.ClearDesc) {
	if rt == nil {
		rt = d.backbuffer
	}
	if !rt.IsBackbuffer() {
		_, ok := d.targets.Get(rt.ID)
		core.Assert(ok, "SetRenderTarget with destroyed render target %q", rt.Desc.Name)
	}
	if d.current != rt {
		d.endPass()
	}
	d.current = rt
	d.SetViewport(rt.Viewport)
	if clear != nil {
		d.Clear(*clear)
	}
}

// targetMask turns a list of enabled slots into a mask over slots of rt.
// Slots beyond len(mask) are disabled.
func targetMask(slots int, mask []bool) uint8 {
	var m uint8
	for i := 0; i < slots && i < len(mask); i++ {
		if mask[i] {
			m |= 1 << i
		}
	}
	return m
}

func (d *Device) SetRenderTargetMask(rt *metadata.RenderTarget, mask []bool) {
	core.Assert(rt != nil && !rt.IsBackbuffer(), "SetRenderTargetMask needs an offscreen render target")
	t, ok := d.targets.Get(rt.ID)
	core.Assert(ok, "SetRenderTargetMask with destroyed render target %q", rt.Desc.Name)

	m := targetMask(rt.Slots(), mask)
	if m == t.layout.mask {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	if d.current == rt {
		d.endPass()
	}
	t.layout.mask = m
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

// beginPass opens the render pass of the current target if none is open and
// reports whether commands can be recorded into one.
func (d *Device) beginPass() bool {
	if d.pass != nil {
		return true
	}
	cb := d.recording()
	if cb == nil {
		return false
	}
	var (
		key passKey
		fb  *VulkanFramebuffer
	)
	if d.current.IsBackbuffer() {
		key = passKey{layout: d.backbufferLayout(), fresh: d.backbufferFresh}
		fb = d.context.Swapchain.Framebuffers[d.context.ImageIndex]
	} else {
		t, ok := d.targets.Get(d.current.ID)
		if !ok {
			core.LogError("render target %q was destroyed while current", d.current.Desc.Name)
			return false
		}
		key = passKey{layout: t.layout}
		var err error
		if fb, err = d.framebufferFor(t); err != nil {
			core.LogError("render target %q: %s", d.current.Desc.Name, err)
			return false
		}
	}
	rp, err := d.passFor(key)
	if err != nil {
		core.LogError("render pass: %s", err)
		return false
	}
	rp.RenderpassBegin(cb, fb)
	if d.current.IsBackbuffer() {
		d.backbufferFresh = false
	}
	d.pass, d.passWidth, d.passHeight = rp, fb.Width, fb.Height
	// A new pass may be incompatible with the bound pipeline.
	d.dirty |= dirtyPipeline | dirtyViewport | dirtyStencilRef
	return true
}

func (d *Device) endPass() {
	if d.pass == nil {
		return
	}
	if cb := d.recording(); cb != nil {
		d.endQueries(cb)
		d.pass.RenderpassEnd(cb)
	}
	d.pass = nil
}

// clearAttachments lists the attachments a clear touches: color only when
// the target has color, depth and stencil only when its depth format has
// them. Disabled color slots are left alone.
func clearAttachments(rt *metadata.RenderTarget, mask uint8, desc metadata.ClearDesc) []vk.ClearAttachment {
	var out []vk.ClearAttachment
	if desc.Flags&metadata.ClearColor != 0 {
		slots := rt.Slots()
		if rt.IsBackbuffer() {
			slots, mask = 1, 1
		}
		for i := 0; i < slots; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			var value vk.ClearValue
			value.SetColor(desc.Color[:])
			out = append(out, vk.ClearAttachment{
				AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
				ColorAttachment: uint32(i),
				ClearValue:      value,
			})
		}
	}
	depthFormat := rt.Desc.DepthFormat
	var aspect vk.ImageAspectFlags
	if desc.Flags&metadata.ClearDepth != 0 && depthFormat.IsDepth() {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if desc.Flags&metadata.ClearStencil != 0 && depthFormat.HasStencil() {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	if aspect != 0 {
		var value vk.ClearValue
		value.SetDepthStencil(desc.Depth, uint32(desc.Stencil))
		out = append(out, vk.ClearAttachment{AspectMask: aspect, ClearValue: value})
	}
	return out
}

/**
 * @brief Clears the current target inside its render pass. Clear attachments
 * ignore the depth and stencil write masks.
 */
func (d *Device) Clear(desc metadata.ClearDesc) {
	rt := d.current
	mask := uint8(1)
	if !rt.IsBackbuffer() {
		if t, ok := d.targets.Get(rt.ID); ok {
			mask = t.layout.mask
		}
	}
	attachments := clearAttachments(rt, mask, desc)
	if len(attachments) == 0 {
		return
	}
	if !d.beginPass() {
		core.LogWarn("Clear skipped: no frame is being recorded")
		return
	}
	rect := vk.ClearRect{
		Rect:       vk.Rect2D{Extent: vk.Extent2D{Width: d.passWidth, Height: d.passHeight}},
		LayerCount: 1,
	}
	cb := d.recording()
	vk.CmdClearAttachments(cb.Handle, uint32(len(attachments)), attachments, 1, []vk.ClearRect{rect})
}
