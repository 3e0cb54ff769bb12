package opengl

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/platform"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/immediate"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

type textureUnit struct {
	target glapi.Enum
	name   uint32
}

type defaultStates struct {
	blend        *metadata.BlendState
	rasterizer   *metadata.RasterizerState
	depthStencil *metadata.DepthStencilState
}

/**
 * @brief Device implements the renderer device on an OpenGL 4.1 core context.
 * All calls must happen on the thread that owns the context.
 */
type Device struct {
	mu      sync.Mutex
	label   string
	cfg     *config.Config
	surface platform.GLSurface
	gl      glapi.Functions

	reg      *state.Register
	programs *state.ProgramCache[uint32]
	defaults defaultStates
	serial   uint64

	buffers  *core.Registry[*glBuffer]
	textures *core.Registry[*glTexture]
	shaders  *core.Registry[*glShader]
	layouts  *core.Registry[*glLayout]
	targets  *core.Registry[*glTarget]
	queries  *core.Registry[*glQuery]
	samplers map[*metadata.SamplerState]uint32

	backbuffer *metadata.RenderTarget
	current    *metadata.RenderTarget
	stack      []*metadata.RenderTarget

	immediateBackend *immediateBackend
	immediate        *immediate.Renderer
	metrics          *core.Metrics

	// native bindings below the register
	program       uint32
	programValid  bool
	vao           uint32
	framebuffer   uint32
	fbBound       bool
	activeUnit    uint32
	units         [state.MaxTextureSlots]textureUnit
	vertexDynamic bool
}

func New(cfg *config.Config, surface platform.GLSurface, fns glapi.Functions) *Device {
	return &Device{
		label:    uuid.NewString(),
		cfg:      cfg,
		surface:  surface,
		gl:       fns,
		reg:      state.NewRegister(),
		programs: state.NewProgramCache[uint32](),
		buffers:  core.NewRegistry[*glBuffer](),
		textures: core.NewRegistry[*glTexture](),
		shaders:  core.NewRegistry[*glShader](),
		layouts:  core.NewRegistry[*glLayout](),
		targets:  core.NewRegistry[*glTarget](),
		queries:  core.NewRegistry[*glQuery](),
		samplers: make(map[*metadata.SamplerState]uint32),
		metrics:  core.NewMetrics(),
	}
}

func (d *Device) Initialize() error {
	d.surface.MakeCurrent()
	if err := d.gl.Init(); err != nil {
		return fmt.Errorf("failed to load OpenGL functions: %w", err)
	}
	if d.cfg.Device.VSync {
		d.surface.SetSwapInterval(1)
	} else {
		d.surface.SetSwapInterval(0)
	}

	width, height := d.surface.FramebufferSize()
	d.backbuffer = &metadata.RenderTarget{
		Desc: metadata.RenderTargetDesc{
			Kind:         metadata.RenderTargetBackbuffer,
			Width:        width,
			Height:       height,
			ColorFormats: []metadata.Format{metadata.FormatRGBA8Unorm},
			DepthFormat:  backbufferDepthFormat(d.surface.PixelFormat()),
			Name:         "backbuffer",
		},
		Viewport: metadata.FullViewport(width, height),
	}
	d.current = d.backbuffer

	d.defaults = defaultStates{
		blend:        d.CreateBlendState(metadata.DefaultBlendDesc()),
		rasterizer:   d.CreateRasterizerState(metadata.DefaultRasterizerDesc()),
		depthStencil: d.CreateDepthStencilState(metadata.DefaultDepthStencilDesc()),
	}
	d.SetBlendState(nil)
	d.SetRasterizerState(nil)
	d.SetDepthStencilState(nil, 0)
	d.SetRenderTarget(d.backbuffer, nil)

	d.immediateBackend = newImmediateBackend(d)
	d.immediate = immediate.New(d.immediateBackend, d.cfg.Immediate.InitialCapacity)

	core.LogInfo("OpenGL device %s initialized with a %dx%d backbuffer", d.label, width, height)
	return nil
}

func backbufferDepthFormat(pf platform.SurfaceFormat) metadata.Format {
	switch {
	case pf.StencilBits > 0:
		return metadata.FormatD24UnormS8Uint
	case pf.DepthBits > 16:
		return metadata.FormatD32Float
	case pf.DepthBits > 0:
		return metadata.FormatD16Unorm
	}
	return metadata.FormatUnknown
}

func (d *Device) Shutdown() error {
	if d.immediateBackend != nil {
		d.immediateBackend.destroy()
	}
	d.useProgram(0, false)
	for _, p := range d.programs.Drain() {
		d.gl.DeleteProgram(p)
	}
	d.bindVertexArray(0)
	for _, l := range d.layouts.Drain() {
		for _, vao := range l.bindings.Drain() {
			d.gl.DeleteVertexArray(vao)
		}
	}
	for _, s := range d.shaders.Drain() {
		s.release(d.gl)
	}
	for _, t := range d.targets.Drain() {
		d.gl.DeleteFramebuffer(t.fbo)
	}
	for _, t := range d.textures.Drain() {
		d.gl.DeleteTexture(t.name)
	}
	for _, b := range d.buffers.Drain() {
		d.gl.DeleteBuffer(b.name)
	}
	for _, q := range d.queries.Drain() {
		d.gl.DeleteQuery(q.name)
	}
	for s, name := range d.samplers {
		d.gl.DeleteSampler(name)
		delete(d.samplers, s)
	}
	core.LogInfo("OpenGL device %s shut down", d.label)
	return nil
}

func (d *Device) Resized(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	d.backbuffer.Desc.Width, d.backbuffer.Desc.Height = width, height
	d.backbuffer.Viewport = metadata.FullViewport(width, height)
	if d.current.IsBackbuffer() {
		d.SetViewport(d.backbuffer.Viewport)
	}
	return nil
}

func (d *Device) BeginFrame(deltaTime float64) error {
	if len(d.stack) > 0 {
		core.LogWarn("%d render targets still pushed at frame start", len(d.stack))
		d.stack = d.stack[:0]
	}
	d.SetRenderTarget(d.backbuffer, nil)
	return nil
}

func (d *Device) EndFrame(deltaTime float64) error {
	if d.cfg.Device.Debug {
		d.checkError("EndFrame")
	}
	d.surface.SwapBuffers()
	d.metrics.Update(deltaTime)
	return nil
}

// checkError drains the GL error queue.
func (d *Device) checkError(where string) bool {
	failed := false
	for i := 0; i < 16; i++ {
		e := d.gl.GetError()
		if e == glapi.NO_ERROR {
			break
		}
		core.LogError("GL error 0x%04x in %s", e, where)
		failed = true
	}
	return failed
}

func (d *Device) Lock()   { d.mu.Lock() }
func (d *Device) Unlock() { d.mu.Unlock() }

func (d *Device) Immediate() *immediate.Renderer {
	return d.immediate
}

func (d *Device) Stats() core.DeviceStats {
	return d.metrics.Snapshot()
}

func (d *Device) nextSerial() uint64 {
	d.serial++
	return d.serial
}

func (d *Device) useProgram(program uint32, valid bool) {
	if d.program != program {
		d.gl.UseProgram(program)
		d.program = program
	}
	d.programValid = valid
}

func (d *Device) bindVertexArray(vao uint32) {
	if d.vao != vao {
		d.gl.BindVertexArray(vao)
		d.vao = vao
	}
}

func (d *Device) bindFramebuffer(fbo uint32) {
	if !d.fbBound || d.framebuffer != fbo {
		d.gl.BindFramebuffer(glapi.FRAMEBUFFER, fbo)
		d.framebuffer = fbo
		d.fbBound = true
	}
}

func (d *Device) activeTexture(unit uint32) {
	if d.activeUnit != unit {
		d.gl.ActiveTexture(glapi.TEXTURE0 + unit)
		d.activeUnit = unit
	}
}

func (d *Device) bindTexture(unit uint32, target glapi.Enum, name uint32) {
	u := &d.units[unit]
	if u.target == target && u.name == name {
		return
	}
	d.activeTexture(unit)
	if u.name != 0 && u.target != target {
		d.gl.BindTexture(u.target, 0)
	}
	d.gl.BindTexture(target, name)
	u.target, u.name = target, name
}

// withTexture binds name on unit 0 for fn, then puts back what the unit held
// and reselects the caller's active unit.
func (d *Device) withTexture(target glapi.Enum, name uint32, fn func()) {
	active := d.activeUnit
	d.activeTexture(0)
	d.gl.BindTexture(target, name)
	fn()
	prev := d.units[0]
	if prev.target == target {
		d.gl.BindTexture(target, prev.name)
	} else {
		d.gl.BindTexture(target, 0)
	}
	d.activeTexture(active)
}
