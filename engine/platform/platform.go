package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/core"
)

func init() {
	// GLFW event handling and GL contexts must stay on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window  *glfw.Window
	backend string
	events  *core.EventBus
	input   *core.Input
}

func New(events *core.EventBus, input *core.Input) (*Platform, error) {
	return &Platform{
		Window: nil,
		events: events,
		input:  input,
	}, nil
}

func (p *Platform) Startup(cfg config.Device) error {
	if err := glfw.Init(); err != nil {
		core.LogFatal("failed to initialize glfw: %s", err)
		return err
	}
	p.backend = cfg.Backend

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	switch cfg.Backend {
	case config.BackendVulkan:
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	default:
		glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 1)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
		glfw.WindowHint(glfw.DepthBits, 24)
		glfw.WindowHint(glfw.StencilBits, 8)
		if cfg.Debug {
			glfw.WindowHint(glfw.OpenGLDebugContext, glfw.True)
		}
	}

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window == nil || p.Window.ShouldClose()
}

func (p *Platform) Size() (uint32, uint32) {
	w, h := p.Window.GetSize()
	return uint32(w), uint32(h)
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) PixelFormat() SurfaceFormat {
	if p.backend == config.BackendVulkan {
		return SurfaceFormat{ColorBits: 32, SRGB: true}
	}
	return SurfaceFormat{ColorBits: 32, DepthBits: 24, StencilBits: 8}
}

func (p *Platform) MakeCurrent() {
	p.Window.MakeContextCurrent()
}

func (p *Platform) SwapBuffers() {
	p.Window.SwapBuffers()
}

func (p *Platform) SetSwapInterval(interval int) {
	glfw.SwapInterval(interval)
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create window surface: %w", err)
	}
	return surface, nil
}

func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

var keyMap = map[glfw.Key]core.KeyCode{
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyEnter:     core.KEY_ENTER,
	glfw.KeyTab:       core.KEY_TAB,
	glfw.KeyBackspace: core.KEY_BACKSPACE,
	glfw.KeyLeft:      core.KEY_LEFT,
	glfw.KeyRight:     core.KEY_RIGHT,
	glfw.KeyUp:        core.KEY_UP,
	glfw.KeyDown:      core.KEY_DOWN,
	glfw.KeyF1:        core.KEY_F1,
	glfw.KeyF2:        core.KEY_F2,
	glfw.KeyF3:        core.KEY_F3,
	glfw.KeyF4:        core.KEY_F4,
	glfw.KeyF5:        core.KEY_F5,
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	if key == glfw.KeyEscape && action == glfw.Press {
		p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
	}
	if code, ok := keyMap[key]; ok && p.input != nil {
		p.input.ProcessKey(code, action == glfw.Press)
	}
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	ctx := core.EventContext{}
	ctx.U32[0] = uint32(width)
	ctx.U32[1] = uint32(height)
	p.events.Fire(core.EVENT_CODE_RESIZED, p, ctx)
}
