package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-gpu/engine/assets"
	"github.com/spaghettifunk/anima-gpu/engine/assets/loaders"
	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/platform"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.Config
	events       *core.EventBus
	platform     *platform.Platform
	renderer     *renderer.Renderer
	assetManager *assets.AssetManager
	clock        *core.Clock
	input        *core.Input
	isRunning    atomic.Bool
	isSuspended  bool
	width        uint32
	height       uint32
	lastTime     float64

	// loaded by name so hot reloads can update them in place
	shaders  map[string]*metadata.Shader
	textures map[string]*metadata.Texture
}

func New(g *Game) (*Engine, error) {
	cfg, err := config.Load(g.ApplicationConfig.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	if g.ApplicationConfig.Name != "" {
		cfg.Device.Title = g.ApplicationConfig.Name
	}

	events := core.NewEventBus()
	input := core.NewInput()
	p, err := platform.New(events, input)
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		events:       events,
		platform:     p,
		clock:        core.NewClock(),
		input:        input,
		width:        cfg.Device.Width,
		height:       cfg.Device.Height,
		shaders:      make(map[string]*metadata.Shader),
		textures:     make(map[string]*metadata.Texture),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.platform.Startup(e.config.Device); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()

	r, err := renderer.New(e.config, e.platform)
	if err != nil {
		return err
	}
	e.renderer = r

	am, err := assets.NewAssetManager(e.gameInstance.ApplicationConfig.AssetsDir, e.config.Device.Backend, e.config.Shaders.HotReload)
	if err != nil {
		return err
	}
	e.assetManager = am

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return fmt.Errorf("game failed to initialize: %w", err)
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized with the %s backend", e.config.Device.Backend)
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	e.clock.Start()

	for e.isRunning.Load() {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		e.reloadAssets()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogFatal("Game update failed, shutting down.")
			return err
		}

		err := e.renderer.DrawFrame(delta, func(device renderer.Device) error {
			return e.gameInstance.FnRender(device, delta)
		})
		if err != nil {
			return err
		}

		e.input.Update()
		e.lastTime = currentTime
	}
	return nil
}

// Quit stops Run after the current frame. Safe from any goroutine.
func (e *Engine) Quit() {
	e.isRunning.Store(false)
}

// Shutdown releases everything on the calling thread, which must be the one
// that ran Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		device := e.renderer.Device()
		for _, s := range e.shaders {
			device.DestroyShader(s)
		}
		for _, t := range e.textures {
			device.DestroyTexture(t)
		}
		errs = append(errs, e.renderer.Shutdown())
	}
	if e.assetManager != nil {
		errs = append(errs, e.assetManager.Shutdown())
	}
	errs = append(errs, e.platform.Shutdown())
	e.events.Unregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	e.events.Unregister(core.EVENT_CODE_RESIZED, e)
	return errors.Join(errs...)
}

func (e *Engine) Device() renderer.Device {
	return e.renderer.Device()
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) Events() *core.EventBus {
	return e.events
}

func (e *Engine) Input() *core.Input {
	return e.input
}

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// LoadShader creates the named shader, or recompiles it in place when it was
// loaded before. The returned handle stays valid across reloads.
func (e *Engine) LoadShader(name string) (*metadata.Shader, error) {
	res, err := e.assetManager.LoadAsset(name, assets.AssetTypeShader, nil)
	if err != nil {
		return nil, err
	}
	desc := res.Data.(*metadata.ShaderDesc)
	device := e.renderer.Device()

	if shader, ok := e.shaders[name]; ok {
		if err := device.UpdateShader(shader, *desc); err != nil {
			return nil, err
		}
		return shader, nil
	}
	shader, err := device.CreateShader(*desc)
	if err != nil {
		return nil, err
	}
	e.shaders[name] = shader
	return shader, nil
}

// LoadTexture uploads textures/<name>. Reloads keep the handle as long as the
// image keeps its size.
func (e *Engine) LoadTexture(name string, params *metadata.ImageParams) (*metadata.Texture, error) {
	res, err := e.assetManager.LoadAsset(name, assets.AssetTypeTexture, params)
	if err != nil {
		return nil, err
	}
	data := res.Data.(*loaders.TextureResource)
	device := e.renderer.Device()

	if tex, ok := e.textures[name]; ok {
		if tex.Desc.Width != data.Desc.Width || tex.Desc.Height != data.Desc.Height {
			return nil, fmt.Errorf("texture %s changed size from %dx%d to %dx%d", name,
				tex.Desc.Width, tex.Desc.Height, data.Desc.Width, data.Desc.Height)
		}
		if err := device.UpdateTexture(tex, 0, 0, 0, data.Desc.Width, data.Desc.Height, data.Data[0].Pixels); err != nil {
			return nil, err
		}
		return tex, nil
	}
	tex, err := device.CreateTexture(data.Desc, data.Data)
	if err != nil {
		return nil, err
	}
	e.textures[name] = tex
	return tex, nil
}

// LoadFont loads fonts/<name>.fnt and uploads its first page as the atlas.
// An empty name returns the built-in 7x13 font.
func (e *Engine) LoadFont(name string) (*metadata.FontData, error) {
	var (
		font  *metadata.FontData
		atlas *metadata.ImageData
	)
	if name == "" {
		font, atlas = loaders.BuiltinFont()
	} else {
		res, err := e.assetManager.LoadAsset(name, assets.AssetTypeFont, nil)
		if err != nil {
			return nil, err
		}
		data := res.Data.(*loaders.BitmapFontResource)
		if len(data.Pages) == 0 {
			return nil, fmt.Errorf("font %s has no pages", name)
		}
		if len(data.Pages) > 1 {
			core.LogWarn("font %s has %d pages, only the first one is used", name, len(data.Pages))
		}
		font, atlas = data.Font, data.Pages[0]
	}

	tex, err := e.renderer.Device().CreateTexture(metadata.TextureDesc{
		Dimension: metadata.Texture2D,
		Format:    atlas.Format,
		Width:     atlas.Width,
		Height:    atlas.Height,
		MipLevels: 1,
		Usage:     metadata.UsageImmutable,
		Bind:      metadata.BindShaderInput,
		Name:      "font " + font.Face,
	}, []metadata.TextureData{{Pixels: atlas.Pixels}})
	if err != nil {
		return nil, err
	}
	e.textures["font:"+name] = tex
	font.Atlas = tex
	return font, nil
}

// reloadAssets applies edits picked up by the watcher. A broken edit is
// logged and the previous version keeps rendering.
func (e *Engine) reloadAssets() {
	for _, r := range e.assetManager.Changes() {
		switch r.Type {
		case assets.AssetTypeShader:
			if _, ok := e.shaders[r.Name]; !ok {
				continue
			}
			if _, err := e.LoadShader(r.Name); err != nil {
				core.LogError("shader %s reload failed: %s", r.Name, err)
				continue
			}
			core.LogInfo("shader %s reloaded", r.Name)
			e.events.Fire(core.EVENT_CODE_SHADER_CHANGED, e, core.EventContext{Path: r.Name})
		case assets.AssetTypeTexture:
			if _, ok := e.textures[r.Name]; !ok {
				continue
			}
			if _, err := e.LoadTexture(r.Name, nil); err != nil {
				core.LogError("texture %s reload failed: %s", r.Name, err)
			}
		}
	}
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Quit()
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, context core.EventContext) bool {
	width, height := context.U32[0], context.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.renderer.OnResize(width, height); err != nil {
		core.LogError(err.Error())
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return true
}
