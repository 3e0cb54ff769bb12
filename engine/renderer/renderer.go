package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/platform"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glnative"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/shadercache"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/vulkan"
)

var (
	_ Device = (*opengl.Device)(nil)
	_ Device = (*vulkan.Device)(nil)
)

// NewDevice builds the backend named by cfg.Device.Backend. The surface must
// implement the matching platform surface interface.
func NewDevice(cfg *config.Config, surface platform.Surface) (Device, error) {
	switch cfg.Device.Backend {
	case config.BackendOpenGL:
		gls, ok := surface.(platform.GLSurface)
		if !ok {
			return nil, fmt.Errorf("%w: surface has no GL context", core.ErrUnsupported)
		}
		return opengl.New(cfg, gls, glnative.New()), nil
	case config.BackendVulkan:
		vks, ok := surface.(platform.VulkanSurface)
		if !ok {
			return nil, fmt.Errorf("%w: surface cannot create a Vulkan surface", core.ErrUnsupported)
		}
		cache, err := shadercache.NewLRU(cfg.Shaders.BytecodeCacheEntries)
		if err != nil {
			return nil, err
		}
		return vulkan.New(cfg, vks, cache), nil
	}
	return nil, fmt.Errorf("%w: backend %q", config.ErrInvalid, cfg.Device.Backend)
}

/**
 * @brief Renderer is the frontend the engine drives once per frame.
 */
type Renderer struct {
	device Device
}

func New(cfg *config.Config, surface platform.Surface) (*Renderer, error) {
	device, err := NewDevice(cfg, surface)
	if err != nil {
		return nil, err
	}
	if err := device.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s device: %w", cfg.Device.Backend, err)
	}
	return &Renderer{device: device}, nil
}

func (r *Renderer) Device() Device {
	return r.device
}

func (r *Renderer) Shutdown() error {
	return r.device.Shutdown()
}

func (r *Renderer) OnResize(width, height uint32) error {
	return r.device.Resized(width, height)
}

// DrawFrame brackets draw with BeginFrame and EndFrame. A booting swapchain
// skips the frame without error.
func (r *Renderer) DrawFrame(deltaTime float64, draw func(Device) error) error {
	if err := r.device.BeginFrame(deltaTime); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return nil
		}
		core.LogError(err.Error())
		return err
	}
	if err := draw(r.device); err != nil {
		core.LogError("frame draw failed: %s", err)
	}
	if err := r.device.EndFrame(deltaTime); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return err
	}
	return nil
}
