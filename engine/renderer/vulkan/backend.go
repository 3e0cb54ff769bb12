package vulkan

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/platform"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/immediate"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/shadercache"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

type defaultStates struct {
	blend        *metadata.BlendState
	rasterizer   *metadata.RasterizerState
	depthStencil *metadata.DepthStencilState
}

/**
 * @brief What has to be recorded again before the next draw.
 */
type dirtyFlags uint8

const (
	dirtyPipeline dirtyFlags = 1 << iota
	dirtyViewport
	dirtyStencilRef
	dirtyDescriptors
	dirtyVertex
	dirtyIndex

	dirtyAll = dirtyPipeline | dirtyViewport | dirtyStencilRef | dirtyDescriptors | dirtyVertex | dirtyIndex
)

/**
 * @brief Device implements the renderer device on Vulkan 1.1. Set* calls only
 * update the register; the resulting pipeline, descriptors and bindings are
 * recorded lazily by the next draw.
 */
type Device struct {
	mu      sync.Mutex
	label   string
	cfg     *config.Config
	surface platform.VulkanSurface
	cache   shadercache.Cache
	context *VulkanContext

	reg      *state.Register
	programs *state.ProgramCache[*vkProgram]
	defaults defaultStates
	serial   uint64

	buffers  *core.Registry[*vkBuffer]
	textures *core.Registry[*vkTexture]
	shaders  *core.Registry[*vkShader]
	layouts  *core.Registry[*vkLayout]
	targets  *core.Registry[*vkTarget]
	queries  *core.Registry[*vkQuery]
	samplers map[*metadata.SamplerState]vk.Sampler

	backbuffer *metadata.RenderTarget
	current    *metadata.RenderTarget
	stack      []*metadata.RenderTarget

	passes         map[passKey]*VulkanRenderpass
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	white          *vkTexture
	defaultSampler vk.Sampler
	zero           *VulkanBuffer

	immediateBackend *immediateBackend
	immediate        *immediate.Renderer
	metrics          *core.Metrics

	// recording state below the register
	program         *vkProgram
	programValid    bool
	pass            *VulkanRenderpass
	passWidth       uint32
	passHeight      uint32
	pipeline        vk.Pipeline
	boundKey        pipelineKey
	vertex          *vkBinding
	dirty           dirtyFlags
	vertexDynamic   bool
	backbufferFresh bool
	initialized     bool
	activeQueries   []*vkQuery
	submitted       uint64
}

func New(cfg *config.Config, surface platform.VulkanSurface, cache shadercache.Cache) *Device {
	if cache == nil {
		cache = shadercache.Nop{}
	}
	return &Device{
		label:    uuid.NewString(),
		cfg:      cfg,
		surface:  surface,
		cache:    cache,
		context:  &VulkanContext{locks: NewVulkanLockPool()},
		reg:      state.NewRegister(),
		programs: state.NewProgramCache[*vkProgram](),
		buffers:  core.NewRegistry[*vkBuffer](),
		textures: core.NewRegistry[*vkTexture](),
		shaders:  core.NewRegistry[*vkShader](),
		layouts:  core.NewRegistry[*vkLayout](),
		targets:  core.NewRegistry[*vkTarget](),
		queries:  core.NewRegistry[*vkQuery](),
		samplers: make(map[*metadata.SamplerState]vk.Sampler),
		passes:   make(map[passKey]*VulkanRenderpass),
		metrics:  core.NewMetrics(),
		dirty:    dirtyAll,
	}
}

func (d *Device) Initialize() error {
	ctx := d.context
	width, height := d.surface.FramebufferSize()
	ctx.FramebufferWidth, ctx.FramebufferHeight = width, height

	if err := createInstance(ctx, d.surface, d.cfg.Device.Title, d.cfg.Device.Debug); err != nil {
		return err
	}
	if err := DeviceCreate(ctx); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	sc, err := SwapchainCreate(ctx, width, height, d.cfg.Device.VSync)
	if err != nil {
		return err
	}
	ctx.Swapchain = sc
	ctx.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	if err := d.createFrames(); err != nil {
		return err
	}
	if err := d.createPipelineLayout(); err != nil {
		return err
	}
	if err := d.createFallbacks(); err != nil {
		return err
	}
	d.initialized = true

	d.backbuffer = &metadata.RenderTarget{
		Desc: metadata.RenderTargetDesc{
			Kind:         metadata.RenderTargetBackbuffer,
			Width:        sc.Extent.Width,
			Height:       sc.Extent.Height,
			ColorFormats: []metadata.Format{metadata.FormatBGRA8Unorm},
			DepthFormat:  frontendFormat(ctx.Device.DepthFormat),
			Name:         "backbuffer",
		},
		Viewport: metadata.FullViewport(sc.Extent.Width, sc.Extent.Height),
	}
	d.current = d.backbuffer
	if err := d.createBackbufferFramebuffers(); err != nil {
		return err
	}

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

	core.LogInfo("Vulkan device %s initialized with a %dx%d backbuffer", d.label, sc.Extent.Width, sc.Extent.Height)
	return nil
}

func (d *Device) createFrames() error {
	ctx := d.context
	semaphoreInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	for i := range ctx.frames {
		frame := &ctx.frames[i]
		cb, err := NewVulkanCommandBuffer(ctx, ctx.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		frame.commandBuffer = cb
		if res := vk.CreateSemaphore(ctx.Device.LogicalDevice, &semaphoreInfo, ctx.Allocator, &frame.imageAvailable); res != vk.Success {
			return resultError("vkCreateSemaphore", res)
		}
		if res := vk.CreateSemaphore(ctx.Device.LogicalDevice, &semaphoreInfo, ctx.Allocator, &frame.queueComplete); res != vk.Success {
			return resultError("vkCreateSemaphore", res)
		}
		// Signalled, so the first wait on each frame returns at once.
		fence, err := NewFence(ctx, true)
		if err != nil {
			return err
		}
		frame.inFlight = fence
		frame.descriptors = newDescriptorPool()
	}
	core.LogDebug("Vulkan frame resources created for %d frames in flight.", MaxFramesInFlight)
	return nil
}

func (d *Device) destroyFrames() {
	ctx := d.context
	for i := range ctx.frames {
		frame := &ctx.frames[i]
		collect(frame)
		if frame.descriptors != nil {
			frame.descriptors.destroy(ctx)
		}
		if frame.inFlight != nil {
			frame.inFlight.Destroy(ctx)
		}
		if frame.imageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(ctx.Device.LogicalDevice, frame.imageAvailable, ctx.Allocator)
		}
		if frame.queueComplete != vk.NullSemaphore {
			vk.DestroySemaphore(ctx.Device.LogicalDevice, frame.queueComplete, ctx.Allocator)
		}
		if frame.commandBuffer != nil {
			frame.commandBuffer.Free(ctx, ctx.Device.GraphicsCommandPool)
		}
		*frame = frameResources{}
	}
}

// createFallbacks builds what unbound descriptor slots and vertex slots read.
func (d *Device) createFallbacks() error {
	zero, err := BufferCreate(d.context, 256, bufferUsage(0))
	if err != nil {
		return fmt.Errorf("fallback buffer: %w", err)
	}
	zero.Write(0, make([]byte, 256))
	d.zero = zero

	white, err := d.createTexture(metadata.TextureDesc{
		Format:    metadata.FormatRGBA8Unorm,
		Width:     1,
		Height:    1,
		MipLevels: 1,
		Bind:      metadata.BindShaderInput,
		Name:      "white",
	}, []metadata.TextureData{{Pixels: []byte{0xFF, 0xFF, 0xFF, 0xFF}}})
	if err != nil {
		return fmt.Errorf("fallback texture: %w", err)
	}
	d.white = white

	sampler, err := d.createSampler(metadata.DefaultSamplerDesc())
	if err != nil {
		return fmt.Errorf("fallback sampler: %w", err)
	}
	d.defaultSampler = sampler
	return nil
}

func (d *Device) Shutdown() error {
	ctx := d.context
	if ctx.Device == nil {
		return nil
	}
	vk.DeviceWaitIdle(ctx.Device.LogicalDevice)

	if d.immediateBackend != nil {
		d.immediateBackend.destroy()
	}
	for _, p := range d.programs.Drain() {
		p.destroy(ctx)
	}
	for _, l := range d.layouts.Drain() {
		l.bindings.Drain()
	}
	for _, s := range d.shaders.Drain() {
		s.release(ctx)
	}
	for _, t := range d.targets.Drain() {
		t.destroy(ctx)
	}
	for _, t := range d.textures.Drain() {
		t.image.ImageDestroy(ctx)
	}
	for _, b := range d.buffers.Drain() {
		b.native.Destroy(ctx)
	}
	for _, q := range d.queries.Drain() {
		q.destroy(ctx)
	}
	for s, sampler := range d.samplers {
		vk.DestroySampler(ctx.Device.LogicalDevice, sampler, ctx.Allocator)
		delete(d.samplers, s)
	}
	d.destroyFrames()

	if d.white != nil {
		d.white.image.ImageDestroy(ctx)
	}
	if d.defaultSampler != nil {
		vk.DestroySampler(ctx.Device.LogicalDevice, d.defaultSampler, ctx.Allocator)
	}
	if d.zero != nil {
		d.zero.Destroy(ctx)
	}
	for key, rp := range d.passes {
		rp.RenderpassDestroy(ctx)
		delete(d.passes, key)
	}
	d.destroyPipelineLayout()

	if ctx.Swapchain != nil {
		ctx.Swapchain.SwapchainDestroy(ctx)
		ctx.Swapchain = nil
	}
	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(ctx)
	destroyInstance(ctx)
	d.initialized = false
	core.LogInfo("Vulkan device %s shut down", d.label)
	return nil
}

// Resized only records the new size. The swapchain is rebuilt by the next
// BeginFrame.
func (d *Device) Resized(width, height uint32) error {
	d.context.FramebufferWidth, d.context.FramebufferHeight = width, height
	d.context.FramebufferSizeGeneration++
	core.LogInfo("Vulkan device %s resized: w/h/gen: %d/%d/%d", d.label, width, height, d.context.FramebufferSizeGeneration)
	return nil
}

func (d *Device) BeginFrame(deltaTime float64) error {
	ctx := d.context
	if ctx.RecreatingSwapchain {
		if res := vk.DeviceWaitIdle(ctx.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
			return resultError("vkDeviceWaitIdle", res)
		}
		core.LogInfo("Recreating swapchain, booting.")
		return core.ErrSwapchainBooting
	}
	if ctx.FramebufferSizeGeneration != ctx.FramebufferSizeLastGeneration {
		if err := d.recreateSwapchain(); err != nil {
			return err
		}
		core.LogInfo("Resized, booting.")
		return core.ErrSwapchainBooting
	}

	frame := ctx.frame()
	if !frame.inFlight.Wait(ctx, math.MaxUint64) {
		return errors.New("in-flight fence wait failure")
	}
	collect(frame)

	index, res := ctx.Swapchain.SwapchainAcquireNextImageIndex(ctx, math.MaxUint64, frame.imageAvailable)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		ctx.FramebufferSizeGeneration++
		if err := d.recreateSwapchain(); err != nil {
			return err
		}
		return core.ErrSwapchainBooting
	default:
		return resultError("vkAcquireNextImageKHR", res)
	}
	ctx.ImageIndex = index

	frame.commandBuffer.Reset()
	if err := frame.commandBuffer.Begin(true, false, false); err != nil {
		return err
	}
	if err := frame.descriptors.reset(ctx); err != nil {
		return err
	}
	if frame.immediate != nil {
		frame.immediate.reset()
	}

	if len(d.stack) > 0 {
		core.LogWarn("%d render targets still pushed at frame start", len(d.stack))
		d.stack = d.stack[:0]
	}
	d.pass = nil
	d.pipeline = vk.NullPipeline
	d.dirty = dirtyAll
	d.backbufferFresh = true
	d.SetRenderTarget(d.backbuffer, nil)
	return nil
}

func (d *Device) EndFrame(deltaTime float64) error {
	ctx := d.context
	frame := ctx.frame()
	cb := frame.commandBuffer
	if !cb.Recording() {
		return errors.New("EndFrame called without a matching BeginFrame")
	}
	// The backbuffer only reaches the present layout through a render pass.
	if d.backbufferFresh {
		d.SetRenderTarget(d.backbuffer, nil)
		d.beginPass()
	}
	d.endPass()
	if err := cb.End(); err != nil {
		return err
	}

	if prev := ctx.ImagesInFlight[ctx.ImageIndex]; prev != nil && prev != frame.inFlight {
		prev.Wait(ctx, math.MaxUint64)
	}
	ctx.ImagesInFlight[ctx.ImageIndex] = frame.inFlight
	if err := frame.inFlight.Reset(ctx); err != nil {
		return err
	}

	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{frame.imageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{frame.queueComplete},
	}
	if err := ctx.locks.SafeQueueCall(uint32(ctx.Device.GraphicsQueueIndex), func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submit}, frame.inFlight.Handle))
	}); err != nil {
		return err
	}
	cb.UpdateSubmitted()
	d.submitted++

	switch res := ctx.Swapchain.SwapchainPresent(ctx, ctx.Device.PresentQueue, frame.queueComplete, ctx.ImageIndex); res {
	case vk.Success:
	case vk.Suboptimal, vk.ErrorOutOfDate:
		ctx.FramebufferSizeGeneration++
	default:
		return resultError("vkQueuePresentKHR", res)
	}
	ctx.CurrentFrame = (ctx.CurrentFrame + 1) % MaxFramesInFlight
	d.metrics.Update(deltaTime)
	return nil
}

func (d *Device) recreateSwapchain() error {
	ctx := d.context
	if ctx.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return core.ErrSwapchainBooting
	}
	if ctx.FramebufferWidth == 0 || ctx.FramebufferHeight == 0 {
		core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return core.ErrSwapchainBooting
	}
	ctx.RecreatingSwapchain = true
	defer func() { ctx.RecreatingSwapchain = false }()

	vk.DeviceWaitIdle(ctx.Device.LogicalDevice)
	sc, err := ctx.Swapchain.SwapchainRecreate(ctx, ctx.FramebufferWidth, ctx.FramebufferHeight, d.cfg.Device.VSync)
	if err != nil {
		return fmt.Errorf("failed to recreate the swapchain: %w", err)
	}
	ctx.Swapchain = sc
	ctx.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	ctx.FramebufferWidth, ctx.FramebufferHeight = sc.Extent.Width, sc.Extent.Height
	ctx.FramebufferSizeLastGeneration = ctx.FramebufferSizeGeneration

	d.backbuffer.Desc.Width, d.backbuffer.Desc.Height = sc.Extent.Width, sc.Extent.Height
	d.backbuffer.Viewport = metadata.FullViewport(sc.Extent.Width, sc.Extent.Height)
	if err := d.createBackbufferFramebuffers(); err != nil {
		return err
	}
	if d.current.IsBackbuffer() {
		d.SetViewport(d.backbuffer.Viewport)
	}
	d.dirty |= dirtyViewport
	return nil
}

// release runs fn once the frames that may still use the object have retired.
func (d *Device) release(fn func()) {
	if !d.initialized {
		return
	}
	frame := d.context.frame()
	frame.garbage = append(frame.garbage, fn)
}

func collect(frame *frameResources) {
	for _, fn := range frame.garbage {
		fn()
	}
	frame.garbage = frame.garbage[:0]
}

// recording returns the command buffer of the frame being recorded, or nil
// outside BeginFrame and EndFrame.
func (d *Device) recording() *VulkanCommandBuffer {
	if !d.initialized {
		return nil
	}
	cb := d.context.frame().commandBuffer
	if !cb.Recording() {
		return nil
	}
	return cb
}

// submitOnce records fn into a one-off command buffer and waits for it.
func (d *Device) submitOnce(fn func(cb *VulkanCommandBuffer)) error {
	ctx := d.context
	pool := ctx.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(ctx, pool)
	if err != nil {
		return err
	}
	fn(cb)
	return cb.EndSingleUse(ctx, pool, ctx.Device.GraphicsQueue, uint32(ctx.Device.GraphicsQueueIndex))
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
