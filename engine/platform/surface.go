package platform

import "unsafe"

/**
 * @brief Back-buffer pixel layout reported by the window system.
 */
type SurfaceFormat struct {
	ColorBits   int
	DepthBits   int
	StencilBits int
	SRGB        bool
}

/**
 * @brief Surface is what a device queries from the window system. Devices never
 * create or destroy it.
 */
type Surface interface {
	Size() (width, height uint32)
	FramebufferSize() (width, height uint32)
	PixelFormat() SurfaceFormat
}

type GLSurface interface {
	Surface
	MakeCurrent()
	SwapBuffers()
	SetSwapInterval(interval int)
}

type VulkanSurface interface {
	Surface
	RequiredInstanceExtensions() []string
	// CreateWindowSurface returns a VkSurfaceKHR for instance.
	CreateWindowSurface(instance interface{}) (uintptr, error)
	InstanceProcAddr() unsafe.Pointer
}
