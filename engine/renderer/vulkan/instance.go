package vulkan

import (
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/platform"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

func instanceLayers() ([]string, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateInstanceLayerProperties", res)
	}
	props := make([]vk.LayerProperties, count)
	if count > 0 {
		if res := vk.EnumerateInstanceLayerProperties(&count, props); res != vk.Success {
			return nil, resultError("vkEnumerateInstanceLayerProperties", res)
		}
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, cString(props[i].LayerName[:]))
	}
	return names, nil
}

// createInstance loads the loader through the surface and creates the
// instance. debug enables the validation layer and the report callback when
// the layer is installed.
func createInstance(context *VulkanContext, surface platform.VulkanSurface, title string, debug bool) error {
	procAddr := surface.InstanceProcAddr()
	if procAddr == nil {
		return fmt.Errorf("%w: GetInstanceProcAddress is nil", core.ErrUnsupported)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %w", err)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(title),
		PEngineName:        VulkanSafeString("Anima Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{vk.KhrSurfaceExtensionName}, surface.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if debug {
		available, err := instanceLayers()
		if err != nil {
			return err
		}
		if slices.Contains(available, validationLayer) {
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("Validation layer %s is not installed, continuing without it", validationLayer)
		}
	}
	slices.Sort(extensions)
	extensions = slices.Compact(extensions)
	for _, ext := range extensions {
		core.LogDebug("Required extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, context.Allocator, &context.Instance); res != vk.Success {
		return fmt.Errorf("%w: vkCreateInstance: %s", core.ErrUnsupported, VulkanResultString(res))
	}
	if err := vk.InitInstance(context.Instance); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if len(layers) > 0 {
		debugInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(context.Instance, &debugInfo, nil, &dbg)); err != nil {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			context.debugCallback = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}

	handle, err := surface.CreateWindowSurface(context.Instance)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrResourceCreation, err)
	}
	context.Surface = vk.SurfaceFromPointer(handle)
	core.LogDebug("Vulkan surface created.")
	return nil
}

func destroyInstance(context *VulkanContext) {
	if context.Instance == nil {
		return
	}
	if context.Surface != vk.NullSurface {
		vk.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = vk.NullSurface
	}
	if context.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(context.Instance, context.debugCallback, nil)
		context.debugCallback = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(context.Instance, context.Allocator)
	context.Instance = nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
