package vulkan

import (
	"fmt"
	"slices"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

const portabilitySubset = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
	// Features requested at device creation.
	Enabled vk.PhysicalDeviceFeatures

	DepthFormat vk.Format
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	TransferFamilyIndex int32
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")
	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	for _, idx := range []int32{device.PresentQueueIndex, device.TransferQueueIndex} {
		if !slices.Contains(indices, uint32(idx)) {
			indices = append(indices, uint32(idx))
		}
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, family := range indices {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	// Only request what the device has.
	device.Enabled = vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: device.Features.SamplerAnisotropy,
		FillModeNonSolid:  device.Features.FillModeNonSolid,
		DepthClamp:        device.Features.DepthClamp,
		IndependentBlend:  device.Features.IndependentBlend,
		GeometryShader:    device.Features.GeometryShader,
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return err
	}
	if slices.Contains(available, portabilitySubset) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{device.Enabled},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	var logical vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &info, context.Allocator, &logical); res != vk.Success {
		return fmt.Errorf("%w: vkCreateDevice: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(logical, uint32(device.GraphicsQueueIndex), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(logical, uint32(device.PresentQueueIndex), 0, &device.PresentQueue)
	vk.GetDeviceQueue(logical, uint32(device.TransferQueueIndex), 0, &device.TransferQueue)
	core.LogInfo("Queues obtained.")

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(logical, &poolInfo, context.Allocator, &device.GraphicsCommandPool); res != vk.Success {
		return fmt.Errorf("%w: vkCreateCommandPool: %s", core.ErrResourceCreation, VulkanResultString(res))
	}
	core.LogInfo("Graphics command pool created.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue, device.PresentQueue, device.TransferQueue = nil, nil, nil

	if device.LogicalDevice != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
	device.TransferQueueIndex = -1
}

func deviceExtensions(physical vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
	}
	props := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(physical, "", &count, props); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
		}
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, cString(props[i].ExtensionName[:]))
	}
	return names, nil
}

func DeviceQuerySwapchainSupport(physical vk.PhysicalDevice, surface vk.Surface, support *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physical, surface, &support.Capabilities); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &support.FormatCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	support.Formats = make([]vk.SurfaceFormat, support.FormatCount)
	if support.FormatCount > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &support.FormatCount, support.Formats); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &support.PresentModeCount, nil); res != vk.Success {
		return resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	support.PresentModes = make([]vk.PresentMode, support.PresentModeCount)
	if support.PresentModeCount > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physical, surface, &support.PresentModeCount, support.PresentModes); res != vk.Success {
			return resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}
	return nil
}

// depthCandidates is the order in which backbuffer depth formats are tried.
var depthCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

func DeviceDetectDepthFormat(device *VulkanDevice, candidates []vk.Format) bool {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &props)
		props.Deref()
		if props.LinearTilingFeatures&flags == flags || props.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &count, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}
	if count == 0 {
		return fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrUnsupported)
	}
	physicals := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &count, physicals); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
	// A discrete GPU wins when there is one; any device meeting the rest is
	// taken otherwise.
	for _, discrete := range []bool{true, false} {
		requirements.DiscreteGPU = discrete
		for _, physical := range physicals {
			if selectDevice(context, physical, &requirements) {
				core.LogInfo("Physical device selected.")
				return nil
			}
		}
	}
	return fmt.Errorf("%w: no physical device meets the requirements", core.ErrUnsupported)
}

func selectDevice(context *VulkanContext, physical vk.PhysicalDevice, requirements *VulkanPhysicalDeviceRequirements) bool {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physical, &properties)
	properties.Deref()
	properties.Limits.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(physical, &features)
	features.Deref()

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physical, &memory)
	memory.Deref()

	var queues VulkanPhysicalDeviceQueueFamilyInfo
	var support VulkanSwapchainSupportInfo
	if !PhysicalDeviceMeetsRequirements(physical, context.Surface, &properties, &features, requirements, &queues, &support) {
		return false
	}

	core.LogInfo("Selected device: '%s'.", cString(properties.DeviceName[:]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	driver, api := vk.Version(properties.DriverVersion), vk.Version(properties.ApiVersion)
	core.LogInfo("GPU Driver version: %d.%d.%d", driver.Major(), driver.Minor(), driver.Patch())
	core.LogInfo("Vulkan API version: %d.%d.%d", api.Major(), api.Minor(), api.Patch())
	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		memory.MemoryHeaps[j].Deref()
		heap := memory.MemoryHeaps[j]
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", gib)
		}
	}

	context.Device.PhysicalDevice = physical
	context.Device.GraphicsQueueIndex = queues.GraphicsFamilyIndex
	context.Device.PresentQueueIndex = queues.PresentFamilyIndex
	context.Device.TransferQueueIndex = queues.TransferFamilyIndex
	context.Device.SwapchainSupport = support
	context.Device.Properties = properties
	context.Device.Features = features
	context.Device.Memory = memory
	return true
}

func PhysicalDeviceMeetsRequirements(
	device vk.PhysicalDevice,
	surface vk.Surface,
	properties *vk.PhysicalDeviceProperties,
	features *vk.PhysicalDeviceFeatures,
	requirements *VulkanPhysicalDeviceRequirements,
	outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo,
	outSwapchainSupport *VulkanSwapchainSupportInfo,
) bool {
	*outQueueInfo = VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1, TransferFamilyIndex: -1}

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

	minTransferScore := 255
	for i := range families {
		families[i].Deref()
		flags := families[i].QueueFlags
		score := 0
		if flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			if outQueueInfo.GraphicsFamilyIndex < 0 {
				outQueueInfo.GraphicsFamilyIndex = int32(i)
			}
			score++
		}
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			score++
		}
		// The family with the fewest other capabilities is most likely a
		// dedicated transfer queue.
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 && score <= minTransferScore {
			minTransferScore = score
			outQueueInfo.TransferFamilyIndex = int32(i)
		}
		var present vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &present); res != vk.Success {
			return false
		}
		if present == vk.True && (outQueueInfo.PresentFamilyIndex < 0 || int32(i) == outQueueInfo.GraphicsFamilyIndex) {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}
	// Graphics queues always support transfers.
	if outQueueInfo.TransferFamilyIndex < 0 {
		outQueueInfo.TransferFamilyIndex = outQueueInfo.GraphicsFamilyIndex
	}

	name := cString(properties.DeviceName[:])
	core.LogDebug("Graphics %d | Present %d | Transfer %d | %s",
		outQueueInfo.GraphicsFamilyIndex, outQueueInfo.PresentFamilyIndex, outQueueInfo.TransferFamilyIndex, name)

	if (requirements.Graphics && outQueueInfo.GraphicsFamilyIndex < 0) ||
		(requirements.Present && outQueueInfo.PresentFamilyIndex < 0) ||
		(requirements.Transfer && outQueueInfo.TransferFamilyIndex < 0) {
		return false
	}

	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogWarn("skipping device %s: %s", name, err)
		return false
	}
	if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	available, err := deviceExtensions(device)
	if err != nil {
		return false
	}
	for _, required := range requirements.DeviceExtensionNames {
		if !slices.Contains(available, required) {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return false
		}
	}
	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}
	return true
}
