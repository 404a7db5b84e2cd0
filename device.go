package rendercore

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"golang.org/x/exp/slog"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var requiredDeviceExtensions = []string{khr_swapchain.ExtensionName}

// DevicePredicate is the caller-supplied capability test applied to each
// candidate physical device. Queue, surface and swapchain support are checked
// by the context itself before the predicate runs.
type DevicePredicate func(device core1_0.PhysicalDevice) bool

// AnyDevice accepts the first otherwise-capable physical device.
func AnyDevice(core1_0.PhysicalDevice) bool { return true }

type queueFamilyIndices struct {
	graphicsFamily *int
	presentFamily  *int
}

func (i *queueFamilyIndices) isComplete() bool {
	return i.graphicsFamily != nil && i.presentFamily != nil
}

// DeviceContext activates the Vulkan runtime and owns the instance, logical
// device and queues. It is created once at startup and must be destroyed last,
// after every dependent resource.
type DeviceContext struct {
	config Config
	logger *slog.Logger

	loader         core.Loader
	instance       core1_0.Instance
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surface        khr_surface.Surface
	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device

	graphicsQueue  core1_0.Queue
	presentQueue   core1_0.Queue
	graphicsFamily int
	presentFamily  int

	commandPool core1_0.CommandPool
}

// NewDeviceContext creates the loader and instance. procAddr is the
// vkGetInstanceProcAddr pointer from the windowing layer (for SDL2:
// sdl.VulkanGetVkGetInstanceProcAddr), and instanceExtensions are the surface
// extensions that layer requires.
func NewDeviceContext(procAddr unsafe.Pointer, instanceExtensions []string, config Config) (*DeviceContext, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	loader, err := core.CreateLoaderFromProcAddr(procAddr)
	if err != nil {
		return nil, errors.Wrap(err, "creating vulkan loader")
	}

	ctx := &DeviceContext{
		config: config,
		logger: config.Logger,
		loader: loader,
	}

	if err := ctx.createInstance(instanceExtensions); err != nil {
		return nil, err
	}

	if err := ctx.setupDebugMessenger(); err != nil {
		ctx.instance.Destroy(nil)
		return nil, err
	}

	return ctx, nil
}

func (ctx *DeviceContext) createInstance(instanceExtensions []string) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    ctx.config.AppName,
		ApplicationVersion: ctx.config.AppVersion,
		EngineName:         "render-core",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := ctx.loader.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerating instance extensions")
	}

	for _, ext := range instanceExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("required instance extension %s is not available", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if ctx.config.EnableValidation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	// Required to enumerate devices under MoltenVK and other portability
	// implementations.
	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	layers, _, err := ctx.loader.AvailableLayers()
	if err != nil {
		return errors.Wrap(err, "enumerating instance layers")
	}

	if ctx.config.EnableValidation {
		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("validation layer %s is not available - install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = ctx.debugMessengerOptions()
	}

	ctx.instance, _, err = ctx.loader.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "creating vulkan instance")
	}

	return nil
}

func (ctx *DeviceContext) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    ctx.logDebug,
	}
}

func (ctx *DeviceContext) setupDebugMessenger() error {
	if !ctx.config.EnableValidation {
		return nil
	}

	var err error
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(ctx.instance)
	ctx.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(ctx.instance, nil, ctx.debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "creating debug messenger")
	}

	return nil
}

func (ctx *DeviceContext) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	if severity&ext_debug_utils.SeverityError != 0 {
		ctx.logger.Error("validation", nil, "type", msgType.String(), "message", data.Message)
	} else {
		ctx.logger.Warn("validation", "type", msgType.String(), "message", data.Message)
	}
	return false
}

// SelectDevice enumerates physical devices, keeps those that can do graphics
// submission against surface and carry the swapchain extension, applies
// predicate, and opens the first match. Failure to find any candidate is
// ErrNoCapableDevice; a failed device open is reported without retrying.
func (ctx *DeviceContext) SelectDevice(surface Surface, predicate DevicePredicate) error {
	if predicate == nil {
		predicate = AnyDevice
	}
	ctx.surface = surface.Handle()

	physicalDevices, _, err := ctx.instance.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerating physical devices")
	}

	for _, device := range physicalDevices {
		if !ctx.isDeviceCapable(device) {
			continue
		}
		if !predicate(device) {
			continue
		}
		ctx.physicalDevice = device
		break
	}

	if ctx.physicalDevice == nil {
		return errors.Wrapf(ErrNoCapableDevice, "checked %d physical devices", len(physicalDevices))
	}

	return ctx.openDevice()
}

func (ctx *DeviceContext) isDeviceCapable(device core1_0.PhysicalDevice) bool {
	indices, err := ctx.findQueueFamilies(device)
	if err != nil || !indices.isComplete() {
		return false
	}

	if !hasDeviceExtensions(device, requiredDeviceExtensions) {
		return false
	}

	support, err := querySurfaceSupport(ctx.surface, device)
	if err != nil {
		return false
	}
	return support.Adequate()
}

func hasDeviceExtensions(device core1_0.PhysicalDevice, names []string) bool {
	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return false
	}

	for _, extension := range names {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (ctx *DeviceContext) findQueueFamilies(device core1_0.PhysicalDevice) (queueFamilyIndices, error) {
	indices := queueFamilyIndices{}
	queueFamilies := device.QueueFamilyProperties()

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.graphicsFamily = new(int)
			*indices.graphicsFamily = queueFamilyIdx
		}

		supported, _, err := ctx.surface.PhysicalDeviceSurfaceSupport(device, queueFamilyIdx)
		if err != nil {
			return indices, errors.Wrap(err, "querying surface support")
		}

		if supported {
			indices.presentFamily = new(int)
			*indices.presentFamily = queueFamilyIdx
		}

		if indices.isComplete() {
			break
		}
	}

	return indices, nil
}

func (ctx *DeviceContext) openDevice() error {
	indices, err := ctx.findQueueFamilies(ctx.physicalDevice)
	if err != nil {
		return err
	}

	uniqueQueueFamilies := []int{*indices.graphicsFamily}
	if uniqueQueueFamilies[0] != *indices.presentFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *indices.presentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, requiredDeviceExtensions...)

	extensions, _, err := ctx.physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return errors.Wrap(err, "enumerating device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	ctx.device, _, err = ctx.physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "opening logical device")
	}

	ctx.graphicsFamily = *indices.graphicsFamily
	ctx.presentFamily = *indices.presentFamily
	ctx.graphicsQueue = ctx.device.GetQueue(ctx.graphicsFamily, 0)
	ctx.presentQueue = ctx.device.GetQueue(ctx.presentFamily, 0)

	ctx.commandPool, _, err = ctx.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: ctx.graphicsFamily,
		Flags:            core1_0.CommandPoolCreateResetBuffer,
	})
	if err != nil {
		return errors.Wrap(err, "creating command pool")
	}

	ctx.logger.Info("selected device",
		"graphicsFamily", ctx.graphicsFamily,
		"presentFamily", ctx.presentFamily)

	return nil
}

// Instance exposes the raw instance so the windowing layer can create its
// surface against it.
func (ctx *DeviceContext) Instance() core1_0.Instance { return ctx.instance }

func (ctx *DeviceContext) Device() core1_0.Device                 { return ctx.device }
func (ctx *DeviceContext) PhysicalDevice() core1_0.PhysicalDevice { return ctx.physicalDevice }

// GraphicsQueue and PresentQueue are borrowed, never owned, by callers; the
// context destroys them with the device.
func (ctx *DeviceContext) GraphicsQueue() core1_0.Queue { return ctx.graphicsQueue }
func (ctx *DeviceContext) PresentQueue() core1_0.Queue  { return ctx.presentQueue }

// CommandPool is the pool all per-image command buffers and one-time transfer
// commands are allocated from.
func (ctx *DeviceContext) CommandPool() core1_0.CommandPool { return ctx.commandPool }

func (ctx *DeviceContext) Logger() *slog.Logger { return ctx.logger }

// WaitIdle blocks until the device has no outstanding work. It is the only
// safe precondition for teardown.
func (ctx *DeviceContext) WaitIdle() error {
	if ctx.device == nil {
		return nil
	}
	_, err := ctx.device.WaitIdle()
	return err
}

// Destroy tears the context down in reverse dependency order. All dependent
// resources must already be released and the device idle.
func (ctx *DeviceContext) Destroy() {
	if ctx.commandPool != nil {
		ctx.commandPool.Destroy(nil)
		ctx.commandPool = nil
	}

	if ctx.device != nil {
		ctx.device.Destroy(nil)
		ctx.device = nil
	}

	if ctx.debugMessenger != nil {
		ctx.debugMessenger.Destroy(nil)
		ctx.debugMessenger = nil
	}

	if ctx.surface != nil {
		ctx.surface.Destroy(nil)
		ctx.surface = nil
	}

	if ctx.instance != nil {
		ctx.instance.Destroy(nil)
		ctx.instance = nil
	}
}
