/*
Package rendercore is a thin hardware-abstraction layer over Vulkan built on the
vkngwrapper bindings. It owns the parts of a renderer that have real ordering
constraints and failure modes: device selection, swapchain negotiation and
rebuild, per-frame CPU/GPU synchronization, and the explicit allocate/bind/
destroy lifecycle of GPU-resident buffers and images.

Nothing here is implicit. Every resource is released by an explicit call, every
synchronization point is declared by the frame scheduler, and the caller decides
frame-in-flight depth and instance-buffer capacity up front.

The package is organized around these cooperating pieces:

	DeviceContext       instance + logical device + queues, selected by predicate
	ResourceBundle      buffer or image paired with its memory and optional view
	PresentationChain   negotiated swapchain, rebuilt on resize or invalidation
	Pipeline            render pass, fixed-function state and push constants
	FrameScheduler      the acquire/record/submit/present state machine
	InstanceDataManager per-frame-slot host-visible transform buffers
	Texture             sampled image plus the descriptor set that binds it

Window creation, input and shader compilation are deliberately outside the
package. The core touches the window system through the narrow Surface
interface only, and consumes shaders as precompiled SPIR-V bytes. Two small
asset helpers exist: DecodeOBJ turns Wavefront geometry into uploadable vertex
data, and RGBAPixels flattens a decoded image into texture bytes. See the
examples directory for SDL2-backed programs that put the pieces together.
*/
package rendercore
