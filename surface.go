package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
)

// Surface is the narrow contract the core requires from the window system: an
// opaque surface handle for chain creation and the current drawable size in
// pixels. SDL2, GLFW or any other windowing layer can satisfy it; see the
// examples directory for an SDL2 implementation.
type Surface interface {
	Handle() khr_surface.Surface
	DrawableSize() (width, height int)
}

// SurfaceSupport is everything the device+surface pair reports that
// negotiation needs.
type SurfaceSupport struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// Adequate reports whether the surface can be presented to at all.
func (s SurfaceSupport) Adequate() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

func querySurfaceSupport(surface khr_surface.Surface, device core1_0.PhysicalDevice) (SurfaceSupport, error) {
	var support SurfaceSupport
	var err error

	support.Capabilities, _, err = surface.PhysicalDeviceSurfaceCapabilities(device)
	if err != nil {
		return support, errors.Wrap(err, "querying surface capabilities")
	}

	support.Formats, _, err = surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil {
		return support, errors.Wrap(err, "querying surface formats")
	}

	support.PresentModes, _, err = surface.PhysicalDeviceSurfacePresentModes(device)
	if err != nil {
		return support, errors.Wrap(err, "querying surface present modes")
	}

	return support, nil
}
