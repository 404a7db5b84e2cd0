package rendercore

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// PresentationChain owns the negotiated swapchain: surface format, present
// mode, extent, and the ordered images and views the surface cycles through.
// It becomes stale when the surface resizes or an acquire/present call
// reports out-of-date; the owner then releases it and builds a fresh one.
type PresentationChain struct {
	device    core1_0.Device
	extension khr_swapchain.Extension

	swapchain   khr_swapchain.Swapchain
	format      khr_surface.SurfaceFormat
	presentMode khr_surface.PresentMode
	extent      core1_0.Extent2D
	images      []core1_0.Image
	views       []core1_0.ImageView
}

// BuildPresentationChain negotiates format, present mode, extent and image
// count against the device+surface pair and creates the swapchain plus one
// view per image. Negotiation is deterministic: a fixed capability set always
// yields the same choice.
func BuildPresentationChain(ctx *DeviceContext, surface Surface, config Config) (*PresentationChain, error) {
	config = config.withDefaults()

	support, err := querySurfaceSupport(surface.Handle(), ctx.PhysicalDevice())
	if err != nil {
		return nil, err
	}
	if !support.Adequate() {
		return nil, ErrIncompatibleSurface
	}

	surfaceFormat := chooseSurfaceFormat(config.PreferredFormats, support.Formats)
	presentMode := choosePresentMode(support.PresentModes)
	drawableW, drawableH := surface.DrawableSize()
	extent := chooseExtent(support.Capabilities, drawableW, drawableH)
	imageCount := chooseImageCount(support.Capabilities, config.DesiredImageCount)

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if ctx.graphicsFamily != ctx.presentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, ctx.graphicsFamily, ctx.presentFamily)
	}

	extension := khr_swapchain.CreateExtensionFromDevice(ctx.Device())
	swapchain, _, err := extension.CreateSwapchain(ctx.Device(), nil, khr_swapchain.SwapchainCreateInfo{
		Surface: surface.Handle(),

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating swapchain")
	}

	chain := &PresentationChain{
		device:      ctx.Device(),
		extension:   extension,
		swapchain:   swapchain,
		format:      surfaceFormat,
		presentMode: presentMode,
		extent:      extent,
	}

	chain.images, _, err = swapchain.SwapchainImages()
	if err != nil {
		chain.Release()
		return nil, errors.Wrap(err, "fetching swapchain images")
	}

	for _, image := range chain.images {
		view, _, err := ctx.Device().CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   surfaceFormat.Format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			chain.Release()
			return nil, errors.Wrap(err, "creating swapchain image view")
		}
		chain.views = append(chain.views, view)
	}

	return chain, nil
}

func (p *PresentationChain) Format() core1_0.Format               { return p.format.Format }
func (p *PresentationChain) PresentMode() khr_surface.PresentMode { return p.presentMode }
func (p *PresentationChain) Extent() core1_0.Extent2D             { return p.extent }
func (p *PresentationChain) ImageCount() int                      { return len(p.images) }
func (p *PresentationChain) ImageViews() []core1_0.ImageView      { return p.views }

// AcquireNext obtains the index of the next presentable image, signaling
// semaphore when the image is actually ready for rendering. A true suboptimal
// return means the image is usable but the chain should be rebuilt after the
// frame completes: the semaphore will still signal, so the frame must not be
// abandoned. ErrOutOfDate means no image was acquired and the chain must be
// rebuilt; ErrAcquireTimeout means re-poll.
func (p *PresentationChain) AcquireNext(timeout time.Duration, semaphore core1_0.Semaphore) (imageIndex int, suboptimal bool, err error) {
	imageIndex, res, err := p.swapchain.AcquireNextImage(timeout, semaphore, nil)
	suboptimal, mapped := resolveAcquireResult(res, err)
	if mapped != nil {
		return 0, false, mapped
	}
	return imageIndex, suboptimal, nil
}

// Present queues imageIndex for presentation once waitSemaphore signals.
func (p *PresentationChain) Present(queue core1_0.Queue, imageIndex int, waitSemaphore core1_0.Semaphore) error {
	res, err := p.extension.QueuePresent(queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{waitSemaphore},
		Swapchains:     []khr_swapchain.Swapchain{p.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	return mapSwapchainResult(res, err)
}

// Release destroys the views then the swapchain. The owner must have made
// sure no submitted work still targets the chain's images.
func (p *PresentationChain) Release() {
	for _, view := range p.views {
		view.Destroy(nil)
	}
	p.views = nil

	if p.swapchain != nil {
		p.swapchain.Destroy(nil)
		p.swapchain = nil
	}
}

// chooseSurfaceFormat returns the first preferred format the surface
// supports; with no preferences, the first 8-bit sRGB format; otherwise the
// first reported format.
func chooseSurfaceFormat(preferred, available []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, want := range preferred {
		for _, format := range available {
			if format == want {
				return format
			}
		}
	}

	for _, format := range available {
		if (format.Format == core1_0.FormatB8G8R8A8SRGB || format.Format == core1_0.FormatR8G8B8A8SRGB) &&
			format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return available[0]
}

// presentModeRanking orders modes best-first: triple-buffered non-blocking,
// strict vsync, relaxed vsync, no vsync.
var presentModeRanking = []khr_surface.PresentMode{
	khr_surface.PresentModeMailbox,
	khr_surface.PresentModeFIFO,
	khr_surface.PresentModeFIFORelaxed,
	khr_surface.PresentModeImmediate,
}

func choosePresentMode(available []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, want := range presentModeRanking {
		for _, mode := range available {
			if mode == want {
				return mode
			}
		}
	}

	// FIFO is always available, but be explicit anyway.
	return khr_surface.PresentModeFIFO
}

// chooseExtent uses the surface's fixed extent when it has one, and otherwise
// clamps the drawable size into the reported [min, max] range.
func chooseExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := drawableWidth
	height := drawableHeight

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

// chooseImageCount clamps desired into the capability range; MaxImageCount of
// zero means unbounded.
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities, desired int) int {
	count := desired
	if count < capabilities.MinImageCount {
		count = capabilities.MinImageCount
	}
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}
