package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// Errors are grouped into four classes. Setup errors are fatal at startup and
// are never retried. Transient errors (acquire timeout) are recoverable by
// re-polling. Invalidation errors (out-of-date chain) are recoverable by
// rebuilding the presentation chain and everything downstream of it. Fatal
// runtime errors (surface lost, device lost, unexpected submit/present
// failures) cannot be recovered within this package.
var (
	// Setup errors.
	ErrNoCapableDevice      = errors.New("no physical device satisfies the selection predicate")
	ErrIncompatibleSurface  = errors.New("surface reports no usable formats or present modes")
	ErrNoMatchingMemoryType = errors.New("no device memory type matches the requested properties")
	ErrAllocationFailed     = errors.New("device memory allocation failed")
	ErrBindFailed           = errors.New("binding memory to resource failed")

	// Transient frame errors.
	ErrAcquireTimeout = errors.New("timed out acquiring a presentable image")

	// Invalidation errors.
	ErrOutOfDate = errors.New("presentation chain is out of date")

	// Fatal runtime errors.
	ErrSurfaceLost = errors.New("presentation surface was lost")
	ErrDeviceLost  = errors.New("logical device was lost")

	// ErrTooManyInstances is a soft error: the write succeeded for the first
	// MaxInstances transforms and the remainder were dropped.
	ErrTooManyInstances = errors.New("instance transforms exceed buffer capacity")

	// ErrReleased reports a use-after-release or double release of a
	// ResourceBundle.
	ErrReleased = errors.New("resource bundle already released")
)

// IsTransient reports whether the render loop may simply re-poll after err.
func IsTransient(err error) bool {
	return errors.Is(err, ErrAcquireTimeout) || errors.Is(err, ErrTooManyInstances)
}

// IsInvalidation reports whether err requires a presentation-chain rebuild.
// The frame that observed it has been abandoned, not drawn.
func IsInvalidation(err error) bool {
	return errors.Is(err, ErrOutOfDate)
}

// IsFatal reports whether err ends the render loop. Anything that is neither
// transient nor an invalidation is fatal: the queue state can no longer be
// trusted.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsTransient(err) && !IsInvalidation(err)
}

// resolveAcquireResult classifies an acquire result code. Suboptimal is a
// success there: an image was acquired and the semaphore will signal, so the
// frame must still be rendered and presented. It only reports that the chain
// should be rebuilt once the frame is done.
func resolveAcquireResult(res common.VkResult, err error) (suboptimal bool, mapped error) {
	if res == khr_swapchain.VKSuboptimal {
		return true, nil
	}
	return false, mapSwapchainResult(res, err)
}

// mapSwapchainResult converts a present result code into the package error
// taxonomy. A nil return means the result was a success code.
func mapSwapchainResult(res common.VkResult, err error) error {
	switch res {
	case khr_swapchain.VKErrorOutOfDate, khr_swapchain.VKSuboptimal:
		// The image was queued, but the chain no longer matches the surface;
		// treat it like out-of-date so the caller rebuilds.
		return ErrOutOfDate
	case khr_surface.VKErrorSurfaceLost:
		return ErrSurfaceLost
	case core1_0.VKErrorDeviceLost:
		return ErrDeviceLost
	case core1_0.VKTimeout, core1_0.VKNotReady:
		return ErrAcquireTimeout
	}
	if err != nil {
		return errors.Wrap(err, "swapchain operation failed")
	}
	return nil
}
