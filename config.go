package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/extensions/khr_surface"
	"golang.org/x/exp/slog"
)

const (
	// DefaultFramesInFlight bounds how many submissions may be unacknowledged
	// by the CPU at once.
	DefaultFramesInFlight = 2

	// DefaultMaxInstances is the per-frame-slot transform buffer capacity.
	DefaultMaxInstances = 4096

	// DefaultImageCount is the desired swapchain depth before clamping to the
	// surface capability range.
	DefaultImageCount = 3
)

// Config carries the caller-decided knobs for the whole layer. The zero value
// is not usable directly; call withDefaults (done by NewDeviceContext) or fill
// every field.
type Config struct {
	AppName    string
	AppVersion common.Version

	// FramesInFlight is the frame slot count N. Fixed at construction.
	FramesInFlight int

	// DesiredImageCount is the swapchain image count to request. The surface
	// capability range wins when they disagree.
	DesiredImageCount int

	// MaxInstances fixes each slot's transform buffer capacity. Writes beyond
	// it are truncated, never grown.
	MaxInstances int

	// PreferredFormats is tried in order against the surface's reported
	// formats. When empty, the negotiation prefers 8-bit sRGB and otherwise
	// takes the first reported format.
	PreferredFormats []khr_surface.SurfaceFormat

	// EnableValidation loads the Khronos validation layer and routes its
	// messages through Logger.
	EnableValidation bool

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.AppName == "" {
		c.AppName = "render-core"
	}
	if c.AppVersion == 0 {
		c.AppVersion = common.CreateVersion(1, 0, 0)
	}
	if c.FramesInFlight == 0 {
		c.FramesInFlight = DefaultFramesInFlight
	}
	if c.DesiredImageCount == 0 {
		c.DesiredImageCount = DefaultImageCount
	}
	if c.MaxInstances == 0 {
		c.MaxInstances = DefaultMaxInstances
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) validate() error {
	if c.FramesInFlight < 1 {
		return errors.Newf("config: FramesInFlight must be positive, got %d", c.FramesInFlight)
	}
	if c.DesiredImageCount < 1 {
		return errors.Newf("config: DesiredImageCount must be positive, got %d", c.DesiredImageCount)
	}
	if c.MaxInstances < 1 {
		return errors.Newf("config: MaxInstances must be positive, got %d", c.MaxInstances)
	}
	return nil
}
