package rendercore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
)

func TestChooseSurfaceFormatPrefersCallerList(t *testing.T) {
	available := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	preferred := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	got := chooseSurfaceFormat(preferred, available)
	require.Equal(t, preferred[0], got)
}

func TestChooseSurfaceFormatFallsBackToSRGB(t *testing.T) {
	available := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	got := chooseSurfaceFormat(nil, available)
	require.Equal(t, core1_0.FormatB8G8R8A8SRGB, got.Format)
}

func TestChooseSurfaceFormatTakesFirstWhenNothingMatches(t *testing.T) {
	available := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatR8G8B8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	got := chooseSurfaceFormat(nil, available)
	require.Equal(t, available[0], got)
}

func TestChoosePresentModeRanking(t *testing.T) {
	tests := []struct {
		name      string
		available []khr_surface.PresentMode
		want      khr_surface.PresentMode
	}{
		{
			name:      "mailbox wins when present",
			available: []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox, khr_surface.PresentModeImmediate},
			want:      khr_surface.PresentModeMailbox,
		},
		{
			name:      "fifo only",
			available: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
			want:      khr_surface.PresentModeFIFO,
		},
		{
			name:      "fifo beats immediate",
			available: []khr_surface.PresentMode{khr_surface.PresentModeImmediate, khr_surface.PresentModeFIFO},
			want:      khr_surface.PresentModeFIFO,
		},
		{
			name:      "empty list falls back to fifo",
			available: nil,
			want:      khr_surface.PresentModeFIFO,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.want, choosePresentMode(test.available))
		})
	}
}

func TestChoosePresentModeIsDeterministic(t *testing.T) {
	available := []khr_surface.PresentMode{
		khr_surface.PresentModeImmediate,
		khr_surface.PresentModeMailbox,
		khr_surface.PresentModeFIFO,
	}

	first := choosePresentMode(available)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, choosePresentMode(available))
	}
}

func TestChooseExtentHonorsFixedSurfaceExtent(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		CurrentExtent: core1_0.Extent2D{Width: 800, Height: 600},
	}

	got := chooseExtent(caps, 1920, 1080)
	require.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, got)
}

func TestChooseExtentClampsDrawableSize(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: core1_0.Extent2D{Width: 2048, Height: 2048},
	}

	require.Equal(t, core1_0.Extent2D{Width: 1280, Height: 720}, chooseExtent(caps, 1280, 720))
	require.Equal(t, core1_0.Extent2D{Width: 2048, Height: 2048}, chooseExtent(caps, 4096, 4096))
	require.Equal(t, core1_0.Extent2D{Width: 64, Height: 64}, chooseExtent(caps, 1, 1))
}

func TestChooseImageCount(t *testing.T) {
	bounded := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 3}
	require.Equal(t, 3, chooseImageCount(bounded, 4))
	require.Equal(t, 2, chooseImageCount(bounded, 1))
	require.Equal(t, 3, chooseImageCount(bounded, 3))

	// MaxImageCount of zero means the surface imposes no upper bound.
	unbounded := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 0}
	require.Equal(t, 8, chooseImageCount(unbounded, 8))
}
