package rendercore

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
)

func TestRGBAPixels(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255})
	src.SetNRGBA(1, 0, color.NRGBA{G: 255})
	src.SetNRGBA(0, 1, color.NRGBA{B: 255})
	src.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	pixels, width, height := RGBAPixels(src)

	assert.Equal(t, 2, width)
	assert.Equal(t, 2, height)
	require.Len(t, pixels, 16)

	// Rows are packed top to bottom, pixels left to right, RGBA per pixel.
	// The first three texels carry zero alpha, so their colors premultiply
	// away to black.
	assert.Equal(t, []byte{0, 0, 0, 0}, pixels[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0}, pixels[4:8])
	assert.Equal(t, []byte{255, 255, 255, 255}, pixels[12:16])
}

func TestRGBAPixelsOpaque(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{A: 255})

	pixels, width, height := RGBAPixels(src)

	assert.Equal(t, 2, width)
	assert.Equal(t, 1, height)
	assert.Equal(t, []byte{200, 100, 50, 255, 0, 0, 0, 255}, pixels)
}

func TestPlanFrameCarriesDescriptorSet(t *testing.T) {
	input := FrameInput{
		Batches: []DrawBatch{
			{IndexCount: 6, Transforms: identityTransforms(1)},
		},
	}

	plan := planFrame(input, 0, core1_0.Extent2D{Width: 640, Height: 480}, false, 16)
	require.Len(t, plan.draws, 1)
	// A batch without a texture must not bind any descriptor set.
	assert.Nil(t, plan.draws[0].descriptorSet)
}
