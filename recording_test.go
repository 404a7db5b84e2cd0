package rendercore

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
)

func identityTransforms(n int) []mgl32.Mat4 {
	transforms := make([]mgl32.Mat4, n)
	for i := range transforms {
		transforms[i] = mgl32.Ident4()
	}
	return transforms
}

func TestPlanFrameClearOnly(t *testing.T) {
	input := FrameInput{
		ClearColor: [4]float32{0.1, 0.2, 0.3, 1},
		ClearDepth: 1,
	}

	plan := planFrame(input, 0, core1_0.Extent2D{Width: 640, Height: 480}, false, 0)

	require.Len(t, plan.clearValues, 1)
	assert.Equal(t, core1_0.ClearValueFloat{0.1, 0.2, 0.3, 1}, plan.clearValues[0])
	assert.Empty(t, plan.draws)
	assert.False(t, plan.truncated)
}

func TestPlanFrameAddsDepthClearValue(t *testing.T) {
	input := FrameInput{ClearDepth: 1}

	plan := planFrame(input, 0, core1_0.Extent2D{Width: 640, Height: 480}, true, 0)

	require.Len(t, plan.clearValues, 2)
	assert.Equal(t, core1_0.ClearValueDepthStencil{Depth: 1, Stencil: 0}, plan.clearValues[1])
}

func TestPlanFrameLaysBatchesOutContiguously(t *testing.T) {
	input := FrameInput{
		Batches: []DrawBatch{
			{IndexCount: 36, Transforms: identityTransforms(3)},
			{IndexCount: 6, Transforms: identityTransforms(5)},
		},
	}

	plan := planFrame(input, 2, core1_0.Extent2D{Width: 640, Height: 480}, true, 100)

	require.Len(t, plan.draws, 2)
	assert.Equal(t, 3, plan.draws[0].instanceCount)
	assert.Equal(t, 0, plan.draws[0].instanceOffset)
	assert.Equal(t, 5, plan.draws[1].instanceCount)
	assert.Equal(t, 3*InstanceStride, plan.draws[1].instanceOffset)
	assert.False(t, plan.truncated)
}

func TestPlanFrameTruncatesAcrossBatches(t *testing.T) {
	input := FrameInput{
		Batches: []DrawBatch{
			{Transforms: identityTransforms(4)},
			{Transforms: identityTransforms(4)},
			{Transforms: identityTransforms(4)},
		},
	}

	plan := planFrame(input, 0, core1_0.Extent2D{Width: 64, Height: 64}, false, 6)

	require.Len(t, plan.draws, 3)
	assert.Equal(t, 4, plan.draws[0].instanceCount)
	assert.Equal(t, 2, plan.draws[1].instanceCount)
	assert.Equal(t, 0, plan.draws[2].instanceCount)
	assert.True(t, plan.truncated)
}

func TestPlanFrameOversizedSingleBatch(t *testing.T) {
	input := FrameInput{
		Batches: []DrawBatch{
			{Transforms: identityTransforms(7000)},
		},
	}

	plan := planFrame(input, 0, core1_0.Extent2D{Width: 64, Height: 64}, false, 5000)

	require.Len(t, plan.draws, 1)
	assert.Equal(t, 5000, plan.draws[0].instanceCount)
	assert.True(t, plan.truncated)
}

func TestPlanFrameDeterministic(t *testing.T) {
	input := FrameInput{
		ClearColor: [4]float32{0, 0, 0, 1},
		ClearDepth: 1,
		Batches: []DrawBatch{
			{IndexCount: 36, IndexType: core1_0.IndexTypeUInt16, Transforms: identityTransforms(10)},
		},
	}
	extent := core1_0.Extent2D{Width: 1280, Height: 720}

	first := planFrame(input, 1, extent, true, 4096)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, planFrame(input, 1, extent, true, 4096))
	}

	// The same input against a different image differs only in the index.
	other := planFrame(input, 2, extent, true, 4096)
	assert.Equal(t, first.draws, other.draws)
	assert.Equal(t, first.clearValues, other.clearValues)
	assert.Equal(t, first.extent, other.extent)
	assert.NotEqual(t, first.imageIndex, other.imageIndex)
}
