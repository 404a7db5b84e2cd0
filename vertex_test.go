package rendercore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
)

func TestMeshVertexLayout(t *testing.T) {
	layout := MeshVertexLayout()

	require.Len(t, layout.Bindings, 1)
	assert.Equal(t, core1_0.VertexInputRateVertex, layout.Bindings[0].InputRate)
	assert.Equal(t, 24, layout.Bindings[0].Stride)

	require.Len(t, layout.Attributes, 2)
	assert.Equal(t, uint32(0), layout.Attributes[0].Location)
	assert.Equal(t, uint32(1), layout.Attributes[1].Location)
	assert.Equal(t, 12, layout.Attributes[1].Offset)
}

func TestWithInstanceMatrix(t *testing.T) {
	layout := MeshVertexLayout().WithInstanceMatrix(1, 2)

	require.Len(t, layout.Bindings, 2)
	instanced := layout.Bindings[1]
	assert.Equal(t, 1, instanced.Binding)
	assert.Equal(t, InstanceStride, instanced.Stride)
	assert.Equal(t, core1_0.VertexInputRateInstance, instanced.InputRate)

	require.Len(t, layout.Attributes, 6)
	for column := 0; column < 4; column++ {
		attribute := layout.Attributes[2+column]
		assert.Equal(t, 1, attribute.Binding)
		assert.Equal(t, uint32(2+column), attribute.Location)
		assert.Equal(t, core1_0.FormatR32G32B32A32SignedFloat, attribute.Format)
		assert.Equal(t, column*16, attribute.Offset)
	}
}
