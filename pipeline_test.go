package rendercore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
)

func TestValidatePushConstantRanges(t *testing.T) {
	mat4Range := []core1_0.PushConstantRange{
		{StageFlags: core1_0.StageVertex, Offset: 0, Size: 64},
	}
	require.NoError(t, validatePushConstantRanges(mat4Range, 128))
	require.NoError(t, validatePushConstantRanges(mat4Range, 64))

	// A 64-byte limit cannot hold a range ending at byte 96.
	err := validatePushConstantRanges([]core1_0.PushConstantRange{
		{StageFlags: core1_0.StageFragment, Offset: 32, Size: 64},
	}, 64)
	require.Error(t, err)

	err = validatePushConstantRanges([]core1_0.PushConstantRange{
		{StageFlags: core1_0.StageVertex, Offset: 0, Size: 0},
	}, 128)
	require.Error(t, err)

	require.NoError(t, validatePushConstantRanges(nil, 128))
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	require.Len(t, words, 2)

	// SPIR-V magic number, little-endian.
	assert.Equal(t, uint32(0x07230203), words[0])
	assert.Equal(t, uint32(0x00010000), words[1])
}

func TestSpirvWordsRejectsBadLength(t *testing.T) {
	_, err := spirvWords(nil)
	assert.Error(t, err)

	_, err = spirvWords([]byte{1, 2, 3})
	assert.Error(t, err)
}
