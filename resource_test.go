package rendercore

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/core1_0"
)

func TestFindMemoryTypeIndexRequiresAllBits(t *testing.T) {
	memoryTypes := []core1_0.MemoryType{
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
		{PropertyFlags: core1_0.MemoryPropertyHostVisible},
		{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
	}

	// Merely host-visible types must not satisfy visible|coherent.
	index, err := findMemoryTypeIndex(memoryTypes, 0b111,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	require.NoError(t, err)
	assert.Equal(t, 2, index)
}

func TestFindMemoryTypeIndexHonorsTypeFilter(t *testing.T) {
	memoryTypes := []core1_0.MemoryType{
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
	}

	// The first type matches the properties but is excluded by the filter.
	index, err := findMemoryTypeIndex(memoryTypes, 0b10, core1_0.MemoryPropertyDeviceLocal)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
}

func TestFindMemoryTypeIndexNoMatch(t *testing.T) {
	memoryTypes := []core1_0.MemoryType{
		{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
	}

	_, err := findMemoryTypeIndex(memoryTypes, 0b1, core1_0.MemoryPropertyHostVisible)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatchingMemoryType))
}

func TestReleasedBundleRejectsUse(t *testing.T) {
	bundle := &ResourceBundle{released: true}

	assert.True(t, errors.Is(bundle.Write(0, []float32{1}), ErrReleased))
	assert.True(t, errors.Is(bundle.WriteBytes(0, []byte{1}), ErrReleased))
	assert.True(t, errors.Is(bundle.Release(), ErrReleased))
}
