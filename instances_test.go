package rendercore

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampInstanceCount(t *testing.T) {
	tests := []struct {
		name          string
		requested     int
		capacity      int
		wantWritten   int
		wantTruncated bool
	}{
		{"fits exactly", 5000, 5000, 5000, false},
		{"under capacity", 100, 5000, 100, false},
		{"over capacity", 7000, 5000, 5000, true},
		{"zero requested", 0, 5000, 0, false},
		{"zero capacity", 10, 0, 0, true},
		{"negative capacity", 10, -3, 0, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			written, truncated := clampInstanceCount(test.requested, test.capacity)
			assert.Equal(t, test.wantWritten, written)
			assert.Equal(t, test.wantTruncated, truncated)
		})
	}
}

func TestInstanceStrideMatchesMat4(t *testing.T) {
	// 16 column-major float32 values per transform.
	assert.Equal(t, 64, InstanceStride)
}

func TestWriteTransformsValidation(t *testing.T) {
	m := &InstanceDataManager{
		slots:        make([]*ResourceBundle, 2),
		maxInstances: 8,
	}
	transforms := []mgl32.Mat4{mgl32.Ident4()}

	_, err := m.WriteTransforms(-1, 0, transforms)
	require.Error(t, err)

	_, err = m.WriteTransforms(2, 0, transforms)
	require.Error(t, err)

	_, err = m.WriteTransforms(0, InstanceStride/2, transforms)
	require.Error(t, err)

	_, err = m.WriteTransforms(0, -InstanceStride, transforms)
	require.Error(t, err)
}

func TestWriteTransformsFullBufferTruncates(t *testing.T) {
	m := &InstanceDataManager{
		slots:        make([]*ResourceBundle, 1),
		maxInstances: 8,
	}

	// Offset at the end of the buffer leaves no capacity. Nothing is written
	// and the overflow is reported as the soft truncation error, which is how
	// the scheduler sees batches that lost all their instances to the cap.
	written, err := m.WriteTransforms(0, 8*InstanceStride, []mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()})
	assert.Equal(t, 0, written)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyInstances))
	assert.True(t, IsTransient(err))

	// An empty write at the same offset is a no-op, not an error.
	written, err = m.WriteTransforms(0, 8*InstanceStride, nil)
	assert.Equal(t, 0, written)
	assert.NoError(t, err)
}
