package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/core1_0"
)

// InstanceDataManager owns one host-visible instance buffer per frame slot.
// Each slot is written only while its frame's fence guarantees the GPU is no
// longer reading it, so no extra synchronization is layered on top.
type InstanceDataManager struct {
	slots        []*ResourceBundle
	maxInstances int
}

// NewInstanceDataManager allocates slots host-visible, host-coherent buffers,
// each sized for maxInstances transform matrices.
func NewInstanceDataManager(ctx *DeviceContext, slots int, maxInstances int) (*InstanceDataManager, error) {
	if slots < 1 {
		return nil, errors.Newf("instance buffers require at least 1 slot, got %d", slots)
	}
	if maxInstances < 1 {
		return nil, errors.Newf("instance buffers require a positive capacity, got %d", maxInstances)
	}

	m := &InstanceDataManager{
		maxInstances: maxInstances,
	}

	bufferSize := maxInstances * InstanceStride
	for i := 0; i < slots; i++ {
		bundle, err := NewBufferBundle(ctx.Device(), ctx.PhysicalDevice(), bufferSize,
			core1_0.BufferUsageVertexBuffer,
			core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			m.Release()
			return nil, errors.Wrapf(err, "allocating instance buffer for slot %d", i)
		}
		m.slots = append(m.slots, bundle)
	}

	return m, nil
}

// WriteTransforms packs transforms into the slot's buffer starting at
// byteOffset and returns how many were written. When the write would overflow
// the remaining capacity the data is truncated and the count is returned
// alongside ErrTooManyInstances: the frame still draws what fits.
func (m *InstanceDataManager) WriteTransforms(slot int, byteOffset int, transforms []mgl32.Mat4) (int, error) {
	if slot < 0 || slot >= len(m.slots) {
		return 0, errors.Newf("instance buffer slot %d out of range [0, %d)", slot, len(m.slots))
	}
	if byteOffset < 0 || byteOffset%InstanceStride != 0 {
		return 0, errors.Newf("instance write offset %d is not a multiple of the %d-byte stride", byteOffset, InstanceStride)
	}

	remaining := m.maxInstances - byteOffset/InstanceStride
	written, truncated := clampInstanceCount(len(transforms), remaining)
	if written > 0 {
		err := m.slots[slot].Write(byteOffset, transforms[:written])
		if err != nil {
			return 0, err
		}
	}

	if truncated {
		return written, errors.Mark(
			errors.Newf("instance data overflow: %d transforms submitted, %d fit", len(transforms), written),
			ErrTooManyInstances)
	}
	return written, nil
}

// Buffer returns the vertex buffer backing the given slot.
func (m *InstanceDataManager) Buffer(slot int) core1_0.Buffer {
	return m.slots[slot].Buffer()
}

func (m *InstanceDataManager) MaxInstances() int { return m.maxInstances }
func (m *InstanceDataManager) Slots() int        { return len(m.slots) }

// Release frees every slot's buffer. Call only after the device is idle.
func (m *InstanceDataManager) Release() {
	for _, bundle := range m.slots {
		if bundle != nil {
			bundle.Release()
		}
	}
	m.slots = nil
}

// clampInstanceCount applies the capacity rule: never fail the frame, draw
// what fits and report the loss.
func clampInstanceCount(requested, capacity int) (written int, truncated bool) {
	if capacity < 0 {
		capacity = 0
	}
	if requested > capacity {
		return capacity, true
	}
	return requested, false
}
