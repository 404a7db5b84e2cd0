package rendercore

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

// ResourceBundle pairs a buffer or image with its backing memory and, for
// images, a view. The bundle is inert data: nothing is freed implicitly, and
// Release must only be called once the caller has proven (through the frame
// scheduler's fence protocol, or a device idle wait) that no in-flight GPU
// work still references it.
type ResourceBundle struct {
	buffer core1_0.Buffer
	image  core1_0.Image
	view   core1_0.ImageView
	memory core1_0.DeviceMemory
	size   int

	released bool
}

// NewBufferBundle allocates a buffer of size bytes, finds a memory type
// satisfying every requirement bit the device reports plus all of properties,
// allocates and binds. The properties choice is the caller's: host-visible |
// host-coherent for frequently rewritten data, device-local for static data.
func NewBufferBundle(device core1_0.Device, physicalDevice core1_0.PhysicalDevice, size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*ResourceBundle, error) {
	buffer, _, err := device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating buffer")
	}

	memory, err := allocateAndBind(device, physicalDevice, properties,
		buffer.MemoryRequirements(),
		func(memory core1_0.DeviceMemory) (common.VkResult, error) {
			return buffer.BindBufferMemory(memory, 0)
		})
	if err != nil {
		buffer.Destroy(nil)
		return nil, err
	}

	return &ResourceBundle{buffer: buffer, memory: memory, size: size}, nil
}

// NewImageBundle allocates a 2D image plus a view over the given aspect.
// Depth attachments and sampled textures both come through here.
func NewImageBundle(device core1_0.Device, physicalDevice core1_0.PhysicalDevice, width, height int, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, aspect core1_0.ImageAspectFlags, properties core1_0.MemoryPropertyFlags) (*ResourceBundle, error) {
	image, _, err := device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating image")
	}

	memory, err := allocateAndBind(device, physicalDevice, properties,
		image.MemoryRequirements(),
		func(memory core1_0.DeviceMemory) (common.VkResult, error) {
			return image.BindImageMemory(memory, 0)
		})
	if err != nil {
		image.Destroy(nil)
		return nil, err
	}

	view, _, err := device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		image.Destroy(nil)
		memory.Free(nil)
		return nil, errors.Wrap(err, "creating image view")
	}

	return &ResourceBundle{image: image, view: view, memory: memory}, nil
}

func allocateAndBind(device core1_0.Device, physicalDevice core1_0.PhysicalDevice, properties core1_0.MemoryPropertyFlags, requirements *core1_0.MemoryRequirements, bind func(core1_0.DeviceMemory) (common.VkResult, error)) (core1_0.DeviceMemory, error) {
	memProperties := physicalDevice.MemoryProperties()
	memoryTypeIndex, err := findMemoryTypeIndex(memProperties.MemoryTypes, requirements.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}

	memory, _, err := device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "allocating device memory"), ErrAllocationFailed)
	}

	_, err = bind(memory)
	if err != nil {
		memory.Free(nil)
		return nil, errors.Mark(errors.Wrap(err, "binding memory"), ErrBindFailed)
	}

	return memory, nil
}

// findMemoryTypeIndex picks the first memory type allowed by typeFilter whose
// property flags contain ALL of the requested bits. Requiring every bit
// matters: a type that is merely host-visible must not satisfy a request for
// host-visible | host-coherent.
func findMemoryTypeIndex(memoryTypes []core1_0.MemoryType, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range memoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoMatchingMemoryType, "filter %#x, properties %#x", typeFilter, properties)
}

func (b *ResourceBundle) Buffer() core1_0.Buffer  { return b.buffer }
func (b *ResourceBundle) Image() core1_0.Image    { return b.image }
func (b *ResourceBundle) View() core1_0.ImageView { return b.view }
func (b *ResourceBundle) Size() int               { return b.size }

// Write maps the bundle's memory and copies data into it at offset. data is
// anything encoding/binary can size: a fixed-size value, or a slice of them.
// Only valid for host-visible bundles; the caller must hold the fence proof
// that the previous GPU read of this region has completed.
func (b *ResourceBundle) Write(offset int, data any) error {
	if b.released {
		return ErrReleased
	}

	bufferSize := binary.Size(data)

	memoryPtr, _, err := b.memory.Map(offset, bufferSize, 0)
	if err != nil {
		return errors.Wrap(err, "mapping memory")
	}
	defer b.memory.Unmap()

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return errors.Wrap(err, "encoding data")
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}

// WriteBytes maps the bundle's memory and copies p into it at offset, with the
// same preconditions as Write.
func (b *ResourceBundle) WriteBytes(offset int, p []byte) error {
	if b.released {
		return ErrReleased
	}

	memoryPtr, _, err := b.memory.Map(offset, len(p), 0)
	if err != nil {
		return errors.Wrap(err, "mapping memory")
	}
	defer b.memory.Unmap()

	copy(unsafe.Slice((*byte)(memoryPtr), len(p)), p)
	return nil
}

// Release destroys the view, then the resource, then frees the memory, in
// that order. It is an explicit operation: the caller asserts no submitted
// command buffer still references the bundle. A second Release reports
// ErrReleased and touches nothing.
func (b *ResourceBundle) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true

	if b.view != nil {
		b.view.Destroy(nil)
		b.view = nil
	}
	if b.buffer != nil {
		b.buffer.Destroy(nil)
		b.buffer = nil
	}
	if b.image != nil {
		b.image.Destroy(nil)
		b.image = nil
	}
	if b.memory != nil {
		b.memory.Free(nil)
		b.memory = nil
	}
	return nil
}
