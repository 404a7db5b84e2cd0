package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// Staging helpers populate device-local bundles through a transient
// host-visible buffer and a one-time command submission on the graphics
// queue. They block until the copy completes, so they are setup-time tools,
// not per-frame tools.

// UploadBufferData fills a device-local buffer bundle with data. The
// destination must have been created with transfer-dst usage.
func UploadBufferData(ctx *DeviceContext, dst *ResourceBundle, data any) error {
	if dst.released {
		return ErrReleased
	}

	staging, err := NewBufferBundle(ctx.Device(), ctx.PhysicalDevice(), dst.size,
		core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return err
	}
	defer staging.Release()

	err = staging.Write(0, data)
	if err != nil {
		return err
	}

	return oneTimeCommands(ctx, func(buffer core1_0.CommandBuffer) error {
		return buffer.CmdCopyBuffer(staging.buffer, dst.buffer, []core1_0.BufferCopy{
			{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      dst.size,
			},
		})
	})
}

// UploadImagePixels fills a device-local image bundle with tightly packed
// pixel bytes, handling the undefined -> transfer-dst -> shader-read layout
// transitions. The destination must have transfer-dst | sampled usage.
func UploadImagePixels(ctx *DeviceContext, dst *ResourceBundle, pixels []byte, width, height int) error {
	if dst.released {
		return ErrReleased
	}

	staging, err := NewBufferBundle(ctx.Device(), ctx.PhysicalDevice(), len(pixels),
		core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return err
	}
	defer staging.Release()

	err = staging.WriteBytes(0, pixels)
	if err != nil {
		return err
	}

	err = transitionImageLayout(ctx, dst.image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		return err
	}

	err = oneTimeCommands(ctx, func(buffer core1_0.CommandBuffer) error {
		return buffer.CmdCopyBufferToImage(staging.buffer, dst.image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
			{
				BufferOffset:      0,
				BufferRowLength:   0,
				BufferImageHeight: 0,

				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
			},
		})
	})
	if err != nil {
		return err
	}

	return transitionImageLayout(ctx, dst.image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
}

func transitionImageLayout(ctx *DeviceContext, image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) error {
	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return errors.Newf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	return oneTimeCommands(ctx, func(buffer core1_0.CommandBuffer) error {
		return buffer.CmdPipelineBarrier(sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
			{
				OldLayout:           oldLayout,
				NewLayout:           newLayout,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               image,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask:     core1_0.ImageAspectColor,
					BaseMipLevel:   0,
					LevelCount:     1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcAccessMask: sourceAccess,
				DstAccessMask: destAccess,
			},
		})
	})
}

func oneTimeCommands(ctx *DeviceContext, record func(core1_0.CommandBuffer) error) error {
	buffers, _, err := ctx.Device().AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        ctx.CommandPool(),
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "allocating one-time command buffer")
	}
	defer ctx.Device().FreeCommandBuffers(buffers)

	buffer := buffers[0]
	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "beginning one-time command buffer")
	}

	err = record(buffer)
	if err != nil {
		return err
	}

	_, err = buffer.End()
	if err != nil {
		return errors.Wrap(err, "ending one-time command buffer")
	}

	_, err = ctx.GraphicsQueue().Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	})
	if err != nil {
		return errors.Wrap(err, "submitting one-time command buffer")
	}

	_, err = ctx.GraphicsQueue().WaitIdle()
	return err
}
