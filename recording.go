package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/core1_0"
)

// DrawBatch is one instanced indexed draw: a mesh plus per-instance
// transforms. PushConstants, when set, are pushed before the draw and must
// match one of the pipeline's declared ranges at offset 0.
type DrawBatch struct {
	VertexBuffer core1_0.Buffer
	IndexBuffer  core1_0.Buffer
	IndexType    core1_0.IndexType
	IndexCount   int

	Transforms    []mgl32.Mat4
	PushConstants []byte

	// Texture, when set, is bound as descriptor set 0 for this draw. The
	// pipeline must have been built with TextureSampling.
	Texture *Texture
}

// FrameInput is everything a single frame needs. A frame with no batches is a
// clear-only frame.
type FrameInput struct {
	ClearColor [4]float32
	ClearDepth float32

	Batches []DrawBatch
}

// drawCommand is one batch resolved into recordable form: the instance count
// after truncation and the byte offset of the batch's transforms inside the
// frame slot's instance buffer.
type drawCommand struct {
	vertexBuffer core1_0.Buffer
	indexBuffer  core1_0.Buffer
	indexType    core1_0.IndexType
	indexCount   int

	instanceCount  int
	instanceOffset int

	pushConstants []byte
	descriptorSet core1_0.DescriptorSet
}

// frameRecording is a fully resolved plan for one frame. Two plans built from
// the same input and capacity differ only in imageIndex, so recording is
// deterministic per image.
type frameRecording struct {
	imageIndex int
	extent     core1_0.Extent2D

	clearValues []core1_0.ClearValue
	draws       []drawCommand

	truncated bool
}

// planFrame lays the frame's batches out in submission order, assigning each
// a contiguous region of the instance buffer. Capacity is shared across
// batches; once it runs out, later batches draw zero instances and the plan
// is marked truncated.
func planFrame(input FrameInput, imageIndex int, extent core1_0.Extent2D, hasDepth bool, maxInstances int) frameRecording {
	plan := frameRecording{
		imageIndex: imageIndex,
		extent:     extent,
		clearValues: []core1_0.ClearValue{
			core1_0.ClearValueFloat{input.ClearColor[0], input.ClearColor[1], input.ClearColor[2], input.ClearColor[3]},
		},
	}
	if hasDepth {
		plan.clearValues = append(plan.clearValues, core1_0.ClearValueDepthStencil{Depth: input.ClearDepth, Stencil: 0})
	}

	used := 0
	for _, batch := range input.Batches {
		count, truncated := clampInstanceCount(len(batch.Transforms), maxInstances-used)
		if truncated {
			plan.truncated = true
		}

		command := drawCommand{
			vertexBuffer:   batch.VertexBuffer,
			indexBuffer:    batch.IndexBuffer,
			indexType:      batch.IndexType,
			indexCount:     batch.IndexCount,
			instanceCount:  count,
			instanceOffset: used * InstanceStride,
			pushConstants:  batch.PushConstants,
		}
		if batch.Texture != nil {
			command.descriptorSet = batch.Texture.DescriptorSet()
		}
		plan.draws = append(plan.draws, command)
		used += count
	}

	return plan
}

// recordFrame re-records one image's command buffer from a plan. The buffer
// must not be pending execution; the scheduler's fence protocol guarantees
// that. pipeline is nil on a clear-only scheduler, in which case the plan
// carries no draws.
func recordFrame(buffer core1_0.CommandBuffer, plan frameRecording, renderPass core1_0.RenderPass, pipeline *Pipeline, framebuffer core1_0.Framebuffer, instanceBuffer core1_0.Buffer) error {
	_, err := buffer.Reset(0)
	if err != nil {
		return errors.Wrap(err, "resetting command buffer")
	}

	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return errors.Wrap(err, "beginning command buffer")
	}

	err = buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  renderPass,
			Framebuffer: framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: plan.extent,
			},
			ClearValues: plan.clearValues,
		})
	if err != nil {
		return errors.Wrap(err, "beginning render pass")
	}

	if len(plan.draws) > 0 {
		buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, pipeline.Handle())
	}

	for _, draw := range plan.draws {
		if draw.instanceCount == 0 {
			continue
		}

		buffer.CmdBindVertexBuffers(0,
			[]core1_0.Buffer{draw.vertexBuffer, instanceBuffer},
			[]int{0, draw.instanceOffset})
		buffer.CmdBindIndexBuffer(draw.indexBuffer, 0, draw.indexType)

		if draw.descriptorSet != nil {
			buffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, pipeline.Layout(),
				[]core1_0.DescriptorSet{draw.descriptorSet}, nil)
		}

		if len(draw.pushConstants) > 0 {
			buffer.CmdPushConstants(pipeline.Layout(), pipeline.pushStages, 0, draw.pushConstants)
		}

		buffer.CmdDrawIndexed(draw.indexCount, draw.instanceCount, 0, 0, 0)
	}

	buffer.CmdEndRenderPass()

	_, err = buffer.End()
	if err != nil {
		return errors.Wrap(err, "ending command buffer")
	}
	return nil
}
