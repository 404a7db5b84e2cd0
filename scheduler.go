package rendercore

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"golang.org/x/exp/slog"
)

// FrameStats reports what one DrawFrame call did.
type FrameStats struct {
	// FrameIndex counts every completed DrawFrame since construction,
	// including frames abandoned to a rebuild.
	FrameIndex uint64

	// Generation increments each time the presentation chain is rebuilt.
	Generation int

	// Slot is the frame-in-flight slot the frame used.
	Slot int

	// Instances is the total instance count actually drawn after truncation.
	Instances int

	// Truncated reports that MaxInstances capacity was exceeded this frame.
	Truncated bool

	// Skipped reports that the frame was abandoned because the chain went
	// out of date; nothing was submitted.
	Skipped bool

	// CPUTime is the host-side duration of the DrawFrame call.
	CPUTime time.Duration
}

type frameSlot struct {
	imageAvailable core1_0.Semaphore
	renderFinished core1_0.Semaphore
	inFlight       core1_0.Fence
}

// FrameScheduler drives the frame loop: it owns the presentation chain, the
// optional pipeline, per-image framebuffers and command buffers, the
// frames-in-flight synchronization objects and the per-slot instance
// buffers. A scheduler built with a nil pipeline config renders clear-only
// frames.
type FrameScheduler struct {
	ctx     *DeviceContext
	surface Surface
	config  Config
	logger  *slog.Logger

	pipelineConfig *PipelineConfig

	chain    *PresentationChain
	pipeline *Pipeline

	// renderPass is owned only when pipeline is nil; otherwise it aliases
	// the pipeline's pass.
	renderPass      core1_0.RenderPass
	ownedRenderPass bool

	depth        *ResourceBundle
	framebuffers []core1_0.Framebuffer

	commandBuffers []core1_0.CommandBuffer

	slots          []frameSlot
	imagesInFlight []core1_0.Fence
	currentFrame   int

	instances *InstanceDataManager

	frameCounter uint64
	generation   int
	stale        bool
}

// NewFrameScheduler builds the full per-surface rendering state. The device
// context and surface are borrowed, not owned: Shutdown releases everything
// the scheduler created but leaves both intact.
func NewFrameScheduler(ctx *DeviceContext, surface Surface, config Config, pipelineConfig *PipelineConfig) (*FrameScheduler, error) {
	config = config.withDefaults()
	err := config.validate()
	if err != nil {
		return nil, err
	}

	s := &FrameScheduler{
		ctx:            ctx,
		surface:        surface,
		config:         config,
		logger:         config.Logger,
		pipelineConfig: pipelineConfig,
	}

	if pipelineConfig != nil {
		s.instances, err = NewInstanceDataManager(ctx, config.FramesInFlight, config.MaxInstances)
		if err != nil {
			return nil, err
		}
	}

	err = s.buildSwapchainState()
	if err != nil {
		s.Shutdown()
		return nil, err
	}

	err = s.createSyncObjects()
	if err != nil {
		s.Shutdown()
		return nil, err
	}

	return s, nil
}

// buildSwapchainState creates everything that depends on the swapchain:
// chain, pipeline, depth attachment, framebuffers and command buffers. Sync
// objects and instance buffers are sized by FramesInFlight, not image count,
// and survive rebuilds.
func (s *FrameScheduler) buildSwapchainState() error {
	var err error
	s.chain, err = BuildPresentationChain(s.ctx, s.surface, s.config)
	if err != nil {
		return err
	}

	if s.pipelineConfig != nil {
		s.pipeline, err = BuildPipeline(s.ctx, s.chain, *s.pipelineConfig)
		if err != nil {
			return err
		}
		s.renderPass = s.pipeline.RenderPass()
		s.ownedRenderPass = false

		if s.pipeline.HasDepth() {
			extent := s.chain.Extent()
			s.depth, err = NewImageBundle(s.ctx.Device(), s.ctx.PhysicalDevice(),
				extent.Width, extent.Height,
				s.pipeline.DepthFormat(),
				core1_0.ImageTilingOptimal,
				core1_0.ImageUsageDepthStencilAttachment,
				core1_0.ImageAspectDepth,
				core1_0.MemoryPropertyDeviceLocal)
			if err != nil {
				return errors.Wrap(err, "creating depth attachment")
			}
		}
	} else {
		s.renderPass, err = buildRenderPass(s.ctx.Device(), s.chain.Format(), 0)
		if err != nil {
			return err
		}
		s.ownedRenderPass = true
	}

	extent := s.chain.Extent()
	for _, imageView := range s.chain.ImageViews() {
		attachments := []core1_0.ImageView{imageView}
		if s.depth != nil {
			attachments = append(attachments, s.depth.View())
		}

		framebuffer, _, err := s.ctx.Device().CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  s.renderPass,
			Layers:      1,
			Attachments: attachments,
			Width:       extent.Width,
			Height:      extent.Height,
		})
		if err != nil {
			return errors.Wrap(err, "creating framebuffer")
		}
		s.framebuffers = append(s.framebuffers, framebuffer)
	}

	s.commandBuffers, _, err = s.ctx.Device().AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        s.ctx.CommandPool(),
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: s.chain.ImageCount(),
	})
	if err != nil {
		return errors.Wrap(err, "allocating command buffers")
	}

	s.imagesInFlight = make([]core1_0.Fence, s.chain.ImageCount())
	return nil
}

func (s *FrameScheduler) createSyncObjects() error {
	for i := 0; i < s.config.FramesInFlight; i++ {
		var slot frameSlot
		var err error

		slot.imageAvailable, _, err = s.ctx.Device().CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrap(err, "creating semaphore")
		}
		slot.renderFinished, _, err = s.ctx.Device().CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			slot.imageAvailable.Destroy(nil)
			return errors.Wrap(err, "creating semaphore")
		}

		// Signaled so the first wait on each slot passes immediately.
		slot.inFlight, _, err = s.ctx.Device().CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			slot.imageAvailable.Destroy(nil)
			slot.renderFinished.Destroy(nil)
			return errors.Wrap(err, "creating fence")
		}

		s.slots = append(s.slots, slot)
	}
	return nil
}

// DrawFrame executes one frame: wait for the slot's fence, acquire an image,
// upload instance data, re-record the image's command buffer, submit and
// present. An out-of-date chain triggers a rebuild; the frame is abandoned
// and reported as skipped rather than failed.
func (s *FrameScheduler) DrawFrame(input FrameInput) (FrameStats, error) {
	start := hrtime.Now()
	stats := FrameStats{
		FrameIndex: s.frameCounter,
		Generation: s.generation,
		Slot:       s.currentFrame,
	}

	if len(input.Batches) > 0 && s.pipeline == nil {
		return stats, errors.New("draw batches submitted to a clear-only scheduler")
	}

	if s.stale {
		err := s.Rebuild()
		if err != nil {
			return stats, err
		}
		stats.Generation = s.generation
	}

	slot := &s.slots[s.currentFrame]
	fences := []core1_0.Fence{slot.inFlight}

	_, err := s.ctx.Device().WaitForFences(true, common.NoTimeout, fences)
	if err != nil {
		return stats, errors.Wrap(err, "waiting for frame fence")
	}

	imageIndex, suboptimal, err := s.chain.AcquireNext(common.NoTimeout, slot.imageAvailable)
	if errors.Is(err, ErrOutOfDate) {
		rebuildErr := s.Rebuild()
		if rebuildErr != nil {
			return stats, rebuildErr
		}
		stats.Skipped = true
		stats.CPUTime = hrtime.Now() - start
		s.finishFrame()
		return stats, nil
	} else if err != nil {
		return stats, err
	}
	if suboptimal {
		// The acquired image is still presentable and slot.imageAvailable
		// will signal, so the frame goes through; the rebuild happens at the
		// top of the next DrawFrame.
		s.stale = true
	}

	if s.imagesInFlight[imageIndex] != nil {
		_, err = s.imagesInFlight[imageIndex].Wait(common.NoTimeout)
		if err != nil {
			return stats, errors.Wrap(err, "waiting for image fence")
		}
	}
	s.imagesInFlight[imageIndex] = slot.inFlight

	maxInstances := 0
	if s.instances != nil {
		maxInstances = s.instances.MaxInstances()
	}
	hasDepth := s.pipeline != nil && s.pipeline.HasDepth()
	plan := planFrame(input, imageIndex, s.chain.Extent(), hasDepth, maxInstances)
	stats.Truncated = plan.truncated
	if plan.truncated && s.logger != nil {
		s.logger.Warn("instance capacity exceeded, truncating",
			"frame", s.frameCounter,
			"capacity", maxInstances)
	}

	for i := range plan.draws {
		written, writeErr := s.instances.WriteTransforms(s.currentFrame,
			plan.draws[i].instanceOffset, input.Batches[i].Transforms)
		if writeErr != nil && !errors.Is(writeErr, ErrTooManyInstances) {
			return stats, errors.Wrap(writeErr, "writing instance data")
		}
		stats.Instances += written
	}

	_, err = s.ctx.Device().ResetFences(fences)
	if err != nil {
		return stats, errors.Wrap(err, "resetting frame fence")
	}

	var instanceBuffer core1_0.Buffer
	if s.instances != nil {
		instanceBuffer = s.instances.Buffer(s.currentFrame)
	}
	err = recordFrame(s.commandBuffers[imageIndex], plan, s.renderPass, s.pipeline,
		s.framebuffers[imageIndex], instanceBuffer)
	if err != nil {
		return stats, err
	}

	waitStages := core1_0.PipelineStageColorAttachmentOutput
	if hasDepth {
		waitStages |= core1_0.PipelineStageEarlyFragmentTests
	}

	_, err = s.ctx.GraphicsQueue().Submit(slot.inFlight, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{slot.imageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{waitStages},
			CommandBuffers:   []core1_0.CommandBuffer{s.commandBuffers[imageIndex]},
			SignalSemaphores: []core1_0.Semaphore{slot.renderFinished},
		},
	})
	if err != nil {
		return stats, errors.Wrap(err, "submitting frame")
	}

	err = s.chain.Present(s.ctx.PresentQueue(), imageIndex, slot.renderFinished)
	if errors.Is(err, ErrOutOfDate) {
		// The frame was submitted; rebuild before the next one.
		s.stale = true
	} else if err != nil {
		return stats, err
	}

	stats.CPUTime = hrtime.Now() - start
	s.finishFrame()
	return stats, nil
}

func (s *FrameScheduler) finishFrame() {
	s.frameCounter++
	s.currentFrame = (s.currentFrame + 1) % s.config.FramesInFlight
}

// Invalidate marks the chain stale, typically from a window resize event.
// The next DrawFrame rebuilds before rendering.
func (s *FrameScheduler) Invalidate() {
	s.stale = true
}

// Rebuild waits for the device to go idle, tears down all swapchain-derived
// state and recreates it against the surface's current size. Sync objects
// and instance buffers are kept.
func (s *FrameScheduler) Rebuild() error {
	_, err := s.ctx.Device().WaitIdle()
	if err != nil {
		return errors.Wrap(err, "waiting for device idle")
	}

	s.releaseSwapchainState()

	err = s.buildSwapchainState()
	if err != nil {
		return err
	}

	s.generation++
	s.stale = false
	if s.logger != nil {
		extent := s.chain.Extent()
		s.logger.Info("presentation chain rebuilt",
			"generation", s.generation,
			"width", extent.Width,
			"height", extent.Height)
	}
	return nil
}

func (s *FrameScheduler) releaseSwapchainState() {
	for _, framebuffer := range s.framebuffers {
		framebuffer.Destroy(nil)
	}
	s.framebuffers = nil

	if len(s.commandBuffers) > 0 {
		s.ctx.Device().FreeCommandBuffers(s.commandBuffers)
		s.commandBuffers = nil
	}

	if s.depth != nil {
		s.depth.Release()
		s.depth = nil
	}

	if s.pipeline != nil {
		s.pipeline.Release()
		s.pipeline = nil
		s.renderPass = nil
	}
	if s.ownedRenderPass && s.renderPass != nil {
		s.renderPass.Destroy(nil)
	}
	s.renderPass = nil
	s.ownedRenderPass = false

	if s.chain != nil {
		s.chain.Release()
		s.chain = nil
	}

	s.imagesInFlight = nil
}

// Chain exposes the current presentation chain, mainly for inspecting the
// negotiated format and extent. It is replaced wholesale on rebuild.
func (s *FrameScheduler) Chain() *PresentationChain { return s.chain }

// Pipeline exposes the current graphics pipeline, nil on a clear-only
// scheduler. Like the chain it is replaced wholesale on rebuild, but textured
// rebuilds declare the same descriptor layout, so Texture descriptor sets
// stay valid across generations.
func (s *FrameScheduler) Pipeline() *Pipeline { return s.pipeline }

// Generation reports how many times the chain has been rebuilt.
func (s *FrameScheduler) Generation() int { return s.generation }

// Shutdown waits for the device to go idle and releases all scheduler-owned
// state. The device context and surface remain usable.
func (s *FrameScheduler) Shutdown() {
	_, err := s.ctx.Device().WaitIdle()
	if err != nil && s.logger != nil {
		s.logger.Error("device idle wait failed during shutdown", err)
	}

	s.releaseSwapchainState()

	for _, slot := range s.slots {
		if slot.imageAvailable != nil {
			slot.imageAvailable.Destroy(nil)
		}
		if slot.renderFinished != nil {
			slot.renderFinished.Destroy(nil)
		}
		if slot.inFlight != nil {
			slot.inFlight.Destroy(nil)
		}
	}
	s.slots = nil

	if s.instances != nil {
		s.instances.Release()
		s.instances = nil
	}
}
