package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// buildRenderPass declares a single subpass against a color attachment in the
// chain's format and, when depthFormat is nonzero, a depth attachment. The
// subpass dependencies are explicit in both directions rather than relying on
// the implicit defaults, so early fragment tests order correctly against the
// previous frame's attachment writes.
func buildRenderPass(device core1_0.Device, colorFormat core1_0.Format, depthFormat core1_0.Format) (core1_0.RenderPass, error) {
	attachments := []core1_0.AttachmentDescription{
		{
			Format:         colorFormat,
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
		},
	}

	subpass := core1_0.SubpassDescription{
		PipelineBindPoint: core1_0.PipelineBindPointGraphics,
		ColorAttachments: []core1_0.AttachmentReference{
			{
				Attachment: 0,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		},
	}

	syncStages := core1_0.PipelineStageColorAttachmentOutput
	syncAccess := core1_0.AccessColorAttachmentWrite

	if depthFormat != 0 {
		attachments = append(attachments, core1_0.AttachmentDescription{
			Format:         depthFormat,
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpDontCare,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.DepthStencilAttachment = &core1_0.AttachmentReference{
			Attachment: 1,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		}
		syncStages |= core1_0.PipelineStageEarlyFragmentTests
		syncAccess |= core1_0.AccessDepthStencilAttachmentWrite
	}

	renderPass, _, err := device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: attachments,
		Subpasses:   []core1_0.SubpassDescription{subpass},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  syncStages,
				SrcAccessMask: 0,

				DstStageMask:  syncStages,
				DstAccessMask: syncAccess,
			},
			{
				SrcSubpass: 0,
				DstSubpass: core1_0.SubpassExternal,

				SrcStageMask:  syncStages,
				SrcAccessMask: syncAccess,

				DstStageMask:  syncStages,
				DstAccessMask: 0,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating render pass")
	}

	return renderPass, nil
}

// findSupportedFormat returns the first candidate whose reported features for
// the requested tiling contain all of features.
func findSupportedFormat(physicalDevice core1_0.PhysicalDevice, formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := physicalDevice.FormatProperties(format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Newf("no supported format for tiling %s, features %s", tiling, features)
}

// findDepthFormat picks the best depth attachment format the device offers.
func findDepthFormat(physicalDevice core1_0.PhysicalDevice) (core1_0.Format, error) {
	return findSupportedFormat(physicalDevice,
		[]core1_0.Format{core1_0.FormatD32SignedFloat, core1_0.FormatD32SignedFloatS8UnsignedInt, core1_0.FormatD24UnsignedNormalizedS8UnsignedInt},
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment)
}
