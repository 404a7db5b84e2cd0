package rendercore

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

// ShaderStage is one precompiled SPIR-V module: the core consumes shader
// binaries, never shader source.
type ShaderStage struct {
	Stage core1_0.ShaderStageFlags
	Code  []byte

	// EntryPoint defaults to "main".
	EntryPoint string
}

// PipelineConfig declares the fixed-function state the caller has decided:
// shader stages, vertex bindings (per-vertex and per-instance rates), push
// constant ranges, and whether a depth attachment participates.
type PipelineConfig struct {
	Shaders       []ShaderStage
	VertexLayout  VertexLayout
	PushConstants []core1_0.PushConstantRange

	// DepthTest enables a depth attachment with a closer-or-equal test and
	// depth writes.
	DepthTest bool

	// TextureSampling declares a combined image sampler at binding 0 of
	// descriptor set 0, visible to the fragment stage. Draws against the
	// pipeline then bind a Texture's descriptor set.
	TextureSampling bool
}

// Pipeline is the render pass plus the immutable graphics pipeline built
// against a presentation chain's formats. It is rebuilt, never mutated, when
// the chain is rebuilt.
type Pipeline struct {
	device core1_0.Device

	renderPass       core1_0.RenderPass
	descriptorLayout core1_0.DescriptorSetLayout
	layout           core1_0.PipelineLayout
	pipeline         core1_0.Pipeline
	depthFormat      core1_0.Format

	pushStages core1_0.ShaderStageFlags
}

// BuildPipeline constructs the render pass and pipeline for chain's current
// format and extent. Push constant ranges are validated against the
// device-reported limit: construction fails rather than assuming the
// spec-minimum 128 bytes holds.
func BuildPipeline(ctx *DeviceContext, chain *PresentationChain, config PipelineConfig) (*Pipeline, error) {
	properties, err := ctx.PhysicalDevice().Properties()
	if err != nil {
		return nil, errors.Wrap(err, "querying device properties")
	}

	err = validatePushConstantRanges(config.PushConstants, properties.Limits.MaxPushConstantsSize)
	if err != nil {
		return nil, err
	}

	var depthFormat core1_0.Format
	if config.DepthTest {
		depthFormat, err = findDepthFormat(ctx.PhysicalDevice())
		if err != nil {
			return nil, err
		}
	}

	renderPass, err := buildRenderPass(ctx.Device(), chain.Format(), depthFormat)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		device:      ctx.Device(),
		renderPass:  renderPass,
		depthFormat: depthFormat,
	}
	for _, r := range config.PushConstants {
		p.pushStages |= r.StageFlags
	}

	var stages []core1_0.PipelineShaderStageCreateInfo
	for _, shader := range config.Shaders {
		code, err := spirvWords(shader.Code)
		if err != nil {
			p.Release()
			return nil, err
		}

		module, _, err := ctx.Device().CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
			Code: code,
		})
		if err != nil {
			p.Release()
			return nil, errors.Wrap(err, "creating shader module")
		}
		defer module.Destroy(nil)

		entryPoint := shader.EntryPoint
		if entryPoint == "" {
			entryPoint = "main"
		}

		stages = append(stages, core1_0.PipelineShaderStageCreateInfo{
			Stage:  shader.Stage,
			Module: module,
			Name:   entryPoint,
		})
	}

	extent := chain.Extent()

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   config.VertexLayout.Bindings,
		VertexAttributeDescriptions: config.VertexLayout.Attributes,
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(extent.Width),
				Height:   float32(extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	var depthStencil *core1_0.PipelineDepthStencilStateCreateInfo
	if config.DepthTest {
		// Closer-or-equal wins, and passing fragments write depth.
		depthStencil = &core1_0.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:  true,
			DepthWriteEnable: true,
			DepthCompareOp:   core1_0.CompareOpLessOrEqual,
		}
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	var setLayouts []core1_0.DescriptorSetLayout
	if config.TextureSampling {
		p.descriptorLayout, _, err = ctx.Device().CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
			Bindings: []core1_0.DescriptorSetLayoutBinding{
				{
					Binding:         0,
					DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
					DescriptorCount: 1,

					StageFlags: core1_0.StageFragment,
				},
			},
		})
		if err != nil {
			p.Release()
			return nil, errors.Wrap(err, "creating descriptor set layout")
		}
		setLayouts = append(setLayouts, p.descriptorLayout)
	}

	p.layout, _, err = ctx.Device().CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts:         setLayouts,
		PushConstantRanges: config.PushConstants,
	})
	if err != nil {
		p.Release()
		return nil, errors.Wrap(err, "creating pipeline layout")
	}

	pipelines, _, err := ctx.Device().CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages:             stages,
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			DepthStencilState:  depthStencil,
			ColorBlendState:    colorBlend,
			Layout:             p.layout,
			RenderPass:         p.renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	})
	if err != nil {
		p.Release()
		return nil, errors.Wrap(err, "creating graphics pipeline")
	}
	p.pipeline = pipelines[0]

	return p, nil
}

func (p *Pipeline) RenderPass() core1_0.RenderPass { return p.renderPass }
func (p *Pipeline) Layout() core1_0.PipelineLayout { return p.layout }
func (p *Pipeline) Handle() core1_0.Pipeline       { return p.pipeline }

// DepthFormat is zero when the pipeline was built without a depth attachment.
func (p *Pipeline) DepthFormat() core1_0.Format { return p.depthFormat }
func (p *Pipeline) HasDepth() bool              { return p.depthFormat != 0 }

// DescriptorLayout is nil when the pipeline was built without texture
// sampling.
func (p *Pipeline) DescriptorLayout() core1_0.DescriptorSetLayout { return p.descriptorLayout }

// Release destroys pipeline, layout and render pass. Only safe once no
// submitted command buffer references them.
func (p *Pipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Destroy(nil)
		p.pipeline = nil
	}
	if p.layout != nil {
		p.layout.Destroy(nil)
		p.layout = nil
	}
	if p.descriptorLayout != nil {
		p.descriptorLayout.Destroy(nil)
		p.descriptorLayout = nil
	}
	if p.renderPass != nil {
		p.renderPass.Destroy(nil)
		p.renderPass = nil
	}
}

// validatePushConstantRanges rejects layouts that exceed the device limit.
func validatePushConstantRanges(ranges []core1_0.PushConstantRange, maxPushConstantsSize int) error {
	for _, r := range ranges {
		if r.Size <= 0 {
			return errors.Newf("push constant range at offset %d has non-positive size %d", r.Offset, r.Size)
		}
		if r.Offset+r.Size > maxPushConstantsSize {
			return errors.Newf("push constant range [%d, %d) exceeds device limit of %d bytes",
				r.Offset, r.Offset+r.Size, maxPushConstantsSize)
		}
	}
	return nil
}

// spirvWords reinterprets a little-endian SPIR-V byte stream as words.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("SPIR-V byte code length %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode, nil
}
