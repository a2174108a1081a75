package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

type pipelineLayout struct {
	vk vk.PipelineLayout
}

func (l *pipelineLayout) PipelineLayoutHandle() uintptr { return uintptr(unsafe.Pointer(l.vk)) }

type pipeline struct {
	vk vk.Pipeline
}

func (p *pipeline) PipelineHandle() uintptr { return uintptr(unsafe.Pointer(p.vk)) }

func (d *Backend) CreatePipelineLayout(desc native.PipelineLayoutDesc) (native.PipelineLayout, error) {
	sets := make([]vk.DescriptorSetLayout, len(desc.SetLayouts))
	for i, l := range desc.SetLayouts {
		sets[i] = l.(*descriptorSetLayout).vk
	}
	ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(sets)),
		PSetLayouts:            sets,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	l := &pipelineLayout{}
	if err := vk.Error(vk.CreatePipelineLayout(d.device, &createInfo, nil, &l.vk)); err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}
	return l, nil
}

func (d *Backend) DestroyPipelineLayout(l native.PipelineLayout) {
	vk.DestroyPipelineLayout(d.device, l.(*pipelineLayout).vk, nil)
}

var colorWriteAll = vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)

func blendAttachment(b native.Blend) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: colorWriteAll,
		BlendEnable:    vk.False,
	}
	switch b {
	case native.BlendAdditive:
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorOne
		state.DstColorBlendFactor = vk.BlendFactorOne
		state.ColorBlendOp = vk.BlendOpAdd
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorZero
		state.AlphaBlendOp = vk.BlendOpAdd
	case native.BlendAlpha:
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		state.ColorBlendOp = vk.BlendOpAdd
		state.SrcAlphaBlendFactor = vk.BlendFactorOne
		state.DstAlphaBlendFactor = vk.BlendFactorZero
		state.AlphaBlendOp = vk.BlendOpAdd
	}
	return state
}

// dynamicStates are set by the command buffer, the pipeline only fixes
// their count.
var dynamicStates = []vk.DynamicState{
	vk.DynamicStateViewport,
	vk.DynamicStateScissor,
	vk.DynamicStateDepthTestEnable,
	vk.DynamicStateDepthWriteEnable,
	vk.DynamicStateDepthCompareOp,
	vk.DynamicStateDepthBiasEnable,
	vk.DynamicStateDepthBias,
}

// CreateGraphicsPipeline builds a pipeline for dynamic rendering. Vertex
// data is pulled from buffers through their device address, so there is no
// vertex input state.
func (d *Backend) CreateGraphicsPipeline(desc native.GraphicsPipelineDesc) (native.Pipeline, error) {
	module := desc.Module.(*shaderModule).vk
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: module,
			PName:  safeString(desc.VertexEntry),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: module,
			PName:  safeString(desc.FragmentEntry),
		},
	}

	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssemblyState := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterState := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonMode(desc.Polygon),
		CullMode:                vk.CullModeFlags(desc.Cull),
		FrontFace:               vk.FrontFaceCounterClockwise,
		LineWidth:               1.0,
	}
	samples := desc.Samples
	if samples == 0 {
		samples = native.Samples1
	}
	multisampleState := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCountFlagBits(samples),
		SampleShadingEnable:  vk.False,
	}

	colorFormats := make([]vk.Format, len(desc.ColorFormats))
	attachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.ColorFormats))
	for i, f := range desc.ColorFormats {
		colorFormats[i] = vk.Format(f)
		attachments[i] = blendAttachment(desc.Blend)
	}
	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
	}
	depthStencilState := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthCompareOp:        vk.CompareOpAlways,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     vk.False,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	stencilFormat := vk.FormatUndefined
	if desc.DepthFormat.IsDepthOrStencil() && desc.DepthFormat.Aspect()&native.AspectStencil != 0 {
		stencilFormat = vk.Format(desc.DepthFormat)
	}
	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    uint32(len(colorFormats)),
		PColorAttachmentFormats: colorFormats,
		DepthAttachmentFormat:   vk.Format(desc.DepthFormat),
		StencilAttachmentFormat: stencilFormat,
	}
	cRenderingInfo, _ := renderingInfo.PassRef()
	defer renderingInfo.Free()

	createInfos := []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafe.Pointer(cRenderingInfo),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PColorBlendState:    &colorBlendState,
		PDepthStencilState:  &depthStencilState,
		PDynamicState:       &dynamicState,
		Layout:              desc.Layout.(*pipelineLayout).vk,
	}}
	pipelines := make([]vk.Pipeline, 1)
	err := vk.Error(vk.CreateGraphicsPipelines(d.device, d.pipelineCache, 1, createInfos, nil, pipelines))
	if err != nil {
		return nil, errors.Wrapf(err, "create graphics pipeline %q", desc.Label)
	}
	return &pipeline{vk: pipelines[0]}, nil
}

func (d *Backend) DestroyPipeline(p native.Pipeline) {
	vk.DestroyPipeline(d.device, p.(*pipeline).vk, nil)
}
