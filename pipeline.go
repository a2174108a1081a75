package gx

import (
	"github.com/celer/gx/native"
)

type PipelineFormats struct {
	Color []native.Format
	Depth native.Format
}

type PipelineSpec struct {
	Topology    TopologyMode
	Polygon     PolygonMode
	Blend       BlendingMode
	Cull        CullMode
	Multisample SampleCount
	Formats     PipelineFormats
	Shader      ShaderHandle
	DebugName   string
}

// RenderPipeline is created as a spec only. The native pipeline is built
// when it is first bound and rebuilt when the bindless layout or the shader
// changed since.
type RenderPipeline struct {
	spec          PipelineSpec
	pipeline      native.Pipeline
	layout        native.PipelineLayout
	lastLayout    native.DescriptorSetLayout
	shaderVersion uint32
}

func (p *RenderPipeline) Spec() PipelineSpec            { return p.spec }
func (p *RenderPipeline) Native() native.Pipeline       { return p.pipeline }
func (p *RenderPipeline) Layout() native.PipelineLayout { return p.layout }
func (p *RenderPipeline) compiled() bool                { return p.pipeline != nil }

func (g *GX) CreatePipeline(spec PipelineSpec) PipelineHandle {
	spec.Formats.Color = append([]native.Format(nil), spec.Formats.Color...)
	return g.pipelines.Create(RenderPipeline{spec: spec})
}

func (g *GX) DestroyPipeline(h PipelineHandle) {
	p := g.pipelines.Get(h)
	if p == nil {
		return
	}
	g.releasePipeline(p)
	g.pipelines.Destroy(h)
}

func (g *GX) releasePipeline(p *RenderPipeline) {
	if pipeline := p.pipeline; pipeline != nil {
		g.deferTask(func() { g.dev.DestroyPipeline(pipeline) }, SubmitHandle{})
	}
	if layout := p.layout; layout != nil {
		g.deferTask(func() { g.dev.DestroyPipelineLayout(layout) }, SubmitHandle{})
	}
	p.pipeline = nil
	p.layout = nil
}

// resolveRenderPipeline returns the pipeline behind h, building it first if
// needed. It returns nil for a stale handle.
func (g *GX) resolveRenderPipeline(h PipelineHandle) *RenderPipeline {
	p := g.pipelines.Get(h)
	if p == nil {
		log().Warn("render pipeline does not exist", "pipeline", h.String())
		return nil
	}
	shader := g.shaders.Get(p.spec.Shader)
	assertf(shader != nil, "pipeline %q uses invalid shader %s", p.spec.DebugName, p.spec.Shader)

	if p.lastLayout != g.bindlessLayout || p.shaderVersion != shader.version {
		g.releasePipeline(p)
		p.lastLayout = g.bindlessLayout
		p.shaderVersion = shader.version
	}
	if p.compiled() {
		return p
	}

	pcSize := shader.pushConstantSize
	if pcSize == 0 {
		pcSize = PerObjectDataSize
	}
	limits := g.dev.Properties().Limits
	assertf(pcSize <= limits.MaxPushConstantsSize, "push constants of %d bytes exceed the device limit of %d", pcSize, limits.MaxPushConstantsSize)

	layoutDesc := native.PipelineLayoutDesc{
		SetLayouts: []native.DescriptorSetLayout{g.bindlessLayout, g.bindlessLayout, g.bindlessLayout, g.globalLayout},
		PushConstants: []native.PushConstantRange{{
			Stages: native.ShaderStageVertex | native.ShaderStageFragment,
			Size:   pcSize,
		}},
	}
	layout, err := g.dev.CreatePipelineLayout(layoutDesc)
	check(err, "create pipeline layout")

	pipeline, err := g.dev.CreateGraphicsPipeline(native.GraphicsPipelineDesc{
		Layout:        layout,
		Module:        shader.module,
		VertexEntry:   VertexEntryPoint,
		FragmentEntry: FragmentEntryPoint,
		Topology:      p.spec.Topology.native(),
		Polygon:       p.spec.Polygon.native(),
		Cull:          p.spec.Cull.native(),
		Samples:       p.spec.Multisample.native(),
		Blend:         p.spec.Blend.native(),
		ColorFormats:  p.spec.Formats.Color,
		DepthFormat:   p.spec.Formats.Depth,
		Label:         p.spec.DebugName,
	})
	check(err, "create graphics pipeline")

	p.layout = layout
	p.pipeline = pipeline
	return p
}
