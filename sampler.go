package gx

import (
	"github.com/celer/gx/native"
)

type AllocatedSampler struct {
	sampler native.Sampler
	label   string
}

func (s *AllocatedSampler) Native() native.Sampler { return s.sampler }
func (s *AllocatedSampler) Label() string          { return s.label }

// SamplerSpec describes a sampler. The zero value is a linear, repeating
// sampler without mipmapping.
type SamplerSpec struct {
	MagFilter   SamplerFilter
	MinFilter   SamplerFilter
	WrapU       SamplerWrap
	WrapV       SamplerWrap
	WrapW       SamplerWrap
	MipMap      SamplerMip
	Anisotropic bool
	DebugName   string
}

func (s SamplerSpec) desc(limits native.Limits) native.SamplerDesc {
	d := native.SamplerDesc{
		MagFilter:     s.MagFilter.native(),
		MinFilter:     s.MinFilter.native(),
		AddressU:      s.WrapU.native(),
		AddressV:      s.WrapV.native(),
		AddressW:      s.WrapW.native(),
		MaxAnisotropy: 1,
		MinLod:        -1000,
		MaxLod:        1000,
		Label:         s.DebugName,
	}
	switch s.MipMap {
	case MipDisabled:
		d.MinLod, d.MaxLod = 0, 0
	case MipNearest:
		d.MipmapEnabled = true
		d.MipmapMode = native.MipmapNearest
	case MipLinear:
		d.MipmapEnabled = true
		d.MipmapMode = native.MipmapLinear
	}
	if s.Anisotropic && limits.MaxSamplerAnisotropy > 1 {
		d.Anisotropy = true
		d.MaxAnisotropy = limits.MaxSamplerAnisotropy
	}
	return d
}

func (g *GX) CreateSampler(spec SamplerSpec) SamplerHandle {
	s, err := g.dev.CreateSampler(spec.desc(g.dev.Properties().Limits))
	if err != nil {
		log().Error("create sampler failed", "name", spec.DebugName, "err", err)
		return SamplerHandle{}
	}
	h := g.samplers.Create(AllocatedSampler{sampler: s, label: spec.DebugName})
	g.awaitingCreation = true
	return h
}

func (g *GX) DestroySampler(h SamplerHandle) {
	if h.Empty() {
		return
	}
	s := g.samplers.Get(h)
	if s == nil {
		log().Warn("destroy of a stale sampler handle", "sampler", h.String())
		return
	}
	sampler := s.sampler
	g.samplers.Destroy(h)
	g.deferTask(func() { g.dev.DestroySampler(sampler) }, SubmitHandle{})
	g.awaitingCreation = true
}

// LinearSampler and NearestSampler are the clamping samplers every context
// creates. The linear one fills unused sampler slots.
func (g *GX) LinearSampler() SamplerHandle  { return g.linearSampler }
func (g *GX) NearestSampler() SamplerHandle { return g.nearestSampler }
