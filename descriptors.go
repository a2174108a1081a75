package gx

import (
	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

// Binding numbers shaders declare for the bindless and global sets.
const (
	globalBinding = 0

	textureBinding      = 0
	samplerBinding      = 1
	storageImageBinding = 2
)

const bindlessStages = native.ShaderStageVertex | native.ShaderStageFragment

// The bindless set is bound at sets 0 to 2 so shaders can declare each
// binding array in its own set. The global uniform set follows.
const numDescriptorSets = 4

// createGlobalDescriptorSet builds the set holding the per-frame uniform
// buffer at binding 0.
func (g *GX) createGlobalDescriptorSet() error {
	var err error
	g.globalLayout, err = g.dev.CreateDescriptorSetLayout(native.DescriptorSetLayoutDesc{
		Bindings: []native.DescriptorSetLayoutBinding{{
			Binding: globalBinding,
			Type:    native.DescriptorUniformBuffer,
			Count:   1,
			Stages:  bindlessStages,
		}},
	})
	if err != nil {
		return errors.Wrap(err, "create global descriptor set layout")
	}
	g.globalPool, err = g.dev.CreateDescriptorPool(native.DescriptorPoolDesc{
		MaxSets:  1,
		Sizes:    []native.DescriptorPoolSize{{Type: native.DescriptorUniformBuffer, Count: 1}},
		FreeSets: true,
	})
	if err != nil {
		return errors.Wrap(err, "create global descriptor pool")
	}
	g.globalSet, err = g.dev.AllocateDescriptorSet(g.globalPool, g.globalLayout)
	if err != nil {
		return errors.Wrap(err, "allocate global descriptor set")
	}
	buf := g.buffers.Get(g.globalBuffer)
	g.dev.UpdateDescriptorSets([]native.DescriptorWrite{{
		Set:     g.globalSet,
		Binding: globalBinding,
		Type:    native.DescriptorUniformBuffer,
		Buffers: []native.DescriptorBufferInfo{{Buffer: buf.buf, Range: PerFrameDataSize}},
	}})
	return nil
}

// growDescriptorPool replaces the bindless layout, pool and set with ones
// sized for the given counts. The old objects are released once the work in
// flight is done, and pipelines notice the new layout when next bound.
func (g *GX) growDescriptorPool(maxTextures, maxSamplers uint32) {
	limits := g.dev.Properties().Limits
	assertf(maxTextures <= limits.MaxUpdateAfterBindSampledImages, "max sampled textures exceeded: %d, but a maximum of %d is allowed", maxTextures, limits.MaxUpdateAfterBindSampledImages)
	assertf(maxSamplers <= limits.MaxUpdateAfterBindSamplers, "max samplers exceeded: %d, but a maximum of %d is allowed", maxSamplers, limits.MaxUpdateAfterBindSamplers)
	assertf(maxTextures <= limits.MaxUpdateAfterBindStorageImages, "max storage images exceeded: %d, but a maximum of %d is allowed", maxTextures, limits.MaxUpdateAfterBindStorageImages)
	g.maxTextures = maxTextures
	g.maxSamplers = maxSamplers

	if layout := g.bindlessLayout; layout != nil {
		g.deferTask(func() { g.dev.DestroyDescriptorSetLayout(layout) }, SubmitHandle{})
	}
	if pool := g.bindlessPool; pool != nil {
		g.deferTask(func() { g.dev.DestroyDescriptorPool(pool) }, SubmitHandle{})
	}

	flags := native.BindingUpdateAfterBind | native.BindingUpdateUnusedWhilePending | native.BindingPartiallyBound
	var err error
	g.bindlessLayout, err = g.dev.CreateDescriptorSetLayout(native.DescriptorSetLayoutDesc{
		Bindings: []native.DescriptorSetLayoutBinding{
			{Binding: textureBinding, Type: native.DescriptorSampledImage, Count: maxTextures, Stages: bindlessStages, Flags: flags},
			{Binding: samplerBinding, Type: native.DescriptorSampler, Count: maxSamplers, Stages: bindlessStages, Flags: flags},
			{Binding: storageImageBinding, Type: native.DescriptorStorageImage, Count: maxTextures, Stages: bindlessStages, Flags: flags},
		},
		UpdateAfterBindPool: true,
	})
	check(err, "create bindless descriptor set layout")

	g.bindlessPool, err = g.dev.CreateDescriptorPool(native.DescriptorPoolDesc{
		MaxSets: 1,
		Sizes: []native.DescriptorPoolSize{
			{Type: native.DescriptorSampledImage, Count: maxTextures},
			{Type: native.DescriptorSampler, Count: maxSamplers},
			{Type: native.DescriptorStorageImage, Count: maxTextures},
		},
		UpdateAfterBind: true,
	})
	check(err, "create bindless descriptor pool")

	g.bindlessSet, err = g.dev.AllocateDescriptorSet(g.bindlessPool, g.bindlessLayout)
	check(err, "allocate bindless descriptor set")

	g.awaitingNewImmutableSamplers = false
	// A fresh set has nothing written yet.
	g.awaitingCreation = true
	log().Debug("bindless descriptor pool resized", "textures", maxTextures, "samplers", maxSamplers)
}

// checkAndUpdateDescriptorSets rewrites the whole bindless set when a
// texture or sampler was created or destroyed since the last call. Slot i of
// each array mirrors slot i of the pool. Free slots and textures a shader
// cannot access point at the dummy texture and the linear sampler.
func (g *GX) checkAndUpdateDescriptorSets() {
	if !g.awaitingCreation {
		return
	}

	newMaxTextures, newMaxSamplers := g.maxTextures, g.maxSamplers
	for uint32(g.textures.Len()) > newMaxTextures {
		newMaxTextures *= 2
	}
	for uint32(g.samplers.Len()) > newMaxSamplers {
		newMaxSamplers *= 2
	}
	if newMaxTextures != g.maxTextures || newMaxSamplers != g.maxSamplers || g.awaitingNewImmutableSamplers {
		g.growDescriptorPool(newMaxTextures, newMaxSamplers)
	}

	dummy := g.textures.Get(g.dummyTexture)
	assertf(dummy != nil, "dummy texture missing")

	sampled := make([]native.DescriptorImageInfo, 0, g.textures.Len())
	storage := make([]native.DescriptorImageInfo, 0, g.textures.Len())
	for i := 0; i < g.textures.Len(); i++ {
		t := g.textures.slot(i)
		// Multisampled images cannot be accessed from shaders directly.
		available := t.view != nil && t.samples == native.Samples1
		view, storageView := dummy.view, dummy.view
		if available && t.isSampled() {
			view = t.view
		}
		if available && t.isStorage() {
			storageView = t.view
			if t.storageView != nil {
				storageView = t.storageView
			}
		}
		sampled = append(sampled, native.DescriptorImageInfo{View: view, Layout: native.LayoutShaderReadOnly})
		storage = append(storage, native.DescriptorImageInfo{View: storageView, Layout: native.LayoutGeneral})
	}

	linear := g.samplers.Get(g.linearSampler)
	assertf(linear != nil, "default sampler missing")
	samplers := make([]native.DescriptorImageInfo, 0, g.samplers.Len())
	for i := 0; i < g.samplers.Len(); i++ {
		s := g.samplers.slot(i).sampler
		if s == nil {
			s = linear.sampler
		}
		samplers = append(samplers, native.DescriptorImageInfo{Sampler: s})
	}

	var writes []native.DescriptorWrite
	if len(sampled) > 0 {
		writes = append(writes, native.DescriptorWrite{Set: g.bindlessSet, Binding: textureBinding, Type: native.DescriptorSampledImage, Images: sampled})
	}
	if len(samplers) > 0 {
		writes = append(writes, native.DescriptorWrite{Set: g.bindlessSet, Binding: samplerBinding, Type: native.DescriptorSampler, Images: samplers})
	}
	if len(storage) > 0 {
		writes = append(writes, native.DescriptorWrite{Set: g.bindlessSet, Binding: storageImageBinding, Type: native.DescriptorStorageImage, Images: storage})
	}
	if len(writes) > 0 {
		g.imm.Wait(g.imm.LastSubmitHandle())
		g.dev.UpdateDescriptorSets(writes)
	}
	g.awaitingCreation = false
}

func (g *GX) bindDefaultDescriptorSets(cmd native.CommandBuffer, bp native.BindPoint, layout native.PipelineLayout) {
	sets := [numDescriptorSets]native.DescriptorSet{g.bindlessSet, g.bindlessSet, g.bindlessSet, g.globalSet}
	cmd.BindDescriptorSets(bp, layout, 0, sets[:]...)
}

// BindlessCapacity reports how many textures and samplers the bindless set
// currently has room for.
func (g *GX) BindlessCapacity() (textures, samplers uint32) {
	return g.maxTextures, g.maxSamplers
}
