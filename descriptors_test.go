package gx

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer/gx/native"
	"github.com/celer/gx/native/nativetest"
)

func newTestTexture(t *testing.T, g *GX, w, h uint32, usage TextureUsage, name string) TextureHandle {
	t.Helper()
	tex := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: w, Height: h},
		NumMipLevels: 1,
		Usage:        usage,
		Format:       native.FormatR8G8B8A8Unorm,
		DebugName:    name,
	})
	require.True(t, tex.Valid(), "create %s", name)
	return tex
}

func bindlessImages(g *GX, binding uint32) []native.DescriptorImageInfo {
	return g.bindlessSet.(*nativetest.DescriptorSet).Images(binding)
}

func TestBindlessSetMirrorsTexturePool(t *testing.T) {
	g, _ := newTestGX(t)
	sampled := newTestTexture(t, g, 8, 8, TextureUsageSampled, "sampled")
	storage := newTestTexture(t, g, 8, 8, TextureUsageStorage, "storage")
	msaa := g.CreateTexture(TextureSpec{
		Dimension:    native.Extent2D{Width: 8, Height: 8},
		NumMipLevels: 1,
		Samples:      SampleCountX4,
		Usage:        TextureUsageSampled | TextureUsageAttachment,
		Format:       native.FormatR8G8B8A8Unorm,
		DebugName:    "msaa",
	})
	require.True(t, msaa.Valid())

	require.True(t, g.awaitingCreation)
	g.checkAndUpdateDescriptorSets()
	assert.False(t, g.awaitingCreation)

	dummy := g.Texture(g.dummyTexture).View()
	textures := bindlessImages(g, textureBinding)
	storages := bindlessImages(g, storageImageBinding)
	require.Len(t, textures, g.textures.Len())
	require.Len(t, storages, g.textures.Len())

	assert.Equal(t, dummy, textures[g.dummyTexture.Index()].View)
	assert.Equal(t, g.Texture(sampled).View(), textures[sampled.Index()].View)
	assert.Equal(t, native.LayoutShaderReadOnly, textures[sampled.Index()].Layout)
	assert.Equal(t, dummy, storages[sampled.Index()].View)

	assert.Equal(t, dummy, textures[storage.Index()].View)
	assert.Equal(t, g.Texture(storage).storageView, storages[storage.Index()].View)
	assert.Equal(t, native.LayoutGeneral, storages[storage.Index()].Layout)

	// Multisampled textures cannot be bound.
	assert.Equal(t, dummy, textures[msaa.Index()].View)

	samplers := bindlessImages(g, samplerBinding)
	require.Len(t, samplers, g.samplers.Len())
	assert.Equal(t, g.samplers.Get(g.linearSampler).Native(), samplers[g.linearSampler.Index()].Sampler)
	assert.Equal(t, g.samplers.Get(g.nearestSampler).Native(), samplers[g.nearestSampler.Index()].Sampler)
}

func TestBindlessSetFallsBackForFreedSlots(t *testing.T) {
	g, _ := newTestGX(t)
	tex := newTestTexture(t, g, 4, 4, TextureUsageSampled, "short lived")
	sampler := g.CreateSampler(SamplerSpec{DebugName: "short lived sampler"})
	g.checkAndUpdateDescriptorSets()

	g.DestroyTexture(tex)
	g.DestroySampler(sampler)
	require.True(t, g.awaitingCreation)
	g.checkAndUpdateDescriptorSets()

	assert.Equal(t, g.Texture(g.dummyTexture).View(), bindlessImages(g, textureBinding)[tex.Index()].View)
	assert.Equal(t, g.samplers.Get(g.linearSampler).Native(), bindlessImages(g, samplerBinding)[sampler.Index()].Sampler)

	// Skipped when nothing changed.
	g.checkAndUpdateDescriptorSets()
	assert.False(t, g.awaitingCreation)
}

func TestBindlessSetGrows(t *testing.T) {
	g, dev := newTestGX(t)
	oldLayout := g.bindlessLayout
	for i := 0; i < 20; i++ {
		newTestTexture(t, g, 2, 2, TextureUsageSampled, fmt.Sprintf("texture %d", i))
	}
	g.checkAndUpdateDescriptorSets()

	textures, samplers := g.BindlessCapacity()
	assert.Equal(t, uint32(32), textures)
	assert.Equal(t, uint32(16), samplers)
	assert.NotEqual(t, oldLayout, g.bindlessLayout)
	assert.Len(t, bindlessImages(g, textureBinding), 21)

	// The old layout and pool are released once the work in flight is
	// done.
	require.Equal(t, 2, g.NumDeferredTasks())
	g.imm.WaitAll()
	g.processDeferredTasks()
	assert.Equal(t, 0, g.NumDeferredTasks())
	assert.Equal(t, 2, dev.Live("descriptor pool"))
	assert.Equal(t, 2, dev.Live("descriptor set layout"))
}

func TestBindlessGrowthRespectsDeviceLimits(t *testing.T) {
	limits := nativetest.DefaultLimits()
	limits.MaxUpdateAfterBindSampledImages = 16
	g, _ := newTestGX(t, nativetest.WithLimits(limits))
	for i := 0; i < 16; i++ {
		newTestTexture(t, g, 2, 2, TextureUsageSampled, fmt.Sprintf("texture %d", i))
	}
	assert.Panics(t, func() { g.checkAndUpdateDescriptorSets() })
}

func TestBindlessGrowthRespectsSamplerLimit(t *testing.T) {
	limits := nativetest.DefaultLimits()
	limits.MaxUpdateAfterBindSamplers = 16
	g, _ := newTestGX(t, nativetest.WithLimits(limits))
	assert.Panics(t, func() { g.growDescriptorPool(g.maxTextures, 32) })
}

func TestGlobalSetHoldsPerFrameBuffer(t *testing.T) {
	g, _ := newTestGX(t)
	set := g.globalSet.(*nativetest.DescriptorSet)
	bufs := set.Buffers(globalBinding)
	require.Len(t, bufs, 1)
	assert.Equal(t, g.Buffer(g.GlobalBuffer()).Native(), bufs[0].Buffer)
	assert.Equal(t, uint64(PerFrameDataSize), bufs[0].Range)
}
