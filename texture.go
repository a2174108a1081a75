package gx

import (
	"github.com/celer/gx/native"
)

// AllocatedTexture is the record a TextureHandle resolves to. The layout
// field is the only record of the layout the image is in, so every
// transition has to go through transitionLayout.
type AllocatedTexture struct {
	image       native.Image
	view        native.ImageView
	storageView native.ImageView
	usage       native.ImageUsage
	memory      native.MemoryProperty
	extent      native.Extent3D
	typ         native.ImageType
	format      native.Format
	features    native.FormatFeature
	samples     native.SampleCount
	numLevels   uint32
	numLayers   uint32
	layout      native.Layout

	isSwapchain         bool
	isOwning            bool
	isResolveAttachment bool
	label               string
}

func (t *AllocatedTexture) Image() native.Image         { return t.image }
func (t *AllocatedTexture) View() native.ImageView      { return t.view }
func (t *AllocatedTexture) Format() native.Format       { return t.format }
func (t *AllocatedTexture) Extent() native.Extent3D     { return t.extent }
func (t *AllocatedTexture) Layout() native.Layout       { return t.layout }
func (t *AllocatedTexture) Samples() native.SampleCount { return t.samples }
func (t *AllocatedTexture) Levels() uint32              { return t.numLevels }
func (t *AllocatedTexture) Layers() uint32              { return t.numLayers }
func (t *AllocatedTexture) Label() string               { return t.label }
func (t *AllocatedTexture) IsSwapchainImage() bool      { return t.isSwapchain }

func (t *AllocatedTexture) isSampled() bool { return t.usage&native.ImageUsageSampled != 0 }
func (t *AllocatedTexture) isStorage() bool { return t.usage&native.ImageUsageStorage != 0 }

func (t *AllocatedTexture) isDepthAttachment() bool {
	return t.usage&native.ImageUsageDepthStencilAttachment != 0
}

// resolveAttachmentLayout turns the generic attachment layout into the one
// matching the kind of attachment the texture is.
func (t *AllocatedTexture) resolveAttachmentLayout(l native.Layout) native.Layout {
	if l != native.LayoutAttachment {
		return l
	}
	if t.isDepthAttachment() {
		return native.LayoutDepthStencilAttachment
	}
	return native.LayoutColorAttachment
}

// transitionLayout records a barrier from the cached layout to newLayout
// and updates the cache.
func (t *AllocatedTexture) transitionLayout(cmd native.CommandBuffer, newLayout native.Layout, r native.SubresourceRange) {
	oldLayout := t.resolveAttachmentLayout(t.layout)
	newLayout = t.resolveAttachmentLayout(newLayout)

	src := layoutStageAccess(oldLayout)
	dst := layoutStageAccess(newLayout)
	if t.format.IsDepthOrStencil() && t.isResolveAttachment {
		// Depth resolves run in the color attachment output stage.
		src.stage |= native.StageColorAttachmentOutput
		dst.stage |= native.StageColorAttachmentOutput
		src.access |= native.AccessColorAttachmentRead | native.AccessColorAttachmentWrite
		dst.access |= native.AccessColorAttachmentRead | native.AccessColorAttachmentWrite
	}
	cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(t.image, src, dst, oldLayout, newLayout, r)}, nil)
	t.layout = newLayout
}

func (t *AllocatedTexture) fullRange() native.SubresourceRange {
	return fullRange(t.format, t.numLevels, t.numLayers)
}

// generateMipmap fills levels 1..n-1 of every layer by blitting each level
// from the one above it, then leaves the whole image in the shader read
// only layout.
func (t *AllocatedTexture) generateMipmap(cmd native.CommandBuffer) {
	const blit = native.FeatureBlitSrc | native.FeatureBlitDst
	if t.features&blit != blit {
		log().Warn("format does not support blits, skipping mipmap generation", "format", t.format.String(), "texture", t.label)
		return
	}
	filter := native.FilterNearest
	if !t.format.IsDepthOrStencil() && t.features&native.FeatureSampledImageFilterLinear != 0 {
		filter = native.FilterLinear
	}
	aspect := t.format.Aspect()
	assertf(t.layout != native.LayoutUndefined, "texture %q has no contents to generate mipmaps from", t.label)
	t.transitionLayout(cmd, native.LayoutTransferSrc, native.SubresourceRange{Aspect: aspect, LevelCount: 1, LayerCount: t.numLayers})

	for layer := uint32(0); layer < t.numLayers; layer++ {
		w, h := int32(t.extent.Width), int32(t.extent.Height)
		for i := uint32(1); i < t.numLevels; i++ {
			level := native.SubresourceRange{Aspect: aspect, BaseMipLevel: i, LevelCount: 1, BaseArrayLayer: layer, LayerCount: 1}
			cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(t.image,
				stageAccess{native.StageTopOfPipe, native.AccessNone},
				stageAccess{native.StageTransfer, native.AccessTransferWrite},
				native.LayoutUndefined, native.LayoutTransferDst, level)}, nil)

			nw, nh := max(w/2, 1), max(h/2, 1)
			cmd.BlitImage(t.image, native.LayoutTransferSrc, t.image, native.LayoutTransferDst, filter, native.ImageBlit{
				SrcSubresource: native.SubresourceLayers{Aspect: aspect, MipLevel: i - 1, BaseArrayLayer: layer, LayerCount: 1},
				SrcOffsets:     [2]native.Offset3D{{}, {X: w, Y: h, Z: 1}},
				DstSubresource: native.SubresourceLayers{Aspect: aspect, MipLevel: i, BaseArrayLayer: layer, LayerCount: 1},
				DstOffsets:     [2]native.Offset3D{{}, {X: nw, Y: nh, Z: 1}},
			})

			cmd.PipelineBarrier([]native.ImageBarrier{imageBarrier(t.image,
				stageAccess{native.StageTransfer, native.AccessTransferWrite},
				stageAccess{native.StageTransfer, native.AccessTransferRead},
				native.LayoutTransferDst, native.LayoutTransferSrc, level)}, nil)
			w, h = nw, nh
		}
	}
	t.transitionLayout(cmd, native.LayoutShaderReadOnly, t.fullRange())
}

// TextureSpec describes a texture to create. NumMipLevels and NumLayers of
// zero are treated as one. When Data is set it holds DataNumMipLevels
// levels of every layer, each level tightly packed.
type TextureSpec struct {
	Dimension        native.Extent2D
	NumMipLevels     uint32
	NumLayers        uint32
	Samples          SampleCount
	Usage            TextureUsage
	Storage          StorageType
	Type             TextureType
	Format           native.Format
	Data             []byte
	DataNumMipLevels uint32
	GenerateMipmaps  bool
	DebugName        string
}

// TexRange selects a region of a texture for upload or download.
type TexRange struct {
	Offset       native.Offset3D
	Dimensions   native.Extent3D
	Layer        uint32
	NumLayers    uint32
	MipLevel     uint32
	NumMipLevels uint32
}

// FullRange covers mip level 0 of the first layer of a texture of the given
// extent.
func FullRange(extent native.Extent3D) TexRange {
	return TexRange{Dimensions: extent, NumLayers: 1, NumMipLevels: 1}
}

func textureUsageFlags(spec TextureSpec) native.ImageUsage {
	var flags native.ImageUsage
	if spec.Storage == StorageDevice {
		flags = native.ImageUsageTransferDst
	}
	if spec.Usage&TextureUsageSampled != 0 {
		flags |= native.ImageUsageSampled
	}
	if spec.Usage&TextureUsageStorage != 0 {
		assertf(spec.Samples == SampleCountX1, "storage texture %q cannot be multisampled", spec.DebugName)
		flags |= native.ImageUsageStorage
	}
	if spec.Usage&TextureUsageAttachment != 0 {
		if spec.Format.IsDepthOrStencil() {
			flags |= native.ImageUsageDepthStencilAttachment
		} else {
			flags |= native.ImageUsageColorAttachment
		}
		if spec.Storage == StorageMemoryless {
			flags |= native.ImageUsageTransientAttachment
		}
	}
	if spec.Storage != StorageMemoryless {
		flags |= native.ImageUsageTransferSrc
	}
	return flags
}

// CreateTexture creates a texture with a view covering every level and
// layer, plus a storage view for storage textures. Data is uploaded when
// present and mipmaps generated on request.
func (g *GX) CreateTexture(spec TextureSpec) TextureHandle {
	if spec.Usage == 0 {
		log().Warn("texture spec has no usage", "name", spec.DebugName)
		return TextureHandle{}
	}
	usage := textureUsageFlags(spec)
	if spec.NumMipLevels == 0 {
		log().Warn("texture mip level count must be greater than 0, using 1", "name", spec.DebugName)
		spec.NumMipLevels = 1
	}
	if spec.NumLayers == 0 {
		spec.NumLayers = 1
	}
	if spec.DataNumMipLevels == 0 {
		spec.DataNumMipLevels = 1
	}

	extent := native.Extent3D{Width: spec.Dimension.Width, Height: spec.Dimension.Height, Depth: 1}
	layers := spec.NumLayers
	var (
		imageType native.ImageType
		viewType  native.ImageViewType
		flags     native.ImageCreateFlags
	)
	switch spec.Type {
	case TextureType2D:
		imageType = native.ImageType2D
		viewType = native.ViewType2D
		if layers > 1 {
			viewType = native.ViewType2DArray
		}
	case TextureType3D:
		imageType = native.ImageType3D
		viewType = native.ViewType3D
	case TextureTypeCube:
		imageType = native.ImageType2D
		viewType = native.ViewTypeCube
		if layers > 1 {
			viewType = native.ViewTypeCubeArray
		}
		layers *= 6
		flags = native.ImageCreateCubeCompatible
	default:
		assertf(false, "unsupported texture type %d", spec.Type)
	}

	tex, err := g.createTextureImpl(usage, spec.Storage.memory(), extent, spec.Format, imageType, viewType,
		spec.NumMipLevels, layers, spec.Samples.native(), flags, spec.DebugName)
	if err != nil {
		log().Error("create texture failed", "name", spec.DebugName, "err", err)
		return TextureHandle{}
	}
	h := g.textures.Create(tex)
	g.awaitingCreation = true

	if spec.Data != nil {
		assertf(spec.DataNumMipLevels <= spec.NumMipLevels, "texture %q has data for %d levels but only %d levels", spec.DebugName, spec.DataNumMipLevels, spec.NumMipLevels)
		assertf(spec.Type == TextureType2D || spec.Type == TextureTypeCube, "initial data is only supported for 2D and cube textures")
		r := TexRange{Dimensions: extent, NumLayers: 1, NumMipLevels: spec.DataNumMipLevels}
		if spec.Type == TextureTypeCube {
			r.NumLayers = 6
		}
		g.UploadTexture(h, spec.Data, r)
		if spec.GenerateMipmaps {
			g.GenerateMipmaps(h)
		}
	}
	return h
}

func (g *GX) createTextureImpl(usage native.ImageUsage, memory native.MemoryProperty, extent native.Extent3D, format native.Format,
	imageType native.ImageType, viewType native.ImageViewType, levels, layers uint32, samples native.SampleCount,
	flags native.ImageCreateFlags, label string,
) (AllocatedTexture, error) {
	assertf(levels > 0, "texture %q needs at least one mip level", label)
	assertf(layers > 0, "texture %q needs at least one layer", label)
	assertf(extent.Width > 0 && extent.Height > 0 && extent.Depth > 0, "texture %q has an empty extent", label)

	img, err := g.dev.CreateImage(native.ImageDesc{
		Type:        imageType,
		Format:      format,
		Extent:      extent,
		MipLevels:   levels,
		ArrayLayers: layers,
		Samples:     samples,
		Usage:       usage,
		Memory:      memory,
		Flags:       flags,
		Label:       label,
	})
	if err != nil {
		return AllocatedTexture{}, err
	}
	t := AllocatedTexture{
		image:     img,
		usage:     usage,
		memory:    memory,
		extent:    extent,
		typ:       imageType,
		format:    format,
		features:  g.dev.FormatFeatures(format),
		samples:   samples,
		numLevels: levels,
		numLayers: layers,
		isOwning:  true,
		label:     label,
	}
	viewDesc := native.ImageViewDesc{
		ViewType: viewType,
		Format:   format,
		Range: native.SubresourceRange{
			Aspect:     format.Aspect(),
			LevelCount: native.RemainingMipLevels,
			LayerCount: layers,
		},
	}
	if t.view, err = g.dev.CreateImageView(img, viewDesc); err != nil {
		g.dev.DestroyImage(img)
		return AllocatedTexture{}, err
	}
	if usage&native.ImageUsageStorage != 0 {
		if t.storageView, err = g.dev.CreateImageView(img, viewDesc); err != nil {
			g.dev.DestroyImageView(t.view)
			g.dev.DestroyImage(img)
			return AllocatedTexture{}, err
		}
	}
	return t, nil
}

// DestroyTexture recycles the handle and defers destruction of the views
// and, for owned textures, the image.
func (g *GX) DestroyTexture(h TextureHandle) {
	if h.Empty() {
		return
	}
	t := g.textures.Get(h)
	if t == nil {
		log().Warn("destroy of a stale texture handle", "texture", h.String())
		return
	}
	view, storageView, image := t.view, t.storageView, t.image
	if view != nil {
		g.deferTask(func() { g.dev.DestroyImageView(view) }, SubmitHandle{})
	}
	if storageView != nil {
		g.deferTask(func() { g.dev.DestroyImageView(storageView) }, SubmitHandle{})
	}
	if t.isOwning {
		g.deferTask(func() { g.dev.DestroyImage(image) }, SubmitHandle{})
	}
	g.textures.Destroy(h)
	g.awaitingCreation = true
}

// GenerateMipmaps fills the lower mip levels of a texture from level 0.
func (g *GX) GenerateMipmaps(h TextureHandle) {
	if h.Empty() {
		log().Warn("generate mipmaps called with an empty handle")
		return
	}
	t := g.textures.Get(h)
	if t == nil {
		log().Warn("generate mipmaps called with a stale handle", "texture", h.String())
		return
	}
	if t.numLevels <= 1 {
		return
	}
	assertf(t.layout != native.LayoutUndefined, "texture %q has no contents to generate mipmaps from", t.label)
	w := g.imm.Acquire()
	t.generateMipmap(w.cmd)
	g.imm.Submit(w)
}

// ValidateRange reports whether r lies inside a texture of the given extent,
// level count and layer count, logging the reason when it does not.
func ValidateRange(extent native.Extent3D, numLevels, numLayers uint32, r TexRange) bool {
	if r.Dimensions.Width == 0 || r.Dimensions.Height == 0 || r.Dimensions.Depth == 0 || r.NumLayers == 0 || r.NumMipLevels == 0 {
		log().Error("texture range needs a non zero width, height, depth, layer count and level count")
		return false
	}
	if r.MipLevel >= numLevels || r.NumMipLevels > numLevels-r.MipLevel {
		log().Error("texture range levels exceed the texture's levels",
			"level", r.MipLevel, "count", r.NumMipLevels, "levels", numLevels)
		return false
	}
	if r.Layer >= numLayers || r.NumLayers > numLayers-r.Layer {
		log().Error("texture range layers exceed the texture's layers",
			"layer", r.Layer, "count", r.NumLayers, "layers", numLayers)
		return false
	}
	w := max(extent.Width>>r.MipLevel, 1)
	h := max(extent.Height>>r.MipLevel, 1)
	d := max(extent.Depth>>r.MipLevel, 1)
	if r.Dimensions.Width > w || r.Dimensions.Height > h || r.Dimensions.Depth > d {
		log().Error("texture range exceeds the texture's dimensions")
		return false
	}
	if r.Offset.X < 0 || r.Offset.Y < 0 || r.Offset.Z < 0 ||
		uint32(r.Offset.X) > w-r.Dimensions.Width ||
		uint32(r.Offset.Y) > h-r.Dimensions.Height ||
		uint32(r.Offset.Z) > d-r.Dimensions.Depth {
		log().Error("texture range exceeds the texture's dimensions once offset")
		return false
	}
	return true
}

// UploadTexture writes data into the region of the texture r selects.
func (g *GX) UploadTexture(h TextureHandle, data []byte, r TexRange) {
	if len(data) == 0 {
		log().Warn("upload of empty data", "texture", h.String())
		return
	}
	t := g.textures.Get(h)
	assertf(t != nil, "upload to invalid texture handle %s", h)
	if !ValidateRange(t.extent, t.numLevels, t.numLayers, r) {
		log().Warn("texture upload range failed validation", "texture", t.label)
		return
	}
	if need := uploadSize(t, r); uint64(len(data)) < need {
		log().Error("texture upload data is shorter than the range",
			"texture", t.label, "bytes", len(data), "need", need)
		return
	}
	if t.typ == native.ImageType3D {
		g.staging.ImageData3D(t, r.Offset, r.Dimensions, t.format, data)
		return
	}
	region := native.Rect2D{
		Offset: native.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: native.Extent2D{Width: r.Dimensions.Width, Height: r.Dimensions.Height},
	}
	g.staging.ImageData2D(t, region, r.MipLevel, r.NumMipLevels, r.Layer, r.NumLayers, t.format, data)
}

// DownloadTexture reads the region r of one layer into out. It blocks until
// the data is on the host and leaves the texture in the layout it was in.
func (g *GX) DownloadTexture(h TextureHandle, out []byte, r TexRange) {
	if len(out) == 0 {
		log().Warn("download into empty slice", "texture", h.String())
		return
	}
	t := g.textures.Get(h)
	if t == nil {
		log().Error("download from invalid texture", "texture", h.String())
		return
	}
	if !ValidateRange(t.extent, t.numLevels, t.numLayers, r) {
		log().Warn("texture download range failed validation", "texture", t.label)
		return
	}
	if need := downloadSize(t.format, r); uint64(len(out)) < need {
		log().Error("texture download buffer is shorter than the range",
			"texture", t.label, "bytes", len(out), "need", need)
		return
	}
	g.staging.GetImageData(t, r.Offset, r.Dimensions, native.SubresourceRange{
		Aspect:         t.format.Aspect(),
		BaseMipLevel:   r.MipLevel,
		LevelCount:     r.NumMipLevels,
		BaseArrayLayer: r.Layer,
		LayerCount:     r.NumLayers,
	}, t.format, out)
}

// uploadSize is the number of bytes the staging upload of r reads.
func uploadSize(t *AllocatedTexture, r TexRange) uint64 {
	if t.typ == native.ImageType3D {
		return downloadSize(t.format, r)
	}
	var layer uint64
	for i := uint32(0); i < r.NumMipLevels; i++ {
		layer += uint64(t.format.BytesPerLayer(r.Dimensions.Width, r.Dimensions.Height, i))
	}
	return layer * uint64(r.NumLayers)
}

func downloadSize(format native.Format, r TexRange) uint64 {
	return uint64(format.BytesPerLayer(r.Dimensions.Width, r.Dimensions.Height, 0)) * uint64(r.Dimensions.Depth)
}

func (g *GX) Texture(h TextureHandle) *AllocatedTexture { return g.textures.Get(h) }

func (g *GX) TextureFormat(h TextureHandle) native.Format {
	if t := g.textures.Get(h); t != nil {
		return t.format
	}
	return native.FormatUndefined
}

func (g *GX) TextureExtent(h TextureHandle) native.Extent2D {
	if t := g.textures.Get(h); t != nil {
		return native.Extent2D{Width: t.extent.Width, Height: t.extent.Height}
	}
	return native.Extent2D{}
}

func (g *GX) TextureImage(h TextureHandle) native.Image {
	if t := g.textures.Get(h); t != nil {
		return t.image
	}
	return nil
}

func (g *GX) TextureImageView(h TextureHandle) native.ImageView {
	if t := g.textures.Get(h); t != nil {
		return t.view
	}
	return nil
}

func (g *GX) TextureLayout(h TextureHandle) native.Layout {
	if t := g.textures.Get(h); t != nil {
		return t.layout
	}
	return native.LayoutUndefined
}

func (g *GX) TextureSampleCount(h TextureHandle) native.SampleCount {
	if t := g.textures.Get(h); t != nil {
		return t.samples
	}
	return 0
}
