package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

type image struct {
	vk     vk.Image
	memory memoryRange
	// owned is false for swapchain images, which are released with their
	// swapchain.
	owned bool
	label string
}

func (i *image) ImageHandle() uintptr { return uintptr(unsafe.Pointer(i.vk)) }

type imageView struct {
	vk vk.ImageView
}

func (v *imageView) ImageViewHandle() uintptr { return uintptr(unsafe.Pointer(v.vk)) }

type sampler struct {
	vk vk.Sampler
}

func (s *sampler) SamplerHandle() uintptr { return uintptr(unsafe.Pointer(s.vk)) }

type shaderModule struct {
	vk vk.ShaderModule
}

func (s *shaderModule) ShaderModuleHandle() uintptr { return uintptr(unsafe.Pointer(s.vk)) }

func extent3D(e native.Extent3D) vk.Extent3D {
	return vk.Extent3D{Width: e.Width, Height: e.Height, Depth: e.Depth}
}

func offset3D(o native.Offset3D) vk.Offset3D {
	return vk.Offset3D{X: o.X, Y: o.Y, Z: o.Z}
}

func subresourceRange(r native.SubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(r.Aspect),
		BaseMipLevel:   r.BaseMipLevel,
		LevelCount:     r.LevelCount,
		BaseArrayLayer: r.BaseArrayLayer,
		LayerCount:     r.LayerCount,
	}
}

func subresourceLayers(l native.SubresourceLayers) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(l.Aspect),
		MipLevel:       l.MipLevel,
		BaseArrayLayer: l.BaseArrayLayer,
		LayerCount:     l.LayerCount,
	}
}

func (d *Backend) CreateImage(desc native.ImageDesc) (native.Image, error) {
	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         vk.ImageCreateFlags(desc.Flags),
		ImageType:     vk.ImageType(desc.Type),
		Format:        vk.Format(desc.Format),
		Extent:        extent3D(desc.Extent),
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.ArrayLayers,
		Samples:       vk.SampleCountFlagBits(desc.Samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &image{owned: true, label: desc.Label}
	if err := vk.Error(vk.CreateImage(d.device, &createInfo, nil, &img.vk)); err != nil {
		return nil, errors.Wrapf(err, "create image %q", desc.Label)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, img.vk, &req)
	req.Deref()
	mem, err := d.memory.allocate(req, desc.Memory)
	if err != nil {
		vk.DestroyImage(d.device, img.vk, nil)
		return nil, errors.Wrapf(err, "allocate memory for image %q", desc.Label)
	}
	img.memory = mem
	if err := vk.Error(vk.BindImageMemory(d.device, img.vk, mem.block.memory, vk.DeviceSize(mem.offset()))); err != nil {
		d.memory.free(mem)
		vk.DestroyImage(d.device, img.vk, nil)
		return nil, errors.Wrapf(err, "bind memory for image %q", desc.Label)
	}
	return img, nil
}

func (d *Backend) DestroyImage(ni native.Image) {
	img := ni.(*image)
	if !img.owned {
		return
	}
	vk.DestroyImage(d.device, img.vk, nil)
	d.memory.free(img.memory)
}

func (d *Backend) CreateImageView(ni native.Image, desc native.ImageViewDesc) (native.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    ni.(*image).vk,
		ViewType: vk.ImageViewType(desc.ViewType),
		Format:   vk.Format(desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange(desc.Range),
	}
	v := &imageView{}
	if err := vk.Error(vk.CreateImageView(d.device, &createInfo, nil, &v.vk)); err != nil {
		return nil, errors.Wrap(err, "create image view")
	}
	return v, nil
}

func (d *Backend) DestroyImageView(v native.ImageView) {
	vk.DestroyImageView(d.device, v.(*imageView).vk, nil)
}

func (d *Backend) CreateSampler(desc native.SamplerDesc) (native.Sampler, error) {
	maxLod := desc.MaxLod
	if !desc.MipmapEnabled {
		maxLod = 0
	}
	createInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        vk.Filter(desc.MagFilter),
		MinFilter:        vk.Filter(desc.MinFilter),
		MipmapMode:       vk.SamplerMipmapMode(desc.MipmapMode),
		AddressModeU:     vk.SamplerAddressMode(desc.AddressU),
		AddressModeV:     vk.SamplerAddressMode(desc.AddressV),
		AddressModeW:     vk.SamplerAddressMode(desc.AddressW),
		AnisotropyEnable: bool32(desc.Anisotropy),
		MaxAnisotropy:    desc.MaxAnisotropy,
		CompareOp:        vk.CompareOpAlways,
		MinLod:           desc.MinLod,
		MaxLod:           maxLod,
		BorderColor:      vk.BorderColorIntOpaqueBlack,
	}
	s := &sampler{}
	if err := vk.Error(vk.CreateSampler(d.device, &createInfo, nil, &s.vk)); err != nil {
		return nil, errors.Wrapf(err, "create sampler %q", desc.Label)
	}
	return s, nil
}

func (d *Backend) DestroySampler(s native.Sampler) {
	vk.DestroySampler(d.device, s.(*sampler).vk, nil)
}

func (d *Backend) CreateShaderModule(spirv []byte) (native.ShaderModule, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, errors.Newf("spirv size %d is not a multiple of 4", len(spirv))
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(spirv)),
		PCode:    bytesAsUint32(spirv),
	}
	m := &shaderModule{}
	if err := vk.Error(vk.CreateShaderModule(d.device, &createInfo, nil, &m.vk)); err != nil {
		return nil, errors.Wrap(err, "create shader module")
	}
	return m, nil
}

func (d *Backend) DestroyShaderModule(m native.ShaderModule) {
	vk.DestroyShaderModule(d.device, m.(*shaderModule).vk, nil)
}
