package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/celer/gx/native"
)

type descriptorSetLayout struct {
	vk vk.DescriptorSetLayout
}

func (l *descriptorSetLayout) DescriptorSetLayoutHandle() uintptr {
	return uintptr(unsafe.Pointer(l.vk))
}

type descriptorPool struct {
	vk vk.DescriptorPool
}

func (p *descriptorPool) DescriptorPoolHandle() uintptr { return uintptr(unsafe.Pointer(p.vk)) }

type descriptorSet struct {
	vk vk.DescriptorSet
}

func (s *descriptorSet) DescriptorSetHandle() uintptr { return uintptr(unsafe.Pointer(s.vk)) }

func (d *Backend) CreateDescriptorSetLayout(desc native.DescriptorSetLayoutDesc) (native.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(desc.Bindings))
	flags := make([]vk.DescriptorBindingFlags, len(desc.Bindings))
	for i, b := range desc.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
		flags[i] = vk.DescriptorBindingFlags(b.Flags)
	}

	flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(flags)),
		PBindingFlags: flags,
	}
	cFlagsInfo, _ := flagsInfo.PassRef()
	defer flagsInfo.Free()

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(cFlagsInfo),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if desc.UpdateAfterBindPool {
		createInfo.Flags = vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit)
	}
	l := &descriptorSetLayout{}
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &createInfo, nil, &l.vk)); err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	return l, nil
}

func (d *Backend) DestroyDescriptorSetLayout(l native.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.device, l.(*descriptorSetLayout).vk, nil)
}

func (d *Backend) CreateDescriptorPool(desc native.DescriptorPoolDesc) (native.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{Type: vk.DescriptorType(s.Type), DescriptorCount: s.Count}
	}
	var flags vk.DescriptorPoolCreateFlagBits
	if desc.UpdateAfterBind {
		flags |= vk.DescriptorPoolCreateUpdateAfterBindBit
	}
	if desc.FreeSets {
		flags |= vk.DescriptorPoolCreateFreeDescriptorSetBit
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(flags),
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	p := &descriptorPool{}
	if err := vk.Error(vk.CreateDescriptorPool(d.device, &createInfo, nil, &p.vk)); err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	return p, nil
}

// DestroyDescriptorPool also frees every set allocated from the pool.
func (d *Backend) DestroyDescriptorPool(p native.DescriptorPool) {
	vk.DestroyDescriptorPool(d.device, p.(*descriptorPool).vk, nil)
}

func (d *Backend) AllocateDescriptorSet(p native.DescriptorPool, l native.DescriptorSetLayout) (native.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.(*descriptorPool).vk,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l.(*descriptorSetLayout).vk},
	}
	s := &descriptorSet{}
	if err := vk.Error(vk.AllocateDescriptorSets(d.device, &allocInfo, &s.vk)); err != nil {
		return nil, errors.Wrap(err, "allocate descriptor set")
	}
	return s, nil
}

func (d *Backend) UpdateDescriptorSets(writes []native.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		vw := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          w.Set.(*descriptorSet).vk,
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		switch {
		case len(w.Images) > 0:
			infos := make([]vk.DescriptorImageInfo, len(w.Images))
			for i, img := range w.Images {
				infos[i].ImageLayout = vk.ImageLayout(img.Layout)
				if img.View != nil {
					infos[i].ImageView = img.View.(*imageView).vk
				}
				if img.Sampler != nil {
					infos[i].Sampler = img.Sampler.(*sampler).vk
				}
			}
			vw.DescriptorCount = uint32(len(infos))
			vw.PImageInfo = infos
		case len(w.Buffers) > 0:
			infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
			for i, b := range w.Buffers {
				infos[i] = vk.DescriptorBufferInfo{
					Buffer: b.Buffer.(*buffer).vk,
					Offset: vk.DeviceSize(b.Offset),
					Range:  vk.DeviceSize(b.Range),
				}
			}
			vw.DescriptorCount = uint32(len(infos))
			vw.PBufferInfo = infos
		default:
			continue
		}
		vkWrites = append(vkWrites, vw)
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(vkWrites)), vkWrites, 0, nil)
}
