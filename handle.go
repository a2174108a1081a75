package gx

import "fmt"

// Handle references an entry of a HandlePool. The zero value is the empty
// handle. A handle outlives its object safely: once the object is destroyed
// the generation no longer matches and lookups return nil.
type Handle[T any] struct {
	index uint32
	gen   uint32
}

func (h Handle[T]) Index() uint32 { return h.index }
func (h Handle[T]) Gen() uint32   { return h.gen }
func (h Handle[T]) Empty() bool   { return h.gen == 0 }
func (h Handle[T]) Valid() bool   { return h.gen != 0 }

// Uint64 packs the handle for use as a push constant or map key.
func (h Handle[T]) Uint64() uint64 {
	return uint64(h.gen)<<32 | uint64(h.index)
}

func (h Handle[T]) String() string {
	if h.Empty() {
		return "handle(empty)"
	}
	return fmt.Sprintf("handle(%d:%d)", h.index, h.gen)
}

type (
	BufferHandle   = Handle[AllocatedBuffer]
	TextureHandle  = Handle[AllocatedTexture]
	SamplerHandle  = Handle[AllocatedSampler]
	ShaderHandle   = Handle[ShaderModule]
	PipelineHandle = Handle[RenderPipeline]
)
