package gx

import "github.com/celer/gx/native"

type stageAccess struct {
	stage  native.PipelineStage
	access native.Access
}

// layoutStageAccess returns the pipeline stages that touch an image in the
// given layout and how they access it. Barriers use the entry of the old
// layout as source scope and the entry of the new layout as destination.
func layoutStageAccess(l native.Layout) stageAccess {
	switch l {
	case native.LayoutUndefined:
		return stageAccess{native.StageTopOfPipe, native.AccessNone}
	case native.LayoutColorAttachment:
		return stageAccess{native.StageColorAttachmentOutput, native.AccessColorAttachmentRead | native.AccessColorAttachmentWrite}
	case native.LayoutDepthStencilAttachment, native.LayoutDepthAttachment:
		return stageAccess{
			native.StageEarlyFragmentTests | native.StageLateFragmentTests,
			native.AccessDepthStencilRead | native.AccessDepthStencilWrite,
		}
	case native.LayoutShaderReadOnly, native.LayoutDepthStencilReadOnly, native.LayoutDepthReadOnly, native.LayoutReadOnly:
		return stageAccess{
			native.StageFragmentShader | native.StageComputeShader | native.StageVertexShader,
			native.AccessShaderRead,
		}
	case native.LayoutTransferSrc:
		return stageAccess{native.StageTransfer, native.AccessTransferRead}
	case native.LayoutTransferDst:
		return stageAccess{native.StageTransfer, native.AccessTransferWrite}
	case native.LayoutGeneral:
		return stageAccess{
			native.StageComputeShader | native.StageTransfer,
			native.AccessMemoryRead | native.AccessMemoryWrite | native.AccessTransferWrite,
		}
	case native.LayoutPresentSrc:
		return stageAccess{native.StageColorAttachmentOutput | native.StageComputeShader, native.AccessShaderWrite}
	}
	log().Warn("unsupported image layout in transition", "layout", l.String())
	return stageAccess{native.StageAllCommands, native.AccessMemoryRead | native.AccessMemoryWrite}
}

// attachmentLayout resolves the generic attachment layout to the specific
// one for a format.
func attachmentLayout(l native.Layout, f native.Format) native.Layout {
	if l != native.LayoutAttachment {
		return l
	}
	if f.IsDepthOrStencil() {
		return native.LayoutDepthStencilAttachment
	}
	return native.LayoutColorAttachment
}

func fullRange(f native.Format, levels, layers uint32) native.SubresourceRange {
	return native.SubresourceRange{
		Aspect:     f.Aspect(),
		LevelCount: levels,
		LayerCount: layers,
	}
}

func imageBarrier(img native.Image, src, dst stageAccess, oldLayout, newLayout native.Layout, r native.SubresourceRange) native.ImageBarrier {
	return native.ImageBarrier{
		Image:     img,
		SrcStage:  src.stage,
		SrcAccess: src.access,
		DstStage:  dst.stage,
		DstAccess: dst.access,
		OldLayout: oldLayout,
		NewLayout: newLayout,
		Range:     r,
	}
}
