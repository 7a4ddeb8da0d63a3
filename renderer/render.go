// Copyright 2022 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"honnef.co/go/safeish"

	"github.com/cassiagpu/tilecast/mem"
	"github.com/cassiagpu/tilecast/profiler"
	"github.com/cassiagpu/tilecast/psegment"
)

// Shaders names the two compute shader entry points the pipeline
// dispatches, grounded in jello's FullShaders but collapsed to the
// tile-rasterizer's fixed two-stage pipeline.
type Shaders struct {
	TileRangeBuild   ShaderID
	TileRowComposite ShaderID
}

// Render carries the state RenderEncoding produces and DownloadImage
// needs once the GPU work is recorded.
type Render struct {
	outImage ImageProxy
}

func (r *Render) OutImage() ImageProxy {
	return r.outImage
}

// RenderEncoding records the pipeline's two dispatches: a tile-range
// build pass over the sorted psegment stream followed by one
// tile-row-compositor workgroup per tile row. Grounded in jello's
// RenderEncodingCoarse, trimmed from a dozen-stage path pipeline down to
// these two stages.
func (rd *Renderer) RenderEncoding(
	arena *mem.Arena,
	r *Render,
	segs []psegment.PSegment,
	stylings []StylingRecord,
	cfg *RenderConfig,
	shaders *Shaders,
	pgroup profiler.ProfilerGroup,
) Recording {
	pgroup = pgroup.Start("RenderEncoding")
	defer pgroup.End()

	var recording Recording

	segmentsBuf := recording.Upload(arena, "segments", safeish.SliceCast[[]byte](segs))
	stylingsBuf := recording.Upload(arena, "stylings", safeish.SliceCast[[]byte](stylings))
	configBuf := recording.UploadUniform(arena, "config", safeish.AsBytes(&cfg.Uniform))

	tileRangesBuf := NewBufferProxy(uint64(cfg.BufferSizes.TileRanges.SizeInBytes()), "tileRanges")
	recording.ClearAll(arena, tileRangesBuf)

	recording.Dispatch(
		arena,
		shaders.TileRangeBuild,
		cfg.WorkgroupCounts.TileRangeBuild,
		mem.MakeSlice(arena, []ResourceProxy{
			configBuf.Resource(),
			segmentsBuf.Resource(),
			tileRangesBuf.Resource(),
		}),
	)

	carrySpillBuf := NewBufferProxy(uint64(cfg.BufferSizes.CarrySpill.SizeInBytes()), "carrySpill")
	recording.ClearAll(arena, carrySpillBuf)

	outImage := NewImageProxy(cfg.Uniform.Width, cfg.Uniform.Height, RGBA16Float)

	recording.Dispatch(
		arena,
		shaders.TileRowComposite,
		cfg.WorkgroupCounts.TileRowComposite,
		mem.MakeSlice(arena, []ResourceProxy{
			configBuf.Resource(),
			segmentsBuf.Resource(),
			tileRangesBuf.Resource(),
			stylingsBuf.Resource(),
			carrySpillBuf.Resource(),
			outImage.Resource(),
		}),
	)

	recording.FreeResource(arena, segmentsBuf.Resource())
	recording.FreeResource(arena, stylingsBuf.Resource())
	recording.FreeResource(arena, tileRangesBuf.Resource())
	recording.FreeResource(arena, carrySpillBuf.Resource())

	r.outImage = outImage
	return recording
}

type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

// RenderFull records the full pipeline and returns the recording
// together with the resource the caller must download to retrieve the
// composited image.
func (rd *Renderer) RenderFull(
	arena *mem.Arena,
	segs []psegment.PSegment,
	stylings []StylingRecord,
	cfg *RenderConfig,
	shaders *Shaders,
	pgroup profiler.ProfilerGroup,
) (Recording, ImageProxy) {
	pgroup = pgroup.Start("RenderFull")
	defer pgroup.End()

	var render Render
	recording := rd.RenderEncoding(arena, &render, segs, stylings, cfg, shaders, pgroup)
	outImage := render.OutImage()
	recording.DownloadImage(arena, outImage)
	return recording, outImage
}
