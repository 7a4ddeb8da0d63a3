// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"fmt"

	"github.com/cassiagpu/tilecast/engine/wgpu_engine/shaders"
	"github.com/cassiagpu/tilecast/mem"
	"github.com/cassiagpu/tilecast/psegment"
	"github.com/cassiagpu/tilecast/renderer"
	"honnef.co/go/wgpu"
)

// outImageFormat is the only texture format the pipeline ever writes
// to: the half-float RGBA output image.
const outImageFormat = wgpu.TextureFormatRGBA16Float

// RendererOptions configures a new Engine. There is no CPU fallback
// and no presentation surface, so unlike jello's RendererOptions this
// carries nothing beyond what device creation already settled.
type RendererOptions struct{}

var bindTypeMapping = [...]renderer.BindType{
	shaders.Buffer:      {Type: renderer.BindTypeBuffer},
	shaders.BufReadOnly: {Type: renderer.BindTypeBufReadOnly},
	shaders.Uniform:     {Type: renderer.BindTypeUniform},
	shaders.Image:       {Type: renderer.BindTypeImage},
}

// addShaders registers the pipeline's two compute shaders with the
// engine and returns the IDs it assigned to them.
func (eng *Engine) addShaders() renderer.Shaders {
	add := func(sh shaders.ComputeShader) renderer.ShaderID {
		bindings := make([]renderer.BindType, len(sh.Bindings))
		for i, b := range sh.Bindings {
			bindings[i] = bindTypeMapping[b]
		}
		if sh.WGSL == "" {
			panic(fmt.Sprintf("shader %q has no code", sh.Name))
		}
		return eng.addShader(sh.Name, sh.WGSL, bindings)
	}

	out := renderer.Shaders{
		TileRangeBuild:   add(shaders.TileRangeBuild),
		TileRowComposite: add(shaders.TileRowComposite),
	}
	eng.shaderSet = out
	return out
}

func imageFormatToWGPU(f renderer.ImageFormat) wgpu.TextureFormat {
	switch f {
	case renderer.RGBA16Float:
		return outImageFormat
	default:
		panic(fmt.Sprintf("unhandled value %d", f))
	}
}

// Render runs the full tile-rasterizer pipeline against segs and
// stylings and returns the composited image as tightly packed
// RGBA16Float rows. Grounded in jello's RenderToTexture, with the
// surface/blit stage replaced by a buffer download since this engine
// has no presentation target.
func (eng *Engine) Render(
	arena *mem.Arena,
	queue *wgpu.Queue,
	segs []psegment.PSegment,
	stylings []renderer.StylingRecord,
	cfg *renderer.RenderConfig,
	pgroup *ProfilerGroup,
) []byte {
	pgroup = pgroup.Nest("Render")
	defer pgroup.End()

	rd := renderer.New()
	recording, outImage := rd.RenderFull(arena, segs, stylings, cfg, &eng.shaderSet, pgroup)
	eng.RunRecording(arena, queue, &recording, "render", pgroup)
	eng.Device.Poll(true)

	buf, ok := eng.getDownload(outImage)
	if !ok {
		panic("no download recorded for output image")
	}
	defer eng.freeDownload(outImage)

	format := imageFormatToWGPU(outImage.Format)
	blockSize, ok := format.BlockCopySize(wgpu.TextureAspectAll)
	if !ok {
		panic("image format must have a valid block size")
	}
	srcStride := nextMultipleOf(outImage.Width*blockSize, 256)
	dstStride := outImage.Width * blockSize

	<-buf.Map(eng.Device, wgpu.MapModeRead, 0, int(srcStride)*int(outImage.Height))
	mapped := buf.ReadOnlyMappedRange(0, int(srcStride)*int(outImage.Height))
	out := make([]byte, dstStride*outImage.Height)
	for y := uint32(0); y < outImage.Height; y++ {
		src := mapped[y*srcStride : y*srcStride+dstStride]
		dst := out[y*dstStride : y*dstStride+dstStride]
		copy(dst, src)
	}
	buf.Unmap()
	return out
}
