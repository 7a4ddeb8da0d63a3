// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package rasterizer defines the tile-row compositor as a Rasterizer
// and provides a pure-Go reference implementation of it, mirroring the
// GPU kernel's carry-queue/layer-merge/prefix-sum/blend algorithm step
// for step. It exists to give this module's tests something to check
// the WGSL kernel's behavior against without a GPU.
package rasterizer

import (
	"context"

	"github.com/cassiagpu/tilecast/psegment"
	"github.com/cassiagpu/tilecast/renderer"
	"github.com/cassiagpu/tilecast/styling"
)

// Texture is a composited RGBA image, row-major, one [4]float32 per
// pixel in premultiplied linear color.
type Texture struct {
	Width, Height uint32
	Pixels        []float32
}

func NewTexture(width, height uint32) Texture {
	return Texture{
		Width:  width,
		Height: height,
		Pixels: make([]float32, 4*width*height),
	}
}

func (t *Texture) At(x, y uint32) [4]float32 {
	i := 4 * (y*t.Width + x)
	return [4]float32{t.Pixels[i], t.Pixels[i+1], t.Pixels[i+2], t.Pixels[i+3]}
}

func (t *Texture) Set(x, y uint32, c [4]float32) {
	i := 4 * (y*t.Width + x)
	copy(t.Pixels[i:i+4], c[:])
}

// Rasterizer is the sum type §9's "polymorphic rasterizer" design note
// describes: a single operation producing a composited Texture from a
// sorted psegment stream and a styling table. Reference below satisfies
// it. The GPU tile-row compositor (engine/wgpu_engine.Engine.Render)
// has a different signature and does not implement this interface.
type Rasterizer interface {
	Rasterize(ctx context.Context, segs []psegment.PSegment, stylings []styling.Styling, cfg *renderer.RenderConfig) (Texture, error)
}

// layerCarry is a per-row cover delta leaving one tile column for the
// next, tagged by the layer it belongs to.
type layerCarry struct {
	layer uint16
	rows  [psegment.TileHeight]int32
}

// invalidLayer stands in for an exhausted stream when merging carries
// with psegments by ascending layer, mirroring the WGSL kernel's
// INVALID_LAYER sentinel.
const invalidLayer = 0xFFFFFFFF

// Reference is the pure-Go tile-row compositor: no GPU, no
// workgroups, no atomics — every "cooperative" step of §4.3 is done by
// a single goroutine processing one row at a time, in the same order
// the GPU kernel's barriers impose. Carry-queue capacity bookkeeping
// (§4.3.4) is modeled by dropping carries beyond
// WorkgroupCarries+CarrySpillsPerRow for the row, matching the
// documented overflow behavior.
type Reference struct {
	WorkgroupCarries uint32
}

func NewReference() *Reference {
	return &Reference{WorkgroupCarries: renderer.DefaultWorkgroupCarries}
}

func (r *Reference) Rasterize(
	ctx context.Context,
	segs []psegment.PSegment,
	stylings []styling.Styling,
	cfg *renderer.RenderConfig,
) (Texture, error) {
	if err := ctx.Err(); err != nil {
		return Texture{}, err
	}

	width := cfg.Uniform.Width
	height := cfg.Uniform.Height
	widthInTiles := cfg.Uniform.WidthInTiles
	heightInTiles := cfg.Uniform.HeightInTiles
	maxCarries := r.WorkgroupCarries + cfg.Uniform.CarrySpillsPerRow

	tex := NewTexture(width, height)
	ranges := psegment.BuildTileRanges(segs, widthInTiles, heightInTiles)

	for row := uint32(0); row < heightInTiles; row++ {
		incoming := rowSetup(segs, ranges, widthInTiles, int32(row))

		for tx := uint32(0); tx < widthInTiles; tx++ {
			tr := ranges[psegment.TileRangeIndex(int32(tx), int32(row), widthInTiles)]
			outgoing, accum := compositeTile(segs, stylings, tr, incoming)
			incoming = capCarries(outgoing, maxCarries)

			baseX := tx * psegment.TileWidth
			baseY := row * psegment.TileHeight
			for ly := uint32(0); ly < psegment.TileHeight; ly++ {
				py := baseY + ly
				if py >= height {
					continue
				}
				for lx := uint32(0); lx < psegment.TileWidth; lx++ {
					px := baseX + lx
					if px >= width {
						continue
					}
					tex.Set(px, py, accum[lx][ly])
				}
			}
		}
	}

	return tex, nil
}

// rowSetup folds the tile_x == -1 column's psegments (off-screen-left
// cover spill) into the row's initial incoming carry queue, per
// §4.3.1: group contiguous equal-layer psegments, sum cover per
// local_y, emit a carry unless every row is zero.
func rowSetup(segs []psegment.PSegment, ranges []psegment.TileRange, widthInTiles uint32, row int32) []layerCarry {
	tr := ranges[psegment.TileRangeIndex(-1, row, widthInTiles)]
	var out []layerCarry
	i := tr.Start
	for i < tr.End {
		layer := psegment.Layer(segs[i])
		var rows [psegment.TileHeight]int32
		j := i
		for j < tr.End && psegment.Layer(segs[j]) == layer {
			rows[psegment.LocalY(segs[j])] += psegment.Cover(segs[j])
			j++
		}
		if !allZero(rows) {
			out = append(out, layerCarry{layer: layer, rows: rows})
		}
		i = j
	}
	return out
}

// compositeTile runs one tile's merge/flush loop (§4.3.2-4.3.3) and
// returns the outgoing carry queue along with the composited pixels
// for this tile.
func compositeTile(
	segs []psegment.PSegment,
	stylings []styling.Styling,
	tr psegment.TileRange,
	incoming []layerCarry,
) (outgoing []layerCarry, accum [psegment.TileWidth][psegment.TileHeight][4]float32) {
	var areas, covers [psegment.TileWidth + 1][psegment.TileHeight]int32

	activeLayer := uint32(invalidLayer)
	flush := func() {
		if activeLayer == invalidLayer {
			return
		}
		// covers[0] holds the incoming carry, covers[x+1] holds the
		// delta contributed by local_x == x. running is the cumulative
		// delta through the current column, stored back into
		// covers[x] before folding in the next column, so the pixel
		// loop below reads each pixel's total coverage directly.
		var outRows [psegment.TileHeight]int32
		for y := 0; y < psegment.TileHeight; y++ {
			running := covers[0][y]
			for x := 0; x < psegment.TileWidth; x++ {
				covers[x][y] = running
				running += covers[x+1][y]
			}
			outRows[y] = running
		}
		if !allZero(outRows) {
			outgoing = append(outgoing, layerCarry{layer: uint16(activeLayer), rows: outRows})
		}

		st := styling.Styling{}
		if int(activeLayer) < len(stylings) {
			st = stylings[activeLayer]
		}
		for y := 0; y < psegment.TileHeight; y++ {
			for x := 0; x < psegment.TileWidth; x++ {
				coverage := areas[x][y] + psegment.PixelSize*covers[x][y]
				alpha := styling.CoverageToAlpha(coverage, st.FillRule)
				a := alpha * st.Fill[3]
				src := [3]float32{st.Fill[0] * a, st.Fill[1] * a, st.Fill[2] * a}
				dst := accum[x][y]
				blended := styling.Blend(st.BlendMode, [3]float32{dst[0], dst[1], dst[2]}, src)
				accum[x][y] = styling.Composite(dst, blended, a)
			}
		}

		areas = [psegment.TileWidth + 1][psegment.TileHeight]int32{}
		covers = [psegment.TileWidth + 1][psegment.TileHeight]int32{}
	}

	incomingIdx := 0
	segIdx := tr.Start
	for {
		carryLayer := uint32(invalidLayer)
		if incomingIdx < len(incoming) {
			carryLayer = uint32(incoming[incomingIdx].layer)
		}
		segLayer := uint32(invalidLayer)
		if segIdx < tr.End {
			segLayer = uint32(psegment.Layer(segs[segIdx]))
		}
		if carryLayer == invalidLayer && segLayer == invalidLayer {
			break
		}

		minLayer := carryLayer
		if segLayer < minLayer {
			minLayer = segLayer
		}
		if minLayer != activeLayer {
			flush()
			activeLayer = minLayer
		}

		if carryLayer == minLayer {
			for y := 0; y < psegment.TileHeight; y++ {
				covers[0][y] += incoming[incomingIdx].rows[y]
			}
			incomingIdx++
		} else {
			for segIdx < tr.End && uint32(psegment.Layer(segs[segIdx])) == minLayer {
				s := segs[segIdx]
				lx, ly := psegment.LocalX(s), psegment.LocalY(s)
				covers[lx+1][ly] += psegment.Cover(s)
				areas[lx][ly] += psegment.Area(s)
				segIdx++
			}
		}
	}
	flush()

	return outgoing, accum
}

func capCarries(cs []layerCarry, max uint32) []layerCarry {
	if uint32(len(cs)) > max {
		return cs[:max]
	}
	return cs
}

func allZero(rows [psegment.TileHeight]int32) bool {
	for _, v := range rows {
		if v != 0 {
			return false
		}
	}
	return true
}
