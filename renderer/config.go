// Copyright 2023 the Vello Authors
// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"structs"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/cassiagpu/tilecast/psegment"
)

type WorkgroupSize [3]uint32

// ConfigUniform is the single uniform block the tile-range-build and
// tile-row-compositor shaders both read. It must be kept in sync with
// the definition in the embedded WGSL source (see engine/wgpu_engine).
type ConfigUniform struct {
	_ structs.HostLayout

	Width             uint32
	Height            uint32
	WidthInTiles      uint32
	HeightInTiles     uint32
	SegmentCount      uint32
	TileRangeCount    uint32
	CarrySpillsPerRow uint32
}

// RenderConfig bundles the uniform block with the host-side buffer
// sizes and workgroup counts derived from it, grounded in jello's split
// between ConfigUniform/WorkgroupCounts/BufferSizes.
type RenderConfig struct {
	Uniform         ConfigUniform
	WorkgroupCounts WorkgroupCounts
	BufferSizes     BufferSizes
}

// DefaultWorkgroupCarries and DefaultMaxSpillPerRow are the tuning
// constants §7 requires every implementation to document and expose.
// They bound the in-workgroup carry-queue capacity and the per-row global
// spill capacity respectively; a row that produces more than MaxSpillPerRow
// distinct-layer carries silently drops the excess, per the
// carry-spill-overflow error-handling policy.
const (
	DefaultWorkgroupCarries = 64
	DefaultMaxSpillPerRow   = 256
)

// NewRenderConfig derives a full RenderConfig for an image width x
// height pixels and a psegment/styling buffer of the given sizes.
func NewRenderConfig(width, height, segmentCount, stylingCount uint32) *RenderConfig {
	widthInTiles := nextMultipleOf(width, psegment.TileWidth) / psegment.TileWidth
	heightInTiles := nextMultipleOf(height, psegment.TileHeight) / psegment.TileHeight
	tileRangeCount := uint32(psegment.TileRangeCount(widthInTiles, heightInTiles))

	workgroupCounts := NewWorkgroupCounts(widthInTiles, heightInTiles, segmentCount)
	bufferSizes := NewBufferSizes(segmentCount, stylingCount, tileRangeCount, heightInTiles)

	return &RenderConfig{
		Uniform: ConfigUniform{
			Width:             width,
			Height:            height,
			WidthInTiles:      widthInTiles,
			HeightInTiles:     heightInTiles,
			SegmentCount:      segmentCount,
			TileRangeCount:    tileRangeCount,
			CarrySpillsPerRow: DefaultMaxSpillPerRow,
		},
		WorkgroupCounts: workgroupCounts,
		BufferSizes:     bufferSizes,
	}
}

// NewWorkgroupCounts computes the dispatch size of both compute
// stages: one worker per psegment for the tile-range builder, one
// workgroup per tile row for the tile-row compositor.
func NewWorkgroupCounts(widthInTiles, heightInTiles, segmentCount uint32) WorkgroupCounts {
	const tileRangeBuildWg = 256
	tileRangeBuildWgs := (segmentCount + tileRangeBuildWg - 1) / tileRangeBuildWg
	return WorkgroupCounts{
		TileRangeBuild:  WorkgroupSize{max(tileRangeBuildWgs, 1), 1, 1},
		TileRowComposite: WorkgroupSize{heightInTiles, 1, 1},
	}
}

type WorkgroupCounts struct {
	TileRangeBuild   WorkgroupSize
	TileRowComposite WorkgroupSize
}

// NewBufferSizes computes the byte sizes of every GPU buffer the
// pipeline needs: the two input buffers, the uniform block, the
// tile-range table, and the carry-spill buffer (sized 2 *
// maxSpillPerRow * heightInTiles entries per §4.3, one set per flip).
func NewBufferSizes(segmentCount, stylingCount, tileRangeCount, heightInTiles uint32) BufferSizes {
	return BufferSizes{
		Segments:   NewBufferSize[psegment.PSegment](segmentCount),
		Stylings:   NewBufferSize[StylingRecord](stylingCount),
		TileRanges: NewBufferSize[psegment.TileRange](tileRangeCount),
		CarrySpill: NewBufferSize[LayerCarryRecord](2 * DefaultMaxSpillPerRow * heightInTiles),
		Config:     NewBufferSize[ConfigUniform](1),
	}
}

type BufferSizes struct {
	Segments   BufferSize[psegment.PSegment]
	Stylings   BufferSize[StylingRecord]
	TileRanges BufferSize[psegment.TileRange]
	CarrySpill BufferSize[LayerCarryRecord]
	Config     BufferSize[ConfigUniform]
}

// StylingRecord is the GPU-visible layout of one Styling file record:
// {f32 fill[4]; u32 fill_rule; u32 blend_mode; u32 padding[2]}, 32
// bytes, matching §6's file format exactly.
type StylingRecord struct {
	_ structs.HostLayout

	Fill      [4]float32
	FillRule  uint32
	BlendMode uint32
	_         [2]uint32
}

// LayerCarryRecord is the GPU-visible layout of one spilled layer
// carry: a layer tag plus TileHeight signed per-row cover deltas.
type LayerCarryRecord struct {
	_ structs.HostLayout

	Layer uint32
	Rows  [psegment.TileHeight]int32
}

func nextMultipleOf[T constraints.Integer](x, y T) T {
	r := x % y
	if r == 0 {
		return x
	}
	return x + y - r
}

type BufferSize[T any] uint32

func NewBufferSize[T any](x uint32) BufferSize[T] {
	return BufferSize[T](max(x, 1))
}

func (s BufferSize[T]) SizeInBytes() uint32 {
	return uint32(s) * uint32(unsafe.Sizeof(*new(T)))
}
