// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package shaders holds the WGSL source and bind-group layout of the
// pipeline's two compute shaders.
package shaders

type BindType int

const (
	Buffer BindType = iota + 1
	BufReadOnly
	Uniform
	Image
)

func (typ BindType) IsMutable() bool {
	return typ == Buffer || typ == Image
}

type ComputeShader struct {
	Name     string
	Bindings []BindType
	WGSL     string
}

// TileRangeBuild scans the sorted psegment buffer and fills in the
// tile-range table, one worker per psegment index.
var TileRangeBuild = ComputeShader{
	Name: "tile_range_build",
	Bindings: []BindType{
		Uniform,     // config
		BufReadOnly, // segments
		Buffer,      // tile_ranges
	},
	WGSL: tileRangeBuildWGSL,
}

// TileRowComposite sweeps one tile row left to right, merging carried
// cover state with the row's psegments and compositing styled layers
// into the output texture.
var TileRowComposite = ComputeShader{
	Name: "tile_row_composite",
	Bindings: []BindType{
		Uniform,     // config
		BufReadOnly, // segments
		BufReadOnly, // tile_ranges
		BufReadOnly, // stylings
		Buffer,      // carry_spill
		Image,       // out_image
	},
	WGSL: tileRowCompositeWGSL,
}
