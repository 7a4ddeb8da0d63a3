// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package psegment

import (
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		f    Fields
	}{
		{"zero", Fields{}},
		{"positive tile", Fields{TileX: 5, TileY: 7, Layer: 42, LocalX: 3, LocalY: 4, Area: 256, Cover: 16}},
		{"negative tile x", Fields{TileX: -1, TileY: 0, Layer: 0, LocalX: 7, LocalY: 2, Area: 0, Cover: -16}},
		{"max layer", Fields{TileX: 100, TileY: 100, Layer: 0xFFFF, LocalX: 7, LocalY: 7, Area: 511, Cover: -32}},
		{"min area and cover", Fields{Area: -512, Cover: -32}},
		{"negative tile y", Fields{TileX: 3, TileY: -1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.f.Encode()
			got := Decode(s)
			if got.TileX != tt.f.TileX {
				t.Errorf("TileX = %d, want %d", got.TileX, tt.f.TileX)
			}
			if got.TileY != tt.f.TileY {
				t.Errorf("TileY = %d, want %d", got.TileY, tt.f.TileY)
			}
			if got.Layer != tt.f.Layer {
				t.Errorf("Layer = %d, want %d", got.Layer, tt.f.Layer)
			}
			if got.LocalX != tt.f.LocalX {
				t.Errorf("LocalX = %d, want %d", got.LocalX, tt.f.LocalX)
			}
			if got.LocalY != tt.f.LocalY {
				t.Errorf("LocalY = %d, want %d", got.LocalY, tt.f.LocalY)
			}
			if got.Area != tt.f.Area {
				t.Errorf("Area = %d, want %d", got.Area, tt.f.Area)
			}
			if got.Cover != tt.f.Cover {
				t.Errorf("Cover = %d, want %d", got.Cover, tt.f.Cover)
			}
			if got.IsNone != tt.f.IsNone {
				t.Errorf("IsNone = %v, want %v", got.IsNone, tt.f.IsNone)
			}
		})
	}
}

func TestIsNoneSentinel(t *testing.T) {
	if !IsNone(None) {
		t.Fatal("None constant must decode as a sentinel")
	}
	s := Fields{IsNone: true, TileX: 5, Layer: 9}.Encode()
	if !IsNone(s) {
		t.Fatal("expected IsNone to be set")
	}
}

func TestSortOrdersSentinelsLast(t *testing.T) {
	a := Fields{TileX: 1, TileY: 1}.Encode()
	b := Fields{IsNone: true}.Encode()
	c := Fields{TileX: 0, TileY: 0}.Encode()
	segs := []PSegment{a, b, c}
	Sort(segs)
	if !IsSorted(segs) {
		t.Fatal("Sort did not produce a sorted slice")
	}
	if IsNone(segs[0]) || IsNone(segs[1]) {
		t.Fatal("sentinel sorted before a non-sentinel")
	}
	if !IsNone(segs[2]) {
		t.Fatal("sentinel did not sort to the tail")
	}
}

func TestSortKeyMonotonicity(t *testing.T) {
	// tile_y takes priority over tile_x, which takes priority over layer.
	lowTileY := Fields{TileY: 0, TileX: 100, Layer: 0xFFFF}.Encode()
	highTileY := Fields{TileY: 1, TileX: -1, Layer: 0}.Encode()
	if lowTileY >= highTileY {
		t.Fatal("tile_y did not dominate the sort key")
	}

	lowTileX := Fields{TileY: 0, TileX: -1, Layer: 0xFFFF}.Encode()
	highTileX := Fields{TileY: 0, TileX: 0, Layer: 0}.Encode()
	if lowTileX >= highTileX {
		t.Fatal("tile_x did not dominate layer in the sort key")
	}

	lowLayer := Fields{TileY: 0, TileX: 0, Layer: 0, LocalY: 7}.Encode()
	highLayer := Fields{TileY: 0, TileX: 0, Layer: 1, LocalY: 0}.Encode()
	if lowLayer >= highLayer {
		t.Fatal("layer did not dominate local_y in the sort key")
	}
}
