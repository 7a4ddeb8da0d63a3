// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package psegment

import "testing"

func TestBuildTileRangesEmpty(t *testing.T) {
	ranges := BuildTileRanges(nil, 4, 4)
	if len(ranges) != TileRangeCount(4, 4) {
		t.Fatalf("len(ranges) = %d, want %d", len(ranges), TileRangeCount(4, 4))
	}
	for i, r := range ranges {
		if r.Start != 0 || r.End != 0 {
			t.Fatalf("ranges[%d] = %+v, want zero", i, r)
		}
	}
}

func TestBuildTileRangesCorrectness(t *testing.T) {
	const widthInTiles, heightInTiles = 4, 4

	mk := func(tx, ty int32, layer uint16) PSegment {
		return Fields{TileX: tx, TileY: ty, Layer: layer}.Encode()
	}

	segs := []PSegment{
		mk(-1, 0, 0),
		mk(-1, 0, 1),
		mk(0, 0, 0),
		mk(0, 0, 0),
		mk(0, 0, 2),
		mk(1, 0, 0),
		mk(2, 1, 5),
		Fields{IsNone: true}.Encode(),
		Fields{IsNone: true}.Encode(),
	}
	if !IsSorted(segs) {
		t.Fatal("test fixture must already be in canonical sort order")
	}

	ranges := BuildTileRanges(segs, widthInTiles, heightInTiles)

	check := func(tx, ty int32, wantStart, wantEnd uint32) {
		idx := TileRangeIndex(tx, ty, widthInTiles)
		got := ranges[idx]
		if got.Start != wantStart || got.End != wantEnd {
			t.Errorf("tile (%d,%d): got [%d,%d), want [%d,%d)", tx, ty, got.Start, got.End, wantStart, wantEnd)
		}
	}

	check(-1, 0, 0, 2)
	check(0, 0, 2, 5)
	check(1, 0, 5, 6)
	check(2, 1, 6, 7)
	// An untouched tile stays zeroed.
	check(3, 3, 0, 0)

	// Invariant: every in-bounds tile's range exactly covers the
	// non-sentinel indices sharing that tile.
	for tileIdx, r := range ranges {
		for i := 0; i < len(segs); i++ {
			inRange := uint32(i) >= r.Start && uint32(i) < r.End
			s := segs[i]
			var belongs bool
			if !IsNone(s) {
				tx, ty := Tile(s)
				if tileInBounds(tx, ty, widthInTiles, heightInTiles) {
					belongs = TileRangeIndex(tx, ty, widthInTiles) == tileIdx
				}
			}
			if inRange && !belongs {
				t.Errorf("tile index %d claims index %d which does not belong to it", tileIdx, i)
			}
		}
	}
}

func TestBuildTileRangesDropsOutOfBounds(t *testing.T) {
	const widthInTiles, heightInTiles = 2, 2
	mk := func(tx, ty int32) PSegment {
		return Fields{TileX: tx, TileY: ty}.Encode()
	}
	segs := []PSegment{
		mk(5, 0),  // tile_x out of bounds
		mk(0, 10), // tile_y out of bounds
	}
	ranges := BuildTileRanges(segs, widthInTiles, heightInTiles)
	for i, r := range ranges {
		if r.Start != 0 || r.End != 0 {
			t.Fatalf("out-of-bounds psegments must not be recorded, ranges[%d] = %+v", i, r)
		}
	}
}

func TestBuildTileRangesLastElement(t *testing.T) {
	segs := []PSegment{
		Fields{TileX: 0, TileY: 0}.Encode(),
	}
	ranges := BuildTileRanges(segs, 4, 4)
	idx := TileRangeIndex(0, 0, 4)
	if ranges[idx].Start != 0 || ranges[idx].End != 1 {
		t.Fatalf("got %+v, want [0,1)", ranges[idx])
	}
}
