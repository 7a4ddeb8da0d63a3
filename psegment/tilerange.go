// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package psegment

// TileRange is a half-open [Start, End) slice of indices into a sorted
// psegment array, all sharing one tile's (tile_x, tile_y).
type TileRange struct {
	Start uint32
	End   uint32
}

// TileRangeIndex returns the index into a tile-range table for the tile
// at (tileX, tileY), per the addressing scheme of §TileRange: indexed by
// (tile_x+1) + (widthInTiles+1)*tile_y, so the tile_x == -1 column
// (off-screen-left spill) takes the first slot of each row.
func TileRangeIndex(tileX, tileY int32, widthInTiles uint32) int {
	return int(tileX+1) + int(widthInTiles+1)*int(tileY)
}

// TileRangeCount returns the size of the tile-range table for an image
// widthInTiles by heightInTiles tiles wide, including the tile_x == -1
// column.
func TileRangeCount(widthInTiles, heightInTiles uint32) int {
	return int(widthInTiles+1) * int(heightInTiles)
}

func tileInBounds(tileX, tileY int32, widthInTiles, heightInTiles uint32) bool {
	return tileX >= -1 && tileX < int32(widthInTiles) &&
		tileY >= 0 && tileY < int32(heightInTiles)
}

// BuildTileRanges scans the sorted psegment array segs and returns the
// tile-range table described by §TileRange and §Tile-range builder: one
// (start, end) pair per addressable tile, all initially (0, 0).
//
// segs must already satisfy the canonical sort order (see Sort);
// BuildTileRanges does not re-sort it. The algorithm below runs each
// comparison between psegment i and i+1 independently, mirroring the
// single parallel pass the GPU tile-range-build shader performs — the
// sequential loop here produces the identical table because each
// (start, end) slot is written by at most one comparison regardless of
// evaluation order.
func BuildTileRanges(segs []PSegment, widthInTiles, heightInTiles uint32) []TileRange {
	ranges := make([]TileRange, TileRangeCount(widthInTiles, heightInTiles))
	n := len(segs)
	for i := 0; i < n; i++ {
		s := segs[i]
		sNone := IsNone(s)
		sx, sy := TileX(s), TileY(s)

		if i == n-1 {
			if !sNone && tileInBounds(sx, sy, widthInTiles, heightInTiles) {
				idx := TileRangeIndex(sx, sy, widthInTiles)
				ranges[idx].End = uint32(i + 1)
			}
			continue
		}

		next := segs[i+1]
		nNone := IsNone(next)
		nx, ny := TileX(next), TileY(next)

		differs := nNone || sx != nx || sy != ny
		if !differs {
			continue
		}

		if !sNone && tileInBounds(sx, sy, widthInTiles, heightInTiles) {
			idx := TileRangeIndex(sx, sy, widthInTiles)
			ranges[idx].End = uint32(i + 1)
		}
		if !nNone && tileInBounds(nx, ny, widthInTiles, heightInTiles) {
			idx := TileRangeIndex(nx, ny, widthInTiles)
			ranges[idx].Start = uint32(i + 1)
		}
	}
	return ranges
}
