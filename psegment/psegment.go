// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package psegment implements the bit-packed pixel-segment format the
// rasterizer consumes: decode/encode of the 64-bit packed word and the
// canonical sort key it is delivered in.
package psegment

// TileWidthShift and TileHeightShift fix the tile size at 8x8 pixels.
// The psegment bit layout is derived for this exact precondition
// (16-TileWidthShift-TileHeightShift >= 0); the field widths below are
// computed from these shifts, and changing the tile size requires
// re-deriving them, so these are not runtime parameters.
const (
	TileWidthShift  = 3
	TileHeightShift = 3
	TileWidth       = 1 << TileWidthShift
	TileHeight      = 1 << TileHeightShift
)

// PixelSize is the cover scale factor: a full-column cover equals PixelArea.
const PixelSize = 16

// PixelArea is the area scale factor for full pixel coverage.
const PixelArea = 256

// Field widths, LSB to MSB.
const (
	coverBits   = 6
	areaBits    = 10
	localXBits  = TileWidthShift
	localYBits  = TileHeightShift
	layerBits   = 16
	tileXBits   = 16 - TileWidthShift
	tileYBits   = 15 - TileHeightShift
	isNoneBits  = 1
)

// Field offsets, LSB to MSB.
const (
	coverShift  = 0
	areaShift   = coverShift + coverBits
	localXShift = areaShift + areaBits
	localYShift = localXShift + localXBits
	layerShift  = localYShift + localYBits
	tileXShift  = layerShift + layerBits
	tileYShift  = tileXShift + tileXBits
	isNoneShift = tileYShift + tileYBits
)

func init() {
	if isNoneShift+isNoneBits != 64 {
		panic("psegment: field widths do not sum to 64 bits")
	}
}

// PSegment is a single 64-bit packed pixel segment. Its unsigned integer
// value is also its canonical sort key: ascending order on this value
// orders psegments by (is_none, tile_y, tile_x, layer, local_y, local_x),
// placing is_none=1 sentinels at the tail.
type PSegment uint64

// None is the sentinel psegment: is_none set, all other fields zero.
const None PSegment = PSegment(1) << isNoneShift

func mask(bits int) uint64 {
	return (uint64(1) << bits) - 1
}

func extractUnsigned(s PSegment, shift, bits int) uint64 {
	return (uint64(s) >> shift) & mask(bits)
}

func extractSigned(s PSegment, shift, bits int) int32 {
	v := extractUnsigned(s, shift, bits)
	signBit := uint64(1) << (bits - 1)
	if v&signBit != 0 {
		v -= signBit << 1
	}
	return int32(v)
}

// IsNone reports whether s is the sentinel value; sentinels may appear
// only at the tail of a sorted psegment stream and no other field of a
// sentinel is meaningful.
func IsNone(s PSegment) bool {
	return extractUnsigned(s, isNoneShift, isNoneBits) != 0
}

// Layer returns the styling-table index this psegment belongs to.
func Layer(s PSegment) uint16 {
	return uint16(extractUnsigned(s, layerShift, layerBits))
}

// TileX returns the psegment's tile column, which may be negative
// (tile_x == -1 marks off-screen-left cover spill).
func TileX(s PSegment) int32 {
	return extractSigned(s, tileXShift, tileXBits)
}

// TileY returns the psegment's tile row.
func TileY(s PSegment) int32 {
	return extractSigned(s, tileYShift, tileYBits)
}

// LocalX returns the psegment's column within its tile, 0..TileWidth-1.
func LocalX(s PSegment) uint8 {
	return uint8(extractUnsigned(s, localXShift, localXBits))
}

// LocalY returns the psegment's row within its tile, 0..TileHeight-1.
func LocalY(s PSegment) uint8 {
	return uint8(extractUnsigned(s, localYShift, localYBits))
}

// Area returns the fractional coverage contribution, scaled by PixelArea.
func Area(s PSegment) int32 {
	return extractSigned(s, areaShift, areaBits)
}

// Cover returns the row-winding delta, scaled by PixelSize.
func Cover(s PSegment) int32 {
	return extractSigned(s, coverShift, coverBits)
}

// Fields is the decoded, field-at-a-time representation of a PSegment,
// used to build psegments from source data and to round-trip in tests.
type Fields struct {
	IsNone bool
	TileY  int32
	TileX  int32
	Layer  uint16
	LocalY uint8
	LocalX uint8
	Area   int32
	Cover  int32
}

func insert(v uint64, shift, bits int) uint64 {
	return (v & mask(bits)) << shift
}

// Encode packs f into a PSegment. Callers are responsible for passing
// values that fit their field widths; out-of-range values are truncated
// the same way the bit-shift decoders would sign-extend them back.
func (f Fields) Encode() PSegment {
	var v uint64
	if f.IsNone {
		v |= insert(1, isNoneShift, isNoneBits)
	}
	v |= insert(uint64(uint32(f.TileY)), tileYShift, tileYBits)
	v |= insert(uint64(uint32(f.TileX)), tileXShift, tileXBits)
	v |= insert(uint64(f.Layer), layerShift, layerBits)
	v |= insert(uint64(f.LocalY), localYShift, localYBits)
	v |= insert(uint64(f.LocalX), localXShift, localXBits)
	v |= insert(uint64(uint32(f.Area)), areaShift, areaBits)
	v |= insert(uint64(uint32(f.Cover)), coverShift, coverBits)
	return PSegment(v)
}

// Decode unpacks every field of s. Behavior on a sentinel is defined only
// for the IsNone field; the other fields of the returned Fields are
// whatever bits happen to be present and must not be relied upon.
func Decode(s PSegment) Fields {
	return Fields{
		IsNone: IsNone(s),
		TileY:  TileY(s),
		TileX:  TileX(s),
		Layer:  Layer(s),
		LocalY: LocalY(s),
		LocalX: LocalX(s),
		Area:   Area(s),
		Cover:  Cover(s),
	}
}

// Tile returns the (tile_x, tile_y) pair s belongs to.
func Tile(s PSegment) (x, y int32) {
	return TileX(s), TileY(s)
}
