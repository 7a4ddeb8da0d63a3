// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package rasterizer

import (
	"context"
	"testing"

	"github.com/cassiagpu/tilecast/gfx"
	"github.com/cassiagpu/tilecast/psegment"
	"github.com/cassiagpu/tilecast/renderer"
	"github.com/cassiagpu/tilecast/styling"
)

func oneTileConfig(width, height uint32) *renderer.RenderConfig {
	return renderer.NewRenderConfig(width, height, 0, 0)
}

func fillStyling(r, g, b, a float32, rule gfx.Fill, mode gfx.Mix) styling.Styling {
	return styling.Styling{Fill: [4]float32{r, g, b, a}, FillRule: rule, BlendMode: mode}
}

func seg(tileX, tileY int32, layer uint16, localX, localY uint8, area, cover int32) psegment.PSegment {
	return psegment.Fields{
		TileX: tileX, TileY: tileY, Layer: layer,
		LocalX: localX, LocalY: localY, Area: area, Cover: cover,
	}.Encode()
}

func TestEmptyScene(t *testing.T) {
	cfg := oneTileConfig(8, 8)
	tex, err := NewReference().Rasterize(context.Background(), nil, nil, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	for _, v := range tex.Pixels {
		if v != 0 {
			t.Fatalf("empty scene produced a nonzero pixel component: %v", tex.Pixels)
		}
	}
}

func TestSinglePixelSingleLayerNonZero(t *testing.T) {
	cfg := oneTileConfig(8, 8)
	segs := []psegment.PSegment{seg(0, 0, 0, 3, 4, 256, 0)}
	stylings := []styling.Styling{fillStyling(1, 0, 0, 1, gfx.NonZero, gfx.MixNormal)}

	tex, err := NewReference().Rasterize(context.Background(), segs, stylings, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}

	for y := uint32(0); y < 8; y++ {
		for x := uint32(0); x < 8; x++ {
			got := tex.At(x, y)
			var want [4]float32
			if x == 3 && y == 4 {
				want = [4]float32{1, 0, 0, 1}
			}
			if got != want {
				t.Errorf("pixel(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestRowCarry(t *testing.T) {
	cfg := oneTileConfig(16, 8)
	segs := []psegment.PSegment{
		seg(0, 0, 0, 7, 2, 0, 16),
		seg(1, 0, 0, 0, 2, 0, 0),
	}
	stylings := []styling.Styling{fillStyling(1, 1, 1, 1, gfx.NonZero, gfx.MixNormal)}

	tex, err := NewReference().Rasterize(context.Background(), segs, stylings, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}

	for y := uint32(0); y < 8; y++ {
		for x := uint32(0); x < 16; x++ {
			got := tex.At(x, y)
			want := [4]float32{0, 0, 0, 0}
			if y == 2 && x >= 8 && x <= 15 {
				want = [4]float32{1, 1, 1, 1}
			}
			if got != want {
				t.Errorf("pixel(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestEvenOddParityEndToEnd(t *testing.T) {
	// cover=16 at local_x=0 adds to every pixel right of it, and area=128
	// at local_x=1 then gives pixel (1,0) coverage = 128 + 16*16 = 384:
	// winding=1 (odd), fraction=128/256=0.5. EvenOdd -> alpha=0.5,
	// NonZero -> alpha=1.
	cfg := oneTileConfig(8, 8)
	segs := []psegment.PSegment{
		seg(0, 0, 0, 0, 0, 0, 16),
		seg(0, 0, 0, 1, 0, 128, 0),
	}

	// White, fully-opaque fill at alpha=0.5 over an empty backdrop must
	// composite to premultiplied RGB 0.5, not 0.25 — the source color
	// already has coverage_alpha folded in once, and must not be
	// multiplied by alpha again during the final compositing step.
	evenOdd := []styling.Styling{fillStyling(1, 1, 1, 1, gfx.EvenOdd, gfx.MixNormal)}
	tex, err := NewReference().Rasterize(context.Background(), segs, evenOdd, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	want := [4]float32{0.5, 0.5, 0.5, 0.5}
	if got := tex.At(1, 0); got != want {
		t.Errorf("EvenOdd pixel = %v, want %v", got, want)
	}

	nonZero := []styling.Styling{fillStyling(1, 1, 1, 1, gfx.NonZero, gfx.MixNormal)}
	tex, err = NewReference().Rasterize(context.Background(), segs, nonZero, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	want = [4]float32{1, 1, 1, 1}
	if got := tex.At(1, 0); got != want {
		t.Errorf("NonZero pixel = %v, want %v", got, want)
	}
}

// TestTranslucentFillFoldsFillAlphaIntoSource checks that a layer's
// own fill.a factors into the premultiplied source color the way
// §4.4 specifies (src_rgb = fill.rgb * coverage_alpha * fill.a), not
// just into the composite alpha. A fully-covered red fill at fill.a =
// 0.5 over an empty backdrop must composite to (0.5, 0, 0, 0.5).
func TestTranslucentFillFoldsFillAlphaIntoSource(t *testing.T) {
	cfg := oneTileConfig(8, 8)
	segs := []psegment.PSegment{seg(0, 0, 0, 0, 0, 256, 0)}
	stylings := []styling.Styling{fillStyling(1, 0, 0, 0.5, gfx.NonZero, gfx.MixNormal)}

	tex, err := NewReference().Rasterize(context.Background(), segs, stylings, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	got := tex.At(0, 0)
	want := [4]float32{0.5, 0, 0, 0.5}
	for i := range got {
		if diff := got[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("pixel(0,0) = %v, want %v", got, want)
			break
		}
	}
}

func TestBlendMultiplyEndToEnd(t *testing.T) {
	cfg := oneTileConfig(8, 8)
	// Two fully-covered layers stacked at the same pixel: layer 0 paints
	// the (0.5,0.5,0.5) backdrop, layer 1 multiplies (0.8,0.8,0.8) over it.
	segs := []psegment.PSegment{
		seg(0, 0, 0, 0, 0, 256, 0),
		seg(0, 0, 1, 0, 0, 256, 0),
	}
	stylings := []styling.Styling{
		fillStyling(0.5, 0.5, 0.5, 1, gfx.NonZero, gfx.MixNormal),
		fillStyling(0.8, 0.8, 0.8, 1, gfx.NonZero, gfx.MixMultiply),
	}

	tex, err := NewReference().Rasterize(context.Background(), segs, stylings, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	got := tex.At(0, 0)
	want := [4]float32{0.4, 0.4, 0.4, 1}
	for i := range got {
		if diff := got[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("pixel(0,0) = %v, want %v", got, want)
			break
		}
	}
}

func TestOffScreenLeftSpill(t *testing.T) {
	cfg := oneTileConfig(8, 8)
	segs := []psegment.PSegment{seg(-1, 0, 0, 0, 3, 0, 16)}
	stylings := []styling.Styling{fillStyling(0, 1, 0, 1, gfx.NonZero, gfx.MixNormal)}

	tex, err := NewReference().Rasterize(context.Background(), segs, stylings, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}

	for y := uint32(0); y < 8; y++ {
		for x := uint32(0); x < 8; x++ {
			got := tex.At(x, y)
			want := [4]float32{0, 0, 0, 0}
			if y == 3 {
				want = [4]float32{0, 1, 0, 1}
			}
			if got != want {
				t.Errorf("pixel(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

// TestLayerAscendingEmission checks invariant 4: when two layers cover
// the same tile, the later (higher-numbered) layer's paint ends up on
// top, because flush-on-layer-change only ever advances to a strictly
// greater layer within one tile's psegment range (the input is sorted
// ascending by layer per the canonical sort key).
func TestLayerAscendingEmission(t *testing.T) {
	cfg := oneTileConfig(8, 8)
	segs := []psegment.PSegment{
		seg(0, 0, 0, 2, 2, 256, 0),
		seg(0, 0, 5, 2, 2, 256, 0),
	}
	stylings := make([]styling.Styling, 6)
	stylings[0] = fillStyling(1, 0, 0, 1, gfx.NonZero, gfx.MixNormal)
	stylings[5] = fillStyling(0, 0, 1, 1, gfx.NonZero, gfx.MixNormal)

	tex, err := NewReference().Rasterize(context.Background(), segs, stylings, cfg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	want := [4]float32{0, 0, 1, 1}
	if got := tex.At(2, 2); got != want {
		t.Errorf("pixel(2,2) = %v, want %v (layer 5 should paint over layer 0)", got, want)
	}
}

// TestCoverConservation checks invariant 5: the net cover carried out
// of tile k of a row equals the sum of every cover contributed at or
// before tile k (incoming carry plus local psegments), independent of
// how many tiles that total is spread across.
func TestCoverConservation(t *testing.T) {
	cfg := oneTileConfig(24, 8)
	segs := []psegment.PSegment{
		seg(0, 0, 0, 7, 0, 0, 5),
		seg(1, 0, 0, 7, 0, 0, 3),
	}
	stylings := []styling.Styling{fillStyling(1, 1, 1, 1, gfx.NonZero, gfx.MixNormal)}

	ranges := psegment.BuildTileRanges(segs, cfg.Uniform.WidthInTiles, cfg.Uniform.HeightInTiles)
	incoming := rowSetup(segs, ranges, cfg.Uniform.WidthInTiles, 0)

	tr0 := ranges[psegment.TileRangeIndex(0, 0, cfg.Uniform.WidthInTiles)]
	outgoing0, _ := compositeTile(segs, stylings, tr0, incoming)
	if len(outgoing0) != 1 || outgoing0[0].rows[0] != 5 {
		t.Fatalf("tile 0 outgoing carry = %+v, want cover 5 on row 0", outgoing0)
	}

	tr1 := ranges[psegment.TileRangeIndex(1, 0, cfg.Uniform.WidthInTiles)]
	outgoing1, _ := compositeTile(segs, stylings, tr1, outgoing0)
	if len(outgoing1) != 1 || outgoing1[0].rows[0] != 8 {
		t.Fatalf("tile 1 outgoing carry = %+v, want cover 5+3=8 on row 0", outgoing1)
	}

	tr2 := ranges[psegment.TileRangeIndex(2, 0, cfg.Uniform.WidthInTiles)]
	outgoing2, _ := compositeTile(segs, stylings, tr2, outgoing1)
	if len(outgoing2) != 1 || outgoing2[0].rows[0] != 8 {
		t.Fatalf("tile 2 outgoing carry = %+v, want cover unchanged at 8", outgoing2)
	}
}
