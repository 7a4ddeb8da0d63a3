// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package styling implements the per-layer paint record and the
// coverage-to-alpha and blend-mode math the tile-row compositor
// applies while flushing a layer, mirrored here in plain Go for the
// host side and for the reference rasterizer's tests.
package styling

import (
	"math"

	"honnef.co/go/color"

	"github.com/cassiagpu/tilecast/gfx"
	"github.com/cassiagpu/tilecast/psegment"
	"github.com/cassiagpu/tilecast/renderer"
)

// Styling is a layer's paint: a linear RGBA fill that is not
// premultiplied (the compositor multiplies its color by coverage alpha
// and fill alpha), the fill rule its coverage is resolved with, and the
// blend mode its color is mixed with the accumulator under.
type Styling struct {
	Fill      [4]float32
	FillRule  gfx.Fill
	BlendMode gfx.Mix
}

// FromSRGB builds a Styling from an ordinary sRGB color, converting it
// to the linear, non-premultiplied representation the Styling file
// format and the compositor both expect. Uses the same LinearSRGB
// conversion as gfx.Premul32, without its premultiplication.
func FromSRGB(c *color.Color, fillRule gfx.Fill, blendMode gfx.Mix) Styling {
	cc := c.Convert(color.LinearSRGB)
	return Styling{
		Fill: [4]float32{
			float32(cc.Values[0]),
			float32(cc.Values[1]),
			float32(cc.Values[2]),
			float32(cc.Values[3]),
		},
		FillRule:  fillRule,
		BlendMode: blendMode,
	}
}

// Record converts s to the GPU-uniform-layout record the engine
// uploads for this layer.
func (s Styling) Record() renderer.StylingRecord {
	return renderer.StylingRecord{
		Fill:      s.Fill,
		FillRule:  uint32(s.FillRule),
		BlendMode: uint32(s.BlendMode),
	}
}

// FromRecord is the inverse of Record, used by tilecast.DecodeStylings
// to read Styling file records.
func FromRecord(r renderer.StylingRecord) Styling {
	return Styling{
		Fill:      r.Fill,
		FillRule:  gfx.Fill(r.FillRule),
		BlendMode: gfx.Mix(r.BlendMode),
	}
}

// CoverageToAlpha resolves a tile pixel's signed coverage (area plus
// PixelSize times cover) to a [0,1] alpha value under the given fill
// rule, per §4.4's coverage→alpha formula.
func CoverageToAlpha(coverage int32, fillRule gfx.Fill) float32 {
	switch fillRule {
	case gfx.NonZero:
		a := coverage
		if a < 0 {
			a = -a
		}
		alpha := float32(a) / float32(psegment.PixelArea)
		if alpha > 1 {
			alpha = 1
		}
		return alpha
	case gfx.EvenOdd:
		winding := coverage >> 8
		frac := coverage & 0xFF
		fraction := float32(frac) / 256
		if winding&1 == 0 {
			return fraction
		}
		return 1 - fraction
	default:
		panic("invalid fill rule")
	}
}

// Blend mixes dst and src's colors under mode, per §4.4's blend-mode
// table. dst is the accumulator's premultiplied color and src is the
// layer color with coverage alpha and fill alpha already folded in; the
// formulas are applied to these values as given.
func Blend(mode gfx.Mix, dst, src [3]float32) [3]float32 {
	switch mode {
	case gfx.MixNormal:
		return src
	case gfx.MixMultiply:
		return mulChannels(dst, src)
	case gfx.MixScreen:
		return mapChannels(dst, src, func(d, s float32) float32 {
			return s - d*s
		})
	case gfx.MixOverlay:
		return mapChannels(dst, src, hardLight(func(d, s float32) bool { return s <= 0.5 }))
	case gfx.MixDarken:
		return mapChannels(dst, src, func(d, s float32) float32 {
			return min32(d, s)
		})
	case gfx.MixLighten:
		return mapChannels(dst, src, func(d, s float32) float32 {
			return max32(d, s)
		})
	case gfx.MixColorDodge:
		return mapChannels(dst, src, func(d, s float32) float32 {
			if s == 0 {
				return 0
			}
			return min32(1, s/(1-d))
		})
	case gfx.MixColorBurn:
		return mapChannels(dst, src, func(d, s float32) float32 {
			if s == 1 {
				return 1
			}
			return 1 - min32(1, (1-s)/d)
		})
	case gfx.MixHardLight:
		return mapChannels(dst, src, hardLight(func(d, s float32) bool { return d <= 0.5 }))
	case gfx.MixSoftLight:
		return mapChannels(dst, src, softLight)
	case gfx.MixDifference:
		return mapChannels(dst, src, func(d, s float32) float32 {
			x := d - s
			if x < 0 {
				x = -x
			}
			return x
		})
	case gfx.MixExclusion:
		return mapChannels(dst, src, func(d, s float32) float32 {
			return d + s - 2*d*s
		})
	default:
		panic("invalid blend mode")
	}
}

// Composite folds blended over dst using alpha, the final Porter-Duff-
// style compositing step every blend mode shares:
// result = dst*(1-alpha) + (blended, alpha). blended is already
// premultiplied by alpha (it was computed from a src color that had
// coverage_alpha and fill.a folded in), so it is added, not scaled by
// alpha again.
func Composite(dst [4]float32, blended [3]float32, alpha float32) [4]float32 {
	inv := 1 - alpha
	return [4]float32{
		dst[0]*inv + blended[0],
		dst[1]*inv + blended[1],
		dst[2]*inv + blended[2],
		dst[3]*inv + alpha,
	}
}

func mulChannels(dst, src [3]float32) [3]float32 {
	return [3]float32{dst[0] * src[0], dst[1] * src[1], dst[2] * src[2]}
}

func mapChannels(dst, src [3]float32, f func(d, s float32) float32) [3]float32 {
	return [3]float32{f(dst[0], src[0]), f(dst[1], src[1]), f(dst[2], src[2])}
}

func hardLight(takeScreen func(d, s float32) bool) func(d, s float32) float32 {
	return func(d, s float32) float32 {
		if takeScreen(d, s) {
			return 2 * d * s
		}
		return 2*(d+s-d*s) - 1
	}
}

func softLight(d, s float32) float32 {
	if s <= 0.5 {
		return d - (1-2*s)*d*(1-d)
	}
	var dd float32
	if d <= 0.25 {
		dd = ((16*d-12)*d+4)*d
	} else {
		dd = sqrt32(d)
	}
	return d + (2*s-1)*(dd-d)
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
