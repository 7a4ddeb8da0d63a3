// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

// Mix defines the color mixing function of a blend operation. Values
// match the blend-mode ids of the styling table exactly (0..11), so a
// Styling's BlendMode field can be stored and compared as a Mix
// directly.
type Mix uint8

const (
	// MixNormal selects the source color; the final Porter-Duff compose
	// step (see styling.Composite) still folds it over the destination by
	// alpha. This is the styling table's "Over" blend mode.
	MixNormal Mix = 0
	// Source color is multiplied by the destination color and replaces the
	// destination.
	MixMultiply Mix = 1
	// Subtracts the product of the backdrop and source colors from the source
	// color.
	MixScreen Mix = 2
	// Multiplies or screens the colors, depending on the source color value.
	MixOverlay Mix = 3
	// Selects the darker of the backdrop and source colors.
	MixDarken Mix = 4
	// Selects the lighter of the backdrop and source colors.
	MixLighten Mix = 5
	// Divides the source color by the complement of the backdrop color,
	// clamped to 1. Painting with black yields black.
	MixColorDodge Mix = 6
	// Complements the complement of the source color divided by the backdrop
	// color, clamped to [0, 1]. Painting with white yields white.
	MixColorBurn Mix = 7
	// Multiplies or screens the colors, depending on the backdrop color value.
	// The effect is similar to shining a harsh spotlight on the backdrop.
	MixHardLight Mix = 8
	// Darkens or lightens the colors, depending on the source color value. The
	// effect is similar to shining a diffused spotlight on the backdrop.
	MixSoftLight Mix = 9
	// Subtracts the darker of the two constituent colors from the lighter
	// color.
	MixDifference Mix = 10
	// Produces an effect similar to that of the Difference mode but lower in
	// contrast. Painting with white inverts the backdrop color; painting with
	// black produces no change.
	MixExclusion Mix = 11
)

// NumMix is the count of valid Mix values (0..NumMix-1).
const NumMix = 12

func (m Mix) Valid() bool {
	return m < NumMix
}
