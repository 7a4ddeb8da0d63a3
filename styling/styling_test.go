// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package styling

import (
	"testing"

	"github.com/cassiagpu/tilecast/gfx"
)

func TestCoverageToAlphaNonZero(t *testing.T) {
	tests := []struct {
		name     string
		coverage int32
		want     float32
	}{
		{"empty", 0, 0},
		{"full", 256, 1},
		{"negative full", -256, 1},
		{"half", 128, 0.5},
		{"over full clamps", 512, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoverageToAlpha(tt.coverage, gfx.NonZero)
			if got != tt.want {
				t.Errorf("CoverageToAlpha(%d, NonZero) = %v, want %v", tt.coverage, got, tt.want)
			}
		})
	}
}

func TestCoverageToAlphaEvenOdd(t *testing.T) {
	// coverage = 384: winding = 384>>8 = 1 (odd), fraction = (384&0xFF)/256 = 128/256 = 0.5
	// odd winding -> alpha = 1 - fraction = 0.5
	got := CoverageToAlpha(384, gfx.EvenOdd)
	if got != 0.5 {
		t.Errorf("CoverageToAlpha(384, EvenOdd) = %v, want 0.5", got)
	}

	// coverage = 128: winding = 0 (even), fraction = 128/256 = 0.5 -> alpha = fraction = 0.5
	got = CoverageToAlpha(128, gfx.EvenOdd)
	if got != 0.5 {
		t.Errorf("CoverageToAlpha(128, EvenOdd) = %v, want 0.5", got)
	}

	// coverage = 256: winding = 1 (odd), fraction = 0 -> alpha = 1
	got = CoverageToAlpha(256, gfx.EvenOdd)
	if got != 1 {
		t.Errorf("CoverageToAlpha(256, EvenOdd) = %v, want 1", got)
	}
}

func TestBlendMultiply(t *testing.T) {
	dst := [3]float32{0.5, 0.5, 0.5}
	src := [3]float32{0.8, 0.8, 0.8}
	got := Blend(gfx.MixMultiply, dst, src)
	want := [3]float32{0.4, 0.4, 0.4}
	for i := range got {
		if diff := got[i] - want[i]; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("Blend(Multiply, %v, %v)[%d] = %v, want %v", dst, src, i, got[i], want[i])
		}
	}
}

func TestBlendNormalIsSrc(t *testing.T) {
	dst := [3]float32{0.1, 0.2, 0.3}
	src := [3]float32{0.9, 0.8, 0.7}
	got := Blend(gfx.MixNormal, dst, src)
	if got != src {
		t.Errorf("Blend(Normal, dst, src) = %v, want %v", got, src)
	}
}

func TestCompositeOverEmptyBackground(t *testing.T) {
	// Compositing a fully-opaque source over an all-zero background
	// must reproduce the premultiplied source exactly, for every color.
	dst := [4]float32{0, 0, 0, 0}
	color := [3]float32{0.25, 0.5, 0.75}
	got := Composite(dst, color, 1)
	want := [4]float32{0.25, 0.5, 0.75, 1}
	if got != want {
		t.Errorf("Composite(zero, %v, 1) = %v, want %v", color, got, want)
	}
}

func TestCompositePartialCoverageKeepsBlendedUnscaled(t *testing.T) {
	// blended is already premultiplied by alpha (it comes from a src
	// color that had coverage_alpha and fill.a folded in), so Composite
	// must add it directly rather than scaling it by alpha a second
	// time. White fill at alpha=0.5 over an empty background must yield
	// premultiplied (0.5,0.5,0.5,0.5), not (0.25,0.25,0.25,0.5).
	dst := [4]float32{0, 0, 0, 0}
	blended := [3]float32{0.5, 0.5, 0.5}
	got := Composite(dst, blended, 0.5)
	want := [4]float32{0.5, 0.5, 0.5, 0.5}
	if got != want {
		t.Errorf("Composite(zero, %v, 0.5) = %v, want %v", blended, got, want)
	}
}

func TestSoftLightContinuousAtHalf(t *testing.T) {
	// The piecewise softLight formula must agree at the src == 0.5
	// boundary: the src <= 0.5 branch returns dst there, which is also
	// the value the other branch approaches as src nears 0.5.
	d := float32(0.3)
	lo := softLight(d, 0.5)
	if lo != d {
		t.Errorf("softLight(%v, 0.5) = %v, want %v (identity at src=0.5)", d, lo, d)
	}
}
