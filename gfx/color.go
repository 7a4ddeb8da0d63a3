// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"honnef.co/go/color"

	"github.com/cassiagpu/tilecast/jmath"
)

// Premul16 converts c to premultiplied, linear-light half-float RGBA,
// the representation the output texture stores.
func Premul16(c *color.Color) [4]uint16 {
	cc := c.Convert(color.LinearSRGB)
	r := cc.Values[0]
	g := cc.Values[1]
	b := cc.Values[2]
	a := cc.Values[3]

	return [4]uint16{
		jmath.Float16(float32(r * a)),
		jmath.Float16(float32(g * a)),
		jmath.Float16(float32(b * a)),
		jmath.Float16(float32(a)),
	}
}

// Premul32 converts c to premultiplied, linear-light 32-bit float RGBA.
func Premul32(c *color.Color) [4]float32 {
	cc := c.Convert(color.LinearSRGB)
	r := cc.Values[0]
	g := cc.Values[1]
	b := cc.Values[2]
	a := cc.Values[3]

	return [4]float32{
		float32(r * a),
		float32(g * a),
		float32(b * a),
		float32(a),
	}
}
