// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package tilecast

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/cassiagpu/tilecast/gfx"
	"github.com/cassiagpu/tilecast/psegment"
)

func TestDecodePSegments(t *testing.T) {
	want := []psegment.PSegment{
		psegment.Fields{TileX: 2, TileY: 3, Layer: 7, LocalX: 1, LocalY: 5, Area: 10, Cover: -2}.Encode(),
		psegment.None,
	}

	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(want[0]))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(want[1]))

	got, err := DecodePSegments(buf)
	if err != nil {
		t.Fatalf("DecodePSegments: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d psegments, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("psegment %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestDecodePSegmentsTruncated(t *testing.T) {
	_, err := DecodePSegments(make([]byte, 5))
	if !errors.Is(err, ErrTruncatedFile) {
		t.Errorf("DecodePSegments(5 bytes) error = %v, want ErrTruncatedFile", err)
	}
}

func TestDecodeStylings(t *testing.T) {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(0.75))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(1))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(gfx.EvenOdd))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(gfx.MixScreen))

	got, err := DecodeStylings(buf)
	if err != nil {
		t.Fatalf("DecodeStylings: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d stylings, want 1", len(got))
	}
	s := got[0]
	want := [4]float32{0.25, 0.5, 0.75, 1}
	if s.Fill != want {
		t.Errorf("Fill = %v, want %v", s.Fill, want)
	}
	if s.FillRule != gfx.EvenOdd {
		t.Errorf("FillRule = %v, want %v", s.FillRule, gfx.EvenOdd)
	}
	if s.BlendMode != gfx.MixScreen {
		t.Errorf("BlendMode = %v, want %v", s.BlendMode, gfx.MixScreen)
	}
}

func TestDecodeStylingsTruncated(t *testing.T) {
	_, err := DecodeStylings(make([]byte, 31))
	if !errors.Is(err, ErrTruncatedFile) {
		t.Errorf("DecodeStylings(31 bytes) error = %v, want ErrTruncatedFile", err)
	}
}
