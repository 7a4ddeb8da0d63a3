// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Command render_tool renders one frame from a PSegment file and a
// Styling file and exits. It exists to exercise the tile rasterizer
// end to end without a GUI.
package main

import (
	"fmt"
	"os"

	"github.com/cassiagpu/tilecast"
)

const (
	outputWidth  = 1000
	outputHeight = 1000
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s PSEGMENT_FILE STYLING_FILE\n", os.Args[0])
		os.Exit(1)
	}
	psegmentPath, stylingPath := os.Args[1], os.Args[2]

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	psegmentData, err := os.ReadFile(psegmentPath)
	if err != nil {
		dief("Couldn't read %q: %s", psegmentPath, err)
	}
	stylingData, err := os.ReadFile(stylingPath)
	if err != nil {
		dief("Couldn't read %q: %s", stylingPath, err)
	}

	segs, err := tilecast.DecodePSegments(psegmentData)
	if err != nil {
		dief("Couldn't decode %q: %s", psegmentPath, err)
	}
	stylings, err := tilecast.DecodeStylings(stylingData)
	if err != nil {
		dief("Couldn't decode %q: %s", stylingPath, err)
	}

	r, err := tilecast.Init(outputWidth, outputHeight)
	if err != nil {
		dief("Couldn't initialize renderer: %s", err)
	}
	defer r.Shutdown()

	if _, err := r.Render(segs, stylings); err != nil {
		dief("Couldn't render: %s", err)
	}
}
