// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package psegment

import "slices"

// Sort orders segs by the canonical sort key: ascending unsigned on the
// 64-bit value, which orders by (is_none, tile_y, tile_x, layer,
// local_y, local_x, area, cover) and places is_none=1 sentinels at the
// tail. The core assumes its input already satisfies this order; Sort
// is provided for the host-side "CPU sort of the psegment stream"
// collaborator named in the scope notes.
func Sort(segs []PSegment) {
	slices.SortFunc(segs, func(a, b PSegment) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	})
}

// IsSorted reports whether segs already satisfies the canonical sort
// key order.
func IsSorted(segs []PSegment) bool {
	for i := 1; i < len(segs); i++ {
		if segs[i-1] > segs[i] {
			return false
		}
	}
	return true
}
