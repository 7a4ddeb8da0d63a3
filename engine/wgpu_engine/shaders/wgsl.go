// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package shaders

// tileRangeBuildWGSL runs one worker per psegment index and writes at
// most one (start, end) boundary per worker; the comparison is
// conflict-free by construction, so no atomics are needed.
const tileRangeBuildWGSL = `
struct Config {
    width: u32,
    height: u32,
    width_in_tiles: u32,
    height_in_tiles: u32,
    segment_count: u32,
    tile_range_count: u32,
    carry_spills_per_row: u32,
}

struct TileRange {
    start: u32,
    end: u32,
}

@group(0) @binding(0) var<uniform> config: Config;
@group(0) @binding(1) var<storage, read> segments: array<vec2<u32>>;
@group(0) @binding(2) var<storage, read_write> tile_ranges: array<TileRange>;

const COVER_SHIFT = 0u;
const AREA_SHIFT = 6u;
const LOCAL_X_SHIFT = 16u;
const LOCAL_X_BITS = 3u;
const LOCAL_Y_SHIFT = 19u;
const LAYER_SHIFT = 22u;
const LAYER_BITS = 16u;
const TILE_X_SHIFT = 38u;
const TILE_X_BITS = 13u;
const TILE_Y_SHIFT = 51u;
const TILE_Y_BITS = 12u;
const IS_NONE_SHIFT = 63u;

// extract_u pulls 'bits' unsigned bits starting at 'shift' out of the
// 64-bit word (lo, hi), straddling the two 32-bit halves if needed.
fn extract_u(lo: u32, hi: u32, shift: u32, bits: u32) -> u32 {
    if shift >= 32u {
        return (hi >> (shift - 32u)) & ((1u << bits) - 1u);
    } else if shift + bits <= 32u {
        return (lo >> shift) & ((1u << bits) - 1u);
    } else {
        let lo_bits = 32u - shift;
        let hi_bits = bits - lo_bits;
        let low_part = lo >> shift;
        let high_part = hi & ((1u << hi_bits) - 1u);
        return (high_part << lo_bits) | low_part;
    }
}

fn extract_i(lo: u32, hi: u32, shift: u32, bits: u32) -> i32 {
    let v = extract_u(lo, hi, shift, bits);
    let sign_bit = 1u << (bits - 1u);
    if (v & sign_bit) != 0u {
        return i32(v) - i32(sign_bit << 1u);
    }
    return i32(v);
}

fn seg_is_none(s: vec2<u32>) -> bool {
    return extract_u(s.x, s.y, IS_NONE_SHIFT, 1u) != 0u;
}

fn seg_tile_x(s: vec2<u32>) -> i32 {
    return extract_i(s.x, s.y, TILE_X_SHIFT, TILE_X_BITS);
}

fn seg_tile_y(s: vec2<u32>) -> i32 {
    return extract_i(s.x, s.y, TILE_Y_SHIFT, TILE_Y_BITS);
}

fn tile_in_bounds(tx: i32, ty: i32) -> bool {
    return tx >= -1 && tx < i32(config.width_in_tiles) &&
        ty >= 0 && ty < i32(config.height_in_tiles);
}

fn tile_range_index(tx: i32, ty: i32) -> u32 {
    return u32(tx + 1) + (config.width_in_tiles + 1u) * u32(ty);
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if i >= config.segment_count {
        return;
    }
    let s = segments[i];
    let s_none = seg_is_none(s);
    let sx = seg_tile_x(s);
    let sy = seg_tile_y(s);

    if i == config.segment_count - 1u {
        if !s_none && tile_in_bounds(sx, sy) {
            tile_ranges[tile_range_index(sx, sy)].end = i + 1u;
        }
        return;
    }

    let next = segments[i + 1u];
    let n_none = seg_is_none(next);
    let nx = seg_tile_x(next);
    let ny = seg_tile_y(next);

    let differs = n_none || sx != nx || sy != ny;
    if !differs {
        return;
    }

    if !s_none && tile_in_bounds(sx, sy) {
        tile_ranges[tile_range_index(sx, sy)].end = i + 1u;
    }
    if !n_none && tile_in_bounds(nx, ny) {
        tile_ranges[tile_range_index(nx, ny)].start = i + 1u;
    }
}
`

// tileRowCompositeWGSL dispatches one workgroup per tile row. Workgroup
// size is fixed at TILE_WIDTH*TILE_HEIGHT so every worker owns exactly
// one pixel of the tile during texture writeback; layer flush runs on
// lane 0 alone. Neither needs atomics; atomics remain only on the
// cover/area accumulators and the psegment-batch counter, per the
// concurrency model.
const tileRowCompositeWGSL = `
const TILE_WIDTH = 8u;
const TILE_HEIGHT = 8u;
const WORKGROUP_SIZE = 64u; // TILE_WIDTH * TILE_HEIGHT
const WORKGROUP_CARRIES = 64u;
const INVALID_LAYER = 0xFFFFFFFFu;
const PIXEL_SIZE = 16i;
const PIXEL_AREA = 256i;

struct Config {
    width: u32,
    height: u32,
    width_in_tiles: u32,
    height_in_tiles: u32,
    segment_count: u32,
    tile_range_count: u32,
    carry_spills_per_row: u32,
}

struct TileRange {
    start: u32,
    end: u32,
}

struct Styling {
    fill: vec4<f32>,
    fill_rule: u32,
    blend_mode: u32,
    _pad0: u32,
    _pad1: u32,
}

struct LayerCarrySpill {
    layer: u32,
    rows: array<i32, 8>,
}

@group(0) @binding(0) var<uniform> config: Config;
@group(0) @binding(1) var<storage, read> segments: array<vec2<u32>>;
@group(0) @binding(2) var<storage, read> tile_ranges: array<TileRange>;
@group(0) @binding(3) var<storage, read> stylings: array<Styling>;
@group(0) @binding(4) var<storage, read_write> carry_spill: array<LayerCarrySpill>;
@group(0) @binding(5) var out_image: texture_storage_2d<rgba16float, write>;

const COVER_SHIFT = 0u;
const COVER_BITS = 6u;
const AREA_SHIFT = 6u;
const AREA_BITS = 10u;
const LOCAL_X_SHIFT = 16u;
const LOCAL_X_BITS = 3u;
const LOCAL_Y_SHIFT = 19u;
const LOCAL_Y_BITS = 3u;
const LAYER_SHIFT = 22u;
const LAYER_BITS = 16u;
const TILE_X_SHIFT = 38u;
const TILE_X_BITS = 13u;
const TILE_Y_SHIFT = 51u;
const TILE_Y_BITS = 12u;
const IS_NONE_SHIFT = 63u;

fn extract_u(lo: u32, hi: u32, shift: u32, bits: u32) -> u32 {
    if shift >= 32u {
        return (hi >> (shift - 32u)) & ((1u << bits) - 1u);
    } else if shift + bits <= 32u {
        return (lo >> shift) & ((1u << bits) - 1u);
    } else {
        let lo_bits = 32u - shift;
        let hi_bits = bits - lo_bits;
        let low_part = lo >> shift;
        let high_part = hi & ((1u << hi_bits) - 1u);
        return (high_part << lo_bits) | low_part;
    }
}

fn extract_i(lo: u32, hi: u32, shift: u32, bits: u32) -> i32 {
    let v = extract_u(lo, hi, shift, bits);
    let sign_bit = 1u << (bits - 1u);
    if (v & sign_bit) != 0u {
        return i32(v) - i32(sign_bit << 1u);
    }
    return i32(v);
}

fn seg_layer(s: vec2<u32>) -> u32 { return extract_u(s.x, s.y, LAYER_SHIFT, LAYER_BITS); }
fn seg_local_x(s: vec2<u32>) -> u32 { return extract_u(s.x, s.y, LOCAL_X_SHIFT, LOCAL_X_BITS); }
fn seg_local_y(s: vec2<u32>) -> u32 { return extract_u(s.x, s.y, LOCAL_Y_SHIFT, LOCAL_Y_BITS); }
fn seg_area(s: vec2<u32>) -> i32 { return extract_i(s.x, s.y, AREA_SHIFT, AREA_BITS); }
fn seg_cover(s: vec2<u32>) -> i32 { return extract_i(s.x, s.y, COVER_SHIFT, COVER_BITS); }

fn tile_range_index(tx: i32, ty: i32) -> u32 {
    return u32(tx + 1) + (config.width_in_tiles + 1u) * u32(ty);
}

// coverage_to_alpha implements the NonZero/EvenOdd conversion of §4.4.
// fill_rule 0 = NonZero, 1 = EvenOdd.
fn coverage_to_alpha(coverage: i32, fill_rule: u32) -> f32 {
    if fill_rule == 0u {
        let a = abs(coverage);
        return clamp(f32(a) / f32(PIXEL_AREA), 0.0, 1.0);
    }
    let winding = coverage >> 8u;
    let fraction = f32(coverage & 0xFF) / 256.0;
    if (winding & 1) == 0 {
        return fraction;
    }
    return 1.0 - fraction;
}

// blend_color implements the channel-wise color formula of the 12
// blend modes; dst is the accumulator's premultiplied color and src is
// the layer color with coverage alpha and fill alpha folded in.
fn blend_color(mode: u32, dst: vec3<f32>, src: vec3<f32>) -> vec3<f32> {
    switch mode {
        case 0u: { return src; } // Over: final compose folds alpha
        case 1u: { return dst * src; } // Multiply
        case 2u: { return src - dst * src; } // Screen
        case 3u: { // Overlay
            let lo = 2.0 * dst * src;
            let hi = 2.0 * (dst + src - dst * src) - 1.0;
            return select(hi, lo, src <= vec3<f32>(0.5));
        }
        case 4u: { return min(dst, src); } // Darken
        case 5u: { return max(dst, src); } // Lighten
        case 6u: { // ColorDodge
            let denom = max(vec3<f32>(1.0) - dst, vec3<f32>(1e-6));
            let v = min(vec3<f32>(1.0), src / denom);
            return select(v, vec3<f32>(0.0), src == vec3<f32>(0.0));
        }
        case 7u: { // ColorBurn
            let denom = max(dst, vec3<f32>(1e-6));
            let v = vec3<f32>(1.0) - min(vec3<f32>(1.0), (vec3<f32>(1.0) - src) / denom);
            return select(v, vec3<f32>(1.0), src == vec3<f32>(1.0));
        }
        case 8u: { // HardLight
            let lo = 2.0 * dst * src;
            let hi = 2.0 * (dst + src - dst * src) - 1.0;
            return select(hi, lo, dst <= vec3<f32>(0.5));
        }
        case 9u: { // SoftLight
            let d = select(sqrt(dst), ((16.0 * dst - 12.0) * dst + 4.0) * dst, dst <= vec3<f32>(0.25));
            let lo = dst - (vec3<f32>(1.0) - 2.0 * src) * dst * (vec3<f32>(1.0) - dst);
            let hi = dst + (2.0 * src - 1.0) * (d - dst);
            return select(hi, lo, src <= vec3<f32>(0.5));
        }
        case 10u: { return abs(dst - src); } // Difference
        case 11u: { return dst + src - 2.0 * dst * src; } // Exclusion
        default: { return src; }
    }
}

struct LayerCarry {
    layer: u32,
    rows: array<i32, 8>,
}

var<workgroup> carries_a: array<LayerCarry, WORKGROUP_CARRIES>;
var<workgroup> carries_b: array<LayerCarry, WORKGROUP_CARRIES>;
var<workgroup> count_a: u32;
var<workgroup> count_b: u32;
var<workgroup> incoming_is_a: u32; // 1 if carries_a is the incoming queue

var<workgroup> areas: array<atomic<i32>, 72>;  // (TILE_WIDTH+1)*TILE_HEIGHT
var<workgroup> covers: array<atomic<i32>, 72>;
var<workgroup> accumulators: array<vec4<f32>, 64>; // TILE_WIDTH*TILE_HEIGHT

var<workgroup> batch_count: atomic<u32>;
var<workgroup> next_segment_index: u32;
var<workgroup> active_layer: u32;
var<workgroup> active_fill_rule: u32;
var<workgroup> active_blend_mode: u32;
var<workgroup> active_fill: vec4<f32>;
var<workgroup> flip: u32;

fn spill_offset(row: u32, f: u32, idx: u32) -> u32 {
    return f * config.height_in_tiles * config.carry_spills_per_row +
        row * config.carry_spills_per_row + idx;
}

// push_outgoing appends a carry to whichever queue is currently the
// outgoing one, spilling to the global buffer past WORKGROUP_CARRIES.
fn push_outgoing(lane: u32, row: u32, layer: u32, rows: array<i32, 8>) {
    if lane != 0u {
        return;
    }
    var all_zero = true;
    for (var y = 0u; y < TILE_HEIGHT; y++) {
        if rows[y] != 0i {
            all_zero = false;
        }
    }
    if all_zero {
        return;
    }
    var slot: u32;
    var outgoing_is_a: bool;
    if incoming_is_a == 1u {
        slot = count_b;
        count_b = count_b + 1u;
        outgoing_is_a = false;
    } else {
        slot = count_a;
        count_a = count_a + 1u;
        outgoing_is_a = true;
    }
    if slot < WORKGROUP_CARRIES {
        var c: LayerCarry;
        c.layer = layer;
        c.rows = rows;
        if outgoing_is_a {
            carries_a[slot] = c;
        } else {
            carries_b[slot] = c;
        }
    } else {
        let off = spill_offset(row, 1u - flip, slot - WORKGROUP_CARRIES);
        var rec: LayerCarrySpill;
        rec.layer = layer;
        rec.rows = rows;
        carry_spill[off] = rec;
    }
}

@compute @workgroup_size(WORKGROUP_SIZE)
fn main(
    @builtin(workgroup_id) wid: vec3<u32>,
    @builtin(local_invocation_index) lane: u32,
) {
    let row = wid.x;
    let x = lane % TILE_WIDTH;
    let y = lane / TILE_WIDTH;

    if lane == 0u {
        count_a = 0u;
        count_b = 0u;
        incoming_is_a = 1u;
        flip = 0u;
    }
    workgroupBarrier();

    // Row setup (§4.3.1): fold tile_x == -1 psegments into the initial
    // incoming carry queue. Done on a single lane; the left spill
    // column is small in practice.
    if lane == 0u {
        let left = tile_ranges[tile_range_index(-1, i32(row))];
        var i = left.start;
        while i < left.end {
            let cur_layer = seg_layer(segments[i]);
            var rows: array<i32, 8>;
            for (var k = 0u; k < TILE_HEIGHT; k++) {
                rows[k] = 0i;
            }
            var j = i;
            while j < left.end && seg_layer(segments[j]) == cur_layer {
                let ly = seg_local_y(segments[j]);
                rows[ly] = rows[ly] + seg_cover(segments[j]);
                j++;
            }
            push_outgoing(0u, row, cur_layer, rows);
            i = j;
        }
        // push_outgoing filled the outgoing queue; swap so those carries
        // become tile 0's incoming queue.
        incoming_is_a = 1u - incoming_is_a;
        flip = 1u - flip;
    }
    workgroupBarrier();

    for (var tx = 0u; tx < config.width_in_tiles; tx++) {
        for (var idx = lane; idx < 72u; idx += WORKGROUP_SIZE) {
            atomicStore(&areas[idx], 0i);
            atomicStore(&covers[idx], 0i);
        }
        accumulators[lane] = vec4<f32>(0.0, 0.0, 0.0, 0.0);
        workgroupBarrier();

        let tr = tile_ranges[tile_range_index(i32(tx), i32(row))];
        if lane == 0u {
            next_segment_index = tr.start;
            active_layer = INVALID_LAYER;
        }
        workgroupBarrier();

        loop {
            var carry_layer = INVALID_LAYER;
            var carry_slot = 0u;
            var consuming_a = incoming_is_a == 1u;
            var incoming_count = select(count_b, count_a, consuming_a);
            if incoming_count > 0u {
                if consuming_a {
                    carry_layer = carries_a[0].layer;
                } else {
                    carry_layer = carries_b[0].layer;
                }
            }

            var seg_layer_val = INVALID_LAYER;
            if next_segment_index < tr.end {
                seg_layer_val = seg_layer(segments[next_segment_index]);
            }

            if carry_layer == INVALID_LAYER && seg_layer_val == INVALID_LAYER {
                break;
            }
            let min_layer = min(carry_layer, seg_layer_val);

            if lane == 0u && min_layer != active_layer {
                flush_layer(row, tx);
                active_layer = min_layer;
                if min_layer < arrayLength(&stylings) {
                    let st = stylings[min_layer];
                    active_fill_rule = st.fill_rule;
                    active_blend_mode = st.blend_mode;
                    active_fill = st.fill;
                }
            }
            workgroupBarrier();

            if carry_layer == min_layer {
                if lane == 0u {
                    var rows: array<i32, 8>;
                    if consuming_a {
                        rows = carries_a[0].rows;
                    } else {
                        rows = carries_b[0].rows;
                    }
                    for (var k = 0u; k < TILE_HEIGHT; k++) {
                        atomicAdd(&covers[0u * TILE_HEIGHT + k], rows[k]);
                    }
                    // pop head by shifting down; WORKGROUP_CARRIES is
                    // small so a linear shift is acceptable here.
                    if consuming_a {
                        for (var k = 0u; k + 1u < count_a; k++) {
                            carries_a[k] = carries_a[k + 1u];
                        }
                        count_a = count_a - 1u;
                    } else {
                        for (var k = 0u; k + 1u < count_b; k++) {
                            carries_b[k] = carries_b[k + 1u];
                        }
                        count_b = count_b - 1u;
                    }
                }
            } else {
                if lane == 0u {
                    atomicStore(&batch_count, 0u);
                }
                workgroupBarrier();
                let seg_idx = next_segment_index + lane;
                if seg_idx < tr.end && seg_layer(segments[seg_idx]) == min_layer {
                    let s = segments[seg_idx];
                    let lx = seg_local_x(s);
                    let ly = seg_local_y(s);
                    atomicAdd(&covers[(lx + 1u) * TILE_HEIGHT + ly], seg_cover(s));
                    atomicAdd(&areas[lx * TILE_HEIGHT + ly], seg_area(s));
                    atomicAdd(&batch_count, 1u);
                }
                workgroupBarrier();
                if lane == 0u {
                    next_segment_index = next_segment_index + atomicLoad(&batch_count);
                }
            }
            workgroupBarrier();
        }

        if lane == 0u {
            flush_layer(row, tx);
            active_layer = INVALID_LAYER;
        }
        workgroupBarrier();

        let px = tx * TILE_WIDTH + x;
        let py = row * TILE_HEIGHT + y;
        if px < config.width && py < config.height {
            textureStore(out_image, vec2<i32>(i32(px), i32(py)), accumulators[lane]);
        }
        accumulators[lane] = vec4<f32>(0.0, 0.0, 0.0, 0.0);
        workgroupBarrier();

        if lane == 0u {
            incoming_is_a = 1u - incoming_is_a;
            flip = 1u - flip;
        }
        workgroupBarrier();
    }
}

// flush_layer implements §4.3.3; called only on lane 0, surrounded by
// workgroup barriers at the call sites above.
fn flush_layer(row: u32, tx: u32) {
    if active_layer == INVALID_LAYER {
        return;
    }
    var outgoing_rows: array<i32, 8>;
    for (var y = 0u; y < TILE_HEIGHT; y++) {
        // covers[0] holds the incoming carry, covers[x+1] holds the
        // delta contributed by local_x == x. running is the cumulative
        // delta through the current column, stored back into
        // covers[x] before folding in the next column, so the pixel
        // loop below reads each pixel's total coverage directly.
        var running = atomicLoad(&covers[0u * TILE_HEIGHT + y]);
        for (var x = 0u; x < TILE_WIDTH; x++) {
            atomicStore(&covers[x * TILE_HEIGHT + y], running);
            running = running + atomicLoad(&covers[(x + 1u) * TILE_HEIGHT + y]);
        }
        outgoing_rows[y] = running;
    }
    push_outgoing(0u, row, active_layer, outgoing_rows);

    for (var y = 0u; y < TILE_HEIGHT; y++) {
        var cover_accum = 0i;
        for (var x = 0u; x < TILE_WIDTH; x++) {
            cover_accum = atomicLoad(&covers[x * TILE_HEIGHT + y]);
            let coverage = atomicLoad(&areas[x * TILE_HEIGHT + y]) + PIXEL_SIZE * cover_accum;
            let alpha = coverage_to_alpha(coverage, active_fill_rule);
            let src_rgb = active_fill.rgb * alpha * active_fill.a;
            let a = alpha * active_fill.a;
            let lane = y * TILE_WIDTH + x;
            let dst = accumulators[lane];
            let blended = blend_color(active_blend_mode, dst.rgb, src_rgb);
            accumulators[lane] = vec4<f32>(dst.rgb * (1.0 - a) + blended, dst.a + a * (1.0 - dst.a));
        }
    }

    for (var idx = 0u; idx < 72u; idx++) {
        atomicStore(&areas[idx], 0i);
        atomicStore(&covers[idx], 0i);
    }
}
`
