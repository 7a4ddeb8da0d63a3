// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package tilecast is the host-facing entry point for the tile
// rasterizer: Init establishes a GPU device and compiles the two
// compute pipelines, Render sorts and uploads a psegment/styling pair
// and returns the composited image, Shutdown releases GPU resources.
package tilecast

import (
	"errors"
	"fmt"

	"honnef.co/go/safeish"
	"honnef.co/go/wgpu"

	"github.com/cassiagpu/tilecast/engine/wgpu_engine"
	"github.com/cassiagpu/tilecast/mem"
	"github.com/cassiagpu/tilecast/psegment"
	"github.com/cassiagpu/tilecast/renderer"
	"github.com/cassiagpu/tilecast/styling"
)

// ErrDeviceUnavailable is returned by Init when no GPU adapter or
// device could be obtained.
var ErrDeviceUnavailable = errors.New("tilecast: no GPU device available")

// ErrTruncatedFile is returned by the PSegment/Styling file decoders
// when the input's length is not a whole multiple of the record size.
var ErrTruncatedFile = errors.New("tilecast: truncated input file")

// Renderer owns a GPU device and the pipelines compiled against it,
// grounded in jello's top-level Renderer/RenderToTexture split but
// collapsed to this module's single offscreen entry point.
type Renderer struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	engine   *wgpu_engine.Engine

	width, height uint32
	arena         mem.Arena
}

// Init establishes a GPU device sized for a width by height output
// image and compiles the tile-range-build and tile-row-compositor
// pipelines against it.
func Init(width, height uint32) (*Renderer, error) {
	instance := wgpu.CreateInstance(wgpu.InstanceDescriptor{})

	adapter, err := instance.RequestAdapter(wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "tilecast",
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	r := &Renderer{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.Queue(),
		width:    width,
		height:   height,
	}
	r.engine = wgpu_engine.New(device, &wgpu_engine.RendererOptions{})
	return r, nil
}

// Render sorts segs into the canonical psegment order, uploads segs
// and stylings, runs the tile-range build and tile-row compositor, and
// returns the composited image as tightly packed RGBA16Float rows
// (4*2 bytes per pixel, row-major).
func (r *Renderer) Render(segs []psegment.PSegment, stylings []styling.Styling) ([]byte, error) {
	sorted := make([]psegment.PSegment, len(segs))
	copy(sorted, segs)
	psegment.Sort(sorted)

	records := make([]renderer.StylingRecord, len(stylings))
	for i, s := range stylings {
		records[i] = s.Record()
	}

	cfg := renderer.NewRenderConfig(r.width, r.height, uint32(len(sorted)), uint32(len(records)))

	r.arena.Reset()
	var pgroup *wgpu_engine.ProfilerGroup
	pixels := r.engine.Render(&r.arena, r.queue, sorted, records, cfg, pgroup)
	return pixels, nil
}

// Shutdown releases the device, adapter, and instance.
func (r *Renderer) Shutdown() {
	r.queue.Release()
	r.device.Release()
	r.adapter.Release()
	r.instance.Release()
}

// DecodePSegments interprets data as a raw little-endian array of
// 64-bit psegments, per §6's PSegment file format.
func DecodePSegments(data []byte) ([]psegment.PSegment, error) {
	const recordSize = 8
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("%w: psegment file length %d is not a multiple of %d", ErrTruncatedFile, len(data), recordSize)
	}
	return safeish.SliceCast[[]psegment.PSegment](data), nil
}

// DecodeStylings interprets data as a raw array of 32-byte styling
// records, per §6's Styling file format.
func DecodeStylings(data []byte) ([]styling.Styling, error) {
	const recordSize = 32
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("%w: styling file length %d is not a multiple of %d", ErrTruncatedFile, len(data), recordSize)
	}
	records := safeish.SliceCast[[]renderer.StylingRecord](data)
	out := make([]styling.Styling, len(records))
	for i, rec := range records {
		out[i] = styling.FromRecord(rec)
	}
	return out, nil
}
