package raster

import "math"

// GBuffer holds one render's per-pixel outputs as flat slices. Color
// channels are RGBA interleaved, len = W*H*4.
type GBuffer struct {
	Width  int
	Height int

	Lit    []uint8
	Albedo []uint8
	Spec   []uint8
	Normal []uint8
	Alpha  []uint8 // coverage, len = W*H

	ZBuf  []float64 // depth key per pixel, larger is closer, initialized to -inf
	Depth []float64 // linear camera depth per pixel, +inf where empty
}

// NewGBuffer allocates zeroed color channels and cleared depth buffers.
func NewGBuffer(w, h int) *GBuffer {
	n := w * h
	zbuf := make([]float64, n)
	depth := make([]float64, n)
	for i := range zbuf {
		zbuf[i] = math.Inf(-1)
		depth[i] = math.Inf(1)
	}
	return &GBuffer{
		Width:  w,
		Height: h,
		Lit:    make([]uint8, n*4),
		Albedo: make([]uint8, n*4),
		Spec:   make([]uint8, n*4),
		Normal: make([]uint8, n*4),
		Alpha:  make([]uint8, n),
		ZBuf:   zbuf,
		Depth:  depth,
	}
}
