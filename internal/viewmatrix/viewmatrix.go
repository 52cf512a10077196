// Package viewmatrix projects world-space vertices through a camera onto a
// raster. Cameras look down their local -Z axis with +Y up; the sensor (or
// ortho scale) spans the larger image edge.
package viewmatrix

import (
	"math"

	"spriterig/internal/mathutil"
	"spriterig/internal/rig"
)

// Lens holds the projection settings of a camera.
type Lens struct {
	Ortho       bool
	FocalLength float64 // mm
	SensorWidth float64 // mm
	OrthoScale  float64 // world units across the larger image edge
	ClipStart   float64
	ClipEnd     float64
}

// Projector maps world points to raster coordinates for one camera.
type Projector struct {
	view   mathutil.Mat4
	lens   Lens
	width  int
	height int
	// pixels per unit of the normalized image plane
	scale float64
}

// New builds a projector for a width×height raster.
func New(cam rig.Transform, lens Lens, width, height int) Projector {
	p := Projector{view: cam.View(), lens: lens, width: width, height: height}
	half := float64(max(width, height)) / 2
	if lens.Ortho {
		p.scale = half / (lens.OrthoScale / 2)
	} else {
		p.scale = half * lens.FocalLength / (lens.SensorWidth / 2)
	}
	return p
}

// ToCamera transforms a world point to camera space.
func (p Projector) ToCamera(v mathutil.Vec3) mathutil.Vec3 {
	return p.view.MulPoint(v)
}

// ViewRotation is the world-to-camera rotation, used for normals.
func (p Projector) ViewRotation() mathutil.Mat3 {
	return p.view.Linear()
}

// ProjectVertices returns raster x, y and a depth key per vertex. Larger
// keys are closer to the camera, matching the z-buffer test. ok is false
// for vertices outside the clip range.
func (p Projector) ProjectVertices(world []mathutil.Vec3) (px, py, pz []float64, ok []bool) {
	n := len(world)
	px = make([]float64, n)
	py = make([]float64, n)
	pz = make([]float64, n)
	ok = make([]bool, n)

	cx, cy := float64(p.width)/2, float64(p.height)/2
	for i, v := range world {
		c := p.ToCamera(v)
		depth := -c[2]
		ok[i] = depth >= p.lens.ClipStart && depth <= p.lens.ClipEnd

		x, y := c[0], c[1]
		if !p.lens.Ortho {
			d := math.Max(depth, 1e-6)
			x, y = x/d, y/d
		}
		px[i] = cx + x*p.scale
		py[i] = cy - y*p.scale
		pz[i] = p.key(depth)
	}
	return px, py, pz, ok
}

// key encodes depth so it interpolates linearly in screen space: 1/depth
// under perspective, -depth under orthographic projection.
func (p Projector) key(depth float64) float64 {
	if p.lens.Ortho {
		return -depth
	}
	return 1 / math.Max(depth, 1e-6)
}

// Depth inverts the depth key.
func (p Projector) Depth(key float64) float64 {
	if p.lens.Ortho {
		return -key
	}
	if key <= 0 {
		return math.Inf(1)
	}
	return 1 / key
}

// NormalizedDepth maps a linear depth to [0,1] across the clip range,
// 1 at the near plane.
func (p Projector) NormalizedDepth(depth float64) float64 {
	span := p.lens.ClipEnd - p.lens.ClipStart
	if span <= 0 {
		return 0
	}
	d := 1 - (depth-p.lens.ClipStart)/span
	return math.Max(0, math.Min(1, d))
}
