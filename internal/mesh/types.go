package mesh

import (
	"math"

	"spriterig/internal/mathutil"
)

// Triangle indexes into the model's vertex, normal and texcoord arrays.
// NI and TI entries are -1 when the face did not specify them.
type Triangle struct {
	VI [3]int
	NI [3]int
	TI [3]int
}

// Group is a run of triangles sharing one material.
type Group struct {
	Name     string
	Material string
	Tris     []Triangle
}

// Material is the subset of an MTL material the renderer uses.
type Material struct {
	Diffuse mathutil.Vec3 // linear 0..1
	Texture string        // map_Kd, resolved against the MTL file directory
}

// Model holds parsed geometry. Vertex arrays are shared by every group.
type Model struct {
	Verts     [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Groups    []Group
	Materials map[string]Material
}

// TriangleCount returns the number of triangles over all groups.
func (m *Model) TriangleCount() int {
	n := 0
	for _, g := range m.Groups {
		n += len(g.Tris)
	}
	return n
}

// Bounds returns the axis-aligned box of every vertex transformed by world.
// An empty model returns zero vectors.
func (m *Model) Bounds(world mathutil.Mat4) (min, max mathutil.Vec3) {
	if len(m.Verts) == 0 {
		return
	}
	min = mathutil.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = mathutil.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range m.Verts {
		t := world.MulPoint(mathutil.Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
		for k := 0; k < 3; k++ {
			if t[k] < min[k] {
				min[k] = t[k]
			}
			if t[k] > max[k] {
				max[k] = t[k]
			}
		}
	}
	return min, max
}

// Center returns the center of Bounds(world).
func (m *Model) Center(world mathutil.Mat4) mathutil.Vec3 {
	lo, hi := m.Bounds(world)
	return lo.Add(hi).Scale(0.5)
}
