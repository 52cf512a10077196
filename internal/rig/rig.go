// Package rig derives the camera transforms of a multi-angle render from a
// single reference camera.
package rig

import (
	"spriterig/internal/mathutil"
)

// Up is the vertical axis cameras orbit around.
var Up = mathutil.Vec3{0, 0, 1}

// Transform is a camera pose in world space. The camera looks down its local
// -Z axis with local +Y up.
type Transform struct {
	Position mathutil.Vec3
	Rotation mathutil.Mat3
}

// Quat returns the rotation as a unit quaternion.
func (t Transform) Quat() mathutil.Quat {
	return mathutil.Mat3ToQuat(t.Rotation)
}

// Forward returns the world-space viewing direction.
func (t Transform) Forward() mathutil.Vec3 {
	return t.Rotation.MulVec3(mathutil.Vec3{0, 0, -1})
}

// View returns the world-to-camera matrix.
func (t Transform) View() mathutil.Mat4 {
	rt := t.Rotation.Transpose()
	return mathutil.FromMat3Translation(rt, rt.MulVec3(t.Position).Scale(-1))
}

// BuildCameras returns one transform per angle (degrees): the reference
// rotated about the vertical axis through pivot. Every camera is derived
// from ref directly so repeated calls give bit-identical results, and an
// angle of 0 returns ref unchanged.
func BuildCameras(ref Transform, angles []float64, pivot mathutil.Vec3) []Transform {
	out := make([]Transform, len(angles))
	offset := ref.Position.Sub(pivot)
	for i, a := range angles {
		if a == 0 {
			out[i] = ref
			continue
		}
		rz := mathutil.RotZ(mathutil.Deg2Rad(a))
		out[i] = Transform{
			Position: pivot.Add(rz.MulVec3(offset)),
			Rotation: mathutil.Mat3Mul(rz, ref.Rotation),
		}
	}
	return out
}
