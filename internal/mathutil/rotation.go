package mathutil

import "math"

// RotX returns a 3×3 rotation matrix around the X axis. Angle in radians.
func RotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotY returns a 3×3 rotation matrix around the Y axis.
func RotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// RotZ returns a 3×3 rotation matrix around the Z axis.
func RotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// EulerXYZDeg builds Rz·Ry·Rx from Euler angles in degrees.
func EulerXYZDeg(e Vec3) Mat3 {
	return Mat3Mul(Mat3Mul(RotZ(Deg2Rad(e[2])), RotY(Deg2Rad(e[1]))), RotX(Deg2Rad(e[0])))
}

// LookAt returns the rotation of an object at eye whose local -Z axis
// points at target, with local +Y as close to up as possible.
func LookAt(eye, target, up Vec3) Mat3 {
	back := eye.Sub(target).Normalize()
	if back.Len() == 0 {
		return Mat3Identity()
	}
	right := up.Cross(back).Normalize()
	if right.Len() == 0 {
		// up parallel to the view direction
		right = Vec3{1, 0, 0}
	}
	newUp := back.Cross(right)
	return Mat3FromColumns(right, newUp, back)
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

// WrapDegrees maps an angle to [0, 360).
func WrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}
