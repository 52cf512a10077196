// Package anim evaluates keyframed object transforms. Each channel
// (location, rotation, scale) is animated independently: between two keys
// it is interpolated linearly (rotation by quaternion slerp), outside the
// keyed range it holds the nearest key, and a channel with no keys keeps
// the object's base value.
package anim

import (
	"sort"

	"spriterig/internal/mathutil"
)

// Transform is an object transform as authored: Euler XYZ rotation in degrees.
type Transform struct {
	Location mathutil.Vec3 `json:"location" yaml:"location"`
	Rotation mathutil.Vec3 `json:"rotation" yaml:"rotation"`
	Scale    mathutil.Vec3 `json:"scale" yaml:"scale"`
}

// Identity is the rest transform with unit scale.
func Identity() Transform {
	return Transform{Scale: mathutil.Vec3{1, 1, 1}}
}

// Pose is an evaluated transform.
type Pose struct {
	Location mathutil.Vec3
	Rotation mathutil.Mat3
	Scale    mathutil.Vec3
}

// Matrix returns the object-to-world matrix T·R·S.
func (p Pose) Matrix() mathutil.Mat4 {
	return mathutil.Compose(p.Location, p.Rotation, p.Scale)
}

// Keyframe sets any subset of channels at one frame. Nil channels are not
// keyed at this frame.
type Keyframe struct {
	Frame    int            `json:"frame" yaml:"frame"`
	Location *mathutil.Vec3 `json:"location,omitempty" yaml:"location,omitempty"`
	Rotation *mathutil.Vec3 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Scale    *mathutil.Vec3 `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// Range returns the first and last keyed frame.
func Range(keys []Keyframe) (start, end int, ok bool) {
	if len(keys) == 0 {
		return 0, 0, false
	}
	start, end = keys[0].Frame, keys[0].Frame
	for _, k := range keys[1:] {
		if k.Frame < start {
			start = k.Frame
		}
		if k.Frame > end {
			end = k.Frame
		}
	}
	return start, end, true
}

type sample struct {
	frame int
	v     mathutil.Vec3
}

func channel(keys []Keyframe, pick func(Keyframe) *mathutil.Vec3) []sample {
	var out []sample
	for _, k := range keys {
		if v := pick(k); v != nil {
			out = append(out, sample{k.Frame, *v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].frame < out[j].frame })
	return out
}

// bracket finds the keys around frame and the blend factor between them.
func bracket(s []sample, frame float64) (a, b sample, t float64) {
	if frame <= float64(s[0].frame) {
		return s[0], s[0], 0
	}
	last := s[len(s)-1]
	if frame >= float64(last.frame) {
		return last, last, 0
	}
	i := sort.Search(len(s), func(i int) bool { return float64(s[i].frame) > frame })
	a, b = s[i-1], s[i]
	return a, b, (frame - float64(a.frame)) / float64(b.frame-a.frame)
}

func lerpChannel(s []sample, frame float64, base mathutil.Vec3) mathutil.Vec3 {
	if len(s) == 0 {
		return base
	}
	a, b, t := bracket(s, frame)
	return a.v.Lerp(b.v, t)
}

func eulerQuat(e mathutil.Vec3) mathutil.Quat {
	return mathutil.EulerToQuat(mathutil.Deg2Rad(e[0]), mathutil.Deg2Rad(e[1]), mathutil.Deg2Rad(e[2]))
}

// Evaluate returns the pose at frame.
func Evaluate(base Transform, keys []Keyframe, frame float64) Pose {
	pose := Pose{
		Location: lerpChannel(channel(keys, func(k Keyframe) *mathutil.Vec3 { return k.Location }), frame, base.Location),
		Scale:    lerpChannel(channel(keys, func(k Keyframe) *mathutil.Vec3 { return k.Scale }), frame, base.Scale),
	}

	rot := channel(keys, func(k Keyframe) *mathutil.Vec3 { return k.Rotation })
	if len(rot) == 0 {
		pose.Rotation = mathutil.EulerXYZDeg(base.Rotation)
		return pose
	}
	a, b, t := bracket(rot, frame)
	if t == 0 {
		pose.Rotation = mathutil.EulerXYZDeg(a.v)
		return pose
	}
	pose.Rotation = mathutil.QuatToMat3(mathutil.Slerp(eulerQuat(a.v), eulerQuat(b.v), t))
	return pose
}
