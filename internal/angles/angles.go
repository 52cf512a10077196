// Package angles derives the azimuth angles (degrees) of a camera rig.
//
// The first angle is the reference camera itself and is always 0. Angles
// other than the first may be overridden individually, but any change of the
// camera count regenerates the equidistant default and drops every override.
package angles

import (
	"errors"
	"fmt"

	"spriterig/internal/mathutil"
)

// ErrInvalidIndex is returned when an override targets the locked first angle
// or an index outside the set.
var ErrInvalidIndex = errors.New("angles: invalid index")

// GenerateEquidistant returns count angles spaced 360/count degrees apart,
// starting at 0. A non-positive count yields nil.
func GenerateEquidistant(count int) []float64 {
	if count <= 0 {
		return nil
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = mathutil.WrapDegrees(360 * float64(i) / float64(count))
	}
	return out
}

// ApplyOverride sets angles[index] to value (wrapped to [0,360)) in place.
func ApplyOverride(angles []float64, index int, value float64) error {
	if index == 0 {
		return fmt.Errorf("%w: angle 0 is locked to the reference camera", ErrInvalidIndex)
	}
	if index < 0 || index >= len(angles) {
		return fmt.Errorf("%w: %d not in [1,%d)", ErrInvalidIndex, index, len(angles))
	}
	angles[index] = mathutil.WrapDegrees(value)
	return nil
}

// Set is a camera-count bound angle list.
type Set struct {
	angles []float64
}

// NewSet returns the equidistant set for count cameras.
func NewSet(count int) *Set {
	return &Set{angles: GenerateEquidistant(count)}
}

// Count returns the number of cameras.
func (s *Set) Count() int {
	return len(s.angles)
}

// SetCount changes the camera count. A different count regenerates the
// equidistant default and discards every override; the same count is a no-op.
func (s *Set) SetCount(count int) {
	if count == len(s.angles) {
		return
	}
	s.angles = GenerateEquidistant(count)
}

// Override replaces one angle; see ApplyOverride.
func (s *Set) Override(index int, value float64) error {
	return ApplyOverride(s.angles, index, value)
}

// Angles returns a copy of the current angles.
func (s *Set) Angles() []float64 {
	out := make([]float64, len(s.angles))
	copy(out, s.angles)
	return out
}
