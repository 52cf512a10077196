package raster

import (
	"math"

	"spriterig/internal/mathutil"
)

// LightConfig holds precomputed lighting parameters. Light directions are
// in world space (+Z up) so every rig camera sees the object lit the same.
type LightConfig struct {
	LightDir  mathutil.Vec3
	RimDir    mathutil.Vec3
	ViewDir   mathutil.Vec3
	HalfMain  mathutil.Vec3 // precomputed half-vector for Blinn-Phong
	Ambient   float64
	Hemi      float64
	Direct    float64
	Rim       float64
	SpecInt   float64
	SpecPow   float64
	Exposure  float64
	SRGBGamma float64
	InvGamma  float64
}

// DefaultLightConfig returns a key light from front right above and a rim
// light from behind, viewed from -Y.
func DefaultLightConfig() LightConfig {
	lc := LightConfig{
		LightDir:  mathutil.Vec3{180, -140, 260}.Normalize(),
		RimDir:    mathutil.Vec3{-160, 210, 130}.Normalize(),
		Ambient:   0.55,
		Hemi:      0.50,
		Direct:    1.50,
		Rim:       0.60,
		SpecInt:   0.45,
		SpecPow:   12.0,
		Exposure:  1.05,
		SRGBGamma: 2.2,
		InvGamma:  1.0 / 2.2,
	}
	return lc.ForView(mathutil.Vec3{0, 1, 0})
}

// ForView returns a copy with the half vector recomputed for a camera
// looking along forward.
func (lc LightConfig) ForView(forward mathutil.Vec3) LightConfig {
	lc.ViewDir = forward.Normalize()
	lc.HalfMain = lc.LightDir.Sub(lc.ViewDir).Normalize()
	return lc
}

// Shade returns the diffuse lighting scalar and the specular term for a
// world-space face normal. Faces are lit from both sides.
func (lc *LightConfig) Shade(normal mathutil.Vec3) (diffuse, spec float64) {
	ndlMain := math.Abs(normal.Dot(lc.LightDir))
	ndlRim := math.Abs(normal.Dot(lc.RimDir))

	// Hemisphere fill
	hemi := (1.0-math.Abs(normal[2]))*0.5 + 0.5
	hemiLight := hemi * lc.Hemi

	// Blinn-Phong specular
	ndh := math.Abs(normal.Dot(lc.HalfMain))
	spec = math.Pow(ndh, lc.SpecPow) * lc.SpecInt

	return lc.Ambient + hemiLight + ndlMain*lc.Direct + ndlRim*lc.Rim, spec
}

// Precomputed sRGB-to-linear lookup table (256 entries).
var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// ACESTonemap applies ACES Filmic tone mapping to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

// linearToSRGB8 encodes a linear 0..1 value.
func linearToSRGB8(v, invGamma float64) uint8 {
	if v <= 0 {
		return 0
	}
	return clamp255(math.Pow(v, invGamma) * 255)
}
