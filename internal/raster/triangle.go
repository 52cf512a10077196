package raster

import (
	"image"
	"math"

	"spriterig/internal/mathutil"
)

// Surface is the per-triangle input of RasterizeTriangle.
type Surface struct {
	Tex       *image.NRGBA // nil for untextured
	UV        [3][2]float64
	Base      [4]uint8      // sRGB color used without a texture
	Normal    mathutil.Vec3 // world-space face normal
	CamNormal mathutil.Vec3 // camera-space face normal, facing the camera
}

// RasterizeTriangle fills one screen-space triangle into every channel of
// fb with z-buffering. depth maps a depth key back to linear depth for the
// depth channel.
//
// Hot path: no allocation in the pixel loop. Lighting is flat-shaded
// (per-face, not per-pixel).
func RasterizeTriangle(
	fb *GBuffer,
	x, y, z [3]float64,
	s *Surface,
	lc *LightConfig,
	depth func(key float64) float64,
) {
	x0, y0, z0 := x[0], y[0], z[0]
	x1, y1, z1 := x[1], y[1], z[1]
	x2, y2, z2 := x[2], y[2], z[2]

	diffuse, spec := lc.Shade(s.Normal)
	shade := (diffuse + spec) * lc.Exposure
	specByte := clamp255(spec / (1 + spec) * 255)
	nr := clamp255((s.CamNormal[0]*0.5 + 0.5) * 255)
	ng := clamp255((s.CamNormal[1]*0.5 + 0.5) * 255)
	nb := clamp255((s.CamNormal[2]*0.5 + 0.5) * 255)

	// Bounding box
	w, h := fb.Width, fb.Height
	minX := int(math.Floor(math.Min(math.Min(x0, x1), x2)))
	maxX := int(math.Ceil(math.Max(math.Max(x0, x1), x2)))
	minY := int(math.Floor(math.Min(math.Min(y0, y1), y2)))
	maxY := int(math.Ceil(math.Max(math.Max(y0, y1), y2)))
	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, w-1)
	maxY = min(maxY, h-1)
	if minX > maxX || minY > maxY {
		return
	}

	// Barycentric setup
	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if det > -1e-8 && det < 1e-8 {
		return
	}
	invDet := 1.0 / det

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	invGamma := lc.InvGamma

	// Pixel centers at +0.5
	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - y2
		rowOff := sy * w
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - x2
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1

			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			zk := w0*z0 + w1*z1 + w2*z2
			idx := rowOff + sx
			if zk <= fb.ZBuf[idx] {
				continue
			}

			cr, cg, cb, ca := s.Base[0], s.Base[1], s.Base[2], s.Base[3]
			if s.Tex != nil {
				u := w0*s.UV[0][0] + w1*s.UV[1][0] + w2*s.UV[2][0]
				v := w0*s.UV[0][1] + w1*s.UV[1][1] + w2*s.UV[2][1]
				cr, cg, cb, ca = SampleTexture(s.Tex, u, v)
			}

			// Skip transparent texels
			if ca < 8 {
				continue
			}
			fb.ZBuf[idx] = zk
			fb.Depth[idx] = depth(zk)
			fb.Alpha[idx] = ca

			// sRGB decode → linear (LUT), shade, ACES, encode
			p := idx * 4
			fb.Lit[p] = linearToSRGB8(ACESTonemap(srgbToLinear[cr]*shade), invGamma)
			fb.Lit[p+1] = linearToSRGB8(ACESTonemap(srgbToLinear[cg]*shade), invGamma)
			fb.Lit[p+2] = linearToSRGB8(ACESTonemap(srgbToLinear[cb]*shade), invGamma)
			fb.Lit[p+3] = ca

			fb.Albedo[p], fb.Albedo[p+1], fb.Albedo[p+2], fb.Albedo[p+3] = cr, cg, cb, ca
			fb.Spec[p], fb.Spec[p+1], fb.Spec[p+2], fb.Spec[p+3] = specByte, specByte, specByte, ca
			fb.Normal[p], fb.Normal[p+1], fb.Normal[p+2], fb.Normal[p+3] = nr, ng, nb, ca
		}
	}
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
