package postprocess

import (
	"image"
	"math"
)

// OpaqueBounds returns the bounding box of pixels with non-zero alpha, or
// the empty rectangle for a fully transparent image.
func OpaqueBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[img.PixOffset(x, y)+3] == 0 {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Fit scales img uniformly so it fits a w×h canvas and centers it there.
func Fit(img *image.NRGBA, w, h int) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return canvas
	}

	f := math.Min(float64(w)/float64(srcW), float64(h)/float64(srcH))
	newW := max(1, int(float64(srcW)*f+0.5))
	newH := max(1, int(float64(srcH)*f+0.5))
	scaled := img
	if newW != srcW || newH != srcH {
		scaled = scale(img, newW, newH)
	}

	offX := (w - newW) / 2
	offY := (h - newH) / 2
	sb := scaled.Bounds()
	for y := 0; y < newH; y++ {
		srcOff := scaled.PixOffset(sb.Min.X, sb.Min.Y+y)
		dstOff := (offY+y)*canvas.Stride + offX*4
		copy(canvas.Pix[dstOff:dstOff+newW*4], scaled.Pix[srcOff:srcOff+newW*4])
	}
	return canvas
}
