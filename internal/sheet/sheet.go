// Package sheet packs equally sized frame images into one row-major grid
// image (a sprite sheet).
package sheet

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// MaxTextureSize is the largest sheet edge most GPUs accept.
const MaxTextureSize = 16384

var (
	// ErrDimensionMismatch is returned when a frame differs from the
	// declared frame size.
	ErrDimensionMismatch = errors.New("sheet: dimension mismatch")
	// ErrSheetTooLarge is returned when the packed sheet would exceed
	// MaxTextureSize on either edge.
	ErrSheetTooLarge = errors.New("sheet: sheet too large")
)

// Options tunes the grid.
type Options struct {
	// MaxColumns caps the column count. 0 means ceil(sqrt(n)).
	MaxColumns int
	// Spacing is the gap in pixels between cells. Animation sheets keep it
	// at 0 so every cell offset is a multiple of the frame size.
	Spacing int
}

// Layout is the grid geometry for n cells of FrameW×FrameH.
type Layout struct {
	N       int
	FrameW  int
	FrameH  int
	Columns int
	Rows    int
	Spacing int
}

// NewLayout computes the grid for n frames without touching any pixels.
func NewLayout(n, frameW, frameH int, opts Options) Layout {
	l := Layout{N: n, FrameW: frameW, FrameH: frameH, Spacing: opts.Spacing}
	if n <= 0 {
		return l
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	if opts.MaxColumns > 0 && cols > opts.MaxColumns {
		cols = opts.MaxColumns
	}
	l.Columns = cols
	l.Rows = (n + cols - 1) / cols
	return l
}

// Width of the whole sheet in pixels.
func (l Layout) Width() int {
	if l.Columns == 0 {
		return 0
	}
	return l.Columns*l.FrameW + (l.Columns-1)*l.Spacing
}

// Height of the whole sheet in pixels.
func (l Layout) Height() int {
	if l.Rows == 0 {
		return 0
	}
	return l.Rows*l.FrameH + (l.Rows-1)*l.Spacing
}

// Offset returns the top-left pixel of cell i.
func (l Layout) Offset(i int) image.Point {
	if l.Columns == 0 {
		return image.Point{}
	}
	col, row := i%l.Columns, i/l.Columns
	return image.Pt(col*(l.FrameW+l.Spacing), row*(l.FrameH+l.Spacing))
}

// Validate reports ErrSheetTooLarge when the sheet cannot be uploaded as one
// texture.
func (l Layout) Validate() error {
	if w, h := l.Width(), l.Height(); w > MaxTextureSize || h > MaxTextureSize {
		return fmt.Errorf("%w: %dx%d (%d frames of %dx%d in %d columns) exceeds %d",
			ErrSheetTooLarge, w, h, l.N, l.FrameW, l.FrameH, l.Columns, MaxTextureSize)
	}
	return nil
}

// Pack draws images into one sheet in row-major order and returns it with
// the offset of every cell. Uncovered cells stay transparent. An empty input
// returns a nil sheet.
func Pack(images []*image.NRGBA, frameW, frameH int, opts Options) (*image.NRGBA, []image.Point, error) {
	if len(images) == 0 {
		return nil, nil, nil
	}
	for i, img := range images {
		if img == nil {
			return nil, nil, fmt.Errorf("%w: frame %d is nil", ErrDimensionMismatch, i)
		}
		if b := img.Bounds(); b.Dx() != frameW || b.Dy() != frameH {
			return nil, nil, fmt.Errorf("%w: frame %d is %dx%d, want %dx%d",
				ErrDimensionMismatch, i, b.Dx(), b.Dy(), frameW, frameH)
		}
	}

	l := NewLayout(len(images), frameW, frameH, opts)
	if err := l.Validate(); err != nil {
		return nil, nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, l.Width(), l.Height()))
	offsets := make([]image.Point, len(images))
	for i, img := range images {
		at := l.Offset(i)
		offsets[i] = at
		r := image.Rectangle{Min: at, Max: at.Add(image.Pt(frameW, frameH))}
		draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
	}
	return dst, offsets, nil
}
