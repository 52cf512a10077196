// Package imageio encodes and decodes the raster formats sprite sheets and
// textures are stored in. Every decoded image is returned as *image.NRGBA.
package imageio

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// Format is an output image format, named by its file extension.
type Format string

const (
	PNG  Format = "png"
	WebP Format = "webp"
	TGA  Format = "tga"
)

// Formats lists the writable formats.
var Formats = []Format{PNG, WebP, TGA}

// ParseFormat accepts a format name or extension, case-insensitively and
// with or without the leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(s), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("imageio: unknown format %q", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Encode writes img in format f. WebP output is lossless.
func Encode(w io.Writer, img *image.NRGBA, f Format) error {
	// nativewebp addresses pixels from (0,0)
	if img.Rect.Min != (image.Point{}) {
		img = Crop(img, img.Rect)
	}
	var err error
	switch f {
	case PNG:
		err = png.Encode(w, img)
	case WebP:
		err = nativewebp.Encode(w, img, nil)
	case TGA:
		err = tga.Encode(w, img)
	default:
		return fmt.Errorf("imageio: unknown format %q", f)
	}
	if err != nil {
		return fmt.Errorf("imageio: encode %s: %w", f, err)
	}
	return nil
}

// Save encodes img to path, creating parent directories.
func Save(path string, img *image.NRGBA, f Format) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("imageio: mkdir %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("imageio: close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := Encode(bw, img, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return bw.Flush()
}

// Decode sniffs the content type and decodes r. Data no signature matches
// is tried as TGA, which has no magic number.
func Decode(r io.Reader) (*image.NRGBA, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("imageio: read: %w", err)
	}

	kind, _ := filetype.Match(data)
	var img image.Image
	br := bytes.NewReader(data)
	switch kind.Extension {
	case "png":
		img, err = png.Decode(br)
	case "jpg":
		img, err = jpeg.Decode(br)
	case "webp":
		img, err = nativewebp.Decode(br)
	case "bmp":
		img, err = bmp.Decode(br)
	default:
		if kind != filetype.Unknown {
			return nil, fmt.Errorf("imageio: unsupported content type %s", kind.MIME.Value)
		}
		img, err = tga.Decode(br)
	}
	if err != nil {
		return nil, fmt.Errorf("imageio: decode: %w", err)
	}
	return ToNRGBA(img), nil
}

// Load decodes the image file at path.
func Load(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ToNRGBA converts src to NRGBA with its origin at (0,0). An NRGBA already
// at the origin is returned as is.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Crop copies region r of src into a new image at the origin. Parts of r
// outside src stay transparent.
func Crop(src *image.NRGBA, r image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}
