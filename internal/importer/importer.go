// Package importer rebuilds playable animations from an exported
// metadata.json and its sprite sheets.
package importer

import (
	"context"
	"image"
	"io"
	"math"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"spriterig/internal/imageio"
	"spriterig/internal/logger"
	"spriterig/internal/metadata"
)

// Options selects which sheets to bind.
type Options struct {
	Camera int
	// Pass defaults to the first pass listed in the metadata.
	Pass string
	// Ext is the sheet extension including the dot; empty tries every format.
	Ext string
	// Runs yields one frame per stored sprite holding the run's total
	// duration instead of one frame per original frame.
	Runs bool
	Log  logrus.FieldLogger
}

// Frame is one playable frame. Image is nil when the sheet could not be
// resolved.
type Frame struct {
	Index    int // 0-based offset of the first original frame
	Frames   int // original frames covered
	Region   image.Rectangle
	Duration float64 // seconds
	Image    *image.NRGBA
}

// Animation is one imported action.
type Animation struct {
	Name   string
	Sheet  string // resolved sheet path, "" when missing
	Frames []Frame
}

// Duration is the playback length in seconds.
func (a *Animation) Duration() float64 {
	var d float64
	for _, f := range a.Frames {
		d += f.Duration
	}
	return d
}

// Resource is the imported animated sprite.
type Resource struct {
	FPS             int
	FrameDimensions metadata.Dimensions
	Pass            string
	Camera          int
	Animations      []Animation
}

// Animation returns the named animation.
func (r *Resource) Animation(name string) (*Animation, bool) {
	for i := range r.Animations {
		if r.Animations[i].Name == name {
			return &r.Animations[i], true
		}
	}
	return nil, false
}

// Import reads root/metadata.json and binds every action to its sheet.
// Malformed metadata aborts the import; a missing or unreadable sheet is
// logged and leaves that action's frames without images.
func Import(ctx context.Context, root string, opts Options) (*Resource, error) {
	log := logger.Or(opts.Log).WithField("root", root)
	md, err := metadata.Read(filepath.Join(root, metadata.FileName))
	if err != nil {
		return nil, errors.Wrap(err, "importer")
	}

	pass := opts.Pass
	if pass == "" && len(md.Passes) > 0 {
		pass = md.Passes[0]
	}
	res := &Resource{
		FPS:             md.FPS,
		FrameDimensions: md.FrameDimensions,
		Pass:            pass,
		Camera:          opts.Camera,
	}

	sheets := make(map[string]*image.NRGBA)
	for _, a := range md.Actions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		alog := log.WithField("action", a.Name)
		anim := Animation{Name: a.Name, Frames: frames(md, a, opts.Runs)}

		sheet, path := loadSheet(root, a.Name, opts, pass, sheets, alog)
		anim.Sheet = path
		if sheet != nil {
			bind(&anim, sheet, alog)
		}
		res.Animations = append(res.Animations, anim)
	}
	return res, nil
}

func frames(md metadata.Metadata, a metadata.Action, runs bool) []Frame {
	if runs {
		rs := metadata.ExpandRuns(md, a)
		out := make([]Frame, len(rs))
		for i, r := range rs {
			out[i] = Frame{Index: r.Start, Frames: r.Frames, Region: r.Region, Duration: r.Duration}
		}
		return out
	}
	fs := metadata.Expand(md, a)
	out := make([]Frame, len(fs))
	for i, f := range fs {
		out[i] = Frame{Index: f.Index, Frames: 1, Region: f.Region, Duration: f.Duration}
	}
	return out
}

func loadSheet(root, action string, opts Options, pass string, cache map[string]*image.NRGBA, log logrus.FieldLogger) (*image.NRGBA, string) {
	path, err := ResolveSheet(root, action, opts.Camera, pass, opts.Ext)
	if err != nil {
		log.Warn(err)
		return nil, ""
	}
	if img, ok := cache[path]; ok {
		return img, path
	}
	img, err := imageio.Load(path)
	if err != nil {
		log.WithError(err).Warnf("%v: %s unreadable", ErrTextureResolution, path)
		cache[path] = nil
		return nil, path
	}
	cache[path] = img
	return img, path
}

// bind cuts every frame's region out of the sheet. Regions (partly)
// outside the sheet are left without image.
func bind(a *Animation, sheet *image.NRGBA, log logrus.FieldLogger) {
	cut := make(map[image.Rectangle]*image.NRGBA)
	for i := range a.Frames {
		r := a.Frames[i].Region
		if !r.In(sheet.Bounds()) {
			log.WithField("region", r).Warnf("%v: region outside %v sheet", ErrTextureResolution, sheet.Bounds().Size())
			continue
		}
		img, ok := cut[r]
		if !ok {
			img = imageio.Crop(sheet, r)
			cut[r] = img
		}
		a.Frames[i].Image = img
	}
}

// WriteAnimatedWebP encodes the named animation as a looping animated WebP.
// Frames without image are written transparent.
func (r *Resource) WriteAnimatedWebP(w io.Writer, action string) error {
	a, ok := r.Animation(action)
	if !ok {
		return errors.Errorf("importer: no action %q", action)
	}
	if len(a.Frames) == 0 {
		return errors.Errorf("importer: action %q has no frames", action)
	}
	blank := image.NewNRGBA(image.Rect(0, 0, r.FrameDimensions.Width, r.FrameDimensions.Height))
	ani := &nativewebp.Animation{
		Images:    make([]image.Image, len(a.Frames)),
		Durations: make([]uint, len(a.Frames)),
		Disposals: make([]uint, len(a.Frames)),
	}
	for i, f := range a.Frames {
		img := f.Image
		if img == nil {
			img = blank
		}
		ani.Images[i] = img
		ani.Durations[i] = uint(max(1, math.Round(f.Duration*1000)))
	}
	if err := nativewebp.EncodeAll(w, ani, nil); err != nil {
		return errors.Wrapf(err, "importer: encode %q", action)
	}
	return nil
}
