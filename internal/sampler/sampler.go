// Package sampler walks an action's frame range for one camera, calling the
// renderer once per frame in increasing frame order and fingerprinting the
// result.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"spriterig/internal/logger"
	"spriterig/internal/rig"
)

// DefaultAction names the synthetic single-frame action rendered when no
// clips are selected.
const DefaultAction = "_default"

// ErrRenderFailure marks a frame the renderer could not produce. It is
// logged, not returned, so partial exports still complete.
var ErrRenderFailure = errors.New("sampler: render failure")

// Request is one render call.
type Request struct {
	Action      string // DefaultAction when the current frame is rendered as is
	Camera      rig.Transform
	CameraIndex int
	Frame       int
	Passes      []string
}

// Renderer produces one image per requested pass. Implementations are
// synchronous and not reentrant; the sampler never calls Render concurrently.
type Renderer interface {
	Render(ctx context.Context, req Request) (map[string]*image.NRGBA, error)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(ctx context.Context, req Request) (map[string]*image.NRGBA, error)

func (f RenderFunc) Render(ctx context.Context, req Request) (map[string]*image.NRGBA, error) {
	return f(ctx, req)
}

// Stream identifies the frames of one (action, camera) pair.
type Stream struct {
	Object      string
	Action      string
	CameraIndex int
	Camera      rig.Transform
	Passes      []string
	Start, End  int // inclusive
	Width       int
	Height      int
}

// Frame is one sampled frame. Images are indexed like Stream.Passes.
type Frame struct {
	Index  int // absolute frame number
	Images []*image.NRGBA
	Key    Key
	Failed bool
}

// Options tunes Sample.
type Options struct {
	Keyer Keyer
	Log   logrus.FieldLogger
	// Progress is called after every rendered frame.
	Progress func()
}

// Sample renders every frame of s in increasing order.
func Sample(ctx context.Context, s Stream, r Renderer, opts Options) ([]Frame, error) {
	if s.End < s.Start {
		return nil, fmt.Errorf("sampler: empty frame range [%d,%d]", s.Start, s.End)
	}
	keyer := opts.Keyer
	if keyer == nil {
		keyer = ExactKeyer{}
	}
	log := logger.Or(opts.Log).WithFields(logrus.Fields{
		"object": s.Object,
		"action": s.Action,
		"camera": s.CameraIndex,
	})
	streamID := fmt.Sprintf("%s/%s/%d", s.Object, s.Action, s.CameraIndex)

	frames := make([]Frame, 0, s.End-s.Start+1)
	for f := s.Start; f <= s.End; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := Request{Action: s.Action, Camera: s.Camera, CameraIndex: s.CameraIndex, Frame: f, Passes: s.Passes}
		out, err := r.Render(ctx, req)
		if err == nil {
			err = checkPasses(out, s)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.WithField("frame", f).Warnf("%v: %v", ErrRenderFailure, err)
			frames = append(frames, Frame{
				Index:  f,
				Images: blankImages(len(s.Passes), s.Width, s.Height),
				Key:    uniqueKey(streamID, f),
				Failed: true,
			})
		} else {
			imgs := make([]*image.NRGBA, len(s.Passes))
			for i, p := range s.Passes {
				imgs[i] = out[p]
			}
			frames = append(frames, Frame{Index: f, Images: imgs, Key: keyer.Key(imgs)})
			log.WithField("frame", f).Debug("sampled")
		}
		if opts.Progress != nil {
			opts.Progress()
		}
	}
	return frames, nil
}

func checkPasses(out map[string]*image.NRGBA, s Stream) error {
	for _, p := range s.Passes {
		img, ok := out[p]
		if !ok || img == nil {
			return fmt.Errorf("pass %q missing", p)
		}
	}
	return nil
}

func blankImages(n, w, h int) []*image.NRGBA {
	out := make([]*image.NRGBA, n)
	for i := range out {
		out[i] = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	return out
}
