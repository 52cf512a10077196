package export

import (
	"context"
	stderrors "errors"
	"image"

	"github.com/pkg/errors"

	"spriterig/internal/angles"
	"spriterig/internal/compositor"
	"spriterig/internal/config"
	"spriterig/internal/rig"
	"spriterig/internal/sampler"
	"spriterig/internal/sheet"
)

// Preview renders the current frame once from every rig camera and packs
// the first pass into one contact sheet with spacing pixels between cells.
// Nothing is written and scene state is restored.
func (e *Exporter) Preview(ctx context.Context, obj config.ObjectConfig, spacing int) (*image.NRGBA, error) {
	o, err := e.scene.Object(obj.Name)
	if err != nil {
		return nil, errors.Wrap(err, "export: preview")
	}
	if len(obj.Passes) == 0 {
		return nil, errors.Wrapf(ErrNoPasses, "object %q", obj.Name)
	}
	refName := obj.ReferenceCamera
	if refName == "" {
		refName = e.scene.ActiveCamera()
	}
	ref, err := e.scene.Camera(refName)
	if err != nil {
		return nil, errors.Wrap(err, "export: reference camera")
	}
	set := angles.NewSet(obj.CameraCount)
	if err := applyOverrides(set, obj.AngleOverrides); err != nil {
		return nil, errors.Wrapf(err, "export: object %q", obj.Name)
	}

	state := e.scene.Snapshot()
	defer e.scene.Restore(state)

	r, err := e.renderers(obj.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "export: renderer for %q", obj.Name)
	}
	pivot, err := e.pivot(o, r)
	if err != nil {
		return nil, err
	}
	cams := rig.BuildCameras(ref.Transform(), set.Angles(), pivot)
	passes := obj.Passes[:1]
	configurator, _ := r.(compositor.Configurator)

	stills := make([]*image.NRGBA, len(cams))
	for ci, t := range cams {
		still, err := e.still(ctx, r, configurator, ref.Name, obj.Name, ci, t, passes, state.Frame)
		if err != nil {
			return nil, err
		}
		stills[ci] = still
	}
	img, _, err := sheet.Pack(stills, e.opts.Width, e.opts.Height, sheet.Options{MaxColumns: obj.MaxColumns, Spacing: spacing})
	if err != nil {
		return nil, errors.Wrap(err, "export: preview")
	}
	return img, nil
}

func (e *Exporter) still(ctx context.Context, r sampler.Renderer, c compositor.Configurator, reference, object string, ci int, t rig.Transform, passes []string, frame int) (img *image.NRGBA, err error) {
	_, release, err := rig.Acquire(e.scene, reference, t)
	if err != nil {
		return nil, errors.Wrapf(err, "export: camera %d", ci)
	}
	defer func() {
		if rerr := release(); rerr != nil {
			err = stderrors.Join(err, rerr)
		}
	}()

	stream := sampler.Stream{
		Object:      object,
		Action:      sampler.DefaultAction,
		CameraIndex: ci,
		Camera:      t,
		Passes:      passes,
		Start:       frame,
		End:         frame,
		Width:       e.opts.Width,
		Height:      e.opts.Height,
	}
	err = compositor.With(c, passes, func() error {
		frames, serr := sampler.Sample(ctx, stream, frameSetter{scene: e.scene, r: r}, sampler.Options{Log: e.log})
		if serr != nil {
			return serr
		}
		img = frames[0].Images[0]
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "export: camera %d", ci)
	}
	return img, nil
}
