// Package export drives one object through the whole pipeline: rig the
// cameras, sample every action through the renderer, collapse duplicate
// frames, pack and encode the sheets and finally write metadata.json.
package export

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"spriterig/internal/angles"
	"spriterig/internal/compositor"
	"spriterig/internal/compress"
	"spriterig/internal/config"
	"spriterig/internal/imageio"
	"spriterig/internal/logger"
	"spriterig/internal/mathutil"
	"spriterig/internal/mesh"
	"spriterig/internal/metadata"
	"spriterig/internal/rig"
	"spriterig/internal/sampler"
	"spriterig/internal/scene"
	"spriterig/internal/sheet"
)

// ErrNoPasses is returned for an object configured without passes.
var ErrNoPasses = stderrors.New("export: no passes")

// ManifestName is the file ExportAll writes next to the object folders.
const ManifestName = "manifest.json"

// RendererFactory returns the renderer for one object. A renderer that
// also implements compositor.Configurator gets its passes injected around
// every camera pass.
type RendererFactory func(object string) (sampler.Renderer, error)

// Options configures an Exporter.
type Options struct {
	Width   int // frame size in pixels
	Height  int
	FPS     int // output frame rate written to metadata
	Workers int
	Keyer   sampler.Keyer
	Log     logrus.FieldLogger
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
	// RunID tags log lines and the manifest; a v7 UUID when empty.
	RunID string
}

// Exporter renders objects of one scene.
type Exporter struct {
	scene     *scene.Scene
	renderers RendererFactory
	opts      Options
	log       logrus.FieldLogger
}

// New returns an exporter.
func New(sc *scene.Scene, renderers RendererFactory, opts Options) *Exporter {
	if opts.RunID == "" {
		opts.RunID = uuid.Must(uuid.NewV7()).String()
	}
	if opts.FPS <= 0 {
		opts.FPS = sc.FPS()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Exporter{
		scene:     sc,
		renderers: renderers,
		opts:      opts,
		log:       logger.Or(opts.Log).WithField("run", opts.RunID),
	}
}

// RunID identifies this exporter's run.
func (e *Exporter) RunID() string {
	return e.opts.RunID
}

// Sheet is one written sprite sheet.
type Sheet struct {
	Action string
	Camera int
	Pass   string
	Path   string
}

// Result describes one exported object.
type Result struct {
	Object       string
	OutputDir    string
	MetadataPath string
	Metadata     metadata.Metadata
	Sheets       []Sheet
	FailedFrames int
}

// CameraDir is the folder name of camera i.
func CameraDir(i int) string {
	return fmt.Sprintf("camera_%02d", i)
}

// SheetPath is where the sheet of (action, camera, pass) is written.
func SheetPath(root, action string, camera int, pass string, f imageio.Format) string {
	return filepath.Join(root, action, CameraDir(camera), pass+f.Ext())
}

// clip is one action to sample.
type clip struct {
	name       string // metadata name
	action     string // scene action, "" for the current pose
	start, end int
	fps        float64
}

// Export renders obj. metadata.json is written last, only after every
// sheet succeeded. The scene's playback state is restored on every path.
func (e *Exporter) Export(ctx context.Context, obj config.ObjectConfig) (*Result, error) {
	log := e.log.WithField("object", obj.Name)
	started := time.Now()

	o, err := e.scene.Object(obj.Name)
	if err != nil {
		return nil, errors.Wrap(err, "export")
	}
	if len(obj.Passes) == 0 {
		return nil, errors.Wrapf(ErrNoPasses, "object %q", obj.Name)
	}
	format := imageio.PNG
	if obj.Format != "" {
		if format, err = imageio.ParseFormat(obj.Format); err != nil {
			return nil, errors.Wrap(err, "export")
		}
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

	clips, err := e.clips(obj, state.Frame)
	if err != nil {
		return nil, err
	}

	// Reject sheets that cannot fit before spending any render time.
	for _, c := range clips {
		l := sheet.NewLayout(c.end-c.start+1, e.opts.Width, e.opts.Height, sheet.Options{MaxColumns: obj.MaxColumns})
		if err := l.Validate(); err != nil {
			return nil, errors.Wrapf(err, "export: action %q", c.name)
		}
	}

	r, err := e.renderers(obj.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "export: renderer for %q", obj.Name)
	}
	pivot, err := e.pivot(o, r)
	if err != nil {
		return nil, err
	}
	cams := rig.BuildCameras(ref.Transform(), set.Angles(), pivot)

	skip := obj.SkipDuplicates != nil && *obj.SkipDuplicates
	res := &Result{
		Object:       obj.Name,
		OutputDir:    obj.OutputDir,
		MetadataPath: filepath.Join(obj.OutputDir, metadata.FileName),
		Metadata: metadata.Metadata{
			FPS:             e.opts.FPS,
			FrameDimensions: metadata.Dimensions{Width: e.opts.Width, Height: e.opts.Height},
			Passes:          append([]string(nil), obj.Passes...),
		},
	}

	steps := 0
	for _, c := range clips {
		steps += len(cams) * (c.end - c.start + 1)
	}
	bar := e.progress(steps, obj.Name)
	defer bar.Finish()

	log.WithFields(logrus.Fields{
		"cameras": len(cams),
		"actions": len(clips),
		"passes":  obj.Passes,
		"angles":  set.Angles(),
	}).Info("export started")

	for _, c := range clips {
		action, failed, err := e.exportClip(ctx, log, obj, o, r, ref.Name, cams, c, skip, format, bar, res)
		if err != nil {
			return nil, err
		}
		res.FailedFrames += failed
		res.Metadata.Actions = append(res.Metadata.Actions, action)
	}

	if err := metadata.Write(res.MetadataPath, res.Metadata); err != nil {
		return nil, errors.Wrap(err, "export")
	}
	log.WithFields(logrus.Fields{
		"sheets":  len(res.Sheets),
		"failed":  res.FailedFrames,
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Info("export finished")
	return res, nil
}

func applyOverrides(set *angles.Set, overrides map[int]float64) error {
	idx := make([]int, 0, len(overrides))
	for i := range overrides {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		if err := set.Override(i, overrides[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) clips(obj config.ObjectConfig, current int) ([]clip, error) {
	if len(obj.Actions) == 0 {
		return []clip{{name: sampler.DefaultAction, start: current, end: current}}, nil
	}
	out := make([]clip, 0, len(obj.Actions))
	for _, name := range obj.Actions {
		a, err := e.scene.Action(name)
		if err != nil {
			return nil, errors.Wrapf(err, "export: object %q", obj.Name)
		}
		fps := a.FPS
		if fps <= 0 {
			fps = float64(e.scene.FPS())
		}
		out = append(out, clip{name: a.Name, action: a.Name, start: a.FrameStart, end: a.FrameEnd, fps: fps})
	}
	return out, nil
}

type modeler interface {
	Model() *mesh.Model
}

// pivot is the point the rig orbits: the object's location, or the center
// of its posed bounding box.
func (e *Exporter) pivot(o scene.Object, r sampler.Renderer) (mathutil.Vec3, error) {
	pose, err := e.scene.Pose(o.Name)
	if err != nil {
		return mathutil.Vec3{}, errors.Wrap(err, "export: pivot")
	}
	if o.Pivot != scene.PivotBounds {
		return pose.Location, nil
	}
	var model *mesh.Model
	if m, ok := r.(modeler); ok {
		model = m.Model()
	} else if model, err = mesh.Load(o.Mesh); err != nil {
		return mathutil.Vec3{}, errors.Wrap(err, "export: pivot")
	}
	return model.Center(pose.Matrix()), nil
}

func (e *Exporter) progress(steps int, desc string) *progressbar.ProgressBar {
	w := e.opts.Progress
	visible := w != nil
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// frameSetter moves the scene playhead before every render call.
type frameSetter struct {
	scene *scene.Scene
	r     sampler.Renderer
}

func (f frameSetter) Render(ctx context.Context, req sampler.Request) (map[string]*image.NRGBA, error) {
	f.scene.SetFrame(req.Frame)
	return f.r.Render(ctx, req)
}

func (e *Exporter) exportClip(
	ctx context.Context,
	log logrus.FieldLogger,
	obj config.ObjectConfig,
	o scene.Object,
	r sampler.Renderer,
	reference string,
	cams []rig.Transform,
	c clip,
	skip bool,
	format imageio.Format,
	bar *progressbar.ProgressBar,
	res *Result,
) (metadata.Action, int, error) {
	log = log.WithField("action", c.name)
	if c.action != "" {
		if err := e.scene.SetAction(o.Name, c.action); err != nil {
			return metadata.Action{}, 0, errors.Wrap(err, "export")
		}
	}
	configurator, _ := r.(compositor.Configurator)

	perCamera := make([][]sampler.Frame, len(cams))
	failed := 0
	for ci, t := range cams {
		frames, err := e.sampleCamera(ctx, log, obj, r, configurator, reference, ci, t, c, bar)
		if err != nil {
			return metadata.Action{}, 0, err
		}
		for _, f := range frames {
			if f.Failed {
				failed++
			}
		}
		perCamera[ci] = frames
	}

	streams := make([][]sampler.Key, len(perCamera))
	for ci, frames := range perCamera {
		streams[ci] = compress.Keys(frames)
	}
	keys, err := compress.CombineStreams(streams)
	if err != nil {
		return metadata.Action{}, 0, errors.Wrap(err, "export")
	}
	comp := compress.Compress(keys, skip, compress.Timing{SourceFPS: c.fps, OutputFPS: e.opts.FPS})
	layout := sheet.NewLayout(len(comp.Runs), e.opts.Width, e.opts.Height, sheet.Options{MaxColumns: obj.MaxColumns})
	if err := layout.Validate(); err != nil {
		return metadata.Action{}, 0, errors.Wrapf(err, "export: action %q", c.name)
	}
	action := metadata.Action{
		Name:      c.name,
		Sprites:   compress.Entries(comp.Runs, layout),
		Overrides: comp.Overrides,
	}
	if err := metadata.Validate(action, c.end-c.start+1); err != nil {
		log.WithError(err).Warn("sprite runs disagree with clip length")
	}

	reps := compress.Representatives(comp.Runs)
	var jobs []sheetJob
	for ci, frames := range perCamera {
		for pi, pass := range obj.Passes {
			imgs := make([]*image.NRGBA, len(reps))
			for k, fi := range reps {
				imgs[k] = frames[fi].Images[pi]
			}
			jobs = append(jobs, sheetJob{
				Action: c.name,
				Camera: ci,
				Pass:   pass,
				Path:   SheetPath(obj.OutputDir, c.name, ci, pass, format),
				Images: imgs,
				FrameW: e.opts.Width,
				FrameH: e.opts.Height,
				Sheet:  sheet.Options{MaxColumns: obj.MaxColumns},
				Format: format,
			})
		}
	}
	errs := encodeSheets(ctx, jobs, e.opts.Workers, log)
	if err := stderrors.Join(errs...); err != nil {
		return metadata.Action{}, 0, errors.Wrapf(err, "export: action %q", c.name)
	}
	for _, j := range jobs {
		res.Sheets = append(res.Sheets, Sheet{Action: j.Action, Camera: j.Camera, Pass: j.Pass, Path: j.Path})
	}

	log.WithFields(logrus.Fields{
		"frames":  len(keys),
		"sprites": len(comp.Runs),
	}).Debug("action packed")
	return action, failed, nil
}

func (e *Exporter) sampleCamera(
	ctx context.Context,
	log logrus.FieldLogger,
	obj config.ObjectConfig,
	r sampler.Renderer,
	configurator compositor.Configurator,
	reference string,
	ci int,
	t rig.Transform,
	c clip,
	bar *progressbar.ProgressBar,
) (frames []sampler.Frame, err error) {
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
		Object:      obj.Name,
		Action:      c.name,
		CameraIndex: ci,
		Camera:      t,
		Passes:      obj.Passes,
		Start:       c.start,
		End:         c.end,
		Width:       e.opts.Width,
		Height:      e.opts.Height,
	}
	err = compositor.With(configurator, obj.Passes, func() error {
		var serr error
		frames, serr = sampler.Sample(ctx, stream, frameSetter{scene: e.scene, r: r}, sampler.Options{
			Keyer:    e.opts.Keyer,
			Log:      log,
			Progress: func() { _ = bar.Add(1) },
		})
		return serr
	})
	if err != nil {
		return nil, errors.Wrapf(err, "export: camera %d", ci)
	}
	return frames, nil
}

// ExportAll exports every object in order and writes manifest.json into
// root. A failing object is recorded in the manifest and the remaining
// objects still run; cancellation stops immediately.
func (e *Exporter) ExportAll(ctx context.Context, objs []config.ObjectConfig, root string) (Manifest, error) {
	m := Manifest{RunID: e.opts.RunID}
	var errs []error
	for _, obj := range objs {
		res, err := e.Export(ctx, obj)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return m, ctxErr
			}
			e.log.WithField("object", obj.Name).WithError(err).Error("export failed")
			m.Objects = append(m.Objects, ManifestEntry{Object: obj.Name, OutputDir: obj.OutputDir, Error: err.Error()})
			errs = append(errs, err)
			continue
		}
		m.Objects = append(m.Objects, manifestEntry(res))
	}
	if err := WriteManifest(filepath.Join(root, ManifestName), m); err != nil {
		errs = append(errs, errors.Wrap(err, "export: manifest"))
	}
	return m, stderrors.Join(errs...)
}
