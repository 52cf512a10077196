package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"spriterig/internal/logger"
	"spriterig/internal/mathutil"
	"spriterig/internal/mesh"
	"spriterig/internal/postprocess"
	"spriterig/internal/sampler"
	"spriterig/internal/scene"
	"spriterig/internal/texture"
	"spriterig/internal/viewmatrix"
)

// Pass names produced by Renderer.
const (
	PassLit      = "lit"
	PassDiffuse  = "diffuse"
	PassSpecular = "specular"
	PassNormal   = "normal"
	PassDepth    = "depth"
	PassAlpha    = "alpha"
)

// Passes lists every pass in canonical order.
var Passes = []string{PassLit, PassDiffuse, PassSpecular, PassNormal, PassDepth, PassAlpha}

// ErrUnknownPass is returned for pass names the renderer cannot produce.
var ErrUnknownPass = errors.New("raster: unknown pass")

// KnownPass reports whether name is one of Passes.
func KnownPass(name string) bool {
	for _, p := range Passes {
		if p == name {
			return true
		}
	}
	return false
}

// Options configures a Renderer.
type Options struct {
	Width       int
	Height      int
	Supersample int // render at N× then downsample; <1 means 1
	Light       *LightConfig
	Textures    texture.Resolver
	Log         logrus.FieldLogger
}

// Renderer rasterizes one scene object through the scene's active camera.
// The pose is evaluated at the scene's current frame under the object's
// assigned action.
type Renderer struct {
	scene  *scene.Scene
	object scene.Object
	model  *mesh.Model
	opts   Options
	light  LightConfig
	log    logrus.FieldLogger

	mu      sync.Mutex
	enabled map[string]bool // nil: every pass
}

// New loads the object's mesh and returns a renderer for it.
func New(sc *scene.Scene, object string, opts Options) (*Renderer, error) {
	o, err := sc.Object(object)
	if err != nil {
		return nil, err
	}
	model, err := mesh.Load(o.Mesh)
	if err != nil {
		return nil, err
	}
	return NewWithModel(sc, object, model, opts)
}

// NewWithModel is New with an already loaded mesh.
func NewWithModel(sc *scene.Scene, object string, model *mesh.Model, opts Options) (*Renderer, error) {
	o, err := sc.Object(object)
	if err != nil {
		return nil, err
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("raster: invalid size %dx%d", opts.Width, opts.Height)
	}
	if opts.Supersample < 1 {
		opts.Supersample = 1
	}
	light := DefaultLightConfig()
	if opts.Light != nil {
		light = *opts.Light
	}
	log := logger.Or(opts.Log).WithField("object", object)
	log.WithFields(logrus.Fields{
		"triangles": model.TriangleCount(),
		"groups":    len(model.Groups),
	}).Debug("mesh loaded")
	return &Renderer{scene: sc, object: o, model: model, opts: opts, light: light, log: log}, nil
}

// Model returns the loaded mesh.
func (r *Renderer) Model() *mesh.Model {
	return r.model
}

// Inject limits rendering to passes until restore is called.
func (r *Renderer) Inject(passes []string) (func() error, error) {
	next := make(map[string]bool, len(passes))
	for _, p := range passes {
		if !KnownPass(p) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPass, p)
		}
		next[p] = true
	}
	r.mu.Lock()
	prev := r.enabled
	r.enabled = next
	r.mu.Unlock()
	return func() error {
		r.mu.Lock()
		r.enabled = prev
		r.mu.Unlock()
		return nil
	}, nil
}

func (r *Renderer) passEnabled(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled == nil || r.enabled[p]
}

func lensOf(c scene.Camera) viewmatrix.Lens {
	return viewmatrix.Lens{
		Ortho:       c.Projection == scene.Orthographic,
		FocalLength: c.FocalLength,
		SensorWidth: c.SensorWidth,
		OrthoScale:  c.OrthoScale,
		ClipStart:   c.ClipStart,
		ClipEnd:     c.ClipEnd,
	}
}

// Render draws the object from req.Camera using the active camera's lens.
func (r *Renderer) Render(ctx context.Context, req sampler.Request) (map[string]*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range req.Passes {
		if !KnownPass(p) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPass, p)
		}
	}

	cam, err := r.scene.Camera(r.scene.ActiveCamera())
	if err != nil {
		return nil, fmt.Errorf("raster: active camera: %w", err)
	}
	pose, err := r.scene.Pose(r.object.Name)
	if err != nil {
		return nil, fmt.Errorf("raster: pose: %w", err)
	}

	ss := r.opts.Supersample
	w, h := r.opts.Width*ss, r.opts.Height*ss
	lens := lensOf(cam)
	proj := viewmatrix.New(req.Camera, lens, w, h)
	lc := r.light.ForView(req.Camera.Forward())

	fb := r.rasterize(proj, lens, req, pose.Matrix(), &lc, w, h)

	out := make(map[string]*image.NRGBA, len(req.Passes))
	for _, p := range req.Passes {
		if !r.passEnabled(p) {
			continue
		}
		img := passImage(fb, p, proj)
		if ss > 1 {
			img = postprocess.Downsample(img, r.opts.Width, r.opts.Height)
		}
		out[p] = img
	}
	return out, nil
}

func (r *Renderer) rasterize(proj viewmatrix.Projector, lens viewmatrix.Lens, req sampler.Request, world mathutil.Mat4, lc *LightConfig, w, h int) *GBuffer {
	m := r.model
	verts := make([]mathutil.Vec3, len(m.Verts))
	for i, v := range m.Verts {
		verts[i] = world.MulPoint(mathutil.Vec3{float64(v[0]), float64(v[1]), float64(v[2])})
	}
	px, py, pz, ok := proj.ProjectVertices(verts)
	viewRot := proj.ViewRotation()
	forward := req.Camera.Forward()

	fb := NewGBuffer(w, h)
	for _, g := range m.Groups {
		var s Surface
		s.Base = r.baseColor(g)
		s.Tex = r.groupTexture(g)

		for _, tri := range g.Tris {
			vi := tri.VI
			if !ok[vi[0]] || !ok[vi[1]] || !ok[vi[2]] {
				continue
			}
			a, b, c := verts[vi[0]], verts[vi[1]], verts[vi[2]]
			n := b.Sub(a).Cross(c.Sub(a))
			if n.Len() < 1e-12 {
				continue
			}
			n = n.Normalize()

			// Double-sided: flip normals away from the viewer.
			toEye := forward.Scale(-1)
			if !lens.Ortho {
				toEye = req.Camera.Position.Sub(a)
			}
			if n.Dot(toEye) < 0 {
				n = n.Scale(-1)
			}
			s.Normal = n
			s.CamNormal = viewRot.MulVec3(n).Normalize()

			if s.Tex != nil {
				for k := 0; k < 3; k++ {
					s.UV[k] = [2]float64{}
					if ti := tri.TI[k]; ti >= 0 && ti < len(m.UVs) {
						s.UV[k] = [2]float64{float64(m.UVs[ti][0]), float64(m.UVs[ti][1])}
					}
				}
			}

			RasterizeTriangle(fb,
				[3]float64{px[vi[0]], px[vi[1]], px[vi[2]]},
				[3]float64{py[vi[0]], py[vi[1]], py[vi[2]]},
				[3]float64{pz[vi[0]], pz[vi[1]], pz[vi[2]]},
				&s, lc, proj.Depth)
		}
	}
	return fb
}

func (r *Renderer) baseColor(g mesh.Group) [4]uint8 {
	if mat, ok := r.model.Materials[g.Material]; ok {
		return [4]uint8{
			linearToSRGB8(mat.Diffuse[0], 1/2.2),
			linearToSRGB8(mat.Diffuse[1], 1/2.2),
			linearToSRGB8(mat.Diffuse[2], 1/2.2),
			255,
		}
	}
	c := r.object.Color
	return [4]uint8{c[0], c[1], c[2], 255}
}

func (r *Renderer) groupTexture(g mesh.Group) *image.NRGBA {
	if r.opts.Textures == nil {
		return nil
	}
	name := r.object.Texture
	if mat, ok := r.model.Materials[g.Material]; ok && mat.Texture != "" {
		name = mat.Texture
	}
	if name == "" {
		return nil
	}
	tex := r.opts.Textures.Resolve(name)
	if tex == nil {
		r.log.WithField("texture", name).Debug("texture not found, using base color")
	}
	return tex
}

func passImage(fb *GBuffer, pass string, proj viewmatrix.Projector) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	switch pass {
	case PassLit:
		copy(img.Pix, fb.Lit)
	case PassDiffuse:
		copy(img.Pix, fb.Albedo)
	case PassSpecular:
		copy(img.Pix, fb.Spec)
	case PassNormal:
		copy(img.Pix, fb.Normal)
	case PassDepth:
		for i, a := range fb.Alpha {
			if a == 0 || math.IsInf(fb.Depth[i], 1) {
				continue
			}
			v := clamp255(proj.NormalizedDepth(fb.Depth[i]) * 255)
			p := i * 4
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = v, v, v, a
		}
	case PassAlpha:
		for i, a := range fb.Alpha {
			p := i * 4
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = a, a, a, 255
		}
	}
	return img
}
