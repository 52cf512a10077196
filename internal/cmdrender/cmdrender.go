// Package cmdrender renders frames by running an external command once per
// frame. The command writes one image per pass into a scratch directory,
// named <pass>.<ext>, which is read back after it exits. The action is also
// exported as SPRITERIG_ACTION.
//
// Template placeholders:
//
//	{action}           action name, _default for the current frame
//	{frame}            frame number
//	{camera}           camera index
//	{out}              scratch directory for the pass images
//	{passes}           comma separated pass names
//	{width} {height}   frame size in pixels
//	{px} {py} {pz}     camera position
//	{qw} {qx} {qy} {qz} camera rotation quaternion
package cmdrender

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"spriterig/internal/imageio"
	"spriterig/internal/logger"
	"spriterig/internal/sampler"
)

// Options configures a Renderer.
type Options struct {
	Width   int
	Height  int
	Format  imageio.Format // pass file format, default png
	WorkDir string         // parent of the scratch directories, default os.TempDir()
	Env     []string       // added to the process environment
	Log     logrus.FieldLogger
}

// Renderer runs a command template per frame.
type Renderer struct {
	args []string
	opts Options
	log  logrus.FieldLogger
}

// New splits template on whitespace. Placeholders are substituted per
// argument, so substituted values may contain spaces.
func New(template string, opts Options) (*Renderer, error) {
	args := strings.Fields(template)
	if len(args) == 0 {
		return nil, fmt.Errorf("cmdrender: empty command")
	}
	if opts.Format == "" {
		opts.Format = imageio.PNG
	}
	return &Renderer{args: args, opts: opts, log: logger.Or(opts.Log)}, nil
}

func f64(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (r *Renderer) expand(req sampler.Request, out string) []string {
	q := req.Camera.Quat()
	p := req.Camera.Position
	rep := strings.NewReplacer(
		"{action}", req.Action,
		"{frame}", strconv.Itoa(req.Frame),
		"{camera}", strconv.Itoa(req.CameraIndex),
		"{out}", out,
		"{passes}", strings.Join(req.Passes, ","),
		"{width}", strconv.Itoa(r.opts.Width),
		"{height}", strconv.Itoa(r.opts.Height),
		"{px}", f64(p[0]), "{py}", f64(p[1]), "{pz}", f64(p[2]),
		"{qx}", f64(q[0]), "{qy}", f64(q[1]), "{qz}", f64(q[2]), "{qw}", f64(q[3]),
	)
	args := make([]string, len(r.args))
	for i, a := range r.args {
		args[i] = rep.Replace(a)
	}
	return args
}

// Render runs the command for one frame and loads its pass images.
func (r *Renderer) Render(ctx context.Context, req sampler.Request) (map[string]*image.NRGBA, error) {
	out, err := os.MkdirTemp(r.opts.WorkDir, fmt.Sprintf("frame%06d-cam%02d-", req.Frame, req.CameraIndex))
	if err != nil {
		return nil, fmt.Errorf("cmdrender: scratch dir: %w", err)
	}
	defer os.RemoveAll(out)

	args := r.expand(req, out)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(append(os.Environ(), r.opts.Env...), "SPRITERIG_ACTION="+req.Action)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.log.WithFields(logrus.Fields{
		"action": req.Action,
		"frame":  req.Frame,
		"camera": req.CameraIndex,
	}).Debugf("run %s", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("cmdrender: frame %d camera %d: %w: %s",
			req.Frame, req.CameraIndex, err, strings.TrimSpace(output.String()))
	}

	imgs := make(map[string]*image.NRGBA, len(req.Passes))
	for _, pass := range req.Passes {
		path := filepath.Join(out, pass+r.opts.Format.Ext())
		img, err := imageio.Load(path)
		if err != nil {
			return nil, fmt.Errorf("cmdrender: frame %d pass %s: %w", req.Frame, pass, err)
		}
		imgs[pass] = img
	}
	return imgs, nil
}
