// Package app wires one run of the tool: configuration, scene, texture
// cache, renderers and exporter. An App is created by New and must be
// closed; nothing is registered globally.
package app

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"spriterig/internal/cmdrender"
	"spriterig/internal/config"
	"spriterig/internal/export"
	"spriterig/internal/imageio"
	"spriterig/internal/logger"
	"spriterig/internal/postprocess"
	"spriterig/internal/raster"
	"spriterig/internal/sampler"
	"spriterig/internal/scene"
	"spriterig/internal/texture"
)

// Options configures New.
type Options struct {
	ConfigPath string // optional config file
	Flags      config.Flags
	Log        logrus.FieldLogger
	Progress   io.Writer // progress bar output, nil for none
}

// App is the lifecycle object of one invocation.
type App struct {
	Config config.Config
	Scene  *scene.Scene

	runID    string
	log      logrus.FieldLogger
	textures *texture.Cache
	exporter *export.Exporter

	mu      sync.Mutex
	scratch string // command renderer work dir, created on first use
	closed  bool
}

// New loads and validates the configuration and the scene.
func New(opts Options) (*App, error) {
	var cfg config.Config
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	cfg.Resolve(opts.Flags)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.Must(uuid.NewV7()).String()
	log := logger.Or(opts.Log).WithField("run", runID)

	sc, err := scene.Load(cfg.Scene)
	if err != nil {
		return nil, err
	}

	dirs := append([]string{filepath.Dir(cfg.Scene)}, cfg.TextureDirs...)
	idx := texture.BuildIndex(dirs...)
	log.WithFields(logrus.Fields{
		"scene":    cfg.Scene,
		"objects":  len(sc.Objects()),
		"actions":  len(sc.Actions()),
		"textures": idx.Len(),
	}).Debug("scene loaded")

	a := &App{
		Config:   cfg,
		Scene:    sc,
		runID:    runID,
		log:      log,
		textures: texture.NewCache(idx, log),
	}
	w, h := cfg.FrameSize()
	a.exporter = export.New(sc, a.Renderer, export.Options{
		Width:    w,
		Height:   h,
		FPS:      cfg.FPS,
		Workers:  cfg.Workers,
		Log:      logger.Or(opts.Log),
		Progress: opts.Progress,
		RunID:    runID,
	})
	return a, nil
}

// RunID identifies this invocation in logs and the manifest.
func (a *App) RunID() string {
	return a.runID
}

// Renderer builds the configured renderer for object.
func (a *App) Renderer(object string) (sampler.Renderer, error) {
	w, h := a.Config.FrameSize()
	switch a.Config.Renderer {
	case config.RendererCommand:
		dir, err := a.scratchDir()
		if err != nil {
			return nil, err
		}
		return cmdrender.New(a.Config.Command, cmdrender.Options{
			Width:   w,
			Height:  h,
			Format:  imageio.PNG,
			WorkDir: dir,
			Env:     []string{"SPRITERIG_OBJECT=" + object, "SPRITERIG_RUN=" + a.runID},
			Log:     a.log,
		})
	default:
		return raster.New(a.Scene, object, raster.Options{
			Width:       w,
			Height:      h,
			Supersample: a.Config.Supersample,
			Textures:    a.textures,
			Log:         a.log,
		})
	}
}

func (a *App) scratchDir() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return "", fmt.Errorf("app: closed")
	}
	if a.scratch == "" {
		dir, err := os.MkdirTemp("", "spriterig-"+a.runID[:8]+"-")
		if err != nil {
			return "", fmt.Errorf("app: scratch dir: %w", err)
		}
		a.scratch = dir
	}
	return a.scratch, nil
}

// Object returns the resolved configuration of a scene object.
func (a *App) Object(name string) (config.ObjectConfig, error) {
	if _, err := a.Scene.Object(name); err != nil {
		return config.ObjectConfig{}, err
	}
	o := a.Config.Object(name)
	if err := o.Validate(); err != nil {
		return config.ObjectConfig{}, err
	}
	return o, nil
}

// Export renders one object.
func (a *App) Export(ctx context.Context, object string) (*export.Result, error) {
	o, err := a.Object(object)
	if err != nil {
		return nil, err
	}
	return a.exporter.Export(ctx, o)
}

// ExportAll renders every configured object, or every scene object when
// none is configured, and writes the manifest into the output directory.
func (a *App) ExportAll(ctx context.Context) (export.Manifest, error) {
	names := a.Config.ObjectNames()
	if len(names) == 0 {
		for _, o := range a.Scene.Objects() {
			names = append(names, o.Name)
		}
	}
	objs := make([]config.ObjectConfig, 0, len(names))
	for _, n := range names {
		objs = append(objs, a.Config.Object(n))
	}
	return a.exporter.ExportAll(ctx, objs, a.Config.OutputDir)
}

// Preview renders a contact sheet of every camera angle. thumb > 0 fits
// the sheet into a thumb×thumb square.
func (a *App) Preview(ctx context.Context, object string, spacing, thumb int) (*image.NRGBA, error) {
	o, err := a.Object(object)
	if err != nil {
		return nil, err
	}
	img, err := a.exporter.Preview(ctx, o, spacing)
	if err != nil {
		return nil, err
	}
	if thumb > 0 {
		img = postprocess.Fit(img, thumb, thumb)
	}
	return img, nil
}

// Close releases run resources. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.scratch != "" {
		if err := os.RemoveAll(a.scratch); err != nil {
			return errors.Wrap(err, "app: remove scratch dir")
		}
	}
	a.log.WithField("textures", a.textures.Len()).Debug("closed")
	return nil
}
