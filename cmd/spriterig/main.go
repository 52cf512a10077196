package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"spriterig/internal/app"
	"spriterig/internal/config"
	"spriterig/internal/imageio"
	"spriterig/internal/importer"
	"spriterig/internal/logger"
	"spriterig/internal/metadata"
)

var cliApp = cli.NewApp()
var log = logger.Log

func init() {
	cliApp.Name = "spriterig"
	cliApp.Usage = "Render scene objects into multi-camera sprite sheets"
	cliApp.UsageText = "spriterig [global options] command [arguments]"
	cliApp.HideVersion = true
	cliApp.Flags = []cli.Flag{
		cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		cli.StringFlag{Name: "config, c", Usage: "config file (.yaml or .json)"},
		cli.StringFlag{Name: "scene", Usage: "scene file, overrides the config"},
		cli.StringFlag{Name: "output, o", Usage: "output directory"},
		cli.IntFlag{Name: "workers", Usage: "sheet encoding workers (default: NumCPU)"},
		cli.StringFlag{Name: "format", Usage: "sheet format: png, webp or tga"},
		cli.StringSliceFlag{Name: "passes", Usage: "render pass, repeatable"},
		cli.IntFlag{Name: "cameras", Usage: "cameras around each object"},
		cli.BoolFlag{Name: "skip-duplicates", Usage: "merge identical consecutive frames"},
		cli.StringFlag{Name: "renderer", Usage: "raster or command"},
		cli.StringFlag{Name: "command", Usage: "external render command template"},
	}
	cliApp.Before = func(c *cli.Context) error {
		logger.SetDebug(c.Bool("debug"))
		return nil
	}
	cliApp.Commands = []cli.Command{
		{
			Name:      "export",
			Aliases:   []string{"e"},
			Usage:     "Export one object",
			ArgsUsage: "<object>",
			Action: func(c *cli.Context) error {
				name, err := required(c, "object")
				if err != nil {
					return err
				}
				return withApp(c, func(ctx context.Context, a *app.App) error {
					res, err := a.Export(ctx, name)
					if err != nil {
						return err
					}
					log.WithFields(logrus.Fields{
						"object":   res.Object,
						"sheets":   len(res.Sheets),
						"failed":   res.FailedFrames,
						"metadata": res.MetadataPath,
					}).Info("export complete")
					return nil
				})
			},
		},
		{
			Name:  "export-all",
			Usage: "Export every configured object and write the run manifest",
			Action: func(c *cli.Context) error {
				return withApp(c, func(ctx context.Context, a *app.App) error {
					m, err := a.ExportAll(ctx)
					failed := 0
					for _, o := range m.Objects {
						if o.Error != "" {
							failed++
						}
					}
					log.WithFields(logrus.Fields{
						"objects": len(m.Objects),
						"failed":  failed,
						"run":     m.RunID,
					}).Info("export complete")
					return err
				})
			},
		},
		{
			Name:      "preview",
			Aliases:   []string{"p"},
			Usage:     "Render a contact sheet of every camera angle at the current frame",
			ArgsUsage: "<object>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out", Value: "preview.png", Usage: "output image"},
				cli.IntFlag{Name: "spacing", Value: 1, Usage: "pixels between cells"},
				cli.IntFlag{Name: "thumb", Usage: "fit into an N×N square"},
			},
			Action: func(c *cli.Context) error {
				name, err := required(c, "object")
				if err != nil {
					return err
				}
				out := c.String("out")
				f, err := imageio.ParseFormat(filepath.Ext(out))
				if err != nil {
					return err
				}
				return withApp(c, func(ctx context.Context, a *app.App) error {
					img, err := a.Preview(ctx, name, c.Int("spacing"), c.Int("thumb"))
					if err != nil {
						return err
					}
					if err := imageio.Save(out, img, f); err != nil {
						return err
					}
					log.WithField("path", out).Info("preview written")
					return nil
				})
			},
		},
		{
			Name:      "import",
			Aliases:   []string{"i"},
			Usage:     "Bind an export back into animations",
			ArgsUsage: "<dir>",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "camera", Usage: "camera index"},
				cli.StringFlag{Name: "pass", Usage: "pass (default: first in metadata)"},
				cli.StringFlag{Name: "ext", Usage: "sheet extension, e.g. .webp (default: any)"},
				cli.BoolFlag{Name: "runs", Usage: "one frame per stored sprite"},
				cli.StringFlag{Name: "webp", Usage: "write an animated WebP: action=path"},
				cli.StringFlag{Name: "json", Usage: "write the timeline as JSON (- for stdout)"},
			},
			Action: runImport,
		},
		{
			Name:      "inspect",
			Usage:     "Summarize a metadata.json",
			ArgsUsage: "<metadata.json>",
			Action: func(c *cli.Context) error {
				path, err := required(c, "metadata file")
				if err != nil {
					return err
				}
				md, err := metadata.Read(path)
				if err != nil {
					return exitErr(err)
				}
				log.WithFields(logrus.Fields{
					"fps":    md.FPS,
					"frame":  fmt.Sprintf("%dx%d", md.FrameDimensions.Width, md.FrameDimensions.Height),
					"passes": md.Passes,
				}).Info(path)
				for _, a := range md.Actions {
					log.WithFields(logrus.Fields{
						"frames":    a.FrameCount(),
						"sprites":   len(a.Sprites),
						"overrides": len(a.Overrides),
						"seconds":   fmt.Sprintf("%.3f", metadata.TotalDuration(md, a)),
					}).Info(a.Name)
					for _, r := range metadata.ExpandRuns(md, a) {
						log.Debugf("  %s frame %d+%d sprite %d %v %.3fs", a.Name, r.Start, r.Frames, r.Sprite, r.Region, r.Duration)
					}
				}
				return nil
			},
		},
	}
}

func runImport(c *cli.Context) error {
	dir, err := required(c, "directory")
	if err != nil {
		return err
	}
	res, err := importer.Import(context.Background(), dir, importer.Options{
		Camera: c.Int("camera"),
		Pass:   c.String("pass"),
		Ext:    c.String("ext"),
		Runs:   c.Bool("runs"),
		Log:    log,
	})
	if err != nil {
		return exitErr(err)
	}
	for _, a := range res.Animations {
		log.WithFields(logrus.Fields{
			"frames":  len(a.Frames),
			"seconds": fmt.Sprintf("%.3f", a.Duration()),
			"sheet":   a.Sheet,
		}).Info(a.Name)
	}

	if arg := c.String("webp"); arg != "" {
		action, out, ok := strings.Cut(arg, "=")
		if !ok || action == "" || out == "" {
			return cli.NewExitError("--webp expects action=path", 1)
		}
		f, err := os.Create(out)
		if err != nil {
			return exitErr(err)
		}
		if err := res.WriteAnimatedWebP(f, action); err != nil {
			f.Close()
			return exitErr(err)
		}
		if err := f.Close(); err != nil {
			return exitErr(err)
		}
		log.WithField("path", out).Info("animated webp written")
	}

	if out := c.String("json"); out != "" {
		data, err := json.MarshalIndent(res.Timeline(), "", "  ")
		if err != nil {
			return exitErr(err)
		}
		data = append(data, '\n')
		if out == "-" {
			_, err = os.Stdout.Write(data)
		} else {
			err = os.WriteFile(out, data, 0644)
		}
		if err != nil {
			return exitErr(err)
		}
	}
	return nil
}

func required(c *cli.Context, what string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", cli.NewExitError(what+" is required", 1)
	}
	return v, nil
}

// exitErr maps malformed metadata to exit code 2, everything else to 1.
func exitErr(err error) error {
	if errors.Is(err, metadata.ErrMalformedMetadata) {
		return cli.NewExitError(err.Error(), 2)
	}
	return cli.NewExitError(err.Error(), 1)
}

func withApp(c *cli.Context, fn func(context.Context, *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(app.Options{
		ConfigPath: c.GlobalString("config"),
		Flags: config.Flags{
			Scene:          c.GlobalString("scene"),
			OutputDir:      c.GlobalString("output"),
			Format:         c.GlobalString("format"),
			Passes:         c.GlobalStringSlice("passes"),
			Workers:        c.GlobalInt("workers"),
			Cameras:        c.GlobalInt("cameras"),
			SkipDuplicates: c.GlobalBool("skip-duplicates"),
			Renderer:       c.GlobalString("renderer"),
			Command:        c.GlobalString("command"),
		},
		Log:      log,
		Progress: os.Stderr,
	})
	if err != nil {
		return exitErr(err)
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		return exitErr(errors.Wrapf(err, "run %s", a.RunID()))
	}
	return nil
}

func main() {
	if err := cliApp.Run(os.Args); err != nil {
		if _, ok := err.(cli.ExitCoder); !ok {
			log.Fatal(err)
		}
	}
}
