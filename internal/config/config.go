package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"spriterig/internal/imageio"
)

// Renderer kinds.
const (
	RendererRaster  = "raster"
	RendererCommand = "command"
)

// Camera count bounds accepted in configuration.
const (
	MinCameras = 1
	MaxCameras = 64
)

// Config holds all configurable paths and render settings.
type Config struct {
	// Paths
	Scene       string   `json:"scene" yaml:"scene"`
	OutputDir   string   `json:"output_dir" yaml:"output_dir"`
	TextureDirs []string `json:"texture_dirs" yaml:"texture_dirs"`

	// Render settings
	FPS               int      `json:"fps" yaml:"fps"`
	ResolutionX       int      `json:"resolution_x" yaml:"resolution_x"`
	ResolutionY       int      `json:"resolution_y" yaml:"resolution_y"`
	ResolutionPercent int      `json:"resolution_percentage" yaml:"resolution_percentage"`
	Supersample       int      `json:"supersample" yaml:"supersample"`
	Passes            []string `json:"passes" yaml:"passes"`
	Format            string   `json:"format" yaml:"format"`
	Workers           int      `json:"workers" yaml:"workers"`
	CameraCount       int      `json:"camera_count" yaml:"camera_count"`
	SkipDuplicates    bool     `json:"skip_duplicates" yaml:"skip_duplicates"`
	MaxColumns        int      `json:"max_columns" yaml:"max_columns"`

	// Renderer selects the pixel producer: "raster" (built in) or
	// "command" (Command run once per frame).
	Renderer string `json:"renderer" yaml:"renderer"`
	Command  string `json:"command" yaml:"command"`

	Objects []ObjectConfig `json:"objects" yaml:"objects"`

	dir string // directory of the loaded file
}

// ObjectConfig is the per-object export configuration, keyed by the scene
// object's name. Zero fields inherit the global settings.
type ObjectConfig struct {
	Name            string          `json:"name" yaml:"name"`
	ReferenceCamera string          `json:"reference_camera" yaml:"reference_camera"`
	CameraCount     int             `json:"camera_count" yaml:"camera_count"`
	AngleOverrides  map[int]float64 `json:"angle_overrides" yaml:"angle_overrides"`
	Actions         []string        `json:"actions" yaml:"actions"`
	OutputDir       string          `json:"output_dir" yaml:"output_dir"`
	Passes          []string        `json:"passes" yaml:"passes"`
	SkipDuplicates  *bool           `json:"skip_duplicates" yaml:"skip_duplicates"`
	MaxColumns      int             `json:"max_columns" yaml:"max_columns"`
	Format          string          `json:"format" yaml:"format"`
}

// Load reads a config file and returns Config. Files ending in .yaml or
// .yml are YAML, all others JSON. Fields not set in the file keep their
// zero values.
func Load(path string) (Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: expand %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.dir = filepath.Dir(abs)
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Scene          string
	OutputDir      string
	Format         string
	Passes         []string
	Workers        int
	Cameras        int
	SkipDuplicates bool
	Renderer       string
	Command        string
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.Scene != "" {
		c.Scene = flags.Scene
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if len(flags.Passes) > 0 {
		c.Passes = flags.Passes
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Cameras > 0 {
		c.CameraCount = flags.Cameras
	}
	if flags.SkipDuplicates {
		c.SkipDuplicates = true
	}
	if flags.Renderer != "" {
		c.Renderer = flags.Renderer
	}
	if flags.Command != "" {
		c.Command = flags.Command
	}

	// Defaults for render settings
	if c.OutputDir == "" {
		c.OutputDir = "renders"
	}
	if c.FPS <= 0 {
		c.FPS = 24
	}
	if c.ResolutionX <= 0 {
		c.ResolutionX = 256
	}
	if c.ResolutionY <= 0 {
		c.ResolutionY = 256
	}
	if c.ResolutionPercent <= 0 {
		c.ResolutionPercent = 100
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if len(c.Passes) == 0 {
		c.Passes = []string{"lit"}
	}
	if c.Format == "" {
		c.Format = string(imageio.PNG)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.CameraCount <= 0 {
		c.CameraCount = 4
	}
	if c.Renderer == "" {
		c.Renderer = RendererRaster
	}

	// Resolve relative paths against the config file directory
	c.Scene = c.path(c.Scene)
	c.OutputDir = c.path(c.OutputDir)
	for i, d := range c.TextureDirs {
		c.TextureDirs[i] = c.path(d)
	}
	for i := range c.Objects {
		if c.Objects[i].OutputDir != "" {
			c.Objects[i].OutputDir = c.path(c.Objects[i].OutputDir)
		}
	}
}

func (c *Config) path(p string) string {
	if p == "" {
		return ""
	}
	if exp, err := homedir.Expand(p); err == nil {
		p = exp
	}
	if !filepath.IsAbs(p) && c.dir != "" {
		p = filepath.Join(c.dir, p)
	}
	return p
}

// FrameSize is the output frame size after the resolution percentage.
func (c *Config) FrameSize() (w, h int) {
	w = max(1, c.ResolutionX*c.ResolutionPercent/100)
	h = max(1, c.ResolutionY*c.ResolutionPercent/100)
	return w, h
}

// Object returns the configuration for the named object with global
// settings filled in. Unconfigured objects get the global settings.
func (c *Config) Object(name string) ObjectConfig {
	o := ObjectConfig{Name: name}
	for _, oc := range c.Objects {
		if oc.Name == name {
			o = oc
			break
		}
	}
	if o.CameraCount <= 0 {
		o.CameraCount = c.CameraCount
	}
	if len(o.Passes) == 0 {
		o.Passes = append([]string(nil), c.Passes...)
	}
	if o.SkipDuplicates == nil {
		skip := c.SkipDuplicates
		o.SkipDuplicates = &skip
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = c.MaxColumns
	}
	if o.Format == "" {
		o.Format = c.Format
	}
	if o.OutputDir == "" {
		o.OutputDir = filepath.Join(c.OutputDir, name)
	}
	return o
}

// ObjectNames lists configured objects in file order.
func (c *Config) ObjectNames() []string {
	names := make([]string, len(c.Objects))
	for i, o := range c.Objects {
		names[i] = o.Name
	}
	return names
}

// Validate checks a resolved config.
func (c *Config) Validate() error {
	if c.Scene == "" {
		return fmt.Errorf("config: no scene file")
	}
	if c.Renderer != RendererRaster && c.Renderer != RendererCommand {
		return fmt.Errorf("config: unknown renderer %q", c.Renderer)
	}
	if c.Renderer == RendererCommand && c.Command == "" {
		return fmt.Errorf("config: renderer %q needs a command", c.Renderer)
	}
	if c.ResolutionPercent > 100 {
		return fmt.Errorf("config: resolution percentage %d above 100", c.ResolutionPercent)
	}
	if _, err := imageio.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	seen := make(map[string]bool, len(c.Objects))
	for _, o := range c.Objects {
		if o.Name == "" {
			return fmt.Errorf("config: object without name")
		}
		if seen[o.Name] {
			return fmt.Errorf("config: duplicate object %q", o.Name)
		}
		seen[o.Name] = true
		if err := c.Object(o.Name).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a resolved object config.
func (o ObjectConfig) Validate() error {
	if o.CameraCount < MinCameras || o.CameraCount > MaxCameras {
		return fmt.Errorf("config: object %q: camera count %d outside %d..%d", o.Name, o.CameraCount, MinCameras, MaxCameras)
	}
	if len(o.Passes) == 0 {
		return fmt.Errorf("config: object %q: no passes", o.Name)
	}
	if _, err := imageio.ParseFormat(o.Format); err != nil {
		return fmt.Errorf("config: object %q: %w", o.Name, err)
	}
	return nil
}
