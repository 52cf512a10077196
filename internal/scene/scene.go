// Package scene loads the scene file an export reads from: objects, cameras
// and animation actions. A loaded Scene also carries the mutable state an
// export drives (active camera, per-object action, current frame) and acts
// as the camera registry the rig clones temporary cameras into.
package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"spriterig/internal/anim"
	"spriterig/internal/mathutil"
	"spriterig/internal/rig"
)

// ErrNotFound is returned for unknown object, camera or action names.
var ErrNotFound = errors.New("scene: not found")

// Projection is a camera projection type.
type Projection string

const (
	Perspective  Projection = "PERSP"
	Orthographic Projection = "ORTHO"
)

// Camera defaults.
const (
	DefaultFocalLength = 50.0
	DefaultSensorWidth = 36.0
	DefaultOrthoScale  = 7.314
	DefaultClipStart   = 0.1
	DefaultClipEnd     = 1000.0
)

// PivotMode selects the point rig cameras orbit around.
type PivotMode string

const (
	PivotOrigin PivotMode = "origin"
	PivotBounds PivotMode = "bounds"
)

// Camera is a scene camera. Orientation comes from Target (look-at, +Z up)
// when set, otherwise from Rotation (Euler XYZ degrees).
type Camera struct {
	Name        string         `json:"name" yaml:"name"`
	Position    mathutil.Vec3  `json:"position" yaml:"position"`
	Rotation    mathutil.Vec3  `json:"rotation" yaml:"rotation"`
	Target      *mathutil.Vec3 `json:"target,omitempty" yaml:"target,omitempty"`
	Projection  Projection     `json:"projection" yaml:"projection"`
	FocalLength float64        `json:"focal_length" yaml:"focal_length"`
	SensorWidth float64        `json:"sensor_width" yaml:"sensor_width"`
	OrthoScale  float64        `json:"ortho_scale" yaml:"ortho_scale"`
	ClipStart   float64        `json:"clip_start" yaml:"clip_start"`
	ClipEnd     float64        `json:"clip_end" yaml:"clip_end"`

	// pose overrides Position/Rotation for cloned rig cameras
	pose *rig.Transform
}

// Transform returns the camera pose.
func (c Camera) Transform() rig.Transform {
	if c.pose != nil {
		return *c.pose
	}
	if c.Target != nil {
		return rig.Transform{Position: c.Position, Rotation: mathutil.LookAt(c.Position, *c.Target, rig.Up)}
	}
	return rig.Transform{Position: c.Position, Rotation: mathutil.EulerXYZDeg(c.Rotation)}
}

func (c *Camera) setDefaults() {
	if c.Projection == "" {
		c.Projection = Perspective
	}
	c.Projection = Projection(strings.ToUpper(string(c.Projection)))
	if c.FocalLength <= 0 {
		c.FocalLength = DefaultFocalLength
	}
	if c.SensorWidth <= 0 {
		c.SensorWidth = DefaultSensorWidth
	}
	if c.OrthoScale <= 0 {
		c.OrthoScale = DefaultOrthoScale
	}
	if c.ClipStart <= 0 {
		c.ClipStart = DefaultClipStart
	}
	if c.ClipEnd <= c.ClipStart {
		c.ClipEnd = DefaultClipEnd
	}
}

// Object is a renderable mesh instance.
type Object struct {
	Name      string         `json:"name" yaml:"name"`
	Mesh      string         `json:"mesh" yaml:"mesh"`
	Transform anim.Transform `json:"transform" yaml:"transform"`
	Pivot     PivotMode      `json:"pivot" yaml:"pivot"`
	// Color is the sRGB base color used where no texture applies.
	Color   [3]uint8 `json:"color" yaml:"color"`
	Texture string   `json:"texture,omitempty" yaml:"texture,omitempty"`
}

// Action is an animation clip. FPS is the clip's native sampling rate;
// 0 means the scene rate.
type Action struct {
	Name       string          `json:"name" yaml:"name"`
	FrameStart int             `json:"frame_start" yaml:"frame_start"`
	FrameEnd   int             `json:"frame_end" yaml:"frame_end"`
	FPS        float64         `json:"fps,omitempty" yaml:"fps,omitempty"`
	Keyframes  []anim.Keyframe `json:"keyframes" yaml:"keyframes"`
}

// Length is the inclusive frame count.
func (a Action) Length() int {
	return a.FrameEnd - a.FrameStart + 1
}

// File is the on-disk scene document.
type File struct {
	FPS          int      `json:"fps" yaml:"fps"`
	FrameCurrent int      `json:"frame_current" yaml:"frame_current"`
	ActiveCamera string   `json:"active_camera" yaml:"active_camera"`
	Objects      []Object `json:"objects" yaml:"objects"`
	Cameras      []Camera `json:"cameras" yaml:"cameras"`
	Actions      []Action `json:"actions" yaml:"actions"`
}

// Load reads a scene file. Files ending in .yaml or .yml are YAML, all
// others JSON. Relative mesh and texture paths are resolved against the
// scene file's directory.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", path, err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("scene: parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range f.Objects {
		o := &f.Objects[i]
		if o.Mesh != "" && !filepath.IsAbs(o.Mesh) {
			o.Mesh = filepath.Join(dir, o.Mesh)
		}
		if o.Texture != "" && !filepath.IsAbs(o.Texture) {
			o.Texture = filepath.Join(dir, o.Texture)
		}
	}

	s, err := New(f)
	if err != nil {
		return nil, fmt.Errorf("scene: %s: %w", path, err)
	}
	return s, nil
}

func (f *File) setDefaults() {
	if f.FPS <= 0 {
		f.FPS = 24
	}
	for i := range f.Objects {
		o := &f.Objects[i]
		if o.Transform.Scale == (mathutil.Vec3{}) {
			o.Transform.Scale = mathutil.Vec3{1, 1, 1}
		}
		if o.Pivot == "" {
			o.Pivot = PivotOrigin
		}
		if o.Color == ([3]uint8{}) {
			o.Color = [3]uint8{160, 160, 170}
		}
	}
	for i := range f.Cameras {
		f.Cameras[i].setDefaults()
	}
	if f.ActiveCamera == "" && len(f.Cameras) > 0 {
		f.ActiveCamera = f.Cameras[0].Name
	}
}

func (f *File) validate() error {
	seen := make(map[string]string)
	check := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%s without a name", kind)
		}
		key := kind + "/" + name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate %s %q", kind, name)
		}
		seen[key] = name
		return nil
	}
	for _, o := range f.Objects {
		if err := check("object", o.Name); err != nil {
			return err
		}
		if o.Pivot != PivotOrigin && o.Pivot != PivotBounds {
			return fmt.Errorf("object %q: unknown pivot %q", o.Name, o.Pivot)
		}
	}
	for _, c := range f.Cameras {
		if err := check("camera", c.Name); err != nil {
			return err
		}
		if c.Projection != Perspective && c.Projection != Orthographic {
			return fmt.Errorf("camera %q: unknown projection %q", c.Name, c.Projection)
		}
	}
	for _, a := range f.Actions {
		if err := check("action", a.Name); err != nil {
			return err
		}
		if a.FrameEnd < a.FrameStart {
			return fmt.Errorf("action %q: frame_end %d before frame_start %d", a.Name, a.FrameEnd, a.FrameStart)
		}
	}
	return nil
}
