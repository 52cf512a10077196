package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spriterig/internal/mathutil"
	"spriterig/internal/rig"
)

const sceneYAML = `fps: 30
frame_current: 1
objects:
  - name: hero
    mesh: meshes/hero.obj
    transform:
      location: [0, 0, 1]
cameras:
  - name: Camera
    position: [0, -5, 2]
    target: [0, 0, 1]
  - name: Top
    position: [0, 0, 10]
    projection: ortho
    ortho_scale: 4
actions:
  - name: walk
    frame_start: 1
    frame_end: 24
    fps: 12
    keyframes:
      - frame: 1
        location: [0, 0, 0]
      - frame: 24
        location: [0, 23, 0]
`

func loadYAML(t *testing.T) *Scene {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sceneYAML), 0644))
	s, err := Load(path)
	require.NoError(t, err)
	return s
}

func TestLoadYAML(t *testing.T) {
	s := loadYAML(t)
	assert.Equal(t, 30, s.FPS())
	assert.Equal(t, "Camera", s.ActiveCamera())

	o, err := s.Object("hero")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(o.Mesh))
	assert.Equal(t, mathutil.Vec3{1, 1, 1}, o.Transform.Scale)
	assert.Equal(t, PivotOrigin, o.Pivot)

	top, err := s.Camera("Top")
	require.NoError(t, err)
	assert.Equal(t, Orthographic, top.Projection)
	assert.Equal(t, 4.0, top.OrthoScale)
	assert.Equal(t, DefaultFocalLength, top.FocalLength)

	a, err := s.Action("walk")
	require.NoError(t, err)
	assert.Equal(t, 24, a.Length())
	assert.Equal(t, 12.0, a.FPS)
	require.Len(t, a.Keyframes, 2)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"objects": [{"name": "box", "mesh": "/abs/box.obj", "pivot": "bounds"}],
		"cameras": [{"name": "cam", "position": [1, 2, 3], "rotation": [90, 0, 0]}]
	}`), 0644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24, s.FPS())
	o, err := s.Object("box")
	require.NoError(t, err)
	assert.Equal(t, "/abs/box.obj", o.Mesh)
	assert.Equal(t, PivotBounds, o.Pivot)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]File{
		"duplicate camera": {Cameras: []Camera{{Name: "a"}, {Name: "a"}}},
		"unnamed object":   {Objects: []Object{{}}},
		"bad projection":   {Cameras: []Camera{{Name: "a", Projection: "FISHEYE"}}},
		"bad pivot":        {Objects: []Object{{Name: "o", Pivot: "feet"}}},
		"reversed range":   {Actions: []Action{{Name: "a", FrameStart: 5, FrameEnd: 1}}},
	}
	for name, f := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(f)
			assert.Error(t, err)
		})
	}
}

func TestCameraTransform(t *testing.T) {
	s := loadYAML(t)
	c, err := s.Camera("Camera")
	require.NoError(t, err)
	tr := c.Transform()
	want := mathutil.Vec3{0, 0, 1}.Sub(c.Position).Normalize()
	assert.True(t, tr.Forward().ApproxEqual(want, 1e-9))
}

func TestCloneAndRemoveCamera(t *testing.T) {
	s := loadYAML(t)
	pose := rig.Transform{Position: mathutil.Vec3{5, 0, 2}, Rotation: mathutil.RotZ(1)}

	name, release, err := rig.Acquire(s, "Top", pose)
	require.NoError(t, err)
	assert.Equal(t, name, s.ActiveCamera())
	assert.Equal(t, 3, s.CameraCount())

	clone, err := s.Camera(name)
	require.NoError(t, err)
	assert.Equal(t, pose, clone.Transform())
	assert.Equal(t, Orthographic, clone.Projection)
	assert.Equal(t, 4.0, clone.OrthoScale)

	require.NoError(t, release())
	assert.Equal(t, "Camera", s.ActiveCamera())
	assert.Equal(t, 2, s.CameraCount())
	_, err = s.Camera(name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloneUnknownCamera(t *testing.T) {
	s := loadYAML(t)
	_, _, err := rig.Acquire(s, "nope", rig.Transform{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Camera", s.ActiveCamera())
}

func TestSnapshotRestore(t *testing.T) {
	s := loadYAML(t)
	st := s.Snapshot()

	require.NoError(t, s.SetAction("hero", "walk"))
	s.SetFrame(12)
	require.NoError(t, s.SetActiveCamera("Top"))

	s.Restore(st)
	assert.Equal(t, 1, s.Frame())
	assert.Equal(t, "Camera", s.ActiveCamera())
	assert.Equal(t, "", s.PlayingAction("hero"))
}

func TestSetActionUnknown(t *testing.T) {
	s := loadYAML(t)
	assert.ErrorIs(t, s.SetAction("hero", "run"), ErrNotFound)
	assert.ErrorIs(t, s.SetAction("villain", "walk"), ErrNotFound)
}

func TestPose(t *testing.T) {
	s := loadYAML(t)
	p, err := s.Pose("hero")
	require.NoError(t, err)
	assert.Equal(t, mathutil.Vec3{0, 0, 1}, p.Location)

	require.NoError(t, s.SetAction("hero", "walk"))
	s.SetFrame(12)
	p, err = s.Pose("hero")
	require.NoError(t, err)
	assert.InDelta(t, 11, p.Location[1], 1e-9)
}
