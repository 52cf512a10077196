package app

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spriterig/internal/config"
	"spriterig/internal/importer"
	"spriterig/internal/metadata"
	"spriterig/internal/raster"
)

const cubeOBJ = `o cube
v -1 -1 -1
v 1 -1 -1
v 1 1 -1
v -1 1 -1
v -1 -1 1
v 1 -1 1
v 1 1 1
v -1 1 1
f 1 2 3 4
f 5 6 7 8
f 1 2 6 5
f 3 4 8 7
f 2 3 7 6
f 4 1 5 8
`

const sceneYAML = `fps: 24
frame_current: 1
objects:
  - name: cube
    mesh: cube.obj
cameras:
  - name: Camera
    position: [0, -6, 2]
    target: [0, 0, 0]
actions:
  - name: spin
    frame_start: 1
    frame_end: 3
    keyframes:
      - frame: 1
        rotation: [0, 0, 0]
      - frame: 2
        rotation: [0, 0, 0]
      - frame: 3
        rotation: [0, 0, 45]
`

const configYAML = `scene: scene.yaml
output_dir: out
resolution_x: 16
resolution_y: 16
supersample: 1
camera_count: 2
skip_duplicates: true
passes: [lit, alpha]
objects:
  - name: cube
    actions: [spin]
`

func setup(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"cube.obj":       cubeOBJ,
		"scene.yaml":     sceneYAML,
		"spriterig.yaml": configYAML,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	log, _ := test.NewNullLogger()
	a, err := New(Options{ConfigPath: filepath.Join(dir, "spriterig.yaml"), Flags: config.Flags{Workers: 2}, Log: log})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, dir
}

func TestExportEndToEnd(t *testing.T) {
	a, dir := setup(t)
	out := filepath.Join(dir, "out", "cube")

	res, err := a.Export(context.Background(), "cube")
	require.NoError(t, err)
	assert.Equal(t, out, res.OutputDir)
	assert.Zero(t, res.FailedFrames)

	md, err := metadata.Read(filepath.Join(out, metadata.FileName))
	require.NoError(t, err)
	require.Len(t, md.Actions, 1)
	// frames 1 and 2 hold the same pose
	assert.Equal(t, 3, md.Actions[0].FrameCount())
	require.Len(t, md.Actions[0].Sprites, 2)
	assert.Equal(t, 2, md.Actions[0].Sprites[0].Frames)

	for _, cam := range []string{"camera_00", "camera_01"} {
		for _, pass := range []string{raster.PassLit, raster.PassAlpha} {
			assert.FileExists(t, filepath.Join(out, "spin", cam, pass+".png"))
		}
	}

	// the export imports back
	log, hook := test.NewNullLogger()
	r, err := importer.Import(context.Background(), out, importer.Options{Camera: 1, Log: log})
	require.NoError(t, err)
	assert.Empty(t, hook.Entries)
	spin, ok := r.Animation("spin")
	require.True(t, ok)
	require.Len(t, spin.Frames, 3)
	assert.NotNil(t, spin.Frames[0].Image)
	assert.Equal(t, uint8(255), spin.Frames[0].Image.NRGBAAt(8, 8).A)
}

func TestExportUnknownObject(t *testing.T) {
	a, _ := setup(t)
	_, err := a.Export(context.Background(), "sphere")
	assert.Error(t, err)
}

func TestExportAllAndPreview(t *testing.T) {
	a, dir := setup(t)
	m, err := a.ExportAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a.RunID(), m.RunID)
	require.Len(t, m.Objects, 1)
	assert.FileExists(t, filepath.Join(dir, "out", "manifest.json"))

	img, err := a.Preview(context.Background(), "cube", 1, 0)
	require.NoError(t, err)
	// two cameras side by side
	assert.Equal(t, image.Rect(0, 0, 33, 16), img.Bounds())

	thumb, err := a.Preview(context.Background(), "cube", 1, 8)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), thumb.Bounds())
}

func TestCloseRemovesScratch(t *testing.T) {
	a, _ := setup(t)
	a.Config.Renderer = config.RendererCommand
	a.Config.Command = "true"
	_, err := a.Renderer("cube")
	require.NoError(t, err)
	scratch := a.scratch
	assert.DirExists(t, scratch)

	require.NoError(t, a.Close())
	assert.NoDirExists(t, scratch)
	require.NoError(t, a.Close())

	_, err = a.Renderer("cube")
	assert.Error(t, err)
}
