package importer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spriterig/internal/imageio"
	"spriterig/internal/metadata"
)

var (
	red  = color.NRGBA{255, 0, 0, 255}
	blue = color.NRGBA{0, 0, 255, 255}
)

// twoCellSheet is a 2x1 grid of 4x4 cells, red then blue.
func twoCellSheet() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			c := red
			if x >= 4 {
				c = blue
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writeExport(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	md := metadata.Metadata{
		FPS:             10,
		FrameDimensions: metadata.Dimensions{Width: 4, Height: 4},
		Passes:          []string{"lit", "normal"},
		Actions: []metadata.Action{
			{Name: "walk", Sprites: []metadata.Sprite{{X: 0, Y: 0, Frames: 2}, {X: 4, Y: 0, Frames: 1}}},
			{Name: "idle", Sprites: []metadata.Sprite{{X: 4, Y: 0, Frames: 3}}, Overrides: map[int]float64{0: 0.5}},
			{Name: "run", Sprites: []metadata.Sprite{{X: 0, Y: 0, Frames: 1}}},
		},
	}
	require.NoError(t, metadata.Write(filepath.Join(root, metadata.FileName), md))
	require.NoError(t, imageio.Save(filepath.Join(root, "walk", "camera_01", "lit.png"), twoCellSheet(), imageio.PNG))
	require.NoError(t, imageio.Save(filepath.Join(root, "idle", "lit.png"), twoCellSheet(), imageio.PNG))
	return root
}

func TestCandidatesOrder(t *testing.T) {
	assert.Equal(t, []string{
		filepath.Join("out", "walk", "camera_03", "lit.png"),
		filepath.Join("out", "walk", "camera_3", "lit.png"),
		filepath.Join("out", "walk", "camera_00", "lit.png"),
		filepath.Join("out", "walk", "camera_0", "lit.png"),
		filepath.Join("out", "walk", "lit.png"),
		filepath.Join("out", "lit.png"),
	}, Candidates("out", "walk", 3, "lit", ".png"))

	assert.Equal(t, []string{
		filepath.Join("out", "walk", "camera_12", "lit.png"),
		filepath.Join("out", "walk", "camera_00", "lit.png"),
		filepath.Join("out", "walk", "camera_0", "lit.png"),
		filepath.Join("out", "walk", "lit.png"),
		filepath.Join("out", "lit.png"),
	}, Candidates("out", "walk", 12, "lit", ".png"))
}

func TestResolveSheetFallback(t *testing.T) {
	root := t.TempDir()
	touch := func(rel string) string {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
		return p
	}

	_, err := ResolveSheet(root, "walk", 2, "lit", ".png")
	assert.ErrorIs(t, err, ErrTextureResolution)

	// an unpadded camera_0 export resolves for any camera
	bare := filepath.Join(t.TempDir(), "bare")
	p := filepath.Join(bare, "walk", "camera_0", "lit.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	got, err := ResolveSheet(bare, "walk", 2, "lit", ".png")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	rootLevel := touch("lit.png")
	tests := []struct {
		create string
	}{
		{"walk/lit.png"},
		{"walk/camera_0/lit.png"},
		{"walk/camera_00/lit.png"},
		{"walk/camera_2/lit.png"},
		{"walk/camera_02/lit.png"},
	}
	got, err = ResolveSheet(root, "walk", 2, "lit", ".png")
	require.NoError(t, err)
	assert.Equal(t, rootLevel, got)
	for _, tt := range tests {
		t.Run(tt.create, func(t *testing.T) {
			want := touch(tt.create)
			got, err := ResolveSheet(root, "walk", 2, "lit", ".png")
			require.NoError(t, err)
			assert.Equal(t, want, got, "more specific candidate wins")
		})
	}
}

func TestResolveSheetAnyFormat(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "walk", "camera_00", "lit.webp")
	require.NoError(t, imageio.Save(p, twoCellSheet(), imageio.WebP))
	got, err := ResolveSheet(root, "walk", 0, "lit", "")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestImport(t *testing.T) {
	root := writeExport(t)
	log, hook := test.NewNullLogger()

	res, err := Import(context.Background(), root, Options{Camera: 1, Log: log})
	require.NoError(t, err)
	assert.Equal(t, 10, res.FPS)
	assert.Equal(t, "lit", res.Pass)
	require.Len(t, res.Animations, 3)

	walk, ok := res.Animation("walk")
	require.True(t, ok)
	require.Len(t, walk.Frames, 3)
	assert.Equal(t, filepath.Join(root, "walk", "camera_01", "lit.png"), walk.Sheet)
	assert.Equal(t, red, walk.Frames[0].Image.NRGBAAt(0, 0))
	assert.Same(t, walk.Frames[0].Image, walk.Frames[1].Image)
	assert.Equal(t, blue, walk.Frames[2].Image.NRGBAAt(3, 3))
	assert.Equal(t, image.Rect(0, 0, 4, 4), walk.Frames[2].Image.Bounds())
	assert.InDelta(t, 0.3, walk.Duration(), 1e-12)

	// camera 1 falls back to the action-level sheet
	idle, _ := res.Animation("idle")
	assert.Equal(t, filepath.Join(root, "idle", "lit.png"), idle.Sheet)
	require.Len(t, idle.Frames, 3)
	assert.InDelta(t, 0.5/3, idle.Frames[0].Duration, 1e-12)
	assert.Equal(t, blue, idle.Frames[0].Image.NRGBAAt(0, 0))

	// missing sheet is a warning, not an error
	run, _ := res.Animation("run")
	assert.Empty(t, run.Sheet)
	assert.Nil(t, run.Frames[0].Image)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "texture resolution failure")
}

func TestImportRuns(t *testing.T) {
	root := writeExport(t)
	log, _ := test.NewNullLogger()
	res, err := Import(context.Background(), root, Options{Camera: 1, Runs: true, Log: log})
	require.NoError(t, err)

	walk, _ := res.Animation("walk")
	require.Len(t, walk.Frames, 2)
	assert.Equal(t, 2, walk.Frames[0].Frames)
	assert.InDelta(t, 0.2, walk.Frames[0].Duration, 1e-12)
	assert.Equal(t, 2, walk.Frames[1].Index)

	idle, _ := res.Animation("idle")
	require.Len(t, idle.Frames, 1)
	assert.InDelta(t, 0.5, idle.Frames[0].Duration, 1e-12)
}

func TestImportMalformed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, metadata.FileName), []byte(`{"fps": 24}`), 0644))
	_, err := Import(context.Background(), root, Options{})
	assert.ErrorIs(t, err, metadata.ErrMalformedMetadata)
}

func TestTimeline(t *testing.T) {
	root := writeExport(t)
	log, _ := test.NewNullLogger()
	res, err := Import(context.Background(), root, Options{Camera: 1, Log: log})
	require.NoError(t, err)

	tl := res.Timeline()
	require.Len(t, tl.Animations, 3)
	walk := tl.Animations[0]
	assert.Equal(t, "walk", walk.Name)
	assert.Equal(t, TimelineFrame{Index: 2, Frames: 1, X: 4, Y: 0, Width: 4, Height: 4, Duration: 0.1}, walk.Frames[2])
	assert.True(t, tl.Animations[2].Frames[0].Missing)
}

func TestWriteAnimatedWebP(t *testing.T) {
	root := writeExport(t)
	log, _ := test.NewNullLogger()
	res, err := Import(context.Background(), root, Options{Camera: 1, Log: log})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.WriteAnimatedWebP(&buf, "walk"))
	assert.Equal(t, "RIFF", string(buf.Bytes()[:4]))
	assert.Equal(t, "WEBP", string(buf.Bytes()[8:12]))
	assert.Contains(t, buf.String(), "ANIM")

	// frames without images still encode
	buf.Reset()
	require.NoError(t, res.WriteAnimatedWebP(&buf, "run"))

	assert.Error(t, res.WriteAnimatedWebP(&buf, "jump"))
}
