package metadata

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Metadata {
	return Metadata{
		FPS:             24,
		FrameDimensions: Dimensions{Width: 1024, Height: 512},
		Passes:          []string{"lit", "normal"},
		Actions: []Action{
			{Name: "walk", Sprites: []Sprite{{X: 0, Y: 0, Frames: 1}, {X: 1024, Y: 0, Frames: 2}}},
			{Name: "idle", Sprites: []Sprite{{X: 0, Y: 0, Frames: 4}}, Overrides: map[int]float64{0: 0.125}},
		},
	}
}

func TestExpand(t *testing.T) {
	m := sample()
	frames := Expand(m, m.Actions[0])
	require.Len(t, frames, 3)

	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, image.Rect(0, 0, 1024, 512), frames[0].Region)
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.InDelta(t, 1.0/24, f.Duration, 1e-12)
	}
	assert.Equal(t, image.Rect(1024, 0, 2048, 512), frames[1].Region)
	assert.Equal(t, frames[1].Region, frames[2].Region)
	assert.Equal(t, 1, frames[2].Sprite)
}

func TestExpandRuns(t *testing.T) {
	m := sample()
	runs := ExpandRuns(m, m.Actions[0])
	require.Len(t, runs, 2)
	assert.Equal(t, 1, runs[1].Start)
	assert.Equal(t, 2, runs[1].Frames)
	assert.InDelta(t, 2.0/24, runs[1].Duration, 1e-12)
}

func TestExpandOverride(t *testing.T) {
	m := sample()
	idle := m.Actions[1]

	frames := Expand(m, idle)
	require.Len(t, frames, 4)
	for _, f := range frames {
		assert.InDelta(t, 0.125/4, f.Duration, 1e-12)
	}
	runs := ExpandRuns(m, idle)
	require.Len(t, runs, 1)
	assert.InDelta(t, 0.125, runs[0].Duration, 1e-12)

	// per-frame and per-run expansions agree on total time
	var sum float64
	for _, f := range frames {
		sum += f.Duration
	}
	assert.InDelta(t, TotalDuration(m, idle), sum, 1e-12)
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FileName)
	want := sample()
	require.NoError(t, Write(path, want))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWritePreservesOrder(t *testing.T) {
	m := sample()
	m.Passes = []string{"normal", "alpha", "lit"}
	m.Actions[0], m.Actions[1] = m.Actions[1], m.Actions[0]
	data, err := Marshal(m)
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"normal", "alpha", "lit"}, got.Passes)
	assert.Equal(t, "idle", got.Actions[0].Name)
	assert.Contains(t, string(data), `"frameDurationOverridesInSeconds": {`)
	assert.Contains(t, string(data), `"frameDimensions": {`)
}

func TestWriteEncodeFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	m := sample()
	m.Actions[1].Overrides[0] = math.NaN()

	assert.Error(t, Write(path, m))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteKeepsPreviousFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Write(path, sample()))

	m := sample()
	m.Actions[1].Overrides[0] = math.Inf(1)
	require.Error(t, Write(path, m))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sample(), got)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "syntax", json: `{"fps": 24,`},
		{name: "missing fps", json: `{"frameDimensions": {"width": 1, "height": 1}, "passes": [], "actions": []}`},
		{name: "missing dimensions", json: `{"fps": 24, "passes": [], "actions": []}`},
		{name: "missing passes", json: `{"fps": 24, "frameDimensions": {"width": 1, "height": 1}, "actions": []}`},
		{name: "missing actions", json: `{"fps": 24, "frameDimensions": {"width": 1, "height": 1}, "passes": []}`},
		{name: "zero fps", json: `{"fps": 0, "frameDimensions": {"width": 1, "height": 1}, "passes": [], "actions": []}`},
		{name: "empty run", json: `{"fps": 24, "frameDimensions": {"width": 1, "height": 1}, "passes": [],
			"actions": [{"name": "a", "sprites": [{"x": 0, "y": 0, "frames": 0}]}]}`},
		{name: "wrong type", json: `{"fps": "24", "frameDimensions": {"width": 1, "height": 1}, "passes": [], "actions": []}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.json))
			assert.ErrorIs(t, err, ErrMalformedMetadata)
		})
	}
}

func TestParseOverrideKeys(t *testing.T) {
	m, err := Parse([]byte(`{
		"fps": 12,
		"frameDimensions": {"width": 8, "height": 8},
		"passes": ["lit"],
		"actions": [{"name": "a", "sprites": [{"x": 0, "y": 0, "frames": 3}, {"x": 8, "y": 0, "frames": 1}],
			"frameDurationOverridesInSeconds": {"3": 0.5}}]
	}`))
	require.NoError(t, err)
	a, ok := m.Action("a")
	require.True(t, ok)
	assert.Equal(t, map[int]float64{3: 0.5}, a.Overrides)

	runs := ExpandRuns(m, a)
	assert.InDelta(t, 3.0/12, runs[0].Duration, 1e-12)
	assert.InDelta(t, 0.5, runs[1].Duration, 1e-12)

	_, ok = m.Action("missing")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	a := sample().Actions[0]
	assert.NoError(t, Validate(a, 3))
	assert.ErrorIs(t, Validate(a, 4), ErrMalformedMetadata)
}
