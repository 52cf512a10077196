package rig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spriterig/internal/angles"
	"spriterig/internal/mathutil"
)

func refCamera() Transform {
	pos := mathutil.Vec3{3, -7, 4}
	return Transform{
		Position: pos,
		Rotation: mathutil.LookAt(pos, mathutil.Vec3{0.5, 0.25, 1}, Up),
	}
}

func TestBuildCamerasIdempotent(t *testing.T) {
	ref := refCamera()
	pivot := mathutil.Vec3{0.5, 0.25, 0}
	a := angles.GenerateEquidistant(7)
	first := BuildCameras(ref, a, pivot)
	second := BuildCameras(ref, a, pivot)
	assert.Equal(t, first, second)
}

func TestZeroAngleReturnsReference(t *testing.T) {
	ref := refCamera()
	got := BuildCameras(ref, []float64{0}, mathutil.Vec3{1, 2, 3})
	require.Len(t, got, 1)
	assert.Equal(t, ref, got[0])
}

func TestDistanceAndHeightPreserved(t *testing.T) {
	ref := refCamera()
	pivot := mathutil.Vec3{0.5, 0.25, 0}
	want := ref.Position.Sub(pivot).Len()
	for _, cam := range BuildCameras(ref, angles.GenerateEquidistant(12), pivot) {
		assert.InDelta(t, want, cam.Position.Sub(pivot).Len(), 1e-9)
		assert.InDelta(t, ref.Position[2], cam.Position[2], 1e-9)
		// pitch relative to the horizon is unchanged
		assert.InDelta(t, ref.Forward()[2], cam.Forward()[2], 1e-9)
		assert.InDelta(t, 1.0, cam.Rotation.Det(), 1e-9)
	}
}

func TestQuarterTurn(t *testing.T) {
	ref := Transform{Position: mathutil.Vec3{0, -5, 0}, Rotation: mathutil.LookAt(mathutil.Vec3{0, -5, 0}, mathutil.Vec3{}, Up)}
	cams := BuildCameras(ref, []float64{0, 90}, mathutil.Vec3{})
	assert.True(t, cams[1].Position.ApproxEqual(mathutil.Vec3{5, 0, 0}, 1e-9), "got %v", cams[1].Position)
	assert.True(t, cams[1].Forward().ApproxEqual(mathutil.Vec3{-1, 0, 0}, 1e-9), "got %v", cams[1].Forward())
}

func TestViewMapsPositionToOrigin(t *testing.T) {
	ref := refCamera()
	v := ref.View()
	assert.True(t, v.MulPoint(ref.Position).ApproxEqual(mathutil.Vec3{}, 1e-9))
	ahead := ref.Position.Add(ref.Forward().Scale(2))
	assert.True(t, v.MulPoint(ahead).ApproxEqual(mathutil.Vec3{0, 0, -2}, 1e-9))
}

type fakeHost struct {
	active  string
	cameras map[string]Transform
	failSet bool
}

func (h *fakeHost) CloneCamera(ref string, t Transform) (string, error) {
	if _, ok := h.cameras[ref]; !ok {
		return "", errors.New("no such camera")
	}
	name := ref + "_tmp"
	h.cameras[name] = t
	return name, nil
}

func (h *fakeHost) RemoveCamera(name string) error {
	delete(h.cameras, name)
	return nil
}

func (h *fakeHost) ActiveCamera() string { return h.active }

func (h *fakeHost) SetActiveCamera(name string) error {
	if h.failSet {
		return errors.New("refused")
	}
	h.active = name
	return nil
}

func TestAcquireRelease(t *testing.T) {
	h := &fakeHost{active: "Main", cameras: map[string]Transform{"Main": {}, "Ref": {}}}
	name, release, err := Acquire(h, "Ref", refCamera())
	require.NoError(t, err)
	assert.Equal(t, name, h.active)
	assert.Contains(t, h.cameras, name)

	require.NoError(t, release())
	require.NoError(t, release())
	assert.Equal(t, "Main", h.active)
	assert.NotContains(t, h.cameras, name)
}

func TestAcquireCleansUpOnActivateFailure(t *testing.T) {
	h := &fakeHost{active: "Main", cameras: map[string]Transform{"Ref": {}}, failSet: true}
	_, _, err := Acquire(h, "Ref", refCamera())
	require.Error(t, err)
	assert.Len(t, h.cameras, 1)

	_, _, err = Acquire(h, "Missing", refCamera())
	assert.Error(t, err)
}
