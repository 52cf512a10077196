package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spriterig/internal/mathutil"
)

const quadOBJ = `# unit quad
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
o quad
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseTriangulatesPolygons(t *testing.T) {
	m, libs, err := Parse(strings.NewReader(quadOBJ))
	require.NoError(t, err)
	assert.Equal(t, []string{"quad.mtl"}, libs)
	require.Len(t, m.Groups, 1)
	g := m.Groups[0]
	assert.Equal(t, "quad", g.Name)
	assert.Equal(t, "red", g.Material)
	require.Len(t, g.Tris, 2)
	assert.Equal(t, [3]int{0, 1, 2}, g.Tris[0].VI)
	assert.Equal(t, [3]int{0, 2, 3}, g.Tris[1].VI)
	assert.Equal(t, [3]int{0, 2, 3}, g.Tris[1].TI)
	assert.Equal(t, [3]int{0, 0, 0}, g.Tris[1].NI)
}

func TestParseCornerForms(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
v 0 0 1
vn 1 0 0
f 1 2 3
f 1//1 3//1 4//1
f -3 -2 -1
`
	m, _, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 3, m.TriangleCount())
	tris := m.Groups[0].Tris
	assert.Equal(t, [3]int{-1, -1, -1}, tris[0].TI)
	assert.Equal(t, [3]int{-1, -1, -1}, tris[1].TI)
	assert.Equal(t, [3]int{0, 0, 0}, tris[1].NI)
	assert.Equal(t, [3]int{1, 2, 3}, tris[2].VI)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"short face":  "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"bad index":   "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1 2 9\n",
		"zero index":  "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 0 1 2\n",
		"bad number":  "v 0 x 0\n",
		"bad texture": "v 0 0 0\nv 1 0 0\nv 1 1 0\nf 1/4 2 3\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithMaterials(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte("newmtl red\nKd 1 0 0\nmap_Kd tex/red.png\n"), 0644))

	m, err := Load(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	mat, ok := m.Materials["red"]
	require.True(t, ok)
	assert.Equal(t, mathutil.Vec3{1, 0, 0}, mat.Diffuse)
	assert.Equal(t, filepath.Join(dir, "tex", "red.png"), mat.Texture)
}

func TestLoadMissingLibrary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0644))
	m, err := Load(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	assert.Empty(t, m.Materials)
	assert.Equal(t, 2, m.TriangleCount())
}

func TestBounds(t *testing.T) {
	m, _, err := Parse(strings.NewReader(quadOBJ))
	require.NoError(t, err)
	lo, hi := m.Bounds(mathutil.Compose(mathutil.Vec3{}, mathutil.Mat3Identity(), mathutil.Vec3{1, 1, 1}))
	assert.Equal(t, mathutil.Vec3{0, 0, 0}, lo)
	assert.Equal(t, mathutil.Vec3{1, 1, 0}, hi)

	moved := mathutil.FromMat3Translation(mathutil.Mat3Identity(), mathutil.Vec3{10, 0, 0})
	assert.Equal(t, mathutil.Vec3{10.5, 0.5, 0}, m.Center(moved))
}
