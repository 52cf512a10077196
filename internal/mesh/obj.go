// Package mesh loads Wavefront OBJ models (with their MTL materials) into
// flat vertex arrays and triangle lists for the software renderer.
package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"spriterig/internal/mathutil"
)

// Load reads an OBJ file and every MTL library it references. A missing
// MTL library is not an error; its materials fall back to the default.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mesh: open %s: %w", path, err)
	}
	defer f.Close()

	m, libs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("mesh: %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for _, lib := range libs {
		libPath := filepath.Join(dir, lib)
		lf, err := os.Open(libPath)
		if err != nil {
			continue
		}
		mats, err := ParseMTL(lf, filepath.Dir(libPath))
		lf.Close()
		if err != nil {
			return nil, fmt.Errorf("mesh: %s: %w", libPath, err)
		}
		for name, mat := range mats {
			m.Materials[name] = mat
		}
	}
	return m, nil
}

// Parse decodes OBJ geometry. Polygons with more than three corners are
// fan-triangulated. The names of referenced MTL libraries are returned
// unresolved.
func Parse(r io.Reader) (*Model, []string, error) {
	m := &Model{Materials: make(map[string]Material)}
	var libs []string
	cur := -1 // index into m.Groups
	groupName, material := "", ""

	group := func() *Group {
		if cur < 0 || m.Groups[cur].Name != groupName || m.Groups[cur].Material != material {
			m.Groups = append(m.Groups, Group{Name: groupName, Material: material})
			cur = len(m.Groups) - 1
		}
		return &m.Groups[cur]
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.Verts = append(m.Verts, [3]float32{float32(v[0]), float32(v[1]), float32(v[2])})
		case "vn":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.Normals = append(m.Normals, [3]float32{float32(v[0]), float32(v[1]), float32(v[2])})
		case "vt":
			v, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
			m.UVs = append(m.UVs, [2]float32{float32(v[0]), float32(v[1])})
		case "f":
			if len(fields) < 4 {
				return nil, nil, fmt.Errorf("line %d: face needs at least 3 vertices", line)
			}
			corners := make([][3]int, len(fields)-1)
			for i, tok := range fields[1:] {
				c, err := parseCorner(tok, len(m.Verts), len(m.UVs), len(m.Normals))
				if err != nil {
					return nil, nil, fmt.Errorf("line %d: %w", line, err)
				}
				corners[i] = c
			}
			g := group()
			for i := 1; i+1 < len(corners); i++ {
				a, b, c := corners[0], corners[i], corners[i+1]
				g.Tris = append(g.Tris, Triangle{
					VI: [3]int{a[0], b[0], c[0]},
					TI: [3]int{a[1], b[1], c[1]},
					NI: [3]int{a[2], b[2], c[2]},
				})
			}
		case "o", "g":
			groupName = strings.Join(fields[1:], " ")
		case "usemtl":
			material = strings.Join(fields[1:], " ")
		case "mtllib":
			libs = append(libs, fields[1:]...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}

	// drop groups that never received a face
	kept := m.Groups[:0]
	for _, g := range m.Groups {
		if len(g.Tris) > 0 {
			kept = append(kept, g)
		}
	}
	m.Groups = kept
	return m, libs, nil
}

// parseCorner decodes v, v/t, v//n or v/t/n into 0-based indices.
func parseCorner(tok string, nv, nt, nn int) ([3]int, error) {
	out := [3]int{-1, -1, -1}
	parts := strings.Split(tok, "/")
	if len(parts) > 3 {
		return out, fmt.Errorf("bad face corner %q", tok)
	}
	limits := [3]int{nv, nt, nn}
	for i, p := range parts {
		if p == "" {
			if i == 0 {
				return out, fmt.Errorf("bad face corner %q", tok)
			}
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, fmt.Errorf("bad face corner %q: %w", tok, err)
		}
		idx := n - 1
		if n < 0 {
			idx = limits[i] + n
		}
		if n == 0 || idx < 0 || idx >= limits[i] {
			return out, fmt.Errorf("face index %d out of range in %q", n, tok)
		}
		out[i] = idx
	}
	return out, nil
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ParseMTL decodes the Kd and map_Kd statements of an MTL library. Texture
// paths are joined to dir unless absolute.
func ParseMTL(r io.Reader, dir string) (map[string]Material, error) {
	mats := make(map[string]Material)
	name := ""
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "newmtl":
			name = strings.Join(fields[1:], " ")
			mats[name] = Material{Diffuse: mathutil.Vec3{0.8, 0.8, 0.8}}
		case "Kd":
			if name == "" {
				continue
			}
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			mat := mats[name]
			mat.Diffuse = mathutil.Vec3{v[0], v[1], v[2]}
			mats[name] = mat
		case "map_Kd":
			if name == "" || len(fields) < 2 {
				continue
			}
			// options such as -s precede the file name
			tex := fields[len(fields)-1]
			if !filepath.IsAbs(tex) {
				tex = filepath.Join(dir, tex)
			}
			mat := mats[name]
			mat.Texture = tex
			mats[name] = mat
		}
	}
	return mats, sc.Err()
}
