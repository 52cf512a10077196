package texture

import (
	"os"
	"path/filepath"
	"strings"
)

// extension priority: formats that can carry alpha win over those that
// cannot for the same stem.
var extRank = map[string]int{
	".png":  3,
	".tga":  3,
	".webp": 3,
	".bmp":  1,
	".jpg":  1,
	".jpeg": 1,
}

// Index maps lowercase texture stems to filesystem paths.
type Index struct {
	entries map[string]string // stem.lower() → full path
}

// BuildIndex scans dirs recursively for image files. Missing directories
// are skipped.
func BuildIndex(dirs ...string) *Index {
	idx := &Index{entries: make(map[string]string)}
	for _, dir := range dirs {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			rank, ok := extRank[ext]
			if !ok {
				return nil
			}
			stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

			existing, exists := idx.entries[stem]
			if !exists || rank > extRank[strings.ToLower(filepath.Ext(existing))] {
				idx.entries[stem] = path
			}
			return nil
		})
	}
	return idx
}

// ResolvePath returns the filesystem path for a texture name, or ("", false).
// A name that is an existing file is used as is; otherwise its stem is
// looked up ("maps\\Hero_D.PNG" → "hero_d").
func (idx *Index) ResolvePath(texName string) (string, bool) {
	if texName == "" {
		return "", false
	}
	if info, err := os.Stat(texName); err == nil && !info.IsDir() {
		return texName, true
	}
	if idx == nil {
		return "", false
	}
	texName = strings.ReplaceAll(texName, "\\", "/")
	base := filepath.Base(texName)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	path, ok := idx.entries[stem]
	return path, ok
}

// Len returns the number of indexed textures.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}
